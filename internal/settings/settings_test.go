package settings

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreDefaults(t *testing.T) {
	s, err := NewFileStore(afero.NewMemMapFs(), "/settings/audio.json")
	require.NoError(t, err)

	assert.Equal(t, 42, s.Int(KeyVolume, 42))
	assert.True(t, s.Bool(KeyEnabled, true))
	assert.False(t, s.Bool(KeyClickEnabled, false))
}

func TestFileStoreRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()

	s, err := NewFileStore(fsys, "/settings/audio.json")
	require.NoError(t, err)
	require.NoError(t, s.SetInt(KeyVolume, 73))
	require.NoError(t, s.SetBool(KeyEnabled, false))

	// A fresh store over the same file must see the persisted values.
	reloaded, err := NewFileStore(fsys, "/settings/audio.json")
	require.NoError(t, err)
	assert.Equal(t, 73, reloaded.Int(KeyVolume, 0))
	assert.False(t, reloaded.Bool(KeyEnabled, true))
}

func TestFileStoreRejectsCorruptJSON(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/settings/audio.json", []byte("{nope"), 0644))

	_, err := NewFileStore(fsys, "/settings/audio.json")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	assert.Equal(t, 7, m.Int(KeyVolume, 7))

	require.NoError(t, m.SetInt(KeyVolume, 31))
	require.NoError(t, m.SetBool(KeyClickEnabled, true))

	assert.Equal(t, 31, m.Int(KeyVolume, 7))
	assert.True(t, m.Bool(KeyClickEnabled, false))
}
