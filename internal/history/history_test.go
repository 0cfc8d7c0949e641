package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordAndQuery(t *testing.T) {
	r := openTestRecorder(t)

	r.RecordFinished("/assets/click.wav")
	r.RecordError("/missing.wav", "open failed: file does not exist")
	r.RecordFinished("/notify.wav")

	events, err := r.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	byID := map[string]Event{}
	for _, ev := range events {
		byID[ev.Identifier] = ev
	}

	assert.Equal(t, OutcomeFinished, byID["/assets/click.wav"].Outcome)
	assert.Equal(t, OutcomeFinished, byID["/notify.wav"].Outcome)

	failed := byID["/missing.wav"]
	assert.Equal(t, OutcomeError, failed.Outcome)
	assert.Contains(t, failed.Detail, "open failed")
	assert.False(t, failed.Timestamp.IsZero())
}

func TestRecentLimit(t *testing.T) {
	r := openTestRecorder(t)
	for i := 0; i < 5; i++ {
		r.RecordFinished("/assets/click.wav")
	}

	events, err := r.Recent(3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestRecorderDisablesAfterFailure(t *testing.T) {
	r := openTestRecorder(t)
	require.NoError(t, r.Close())

	// Recording on a closed database must not panic or error out;
	// the recorder silently disables itself.
	r.RecordFinished("/x.wav")
	r.RecordError("/y.wav", "boom")
}
