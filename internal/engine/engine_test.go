package engine

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chime.click/internal/assets"
	"chime.click/internal/audiotest"
	"chime.click/internal/device"
	"chime.click/internal/settings"
	"chime.click/internal/worker"
)

func testConfig() device.Config {
	return device.Config{BCLKPin: 26, LRCKPin: 25, DOUTPin: 22, SampleRate: 16000, Channels: 1}
}

func fastTuning() worker.Tuning {
	return worker.Tuning{
		PollInterval:  time.Millisecond,
		IdleTimeout:   time.Hour,
		BlockSize:     64,
		EnableBackoff: time.Millisecond,
	}
}

// outputFactory tracks every output it hands to the engine.
type outputFactory struct {
	mu      sync.Mutex
	outputs []*device.MockOutput
}

func (f *outputFactory) new(cfg device.Config) (device.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &device.MockOutput{}
	f.outputs = append(f.outputs, out)
	return out, nil
}

func (f *outputFactory) created() []*device.MockOutput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*device.MockOutput(nil), f.outputs...)
}

type recordingIcon struct {
	mu     sync.Mutex
	glyphs []string
}

func (r *recordingIcon) SetGlyph(glyph string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.glyphs = append(r.glyphs, glyph)
}

func (r *recordingIcon) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.glyphs) == 0 {
		return ""
	}
	return r.glyphs[len(r.glyphs)-1]
}

type fakeJournal struct {
	mu       sync.Mutex
	finished []string
	errored  []string
}

func (j *fakeJournal) RecordFinished(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finished = append(j.finished, id)
}

func (j *fakeJournal) RecordError(id, reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errored = append(j.errored, id)
}

// callbackSink collects engine callbacks with a notification channel.
type callbackSink struct {
	mu       sync.Mutex
	finished []string
	failed   []string
	reasons  []string
	notify   chan struct{}
}

func newSink() *callbackSink {
	return &callbackSink{notify: make(chan struct{}, 64)}
}

func (s *callbackSink) install(m *Manager) {
	m.SetOnPlaybackFinished(func(id string) {
		s.mu.Lock()
		s.finished = append(s.finished, id)
		s.mu.Unlock()
		s.notify <- struct{}{}
	})
	m.SetOnPlaybackError(func(id, reason string) {
		s.mu.Lock()
		s.failed = append(s.failed, id)
		s.reasons = append(s.reasons, reason)
		s.mu.Unlock()
		s.notify <- struct{}{}
	})
}

func (s *callbackSink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a callback")
	}
}

func (s *callbackSink) snapshot() (finished, failed, reasons []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.finished...),
		append([]string(nil), s.failed...),
		append([]string(nil), s.reasons...)
}

func newTestManager(t *testing.T, mutate func(*Options)) (*Manager, *outputFactory, afero.Fs) {
	t.Helper()
	factory := &outputFactory{}
	flash := afero.NewMemMapFs()
	opts := Options{
		Flash:        flash,
		Settings:     settings.NewMemory(),
		NewOutput:    factory.new,
		Tuning:       fastTuning(),
		StartTimeout: time.Second,
		StopTimeout:  time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}
	m := New(opts)
	t.Cleanup(func() {
		if m.IsEnabled() {
			m.SetEnabled(false)
		}
	})
	return m, factory, flash
}

func writeFlashWAV(t *testing.T, fsys afero.Fs, path string) {
	t.Helper()
	data := audiotest.BuildWAV(16000, 1, audiotest.Ramp(64, 3))
	require.NoError(t, afero.WriteFile(fsys, path, data, 0644))
}

func TestInitMaterializesAssetAndAppliesSettings(t *testing.T) {
	store := settings.NewMemory()
	require.NoError(t, store.SetInt(settings.KeyVolume, 80))

	m, factory, flash := newTestManager(t, func(o *Options) { o.Settings = store })
	require.NoError(t, m.Init(testConfig()))

	// Click asset materialized on flash.
	info, err := flash.Stat(assets.ClickPath)
	require.NoError(t, err)
	assert.Equal(t, assets.ExpectedSize(testConfig().Format()), info.Size())

	// Persisted volume applied; persisted enabled default turned us on.
	assert.Equal(t, 80, m.GetVolume())
	assert.True(t, m.IsEnabled())
	assert.Len(t, factory.created(), 1)

	// Init is idempotent.
	require.NoError(t, m.Init(testConfig()))
	assert.Len(t, factory.created(), 1)
}

func TestInitRejectsInvalidConfig(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	cfg := testConfig()
	cfg.Channels = 5
	assert.Error(t, m.Init(cfg))
	assert.Error(t, m.SetEnabled(true), "uninitialized engine must reject SetEnabled")
}

func TestEnableDisableSymmetry(t *testing.T) {
	m, factory, _ := newTestManager(t, nil)
	require.NoError(t, m.Init(testConfig()))

	require.NoError(t, m.SetEnabled(false))
	require.NoError(t, m.SetEnabled(true))
	require.NoError(t, m.SetEnabled(false))
	require.NoError(t, m.SetEnabled(true))
	assert.True(t, m.IsEnabled())

	// One output per enable cycle, and every torn-down cycle released its
	// output; only the live one stays open.
	outputs := factory.created()
	require.Len(t, outputs, 3)
	for i, out := range outputs[:len(outputs)-1] {
		assert.Equal(t, 1, out.CloseCount(), "output %d leaked", i)
	}
	assert.Equal(t, 0, outputs[len(outputs)-1].CloseCount())

	// Redundant transitions are no-ops.
	require.NoError(t, m.SetEnabled(true))
	assert.Len(t, factory.created(), 3)
}

func TestPlayFileWhileDisabledFiresErrorCallback(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	require.NoError(t, m.Init(testConfig()))
	require.NoError(t, m.SetEnabled(false))

	sink := newSink()
	sink.install(m)

	m.PlayFile("/notify.wav", false)
	sink.wait(t)

	finished, failed, reasons := sink.snapshot()
	assert.Empty(t, finished)
	require.Equal(t, []string{"/notify.wav"}, failed)
	assert.Contains(t, reasons[0], "not ready")
}

func TestPlayFileMissingReportsOpenFailure(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	require.NoError(t, m.Init(testConfig()))

	sink := newSink()
	sink.install(m)

	m.PlayFile("/missing.wav", false)
	sink.wait(t)

	finished, failed, reasons := sink.snapshot()
	require.Equal(t, []string{"/missing.wav"}, failed)
	assert.Contains(t, reasons[0], "open failed")
	assert.NotContains(t, finished, "/missing.wav",
		"finished must never fire for a failed identifier")
}

func TestPlayFileFromFlashFinishes(t *testing.T) {
	m, _, flash := newTestManager(t, nil)
	require.NoError(t, m.Init(testConfig()))
	writeFlashWAV(t, flash, "/notify.wav")

	sink := newSink()
	sink.install(m)

	m.PlayFile("/notify.wav", false)
	sink.wait(t)

	finished, failed, _ := sink.snapshot()
	assert.Empty(t, failed)
	assert.Equal(t, []string{"/notify.wav"}, finished)
}

func TestPlayFileFromRemovableMedia(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	require.NoError(t, m.Init(testConfig()))

	sink := newSink()
	sink.install(m)

	// Not mounted yet: open failure.
	m.PlayFile("/song.wav", true)
	sink.wait(t)
	_, failed, reasons := sink.snapshot()
	require.Equal(t, []string{"/song.wav"}, failed)
	assert.Contains(t, reasons[0], "not mounted")

	sd := afero.NewMemMapFs()
	writeFlashWAV(t, sd, "/song.wav")
	m.SetSDFilesystem(sd)

	m.PlayFile("/song.wav", true)
	sink.wait(t)
	finished, _, _ := sink.snapshot()
	assert.Equal(t, []string{"/song.wav"}, finished)
}

func TestClickSoundsPlayInSubmissionOrder(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	require.NoError(t, m.Init(testConfig()))

	sink := newSink()
	sink.install(m)

	m.PlayClickSound()
	m.PlayClickSound()
	m.PlayClickSound()

	for i := 0; i < 3; i++ {
		sink.wait(t)
	}
	finished, failed, _ := sink.snapshot()
	assert.Empty(t, failed)
	require.Len(t, finished, 3)
	for _, id := range finished {
		assert.Equal(t, assets.ClickPath, id)
	}
}

func TestClickSoundDisabledInSettingsIsSilentNoop(t *testing.T) {
	store := settings.NewMemory()
	require.NoError(t, store.SetBool(settings.KeyClickEnabled, false))

	m, _, _ := newTestManager(t, func(o *Options) { o.Settings = store })
	require.NoError(t, m.Init(testConfig()))

	sink := newSink()
	sink.install(m)

	m.PlayClickSound()
	time.Sleep(50 * time.Millisecond)

	finished, failed, _ := sink.snapshot()
	assert.Empty(t, finished)
	assert.Empty(t, failed)
}

func TestPlayStreamAlwaysFails(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	require.NoError(t, m.Init(testConfig()))

	sink := newSink()
	sink.install(m)

	m.PlayStream("http://radio.example/stream")
	sink.wait(t)

	_, failed, reasons := sink.snapshot()
	require.Equal(t, []string{"http://radio.example/stream"}, failed)
	assert.Contains(t, reasons[0], "not implemented")
}

func TestVolumeMappingAndIconGlyphs(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	require.NoError(t, m.Init(testConfig()))

	icon := &recordingIcon{}
	m.SetSpeakerIcon(icon)

	m.SetVolume(0)
	assert.Equal(t, GlyphMuted, icon.last())
	assert.True(t, m.IsEnabled(), "mute is not disable")

	m.SetVolume(20)
	assert.Equal(t, GlyphLow, icon.last())
	m.SetVolume(50)
	assert.Equal(t, GlyphMid, icon.last())
	m.SetVolume(80)
	assert.Equal(t, GlyphHigh, icon.last())

	m.SetVolume(150)
	assert.Equal(t, 100, m.GetVolume())
	m.SetVolume(-5)
	assert.Equal(t, 0, m.GetVolume())

	require.NoError(t, m.SetEnabled(false))
	assert.Equal(t, GlyphDisabled, icon.last())
}

func TestVolumePersistsToSettings(t *testing.T) {
	store := settings.NewMemory()
	m, _, _ := newTestManager(t, func(o *Options) { o.Settings = store })
	require.NoError(t, m.Init(testConfig()))

	m.SetVolume(37)
	assert.Equal(t, 37, store.Int(settings.KeyVolume, -1))

	require.NoError(t, m.SetEnabled(false))
	assert.False(t, store.Bool(settings.KeyEnabled, true))
}

func TestShutdownPreservesEnabledPreference(t *testing.T) {
	store := settings.NewMemory()
	require.NoError(t, store.SetBool(settings.KeyEnabled, true))

	m, _, _ := newTestManager(t, func(o *Options) { o.Settings = store })
	require.NoError(t, m.Init(testConfig()))
	require.True(t, m.IsEnabled())

	m.Shutdown()
	assert.False(t, m.IsEnabled())
	assert.True(t, store.Bool(settings.KeyEnabled, false),
		"process teardown must not clobber the persisted preference")

	// Only the user-driven toggle records a disable.
	require.NoError(t, m.SetEnabled(true))
	require.NoError(t, m.SetEnabled(false))
	assert.False(t, store.Bool(settings.KeyEnabled, true))
}

func TestJournalRecordsOutcomes(t *testing.T) {
	journal := &fakeJournal{}
	m, _, flash := newTestManager(t, func(o *Options) { o.Journal = journal })
	require.NoError(t, m.Init(testConfig()))
	writeFlashWAV(t, flash, "/ok.wav")

	sink := newSink()
	sink.install(m)

	m.PlayFile("/ok.wav", false)
	sink.wait(t)
	m.PlayFile("/missing.wav", false)
	sink.wait(t)

	journal.mu.Lock()
	defer journal.mu.Unlock()
	assert.Equal(t, []string{"/ok.wav"}, journal.finished)
	assert.Equal(t, []string{"/missing.wav"}, journal.errored)
}

func TestStopWithoutWorkerIsNoop(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	require.NoError(t, m.Init(testConfig()))
	require.NoError(t, m.SetEnabled(false))

	// Must not panic or fire callbacks.
	m.Stop()
}

func TestHardwareActiveSnapshot(t *testing.T) {
	m, factory, flash := newTestManager(t, nil)
	require.NoError(t, m.Init(testConfig()))
	writeFlashWAV(t, flash, "/blip.wav")

	// Before any playback the channel is down: enable happens on first work.
	assert.False(t, m.HardwareActive())

	sink := newSink()
	sink.install(m)
	m.PlayFile("/blip.wav", false)
	sink.wait(t)

	assert.True(t, m.HardwareActive())
	outputs := factory.created()
	require.Len(t, outputs, 1)
	assert.True(t, outputs[0].Enabled())

	require.NoError(t, m.SetEnabled(false))
	assert.False(t, m.HardwareActive())
}

func TestStockTuningKeepsHardwareWarmPastIdleWindow(t *testing.T) {
	m, factory, flash := newTestManager(t, func(o *Options) {
		// Stock shape: numeric knobs only, no idle-disable opt-in.
		o.Tuning = worker.Tuning{
			PollInterval:  time.Millisecond,
			IdleTimeout:   20 * time.Millisecond,
			BlockSize:     64,
			EnableBackoff: time.Millisecond,
		}
	})
	require.NoError(t, m.Init(testConfig()))
	writeFlashWAV(t, flash, "/blip.wav")

	sink := newSink()
	sink.install(m)
	m.PlayFile("/blip.wav", false)
	sink.wait(t)

	time.Sleep(150 * time.Millisecond)
	assert.True(t, m.HardwareActive(),
		"channel must stay warm after playback unless idle-disable is opted into")
	outputs := factory.created()
	require.Len(t, outputs, 1)
	assert.Equal(t, 0, outputs[0].DisableCount())
}

func TestErrorReasonDistinguishesFormatFailures(t *testing.T) {
	m, _, flash := newTestManager(t, nil)
	require.NoError(t, m.Init(testConfig()))

	wrong := audiotest.BuildWAV(44100, 2, audiotest.Ramp(16, 1))
	require.NoError(t, afero.WriteFile(flash, "/wrong.wav", wrong, 0644))

	sink := newSink()
	sink.install(m)
	m.PlayFile("/wrong.wav", false)
	sink.wait(t)

	_, failed, reasons := sink.snapshot()
	require.Equal(t, []string{"/wrong.wav"}, failed)
	assert.True(t, strings.Contains(reasons[0], "unsupported"),
		"reason %q should name the format mismatch", reasons[0])
}
