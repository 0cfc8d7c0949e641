// Package engine is the public face of the audio subsystem: lifecycle,
// request submission, volume control and event callbacks. It coordinates the
// playback worker goroutine but never touches the hardware itself; all
// channel transitions happen inside the worker.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"chime.click/internal/assets"
	"chime.click/internal/device"
	"chime.click/internal/queue"
	"chime.click/internal/settings"
	"chime.click/internal/worker"
)

// Caller-misuse and lifecycle errors.
var (
	ErrNotInitialized = errors.New("audio engine not initialized")
	ErrStartTimeout   = errors.New("worker did not report hardware init in time")
)

// SpeakerIcon receives volume-state glyph updates. The engine has no idea
// what a widget is; anything with a SetGlyph method qualifies.
type SpeakerIcon interface {
	SetGlyph(glyph string)
}

// Glyph identifiers handed to the speaker icon.
const (
	GlyphDisabled = "speaker-off"
	GlyphMuted    = "speaker-mute"
	GlyphLow      = "speaker-low"
	GlyphMid      = "speaker-mid"
	GlyphHigh     = "speaker-high"
)

// Journal records playback outcomes; see the history package for the SQLite
// implementation. May be nil.
type Journal interface {
	RecordFinished(identifier string)
	RecordError(identifier, reason string)
}

const defaultVolume = 50

// Options wires the engine's collaborators. Zero-value fields get working
// defaults: an in-memory flash filesystem, an in-memory settings store, the
// oto output backend and the firmware's stock tuning.
type Options struct {
	// Flash is the built-in asset store; the click asset lives here.
	Flash afero.Fs
	// Removable is the SD-card style filesystem; may be nil until mounted.
	Removable afero.Fs
	// Settings persists volume and enabled state across restarts.
	Settings settings.Store
	// NewOutput builds a fresh hardware output per enable cycle.
	NewOutput device.Factory
	// Journal records playback outcomes; may be nil.
	Journal Journal
	// Tuning adjusts the worker's timing; zero fields use defaults.
	Tuning worker.Tuning
	// StartTimeout bounds the wait for the worker's hardware-init signal.
	StartTimeout time.Duration
	// StopTimeout bounds the wait for worker termination before the engine
	// abandons the goroutine.
	StopTimeout time.Duration
}

// Manager is the audio subsystem façade. All methods are safe for use from
// the caller context; the worker goroutine never calls back into exported
// methods.
type Manager struct {
	mu          sync.Mutex // engine state
	opts        Options
	cfg         device.Config
	initialized bool
	enabled     bool
	volume      int
	loop        *worker.Loop
	q           *queue.Queue

	// cbMu guards the callback and icon registrations separately from the
	// state mutex, since the worker fires callbacks while a caller may be
	// blocked in SetEnabled holding mu.
	cbMu       sync.Mutex
	icon       SpeakerIcon
	onFinished func(id string)
	onError    func(id, reason string)

	// fsMu guards the storage backends for the same reason: the worker
	// opens streams while a caller may hold mu.
	fsMu      sync.Mutex
	flash     afero.Fs
	removable afero.Fs

	// gainBits is the linear gain as float32 bits; written by the caller
	// context, read lock-free by the worker per block.
	gainBits atomic.Uint32
}

// New creates an engine with the given collaborators. Call Init before
// anything else.
func New(opts Options) *Manager {
	if opts.Flash == nil {
		opts.Flash = afero.NewMemMapFs()
	}
	if opts.Settings == nil {
		opts.Settings = settings.NewMemory()
	}
	if opts.NewOutput == nil {
		opts.NewOutput = device.NewOto
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = time.Second
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Second
	}

	m := &Manager{
		opts:      opts,
		volume:    defaultVolume,
		flash:     opts.Flash,
		removable: opts.Removable,
	}
	m.gainBits.Store(math.Float32bits(float32(defaultVolume) / 100))
	return m
}

// Init captures the hardware configuration, materializes the click asset and
// applies persisted volume and enabled state. A persisted-enable failure
// leaves the engine initialized but disabled; the caller can retry through
// SetEnabled.
func (m *Manager) Init(cfg device.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		slog.Debug("engine already initialized")
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid audio config: %w", err)
	}

	if err := assets.Ensure(m.opts.Flash, assets.ClickPath, cfg.Format()); err != nil {
		return fmt.Errorf("ensuring click asset: %w", err)
	}

	m.cfg = cfg
	m.q = queue.New(assets.ClickPath)
	m.initialized = true

	vol := m.opts.Settings.Int(settings.KeyVolume, defaultVolume)
	m.setVolumeLocked(clampVolume(vol), false)

	slog.Info("audio engine initialized",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"volume", m.volume)

	if m.opts.Settings.Bool(settings.KeyEnabled, true) {
		if err := m.enableLocked(); err != nil {
			slog.Error("persisted enable failed, staying disabled", "error", err)
		}
	}
	return nil
}

// Loop exists for interface symmetry with sibling subsystems; the engine has
// nothing to do on the GUI tick.
func (m *Manager) Loop() {}

// SetSDFilesystem mounts (or unmounts, with nil) the removable-media
// filesystem used by PlayFile requests flagged for SD.
func (m *Manager) SetSDFilesystem(fsys afero.Fs) {
	m.fsMu.Lock()
	defer m.fsMu.Unlock()
	m.removable = fsys
	slog.Debug("removable filesystem updated", "mounted", fsys != nil)
}

// SetEnabled turns the whole subsystem on or off. Enabling spawns the worker
// and blocks for its hardware-init handshake; disabling terminates the
// worker with a bounded wait and an abandon fallback, so the caller is never
// stuck indefinitely.
func (m *Manager) SetEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	if enabled == m.enabled {
		slog.Debug("enable state unchanged", "enabled", enabled)
		return nil
	}
	if enabled {
		return m.enableLocked()
	}
	m.disableLocked(true)
	return nil
}

// Shutdown tears the subsystem down for process exit. Unlike
// SetEnabled(false) it does not persist a disabled preference, so the user's
// enabled setting survives the restart.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return
	}
	m.disableLocked(false)
}

func (m *Manager) enableLocked() error {
	out, err := m.opts.NewOutput(m.cfg)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}

	loop := worker.New(out, m.cfg.Format(), m.q, m.openStream, m.currentGain,
		worker.Callbacks{Finished: m.handleFinished, Error: m.handleError},
		m.opts.Tuning)
	loop.Start()

	select {
	case err := <-loop.Ready():
		if err != nil {
			<-loop.Done() // worker exits on its own after a failed init
			return fmt.Errorf("hardware init failed: %w", err)
		}
	case <-time.After(m.opts.StartTimeout):
		loop.Terminate()
		slog.Error("worker start timed out, abandoning")
		return ErrStartTimeout
	}

	m.loop = loop
	m.enabled = true
	if err := m.opts.Settings.SetBool(settings.KeyEnabled, true); err != nil {
		slog.Warn("failed to persist enabled state", "error", err)
	}
	m.setGlyph(glyphForVolume(m.volume))
	slog.Info("audio engine enabled")
	return nil
}

func (m *Manager) disableLocked(persist bool) {
	loop := m.loop
	m.q.Clear()
	loop.Terminate()

	select {
	case <-loop.Done():
	case <-time.After(m.opts.StopTimeout):
		// The goroutine did not observe the terminate signal in time. Drop
		// it; a fresh worker is created on the next enable.
		slog.Error("worker stop timed out, abandoning goroutine")
	}

	m.loop = nil
	m.enabled = false
	if persist {
		if err := m.opts.Settings.SetBool(settings.KeyEnabled, false); err != nil {
			slog.Warn("failed to persist enabled state", "error", err)
		}
	}
	m.setGlyph(GlyphDisabled)
	slog.Info("audio engine disabled")
}

// PlayFile queues path for playback from flash, or from the removable
// filesystem when fromSD is set. Misuse (uninitialized, disabled, no worker)
// is surfaced through the error callback, matching how per-file failures are
// reported.
func (m *Manager) PlayFile(path string, fromSD bool) {
	m.mu.Lock()
	ready := m.initialized && m.enabled && m.loop != nil
	loop := m.loop
	q := m.q
	m.mu.Unlock()

	if !ready {
		m.dispatchError(path, "audio engine not ready")
		return
	}

	q.SubmitFile(path, fromSD)
	loop.Wake()
	slog.Debug("file playback queued", "path", path, "from_sd", fromSD)
}

// PlayClickSound queues one click. Silently a no-op when the engine is not
// ready or click feedback is switched off in settings; rapid calls coalesce
// into a small backlog.
func (m *Manager) PlayClickSound() {
	m.mu.Lock()
	ready := m.initialized && m.enabled && m.loop != nil
	loop := m.loop
	q := m.q
	m.mu.Unlock()

	if !ready || !m.opts.Settings.Bool(settings.KeyClickEnabled, true) {
		return
	}

	q.SubmitClick()
	loop.Wake()
}

// PlayStream reserves the public contract for a future decoder; it always
// fails through the error callback.
func (m *Manager) PlayStream(url string) {
	m.dispatchError(url, "streaming playback not implemented")
}

// Stop cancels queued work immediately and interrupts in-flight playback at
// the next block boundary. The hardware stays up; powering down is the idle
// timeout's job.
func (m *Manager) Stop() {
	m.mu.Lock()
	loop := m.loop
	q := m.q
	m.mu.Unlock()

	if loop == nil {
		return
	}
	q.Clear()
	loop.Stop()
	slog.Debug("playback stopped, queue cleared")
}

// SetVolume sets the 0-100 volume, clamping out-of-range values. The gain
// the worker applies updates within one block's latency.
func (m *Manager) SetVolume(volume int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setVolumeLocked(clampVolume(volume), true)
}

func (m *Manager) setVolumeLocked(volume int, persist bool) {
	m.volume = volume
	m.gainBits.Store(math.Float32bits(float32(volume) / 100))

	if persist {
		if err := m.opts.Settings.SetInt(settings.KeyVolume, volume); err != nil {
			slog.Warn("failed to persist volume", "error", err)
		}
	}
	if m.enabled {
		m.setGlyph(glyphForVolume(volume))
	}
	slog.Debug("volume set", "volume", volume)
}

// GetVolume returns the current 0-100 volume.
func (m *Manager) GetVolume() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// IsEnabled reports the subsystem's enabled state.
func (m *Manager) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// HardwareActive reports a best-effort snapshot of the physical channel
// state, for UI display only.
func (m *Manager) HardwareActive() bool {
	m.mu.Lock()
	loop := m.loop
	m.mu.Unlock()
	return loop != nil && loop.HardwareActive()
}

// SetOnPlaybackFinished registers the finished callback. It is invoked from
// the worker goroutine with the identifier the playback was requested under.
func (m *Manager) SetOnPlaybackFinished(fn func(id string)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onFinished = fn
}

// SetOnPlaybackError registers the error callback, invoked with the request
// identifier and a human-readable reason.
func (m *Manager) SetOnPlaybackError(fn func(id, reason string)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onError = fn
}

// SetSpeakerIcon binds the UI element that mirrors volume state. The icon is
// brought up to date immediately.
func (m *Manager) SetSpeakerIcon(icon SpeakerIcon) {
	m.mu.Lock()
	enabled := m.enabled
	volume := m.volume
	m.mu.Unlock()

	m.cbMu.Lock()
	m.icon = icon
	m.cbMu.Unlock()

	if icon == nil {
		return
	}
	if enabled {
		m.setGlyph(glyphForVolume(volume))
	} else {
		m.setGlyph(GlyphDisabled)
	}
}

func (m *Manager) openStream(path string, fromSD bool) (io.ReadCloser, error) {
	m.fsMu.Lock()
	fsys := m.flash
	if fromSD {
		fsys = m.removable
	}
	m.fsMu.Unlock()

	if fsys == nil {
		return nil, errors.New("removable media not mounted")
	}
	return fsys.Open(path)
}

func (m *Manager) currentGain() float32 {
	return math.Float32frombits(m.gainBits.Load())
}

func (m *Manager) handleFinished(id string) {
	if m.opts.Journal != nil {
		m.opts.Journal.RecordFinished(id)
	}
	m.cbMu.Lock()
	fn := m.onFinished
	m.cbMu.Unlock()
	if fn != nil {
		fn(id)
	}
}

func (m *Manager) handleError(id, reason string) {
	if m.opts.Journal != nil {
		m.opts.Journal.RecordError(id, reason)
	}
	m.cbMu.Lock()
	fn := m.onError
	m.cbMu.Unlock()
	if fn != nil {
		fn(id, reason)
	}
}

// dispatchError reports a caller-misuse failure through the same path worker
// errors take.
func (m *Manager) dispatchError(id, reason string) {
	slog.Debug("request rejected", "id", id, "reason", reason)
	m.handleError(id, reason)
}

func (m *Manager) setGlyph(glyph string) {
	m.cbMu.Lock()
	icon := m.icon
	m.cbMu.Unlock()
	if icon != nil {
		icon.SetGlyph(glyph)
	}
}

func glyphForVolume(volume int) string {
	switch {
	case volume == 0:
		return GlyphMuted
	case volume <= 33:
		return GlyphLow
	case volume <= 66:
		return GlyphMid
	default:
		return GlyphHigh
	}
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
