// Package worker runs the single long-lived goroutine that owns the hardware
// output channel. It drains the playback request queue, streams decoded PCM
// through the gain stage into the device, and manages the channel's
// enable/disable lifecycle. All hardware transitions happen on this
// goroutine; nothing else ever touches the output.
package worker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"chime.click/internal/device"
	"chime.click/internal/gain"
	"chime.click/internal/queue"
	"chime.click/internal/wav"
)

// Command is an out-of-band control signal delivered to the worker.
type Command int

const (
	// CommandWake tells the worker new work is queued.
	CommandWake Command = iota
	// CommandStop abandons the in-flight playback. The caller clears the
	// queue first; the hardware stays up until the idle timeout.
	CommandStop
	// CommandTerminate shuts the worker down for good.
	CommandTerminate
)

func (c Command) String() string {
	switch c {
	case CommandWake:
		return "wake"
	case CommandStop:
		return "stop"
	case CommandTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// StreamOpener resolves a request path against the selected storage backend
// and returns a byte stream positioned at offset 0.
type StreamOpener func(path string, fromSD bool) (io.ReadCloser, error)

// Callbacks are invoked from the worker goroutine when a request finishes or
// fails. Either may be nil.
type Callbacks struct {
	Finished func(id string)
	Error    func(id, reason string)
}

// Tuning collects the timing and buffer knobs of the loop.
type Tuning struct {
	// PollInterval is the idle wake cadence of the loop.
	PollInterval time.Duration
	// IdleTimeout is how long the hardware channel may sit idle before it
	// is powered down.
	IdleTimeout time.Duration
	// BlockSize is the transfer buffer size in bytes.
	BlockSize int
	// EnableBackoff is the delay after a failed hardware enable before the
	// next attempt.
	EnableBackoff time.Duration
	// DisableOnIdle lets the channel actually power down after IdleTimeout
	// of real inactivity. When unset, each silence keepalive counts as
	// activity and pushes the deadline out again, so an enabled channel
	// with nothing queued stays warm indefinitely. The zero value keeps
	// that warm-channel behavior.
	DisableOnIdle bool
}

// DefaultTuning mirrors the firmware's timing: 5 ms poll, 10 s idle window,
// keepalive counted as activity.
func DefaultTuning() Tuning {
	return Tuning{
		PollInterval:  5 * time.Millisecond,
		IdleTimeout:   10 * time.Second,
		BlockSize:     4096,
		EnableBackoff: 250 * time.Millisecond,
	}
}

type verdict int

const (
	verdictContinue verdict = iota
	verdictStopped
	verdictTerminate
)

// Loop is the playback worker. Create with New, start with Start, then talk
// to it only through Wake, Stop and Terminate. Ready reports the one-shot
// hardware init result; Done is closed when the goroutine exits.
type Loop struct {
	out    device.Output
	format wav.Format
	q      *queue.Queue
	open   StreamOpener
	gain   func() float32
	cb     Callbacks
	tuning Tuning

	cmds  chan Command
	ready chan error
	done  chan struct{}

	// hwEnabled is the authoritative channel state, touched only on the
	// worker goroutine. hwActive is the best-effort snapshot other
	// goroutines may read for UI purposes.
	hwEnabled  bool
	hwActive   atomic.Bool
	lastActive time.Time

	buf     []byte
	silence []byte
}

// New assembles a loop around the given output. Zero tuning fields fall back
// to DefaultTuning values.
func New(out device.Output, format wav.Format, q *queue.Queue, open StreamOpener, gainFn func() float32, cb Callbacks, tuning Tuning) *Loop {
	def := DefaultTuning()
	if tuning.PollInterval <= 0 {
		tuning.PollInterval = def.PollInterval
	}
	if tuning.IdleTimeout <= 0 {
		tuning.IdleTimeout = def.IdleTimeout
	}
	if tuning.BlockSize <= 0 {
		tuning.BlockSize = def.BlockSize
	}
	if tuning.EnableBackoff <= 0 {
		tuning.EnableBackoff = def.EnableBackoff
	}

	return &Loop{
		out:     out,
		format:  format,
		q:       q,
		open:    open,
		gain:    gainFn,
		cb:      cb,
		tuning:  tuning,
		cmds:    make(chan Command, 16),
		ready:   make(chan error, 1),
		done:    make(chan struct{}),
		buf:     make([]byte, tuning.BlockSize),
		silence: make([]byte, tuning.BlockSize),
	}
}

// Start launches the worker goroutine.
func (l *Loop) Start() {
	go l.run()
}

// Ready delivers the hardware init result exactly once.
func (l *Loop) Ready() <-chan error {
	return l.ready
}

// Done is closed when the worker goroutine has exited and released the
// hardware.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// HardwareActive reports a best-effort snapshot of the channel state, for UI
// display only.
func (l *Loop) HardwareActive() bool {
	return l.hwActive.Load()
}

// Wake nudges the worker; best effort, since the poll cadence picks queued
// work up anyway.
func (l *Loop) Wake() {
	select {
	case l.cmds <- CommandWake:
	default:
	}
}

// Stop interrupts the in-flight playback at the next block boundary.
func (l *Loop) Stop() {
	l.send(CommandStop)
}

// Terminate asks the worker to release the hardware and exit.
func (l *Loop) Terminate() {
	l.send(CommandTerminate)
}

func (l *Loop) send(cmd Command) {
	select {
	case l.cmds <- cmd:
	case <-l.done:
	case <-time.After(time.Second):
		slog.Warn("worker did not accept command", "command", cmd)
	}
}

func (l *Loop) run() {
	defer close(l.done)

	err := l.out.Open()
	l.ready <- err
	if err != nil {
		slog.Error("hardware init failed, worker exiting", "error", err)
		return
	}

	slog.Info("playback worker started",
		"poll_interval", l.tuning.PollInterval,
		"idle_timeout", l.tuning.IdleTimeout,
		"block_size", l.tuning.BlockSize)

	l.touch()
	ticker := time.NewTicker(l.tuning.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-l.cmds:
			switch cmd {
			case CommandTerminate:
				l.shutdown()
				return
			case CommandStop:
				// Nothing in flight here; the caller already cleared the
				// queue. Disabling is left to the idle timeout.
			case CommandWake:
				if l.dispatch() {
					l.shutdown()
					return
				}
			}
		case <-ticker.C:
			if l.dispatch() {
				l.shutdown()
				return
			}
		}
	}
}

func (l *Loop) shutdown() {
	l.disableHardware()
	if err := l.out.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
	slog.Info("playback worker terminated")
}

// dispatch drains the queue, or runs the idle/keepalive logic when there is
// nothing to do. Returns true when a terminate arrived mid-playback.
func (l *Loop) dispatch() bool {
	if !l.q.Pending() {
		l.idle()
		return false
	}

	for l.q.Pending() {
		if err := l.enableHardware(); err != nil {
			slog.Error("hardware enable failed, backing off",
				"error", err,
				"backoff", l.tuning.EnableBackoff)
			time.Sleep(l.tuning.EnableBackoff)
			return false // request stays queued, retried next cycle
		}
		req, ok := l.q.Next()
		if !ok {
			break
		}
		if l.play(req) == verdictTerminate {
			return true
		}
	}
	return false
}

// play streams one request through the gain stage into the device. Any
// per-request failure is reported through the error callback and never
// takes the worker down.
func (l *Loop) play(req queue.Request) verdict {
	slog.Debug("playing request", "path", req.Path, "click", req.Click, "from_sd", req.FromSD)

	rc, err := l.open(req.Path, req.FromSD)
	if err != nil {
		l.fail(req.Path, fmt.Sprintf("open failed: %v", err))
		return verdictContinue
	}
	defer rc.Close()

	dc, err := wav.Parse(rc, l.format)
	if err != nil {
		l.fail(req.Path, err.Error())
		return verdictContinue
	}

	remaining := int64(dc.Size)
	for remaining > 0 {
		n := len(l.buf)
		if int64(n) > remaining {
			n = int(remaining)
		}
		read, err := io.ReadFull(rc, l.buf[:n])
		if read > 0 {
			// Gain is re-read per block so volume changes land within one
			// buffer's latency.
			gain.Apply(l.buf[:read], l.gain())
			if werr := l.writeAll(l.buf[:read]); werr != nil {
				l.fail(req.Path, fmt.Sprintf("hardware write failed: %v", werr))
				return verdictContinue
			}
			remaining -= int64(read)
			l.touch()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				l.fail(req.Path, fmt.Sprintf("data chunk truncated, %d bytes missing", remaining))
				return verdictContinue
			}
			l.fail(req.Path, fmt.Sprintf("read failed: %v", err))
			return verdictContinue
		}

		// Out-of-band control between blocks keeps cancellation latency
		// bounded by one hardware write.
		select {
		case cmd := <-l.cmds:
			switch cmd {
			case CommandTerminate:
				slog.Debug("terminate during playback", "path", req.Path)
				return verdictTerminate
			case CommandStop:
				slog.Debug("playback interrupted", "path", req.Path)
				return verdictStopped
			case CommandWake:
				// More work queued; the current file finishes first.
			}
		default:
		}
	}

	slog.Debug("playback finished", "path", req.Path)
	if l.cb.Finished != nil {
		l.cb.Finished(req.Path)
	}
	return verdictContinue
}

func (l *Loop) fail(id, reason string) {
	slog.Warn("playback failed", "id", id, "reason", reason)
	if l.cb.Error != nil {
		l.cb.Error(id, reason)
	}
}

func (l *Loop) writeAll(p []byte) error {
	for len(p) > 0 {
		n, err := l.out.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// idle runs the lifecycle policy while no work is queued: power the channel
// down after a full idle window, otherwise keep it warm with a block of
// silence to avoid pops from rapid enable/disable churn.
func (l *Loop) idle() {
	if !l.hwEnabled {
		return
	}
	if time.Since(l.lastActive) >= l.tuning.IdleTimeout {
		slog.Debug("idle timeout elapsed, disabling hardware")
		l.disableHardware()
		return
	}

	if err := l.writeAll(l.silence); err != nil {
		slog.Error("silence keepalive failed", "error", err)
		return
	}
	if !l.tuning.DisableOnIdle {
		l.touch()
	}
}

func (l *Loop) enableHardware() error {
	if l.hwEnabled {
		return nil
	}
	if err := l.out.Enable(); err != nil {
		return err
	}
	l.hwEnabled = true
	l.hwActive.Store(true)
	l.touch()
	slog.Info("hardware output enabled")
	return nil
}

func (l *Loop) disableHardware() {
	if !l.hwEnabled {
		return
	}
	if err := l.out.Disable(); err != nil {
		slog.Error("failed to disable output", "error", err)
	}
	l.hwEnabled = false
	l.hwActive.Store(false)
	slog.Info("hardware output disabled")
}

func (l *Loop) touch() {
	l.lastActive = time.Now()
}
