//go:build cgo

package device

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// oto permits exactly one context per process, created with a fixed format.
// The engine runs a single fixed hardware format anyway, so the first Open
// wins and later outputs reuse the shared context.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

// OtoOutput renders through the oto library. It is the desktop stand-in for
// the embedded bus driver: same Enable/Disable/Write contract, blocking
// writes through a pipe the oto player drains.
type OtoOutput struct {
	cfg    Config
	player *oto.Player
	pw     *io.PipeWriter
	opened bool
	closed bool
}

// NewOto creates an unopened oto-backed output.
func NewOto(cfg Config) (Output, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("creating oto output",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels)
	return &OtoOutput{cfg: cfg}, nil
}

// Open initializes the shared oto context and waits for it to become ready.
func (o *OtoOutput) Open() error {
	if o.closed {
		return ErrClosed
	}
	if o.opened {
		return nil
	}

	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   o.cfg.SampleRate,
			ChannelCount: o.cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("oto context init: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	if otoErr != nil {
		slog.Error("failed to initialize oto context", "error", otoErr)
		return otoErr
	}

	o.opened = true
	slog.Info("oto output opened")
	return nil
}

// Enable starts a player fed from a pipe. Writes block until the player
// consumes them, which is the bounded-by-transport behavior the worker
// expects.
func (o *OtoOutput) Enable() error {
	if !o.opened {
		return ErrNotOpen
	}
	if o.player != nil {
		return nil
	}

	pr, pw := io.Pipe()
	player := otoCtx.NewPlayer(pr)
	player.Play()

	o.player = player
	o.pw = pw
	slog.Debug("oto output enabled")
	return nil
}

// Write pushes one block into the player pipe.
func (o *OtoOutput) Write(p []byte) (int, error) {
	if o.player == nil {
		return 0, ErrNotEnabled
	}
	return o.pw.Write(p)
}

// Disable stops the player and drops the pipe.
func (o *OtoOutput) Disable() error {
	if o.player == nil {
		return nil
	}
	o.pw.Close()
	if err := o.player.Close(); err != nil {
		slog.Error("failed to close oto player", "error", err)
	}
	o.player = nil
	o.pw = nil
	slog.Debug("oto output disabled")
	return nil
}

// Close disables the player. The shared oto context has no teardown API and
// stays alive for the life of the process.
func (o *OtoOutput) Close() error {
	if o.closed {
		return nil
	}
	if err := o.Disable(); err != nil {
		return err
	}
	o.opened = false
	o.closed = true
	slog.Info("oto output closed")
	return nil
}
