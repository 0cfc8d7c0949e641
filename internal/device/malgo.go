//go:build cgo

package device

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"
)

// feedDepth bounds how many blocks Write can run ahead of the device
// callback before blocking. Deep enough to ride out scheduling jitter,
// shallow enough that stop latency stays near one block.
const feedDepth = 4

// MalgoOutput drives the default playback device through miniaudio.
type MalgoOutput struct {
	cfg    Config
	ctx    *malgo.AllocatedContext
	dev    *malgo.Device
	feed   chan []byte
	closed bool
}

// NewMalgo creates an unopened miniaudio-backed output.
func NewMalgo(cfg Config) (Output, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("creating malgo output",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels)
	return &MalgoOutput{cfg: cfg}, nil
}

// Open initializes the miniaudio context. The physical channel stays down
// until Enable.
func (m *MalgoOutput) Open() error {
	if m.closed {
		return ErrClosed
	}
	if m.ctx != nil {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("malgo internal", "message", message)
	})
	if err != nil {
		slog.Error("failed to initialize malgo context", "error", err)
		return fmt.Errorf("malgo context init: %w", err)
	}

	m.ctx = ctx
	slog.Info("malgo output opened")
	return nil
}

// Enable brings up the playback device. Sample data arrives through the feed
// channel; the device callback drains it and pads with silence when the
// worker falls behind.
func (m *MalgoOutput) Enable() error {
	if m.ctx == nil {
		return ErrNotOpen
	}
	if m.dev != nil {
		return nil
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(m.cfg.Channels)
	deviceConfig.SampleRate = uint32(m.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	feed := make(chan []byte, feedDepth)
	var leftover []byte

	onSamples := func(pOutput, _ []byte, framecount uint32) {
		filled := 0
		for filled < len(pOutput) {
			if len(leftover) == 0 {
				select {
				case block, ok := <-feed:
					if !ok {
						break
					}
					leftover = block
					continue
				default:
				}
				break
			}
			n := copy(pOutput[filled:], leftover)
			leftover = leftover[n:]
			filled += n
		}
		for i := filled; i < len(pOutput); i++ {
			pOutput[i] = 0
		}
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		slog.Error("failed to initialize playback device", "error", err)
		return fmt.Errorf("malgo device init: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		slog.Error("failed to start playback device", "error", err)
		return fmt.Errorf("malgo device start: %w", err)
	}

	m.feed = feed
	m.dev = dev
	slog.Debug("malgo output enabled")
	return nil
}

// Write queues one block for the device callback, blocking while the feed
// is full. The block is copied; callers may reuse p immediately.
func (m *MalgoOutput) Write(p []byte) (int, error) {
	if m.dev == nil {
		return 0, ErrNotEnabled
	}
	block := make([]byte, len(p))
	copy(block, p)
	m.feed <- block
	return len(p), nil
}

// Disable tears the playback device down. The miniaudio context survives so
// the next Enable is cheap.
func (m *MalgoOutput) Disable() error {
	if m.dev == nil {
		return nil
	}
	m.dev.Uninit()
	m.dev = nil
	m.feed = nil
	slog.Debug("malgo output disabled")
	return nil
}

// Close disables the device and releases the miniaudio context.
func (m *MalgoOutput) Close() error {
	if m.closed {
		return nil
	}
	if err := m.Disable(); err != nil {
		return err
	}
	if m.ctx != nil {
		if err := m.ctx.Uninit(); err != nil {
			slog.Error("failed to uninitialize malgo context", "error", err)
			return err
		}
		m.ctx.Free()
		m.ctx = nil
	}
	m.closed = true
	slog.Info("malgo output closed")
	return nil
}
