// Package device defines the hardware output collaborator contract and the
// backends that implement it. The audio core only ever talks to the Output
// interface; which bus actually moves the samples is wiring detail.
package device

import (
	"errors"
	"fmt"

	"chime.click/internal/wav"
)

// Lifecycle errors shared by Output implementations.
var (
	ErrNotOpen    = errors.New("output channel not open")
	ErrNotEnabled = errors.New("output channel not enabled")
	ErrClosed     = errors.New("output channel closed")
)

// Config carries the bus pin assignment and the single fixed PCM format the
// device runs. All fields are required; there are no defaults.
type Config struct {
	BCLKPin    int `json:"bclk_pin"`
	LRCKPin    int `json:"lrck_pin"`
	DOUTPin    int `json:"dout_pin"`
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// Validate checks the configured values for plausibility.
func (c Config) Validate() error {
	if c.BCLKPin < 0 || c.LRCKPin < 0 || c.DOUTPin < 0 {
		return fmt.Errorf("invalid pin assignment: bclk=%d lrck=%d dout=%d", c.BCLKPin, c.LRCKPin, c.DOUTPin)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("invalid channel count: %d (must be 1 or 2)", c.Channels)
	}
	return nil
}

// Format returns the configured layout as a parser format descriptor.
func (c Config) Format() wav.Format {
	return wav.Format{
		SampleRate:    uint32(c.SampleRate),
		Channels:      uint16(c.Channels),
		BitsPerSample: 16,
	}
}

// BytesPerFrame is the size of one interleaved 16-bit sample frame.
func (c Config) BytesPerFrame() int {
	return 2 * c.Channels
}

// Output is the hardware bus driver contract. The worker goroutine owns an
// Output exclusively: Open acquires the driver resources, Enable and Disable
// toggle the physical channel, Write pushes one block of interleaved 16-bit
// little-endian samples and blocks until the driver accepts it, Close
// releases everything. No method is safe for concurrent use.
type Output interface {
	Open() error
	Enable() error
	Disable() error
	Write(p []byte) (int, error)
	Close() error
}

// Factory builds a fresh Output for one enable cycle of the engine.
type Factory func(cfg Config) (Output, error)
