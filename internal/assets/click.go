// Package assets materializes the built-in click sound into the flash
// filesystem. The asset is synthesized deterministically from the configured
// hardware format, so the ensure step can tell a complete asset from a stale
// or truncated one by byte length alone.
package assets

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/spf13/afero"

	"chime.click/internal/wav"
)

// ClickPath is the flash path and the callback identifier of the click asset.
const ClickPath = "/assets/click.wav"

const (
	clickDurationMs = 20
	clickFreqHz     = 2000.0
	clickAmplitude  = 9000.0
	clickDecayMs    = 5.0

	// Canonical PCM WAV header: RIFF(12) + fmt(24) + data header(8).
	wavHeaderSize = 44
)

// frames returns the click length in sample frames for the given format.
func frames(format wav.Format) int {
	return int(format.SampleRate) * clickDurationMs / 1000
}

// ExpectedSize returns the on-flash byte length of a complete click asset.
func ExpectedSize(format wav.Format) int64 {
	return wavHeaderSize + int64(frames(format))*int64(format.Channels)*2
}

// Ensure writes the click asset to path unless a complete one is already
// there. The existence and byte-length check makes repeated init calls
// idempotent; flash writes are not free.
func Ensure(fsys afero.Fs, path string, format wav.Format) error {
	want := ExpectedSize(format)

	if info, err := fsys.Stat(path); err == nil {
		if info.Size() == want {
			slog.Debug("click asset already present", "path", path, "size", info.Size())
			return nil
		}
		slog.Info("click asset has wrong size, rewriting",
			"path", path, "size", info.Size(), "want", want)
	}

	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating asset directory: %w", err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("creating click asset: %w", err)
	}

	enc := gowav.NewEncoder(f, int(format.SampleRate), 16, int(format.Channels), 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(format.Channels),
			SampleRate:  int(format.SampleRate),
		},
		Data:           render(format),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encoding click asset: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalizing click asset: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing click asset: %w", err)
	}

	slog.Info("click asset written", "path", path, "bytes", want)
	return nil
}

// render synthesizes the click: a short sine burst with an exponential
// decay, duplicated across channels.
func render(format wav.Format) []int {
	n := frames(format)
	rate := float64(format.SampleRate)
	out := make([]int, 0, n*int(format.Channels))

	for i := 0; i < n; i++ {
		t := float64(i) / rate
		envelope := math.Exp(-t * 1000.0 / clickDecayMs)
		sample := int(clickAmplitude * envelope * math.Sin(2*math.Pi*clickFreqHz*t))
		for ch := 0; ch < int(format.Channels); ch++ {
			out = append(out, sample)
		}
	}
	return out
}
