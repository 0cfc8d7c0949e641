// Package wav validates the fixed-layout chunk headers of a PCM WAV byte
// stream and leaves the stream cursor at the first raw sample byte.
//
// The parser is deliberately strict: the hardware output runs a single fixed
// format per device, so any stream whose fmt chunk disagrees with the
// configured format is rejected instead of converted.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
)

// Format describes the PCM layout of a stream, or the layout the hardware
// output was configured with.
type Format struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
}

// DataChunk is the result of a successful parse: the validated format plus
// the byte length of the PCM payload. A zero Size is valid and means the
// file finishes immediately.
type DataChunk struct {
	Format Format
	Size   uint32
}

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtChunkSizePCM = 16
	formatCodePCM   = 1
)

var (
	tagRIFF = [4]byte{'R', 'I', 'F', 'F'}
	tagWAVE = [4]byte{'W', 'A', 'V', 'E'}
	tagFmt  = [4]byte{'f', 'm', 't', ' '}
	tagData = [4]byte{'d', 'a', 't', 'a'}
)

// Parse reads and validates the container, fmt and data chunk headers from r,
// which must be positioned at offset 0. want is the configured hardware
// format; a stream that does not match it exactly is rejected with
// ErrUnsupportedFormat. On success the next read from r yields PCM sample
// bytes, of which exactly DataChunk.Size belong to the data chunk.
func Parse(r io.Reader, want Format) (*DataChunk, error) {
	var header [riffHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		slog.Debug("WAV header read failed", "error", err)
		return nil, fmt.Errorf("%w: container header: %v", ErrTruncated, err)
	}

	if [4]byte(header[0:4]) != tagRIFF || [4]byte(header[8:12]) != tagWAVE {
		// The sniff only sees 12 bytes, but that is enough for mimetype to
		// name the usual suspects (MP3, OGG, FLAC) in the error message.
		kind := mimetype.Detect(header[:])
		slog.Debug("bad container tags",
			"tag0", string(header[0:4]),
			"tag8", string(header[8:12]),
			"detected_type", kind.String())
		return nil, fmt.Errorf("%w (looks like %s)", ErrBadContainer, kind)
	}

	var fmtHeader [chunkHeaderSize]byte
	if _, err := io.ReadFull(r, fmtHeader[:]); err != nil {
		return nil, fmt.Errorf("%w: fmt chunk header: %v", ErrTruncated, err)
	}
	fmtSize := binary.LittleEndian.Uint32(fmtHeader[4:8])
	if [4]byte(fmtHeader[0:4]) != tagFmt {
		return nil, fmt.Errorf("%w: expected fmt tag, got %q", ErrBadFormatChunk, fmtHeader[0:4])
	}
	if fmtSize != fmtChunkSizePCM {
		return nil, fmt.Errorf("%w: declared size %d, want %d", ErrBadFormatChunk, fmtSize, fmtChunkSizePCM)
	}

	var fmtBody [fmtChunkSizePCM]byte
	if _, err := io.ReadFull(r, fmtBody[:]); err != nil {
		return nil, fmt.Errorf("%w: fmt chunk body: %v", ErrTruncated, err)
	}

	got := Format{
		SampleRate:    binary.LittleEndian.Uint32(fmtBody[4:8]),
		Channels:      binary.LittleEndian.Uint16(fmtBody[2:4]),
		BitsPerSample: binary.LittleEndian.Uint16(fmtBody[14:16]),
	}
	formatCode := binary.LittleEndian.Uint16(fmtBody[0:2])

	slog.Debug("WAV fmt chunk parsed",
		"format_code", formatCode,
		"sample_rate", got.SampleRate,
		"channels", got.Channels,
		"bits_per_sample", got.BitsPerSample)

	if formatCode != formatCodePCM {
		return nil, fmt.Errorf("%w: format code %d, only PCM (1) is supported", ErrUnsupportedFormat, formatCode)
	}
	if got.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: %d bits per sample, only 16 is supported", ErrUnsupportedFormat, got.BitsPerSample)
	}
	if got.Channels != want.Channels || got.SampleRate != want.SampleRate {
		return nil, fmt.Errorf("%w: stream is %d ch @ %d Hz, hardware runs %d ch @ %d Hz",
			ErrUnsupportedFormat, got.Channels, got.SampleRate, want.Channels, want.SampleRate)
	}

	data, err := scanForDataChunk(r)
	if err != nil {
		return nil, err
	}

	slog.Debug("WAV parse complete", "data_bytes", data)
	return &DataChunk{Format: got, Size: data}, nil
}

// scanForDataChunk walks sub-chunk headers after the fmt chunk, skipping
// non-data chunks by their declared size, until the data chunk appears or
// the stream runs out. Running out mid-skip means a corrupt size field;
// both cases report ErrNoDataChunk rather than spinning.
func scanForDataChunk(r io.Reader) (uint32, error) {
	var chunk [chunkHeaderSize]byte
	for {
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, ErrNoDataChunk
			}
			return 0, fmt.Errorf("%w: chunk scan: %v", ErrTruncated, err)
		}
		size := binary.LittleEndian.Uint32(chunk[4:8])
		if [4]byte(chunk[0:4]) == tagData {
			return size, nil
		}

		slog.Debug("skipping sub-chunk", "tag", string(chunk[0:4]), "size", size)
		n, err := io.CopyN(io.Discard, r, int64(size))
		if err != nil || n < int64(size) {
			return 0, fmt.Errorf("%w: sub-chunk %q declared %d bytes, stream ended after %d",
				ErrNoDataChunk, chunk[0:4], size, n)
		}
	}
}
