package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

var hwFormat = Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}

// buildWAV assembles a container with the given fmt parameters, any extra
// chunks, and a data payload.
func buildWAV(formatCode, channels, bits uint16, rate uint32, extra []byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // total size, ignored by parser
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, formatCode)
	binary.Write(&buf, binary.LittleEndian, channels)
	binary.Write(&buf, binary.LittleEndian, rate)
	binary.Write(&buf, binary.LittleEndian, rate*uint32(channels)*uint32(bits)/8) // byte rate
	binary.Write(&buf, binary.LittleEndian, channels*bits/8)                      // block align
	binary.Write(&buf, binary.LittleEndian, bits)

	buf.Write(extra)

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)

	return buf.Bytes()
}

func TestParseWellFormed(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	r := bytes.NewReader(buildWAV(1, 2, 16, 44100, nil, payload))

	dc, err := Parse(r, hwFormat)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if dc.Size != uint32(len(payload)) {
		t.Errorf("data size = %d, want %d", dc.Size, len(payload))
	}
	if dc.Format != hwFormat {
		t.Errorf("format = %+v, want %+v", dc.Format, hwFormat)
	}

	// The cursor must sit exactly at the first payload byte.
	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading payload: %v", err)
	}
	if !bytes.Equal(rest, payload) {
		t.Errorf("payload after parse = %v, want %v", rest, payload)
	}
}

func TestParseSkipsUnknownChunks(t *testing.T) {
	var extra bytes.Buffer
	extra.WriteString("LIST")
	binary.Write(&extra, binary.LittleEndian, uint32(6))
	extra.Write([]byte("INFOxy"))

	r := bytes.NewReader(buildWAV(1, 2, 16, 44100, extra.Bytes(), []byte{0xAA, 0xBB}))

	dc, err := Parse(r, hwFormat)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if dc.Size != 2 {
		t.Errorf("data size = %d, want 2", dc.Size)
	}
}

func TestParseZeroLengthDataChunk(t *testing.T) {
	r := bytes.NewReader(buildWAV(1, 2, 16, 44100, nil, nil))

	dc, err := Parse(r, hwFormat)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if dc.Size != 0 {
		t.Errorf("data size = %d, want 0", dc.Size)
	}
}

func TestParseFailures(t *testing.T) {
	full := buildWAV(1, 2, 16, 44100, nil, []byte{1, 2})

	badContainer := append([]byte(nil), full...)
	copy(badContainer[0:4], "JUNK")

	badWave := append([]byte(nil), full...)
	copy(badWave[8:12], "JUNK")

	badFmtTag := append([]byte(nil), full...)
	copy(badFmtTag[12:16], "LIST")

	badFmtSize := append([]byte(nil), full...)
	binary.LittleEndian.PutUint32(badFmtSize[16:20], 18)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"truncated 10 bytes", full[:10], ErrTruncated},
		{"truncated inside fmt body", full[:30], ErrTruncated},
		{"bad container tag", badContainer, ErrBadContainer},
		{"bad wave tag", badWave, ErrBadContainer},
		{"wrong fmt tag", badFmtTag, ErrBadFormatChunk},
		{"wrong fmt size", badFmtSize, ErrBadFormatChunk},
		{"non-pcm format code", buildWAV(3, 2, 16, 44100, nil, nil), ErrUnsupportedFormat},
		{"8 bit samples", buildWAV(1, 2, 8, 44100, nil, nil), ErrUnsupportedFormat},
		{"channel mismatch", buildWAV(1, 1, 16, 44100, nil, nil), ErrUnsupportedFormat},
		{"rate mismatch", buildWAV(1, 2, 16, 22050, nil, nil), ErrUnsupportedFormat},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(bytes.NewReader(tc.data), hwFormat)
			if !errors.Is(err, tc.want) {
				t.Errorf("Parse error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseMissingDataChunk(t *testing.T) {
	full := buildWAV(1, 2, 16, 44100, nil, []byte{1, 2})

	// Drop the data chunk entirely: stream ends right after the fmt body.
	noData := full[:36]

	// Corrupt size field on a non-data chunk so the skip runs past EOF.
	var extra bytes.Buffer
	extra.WriteString("LIST")
	binary.Write(&extra, binary.LittleEndian, uint32(0xFFFF))
	extra.WriteString("short")
	runaway := append(append([]byte(nil), full[:36]...), extra.Bytes()...)

	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"stream ends after fmt", noData},
		{"corrupt chunk size runs past EOF", runaway},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(bytes.NewReader(tc.data), hwFormat)
			if !errors.Is(err, ErrNoDataChunk) {
				t.Errorf("Parse error = %v, want ErrNoDataChunk", err)
			}
		})
	}
}

func TestParseNamesSniffedTypeOnBadContainer(t *testing.T) {
	// An MP3 frame header instead of RIFF tags.
	mp3ish := append([]byte{0xFF, 0xFB, 0x90, 0x00}, bytes.Repeat([]byte{0}, 32)...)

	_, err := Parse(bytes.NewReader(mp3ish), hwFormat)
	if !errors.Is(err, ErrBadContainer) {
		t.Fatalf("Parse error = %v, want ErrBadContainer", err)
	}
	if err.Error() == ErrBadContainer.Error() {
		t.Error("expected error message to include sniffed content type")
	}
}
