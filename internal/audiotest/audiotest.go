// Package audiotest builds small WAV byte streams for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
)

// BuildWAV assembles a minimal well-formed 16-bit PCM container around the
// given interleaved samples.
func BuildWAV(sampleRate uint32, channels uint16, samples []int16) []byte {
	payload := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(s))
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(payload)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, channels)
	binary.Write(&buf, binary.LittleEndian, sampleRate)
	binary.Write(&buf, binary.LittleEndian, sampleRate*uint32(channels)*2)
	binary.Write(&buf, binary.LittleEndian, channels*2)
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)

	return buf.Bytes()
}

// Ramp returns n samples climbing from zero in fixed steps, handy for
// asserting byte-exact output.
func Ramp(n int, step int16) []int16 {
	out := make([]int16, n)
	v := int16(0)
	for i := range out {
		out[i] = v
		v += step
	}
	return out
}
