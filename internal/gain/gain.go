// Package gain scales blocks of signed 16-bit little-endian PCM in place.
package gain

import (
	"encoding/binary"
	"math"
)

// Apply multiplies every 16-bit sample in block by factor, saturating to the
// representable range instead of wrapping. The block is modified in place; a
// trailing odd byte is left untouched. Callers feed one fixed-size transfer
// buffer at a time, so a volume change lands within one buffer's latency.
func Apply(block []byte, factor float32) {
	if factor == 1.0 {
		return
	}
	for i := 0; i+1 < len(block); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(block[i:]))
		scaled := clamp(float32(sample) * factor)
		binary.LittleEndian.PutUint16(block[i:], uint16(scaled))
	}
}

func clamp(v float32) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
