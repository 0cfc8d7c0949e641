package wav

import "errors"

// Parse failures, from most to least common. Each one aborts only the
// request that carried the stream; callers surface them through the
// playback error callback and move on.
var (
	// ErrTruncated is returned when the stream ends inside one of the
	// three fixed headers.
	ErrTruncated = errors.New("truncated read inside WAV header")

	// ErrBadContainer is returned when the outer RIFF/WAVE tags do not match.
	ErrBadContainer = errors.New("not a RIFF/WAVE container")

	// ErrBadFormatChunk is returned when the fmt sub-chunk is missing or
	// its declared size is not the 16 bytes of plain PCM.
	ErrBadFormatChunk = errors.New("malformed fmt sub-chunk")

	// ErrUnsupportedFormat is returned for any stream that is not 16-bit
	// PCM in the exact channel count and sample rate the hardware was
	// configured with. No resampling or channel mixing is performed.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrNoDataChunk is returned when the chunk scan exhausts the stream
	// without finding a data chunk. A corrupt chunk size that runs past
	// end-of-stream lands here as well.
	ErrNoDataChunk = errors.New("data chunk not found")
)
