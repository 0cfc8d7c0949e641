//go:build !cgo

package device

import "errors"

var errCGORequired = errors.New(`audio output requires a cgo-enabled build

Both real backends (miniaudio and oto) bind native audio APIs. Rebuild with
CGO_ENABLED=1 and a C compiler installed, or inject your own Output factory.`)

// NewOto is unavailable without cgo; it reports a descriptive error so the
// engine surfaces the build problem instead of crashing.
func NewOto(cfg Config) (Output, error) {
	return nil, errCGORequired
}

// NewMalgo is unavailable without cgo.
func NewMalgo(cfg Config) (Output, error) {
	return nil, errCGORequired
}
