//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// LineWriter is not available on non-Linux platforms.
type LineWriter struct{}

// NewLineWriter returns an error on non-Linux platforms.
func NewLineWriter(chipName string, pin int) (*LineWriter, error) {
	return nil, errUnsupported
}

// Toggle is not implemented on non-Linux platforms.
func (w *LineWriter) Toggle() (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (w *LineWriter) Close() error {
	return nil
}

// RPIOWriter is not available on non-Linux platforms.
type RPIOWriter struct{}

// NewRPIOWriter returns an error on non-Linux platforms.
func NewRPIOWriter(pin int) (*RPIOWriter, error) {
	return nil, errUnsupported
}

// Toggle is not implemented on non-Linux platforms.
func (w *RPIOWriter) Toggle() (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (w *RPIOWriter) Close() error {
	return nil
}
