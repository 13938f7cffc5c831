//go:build linux

package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIOWriter drives a pin through memory-mapped BCM2835 registers.
// Requires /dev/gpiomem or root.
type RPIOWriter struct {
	pin rpio.Pin
}

// NewRPIOWriter maps the GPIO registers and sets pin as an output, initially low.
func NewRPIOWriter(pin int) (*RPIOWriter, error) {
	if pin < 0 || pin > 53 {
		return nil, fmt.Errorf("pin %d out of range", pin)
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("map gpio registers: %w", err)
	}

	p := rpio.Pin(pin)
	p.Output()
	p.Low()

	return &RPIOWriter{pin: p}, nil
}

// Toggle flips the pin and reads back the new level.
func (w *RPIOWriter) Toggle() (bool, error) {
	w.pin.Toggle()
	return w.pin.Read() == rpio.High, nil
}

// Close drives the pin low, returns it to input and unmaps the registers.
func (w *RPIOWriter) Close() error {
	w.pin.Low()
	w.pin.Input()
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("unmap gpio registers: %w", err)
	}
	return nil
}
