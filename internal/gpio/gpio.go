// Package gpio drives the output pin with hardware abstraction.
// Real implementations use the Linux GPIO character device or memory-mapped
// BCM2835 registers. The fake implementation allows testing without hardware.
package gpio

// Writer drives a single output pin.
type Writer interface {
	// Toggle flips the pin level and returns the new level (true = high).
	Toggle() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendGPIOCDev = "gpiocdev"
	BackendRPIO     = "rpio"
)

// Defaults
const (
	DefaultPin  = 17 // BCM numbering
	DefaultChip = "gpiochip0"
)

// Consumer is the label attached to requested lines.
const Consumer = "blinker"
