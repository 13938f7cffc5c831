package gpio

import "fmt"

// Open configures pin as an output driven low using the named backend.
// chip is only used by the gpiocdev backend.
func Open(backend, chip string, pin int) (Writer, error) {
	switch backend {
	case BackendGPIOCDev, "":
		w, err := NewLineWriter(chip, pin)
		if err != nil {
			return nil, err
		}
		return w, nil
	case BackendRPIO:
		w, err := NewRPIOWriter(pin)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unknown gpio backend %q", backend)
	}
}
