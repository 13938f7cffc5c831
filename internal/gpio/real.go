//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// LineWriter drives an output line through the Linux GPIO character device.
type LineWriter struct {
	chip  *gpiocdev.Chip
	line  *gpiocdev.Line
	pin   int
	level bool
}

// NewLineWriter requests pin on the named chip as an output, initially low.
func NewLineWriter(chipName string, pin int) (*LineWriter, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pin %d: %w", pin, err)
	}

	return &LineWriter{
		chip: chip,
		line: line,
		pin:  pin,
	}, nil
}

// Toggle flips the line. The level is tracked locally since the line is
// only ever driven by this writer.
func (w *LineWriter) Toggle() (bool, error) {
	next := !w.level
	v := 0
	if next {
		v = 1
	}
	if err := w.line.SetValue(v); err != nil {
		return w.level, fmt.Errorf("set pin %d: %w", w.pin, err)
	}
	w.level = next
	return next, nil
}

// Close releases GPIO resources.
// Reconfigures the line to input with pull-down (matching Pi boot defaults)
// before closing so the pin is not left driven.
func (w *LineWriter) Close() error {
	var errs []error

	if w.line != nil {
		if err := w.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", w.pin, err))
		}
		if err := w.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", w.pin, err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
