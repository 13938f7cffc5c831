package gpio

// FakeWriter is a test double that records pin toggles.
type FakeWriter struct {
	// Level is the current pin level (true = high). Starts low.
	Level bool

	// Levels contains the level after each successful toggle.
	Levels []bool

	// ToggleError, if set, will be returned by Toggle() and the level is left unchanged.
	ToggleError error

	// Closed tracks if Close was called.
	Closed bool

	// OnToggle, if set, is called after each successful toggle with the new level.
	OnToggle func(level bool)
}

// NewFakeWriter creates a FakeWriter with the pin low.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{}
}

// Toggle flips the recorded level.
func (f *FakeWriter) Toggle() (bool, error) {
	if f.ToggleError != nil {
		return f.Level, f.ToggleError
	}
	f.Level = !f.Level
	f.Levels = append(f.Levels, f.Level)
	if f.OnToggle != nil {
		f.OnToggle(f.Level)
	}
	return f.Level, nil
}

// Toggles returns the number of successful toggles.
func (f *FakeWriter) Toggles() int {
	return len(f.Levels)
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}

// Reset returns the writer to its initial low state.
func (f *FakeWriter) Reset() {
	f.Level = false
	f.Levels = nil
	f.Closed = false
	f.ToggleError = nil
}
