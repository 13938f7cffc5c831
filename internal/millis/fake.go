package millis

// FakeCounter is a test double that returns scripted tick values.
type FakeCounter struct {
	// Samples contains the tick values to return.
	// Each call to Read() consumes the next sample.
	Samples []uint64

	// OnExhausted, if set, is called once when the last sample is first returned.
	OnExhausted func()

	index     int
	exhausted bool
}

// NewFakeCounter creates a FakeCounter with the given samples.
func NewFakeCounter(samples []uint64) *FakeCounter {
	return &FakeCounter{Samples: samples}
}

// NewRampCounter returns a FakeCounter that counts from 0 to last inclusive, one tick per read.
func NewRampCounter(last uint64) *FakeCounter {
	samples := make([]uint64, 0, last+1)
	for i := uint64(0); i <= last; i++ {
		samples = append(samples, i)
	}
	return NewFakeCounter(samples)
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
// With no samples it always returns 0.
func (f *FakeCounter) Read() uint64 {
	if len(f.Samples) == 0 {
		f.exhaust()
		return 0
	}

	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	} else {
		f.exhaust()
	}
	return v
}

func (f *FakeCounter) exhaust() {
	if f.exhausted {
		return
	}
	f.exhausted = true
	if f.OnExhausted != nil {
		f.OnExhausted()
	}
}

// Reset rewinds the counter to the first sample.
func (f *FakeCounter) Reset() {
	f.index = 0
	f.exhausted = false
}
