package grad

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Accumulator is the shared reduction buffer. It is owned by the coordinator
// and must only be touched inside the window between the last worker's
// phase-A arrival and the phase-B release; the pool's barrier protocol is
// what enforces that, not the accumulator itself.
type Accumulator struct {
	buf          []float64
	contributors int
}

// NewAccumulator allocates a reduction buffer of the given size, typically
// the model parameter count.
func NewAccumulator(size int) (*Accumulator, error) {
	if size <= 0 {
		return nil, fmt.Errorf("accumulator size must be positive, got %d", size)
	}
	return &Accumulator{buf: make([]float64, size)}, nil
}

// Size returns the buffer length.
func (a *Accumulator) Size() int {
	return len(a.buf)
}

// Reset zeroes the buffer and forgets all contributors. Called at the start
// of every reduction.
func (a *Accumulator) Reset() {
	for i := range a.buf {
		a.buf[i] = 0
	}
	a.contributors = 0
}

// Add sums a worker's gradient buffer element-wise into the accumulator and
// counts it as a contributor.
func (a *Accumulator) Add(contribution []float64) error {
	if len(contribution) != len(a.buf) {
		return fmt.Errorf("gradient size mismatch: accumulator %d, contribution %d", len(a.buf), len(contribution))
	}

	floats.Add(a.buf, contribution)
	a.contributors++
	return nil
}

// Contributors returns how many buffers were summed since the last Reset.
func (a *Accumulator) Contributors() int {
	return a.contributors
}

// Average divides the accumulated sum element-wise by the contributor count.
// With zero contributors the buffer is already zero and is left as is, so a
// round where every worker was excluded produces a zero gradient rather than
// a division by zero.
func (a *Accumulator) Average() {
	if a.contributors <= 1 {
		return
	}
	floats.Scale(1/float64(a.contributors), a.buf)
}

// Gradient exposes the reduced buffer. The caller must not retain it across
// rounds; the next Reset reuses the same backing array.
func (a *Accumulator) Gradient() []float64 {
	return a.buf
}

// Norm returns the current L2 norm of the accumulated gradient.
func (a *Accumulator) Norm() float64 {
	return floats.Norm(a.buf, 2)
}
