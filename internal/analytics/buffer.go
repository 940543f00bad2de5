package analytics

// RollingBuffer is a bounded, order-preserving history of samples.
// When an append would exceed the capacity the oldest samples are
// evicted first, so the buffer always holds the most recent
// min(TotalSeen, Capacity) samples in arrival order.
//
// RollingBuffer is not safe for concurrent use. Engine serializes access.
type RollingBuffer struct {
	values    []float64
	capacity  int
	totalSeen int
}

// NewRollingBuffer creates an empty buffer. Capacity below 1 is treated as 1.
func NewRollingBuffer(capacity int) *RollingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RollingBuffer{
		values:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// Append adds samples in order, evicting the oldest on overflow.
// An empty call is a no-op.
func (b *RollingBuffer) Append(samples ...float64) {
	if len(samples) == 0 {
		return
	}
	b.totalSeen += len(samples)

	// A batch larger than the whole window only contributes its tail
	if len(samples) >= b.capacity {
		b.values = append(b.values[:0], samples[len(samples)-b.capacity:]...)
		return
	}

	if overflow := len(b.values) + len(samples) - b.capacity; overflow > 0 {
		n := copy(b.values, b.values[overflow:])
		b.values = b.values[:n]
	}
	b.values = append(b.values, samples...)
}

// Len returns the number of buffered samples.
func (b *RollingBuffer) Len() int {
	return len(b.values)
}

// Capacity returns the maximum number of retained samples.
func (b *RollingBuffer) Capacity() int {
	return b.capacity
}

// TotalSeen returns the number of samples ever appended, evicted or not.
func (b *RollingBuffer) TotalSeen() int {
	return b.totalSeen
}

// Values returns a copy of the buffered samples, oldest first.
func (b *RollingBuffer) Values() []float64 {
	out := make([]float64, len(b.values))
	copy(out, b.values)
	return out
}

// Tail returns a copy of the last n samples. n is clamped to Len.
func (b *RollingBuffer) Tail(n int) []float64 {
	if n > len(b.values) {
		n = len(b.values)
	}
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	copy(out, b.values[len(b.values)-n:])
	return out
}
