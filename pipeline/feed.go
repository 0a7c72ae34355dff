package pipeline

import (
	"fmt"
	"math"
	"sync"
)

// Feed holds the most recent input vector. Writers (the websocket API)
// replace it whenever they like; the loop copies it once per tick.
type Feed struct {
	mu     sync.Mutex
	vector []float64
}

// NewFeed returns a feed of n zero values
func NewFeed(n int) *Feed {
	return &Feed{vector: make([]float64, n)}
}

// Len is the vector length the feed accepts
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vector)
}

// Set replaces the vector. The length must match and every value must be
// finite; range checking is left to the devices.
func (f *Feed) Set(v []float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(v) != len(f.vector) {
		return fmt.Errorf("vector must have %d elements, got %d", len(f.vector), len(v))
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("vector element %d is not finite", i)
		}
	}
	copy(f.vector, v)
	return nil
}

// Snapshot returns a copy of the current vector
func (f *Feed) Snapshot() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.vector...)
}
