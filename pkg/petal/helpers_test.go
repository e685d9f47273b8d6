package petal

import "petalflow/pkg/bitmask"

// mustMask builds a BitMask of the given length with bits set at the listed
// indices, for use by tests that need a dropout mask without running actual
// sampling.
func mustMask(length int, set []int) (*bitmask.BitMask, error) {
	m, err := bitmask.New(length)
	if err != nil {
		return nil, err
	}
	for _, i := range set {
		if err := m.Set(i); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// weightsFromSlice builds a non-trainable Weights record directly from
// literal values, for tests that need exact, hand-picked parameters (e.g.
// an identity matrix) rather than a randomly initialized one.
func weightsFromSlice(values []float32) *Weights {
	w := make([]float32, len(values))
	copy(w, values)
	return &Weights{W: w}
}
