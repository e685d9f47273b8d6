// Package labels converts between dense prediction/target vectors and the
// sparse label representations ("class index" or "list of class indices")
// used by classification datasets.
package labels

// Argmax returns the index of the largest element of v. It returns -1 for
// an empty v.
func Argmax(v []float32) int {
	if len(v) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Threshold returns the indices of every element of v at or above t.
func Threshold(v []float32, t float32) []int {
	var idx []int
	for i, x := range v {
		if x >= t {
			idx = append(idx, i)
		}
	}
	return idx
}

// OneHot returns a dense vector of the given length with a 1 at index and
// 0 elsewhere.
func OneHot(index, length int) []float32 {
	v := make([]float32, length)
	if index >= 0 && index < length {
		v[index] = 1
	}
	return v
}

// MultiHot returns a dense vector of the given length with a 1 at every
// index in indices and 0 elsewhere.
func MultiHot(indices []int, length int) []float32 {
	v := make([]float32, length)
	for _, i := range indices {
		if i >= 0 && i < length {
			v[i] = 1
		}
	}
	return v
}
