// Package petal implements the layer ("petal") contract: weight
// initialization and optimizer updates, activations, losses, dropout, and
// the five layer kernels.
package petal

import (
	"github.com/chewxy/math32"

	"petalflow/pkg/perr"
	"petalflow/pkg/prng"
)

// Initializer selects one of the seven weight-initialization policies.
type Initializer int

const (
	Constant Initializer = iota
	Uniform
	Gaussian
	XavierUniform
	XavierGaussian
	KaimingUniform
	KaimingGaussian
)

// Weights owns a dense layer's parameter values W, gradient accumulator G,
// and the two optimizer state buffers M (first moment) and V (second
// moment / velocity / running squared), all of equal length, plus the
// learning-step counter Adam's bias correction needs. NewWeights creates
// the four tensors together for a trainable record; a non-trainable record
// has only W.
type Weights struct {
	Trainable bool
	Init      Initializer
	W, G, M, V []float32
	Step      int64
}

// NewWeights allocates and initializes a Weights record of the given length. total
// is the fan count N used by the Xavier/Kaiming scale formulas (the total
// parameter count of the owning layer, not necessarily equal to length when
// length is a bias vector sized to fan-out alone).
func NewWeights(trainable bool, init Initializer, length, total int, center, deviation float32, rng *prng.PRNG) (*Weights, error) {
	if length <= 0 {
		return nil, perr.New(perr.ShapeZero, "weights.NewWeights")
	}
	w := &Weights{
		Trainable: trainable,
		Init:      init,
		W:         make([]float32, length),
	}
	if trainable {
		w.G = make([]float32, length)
		w.M = make([]float32, length)
		w.V = make([]float32, length)
	}
	if err := initialize(w.W, init, total, center, deviation, rng); err != nil {
		return nil, err
	}
	return w, nil
}

// InitOrCheck validates that w (if non-nil) has the expected length. A nil
// Weights is valid (the owning layer treats an absent weights tensor as
// "sum the inputs" or "no bias").
func InitOrCheck(w *Weights, expectedLength int) error {
	if w == nil {
		return nil
	}
	if len(w.W) != expectedLength {
		return perr.New(perr.ShapesNotEqual, "weights.InitOrCheck")
	}
	return nil
}

// ZeroGrad zeroes the gradient accumulator.
func (w *Weights) ZeroGrad() {
	if !w.Trainable {
		return
	}
	for i := range w.G {
		w.G[i] = 0
	}
}

func initialize(dst []float32, init Initializer, total int, center, deviation float32, rng *prng.PRNG) error {
	n := float32(total)
	if n <= 0 {
		n = float32(len(dst))
	}
	switch init {
	case Constant:
		for i := range dst {
			dst[i] = center
		}
	case Uniform:
		for i := range dst {
			dst[i] = center + deviation*(2*rng.DrawFloat()-1)
		}
	case Gaussian:
		fillGaussian(dst, center, deviation, rng)
	case XavierUniform:
		limit := math32.Sqrt(6 / n)
		for i := range dst {
			dst[i] = center + limit*(2*rng.DrawFloat()-1)
		}
	case XavierGaussian:
		limit := math32.Sqrt(2 / n)
		scratch := make([]float32, len(dst))
		fillGaussian(scratch, 0, 1, rng)
		for i := range dst {
			dst[i] = center + limit*scratch[i]
		}
	case KaimingUniform:
		// Collapsed with Xavier-Gaussian's limit per the source's own
		// behavior (spec §4.4 open question): preserved here for binary
		// reproducibility rather than corrected to a fan-in-based scale.
		limit := math32.Sqrt(2 / n)
		for i := range dst {
			dst[i] = center + limit*(2*rng.DrawFloat()-1)
		}
	case KaimingGaussian:
		limit := math32.Sqrt(2 / n)
		scratch := make([]float32, len(dst))
		fillGaussian(scratch, 0, 1, rng)
		for i := range dst {
			dst[i] = center + limit*scratch[i]
		}
	default:
		return perr.New(perr.WrongWeightsInit, "weights.initialize")
	}
	return nil
}

// fillGaussian fills dst with N(mean, stddev^2) samples via Marsaglia polar:
// rejection-sample a point in the unit disk, then scale both coordinates by
// the same factor to get two independent standard normals per accepted
// iteration.
func fillGaussian(dst []float32, mean, stddev float32, rng *prng.PRNG) {
	i := 0
	for i < len(dst) {
		u := 2*rng.DrawFloat() - 1
		v := 2*rng.DrawFloat() - 1
		s := u*u + v*v
		if s >= 1 || s == 0 {
			continue
		}
		mul := math32.Sqrt(-2 * math32.Log(s) / s)
		dst[i] = mean + stddev*u*mul
		i++
		if i < len(dst) {
			dst[i] = mean + stddev*v*mul
			i++
		}
	}
}
