package petal

import (
	"github.com/chewxy/math32"

	"petalflow/pkg/bitmask"
	"petalflow/pkg/perr"
)

// ActivationKind selects one of the nine supported activation functions.
type ActivationKind int

const (
	Linear ActivationKind = iota
	LeakyReLU
	ELU
	Softsign
	Sigmoid
	HardSigmoid
	Swish
	Softmax
	Tanh
)

// Activation is a tagged record holding the activation kind, its per-kind
// scalars, and a derivative-scratch buffer whose length equals the owning
// layer's output length (or length² for Softmax). The scratch buffer is
// allocated eagerly by the owning layer at construction (see allocate), not
// lazily on first forward, so backward never observes a nil buffer.
type Activation struct {
	Kind ActivationKind

	LinearAlpha, LinearC float32
	Leak                 float32
	ELUAlpha             float32
	Beta                 float32

	scratch []float32
	primed  bool
}

// NewActivation constructs an Activation. Scalars not used by kind are ignored.
func NewActivation(kind ActivationKind, alpha, c, leak, eluAlpha, beta float32) *Activation {
	return &Activation{
		Kind:        kind,
		LinearAlpha: alpha,
		LinearC:     c,
		Leak:        leak,
		ELUAlpha:    eluAlpha,
		Beta:        beta,
	}
}

// allocate eagerly creates the scratch buffer. length is the owning layer's
// output length; the owner passes length*length when Kind is Softmax.
func (a *Activation) allocate(scratchLen int) {
	a.scratch = make([]float32, scratchLen)
	a.primed = false
}

func dropped(mask *bitmask.BitMask, i int) bool {
	if mask == nil {
		return false
	}
	b, _ := mask.Get(i)
	return b
}

// Forward activates buf[0:length] in place, saving whatever state the
// backward pass for Kind needs into the scratch buffer. Indices with a set
// dropout mask bit are skipped and keep their current value (the owning
// layer has already zeroed them); only Softmax writes 0 to them.
func (a *Activation) Forward(buf []float32, length int, mask *bitmask.BitMask) error {
	switch a.Kind {
	case Linear:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			buf[i] = a.LinearAlpha*buf[i] + a.LinearC
		}
	case LeakyReLU:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			x := buf[i]
			a.scratch[i] = x
			if x < 0 {
				buf[i] = a.Leak * x
			}
		}
	case ELU:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			x := buf[i]
			a.scratch[i] = x
			if x < 0 {
				buf[i] = a.ELUAlpha * (math32.Exp(x) - 1)
			}
		}
	case Softsign:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			x := buf[i]
			denom := math32.Abs(x) + 1
			a.scratch[i] = denom
			buf[i] = x / denom
		}
	case Sigmoid:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			buf[i] = sigmoid(buf[i])
		}
	case HardSigmoid:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			x := buf[i]
			a.scratch[i] = x
			switch {
			case x < -2.5:
				buf[i] = 0
			case x > 2.5:
				buf[i] = 1
			default:
				buf[i] = 0.2*x + 0.5
			}
		}
	case Swish:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			x := buf[i]
			oneplus := 1 + math32.Exp(-x)
			a.scratch[i] = oneplus
			sig := 1 / oneplus
			buf[i] = a.Beta * x * sig
		}
	case Softmax:
		a.forwardSoftmax(buf, length, mask)
	case Tanh:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			buf[i] = math32.Tanh(buf[i])
		}
	default:
		return perr.New(perr.WrongActivation, "activation.Forward")
	}
	a.primed = true
	return nil
}

func sigmoid(x float32) float32 {
	if x > 10 {
		x = 10
	} else if x < -10 {
		x = -10
	}
	return 1 / (1 + math32.Exp(-x))
}

func (a *Activation) forwardSoftmax(buf []float32, length int, mask *bitmask.BitMask) {
	max := float32(math32.Inf(-1))
	any := false
	for i := 0; i < length; i++ {
		if dropped(mask, i) {
			continue
		}
		if !any || buf[i] > max {
			max = buf[i]
			any = true
		}
	}
	if !any {
		for i := 0; i < length; i++ {
			buf[i] = 0
		}
		return
	}
	var sum float32
	for i := 0; i < length; i++ {
		if dropped(mask, i) {
			buf[i] = 0
			continue
		}
		e := math32.Exp(buf[i] - max)
		buf[i] = e
		sum += e
	}
	for i := 0; i < length; i++ {
		if dropped(mask, i) {
			continue
		}
		buf[i] /= sum
		a.scratch[i] = buf[i]
	}
}

// Backward replaces buf[0:length] with ∂output/∂pre-activation (or, for
// Softmax, writes the full length×length Jacobian row-major into buf, which
// must then be at least length*length long). It is an error to call
// Backward before Forward has primed the scratch buffer.
func (a *Activation) Backward(buf []float32, length int, mask *bitmask.BitMask) error {
	if !a.primed {
		return perr.New(perr.ActivationNoTemp, "activation.Backward")
	}
	switch a.Kind {
	case Linear:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			buf[i] = a.LinearAlpha
		}
	case LeakyReLU:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			if a.scratch[i] >= 0 {
				buf[i] = 1
			} else {
				buf[i] = a.Leak
			}
		}
	case ELU:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			if a.scratch[i] >= 0 {
				buf[i] = 1
			} else {
				buf[i] = buf[i] + a.ELUAlpha
			}
		}
	case Softsign:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			d := a.scratch[i]
			buf[i] = 1 / (d * d)
		}
	case Sigmoid:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			f := buf[i]
			buf[i] = f * (1 - f)
		}
	case HardSigmoid:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			x := a.scratch[i]
			if x < -2.5 || x > 2.5 {
				buf[i] = 0
			} else {
				buf[i] = 0.2
			}
		}
	case Swish:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			f := buf[i]
			sig := 1 / a.scratch[i]
			buf[i] = f + sig*(a.Beta-f)
		}
	case Softmax:
		a.backwardSoftmax(buf, length, mask)
	case Tanh:
		for i := 0; i < length; i++ {
			if dropped(mask, i) {
				continue
			}
			f := buf[i]
			buf[i] = 1 - f*f
		}
	default:
		return perr.New(perr.WrongActivation, "activation.Backward")
	}
	return nil
}

// backwardSoftmax writes J[i,j] = f[i]*(delta_ij - f[j]) row-major into
// buf[0:length*length], reading the saved probabilities from scratch.
func (a *Activation) backwardSoftmax(buf []float32, length int, mask *bitmask.BitMask) {
	for i := 0; i < length; i++ {
		fi := a.scratch[i]
		row := i * length
		for j := 0; j < length; j++ {
			if dropped(mask, i) || dropped(mask, j) {
				buf[row+j] = 0
				continue
			}
			delta := float32(0)
			if i == j {
				delta = 1
			}
			buf[row+j] = fi * (delta - a.scratch[j])
		}
	}
}
