package petal

import (
	"github.com/chewxy/math32"

	"petalflow/pkg/perr"
)

// epsilon bounds every division or logarithm in the engine.
const epsilon = 1e-15

// OptimizerKind selects one of the four supported update rules.
type OptimizerKind int

const (
	SGDMomentum OptimizerKind = iota
	RMSProp
	AdaGrad
	Adam
)

// Optimizer is a pure, stateless configuration record; all per-parameter
// state lives in the Weights it is applied to.
type Optimizer struct {
	Kind                   OptimizerKind
	LearningRate, Momentum float32
	Beta1, Beta2           float32
}

// Apply mutates w in place per the configured update rule, then zeros w's
// gradient accumulator. A non-trainable or nil Weights is a no-op.
func (o Optimizer) Apply(w *Weights) error {
	if w == nil || !w.Trainable {
		return nil
	}
	switch o.Kind {
	case SGDMomentum:
		for i := range w.W {
			w.V[i] = o.Momentum*w.V[i] - o.LearningRate*w.G[i]
			w.W[i] += w.V[i]
		}
	case RMSProp:
		for i := range w.W {
			w.V[i] = o.Beta1*w.V[i] + (1-o.Beta1)*w.G[i]*w.G[i]
			w.W[i] -= o.LearningRate * w.G[i] / (math32.Sqrt(w.V[i]) + epsilon)
		}
	case AdaGrad:
		for i := range w.W {
			w.V[i] += w.G[i] * w.G[i]
			w.W[i] -= o.LearningRate * w.G[i] / (math32.Sqrt(w.V[i]) + epsilon)
		}
	case Adam:
		t := float32(w.Step)
		biasCorr1 := 1 - math32.Pow(o.Beta1, t+1)
		biasCorr2 := 1 - math32.Pow(o.Beta2, t+1)
		for i := range w.W {
			w.M[i] = o.Beta1*w.M[i] + (1-o.Beta1)*w.G[i]
			w.V[i] = o.Beta2*w.V[i] + (1-o.Beta2)*w.G[i]*w.G[i]
			mHat := w.M[i] / biasCorr1
			vHat := w.V[i] / biasCorr2
			w.W[i] -= o.LearningRate * mHat / (math32.Sqrt(vHat) + epsilon)
		}
		w.Step++
	default:
		return perr.New(perr.WrongOptimizer, "optimizer.Apply")
	}
	w.ZeroGrad()
	return nil
}
