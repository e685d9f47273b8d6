package petal

import (
	"github.com/chewxy/math32"

	"petalflow/pkg/perr"
)

// LossKind selects one of the six supported loss functions.
type LossKind int

const (
	MSE LossKind = iota
	MSLE
	RMSLE
	MAE
	BCE
	CCE
)

// Loss is a tagged record holding the loss kind, the loss/gradient buffer
// (slot 0 holds the scalar loss after Forward; the whole buffer holds
// ∂L/∂ŷ after Backward), and two scratch buffers of the same length that
// cache forward's predicted/true vectors for backward's use. All three
// buffers are allocated by Prepare, which Flower.Train calls before its
// first sample.
type Loss struct {
	Kind LossKind

	buf       []float32
	predicted []float32
	truth     []float32
	lastLoss  float32
	primed    bool
}

// NewLoss constructs a Loss. The buffers are allocated by Prepare once the
// owning Flower knows the final layer's output length.
func NewLoss(kind LossKind) *Loss {
	return &Loss{Kind: kind}
}

// Prepare eagerly allocates the loss/gradient buffer and the two scratch
// buffers to length, the final layer's output length. Flower.Train calls
// this once per training run, before the first Forward, per §9's
// eager-allocation guidance.
func (l *Loss) Prepare(length int) {
	l.allocate(length)
}

func (l *Loss) allocate(length int) {
	l.buf = make([]float32, length)
	l.predicted = make([]float32, length)
	l.truth = make([]float32, length)
	l.primed = false
}

// Forward computes the scalar loss over predicted vs. truth (both length
// L), writes it to loss[0], and stashes both vectors for Backward. It
// returns the scalar loss directly for convenience.
func (l *Loss) Forward(predicted, truth []float32, length int) (float32, error) {
	copy(l.predicted[:length], predicted[:length])
	copy(l.truth[:length], truth[:length])

	var loss float32
	switch l.Kind {
	case MSE:
		var sum float32
		for i := 0; i < length; i++ {
			d := truth[i] - predicted[i]
			sum += d * d
		}
		loss = sum / float32(length)
	case MSLE:
		loss = msle(predicted, truth, length)
	case RMSLE:
		loss = math32.Sqrt(msle(predicted, truth, length))
	case MAE:
		var sum float32
		for i := 0; i < length; i++ {
			sum += math32.Abs(truth[i] - predicted[i])
		}
		loss = sum / float32(length)
	case BCE:
		var sum float32
		for i := 0; i < length; i++ {
			y := truth[i]
			yhat := clamp01(predicted[i])
			sum += y*math32.Log(yhat+epsilon) + (1-y)*math32.Log(1-yhat+epsilon)
		}
		loss = -sum / float32(length)
	case CCE:
		var sum float32
		for i := 0; i < length; i++ {
			sum += truth[i] * math32.Log(predicted[i]+epsilon)
		}
		loss = -sum
	default:
		return 0, perr.New(perr.WrongLossKind, "loss.Forward")
	}

	l.buf[0] = loss
	l.lastLoss = loss
	l.primed = true
	return loss, nil
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func msle(predicted, truth []float32, length int) float32 {
	var sum float32
	for i := 0; i < length; i++ {
		d := math32.Log(truth[i]+1+epsilon) - math32.Log(predicted[i]+1+epsilon)
		sum += d * d
	}
	return sum / float32(length)
}

// Backward overwrites the entire loss buffer with ∂L/∂ŷᵢ, using only length
// and the state Forward stashed.
func (l *Loss) Backward(length int) error {
	if !l.primed {
		return perr.New(perr.LossNoTemp, "loss.Backward")
	}
	n := float32(length)
	switch l.Kind {
	case MSE:
		for i := 0; i < length; i++ {
			l.buf[i] = -2 * (l.truth[i] - l.predicted[i]) / n
		}
	case MSLE:
		for i := 0; i < length; i++ {
			l.buf[i] = msleGrad(l.predicted[i], l.truth[i], n)
		}
	case RMSLE:
		denom := 2*l.lastLoss + epsilon
		for i := 0; i < length; i++ {
			l.buf[i] = msleGrad(l.predicted[i], l.truth[i], n) / denom
		}
	case MAE:
		for i := 0; i < length; i++ {
			d := l.truth[i] - l.predicted[i]
			l.buf[i] = -d / (n*math32.Abs(d) + epsilon)
		}
	case BCE:
		for i := 0; i < length; i++ {
			yhat := l.predicted[i]
			y := l.truth[i]
			l.buf[i] = (yhat - y) / (n*(yhat-yhat*yhat) + epsilon)
		}
	case CCE:
		for i := 0; i < length; i++ {
			l.buf[i] = -l.truth[i] / (l.predicted[i] + epsilon)
		}
	default:
		return perr.New(perr.WrongLossKind, "loss.Backward")
	}
	return nil
}

func msleGrad(predicted, truth, n float32) float32 {
	term := math32.Log(truth+1+epsilon) - math32.Log(predicted+1+epsilon)
	return -2 / n * term / (predicted + 1 + epsilon)
}

// Value returns the scalar loss computed by the last Forward call.
func (l *Loss) Value() float32 { return l.buf[0] }

// Gradient returns the ∂L/∂ŷ buffer computed by the last Backward call.
func (l *Loss) Gradient() []float32 { return l.buf }
