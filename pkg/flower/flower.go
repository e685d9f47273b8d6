// Package flower implements the linear stack of layers and the mini-batch
// training loop that chains forward, loss, backward, and optimizer-step
// together.
package flower

import (
	"time"

	"petalflow/pkg/labels"
	"petalflow/pkg/logger"
	"petalflow/pkg/perr"
	"petalflow/pkg/petal"
	"petalflow/pkg/prng"
)

// Flower is an ordered sequence of petals plus a lazily-prepared Loss
// record. The i-th petal's output length must equal the (i+1)-th's input
// length; New rejects a stack that violates this.
type Flower struct {
	Petals []*petal.Petal
	Loss   *petal.Loss
}

// New validates and wraps petals into a Flower.
func New(petals []*petal.Petal) (*Flower, error) {
	if len(petals) == 0 {
		return nil, perr.New(perr.FlowerNoLayers, "flower.New")
	}
	for i := 0; i < len(petals)-1; i++ {
		if petals[i].OutShape.Length() != petals[i+1].InShape.Length() {
			return nil, perr.New(perr.ShapesNotEqual, "flower.New")
		}
	}
	return &Flower{Petals: petals}, nil
}

// Predict runs the forward chain in inference mode.
func (f *Flower) Predict(input []float32) ([]float32, error) {
	return f.forward(input, false)
}

func (f *Flower) forward(input []float32, training bool) ([]float32, error) {
	cur := input
	for _, p := range f.Petals {
		out, err := p.Forward(cur, training)
		if err != nil {
			return nil, err
		}
		cur = out[:p.OutShape.Length()]
	}
	return cur, nil
}

// Dataset is a training or validation set: either dense one-hot/multi-hot
// Targets, or sparse class-index Labels converted to one-hot on demand.
// Exactly one of Targets or Labels should be set.
type Dataset struct {
	Inputs  [][]float32
	Targets [][]float32
	Labels  []int
}

// Len returns the number of samples.
func (d Dataset) Len() int { return len(d.Inputs) }

func (d Dataset) target(i, length int) []float32 {
	if d.Targets != nil {
		return d.Targets[i]
	}
	return labels.OneHot(d.Labels[i], length)
}

// shuffle permutes Inputs and the paired Targets/Labels jointly, in place.
func (d Dataset) shuffle(rng *prng.PRNG) {
	n := len(d.Inputs)
	for i := n - 1; i > 0; i-- {
		j := int(rng.DrawUint32() % uint32(i+1))
		d.Inputs[i], d.Inputs[j] = d.Inputs[j], d.Inputs[i]
		if d.Targets != nil {
			d.Targets[i], d.Targets[j] = d.Targets[j], d.Targets[i]
		}
		if d.Labels != nil {
			d.Labels[i], d.Labels[j] = d.Labels[j], d.Labels[i]
		}
	}
}

// MetricsSink is the external collaborator that receives per-batch
// training/validation metrics. Printing a progress bar, plotting, or
// logging them to a file is the caller's responsibility, not the core's.
type MetricsSink interface {
	OnBatch(epoch, batch int, trainLoss, trainAcc, valLoss, valAcc float32)
}

// TrainConfig configures a single call to Train.
type TrainConfig struct {
	LossKind   petal.LossKind
	Optimizer  petal.Optimizer
	Train      Dataset
	Validation Dataset
	BatchSize  int
	Epochs     int
	RNG        *prng.PRNG
	Metrics    MetricsSink
}

// TrainResult reports the metrics of the last batch processed.
type TrainResult struct {
	TrainLoss, TrainAccuracy           float32
	ValidationLoss, ValidationAccuracy float32
}

// Train runs mini-batch gradient descent per §4.9: per epoch, shuffle the
// training set, then for every batch accumulate gradients across the whole
// batch before applying the optimizer once.
func (f *Flower) Train(cfg TrainConfig) (*TrainResult, error) {
	if len(f.Petals) == 0 {
		return nil, perr.New(perr.FlowerNoLayers, "flower.Train")
	}
	if cfg.BatchSize <= 0 {
		return nil, perr.New(perr.WrongBatchSize, "flower.Train")
	}

	last := f.Petals[len(f.Petals)-1]
	outLen := last.OutShape.Length()
	f.Loss = petal.NewLoss(cfg.LossKind)
	f.Loss.Prepare(outLen)

	rng := cfg.RNG
	if rng == nil {
		rng = prng.New(uint32(time.Now().UnixNano()))
	}

	result := &TrainResult{}
	trainLen := cfg.Train.Len()
	batchesPerEpoch := (trainLen + cfg.BatchSize - 1) / cfg.BatchSize
	if batchesPerEpoch < 1 {
		batchesPerEpoch = 1
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		cfg.Train.shuffle(rng)

		for batch := 0; batch < batchesPerEpoch; batch++ {
			from := batch * cfg.BatchSize
			to := from + cfg.BatchSize
			if to > trainLen {
				to = trainLen
			}
			if from >= to {
				break
			}

			trainLoss, trainAcc, err := f.runTrainingWindow(cfg, from, to, outLen)
			if err != nil {
				logger.Log.Warn().Str("op", "flower.Train").Err(err).Msg("training batch failed")
				return nil, err
			}

			for _, p := range f.Petals {
				if err := p.Update(cfg.Optimizer); err != nil {
					return nil, err
				}
			}

			valLoss, valAcc, err := f.runValidationWindow(cfg, batch, outLen)
			if err != nil {
				return nil, err
			}

			result.TrainLoss, result.TrainAccuracy = trainLoss, trainAcc
			result.ValidationLoss, result.ValidationAccuracy = valLoss, valAcc

			if cfg.Metrics != nil {
				cfg.Metrics.OnBatch(epoch, batch, trainLoss, trainAcc, valLoss, valAcc)
			}

			logger.Log.Debug().Int("epoch", epoch).Int("batch", batch).
				Float64("train_loss", float64(trainLoss)).Float64("train_acc", float64(trainAcc)).Msg("batch")
		}
	}

	return result, nil
}

func (f *Flower) runTrainingWindow(cfg TrainConfig, from, to, outLen int) (loss, accuracy float32, err error) {
	var lossSum, correct float32
	for idx := from; idx < to; idx++ {
		input := cfg.Train.Inputs[idx]
		target := cfg.Train.target(idx, outLen)

		predicted, err := f.forward(input, true)
		if err != nil {
			return 0, 0, err
		}

		sampleLoss, err := f.Loss.Forward(predicted, target, outLen)
		if err != nil {
			return 0, 0, err
		}
		lossSum += sampleLoss
		if labels.Argmax(predicted) == labels.Argmax(target) {
			correct++
		}

		if err := f.Loss.Backward(outLen); err != nil {
			return 0, 0, err
		}

		upstream := f.Loss.Gradient()
		for i := len(f.Petals) - 1; i >= 0; i-- {
			left := input
			if i > 0 {
				prev := f.Petals[i-1]
				left = prev.Output()[:prev.OutShape.Length()]
			}
			next, err := f.Petals[i].Backward(upstream, left)
			if err != nil {
				return 0, 0, err
			}
			upstream = next
		}
	}

	n := float32(to - from)
	return lossSum / n, correct / n, nil
}

func (f *Flower) runValidationWindow(cfg TrainConfig, batch, outLen int) (loss, accuracy float32, err error) {
	valLen := cfg.Validation.Len()
	if valLen == 0 {
		return 0, 0, nil
	}
	from := batch * cfg.BatchSize
	if from >= valLen {
		return 0, 0, nil
	}
	to := from + cfg.BatchSize
	if to > valLen {
		to = valLen
	}

	var lossSum, correct float32
	for idx := from; idx < to; idx++ {
		input := cfg.Validation.Inputs[idx]
		target := cfg.Validation.target(idx, outLen)

		predicted, err := f.forward(input, false)
		if err != nil {
			return 0, 0, err
		}
		sampleLoss, err := f.Loss.Forward(predicted, target, outLen)
		if err != nil {
			return 0, 0, err
		}
		lossSum += sampleLoss
		if labels.Argmax(predicted) == labels.Argmax(target) {
			correct++
		}
	}

	n := float32(to - from)
	return lossSum / n, correct / n, nil
}
