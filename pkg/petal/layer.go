package petal

import (
	"petalflow/pkg/bitmask"
	"petalflow/pkg/perr"
	"petalflow/pkg/prng"
	"petalflow/pkg/shape"
)

// Kind selects one of the five supported layer kernels.
type Kind int

const (
	Direct Kind = iota
	NormalizeAll
	NormalizeInRows
	NormalizeInChannels
	Dense
)

// Petal is a single layer in a Flower's stack. It owns its shapes, its
// optional Weights and bias-Weights, its optional Activation, its dropout
// mask, and its output and upstream-error buffers — all allocated at
// construction per §9's eager-allocation guidance.
type Petal struct {
	Kind                   Kind
	IsFirst                bool
	InShape, OutShape      shape.Shape
	Weights, Bias          *Weights
	Activation             *Activation
	DropoutRatio           float32
	Center, Deviation      float32

	mask        *bitmask.BitMask
	output      []float32
	upstreamErr []float32
	rng         *prng.PRNG

	lastMask   *bitmask.BitMask
	lastActive bool
}

// NewPetal constructs a Petal. weights/bias must already be sized to
// outShape.Length()*inShape.Length() / outShape.Length() for Dense; pass
// nil weights to have Dense sum its inputs unweighted, and nil bias to omit
// a bias term. rng drives dropout resampling and must be non-nil when
// dropout > 0.
func NewPetal(kind Kind, isFirst bool, inShape, outShape shape.Shape, weights, bias *Weights, activation *Activation, dropout, center, deviation float32, rng *prng.PRNG) (*Petal, error) {
	switch kind {
	case Direct, NormalizeAll, NormalizeInRows, NormalizeInChannels:
		if !inShape.Equal(outShape) {
			return nil, perr.New(perr.ShapesNotEqual, "petal.NewPetal")
		}
	case Dense:
		if err := InitOrCheck(weights, outShape.Length()*inShape.Length()); err != nil {
			return nil, err
		}
		if err := InitOrCheck(bias, outShape.Length()); err != nil {
			return nil, err
		}
	default:
		return nil, perr.New(perr.WrongLayerKind, "petal.NewPetal")
	}

	p := &Petal{
		Kind:         kind,
		IsFirst:      isFirst,
		InShape:      inShape,
		OutShape:     outShape,
		Weights:      weights,
		Bias:         bias,
		Activation:   activation,
		DropoutRatio: dropout,
		Center:       center,
		Deviation:    deviation,
		rng:          rng,
	}

	outLen := outShape.Length()
	bufLen := outLen
	if activation != nil && activation.Kind == Softmax {
		bufLen = outLen * outLen
	}
	p.output = make([]float32, bufLen)
	if activation != nil {
		activation.allocate(bufLen)
	}
	if !isFirst {
		p.upstreamErr = make([]float32, inShape.Length())
	}
	if dropout > 0 {
		m, err := bitmask.New(outLen)
		if err != nil {
			return nil, err
		}
		p.mask = m
	}
	return p, nil
}

// Output returns the layer's output buffer from the last Forward call.
func (p *Petal) Output() []float32 { return p.output }

// UpstreamErr returns the layer's upstream-error buffer from the last
// Backward call (nil for the first layer in a chain).
func (p *Petal) UpstreamErr() []float32 { return p.upstreamErr }

// Forward runs the kind-specific kernel, then the attached activation (if
// any), then dropout compensation scaling (if active this step). Dropout is
// resampled only in training mode; in inference mode the mask is untouched
// and no scaling is applied.
func (p *Petal) Forward(input []float32, training bool) ([]float32, error) {
	active := training && p.DropoutRatio > 0
	if active {
		if err := sampleDropout(p.mask, p.DropoutRatio, p.rng); err != nil {
			return nil, err
		}
	}
	var mask *bitmask.BitMask
	if active {
		mask = p.mask
	}
	p.lastActive = active
	p.lastMask = mask

	outLen := p.OutShape.Length()

	switch p.Kind {
	case Direct:
		for j := 0; j < outLen; j++ {
			if dropped(mask, j) {
				p.output[j] = 0
				continue
			}
			p.output[j] = input[j]
		}
	case NormalizeAll:
		p.normalize(input, mask, 0, outLen, 1)
	case NormalizeInRows:
		rowSize := p.InShape.Cols() * p.InShape.Depth()
		for r := 0; r < p.InShape.Rows(); r++ {
			base := r * rowSize
			p.normalize(input, mask, base, base+rowSize, 1)
		}
	case NormalizeInChannels:
		depth := p.InShape.Depth()
		count := p.InShape.Rows() * p.InShape.Cols()
		for c := 0; c < depth; c++ {
			p.normalizeStrided(input, mask, c, depth, count)
		}
	case Dense:
		if err := p.forwardDense(input, mask); err != nil {
			return nil, err
		}
	default:
		return nil, perr.New(perr.WrongLayerKind, "petal.Forward")
	}

	if p.Activation != nil {
		if err := p.Activation.Forward(p.output, outLen, mask); err != nil {
			return nil, err
		}
	}

	if active {
		scale := 1 / (1 - p.DropoutRatio + epsilon)
		for j := 0; j < outLen; j++ {
			if dropped(mask, j) {
				continue
			}
			p.output[j] *= scale
		}
	}

	return p.output, nil
}

// normalize maps input[from:to] into output[from:to] using min/max over the
// non-dropped elements of that contiguous span.
func (p *Petal) normalize(input []float32, mask *bitmask.BitMask, from, to int, stride int) {
	min, max, any := findRange(input, mask, from, to, stride)
	if !any {
		for i := from; i < to; i += stride {
			p.output[i] = 0
		}
		return
	}
	span := max - min + epsilon
	for i := from; i < to; i += stride {
		if dropped(mask, i) {
			p.output[i] = 0
			continue
		}
		p.output[i] = ((input[i]-min)/span)*2*p.Deviation + p.Center - p.Deviation
	}
}

// normalizeStrided maps the strided channel starting at offset (stride
// elements between members), used by NormalizeInChannels.
func (p *Petal) normalizeStrided(input []float32, mask *bitmask.BitMask, offset, stride, count int) {
	min, max, any := findRangeStrided(input, mask, offset, stride, count)
	if !any {
		for k := 0; k < count; k++ {
			p.output[offset+k*stride] = 0
		}
		return
	}
	span := max - min + epsilon
	for k := 0; k < count; k++ {
		idx := offset + k*stride
		if dropped(mask, idx) {
			p.output[idx] = 0
			continue
		}
		p.output[idx] = ((input[idx]-min)/span)*2*p.Deviation + p.Center - p.Deviation
	}
}

func findRange(input []float32, mask *bitmask.BitMask, from, to, stride int) (min, max float32, any bool) {
	for i := from; i < to; i += stride {
		if dropped(mask, i) {
			continue
		}
		if !any || input[i] < min {
			min = input[i]
		}
		if !any || input[i] > max {
			max = input[i]
		}
		any = true
	}
	return
}

func findRangeStrided(input []float32, mask *bitmask.BitMask, offset, stride, count int) (min, max float32, any bool) {
	for k := 0; k < count; k++ {
		idx := offset + k*stride
		if dropped(mask, idx) {
			continue
		}
		if !any || input[idx] < min {
			min = input[idx]
		}
		if !any || input[idx] > max {
			max = input[idx]
		}
		any = true
	}
	return
}

func (p *Petal) forwardDense(input []float32, mask *bitmask.BitMask) error {
	inLen := p.InShape.Length()
	outLen := p.OutShape.Length()

	if p.Weights == nil {
		var sum float32
		for i := 0; i < inLen; i++ {
			sum += input[i]
		}
		for j := 0; j < outLen; j++ {
			if dropped(mask, j) {
				p.output[j] = 0
				continue
			}
			p.output[j] = sum
		}
		return nil
	}

	for j := 0; j < outLen; j++ {
		if dropped(mask, j) {
			p.output[j] = 0
			continue
		}
		var sum float32
		row := j * inLen
		for i := 0; i < inLen; i++ {
			sum += p.Weights.W[row+i] * input[i]
		}
		if p.Bias != nil {
			sum += p.Bias.W[j]
		}
		p.output[j] = sum
	}
	return nil
}

// Backward computes this layer's upstream-error buffer and, for Dense,
// accumulates weight and bias gradients. leftOutput is the output of the
// layer immediately before this one (or the model input, for the first
// layer), needed by Dense's weight-gradient rule.
func (p *Petal) Backward(upstreamErr, leftOutput []float32) ([]float32, error) {
	switch p.Kind {
	case Direct, NormalizeAll, NormalizeInRows, NormalizeInChannels:
		if p.IsFirst {
			return nil, nil
		}
		copy(p.upstreamErr, upstreamErr[:len(p.upstreamErr)])
		return p.upstreamErr, nil
	case Dense:
		return p.backwardDense(upstreamErr, leftOutput)
	default:
		return nil, perr.New(perr.WrongLayerKind, "petal.Backward")
	}
}

func (p *Petal) backwardDense(upstreamErr, leftOutput []float32) ([]float32, error) {
	L := p.OutShape.Length()
	inLen := p.InShape.Length()
	delta := make([]float32, L)

	if p.Activation != nil {
		scale := float32(1)
		if p.lastActive {
			scale = 1 / (1 - p.DropoutRatio + epsilon)
			for i := 0; i < L; i++ {
				if !dropped(p.lastMask, i) {
					p.output[i] /= scale
				}
			}
		}
		if err := p.Activation.Backward(p.output, L, p.lastMask); err != nil {
			return nil, err
		}
		if p.lastActive {
			for i := range p.output {
				p.output[i] *= scale
			}
		}
		if p.Activation.Kind == Softmax {
			for i := 0; i < L; i++ {
				var sum float32
				row := i * L
				for j := 0; j < L; j++ {
					sum += p.output[row+j] * upstreamErr[j]
				}
				delta[i] = sum
			}
		} else {
			for i := 0; i < L; i++ {
				delta[i] = p.output[i] * upstreamErr[i]
			}
		}
	} else {
		copy(delta, upstreamErr[:L])
	}

	if !p.IsFirst {
		for i := range p.upstreamErr {
			p.upstreamErr[i] = 0
		}
	}

	for j := 0; j < L; j++ {
		dj := delta[j]
		if p.Weights != nil {
			row := j * inLen
			for i := 0; i < inLen; i++ {
				if !p.IsFirst {
					p.upstreamErr[i] += p.Weights.W[row+i] * dj
				}
				if p.Weights.Trainable {
					p.Weights.G[row+i] += dj * leftOutput[i]
				}
			}
		} else if !p.IsFirst {
			for i := 0; i < inLen; i++ {
				p.upstreamErr[i] += dj
			}
		}
		if p.Bias != nil && p.Bias.Trainable {
			p.Bias.G[j] += dj
		}
	}

	if p.IsFirst {
		return nil, nil
	}
	return p.upstreamErr, nil
}

// Update applies optimizer to this layer's trainable weights and bias.
func (p *Petal) Update(optimizer Optimizer) error {
	if err := optimizer.Apply(p.Weights); err != nil {
		return err
	}
	return optimizer.Apply(p.Bias)
}
