package flower

import (
	_ "embed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"petalflow/pkg/labels"
	"petalflow/pkg/petal"
	"petalflow/pkg/prng"
	"petalflow/pkg/shape"
	"testing"
)

//go:embed testdata/classifier.yaml
var classifierFixture []byte

type optimizerFixture struct {
	Kind         string  `yaml:"kind"`
	LearningRate float32 `yaml:"learning_rate"`
	Beta1        float32 `yaml:"beta1"`
	Beta2        float32 `yaml:"beta2"`
}

type classifierFixtureSpec struct {
	Seed                  uint32           `yaml:"seed"`
	Hidden                int              `yaml:"hidden"`
	Outputs               int              `yaml:"outputs"`
	Inputs                int              `yaml:"inputs"`
	Dropout               float32          `yaml:"dropout"`
	Center                float32          `yaml:"center"`
	Deviation             float32          `yaml:"deviation"`
	Optimizer             optimizerFixture `yaml:"optimizer"`
	BatchSize             int              `yaml:"batch_size"`
	Epochs                int              `yaml:"epochs"`
	TrainSamples          int              `yaml:"train_samples"`
	ValidationSamples     int              `yaml:"validation_samples"`
	MinValidationAccuracy float32          `yaml:"min_validation_accuracy"`
}

func loadClassifierFixture(t *testing.T) classifierFixtureSpec {
	t.Helper()
	var spec classifierFixtureSpec
	require.NoError(t, yaml.Unmarshal(classifierFixture, &spec))
	return spec
}

// newDenseStack builds a 3-layer dense classifier: inputs -> hidden (ReLU)
// -> hidden (ReLU) -> outputs (Softmax), Xavier-Gaussian weights, zero bias.
func newDenseStack(t *testing.T, spec classifierFixtureSpec, rng *prng.PRNG) *Flower {
	t.Helper()

	dims := []int{spec.Inputs, spec.Hidden, spec.Hidden, spec.Outputs}
	kinds := []petal.ActivationKind{petal.LeakyReLU, petal.LeakyReLU, petal.Softmax}

	var petals []*petal.Petal
	for i := 0; i < 3; i++ {
		inLen, outLen := dims[i], dims[i+1]
		total := inLen * outLen

		w, err := petal.NewWeights(true, petal.XavierGaussian, total, total, 0, 1, rng)
		require.NoError(t, err)
		bias, err := petal.NewWeights(true, petal.Constant, outLen, outLen, 0, 0, rng)
		require.NoError(t, err)

		act := petal.NewActivation(kinds[i], 1, 0, 0, 1, 1)

		inShape, err := shape.Flat(inLen)
		require.NoError(t, err)
		outShape, err := shape.Flat(outLen)
		require.NoError(t, err)

		p, err := petal.NewPetal(petal.Dense, i == 0, inShape, outShape, w, bias, act, spec.Dropout, spec.Center, spec.Deviation, rng)
		require.NoError(t, err)
		petals = append(petals, p)
	}

	f, err := New(petals)
	require.NoError(t, err)
	return f
}

// label implements the "x0 > x1" decision rule the fixture trains against.
func label(x0, x1 float32) int {
	if x0 > x1 {
		return 0
	}
	return 1
}

func syntheticDataset(n int, rng *prng.PRNG) Dataset {
	inputs := make([][]float32, n)
	lbls := make([]int, n)
	for i := 0; i < n; i++ {
		x0 := rng.DrawFloat()*40 - 20
		x1 := rng.DrawFloat()*40 - 20
		inputs[i] = []float32{x0, x1}
		lbls[i] = label(x0, x1)
	}
	return Dataset{Inputs: inputs, Labels: lbls}
}

func TestClassifierEndToEnd(t *testing.T) {
	spec := loadClassifierFixture(t)
	rng := prng.New(spec.Seed)

	f := newDenseStack(t, spec, rng)

	train := syntheticDataset(spec.TrainSamples, rng)
	val := syntheticDataset(spec.ValidationSamples, rng)

	var optKind petal.OptimizerKind
	switch spec.Optimizer.Kind {
	case "adam":
		optKind = petal.Adam
	default:
		t.Fatalf("unsupported optimizer kind in fixture: %s", spec.Optimizer.Kind)
	}

	cfg := TrainConfig{
		LossKind: petal.CCE,
		Optimizer: petal.Optimizer{
			Kind:         optKind,
			LearningRate: spec.Optimizer.LearningRate,
			Beta1:        spec.Optimizer.Beta1,
			Beta2:        spec.Optimizer.Beta2,
		},
		Train:      train,
		Validation: val,
		BatchSize:  spec.BatchSize,
		Epochs:     spec.Epochs,
		RNG:        rng,
	}

	result, err := f.Train(cfg)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.GreaterOrEqual(t, result.ValidationAccuracy, spec.MinValidationAccuracy)

	predicted, err := f.Predict([]float32{1, 10})
	require.NoError(t, err)
	assert.Equal(t, 1, labels.Argmax(predicted))

	predicted, err = f.Predict([]float32{20, 10})
	require.NoError(t, err)
	assert.Equal(t, 0, labels.Argmax(predicted))

	predicted, err = f.Predict([]float32{-1, 10})
	require.NoError(t, err)
	assert.Equal(t, 1, labels.Argmax(predicted))
}

func TestNewRejectsEmptyStack(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNewRejectsMismatchedShapeChain(t *testing.T) {
	rng := prng.New(0)
	in1, _ := shape.Flat(2)
	out1, _ := shape.Flat(3)
	in2, _ := shape.Flat(4)
	out2, _ := shape.Flat(2)

	w1, _ := petal.NewWeights(true, petal.Gaussian, 6, 6, 0, 1, rng)
	w2, _ := petal.NewWeights(true, petal.Gaussian, 8, 8, 0, 1, rng)

	p1, err := petal.NewPetal(petal.Dense, true, in1, out1, w1, nil, nil, 0, 0, 1, rng)
	require.NoError(t, err)
	p2, err := petal.NewPetal(petal.Dense, false, in2, out2, w2, nil, nil, 0, 0, 1, rng)
	require.NoError(t, err)

	_, err = New([]*petal.Petal{p1, p2})
	assert.Error(t, err)
}
