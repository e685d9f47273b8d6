package prng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeedZeroUint32Sequence(t *testing.T) {
	p := New(0)
	want := []uint32{2357136044, 2546248239, 3071714933, 3626093760, 2588848963}
	for i, w := range want {
		got := p.DrawUint32()
		assert.Equalf(t, w, got, "draw %d", i)
	}
}

func TestSeedZeroFloatSequence(t *testing.T) {
	p := New(0)
	// consume the five u32 draws already covered by TestSeedZeroUint32Sequence
	for i := 0; i < 5; i++ {
		p.DrawUint32()
	}
	want := []float32{0.85794562, 0.84725171, 0.62356371, 0.38438171, 0.29753458}
	for i, w := range want {
		got := p.DrawFloat()
		assert.InDeltaf(t, w, got, 1e-6, "float draw %d", i)
	}
}

func TestPerInstanceIsolation(t *testing.T) {
	a := New(1)
	b := New(2)
	assert.NotEqual(t, a.DrawUint32(), b.DrawUint32())

	a2 := New(1)
	assert.Equal(t, a2.DrawUint32(), New(1).DrawUint32())
}

func TestGlobalSeedReproducible(t *testing.T) {
	Seed(0)
	first := DrawUint32()
	Seed(0)
	second := DrawUint32()
	assert.Equal(t, first, second)
}
