package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesLength(t *testing.T) {
	s, err := New(2, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 24, s.Length())
	assert.Equal(t, 2, s.Rows())
	assert.Equal(t, 3, s.Cols())
	assert.Equal(t, 4, s.Depth())
}

func TestNewRejectsZeroExtent(t *testing.T) {
	_, err := New(0, 3, 4)
	require.Error(t, err)
	_, err = New(2, -1, 4)
	require.Error(t, err)
}

func TestFlat(t *testing.T) {
	s, err := Flat(10)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Length())
	assert.Equal(t, 1, s.Rows())
	assert.Equal(t, 1, s.Depth())
}

func TestEqual(t *testing.T) {
	a, _ := New(1, 2, 3)
	b, _ := New(1, 2, 3)
	c, _ := New(3, 2, 1)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
