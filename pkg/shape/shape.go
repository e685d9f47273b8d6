// Package shape defines the value object describing a layer's input and
// output extents.
package shape

import "petalflow/pkg/perr"

// Shape is a three-dimensional extent (rows, cols, depth). It is a value
// object: Length is derived at construction and never changes.
type Shape struct {
	rows, cols, depth int
	length            int
}

// New constructs a Shape, deriving Length = rows*cols*depth. Any
// non-positive extent is rejected with ShapeZero.
func New(rows, cols, depth int) (Shape, error) {
	if rows <= 0 || cols <= 0 || depth <= 0 {
		return Shape{}, perr.New(perr.ShapeZero, "shape.New")
	}
	return Shape{rows: rows, cols: cols, depth: depth, length: rows * cols * depth}, nil
}

// Flat constructs a 1-row, 1-depth Shape of the given length — the common
// case for a dense layer's input/output vector.
func Flat(length int) (Shape, error) {
	return New(1, length, 1)
}

// Rows returns the row extent.
func (s Shape) Rows() int { return s.rows }

// Cols returns the column extent.
func (s Shape) Cols() int { return s.cols }

// Depth returns the channel extent.
func (s Shape) Depth() int { return s.depth }

// Length returns the derived rows*cols*depth.
func (s Shape) Length() int { return s.length }

// Equal reports whether two shapes have identical extents.
func (s Shape) Equal(o Shape) bool {
	return s.rows == o.rows && s.cols == o.cols && s.depth == o.depth
}
