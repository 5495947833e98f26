// Package frames provides the frame stack data model for diffraction
// pattern processing: single 2D detector frames, fully resident stacks,
// and chunked stacks whose frames are materialised on demand.
//
// Coordinate convention: positions and shifts derived from frames are
// reported as (x, y), where x is the column coordinate and y is the row
// coordinate. Array storage remains row-major (row, col).
package frames

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when frames in one stack do not share
// identical spatial dimensions.
var ErrShapeMismatch = errors.New("frames: shape mismatch within stack")

// Frame is a single 2D detector image. The zero value is not usable;
// construct with NewFrame or FrameFromDense.
type Frame struct {
	data *mat.Dense
}

// NewFrame creates a frame of the given shape. If data is nil the frame
// is zero-filled; otherwise data must be row-major with rows*cols values
// and is used directly (not copied).
func NewFrame(rows, cols int, data []float64) *Frame {
	return &Frame{data: mat.NewDense(rows, cols, data)}
}

// FrameFromDense wraps an existing dense matrix as a frame.
func FrameFromDense(d *mat.Dense) *Frame {
	return &Frame{data: d}
}

// Rows returns the number of detector rows (y extent).
func (f *Frame) Rows() int {
	r, _ := f.data.Dims()
	return r
}

// Cols returns the number of detector columns (x extent).
func (f *Frame) Cols() int {
	_, c := f.data.Dims()
	return c
}

// At returns the intensity at (row, col).
func (f *Frame) At(row, col int) float64 {
	return f.data.At(row, col)
}

// Set stores an intensity at (row, col).
func (f *Frame) Set(row, col int, v float64) {
	f.data.Set(row, col, v)
}

// Dense exposes the underlying matrix for numeric routines.
func (f *Frame) Dense() *mat.Dense {
	return f.data
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	var d mat.Dense
	d.CloneFrom(f.data)
	return &Frame{data: &d}
}

// Sum returns the total intensity of the frame.
func (f *Frame) Sum() float64 {
	return mat.Sum(f.data)
}

// Mean returns the mean intensity of the frame.
func (f *Frame) Mean() float64 {
	r, c := f.data.Dims()
	return mat.Sum(f.data) / float64(r*c)
}

// Max returns the maximum intensity of the frame.
func (f *Frame) Max() float64 {
	return mat.Max(f.data)
}

// IsFinite reports whether every value in the frame is finite.
func (f *Frame) IsFinite() bool {
	r, c := f.data.Dims()
	raw := f.data.RawMatrix()
	for i := 0; i < r; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+c]
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// SameShape reports whether two frames have identical dimensions.
func (f *Frame) SameShape(other *Frame) bool {
	return f.Rows() == other.Rows() && f.Cols() == other.Cols()
}

// checkShape returns ErrShapeMismatch (wrapped with frame context) when
// the frame does not match the expected dimensions.
func checkShape(f *Frame, index, rows, cols int) error {
	if f.Rows() != rows || f.Cols() != cols {
		return fmt.Errorf("frame %d is %dx%d, want %dx%d: %w",
			index, f.Rows(), f.Cols(), rows, cols, ErrShapeMismatch)
	}
	return nil
}
