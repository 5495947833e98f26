// Package pattern implements per-frame diffraction pattern kernels:
// centre-of-mass estimation, template matching, background removal and
// detector pixel hygiene. Every function treats its input frame as
// read-only and returns fresh output.
package pattern

import (
	"errors"
	"math"

	"github.com/bravais-data/beamtrace/internal/frames"
)

// ErrNoSignal is returned when a frame contains no usable intensity and
// no finite estimate can be produced.
var ErrNoSignal = errors.New("pattern: no usable signal in frame")

// Mask is a boolean image overlay. The meaning of a set bit depends on
// the producing function (kept region for CircularMask, flagged pixels
// for dead/hot detection).
type Mask struct {
	rows, cols int
	bits       []bool
}

// NewMask creates an all-clear mask of the given shape.
func NewMask(rows, cols int) *Mask {
	return &Mask{rows: rows, cols: cols, bits: make([]bool, rows*cols)}
}

// Rows returns the mask height.
func (m *Mask) Rows() int { return m.rows }

// Cols returns the mask width.
func (m *Mask) Cols() int { return m.cols }

// At reports the bit at (row, col).
func (m *Mask) At(row, col int) bool { return m.bits[row*m.cols+col] }

// Set stores the bit at (row, col).
func (m *Mask) Set(row, col int, v bool) { m.bits[row*m.cols+col] = v }

// Count returns the number of set bits.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// CircularMask returns a mask whose set bits lie within radius pixels of
// the geometric frame centre. Used to restrict centre-of-mass sums to
// the neighbourhood of the direct beam.
func CircularMask(rows, cols int, radius float64) *Mask {
	m := NewMask(rows, cols)
	cy := (float64(rows) - 1) / 2
	cx := (float64(cols) - 1) / 2
	r2 := radius * radius
	for r := 0; r < rows; r++ {
		dy := float64(r) - cy
		for c := 0; c < cols; c++ {
			dx := float64(c) - cx
			if dx*dx+dy*dy <= r2 {
				m.Set(r, c, true)
			}
		}
	}
	return m
}

// maskedMean returns the mean intensity over the kept region of the
// frame. With a nil mask the whole frame contributes.
func maskedMean(f *frames.Frame, keep *Mask) float64 {
	sum, n := 0.0, 0
	for r := 0; r < f.Rows(); r++ {
		for c := 0; c < f.Cols(); c++ {
			if keep != nil && !keep.At(r, c) {
				continue
			}
			sum += f.At(r, c)
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
