package pattern

import (
	"github.com/bravais-data/beamtrace/internal/frames"
)

// FindDeadPixels flags pixels that hold exactly deadValue in every frame
// of the stack. Detectors commonly report dead pixels as a constant
// zero, so deadValue is usually 0.
func FindDeadPixels(stack frames.EagerStack, deadValue float64) (*Mask, error) {
	if err := stack.Validate(); err != nil {
		return nil, err
	}
	rows, cols := stack.Rows(), stack.Cols()
	m := NewMask(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Set(r, c, true)
		}
	}
	for i := 0; i < stack.Len(); i++ {
		f := stack.Frame(i)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if m.At(r, c) && f.At(r, c) != deadValue {
					m.Set(r, c, false)
				}
			}
		}
	}
	return m, nil
}

// FindHotPixels flags pixels whose value exceeds the mean of their eight
// neighbours by more than thresholdMultiplier times the frame mean.
// Neighbour lookups wrap around the frame edges.
func FindHotPixels(f *frames.Frame, thresholdMultiplier float64) *Mask {
	rows, cols := f.Rows(), f.Cols()
	mean := f.Mean()
	limit := mean * thresholdMultiplier
	m := NewMask(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var nsum float64
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					if dr == 0 && dc == 0 {
						continue
					}
					nsum += f.At(wrapIndex(r+dr, rows), wrapIndex(c+dc, cols))
				}
			}
			// dif < 0 means the pixel towers over its neighbourhood.
			dif := nsum - 8*f.At(r, c)
			if dif < -limit {
				m.Set(r, c, true)
			}
		}
	}
	return m
}

// RepairBadPixels returns a copy of the frame with every flagged pixel
// replaced by the mean of its four direct neighbours (wrapping at the
// edges). Neighbour values are taken from the original frame, so repair
// order does not matter.
func RepairBadPixels(f *frames.Frame, bad *Mask) *frames.Frame {
	rows, cols := f.Rows(), f.Cols()
	out := f.Clone()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if !bad.At(r, c) {
				continue
			}
			v := (f.At(wrapIndex(r-1, rows), c) +
				f.At(wrapIndex(r+1, rows), c) +
				f.At(r, wrapIndex(c-1, cols)) +
				f.At(r, wrapIndex(c+1, cols))) / 4
			out.Set(r, c, v)
		}
	}
	return out
}

func wrapIndex(i, n int) int {
	if i < 0 {
		return i + n
	}
	if i >= n {
		return i - n
	}
	return i
}
