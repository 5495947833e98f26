package pattern

import (
	"math"

	"github.com/bravais-data/beamtrace/internal/frames"
)

// CenterOfMass returns the intensity-weighted centroid of a frame as
// (x, y): x is the column coordinate, y the row coordinate.
//
// With thresholdMultiple > 0 the frame is binarised before weighting:
// only pixels above mean*thresholdMultiple contribute, each with unit
// weight. With a non-nil keep mask, pixels outside the kept region are
// ignored both for the mean and the sums.
//
// Returns ErrNoSignal when the weighted total is zero or non-finite
// (for example an all-zero frame).
func CenterOfMass(f *frames.Frame, thresholdMultiple float64, keep *Mask) (x, y float64, err error) {
	var thr float64
	useThreshold := thresholdMultiple > 0
	if useThreshold {
		thr = maskedMean(f, keep) * thresholdMultiple
	}

	var sumX, sumY, total float64
	for r := 0; r < f.Rows(); r++ {
		for c := 0; c < f.Cols(); c++ {
			if keep != nil && !keep.At(r, c) {
				continue
			}
			v := f.At(r, c)
			if useThreshold {
				if v > thr {
					v = 1
				} else {
					v = 0
				}
			}
			sumX += v * float64(c)
			sumY += v * float64(r)
			total += v
		}
	}

	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return 0, 0, ErrNoSignal
	}
	x = sumX / total
	y = sumY / total
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return 0, 0, ErrNoSignal
	}
	return x, y, nil
}

// ExperimentalSquare extracts a size x size window whose top-left corner
// sits at (cx - size/2, cy - size/2). It reports ok=false when the
// window would extend past the frame edge; callers then keep the
// unrefined estimate.
func ExperimentalSquare(f *frames.Frame, cx, cy, size int) (*frames.Frame, bool) {
	half := size / 2
	r0 := cy - half
	c0 := cx - half
	if r0 < 0 || c0 < 0 || r0+size > f.Rows() || c0+size > f.Cols() {
		return nil, false
	}
	out := frames.NewFrame(size, size, nil)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			out.Set(r, c, f.At(r0+r, c0+c))
		}
	}
	return out, true
}

// COMSquare extracts an experimental square and zeroes its top row and
// left column so the remaining window is symmetric around the integer
// estimate, then returns the window's centre of mass in window
// coordinates. ok=false means the window fell outside the frame or held
// no signal.
func COMSquare(f *frames.Frame, cx, cy, size int) (wx, wy float64, ok bool) {
	sq, ok := ExperimentalSquare(f, cx, cy, size)
	if !ok {
		return 0, 0, false
	}
	for c := 0; c < size; c++ {
		sq.Set(0, c, 0)
	}
	for r := 0; r < size; r++ {
		sq.Set(r, 0, 0)
	}
	wx, wy, err := CenterOfMass(sq, 0, nil)
	if err != nil {
		return 0, 0, false
	}
	return wx, wy, true
}

// RefineCOM improves an integer-resolution estimate (cx, cy) to subpixel
// precision by taking the centre of mass of a square window around it.
// When the window cannot be evaluated the original estimate is returned
// unchanged.
func RefineCOM(f *frames.Frame, cx, cy float64, size int) (x, y float64) {
	icx := int(math.Round(cx))
	icy := int(math.Round(cy))
	wx, wy, ok := COMSquare(f, icx, icy, size)
	if !ok {
		return cx, cy
	}
	half := float64(size) / 2
	return float64(icx) + (wx - half), float64(icy) + (wy - half)
}
