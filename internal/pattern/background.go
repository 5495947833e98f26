package pattern

import (
	"math"
	"sort"

	"github.com/bravais-data/beamtrace/internal/frames"
)

// GaussianBlur convolves the frame with a separable Gaussian kernel.
// Edge samples are clamped. sigma <= 0 returns a copy of the input.
func GaussianBlur(f *frames.Frame, sigma float64) *frames.Frame {
	if sigma <= 0 {
		return f.Clone()
	}
	radius := int(3*sigma + 0.5)
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	rows, cols := f.Rows(), f.Cols()
	tmp := frames.NewFrame(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			acc := 0.0
			for k, w := range kernel {
				acc += w * f.At(r, clampIndex(c+k-radius, cols))
			}
			tmp.Set(r, c, acc)
		}
	}
	out := frames.NewFrame(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			acc := 0.0
			for k, w := range kernel {
				acc += w * tmp.At(clampIndex(r+k-radius, rows), c)
			}
			out.Set(r, c, acc)
		}
	}
	return out
}

// RemoveBackgroundDoG suppresses slowly varying background with a
// difference of Gaussians: pixels where the fine blur does not exceed
// the coarse blur are zeroed, the coarse blur is subtracted from the
// rest, and the result is clipped at zero.
func RemoveBackgroundDoG(f *frames.Frame, minSigma, maxSigma float64) *frames.Frame {
	blurMin := GaussianBlur(f, minSigma)
	blurMax := GaussianBlur(f, maxSigma)
	out := frames.NewFrame(f.Rows(), f.Cols(), nil)
	for r := 0; r < f.Rows(); r++ {
		for c := 0; c < f.Cols(); c++ {
			v := 0.0
			if blurMin.At(r, c) > blurMax.At(r, c) {
				v = f.At(r, c)
			}
			v -= blurMax.At(r, c)
			if v < 0 {
				v = 0
			}
			out.Set(r, c, v)
		}
	}
	return out
}

// RemoveBackgroundMedian subtracts a square median filter of the given
// footprint (made odd if necessary) from the frame. Edge windows are
// clipped to the frame.
func RemoveBackgroundMedian(f *frames.Frame, footprint int) *frames.Frame {
	if footprint < 1 {
		footprint = 1
	}
	if footprint%2 == 0 {
		footprint++
	}
	half := footprint / 2
	rows, cols := f.Rows(), f.Cols()
	out := frames.NewFrame(rows, cols, nil)
	window := make([]float64, 0, footprint*footprint)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			window = window[:0]
			for wr := r - half; wr <= r+half; wr++ {
				if wr < 0 || wr >= rows {
					continue
				}
				for wc := c - half; wc <= c+half; wc++ {
					if wc < 0 || wc >= cols {
						continue
					}
					window = append(window, f.At(wr, wc))
				}
			}
			out.Set(r, c, f.At(r, c)-median(window))
		}
	}
	return out
}

// RemoveBackgroundRadialMedian subtracts, from every pixel, the median
// intensity of all pixels at the same integer radius from the frame
// centre. Effective against radially symmetric diffuse background.
func RemoveBackgroundRadialMedian(f *frames.Frame) *frames.Frame {
	rows, cols := f.Rows(), f.Cols()
	cy := (float64(rows) - 1) / 2
	cx := (float64(cols) - 1) / 2

	maxR := int(math.Sqrt(cx*cx+cy*cy)) + 1
	byRadius := make([][]float64, maxR+1)
	radius := make([]int, rows*cols)
	for r := 0; r < rows; r++ {
		dy := float64(r) - cy
		for c := 0; c < cols; c++ {
			dx := float64(c) - cx
			ri := int(math.Sqrt(dx*dx + dy*dy))
			radius[r*cols+c] = ri
			byRadius[ri] = append(byRadius[ri], f.At(r, c))
		}
	}

	medians := make([]float64, maxR+1)
	for i, vals := range byRadius {
		if len(vals) > 0 {
			medians[i] = median(vals)
		}
	}

	out := frames.NewFrame(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(r, c, f.At(r, c)-medians[radius[r*cols+c]])
		}
	}
	return out
}

// median sorts the slice in place and returns its median value.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
