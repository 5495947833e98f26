package pattern

import (
	"math"

	"github.com/bravais-data/beamtrace/internal/frames"
)

// DiscTemplate returns a binary disc of the given radius: a
// (2*radius+1) square frame with 1.0 inside the radius and 0 outside.
// This is the standard template for matching the direct beam disc.
func DiscTemplate(radius int) *frames.Frame {
	size := 2*radius + 1
	out := frames.NewFrame(size, size, nil)
	r2 := float64(radius * radius)
	for r := 0; r < size; r++ {
		dy := float64(r - radius)
		for c := 0; c < size; c++ {
			dx := float64(c - radius)
			if dx*dx+dy*dy <= r2 {
				out.Set(r, c, 1)
			}
		}
	}
	return out
}

// MatchTemplate computes the normalised cross-correlation of a frame
// with a smaller template. The output has the same shape as the frame
// (the template is centred on each pixel; out-of-frame samples are
// treated as zero), with values in [-1, 1]. Windows with zero variance
// correlate to 0.
func MatchTemplate(f, tmpl *frames.Frame) *frames.Frame {
	tr, tc := tmpl.Rows(), tmpl.Cols()
	n := float64(tr * tc)

	// Template statistics are shared by every window.
	tMean := tmpl.Mean()
	tVar := 0.0
	for r := 0; r < tr; r++ {
		for c := 0; c < tc; c++ {
			d := tmpl.At(r, c) - tMean
			tVar += d * d
		}
	}

	out := frames.NewFrame(f.Rows(), f.Cols(), nil)
	if tVar == 0 {
		return out
	}

	hr, hc := tr/2, tc/2
	for cr := 0; cr < f.Rows(); cr++ {
		for cc := 0; cc < f.Cols(); cc++ {
			// Window mean with zero padding outside the frame.
			wSum := 0.0
			for r := 0; r < tr; r++ {
				fr := cr + r - hr
				if fr < 0 || fr >= f.Rows() {
					continue
				}
				for c := 0; c < tc; c++ {
					fc := cc + c - hc
					if fc < 0 || fc >= f.Cols() {
						continue
					}
					wSum += f.At(fr, fc)
				}
			}
			wMean := wSum / n

			num, wVar := 0.0, 0.0
			for r := 0; r < tr; r++ {
				fr := cr + r - hr
				for c := 0; c < tc; c++ {
					fc := cc + c - hc
					fv := 0.0
					if fr >= 0 && fr < f.Rows() && fc >= 0 && fc < f.Cols() {
						fv = f.At(fr, fc)
					}
					fd := fv - wMean
					num += fd * (tmpl.At(r, c) - tMean)
					wVar += fd * fd
				}
			}

			den := math.Sqrt(tVar * wVar)
			if den > 0 {
				out.Set(cr, cc, num/den)
			}
		}
	}
	return out
}

// CorrelationPeak locates the maximum of a correlation map as (x, y).
// With subpixel enabled the integer peak is refined by a parabolic fit
// through the peak and its direct neighbours along each axis; the
// refinement is clamped to half a pixel.
//
// ok is false when the map is flat (no distinguishable peak), which
// happens for frames with no signal.
func CorrelationPeak(corr *frames.Frame, subpixel bool) (x, y float64, ok bool) {
	best := math.Inf(-1)
	flat := true
	first := corr.At(0, 0)
	br, bc := 0, 0
	for r := 0; r < corr.Rows(); r++ {
		for c := 0; c < corr.Cols(); c++ {
			v := corr.At(r, c)
			if v != first {
				flat = false
			}
			if v > best {
				best, br, bc = v, r, c
			}
		}
	}
	if flat || math.IsNaN(best) || math.IsInf(best, 0) {
		return 0, 0, false
	}

	x, y = float64(bc), float64(br)
	if subpixel {
		x += parabolicOffset(
			corr.At(br, clampIndex(bc-1, corr.Cols())),
			best,
			corr.At(br, clampIndex(bc+1, corr.Cols())),
		)
		y += parabolicOffset(
			corr.At(clampIndex(br-1, corr.Rows()), bc),
			best,
			corr.At(clampIndex(br+1, corr.Rows()), bc),
		)
	}
	return x, y, true
}

// parabolicOffset fits a parabola through three samples centred on the
// peak and returns the vertex offset in (-0.5, 0.5).
func parabolicOffset(left, centre, right float64) float64 {
	den := left - 2*centre + right
	if den == 0 {
		return 0
	}
	off := 0.5 * (left - right) / den
	if off > 0.5 {
		off = 0.5
	} else if off < -0.5 {
		off = -0.5
	}
	return off
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
