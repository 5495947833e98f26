package peaks

import (
	"github.com/bravais-data/beamtrace/internal/frames"
	"github.com/bravais-data/beamtrace/internal/pattern"
)

// RefineCOM moves each peak to the centre of mass of a square window
// around its detected position. Peaks whose window falls outside the
// frame keep their original coordinates. Size must be even; it defaults
// to 10 when zero.
func RefineCOM(f *frames.Frame, found []Peak, size int) []Peak {
	if size <= 0 {
		size = 10
	}
	out := make([]Peak, len(found))
	for i, p := range found {
		x, y := pattern.RefineCOM(f, p.X, p.Y, size)
		out[i] = p
		out[i].X = x
		out[i].Y = y
	}
	return out
}

// Intensities measures each peak as the disc-masked mean of the square
// subframe around it: the disc values are summed and divided by the
// full window area, matching the masked-mean measurement used for
// virtual imaging. Peaks too close to the frame edge get intensity 0.
func Intensities(f *frames.Frame, found []Peak, radius int) []float64 {
	if radius <= 0 {
		radius = 1
	}
	disc := pattern.DiscTemplate(radius)
	side := 2*radius + 1
	area := float64(side * side)

	out := make([]float64, len(found))
	for i, p := range found {
		cx := int(p.X + 0.5)
		cy := int(p.Y + 0.5)
		r0 := cy - radius
		c0 := cx - radius
		if r0 < 0 || c0 < 0 || r0+side > f.Rows() || c0+side > f.Cols() {
			continue
		}
		var sum float64
		for r := 0; r < side; r++ {
			for c := 0; c < side; c++ {
				sum += disc.At(r, c) * f.At(r0+r, c0+c)
			}
		}
		out[i] = sum / area
	}
	return out
}
