package pattern

import (
	"math"

	"github.com/bravais-data/beamtrace/internal/frames"
)

// VarianceResult holds per-pixel statistics across a frame stack.
type VarianceResult struct {
	Mean       *frames.Frame // mean intensity per pixel
	MeanSquare *frames.Frame // mean squared intensity per pixel
	NormVar    *frames.Frame // meansq/mean^2 - 1, with non-finite values zeroed
}

// VarianceMap computes per-pixel mean, mean-square and normalised
// variance across all frames of a stack. Pixels whose normalised
// variance is non-finite (zero mean) are reported as 0, mirroring the
// usual detector-diagnostics convention.
func VarianceMap(stack frames.EagerStack) (*VarianceResult, error) {
	if err := stack.Validate(); err != nil {
		return nil, err
	}
	rows, cols := stack.Rows(), stack.Cols()
	n := float64(stack.Len())

	mean := frames.NewFrame(rows, cols, nil)
	meansq := frames.NewFrame(rows, cols, nil)
	for i := 0; i < stack.Len(); i++ {
		f := stack.Frame(i)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				v := f.At(r, c)
				mean.Set(r, c, mean.At(r, c)+v)
				meansq.Set(r, c, meansq.At(r, c)+v*v)
			}
		}
	}

	normVar := frames.NewFrame(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m := mean.At(r, c) / n
			sq := meansq.At(r, c) / n
			mean.Set(r, c, m)
			meansq.Set(r, c, sq)
			nv := sq/(m*m) - 1
			if math.IsNaN(nv) || math.IsInf(nv, 0) {
				nv = 0
			}
			normVar.Set(r, c, nv)
		}
	}

	return &VarianceResult{Mean: mean, MeanSquare: meansq, NormVar: normVar}, nil
}
