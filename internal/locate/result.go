package locate

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Position is a beam position in frame coordinates: X is the column
// coordinate, Y the row coordinate. Earlier conventions in this domain
// reported (row, col) pairs; the (x, y) order here is deliberate and
// consumers must not swap it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FrameFailure records a frame for which no finite beam position could
// be produced. Failures are data, not batch errors: the surrounding
// frames still yield results.
type FrameFailure struct {
	FrameIndex int    `json:"frame_index"`
	Reason     string `json:"reason"`
}

// PositionMap is the result of one locate call. Positions always has
// exactly one entry per stack frame, in navigation order; failed frames
// hold NaN coordinates and a corresponding Failures entry sorted by
// frame index.
type PositionMap struct {
	Positions []Position     `json:"positions"`
	Failures  []FrameFailure `json:"failures,omitempty"`
}

// newPositionMap allocates a map of n NaN positions.
func newPositionMap(n int) *PositionMap {
	pm := &PositionMap{Positions: make([]Position, n)}
	for i := range pm.Positions {
		pm.Positions[i] = Position{X: math.NaN(), Y: math.NaN()}
	}
	return pm
}

// Len returns the number of frames covered by the map.
func (pm *PositionMap) Len() int { return len(pm.Positions) }

// Failed reports whether the frame at index i produced no estimate.
func (pm *PositionMap) Failed(i int) bool {
	return math.IsNaN(pm.Positions[i].X)
}

// Shifts returns per-frame displacements from the geometric frame
// centre, in the same (x, y) convention as Positions. Failed frames
// keep NaN shifts.
func (pm *PositionMap) Shifts(rows, cols int) []Position {
	cy := (float64(rows) - 1) / 2
	cx := (float64(cols) - 1) / 2
	out := make([]Position, len(pm.Positions))
	for i, p := range pm.Positions {
		out[i] = Position{X: p.X - cx, Y: p.Y - cy}
	}
	return out
}

// Summary holds aggregate statistics of a position map, ignoring failed
// frames.
type Summary struct {
	Frames   int     `json:"frames"`
	Failures int     `json:"failures"`
	MeanX    float64 `json:"mean_x"`
	MeanY    float64 `json:"mean_y"`
	StddevX  float64 `json:"stddev_x"`
	StddevY  float64 `json:"stddev_y"`
}

// Summarize computes aggregate statistics over the successful frames.
func (pm *PositionMap) Summarize() Summary {
	xs := make([]float64, 0, len(pm.Positions))
	ys := make([]float64, 0, len(pm.Positions))
	for i, p := range pm.Positions {
		if pm.Failed(i) {
			continue
		}
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}
	s := Summary{Frames: pm.Len(), Failures: len(pm.Failures)}
	if len(xs) > 0 {
		s.MeanX, s.StddevX = stat.MeanStdDev(xs, nil)
		s.MeanY, s.StddevY = stat.MeanStdDev(ys, nil)
		if math.IsNaN(s.StddevX) {
			s.StddevX = 0
		}
		if math.IsNaN(s.StddevY) {
			s.StddevY = 0
		}
	}
	return s
}
