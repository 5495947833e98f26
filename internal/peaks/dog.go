// Package peaks finds diffraction peaks in single frames using a
// difference-of-Gaussians blob detector, with centre-of-mass refinement
// and disc-masked intensity measurement.
//
// Peak positions are reported as (x, y): column then row.
package peaks

import (
	"math"
	"sort"

	"github.com/bravais-data/beamtrace/internal/frames"
	"github.com/bravais-data/beamtrace/internal/pattern"
)

// Peak is one detected diffraction peak. Sigma is the scale at which
// the blob responded most strongly; Value is the detector response.
type Peak struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Sigma float64 `json:"sigma"`
	Value float64 `json:"value"`
}

// DoGParams tunes the difference-of-Gaussians blob detector.
type DoGParams struct {
	MinSigma       float64 // smallest blob scale
	MaxSigma       float64 // largest blob scale
	SigmaRatio     float64 // ratio between successive scales (> 1)
	Threshold      float64 // minimum normalised response
	Overlap        float64 // fraction of summed radii below which blobs merge
	NormalizeValue float64 // divisor for intensities; 0 = frame maximum
}

// DefaultDoGParams returns detector defaults tuned for convergent-beam
// patterns.
func DefaultDoGParams() DoGParams {
	return DoGParams{
		MinSigma:   0.98,
		MaxSigma:   55,
		SigmaRatio: 1.76,
		Threshold:  0.36,
		Overlap:    0.81,
	}
}

// FindPeaksDoG detects blobs in a frame. The frame is normalised (by
// NormalizeValue or its own maximum), blurred along a geometric sigma
// ladder, and local maxima of the scale-normalised differences above
// Threshold are reported. Overlapping detections keep only the
// strongest response. Returns nil for a frame without signal.
func FindPeaksDoG(f *frames.Frame, p DoGParams) []Peak {
	if p.SigmaRatio <= 1 || p.MinSigma <= 0 || p.MaxSigma <= p.MinSigma {
		return nil
	}
	norm := p.NormalizeValue
	if norm == 0 {
		norm = f.Max()
	}
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil
	}

	rows, cols := f.Rows(), f.Cols()
	scaled := frames.NewFrame(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			scaled.Set(r, c, f.At(r, c)/norm)
		}
	}

	// Geometric sigma ladder; one extra level past MaxSigma so the last
	// in-range scale still has an upper neighbour.
	var sigmas []float64
	for s := p.MinSigma; s < p.MaxSigma*p.SigmaRatio; s *= p.SigmaRatio {
		sigmas = append(sigmas, s)
	}
	if len(sigmas) < 2 {
		return nil
	}

	blurred := make([]*frames.Frame, len(sigmas))
	for i, s := range sigmas {
		blurred[i] = pattern.GaussianBlur(scaled, s)
	}

	sf := 1 / (p.SigmaRatio - 1)
	dogs := make([]*frames.Frame, len(sigmas)-1)
	for i := range dogs {
		d := frames.NewFrame(rows, cols, nil)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				d.Set(r, c, (blurred[i].At(r, c)-blurred[i+1].At(r, c))*sf)
			}
		}
		dogs[i] = d
	}

	var found []Peak
	for si, d := range dogs {
		for r := 1; r < rows-1; r++ {
			for c := 1; c < cols-1; c++ {
				v := d.At(r, c)
				if v <= p.Threshold {
					continue
				}
				if !isScaleSpaceMax(dogs, si, r, c, v) {
					continue
				}
				found = append(found, Peak{
					X: float64(c), Y: float64(r),
					Sigma: sigmas[si], Value: v,
				})
			}
		}
	}

	return pruneOverlaps(found, p.Overlap)
}

// isScaleSpaceMax checks v against the 3x3 neighbourhood at its own
// scale and the adjacent scales.
func isScaleSpaceMax(dogs []*frames.Frame, si, r, c int, v float64) bool {
	for ds := -1; ds <= 1; ds++ {
		s := si + ds
		if s < 0 || s >= len(dogs) {
			continue
		}
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if ds == 0 && dr == 0 && dc == 0 {
					continue
				}
				if dogs[s].At(r+dr, c+dc) >= v {
					return false
				}
			}
		}
	}
	return true
}

// pruneOverlaps keeps the strongest of any pair of blobs whose centres
// sit closer than overlap times their summed radii (radius = sigma*sqrt2).
func pruneOverlaps(found []Peak, overlap float64) []Peak {
	if len(found) == 0 {
		return nil
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Value != found[j].Value {
			return found[i].Value > found[j].Value
		}
		if found[i].Y != found[j].Y {
			return found[i].Y < found[j].Y
		}
		return found[i].X < found[j].X
	})

	var kept []Peak
	for _, cand := range found {
		ok := true
		for _, k := range kept {
			dx := cand.X - k.X
			dy := cand.Y - k.Y
			limit := overlap * math.Sqrt2 * (cand.Sigma + k.Sigma)
			if math.Hypot(dx, dy) < limit {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, cand)
		}
	}

	// Report in scan order for deterministic downstream processing.
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Y != kept[j].Y {
			return kept[i].Y < kept[j].Y
		}
		return kept[i].X < kept[j].X
	})
	return kept
}
