// Package locate computes the direct beam position in every frame of a
// frame stack. It supports fully resident stacks (processed frame by
// frame) and chunked stacks (per-chunk work scheduled on a bounded
// worker pool, results reassembled in frame order).
//
// Positions are reported as (x, y): x is the column coordinate, y the
// row coordinate. This convention is part of the package contract; see
// Position.
package locate

import (
	"errors"
	"fmt"
)

// ErrUnknownMethod is returned for a method outside the closed set.
var ErrUnknownMethod = errors.New("locate: unknown method")

// ErrBadOptions is returned when option validation fails.
var ErrBadOptions = errors.New("locate: invalid options")

// Method selects the beam location algorithm. The set is a closed
// enumeration rather than a registry, so wiring stays explicit and an
// unknown value is a configuration error, not a silent fallback.
type Method int

const (
	// MethodUnknown is the zero value and never valid.
	MethodUnknown Method = iota
	// MethodCenterOfMass locates the beam at the intensity-weighted
	// centroid, optionally thresholded and masked.
	MethodCenterOfMass
	// MethodRefinedCenterOfMass refines the centroid estimate with a
	// second centre of mass over a square window (subpixel).
	MethodRefinedCenterOfMass
	// MethodCrossCorrelate matches a simulated disc template by
	// normalised cross-correlation, with optional parabolic subpixel
	// refinement of the correlation peak.
	MethodCrossCorrelate
)

// String returns the stable method name used in configuration, storage
// and the HTTP API.
func (m Method) String() string {
	switch m {
	case MethodCenterOfMass:
		return "center_of_mass"
	case MethodRefinedCenterOfMass:
		return "refined_center_of_mass"
	case MethodCrossCorrelate:
		return "cross_correlate"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMethod maps a stable method name back to its Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "center_of_mass":
		return MethodCenterOfMass, nil
	case "refined_center_of_mass":
		return MethodRefinedCenterOfMass, nil
	case "cross_correlate":
		return MethodCrossCorrelate, nil
	default:
		return MethodUnknown, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Valid reports whether the method belongs to the closed set.
func (m Method) Valid() bool {
	switch m {
	case MethodCenterOfMass, MethodRefinedCenterOfMass, MethodCrossCorrelate:
		return true
	default:
		return false
	}
}
