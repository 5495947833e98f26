package locate

import (
	"fmt"

	"github.com/bravais-data/beamtrace/internal/frames"
	"github.com/bravais-data/beamtrace/internal/pattern"
)

// Preprocess selects an optional per-frame background removal step run
// before the location method.
type Preprocess int

const (
	// PreprocessNone runs the method on the raw frame.
	PreprocessNone Preprocess = iota
	// PreprocessDoG removes background with a difference of Gaussians.
	PreprocessDoG
	// PreprocessMedian subtracts a square median filter.
	PreprocessMedian
	// PreprocessRadialMedian subtracts the per-radius median from the
	// frame centre.
	PreprocessRadialMedian
)

// String returns the stable preprocess name.
func (p Preprocess) String() string {
	switch p {
	case PreprocessNone:
		return "none"
	case PreprocessDoG:
		return "dog"
	case PreprocessMedian:
		return "median"
	case PreprocessRadialMedian:
		return "radial_median"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParsePreprocess maps a stable preprocess name to its value.
func ParsePreprocess(s string) (Preprocess, error) {
	switch s {
	case "", "none":
		return PreprocessNone, nil
	case "dog":
		return PreprocessDoG, nil
	case "median":
		return PreprocessMedian, nil
	case "radial_median":
		return PreprocessRadialMedian, nil
	default:
		return PreprocessNone, fmt.Errorf("%w: unknown preprocess %q", ErrBadOptions, s)
	}
}

// Options tunes the location methods. The zero value plus DefaultOptions
// gives sensible behaviour; fields irrelevant to the chosen method are
// ignored.
type Options struct {
	// ThresholdMultiple binarises the frame at mean*multiple before the
	// centre-of-mass sum. 0 disables thresholding.
	ThresholdMultiple float64 `json:"threshold_multiple"`
	// MaskRadius restricts centre-of-mass sums to a circular region of
	// this radius around the frame centre. 0 disables masking.
	MaskRadius float64 `json:"mask_radius"`
	// WindowSize is the square size for the refined centre-of-mass
	// window. Must be even and at least 4.
	WindowSize int `json:"window_size"`
	// DiscRadius is the simulated disc radius for cross-correlation.
	DiscRadius int `json:"disc_radius"`
	// Subpixel enables parabolic refinement of the correlation peak.
	Subpixel bool `json:"subpixel"`
	// Preprocess selects the background removal step.
	Preprocess Preprocess `json:"-"`
	// PreprocessName is the serialised form of Preprocess.
	PreprocessName string `json:"preprocess,omitempty"`
	// MinSigma and MaxSigma tune the difference-of-Gaussians
	// preprocess.
	MinSigma float64 `json:"min_sigma,omitempty"`
	// MaxSigma; see MinSigma.
	MaxSigma float64 `json:"max_sigma,omitempty"`
	// Footprint tunes the median preprocess window.
	Footprint int `json:"footprint,omitempty"`
	// Workers bounds chunk parallelism for lazy stacks. 0 means one
	// worker per chunk up to a small default limit.
	Workers int `json:"workers,omitempty"`
}

// DefaultOptions returns the documented defaults: no threshold, no
// mask, a 10-pixel refinement window, a 4-pixel disc and subpixel
// refinement enabled.
func DefaultOptions() Options {
	return Options{
		WindowSize: 10,
		DiscRadius: 4,
		Subpixel:   true,
		MinSigma:   1,
		MaxSigma:   55,
		Footprint:  19,
	}
}

// normalized fills unset fields from the defaults and resolves the
// preprocess name.
func (o Options) normalized() (Options, error) {
	def := DefaultOptions()
	if o.WindowSize == 0 {
		o.WindowSize = def.WindowSize
	}
	if o.DiscRadius == 0 {
		o.DiscRadius = def.DiscRadius
	}
	if o.MinSigma == 0 {
		o.MinSigma = def.MinSigma
	}
	if o.MaxSigma == 0 {
		o.MaxSigma = def.MaxSigma
	}
	if o.Footprint == 0 {
		o.Footprint = def.Footprint
	}
	if o.PreprocessName != "" && o.Preprocess == PreprocessNone {
		p, err := ParsePreprocess(o.PreprocessName)
		if err != nil {
			return o, err
		}
		o.Preprocess = p
	}
	o.PreprocessName = o.Preprocess.String()
	return o, nil
}

// validate checks option ranges after normalisation.
func (o Options) validate() error {
	if o.ThresholdMultiple < 0 {
		return fmt.Errorf("%w: threshold_multiple must be >= 0, got %v", ErrBadOptions, o.ThresholdMultiple)
	}
	if o.MaskRadius < 0 {
		return fmt.Errorf("%w: mask_radius must be >= 0, got %v", ErrBadOptions, o.MaskRadius)
	}
	if o.WindowSize < 4 || o.WindowSize%2 != 0 {
		return fmt.Errorf("%w: window_size must be even and >= 4, got %d", ErrBadOptions, o.WindowSize)
	}
	if o.DiscRadius < 1 {
		return fmt.Errorf("%w: disc_radius must be >= 1, got %d", ErrBadOptions, o.DiscRadius)
	}
	if o.MinSigma <= 0 || o.MaxSigma <= o.MinSigma {
		return fmt.Errorf("%w: need 0 < min_sigma < max_sigma, got %v and %v",
			ErrBadOptions, o.MinSigma, o.MaxSigma)
	}
	if o.Footprint < 1 {
		return fmt.Errorf("%w: footprint must be >= 1, got %d", ErrBadOptions, o.Footprint)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrBadOptions, o.Workers)
	}
	return nil
}

// preprocessFrame applies the configured background removal.
func (o Options) preprocessFrame(f *frames.Frame) *frames.Frame {
	switch o.Preprocess {
	case PreprocessDoG:
		return pattern.RemoveBackgroundDoG(f, o.MinSigma, o.MaxSigma)
	case PreprocessMedian:
		return pattern.RemoveBackgroundMedian(f, o.Footprint)
	case PreprocessRadialMedian:
		return pattern.RemoveBackgroundRadialMedian(f)
	default:
		return f
	}
}
