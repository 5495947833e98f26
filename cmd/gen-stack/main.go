// Command gen-stack writes a synthetic raw diffraction stack: a
// Gaussian beam spot drifting across the detector frame by frame, with
// optional noise. Useful for exercising the locate pipeline without
// instrument data.
package main

import (
	"flag"
	"log"
	"math"
	"math/rand"

	"github.com/bravais-data/beamtrace/internal/frames"
)

var (
	out       = flag.String("out", "stack.raw", "Output raw stack path (header written alongside)")
	numFrames = flag.Int("frames", 64, "Number of frames")
	rows      = flag.Int("rows", 128, "Frame rows")
	cols      = flag.Int("cols", 128, "Frame columns")
	x0        = flag.Float64("x0", 64, "Initial beam x (column)")
	y0        = flag.Float64("y0", 64, "Initial beam y (row)")
	driftX    = flag.Float64("drift-x", 0.1, "Beam drift in x per frame")
	driftY    = flag.Float64("drift-y", 0, "Beam drift in y per frame")
	sigma     = flag.Float64("sigma", 3, "Beam spot width")
	amplitude = flag.Float64("amplitude", 1000, "Beam peak intensity")
	noise     = flag.Float64("noise", 0, "Uniform noise amplitude")
	chunk     = flag.Int("chunk", 16, "Chunk size recorded in the header")
	seed      = flag.Int64("seed", 1, "Noise RNG seed")
)

func main() {
	flag.Parse()

	if *numFrames <= 0 || *rows <= 0 || *cols <= 0 {
		log.Fatalf("invalid geometry: %d frames of %dx%d", *numFrames, *rows, *cols)
	}

	rng := rand.New(rand.NewSource(*seed))

	fs := make([]*frames.Frame, *numFrames)
	for i := range fs {
		cx := *x0 + float64(i)**driftX
		cy := *y0 + float64(i)**driftY
		f := frames.NewFrame(*rows, *cols, nil)
		for r := 0; r < *rows; r++ {
			dy := float64(r) - cy
			for c := 0; c < *cols; c++ {
				dx := float64(c) - cx
				v := *amplitude * math.Exp(-(dx*dx+dy*dy)/(2**sigma**sigma))
				if *noise > 0 {
					v += rng.Float64() * *noise
				}
				f.Set(r, c, v)
			}
		}
		fs[i] = f
	}

	stack := frames.NewMemStack(fs...)
	if err := frames.WriteRawStack(*out, stack, *chunk); err != nil {
		log.Fatalf("failed to write stack: %v", err)
	}
	log.Printf("wrote %d frames of %dx%d to %s (chunk size %d)",
		*numFrames, *rows, *cols, *out, *chunk)
}
