package locate

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/bravais-data/beamtrace/internal/frames"
	"github.com/bravais-data/beamtrace/internal/monitoring"
	"github.com/bravais-data/beamtrace/internal/pattern"
)

// Locate computes the direct beam position of every frame in the stack.
//
// Structural and configuration problems (mismatched frame shapes,
// unknown method, invalid options) abort the whole call. Per-frame
// numerical failures do not: the affected frames are reported in the
// result's Failures and every other frame still yields a position.
//
// Eager stacks are processed frame by frame on the calling goroutine.
// Lazy stacks are processed chunk by chunk on a bounded worker pool;
// chunks are independent, and the result is reassembled in original
// frame order regardless of completion order. Both paths produce
// identical results for identical data.
func Locate(ctx context.Context, stack frames.FrameStack, method Method, opts Options) (*PositionMap, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := stack.Validate(); err != nil {
		return nil, err
	}

	k := newKernel(method, opts, stack.Rows(), stack.Cols())

	switch s := stack.(type) {
	case frames.EagerStack:
		return locateEager(ctx, s, k)
	case frames.LazyStack:
		return locateLazy(ctx, s, k)
	default:
		return nil, fmt.Errorf("locate: unsupported stack type %T", stack)
	}
}

// kernel bundles a method with per-call precomputed state (mask, disc
// template) shared read-only across frames.
type kernel struct {
	method Method
	opts   Options
	keep   *pattern.Mask
	disc   *frames.Frame
}

func newKernel(method Method, opts Options, rows, cols int) *kernel {
	k := &kernel{method: method, opts: opts}
	if opts.MaskRadius > 0 {
		k.keep = pattern.CircularMask(rows, cols, opts.MaskRadius)
	}
	if method == MethodCrossCorrelate {
		k.disc = pattern.DiscTemplate(opts.DiscRadius)
	}
	return k
}

// locateFrame runs the configured method on one frame.
func (k *kernel) locateFrame(f *frames.Frame) (Position, error) {
	f = k.opts.preprocessFrame(f)

	switch k.method {
	case MethodCenterOfMass:
		x, y, err := pattern.CenterOfMass(f, k.opts.ThresholdMultiple, k.keep)
		if err != nil {
			return Position{}, err
		}
		return Position{X: x, Y: y}, nil

	case MethodRefinedCenterOfMass:
		x, y, err := pattern.CenterOfMass(f, k.opts.ThresholdMultiple, k.keep)
		if err != nil {
			return Position{}, err
		}
		x, y = pattern.RefineCOM(f, x, y, k.opts.WindowSize)
		return Position{X: x, Y: y}, nil

	case MethodCrossCorrelate:
		corr := pattern.MatchTemplate(f, k.disc)
		x, y, ok := pattern.CorrelationPeak(corr, k.opts.Subpixel)
		if !ok {
			return Position{}, pattern.ErrNoSignal
		}
		return Position{X: x, Y: y}, nil

	default:
		return Position{}, fmt.Errorf("%w: %s", ErrUnknownMethod, k.method)
	}
}

// locateRange processes frames fs covering stack indices [lo, lo+len).
// Positions land directly in pm; failures are returned for merging.
func (k *kernel) locateRange(fs []*frames.Frame, lo int, pm *PositionMap) []FrameFailure {
	var failures []FrameFailure
	for j, f := range fs {
		idx := lo + j
		pos, err := k.locateFrame(f)
		if err != nil {
			failures = append(failures, FrameFailure{FrameIndex: idx, Reason: err.Error()})
			continue
		}
		pm.Positions[idx] = pos
	}
	return failures
}

func locateEager(ctx context.Context, stack frames.EagerStack, k *kernel) (*PositionMap, error) {
	pm := newPositionMap(stack.Len())
	for i := 0; i < stack.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pm.Failures = append(pm.Failures, k.locateRange(
			[]*frames.Frame{stack.Frame(i)}, i, pm)...)
	}
	return pm, nil
}

func locateLazy(ctx context.Context, stack frames.LazyStack, k *kernel) (*PositionMap, error) {
	pm := newPositionMap(stack.Len())
	numChunks := stack.NumChunks()

	workers := k.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > numChunks {
		workers = numChunks
	}

	// Each chunk writes a disjoint slice of pm.Positions, so no locking
	// is needed; failures are collected per chunk and merged in chunk
	// order to keep them sorted by frame index.
	chunkFailures := make([][]FrameFailure, numChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for ci := 0; ci < numChunks; ci++ {
		g.Go(func() error {
			fs, err := stack.LoadChunk(gctx, ci)
			if err != nil {
				return err
			}
			lo, hi := stack.ChunkRange(ci)
			chunkFailures[ci] = k.locateRange(fs, lo, pm)
			monitoring.Debugf("locate chunk %d: frames [%d,%d), %d failures",
				ci, lo, hi, len(chunkFailures[ci]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, fails := range chunkFailures {
		pm.Failures = append(pm.Failures, fails...)
	}
	return pm, nil
}
