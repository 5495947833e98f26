package frames

import (
	"context"
	"fmt"
)

// ChunkLoader materialises a contiguous frame range. Implementations
// must be safe for concurrent use; chunk loads for one stack may run in
// parallel on a worker pool.
type ChunkLoader interface {
	LoadFrames(ctx context.Context, lo, hi int) ([]*Frame, error)
}

// ChunkedStack is a lazily evaluated frame stack backed by a ChunkLoader.
// The stack records only its declared geometry; loaded frames are checked
// against it so a misbehaving loader surfaces as ErrShapeMismatch rather
// than corrupting downstream results.
type ChunkedStack struct {
	loader      ChunkLoader
	numFrames   int
	rows, cols  int
	chunkFrames int
}

// NewChunkedStack creates a lazy stack over numFrames frames of shape
// rows x cols, split into chunks of chunkFrames (the final chunk may be
// shorter).
func NewChunkedStack(loader ChunkLoader, numFrames, rows, cols, chunkFrames int) (*ChunkedStack, error) {
	if numFrames <= 0 {
		return nil, fmt.Errorf("frames: chunked stack needs at least one frame, got %d", numFrames)
	}
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("frames: invalid frame shape %dx%d", rows, cols)
	}
	if chunkFrames <= 0 {
		return nil, fmt.Errorf("frames: chunk size must be positive, got %d", chunkFrames)
	}
	return &ChunkedStack{
		loader:      loader,
		numFrames:   numFrames,
		rows:        rows,
		cols:        cols,
		chunkFrames: chunkFrames,
	}, nil
}

// Len returns the declared number of frames.
func (s *ChunkedStack) Len() int { return s.numFrames }

// Rows returns the declared row count.
func (s *ChunkedStack) Rows() int { return s.rows }

// Cols returns the declared column count.
func (s *ChunkedStack) Cols() int { return s.cols }

// Validate checks the declared geometry. Per-frame shape checks happen
// as chunks are loaded.
func (s *ChunkedStack) Validate() error {
	if s.numFrames <= 0 || s.rows <= 0 || s.cols <= 0 {
		return fmt.Errorf("frames: invalid chunked stack geometry %d frames %dx%d",
			s.numFrames, s.rows, s.cols)
	}
	return nil
}

// NumChunks returns the number of chunks covering the stack.
func (s *ChunkedStack) NumChunks() int {
	return (s.numFrames + s.chunkFrames - 1) / s.chunkFrames
}

// ChunkRange returns the half-open frame range [lo, hi) of chunk i.
func (s *ChunkedStack) ChunkRange(i int) (lo, hi int) {
	lo = i * s.chunkFrames
	hi = lo + s.chunkFrames
	if hi > s.numFrames {
		hi = s.numFrames
	}
	return lo, hi
}

// LoadChunk materialises chunk i and verifies the loaded frames against
// the declared stack geometry.
func (s *ChunkedStack) LoadChunk(ctx context.Context, i int) ([]*Frame, error) {
	lo, hi := s.ChunkRange(i)
	fs, err := s.loader.LoadFrames(ctx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("load chunk %d: %w", i, err)
	}
	if len(fs) != hi-lo {
		return nil, fmt.Errorf("frames: chunk %d returned %d frames, want %d", i, len(fs), hi-lo)
	}
	for j, f := range fs {
		if err := checkShape(f, lo+j, s.rows, s.cols); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

var _ LazyStack = (*ChunkedStack)(nil)
