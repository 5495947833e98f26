package frames

import (
	"context"
	"errors"
	"fmt"
)

// FrameStack is an ordered sequence of 2D frames sharing identical
// spatial dimensions. Stacks are read-only to consumers; processing
// never mutates frame data.
type FrameStack interface {
	// Len returns the number of frames in navigation order.
	Len() int
	// Rows and Cols return the shared spatial dimensions.
	Rows() int
	Cols() int
	// Validate checks the uniform-shape invariant. It must be cheap
	// enough to call before every batch operation.
	Validate() error
}

// EagerStack is a fully resident stack with direct frame access.
type EagerStack interface {
	FrameStack
	// Frame returns the frame at the given navigation index.
	Frame(i int) *Frame
}

// LazyStack is a stack whose frames are split into contiguous chunks
// materialised on demand. Chunk loads are independent and safe to run
// concurrently.
type LazyStack interface {
	FrameStack
	// NumChunks returns the number of chunks.
	NumChunks() int
	// ChunkRange returns the half-open frame index range [lo, hi) that
	// chunk i covers.
	ChunkRange(i int) (lo, hi int)
	// LoadChunk materialises the frames of chunk i in navigation order.
	LoadChunk(ctx context.Context, i int) ([]*Frame, error)
}

// MemStack is a fully resident frame stack.
//
// NewMemStack does not validate frame shapes so callers can construct a
// deliberately inconsistent stack in tests; batch operations call
// Validate before any per-frame work.
type MemStack struct {
	frames []*Frame
}

// NewMemStack creates a stack from the given frames. The slice is used
// directly, not copied.
func NewMemStack(fs ...*Frame) *MemStack {
	return &MemStack{frames: fs}
}

// Len returns the number of frames.
func (s *MemStack) Len() int { return len(s.frames) }

// Rows returns the row count of the first frame, or 0 for an empty stack.
func (s *MemStack) Rows() int {
	if len(s.frames) == 0 {
		return 0
	}
	return s.frames[0].Rows()
}

// Cols returns the column count of the first frame, or 0 for an empty stack.
func (s *MemStack) Cols() int {
	if len(s.frames) == 0 {
		return 0
	}
	return s.frames[0].Cols()
}

// Frame returns the frame at index i.
func (s *MemStack) Frame(i int) *Frame { return s.frames[i] }

// Validate checks that every frame shares the shape of the first.
func (s *MemStack) Validate() error {
	if len(s.frames) == 0 {
		return errors.New("frames: empty stack")
	}
	rows, cols := s.Rows(), s.Cols()
	for i, f := range s.frames {
		if err := checkShape(f, i, rows, cols); err != nil {
			return err
		}
	}
	return nil
}

// Chunked splits the stack into a lazy view with the given chunk size.
// Useful for exercising the chunked execution path against resident data.
func (s *MemStack) Chunked(chunkFrames int) (*ChunkedStack, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	loader := &memChunkLoader{stack: s}
	return NewChunkedStack(loader, s.Len(), s.Rows(), s.Cols(), chunkFrames)
}

var _ EagerStack = (*MemStack)(nil)

// memChunkLoader serves chunks straight out of a MemStack.
type memChunkLoader struct {
	stack *MemStack
}

func (l *memChunkLoader) LoadFrames(ctx context.Context, lo, hi int) ([]*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if lo < 0 || hi > l.stack.Len() || lo > hi {
		return nil, fmt.Errorf("frames: chunk range [%d,%d) out of bounds", lo, hi)
	}
	return l.stack.frames[lo:hi], nil
}
