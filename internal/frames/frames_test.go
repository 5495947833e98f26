package frames

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func rampFrame(rows, cols int, offset float64) *Frame {
	f := NewFrame(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			f.Set(r, c, offset+float64(r*cols+c))
		}
	}
	return f
}

func TestFrameBasics(t *testing.T) {
	f := rampFrame(4, 6, 0)
	if f.Rows() != 4 || f.Cols() != 6 {
		t.Fatalf("shape = %dx%d, want 4x6", f.Rows(), f.Cols())
	}
	if got := f.At(1, 2); got != 8 {
		t.Errorf("At(1,2) = %v, want 8", got)
	}
	if got := f.Sum(); got != 276 {
		t.Errorf("Sum = %v, want 276", got)
	}
	if got := f.Mean(); got != 11.5 {
		t.Errorf("Mean = %v, want 11.5", got)
	}
	if got := f.Max(); got != 23 {
		t.Errorf("Max = %v, want 23", got)
	}

	clone := f.Clone()
	clone.Set(0, 0, 99)
	if f.At(0, 0) == 99 {
		t.Error("Clone shares storage with original")
	}
}

func TestFrameIsFinite(t *testing.T) {
	f := rampFrame(3, 3, 0)
	if !f.IsFinite() {
		t.Error("finite frame reported non-finite")
	}
	f.Set(1, 1, math.NaN())
	if f.IsFinite() {
		t.Error("NaN frame reported finite")
	}
}

func TestMemStackValidate(t *testing.T) {
	ok := NewMemStack(rampFrame(4, 4, 0), rampFrame(4, 4, 1))
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	bad := NewMemStack(rampFrame(4, 4, 0), rampFrame(4, 5, 0))
	err := bad.Validate()
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("Validate() = %v, want ErrShapeMismatch", err)
	}

	empty := NewMemStack()
	if err := empty.Validate(); err == nil {
		t.Error("empty stack Validate() = nil, want error")
	}
}

func TestChunkedStackRanges(t *testing.T) {
	mem := NewMemStack(
		rampFrame(2, 2, 0), rampFrame(2, 2, 1), rampFrame(2, 2, 2),
		rampFrame(2, 2, 3), rampFrame(2, 2, 4),
	)
	cs, err := mem.Chunked(2)
	if err != nil {
		t.Fatalf("Chunked: %v", err)
	}
	if cs.NumChunks() != 3 {
		t.Fatalf("NumChunks = %d, want 3", cs.NumChunks())
	}

	wantRanges := [][2]int{{0, 2}, {2, 4}, {4, 5}}
	for i, want := range wantRanges {
		lo, hi := cs.ChunkRange(i)
		if lo != want[0] || hi != want[1] {
			t.Errorf("ChunkRange(%d) = [%d,%d), want [%d,%d)", i, lo, hi, want[0], want[1])
		}
	}

	fs, err := cs.LoadChunk(context.Background(), 2)
	if err != nil {
		t.Fatalf("LoadChunk: %v", err)
	}
	if len(fs) != 1 {
		t.Fatalf("LoadChunk(2) returned %d frames, want 1", len(fs))
	}
	if got := fs[0].At(0, 0); got != 4 {
		t.Errorf("chunk 2 frame value = %v, want 4", got)
	}
}

func TestChunkedStackCancelled(t *testing.T) {
	mem := NewMemStack(rampFrame(2, 2, 0), rampFrame(2, 2, 1))
	cs, err := mem.Chunked(1)
	if err != nil {
		t.Fatalf("Chunked: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cs.LoadChunk(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("LoadChunk after cancel = %v, want context.Canceled", err)
	}
}

// badLoader returns frames of the wrong shape to exercise the geometry
// check on loaded chunks.
type badLoader struct{}

func (badLoader) LoadFrames(ctx context.Context, lo, hi int) ([]*Frame, error) {
	out := make([]*Frame, hi-lo)
	for i := range out {
		out[i] = NewFrame(3, 3, nil)
	}
	return out, nil
}

func TestChunkedStackShapeCheck(t *testing.T) {
	cs, err := NewChunkedStack(badLoader{}, 4, 2, 2, 2)
	if err != nil {
		t.Fatalf("NewChunkedStack: %v", err)
	}
	if _, err := cs.LoadChunk(context.Background(), 0); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("LoadChunk = %v, want ErrShapeMismatch", err)
	}
}

func TestRawStackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.raw")

	mem := NewMemStack(
		rampFrame(3, 4, 0), rampFrame(3, 4, 10), rampFrame(3, 4, 20),
	)
	if err := WriteRawStack(path, mem, 2); err != nil {
		t.Fatalf("WriteRawStack: %v", err)
	}

	stack, closer, err := OpenRawStack(path)
	if err != nil {
		t.Fatalf("OpenRawStack: %v", err)
	}
	defer closer()

	if stack.Len() != 3 || stack.Rows() != 3 || stack.Cols() != 4 {
		t.Fatalf("geometry = %d frames %dx%d, want 3 frames 3x4",
			stack.Len(), stack.Rows(), stack.Cols())
	}
	if stack.NumChunks() != 2 {
		t.Fatalf("NumChunks = %d, want 2", stack.NumChunks())
	}

	for ci := 0; ci < stack.NumChunks(); ci++ {
		lo, _ := stack.ChunkRange(ci)
		fs, err := stack.LoadChunk(context.Background(), ci)
		if err != nil {
			t.Fatalf("LoadChunk(%d): %v", ci, err)
		}
		for j, f := range fs {
			want := mem.Frame(lo + j)
			for r := 0; r < 3; r++ {
				for c := 0; c < 4; c++ {
					if f.At(r, c) != want.At(r, c) {
						t.Fatalf("frame %d (%d,%d) = %v, want %v",
							lo+j, r, c, f.At(r, c), want.At(r, c))
					}
				}
			}
		}
	}
}

func TestOpenRawStackMissingHeader(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := OpenRawStack(filepath.Join(dir, "missing.raw")); err == nil {
		t.Error("OpenRawStack on missing file = nil error")
	}
}
