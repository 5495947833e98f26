package frames

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// RawStack is a minimal on-disk stack format for datasets too large to
// hold in memory: a flat file of little-endian float32 frames plus a
// JSON sidecar header describing the geometry.
//
// For "stack.raw" the header lives at "stack.raw.json".
type RawStackHeader struct {
	Frames      int    `json:"frames"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
	ChunkFrames int    `json:"chunk_frames"`
	DType       string `json:"dtype"` // currently always "float32"
}

const rawDType = "float32"

// headerPath returns the sidecar path for a raw data file.
func headerPath(dataPath string) string {
	return dataPath + ".json"
}

// OpenRawStack opens a raw stack file as a lazily evaluated ChunkedStack
// using the chunk size recorded in the header. The returned closer
// releases the underlying file handle.
func OpenRawStack(path string) (*ChunkedStack, func() error, error) {
	return OpenRawStackChunked(path, 0)
}

// OpenRawStackChunked opens a raw stack with an explicit chunk size,
// overriding the header value. chunkFrames <= 0 keeps the header's.
func OpenRawStackChunked(path string, chunkFrames int) (*ChunkedStack, func() error, error) {
	hdr, err := readRawHeader(headerPath(path))
	if err != nil {
		return nil, nil, err
	}
	if chunkFrames > 0 {
		hdr.ChunkFrames = chunkFrames
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("open raw stack: %w", err)
	}

	frameBytes := int64(hdr.Rows) * int64(hdr.Cols) * 4
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat raw stack: %w", err)
	}
	if want := frameBytes * int64(hdr.Frames); info.Size() < want {
		f.Close()
		return nil, nil, fmt.Errorf("raw stack %s truncated: %d bytes, header needs %d",
			path, info.Size(), want)
	}

	loader := &rawChunkLoader{file: f, hdr: hdr}
	stack, err := NewChunkedStack(loader, hdr.Frames, hdr.Rows, hdr.Cols, hdr.ChunkFrames)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return stack, f.Close, nil
}

func readRawHeader(path string) (RawStackHeader, error) {
	var hdr RawStackHeader
	clean := filepath.Clean(path)
	if !strings.HasSuffix(clean, ".json") {
		return hdr, fmt.Errorf("raw stack header must be a .json file, got %q", clean)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return hdr, fmt.Errorf("read raw stack header: %w", err)
	}
	if err := json.Unmarshal(data, &hdr); err != nil {
		return hdr, fmt.Errorf("parse raw stack header: %w", err)
	}
	if hdr.DType != rawDType {
		return hdr, fmt.Errorf("unsupported raw stack dtype %q", hdr.DType)
	}
	if hdr.Frames <= 0 || hdr.Rows <= 0 || hdr.Cols <= 0 {
		return hdr, fmt.Errorf("invalid raw stack geometry: %d frames %dx%d",
			hdr.Frames, hdr.Rows, hdr.Cols)
	}
	if hdr.ChunkFrames <= 0 {
		hdr.ChunkFrames = 1
	}
	return hdr, nil
}

// rawChunkLoader reads frame ranges with positional reads, so concurrent
// chunk loads never contend on a shared file offset.
type rawChunkLoader struct {
	file *os.File
	hdr  RawStackHeader
}

func (l *rawChunkLoader) LoadFrames(ctx context.Context, lo, hi int) ([]*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frameVals := l.hdr.Rows * l.hdr.Cols
	buf := make([]byte, (hi-lo)*frameVals*4)
	off := int64(lo) * int64(frameVals) * 4
	if _, err := l.file.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("read frames [%d,%d): %w", lo, hi, err)
	}

	out := make([]*Frame, hi-lo)
	for i := range out {
		data := make([]float64, frameVals)
		base := i * frameVals * 4
		for j := 0; j < frameVals; j++ {
			bits := binary.LittleEndian.Uint32(buf[base+j*4:])
			data[j] = float64(math.Float32frombits(bits))
		}
		out[i] = NewFrame(l.hdr.Rows, l.hdr.Cols, data)
	}
	return out, nil
}

// WriteRawStack writes a resident stack to the raw format, splitting it
// into chunks of chunkFrames for later lazy reads. Intended for test
// data generation and small exports; values are narrowed to float32.
func WriteRawStack(path string, stack EagerStack, chunkFrames int) error {
	if err := stack.Validate(); err != nil {
		return err
	}
	if chunkFrames <= 0 {
		chunkFrames = 1
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create raw stack: %w", err)
	}
	defer f.Close()

	rows, cols := stack.Rows(), stack.Cols()
	buf := make([]byte, rows*cols*4)
	for i := 0; i < stack.Len(); i++ {
		fr := stack.Frame(i)
		k := 0
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				binary.LittleEndian.PutUint32(buf[k:], math.Float32bits(float32(fr.At(r, c))))
				k += 4
			}
		}
		if _, err := f.Write(buf); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}

	hdr := RawStackHeader{
		Frames:      stack.Len(),
		Rows:        rows,
		Cols:        cols,
		ChunkFrames: chunkFrames,
		DType:       rawDType,
	}
	hdrData, err := json.MarshalIndent(hdr, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal raw stack header: %w", err)
	}
	if err := os.WriteFile(headerPath(path), hdrData, 0644); err != nil {
		return fmt.Errorf("write raw stack header: %w", err)
	}
	return nil
}
