// Package testutil provides shared test utilities and fixtures:
// synthetic diffraction frames and small HTTP assertion helpers.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bravais-data/beamtrace/internal/frames"
)

// GaussianSpotFrame returns a frame with a single Gaussian spot of the
// given amplitude and width centred at (cx, cy) in (x, y) order.
func GaussianSpotFrame(rows, cols int, cx, cy, sigma, amplitude float64) *frames.Frame {
	f := frames.NewFrame(rows, cols, nil)
	for r := 0; r < rows; r++ {
		dy := float64(r) - cy
		for c := 0; c < cols; c++ {
			dx := float64(c) - cx
			f.Set(r, c, amplitude*math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma)))
		}
	}
	return f
}

// DiscFrame returns a frame with a binary disc of the given radius
// centred at (cx, cy) in (x, y) order.
func DiscFrame(rows, cols, cx, cy, radius int) *frames.Frame {
	f := frames.NewFrame(rows, cols, nil)
	r2 := float64(radius * radius)
	for r := 0; r < rows; r++ {
		dy := float64(r - cy)
		for c := 0; c < cols; c++ {
			dx := float64(c - cx)
			if dx*dx+dy*dy <= r2 {
				f.Set(r, c, 1)
			}
		}
	}
	return f
}

// DriftingSpotStack returns a stack of n frames whose Gaussian spot
// drifts one pixel in x per frame starting from (x0, y0).
func DriftingSpotStack(n, rows, cols int, x0, y0 float64) *frames.MemStack {
	fs := make([]*frames.Frame, n)
	for i := range fs {
		fs[i] = GaussianSpotFrame(rows, cols, x0+float64(i), y0, 1.5, 100)
	}
	return frames.NewMemStack(fs...)
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
