package testutil

import (
	"errors"
	"math"
	"net/http"
	"testing"
)

func TestGaussianSpotFrame(t *testing.T) {
	t.Parallel()

	f := GaussianSpotFrame(16, 16, 7, 3, 2, 100)
	if got := f.At(3, 7); got != 100 {
		t.Errorf("peak value = %v, want 100", got)
	}
	// One sigma away in x the intensity drops by exp(-1/2).
	want := 100 * math.Exp(-0.5)
	if got := f.At(3, 9); math.Abs(got-want) > 1e-9 {
		t.Errorf("value one sigma off = %v, want %v", got, want)
	}
}

func TestDiscFrame(t *testing.T) {
	t.Parallel()

	f := DiscFrame(16, 16, 7, 3, 2)
	if f.At(3, 7) != 1 {
		t.Error("disc centre not set")
	}
	if f.At(3, 9) != 1 {
		t.Error("pixel at radius 2 not set")
	}
	if f.At(0, 0) != 0 {
		t.Error("far corner unexpectedly set")
	}
}

func TestDriftingSpotStack(t *testing.T) {
	t.Parallel()

	stack := DriftingSpotStack(4, 32, 32, 10, 16)
	if stack.Len() != 4 {
		t.Fatalf("stack length = %d, want 4", stack.Len())
	}
	// Frame i peaks at column 10+i.
	for i := 0; i < 4; i++ {
		if got := stack.Frame(i).At(16, 10+i); got != 100 {
			t.Errorf("frame %d peak = %v, want 100", i, got)
		}
	}
}

// TestAssertStatusCode verifies that AssertStatusCode executes without panicking.
// Note: Testing t.Errorf/t.Fatalf calls requires a mock testing.T implementation
// which adds complexity. These helpers are best validated through integration
// tests where they're actually used.
func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertStatusCode(t, http.StatusNotFound, http.StatusNotFound)
}

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	t.Parallel()

	AssertError(t, errors.New("test error"))
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest("GET", "/test")
	if req.Method != "GET" {
		t.Errorf("method = %s, want GET", req.Method)
	}
	if req.URL.Path != "/test" {
		t.Errorf("path = %s, want /test", req.URL.Path)
	}
}

func TestNewTestRecorder(t *testing.T) {
	t.Parallel()

	rec := NewTestRecorder()
	if rec == nil {
		t.Fatal("recorder is nil")
	}
}
