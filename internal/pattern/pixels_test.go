package pattern

import (
	"testing"

	"github.com/bravais-data/beamtrace/internal/frames"
)

func TestFindDeadPixels(t *testing.T) {
	f1 := constantFrame(4, 4, 2)
	f2 := constantFrame(4, 4, 3)
	// (1, 1) is stuck at zero in every frame; (2, 2) only in one.
	f1.Set(1, 1, 0)
	f2.Set(1, 1, 0)
	f1.Set(2, 2, 0)

	dead, err := FindDeadPixels(frames.NewMemStack(f1, f2), 0)
	if err != nil {
		t.Fatalf("FindDeadPixels: %v", err)
	}
	if !dead.At(1, 1) {
		t.Error("stuck pixel (1,1) not flagged")
	}
	if dead.At(2, 2) {
		t.Error("intermittent pixel (2,2) flagged as dead")
	}
	if got := dead.Count(); got != 1 {
		t.Errorf("dead count = %d, want 1", got)
	}
}

func TestFindHotPixels(t *testing.T) {
	f := constantFrame(8, 8, 1)
	f.Set(4, 4, 100)

	hot := FindHotPixels(f, 10)
	if !hot.At(4, 4) {
		t.Error("hot pixel not flagged")
	}
	if hot.At(4, 5) {
		t.Error("neighbour of hot pixel flagged")
	}
	if got := hot.Count(); got != 1 {
		t.Errorf("hot count = %d, want 1", got)
	}
}

func TestRepairBadPixels(t *testing.T) {
	f := constantFrame(6, 6, 5)
	f.Set(2, 2, 0)

	bad := NewMask(6, 6)
	bad.Set(2, 2, true)

	out := RepairBadPixels(f, bad)
	if got := out.At(2, 2); got != 5 {
		t.Errorf("repaired value = %v, want 5", got)
	}
	if f.At(2, 2) != 0 {
		t.Error("repair mutated the input frame")
	}
	if got := out.At(0, 0); got != 5 {
		t.Errorf("untouched pixel = %v, want 5", got)
	}
}
