package peaks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bravais-data/beamtrace/internal/frames"
	"github.com/bravais-data/beamtrace/internal/testutil"
)

func TestFindPeaksDoG_TwoSpots(t *testing.T) {
	f := testutil.GaussianSpotFrame(32, 32, 8, 8, 2, 100)
	second := testutil.GaussianSpotFrame(32, 32, 22, 21, 2, 80)
	for r := 0; r < 32; r++ {
		for c := 0; c < 32; c++ {
			f.Set(r, c, f.At(r, c)+second.At(r, c))
		}
	}

	p := DoGParams{MinSigma: 1, MaxSigma: 5, SigmaRatio: 1.6, Threshold: 0.1, Overlap: 0.5}
	found := FindPeaksDoG(f, p)
	require.Len(t, found, 2)

	// Scan order: the (8, 8) spot has the smaller row.
	assert.Equal(t, 8.0, found[0].X)
	assert.Equal(t, 8.0, found[0].Y)
	assert.Equal(t, 22.0, found[1].X)
	assert.Equal(t, 21.0, found[1].Y)
	assert.Greater(t, found[0].Value, found[1].Value)
}

func TestFindPeaksDoG_NoSignal(t *testing.T) {
	f := frames.NewFrame(16, 16, nil)
	p := DoGParams{MinSigma: 1, MaxSigma: 5, SigmaRatio: 1.6, Threshold: 0.1, Overlap: 0.5}
	assert.Nil(t, FindPeaksDoG(f, p))
}

func TestFindPeaksDoG_BadParams(t *testing.T) {
	f := testutil.GaussianSpotFrame(16, 16, 8, 8, 2, 10)
	cases := []DoGParams{
		{MinSigma: 0, MaxSigma: 5, SigmaRatio: 1.6},
		{MinSigma: 1, MaxSigma: 5, SigmaRatio: 1},
		{MinSigma: 5, MaxSigma: 5, SigmaRatio: 1.6},
	}
	for _, p := range cases {
		assert.Nil(t, FindPeaksDoG(f, p), "%+v", p)
	}
}

func TestPruneOverlaps(t *testing.T) {
	found := []Peak{
		{X: 6, Y: 5, Sigma: 1, Value: 0.9},
		{X: 5, Y: 5, Sigma: 1, Value: 1.0},
		{X: 20, Y: 20, Sigma: 1, Value: 0.5},
	}

	// Limit = 0.5 * sqrt2 * 2 = 1.41; the two near-coincident peaks merge
	// into the stronger one, the distant peak survives.
	kept := pruneOverlaps(found, 0.5)
	require.Len(t, kept, 2)
	assert.Equal(t, 5.0, kept[0].X)
	assert.Equal(t, 5.0, kept[0].Y)
	assert.Equal(t, 20.0, kept[1].X)
}

func TestRefineCOM_Peaks(t *testing.T) {
	// 3x3 plateau centred at (6, 6); a coarse detection at (5, 5) must be
	// pulled onto the plateau centre.
	f := frames.NewFrame(12, 12, nil)
	for r := 5; r <= 7; r++ {
		for c := 5; c <= 7; c++ {
			f.Set(r, c, 1)
		}
	}

	refined := RefineCOM(f, []Peak{{X: 5, Y: 5, Sigma: 1, Value: 0.4}}, 6)
	require.Len(t, refined, 1)
	assert.InDelta(t, 6, refined[0].X, 1e-12)
	assert.InDelta(t, 6, refined[0].Y, 1e-12)
	assert.Equal(t, 0.4, refined[0].Value)
}

func TestRefineCOM_EdgePeakKeepsPosition(t *testing.T) {
	f := frames.NewFrame(8, 8, nil)
	f.Set(1, 1, 5)

	refined := RefineCOM(f, []Peak{{X: 1, Y: 1}}, 6)
	assert.Equal(t, 1.0, refined[0].X)
	assert.Equal(t, 1.0, refined[0].Y)
}

func TestIntensities(t *testing.T) {
	// Uniform value 2 everywhere: a radius-1 disc covers 5 of the 9
	// window pixels, so the masked mean is 10/9.
	f := frames.NewFrame(9, 9, nil)
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			f.Set(r, c, 2)
		}
	}

	got := Intensities(f, []Peak{{X: 4, Y: 4}, {X: 0, Y: 0}}, 1)
	require.Len(t, got, 2)
	assert.InDelta(t, 10.0/9.0, got[0], 1e-12)
	assert.Equal(t, 0.0, got[1], "edge peak must measure zero")
}
