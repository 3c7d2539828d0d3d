package kinship

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalibratorNoShiftBeforeMinNumFS(t *testing.T) {
	c := NewCalibrator(DefaultThresholds())
	for i := 0; i < MinNumFS-1; i++ {
		c.AddFullSibling(0.2)
	}
	c.MaybeShift()
	assert.Equal(t, DefaultThresholds(), c.Current())
}

func TestCalibratorShiftsDownwardWhenMeanBelowExpected(t *testing.T) {
	c := NewCalibrator(DefaultThresholds())
	for i := 0; i < MinNumFS; i++ {
		c.AddFullSibling(0.2) // mean kinship 0.2, expected 0.25 -> shift 0.8
	}
	c.MaybeShift()

	want := DefaultThresholds().Scale(0.8)
	got := c.Current()
	assert.InDelta(t, want.FourthStart, got.FourthStart, 1e-12)
	assert.InDelta(t, want.MZStart, got.MZStart, 1e-12)
}

func TestCalibratorShiftCappedAtOne(t *testing.T) {
	c := NewCalibrator(DefaultThresholds())
	for i := 0; i < MinNumFS; i++ {
		c.AddFullSibling(0.4) // mean above expected 0.25 -> shift capped at 1
	}
	c.MaybeShift()
	assert.Equal(t, DefaultThresholds(), c.Current())
}

func TestCalibratorNoOpUntilAdjustingInterval(t *testing.T) {
	c := NewCalibrator(DefaultThresholds())
	for i := 0; i < MinNumFS; i++ {
		c.AddFullSibling(0.2)
	}
	c.MaybeShift()
	shifted := c.Current()

	// A handful more observations, still under MinAdjustingInterval since the
	// last rescale: thresholds must not move again yet.
	for i := 0; i < MinAdjustingInterval-1; i++ {
		c.AddFullSibling(0.25)
	}
	c.MaybeShift()
	assert.Equal(t, shifted, c.Current())
}

func TestCalibratorStopsAccumulatingPastMax(t *testing.T) {
	c := NewCalibrator(DefaultThresholds())
	for i := 0; i < MaxNumFS+1; i++ {
		c.AddFullSibling(0.2)
	}
	assert.Equal(t, MaxNumFS+1, c.NumFullSiblings())
	c.AddFullSibling(0.2)
	assert.Equal(t, MaxNumFS+1, c.NumFullSiblings(), "no-op once over MaxNumFS")

	// Over MaxNumFS: MaybeShift is also a no-op.
	c.MaybeShift()
	assert.Equal(t, DefaultThresholds(), c.Current())
}
