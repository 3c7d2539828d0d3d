// Copyright 2024 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kinship

import "math"

// Expected mean kinship coefficient of a true full-sibling pair.
const poFSExpected = 0.25

// MinAdjustingInterval is the minimum number of newly observed full-sibling
// pairs required between two consecutive threshold rescales.
const MinAdjustingInterval = 50

// MaxNumFS caps the number of full-sibling pairs the calibrator accumulates:
// observations are accepted while the count is at most MaxNumFS (so the count
// can reach MaxNumFS+1), and are no-ops once the count exceeds it.
const MaxNumFS = 1000

// MinNumFS is the number of full-sibling observations required before the
// calibrator is considered converged enough to classify pairs immediately
// instead of spilling them.
const MinNumFS = 200

// Calibrator adaptively rescales Thresholds using the observed mean kinship
// of full-sibling candidate pairs (pairs with IBD2 fraction at or above the
// FS_START cutoff). It is owned exclusively by the master/release loop.
type Calibrator struct {
	baseline Thresholds
	shift    float64

	numFS             int
	sumFSKinship      float64
	prevAdjustedNumFS int
}

// NewCalibrator returns a Calibrator seeded with the unadjusted baseline
// thresholds and an initial shift of 1 (no adjustment).
func NewCalibrator(baseline Thresholds) *Calibrator {
	return &Calibrator{baseline: baseline, shift: 1}
}

// Current returns the thresholds as currently calibrated.
func (c *Calibrator) Current() Thresholds {
	return c.baseline.Scale(c.shift)
}

// NumFullSiblings returns the number of full-sibling pairs recorded so far.
func (c *Calibrator) NumFullSiblings() int {
	return c.numFS
}

// AddFullSibling records an observed full-sibling candidate's kinship
// coefficient. No-op once more than MaxNumFS pairs have been recorded.
func (c *Calibrator) AddFullSibling(pairKinship float64) {
	if c.numFS > MaxNumFS {
		return
	}
	c.numFS++
	c.sumFSKinship += pairKinship
}

// MaybeShift rescales every threshold if enough new full-sibling
// observations have accumulated since the last rescale; otherwise it is a
// no-op. The applied shift is the ratio of the observed mean full-sibling
// kinship to the theoretically expected 0.25, capped at 1 so thresholds are
// never inflated above baseline.
func (c *Calibrator) MaybeShift() {
	if c.numFS-c.prevAdjustedNumFS < MinAdjustingInterval ||
		c.numFS < MinNumFS || c.numFS > MaxNumFS {
		return
	}

	mean := c.sumFSKinship / float64(c.numFS)
	shift := math.Min(mean/poFSExpected, 1.0)

	c.shift = shift
	c.prevAdjustedNumFS = c.numFS
}
