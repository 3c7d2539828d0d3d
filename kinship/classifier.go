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

import (
	"fmt"
	"math"
)

// Encoding is the inferred relatedness degree between a pair of individuals.
type Encoding int

// The relatedness encodings, in the exact numeric order the classifier's
// boundary checks depend on.
const (
	MZ Encoding = iota
	PO
	FS
	Second
	Third
	Fourth
	Unrelated
)

var encodingNames = [...]string{"MZ", "PO", "FS", "2nd", "3rd", "4th", "UN"}

// String returns the output TYPE field for this encoding.
func (e Encoding) String() string {
	if e < MZ || e > Unrelated {
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
	return encodingNames[e]
}

// Thresholds are the kinship-coefficient (and, for the PO/FS split,
// IBD2-fraction) cutoffs the classifier compares against. Baseline values are
// the unadjusted thresholds; Calibrator.Current rescales them once enough
// full-sibling observations have accumulated.
type Thresholds struct {
	MZStart     float64
	POFSStart   float64
	SecondStart float64
	ThirdStart  float64
	FourthStart float64
	FSStart     float64
}

// DefaultThresholds returns the unadjusted baseline thresholds: powers of 2
// spaced one degree apart, plus the fixed IBD2-fraction cutoff used to split
// PO from FS.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MZStart:     1 / math.Pow(2, 3.0/2),
		POFSStart:   1 / math.Pow(2, 5.0/2),
		SecondStart: 1 / math.Pow(2, 7.0/2),
		ThirdStart:  1 / math.Pow(2, 9.0/2),
		FourthStart: 1 / math.Pow(2, 11.0/2),
		FSStart:     fsStartBaseline,
	}
}

// fsStartBaseline is the baseline IBD2-fraction cutoff above which a pair in
// the PO/FS kinship band is classified FS instead of PO.
const fsStartBaseline = 0.1

// Scale multiplies every threshold by shift, as Calibrator.Current does with
// the shift that Calibrator.MaybeShift last computed.
func (th Thresholds) Scale(shift float64) Thresholds {
	return Thresholds{
		MZStart:     th.MZStart * shift,
		POFSStart:   th.POFSStart * shift,
		SecondStart: th.SecondStart * shift,
		ThirdStart:  th.ThirdStart * shift,
		FourthStart: th.FourthStart * shift,
		FSStart:     th.FSStart * shift,
	}
}

// minPower is the fraction of a degree's threshold a pair must clear before
// it is worth keeping around (in the first pass) or spilling for the second.
const minPower = 0.5

// MinKinship returns the minimum kinship coefficient a pair must reach to
// possibly qualify at maxDegree, given the (possibly already-rescaled)
// thresholds th.
func MinKinship(maxDegree int, th Thresholds) (float64, error) {
	switch maxDegree {
	case 1:
		return th.POFSStart * minPower, nil
	case 2:
		return th.SecondStart * minPower, nil
	case 3:
		return th.ThirdStart * minPower, nil
	case 4:
		return th.FourthStart * minPower, nil
	default:
		return 0, fmt.Errorf("kinship: degrees less than 1 or beyond 4 are not supported: %d", maxDegree)
	}
}

// Kinship computes the kinship coefficient from exclusive IBD1 and IBD2
// lengths (cM) and the total autosomal genetic length totalLength (cM).
func Kinship(ibd1Exclusive, ibd2, totalLength float64) float64 {
	return ibd1Exclusive/(4*totalLength) + ibd2/(2*totalLength)
}

// IBD2Frac returns the fraction of the genome shared IBD2.
func IBD2Frac(ibd2, totalLength float64) float64 {
	return ibd2 / totalLength
}

// IBD1Frac returns the fraction of the genome shared IBD1 (exclusive).
func IBD1Frac(ibd1Exclusive, totalLength float64) float64 {
	return ibd1Exclusive / totalLength
}

// IBD1FracFromKinship recovers the IBD1 fraction from a kinship coefficient
// and an IBD2 fraction, the inverse of Kinship used when a spilled pair only
// has (kinship, ibd2Frac) recorded.
func IBD1FracFromKinship(k, ibd2Frac float64) float64 {
	return 4*k - 2*ibd2Frac
}

// IBD0Frac returns the fraction of the genome shared IBD0 (neither copy
// shared), clamped to be non-negative.
func IBD0Frac(ibd1Frac, ibd2Frac float64) float64 {
	return math.Max(0, 1-ibd1Frac-ibd2Frac)
}

// Encode classifies a pair given its kinship coefficient and IBD2 fraction
// against th. The THIRD/SECOND boundary check intentionally happens before
// the SECOND check so that, at the exact boundary kinship == th.SecondStart,
// 3rd degree wins over 2nd — this mirrors the reference RAFFI classifier's
// (likely unintentional, but bit-exact-compatible) boundary behavior.
func Encode(kinship, ibd2Frac float64, th Thresholds) Encoding {
	switch {
	case th.FourthStart <= kinship && kinship < th.ThirdStart:
		return Fourth
	case th.ThirdStart <= kinship && kinship <= th.SecondStart:
		return Third
	case th.SecondStart <= kinship && kinship < th.POFSStart:
		return Second
	case th.POFSStart <= kinship && kinship < th.MZStart:
		if ibd2Frac >= th.FSStart {
			return FS
		}
		return PO
	case th.MZStart <= kinship:
		return MZ
	default:
		return Unrelated
	}
}

// ShouldEmit reports whether a pair classified as e should appear in output
// when the user asked for relatives up to maxDegree.
func ShouldEmit(e Encoding, maxDegree int) bool {
	if maxDegree == 1 {
		return e <= FS
	}
	return int(e)-1 <= maxDegree
}
