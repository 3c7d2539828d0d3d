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

// aggregatedPair is the per-worker-summed statistics for one (id1, id2)
// pair, with the exclusive-IBD1 correction from §4.3 already applied.
type aggregatedPair struct {
	ibd1Exclusive float64
	ibd2          float64
}

// ReleaseEngine owns the master side of the dump/release protocol: it tracks
// how far id1 has been released, aggregates rows out of every worker's
// matrix once they become dumpable, and decides whether each pair is
// classified immediately, spilled, or dropped.
type ReleaseEngine struct {
	workers     []*Worker
	calibrator  *Calibrator
	totalLength float64
	maxDegree   int
	spill       *SpillWriter
	output      *PredictionWriter

	prevLast int // last id1Index already released, or -1
}

// NewReleaseEngine returns a ReleaseEngine over the given workers.
func NewReleaseEngine(workers []*Worker, calibrator *Calibrator, totalLength float64, maxDegree int, spill *SpillWriter, output *PredictionWriter) *ReleaseEngine {
	return &ReleaseEngine{
		workers:     workers,
		calibrator:  calibrator,
		totalLength: totalLength,
		maxDegree:   maxDegree,
		spill:       spill,
		output:      output,
		prevLast:    -1,
	}
}

// dumpableMin computes the minimum last-dumpable index across every
// worker's assigned chromosomes, then across every worker.
func (r *ReleaseEngine) dumpableMin() int {
	m := r.workers[0].Dumpable.Min()
	for _, w := range r.workers[1:] {
		if v := w.Dumpable.Min(); v < m {
			m = v
		}
	}
	return m
}

// Run processes the currently dumpable range of id1 indices: aggregates
// their rows out of every worker matrix, classifies or spills each pair,
// and advances prevLast. It is only safe to call while every worker is
// quiesced at the barrier.
func (r *ReleaseEngine) Run() error {
	last := r.dumpableMin()
	for id1 := r.prevLast + 1; id1 <= last; id1++ {
		if err := r.releaseOne(id1); err != nil {
			return err
		}
	}
	r.prevLast = last
	return nil
}

func (r *ReleaseEngine) releaseOne(id1 int) error {
	agg := make(map[int]*aggregatedPair)
	for _, w := range r.workers {
		row := w.Matrix.Row(id1)
		for id2, stats := range row {
			a := agg[id2]
			if a == nil {
				a = &aggregatedPair{}
				agg[id2] = a
			}
			a.ibd1Exclusive += stats.TotalIBD1 - stats.TotalIBD2
			a.ibd2 += stats.TotalIBD2
		}
		w.Matrix.Delete(id1)
	}

	for id2, a := range agg {
		if err := r.classifyOrSpill(id1, id2, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *ReleaseEngine) classifyOrSpill(id1, id2 int, a *aggregatedPair) error {
	kinship := Kinship(a.ibd1Exclusive, a.ibd2, r.totalLength)
	ibd2Frac := IBD2Frac(a.ibd2, r.totalLength)

	th := r.calibrator.Current()
	if ibd2Frac >= th.FSStart {
		r.calibrator.AddFullSibling(kinship)
	}

	minK, err := MinKinship(r.maxDegree, th)
	if err != nil {
		return err
	}

	switch {
	case r.calibrator.NumFullSiblings() < MinNumFS:
		if kinship >= minK {
			return r.spill.Write(SpillRecord{
				ID1Index: int32(id1),
				ID2Index: int32(id2),
				Kinship:  kinship,
				IBD2Frac: ibd2Frac,
			})
		}
		return nil
	default:
		r.calibrator.MaybeShift()
		th = r.calibrator.Current()
		encoding := Encode(kinship, ibd2Frac, th)
		if ShouldEmit(encoding, r.maxDegree) {
			ibd1Frac := IBD1Frac(a.ibd1Exclusive, r.totalLength)
			return r.output.Write(id1, id2, kinship, ibd1Frac, ibd2Frac, encoding)
		}
		return nil
	}
}
