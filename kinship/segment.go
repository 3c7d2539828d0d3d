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

import "sort"

// Segment is a shared haplotype interval, expressed as [Start, End] site
// indices on one chromosome.
type Segment struct {
	Start, End int
}

// hapEncoding packs a pair of haplotype choices (each 0 or 1) into the
// [0,3] range used to index a stagingBuffer row.
func hapEncoding(hap1, hap2 int) int {
	return hap1 + 2*hap2
}

// complement returns the encoding of the opposite haplotype pairing, e.g.
// the complement of 0-0 is 1-1.
func complement(e int) int {
	return 3 - e
}

// stagingBuffer holds, for the id1 currently being processed on one
// chromosome, every segment seen so far for each other individual (id2),
// bucketed by hapEncoding. It is cleared whenever id1 advances.
type stagingBuffer struct {
	byID2 map[int]*[4][]Segment
}

func newStagingBuffer() *stagingBuffer {
	return &stagingBuffer{byID2: make(map[int]*[4][]Segment)}
}

// append records a segment for (id2, encoding).
func (b *stagingBuffer) append(id2, encoding int, seg Segment) {
	row := b.byID2[id2]
	if row == nil {
		row = &[4][]Segment{}
		b.byID2[id2] = row
	}
	row[encoding] = append(row[encoding], seg)
}

// complementSegments returns the segments already stored for (id2, the
// complement of encoding), used to detect IBD2 as new rows arrive.
func (b *stagingBuffer) complementSegments(id2, encoding int) []Segment {
	row := b.byID2[id2]
	if row == nil {
		return nil
	}
	return row[complement(encoding)]
}

// ids returns every id2 recorded in the buffer, sorted ascending so that
// finalization is deterministic run to run.
func (b *stagingBuffer) ids() []int {
	out := make([]int, 0, len(b.byID2))
	for id2 := range b.byID2 {
		out = append(out, id2)
	}
	sort.Ints(out)
	return out
}

// segmentsByEncoding returns the four hap-encoding segment lists recorded
// for id2.
func (b *stagingBuffer) segmentsByEncoding(id2 int) [4][]Segment {
	row := b.byID2[id2]
	if row == nil {
		return [4][]Segment{}
	}
	return *row
}

// reset discards every recorded segment, preparing the buffer for the next
// id1.
func (b *stagingBuffer) reset() {
	b.byID2 = make(map[int]*[4][]Segment)
}

// mergeTwo merges two start-sorted segment lists into one start-sorted list.
// Ties (equal starts) are resolved by taking from a first, which keeps the
// merge deterministic; the exact tie-break is not observable in aggregated
// results.
func mergeTwo(a, b []Segment) []Segment {
	merged := make([]Segment, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Start <= b[j].Start {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}

// mergeFour 4-way merges the segment lists bucketed by hapEncoding, as two
// nested 2-way merges.
func mergeFour(segs [4][]Segment) []Segment {
	return mergeTwo(mergeTwo(segs[0], segs[1]), mergeTwo(segs[2], segs[3]))
}

// unionLength sweeps a start-sorted, possibly-overlapping segment list and
// returns the genetic length (cM) of its union, via geneticLength(start,
// end). merged must be non-empty.
func unionLength(merged []Segment, geneticLength func(start, end int) float64) float64 {
	curStart, curEnd := merged[0].Start, merged[0].End
	var total float64
	for _, seg := range merged[1:] {
		if intersects(curStart, curEnd, seg.Start, seg.End) {
			if seg.End > curEnd {
				curEnd = seg.End
			}
		} else {
			total += geneticLength(curStart, curEnd)
			curStart, curEnd = seg.Start, seg.End
		}
	}
	total += geneticLength(curStart, curEnd)
	return total
}

func intersects(start1, end1, start2, end2 int) bool {
	return max(start1, start2) <= min(end1, end2)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
