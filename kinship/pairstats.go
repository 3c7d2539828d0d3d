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

// PairStats accumulates, for one pair of individuals, the union IBD1 length
// (which still includes IBD2 regions, see PerWorkerMatrix) and the IBD2
// length, both in cM, summed across all 22 autosomes.
type PairStats struct {
	TotalIBD1 float64
	TotalIBD2 float64
}

// PerWorkerMatrix is the sparse id1Index -> id2Index -> PairStats table one
// worker accumulates into. It is mutated only by its owning worker and is
// read and erased only by the master during a release pass; no additional
// synchronization is needed beyond the barrier that guarantees the worker is
// quiesced while the master touches it.
type PerWorkerMatrix struct {
	rows map[int]map[int]*PairStats
}

// NewPerWorkerMatrix returns an empty matrix.
func NewPerWorkerMatrix() *PerWorkerMatrix {
	return &PerWorkerMatrix{rows: make(map[int]map[int]*PairStats)}
}

func (m *PerWorkerMatrix) entry(id1, id2 int) *PairStats {
	row := m.rows[id1]
	if row == nil {
		row = make(map[int]*PairStats)
		m.rows[id1] = row
	}
	s := row[id2]
	if s == nil {
		s = &PairStats{}
		row[id2] = s
	}
	return s
}

// AddIBD1 adds delta (cM) to the union IBD1 total for (id1, id2).
func (m *PerWorkerMatrix) AddIBD1(id1, id2 int, delta float64) {
	m.entry(id1, id2).TotalIBD1 += delta
}

// AddIBD2 adds delta (cM) to the IBD2 total for (id1, id2).
func (m *PerWorkerMatrix) AddIBD2(id1, id2 int, delta float64) {
	m.entry(id1, id2).TotalIBD2 += delta
}

// Row returns the id2Index -> PairStats map recorded for id1, or nil if this
// worker has never seen id1.
func (m *PerWorkerMatrix) Row(id1 int) map[int]*PairStats {
	return m.rows[id1]
}

// Delete discards everything recorded for id1. Release of a row is one-shot:
// the caller must not expect Row(id1) to return anything afterward.
func (m *PerWorkerMatrix) Delete(id1 int) {
	delete(m.rows, id1)
}
