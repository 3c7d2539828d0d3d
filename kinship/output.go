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
	"io"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/raffi/sampleorder"
)

// PredictionWriter formats and writes the final predictions.txt output: one
// header line, then one row per emitted pair.
type PredictionWriter struct {
	w     *tsv.Writer
	order *sampleorder.Ordering
}

// NewPredictionWriter returns a PredictionWriter over underlying, resolving
// dense indices back to sample ID strings via order.
func NewPredictionWriter(underlying io.Writer, order *sampleorder.Ordering) *PredictionWriter {
	return &PredictionWriter{w: tsv.NewWriter(underlying), order: order}
}

// WriteHeader writes the column header line.
func (p *PredictionWriter) WriteHeader() error {
	p.w.WriteString("ID1\tID2\tKINSHIP\tIBD0\tIBD1\tIBD2\tTYPE")
	return p.w.EndLine()
}

// Write emits one row for (id1Index, id2Index).
func (p *PredictionWriter) Write(id1, id2 int, kinship, ibd1Frac, ibd2Frac float64, encoding Encoding) error {
	ibd0Frac := IBD0Frac(ibd1Frac, ibd2Frac)
	p.w.WriteString(p.order.ID(id1))
	p.w.WriteString(p.order.ID(id2))
	p.w.WriteFloat(kinship, 'f', 4, 64)
	p.w.WriteFloat(ibd0Frac, 'f', 4, 64)
	p.w.WriteFloat(ibd1Frac, 'f', 4, 64)
	p.w.WriteFloat(ibd2Frac, 'f', 4, 64)
	p.w.WriteString(encoding.String())
	return p.w.EndLine()
}

// Flush flushes any buffered output.
func (p *PredictionWriter) Flush() error {
	return p.w.Flush()
}
