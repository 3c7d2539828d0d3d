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
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/raffi/geneticmap"
	"github.com/grailbio/raffi/sampleorder"
	"github.com/klauspost/compress/gzip"
)

// NumIDsPerCycle is the number of distinct id1 values a worker advances
// through, on one chromosome, between two barrier rendezvous.
const NumIDsPerCycle = 1000

// LastDumpable reports, per chromosome, the index of the last id1 that
// chromosome has definitively finished. It is read by the master under the
// barrier.
type LastDumpable struct {
	values []int
}

// NewLastDumpable returns a tracker for numChromosomes chromosomes, every
// entry initialized to -1 (nothing dumpable yet).
func NewLastDumpable(numChromosomes int) *LastDumpable {
	v := make([]int, numChromosomes)
	for i := range v {
		v[i] = -1
	}
	return &LastDumpable{values: v}
}

// Min returns the minimum last-dumpable index across every chromosome.
func (d *LastDumpable) Min() int {
	m := d.values[0]
	for _, v := range d.values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func (d *LastDumpable) set(chrSlot, value int) {
	d.values[chrSlot] = value
}

// Worker owns a contiguous slice of chromosomes and streams segment rows
// from the upstream matcher's output, accumulating into its own
// PerWorkerMatrix. Exactly one goroutine ever touches a Worker's state
// outside of the barrier rendezvous.
type Worker struct {
	id          int
	chromosomes []int // 1-indexed chromosome numbers this worker owns, in slot order

	order    *sampleorder.Ordering
	mapTable *geneticmap.MapTable
	barrier  *Barrier

	Matrix   *PerWorkerMatrix
	Dumpable *LastDumpable

	inputFolder string
}

// NewWorker returns a Worker responsible for the given chromosomes (1-indexed).
func NewWorker(id int, chromosomes []int, order *sampleorder.Ordering, mapTable *geneticmap.MapTable, barrier *Barrier, inputFolder string) *Worker {
	return &Worker{
		id:          id,
		chromosomes: chromosomes,
		order:       order,
		mapTable:    mapTable,
		barrier:     barrier,
		Matrix:      NewPerWorkerMatrix(),
		Dumpable:    NewLastDumpable(len(chromosomes)),
		inputFolder: inputFolder,
	}
}

// chromosomeState tracks one assigned chromosome's streaming-read position.
type chromosomeState struct {
	chr     int
	scanner *bufio.Scanner
	gz      *gzip.Reader
	f       file.File
	done    bool

	staging *stagingBuffer
	prevID1 int
	haveID1 bool
	idsSeen int

	lastFinalizedID1 int
	haveFinalized    bool
}

// Run streams every assigned chromosome to completion, cycling through them
// round-robin and rendezvousing at the barrier after each full round that
// leaves some chromosome unfinished. Once every chromosome has hit EOF it
// marks itself finished without waiting at the barrier. On any error it still marks itself finished
// before returning, so a crashing worker cannot wedge the master waiting at
// the barrier forever.
func (w *Worker) Run(ctx context.Context) (err error) {
	notifiedFinished := false
	defer func() {
		if !notifiedFinished {
			w.barrier.WorkerFinished(w.id)
		}
	}()

	states := make([]*chromosomeState, 0, len(w.chromosomes))
	defer func() {
		for _, st := range states {
			_ = st.gz.Close()
			_ = st.f.Close(ctx)
		}
	}()
	for _, chr := range w.chromosomes {
		st, err := w.openChromosome(ctx, chr)
		if err != nil {
			return err
		}
		states = append(states, st)
	}

	for {
		for slot, st := range states {
			if st.done {
				continue
			}
			if err := w.runCycle(ctx, slot, st); err != nil {
				return err
			}
		}
		allDone := true
		for _, st := range states {
			if !st.done {
				allDone = false
				break
			}
		}
		if allDone {
			w.barrier.WorkerFinished(w.id)
			notifiedFinished = true
			return nil
		}
		w.barrier.WorkerCycleEnd(w.id)
	}
}

func (w *Worker) openChromosome(ctx context.Context, chr int) (*chromosomeState, error) {
	path := fmt.Sprintf("%s/%d/results.max.gz", w.inputFolder, chr)
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "kinship: failed to open matcher output", path)
	}
	gz, err := gzip.NewReader(f.Reader(ctx))
	if err != nil {
		_ = f.Close(ctx)
		return nil, errors.E(err, "kinship: failed to open matcher output gzip stream", path)
	}
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return &chromosomeState{
		chr:     chr,
		scanner: scanner,
		gz:      gz,
		f:       f,
		staging: newStagingBuffer(),
	}, nil
}

// runCycle advances chromosome st by up to NumIDsPerCycle distinct id1
// values, or to EOF, whichever comes first, then publishes the new
// dumpable frontier for this chromosome.
func (w *Worker) runCycle(ctx context.Context, slot int, st *chromosomeState) error {
	for st.idsSeen < NumIDsPerCycle {
		if !st.scanner.Scan() {
			if err := st.scanner.Err(); err != nil {
				return errors.E(err, "kinship: failed to read matcher output")
			}
			if st.haveID1 {
				w.finalizeID1(st)
			}
			st.staging.reset()
			w.Dumpable.set(slot, w.order.LastIndex())
			st.done = true
			return nil
		}
		if err := w.processRow(st, st.scanner.Text()); err != nil {
			return err
		}
	}
	st.idsSeen = 0
	if st.haveFinalized {
		w.Dumpable.set(slot, st.lastFinalizedID1)
	}
	return nil
}

func (w *Worker) processRow(st *chromosomeState, line string) error {
	fields := strings.Split(line, "\t")
	if len(fields) < 10 {
		return errors.New("kinship: matcher output row has too few columns: " + line)
	}
	id1Str, id2Str := fields[1], fields[2]
	if id1Str == id2Str {
		return nil
	}
	id1Index, ok1 := w.order.Index(id1Str)
	id2Index, ok2 := w.order.Index(id2Str)
	if !ok1 || !ok2 {
		// Unknown sample ID: skip the row rather than fail the run.
		return nil
	}

	hap1, err := strconv.Atoi(fields[3])
	if err != nil {
		return errors.E(err, "kinship: malformed hap1 field: "+line)
	}
	hap2, err := strconv.Atoi(fields[4])
	if err != nil {
		return errors.E(err, "kinship: malformed hap2 field: "+line)
	}
	siteStart, err := strconv.Atoi(fields[8])
	if err != nil {
		return errors.E(err, "kinship: malformed siteStart field: "+line)
	}
	siteEnd, err := strconv.Atoi(fields[9])
	if err != nil {
		return errors.E(err, "kinship: malformed siteEnd field: "+line)
	}

	if st.haveID1 && id1Index != st.prevID1 {
		w.finalizeID1(st)
		st.staging.reset()
		st.idsSeen++
	}
	st.prevID1 = id1Index
	st.haveID1 = true

	seg := Segment{Start: siteStart, End: siteEnd}
	encoding := hapEncoding(hap1, hap2)

	for _, comp := range st.staging.complementSegments(id2Index, encoding) {
		lo, hi := max(seg.Start, comp.Start), min(seg.End, comp.End)
		if lo <= hi {
			w.Matrix.AddIBD2(st.prevID1, id2Index, w.mapTable.GeneticLength(st.chr, lo, hi))
		}
	}
	st.staging.append(id2Index, encoding, seg)
	return nil
}

// finalizeID1 collapses every id2 staged for the current id1 on chromosome
// st into a union IBD1 contribution.
func (w *Worker) finalizeID1(st *chromosomeState) {
	for _, id2 := range st.staging.ids() {
		merged := mergeFour(st.staging.segmentsByEncoding(id2))
		if len(merged) == 0 {
			continue
		}
		length := unionLength(merged, func(start, end int) float64 {
			return w.mapTable.GeneticLength(st.chr, start, end)
		})
		w.Matrix.AddIBD1(st.prevID1, id2, length)
	}
	st.lastFinalizedID1 = st.prevID1
	st.haveFinalized = true
}
