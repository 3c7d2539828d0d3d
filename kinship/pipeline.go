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

// Package kinship implements the streaming parallel aggregation engine that
// turns per-chromosome IBD segment reports into kinship classifications:
// worker goroutines ingest segments and accumulate per-pair statistics,
// a barrier-synchronized master releases and classifies (or spills) pairs
// as soon as every worker has advanced past them, and a second pass
// reclassifies spilled candidates once the adaptive calibrator has
// converged.
package kinship

import (
	"context"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/raffi/geneticmap"
	"github.com/grailbio/raffi/sampleorder"
)

// MinNumThreads and MaxNumThreads bound the clamp applied to the requested
// worker count.
const (
	MinNumThreads = 1
	MaxNumThreads = geneticmap.NumChromosomes
)

// Options configures one pipeline run.
type Options struct {
	RapidOutputDir string
	OutputDir      string
	MaxDegree      int
	NumThreads     int
}

// ClampNumThreads clamps n to [MinNumThreads, MaxNumThreads], mirroring the
// reference RAFFI tool's own worker-count clamp.
func ClampNumThreads(n int) int {
	if n < MinNumThreads {
		return MinNumThreads
	}
	if n > MaxNumThreads {
		return MaxNumThreads
	}
	return n
}

// assignChromosomes splits NumChromosomes chromosomes into numWorkers
// contiguous slices, the last absorbing the remainder.
func assignChromosomes(numWorkers int) [][]int {
	n := geneticmap.NumChromosomes
	base := n / numWorkers
	slices := make([][]int, numWorkers)
	chr := 1
	for w := 0; w < numWorkers; w++ {
		size := base
		if w == numWorkers-1 {
			size = n - chr + 1
		}
		slice := make([]int, 0, size)
		for i := 0; i < size; i++ {
			slice = append(slice, chr)
			chr++
		}
		slices[w] = slice
	}
	return slices
}

const spillFileName = "./.temporary"

// Run executes the full pipeline: it spawns one worker per chromosome
// slice plus a master release loop, then runs the second pass once every
// worker has finished. The final predictions are written to
// "<opts.OutputDir>/predictions.txt".
func Run(ctx context.Context, order *sampleorder.Ordering, mapTable *geneticmap.MapTable, opts Options) error {
	numThreads := ClampNumThreads(opts.NumThreads)
	slices := assignChromosomes(numThreads)

	barrier := NewBarrier(numThreads)
	workers := make([]*Worker, numThreads)
	for i, chrs := range slices {
		workers[i] = NewWorker(i, chrs, order, mapTable, barrier, opts.RapidOutputDir)
	}

	spill, err := CreateSpillWriter(ctx, spillFileName)
	if err != nil {
		return err
	}

	outPath := opts.OutputDir + "/predictions.txt"
	outFile, err := file.Create(ctx, outPath)
	if err != nil {
		return errors.E(err, "kinship: failed to create output file", outPath)
	}
	output := NewPredictionWriter(outFile.Writer(ctx), order)
	if err := output.WriteHeader(); err != nil {
		return errors.E(err, "kinship: failed to write output header")
	}

	calibrator := NewCalibrator(DefaultThresholds())
	release := NewReleaseEngine(workers, calibrator, mapTable.TotalLength(), opts.MaxDegree, spill, output)

	var (
		wg       sync.WaitGroup
		workErrs = make([]error, numThreads)
	)
	for i, w := range workers {
		i, w := i, w
		wg.Add(1)
		go func() {
			defer wg.Done()
			workErrs[i] = w.Run(ctx)
		}()
	}

	var releaseErr error
	rounds := 0
	for {
		allFinished := barrier.RunMaster(func() {
			if releaseErr != nil {
				return
			}
			releaseErr = release.Run()
			rounds++
			log.Printf("kinship: %d individuals released", release.prevLast+1)
		})
		if allFinished {
			break
		}
	}

	wg.Wait()
	for _, err := range workErrs {
		if err != nil {
			return err
		}
	}
	if releaseErr != nil {
		return releaseErr
	}

	writeCount := spill.Count()
	if err := spill.Close(ctx); err != nil {
		return errors.E(err, "kinship: failed to close spill file")
	}

	log.Printf("kinship: wrote %d candidate pairs to disk, starting second pass", writeCount)

	if err := RunSecondPass(ctx, spillFileName, writeCount, calibrator, opts.MaxDegree, output); err != nil {
		return err
	}

	if err := output.Flush(); err != nil {
		return errors.E(err, "kinship: failed to flush output")
	}
	if err := outFile.Close(ctx); err != nil {
		return errors.E(err, "kinship: failed to close output file")
	}

	if err := file.Remove(ctx, spillFileName); err != nil {
		return errors.E(err, "kinship: failed to remove spill file", spillFileName)
	}
	return nil
}
