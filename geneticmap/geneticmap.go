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

// Package geneticmap loads per-chromosome genetic maps and converts site
// indices into centimorgan (cM) distances.
package geneticmap

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
)

// NumChromosomes is the number of human autosomes this pipeline aggregates
// over.
const NumChromosomes = 22

// MapTable holds the cumulative genetic-distance tables for every autosome
// and the total autosomal length they imply. It is built once at startup and
// is read-only for the remainder of the run.
type MapTable struct {
	// distances[c] is the cumulative cM table for chromosome c+1, indexed by
	// site.
	distances [][]float64
	total     float64
}

// Load reads "<mapDir>/chr<c>.rMap" for c in 1..NumChromosomes and builds a
// MapTable. Each line of a map file is "<token>\t<cumulative-cM>"; the first
// field is ignored, the second is parsed as the cumulative cM distance at
// that site, and sites are indexed in file order starting at 0.
func Load(mapDir string) (*MapTable, error) {
	ctx := vcontext.Background()
	t := &MapTable{distances: make([][]float64, NumChromosomes)}
	for chr := 1; chr <= NumChromosomes; chr++ {
		path := fmt.Sprintf("%s/chr%d.rMap", mapDir, chr)
		dists, err := readMapFile(ctx, path)
		if err != nil {
			return nil, errors.E(err, "geneticmap: failed to load", path)
		}
		if len(dists) == 0 {
			return nil, errors.E(fmt.Sprintf("geneticmap: %s contains no sites", path))
		}
		t.distances[chr-1] = dists
		t.total += dists[len(dists)-1] - dists[0]
	}
	return t, nil
}

func readMapFile(ctx context.Context, path string) ([]float64, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close(ctx) }()

	var dists []float64
	scanner := bufio.NewScanner(f.Reader(ctx))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		d, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		dists = append(dists, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return dists, nil
}

// GeneticLength returns the genetic length, in cM, between site fromSite and
// site toSite on the given chromosome.
func (t *MapTable) GeneticLength(chr, fromSite, toSite int) float64 {
	d := t.distances[chr-1]
	return d[toSite] - d[fromSite]
}

// TotalLength returns the total autosomal genetic length, in cM, summed
// across all loaded chromosomes.
func (t *MapTable) TotalLength() float64 {
	return t.total
}

// NumSites returns the number of sites recorded for the given chromosome.
func (t *MapTable) NumSites(chr int) int {
	return len(t.distances[chr-1])
}

func parseLine(line string) (float64, error) {
	sep := strings.IndexByte(line, '\t')
	if sep < 0 {
		return 0, errors.New("geneticmap: malformed line, missing tab: " + line)
	}
	rest := line[sep+1:]
	if end := strings.IndexByte(rest, '\t'); end >= 0 {
		rest = rest[:end]
	}
	return strconv.ParseFloat(strings.TrimSpace(rest), 64)
}
