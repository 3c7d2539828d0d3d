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

// Package sampleorder builds the bijection between VCF sample-ID strings and
// the dense integer indices the rest of the pipeline operates on.
package sampleorder

import (
	"bufio"
	"context"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
)

// Ordering maps sample ID strings to dense indices 0..N-1, assigned in VCF
// column order, and back. It is built once and is read-only for the
// remainder of the run.
type Ordering struct {
	ids       []string
	indexByID map[string]int
}

// Load builds an Ordering from the header line of a gzip-compressed VCF
// file. Lines beginning with "##" are metadata and are skipped; the first
// non-"##" line is the header, and fields 10+ (1-indexed) are sample IDs,
// assigned dense indices in order.
func Load(vcfPath string) (*Ordering, error) {
	ctx := vcontext.Background()
	ids, err := readHeaderIDs(ctx, vcfPath)
	if err != nil {
		return nil, errors.E(err, "sampleorder: failed to read VCF header", vcfPath)
	}
	return New(ids), nil
}

// New builds an Ordering directly from an ordered list of sample IDs,
// without reading a VCF file.
func New(ids []string) *Ordering {
	o := &Ordering{
		ids:       ids,
		indexByID: make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		o.indexByID[id] = i
	}
	return o
}

func readHeaderIDs(ctx context.Context, vcfPath string) ([]string, error) {
	f, err := file.Open(ctx, vcfPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close(ctx) }()

	gz, err := gzip.NewReader(f.Reader(ctx))
	if err != nil {
		return nil, err
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	// VCF header lines can be long (thousands of samples); grow the buffer
	// past bufio's 64KiB default.
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "##") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) <= 9 {
			return nil, errors.New("sampleorder: VCF header has no sample columns: " + vcfPath)
		}
		return fields[9:], nil
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("sampleorder: VCF file has no header line: " + vcfPath)
}

// Index returns the dense index assigned to id, and whether id was found.
func (o *Ordering) Index(id string) (int, bool) {
	i, ok := o.indexByID[id]
	return i, ok
}

// ID returns the sample ID assigned to the given dense index.
//
// REQUIRES: 0 <= index < o.Size().
func (o *Ordering) ID(index int) string {
	return o.ids[index]
}

// Size returns the number of individuals in the ordering.
func (o *Ordering) Size() int {
	return len(o.ids)
}

// LastIndex returns the index of the last individual, or -1 if empty.
func (o *Ordering) LastIndex() int {
	return len(o.ids) - 1
}
