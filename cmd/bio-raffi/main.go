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
package main

/*
bio-raffi infers pairwise kinship between samples from the segment reports
produced by an upstream IBD-segment matcher, streaming the aggregation so
that memory use stays bounded regardless of cohort size.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/raffi/geneticmap"
	"github.com/grailbio/raffi/kinship"
	"github.com/grailbio/raffi/sampleorder"
)

var (
	inputFolder    = flag.String("inputFolder", "", "Directory holding the per-chromosome VCF files (required)")
	vcfPrefix      = flag.String("vcfPrefix", "", "Per-chromosome VCF file prefix; the file for chromosome N is <inputFolder>/<vcfPrefix>N.vcf.gz (required)")
	geneticMapDir  = flag.String("geneticMapDir", "", "Directory holding chr1.rMap .. chr22.rMap genetic map files (required)")
	rapidOutputDir = flag.String("rapidOutputDir", "", "Directory holding the upstream matcher's per-chromosome results.max.gz output")
	outputDir      = flag.String("outputDir", ".", "Directory predictions.txt is written to")
	maxDegree      = flag.Int("maxDegree", 4, "Most distant relationship degree to report (1-4)")
	numThreads     = flag.Int("numThreads", kinship.MaxNumThreads, "Number of worker goroutines, one chromosome slice each; clamped to [1, 22]")
)

func bioRaffiUsage() {
	fmt.Printf("Usage: %s -inputFolder DIR -vcfPrefix PREFIX -geneticMapDir DIR [OPTIONS]\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioRaffiUsage
	shutdown := grail.Init()
	defer shutdown()

	if *inputFolder == "" || *vcfPrefix == "" || *geneticMapDir == "" {
		fmt.Fprintln(os.Stderr, "inputFolder, vcfPrefix, and geneticMapDir are all required")
		flag.Usage()
		os.Exit(2)
	}
	if *maxDegree < 1 || *maxDegree > 4 {
		fmt.Fprintln(os.Stderr, "maxDegree must be between 1 and 4")
		flag.Usage()
		os.Exit(2)
	}
	if *rapidOutputDir == "" {
		// Launching the upstream matcher subprocess fleet is out of scope
		// here; the operator must run it separately and point us at its
		// per-chromosome results.max.gz output.
		log.Fatalf("-rapidOutputDir is required: bio-raffi does not invoke the upstream matcher itself")
	}

	ctx := vcontext.Background()

	mapTable, err := geneticmap.Load(*geneticMapDir)
	if err != nil {
		log.Panicf("%v", err)
	}

	vcfPath := fmt.Sprintf("%s/%s%d.vcf.gz", *inputFolder, *vcfPrefix, 1)
	order, err := sampleorder.Load(vcfPath)
	if err != nil {
		log.Panicf("%v", err)
	}

	opts := kinship.Options{
		RapidOutputDir: *rapidOutputDir,
		OutputDir:      *outputDir,
		MaxDegree:      *maxDegree,
		NumThreads:     *numThreads,
	}
	if err := kinship.Run(ctx, order, mapTable, opts); err != nil {
		log.Panicf("%v", err)
	}
	log.Debug.Printf("exiting")
}
