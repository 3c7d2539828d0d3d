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
	"context"
	"fmt"
	"io"
	"math"

	"github.com/grailbio/base/errors"
)

// RunSecondPass rereads every spilled candidate pair and classifies it with
// the calibrator's final thresholds. writeCount is the number of records
// the first pass spilled; on mismatch with the number actually read, it
// returns an error. Rows already written to output before the mismatch is
// detected are not withdrawn.
func RunSecondPass(ctx context.Context, spillPath string, writeCount int64, calibrator *Calibrator, maxDegree int, output *PredictionWriter) error {
	calibrator.MaybeShift()
	th := calibrator.Current()

	reader, err := OpenSpillReader(ctx, spillPath)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	var readCount int64
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		readCount++

		// rec.Kinship and rec.IBD2Frac are already fractions of totalLength,
		// so the recovered IBD1 fraction is 4k-2*ibd2Frac directly, without
		// the extra totalLength factor the original's literal formula applies.
		ibd1Frac := math.Max(0, IBD1FracFromKinship(rec.Kinship, rec.IBD2Frac))
		encoding := Encode(rec.Kinship, rec.IBD2Frac, th)
		if !ShouldEmit(encoding, maxDegree) {
			continue
		}
		if err := output.Write(int(rec.ID1Index), int(rec.ID2Index), rec.Kinship, ibd1Frac, rec.IBD2Frac, encoding); err != nil {
			return err
		}
	}

	if readCount != writeCount {
		return errors.E(fmt.Sprintf("kinship: spill record count mismatch: wrote %d, read %d", writeCount, readCount))
	}
	return nil
}
