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
	"encoding/binary"
	"io"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// SpillRecord is a candidate pair whose classification was deferred until
// the calibrator converges. It is written and read as a fixed-width binary
// record; no framing is needed because the spill file has exactly one
// writer and, later, exactly one reader.
type SpillRecord struct {
	ID1Index int32
	ID2Index int32
	Kinship  float64
	IBD2Frac float64
}

const spillRecordSize = 4 + 4 + 8 + 8

func (r SpillRecord) marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.ID1Index))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.ID2Index))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(r.Kinship))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(r.IBD2Frac))
}

func unmarshalSpillRecord(buf []byte) SpillRecord {
	return SpillRecord{
		ID1Index: int32(binary.LittleEndian.Uint32(buf[0:4])),
		ID2Index: int32(binary.LittleEndian.Uint32(buf[4:8])),
		Kinship:  math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16])),
		IBD2Frac: math.Float64frombits(binary.LittleEndian.Uint64(buf[16:24])),
	}
}

// SpillWriter appends SpillRecords to a gzip-compressed stream and tracks
// how many it has written, so the second pass can check the record count
// invariant.
type SpillWriter struct {
	f       file.File
	gz      *gzip.Writer
	scratch [spillRecordSize]byte
	count   int64
}

// CreateSpillWriter creates (or truncates) the spill file at path.
func CreateSpillWriter(ctx context.Context, path string) (*SpillWriter, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "kinship: failed to create spill file", path)
	}
	return &SpillWriter{f: f, gz: gzip.NewWriter(f.Writer(ctx))}, nil
}

// Write appends one record.
func (w *SpillWriter) Write(r SpillRecord) error {
	r.marshal(w.scratch[:])
	if _, err := w.gz.Write(w.scratch[:]); err != nil {
		return errors.E(err, "kinship: failed to write spill record")
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *SpillWriter) Count() int64 {
	return w.count
}

// Close flushes and closes the spill file.
func (w *SpillWriter) Close(ctx context.Context) error {
	if err := w.gz.Close(); err != nil {
		return err
	}
	return w.f.Close(ctx)
}

// SpillReader streams SpillRecords back out of a spill file written by
// SpillWriter.
type SpillReader struct {
	ctx context.Context
	f   file.File
	gz  *gzip.Reader
}

// OpenSpillReader opens the spill file at path for streaming reads.
func OpenSpillReader(ctx context.Context, path string) (*SpillReader, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "kinship: failed to open spill file", path)
	}
	gz, err := gzip.NewReader(f.Reader(ctx))
	if err != nil {
		_ = f.Close(ctx)
		return nil, errors.E(err, "kinship: failed to open spill gzip stream", path)
	}
	return &SpillReader{ctx: ctx, f: f, gz: gz}, nil
}

// Next returns the next record, io.EOF when the stream is exhausted, or
// another error on a short/corrupt record.
func (r *SpillReader) Next() (SpillRecord, error) {
	var buf [spillRecordSize]byte
	if _, err := io.ReadFull(r.gz, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return SpillRecord{}, errors.New("kinship: truncated spill record")
		}
		return SpillRecord{}, err
	}
	return unmarshalSpillRecord(buf[:]), nil
}

// Close closes the spill file.
func (r *SpillReader) Close() error {
	if err := r.gz.Close(); err != nil {
		_ = r.f.Close(r.ctx)
		return err
	}
	return r.f.Close(r.ctx)
}
