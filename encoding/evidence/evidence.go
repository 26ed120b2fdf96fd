// Copyright 2020 Grail Inc.
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

// Package evidence reads and writes per-position, per-sample allele count
// evidence.
//
// Two encodings are supported.  The text encoding is a TSV with one line per
// (position, sample):
//
//   #CHROM  POS  REF  SAMPLE  SAMPLE_REF  FAILED  SLOTS
//   chr1    100  C    tumor   .           2       A:12,C:30:r,G:0,T:0,N:1:o
//
// POS is 1-based.  SLOTS lists allele:count[:flags] entries in slot order,
// with flags r (reference), i (indel) and o (catch-all); "." denotes an empty
// slot list.  SAMPLE_REF is "." unless the sample's reference differs from
// REF.  Lines of one position must be adjacent.  Files ending in ".gz" are
// gzip-compressed.
//
// The binary encoding (".rio") is a zstd-compressed recordio file with one
// record per position and the sample names in the header.
//
// Positions must be in genomic order: a chromosome may not reappear after
// another one started, and positions within a chromosome strictly increase.
package evidence

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/somatic/genotype"
	"github.com/klauspost/compress/gzip"
)

// Source yields positions in genomic order.
type Source interface {
	// Samples returns the sample names, in the order of
	// genotype.Position.Samples.
	Samples() []string
	// Next returns the next position, or io.EOF after the last one.  The
	// returned position is owned by the caller.
	Next() (*genotype.Position, error)
	// Close releases the underlying file.
	Close(ctx context.Context) error
}

// RioSuffix is the file name suffix of the binary encoding.
const RioSuffix = ".rio"

// Open opens an evidence file.  ".rio" files carry their own sample names;
// when samples is non-empty it must match them.  Text files require samples.
func Open(ctx context.Context, path string, samples []string) (Source, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "evidence.Open", path)
	}
	src, err := newSource(ctx, in, path, samples)
	if err != nil {
		_ = in.Close(ctx)
		return nil, errors.E(err, "evidence.Open", path)
	}
	return src, nil
}

func newSource(ctx context.Context, in file.File, path string, samples []string) (Source, error) {
	if strings.HasSuffix(path, RioSuffix) {
		r, err := NewRioReader(in.Reader(ctx))
		if err != nil {
			return nil, err
		}
		if len(samples) > 0 && !equalStrings(samples, r.Samples()) {
			return nil, errors.E(errors.Invalid,
				"samples", strings.Join(samples, ","), "do not match file samples", strings.Join(r.Samples(), ","))
		}
		return &fileSource{Source: r, in: in}, nil
	}
	var reader io.Reader = in.Reader(ctx)
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, err
		}
		reader = gz
	}
	r, err := NewReader(reader, samples)
	if err != nil {
		return nil, err
	}
	return &fileSource{Source: r, in: in}, nil
}

type fileSource struct {
	Source
	in file.File
}

func (s *fileSource) Close(ctx context.Context) error {
	err := s.Source.Close(ctx)
	if err2 := s.in.Close(ctx); err == nil {
		err = err2
	}
	return err
}

// orderChecker assigns reference ids in order of first appearance and
// rejects out-of-order positions.
type orderChecker struct {
	refIDs  map[string]int
	lastRef string
	lastPos int
	started bool
}

func (o *orderChecker) check(refName string, pos int) (int, error) {
	if o.refIDs == nil {
		o.refIDs = make(map[string]int)
	}
	if o.started && refName == o.lastRef {
		if pos <= o.lastPos {
			return 0, errors.E(errors.Invalid,
				fmt.Sprintf("evidence: position %s:%d does not follow %s:%d", refName, pos+1, refName, o.lastPos+1))
		}
		o.lastPos = pos
		return o.refIDs[refName], nil
	}
	if _, ok := o.refIDs[refName]; ok {
		return 0, errors.E(errors.Invalid,
			fmt.Sprintf("evidence: chromosome %s reappears after %s", refName, o.lastRef))
	}
	id := len(o.refIDs)
	o.refIDs[refName] = id
	o.lastRef, o.lastPos, o.started = refName, pos, true
	return id, nil
}

// fillAbsent gives every sample without evidence the default SNP layout.
func fillAbsent(p *genotype.Position) {
	for i := range p.Samples {
		if p.Samples[i].Slots == nil {
			slots, other := genotype.DefaultSNPSlots(p.Ref[0])
			p.Samples[i] = genotype.SampleCounts{Slots: slots, Other: other}
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
