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
package cohort

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// MatchedReads holds, per sample, the total number of reads matched to the
// reference.  Every value is at least 1.
type MatchedReads []int64

// UniformMatchedReads returns MatchedReads of 1 for n samples.
func UniformMatchedReads(n int) MatchedReads {
	m := make(MatchedReads, n)
	for i := range m {
		m[i] = 1
	}
	return m
}

type matchedReadsRow struct {
	Sample string `tsv:"SAMPLE"`
	Reads  int64  `tsv:"MATCHED_READS"`
}

// ReadMatchedReads reads a two-column SAMPLE/MATCHED_READS table with a
// header row.  Samples absent from the table get 1.
func ReadMatchedReads(ctx context.Context, path string, samples []string) (m MatchedReads, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "read matched reads", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	if m, err = ParseMatchedReads(in.Reader(ctx), samples); err != nil {
		return nil, errors.E(err, path)
	}
	return m, nil
}

// ParseMatchedReads is ReadMatchedReads on an io.Reader.
func ParseMatchedReads(r io.Reader, samples []string) (MatchedReads, error) {
	index := make(map[string]int, len(samples))
	for i, s := range samples {
		index[s] = i
	}
	m := UniformMatchedReads(len(samples))
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	for {
		var row matchedReadsRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(err, "parse matched reads")
		}
		i, ok := index[row.Sample]
		if !ok {
			log.Debug.Printf("ParseMatchedReads: ignoring sample %s", row.Sample)
			continue
		}
		if row.Reads > 1 {
			m[i] = row.Reads
		}
	}
	return m, nil
}
