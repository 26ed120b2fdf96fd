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
package evidence

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/somatic/genotype"
	"github.com/klauspost/compress/gzip"
)

// BaseStrandRow is a single row of a bio-pileup basestrand.tsv file.
type BaseStrandRow struct {
	Chr  string `tsv:"#CHROM"`
	Pos  int64  `tsv:"POS"`
	Ref  string `tsv:"REF"`
	FwdA int64  `tsv:"A+"`
	RevA int64  `tsv:"A-"`
	FwdC int64  `tsv:"C+"`
	RevC int64  `tsv:"C-"`
	FwdG int64  `tsv:"G+"`
	RevG int64  `tsv:"G-"`
	FwdT int64  `tsv:"T+"`
	RevT int64  `tsv:"T-"`
}

// ReadBaseStrandTSV reads a basestrand.tsv file.  The '#'-prefixed header is
// skipped; columns are read in order.
func ReadBaseStrandTSV(r io.Reader) ([]BaseStrandRow, error) {
	tr := tsv.NewReader(r)
	tr.Comment = '#'
	var rows []BaseStrandRow
	for {
		var row BaseStrandRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readBaseStrandPath(ctx context.Context, path string) (rows []BaseStrandRow, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return ReadBaseStrandTSV(r)
}

// MergeBaseStrandTSVs loads one basestrand.tsv per sample, in parallel, and
// merges them into positions with the default A/C/G/T/N slot layout.  Counts
// of both strands are summed.  The result is sorted by chromosome, in order of
// first appearance across the files, then by position.
func MergeBaseStrandTSVs(ctx context.Context, paths, samples []string) ([]*genotype.Position, error) {
	if len(paths) != len(samples) {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("evidence.MergeBaseStrandTSVs: %d paths for %d samples", len(paths), len(samples)))
	}
	perSample := make([][]BaseStrandRow, len(paths))
	err := traverse.Each(len(paths), func(i int) error {
		rows, err := readBaseStrandPath(ctx, paths[i])
		if err != nil {
			return errors.E(err, "evidence.MergeBaseStrandTSVs", paths[i])
		}
		perSample[i] = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mergeBaseStrandRows(perSample)
}

type posKey struct {
	refID int
	pos   int64
}

func mergeBaseStrandRows(perSample [][]BaseStrandRow) ([]*genotype.Position, error) {
	refIDs := map[string]int{}
	index := map[posKey]*genotype.Position{}
	var positions []*genotype.Position
	for si, rows := range perSample {
		for _, row := range rows {
			ref := strings.ToUpper(row.Ref)
			if row.Pos < 1 || ref == "" {
				return nil, errors.E(errors.Invalid,
					fmt.Sprintf("evidence: invalid basestrand row %s:%d ref %q", row.Chr, row.Pos, row.Ref))
			}
			refID, ok := refIDs[row.Chr]
			if !ok {
				refID = len(refIDs)
				refIDs[row.Chr] = refID
			}
			key := posKey{refID, row.Pos}
			p := index[key]
			if p == nil {
				p = &genotype.Position{
					RefName: row.Chr,
					RefID:   refID,
					Pos:     int(row.Pos - 1),
					Ref:     ref,
					Samples: make([]genotype.SampleCounts, len(perSample)),
				}
				index[key] = p
				positions = append(positions, p)
			} else if p.Ref != ref {
				return nil, errors.E(errors.Invalid,
					fmt.Sprintf("evidence: reference at %s:%d is %s in one sample, %s in another", row.Chr, row.Pos, p.Ref, ref))
			}
			s := &p.Samples[si]
			if s.Slots != nil {
				return nil, errors.E(errors.Invalid,
					fmt.Sprintf("evidence: sample %d has two rows for %s:%d", si, row.Chr, row.Pos))
			}
			s.Slots, s.Other = genotype.DefaultSNPSlots(ref[0])
			s.Slots[0].Count = int(row.FwdA + row.RevA)
			s.Slots[1].Count = int(row.FwdC + row.RevC)
			s.Slots[2].Count = int(row.FwdG + row.RevG)
			s.Slots[3].Count = int(row.FwdT + row.RevT)
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].RefID != positions[j].RefID {
			return positions[i].RefID < positions[j].RefID
		}
		return positions[i].Pos < positions[j].Pos
	})
	for _, p := range positions {
		fillAbsent(p)
	}
	log.Printf("evidence.MergeBaseStrandTSVs: merged %d positions from %d samples", len(positions), len(perSample))
	return positions, nil
}
