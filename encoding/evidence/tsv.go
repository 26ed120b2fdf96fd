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
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/somatic/genotype"
)

const tsvHeader = "#CHROM\tPOS\tREF\tSAMPLE\tSAMPLE_REF\tFAILED\tSLOTS"

// evidenceRow is a single line of the text encoding.
type evidenceRow struct {
	Chrom     string `tsv:"#CHROM"`
	Pos       int    `tsv:"POS"`
	Ref       string `tsv:"REF"`
	Sample    string `tsv:"SAMPLE"`
	SampleRef string `tsv:"SAMPLE_REF"`
	Failed    int    `tsv:"FAILED"`
	Slots     string `tsv:"SLOTS"`
}

// Reader reads the text encoding.
type Reader struct {
	tr          *tsv.Reader
	samples     []string
	sampleIndex map[string]int
	order       orderChecker

	pending *evidenceRow
	line    int
	done    bool
}

var _ Source = (*Reader)(nil)

// NewReader creates a Reader for the given samples.  Lines naming any other
// sample are an error.
func NewReader(r io.Reader, samples []string) (*Reader, error) {
	if len(samples) == 0 {
		return nil, errors.E(errors.Invalid, "evidence.NewReader: sample names are required for TSV evidence")
	}
	rd := &Reader{
		samples:     samples,
		sampleIndex: make(map[string]int, len(samples)),
		line:        1,
	}
	for i, s := range samples {
		if _, ok := rd.sampleIndex[s]; ok {
			return nil, errors.E(errors.Invalid, "evidence.NewReader: duplicate sample "+s)
		}
		rd.sampleIndex[s] = i
	}
	rd.tr = tsv.NewReader(r)
	rd.tr.HasHeaderRow = true
	rd.tr.UseHeaderNames = true
	return rd, nil
}

// Samples implements Source.
func (r *Reader) Samples() []string { return r.samples }

// Close implements Source.
func (r *Reader) Close(context.Context) error { return nil }

func (r *Reader) read() (*evidenceRow, error) {
	var row evidenceRow
	if err := r.tr.Read(&row); err != nil {
		if err == io.EOF {
			r.done = true
			return nil, nil
		}
		return nil, errors.E(err, fmt.Sprintf("evidence: line %d", r.line+1))
	}
	r.line++
	return &row, nil
}

// Next implements Source.
func (r *Reader) Next() (*genotype.Position, error) {
	if r.pending == nil && !r.done {
		row, err := r.read()
		if err != nil {
			return nil, err
		}
		r.pending = row
	}
	if r.pending == nil {
		return nil, io.EOF
	}
	first := r.pending
	r.pending = nil
	if first.Pos < 1 || first.Ref == "" {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("evidence: line %d: invalid position %s:%d ref %q", r.line, first.Chrom, first.Pos, first.Ref))
	}
	p := &genotype.Position{
		RefName: first.Chrom,
		Pos:     first.Pos - 1,
		Ref:     first.Ref,
		Samples: make([]genotype.SampleCounts, len(r.samples)),
	}
	if err := r.add(p, first); err != nil {
		return nil, err
	}
	for !r.done {
		row, err := r.read()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		if row.Chrom != first.Chrom || row.Pos != first.Pos {
			r.pending = row
			break
		}
		if err := r.add(p, row); err != nil {
			return nil, err
		}
	}
	var err error
	if p.RefID, err = r.order.check(p.RefName, p.Pos); err != nil {
		return nil, err
	}
	fillAbsent(p)
	return p, nil
}

func (r *Reader) add(p *genotype.Position, row *evidenceRow) error {
	si, ok := r.sampleIndex[row.Sample]
	if !ok {
		return errors.E(errors.Invalid, fmt.Sprintf("evidence: line %d: unknown sample %s", r.line, row.Sample))
	}
	if row.Ref != p.Ref {
		return errors.E(errors.Invalid,
			fmt.Sprintf("evidence: line %d: reference %s differs from %s", r.line, row.Ref, p.Ref))
	}
	s := &p.Samples[si]
	if s.Slots != nil {
		return errors.E(errors.Invalid,
			fmt.Sprintf("evidence: line %d: sample %s repeated at %s:%d", r.line, row.Sample, row.Chrom, row.Pos))
	}
	slots, other, err := parseSlots(row.Slots)
	if err != nil {
		return errors.E(err, fmt.Sprintf("evidence: line %d", r.line))
	}
	s.Slots, s.Other, s.Failed = slots, other, row.Failed
	if row.SampleRef != "." && row.SampleRef != row.Ref {
		s.Ref = row.SampleRef
	}
	return nil
}

// parseSlots parses "allele:count[:flags],...".  The returned slice is
// non-nil even for an empty list.
func parseSlots(field string) ([]genotype.Slot, int, error) {
	slots := []genotype.Slot{}
	other := -1
	if field == "." || field == "" {
		return slots, other, nil
	}
	for i, entry := range strings.Split(field, ",") {
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
			return nil, 0, errors.E(errors.Invalid, "malformed slot "+entry)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil || count < 0 {
			return nil, 0, errors.E(errors.Invalid, "malformed slot count "+entry)
		}
		slot := genotype.Slot{Allele: parts[0], Count: count}
		if len(parts) == 3 {
			for _, flag := range parts[2] {
				switch flag {
				case 'r':
					slot.Reference = true
				case 'i':
					slot.Indel = true
				case 'o':
					if other >= 0 {
						return nil, 0, errors.E(errors.Invalid, "more than one catch-all slot in "+field)
					}
					other = i
				default:
					return nil, 0, errors.E(errors.Invalid, fmt.Sprintf("unknown slot flag %q in %s", flag, entry))
				}
			}
		}
		slots = append(slots, slot)
	}
	return slots, other, nil
}

func formatSlots(s *genotype.SampleCounts) string {
	if len(s.Slots) == 0 {
		return "."
	}
	var b strings.Builder
	for i, slot := range s.Slots {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(slot.Allele)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(slot.Count))
		if slot.Reference || slot.Indel || s.IsOther(i) {
			b.WriteByte(':')
			if slot.Reference {
				b.WriteByte('r')
			}
			if slot.Indel {
				b.WriteByte('i')
			}
			if s.IsOther(i) {
				b.WriteByte('o')
			}
		}
	}
	return b.String()
}

// TSVWriter writes the text encoding.  Every sample gets a line at every
// position.
type TSVWriter struct {
	w       *tsv.Writer
	samples []string
}

// NewTSVWriter creates a TSVWriter and writes the header line.
func NewTSVWriter(w io.Writer, samples []string) (*TSVWriter, error) {
	tw := tsv.NewWriter(w)
	tw.WriteString(tsvHeader)
	if err := tw.EndLine(); err != nil {
		return nil, err
	}
	return &TSVWriter{w: tw, samples: samples}, nil
}

// Write appends p.
func (w *TSVWriter) Write(p *genotype.Position) error {
	if len(p.Samples) != len(w.samples) {
		return errors.E(errors.Invalid,
			fmt.Sprintf("evidence.TSVWriter: position has %d samples, want %d", len(p.Samples), len(w.samples)))
	}
	for i := range p.Samples {
		s := &p.Samples[i]
		w.w.WriteString(p.RefName)
		w.w.WriteInt64(int64(p.Pos + 1))
		w.w.WriteString(p.Ref)
		w.w.WriteString(w.samples[i])
		if s.Ref == "" {
			w.w.WriteString(".")
		} else {
			w.w.WriteString(s.Ref)
		}
		w.w.WriteInt64(int64(s.Failed))
		w.w.WriteString(formatSlots(s))
		if err := w.w.EndLine(); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes buffered lines.
func (w *TSVWriter) Flush() error { return w.w.Flush() }
