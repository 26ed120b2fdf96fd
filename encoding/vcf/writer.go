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

// Package vcf writes VCF 4.1 text files.  The schema (meta lines, INFO,
// FILTER and FORMAT fields, and sample columns) is declared on a Writer
// before WriteHeader; records are then filled field by field.
package vcf

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
)

// Type is the value type of an INFO or FORMAT field.
type Type int

const (
	Integer Type = iota
	Float
	Flag
	Character
	String
)

var typeNames = [...]string{"Integer", "Float", "Flag", "Character", "String"}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Field describes an INFO, FILTER or FORMAT header entry.  Number and Type
// are unused for FILTER.
type Field struct {
	ID          string
	Number      string
	Type        Type
	Description string
}

type meta struct {
	key, value string
}

// Writer writes a VCF file.
type Writer struct {
	tw *tsv.Writer

	metas   []meta
	infos   []Field
	filters []Field
	formats []Field
	samples []string
	ids     map[string]bool

	headerWritten bool

	// Set by Create.
	out  file.File
	bgzf *bgzf.Writer
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{tw: tsv.NewWriter(w), ids: make(map[string]bool)}
}

// Create creates a VCF file at path.  Paths ending in ".gz" are block-gzip
// compressed.  Close must be called to flush the file.
func Create(ctx context.Context, path string, parallelism int) (*Writer, error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "vcf.Create", path)
	}
	var w *Writer
	if fileio.DetermineType(path) == fileio.Gzip {
		bw := bgzf.NewWriter(out.Writer(ctx), parallelism)
		w = NewWriter(bw)
		w.bgzf = bw
	} else {
		w = NewWriter(out.Writer(ctx))
	}
	w.out = out
	return w, nil
}

func (w *Writer) checkDefine(kind, id string) error {
	if w.headerWritten {
		return errors.E(errors.Precondition, fmt.Sprintf("vcf: cannot define %s %s after the header is written", kind, id))
	}
	if id == "" || strings.ContainsAny(id, " \t;=,") {
		return errors.E(errors.Invalid, fmt.Sprintf("vcf: invalid %s id %q", kind, id))
	}
	key := kind + "/" + id
	if w.ids[key] {
		return errors.E(errors.Invalid, fmt.Sprintf("vcf: %s %s defined twice", kind, id))
	}
	w.ids[key] = true
	return nil
}

// DefineMeta adds a "##key=value" header line.
func (w *Writer) DefineMeta(key, value string) error {
	if w.headerWritten {
		return errors.E(errors.Precondition, "vcf: cannot define meta "+key+" after the header is written")
	}
	w.metas = append(w.metas, meta{key, value})
	return nil
}

// DefineInfo declares an INFO field and returns its index for
// Record.SetInfo.
func (w *Writer) DefineInfo(id, number string, typ Type, description string) (int, error) {
	if err := w.checkDefine("INFO", id); err != nil {
		return -1, err
	}
	w.infos = append(w.infos, Field{id, number, typ, description})
	return len(w.infos) - 1, nil
}

// DefineFilter declares a FILTER value.
func (w *Writer) DefineFilter(id, description string) error {
	if err := w.checkDefine("FILTER", id); err != nil {
		return err
	}
	w.filters = append(w.filters, Field{ID: id, Description: description})
	return nil
}

// DefineFormat declares a FORMAT field and returns its index for
// Record.SetSampleValue.
func (w *Writer) DefineFormat(id, number string, typ Type, description string) (int, error) {
	if err := w.checkDefine("FORMAT", id); err != nil {
		return -1, err
	}
	w.formats = append(w.formats, Field{id, number, typ, description})
	return len(w.formats) - 1, nil
}

// DefineSamples sets the sample columns.
func (w *Writer) DefineSamples(samples []string) error {
	if w.headerWritten {
		return errors.E(errors.Precondition, "vcf: cannot define samples after the header is written")
	}
	w.samples = append([]string(nil), samples...)
	return nil
}

func quote(s string) string {
	return `"` + strings.Replace(s, `"`, `\"`, -1) + `"`
}

// WriteHeader writes the meta-information lines and the column header.  The
// schema is frozen afterwards.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return errors.E(errors.Precondition, "vcf: header written twice")
	}
	w.headerWritten = true
	w.tw.WriteString("##fileformat=VCFv4.1")
	if err := w.tw.EndLine(); err != nil {
		return err
	}
	for _, m := range w.metas {
		w.tw.WriteString("##" + m.key + "=" + m.value)
		if err := w.tw.EndLine(); err != nil {
			return err
		}
	}
	for _, f := range w.infos {
		w.tw.WriteString(fmt.Sprintf("##INFO=<ID=%s,Number=%s,Type=%s,Description=%s>", f.ID, f.Number, f.Type, quote(f.Description)))
		if err := w.tw.EndLine(); err != nil {
			return err
		}
	}
	for _, f := range w.filters {
		w.tw.WriteString(fmt.Sprintf("##FILTER=<ID=%s,Description=%s>", f.ID, quote(f.Description)))
		if err := w.tw.EndLine(); err != nil {
			return err
		}
	}
	for _, f := range w.formats {
		w.tw.WriteString(fmt.Sprintf("##FORMAT=<ID=%s,Number=%s,Type=%s,Description=%s>", f.ID, f.Number, f.Type, quote(f.Description)))
		if err := w.tw.EndLine(); err != nil {
			return err
		}
	}
	w.tw.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO")
	if len(w.samples) > 0 {
		w.tw.WriteString("FORMAT")
		for _, s := range w.samples {
			w.tw.WriteString(s)
		}
	}
	return w.tw.EndLine()
}

// Record is one data line.  Unset INFO fields are omitted, unset sample
// values are written as ".".
type Record struct {
	Chrom string
	// Pos is 1-based.
	Pos    int
	ID     string
	Ref    string
	Alt    []string
	Qual   string
	Filter string

	info    []string
	flags   []bool
	samples [][]string
}

// NewRecord returns an empty record shaped after the writer's schema.
func (w *Writer) NewRecord() *Record {
	r := &Record{
		info:    make([]string, len(w.infos)),
		flags:   make([]bool, len(w.infos)),
		samples: make([][]string, len(w.samples)),
	}
	for i := range r.samples {
		r.samples[i] = make([]string, len(w.formats))
	}
	return r
}

// SetInfo sets INFO field idx.
func (r *Record) SetInfo(idx int, value string) {
	r.info[idx] = value
}

// SetInfoFloat sets INFO field idx to v.
func (r *Record) SetInfoFloat(idx int, v float64) {
	r.info[idx] = FormatFloat(v)
}

// SetFlag sets or clears the Flag INFO field idx.
func (r *Record) SetFlag(idx int, on bool) {
	r.flags[idx] = on
}

// SetSampleValue sets FORMAT field idx of the given sample column.
func (r *Record) SetSampleValue(idx, sample int, value string) {
	r.samples[sample][idx] = value
}

// FormatFloat renders v with up to six significant digits.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}

// Write writes r.  The header must have been written.
func (w *Writer) Write(r *Record) error {
	if !w.headerWritten {
		return errors.E(errors.Precondition, "vcf: record written before the header")
	}
	if r.Pos < 1 {
		return errors.E(errors.Invalid, fmt.Sprintf("vcf: invalid position %s:%d", r.Chrom, r.Pos))
	}
	w.tw.WriteString(r.Chrom)
	w.tw.WriteInt64(int64(r.Pos))
	w.tw.WriteString(orDot(r.ID))
	w.tw.WriteString(r.Ref)
	w.tw.WriteString(orDot(strings.Join(r.Alt, ",")))
	w.tw.WriteString(orDot(r.Qual))
	w.tw.WriteString(orDot(r.Filter))

	var info strings.Builder
	for i, f := range w.infos {
		switch {
		case f.Type == Flag:
			if !r.flags[i] {
				continue
			}
		case r.info[i] == "":
			continue
		}
		if info.Len() > 0 {
			info.WriteByte(';')
		}
		info.WriteString(f.ID)
		if f.Type != Flag {
			info.WriteByte('=')
			info.WriteString(r.info[i])
		}
	}
	w.tw.WriteString(orDot(info.String()))

	if len(w.samples) > 0 {
		ids := make([]string, len(w.formats))
		for i, f := range w.formats {
			ids[i] = f.ID
		}
		w.tw.WriteString(strings.Join(ids, ":"))
		values := make([]string, len(w.formats))
		for _, sample := range r.samples {
			for i, v := range sample {
				values[i] = orDot(v)
			}
			w.tw.WriteString(strings.Join(values, ":"))
		}
	}
	return w.tw.EndLine()
}

// Flush flushes buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	return w.tw.Flush()
}

// Close flushes the writer and, for writers made by Create, closes the file.
func (w *Writer) Close(ctx context.Context) (err error) {
	err = w.tw.Flush()
	if w.bgzf != nil {
		if e := w.bgzf.Close(); e != nil && err == nil {
			err = e
		}
	}
	if w.out != nil {
		if e := w.out.Close(ctx); e != nil && err == nil {
			err = e
		}
	}
	return err
}
