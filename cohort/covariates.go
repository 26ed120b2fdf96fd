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

// Package cohort describes the samples of a sequencing cohort: their
// covariates, the pedigree relating somatic samples to their parents and
// germline relatives, and per-sample sequencing depth.
package cohort

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Covariates is a table of per-sample metadata.  The first column of the
// table holds the sample id; the remaining columns are arbitrary.
type Covariates struct {
	columns  []string
	colIndex map[string]int
	ids      []string
	rowIndex map[string]int
	values   [][]string
}

// ReadCovariates reads a covariate table from path.
func ReadCovariates(ctx context.Context, path string) (cov *Covariates, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "read covariates", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	if cov, err = ParseCovariates(in.Reader(ctx)); err != nil {
		return nil, errors.E(err, path)
	}
	return cov, nil
}

// ParseCovariates parses a tab-separated covariate table.  The first row is
// the header.  Rows whose first field starts with '#' after the header are
// ignored.  Rows shorter than the header are padded with empty values.
func ParseCovariates(r io.Reader) (*Covariates, error) {
	tr := tsv.NewReader(r)
	tr.FieldsPerRecord = -1
	tr.LazyQuotes = true
	cov := &Covariates{
		colIndex: map[string]int{},
		rowIndex: map[string]int{},
	}
	nLine := 0
	for {
		fields, err := tr.Reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(err, "parse covariates")
		}
		nLine++
		fields = append([]string(nil), fields...)
		if cov.columns == nil {
			if err := cov.setHeader(fields); err != nil {
				return nil, err
			}
			continue
		}
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) > len(cov.columns) {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("covariates line %d: expect at most %d columns, found %d", nLine, len(cov.columns), len(fields)))
		}
		// Trailing empty values may be omitted.
		for len(fields) < len(cov.columns) {
			fields = append(fields, "")
		}
		id := fields[0]
		if _, ok := cov.rowIndex[id]; ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("covariates line %d: duplicate sample id %s", nLine, id))
		}
		cov.rowIndex[id] = len(cov.ids)
		cov.ids = append(cov.ids, id)
		cov.values = append(cov.values, fields)
	}
	if cov.columns == nil {
		return nil, errors.E(errors.Invalid, "covariates: missing header row")
	}
	return cov, nil
}

func (c *Covariates) setHeader(fields []string) error {
	if len(fields) == 0 {
		return errors.E(errors.Invalid, "covariates: empty header row")
	}
	c.columns = make([]string, len(fields))
	for i, name := range fields {
		if i == 0 {
			name = strings.TrimPrefix(name, "#")
		}
		name = strings.TrimSpace(name)
		if _, ok := c.colIndex[name]; ok {
			return errors.E(errors.Invalid, fmt.Sprintf("covariates: duplicate column %s", name))
		}
		c.columns[i] = name
		c.colIndex[name] = i
	}
	return nil
}

// Columns returns the column names in table order, sample id column first.
func (c *Covariates) Columns() []string {
	return c.columns
}

// Has returns true iff the table defines the given column.
func (c *Covariates) Has(column string) bool {
	_, ok := c.colIndex[column]
	return ok
}

// SampleIDs returns the sample ids in table order.
func (c *Covariates) SampleIDs() []string {
	return c.ids
}

// Value returns the value of column for sample id.  ok is false when either
// the sample or the column is unknown.
func (c *Covariates) Value(id, column string) (value string, ok bool) {
	row, ok := c.rowIndex[id]
	if !ok {
		return "", false
	}
	col, ok := c.colIndex[column]
	if !ok {
		return "", false
	}
	return c.values[row][col], true
}

// SamplesWith returns, in table order, the ids of samples whose column
// equals value exactly.
func (c *Covariates) SamplesWith(column, value string) []string {
	col, ok := c.colIndex[column]
	if !ok {
		return nil
	}
	var ids []string
	for row, fields := range c.values {
		if fields[col] == value {
			ids = append(ids, c.ids[row])
		}
	}
	return ids
}
