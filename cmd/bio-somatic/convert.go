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
package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/somatic/cohort"
	"github.com/grailbio/somatic/encoding/evidence"
	"github.com/klauspost/compress/gzip"
)

// convert merges per-sample basestrand TSVs into one evidence file.
func convert(ctx context.Context, destPath string, srcPaths, samples []string) (err error) {
	if len(samples) == 0 {
		return errors.E(errors.Invalid, "-samples is required")
	}
	positions, err := evidence.MergeBaseStrandTSVs(ctx, srcPaths, samples)
	if err != nil {
		return err
	}
	out, err := file.Create(ctx, destPath)
	if err != nil {
		return errors.E(err, "convert", destPath)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := out.Writer(ctx)
	if strings.HasSuffix(destPath, evidence.RioSuffix) {
		rw := evidence.NewRioWriter(w, samples)
		for _, p := range positions {
			if err := rw.Append(p); err != nil {
				return err
			}
		}
		if err := rw.Finish(); err != nil {
			return err
		}
		log.Printf("convert: wrote %d positions to %s", len(positions), destPath)
		return nil
	}
	var gz *gzip.Writer
	if strings.HasSuffix(destPath, ".gz") {
		gz = gzip.NewWriter(w)
		w = gz
	}
	tw, err := evidence.NewTSVWriter(w, samples)
	if err != nil {
		return err
	}
	for _, p := range positions {
		if err := tw.Write(p); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	log.Printf("convert: wrote %d positions to %s", len(positions), destPath)
	return nil
}

// pedigree prints the relationships resolved from the covariates at path.
func pedigree(ctx context.Context, out io.Writer, path string, samples []string) error {
	if len(samples) == 0 {
		return errors.E(errors.Invalid, "-samples is required")
	}
	cov, err := cohort.ReadCovariates(ctx, path)
	if err != nil {
		return err
	}
	ped, err := cohort.BuildPedigree(cov, samples)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, ped.String())
	return err
}
