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
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/somatic/classifier"
	"github.com/grailbio/somatic/cohort"
	"github.com/grailbio/somatic/encoding/evidence"
	"github.com/grailbio/somatic/encoding/vcf"
	"github.com/grailbio/somatic/interval"
	"github.com/grailbio/somatic/somatic"
)

// Collection of options set via cmdline flags
type callFlags struct {
	covariatesPath   string
	samples          string
	modelPath        string
	matchedReadsPath string
	bedPath          string
	region           string
	outputPath       string
	parallelism      int
	opts             somatic.Opts
}

// loadRegion returns the positions to call, or nil when every position is
// called.
func loadRegion(ctx context.Context, bedPath, region string) (*interval.BEDUnion, error) {
	switch {
	case bedPath != "" && region != "":
		return nil, errors.E(errors.Invalid, "-bed and -region are mutually exclusive")
	case bedPath != "":
		u, err := interval.NewBEDUnionFromPath(ctx, bedPath, interval.NewBEDOpts{})
		if err != nil {
			return nil, errors.E(err, "load", bedPath)
		}
		return &u, nil
	case region != "":
		entry, err := interval.ParseRegionString(region)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "-region", region)
		}
		u, err := interval.NewBEDUnionFromEntries([]interval.Entry{entry})
		if err != nil {
			return nil, err
		}
		return &u, nil
	}
	return nil, nil
}

// loadCalibrators loads the calibrators enabled by opts.
func loadCalibrators(ctx context.Context, model *classifier.Model, opts somatic.Opts) (cal somatic.Calibrators, err error) {
	if opts.IncludeBayes {
		bayes, err := classifier.LoadBayesCalibrator(model, opts.BayesPrior)
		if err != nil {
			return cal, err
		}
		cal.Bayes = bayes
	}
	if opts.IncludeFDR {
		fdr, err := classifier.LoadFDREstimator(ctx, model)
		if err != nil {
			return cal, err
		}
		cal.FDR = fdr
	}
	return cal, nil
}

// call reads the evidence at evidencePath and writes one VCF record per
// qualifying position.  All inputs are loaded and checked before the first
// position is read.
func call(ctx context.Context, evidencePath string, f callFlags) (err error) {
	if f.covariatesPath == "" || f.modelPath == "" {
		return errors.E(errors.Invalid, "-covariates and -model are required")
	}
	if err = f.opts.Validate(); err != nil {
		return err
	}
	cov, err := cohort.ReadCovariates(ctx, f.covariatesPath)
	if err != nil {
		return err
	}
	src, err := evidence.Open(ctx, evidencePath, splitList(f.samples))
	if err != nil {
		return err
	}
	defer func() {
		if e := src.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	samples := src.Samples()
	ped, err := cohort.BuildPedigree(cov, samples)
	if err != nil {
		return err
	}
	reads := cohort.UniformMatchedReads(len(samples))
	if f.matchedReadsPath != "" {
		if reads, err = cohort.ReadMatchedReads(ctx, f.matchedReadsPath, samples); err != nil {
			return err
		}
	}
	model, err := classifier.Load(ctx, f.modelPath)
	if err != nil {
		return err
	}
	cal, err := loadCalibrators(ctx, model, f.opts)
	if err != nil {
		return err
	}
	region, err := loadRegion(ctx, f.bedPath, f.region)
	if err != nil {
		return err
	}
	if region != nil {
		log.Printf("call: restricted to %d bases on %v", region.NumBases(), region.RefNames())
	}
	caller, err := somatic.NewCaller(ped, reads, model, cal, f.opts)
	if err != nil {
		return err
	}

	out, err := vcf.Create(ctx, f.outputPath, f.parallelism)
	if err != nil {
		return err
	}
	defer func() {
		if e := out.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	rw, err := somatic.NewRecordWriter(out, ped, f.opts)
	if err != nil {
		return err
	}
	log.Printf("call: %d samples, %d somatic, writing %s", len(samples), len(ped.Somatic()), f.outputPath)
	for {
		p, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if region != nil && !region.ContainsByName(p.RefName, interval.PosType(p.Pos)) {
			continue
		}
		rec, ok, err := caller.Process(p)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := rw.Write(rec); err != nil {
			return err
		}
	}
	log.Printf("call: %v", caller.Stats())
	counters := caller.Counters()
	for i, name := range samples {
		log.Printf("call: sample %s: %.0f reference bases, proportion %.4f",
			name, counters.Count(i), counters.Proportion(i))
	}
	return nil
}
