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

// Package somatic decides, position by position, which alleles observed in
// somatic samples are plausibly acquired rather than inherited.
//
// Caller.Process runs the following stages on each position:
//
//   - genotype.Resolver canonicalizes the alleles of every sample;
//   - Filter flags candidate slots of somatic samples against their parents
//     and germline relatives;
//   - EstimateFrequencies and PriorityScorer summarize the candidates;
//   - Gate lets a Classifier veto samples;
//   - optional Calibrators adjust the surviving probabilities.
//
// The candidate grids are owned by the Caller and passed explicitly between
// stages.  A Caller is not safe for concurrent use.
package somatic

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/somatic/cohort"
	"github.com/grailbio/somatic/genotype"
)

// Filter column values.
const (
	FilterPass          = "PASS"
	FilterStrictSomatic = "STRICT_SOMATIC"
)

// Record holds everything reported for an emitted position.  Per-sample
// slices are indexed by sample; only somatic entries are meaningful.
type Record struct {
	RefName    string
	RefID      int
	Pos        int // 0-based
	Resolution *genotype.Resolution
	// Filter is FilterPass when some strict candidate survived the gate, and
	// FilterStrictSomatic otherwise.
	Filter     string
	Frequency  []float64
	Priority   []float64
	Prediction []Prediction
	Scored     []bool
	// Bayes and FDR are nil unless enabled.
	Bayes []float64
	FDR   []float64
}

// Calibrators bundles the optional probability calibrators.
type Calibrators struct {
	Bayes Calibrator
	FDR   Calibrator
}

// Stats counts the outcome of processed positions.
type Stats struct {
	Positions   int
	NoAlternate int
	NoCandidate int
	Vetoed      int
	Emitted     int
}

func (s Stats) String() string {
	return fmt.Sprintf("positions=%d no-alternate=%d no-candidate=%d vetoed=%d emitted=%d",
		s.Positions, s.NoAlternate, s.NoCandidate, s.Vetoed, s.Emitted)
}

// Caller runs the decision stages over a stream of positions.
type Caller struct {
	opts        Opts
	ped         *cohort.Pedigree
	resolver    *genotype.Resolver
	filter      *Filter
	scorer      *PriorityScorer
	gate        *Gate
	calibrators Calibrators
	counters    *Counters
	grids       Grids
	stats       Stats
}

// NewCaller creates a Caller.  All setup problems are reported here so that
// no position is processed with an incomplete configuration.
func NewCaller(ped *cohort.Pedigree, reads cohort.MatchedReads, classifier Classifier, cal Calibrators, opts Opts) (*Caller, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if classifier == nil {
		return nil, errors.E(errors.Invalid, "somatic.NewCaller: a classifier is required")
	}
	if opts.IncludeBayes && cal.Bayes == nil {
		return nil, errors.E(errors.Invalid, "somatic.NewCaller: bayes output enabled without a calibrator")
	}
	if opts.IncludeFDR && cal.FDR == nil {
		return nil, errors.E(errors.Invalid, "somatic.NewCaller: fdr output enabled without an estimator")
	}
	if len(reads) != ped.NumSamples() {
		return nil, errors.E(errors.Invalid, fmt.Sprintf(
			"somatic.NewCaller: %d matched-read counts for %d samples", len(reads), ped.NumSamples()))
	}
	return &Caller{
		opts:        opts,
		ped:         ped,
		resolver:    genotype.NewResolver(),
		filter:      NewFilter(ped, opts),
		scorer:      NewPriorityScorer(ped, reads),
		gate:        NewGate(ped, classifier, opts.ModelPThreshold),
		calibrators: cal,
		counters:    NewCounters(ped.NumSamples()),
	}, nil
}

// Process runs all stages on p.  It returns the record to emit, or false
// when the position does not qualify.  The cumulative counters are updated
// from p either way.  A position whose sample count differs from the
// pedigree's is an error and leaves the Caller untouched.
func (c *Caller) Process(p *genotype.Position) (*Record, bool, error) {
	if len(p.Samples) != c.ped.NumSamples() {
		return nil, false, errors.E(errors.Invalid, fmt.Sprintf("%s:%d has %d samples, expect %d",
			p.RefName, p.Pos+1, len(p.Samples), c.ped.NumSamples()))
	}
	c.counters.Refresh()
	defer c.counters.Update(p)
	c.stats.Positions++

	res := c.resolver.Resolve(p)
	if !res.Reportable || !res.HasAlternate() {
		c.stats.NoAlternate++
		return nil, false, nil
	}
	if !c.filter.Compute(p, &c.grids) {
		c.stats.NoCandidate++
		return nil, false, nil
	}
	rec := c.newRecord(p, res)
	EstimateFrequencies(c.filter, p, &c.grids, rec.Frequency)
	c.scorer.Score(p, &c.grids, rec.Priority)
	c.gate.Apply(p, &c.grids, rec.Prediction, rec.Scored)
	if !c.grids.AnyCandidate() {
		c.stats.Vetoed++
		return nil, false, nil
	}
	c.calibrate(rec)
	if c.grids.AnyStrict() {
		rec.Filter = FilterPass
	} else {
		rec.Filter = FilterStrictSomatic
	}
	c.stats.Emitted++
	return rec, true, nil
}

func (c *Caller) newRecord(p *genotype.Position, res *genotype.Resolution) *Record {
	n := len(p.Samples)
	rec := &Record{
		RefName:    p.RefName,
		RefID:      p.RefID,
		Pos:        p.Pos,
		Resolution: res,
		Frequency:  make([]float64, n),
		Priority:   make([]float64, n),
		Prediction: make([]Prediction, n),
		Scored:     make([]bool, n),
	}
	if c.opts.IncludeBayes {
		rec.Bayes = make([]float64, n)
	}
	if c.opts.IncludeFDR {
		rec.FDR = make([]float64, n)
	}
	return rec
}

func (c *Caller) calibrate(rec *Record) {
	for _, si := range c.ped.Somatic() {
		if !rec.Scored[si] {
			continue
		}
		prob := rec.Prediction[si].Mutated
		if rec.Bayes != nil {
			rec.Bayes[si] = c.calibrators.Bayes.Calibrate(prob)
		}
		if rec.FDR != nil {
			rec.FDR[si] = c.calibrators.FDR.Calibrate(prob)
		}
	}
}

// Grids returns the candidate grids of the last processed position.
func (c *Caller) Grids() *Grids {
	return &c.grids
}

// Counters returns the cumulative per-sample counters.
func (c *Caller) Counters() *Counters {
	return c.counters
}

// Stats returns the outcome counts of the positions processed so far.
func (c *Caller) Stats() Stats {
	return c.stats
}
