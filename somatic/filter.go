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
package somatic

import (
	"github.com/grailbio/somatic/cohort"
	"github.com/grailbio/somatic/genotype"
)

const (
	// A parent "has" an allele when its count exceeds its own failed-base
	// count or parentCountFloor.
	parentCountFloor = 5
	// A germline relative "has" an allele when its count is at least
	// germlineCountFloor and at least germlineFailedRatio times the somatic
	// sample's failed-base count.
	germlineCountFloor  = 10
	germlineFailedRatio = 1.5
	// A candidate's frequency must exceed frequencyRatio times the largest
	// frequency of the same allele among its relatives.
	frequencyRatio = 3

	maxInt = int(^uint(0) >> 1)
)

// Filter flags the somatic candidates of a position.
type Filter struct {
	ped                     *cohort.Pedigree
	strictThresholdParents  int
	strictThresholdGermline int
}

// NewFilter creates a Filter for the given pedigree.
func NewFilter(ped *cohort.Pedigree, opts Opts) *Filter {
	return &Filter{
		ped:                     ped,
		strictThresholdParents:  opts.StrictThresholdParents,
		strictThresholdGermline: opts.StrictThresholdGermline,
	}
}

// Compute recomputes g from scratch for p and returns true iff any candidate
// flag is set.  It depends only on p and the Filter, so repeated calls on the
// same position produce identical grids.
func (f *Filter) Compute(p *genotype.Position, g *Grids) bool {
	g.Reset(len(p.Samples), p.MaxSlots())
	for _, si := range f.ped.Somatic() {
		link := f.ped.Link(si)
		somatic := &p.Samples[si]
		for slot := 0; slot < somatic.NumSlots(); slot++ {
			if candidate, strict := f.evaluate(p, somatic, link, slot); candidate {
				g.set(si, slot, strict)
			}
		}
	}
	return g.AnyCandidate()
}

// evaluate decides whether slot of the somatic sample is a candidate, and
// whether it is a strict one.  Relatives are matched by allele, since their
// slot layouts may differ from the somatic sample's.
func (f *Filter) evaluate(p *genotype.Position, somatic *genotype.SampleCounts, link cohort.Link, slot int) (candidate, strict bool) {
	if somatic.Count(slot) == 0 {
		return false, false
	}
	allele := somatic.Slots[slot]
	strict = true
	minCoverage := maxInt
	maxFrequency := 0.0
	consult := func(relative *genotype.SampleCounts) {
		if c := relative.Coverage(); c < minCoverage {
			minCoverage = c
		}
		if freq := relative.FrequencyOf(allele); freq > maxFrequency {
			maxFrequency = freq
		}
	}
	for _, pi := range link.Parents() {
		parent := &p.Samples[pi]
		count := parent.CountOf(allele)
		if count > parent.Failed || count > parentCountFloor {
			return false, false
		}
		strict = strict && count <= f.strictThresholdParents
		consult(parent)
	}
	for _, gi := range link.Germline {
		germline := &p.Samples[gi]
		count := germline.CountOf(allele)
		if count >= germlineCountFloor && float64(count) >= germlineFailedRatio*float64(somatic.Failed) {
			return false, false
		}
		strict = strict && count <= f.strictThresholdGermline
		consult(germline)
	}
	// Relatives must be covered at least half as deeply as the somatic sample.
	if minCoverage < somatic.Coverage()/2 {
		return false, false
	}
	if somatic.Frequency(slot) <= frequencyRatio*maxFrequency {
		return false, false
	}
	return true, strict
}
