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
	"math"

	"github.com/grailbio/somatic/cohort"
	"github.com/grailbio/somatic/genotype"
)

const (
	// NoCandidatePriority is reported for a somatic sample without any
	// candidate slot.
	NoCandidatePriority = -10
	// Counts are normalized to reads per priorityScale matched reads.
	priorityScale = 1e8
)

// PriorityScorer contrasts the depth-normalized counts of somatic candidates
// with those of their relatives.
type PriorityScorer struct {
	ped   *cohort.Pedigree
	reads cohort.MatchedReads
}

// NewPriorityScorer creates a PriorityScorer.  reads must have one entry per
// pedigree sample.
func NewPriorityScorer(ped *cohort.Pedigree, reads cohort.MatchedReads) *PriorityScorer {
	return &PriorityScorer{ped: ped, reads: reads}
}

func (s *PriorityScorer) normalize(count, sample int) float64 {
	reads := s.reads[sample]
	if reads < 1 {
		reads = 1
	}
	return priorityScale * float64(count) / float64(reads)
}

// contribution returns the smallest normalized count difference between the
// somatic sample and any of relatives for the allele at slot, or 0 when
// relatives is empty.
func (s *PriorityScorer) contribution(p *genotype.Position, somatic int, relatives []int, slot int) float64 {
	if len(relatives) == 0 {
		return 0
	}
	allele := p.Samples[somatic].Slots[slot]
	own := s.normalize(allele.Count, somatic)
	c := math.Inf(1)
	for _, ri := range relatives {
		c = math.Min(c, own-s.normalize(p.Samples[ri].CountOf(allele), ri))
	}
	return c
}

// Score stores in priority[si], for each somatic sample si, the largest sum
// of parent and germline contributions over the sample's candidate slots.
func (s *PriorityScorer) Score(p *genotype.Position, g *Grids, priority []float64) {
	for _, si := range s.ped.Somatic() {
		link := s.ped.Link(si)
		parents := link.Parents()
		best := float64(NoCandidatePriority)
		for slot := 0; slot < p.Samples[si].NumSlots(); slot++ {
			if !g.Candidate(si, slot) {
				continue
			}
			v := s.contribution(p, si, parents, slot) + s.contribution(p, si, link.Germline, slot)
			best = math.Max(best, v)
		}
		priority[si] = best
	}
}
