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
	"github.com/grailbio/somatic/genotype"
)

// EstimateFrequencies re-derives g through f, then stores in freq[si], for
// each somatic sample si, the largest frequency (as a percentage) among the
// sample's candidate slots.  Every entry is 0 when no sample of the position
// has a candidate.  len(freq) must be at least len(p.Samples).
func EstimateFrequencies(f *Filter, p *genotype.Position, g *Grids, freq []float64) {
	anyCandidate := f.Compute(p, g)
	for _, si := range f.ped.Somatic() {
		freq[si] = 0
		if !anyCandidate {
			continue
		}
		s := &p.Samples[si]
		for slot := 0; slot < s.NumSlots(); slot++ {
			if !g.Candidate(si, slot) {
				continue
			}
			if v := s.Frequency(slot); v > freq[si] {
				freq[si] = v
			}
		}
		freq[si] *= 100
	}
}
