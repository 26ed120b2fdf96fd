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

// Counters accumulates, per sample, the number of reference bases seen over
// all processed positions.  Counts start at 1.
type Counters struct {
	counts      []float64
	proportions []float64
}

// NewCounters creates Counters for n samples.
func NewCounters(n int) *Counters {
	c := &Counters{
		counts:      make([]float64, n),
		proportions: make([]float64, n),
	}
	for i := range c.counts {
		c.counts[i] = 1
	}
	c.Refresh()
	return c
}

// Refresh recomputes the per-sample proportions of the cumulative counts.
func (c *Counters) Refresh() {
	total := 0.0
	for _, v := range c.counts {
		total += v
	}
	for i, v := range c.counts {
		c.proportions[i] = v / total
	}
}

// Update adds the reference counts of p.
func (c *Counters) Update(p *genotype.Position) {
	for i := range p.Samples {
		c.counts[i] += float64(p.Samples[i].RefCount())
	}
}

// Count returns the cumulative reference count of sample i.
func (c *Counters) Count(i int) float64 {
	return c.counts[i]
}

// Proportion returns the share of sample i in the cumulative reference
// counts, as of the last Refresh.
func (c *Counters) Proportion(i int) float64 {
	return c.proportions[i]
}
