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
	"github.com/grailbio/base/bitset"
)

// Grids holds the candidate and strict-candidate flags of a single position,
// as two [sample][slot] bitmaps.  Logical row s of a bitmap is
// bits[s*rowWidth:(s+1)*rowWidth].
//
// A Grids value is reused across positions; Reset clears it without
// releasing memory.
type Grids struct {
	nSamples  int
	nSlots    int
	rowWidth  int
	candidate []uintptr
	strict    []uintptr
}

// Reset resizes the grids to nSamples x nSlots and clears every flag.
func (g *Grids) Reset(nSamples, nSlots int) {
	g.nSamples = nSamples
	g.nSlots = nSlots
	g.rowWidth = (nSlots + bitset.BitsPerWord - 1) / bitset.BitsPerWord
	n := nSamples * g.rowWidth
	if cap(g.candidate) < n {
		g.candidate = make([]uintptr, n)
		g.strict = make([]uintptr, n)
		return
	}
	g.candidate = g.candidate[:n]
	g.strict = g.strict[:n]
	for i := range g.candidate {
		g.candidate[i] = 0
		g.strict[i] = 0
	}
}

// NumSamples returns the sample dimension.
func (g *Grids) NumSamples() int { return g.nSamples }

// NumSlots returns the slot dimension.
func (g *Grids) NumSlots() int { return g.nSlots }

func (g *Grids) row(bits []uintptr, sample int) []uintptr {
	base := sample * g.rowWidth
	return bits[base : base+g.rowWidth]
}

func (g *Grids) inRange(sample, slot int) bool {
	return sample >= 0 && sample < g.nSamples && slot >= 0 && slot < g.nSlots
}

// Candidate returns the candidate flag of (sample, slot).  Out-of-range
// coordinates are never candidates.
func (g *Grids) Candidate(sample, slot int) bool {
	return g.inRange(sample, slot) && bitset.Test(g.row(g.candidate, sample), slot)
}

// Strict returns the strict-candidate flag of (sample, slot).
func (g *Grids) Strict(sample, slot int) bool {
	return g.inRange(sample, slot) && bitset.Test(g.row(g.strict, sample), slot)
}

// set flags (sample, slot) as a candidate, and as a strict candidate if
// strict is true.  Strict flags are only ever set together with candidate
// flags.
func (g *Grids) set(sample, slot int, strict bool) {
	bitset.Set(g.row(g.candidate, sample), slot)
	if strict {
		bitset.Set(g.row(g.strict, sample), slot)
	}
}

// ClearSample clears every flag of the given sample.
func (g *Grids) ClearSample(sample int) {
	cand := g.row(g.candidate, sample)
	strict := g.row(g.strict, sample)
	for i := range cand {
		cand[i] = 0
		strict[i] = 0
	}
}

// SampleHasCandidate returns true iff any slot of sample is a candidate.
func (g *Grids) SampleHasCandidate(sample int) bool {
	return anyNonzero(g.row(g.candidate, sample))
}

// AnyCandidate returns true iff any flag of the candidate grid is set.
func (g *Grids) AnyCandidate() bool {
	return anyNonzero(g.candidate)
}

// AnyStrict returns true iff any flag of the strict grid is set.
func (g *Grids) AnyStrict() bool {
	return anyNonzero(g.strict)
}

func anyNonzero(words []uintptr) bool {
	for _, w := range words {
		if w != 0 {
			return true
		}
	}
	return false
}
