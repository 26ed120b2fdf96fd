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
package genotype

import (
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/log"
)

// Resolution is the allele-level summary of a position.
type Resolution struct {
	// Calls[i] lists the distinct allele tokens observed in sample i, in slot
	// order.  A single allele is duplicated to denote homozygosity; an empty
	// list means "no call".
	Calls [][]string
	// Zygosity[i] is a function of the number of distinct alleles in sample i.
	Zygosity []Zygosity
	// Reference is the reported reference allele.
	Reference string
	// Alternates is the sorted set of distinct non-reference alleles observed
	// in any sample.
	Alternates []string
	// Reportable is true iff the cross-sample allele set is nonempty.
	Reportable bool
	// HasIndel is true iff any observed slot is an indel.
	HasIndel bool
	// BaseCounts[i] lists "allele=count" for every slot of sample i with a
	// nonzero count, catch-all included.
	BaseCounts [][]string
	// GoodBases[i] is the coverage of sample i.
	GoodBases []int
	// FailedBases[i] is the number of bases of sample i that failed filters.
	FailedBases []int
}

// HasAlternate returns true iff at least one alternate allele was registered.
func (r *Resolution) HasAlternate() bool {
	return len(r.Alternates) > 0
}

// GenotypeCall renders the call of sample i with alleles coded as indices
// into (Reference, Alternates...) in ascending order, e.g. "0/1".  Samples
// without a call are rendered as "./.".
func (r *Resolution) GenotypeCall(i int) string {
	tokens := r.Calls[i]
	if len(tokens) == 0 {
		return "./."
	}
	codes := make([]int, len(tokens))
	for j, token := range tokens {
		codes[j] = r.alleleIndex(token)
	}
	sort.Ints(codes)
	coded := make([]string, len(codes))
	for j, code := range codes {
		if code < 0 {
			coded[j] = "."
		} else {
			coded[j] = strconv.Itoa(code)
		}
	}
	return strings.Join(coded, "/")
}

// alleleIndex returns 0 for the reference, 1+j for Alternates[j], and -1
// otherwise.
func (r *Resolution) alleleIndex(allele string) int {
	if allele == r.Reference {
		return 0
	}
	idx := sort.SearchStrings(r.Alternates, allele)
	if idx < len(r.Alternates) && r.Alternates[idx] == allele {
		return idx + 1
	}
	return -1
}

// referenceSet is a set of irreducible reference-candidate strings: no member
// is a prefix of another.
type referenceSet []string

// add inserts s unless it is a prefix of an existing member.  Members that
// are proper prefixes of s are removed.
func (rs *referenceSet) add(s string) {
	for _, member := range *rs {
		if strings.HasPrefix(member, s) {
			return
		}
	}
	kept := (*rs)[:0]
	for _, member := range *rs {
		if !strings.HasPrefix(s, member) {
			kept = append(kept, member)
		}
	}
	*rs = append(kept, s)
}

func (rs referenceSet) contains(s string) bool {
	return containsString(rs, s)
}

func (rs *referenceSet) reset() {
	*rs = (*rs)[:0]
}

// longest returns the longest member, breaking ties lexicographically.
func (rs referenceSet) longest() string {
	best := ""
	for _, member := range rs {
		if len(member) > len(best) || (len(member) == len(best) && member < best) {
			best = member
		}
	}
	return best
}

// Resolver canonicalizes per-sample slot evidence into allele calls.  A
// Resolver reuses internal scratch space across calls and must not be shared
// between goroutines.
type Resolver struct {
	refs     referenceSet
	subsumed map[string]bool
}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{subsumed: make(map[string]bool)}
}

// slotAllele returns the allele token registered for slot i of s.  A
// reference slot that is itself an indel variant is reported as the sample's
// reference string.
func slotAllele(s *SampleCounts, i int, posRef string) string {
	slot := &s.Slots[i]
	if slot.Reference && slot.Indel {
		return s.Reference(posRef)
	}
	return slot.Allele
}

// observed returns true iff slot i of s counts toward the sample's call.
func observed(s *SampleCounts, i int) bool {
	return s.Slots[i].Count > 0 && !s.IsOther(i)
}

// Resolve computes the Resolution of p.
//
// Reference candidates are gathered over the whole position before any
// allele set is finalized, so the result does not depend on the order in
// which samples or slots are scanned.
func (r *Resolver) Resolve(p *Position) *Resolution {
	nSamples := len(p.Samples)
	res := &Resolution{
		Calls:       make([][]string, nSamples),
		Zygosity:    make([]Zygosity, nSamples),
		BaseCounts:  make([][]string, nSamples),
		GoodBases:   make([]int, nSamples),
		FailedBases: make([]int, nSamples),
	}
	r.refs.reset()
	for k := range r.subsumed {
		delete(r.subsumed, k)
	}

	alternates := make(map[string]bool)
	for si := range p.Samples {
		s := &p.Samples[si]
		for i := range s.Slots {
			if !observed(s, i) {
				continue
			}
			slot := &s.Slots[i]
			if slot.Indel {
				res.HasIndel = true
			}
			var candidate string
			if slot.Reference {
				candidate = slotAllele(s, i, p.Ref)
			} else {
				alternates[slot.Allele] = true
				candidate = s.Reference(p.Ref)
			}
			r.subsumed[candidate] = true
			r.refs.add(candidate)
		}
	}
	// Whatever survives in refs is canonical; every other candidate is a
	// prefix of a canonical string.
	for _, member := range r.refs {
		delete(r.subsumed, member)
	}
	crossSampleAlleles := 0
	for si := range p.Samples {
		s := &p.Samples[si]
		res.GoodBases[si] = s.Coverage()
		res.FailedBases[si] = s.Failed
		var tokens []string
		for i := range s.Slots {
			if s.Slots[i].Count > 0 {
				res.BaseCounts[si] = append(res.BaseCounts[si],
					s.Slots[i].Allele+"="+strconv.Itoa(s.Slots[i].Count))
			}
			if !observed(s, i) {
				continue
			}
			allele := slotAllele(s, i, p.Ref)
			if r.subsumed[allele] || containsString(tokens, allele) {
				continue
			}
			tokens = append(tokens, allele)
		}
		res.Zygosity[si] = ZygosityOf(len(tokens))
		crossSampleAlleles += len(tokens)
		if len(tokens) == 1 {
			tokens = append(tokens, tokens[0])
		}
		res.Calls[si] = tokens
	}
	res.Reportable = crossSampleAlleles > 0

	for allele := range alternates {
		res.Alternates = append(res.Alternates, allele)
	}
	sort.Strings(res.Alternates)

	switch len(r.refs) {
	case 0:
		res.Reference = p.Ref
	case 1:
		res.Reference = r.refs[0]
	default:
		res.Reference = r.refs.longest()
		log.Error.Printf("genotype.Resolve: observed multiple indel references at %s:%d: %v, using %s",
			p.RefName, p.Pos+1, []string(r.refs), res.Reference)
	}
	return res
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
