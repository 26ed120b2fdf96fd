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

// Slot is one enumerated possible call (reference base, alternate base,
// indel variant, or the catch-all) tracked for a sample at a position.
type Slot struct {
	Allele    string
	Count     int
	Indel     bool
	Reference bool
}

// SampleCounts holds the evidence for a single sample at a single position.
// It is produced by an upstream pileup and is treated as read-only here.
//
// The slot layout is fixed per sample; slot i of one sample describes the
// same allele as slot i of another sample when both were produced by the same
// pileup run.
type SampleCounts struct {
	Slots []Slot
	// Other is the index of the catch-all slot in Slots, or -1 if there is
	// none.
	Other int
	// Failed is the number of bases that failed base filters.
	Failed int
	// Ref is the reference string as seen by this sample.  It differs from
	// the position's reference when the sample carries indel evidence that
	// spans more reference bases.  Empty means the position's reference.
	Ref string
}

// Reference returns the sample's reference string, defaulting to posRef.
func (s *SampleCounts) Reference(posRef string) string {
	if s.Ref == "" {
		return posRef
	}
	return s.Ref
}

// NumSlots returns the number of genotype slots.
func (s *SampleCounts) NumSlots() int {
	return len(s.Slots)
}

// Count returns the observation count of slot i, or 0 when the sample has no
// such slot.
func (s *SampleCounts) Count(i int) int {
	if i < 0 || i >= len(s.Slots) {
		return 0
	}
	return s.Slots[i].Count
}

// Coverage returns the sum of all slot counts, catch-all included.
func (s *SampleCounts) Coverage() int {
	total := 0
	for _, slot := range s.Slots {
		total += slot.Count
	}
	return total
}

// Frequency returns count/coverage for slot i, or 0 when the sample has no
// coverage.
func (s *SampleCounts) Frequency(i int) float64 {
	coverage := s.Coverage()
	if coverage == 0 {
		return 0
	}
	return float64(s.Count(i)) / float64(coverage)
}

// Find returns the index of the slot holding the same allele as slot, or -1.
// Samples at one position may list their slots in different orders, so slots
// are compared by allele and indel flag rather than by index.
func (s *SampleCounts) Find(slot Slot) int {
	for i := range s.Slots {
		if s.Slots[i].Allele == slot.Allele && s.Slots[i].Indel == slot.Indel {
			return i
		}
	}
	return -1
}

// CountOf returns the count of the allele held by slot, or 0 when the sample
// never observed it.
func (s *SampleCounts) CountOf(slot Slot) int {
	return s.Count(s.Find(slot))
}

// FrequencyOf is Frequency for the allele held by slot.
func (s *SampleCounts) FrequencyOf(slot Slot) float64 {
	return s.Frequency(s.Find(slot))
}

// RefCount returns the number of bases supporting the reference.
func (s *SampleCounts) RefCount() int {
	total := 0
	for _, slot := range s.Slots {
		if slot.Reference {
			total += slot.Count
		}
	}
	return total
}

// IsOther returns true iff slot i is the catch-all slot.
func (s *SampleCounts) IsOther(i int) bool {
	return i == s.Other
}

// Position contains the evidence for all samples at a single genomic
// position.
type Position struct {
	RefName string
	RefID   int
	// Pos is 0-based.
	Pos int
	// Ref is the reference allele at Pos.
	Ref     string
	Samples []SampleCounts
}

// MaxSlots returns the largest slot count across samples.
func (p *Position) MaxSlots() int {
	n := 0
	for i := range p.Samples {
		if l := p.Samples[i].NumSlots(); l > n {
			n = l
		}
	}
	return n
}

// DefaultSNPSlots returns the A/C/G/T/N slot layout used for SNP-only
// evidence, with N as the catch-all. ref marks the reference slot.
func DefaultSNPSlots(ref byte) (slots []Slot, other int) {
	slots = make([]Slot, 0, len(snpAlleles))
	for _, allele := range snpAlleles {
		slots = append(slots, Slot{
			Allele:    allele,
			Reference: allele[0] == ref,
		})
	}
	return slots, len(slots) - 1
}

var snpAlleles = [...]string{"A", "C", "G", "T", "N"}
