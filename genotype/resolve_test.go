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
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
)

// snpSample returns A/C/G/T/N evidence with reference A.
func snpSample(a, c, g, t, n int) SampleCounts {
	slots, other := DefaultSNPSlots('A')
	for i, count := range []int{a, c, g, t, n} {
		slots[i].Count = count
	}
	return SampleCounts{Slots: slots, Other: other}
}

func TestZygosityOf(t *testing.T) {
	tests := []struct {
		n    int
		want Zygosity
		name string
	}{
		{0, NotTyped, "not-typed"},
		{1, Homozygous, "homozygous"},
		{2, Heterozygous, "heterozygous"},
		{3, Mixture, "Mixture"},
		{7, Mixture, "Mixture"},
	}
	for _, test := range tests {
		expect.EQ(t, ZygosityOf(test.n), test.want)
		expect.EQ(t, ZygosityOf(test.n).String(), test.name)
	}
}

func TestResolveSNP(t *testing.T) {
	p := Position{
		RefName: "chr1",
		Pos:     99,
		Ref:     "A",
		Samples: []SampleCounts{
			snpSample(10, 0, 0, 0, 0),
			snpSample(5, 0, 0, 5, 1),
			snpSample(0, 0, 0, 0, 0),
			snpSample(1, 2, 3, 0, 0),
		},
	}
	res := NewResolver().Resolve(&p)
	expect.EQ(t, res.Reference, "A")
	expect.EQ(t, res.Alternates, []string{"C", "G", "T"})
	expect.True(t, res.Reportable)
	expect.True(t, res.HasAlternate())
	expect.False(t, res.HasIndel)

	expect.EQ(t, res.Calls[0], []string{"A", "A"})
	expect.EQ(t, res.Zygosity[0], Homozygous)
	expect.EQ(t, res.GenotypeCall(0), "0/0")

	expect.EQ(t, res.Calls[1], []string{"A", "T"})
	expect.EQ(t, res.Zygosity[1], Heterozygous)
	expect.EQ(t, res.GenotypeCall(1), "0/3")
	expect.EQ(t, res.BaseCounts[1], []string{"A=5", "T=5", "N=1"})
	expect.EQ(t, res.GoodBases[1], 11)

	expect.EQ(t, len(res.Calls[2]), 0)
	expect.EQ(t, res.Zygosity[2], NotTyped)
	expect.EQ(t, res.GenotypeCall(2), "./.")

	expect.EQ(t, res.Zygosity[3], Mixture)
	expect.EQ(t, res.GenotypeCall(3), "0/1/2")
}

func TestResolveCatchAllIgnored(t *testing.T) {
	p := Position{Ref: "A", Samples: []SampleCounts{snpSample(0, 0, 0, 0, 8)}}
	res := NewResolver().Resolve(&p)
	expect.False(t, res.Reportable)
	expect.False(t, res.HasAlternate())
	expect.EQ(t, res.Zygosity[0], NotTyped)
	expect.EQ(t, res.BaseCounts[0], []string{"N=8"})
}

func TestResolveReferenceOnly(t *testing.T) {
	p := Position{Ref: "A", Samples: []SampleCounts{
		snpSample(10, 0, 0, 0, 0),
		snpSample(20, 0, 0, 0, 0),
	}}
	res := NewResolver().Resolve(&p)
	expect.True(t, res.Reportable)
	expect.False(t, res.HasAlternate())
}

func indelPosition(reverse bool) Position {
	snp := snpSample(5, 0, 0, 0, 0)
	deletion := SampleCounts{
		Slots: []Slot{
			{Allele: "ATG", Count: 6, Reference: true, Indel: true},
			{Allele: "A--", Count: 4, Indel: true},
			{Allele: "N", Count: 0},
		},
		Other: 2,
		Ref:   "ATG",
	}
	samples := []SampleCounts{snp, deletion}
	if reverse {
		samples = []SampleCounts{deletion, snp}
	}
	return Position{RefName: "chr2", Pos: 10, Ref: "A", Samples: samples}
}

func TestResolveIndelReferenceCanonicalization(t *testing.T) {
	for _, reverse := range []bool{false, true} {
		p := indelPosition(reverse)
		res := NewResolver().Resolve(&p)
		expect.EQ(t, res.Reference, "ATG")
		expect.EQ(t, res.Alternates, []string{"A--"})
		expect.True(t, res.HasIndel)
		snpIdx, delIdx := 0, 1
		if reverse {
			snpIdx, delIdx = 1, 0
		}
		// "A" is subsumed by "ATG" and no longer counts as an allele.
		expect.EQ(t, len(res.Calls[snpIdx]), 0)
		expect.EQ(t, res.Zygosity[snpIdx], NotTyped)
		expect.EQ(t, res.Calls[delIdx], []string{"ATG", "A--"})
		expect.EQ(t, res.GenotypeCall(delIdx), "0/1")
	}
}

func TestResolveAmbiguousReference(t *testing.T) {
	sample := func(ref, alt string) SampleCounts {
		return SampleCounts{
			Slots: []Slot{
				{Allele: ref, Count: 3, Reference: true, Indel: true},
				{Allele: alt, Count: 3, Indel: true},
			},
			Other: -1,
			Ref:   ref,
		}
	}
	p := Position{Ref: "A", Samples: []SampleCounts{sample("ATG", "A"), sample("ACC", "A-C")}}
	res := NewResolver().Resolve(&p)
	expect.EQ(t, res.Reference, "ACC")

	p.Samples = []SampleCounts{sample("ACCT", "A"), sample("ATG", "A-G")}
	res = NewResolver().Resolve(&p)
	expect.EQ(t, res.Reference, "ACCT")
}

func TestReferenceSet(t *testing.T) {
	var rs referenceSet
	rs.add("A")
	rs.add("AT")
	assert.Equal(t, []string{"AT"}, []string(rs))
	rs.add("A")
	rs.add("AT")
	rs.add("C")
	assert.ElementsMatch(t, []string{"AT", "C"}, []string(rs))
	assert.True(t, rs.contains("C"))
	assert.False(t, rs.contains("A"))
	rs.add("ATGC")
	assert.ElementsMatch(t, []string{"ATGC", "C"}, []string(rs))
	assert.Equal(t, "ATGC", rs.longest())
	rs.reset()
	assert.Empty(t, []string(rs))
}

func TestReferenceSetOrderIndependent(t *testing.T) {
	inputs := []string{"A", "ATG", "AT", "C", "CA", "ATG", "G"}
	want := []string{"ATG", "CA", "G"}
	for rot := 0; rot < len(inputs); rot++ {
		var rs referenceSet
		for i := range inputs {
			rs.add(inputs[(i+rot)%len(inputs)])
		}
		assert.ElementsMatch(t, want, []string(rs), "rotation %d", rot)
	}
}
