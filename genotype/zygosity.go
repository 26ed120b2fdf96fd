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

// Zygosity classifies the allele diversity of a sample at a position.
type Zygosity int

const (
	// NotTyped means no allele was observed.
	NotTyped Zygosity = iota
	// Homozygous means exactly one distinct allele was observed.
	Homozygous
	// Heterozygous means exactly two distinct alleles were observed.
	Heterozygous
	// Mixture means three or more distinct alleles were observed.
	Mixture
)

var zygosityNames = [...]string{"not-typed", "homozygous", "heterozygous", "Mixture"}

// String returns the label written to output records.
func (z Zygosity) String() string {
	if z < NotTyped || z > Mixture {
		return "unknown"
	}
	return zygosityNames[z]
}

// ZygosityOf maps a count of distinct non-catch-all alleles to a Zygosity.
func ZygosityOf(nAlleles int) Zygosity {
	switch {
	case nAlleles <= 0:
		return NotTyped
	case nAlleles == 1:
		return Homozygous
	case nAlleles == 2:
		return Heterozygous
	default:
		return Mixture
	}
}
