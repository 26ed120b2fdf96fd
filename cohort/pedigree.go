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
package cohort

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Covariate columns consulted by BuildPedigree.
const (
	PatientColumn = "patient-id"
	KindColumn    = "kind-of-sample"
	GenderColumn  = "gender"
	ParentsColumn = "parents"

	KindSomatic  = "Somatic"
	KindGermline = "Germline"
	GenderMale   = "Male"
	GenderFemale = "Female"

	// ParentSeparator separates patient ids in the parents column.
	ParentSeparator = "|"
)

var requiredColumns = []string{PatientColumn, KindColumn, GenderColumn, ParentsColumn}

// Link describes the relatives of one somatic sample.  Indices refer to the
// sample order passed to BuildPedigree; -1 means absent.
type Link struct {
	Father   int
	Mother   int
	Germline []int
}

// HasParent returns true iff at least one parent was resolved.
func (l Link) HasParent() bool {
	return l.Father >= 0 || l.Mother >= 0
}

// Parents returns the resolved parent indices, father first.
func (l Link) Parents() []int {
	var parents []int
	if l.Father >= 0 {
		parents = append(parents, l.Father)
	}
	if l.Mother >= 0 {
		parents = append(parents, l.Mother)
	}
	return parents
}

var noLink = Link{Father: -1, Mother: -1}

// Pedigree maps each somatic sample to its resolved relatives.  It is built
// once and not modified afterwards.
type Pedigree struct {
	samples   []string
	isSomatic []bool
	somatic   []int
	links     []Link
}

// BuildPedigree resolves the pedigree of the given samples from cov.  samples
// lists the sample ids in evidence order.
//
// An error is returned when a required covariate column is missing, when no
// somatic sample of the table is one of the given samples, or when some
// somatic sample of the table is not one of the given samples.  Parent ids
// that do not resolve are logged and skipped.
func BuildPedigree(cov *Covariates, samples []string) (*Pedigree, error) {
	var missing []string
	for _, col := range requiredColumns {
		if !cov.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf(
			"pedigree: covariates require columns %s={%s|%s}, %s={%s|%s}, %s and %s; missing %v, found %v",
			PatientColumn, KindSomatic, KindGermline, GenderColumn, GenderMale, GenderFemale,
			KindColumn, ParentsColumn, missing, cov.Columns()))
	}

	index := make(map[string]int, len(samples))
	for i, s := range samples {
		if _, ok := index[s]; ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("pedigree: duplicate sample %s", s))
		}
		index[s] = i
	}

	p := &Pedigree{
		samples:   samples,
		isSomatic: make([]bool, len(samples)),
		links:     make([]Link, len(samples)),
	}
	for i := range p.links {
		p.links[i] = noLink
	}

	somaticIDs := cov.SamplesWith(KindColumn, KindSomatic)
	var mismatches []string
	for _, id := range somaticIDs {
		i, ok := index[id]
		if !ok {
			mismatches = append(mismatches, describeMismatch(id, samples))
			continue
		}
		p.isSomatic[i] = true
		p.somatic = append(p.somatic, i)
	}
	if len(p.somatic) == 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf(
			"pedigree: no %s=%s sample matches the input samples %v", KindColumn, KindSomatic, samples))
	}
	if len(mismatches) > 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf(
			"pedigree: sample ids must match between covariates and inputs; mismatch detected for %s",
			strings.Join(mismatches, ", ")))
	}
	sort.Ints(p.somatic)

	for _, si := range p.somatic {
		p.links[si] = resolveLink(cov, samples[si], index)
	}
	return p, nil
}

// describeMismatch names an unmatched id together with the closest input id.
func describeMismatch(id string, samples []string) string {
	best, bestDist := "", -1
	for _, s := range samples {
		d := matchr.Levenshtein(id, s)
		if bestDist < 0 || d < bestDist {
			best, bestDist = s, d
		}
	}
	if bestDist < 0 || bestDist > len(id)/2+1 {
		return id
	}
	return fmt.Sprintf("%s (did you mean %s?)", id, best)
}

func resolveLink(cov *Covariates, id string, index map[string]int) Link {
	link := noLink
	parents, _ := cov.Value(id, ParentsColumn)
	for _, parentID := range strings.Split(parents, ParentSeparator) {
		parentID = strings.TrimSpace(parentID)
		if parentID == "" {
			continue
		}
		parent, ok := firstInput(cov.SamplesWith(PatientColumn, parentID), index)
		if !ok {
			log.Error.Printf("pedigree: parent could not be found for id %s (sample %s)", parentID, id)
			continue
		}
		gender, _ := cov.Value(parent, GenderColumn)
		switch gender {
		case GenderMale:
			link.Father = index[parent]
		case GenderFemale:
			link.Mother = index[parent]
		default:
			log.Error.Printf("pedigree: parent %s of sample %s has gender %q, expect %s or %s",
				parent, id, gender, GenderMale, GenderFemale)
		}
	}

	patient, _ := cov.Value(id, PatientColumn)
	for _, other := range cov.SamplesWith(PatientColumn, patient) {
		if other == id {
			continue
		}
		if kind, _ := cov.Value(other, KindColumn); kind != KindGermline {
			continue
		}
		gi, ok := index[other]
		if !ok {
			log.Error.Printf("pedigree: germline sample %s of patient %s is not an input sample", other, patient)
			continue
		}
		link.Germline = append(link.Germline, gi)
	}
	return link
}

// firstInput returns the first of ids that is an input sample.
func firstInput(ids []string, index map[string]int) (string, bool) {
	for _, id := range ids {
		if _, ok := index[id]; ok {
			return id, true
		}
	}
	return "", false
}

// NumSamples returns the number of input samples.
func (p *Pedigree) NumSamples() int {
	return len(p.samples)
}

// Samples returns the input sample ids.
func (p *Pedigree) Samples() []string {
	return p.samples
}

// Somatic returns the indices of somatic samples in ascending order.
func (p *Pedigree) Somatic() []int {
	return p.somatic
}

// IsSomatic returns true iff sample i is somatic.
func (p *Pedigree) IsSomatic(i int) bool {
	return p.isSomatic[i]
}

// Link returns the relatives of sample i.  Non-somatic samples have no
// relatives.
func (p *Pedigree) Link(i int) Link {
	return p.links[i]
}

// String renders the pedigree one somatic sample per line.
func (p *Pedigree) String() string {
	name := func(i int) string {
		if i < 0 {
			return "-"
		}
		return p.samples[i]
	}
	var b strings.Builder
	for _, si := range p.somatic {
		link := p.links[si]
		germline := make([]string, len(link.Germline))
		for j, gi := range link.Germline {
			germline[j] = name(gi)
		}
		fmt.Fprintf(&b, "%s\tfather=%s\tmother=%s\tgermline=%s\n",
			name(si), name(link.Father), name(link.Mother), strings.Join(germline, ","))
	}
	return b.String()
}
