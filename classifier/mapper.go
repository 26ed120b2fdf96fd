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
package classifier

import (
	"math"
	"sort"
	"sync"

	"github.com/grailbio/somatic/genotype"
	"github.com/pkg/errors"
)

// FeatureMapper turns the evidence of a (germline, somatic) sample pair into
// a fixed-length feature vector.
type FeatureMapper interface {
	// Names returns the feature names, in vector order.
	Names() []string
	// Map fills dst, of length len(Names()).
	Map(p *genotype.Position, germline, somatic int, dst []float64) error
}

var (
	mappersMu sync.Mutex
	mappers   = map[string]func() FeatureMapper{}
)

// RegisterMapper makes a feature mapper available to Load under name.  It
// panics if name is already registered.
func RegisterMapper(name string, factory func() FeatureMapper) {
	mappersMu.Lock()
	defer mappersMu.Unlock()
	if _, ok := mappers[name]; ok {
		panic("classifier: mapper " + name + " registered twice")
	}
	mappers[name] = factory
}

// LookupMapper instantiates the mapper registered under name.
func LookupMapper(name string) (FeatureMapper, error) {
	mappersMu.Lock()
	factory, ok := mappers[name]
	mappersMu.Unlock()
	if !ok {
		return nil, errors.Errorf("unknown feature mapper %q, known mappers: %v", name, MapperNames())
	}
	return factory(), nil
}

// MapperNames lists the registered mappers.
func MapperNames() []string {
	mappersMu.Lock()
	defer mappersMu.Unlock()
	names := make([]string, 0, len(mappers))
	for name := range mappers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PairwiseMapperName is the name of the built-in pairwise mapper.
const PairwiseMapperName = "pairwise"

func init() {
	RegisterMapper(PairwiseMapperName, func() FeatureMapper { return pairwiseMapper{} })
}

// ErrNoEvidence is returned by a mapper when the somatic sample has no
// coverage at the position.
var ErrNoEvidence = errors.New("somatic sample has no coverage")

var pairwiseNames = []string{
	"somatic-frequency",
	"germline-frequency",
	"somatic-log-coverage",
	"germline-log-coverage",
	"somatic-failed-fraction",
	"germline-failed-fraction",
	"indel",
}

// pairwiseMapper describes the most frequent non-reference allele of the
// somatic sample in both samples of the pair.
type pairwiseMapper struct{}

func (pairwiseMapper) Names() []string { return pairwiseNames }

func (pairwiseMapper) Map(p *genotype.Position, germline, somatic int, dst []float64) error {
	s := &p.Samples[somatic]
	g := &p.Samples[germline]
	if s.Coverage() == 0 {
		return ErrNoEvidence
	}
	top := -1
	for i, slot := range s.Slots {
		if slot.Reference || s.IsOther(i) || slot.Count == 0 {
			continue
		}
		if top < 0 || slot.Count > s.Slots[top].Count {
			top = i
		}
	}
	dst[0], dst[1], dst[6] = 0, 0, 0
	if top >= 0 {
		dst[0] = s.Frequency(top)
		dst[1] = g.FrequencyOf(s.Slots[top])
		if s.Slots[top].Indel {
			dst[6] = 1
		}
	}
	dst[2] = math.Log1p(float64(s.Coverage()))
	dst[3] = math.Log1p(float64(g.Coverage()))
	dst[4] = failedFraction(s)
	dst[5] = failedFraction(g)
	return nil
}

func failedFraction(s *genotype.SampleCounts) float64 {
	total := s.Coverage() + s.Failed
	if total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(total)
}
