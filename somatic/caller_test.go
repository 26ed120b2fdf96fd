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
	"fmt"
	"math/rand"
	"testing"

	"github.com/grailbio/somatic/cohort"
	"github.com/grailbio/somatic/genotype"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

// fixedClassifier returns the same mutation probability for every pair.
type fixedClassifier struct {
	prob  float64
	err   error
	calls int
}

func (c *fixedClassifier) Predict(p *genotype.Position, germline, somatic int) (Prediction, error) {
	c.calls++
	if c.err != nil {
		return Prediction{}, c.err
	}
	return Prediction{Mutated: c.prob, NotMutated: 1 - c.prob}, nil
}

type classifierFunc func(p *genotype.Position, germline, somatic int) (Prediction, error)

func (f classifierFunc) Predict(p *genotype.Position, germline, somatic int) (Prediction, error) {
	return f(p, germline, somatic)
}

type scaleCalibrator float64

func (s scaleCalibrator) Calibrate(prob float64) float64 { return prob * float64(s) }

func newTrioCaller(t *testing.T, classifier Classifier, opts Opts) *Caller {
	ped := trioPedigree(t)
	c, err := NewCaller(ped, cohort.UniformMatchedReads(ped.NumSamples()), classifier,
		Calibrators{Bayes: scaleCalibrator(0.5), FDR: scaleCalibrator(0.1)}, opts)
	assert.NoError(t, err)
	return c
}

// process runs c on p and fails the test on error.
func process(t *testing.T, c *Caller, p *genotype.Position) (*Record, bool) {
	rec, ok, err := c.Process(p)
	require.NoError(t, err)
	return rec, ok
}

func TestCallerEmitsSomaticCall(t *testing.T) {
	opts := DefaultOpts
	opts.IncludeBayes = true
	opts.IncludeFDR = true
	c := newTrioCaller(t, &fixedClassifier{prob: 0.995}, opts)
	rec, ok := process(t, c, tumorOnlyA())
	require.True(t, ok)
	expect.EQ(t, rec.RefName, "chr1")
	expect.EQ(t, rec.Pos, 1000)
	expect.EQ(t, rec.Filter, FilterPass)
	expect.EQ(t, rec.Frequency[tumor], 100.0)
	expect.EQ(t, rec.Priority[tumor], 2e9+1.9e9)
	expect.True(t, rec.Scored[tumor])
	expect.False(t, rec.Scored[germline])
	expect.EQ(t, rec.Prediction[tumor], Prediction{Mutated: 0.995, NotMutated: 1 - 0.995})
	expect.EQ(t, rec.Bayes[tumor], 0.995*0.5)
	expect.EQ(t, rec.FDR[tumor], 0.995*0.1)
	expect.EQ(t, rec.Resolution.Reference, "C")
	expect.EQ(t, rec.Resolution.Alternates, []string{"A"})
	expect.EQ(t, rec.Resolution.GenotypeCall(tumor), "1/1")
	expect.EQ(t, rec.Resolution.GenotypeCall(germline), "0/1")
	expect.EQ(t, c.Stats().Emitted, 1)
}

func TestCallerParentCarriesAllele(t *testing.T) {
	classifier := &fixedClassifier{prob: 1}
	c := newTrioCaller(t, classifier, DefaultOpts)
	p := tumorOnlyA()
	p.Samples[father] = acgt(0, 6, 14)
	_, ok := process(t, c, p)
	expect.False(t, ok)
	expect.EQ(t, classifier.calls, 0)
	expect.EQ(t, c.Stats().NoCandidate, 1)
}

func TestCallerVeto(t *testing.T) {
	c := newTrioCaller(t, &fixedClassifier{prob: 0.5}, DefaultOpts)
	_, ok := process(t, c, tumorOnlyA())
	expect.False(t, ok)
	expect.False(t, c.Grids().AnyCandidate())
	expect.False(t, c.Grids().AnyStrict())
	expect.EQ(t, c.Stats().Vetoed, 1)
}

func TestCallerReferenceOnly(t *testing.T) {
	classifier := &fixedClassifier{prob: 1}
	c := newTrioCaller(t, classifier, DefaultOpts)
	p := tumorOnlyA()
	p.Samples[tumor] = acgt(0, 0, 20)
	p.Samples[germline] = acgt(0, 0, 14)
	_, ok := process(t, c, p)
	expect.False(t, ok)
	expect.EQ(t, c.Stats().NoAlternate, 1)
	expect.EQ(t, classifier.calls, 0)
}

func TestCallerSampleCountMismatch(t *testing.T) {
	c := newTrioCaller(t, &fixedClassifier{prob: 1}, DefaultOpts)
	p := tumorOnlyA()
	p.Samples = p.Samples[:3]
	_, ok, err := c.Process(p)
	require.Error(t, err)
	expect.False(t, ok)
	expect.HasSubstr(t, err.Error(), "chr1:1001 has 3 samples, expect 4")
	expect.EQ(t, c.Stats().Positions, 0)
	expect.EQ(t, c.Counters().Count(tumor), 1.0)

	// The Caller keeps working afterwards.
	_, ok = process(t, c, tumorOnlyA())
	expect.True(t, ok)
}

// TestCallerReorderedParentLayout checks that a parent listing its slots in
// a different order than the somatic sample is still matched by allele.
func TestCallerReorderedParentLayout(t *testing.T) {
	classifier := &fixedClassifier{prob: 1}
	c := newTrioCaller(t, classifier, DefaultOpts)
	p := tumorOnlyA()
	p.Samples[father] = reorderedFather(15)
	_, ok := process(t, c, p)
	expect.False(t, ok)
	expect.EQ(t, c.Stats().NoCandidate, 1)
	expect.EQ(t, classifier.calls, 0)
}

func TestCallerStrictFilter(t *testing.T) {
	c := newTrioCaller(t, &fixedClassifier{prob: 1}, DefaultOpts)
	p := tumorOnlyA()
	// The mother's A is within her failed bases: candidate, not strict.
	p.Samples[mother] = acgt(2, 1, 18)
	rec, ok := process(t, c, p)
	require.True(t, ok)
	expect.EQ(t, rec.Filter, FilterStrictSomatic)
	require.Nil(t, rec.Bayes)
	require.Nil(t, rec.FDR)
}

func TestCallerClassifierGap(t *testing.T) {
	classifier := &fixedClassifier{err: fmt.Errorf("no features")}
	c := newTrioCaller(t, classifier, DefaultOpts)
	rec, ok := process(t, c, tumorOnlyA())
	require.True(t, ok)
	expect.EQ(t, classifier.calls, 1)
	expect.False(t, rec.Scored[tumor])
}

func TestCallerCounters(t *testing.T) {
	c := newTrioCaller(t, &fixedClassifier{prob: 1}, DefaultOpts)
	expect.EQ(t, c.Counters().Proportion(0), 0.25)

	p := tumorOnlyA()
	p.Samples[tumor] = acgt(0, 0, 20)
	p.Samples[germline] = acgt(0, 0, 14)
	process(t, c, p)
	// Updated although nothing was emitted.
	expect.EQ(t, c.Counters().Count(father), 21.0)
	expect.EQ(t, c.Counters().Count(tumor), 21.0)
	expect.EQ(t, c.Counters().Proportion(father), 0.25)

	process(t, c, tumorOnlyA())
	expect.EQ(t, c.Counters().Proportion(father), 21.0/(21+19+21+15))
	expect.EQ(t, c.Counters().Count(tumor), 21.0)
	expect.EQ(t, c.Counters().Count(germline), 29.0)
}

func TestNewCallerErrors(t *testing.T) {
	ped := trioPedigree(t)
	reads := cohort.UniformMatchedReads(ped.NumSamples())
	stub := &fixedClassifier{prob: 1}

	_, err := NewCaller(ped, reads, nil, Calibrators{}, DefaultOpts)
	expect.HasSubstr(t, err.Error(), "classifier is required")

	opts := DefaultOpts
	opts.IncludeFDR = true
	_, err = NewCaller(ped, reads, stub, Calibrators{}, opts)
	expect.HasSubstr(t, err.Error(), "fdr output enabled")

	opts = DefaultOpts
	opts.IncludeBayes = true
	_, err = NewCaller(ped, reads, stub, Calibrators{}, opts)
	expect.HasSubstr(t, err.Error(), "bayes output enabled")

	opts = DefaultOpts
	opts.ModelPThreshold = 1.5
	_, err = NewCaller(ped, reads, stub, Calibrators{}, opts)
	expect.HasSubstr(t, err.Error(), "outside [0,1]")

	_, err = NewCaller(ped, reads[:2], stub, Calibrators{}, DefaultOpts)
	expect.HasSubstr(t, err.Error(), "2 matched-read counts for 4 samples")
}

func TestPriorityNormalization(t *testing.T) {
	ped := trioPedigree(t)
	reads := cohort.MatchedReads{1e6, 2e6, 1e8, 5e5}
	s := NewPriorityScorer(ped, reads)
	p := tumorOnlyA()
	var g Grids
	NewFilter(ped, DefaultOpts).Compute(p, &g)
	priority := []float64{0, 0, 0, 0}
	s.Score(p, &g, priority)
	// Parents show no A; the germline sample shows one A per 5e5 reads.
	expect.EQ(t, priority[tumor], 20.0+(20.0-200.0))

	g.ClearSample(tumor)
	s.Score(p, &g, priority)
	expect.EQ(t, priority[tumor], float64(NoCandidatePriority))
}

// TestThresholdMonotonicity checks that raising the probability threshold
// never adds a candidate.
func TestThresholdMonotonicity(t *testing.T) {
	classifier := classifierFunc(func(p *genotype.Position, germline, somatic int) (Prediction, error) {
		prob := p.Samples[somatic].Frequency(0)
		return Prediction{Mutated: prob, NotMutated: 1 - prob}, nil
	})
	thresholds := []float64{0, 0.2, 0.5, 0.8, 0.99, 1}
	callers := make([]*Caller, len(thresholds))
	for i, th := range thresholds {
		opts := DefaultOpts
		opts.ModelPThreshold = th
		callers[i] = newTrioCaller(t, classifier, opts)
	}
	r := rand.New(rand.NewSource(2))
	emitted := make([]int, len(thresholds))
	for iter := 0; iter < 1000; iter++ {
		p := randomPosition(r)
		for i, c := range callers {
			if _, ok := process(t, c, p); ok {
				emitted[i]++
			}
			if i == 0 {
				continue
			}
			lo, hi := callers[i-1].Grids(), c.Grids()
			for slot := 0; slot < hi.NumSlots(); slot++ {
				if hi.Candidate(tumor, slot) {
					expect.True(t, lo.Candidate(tumor, slot), "iter %d threshold %v", iter, thresholds[i])
				}
			}
		}
	}
	for i := 1; i < len(emitted); i++ {
		expect.True(t, emitted[i] <= emitted[i-1])
	}
	expect.True(t, emitted[0] > 0)
}
