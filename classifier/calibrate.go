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
	"context"
	"io"
	"path/filepath"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/somatic/somatic"
	"github.com/pkg/errors"
)

// BayesCalibrator re-weighs model probabilities from the mutation rate of
// the training set to a prior mutation rate.
type BayesCalibrator struct {
	trainingOdds float64
	priorOdds    float64
}

var _ somatic.Calibrator = (*BayesCalibrator)(nil)

// NewBayesCalibrator creates a BayesCalibrator.  Both rates must be in
// (0,1).
func NewBayesCalibrator(trainingRate, prior float64) (*BayesCalibrator, error) {
	if trainingRate <= 0 || trainingRate >= 1 {
		return nil, errors.Errorf("training mutation rate %v is outside (0,1)", trainingRate)
	}
	if prior <= 0 || prior >= 1 {
		return nil, errors.Errorf("prior mutation rate %v is outside (0,1)", prior)
	}
	return &BayesCalibrator{
		trainingOdds: trainingRate / (1 - trainingRate),
		priorOdds:    prior / (1 - prior),
	}, nil
}

// LoadBayesCalibrator creates a BayesCalibrator for m.  The model's
// configuration must define the training mutation rate.
func LoadBayesCalibrator(m *Model, prior float64) (*BayesCalibrator, error) {
	if m.Config.TrainingMutationRate == 0 {
		return nil, errors.Errorf("%s: %s must be set to compute bayes probabilities",
			filepath.Join(m.Dir, ConfigFile), mutationRateKey)
	}
	return NewBayesCalibrator(m.Config.TrainingMutationRate, prior)
}

// Calibrate returns the posterior mutation probability.
func (b *BayesCalibrator) Calibrate(prob float64) float64 {
	if prob >= 1 {
		return 1
	}
	if prob <= 0 {
		return 0
	}
	odds := prob / (1 - prob) * b.priorOdds / b.trainingOdds
	return odds / (1 + odds)
}

// scoreNode counts the validation examples with a given model score.  pos and
// neg are the counts at this score; posAbove and negAbove also include every
// higher score.
type scoreNode struct {
	score              float64
	pos, neg           int
	posAbove, negAbove int
}

// Compare implements llrb.Comparable.
func (n *scoreNode) Compare(c llrb.Comparable) int {
	o := c.(*scoreNode)
	switch {
	case n.score < o.score:
		return -1
	case n.score > o.score:
		return 1
	}
	return 0
}

// FDREstimator estimates the false discovery rate of calling every site whose
// model probability is at least p, from a labeled validation set.
type FDREstimator struct {
	scores llrb.Tree
}

var _ somatic.Calibrator = (*FDREstimator)(nil)

// NewFDREstimator creates an estimator from parallel slices of validation
// scores and labels (true = mutated).
func NewFDREstimator(scores []float64, mutated []bool) (*FDREstimator, error) {
	if len(scores) != len(mutated) {
		return nil, errors.Errorf("%d scores, %d labels", len(scores), len(mutated))
	}
	if len(scores) == 0 {
		return nil, errors.New("empty validation set")
	}
	e := &FDREstimator{}
	for i, score := range scores {
		key := &scoreNode{score: score}
		node, ok := e.scores.Get(key).(*scoreNode)
		if !ok {
			node = key
			e.scores.Insert(node)
		}
		if mutated[i] {
			node.pos++
		} else {
			node.neg++
		}
	}
	var nodes []*scoreNode
	e.scores.Do(func(c llrb.Comparable) bool {
		nodes = append(nodes, c.(*scoreNode))
		return false
	})
	pos, neg := 0, 0
	for i := len(nodes) - 1; i >= 0; i-- {
		pos += nodes[i].pos
		neg += nodes[i].neg
		nodes[i].posAbove, nodes[i].negAbove = pos, neg
	}
	return e, nil
}

type validationRow struct {
	Score float64 `tsv:"SCORE"`
	Label int     `tsv:"LABEL"`
}

// LoadFDREstimator reads <dir>/<prefix>Validation.tsv of m.
func LoadFDREstimator(ctx context.Context, m *Model) (e *FDREstimator, err error) {
	path := filepath.Join(m.Dir, m.Prefix+validationSuffix)
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	tr := tsv.NewReader(in.Reader(ctx))
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	var (
		scores  []float64
		mutated []bool
	)
	for {
		var row validationRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "read %s", path)
		}
		scores = append(scores, row.Score)
		mutated = append(mutated, row.Label != 0)
	}
	if e, err = NewFDREstimator(scores, mutated); err != nil {
		return nil, errors.Wrap(err, path)
	}
	log.Printf("classifier.LoadFDREstimator: %d validation examples from %s", len(scores), path)
	return e, nil
}

// Calibrate returns the fraction of validation examples scoring at least
// prob that are not mutated, or 0 when no example scores that high.
func (e *FDREstimator) Calibrate(prob float64) float64 {
	c := e.scores.Ceil(&scoreNode{score: prob})
	if c == nil {
		return 0
	}
	node := c.(*scoreNode)
	return float64(node.negAbove) / float64(node.posAbove+node.negAbove)
}
