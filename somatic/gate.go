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
	"github.com/grailbio/base/log"
	"github.com/grailbio/somatic/cohort"
	"github.com/grailbio/somatic/genotype"
)

// Prediction is a classifier's verdict on one (germline, somatic) pair.
type Prediction struct {
	// Mutated is the probability that the somatic sample carries an acquired
	// variant at the position.
	Mutated float64
	// NotMutated is the complementary probability.
	NotMutated float64
}

// Classifier scores a somatic sample against one of its germline relatives.
// Implementations must be safe to call repeatedly with the same arguments
// and must not retain p.
type Classifier interface {
	Predict(p *genotype.Position, germline, somatic int) (Prediction, error)
}

// Calibrator maps a classifier mutation probability to an adjusted
// probability.
type Calibrator interface {
	Calibrate(prob float64) float64
}

// Gate vetoes the candidates of somatic samples that the classifier scores
// below a threshold.
type Gate struct {
	ped        *cohort.Pedigree
	classifier Classifier
	threshold  float64
}

// NewGate creates a Gate.  classifier must be non-nil.
func NewGate(ped *cohort.Pedigree, classifier Classifier, threshold float64) *Gate {
	return &Gate{ped: ped, classifier: classifier, threshold: threshold}
}

// Apply queries the classifier for every (germline relative, somatic sample)
// pair.  A somatic sample is vetoed, and all its flags in g cleared, when any
// relative scores it below the threshold.  pred[si] receives the prediction
// of the lowest-scoring relative of si and scored[si] tells whether any
// prediction was obtained.  A classifier error skips the pair.
func (gt *Gate) Apply(p *genotype.Position, g *Grids, pred []Prediction, scored []bool) {
	for _, si := range gt.ped.Somatic() {
		scored[si] = false
		pred[si] = Prediction{}
		veto := false
		for _, gi := range gt.ped.Link(si).Germline {
			pr, err := gt.classifier.Predict(p, gi, si)
			if err != nil {
				log.Error.Printf("Gate.Apply: %s:%d: cannot score sample %d against %d: %v",
					p.RefName, p.Pos+1, si, gi, err)
				continue
			}
			if !scored[si] || pr.Mutated < pred[si].Mutated {
				pred[si] = pr
				scored[si] = true
			}
			if pr.Mutated < gt.threshold {
				veto = true
			}
		}
		if veto {
			log.Debug.Printf("Gate.Apply: %s:%d: sample %d vetoed, p=%g", p.RefName, p.Pos+1, si, pred[si].Mutated)
			g.ClearSample(si)
		}
	}
}
