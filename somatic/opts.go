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

	"github.com/grailbio/base/errors"
)

// Opts controls candidate selection and gating.
type Opts struct {
	// ModelPThreshold is the minimum classifier mutation probability a
	// somatic sample must reach against every germline relative.
	ModelPThreshold float64
	// StrictThresholdParents is the largest parent count still compatible with
	// a strict candidate.
	StrictThresholdParents int
	// StrictThresholdGermline is the largest germline-relative count still
	// compatible with a strict candidate.
	StrictThresholdGermline int
	// IncludeBayes and IncludeFDR enable the calibrated probability columns.
	IncludeBayes bool
	IncludeFDR   bool
	// BayesPrior is the prior somatic mutation rate used by the Bayes
	// calibrator.
	BayesPrior float64
}

// DefaultOpts are the default options.
var DefaultOpts = Opts{
	ModelPThreshold:         0.99,
	StrictThresholdParents:  0,
	StrictThresholdGermline: 10,
	BayesPrior:              2.5e-7,
}

// Validate checks that the options are in range.
func (o *Opts) Validate() error {
	if o.ModelPThreshold < 0 || o.ModelPThreshold > 1 {
		return errors.E(errors.Invalid, fmt.Sprintf("model probability threshold %v is outside [0,1]", o.ModelPThreshold))
	}
	if o.StrictThresholdParents < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("negative strict parent threshold %d", o.StrictThresholdParents))
	}
	if o.StrictThresholdGermline < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("negative strict germline threshold %d", o.StrictThresholdGermline))
	}
	if o.IncludeBayes && (o.BayesPrior <= 0 || o.BayesPrior >= 1) {
		return errors.E(errors.Invalid, fmt.Sprintf("bayes prior %v is outside (0,1)", o.BayesPrior))
	}
	return nil
}
