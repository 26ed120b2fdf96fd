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
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/somatic/genotype"
	"github.com/grailbio/somatic/somatic"
	"github.com/pkg/errors"
)

const (
	modelSuffix      = "Model.tsv"
	validationSuffix = "Validation.tsv"

	// InterceptFeature names the constant term of the weight table.
	InterceptFeature = "intercept"
)

// Model is a logistic model over the features of a FeatureMapper.  It
// implements somatic.Classifier and is safe for concurrent use.
type Model struct {
	// Dir and Prefix locate the model files.
	Dir    string
	Prefix string
	Config Config

	mapper    FeatureMapper
	intercept float64
	weights   []float64
}

var _ somatic.Classifier = (*Model)(nil)

// SplitModelPath splits ".../<prefix>Model.tsv" into its directory and
// prefix.  Environment variables in path are expanded first.
func SplitModelPath(path string) (dir, prefix string, err error) {
	path = os.ExpandEnv(path)
	base := filepath.Base(path)
	if !strings.HasSuffix(base, modelSuffix) {
		return "", "", errors.Errorf("model path %s: expect a file named <prefix>%s", path, modelSuffix)
	}
	return filepath.Dir(path), strings.TrimSuffix(base, modelSuffix), nil
}

// Load reads the model at modelPath, which names the weight table
// "<dir>/<prefix>Model.tsv", together with dir/config.properties.
func Load(ctx context.Context, modelPath string) (*Model, error) {
	dir, prefix, err := SplitModelPath(modelPath)
	if err != nil {
		return nil, err
	}
	cfg, err := ReadConfig(ctx, dir)
	if err != nil {
		return nil, err
	}
	mapper, err := LookupMapper(cfg.Mapper)
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", modelPath)
	}
	m := &Model{Dir: dir, Prefix: prefix, Config: cfg, mapper: mapper}
	path := filepath.Join(dir, prefix+modelSuffix)
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	err = m.readWeights(in.Reader(ctx))
	if err2 := in.Close(ctx); err == nil {
		err = err2
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	log.Printf("classifier.Load: loaded %s model with %d features from %s", cfg.Mapper, len(m.weights), path)
	return m, nil
}

// NewModel creates a model from explicit weights, keyed by feature name.
func NewModel(mapper FeatureMapper, intercept float64, weights map[string]float64) (*Model, error) {
	m := &Model{mapper: mapper, intercept: intercept}
	if err := m.setWeights(weights); err != nil {
		return nil, err
	}
	return m, nil
}

type weightRow struct {
	Feature string  `tsv:"FEATURE"`
	Weight  float64 `tsv:"WEIGHT"`
}

func (m *Model) readWeights(r io.Reader) error {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	weights := map[string]float64{}
	for {
		var row weightRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if _, ok := weights[row.Feature]; ok {
			return errors.Errorf("duplicate feature %s", row.Feature)
		}
		weights[row.Feature] = row.Weight
	}
	intercept, ok := weights[InterceptFeature]
	if !ok {
		return errors.Errorf("missing %s", InterceptFeature)
	}
	delete(weights, InterceptFeature)
	m.intercept = intercept
	return m.setWeights(weights)
}

func (m *Model) setWeights(weights map[string]float64) error {
	names := m.mapper.Names()
	if len(weights) != len(names) {
		return errors.Errorf("model has %d weights, mapper has %d features %v", len(weights), len(names), names)
	}
	m.weights = make([]float64, len(names))
	for i, name := range names {
		w, ok := weights[name]
		if !ok {
			return errors.Errorf("no weight for feature %s", name)
		}
		m.weights[i] = w
	}
	return nil
}

// Predict implements somatic.Classifier.
func (m *Model) Predict(p *genotype.Position, germline, somaticIdx int) (somatic.Prediction, error) {
	features := make([]float64, len(m.weights))
	if err := m.mapper.Map(p, germline, somaticIdx, features); err != nil {
		return somatic.Prediction{}, err
	}
	z := m.intercept
	for i, x := range features {
		z += m.weights[i] * x
	}
	prob := 1 / (1 + math.Exp(-z))
	return somatic.Prediction{Mutated: prob, NotMutated: 1 - prob}, nil
}
