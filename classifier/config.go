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

// Package classifier loads a pre-trained somatic mutation model and the
// calibrators that adjust its probabilities.
//
// A model lives in a directory:
//
//   config.properties       mapper=<feature mapper>, training.mutation.rate=<float>
//   <prefix>Model.tsv       FEATURE/WEIGHT table, "intercept" included
//   <prefix>Validation.tsv  optional SCORE/LABEL table used by FDREstimator
package classifier

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

const (
	// ConfigFile is the name of the model configuration file.
	ConfigFile = "config.properties"

	mapperKey       = "mapper"
	mutationRateKey = "training.mutation.rate"
)

// Config is the content of a model's config.properties.
type Config struct {
	// Mapper names the feature mapper the model was trained with.
	Mapper string
	// TrainingMutationRate is the fraction of mutated examples in the
	// training set.  Zero when unspecified.
	TrainingMutationRate float64
	// Properties holds every key of the file.
	Properties map[string]string
}

// ReadConfig reads dir/config.properties.
func ReadConfig(ctx context.Context, dir string) (Config, error) {
	path := filepath.Join(dir, ConfigFile)
	props, err := readProperties(ctx, path)
	if err != nil {
		return Config{}, err
	}
	return newConfig(props, path)
}

func newConfig(props map[string]string, path string) (Config, error) {
	cfg := Config{Properties: props, Mapper: props[mapperKey]}
	if cfg.Mapper == "" {
		return cfg, errors.Errorf("%s: %s is not set", path, mapperKey)
	}
	if v, ok := props[mutationRateKey]; ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, errors.Wrapf(err, "%s: %s", path, mutationRateKey)
		}
		if rate <= 0 || rate >= 1 {
			return cfg, errors.Errorf("%s: %s=%v is outside (0,1)", path, mutationRateKey, rate)
		}
		cfg.TrainingMutationRate = rate
	}
	return cfg, nil
}

func readProperties(ctx context.Context, path string) (props map[string]string, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	if props, err = parseProperties(in.Reader(ctx)); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return props, nil
}

// parseProperties parses the subset of the java properties syntax written by
// the model trainer: one key=value or key:value pair per line, '#' and '!'
// comments, surrounding whitespace ignored.
func parseProperties(r io.Reader) (map[string]string, error) {
	props := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}
		sep := strings.IndexAny(line, "=:")
		if sep < 0 {
			props[line] = ""
			continue
		}
		props[strings.TrimSpace(line[:sep])] = strings.TrimSpace(line[sep+1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read properties")
	}
	return props, nil
}
