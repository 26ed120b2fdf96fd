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
	"strconv"
	"strings"

	"github.com/grailbio/somatic/cohort"
	"github.com/grailbio/somatic/encoding/vcf"
)

// RecordWriter renders Records as VCF lines.  The INFO fields are
// BIOMART_COORDS, INDEL, and per somatic sample S somatic-frequency[S],
// probability[S], model-probability[S], model-unmut-probability[S] and, when
// enabled, model-bayes[S] and model-fdr[S].  Every sample column carries
// GT:BC:GB:FB:Zygosity.
type RecordWriter struct {
	w    *vcf.Writer
	ped  *cohort.Pedigree
	opts Opts

	coords, indel int
	// Per-sample INFO field indexes, -1 for non-somatic samples.
	frequency, priority, prob, unmut, bayes, fdr []int

	gt, bc, gb, fb, zygosity int
}

// NewRecordWriter declares the schema on w and writes the header.  w must
// not have written its header yet.
func NewRecordWriter(w *vcf.Writer, ped *cohort.Pedigree, opts Opts) (*RecordWriter, error) {
	rw := &RecordWriter{w: w, ped: ped, opts: opts}
	var err error
	define := func(id, number string, typ vcf.Type, desc string) int {
		if err != nil {
			return -1
		}
		var idx int
		idx, err = w.DefineInfo(id, number, typ, desc)
		return idx
	}
	defineFormat := func(id, number, desc string) int {
		if err != nil {
			return -1
		}
		var idx int
		idx, err = w.DefineFormat(id, number, vcf.String, desc)
		return idx
	}
	if err = w.DefineMeta("source", "bio-somatic"); err != nil {
		return nil, err
	}
	rw.coords = define("BIOMART_COORDS", "1", vcf.String, "Coordinates formatted for use with IGV.")
	rw.indel = define("INDEL", "0", vcf.Flag, "Indicates that the variation is an indel.")

	n := ped.NumSamples()
	rw.frequency, rw.priority = newIndexes(n), newIndexes(n)
	rw.prob, rw.unmut = newIndexes(n), newIndexes(n)
	rw.bayes, rw.fdr = newIndexes(n), newIndexes(n)
	samples := ped.Samples()
	for _, s := range ped.Somatic() {
		name := samples[s]
		rw.frequency[s] = define(fmt.Sprintf("somatic-frequency[%s]", name), "1", vcf.Float,
			"Frequency of a somatic variation (%).")
		rw.priority[s] = define(fmt.Sprintf("probability[%s]", name), "1", vcf.Float,
			"Somatic priority, larger numbers indicate more support for somatic variation in sample.")
		rw.prob[s] = define(fmt.Sprintf("model-probability[%s]", name), "1", vcf.Float,
			"Probability of a somatic variation, determined by the model.")
		rw.unmut[s] = define(fmt.Sprintf("model-unmut-probability[%s]", name), "1", vcf.Float,
			"Probability of no somatic variation, determined by the model.")
		if opts.IncludeBayes {
			rw.bayes[s] = define(fmt.Sprintf("model-bayes[%s]", name), "1", vcf.Float,
				"Probability of a somatic variation, from the model probability and bayes theorem.")
		}
		if opts.IncludeFDR {
			rw.fdr[s] = define(fmt.Sprintf("model-fdr[%s]", name), "1", vcf.Float,
				"False discovery rate at the threshold defined by the model probability of this record.")
		}
	}
	rw.gt = defineFormat("GT", "1", "Genotype")
	rw.bc = defineFormat("BC", "5", "Base counts in format A=?,C=?,... for observed alleles.")
	rw.gb = defineFormat("GB", "1", "Number of bases that pass base filters in this sample.")
	rw.fb = defineFormat("FB", "1", "Number of bases that failed base filters in this sample.")
	rw.zygosity = defineFormat("Zygosity", "1", "Zygosity")
	if err != nil {
		return nil, err
	}
	if err := w.DefineFilter(FilterStrictSomatic,
		"The site is not a strict somatic candidate: it is detected in a parent or more than rarely in the germline."); err != nil {
		return nil, err
	}
	if err := w.DefineSamples(samples); err != nil {
		return nil, err
	}
	if err := w.WriteHeader(); err != nil {
		return nil, err
	}
	return rw, nil
}

func newIndexes(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = -1
	}
	return idx
}

// Write writes r.
func (rw *RecordWriter) Write(r *Record) error {
	res := r.Resolution
	pos := r.Pos + 1
	vr := rw.w.NewRecord()
	vr.Chrom = r.RefName
	vr.Pos = pos
	vr.Ref = res.Reference
	vr.Alt = res.Alternates
	vr.Filter = r.Filter
	vr.SetInfo(rw.coords, fmt.Sprintf("%s:%d-%d", r.RefName, pos, pos))
	vr.SetFlag(rw.indel, res.HasIndel)
	for _, s := range rw.ped.Somatic() {
		vr.SetInfoFloat(rw.frequency[s], r.Frequency[s])
		vr.SetInfoFloat(rw.priority[s], r.Priority[s])
		if !r.Scored[s] {
			continue
		}
		vr.SetInfoFloat(rw.prob[s], r.Prediction[s].Mutated)
		vr.SetInfoFloat(rw.unmut[s], r.Prediction[s].NotMutated)
		if r.Bayes != nil && rw.bayes[s] >= 0 {
			vr.SetInfoFloat(rw.bayes[s], r.Bayes[s])
		}
		if r.FDR != nil && rw.fdr[s] >= 0 {
			vr.SetInfoFloat(rw.fdr[s], r.FDR[s])
		}
	}
	for s := 0; s < rw.ped.NumSamples(); s++ {
		vr.SetSampleValue(rw.gt, s, res.GenotypeCall(s))
		vr.SetSampleValue(rw.bc, s, strings.Join(res.BaseCounts[s], ","))
		vr.SetSampleValue(rw.gb, s, strconv.Itoa(res.GoodBases[s]))
		vr.SetSampleValue(rw.fb, s, strconv.Itoa(res.FailedBases[s]))
		vr.SetSampleValue(rw.zygosity, s, res.Zygosity[s].String())
	}
	return rw.w.Write(vr)
}
