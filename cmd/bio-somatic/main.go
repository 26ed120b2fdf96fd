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
package main

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/somatic/somatic"
	"v.io/x/lib/cmdline"
)

// splitList splits a comma-separated flag value, dropping empty elements.
func splitList(s string) []string {
	var list []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			list = append(list, e)
		}
	}
	return list
}

func newCmdCall() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "call",
		Short:    "Call somatic variations from allele count evidence",
		ArgsName: "evidence-path",
	}
	f := callFlags{opts: somatic.DefaultOpts}
	cmd.Flags.StringVar(&f.covariatesPath, "covariates", "", "Covariate TSV describing the samples (required)")
	cmd.Flags.StringVar(&f.samples, "samples", "", `Comma-separated sample names, in evidence column order.
Required for TSV evidence; for .rio evidence, checked against the names stored in the file.`)
	cmd.Flags.StringVar(&f.modelPath, "model", "", "Classifier weights, <dir>/<prefix>Model.tsv; <dir> holds config.properties (required)")
	cmd.Flags.StringVar(&f.matchedReadsPath, "matched-reads", "", "SAMPLE/MATCHED_READS TSV.  By default every sample has one matched read")
	cmd.Flags.StringVar(&f.bedPath, "bed", "", "Only call positions in this BED file; mutually exclusive with -region")
	cmd.Flags.StringVar(&f.region, "region", "", "Only call positions in this region, formatted as <contig>:<1-based first pos>-<last pos>, <contig>:<pos> or <contig>")
	cmd.Flags.StringVar(&f.outputPath, "output", "somatic.vcf", "Output VCF path; a .gz suffix selects block-gzip compression")
	cmd.Flags.IntVar(&f.parallelism, "parallelism", 1, "Number of compression threads for .vcf.gz output")
	cmd.Flags.Float64Var(&f.opts.ModelPThreshold, "model-p-threshold", f.opts.ModelPThreshold,
		"Minimum classifier probability of a somatic variation, against every germline relative")
	cmd.Flags.IntVar(&f.opts.StrictThresholdParents, "strict-threshold-parents", f.opts.StrictThresholdParents,
		"Largest count of the candidate allele in a parent that is still strictly somatic")
	cmd.Flags.IntVar(&f.opts.StrictThresholdGermline, "strict-threshold-germline", f.opts.StrictThresholdGermline,
		"Largest count of the candidate allele in a germline relative that is still strictly somatic")
	cmd.Flags.BoolVar(&f.opts.IncludeBayes, "bayes", false, "Report model-bayes[S], the model probability adjusted to -bayes-prior")
	cmd.Flags.Float64Var(&f.opts.BayesPrior, "bayes-prior", f.opts.BayesPrior, "Prior somatic mutation rate for -bayes")
	cmd.Flags.BoolVar(&f.opts.IncludeFDR, "fdr", false, "Report model-fdr[S], estimated from <dir>/<prefix>Validation.tsv")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("call takes one evidence path, but got %v", argv)
		}
		return call(vcontext.Background(), argv[0], f)
	})
	return cmd
}

func newCmdConvert() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "convert",
		Short:    "Merge per-sample basestrand TSVs into one evidence file",
		ArgsName: "destpath srcpath...",
		Long: `
The i-th srcpath is the bio-pileup basestrand TSV of the i-th sample of
-samples.  destpath ending in .rio selects the binary encoding; otherwise the
TSV encoding is written, gzip-compressed when destpath ends in .gz.`,
	}
	samples := cmd.Flags.String("samples", "", "Comma-separated sample names, one per srcpath (required)")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 2 {
			return fmt.Errorf("convert takes destpath srcpath..., but got %v", argv)
		}
		return convert(vcontext.Background(), argv[0], argv[1:], splitList(*samples))
	})
	return cmd
}

func newCmdPedigree() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "pedigree",
		Short:    "Validate a covariate table and print the resolved relationships",
		ArgsName: "covariates-path",
	}
	samples := cmd.Flags.String("samples", "", "Comma-separated sample names, in evidence column order (required)")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("pedigree takes one covariates path, but got %v", argv)
		}
		return pedigree(vcontext.Background(), env.Stdout, argv[0], splitList(*samples))
	})
	return cmd
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-somatic",
			Short:    "Somatic variation calling in a cohort",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdCall(),
				newCmdConvert(),
				newCmdPedigree(),
			},
		})
}
