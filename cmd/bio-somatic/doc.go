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

/*
bio-somatic calls somatic variations in a cohort.  Given per-sample allele
count evidence, a covariate table describing the relationships between the
samples, and a trained classifier, it reports the positions where a sample
flagged Somatic carries an allele that none of its parents and germline
relatives plausibly carries.

Subcommands:

  call      evidence (.tsv, .tsv.gz or .rio) -> VCF (.vcf or .vcf.gz)
  convert   per-sample bio-pileup basestrand TSVs -> evidence
  pedigree  print the relationships resolved from a covariate table

Sample usage:
bio-somatic call \
    -covariates covariates.tsv \
    -model models/trioModel.tsv \
    -output calls.vcf.gz \
    evidence.rio
*/
package main
