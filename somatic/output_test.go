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
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/somatic/encoding/vcf"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestRecordWriter(t *testing.T) {
	opts := DefaultOpts
	opts.IncludeBayes = true
	opts.IncludeFDR = true
	c := newTrioCaller(t, &fixedClassifier{prob: 0.995}, opts)
	rec, ok := process(t, c, tumorOnlyA())
	require.True(t, ok)

	var buf bytes.Buffer
	vw := vcf.NewWriter(&buf)
	rw, err := NewRecordWriter(vw, trioPedigree(t), opts)
	assert.NoError(t, err)
	assert.NoError(t, rw.Write(rec))
	assert.NoError(t, vw.Flush())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	expect.EQ(t, lines[0], "##fileformat=VCFv4.1")
	expect.EQ(t, lines[1], "##source=bio-somatic")
	header := strings.Join(lines[:len(lines)-1], "\n")
	expect.HasSubstr(t, header, "##INFO=<ID=INDEL,Number=0,Type=Flag,")
	expect.HasSubstr(t, header, "##INFO=<ID=model-fdr[S3],Number=1,Type=Float,")
	expect.HasSubstr(t, header, "##FILTER=<ID=STRICT_SOMATIC,")
	expect.HasSubstr(t, header, "##FORMAT=<ID=BC,Number=5,Type=String,")
	expect.False(t, strings.Contains(header, "[S4]"))
	expect.EQ(t, lines[len(lines)-2], "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\tS3\tS4")

	expect.EQ(t, lines[len(lines)-1], strings.Join([]string{
		"chr1", "1001", ".", "C", "A", ".", "PASS",
		"BIOMART_COORDS=chr1:1001-1001;somatic-frequency[S3]=100;probability[S3]=3.9e+09;" +
			"model-probability[S3]=0.995;model-unmut-probability[S3]=0.005;" +
			"model-bayes[S3]=0.4975;model-fdr[S3]=0.0995",
		"GT:BC:GB:FB:Zygosity",
		"0/0:C=20:20:0:homozygous",
		"0/0:C=18:18:0:homozygous",
		"1/1:A=20:20:0:homozygous",
		"0/1:A=1,C=14:15:0:heterozygous",
	}, "\t"))
}

func TestRecordWriterUnscored(t *testing.T) {
	c := newTrioCaller(t, &fixedClassifier{prob: 0.995}, DefaultOpts)
	rec, ok := process(t, c, tumorOnlyA())
	require.True(t, ok)
	rec.Resolution.HasIndel = true
	rec.Scored[tumor] = false

	var buf bytes.Buffer
	vw := vcf.NewWriter(&buf)
	rw, err := NewRecordWriter(vw, trioPedigree(t), DefaultOpts)
	assert.NoError(t, err)
	assert.NoError(t, rw.Write(rec))
	assert.NoError(t, vw.Flush())

	out := buf.String()
	expect.False(t, strings.Contains(out, "model-bayes"))
	expect.HasSubstr(t, out, "\tBIOMART_COORDS=chr1:1001-1001;INDEL;somatic-frequency[S3]=100;probability[S3]=3.9e+09\t")
}

func TestRecordWriterHeaderWritten(t *testing.T) {
	vw := vcf.NewWriter(&bytes.Buffer{})
	assert.NoError(t, vw.WriteHeader())
	_, err := NewRecordWriter(vw, trioPedigree(t), DefaultOpts)
	expect.HasSubstr(t, err.Error(), "after the header")
}
