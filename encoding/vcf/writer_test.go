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
package vcf

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	status := m.Run()
	shutdown()
	os.Exit(status)
}

type testSchema struct {
	coords, indel, prob int
	gt, bc              int
}

func defineTestSchema(t *testing.T, w *Writer) testSchema {
	var (
		s   testSchema
		err error
	)
	assert.NoError(t, w.DefineMeta("source", "test"))
	s.coords, err = w.DefineInfo("BIOMART_COORDS", "1", String, "Coordinates.")
	assert.NoError(t, err)
	s.indel, err = w.DefineInfo("INDEL", "0", Flag, "Indel site.")
	assert.NoError(t, err)
	s.prob, err = w.DefineInfo("probability[T1]", "1", Float, `Priority of "T1".`)
	assert.NoError(t, err)
	assert.NoError(t, w.DefineFilter("STRICT_SOMATIC", "Not strict."))
	s.gt, err = w.DefineFormat("GT", "1", String, "Genotype")
	assert.NoError(t, err)
	s.bc, err = w.DefineFormat("BC", "5", String, "Base counts")
	assert.NoError(t, err)
	assert.NoError(t, w.DefineSamples([]string{"N1", "T1"}))
	return s
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	s := defineTestSchema(t, w)
	assert.NoError(t, w.WriteHeader())

	r := w.NewRecord()
	r.Chrom, r.Pos, r.Ref, r.Alt, r.Filter = "chr1", 100, "C", []string{"A", "T"}, "PASS"
	r.SetInfo(s.coords, "chr1:100-100")
	r.SetFlag(s.indel, true)
	r.SetInfoFloat(s.prob, 2.5e-7)
	r.SetSampleValue(s.gt, 0, "0/0")
	r.SetSampleValue(s.gt, 1, "0/1")
	r.SetSampleValue(s.bc, 1, "A=3,C=10")
	assert.NoError(t, w.Write(r))

	r = w.NewRecord()
	r.Chrom, r.Pos, r.Ref = "chr2", 5, "G"
	assert.NoError(t, w.Write(r))
	assert.NoError(t, w.Flush())

	expect.EQ(t, buf.String(), strings.Join([]string{
		"##fileformat=VCFv4.1",
		"##source=test",
		`##INFO=<ID=BIOMART_COORDS,Number=1,Type=String,Description="Coordinates.">`,
		`##INFO=<ID=INDEL,Number=0,Type=Flag,Description="Indel site.">`,
		`##INFO=<ID=probability[T1],Number=1,Type=Float,Description="Priority of \"T1\".">`,
		`##FILTER=<ID=STRICT_SOMATIC,Description="Not strict.">`,
		`##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`,
		`##FORMAT=<ID=BC,Number=5,Type=String,Description="Base counts">`,
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tN1\tT1",
		"chr1\t100\t.\tC\tA,T\t.\tPASS\tBIOMART_COORDS=chr1:100-100;INDEL;probability[T1]=2.5e-07\tGT:BC\t0/0:.\t0/1:A=3,C=10",
		"chr2\t5\t.\tG\t.\t.\t.\t.\tGT:BC\t.:.\t.:.",
		"",
	}, "\n"))
}

func TestWriterSchemaErrors(t *testing.T) {
	w := NewWriter(ioutil.Discard)
	_, err := w.DefineInfo("X", "1", Float, "")
	assert.NoError(t, err)
	_, err = w.DefineInfo("X", "1", Float, "")
	expect.HasSubstr(t, err.Error(), "INFO X defined twice")
	_, err = w.DefineFormat("X", "1", Float, "")
	assert.NoError(t, err)
	_, err = w.DefineInfo("a b", "1", Float, "")
	expect.HasSubstr(t, err.Error(), "invalid INFO id")

	expect.HasSubstr(t, w.Write(w.NewRecord()).Error(), "before the header")
	assert.NoError(t, w.WriteHeader())

	_, err = w.DefineInfo("Y", "1", Float, "")
	expect.HasSubstr(t, err.Error(), "after the header")
	expect.HasSubstr(t, w.DefineFilter("F", "").Error(), "after the header")
	expect.HasSubstr(t, w.DefineSamples([]string{"a"}).Error(), "after the header")
	expect.HasSubstr(t, w.DefineMeta("k", "v").Error(), "after the header")
	expect.HasSubstr(t, w.WriteHeader().Error(), "header written twice")
	expect.HasSubstr(t, w.Write(w.NewRecord()).Error(), "invalid position")
}

func TestCreateGzip(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	path := filepath.Join(tmpdir, "out.vcf.gz")

	w, err := Create(ctx, path, 1)
	assert.NoError(t, err)
	assert.NoError(t, w.DefineSamples([]string{"S"}))
	_, err = w.DefineFormat("GT", "1", String, "Genotype")
	assert.NoError(t, err)
	assert.NoError(t, w.WriteHeader())
	r := w.NewRecord()
	r.Chrom, r.Pos, r.Ref = "chr1", 1, "A"
	assert.NoError(t, w.Write(r))
	assert.NoError(t, w.Close(ctx))

	in, err := os.Open(path)
	assert.NoError(t, err)
	defer in.Close() // nolint: errcheck
	// bgzf output is a valid multi-member gzip stream.
	gz, err := gzip.NewReader(in)
	assert.NoError(t, err)
	data, err := ioutil.ReadAll(gz)
	assert.NoError(t, err)
	expect.HasSubstr(t, string(data), "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS\n")
	expect.HasSubstr(t, string(data), "chr1\t1\t.\tA\t.\t.\t.\t.\tGT\t.\n")
}

func TestFormatFloat(t *testing.T) {
	expect.EQ(t, FormatFloat(0.25), "0.25")
	expect.EQ(t, FormatFloat(100), "100")
	expect.EQ(t, FormatFloat(1.0/3), "0.333333")
	expect.EQ(t, Flag.String(), "Flag")
	expect.EQ(t, Type(9).String(), "Type(9)")
}
