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
package interval

import (
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	status := m.Run()
	shutdown()
	os.Exit(status)
}

const testBED = `track name=targets
chr1	10	20	a
chr1	15	25
chr1	30	40
chr2	0	5
`

func TestNewBEDUnion(t *testing.T) {
	u, err := NewBEDUnion(strings.NewReader(testBED), NewBEDOpts{})
	assert.NoError(t, err)
	expect.EQ(t, u.nameMap, map[string][]PosType{
		"chr1": {10, 25, 30, 40},
		"chr2": {0, 5},
	})
	expect.EQ(t, u.NumBases(), 30)
	expect.EQ(t, u.RefNames(), []string{"chr1", "chr2"})

	tests := []struct {
		refName string
		pos     PosType
		want    bool
	}{
		{"chr1", 9, false},
		{"chr1", 10, true},
		{"chr1", 24, true},
		{"chr1", 25, false},
		{"chr1", 30, true},
		{"chr1", 39, true},
		{"chr1", 40, false},
		{"chr1", 12, true},
		{"chr1", 26, false},
		{"chr3", 12, false},
		{"chr2", 4, true},
		{"chr2", 5, false},
	}
	for _, test := range tests {
		expect.EQ(t, u.ContainsByName(test.refName, test.pos), test.want, "%s:%d", test.refName, test.pos)
	}
}

func TestNewBEDUnionOneBased(t *testing.T) {
	u, err := NewBEDUnion(strings.NewReader("chr1 1 10\nchr1 11 12\n"), NewBEDOpts{OneBasedInput: true})
	assert.NoError(t, err)
	expect.EQ(t, u.nameMap["chr1"], []PosType{0, 12})
	expect.True(t, u.ContainsByName("chr1", 0))
	expect.False(t, u.ContainsByName("chr1", 12))
}

func TestNewBEDUnionErrors(t *testing.T) {
	tests := []struct {
		bed, err string
	}{
		{"chr1\t10\t20\nchr1\t5\t8\n", "unsorted input"},
		{"chr1\t10\t20\nchr2\t5\t8\nchr1\t30\t40\n", "split chromosome chr1"},
		{"chr1\t10\n", "fewer tokens"},
		{"chr1\t10\t5\n", "invalid coordinate pair"},
		{"chr1\tx\t5\n", "line 1"},
	}
	for _, test := range tests {
		_, err := NewBEDUnion(strings.NewReader(test.bed), NewBEDOpts{})
		expect.HasSubstr(t, err.Error(), test.err)
	}
}

func TestNewBEDUnionFromPath(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	path := filepath.Join(tmpdir, "targets.bed")
	assert.NoError(t, ioutil.WriteFile(path, []byte(testBED), 0644))
	u, err := NewBEDUnionFromPath(vcontext.Background(), path, NewBEDOpts{})
	assert.NoError(t, err)
	expect.EQ(t, u.NumBases(), 30)

	_, err = NewBEDUnionFromPath(vcontext.Background(), filepath.Join(tmpdir, "missing.bed"), NewBEDOpts{})
	expect.True(t, err != nil)
}

func TestParseRegionString(t *testing.T) {
	tests := []struct {
		region  string
		refName string
		start0  PosType
		end     PosType
	}{
		{"chr1:1-1000", "chr1", 0, 1000},
		{"chr1:1,001-2,000", "chr1", 1000, 2000},
		{"chr1:1000", "chr1", 999, 1000},
		{"chr1", "chr1", 0, math.MaxInt32 - 1},
	}
	for _, tt := range tests {
		result, err := ParseRegionString(tt.region)
		assert.NoError(t, err)
		expect.EQ(t, result, Entry{RefName: tt.refName, Start0: tt.start0, End: tt.end})
	}
	for _, region := range []string{"", ":1-2", "chr1:0", "chr1:10-5", "chr1:a-5"} {
		_, err := ParseRegionString(region)
		expect.True(t, err != nil, region)
	}
}

func TestNewBEDUnionFromEntries(t *testing.T) {
	u, err := NewBEDUnionFromEntries([]Entry{
		{"chr1", 0, 10},
		{"chr1", 10, 12},
		{"chr5", 3, 3},
	})
	assert.NoError(t, err)
	expect.EQ(t, u.nameMap, map[string][]PosType{"chr1": {0, 12}, "chr5": {}})
	expect.EQ(t, u.RefNames(), []string{"chr1"})
	expect.False(t, u.ContainsByName("chr5", 3))

	_, err = NewBEDUnionFromEntries([]Entry{{"chr1", -1, 3}})
	expect.HasSubstr(t, err.Error(), "negative start")
}
