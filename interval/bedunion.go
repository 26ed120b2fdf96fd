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
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// PosType is BEDUnion's coordinate type.
type PosType int32

const posTypeMax = math.MaxInt32

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// searchPosType returns the index of x in a[], or the position where x would
// be inserted if x isn't in a.
func searchPosType(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// fwdsearchPosType checks a[idx], then a[idx + 1], then a[idx + 3], etc., and
// finishes with binary search.  It is the better choice when queries arrive
// in increasing order.
func fwdsearchPosType(a []PosType, x PosType, idx int) int {
	nextIncr := 1
	startIdx := idx
	endIdx := len(a)
	for idx < endIdx {
		if a[idx] >= x {
			endIdx = idx
			break
		}
		startIdx = idx + 1
		idx += nextIncr
		nextIncr *= 2
	}
	for startIdx < endIdx {
		midIdx := int(uint(startIdx+endIdx) >> 1)
		if a[midIdx] >= x {
			endIdx = midIdx
		} else {
			startIdx = midIdx + 1
		}
	}
	return startIdx
}

// BEDUnion is a set of genomic positions.  Each chromosome maps to a sorted
// endpoint sequence: interval k covers [ends[2k], ends[2k+1]).
//
// Queries cache the last chromosome and search index, so a BEDUnion must not
// be queried from multiple goroutines.
type BEDUnion struct {
	nameMap map[string][]PosType

	queried       bool
	lastRefName   string
	lastIntervals []PosType
	lastPosPlus1  PosType
	lastIdx       int
	isSequential  bool
}

// NewBEDOpts defines behavior of the BED-loading functions.
type NewBEDOpts struct {
	// OneBasedInput interprets the BED interval boundaries as one-based [start,
	// end] instead of the usual zero-based [start, end).
	OneBasedInput bool
}

// ContainsByName checks whether the 0-based position pos of chromosome
// refName is in the set.
func (u *BEDUnion) ContainsByName(refName string, pos PosType) bool {
	posPlus1 := pos + 1
	if !u.queried || refName != u.lastRefName {
		u.queried = true
		u.lastRefName = refName
		u.lastIntervals = u.nameMap[refName]
		if u.lastIntervals == nil {
			return false
		}
		u.lastIdx = searchPosType(u.lastIntervals, posPlus1)
		u.lastPosPlus1 = posPlus1
		u.isSequential = true
		return u.lastIdx&1 == 1
	}
	if u.lastIntervals == nil {
		return false
	}
	if u.isSequential {
		if posPlus1 >= u.lastPosPlus1 {
			u.lastIdx = fwdsearchPosType(u.lastIntervals, posPlus1, u.lastIdx)
			u.lastPosPlus1 = posPlus1
			return u.lastIdx&1 == 1
		}
		u.isSequential = false
	}
	return searchPosType(u.lastIntervals, posPlus1)&1 == 1
}

// RefNames returns the chromosomes with at least one interval, sorted.
func (u *BEDUnion) RefNames() []string {
	names := make([]string, 0, len(u.nameMap))
	for name, ends := range u.nameMap {
		if len(ends) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// NumBases returns the number of positions in the set.
func (u *BEDUnion) NumBases() int {
	n := 0
	for _, ends := range u.nameMap {
		for i := 0; i+1 < len(ends); i += 2 {
			n += int(ends[i+1] - ends[i])
		}
	}
	return n
}

// unionBuilder merges sorted intervals one chromosome at a time.
type unionBuilder struct {
	u         BEDUnion
	refName   string
	ends      []PosType
	start     PosType
	end       PosType
	hasOpen   bool
	hasRefSet bool
}

func newUnionBuilder() *unionBuilder {
	return &unionBuilder{u: BEDUnion{nameMap: make(map[string][]PosType)}}
}

func (b *unionBuilder) flushRef() {
	if !b.hasRefSet {
		return
	}
	if b.hasOpen {
		b.ends = append(b.ends, b.start, b.end)
	}
	b.u.nameMap[b.refName] = b.ends
}

// add adds [start, end) of refName.  Intervals must be sorted by start within
// a chromosome, and each chromosome must be contiguous.
func (b *unionBuilder) add(refName string, start, end PosType) error {
	if start < 0 {
		return fmt.Errorf("negative start coordinate %d", start)
	}
	if end < start || end >= posTypeMax {
		return fmt.Errorf("invalid coordinate pair [%d, %d)", start, end)
	}
	if !b.hasRefSet || refName != b.refName {
		b.flushRef()
		if _, found := b.u.nameMap[refName]; found {
			return fmt.Errorf("unsorted input (split chromosome %s)", refName)
		}
		b.refName, b.ends, b.hasOpen, b.hasRefSet = refName, []PosType{}, false, true
	}
	if end == start {
		return nil
	}
	switch {
	case !b.hasOpen:
		b.start, b.end, b.hasOpen = start, end, true
	case start < b.start:
		return fmt.Errorf("unsorted input at %s:%d", refName, start)
	case start > b.end:
		b.ends = append(b.ends, b.start, b.end)
		b.start, b.end = start, end
	case end > b.end:
		b.end = end
	}
	return nil
}

func (b *unionBuilder) finish() BEDUnion {
	b.flushRef()
	return b.u
}

func isBEDHeader(token []byte) bool {
	return token[0] == '#' || string(token) == "track" || string(token) == "browser"
}

// NewBEDUnion loads the intervals of a BED file sorted by start coordinate
// within each chromosome, merging touching and overlapping intervals.
// Columns past the third are ignored.
func NewBEDUnion(reader io.Reader, opts NewBEDOpts) (BEDUnion, error) {
	var startSubtract int
	if opts.OneBasedInput {
		startSubtract = 1
	}
	b := newUnionBuilder()
	scanner := bufio.NewScanner(reader)
	var tokens [3][]byte
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		nToken := getTokens(tokens[:], curLine)
		if nToken == 0 || isBEDHeader(tokens[0]) {
			continue
		}
		if nToken != 3 {
			return BEDUnion{}, fmt.Errorf("interval.NewBEDUnion: line %d has fewer tokens than expected", lineIdx)
		}
		start, err := strconv.Atoi(string(tokens[1]))
		if err != nil {
			return BEDUnion{}, fmt.Errorf("interval.NewBEDUnion: line %d: %v", lineIdx, err)
		}
		end, err := strconv.Atoi(string(tokens[2]))
		if err != nil {
			return BEDUnion{}, fmt.Errorf("interval.NewBEDUnion: line %d: %v", lineIdx, err)
		}
		if end >= posTypeMax {
			return BEDUnion{}, fmt.Errorf("interval.NewBEDUnion: line %d: end %d out of range", lineIdx, end)
		}
		if err := b.add(string(tokens[0]), PosType(start-startSubtract), PosType(end)); err != nil {
			return BEDUnion{}, fmt.Errorf("interval.NewBEDUnion: line %d: %v", lineIdx, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return BEDUnion{}, err
	}
	u := b.finish()
	log.Printf("BED loaded, %d base(s) covered.", u.NumBases())
	return u, nil
}

// NewBEDUnionFromPath is a wrapper for NewBEDUnion that takes a path instead
// of an io.Reader.  Paths ending in ".gz" are decompressed.
func NewBEDUnionFromPath(ctx context.Context, path string, opts NewBEDOpts) (u BEDUnion, err error) {
	infile, err := file.Open(ctx, path)
	if err != nil {
		return
	}
	defer file.CloseAndReport(ctx, infile, &err)
	reader := io.Reader(infile.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, gzErr := gzip.NewReader(reader)
		if gzErr != nil {
			return BEDUnion{}, gzErr
		}
		defer gz.Close()
		reader = gz
	}
	return NewBEDUnion(reader, opts)
}

// Entry represents a single interval, with 0-based coordinates.
type Entry struct {
	RefName string
	Start0  PosType
	End     PosType
}

// ParseRegionString parses a region string of one of the forms
//   [contig ID]:[1-based first pos]-[last pos]
//   [contig ID]:[1-based pos]
//   [contig ID]
// returning a contig ID and 0-based interval boundaries.  The interval
// [0, posTypeMax - 1) is returned if there is no positional restriction.
// Commas in positions are ignored.
func ParseRegionString(region string) (result Entry, err error) {
	if len(region) == 0 {
		err = fmt.Errorf("interval.ParseRegionString: empty region string")
		return
	}
	colonPos := strings.IndexByte(region, ':')
	if colonPos == -1 {
		return Entry{RefName: region, Start0: 0, End: posTypeMax - 1}, nil
	}
	if colonPos == 0 {
		err = fmt.Errorf("interval.ParseRegionString: empty contig ID")
		return
	}
	result.RefName = region[:colonPos]
	rangeStr := strings.Replace(region[colonPos+1:], ",", "", -1)
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		var pos1 int64
		if pos1, err = strconv.ParseInt(rangeStr, 10, 32); err != nil {
			return
		}
		if pos1 <= 0 {
			err = fmt.Errorf("interval.ParseRegionString: position %v in region string out of range", rangeStr)
			return
		}
		result.Start0 = PosType(pos1 - 1)
		result.End = PosType(pos1)
		return
	}
	var start1, end int
	if start1, err = strconv.Atoi(rangeStr[:dashPos]); err != nil {
		return
	}
	if start1 <= 0 {
		err = fmt.Errorf("interval.ParseRegionString: position %v in region string out of range", rangeStr[:dashPos])
		return
	}
	if end, err = strconv.Atoi(rangeStr[dashPos+1:]); err != nil {
		return
	}
	if end < start1 || end >= posTypeMax {
		err = fmt.Errorf("interval.ParseRegionString: invalid range string %v", rangeStr)
		return
	}
	result.Start0 = PosType(start1 - 1)
	result.End = PosType(end)
	return
}

// NewBEDUnionFromEntries initializes a BEDUnion from entries sorted by start
// within each chromosome.
func NewBEDUnionFromEntries(entries []Entry) (BEDUnion, error) {
	b := newUnionBuilder()
	for _, e := range entries {
		if err := b.add(e.RefName, e.Start0, e.End); err != nil {
			return BEDUnion{}, fmt.Errorf("interval.NewBEDUnionFromEntries: %v", err)
		}
	}
	return b.finish(), nil
}
