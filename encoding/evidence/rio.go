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
package evidence

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/somatic/genotype"
)

const (
	sampleNamesHeader = "SampleNames"
	trailerVersion    = 1
)

const (
	slotFlagReference = 1 << iota
	slotFlagIndel
)

func init() {
	recordiozstd.Init()
}

// RioWriter writes the binary encoding.
type RioWriter struct {
	w       recordio.Writer
	samples []string
	n       int64
}

// NewRioWriter creates a RioWriter.  Finish must be called once all positions
// are appended.
func NewRioWriter(out io.Writer, samples []string) *RioWriter {
	w := recordio.NewWriter(out, recordio.WriterOpts{
		Marshal:      marshalPosition,
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(sampleNamesHeader, strings.Join(samples, "\000"))
	w.AddHeader(recordio.KeyTrailer, true)
	return &RioWriter{w: w, samples: samples}
}

// Append appends p.
func (w *RioWriter) Append(p *genotype.Position) error {
	if len(p.Samples) != len(w.samples) {
		return errors.E(errors.Invalid,
			fmt.Sprintf("evidence.RioWriter: position has %d samples, want %d", len(p.Samples), len(w.samples)))
	}
	w.w.Append(p)
	w.n++
	return nil
}

// Finish writes the trailer and flushes the file.
func (w *RioWriter) Finish() error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, int64(trailerVersion)); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, w.n); err != nil {
		return err
	}
	w.w.SetTrailer(buf.Bytes())
	return w.w.Finish()
}

// RioReader reads the binary encoding.
type RioReader struct {
	scanner recordio.Scanner
	samples []string
	order   orderChecker
	n       int64
}

var _ Source = (*RioReader)(nil)

// NewRioReader creates a RioReader.
func NewRioReader(rs io.ReadSeeker) (*RioReader, error) {
	r := &RioReader{
		scanner: recordio.NewScanner(rs, recordio.ScannerOpts{Unmarshal: unmarshalPosition}),
		n:       -1,
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	for _, kv := range r.scanner.Header() {
		// recordio adds keys of its own.
		if kv.Key == sampleNamesHeader {
			if packed := kv.Value.(string); packed != "" {
				r.samples = strings.Split(packed, "\000")
			}
		}
	}
	if len(r.samples) == 0 {
		return nil, errors.E(errors.Invalid, "evidence.NewRioReader: missing sample names header")
	}
	if trailer := r.scanner.Trailer(); len(trailer) != 0 {
		tr := bytes.NewReader(trailer)
		var version int64
		if err := binary.Read(tr, binary.LittleEndian, &version); err != nil {
			return nil, err
		}
		if version != trailerVersion {
			return nil, fmt.Errorf("unrecognized trailer version: got %d, want %d", version, trailerVersion)
		}
		if err := binary.Read(tr, binary.LittleEndian, &r.n); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Samples implements Source.
func (r *RioReader) Samples() []string { return r.samples }

// NumPositions returns the number of positions recorded in the trailer, or
// -1 when the file has no trailer.
func (r *RioReader) NumPositions() int64 { return r.n }

// Next implements Source.
func (r *RioReader) Next() (*genotype.Position, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	p := r.scanner.Get().(*genotype.Position)
	if len(p.Samples) != len(r.samples) {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("evidence: record %s:%d has %d samples, want %d", p.RefName, p.Pos+1, len(p.Samples), len(r.samples)))
	}
	var err error
	if p.RefID, err = r.order.check(p.RefName, p.Pos); err != nil {
		return nil, err
	}
	return p, nil
}

// Close implements Source.
func (r *RioReader) Close(context.Context) error {
	return r.scanner.Finish()
}

// cutAndAdvance returns s[offset:offset+pieceLen] and advances offset.
func cutAndAdvance(offset *int, s []byte, pieceLen int) []byte {
	tmpSlice := s[(*offset):]
	*offset += pieceLen
	return tmpSlice[:pieceLen]
}

func putString(offset *int, t []byte, s string) {
	binary.LittleEndian.PutUint32(cutAndAdvance(offset, t, 4), uint32(len(s)))
	copy(cutAndAdvance(offset, t, len(s)), s)
}

// Serialized format:
//   [0..4): pos
//   refName, ref: uint32 length followed by the bytes
//   uint32 sample count, then per sample:
//     int32 catch-all index, uint32 failed, sample ref string,
//     uint32 slot count, then per slot:
//       uint32 count, flags byte, allele string
// All integers are little-endian.
func marshalPosition(scratch []byte, v interface{}) ([]byte, error) {
	p := v.(*genotype.Position)
	bytesReq := 4 + 4 + len(p.RefName) + 4 + len(p.Ref) + 4
	for i := range p.Samples {
		s := &p.Samples[i]
		bytesReq += 12 + len(s.Ref) + 4
		for _, slot := range s.Slots {
			bytesReq += 9 + len(slot.Allele)
		}
	}
	t := scratch
	if len(t) < bytesReq {
		t = make([]byte, bytesReq)
	}
	t = t[:bytesReq]

	offset := 0
	binary.LittleEndian.PutUint32(cutAndAdvance(&offset, t, 4), uint32(p.Pos))
	putString(&offset, t, p.RefName)
	putString(&offset, t, p.Ref)
	binary.LittleEndian.PutUint32(cutAndAdvance(&offset, t, 4), uint32(len(p.Samples)))
	for i := range p.Samples {
		s := &p.Samples[i]
		hdr := cutAndAdvance(&offset, t, 8)
		binary.LittleEndian.PutUint32(hdr[:4], uint32(int32(s.Other)))
		binary.LittleEndian.PutUint32(hdr[4:8], uint32(s.Failed))
		putString(&offset, t, s.Ref)
		binary.LittleEndian.PutUint32(cutAndAdvance(&offset, t, 4), uint32(len(s.Slots)))
		for _, slot := range s.Slots {
			dst := cutAndAdvance(&offset, t, 5)
			binary.LittleEndian.PutUint32(dst[:4], uint32(slot.Count))
			var flags byte
			if slot.Reference {
				flags |= slotFlagReference
			}
			if slot.Indel {
				flags |= slotFlagIndel
			}
			dst[4] = flags
			putString(&offset, t, slot.Allele)
		}
	}
	return t, nil
}

var errTruncated = errors.E(errors.Invalid, "evidence: truncated record")

// decoder reads the fields written by marshalPosition, recording the first
// out-of-bounds access instead of panicking.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) cut(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf)-d.off < n {
		d.err = errTruncated
		return nil
	}
	return cutAndAdvance(&d.off, d.buf, n)
}

func (d *decoder) readUint32() uint32 {
	b := d.cut(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) readString() string {
	n := d.readUint32()
	return string(d.cut(int(n)))
}

func unmarshalPosition(in []byte) (interface{}, error) {
	d := decoder{buf: in}
	p := &genotype.Position{Pos: int(d.readUint32())}
	p.RefName = d.readString()
	p.Ref = d.readString()
	nSamples := int(d.readUint32())
	if d.err == nil && nSamples > len(in) {
		return nil, errTruncated
	}
	p.Samples = make([]genotype.SampleCounts, nSamples)
	for i := 0; i < nSamples && d.err == nil; i++ {
		s := &p.Samples[i]
		s.Other = int(int32(d.readUint32()))
		s.Failed = int(d.readUint32())
		s.Ref = d.readString()
		nSlots := int(d.readUint32())
		if d.err == nil && nSlots > len(in) {
			return nil, errTruncated
		}
		s.Slots = make([]genotype.Slot, nSlots)
		for j := 0; j < nSlots && d.err == nil; j++ {
			slot := &s.Slots[j]
			slot.Count = int(d.readUint32())
			if flags := d.cut(1); flags != nil {
				slot.Reference = flags[0]&slotFlagReference != 0
				slot.Indel = flags[0]&slotFlagIndel != 0
			}
			slot.Allele = d.readString()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return p, nil
}
