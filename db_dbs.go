// Copyright © 2018 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package classtax

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/pkg/errors"
)

// dbsRecord is the 12-byte-packed on-disk shape of a KmerTax row.
type dbsRecord struct {
	Hash  uint64
	TaxID int32
}

// SaveDbs writes a .dbs file: rows must already be sorted ascending by Hash
// and carry a unique hash each (the caller, not this function, enforces the
// invariant; SortDbsRows provides the ordering).
func SaveDbs(w io.Writer, k int, rows []KmerTax) error {
	if err := writeHeader(w, magicDbs, k); err != nil {
		return err
	}
	if err := writeCount(w, uint64(len(rows))); err != nil {
		return err
	}
	recs := make([]dbsRecord, len(rows))
	for i, r := range rows {
		recs[i] = dbsRecord{Hash: r.Hash, TaxID: r.TaxID}
	}
	for off := 0; off < len(recs); off += writeUint64sChunk {
		end := off + writeUint64sChunk
		if end > len(recs) {
			end = len(recs)
		}
		if err := binary.Write(w, be, recs[off:end]); err != nil {
			return errors.Wrap(err, "write .dbs payload")
		}
	}
	return nil
}

// ReadDbsHeader reads a .dbs file's header and declared record count without
// reading the payload.
func ReadDbsHeader(r io.Reader) (Header, uint64, error) {
	h, err := readHeader(r, magicDbs)
	if err != nil {
		return Header{}, 0, err
	}
	n, err := readCount(r)
	if err != nil {
		return Header{}, 0, err
	}
	return h, n, nil
}

// LoadDbs reads a .dbs file in full.
func LoadDbs(r io.Reader) (Header, []KmerTax, error) {
	h, err := readHeader(r, magicDbs)
	if err != nil {
		return Header{}, nil, err
	}
	n, err := readCount(r)
	if err != nil {
		return Header{}, nil, err
	}
	rows := make([]KmerTax, n)
	recs := make([]dbsRecord, writeUint64sChunk)
	for off := uint64(0); off < n; {
		chunk := uint64(writeUint64sChunk)
		if n-off < chunk {
			chunk = n - off
		}
		if err := binary.Read(r, be, recs[:chunk]); err != nil {
			return Header{}, nil, errors.Wrap(err, "read .dbs payload")
		}
		for i := uint64(0); i < chunk; i++ {
			rows[off+i] = KmerTax{Hash: recs[i].Hash, TaxID: recs[i].TaxID}
		}
		off += chunk
	}
	return h, rows, nil
}

// SortDbsRows sorts rows ascending by hash, in place.
func SortDbsRows(rows []KmerTax) {
	sort.Sort(KmerTaxSlice(rows))
}
