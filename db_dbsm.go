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

// SaveDbsm writes a .dbsm file: variable-length records of
// {hash uint64, n int32, tax_ids int32[n]}, sorted ascending by hash, each
// row's tax_ids sorted ascending and unique (enforced by the caller).
func SaveDbsm(w io.Writer, k int, rows []KmerTaxMulti) error {
	if err := writeHeader(w, magicDbsm, k); err != nil {
		return err
	}
	if err := writeCount(w, uint64(len(rows))); err != nil {
		return err
	}
	for _, row := range rows {
		if err := binary.Write(w, be, row.Hash); err != nil {
			return errors.Wrap(err, "write .dbsm hash")
		}
		if err := binary.Write(w, be, int32(len(row.TaxIDs))); err != nil {
			return errors.Wrap(err, "write .dbsm tax count")
		}
		if err := binary.Write(w, be, row.TaxIDs); err != nil {
			return errors.Wrap(err, "write .dbsm tax_ids")
		}
	}
	return nil
}

// ReadDbsmHeader reads a .dbsm file's header and declared record count
// without reading the payload.
func ReadDbsmHeader(r io.Reader) (Header, uint64, error) {
	h, err := readHeader(r, magicDbsm)
	if err != nil {
		return Header{}, 0, err
	}
	n, err := readCount(r)
	if err != nil {
		return Header{}, 0, err
	}
	return h, n, nil
}

// LoadDbsm reads a .dbsm file in full.
func LoadDbsm(r io.Reader) (Header, []KmerTaxMulti, error) {
	h, err := readHeader(r, magicDbsm)
	if err != nil {
		return Header{}, nil, err
	}
	n, err := readCount(r)
	if err != nil {
		return Header{}, nil, err
	}
	rows := make([]KmerTaxMulti, n)
	for i := range rows {
		var hash uint64
		if err := binary.Read(r, be, &hash); err != nil {
			return Header{}, nil, errors.Wrap(err, "read .dbsm hash")
		}
		var cnt int32
		if err := binary.Read(r, be, &cnt); err != nil {
			return Header{}, nil, errors.Wrap(err, "read .dbsm tax count")
		}
		taxIDs := make([]int32, cnt)
		if cnt > 0 {
			if err := binary.Read(r, be, taxIDs); err != nil {
				return Header{}, nil, errors.Wrap(err, "read .dbsm tax_ids")
			}
		}
		rows[i] = KmerTaxMulti{Hash: hash, TaxIDs: taxIDs}
	}
	return h, rows, nil
}

// SortDbsmRows sorts rows ascending by hash, in place. Each row's own
// tax_ids must already be sorted-unique by the caller (e.g. a DB builder).
func SortDbsmRows(rows []KmerTaxMulti) {
	sort.Sort(KmerTaxMultiSlice(rows))
}
