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
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/twotwotwo/sorts/sortutil"
)

// SaveDb writes a flat .db file: a sorted, deduplicated array of canonical
// hashes with no taxon annotation.
func SaveDb(w io.Writer, k int, hashes []uint64) error {
	if err := writeHeader(w, magicDb, k); err != nil {
		return err
	}
	if err := writeCount(w, uint64(len(hashes))); err != nil {
		return err
	}
	if err := writeUint64s(w, hashes); err != nil {
		return errors.Wrap(err, "write .db payload")
	}
	return nil
}

// LoadDb reads a flat .db file in full.
func LoadDb(r io.Reader) (Header, []uint64, error) {
	h, err := readHeader(r, magicDb)
	if err != nil {
		return Header{}, nil, err
	}
	n, err := readCount(r)
	if err != nil {
		return Header{}, nil, err
	}
	hashes := make([]uint64, n)
	if err := readUint64s(r, hashes); err != nil {
		return Header{}, nil, errors.Wrap(err, "read .db payload")
	}
	return h, hashes, nil
}

// ReadDbHeader reads a .db file's header and declared hash count without
// reading the payload.
func ReadDbHeader(r io.Reader) (Header, uint64, error) {
	h, err := readHeader(r, magicDb)
	if err != nil {
		return Header{}, 0, err
	}
	n, err := readCount(r)
	if err != nil {
		return Header{}, 0, err
	}
	return h, n, nil
}

// SortHashes sorts a slice of canonical hashes ascending, using the parallel
// radix/quicksort hybrid from sortutil for large inputs.
func SortHashes(hashes []uint64) {
	if len(hashes) > 1<<16 {
		sortutil.Uint64s(hashes)
		return
	}
	sort.Sort(HashSlice(hashes))
}
