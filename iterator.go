// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
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

// ErrInvalidK means k < 1 or k > 32.
var ErrInvalidK = ErrKOverflow

// KmerIterator walks every length-k window of a base string, resuming at the
// next valid window whenever it crosses a non-ACGT byte, and rolls the code
// forward instead of re-encoding the whole window each step.
//
// It never allocates: Next() returns the canonical hash directly.
type KmerIterator struct {
	bases []byte
	k     int
	mask  uint64

	pos      int // index of the next byte to consume
	have     int // number of consecutive valid bases accumulated so far
	code     uint64
	windowOK bool
}

// NewKmerIterator returns an iterator over bases for k-mers of length k.
// bases may be upper- or lowercase; non-ACGT bytes are treated as break
// points, not errors.
func NewKmerIterator(bases []byte, k int) (*KmerIterator, error) {
	if k < 1 || k > 32 {
		return nil, ErrInvalidK
	}
	return &KmerIterator{
		bases: bases,
		k:     k,
		mask:  uint64(1)<<uint(2*k) - 1,
	}, nil
}

// Next returns the canonical hash of the next valid length-k window, or
// ok=false once the input is exhausted.
func (it *KmerIterator) Next() (hash uint64, ok bool) {
	for it.pos < len(it.bases) {
		b := base2bit[it.bases[it.pos]]
		it.pos++
		if b < 0 {
			it.have = 0
			it.code = 0
			continue
		}
		it.code = ((it.code << 2) | uint64(b)) & it.mask
		if it.have < it.k {
			it.have++
		}
		if it.have == it.k {
			return Canonical(it.code, it.k), true
		}
	}
	return 0, false
}

// ForEachKmer calls f with the canonical hash of every length-k window of
// bases, resuming after non-ACGT runs. It returns the number of hashes
// emitted.
func ForEachKmer(bases []byte, k int, f func(hash uint64)) (int, error) {
	it, err := NewKmerIterator(bases, k)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		h, ok := it.Next()
		if !ok {
			break
		}
		f(h)
		n++
	}
	return n, nil
}
