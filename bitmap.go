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

// This file implements a word-sliced bitmap with cached per-word popcounts,
// giving O(1) popcount and rank queries linear in the number of preceding
// words, without a full-blown rank/select index.
// It is the bookkeeping backbone for both the compressed .dbss bit-plane
// encoding (db_dbss.go) and the TaxCollator's per-column NULL masks
// (collator.go) — there is no direct analog of a rank-select sparse vector
// library in the retrieved Go corpus, so both consumers share this one
// hand-rolled structure instead of reimplementing it twice.

package classtax

import "math/bits"

const bitmapWordBits = 64

// bitmap is a fixed-length vector of bits with an O(1) total popcount and a
// rank that sums the cached per-word popcounts, modeled on the wordPops bookkeeping in grailbio's circular.Bitmap.
type bitmap struct {
	words    []uint64
	wordPops []uint16 // popcount of each word, kept in sync on every Set
	n        int       // number of addressable bits
	pop      int       // total set bits
}

// newBitmap allocates a bitmap able to address n bits, all initially clear.
func newBitmap(n int) *bitmap {
	nw := (n + bitmapWordBits - 1) / bitmapWordBits
	return &bitmap{
		words:    make([]uint64, nw),
		wordPops: make([]uint16, nw),
		n:        n,
	}
}

func (b *bitmap) Len() int { return b.n }

// Set sets bit i. Setting an already-set bit is a no-op.
func (b *bitmap) Set(i int) {
	wi, bi := i/bitmapWordBits, uint(i%bitmapWordBits)
	mask := uint64(1) << bi
	if b.words[wi]&mask != 0 {
		return
	}
	b.words[wi] |= mask
	b.wordPops[wi]++
	b.pop++
}

// Get reports whether bit i is set.
func (b *bitmap) Get(i int) bool {
	wi, bi := i/bitmapWordBits, uint(i%bitmapWordBits)
	return b.words[wi]&(uint64(1)<<bi) != 0
}

// PopCount returns the total number of set bits.
func (b *bitmap) PopCount() int { return b.pop }

// Rank returns the number of set bits in [0, i).
func (b *bitmap) Rank(i int) int {
	wi, bi := i/bitmapWordBits, uint(i%bitmapWordBits)
	rank := 0
	for w := 0; w < wi; w++ {
		rank += int(b.wordPops[w])
	}
	if bi > 0 {
		rank += bits.OnesCount64(b.words[wi] & (uint64(1)<<bi - 1))
	}
	return rank
}

// bitPlanes bit-slices a []uint64 column into bitWidth independent bitmaps,
// one per bit position, so each plane can be compressed/transmitted on its
// own. This realizes the "bit-sliced by bit-plane" compressed .dbss run
// format from the on-wire spec (db_dbss.go writes/reads these planes
// directly rather than raw u64 words).
func bitPlanes(values []uint64, bitWidth int) []*bitmap {
	planes := make([]*bitmap, bitWidth)
	for p := 0; p < bitWidth; p++ {
		planes[p] = newBitmap(len(values))
	}
	for i, v := range values {
		for p := 0; p < bitWidth; p++ {
			if v&(uint64(1)<<uint(p)) != 0 {
				planes[p].Set(i)
			}
		}
	}
	return planes
}

// valuesFromBitPlanes reconstructs the []uint64 column encoded by bitPlanes.
func valuesFromBitPlanes(planes []*bitmap, n int) []uint64 {
	values := make([]uint64, n)
	for p, plane := range planes {
		for i := 0; i < n; i++ {
			if plane.Get(i) {
				values[i] |= uint64(1) << uint(p)
			}
		}
	}
	return values
}
