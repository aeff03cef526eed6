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

// KmerTax is one row of a .dbs file: a canonical hash and its single taxon.
type KmerTax struct {
	Hash  uint64
	TaxID int32
}

// KmerTaxMulti is one row of a .dbsm file: a canonical hash and its sorted,
// unique set of taxa.
type KmerTaxMulti struct {
	Hash   uint64
	TaxIDs []int32
}

// HashSlice is a slice of canonical hashes, for sorting .db payloads.
type HashSlice []uint64

func (s HashSlice) Len() int           { return len(s) }
func (s HashSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s HashSlice) Less(i, j int) bool { return s[i] < s[j] }

// KmerTaxSlice is a slice of KmerTax, sorting by hash only, for building and
// loading .dbs payloads.
type KmerTaxSlice []KmerTax

func (s KmerTaxSlice) Len() int           { return len(s) }
func (s KmerTaxSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s KmerTaxSlice) Less(i, j int) bool { return s[i].Hash < s[j].Hash }

// KmerTaxMultiSlice is a slice of KmerTaxMulti, sorting by hash only.
type KmerTaxMultiSlice []KmerTaxMulti

func (s KmerTaxMultiSlice) Len() int           { return len(s) }
func (s KmerTaxMultiSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s KmerTaxMultiSlice) Less(i, j int) bool { return s[i].Hash < s[j].Hash }
