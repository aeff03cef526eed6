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

// This file implements §4.3's bucketed, prefix-indexed lookup over a sorted
// hash array: partition the sorted array by its top lookup_key_bits bits
// into buckets, then binary-search within a bucket instead of across the
// whole array. It replaces the teacher's single monolithic index type with
// a small Lookup interface and one concrete implementation per DB format,
// per §9's "dynamic dispatch collapses to a sum type" redesign note.

package classtax

import "sort"

// lookupKeyBits returns the smallest b such that n>>b <= targetBucket,
// matching §4.3's "smallest b such that N >> b ≤ 5" bucket-count formula.
func lookupKeyBits(n int) uint {
	const targetBucket = 5
	if n <= targetBucket {
		return 0
	}
	var b uint
	for (n >> b) > targetBucket {
		b++
	}
	return b
}

// bucketIndex builds, for a sorted []uint64, the start offset of each of the
// 2^bits top-bit buckets (bucket i spans [offsets[i], offsets[i+1])).
type bucketIndex struct {
	bits    uint
	offsets []int // length 2^bits + 1
}

func buildBucketIndex(hashes []uint64, bits uint) bucketIndex {
	nb := 1 << bits
	offsets := make([]int, nb+1)
	shift := uint(64) - bits
	bi := 0
	for i, h := range hashes {
		key := int(h >> shift)
		for bi <= key {
			offsets[bi] = i
			bi++
		}
	}
	for bi <= nb {
		offsets[bi] = len(hashes)
		bi++
	}
	return bucketIndex{bits: bits, offsets: offsets}
}

func (idx bucketIndex) bucketFor(h uint64) (lo, hi int) {
	if idx.bits == 0 {
		return 0, len(idx.offsets) - 1 // degenerate: 1 bucket covering everything, set by caller
	}
	key := int(h >> (64 - idx.bits))
	return idx.offsets[key], idx.offsets[key+1]
}

// searchSorted finds h within hashes[lo:hi] (hashes overall sorted ascending)
// via binary search restricted to that bucket, per §4.3.
func searchSorted(hashes []uint64, lo, hi int, h uint64) (int, bool) {
	i := lo + sort.Search(hi-lo, func(i int) bool { return hashes[lo+i] >= h })
	if i < hi && hashes[i] == h {
		return i, true
	}
	return 0, false
}

// Lookup is the common interface the matcher drives against every DB
// format: given a canonical k-mer hash, report the taxa (if any) it hits.
// FlatLookup reports membership only (no taxon), so it returns a single
// sentinel tax_id handled specially by the caller.
type Lookup interface {
	// K returns the k this lookup structure was built for.
	K() int
	// Lookup reports the set of tax_ids a hash maps to, appending into dst
	// and returning the (possibly reallocated) slice. An empty, unmodified
	// dst with ok=false means no hit.
	Lookup(hash uint64, dst []int32) ([]int32, bool)
}

// FlatTaxID is the sentinel taxon used by FlatLookup hits, since a .db file
// carries no taxonomic annotation (§4.2a).
const FlatTaxID int32 = -1

// FlatLookup wraps a sorted .db hash array: membership-only lookup.
type FlatLookup struct {
	k      int
	hashes []uint64
	idx    bucketIndex
}

// NewFlatLookup builds a bucketed index over an already-sorted hash array.
func NewFlatLookup(k int, sortedHashes []uint64) *FlatLookup {
	bits := lookupKeyBits(len(sortedHashes))
	return &FlatLookup{k: k, hashes: sortedHashes, idx: buildBucketIndex(sortedHashes, bits)}
}

func (l *FlatLookup) K() int { return l.k }

func (l *FlatLookup) Lookup(hash uint64, dst []int32) ([]int32, bool) {
	lo, hi := l.bucketRange(hash)
	if _, ok := searchSorted(l.hashes, lo, hi, hash); ok {
		return append(dst, FlatTaxID), true
	}
	return dst, false
}

func (l *FlatLookup) bucketRange(hash uint64) (int, int) {
	if l.idx.bits == 0 {
		return 0, len(l.hashes)
	}
	return l.idx.bucketFor(hash)
}

// TaxLookup wraps a sorted .dbs array: one taxon per hash.
type TaxLookup struct {
	k    int
	rows []KmerTax
	idx  bucketIndex
}

// NewTaxLookup builds a bucketed index over an already hash-sorted .dbs row
// set.
func NewTaxLookup(k int, sortedRows []KmerTax) *TaxLookup {
	bits := lookupKeyBits(len(sortedRows))
	hashes := make([]uint64, len(sortedRows))
	for i, r := range sortedRows {
		hashes[i] = r.Hash
	}
	return &TaxLookup{k: k, rows: sortedRows, idx: buildBucketIndex(hashes, bits)}
}

func (l *TaxLookup) K() int { return l.k }

func (l *TaxLookup) Lookup(hash uint64, dst []int32) ([]int32, bool) {
	lo, hi := l.bucketRange(hash)
	i, ok := l.searchRows(lo, hi, hash)
	if !ok {
		return dst, false
	}
	return append(dst, l.rows[i].TaxID), true
}

func (l *TaxLookup) bucketRange(hash uint64) (int, int) {
	if l.idx.bits == 0 {
		return 0, len(l.rows)
	}
	return l.idx.bucketFor(hash)
}

func (l *TaxLookup) searchRows(lo, hi int, h uint64) (int, bool) {
	i := lo + sort.Search(hi-lo, func(i int) bool { return l.rows[lo+i].Hash >= h })
	if i < hi && l.rows[i].Hash == h {
		return i, true
	}
	return 0, false
}

// MultiTaxLookup wraps a sorted .dbsm array: a hash may map to many taxa.
type MultiTaxLookup struct {
	k    int
	rows []KmerTaxMulti
	idx  bucketIndex
}

// NewMultiTaxLookup builds a bucketed index over an already hash-sorted
// .dbsm row set.
func NewMultiTaxLookup(k int, sortedRows []KmerTaxMulti) *MultiTaxLookup {
	bits := lookupKeyBits(len(sortedRows))
	hashes := make([]uint64, len(sortedRows))
	for i, r := range sortedRows {
		hashes[i] = r.Hash
	}
	return &MultiTaxLookup{k: k, rows: sortedRows, idx: buildBucketIndex(hashes, bits)}
}

func (l *MultiTaxLookup) K() int { return l.k }

func (l *MultiTaxLookup) Lookup(hash uint64, dst []int32) ([]int32, bool) {
	lo, hi := l.bucketRange(hash)
	i := lo + sort.Search(hi-lo, func(i int) bool { return l.rows[lo+i].Hash >= hash })
	if i >= hi || l.rows[i].Hash != hash {
		return dst, false
	}
	return append(dst, l.rows[i].TaxIDs...), true
}

func (l *MultiTaxLookup) bucketRange(hash uint64) (int, int) {
	if l.idx.bits == 0 {
		return 0, len(l.rows)
	}
	return l.idx.bucketFor(hash)
}

// SortedTaxLookup is the per-taxon aggregated loader for a .dbss database:
// it concatenates the hash runs for an explicit tax_list, sorts the union,
// and builds a bucketed index over it, recording for each hash the set of
// requested taxa it belongs to (§4.3's second lookup structure). Unlike
// TaxLookup/MultiTaxLookup it is built from a subset of taxa, chosen at load
// time rather than baked into the file.
type SortedTaxLookup struct {
	k    int
	rows []KmerTax
	idx  bucketIndex
}

// BuildSortedTaxLookup aggregates the requested taxa's already-loaded runs
// (as read by LoadDbssRun/LoadDbssSplitRun) into one sorted, bucketed lookup. Hashes
// shared by more than one requested taxon appear as multiple rows; Lookup
// returns all matching tax_ids for a hash like MultiTaxLookup does.
func BuildSortedTaxLookup(k int, runs []TaxonRun) *SortedTaxLookup {
	var rows []KmerTax
	for _, run := range runs {
		for _, h := range run.Hashes {
			rows = append(rows, KmerTax{Hash: h, TaxID: run.TaxID})
		}
	}
	SortDbsRows(rows)
	hashes := make([]uint64, len(rows))
	for i, r := range rows {
		hashes[i] = r.Hash
	}
	bits := lookupKeyBits(len(rows))
	return &SortedTaxLookup{k: k, rows: rows, idx: buildBucketIndex(hashes, bits)}
}

func (l *SortedTaxLookup) K() int { return l.k }

func (l *SortedTaxLookup) Lookup(hash uint64, dst []int32) ([]int32, bool) {
	lo, hi := l.bucketRange(hash)
	i := lo + sort.Search(hi-lo, func(i int) bool { return l.rows[lo+i].Hash >= hash })
	if i >= hi || l.rows[i].Hash != hash {
		return dst, false
	}
	start := i
	for start > lo && l.rows[start-1].Hash == hash {
		start--
	}
	found := false
	for j := start; j < hi && l.rows[j].Hash == hash; j++ {
		dst = append(dst, l.rows[j].TaxID)
		found = true
	}
	return dst, found
}

func (l *SortedTaxLookup) bucketRange(hash uint64) (int, int) {
	if l.idx.bits == 0 {
		return 0, len(l.rows)
	}
	return l.idx.bucketFor(hash)
}
