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

// This file implements §4.4's per-read scan-and-match procedure. Hits is
// kept in a sync.Pool the way kmcp's search.go pools its per-goroutine
// poolMatches maps, since a Matcher is shared across the pipeline's worker
// goroutines and each one needs a scratch map it can clear and reuse rather
// than allocate per read.

package classtax

import "sync"

// Read is one sequencing read (or read fragment) to classify: a spot
// identifier for downstream reporting, and its bases.
type Read struct {
	SpotID string
	Bases  []byte
}

// Hits maps tax_id to the number of k-mers in a read that matched it. A
// FlatLookup's hits are recorded under FlatTaxID, since a .db database
// carries no taxonomic distinction.
type Hits map[int32]int

var hitsPool = sync.Pool{
	New: func() interface{} { return make(Hits, 8) },
}

// GetHits returns a cleared Hits map from the pool.
func GetHits() Hits {
	h := hitsPool.Get().(Hits)
	for k := range h {
		delete(h, k)
	}
	return h
}

// PutHits returns a Hits map to the pool.
func PutHits(h Hits) {
	hitsPool.Put(h)
}

// Matcher scans a read's canonical k-mers against a Lookup and aggregates
// per-taxon hit counts.
type Matcher struct {
	lookup Lookup
	k      int

	// MaxLookupsPerFragment caps the number of k-mer lookups performed per
	// read before returning early with whatever hits have accumulated so
	// far (§4.4's max_lookups_per_fragment early-termination knob). Zero
	// means unlimited.
	MaxLookupsPerFragment int
}

// NewMatcher builds a Matcher over the given lookup structure.
func NewMatcher(lookup Lookup) *Matcher {
	return &Matcher{lookup: lookup, k: lookup.K()}
}

// Match scans read's canonical k-mers against the matcher's lookup
// structure, returning a Hits map of tax_id to match count (exact
// multiplicity: a taxon hit by three separate k-mers counts three times,
// per §4.4 — no per-read deduplication). The caller owns the returned map
// and should PutHits it back to the pool once done.
func (m *Matcher) Match(read Read) (Hits, error) {
	hits := GetHits()
	lookups := 0
	var taxBuf [8]int32
	it, err := NewKmerIterator(read.Bases, m.k)
	if err != nil {
		return hits, err
	}
	for {
		hash, ok := it.Next()
		if !ok {
			break
		}
		if m.MaxLookupsPerFragment > 0 && lookups >= m.MaxLookupsPerFragment {
			break
		}
		lookups++
		taxIDs, hit := m.lookup.Lookup(hash, taxBuf[:0])
		if !hit {
			continue
		}
		for _, tax := range taxIDs {
			hits[tax]++
		}
	}
	return hits, nil
}

// MatchAny reports whether read has at least one k-mer hit, short-circuiting
// the remaining k-mers once found. Used for unaligned-only filtering (§5)
// where only membership, not per-taxon counts, matters.
func (m *Matcher) MatchAny(read Read) (bool, error) {
	it, err := NewKmerIterator(read.Bases, m.k)
	if err != nil {
		return false, err
	}
	var taxBuf [8]int32
	lookups := 0
	for {
		hash, ok := it.Next()
		if !ok {
			break
		}
		if m.MaxLookupsPerFragment > 0 && lookups >= m.MaxLookupsPerFragment {
			break
		}
		lookups++
		if _, hit := m.lookup.Lookup(hash, taxBuf[:0]); hit {
			return true, nil
		}
	}
	return false, nil
}
