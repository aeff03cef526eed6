package classtax

import "testing"

func TestMatcherCountsExactMultiplicity(t *testing.T) {
	// "AAAA" appears four times in "AAAAAAA" as a 4-mer window (positions
	// 0,1,2,3), each canonicalizing to the same hash (AAAA is its own
	// canonical form's complement TTTT, whichever is smaller — either way
	// every window yields the identical hash since all windows are AAAA).
	code, _ := Encode([]byte("AAAA"))
	hash := Canonical(code, 4)
	lookup := NewFlatLookup(4, []uint64{hash})
	m := NewMatcher(lookup)

	hits, err := m.Match(Read{SpotID: "r1", Bases: []byte("AAAAAAA")})
	if err != nil {
		t.Fatal(err)
	}
	defer PutHits(hits)
	if hits[FlatTaxID] != 4 {
		t.Fatalf("hits[FlatTaxID] = %d, want 4 (7-4+1 windows)", hits[FlatTaxID])
	}
}

func TestMatcherNoHits(t *testing.T) {
	lookup := NewFlatLookup(4, []uint64{12345})
	m := NewMatcher(lookup)
	hits, err := m.Match(Read{SpotID: "r1", Bases: []byte("CCCCCCC")})
	if err != nil {
		t.Fatal(err)
	}
	defer PutHits(hits)
	if len(hits) != 0 {
		t.Fatalf("got %v, want no hits", hits)
	}
}

func TestMatcherMaxLookupsPerFragment(t *testing.T) {
	code, _ := Encode([]byte("AAAA"))
	hash := Canonical(code, 4)
	lookup := NewFlatLookup(4, []uint64{hash})
	m := NewMatcher(lookup)
	m.MaxLookupsPerFragment = 2

	hits, err := m.Match(Read{SpotID: "r1", Bases: []byte("AAAAAAA")})
	if err != nil {
		t.Fatal(err)
	}
	defer PutHits(hits)
	if hits[FlatTaxID] != 2 {
		t.Fatalf("hits[FlatTaxID] = %d, want 2 (capped)", hits[FlatTaxID])
	}
}

func TestMatcherMatchAnyShortCircuits(t *testing.T) {
	code, _ := Encode([]byte("ACGT"))
	hash := Canonical(code, 4)
	lookup := NewFlatLookup(4, []uint64{hash})
	m := NewMatcher(lookup)

	ok, err := m.MatchAny(Read{SpotID: "r1", Bases: []byte("TTTTACGTTTTT")})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("MatchAny should find the embedded ACGT hit")
	}

	ok, err = m.MatchAny(Read{SpotID: "r2", Bases: []byte("TTTTTTTTTTTT")})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("MatchAny should report no hit")
	}
}

func TestMatcherMultiTaxAggregatesAllTaxa(t *testing.T) {
	code, _ := Encode([]byte("ACGT"))
	hash := Canonical(code, 4)
	lookup := NewMultiTaxLookup(4, []KmerTaxMulti{{Hash: hash, TaxIDs: []int32{1, 2}}})
	m := NewMatcher(lookup)
	hits, err := m.Match(Read{SpotID: "r1", Bases: []byte("ACGT")})
	if err != nil {
		t.Fatal(err)
	}
	defer PutHits(hits)
	if hits[1] != 1 || hits[2] != 1 {
		t.Fatalf("got %v, want {1:1, 2:1}", hits)
	}
}

func TestGetHitsReturnsClearedMap(t *testing.T) {
	h := GetHits()
	h[42] = 7
	PutHits(h)
	h2 := GetHits()
	if len(h2) != 0 {
		t.Fatalf("GetHits() after Put: got %v, want empty", h2)
	}
	PutHits(h2)
}
