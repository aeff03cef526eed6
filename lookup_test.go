package classtax

import "testing"

func TestLookupKeyBits(t *testing.T) {
	cases := []struct {
		n    int
		want uint
	}{
		{0, 0},
		{5, 0},
		{6, 1},
		{10, 1},
		{11, 1},
		{12, 2},
		{1000, 8},
	}
	for _, c := range cases {
		got := lookupKeyBits(c.n)
		if got != c.want {
			t.Fatalf("lookupKeyBits(%d) = %d, want %d", c.n, got, c.want)
		}
		if (c.n >> got) > 5 {
			t.Fatalf("lookupKeyBits(%d) = %d but n>>b = %d > 5", c.n, got, c.n>>got)
		}
		if got > 0 && (c.n>>(got-1)) <= 5 {
			t.Fatalf("lookupKeyBits(%d) = %d is not minimal: n>>(b-1) = %d <= 5", c.n, got, c.n>>(got-1))
		}
	}
}

func TestBuildBucketIndexCoversWholeRange(t *testing.T) {
	hashes := []uint64{1, 2, 3, 1 << 60, 1<<60 + 1, 1 << 63}
	bits := lookupKeyBits(len(hashes))
	idx := buildBucketIndex(hashes, bits)
	if idx.offsets[0] != 0 {
		t.Fatalf("first offset = %d, want 0", idx.offsets[0])
	}
	if idx.offsets[len(idx.offsets)-1] != len(hashes) {
		t.Fatalf("last offset = %d, want %d", idx.offsets[len(idx.offsets)-1], len(hashes))
	}
	for i := 1; i < len(idx.offsets); i++ {
		if idx.offsets[i] < idx.offsets[i-1] {
			t.Fatalf("offsets not monotonic: %v", idx.offsets)
		}
	}
}

func TestFlatLookupHitAndMiss(t *testing.T) {
	hashes := make([]uint64, 0, 1000)
	for i := uint64(0); i < 1000; i++ {
		hashes = append(hashes, i*3)
	}
	l := NewFlatLookup(21, hashes)
	if l.K() != 21 {
		t.Fatalf("K() = %d, want 21", l.K())
	}
	dst, ok := l.Lookup(300, nil)
	if !ok || len(dst) != 1 || dst[0] != FlatTaxID {
		t.Fatalf("Lookup(300) = %v, %v; want [FlatTaxID], true", dst, ok)
	}
	if _, ok := l.Lookup(301, nil); ok {
		t.Fatal("Lookup(301) should miss (not a multiple of 3)")
	}
}

func TestTaxLookupHitAndMiss(t *testing.T) {
	rows := []KmerTax{{Hash: 1, TaxID: 10}, {Hash: 5, TaxID: 20}, {Hash: 9, TaxID: 30}}
	l := NewTaxLookup(21, rows)
	dst, ok := l.Lookup(5, nil)
	if !ok || len(dst) != 1 || dst[0] != 20 {
		t.Fatalf("Lookup(5) = %v, %v; want [20], true", dst, ok)
	}
	if _, ok := l.Lookup(6, nil); ok {
		t.Fatal("Lookup(6) should miss")
	}
}

func TestMultiTaxLookupReturnsAllTaxa(t *testing.T) {
	rows := []KmerTaxMulti{
		{Hash: 5, TaxIDs: []int32{1, 2, 3}},
		{Hash: 9, TaxIDs: []int32{7}},
	}
	l := NewMultiTaxLookup(21, rows)
	dst, ok := l.Lookup(5, nil)
	if !ok || len(dst) != 3 {
		t.Fatalf("Lookup(5) = %v, %v; want 3 taxa", dst, ok)
	}
}

func TestSortedTaxLookupAggregatesAcrossRuns(t *testing.T) {
	runs := []TaxonRun{
		{TaxID: 1, Hashes: []uint64{5, 9}},
		{TaxID: 2, Hashes: []uint64{5, 20}},
	}
	l := BuildSortedTaxLookup(21, runs)
	dst, ok := l.Lookup(5, nil)
	if !ok || len(dst) != 2 {
		t.Fatalf("Lookup(5) = %v, %v; want 2 taxa (1 and 2)", dst, ok)
	}
	seen := map[int32]bool{dst[0]: true, dst[1]: true}
	if !seen[1] || !seen[2] {
		t.Fatalf("Lookup(5) = %v, want taxa {1,2}", dst)
	}
	if _, ok := l.Lookup(9, nil); !ok {
		t.Fatal("Lookup(9) should hit tax 1 only")
	}
	if _, ok := l.Lookup(100, nil); ok {
		t.Fatal("Lookup(100) should miss")
	}
}
