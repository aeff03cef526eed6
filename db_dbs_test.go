package classtax

import (
	"bytes"
	"testing"
)

func TestDbsSaveLoadRoundTrip(t *testing.T) {
	rows := []KmerTax{
		{Hash: 1, TaxID: 9606},
		{Hash: 5, TaxID: 10090},
		{Hash: 9, TaxID: 9606},
	}
	var buf bytes.Buffer
	if err := SaveDbs(&buf, 31, rows); err != nil {
		t.Fatal(err)
	}
	h, got, err := LoadDbs(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.K != 31 {
		t.Fatalf("got k=%d, want 31", h.K)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i] != rows[i] {
			t.Fatalf("index %d: got %+v, want %+v", i, got[i], rows[i])
		}
	}
}

func TestReadDbsHeaderDoesNotConsumePayload(t *testing.T) {
	rows := []KmerTax{{Hash: 1, TaxID: 1}, {Hash: 2, TaxID: 2}}
	var buf bytes.Buffer
	if err := SaveDbs(&buf, 17, rows); err != nil {
		t.Fatal(err)
	}
	h, n, err := ReadDbsHeader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.K != 17 || n != uint64(len(rows)) {
		t.Fatalf("got k=%d n=%d, want k=17 n=%d", h.K, n, len(rows))
	}
	if buf.Len() != len(rows)*12 {
		t.Fatalf("%d bytes left after header, want %d (the whole payload)", buf.Len(), len(rows)*12)
	}
}

func TestSortDbsRows(t *testing.T) {
	rows := []KmerTax{
		{Hash: 9, TaxID: 1},
		{Hash: 1, TaxID: 2},
		{Hash: 5, TaxID: 3},
	}
	SortDbsRows(rows)
	for i := 1; i < len(rows); i++ {
		if rows[i-1].Hash > rows[i].Hash {
			t.Fatalf("not sorted: %v", rows)
		}
	}
}
