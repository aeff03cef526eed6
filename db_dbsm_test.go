package classtax

import (
	"bytes"
	"reflect"
	"testing"
)

func TestDbsmSaveLoadRoundTrip(t *testing.T) {
	rows := []KmerTaxMulti{
		{Hash: 1, TaxIDs: []int32{9606, 10090}},
		{Hash: 5, TaxIDs: []int32{1423}},
		{Hash: 9, TaxIDs: nil},
	}
	var buf bytes.Buffer
	if err := SaveDbsm(&buf, 25, rows); err != nil {
		t.Fatal(err)
	}
	h, got, err := LoadDbsm(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.K != 25 {
		t.Fatalf("got k=%d, want 25", h.K)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i].Hash != rows[i].Hash {
			t.Fatalf("index %d: hash got %d, want %d", i, got[i].Hash, rows[i].Hash)
		}
		if len(got[i].TaxIDs) != len(rows[i].TaxIDs) {
			t.Fatalf("index %d: got %v, want %v", i, got[i].TaxIDs, rows[i].TaxIDs)
		}
		if len(rows[i].TaxIDs) > 0 && !reflect.DeepEqual(got[i].TaxIDs, rows[i].TaxIDs) {
			t.Fatalf("index %d: got %v, want %v", i, got[i].TaxIDs, rows[i].TaxIDs)
		}
	}
}

func TestReadDbsmHeaderDoesNotConsumePayload(t *testing.T) {
	rows := []KmerTaxMulti{{Hash: 1, TaxIDs: []int32{1, 2}}}
	var buf bytes.Buffer
	if err := SaveDbsm(&buf, 19, rows); err != nil {
		t.Fatal(err)
	}
	h, n, err := ReadDbsmHeader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.K != 19 || n != 1 {
		t.Fatalf("got k=%d n=%d, want k=19 n=1", h.K, n)
	}
	// One row: 8-byte hash + 4-byte tax_id count + 2 * 4-byte tax_ids.
	if buf.Len() != 20 {
		t.Fatalf("%d bytes left after header, want 20 (the whole payload)", buf.Len())
	}
}

func TestSortDbsmRows(t *testing.T) {
	rows := []KmerTaxMulti{
		{Hash: 9, TaxIDs: []int32{1}},
		{Hash: 1, TaxIDs: []int32{2}},
	}
	SortDbsmRows(rows)
	if rows[0].Hash != 1 || rows[1].Hash != 9 {
		t.Fatalf("not sorted: %v", rows)
	}
}
