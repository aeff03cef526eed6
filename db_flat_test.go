package classtax

import (
	"bytes"
	"testing"
)

func TestDbSaveLoadRoundTrip(t *testing.T) {
	hashes := []uint64{1, 5, 9, 100, 1 << 40}
	var buf bytes.Buffer
	if err := SaveDb(&buf, 21, hashes); err != nil {
		t.Fatal(err)
	}
	h, got, err := LoadDb(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.K != 21 {
		t.Fatalf("got k=%d, want 21", h.K)
	}
	if len(got) != len(hashes) {
		t.Fatalf("got %d hashes, want %d", len(got), len(hashes))
	}
	for i := range hashes {
		if got[i] != hashes[i] {
			t.Fatalf("index %d: got %d, want %d", i, got[i], hashes[i])
		}
	}
}

func TestReadDbHeaderDoesNotConsumePayload(t *testing.T) {
	hashes := []uint64{1, 2, 3}
	var buf bytes.Buffer
	if err := SaveDb(&buf, 15, hashes); err != nil {
		t.Fatal(err)
	}
	h, n, err := ReadDbHeader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.K != 15 || n != uint64(len(hashes)) {
		t.Fatalf("got k=%d n=%d, want k=15 n=%d", h.K, n, len(hashes))
	}
	got := make([]uint64, n)
	if err := readUint64s(&buf, got); err != nil {
		t.Fatal(err)
	}
	for i := range hashes {
		if got[i] != hashes[i] {
			t.Fatalf("index %d: got %d, want %d", i, got[i], hashes[i])
		}
	}
}

func TestSortHashes(t *testing.T) {
	hashes := []uint64{5, 3, 9, 1, 4}
	SortHashes(hashes)
	for i := 1; i < len(hashes); i++ {
		if hashes[i-1] > hashes[i] {
			t.Fatalf("not sorted: %v", hashes)
		}
	}
}

func TestSortHashesLargeInput(t *testing.T) {
	n := 1 << 17
	hashes := make([]uint64, n)
	for i := range hashes {
		hashes[i] = uint64(n - i)
	}
	SortHashes(hashes)
	for i := 1; i < len(hashes); i++ {
		if hashes[i-1] > hashes[i] {
			t.Fatalf("not sorted at index %d", i)
		}
	}
}
