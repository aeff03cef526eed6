package classtax

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeHeader(&buf, magicDb, 21); err != nil {
		t.Fatal(err)
	}
	h, err := readHeader(&buf, magicDb)
	if err != nil {
		t.Fatal(err)
	}
	if h.Version != DbVersion || h.K != 21 {
		t.Fatalf("got %+v, want version=%d k=21", h, DbVersion)
	}
}

func TestHeaderRejectsWrongMagic(t *testing.T) {
	var buf bytes.Buffer
	if err := writeHeader(&buf, magicDb, 21); err != nil {
		t.Fatal(err)
	}
	if _, err := readHeader(&buf, magicDbs); err != ErrInvalidFileFormat {
		t.Fatalf("got err %v, want ErrInvalidFileFormat", err)
	}
}

func TestHeaderRejectsInvalidK(t *testing.T) {
	var buf bytes.Buffer
	if err := writeHeader(&buf, magicDb, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := readHeader(&buf, magicDb); err != ErrInvalidKRange {
		t.Fatalf("k=0: got err %v, want ErrInvalidKRange", err)
	}
}

func TestCountRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeCount(&buf, 123456789); err != nil {
		t.Fatal(err)
	}
	n, err := readCount(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 123456789 {
		t.Fatalf("got %d, want 123456789", n)
	}
}

func TestUint64sRoundTripAcrossChunkBoundary(t *testing.T) {
	n := writeUint64sChunk + 17
	vals := make([]uint64, n)
	for i := range vals {
		vals[i] = uint64(i) * 7
	}
	var buf bytes.Buffer
	if err := writeUint64s(&buf, vals); err != nil {
		t.Fatal(err)
	}
	got := make([]uint64, n)
	if err := readUint64s(&buf, got); err != nil {
		t.Fatal(err)
	}
	for i := range vals {
		if got[i] != vals[i] {
			t.Fatalf("index %d: got %d, want %d", i, got[i], vals[i])
		}
	}
}
