package classtax

import (
	"bytes"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleRuns() []TaxonRun {
	return []TaxonRun{
		{TaxID: 1, Hashes: []uint64{1, 2, 3}},
		{TaxID: 5, Hashes: []uint64{4, 9}},
		{TaxID: 9, Hashes: []uint64{100}},
	}
}

func TestDbssSaveAndLoadRun(t *testing.T) {
	runs := sampleRuns()
	var buf bytes.Buffer
	annotation, err := SaveDbss(&buf, 21, runs)
	if err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	h, n, err := ReadDbssHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	var total int
	for _, r := range runs {
		total += len(r.Hashes)
	}
	if h.K != 21 || n != uint64(total) {
		t.Fatalf("got k=%d n=%d, want k=21 n=%d", h.K, n, total)
	}

	ra := bytes.NewReader(data)
	for i, run := range runs {
		got, err := LoadDbssRun(ra, PayloadHeaderSize, annotation[i])
		if err != nil {
			t.Fatalf("tax %d: %v", run.TaxID, err)
		}
		if !reflect.DeepEqual(got, run.Hashes) {
			t.Fatalf("tax %d: got %v, want %v", run.TaxID, got, run.Hashes)
		}
	}
}

func TestDbssPayloadHeaderSizeMatchesActualPreamble(t *testing.T) {
	var buf bytes.Buffer
	if _, err := SaveDbss(&buf, 21, []TaxonRun{{TaxID: 1, Hashes: []uint64{42}}}); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	// The first hash word (42) must sit exactly PayloadHeaderSize bytes in.
	got := be.Uint64(data[PayloadHeaderSize:])
	if got != 42 {
		t.Fatalf("byte at offset PayloadHeaderSize=%d decodes to %d, want 42 (header/count preamble size is wrong)", PayloadHeaderSize, got)
	}
}

func TestDbssAnnotationRoundTrip(t *testing.T) {
	runs := sampleRuns()
	var buf bytes.Buffer
	annotation, err := SaveDbss(&buf, 21, runs)
	if err != nil {
		t.Fatal(err)
	}

	var ann bytes.Buffer
	if err := WriteAnnotation(&ann, annotation); err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseAnnotation(&ann)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != len(annotation) {
		t.Fatalf("got %d rows, want %d", len(parsed), len(annotation))
	}
	for i := range annotation {
		if parsed[i].TaxID != annotation[i].TaxID || parsed[i].Count != annotation[i].Count || parsed[i].Offset != annotation[i].Offset {
			t.Fatalf("row %d: got %+v, want %+v", i, parsed[i], annotation[i])
		}
	}

	var total uint64
	for _, r := range runs {
		total += uint64(len(r.Hashes))
	}
	if err := CheckAnnotation(parsed, total); err != nil {
		t.Fatalf("CheckAnnotation: %v", err)
	}
	if err := CheckAnnotation(parsed, total+1); err != ErrAnnotationMismatch {
		t.Fatalf("mismatched count: got %v, want ErrAnnotationMismatch", err)
	}
}

func TestParseAnnotationRejectsUnsortedOrDuplicateTaxID(t *testing.T) {
	if _, err := ParseAnnotation(bytes.NewBufferString("5\t1\n1\t1\n")); err != ErrUnsortedTaxID {
		t.Fatalf("descending tax_ids: got %v, want ErrUnsortedTaxID", err)
	}
	if _, err := ParseAnnotation(bytes.NewBufferString("1\t1\n1\t1\n")); err != ErrDuplicateTaxID {
		t.Fatalf("duplicate tax_id: got %v, want ErrDuplicateTaxID", err)
	}
}

func TestDbssCompressedRoundTrip(t *testing.T) {
	runs := sampleRuns()
	var buf bytes.Buffer
	annotation, err := SaveDbssCompressed(&buf, 21, runs)
	if err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	ra := bytes.NewReader(data)
	for i, run := range runs {
		got, err := LoadDbssRunCompressed(ra, PayloadHeaderSize, annotation[i])
		if err != nil {
			t.Fatalf("tax %d: %v", run.TaxID, err)
		}
		if !reflect.DeepEqual(got, run.Hashes) {
			t.Fatalf("tax %d: got %v, want %v", run.TaxID, got, run.Hashes)
		}
	}
}

func TestDbssCompressedAnnotationRoundTrip(t *testing.T) {
	runs := sampleRuns()
	var buf bytes.Buffer
	annotation, err := SaveDbssCompressed(&buf, 21, runs)
	if err != nil {
		t.Fatal(err)
	}
	total := uint64(buf.Len() - PayloadHeaderSize)
	var ann bytes.Buffer
	if err := WriteAnnotationCompressed(&ann, annotation, total); err != nil {
		t.Fatal(err)
	}
	parsed, parsedTotal, err := ParseAnnotationCompressed(&ann)
	if err != nil {
		t.Fatal(err)
	}
	if parsedTotal != total {
		t.Fatalf("got total=%d, want %d", parsedTotal, total)
	}
	if len(parsed) != len(annotation) {
		t.Fatalf("got %d rows, want %d", len(parsed), len(annotation))
	}
	for i := range annotation {
		if parsed[i] != annotation[i] {
			t.Fatalf("row %d: got %+v, want %+v", i, parsed[i], annotation[i])
		}
	}
}

func TestDbssSplitDirectoryRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "taxdb.split")
	runs := sampleRuns()
	if err := SaveDbssSplit(dir, 21, runs); err != nil {
		t.Fatal(err)
	}
	k, err := LoadDbssSplitHeader(dir)
	if err != nil {
		t.Fatal(err)
	}
	if k != 21 {
		t.Fatalf("got k=%d, want 21", k)
	}
	for _, run := range runs {
		got, err := LoadDbssSplitRun(dir, run.TaxID)
		if err != nil {
			t.Fatalf("tax %d: %v", run.TaxID, err)
		}
		if !reflect.DeepEqual(got, run.Hashes) {
			t.Fatalf("tax %d: got %v, want %v", run.TaxID, got, run.Hashes)
		}
	}
}

func TestSplitDirExists(t *testing.T) {
	base := filepath.Join(t.TempDir(), "taxdb")
	if SplitDirExists(base) {
		t.Fatal("split dir should not exist yet")
	}
	if err := SaveDbssSplit(base+".split", 21, sampleRuns()); err != nil {
		t.Fatal(err)
	}
	if !SplitDirExists(base) {
		t.Fatal("split dir should exist after SaveDbssSplit")
	}
}
