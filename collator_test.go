package classtax

import (
	"reflect"
	"sort"
	"testing"
)

func TestTaxCollatorAddRowAndRoundTrip(t *testing.T) {
	tc := NewTaxCollator()
	tc.AddRow("spotA", map[int32]uint32{10: 1, 5: 3})
	tc.AddRow("spotB", map[int32]uint32{7: 0})
	tc.Finalize()

	if tc.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", tc.NumRows())
	}

	taxIDs, counts := tc.Row(0)
	if !reflect.DeepEqual(taxIDs, []int32{5, 10}) {
		t.Fatalf("row 0 tax_ids = %v, want ascending [5 10]", taxIDs)
	}
	wantCounts := map[int32]uint32{5: 3, 10: 1}
	for i, tax := range taxIDs {
		if counts[i] != wantCounts[tax] {
			t.Fatalf("row 0 tax %d count = %d, want %d", tax, counts[i], wantCounts[tax])
		}
	}

	taxIDs, counts = tc.Row(1)
	if !reflect.DeepEqual(taxIDs, []int32{7}) || counts[0] != 1 {
		t.Fatalf("row 1 = %v/%v, want [7]/[1] (count 0 means matched once)", taxIDs, counts)
	}
}

func TestTaxCollatorCardinality(t *testing.T) {
	tc := NewTaxCollator()
	tc.AddRow("a", map[int32]uint32{1: 1, 2: 1, 3: 1})
	tc.AddRow("b", map[int32]uint32{1: 1})
	tc.Finalize()
	if tc.Cardinality(0) != 3 {
		t.Fatalf("Cardinality(0) = %d, want 3", tc.Cardinality(0))
	}
	if tc.Cardinality(1) != 1 {
		t.Fatalf("Cardinality(1) = %d, want 1", tc.Cardinality(1))
	}
}

func TestTaxCollatorSortOrdersBySpotName(t *testing.T) {
	tc := NewTaxCollator()
	tc.AddRow("zebra", map[int32]uint32{1: 1})
	tc.AddRow("apple", map[int32]uint32{2: 1})
	tc.AddRow("mango", map[int32]uint32{3: 1})
	tc.Finalize()

	idx := tc.Sort()
	var names []string
	for _, i := range idx {
		names = append(names, tc.SpotName(i))
	}
	want := []string{"apple", "mango", "zebra"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("sorted names = %v, want %v", names, want)
	}
}

func TestTaxCollatorMergeCombinesDuplicateSpots(t *testing.T) {
	tc := NewTaxCollator()
	tc.AddRow("r1", map[int32]uint32{1: 2})
	tc.AddRow("r1", map[int32]uint32{1: 1, 2: 5})
	tc.AddRow("r2", map[int32]uint32{3: 1})
	tc.Finalize()

	idx := tc.Sort()
	merged := tc.Merge(idx)
	if merged.NumRows() != 2 {
		t.Fatalf("merged NumRows() = %d, want 2", merged.NumRows())
	}
	for i := 0; i < merged.NumRows(); i++ {
		name := merged.SpotName(i)
		taxIDs, counts := merged.Row(i)
		switch name {
		case "r1":
			want := map[int32]uint32{1: 3, 2: 5}
			for j, tax := range taxIDs {
				if counts[j] != want[tax] {
					t.Fatalf("r1 tax %d count = %d, want %d", tax, counts[j], want[tax])
				}
			}
		case "r2":
			if !reflect.DeepEqual(taxIDs, []int32{3}) {
				t.Fatalf("r2 tax_ids = %v, want [3]", taxIDs)
			}
		default:
			t.Fatalf("unexpected spot name %q", name)
		}
	}
}

func TestTaxCollatorGroupCompactHistogram(t *testing.T) {
	tc := NewTaxCollator()
	tc.AddRow("r1", map[int32]uint32{1: 1, 2: 1})
	tc.AddRow("r2", map[int32]uint32{1: 1, 2: 1})
	tc.AddRow("r3", map[int32]uint32{9: 1})
	tc.Finalize()

	groups := tc.Group(true)
	sort.Slice(groups, func(i, j int) bool { return len(groups[i].TaxIDs) < len(groups[j].TaxIDs) })

	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if !reflect.DeepEqual(groups[0].TaxIDs, []int32{9}) || groups[0].Count != 1 {
		t.Fatalf("group 0 = %+v, want {Count:1 TaxIDs:[9]}", groups[0])
	}
	if !reflect.DeepEqual(groups[1].TaxIDs, []int32{1, 2}) || groups[1].Count != 2 {
		t.Fatalf("group 1 = %+v, want {Count:2 TaxIDs:[1 2]}", groups[1])
	}
}

func TestParseCollatorLine(t *testing.T) {
	spotID, taxCounts, err := parseCollatorLine("spotA\t10\t5x3")
	if err != nil {
		t.Fatal(err)
	}
	if spotID != "spotA" {
		t.Fatalf("spotID = %q, want spotA", spotID)
	}
	want := map[int32]uint32{10: 1, 5: 3}
	if !reflect.DeepEqual(taxCounts, want) {
		t.Fatalf("taxCounts = %v, want %v", taxCounts, want)
	}
}

func TestParseCollatorLineMalformed(t *testing.T) {
	if _, _, err := parseCollatorLine("spotA\tnotanumber"); err == nil {
		t.Fatal("expected an error for a non-numeric tax_id")
	}
}

func TestStringVectorInterns(t *testing.T) {
	sv := newStringVector()
	a := sv.Intern("foo")
	b := sv.Intern("bar")
	c := sv.Intern("foo")
	if a != c {
		t.Fatalf("Intern(\"foo\") twice gave different ids: %d vs %d", a, c)
	}
	if a == b {
		t.Fatal("distinct strings got the same id")
	}
	if sv.Get(a) != "foo" || sv.Get(b) != "bar" {
		t.Fatalf("Get mismatch: %q, %q", sv.Get(a), sv.Get(b))
	}
}
