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

// This file implements §4.6's TaxCollator: a compact, column-oriented store
// for per-spot tax-id sets, built on bitmap.go's rank-select bitmap for its
// per-column NULL masks (a sparse u32 "RscMatrix" column is exactly a
// bitPlanes-style presence bitmap plus a densely-packed value slice indexed
// by rank) instead of one map entry per (row, column) cell.

package classtax

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/breader"
)

// ErrMalformedCollatorLine means a collator input line didn't match
// `spot_id \t tax1[xN1] \t tax2[xN2] …`.
var ErrMalformedCollatorLine = errors.New("classtax: malformed collator input line")

// stringVector is a remap-indexed, deduplicating string store: repeated
// spot names (common across a run's many reads) are interned once.
type stringVector struct {
	strs  []string
	index map[string]int32
}

func newStringVector() *stringVector {
	return &stringVector{index: make(map[string]int32, 1024)}
}

func (sv *stringVector) Intern(s string) int32 {
	if id, ok := sv.index[s]; ok {
		return id
	}
	id := int32(len(sv.strs))
	sv.strs = append(sv.strs, s)
	sv.index[s] = id
	return id
}

func (sv *stringVector) Get(id int32) string { return sv.strs[id] }

// sparseU32Column is one column of a U32RscMatrix: a presence bitmap plus a
// densely packed value slice indexed by the bitmap's rank. Values must be
// appended (via set) in strictly increasing row order, matching how
// TaxCollator.Finalize walks its buffered rows.
type sparseU32Column struct {
	presence *bitmap
	values   []uint32
}

func newSparseU32Column(n int) *sparseU32Column {
	return &sparseU32Column{presence: newBitmap(n)}
}

func (c *sparseU32Column) set(row int, v uint32) {
	c.presence.Set(row)
	c.values = append(c.values, v)
}

func (c *sparseU32Column) get(row int) (uint32, bool) {
	if !c.presence.Get(row) {
		return 0, false
	}
	return c.values[c.presence.Rank(row)], true
}

// taxRow is one buffered, pre-compression row: a spot name and its sorted
// ascending tax_ids with parallel counts (count omitted/1 by convention).
type taxRow struct {
	spotID string
	taxIDs []int32
	counts []uint32
}

// TaxCollator is the compact column store described in §4.6.
type TaxCollator struct {
	pending []taxRow

	names     *stringVector
	nameIDs   []int32
	taxCols   []*sparseU32Column
	countCols []*sparseU32Column
	width     int
	finalized bool
}

// NewTaxCollator returns an empty collator ready for AddRow calls.
func NewTaxCollator() *TaxCollator {
	return &TaxCollator{}
}

// AddRow appends one row: a spot id and its tax_id -> count map (count 0 or
// 1 both mean "matched once"; §4.6's add_row operation). Tax_ids are stored
// sorted ascending, per the "values in a row are strictly ascending"
// invariant.
func (tc *TaxCollator) AddRow(spotID string, taxCounts map[int32]uint32) {
	taxIDs := make([]int32, 0, len(taxCounts))
	for t := range taxCounts {
		taxIDs = append(taxIDs, t)
	}
	sort.Slice(taxIDs, func(i, j int) bool { return taxIDs[i] < taxIDs[j] })
	counts := make([]uint32, len(taxIDs))
	for i, t := range taxIDs {
		c := taxCounts[t]
		if c == 0 {
			c = 1
		}
		counts[i] = c
	}
	tc.pending = append(tc.pending, taxRow{spotID: spotID, taxIDs: taxIDs, counts: counts})
	if len(taxIDs) > tc.width {
		tc.width = len(taxIDs)
	}
}

// Finalize flushes the buffered rows into compressed, column-oriented
// storage: it interns spot names into the remap-indexed string vector and
// builds one sparseU32Column per cardinality level for both tax_ids and
// counts (§4.6's finalize operation). Calling it twice is a no-op.
func (tc *TaxCollator) Finalize() {
	if tc.finalized {
		return
	}
	tc.finalized = true
	n := len(tc.pending)
	tc.names = newStringVector()
	tc.nameIDs = make([]int32, n)
	tc.taxCols = make([]*sparseU32Column, tc.width)
	tc.countCols = make([]*sparseU32Column, tc.width)
	for j := range tc.taxCols {
		tc.taxCols[j] = newSparseU32Column(n)
		tc.countCols[j] = newSparseU32Column(n)
	}
	for i, row := range tc.pending {
		tc.nameIDs[i] = tc.names.Intern(row.spotID)
		for j, t := range row.taxIDs {
			tc.taxCols[j].set(i, uint32(t))
			if row.counts[j] != 1 {
				tc.countCols[j].set(i, row.counts[j])
			}
		}
	}
	tc.pending = nil
}

// NumRows returns the number of rows, valid only after Finalize.
func (tc *TaxCollator) NumRows() int { return len(tc.nameIDs) }

// SpotName returns row i's spot name.
func (tc *TaxCollator) SpotName(i int) string { return tc.names.Get(tc.nameIDs[i]) }

// Row reconstructs row i's tax_ids and counts (count 1 where absent),
// walking columns left to right until the left-packed prefix ends.
func (tc *TaxCollator) Row(i int) (taxIDs []int32, counts []uint32) {
	for j := 0; j < tc.width; j++ {
		t, ok := tc.taxCols[j].get(i)
		if !ok {
			break
		}
		taxIDs = append(taxIDs, int32(t))
		if c, ok := tc.countCols[j].get(i); ok {
			counts = append(counts, c)
		} else {
			counts = append(counts, 1)
		}
	}
	return taxIDs, counts
}

// Cardinality returns the number of tax_ids row i holds.
func (tc *TaxCollator) Cardinality(i int) int {
	n := 0
	for j := 0; j < tc.width; j++ {
		if _, ok := tc.taxCols[j].get(i); !ok {
			break
		}
		n++
	}
	return n
}

// Sort builds an index permutation over the rows, ordered by spot-name
// lexicographic compare (§4.6's sort(index) operation).
func (tc *TaxCollator) Sort() []int {
	idx := make([]int, tc.NumRows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return tc.SpotName(idx[a]) < tc.SpotName(idx[b])
	})
	return idx
}

// Merge walks index in order, combining consecutive rows with equal spot
// names: their tax_id sets are unioned and counts on colliding tax_ids
// summed, then written into a fresh collator (§4.6's merge(index)
// operation). The returned collator is already finalized.
func (tc *TaxCollator) Merge(index []int) *TaxCollator {
	out := NewTaxCollator()
	i := 0
	for i < len(index) {
		name := tc.SpotName(index[i])
		merged := make(map[int32]uint32)
		j := i
		for j < len(index) && tc.SpotName(index[j]) == name {
			taxIDs, counts := tc.Row(index[j])
			for k, t := range taxIDs {
				merged[t] += counts[k]
			}
			j++
		}
		out.AddRow(name, merged)
		i = j
	}
	out.Finalize()
	return out
}

// GroupResult is one output line of the compact grouping operation: a
// distinct tax_id tuple and the number of rows that share it exactly.
type GroupResult struct {
	Count  uint64
	TaxIDs []int32
}

// Group implements §4.6's group(compact) operation: for each cardinality
// c = 1..width, it selects the rows of exact width c, sorts them by the
// lexicographic tuple of their tax_ids, and counts runs of equal tuples.
// compact is accepted for symmetry with the spec's signature; this
// implementation always performs the compact histogram (grouping without
// compaction is just Sort+Row, which callers can do directly).
func (tc *TaxCollator) Group(compact bool) []GroupResult {
	_ = compact
	var out []GroupResult
	for c := 1; c <= tc.width; c++ {
		var rows [][]int32
		for i := 0; i < tc.NumRows(); i++ {
			if tc.Cardinality(i) != c {
				continue
			}
			taxIDs, _ := tc.Row(i)
			rows = append(rows, taxIDs)
		}
		if len(rows) == 0 {
			continue
		}
		sort.Slice(rows, func(i, j int) bool { return compareInt32Slice(rows[i], rows[j]) < 0 })
		runStart := 0
		for i := 1; i <= len(rows); i++ {
			if i < len(rows) && compareInt32Slice(rows[i], rows[runStart]) == 0 {
				continue
			}
			out = append(out, GroupResult{Count: uint64(i - runStart), TaxIDs: rows[runStart]})
			runStart = i
		}
	}
	return out
}

func compareInt32Slice(a, b []int32) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// --- text input parsing -------------------------------------------------

// parseCollatorLine parses one `spot_id \t tax1[xN1] \t tax2[xN2] …` line.
func parseCollatorLine(line string) (string, map[int32]uint32, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 1 {
		return "", nil, ErrMalformedCollatorLine
	}
	spotID := fields[0]
	taxCounts := make(map[int32]uint32, len(fields)-1)
	for _, f := range fields[1:] {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		tax, countStr := f, "1"
		if i := strings.IndexByte(f, 'x'); i >= 0 {
			tax, countStr = f[:i], f[i+1:]
		}
		taxID, err := strconv.ParseInt(tax, 10, 32)
		if err != nil {
			return "", nil, errors.Wrapf(ErrMalformedCollatorLine, "tax_id %q", tax)
		}
		count, err := strconv.ParseUint(countStr, 10, 32)
		if err != nil {
			return "", nil, errors.Wrapf(ErrMalformedCollatorLine, "count %q", countStr)
		}
		taxCounts[int32(taxID)] += uint32(count)
	}
	return spotID, taxCounts, nil
}

type collatorLine struct {
	spotID    string
	taxCounts map[int32]uint32
}

// LoadCollatorInput reads a collator input file via breader (matching the
// teacher's taxonomy.go buffered line-parsing idiom), building and
// finalizing a TaxCollator. Malformed lines are skipped, not fatal,
// matching §4.6's tolerance for free-text input.
func LoadCollatorInput(path string) (*TaxCollator, error) {
	parseFunc := func(line string) (interface{}, bool, error) {
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			return nil, false, nil
		}
		spotID, taxCounts, err := parseCollatorLine(line)
		if err != nil {
			return nil, false, nil
		}
		return collatorLine{spotID: spotID, taxCounts: taxCounts}, true, nil
	}
	reader, err := breader.NewBufferedReader(path, 8, 100, parseFunc)
	if err != nil {
		return nil, errors.Wrap(err, "open collator input")
	}
	tc := NewTaxCollator()
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, errors.Wrap(chunk.Err, "read collator input")
		}
		for _, d := range chunk.Data {
			line := d.(collatorLine)
			tc.AddRow(line.spotID, line.taxCounts)
		}
	}
	tc.Finalize()
	return tc, nil
}
