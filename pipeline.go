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

// This file implements §4.5's parallel read-processing pipeline: a chunked
// reader, a semaphore-gated worker pool, and an output sink that can emit
// either in dequeue order or strictly by chunk index. It is grounded on the
// kmcp cmd/search.go InCh/OutCh channel pattern and the teacher's db-index.go
// `tokens := make(chan int, opt.NumCPUs)` semaphore idiom.

package classtax

import (
	"bufio"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"
	"github.com/shenwei356/breader"
)

// DefaultChunkSize is CHUNK_SIZE from §4.5: the maximum number of reads the
// reader batches into one unit of work.
const DefaultChunkSize = 1024

// DefaultNumWorkers approximates "hardware concurrency / 2" from §4.5.
func DefaultNumWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

// --- reader pre-transforms -----------------------------------------

// SpotFilter is an include/exclude set of spot ids, loaded from a
// one-id-per-line file with any trailing `.<anything>` stripped before
// matching (§4.5 pre-transform 1). Membership is tracked by xxhash digest
// rather than the raw string to keep the set compact for large filter
// files.
type SpotFilter struct {
	ids     map[uint64]struct{}
	exclude bool
}

// LoadSpotFilter reads a spot-id list file via breader (matching the
// teacher's taxonomy.go line-parsing idiom) and builds a SpotFilter. When
// exclude is true, Allows reports false for listed ids; otherwise it
// reports true only for listed ids.
func LoadSpotFilter(path string, exclude bool) (*SpotFilter, error) {
	parseFunc := func(line string) (interface{}, bool, error) {
		line = strings.TrimSpace(line)
		if line == "" {
			return nil, false, nil
		}
		return stripSpotSuffix(line), true, nil
	}
	reader, err := breader.NewBufferedReader(path, 8, 100, parseFunc)
	if err != nil {
		return nil, errors.Wrap(err, "open spot filter")
	}
	sf := &SpotFilter{ids: make(map[uint64]struct{}, 1024), exclude: exclude}
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, errors.Wrap(chunk.Err, "read spot filter")
		}
		for _, d := range chunk.Data {
			sf.ids[xxhash.Sum64String(d.(string))] = struct{}{}
		}
	}
	return sf, nil
}

// stripSpotSuffix drops a trailing `.<anything>` suffix from a spot id, per
// §4.5's spot-filter matching rule.
func stripSpotSuffix(id string) string {
	if i := strings.IndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}

// Allows reports whether a spot id passes the filter.
func (sf *SpotFilter) Allows(spotID string) bool {
	_, found := sf.ids[xxhash.Sum64String(stripSpotSuffix(spotID))]
	if sf.exclude {
		return !found
	}
	return found
}

// SplitACGT splits bases into its maximal runs of A/C/G/T (case-insensitive),
// implementing §4.5 pre-transform 2. Runs shorter than minLen are dropped
// (a 0-length window can never be classified).
func SplitACGT(bases []byte, minLen int) [][]byte {
	var runs [][]byte
	start := -1
	for i, b := range bases {
		if base2bit[b] >= 0 {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if i-start >= minLen {
				runs = append(runs, bases[start:i])
			}
			start = -1
		}
	}
	if start >= 0 && len(bases)-start >= minLen {
		runs = append(runs, bases[start:])
	}
	return runs
}

// StrideSampler drops every s-th read (§4.5 pre-transform 3, "ultra-fast
// skip"). s<=1 means no skipping.
type StrideSampler struct {
	s int
	n int
}

// NewStrideSampler builds a sampler that keeps every read except every
// s-th one (1-indexed: the s-th, 2s-th, ... reads are dropped).
func NewStrideSampler(s int) *StrideSampler {
	return &StrideSampler{s: s}
}

// Keep reports whether the next read should be kept, advancing internal
// state.
func (st *StrideSampler) Keep() bool {
	st.n++
	if st.s <= 1 {
		return true
	}
	return st.n%st.s != 0
}

// --- spot id grammar -------------------------------------------------

// SpotID is a parsed `<acc>.FR<frag>[.<read>]` spot identifier (§4.5 sort
// mode, §Glossary "Fragment").
type SpotID struct {
	Accession string
	Fragment  int
	Read      int // 0 when absent
	HasRead   bool
}

// ParseSpotID parses the legacy `<acc>.FR<frag>[.<read>]` grammar. ok=false
// means id doesn't match the grammar and should be treated as an opaque
// string for sorting purposes.
func ParseSpotID(id string) (SpotID, bool) {
	idx := strings.Index(id, ".FR")
	if idx < 0 {
		return SpotID{}, false
	}
	acc := id[:idx]
	rest := id[idx+3:]
	parts := strings.SplitN(rest, ".", 2)
	frag, err := strconv.Atoi(parts[0])
	if err != nil {
		return SpotID{}, false
	}
	sid := SpotID{Accession: acc, Fragment: frag}
	if len(parts) == 2 {
		read, err := strconv.Atoi(parts[1])
		if err != nil {
			return SpotID{}, false
		}
		sid.Read = read
		sid.HasRead = true
	}
	return sid, true
}

// CompareSpotID orders two spot ids by {accession, read_num, fragment_num}
// per §4.5's sort-mode ordering; ids that don't parse fall back to a plain
// string compare and sort after every parseable id.
func CompareSpotID(a, b string) int {
	pa, oka := ParseSpotID(a)
	pb, okb := ParseSpotID(b)
	switch {
	case oka && okb:
		if pa.Accession != pb.Accession {
			return strings.Compare(pa.Accession, pb.Accession)
		}
		if pa.Read != pb.Read {
			return pa.Read - pb.Read
		}
		return pa.Fragment - pb.Fragment
	case oka && !okb:
		return -1
	case !oka && okb:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// --- chunked pipeline -------------------------------------------------

// ReadResult is one matched read's outcome, carried from a worker to the
// writer.
type ReadResult struct {
	SpotID string
	Hits   Hits
}

type chunk struct {
	index int
	reads []Read
}

type chunkResult struct {
	index   int
	results []ReadResult
}

// NextReadFunc pulls the next Read from whatever underlying source feeds
// the pipeline (a FASTA/FASTQ reader at the CLI layer); ok=false at
// end-of-input. The pipeline core never reads files itself — archive
// parsing is an external concern.
type NextReadFunc func() (Read, bool, error)

// EmitFunc consumes one matched read's result; it is called by the writer
// goroutine only, so implementations don't need their own locking.
type EmitFunc func(ReadResult)

// PipelineOptions configures RunPipeline.
type PipelineOptions struct {
	ChunkSize   int
	NumWorkers  int
	Strict      bool // serialize output strictly by chunk index
	SpotFilter  *SpotFilter
	SplitN      bool // apply SplitACGT pre-transform
	MinRunLen   int  // minimum sub-read length kept by SplitACGT
	Stride      int  // ultra-fast skip stride; <=1 disables
	Matcher     *Matcher
	UnalignedOnly bool
}

// RunPipeline drives the reader → worker pool → writer pipeline described
// in §4.5, pulling reads via next and pushing matched results via emit. It
// returns the first fatal error encountered (matching §4.5's "fatal errors
// abort the process after flushing buffered output").
func RunPipeline(next NextReadFunc, emit EmitFunc, opt PipelineOptions) error {
	chunkSize := opt.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	numWorkers := opt.NumWorkers
	if numWorkers <= 0 {
		numWorkers = DefaultNumWorkers()
	}

	inCh := make(chan *chunk, numWorkers*2)
	outCh := make(chan *chunkResult, numWorkers*2)
	tokens := make(chan int, numWorkers)

	var readErr error
	var readErrOnce sync.Once
	setReadErr := func(err error) {
		readErrOnce.Do(func() { readErr = err })
	}

	var wg sync.WaitGroup

	// reader goroutine
	go func() {
		defer close(inCh)
		stride := NewStrideSampler(opt.Stride)
		idx := 0
		var buf []Read
		flush := func() {
			if len(buf) == 0 {
				return
			}
			inCh <- &chunk{index: idx, reads: buf}
			idx++
			buf = nil
		}
		for {
			read, ok, err := next()
			if err != nil {
				setReadErr(errors.Wrap(err, "read input"))
				return
			}
			if !ok {
				flush()
				return
			}
			if opt.SpotFilter != nil && !opt.SpotFilter.Allows(read.SpotID) {
				continue
			}
			if !stride.Keep() {
				continue
			}
			if opt.SplitN {
				for _, run := range SplitACGT(read.Bases, opt.MinRunLen) {
					buf = append(buf, Read{SpotID: read.SpotID, Bases: run})
				}
			} else {
				buf = append(buf, read)
			}
			if len(buf) >= chunkSize {
				flush()
			}
		}
	}()

	// worker pool
	go func() {
		for c := range inCh {
			tokens <- 1
			wg.Add(1)
			go func(c *chunk) {
				defer wg.Done()
				defer func() { <-tokens }()
				results := make([]ReadResult, 0, len(c.reads))
				for _, read := range c.reads {
					if opt.UnalignedOnly {
						hit, err := opt.Matcher.MatchAny(read)
						if err != nil {
							setReadErr(errors.Wrap(err, "match read"))
							return
						}
						if hit {
							continue
						}
						results = append(results, ReadResult{SpotID: read.SpotID, Hits: nil})
						continue
					}
					hits, err := opt.Matcher.Match(read)
					if err != nil {
						setReadErr(errors.Wrap(err, "match read"))
						return
					}
					if len(hits) == 0 {
						PutHits(hits)
						continue
					}
					results = append(results, ReadResult{SpotID: read.SpotID, Hits: hits})
				}
				outCh <- &chunkResult{index: c.index, results: results}
			}(c)
		}
		wg.Wait()
		close(outCh)
	}()

	if opt.Strict {
		pending := make(map[int]*chunkResult)
		next := 0
		for cr := range outCh {
			pending[cr.index] = cr
			for {
				ready, ok := pending[next]
				if !ok {
					break
				}
				emitChunk(ready, emit)
				delete(pending, next)
				next++
			}
		}
	} else {
		for cr := range outCh {
			emitChunk(cr, emit)
		}
	}

	return readErr
}

func emitChunk(cr *chunkResult, emit EmitFunc) {
	for _, r := range cr.results {
		emit(r)
		if r.Hits != nil {
			PutHits(r.Hits)
		}
	}
}

// SortResults sorts results by the §4.5 sort-mode key {accession, read_num,
// fragment_num}, for callers that buffer all output before writing.
func SortResults(results []ReadResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return CompareSpotID(results[i].SpotID, results[j].SpotID) < 0
	})
}

// SortedTaxIDs returns hits' keys sorted ascending, excluding FlatTaxID: a
// .db hit carries no real taxon to print, only the bare spot line (§6
// "Output format (default)").
func SortedTaxIDs(hits Hits) []int32 {
	taxIDs := make([]int32, 0, len(hits))
	for t := range hits {
		if t == FlatTaxID {
			continue
		}
		taxIDs = append(taxIDs, t)
	}
	sort.Slice(taxIDs, func(i, j int) bool { return taxIDs[i] < taxIDs[j] })
	return taxIDs
}

// FormatHits renders a Hits map as `tax1[xN1]\ttax2[xN2]...`, tax_ids
// ascending with the `xN` suffix elided when N=1 (§6 "Output format
// (default)"). FlatTaxID hits render nothing, since a .db lookup carries no
// real taxon.
func FormatHits(hits Hits) string {
	taxIDs := SortedTaxIDs(hits)
	if len(taxIDs) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, t := range taxIDs {
		if i > 0 {
			sb.WriteByte('\t')
		}
		if n := hits[t]; n > 1 {
			fmt.Fprintf(&sb, "%dx%d", t, n)
		} else {
			fmt.Fprintf(&sb, "%d", t)
		}
	}
	return sb.String()
}

// WriteResult writes one ReadResult as `spot_id\thits...\n`, omitting the
// hits column when hideCounts is set (CLI `--hide-counts`). FlatTaxID hits
// (from a .db lookup) never appear in the hits column; the bare spot_id
// line is itself the positive-match signal.
func WriteResult(w *bufio.Writer, r ReadResult, hideCounts bool) error {
	if _, err := w.WriteString(r.SpotID); err != nil {
		return err
	}
	if r.Hits != nil {
		if hideCounts {
			for _, t := range SortedTaxIDs(r.Hits) {
				if _, err := fmt.Fprintf(w, "\t%d", t); err != nil {
					return err
				}
			}
		} else if line := FormatHits(r.Hits); line != "" {
			if _, err := w.WriteString("\t" + line); err != nil {
				return err
			}
		}
	}
	return w.WriteByte('\n')
}
