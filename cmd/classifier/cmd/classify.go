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

// This is the only file allowed to import github.com/shenwei356/bio: reading
// FASTA/FASTQ archives is a CLI-edge concern, not a core library one (§4.5
// grounds the pipeline reader on an abstract NextReadFunc instead).

package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/spf13/cobra"

	"github.com/ncbi/classtax"
)

// classifyCmd implements `classifier classify <db-selector> [options]
// <contig-file|list-file>` (§6).
var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "classify reads against a k-mer database",
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		if len(args) == 0 {
			checkError(argError("classify requires a contig-file or list-file argument"))
		}
		inputPath := args[0]
		checkFileExists(inputPath)

		lookup, err := buildLookup(cmd)
		checkError(err)

		matcher := classtax.NewMatcher(lookup)
		matcher.MaxLookupsPerFragment = getFlagNonNegativeInt(cmd, "max-lookups-per-fragment")

		var spotFilter *classtax.SpotFilter
		if path := getFlagString(cmd, "spot-filter"); path != "" {
			spotFilter, err = classtax.LoadSpotFilter(expandPath(path), getFlagBool(cmd, "spot-filter-exclude"))
			checkError(err)
		}

		// §6: 0 requests single-threaded (strict ordering) processing;
		// the flag's own default (-1) means "use hardware concurrency/2".
		workers := opt.NumThreads
		switch {
		case workers < 0:
			workers = classtax.DefaultNumWorkers()
		case workers == 0:
			workers = 1
		}

		pipelineOpt := classtax.PipelineOptions{
			NumWorkers:    workers,
			Strict:        opt.NumThreads == 0,
			SpotFilter:    spotFilter,
			SplitN:        true,
			MinRunLen:     lookup.K(),
			Stride:        getFlagNonNegativeInt(cmd, "optimization-ultrafast-skip-reader"),
			Matcher:       matcher,
			UnalignedOnly: getFlagBool(cmd, "unaligned-only"),
		}

		hideCounts := getFlagBool(cmd, "hide-counts")
		compact := getFlagBool(cmd, "compact")
		collate := getFlagBool(cmd, "collate")
		outFlag := getFlagString(cmd, "out")

		files := []string{inputPath}
		if isListFile(inputPath) {
			files, err = readListFile(inputPath)
			checkError(err)
		}

		for _, file := range files {
			out := outFlag
			if len(files) > 1 || isListFile(inputPath) {
				out = outFileForList(outFlag, file)
			}
			if err := classifyOneFile(file, out, opt, pipelineOpt, hideCounts, compact, collate); err != nil {
				checkError(runtimeError(err))
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().String("db", "", "flat k-mer filter database (.db)")
	classifyCmd.Flags().String("dbs", "", "tax-annotated database (.dbs)")
	classifyCmd.Flags().String("dbsm", "", "multi-taxon database (.dbsm)")
	classifyCmd.Flags().String("dbss", "", "sorted-by-taxon database (.dbss), requires --tax-list")
	classifyCmd.Flags().String("tax-list", "", "file of tax_ids (one per line) to load from --dbss")

	classifyCmd.Flags().String("spot-filter", "", "spot-id list file (include, unless --spot-filter-exclude)")
	classifyCmd.Flags().Bool("spot-filter-exclude", false, "treat --spot-filter as an exclude list instead of an include list")
	classifyCmd.Flags().Bool("unaligned-only", false, "only report reads with no hit")
	classifyCmd.Flags().Int("optimization-ultrafast-skip-reader", 0, "stride sampling: drop every N-th read")
	classifyCmd.Flags().Int("max-lookups-per-fragment", 0, "cap k-mer lookups per read (0 = unlimited)")
	classifyCmd.Flags().Bool("hide-counts", false, "omit xN counts in output")
	classifyCmd.Flags().Bool("compact", false, "emit compact grouped histogram")
	classifyCmd.Flags().Bool("collate", false, "run the tax-collator post-pass over this run's output")
	classifyCmd.Flags().String("out", "", "output file (or suffix, for list input)")
}

// buildLookup selects exactly one db-selector flag and builds its Lookup.
func buildLookup(cmd *cobra.Command) (classtax.Lookup, error) {
	dbPath := getFlagString(cmd, "db")
	dbsPath := getFlagString(cmd, "dbs")
	dbsmPath := getFlagString(cmd, "dbsm")
	dbssPath := getFlagString(cmd, "dbss")
	taxListPath := getFlagString(cmd, "tax-list")

	n := 0
	for _, p := range []string{dbPath, dbsPath, dbsmPath, dbssPath} {
		if p != "" {
			n++
		}
	}
	if n != 1 {
		return nil, argError("exactly one of --db/--dbs/--dbsm/--dbss is required")
	}

	switch {
	case dbPath != "":
		f, err := classtax.OpenRead(expandPath(dbPath))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		h, hashes, err := classtax.LoadDb(f)
		if err != nil {
			return nil, err
		}
		return classtax.NewFlatLookup(h.K, hashes), nil

	case dbsPath != "":
		f, err := classtax.OpenRead(expandPath(dbsPath))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		h, rows, err := classtax.LoadDbs(f)
		if err != nil {
			return nil, err
		}
		return classtax.NewTaxLookup(h.K, rows), nil

	case dbsmPath != "":
		f, err := classtax.OpenRead(expandPath(dbsmPath))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		h, rows, err := classtax.LoadDbsm(f)
		if err != nil {
			return nil, err
		}
		return classtax.NewMultiTaxLookup(h.K, rows), nil

	default: // dbssPath != ""
		if taxListPath == "" {
			return nil, argError("--dbss requires --tax-list")
		}
		taxIDs, err := readTaxList(expandPath(taxListPath))
		if err != nil {
			return nil, err
		}
		k, runs, err := loadDbssRuns(expandPath(dbssPath), taxIDs)
		if err != nil {
			return nil, err
		}
		return classtax.BuildSortedTaxLookup(k, runs), nil
	}
}

func readTaxList(path string) ([]int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ids []int32
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse tax_list line %q: %w", line, err)
		}
		ids = append(ids, int32(id))
	}
	return ids, scanner.Err()
}

// loadDbssRuns reads the single-file form (raw or bit-sliced compressed
// annotation), and falls back to the split-directory alternative when the
// single .dbss file is absent, per §4.2d.
func loadDbssRuns(dbssPath string, taxIDs []int32) (int, []classtax.TaxonRun, error) {
	base := strings.TrimSuffix(dbssPath, ".dbss")
	if _, statErr := os.Stat(dbssPath); os.IsNotExist(statErr) && classtax.SplitDirExists(base) {
		k, err := classtax.LoadDbssSplitHeader(base + ".split")
		if err != nil {
			return 0, nil, err
		}
		var runs []classtax.TaxonRun
		for _, tax := range taxIDs {
			hashes, err := classtax.LoadDbssSplitRun(base+".split", tax)
			if err != nil {
				return 0, nil, err
			}
			runs = append(runs, classtax.TaxonRun{TaxID: tax, Hashes: hashes})
		}
		return k, runs, nil
	}

	rc, err := classtax.OpenRead(dbssPath)
	if err != nil {
		return 0, nil, err
	}
	data, err := ioutil.ReadAll(rc)
	rc.Close()
	if err != nil {
		return 0, nil, err
	}
	header, _, err := classtax.ReadDbssHeader(bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	ra := bytes.NewReader(data)

	wanted := make(map[int32]bool, len(taxIDs))
	for _, t := range taxIDs {
		wanted[t] = true
	}

	compressedPath := dbssPath + ".annotation.bm"
	rawPath := dbssPath + ".annotation"
	var runs []classtax.TaxonRun
	if af, err := os.Open(compressedPath); err == nil {
		defer af.Close()
		rows, _, err := classtax.ParseAnnotationCompressed(af)
		if err != nil {
			return 0, nil, err
		}
		for _, row := range rows {
			if !wanted[row.TaxID] {
				continue
			}
			hashes, err := classtax.LoadDbssRunCompressed(ra, classtax.PayloadHeaderSize, row)
			if err != nil {
				return 0, nil, err
			}
			runs = append(runs, classtax.TaxonRun{TaxID: row.TaxID, Hashes: hashes})
		}
		return header.K, runs, nil
	}

	af, err := os.Open(rawPath)
	if err != nil {
		return 0, nil, err
	}
	defer af.Close()
	rows, err := classtax.ParseAnnotation(af)
	if err != nil {
		return 0, nil, err
	}
	for _, row := range rows {
		if !wanted[row.TaxID] {
			continue
		}
		hashes, err := classtax.LoadDbssRun(ra, classtax.PayloadHeaderSize, row)
		if err != nil {
			return 0, nil, err
		}
		runs = append(runs, classtax.TaxonRun{TaxID: row.TaxID, Hashes: hashes})
	}
	return header.K, runs, nil
}

func isListFile(path string) bool {
	return strings.HasSuffix(path, ".list") || strings.HasSuffix(path, ".files")
}

func readListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var files []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			files = append(files, line)
		}
	}
	return files, scanner.Err()
}

func classifyOneFile(file, out string, opt *Options, pipelineOpt classtax.PipelineOptions, hideCounts, compact, collate bool) error {
	reader, err := fastx.NewDefaultReader(file)
	if err != nil {
		return err
	}
	next := func() (classtax.Read, bool, error) {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return classtax.Read{}, false, nil
			}
			return classtax.Read{}, false, err
		}
		return classtax.Read{SpotID: string(record.ID), Bases: record.Seq.Seq}, true, nil
	}

	outPath := resolveOut(out)
	gzipped := opt.Compress && strings.HasSuffix(outPath, ".gz")
	w, err := classtax.OpenWrite(outPath, gzipped, opt.CompressionLevel)
	if err != nil {
		return err
	}
	defer w.Close()
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	var collector *classtax.TaxCollator
	if collate {
		collector = classtax.NewTaxCollator()
	}

	emit := func(r classtax.ReadResult) {
		if collector != nil && r.Hits != nil {
			taxCounts := make(map[int32]uint32, len(r.Hits))
			for t, c := range r.Hits {
				if t == classtax.FlatTaxID {
					continue
				}
				taxCounts[t] = uint32(c)
			}
			collector.AddRow(r.SpotID, taxCounts)
			return
		}
		checkError(classtax.WriteResult(bw, r, hideCounts))
	}

	if err := classtax.RunPipeline(next, emit, pipelineOpt); err != nil {
		return err
	}

	if collector == nil {
		return nil
	}
	collector.Finalize()
	return writeCollatorOutput(bw, collector, compact)
}

func resolveOut(out string) string {
	if isStdout(out) {
		return "-"
	}
	return out
}

func writeCollatorOutput(w *bufio.Writer, tc *classtax.TaxCollator, compact bool) error {
	if compact {
		for _, g := range tc.Group(true) {
			if _, err := fmt.Fprintf(w, "%d", g.Count); err != nil {
				return err
			}
			for _, t := range g.TaxIDs {
				if _, err := fmt.Fprintf(w, "\t%d", t); err != nil {
					return err
				}
			}
			if _, err := w.WriteString("\n"); err != nil {
				return err
			}
		}
		return nil
	}
	index := tc.Sort()
	merged := tc.Merge(index)
	for i := 0; i < merged.NumRows(); i++ {
		taxIDs, counts := merged.Row(i)
		if _, err := w.WriteString(merged.SpotName(i)); err != nil {
			return err
		}
		for j, t := range taxIDs {
			if counts[j] > 1 {
				if _, err := fmt.Fprintf(w, "\t%dx%d", t, counts[j]); err != nil {
					return err
				}
			} else if _, err := fmt.Fprintf(w, "\t%d", t); err != nil {
				return err
			}
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}
