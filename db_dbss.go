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

package classtax

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrAnnotationMismatch means the sum of the .dbss annotation's per-taxon
// counts doesn't agree with the file's declared total count.
var ErrAnnotationMismatch = errors.New("classtax: .dbss annotation/file size mismatch")

// ErrDuplicateTaxID means the same tax_id appeared twice in an annotation.
var ErrDuplicateTaxID = errors.New("classtax: duplicate tax_id in annotation")

// ErrUnsortedTaxID means tax_ids in an annotation were not strictly ascending.
var ErrUnsortedTaxID = errors.New("classtax: tax_ids in annotation are not ascending")

// TaxonRun is one taxon's contribution to a .dbss file: its tax_id and the
// sorted-ascending canonical hashes that belong to it.
type TaxonRun struct {
	TaxID  int32
	Hashes []uint64
}

// DbssAnnotationRow is one parsed line of a .dbss.annotation sidecar, with
// Offset filled in as the running byte offset (from the start of the
// payload, i.e. right after the header's count field) of that taxon's run.
type DbssAnnotationRow struct {
	TaxID  int32
	Count  uint64
	Offset uint64
	Format string // "raw" or "bm"; only meaningful for the compressed sidecar
}

// SaveDbss writes a .dbss file: the concatenation of runs' hashes, in the
// order given. Runs must already be ordered by ascending TaxID and each
// run's Hashes must already be sorted ascending; SaveDbss does not re-sort,
// matching §4.2d's "payload is a concatenation of per-taxon runs".
func SaveDbss(w io.Writer, k int, runs []TaxonRun) ([]DbssAnnotationRow, error) {
	var total uint64
	for _, run := range runs {
		total += uint64(len(run.Hashes))
	}
	if err := writeHeader(w, magicDbss, k); err != nil {
		return nil, err
	}
	if err := writeCount(w, total); err != nil {
		return nil, err
	}
	annotation := make([]DbssAnnotationRow, len(runs))
	var offset uint64
	for i, run := range runs {
		if err := writeUint64s(w, run.Hashes); err != nil {
			return nil, errors.Wrapf(err, "write .dbss run for tax_id %d", run.TaxID)
		}
		annotation[i] = DbssAnnotationRow{TaxID: run.TaxID, Count: uint64(len(run.Hashes)), Offset: offset, Format: "raw"}
		offset += uint64(len(run.Hashes)) * 8
	}
	return annotation, nil
}

// WriteAnnotation writes the plain-text `.dbss.annotation` sidecar:
// `tax_id<TAB>count` lines in ascending tax_id order.
func WriteAnnotation(w io.Writer, rows []DbssAnnotationRow) error {
	bw := bufio.NewWriter(w)
	for _, row := range rows {
		if _, err := fmt.Fprintf(bw, "%d\t%d\n", row.TaxID, row.Count); err != nil {
			return errors.Wrap(err, "write annotation line")
		}
	}
	return bw.Flush()
}

// ParseAnnotation reads a plain `.dbss.annotation` sidecar, computing each
// row's Offset as the running byte sum of prior counts * 8. It rejects
// non-ascending or duplicate tax_ids (§4.3 failure modes).
func ParseAnnotation(r io.Reader) ([]DbssAnnotationRow, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var rows []DbssAnnotationRow
	var offset uint64
	var last int64 = -1
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, errors.Errorf("malformed annotation line: %q", line)
		}
		taxID, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "parse tax_id in %q", line)
		}
		count, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse count in %q", line)
		}
		if taxID == last {
			return nil, ErrDuplicateTaxID
		}
		if taxID < last {
			return nil, ErrUnsortedTaxID
		}
		last = taxID
		rows = append(rows, DbssAnnotationRow{TaxID: int32(taxID), Count: count, Offset: offset, Format: "raw"})
		offset += count * 8
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan annotation")
	}
	return rows, nil
}

// CheckAnnotation checks that sum(count_i) equals the already-read header's
// declared total count. It does not look at the file's byte size, so a
// truncated or padded payload is not detected here.
func CheckAnnotation(rows []DbssAnnotationRow, declaredCount uint64) error {
	var sum uint64
	for _, row := range rows {
		sum += row.Count
	}
	if sum != declaredCount {
		return ErrAnnotationMismatch
	}
	return nil
}

// LoadDbssRun reads one taxon's run directly out of an already-opened .dbss
// file via ReadAt, using the row's byte Offset (relative to the start of the
// payload, i.e. PayloadHeaderSize = 32 bytes past the start of the file:
// 8 magic + 8 version + 8 k + 8 count).
func LoadDbssRun(ra io.ReaderAt, payloadStart int64, row DbssAnnotationRow) ([]uint64, error) {
	hashes := make([]uint64, row.Count)
	buf := make([]byte, row.Count*8)
	if _, err := ra.ReadAt(buf, payloadStart+int64(row.Offset)); err != nil {
		return nil, errors.Wrapf(err, "read .dbss run for tax_id %d", row.TaxID)
	}
	for i := range hashes {
		hashes[i] = be.Uint64(buf[i*8:])
	}
	return hashes, nil
}

// PayloadHeaderSize is the byte length of the fixed {magic, version, k,
// count} preamble shared by every format in this package (8 bytes of magic,
// two 8-byte header fields, one 8-byte count); annotation row Offsets are
// relative to the byte right after it.
const PayloadHeaderSize = 8 + 8 + 8 + 8

// ReadDbssHeader reads a .dbss file's header and declared total hash count
// without reading the payload, for CLI-layer callers that need to choose an
// annotation/offset strategy before loading any runs.
func ReadDbssHeader(r io.Reader) (Header, uint64, error) {
	h, err := readHeader(r, magicDbss)
	if err != nil {
		return Header{}, 0, err
	}
	n, err := readCount(r)
	if err != nil {
		return Header{}, 0, err
	}
	return h, n, nil
}

// LoadDbssRunCompressed is LoadDbssRun's counterpart for the bit-sliced
// compressed payload: it seeks to the row's byte Offset and decodes its 64
// bit planes.
func LoadDbssRunCompressed(ra io.ReaderAt, payloadStart int64, row DbssAnnotationRow) ([]uint64, error) {
	sr := io.NewSectionReader(ra, payloadStart+int64(row.Offset), 1<<62)
	return readBitSlicedRun(sr, int(row.Count))
}

// --- compressed (bit-sliced) variant -----------------------------------

// SaveDbssCompressed writes a .dbss file whose runs are bit-sliced into
// per-bit-plane bitmaps instead of raw u64 words (§4.2d compressed
// variant), returning an annotation with Format "bm" and an explicit byte
// Offset per row (offset-delta semantics differ from the raw sidecar: see
// §9 Open Questions).
func SaveDbssCompressed(w io.Writer, k int, runs []TaxonRun) ([]DbssAnnotationRow, error) {
	if err := writeHeader(w, magicDbss, k); err != nil {
		return nil, err
	}
	var total uint64
	for _, run := range runs {
		total += uint64(len(run.Hashes))
	}
	if err := writeCount(w, total); err != nil {
		return nil, err
	}

	annotation := make([]DbssAnnotationRow, len(runs))
	var offset uint64
	for i, run := range runs {
		n, err := writeBitSlicedRun(w, run.Hashes)
		if err != nil {
			return nil, errors.Wrapf(err, "write compressed .dbss run for tax_id %d", run.TaxID)
		}
		annotation[i] = DbssAnnotationRow{TaxID: run.TaxID, Count: uint64(len(run.Hashes)), Offset: offset, Format: "bm"}
		offset += uint64(n)
	}
	return annotation, nil
}

// writeBitSlicedRun serializes values as 64 bit-planes: for each plane, a
// uint64 word count followed by that many words. Returns the number of
// bytes written.
func writeBitSlicedRun(w io.Writer, values []uint64) (int, error) {
	planes := bitPlanes(values, 64)
	written := 0
	for _, plane := range planes {
		if err := binary.Write(w, be, uint64(len(plane.words))); err != nil {
			return written, err
		}
		written += 8
		if len(plane.words) > 0 {
			if err := binary.Write(w, be, plane.words); err != nil {
				return written, err
			}
			written += len(plane.words) * 8
		}
	}
	return written, nil
}

// readBitSlicedRun is the inverse of writeBitSlicedRun, given the number of
// logical values (rows) the run holds.
func readBitSlicedRun(r io.Reader, n int) ([]uint64, error) {
	planes := make([]*bitmap, 64)
	for p := 0; p < 64; p++ {
		var nWords uint64
		if err := binary.Read(r, be, &nWords); err != nil {
			return nil, errors.Wrap(err, "read bit-plane word count")
		}
		plane := newBitmap(n)
		if nWords > 0 {
			if err := binary.Read(r, be, plane.words[:nWords]); err != nil {
				return nil, errors.Wrap(err, "read bit-plane words")
			}
			for _, wd := range plane.words {
				plane.pop += popcount64(wd)
			}
		}
		planes[p] = plane
	}
	return valuesFromBitPlanes(planes, n), nil
}

func popcount64(x uint64) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}

// WriteAnnotationCompressed writes the `tax_id<TAB>offset<TAB>count<TAB>
// {raw|bm}` sidecar format, terminated by a `0<TAB>offset<TAB>` sentinel row
// giving the total payload size (§6, §9 "explicit offset per row + sentinel
// row").
func WriteAnnotationCompressed(w io.Writer, rows []DbssAnnotationRow, totalPayloadSize uint64) error {
	bw := bufio.NewWriter(w)
	for _, row := range rows {
		if _, err := fmt.Fprintf(bw, "%d\t%d\t%d\t%s\n", row.TaxID, row.Offset, row.Count, row.Format); err != nil {
			return errors.Wrap(err, "write compressed annotation line")
		}
	}
	if _, err := fmt.Fprintf(bw, "0\t%d\t\n", totalPayloadSize); err != nil {
		return errors.Wrap(err, "write annotation sentinel")
	}
	return bw.Flush()
}

// ParseAnnotationCompressed reads the compressed sidecar format, returning
// the per-taxon rows and the sentinel's total payload size.
func ParseAnnotationCompressed(r io.Reader) (rows []DbssAnnotationRow, totalPayloadSize uint64, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var last int64 = -1
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, 0, errors.Errorf("malformed compressed annotation line: %q", line)
		}
		taxID, perr := strconv.ParseInt(fields[0], 10, 32)
		if perr != nil {
			return nil, 0, errors.Wrapf(perr, "parse tax_id in %q", line)
		}
		if taxID == 0 {
			// sentinel row: 0 \t offset \t
			total, perr := strconv.ParseUint(fields[1], 10, 64)
			if perr != nil {
				return nil, 0, errors.Wrapf(perr, "parse sentinel offset in %q", line)
			}
			totalPayloadSize = total
			break
		}
		if len(fields) != 4 {
			return nil, 0, errors.Errorf("malformed compressed annotation line: %q", line)
		}
		offset, perr := strconv.ParseUint(fields[1], 10, 64)
		if perr != nil {
			return nil, 0, errors.Wrapf(perr, "parse offset in %q", line)
		}
		count, perr := strconv.ParseUint(fields[2], 10, 64)
		if perr != nil {
			return nil, 0, errors.Wrapf(perr, "parse count in %q", line)
		}
		if taxID == last {
			return nil, 0, ErrDuplicateTaxID
		}
		if taxID < last {
			return nil, 0, ErrUnsortedTaxID
		}
		last = taxID
		rows = append(rows, DbssAnnotationRow{TaxID: int32(taxID), Count: count, Offset: offset, Format: fields[3]})
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "scan compressed annotation")
	}
	return rows, totalPayloadSize, nil
}

// --- split-directory alternative -----------------------------------

// SaveDbssSplit writes the `<name>.split/` alternative: one flat `<tax_id>.db`
// file per taxon plus a `header` text file holding k, chosen at load time
// when the single-file `.dbss` form is absent.
func SaveDbssSplit(dir string, k int, runs []TaxonRun) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create split dir %s", dir)
	}
	headerPath := filepath.Join(dir, "header")
	if err := os.WriteFile(headerPath, []byte(strconv.Itoa(k)), 0o644); err != nil {
		return errors.Wrap(err, "write split header")
	}
	for _, run := range runs {
		path := filepath.Join(dir, strconv.Itoa(int(run.TaxID))+".db")
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "create %s", path)
		}
		err = SaveDb(f, k, run.Hashes)
		cerr := f.Close()
		if err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
		if cerr != nil {
			return errors.Wrapf(cerr, "close %s", path)
		}
	}
	return nil
}

// LoadDbssSplitHeader reads the `<name>.split/header` file.
func LoadDbssSplitHeader(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, "header"))
	if err != nil {
		return 0, errors.Wrap(err, "read split header")
	}
	k, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.Wrap(err, "parse split header")
	}
	if k < 1 || k > 64 {
		return 0, ErrInvalidKRange
	}
	return k, nil
}

// LoadDbssSplitRun reads one taxon's flat `.db` file out of a split
// directory.
func LoadDbssSplitRun(dir string, taxID int32) ([]uint64, error) {
	path := filepath.Join(dir, strconv.Itoa(int(taxID))+".db")
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	_, hashes, err := LoadDb(f)
	return hashes, err
}

// SplitDirExists reports whether the split-directory alternative is present
// for the given .dbss base name, per §4.2d's "chosen when the single-file
// form is absent" rule.
func SplitDirExists(baseName string) bool {
	info, err := os.Stat(baseName + ".split")
	return err == nil && info.IsDir()
}
