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

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/stable"
	"github.com/spf13/cobra"

	"github.com/ncbi/classtax"
)

// dbinfoCmd implements `classifier dbinfo <db-file>...` (§4.2/§6): a
// read-only header-and-size report over one or more database files,
// grounded on the teacher's tabular `info` subcommand.
var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo",
	Short: "report header and size information of database files",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			checkError(argError("dbinfo requires at least one database file argument"))
		}

		rows := make([]dbInfoRow, 0, len(args))
		for _, file := range args {
			row, err := inspectDb(file)
			if err != nil {
				checkError(runtimeError(fmt.Errorf("%s: %w", file, err)))
			}
			rows = append(rows, row)
		}

		style := &stable.TableStyle{
			Name:      "plain",
			HeaderRow: stable.RowStyle{Begin: "", Sep: "  ", End: ""},
			DataRow:   stable.RowStyle{Begin: "", Sep: "  ", End: ""},
			Padding:   "",
		}
		columns := []stable.Column{
			{Header: "file"},
			{Header: "format"},
			{Header: "k", Align: stable.AlignRight},
			{Header: "records", Align: stable.AlignRight},
			{Header: "size", Align: stable.AlignRight},
		}
		tbl := stable.New()
		tbl.HeaderWithFormat(columns)
		for _, row := range rows {
			tbl.AddRow([]interface{}{
				row.file,
				row.format,
				row.k,
				humanize.Comma(int64(row.records)),
				humanize.Bytes(uint64(row.size)),
			})
		}
		os.Stdout.Write(tbl.Render(style))
	},
}

func init() {
	RootCmd.AddCommand(dbinfoCmd)
}

type dbInfoRow struct {
	file    string
	format  string
	k       int
	records uint64
	size    int64
}

// inspectDb identifies a database file by its extension (after stripping a
// trailing .gz), reads just its header and record count, and stats the file
// for its on-disk size — it never loads the full payload into memory.
func inspectDb(file string) (dbInfoRow, error) {
	st, err := os.Stat(file)
	if err != nil {
		return dbInfoRow{}, err
	}

	base := file
	if strings.HasSuffix(base, ".gz") {
		base = strings.TrimSuffix(base, ".gz")
	}
	ext := filepath.Ext(base)

	f, err := classtax.OpenRead(file)
	if err != nil {
		return dbInfoRow{}, err
	}
	defer f.Close()

	row := dbInfoRow{file: file, size: st.Size()}

	switch ext {
	case ".db":
		h, n, err := classtax.ReadDbHeader(f)
		if err != nil {
			return dbInfoRow{}, err
		}
		row.format, row.k, row.records = "db (flat)", h.K, n
	case ".dbs":
		h, n, err := classtax.ReadDbsHeader(f)
		if err != nil {
			return dbInfoRow{}, err
		}
		row.format, row.k, row.records = "dbs (tax-annotated)", h.K, n
	case ".dbsm":
		h, n, err := classtax.ReadDbsmHeader(f)
		if err != nil {
			return dbInfoRow{}, err
		}
		row.format, row.k, row.records = "dbsm (multi-taxon)", h.K, n
	case ".dbss":
		h, n, err := classtax.ReadDbssHeader(f)
		if err != nil {
			return dbInfoRow{}, err
		}
		row.format, row.k, row.records = "dbss (sorted-by-taxon)", h.K, n
	default:
		return dbInfoRow{}, fmt.Errorf("unrecognized database extension %q", ext)
	}
	return row, nil
}
