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
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ncbi/classtax"
)

// collateCmd implements `classifier collate [options] <hits-file>` (§6): a
// standalone post-hoc pass over a previously-written classify output, for
// runs where --collate wasn't passed at classify time.
var collateCmd = &cobra.Command{
	Use:   "collate",
	Short: "collate a hits file into a per-spot tax-id summary",
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		if len(args) == 0 {
			checkError(argError("collate requires a hits-file argument"))
		}
		inputPath := args[0]
		checkFileExists(inputPath)

		tc, err := classtax.LoadCollatorInput(expandPath(inputPath))
		checkError(runtimeError(err))
		tc.Finalize()

		outPath := resolveOut(getFlagString(cmd, "out"))
		gzipped := opt.Compress && strings.HasSuffix(outPath, ".gz")
		w, err := classtax.OpenWrite(outPath, gzipped, opt.CompressionLevel)
		checkError(runtimeError(err))
		defer w.Close()
		bw := bufio.NewWriter(w)
		defer bw.Flush()

		compact := getFlagBool(cmd, "compact")
		checkError(runtimeError(writeCollatorOutput(bw, tc, compact)))
	},
}

func init() {
	RootCmd.AddCommand(collateCmd)

	collateCmd.Flags().Bool("compact", false, "emit compact grouped histogram")
	collateCmd.Flags().String("out", "", "output file")
}
