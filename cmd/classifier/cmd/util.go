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
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

// Options carries the global, cross-cutting CLI flags (§6's PersistentFlags
// convention, grounded on the teacher's cmd/util.go getOptions idiom).
type Options struct {
	NumThreads       int
	Verbose          bool
	Compress         bool
	CompressionLevel int
}

func getOptions(cmd *cobra.Command) *Options {
	return &Options{
		// -1 sentinel means "unset, use hardware concurrency / 2"; see
		// classifyCmd's worker-count resolution.
		NumThreads:       getFlagInt(cmd, "num-threads"),
		Verbose:          getFlagBool(cmd, "verbose"),
		Compress:         !getFlagBool(cmd, "no-compress"),
		CompressionLevel: getFlagInt(cmd, "compression-level"),
	}
}

// classifierError wraps an error with the exit code it should produce,
// per §6's exit-code table.
type classifierError struct {
	code int
	err  error
}

func (e *classifierError) Error() string { return e.err.Error() }

func argError(format string, args ...interface{}) error {
	return &classifierError{code: 1, err: fmt.Errorf(format, args...)}
}

func runtimeError(err error) error {
	if err == nil {
		return nil
	}
	return &classifierError{code: 2, err: err}
}

// checkError prints err and exits immediately, mirroring the teacher's
// fail-fast checkError helper for conditions that should never be
// recoverable mid-command. The exit code follows §6: 1 for a
// *classifierError built by argError, 2 for runtimeError, 3 otherwise.
func checkError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "classifier: "+err.Error())
	if ce, ok := err.(*classifierError); ok {
		os.Exit(ce.code)
	}
	os.Exit(3)
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	v, err := cmd.Flags().GetInt(flag)
	checkError(err)
	return v
}

func getFlagNonNegativeInt(cmd *cobra.Command, flag string) int {
	v := getFlagInt(cmd, flag)
	if v < 0 {
		checkError(argError("value of flag --%s should be >= 0", flag))
	}
	return v
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	v, err := cmd.Flags().GetBool(flag)
	checkError(err)
	return v
}

func getFlagString(cmd *cobra.Command, flag string) string {
	v, err := cmd.Flags().GetString(flag)
	checkError(err)
	return v
}

// expandPath expands a leading `~` via go-homedir, matching the teacher's
// `--tax-list`/`--spot-filter` path normalization.
func expandPath(path string) string {
	if path == "" || path == "-" {
		return path
	}
	expanded, err := homedir.Expand(path)
	checkError(err)
	return expanded
}

func checkFileExists(path string) {
	if path == "-" {
		return
	}
	ok, err := pathutil.Exists(path)
	checkError(err)
	if !ok {
		checkError(argError("file does not exist: %s", path))
	}
}

func isStdout(path string) bool {
	return path == "" || path == "-"
}

// outFileForList builds a per-input output path when --out names a suffix
// and the command is processing a list of inputs rather than a single file
// (§6 "`--out <path-or-postfix>` ... for list input, used as suffix").
func outFileForList(out, inputFile string) string {
	if out == "" {
		return inputFile + ".classified"
	}
	if strings.HasPrefix(out, ".") {
		return inputFile + out
	}
	return out
}
