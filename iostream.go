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

// Transparent gzip I/O, grounded on the teacher's unikmer/cmd/util-io.go
// inStream/outStream helpers: peek the first two bytes for the gzip magic
// rather than trust a file extension. The CLI opens its single-file .db,
// .dbs, .dbsm and .dbss inputs through OpenRead, so those accept
// gzip-compressed input (§6, §9).

package classtax

import (
	"bufio"
	"io"
	"os"

	gzip "github.com/klauspost/pgzip"
	"github.com/pkg/errors"
)

var gzipMagic = []byte{0x1f, 0x8b}

// OpenRead opens file (or stdin for "-") and transparently wraps it with a
// gzip reader when the first two bytes are the gzip magic number.
func OpenRead(file string) (io.ReadCloser, error) {
	var f *os.File
	var err error
	if file == "-" {
		f = os.Stdin
	} else {
		f, err = os.Open(file)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", file)
		}
	}
	br := bufio.NewReaderSize(f, os.Getpagesize())
	gzipped, err := isGzip(br)
	if err != nil {
		if file != "-" {
			f.Close()
		}
		return nil, errors.Wrapf(err, "check gzip magic of %s", file)
	}
	if !gzipped {
		return readCloser{Reader: br, closer: f}, nil
	}
	gr, err := gzip.NewReader(br)
	if err != nil {
		if file != "-" {
			f.Close()
		}
		return nil, errors.Wrapf(err, "open gzip reader for %s", file)
	}
	return gzipReadCloser{Reader: gr, gz: gr, file: f, stdin: file == "-"}, nil
}

// OpenWrite opens file (or stdout for "-") for writing, gzip-compressing the
// stream when gzipped is true (CLI `--out foo.gz`, teacher's
// `--compression-level` convention).
func OpenWrite(file string, gzipped bool, level int) (io.WriteCloser, error) {
	var f *os.File
	var err error
	if file == "-" {
		f = os.Stdout
	} else {
		f, err = os.Create(file)
		if err != nil {
			return nil, errors.Wrapf(err, "create %s", file)
		}
	}
	if !gzipped {
		return f, nil
	}
	gw, err := gzip.NewWriterLevel(f, level)
	if err != nil {
		return nil, errors.Wrap(err, "create gzip writer")
	}
	return gzipWriteCloser{Writer: gw, gz: gw, file: f, stdout: file == "-"}, nil
}

func isGzip(b *bufio.Reader) (bool, error) {
	peek, err := b.Peek(len(gzipMagic))
	if err != nil {
		// A file shorter than the magic number can't be gzipped.
		return false, nil
	}
	for i := range gzipMagic {
		if peek[i] != gzipMagic[i] {
			return false, nil
		}
	}
	return true, nil
}

type readCloser struct {
	*bufio.Reader
	closer *os.File
}

func (r readCloser) Close() error {
	if r.closer == os.Stdin {
		return nil
	}
	return r.closer.Close()
}

type gzipReadCloser struct {
	*gzip.Reader
	gz    *gzip.Reader
	file  *os.File
	stdin bool
}

func (r gzipReadCloser) Close() error {
	if err := r.gz.Close(); err != nil {
		return err
	}
	if r.stdin {
		return nil
	}
	return r.file.Close()
}

type gzipWriteCloser struct {
	*gzip.Writer
	gz     *gzip.Writer
	file   *os.File
	stdout bool
}

func (w gzipWriteCloser) Close() error {
	if err := w.gz.Close(); err != nil {
		return err
	}
	if w.stdout {
		return nil
	}
	return w.file.Close()
}
