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
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// be is the byte order used for every on-disk integer field in this package.
var be = binary.BigEndian

// DbVersion is the only header version this implementation understands.
const DbVersion uint64 = 1

// ErrInvalidFileFormat means the magic number didn't match the expected one.
var ErrInvalidFileFormat = errors.New("classtax: invalid database file format")

// ErrUnsupportedVersion means the header's version field isn't DbVersion.
var ErrUnsupportedVersion = errors.New("classtax: unsupported database version")

// ErrInvalidKRange means k is outside [1,64].
var ErrInvalidKRange = errors.New("classtax: k outside [1,64]")

// Header is the common prefix of every database file: a fixed magic number,
// format version and k.
type Header struct {
	Version uint64
	K       int
}

func (h Header) String() string {
	return fmt.Sprintf("classtax db v%d, k=%d", h.Version, h.K)
}

// dbMagic identifies one of the four on-disk formats.
type dbMagic [8]byte

var (
	magicDb   = dbMagic{'.', 't', 'x', 'd', 'b', '0', '1', '\n'}
	magicDbs  = dbMagic{'.', 't', 'x', 'd', 'b', 's', '1', '\n'}
	magicDbsm = dbMagic{'.', 't', 'x', 'm', 'l', 't', '1', '\n'}
	magicDbss = dbMagic{'.', 't', 'x', 's', 's', 'r', '1', '\n'}
)

func writeHeader(w io.Writer, magic dbMagic, k int) error {
	if err := binary.Write(w, be, magic); err != nil {
		return errors.Wrap(err, "write magic")
	}
	if err := binary.Write(w, be, [2]uint64{DbVersion, uint64(k)}); err != nil {
		return errors.Wrap(err, "write header")
	}
	return nil
}

func readHeader(r io.Reader, magic dbMagic) (Header, error) {
	var m dbMagic
	if err := binary.Read(r, be, &m); err != nil {
		return Header{}, errors.Wrap(err, "read magic")
	}
	if m != magic {
		return Header{}, ErrInvalidFileFormat
	}
	var fields [2]uint64
	if err := binary.Read(r, be, &fields); err != nil {
		return Header{}, errors.Wrap(err, "read header")
	}
	h := Header{Version: fields[0], K: int(fields[1])}
	if h.Version != DbVersion {
		return Header{}, ErrUnsupportedVersion
	}
	if h.K < 1 || h.K > 64 {
		return Header{}, ErrInvalidKRange
	}
	return h, nil
}

func writeCount(w io.Writer, n uint64) error {
	return errors.Wrap(binary.Write(w, be, n), "write count")
}

func readCount(r io.Reader) (uint64, error) {
	var n uint64
	if err := binary.Read(r, be, &n); err != nil {
		return 0, errors.Wrap(err, "read count")
	}
	return n, nil
}

// writeUint64sChunk is the batch size used by writeUint64s/readUint64s so a
// single binary.Write/Read call never has to reflect over an arbitrarily
// large slice.
const writeUint64sChunk = 1 << 16

func writeUint64s(w io.Writer, vals []uint64) error {
	for off := 0; off < len(vals); off += writeUint64sChunk {
		end := off + writeUint64sChunk
		if end > len(vals) {
			end = len(vals)
		}
		if err := binary.Write(w, be, vals[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func readUint64s(r io.Reader, vals []uint64) error {
	for off := 0; off < len(vals); off += writeUint64sChunk {
		end := off + writeUint64sChunk
		if end > len(vals) {
			end = len(vals)
		}
		if err := binary.Read(r, be, vals[off:end]); err != nil {
			return err
		}
	}
	return nil
}
