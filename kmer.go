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

import "errors"

// ErrIllegalBase means a byte outside {A,C,G,T} (case-insensitive) was seen.
var ErrIllegalBase = errors.New("classtax: illegal base")

// ErrKOverflow means k is outside [1,32].
var ErrKOverflow = errors.New("classtax: k (1-32) overflow")

// ErrShortSeq means the input is shorter than k.
var ErrShortSeq = errors.New("classtax: sequence shorter than k")

// ErrKMismatch means two KmerCodes don't share the same k.
var ErrKMismatch = errors.New("classtax: k mismatch")

// base2bit maps upper and lower-case A/C/G/T to the 2-bit codes mandated by
// the complement identity complement(x) = x XOR 2, i.e. A=0, C=1, T=2, G=3.
// This differs from the conventional A=0,C=1,G=2,T=3/XOR-3 packing: G and T
// are swapped so complementary bases sit two bits apart under XOR 2 instead
// of XOR 3.
var base2bit = [256]int8{}

func init() {
	for i := range base2bit {
		base2bit[i] = -1
	}
	base2bit['A'], base2bit['a'] = 0, 0
	base2bit['C'], base2bit['c'] = 1, 1
	base2bit['T'], base2bit['t'] = 2, 2
	base2bit['G'], base2bit['g'] = 3, 3
}

// bit2base is the inverse of base2bit.
var bit2base = [4]byte{'A', 'C', 'T', 'G'}

// Encode bitpacks a byte slice of length k (1..32) over {A,C,G,T} into a
// uint64, most-significant 2 bits first. Any byte outside {A,C,G,T}
// (case-insensitive) yields ErrIllegalBase.
func Encode(kmer []byte) (code uint64, err error) {
	k := len(kmer)
	if k == 0 || k > 32 {
		return 0, ErrKOverflow
	}
	for i := 0; i < k; i++ {
		b := base2bit[kmer[i]]
		if b < 0 {
			return 0, ErrIllegalBase
		}
		code = (code << 2) | uint64(b)
	}
	return code, nil
}

// MustEncodeFromFormerKmer rolls a code forward by one base, assuming kmer
// and the window that leftCode encodes are of the same length and share a
// k-1 overlap (that window's suffix == kmer's prefix).
func MustEncodeFromFormerKmer(kmer []byte, k int, leftCode uint64) (uint64, error) {
	b := base2bit[kmer[k-1]]
	if b < 0 {
		return 0, ErrIllegalBase
	}
	mask := uint64(1)<<uint(2*(k-1)) - 1
	return ((leftCode & mask) << 2) | uint64(b), nil
}

// Reverse returns the code of the reversed (not complemented) k-mer.
func Reverse(code uint64, k int) (c uint64) {
	for i := 0; i < k; i++ {
		c <<= 2
		c |= code & 3
		code >>= 2
	}
	return
}

// Complement returns the code of the complemented (not reversed) k-mer,
// applying complement(x) = x XOR 2 to every 2-bit base.
func Complement(code uint64, k int) uint64 {
	mask := uint64(1)<<uint(2*k) - 1
	return (code ^ 0xAAAAAAAAAAAAAAAA) & mask
}

// RevComp returns the code of the reverse complement of the k-mer.
func RevComp(code uint64, k int) (c uint64) {
	comp := Complement(code, k)
	for i := 0; i < k; i++ {
		c <<= 2
		c |= comp & 3
		comp >>= 2
	}
	return
}

// Canonical returns min(code, RevComp(code, k)).
func Canonical(code uint64, k int) uint64 {
	rc := RevComp(code, k)
	if rc < code {
		return rc
	}
	return code
}

// Decode converts a code back into its k-mer bytes.
func Decode(code uint64, k int) []byte {
	kmer := make([]byte, k)
	for i := 0; i < k; i++ {
		kmer[k-1-i] = bit2base[code&3]
		code >>= 2
	}
	return kmer
}

// KmerCode pairs a packed k-mer with its length.
type KmerCode struct {
	Code uint64
	K    int
}

// NewKmerCode encodes a raw k-mer.
func NewKmerCode(kmer []byte) (KmerCode, error) {
	code, err := Encode(kmer)
	if err != nil {
		return KmerCode{}, err
	}
	return KmerCode{code, len(kmer)}, nil
}

// Equal reports whether two KmerCodes share the same k and code.
func (kcode KmerCode) Equal(other KmerCode) bool {
	return kcode.K == other.K && kcode.Code == other.Code
}

// Rev returns the KmerCode of the reversed k-mer.
func (kcode KmerCode) Rev() KmerCode {
	return KmerCode{Reverse(kcode.Code, kcode.K), kcode.K}
}

// Comp returns the KmerCode of the complemented k-mer.
func (kcode KmerCode) Comp() KmerCode {
	return KmerCode{Complement(kcode.Code, kcode.K), kcode.K}
}

// RevComp returns the KmerCode of the reverse complement.
func (kcode KmerCode) RevComp() KmerCode {
	return KmerCode{RevComp(kcode.Code, kcode.K), kcode.K}
}

// Canonical returns the canonical (lexicographically smaller of self/RevComp)
// KmerCode.
func (kcode KmerCode) Canonical() KmerCode {
	rc := kcode.RevComp()
	if rc.Code < kcode.Code {
		return rc
	}
	return kcode
}

// Bytes returns the k-mer as a byte slice.
func (kcode KmerCode) Bytes() []byte {
	return Decode(kcode.Code, kcode.K)
}

// String returns the k-mer as a string.
func (kcode KmerCode) String() string {
	return string(Decode(kcode.Code, kcode.K))
}
