package hashes

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Independent MD5 implementation, written directly from RFC 1321 and
// deliberately sharing no code with crypto/md5. It is the second opinion
// used to detect tampering with the standard implementation, so keeping
// it separate from the stdlib is the whole point: a third-party digest
// library would be just another implementation to trust, not a check.

// indepState is a streaming MD5 computation.
type indepState struct {
	s   [4]uint32
	buf [64]byte
	n   int
	len uint64
}

// sineTable holds floor(abs(sin(i+1)) * 2^32) for i in 0..63 (RFC 1321
// step 4).
var sineTable = [64]uint32{
	0xd76aa478, 0xe8c7b756, 0x242070db, 0xc1bdceee,
	0xf57c0faf, 0x4787c62a, 0xa8304613, 0xfd469501,
	0x698098d8, 0x8b44f7af, 0xffff5bb1, 0x895cd7be,
	0x6b901122, 0xfd987193, 0xa679438e, 0x49b40821,
	0xf61e2562, 0xc040b340, 0x265e5a51, 0xe9b6c7aa,
	0xd62f105d, 0x02441453, 0xd8a1e681, 0xe7d3fbc8,
	0x21e1cde6, 0xc33707d6, 0xf4d50d87, 0x455a14ed,
	0xa9e3e905, 0xfcefa3f8, 0x676f02d9, 0x8d2a4c8a,
	0xfffa3942, 0x8771f681, 0x6d9d6122, 0xfde5380c,
	0xa4beea44, 0x4bdecfa9, 0xf6bb4b60, 0xbebfbc70,
	0x289b7ec6, 0xeaa127fa, 0xd4ef3085, 0x04881d05,
	0xd9d4d039, 0xe6db99e5, 0x1fa27cf8, 0xc4ac5665,
	0xf4292244, 0x432aff97, 0xab9423a7, 0xfc93a039,
	0x655b59c3, 0x8f0ccc92, 0xffeff47d, 0x85845dd1,
	0x6fa87e4f, 0xfe2ce6e0, 0xa3014314, 0x4e0811a1,
	0xf7537e82, 0xbd3af235, 0x2ad7d2bb, 0xeb86d391,
}

// shiftTable holds the per-round left-rotation amounts.
var shiftTable = [64]uint{
	7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22,
	5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20,
	4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23,
	6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21,
}

func newIndepState() *indepState {
	return &indepState{
		s: [4]uint32{0x67452301, 0xefcdab89, 0x98badcfe, 0x10325476},
	}
}

func rotl(x uint32, n uint) uint32 {
	return x<<n | x>>(32-n)
}

// block consumes one 64-byte block.
func (st *indepState) block(p []byte) {
	var m [16]uint32
	for i := 0; i < 16; i++ {
		j := i * 4
		m[i] = uint32(p[j]) | uint32(p[j+1])<<8 | uint32(p[j+2])<<16 | uint32(p[j+3])<<24
	}

	a, b, c, d := st.s[0], st.s[1], st.s[2], st.s[3]

	for i := 0; i < 64; i++ {
		var f uint32
		var g int
		switch {
		case i < 16:
			f = (b & c) | (^b & d)
			g = i
		case i < 32:
			f = (d & b) | (^d & c)
			g = (5*i + 1) % 16
		case i < 48:
			f = b ^ c ^ d
			g = (3*i + 5) % 16
		default:
			f = c ^ (b | ^d)
			g = (7 * i) % 16
		}
		a, d, c, b = d, c, b, b+rotl(a+f+sineTable[i]+m[g], shiftTable[i])
	}

	st.s[0] += a
	st.s[1] += b
	st.s[2] += c
	st.s[3] += d
}

func (st *indepState) Write(p []byte) (int, error) {
	n := len(p)
	st.len += uint64(n)

	if st.n > 0 {
		take := copy(st.buf[st.n:], p)
		st.n += take
		p = p[take:]
		if st.n == 64 {
			st.block(st.buf[:])
			st.n = 0
		}
		if len(p) == 0 {
			// Everything landed in the buffer; the tail copy below
			// would clobber st.n.
			return n, nil
		}
	}
	for len(p) >= 64 {
		st.block(p[:64])
		p = p[64:]
	}
	st.n = copy(st.buf[:], p)
	return n, nil
}

// sum finalizes the digest. The state is consumed.
func (st *indepState) sum() [16]byte {
	bitLen := st.len * 8

	// Pad with 0x80 then zeros so the message length becomes 56 mod 64,
	// then append the original bit length little-endian.
	var pad [72]byte
	pad[0] = 0x80
	padLen := 56 - int(st.len%64)
	if padLen <= 0 {
		padLen += 64
	}
	st.Write(pad[:padLen])
	var trailer [8]byte
	for i := 0; i < 8; i++ {
		trailer[i] = byte(bitLen >> (8 * i))
	}
	st.Write(trailer[:])

	var out [16]byte
	for i, v := range st.s {
		out[i*4] = byte(v)
		out[i*4+1] = byte(v >> 8)
		out[i*4+2] = byte(v >> 16)
		out[i*4+3] = byte(v >> 24)
	}
	return out
}

// IndependentSumReader computes the MD5 digest of everything readable
// from r using the independent implementation, reading in bounded
// chunks.
func IndependentSumReader(r io.Reader) (string, error) {
	st := newIndepState()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(st, r, buf); err != nil {
		return "", fmt.Errorf("failed to read stream: %w", err)
	}
	sum := st.sum()
	return hex.EncodeToString(sum[:]), nil
}

// IndependentSumFile computes the independent MD5 digest of the file at
// path. Unreadable paths yield an error the caller treats as "no
// digest".
func IndependentSumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	digest, err := IndependentSumReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return digest, nil
}

// IndependentSumBytes computes the independent MD5 digest of b.
func IndependentSumBytes(b []byte) string {
	st := newIndepState()
	st.Write(b)
	sum := st.sum()
	return hex.EncodeToString(sum[:])
}
