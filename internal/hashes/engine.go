// Package hashes computes the file content digests that feed the trust
// database. Two computations of the same MD5 digest are available: the
// standard library implementation and an independent from-scratch one.
// The independent digest exists solely to detect compromise of the
// standard implementation: on healthy input the two always agree, and
// any divergence on the same byte stream is a tamper signal in its own
// right.
package hashes

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// chunkSize bounds the read buffer so memory use stays constant
// regardless of file size.
const chunkSize = 64 * 1024

// SumReader computes the MD5 digest of everything readable from r using
// the standard library implementation. Input is consumed in bounded
// chunks.
func SumReader(r io.Reader) (string, error) {
	h := md5.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("failed to read stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile computes the MD5 digest of the file at path. A path that
// cannot be opened or read yields an error that callers are expected to
// treat as "no digest available", not as fatal.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	digest, err := SumReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return digest, nil
}

// SumBytes computes the MD5 digest of b using the standard library
// implementation.
func SumBytes(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// VerifyPair computes both the standard and the independent digest of
// the file at path and reports whether they diverge. Divergence means
// one of the two MD5 implementations is lying about the same bytes.
func VerifyPair(path string) (std, indep string, diverged bool, err error) {
	std, err = SumFile(path)
	if err != nil {
		return "", "", false, err
	}
	indep, err = IndependentSumFile(path)
	if err != nil {
		return "", "", false, err
	}
	return std, indep, std != indep, nil
}
