package hashes

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// RFC 1321 appendix test suite values.
var md5Vectors = []struct {
	in   string
	want string
}{
	{"", "d41d8cd98f00b204e9800998ecf8427e"},
	{"a", "0cc175b9c0f1b6a831c399e269772661"},
	{"abc", "900150983cd24fb0d6963f7d28e17f72"},
	{"message digest", "f96b697d7cb7938d525a2f31aaf161d0"},
	{"abcdefghijklmnopqrstuvwxyz", "c3fcd3d76192e4007dfb496cca67e13b"},
	{"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789", "d174ab98d277d9f5a5611c2c9f419d9f"},
	{"12345678901234567890123456789012345678901234567890123456789012345678901234567890", "57edf4a22be3c955ac49da2e2107b67a"},
}

func TestSumBytes_Vectors(t *testing.T) {
	for _, tc := range md5Vectors {
		if got := SumBytes([]byte(tc.in)); got != tc.want {
			t.Errorf("SumBytes(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestIndependentSumBytes_Vectors(t *testing.T) {
	for _, tc := range md5Vectors {
		if got := IndependentSumBytes([]byte(tc.in)); got != tc.want {
			t.Errorf("IndependentSumBytes(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

// TestImplementationsAgree exercises inputs that straddle block and
// padding boundaries: 55, 56, 63, 64, 65 bytes and several chunk sizes
// beyond the read buffer.
func TestImplementationsAgree(t *testing.T) {
	sizes := []int{0, 1, 55, 56, 57, 63, 64, 65, 127, 128, chunkSize - 1, chunkSize, chunkSize + 1, 3*chunkSize + 17}
	for _, size := range sizes {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i * 31)
		}
		std, err := SumReader(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("SumReader(%d bytes) failed: %v", size, err)
		}
		indep, err := IndependentSumReader(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("IndependentSumReader(%d bytes) failed: %v", size, err)
		}
		if std != indep {
			t.Errorf("implementations diverge at %d bytes: standard %s, independent %s", size, std, indep)
		}
	}
}

func TestIndependentStreaming_SplitWrites(t *testing.T) {
	data := []byte(strings.Repeat("debtrust", 1000))
	want := SumBytes(data)

	st := newIndepState()
	for _, n := range []int{1, 7, 63, 64, 100, len(data)} {
		if len(data) == 0 {
			break
		}
		if n > len(data) {
			n = len(data)
		}
		st.Write(data[:n])
		data = data[n:]
	}
	st.Write(data)
	sum := st.sum()
	got := hex.EncodeToString(sum[:])
	if got != want {
		t.Errorf("split writes digest = %s, want %s", got, want)
	}
}

// TestIndependentStreaming_BufferedTailRetained writes short slices
// that never fill a whole block, so every Write after the first lands
// entirely in the internal buffer. The buffered bytes must survive
// until finalization pads them out.
func TestIndependentStreaming_BufferedTailRetained(t *testing.T) {
	pieces := [][]byte{[]byte("ab"), []byte("c"), []byte("defgh"), []byte("ij")}
	var whole []byte
	st := newIndepState()
	for _, p := range pieces {
		st.Write(p)
		whole = append(whole, p...)
	}
	sum := st.sum()
	got := hex.EncodeToString(sum[:])
	if want := SumBytes(whole); got != want {
		t.Errorf("buffered tail digest = %s, want %s", got, want)
	}
}

func TestSumFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	got, err := SumFile(path)
	if err != nil {
		t.Fatalf("SumFile failed: %v", err)
	}
	if got != "900150983cd24fb0d6963f7d28e17f72" {
		t.Errorf("SumFile = %s, want abc digest", got)
	}
}

func TestSumFile_Unreadable(t *testing.T) {
	if _, err := SumFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("SumFile on a missing path should return an error")
	}
}

func TestVerifyPair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("message digest"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	std, indep, diverged, err := VerifyPair(path)
	if err != nil {
		t.Fatalf("VerifyPair failed: %v", err)
	}
	if diverged {
		t.Errorf("VerifyPair reported divergence: standard %s, independent %s", std, indep)
	}
	if std != "f96b697d7cb7938d525a2f31aaf161d0" {
		t.Errorf("standard digest = %s", std)
	}
}
