package deb

import (
	"archive/tar"
	"bufio"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// RecordedDigest is one (digest, path) pair from a package's md5sums
// control entry. Path is absolute.
type RecordedDigest struct {
	Digest string
	Path   string
}

// OpenMember wraps r with the decompressor implied by the member name
// suffix. Uncompressed members (plain "control.tar") pass through.
func OpenMember(name string, r io.Reader) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", name, err)
		}
		return zr, nil
	case strings.HasSuffix(name, ".xz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", name, err)
		}
		return xr, nil
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", name, err)
		}
		return zr.IOReadCloser(), nil
	case strings.HasSuffix(name, ".tar"):
		return r, nil
	default:
		return nil, fmt.Errorf("member %s: unknown compression", name)
	}
}

// ScanTarEntry streams through a tar archive and returns the content of
// the first entry whose cleaned name matches want. The archive is never
// materialized on disk. A missing entry is an error.
func ScanTarEntry(r io.Reader, want string) ([]byte, error) {
	tr := tar.NewReader(bufio.NewReader(r))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("tar entry %s not found", want)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan tar: %w", err)
		}
		if path.Clean(hdr.Name) == want {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("failed to read tar entry %s: %w", want, err)
			}
			return data, nil
		}
	}
}

// ParseMD5Sums parses the md5sums control entry: one "digest  path" line
// per file, paths relative to the filesystem root without a leading
// slash. Malformed lines are skipped.
func ParseMD5Sums(data []byte) []RecordedDigest {
	var out []RecordedDigest
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 || len(fields[0]) != 32 {
			continue
		}
		out = append(out, RecordedDigest{
			Digest: fields[0],
			Path:   "/" + strings.TrimLeft(strings.TrimSpace(fields[1]), "./"),
		})
	}
	return out
}

// WalkDataTar streams the decompressed data member and calls fn with an
// absolute path and a bounded content reader for every regular file.
// fn must fully consume or ignore the reader before returning.
func WalkDataTar(memberName string, r io.Reader, fn func(path string, content io.Reader) error) error {
	dr, err := OpenMember(memberName, r)
	if err != nil {
		return err
	}
	tr := tar.NewReader(bufio.NewReader(dr))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to scan data member: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := "/" + strings.TrimLeft(path.Clean(hdr.Name), "./")
		if err := fn(name, tr); err != nil {
			return err
		}
	}
}
