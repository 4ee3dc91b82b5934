// Package deb parses Debian package archives: the outer ar(1) container
// and the tar-formatted control and data members inside it. Parsing is
// streaming: callers can hand it a bounded reader over a byte range and
// never need the whole package in memory.
package deb

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// Magic is the ar(1) global header that opens every Debian package.
	Magic = "!<arch>\n"

	// HeaderSize is the fixed size of every ar member header.
	HeaderSize = 60

	headerEndMarker = "`\n"
)

// ErrBadLayout reports an archive whose first three members are not the
// debian-binary / control / data sequence every valid package carries.
var ErrBadLayout = errors.New("archive is not a three-member debian package")

// Member is the parsed view of one ar container member. Offset is the
// byte position of the member payload relative to the start of the
// parsed range.
type Member struct {
	Name   string
	Size   int64
	Offset int64
}

// ParseHeader decodes one 60-byte ar member header. The textual fields
// are fixed-width: name 16 bytes space-padded, then mtime (12), uid (6),
// gid (6), mode (8), decimal size (10) and the two-byte end marker.
func ParseHeader(b []byte) (name string, size int64, err error) {
	if len(b) < HeaderSize {
		return "", 0, fmt.Errorf("short member header: %d bytes", len(b))
	}
	if string(b[58:60]) != headerEndMarker {
		return "", 0, fmt.Errorf("bad member header end marker %q", b[58:60])
	}

	name = strings.TrimRight(string(b[0:16]), " ")
	// GNU ar appends "/" to member names.
	name = strings.TrimSuffix(name, "/")

	sizeField := strings.TrimSpace(string(b[48:58]))
	size, err = strconv.ParseInt(sizeField, 10, 64)
	if err != nil || size < 0 {
		return "", 0, fmt.Errorf("bad member size field %q", sizeField)
	}
	return name, size, nil
}

// ParseMembers walks the archive readable from r and returns every
// member in order. r must start at the ar magic. Payload bytes are
// skipped with bounded reads, so r may be a lazy source such as a
// network body.
func ParseMembers(r io.Reader) ([]Member, error) {
	var magic [len(Magic)]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read archive magic: %w", err)
	}
	if string(magic[:]) != Magic {
		return nil, fmt.Errorf("bad archive magic %q", magic[:])
	}

	var members []Member
	offset := int64(len(Magic))
	var hdr [HeaderSize]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF {
				return members, nil
			}
			if err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("truncated member header at offset %d", offset)
			}
			return nil, fmt.Errorf("failed to read member header: %w", err)
		}
		offset += HeaderSize

		name, size, err := ParseHeader(hdr[:])
		if err != nil {
			return nil, err
		}
		members = append(members, Member{Name: name, Size: size, Offset: offset})

		// Payloads are padded to even length.
		skip := size
		if size%2 == 1 {
			skip++
		}
		n, err := io.CopyN(io.Discard, r, skip)
		offset += n
		if err != nil {
			if err == io.EOF && n == size {
				// Final odd-sized member may legitimately omit the pad byte.
				return members, nil
			}
			return nil, fmt.Errorf("member %s: declared size %d exceeds available bytes", name, size)
		}
	}
}

// ValidateLayout checks that members describes a well-formed Debian
// package: debian-binary first, then a control.tar member, then a
// data.tar member. Anything else is a parse failure, not a recoverable
// variant.
func ValidateLayout(members []Member) error {
	if len(members) < 3 {
		return ErrBadLayout
	}
	if members[0].Name != "debian-binary" {
		return ErrBadLayout
	}
	if !strings.HasPrefix(members[1].Name, "control.tar") {
		return ErrBadLayout
	}
	if !strings.HasPrefix(members[2].Name, "data.tar") {
		return ErrBadLayout
	}
	return nil
}
