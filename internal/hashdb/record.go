// Package hashdb holds the persistent trust database: one record per
// absolute file path, carrying up to four independently obtained
// digests. The store serializes as sorted JSON lines so two snapshots
// diff cleanly.
package hashdb

import (
	"path/filepath"
)

// FileRecord is one entry in the trust database. Every field except
// Filename is optional; an empty string means the value was never
// observed, which is a normal state rather than an error.
type FileRecord struct {
	// Filename is the normalized absolute path and the unique key.
	Filename string `json:"filename"`

	// Package is the owning package name, when known.
	Package string `json:"package,omitempty"`

	// SourceURI is the download location of the owning package at the
	// time the record was last updated.
	SourceURI string `json:"source_uri,omitempty"`

	// HashPrimary is the digest computed locally with the standard
	// implementation.
	HashPrimary string `json:"hash_primary,omitempty"`

	// HashIndependent is the digest computed by the independent
	// reimplementation. Populated only when tamper-detection mode is
	// requested; it corroborates nothing, it only exposes a compromised
	// standard implementation.
	HashIndependent string `json:"hash_independent,omitempty"`

	// HashRecorded is the digest dpkg recorded at install time.
	HashRecorded string `json:"hash_recorded,omitempty"`

	// HashOnline is the digest recomputed from the authoritative
	// package file fetched from SourceURI.
	HashOnline string `json:"hash_online,omitempty"`
}

// Normalize returns the canonical absolute form under which a path is
// keyed in the database.
func Normalize(path string) string {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err == nil {
			path = abs
		}
	}
	return filepath.Clean(path)
}

// merge copies every populated field of src onto dst, newest value
// wins per field. The filename key is never changed.
func (dst *FileRecord) merge(src *FileRecord) {
	if src.Package != "" {
		dst.Package = src.Package
	}
	if src.SourceURI != "" {
		dst.SourceURI = src.SourceURI
	}
	if src.HashPrimary != "" {
		dst.HashPrimary = src.HashPrimary
	}
	if src.HashIndependent != "" {
		dst.HashIndependent = src.HashIndependent
	}
	if src.HashRecorded != "" {
		dst.HashRecorded = src.HashRecorded
	}
	if src.HashOnline != "" {
		dst.HashOnline = src.HashOnline
	}
}
