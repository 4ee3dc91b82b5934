// Package dpkg reads the platform package system's own metadata: the
// per-package md5sums files under the dpkg info directory plus the
// conffile stanzas of the global status file. This core only ever reads
// that metadata, never writes it.
package dpkg

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultAdminDir is where dpkg keeps its database on Debian systems.
const DefaultAdminDir = "/var/lib/dpkg"

// Record is one (filename, package, recorded digest) entry from the
// package system. Digest is empty for conffile records, whose content
// is expected to drift from the shipped version.
type Record struct {
	Filename string
	Package  string
	Digest   string
}

// InfoProvider lists the file digests the package system recorded at
// install time.
type InfoProvider interface {
	ListRecordedHashes() ([]Record, error)
}

// FSProvider reads dpkg metadata from an admin directory on disk.
type FSProvider struct {
	AdminDir string
	Log      *slog.Logger
}

// NewFSProvider returns a provider over adminDir, defaulting to the
// standard dpkg location.
func NewFSProvider(adminDir string, logger *slog.Logger) *FSProvider {
	if adminDir == "" {
		adminDir = DefaultAdminDir
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FSProvider{AdminDir: adminDir, Log: logger}
}

// ListRecordedHashes reads every info/*.md5sums file plus the conffile
// list from the status file. Unreadable individual files are logged and
// skipped; only a missing info directory is an error.
func (p *FSProvider) ListRecordedHashes() ([]Record, error) {
	infoDir := filepath.Join(p.AdminDir, "info")
	paths, err := filepath.Glob(filepath.Join(infoDir, "*.md5sums"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob %s: %w", infoDir, err)
	}
	if _, statErr := os.Stat(infoDir); statErr != nil {
		return nil, fmt.Errorf("dpkg info directory unreadable: %w", statErr)
	}

	var records []Record
	for _, path := range paths {
		recs, err := parseMD5SumsFile(path)
		if err != nil {
			p.Log.Warn("skipping unreadable md5sums file", "path", path, "error", err)
			continue
		}
		records = append(records, recs...)
	}

	conffiles, err := p.listConffiles()
	if err != nil {
		p.Log.Warn("skipping conffile records", "error", err)
	} else {
		records = append(records, conffiles...)
	}
	return records, nil
}

// packageFromInfoFile strips the .md5sums suffix and any multiarch
// qualifier: "libc6:amd64.md5sums" -> "libc6".
func packageFromInfoFile(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".md5sums")
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[:i]
	}
	return name
}

func parseMD5SumsFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pkg := packageFromInfoFile(path)
	var records []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 || len(fields[0]) != 32 {
			continue
		}
		records = append(records, Record{
			Filename: "/" + strings.TrimLeft(strings.TrimSpace(fields[1]), "/"),
			Package:  pkg,
			Digest:   fields[0],
		})
	}
	return records, sc.Err()
}

// listConffiles parses the Conffiles stanzas of the status file. Each
// continuation line is " /path digest"; the digest is deliberately not
// carried over, conffiles are expected to be edited locally.
func (p *FSProvider) listConffiles() ([]Record, error) {
	f, err := os.Open(filepath.Join(p.AdminDir, "status"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	var pkg string
	inConffiles := false
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "Package:"):
			pkg = strings.TrimSpace(strings.TrimPrefix(line, "Package:"))
			inConffiles = false
		case strings.HasPrefix(line, "Conffiles:"):
			inConffiles = true
		case strings.HasPrefix(line, " "):
			if !inConffiles || pkg == "" {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 1 {
				continue
			}
			records = append(records, Record{Filename: fields[0], Package: pkg})
		default:
			inConffiles = false
		}
	}
	return records, sc.Err()
}
