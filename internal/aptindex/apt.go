// Package aptindex resolves a package's current download location from
// the configured apt sources. Absence of a resolvable URI is a normal
// outcome: a package may be installed from a source that is no longer
// configured.
package aptindex

import (
	"log/slog"
	"os/exec"
	"strings"
)

// IndexProvider resolves a package name to its current download URI.
type IndexProvider interface {
	// ResolveSourceURI returns the URI and true, or "" and false when
	// the package has no resolvable source.
	ResolveSourceURI(pkg string) (string, bool)
}

// AptProvider resolves URIs by asking apt itself, the same way an
// operator would. Results are cached for the provider's lifetime (one
// run).
type AptProvider struct {
	Log   *slog.Logger
	cache map[string]string
}

// NewAptProvider returns a provider backed by the apt-get binary.
func NewAptProvider(logger *slog.Logger) *AptProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &AptProvider{Log: logger, cache: make(map[string]string)}
}

// ResolveSourceURI shells out to `apt-get download --print-uris`, which
// prints the candidate URI without downloading anything.
func (p *AptProvider) ResolveSourceURI(pkg string) (string, bool) {
	if uri, ok := p.cache[pkg]; ok {
		return uri, uri != ""
	}

	out, err := exec.Command("apt-get", "download", "--print-uris", pkg).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			p.Log.Debug("no resolvable source", "package", pkg, "stderr", strings.TrimSpace(string(exitErr.Stderr)))
		} else {
			p.Log.Warn("apt-get unavailable", "package", pkg, "error", err)
		}
		p.cache[pkg] = ""
		return "", false
	}

	uri := parsePrintURIs(string(out))
	p.cache[pkg] = uri
	if uri == "" {
		p.Log.Debug("no URI in apt-get output", "package", pkg)
		return "", false
	}
	return uri, true
}

// parsePrintURIs extracts the quoted URI from the first line of
// `apt-get download --print-uris` output:
//
//	'http://deb.debian.org/debian/pool/main/c/coreutils/coreutils_9.1-1_amd64.deb' coreutils_9.1-1_amd64.deb 2896560 SHA256:...
func parsePrintURIs(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "'") {
			continue
		}
		end := strings.IndexByte(line[1:], '\'')
		if end < 0 {
			continue
		}
		return line[1 : 1+end]
	}
	return ""
}

// StaticProvider resolves from a fixed map. Use in tests and for
// reconciliation dry runs.
type StaticProvider map[string]string

func (p StaticProvider) ResolveSourceURI(pkg string) (string, bool) {
	uri, ok := p[pkg]
	return uri, ok && uri != ""
}
