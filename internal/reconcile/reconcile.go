// Package reconcile diffs two generations of package metadata: the
// stored trust database (generation N) against the package system's
// current records (generation N+1). The diff is what turns a package
// index refresh into targeted re-verification work instead of a full
// filesystem rescan.
package reconcile

import (
	"log/slog"
	"os"

	"github.com/blackwell-systems/debtrust/internal/dpkg"
	"github.com/blackwell-systems/debtrust/internal/hashdb"
)

// Result holds the four disjoint outcome sets of a reconciliation.
type Result struct {
	// Added: (filename, package) pairs new in the current generation
	// whose file exists on disk.
	Added []dpkg.Record

	// Removed: stored records absent from the current generation whose
	// file is also gone from disk.
	Removed []*hashdb.FileRecord

	// Changed: current records whose (filename, digest, package)
	// triple does not match the stored generation, file on disk.
	Changed []dpkg.Record

	// URIChanged: packages whose resolvable source URI differs from
	// the stored one.
	URIChanged []string

	// Disappeared: packages with no resolvable source at all whose
	// files are still present.
	Disappeared []string
}

// Resolver looks up a package's current source URI.
type Resolver interface {
	ResolveSourceURI(pkg string) (string, bool)
}

// FileExists is the disk-existence check used by Diff. Variable so
// tests can substitute a fake filesystem.
var FileExists = func(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode().IsRegular()
}

type pair struct{ file, pkg string }

// Diff classifies the differences between the stored database and the
// current metadata records. Existence on disk takes precedence over
// metadata absence: a stored record whose file survives is only logged,
// never removed, since metadata can be incomplete.
func Diff(db *hashdb.DB, current []dpkg.Record, resolver Resolver, logger *slog.Logger) *Result {
	if logger == nil {
		logger = slog.Default()
	}
	res := &Result{}

	currentPairs := make(map[pair]bool, len(current))
	currentTriples := make(map[pair]string, len(current))
	for _, rec := range current {
		key := pair{hashdb.Normalize(rec.Filename), rec.Package}
		currentPairs[key] = true
		if rec.Digest != "" {
			currentTriples[key] = rec.Digest
		}
	}

	stored := db.All()
	storedPairs := make(map[pair]bool, len(stored))
	removedPkgFiles := make(map[string]int)
	pkgFiles := make(map[string]int)
	for _, rec := range stored {
		key := pair{rec.Filename, rec.Package}
		storedPairs[key] = true
		pkgFiles[rec.Package]++

		if currentPairs[key] {
			continue
		}
		if FileExists(rec.Filename) {
			logger.Info("record absent from current metadata but file still on disk, keeping",
				"filename", rec.Filename, "package", rec.Package)
			continue
		}
		res.Removed = append(res.Removed, rec)
		removedPkgFiles[rec.Package]++
	}

	for _, rec := range current {
		key := pair{hashdb.Normalize(rec.Filename), rec.Package}
		if !storedPairs[key] {
			if FileExists(key.file) {
				res.Added = append(res.Added, rec)
			}
			continue
		}
		if rec.Digest == "" {
			logger.Debug("current record carries no digest, not flagging",
				"filename", key.file, "package", rec.Package)
			continue
		}
		storedRec := db.Get(key.file)
		if storedRec != nil && storedRec.HashRecorded == rec.Digest {
			continue
		}
		if FileExists(key.file) {
			res.Changed = append(res.Changed, rec)
		}
	}

	// Source location drift, per distinct (package, storedUri) pair.
	seenPkgURI := make(map[pair]bool)
	flaggedURIChange := make(map[string]bool)
	flaggedDisappear := make(map[string]bool)
	changedPairs := make(map[pair]bool, len(res.Changed))
	for _, rec := range res.Changed {
		changedPairs[pair{hashdb.Normalize(rec.Filename), rec.Package}] = true
	}
	for _, rec := range stored {
		if rec.Package == "" || rec.SourceURI == "" {
			continue
		}
		key := pair{rec.SourceURI, rec.Package}
		if seenPkgURI[key] {
			continue
		}
		seenPkgURI[key] = true

		uri, ok := resolver.ResolveSourceURI(rec.Package)
		switch {
		case ok && uri != rec.SourceURI:
			if !flaggedURIChange[rec.Package] {
				flaggedURIChange[rec.Package] = true
				res.URIChanged = append(res.URIChanged, rec.Package)
				logger.Info("package source uri changed", "package", rec.Package, "old", rec.SourceURI, "new", uri)
			}
		case !ok:
			// Fully removed packages are already covered by Removed.
			if removedPkgFiles[rec.Package] >= pkgFiles[rec.Package] {
				continue
			}
			if !flaggedDisappear[rec.Package] {
				flaggedDisappear[rec.Package] = true
				res.Disappeared = append(res.Disappeared, rec.Package)
				logger.Warn("package source entry vanished", "package", rec.Package)
			}
		}
	}

	// Files of uri-changed packages join the changed set for
	// re-verification against the new source.
	for _, pkg := range res.URIChanged {
		for _, rec := range db.MatchPackages(pkg) {
			key := pair{rec.Filename, rec.Package}
			if changedPairs[key] || !FileExists(rec.Filename) {
				continue
			}
			changedPairs[key] = true
			res.Changed = append(res.Changed, dpkg.Record{
				Filename: rec.Filename,
				Package:  rec.Package,
				Digest:   rec.HashRecorded,
			})
		}
	}

	return res
}
