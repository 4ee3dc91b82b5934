// Package verify orchestrates the verification workflow: pick the
// target file set, recompute whichever digests are requested, fold the
// results into the trust database and stream one verdict symbol per
// file in traversal order.
package verify

import (
	"log/slog"
	"os"
	"sort"

	"github.com/blackwell-systems/debtrust/internal/aptindex"
	"github.com/blackwell-systems/debtrust/internal/dpkg"
	"github.com/blackwell-systems/debtrust/internal/hashdb"
	"github.com/blackwell-systems/debtrust/internal/hashes"
	"github.com/blackwell-systems/debtrust/internal/output"
	"github.com/blackwell-systems/debtrust/internal/reconcile"
	"github.com/blackwell-systems/debtrust/internal/scanner"
	"github.com/blackwell-systems/debtrust/internal/trust"
)

// Options selects which digest sources a check consults.
type Options struct {
	// Independent also computes the tamper-detection digest.
	Independent bool
	// Online fetches the recorded digests from each package's source
	// archive (metadata-only, two ranged requests per URI).
	Online bool
	// OnlineFull downloads each package completely and recomputes
	// digests from its data payload.
	OnlineFull bool
	// Force recomputes and rewrites records even when the stored
	// primary digest still matches the on-disk content.
	Force bool
}

// Summary accumulates the outcome of one run.
type Summary struct {
	Checked    int
	Changed    int
	Verdicts   [5]int
	Divergence int
}

// OnlineSource fetches authoritative digests for a package URI.
type OnlineSource interface {
	RecordedDigests(uri string) (map[string]string, bool)
	PackageDigests(uri string) (map[string]string, bool)
}

// Runner drives one verification run. It exclusively owns the trust
// database until the run ends.
type Runner struct {
	DB     *hashdb.DB
	Index  aptindex.IndexProvider
	Online OnlineSource
	Stream *output.Stream
	Log    *slog.Logger

	// CheckpointEvery triggers an out-of-band snapshot after that many
	// accumulated changes. Zero disables checkpointing.
	CheckpointEvery int
	CheckpointPath  string

	recorded map[string]dpkg.Record
	summary  Summary
}

// NewRunner wires a Runner over the loaded database and the current
// package metadata. Later metadata records for the same filename win;
// the collision is logged because conffile and md5sums entries can
// overlap.
func NewRunner(db *hashdb.DB, metadata []dpkg.Record, index aptindex.IndexProvider, onlineSrc OnlineSource, stream *output.Stream, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if stream == nil {
		stream = output.NewStream()
	}
	recorded := make(map[string]dpkg.Record, len(metadata))
	for _, rec := range metadata {
		key := hashdb.Normalize(rec.Filename)
		if prev, ok := recorded[key]; ok && prev.Package != rec.Package {
			logger.Debug("metadata filename collision, keeping latest",
				"filename", key, "dropped", prev.Package, "kept", rec.Package)
		}
		if prev, ok := recorded[key]; ok && rec.Digest == "" && prev.Digest != "" {
			// Keep the digest-bearing side of a conffile/md5sums overlap.
			rec.Digest = prev.Digest
		}
		recorded[key] = rec
	}
	return &Runner{
		DB:       db,
		Index:    index,
		Online:   onlineSrc,
		Stream:   stream,
		Log:      logger,
		recorded: recorded,
	}
}

// Summary returns the accumulated run outcome.
func (r *Runner) Summary() Summary {
	return r.summary
}

// CheckPath verifies a single file and folds the result into the
// database.
func (r *Runner) CheckPath(path string, opts Options) {
	path = hashdb.Normalize(path)
	stored := r.DB.Get(path)
	firstSeen := stored == nil

	primary, err := hashes.SumFile(path)
	if err != nil {
		// Unreadable files keep whatever digests are already known.
		r.Log.Warn("no local digest", "path", path, "error", err)
	}

	// Unchanged content needs no rewrite unless extra sources were
	// requested or a refresh is forced.
	if stored != nil && primary != "" && stored.HashPrimary == primary &&
		!opts.Force && !opts.Independent && !opts.Online && !opts.OnlineFull {
		r.finish(stored, false, false)
		return
	}

	update := &hashdb.FileRecord{Filename: path, HashPrimary: primary}

	if opts.Independent && primary != "" {
		indep, err := hashes.IndependentSumFile(path)
		if err != nil {
			r.Log.Warn("no independent digest", "path", path, "error", err)
		} else {
			update.HashIndependent = indep
			if indep != primary {
				r.summary.Divergence++
				r.Log.Error("digest implementations diverge on identical input",
					"path", path, "standard", primary, "independent", indep)
			}
		}
	}

	meta, hasMeta := r.recorded[path]
	if hasMeta {
		update.Package = meta.Package
		update.HashRecorded = meta.Digest
	}

	pkg := update.Package
	if pkg == "" && stored != nil {
		pkg = stored.Package
	}
	if (opts.Online || opts.OnlineFull) && pkg != "" {
		r.fetchOnline(update, pkg, path, opts)
	}

	merged := r.DB.Merge(update)
	r.finish(merged, firstSeen, true)
}

// fetchOnline resolves the package's current source URI and pulls the
// authoritative digest for path from it. Failures degrade to local
// evidence only.
func (r *Runner) fetchOnline(update *hashdb.FileRecord, pkg, path string, opts Options) {
	if r.Index == nil || r.Online == nil {
		return
	}
	uri, ok := r.Index.ResolveSourceURI(pkg)
	if !ok {
		r.Log.Debug("no resolvable source for online check", "package", pkg)
		return
	}
	update.SourceURI = uri

	if opts.OnlineFull {
		if digests, ok := r.Online.PackageDigests(uri); ok {
			if digest, found := digests[path]; found {
				update.HashOnline = digest
				return
			}
			r.Log.Warn("file missing from package data payload", "path", path, "uri", uri)
		}
		return
	}
	if digests, ok := r.Online.RecordedDigests(uri); ok {
		if digest, found := digests[path]; found {
			update.HashOnline = digest
		} else {
			r.Log.Debug("file not listed in package md5sums", "path", path, "uri", uri)
		}
	}
}

// finish evaluates the verdict, emits its symbol and advances the
// change counter and checkpoint.
func (r *Runner) finish(rec *hashdb.FileRecord, firstSeen, updated bool) {
	level, _ := trust.Evaluate(rec, firstSeen)
	r.summary.Checked++
	r.summary.Verdicts[level]++
	r.Stream.Emit(trust.Symbol(level))
	if level == trust.Mismatch {
		r.Log.Warn("digest mismatch", "path", rec.Filename, "package", rec.Package)
	}
	if updated {
		r.bumpChanges(1)
	}
}

func (r *Runner) bumpChanges(n int) {
	if n <= 0 {
		return
	}
	before := r.summary.Changed
	r.summary.Changed += n
	if r.CheckpointEvery <= 0 || r.CheckpointPath == "" {
		return
	}
	if before/r.CheckpointEvery != r.summary.Changed/r.CheckpointEvery {
		if err := r.DB.Checkpoint(r.CheckpointPath); err != nil {
			r.Log.Warn("checkpoint failed", "path", r.CheckpointPath, "error", err)
		} else {
			r.Log.Info("checkpoint written", "path", r.CheckpointPath, "changes", r.summary.Changed)
		}
	}
}

// CheckPaths verifies an explicit list of files.
func (r *Runner) CheckPaths(paths []string, opts Options) {
	for _, path := range paths {
		r.CheckPath(path, opts)
	}
}

// CheckDirectory verifies every regular file under root.
func (r *Runner) CheckDirectory(root string, sameDevice bool, opts Options) error {
	return scanner.Walk(root, scanner.Options{SameDevice: sameDevice}, r.Log, func(path string) error {
		r.CheckPath(path, opts)
		return nil
	})
}

// CheckPackage verifies every file attributed to pkg, in the stored
// database or in the current package metadata.
func (r *Runner) CheckPackage(pkg string, opts Options) {
	targets := make(map[string]bool)
	for _, rec := range r.DB.MatchPackages(pkg) {
		targets[rec.Filename] = true
	}
	for path, meta := range r.recorded {
		if meta.Package == pkg {
			targets[path] = true
		}
	}
	if len(targets) == 0 {
		r.Log.Warn("no files known for package", "package", pkg)
		return
	}
	for _, path := range sortedKeys(targets) {
		r.CheckPath(path, opts)
	}
}

// ApplyReconciliation turns a metadata diff into targeted work: added
// and changed files are verified, removed records are dropped.
func (r *Runner) ApplyReconciliation(res *reconcile.Result, opts Options) {
	for _, rec := range res.Removed {
		if r.DB.Remove(rec.Filename) {
			r.Log.Info("removed stale record", "filename", rec.Filename, "package", rec.Package)
			r.bumpChanges(1)
		}
	}
	for _, rec := range res.Added {
		r.CheckPath(rec.Filename, opts)
	}
	for _, rec := range res.Changed {
		r.CheckPath(rec.Filename, opts)
	}
}

// Clean prunes dead records: entries whose file no longer exists on
// disk and which current package metadata no longer claims. It returns
// the dead count plus the duplicates already collapsed at load time.
func (r *Runner) Clean() (dead, duplicates int) {
	for _, rec := range r.DB.All() {
		if fileExists(rec.Filename) {
			continue
		}
		if _, claimed := r.recorded[rec.Filename]; claimed {
			continue
		}
		r.DB.Remove(rec.Filename)
		r.Log.Info("pruned dead record", "filename", rec.Filename, "package", rec.Package)
		dead++
	}
	r.bumpChanges(dead)
	return dead, r.DB.DuplicatesDropped
}

// VerifyOnline re-checks every stored record that carries a package
// against its source archive. Used by the bulk online re-check.
func (r *Runner) VerifyOnline(full bool, opts Options) {
	opts.Online = !full
	opts.OnlineFull = full
	for _, rec := range r.DB.All() {
		if rec.Package == "" {
			continue
		}
		r.CheckPath(rec.Filename, opts)
	}
}

func fileExists(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode().IsRegular()
}

// sortedKeys keeps package-target traversal deterministic; symbol
// order is part of the observable contract.
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
