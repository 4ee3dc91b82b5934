package verify

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/blackwell-systems/debtrust/internal/aptindex"
	"github.com/blackwell-systems/debtrust/internal/dpkg"
	"github.com/blackwell-systems/debtrust/internal/hashdb"
	"github.com/blackwell-systems/debtrust/internal/hashes"
	"github.com/blackwell-systems/debtrust/internal/output"
	"github.com/blackwell-systems/debtrust/internal/reconcile"
)

// stubOnline serves canned digests without touching the network.
type stubOnline struct {
	recorded map[string]map[string]string
	computed map[string]map[string]string
}

func (s stubOnline) RecordedDigests(uri string) (map[string]string, bool) {
	d, ok := s.recorded[uri]
	return d, ok
}

func (s stubOnline) PackageDigests(uri string) (map[string]string, bool) {
	d, ok := s.computed[uri]
	return d, ok
}

func bufferedStream(buf *bytes.Buffer) *output.Stream {
	s := output.NewStream()
	s.SetWriter(buf)
	return s
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestCheckPath_RecordedAgreement(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "demo", "installed content\n")

	metadata := []dpkg.Record{{Filename: path, Package: "demo", Digest: hashes.SumBytes([]byte("installed content\n"))}}
	var buf bytes.Buffer
	r := NewRunner(hashdb.New(nil), metadata, nil, nil, bufferedStream(&buf), nil)

	r.CheckPath(path, Options{})

	if got := buf.String(); got != "*" {
		t.Errorf("symbol = %q, want %q", got, "*")
	}
	sum := r.Summary()
	if sum.Checked != 1 || sum.Verdicts[3] != 1 {
		t.Errorf("summary = %+v", sum)
	}
	rec := r.DB.Get(path)
	if rec == nil || rec.Package != "demo" || rec.HashRecorded == "" {
		t.Errorf("stored record = %+v", rec)
	}
}

func TestCheckPath_TamperDetected(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "demo", "installed content\n")

	metadata := []dpkg.Record{{Filename: path, Package: "demo", Digest: hashes.SumBytes([]byte("installed content\n"))}}
	var buf bytes.Buffer
	r := NewRunner(hashdb.New(nil), metadata, nil, nil, bufferedStream(&buf), nil)

	r.CheckPath(path, Options{})
	if err := os.WriteFile(path, []byte("tampered content\n"), 0644); err != nil {
		t.Fatalf("failed to mutate fixture: %v", err)
	}
	r.CheckPath(path, Options{})

	if got := buf.String(); got != "*!" {
		t.Errorf("symbols = %q, want %q", got, "*!")
	}
	sum := r.Summary()
	if sum.Verdicts[0] != 1 {
		t.Errorf("mismatch verdicts = %d, want 1", sum.Verdicts[0])
	}
}

func TestCheckPath_FirstSeenThenLocal(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "orphan", "no package claims this\n")

	var buf bytes.Buffer
	r := NewRunner(hashdb.New(nil), nil, nil, nil, bufferedStream(&buf), nil)

	// First observation of an unclaimed file is not self-corroborating.
	r.CheckPath(path, Options{})
	// Second pass has the stored digest to compare against.
	r.CheckPath(path, Options{})

	if got := buf.String(); got != "?." {
		t.Errorf("symbols = %q, want %q", got, "?.")
	}
}

func TestCheckPath_UnreadableKeepsRunning(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(hashdb.New(nil), nil, nil, nil, bufferedStream(&buf), nil)

	r.CheckPath(filepath.Join(t.TempDir(), "missing"), Options{})

	if got := buf.String(); got != "?" {
		t.Errorf("symbol = %q, want %q", got, "?")
	}
	if sum := r.Summary(); sum.Checked != 1 {
		t.Errorf("Checked = %d, want 1", sum.Checked)
	}
}

func TestCheckPath_OnlineVerifies(t *testing.T) {
	dir := t.TempDir()
	content := "verified content\n"
	path := writeFixture(t, dir, "demo", content)
	digest := hashes.SumBytes([]byte(content))

	metadata := []dpkg.Record{{Filename: path, Package: "demo", Digest: digest}}
	index := aptindex.StaticProvider{"demo": "http://mirror/demo.deb"}
	online := stubOnline{recorded: map[string]map[string]string{
		"http://mirror/demo.deb": {path: digest},
	}}

	var buf bytes.Buffer
	r := NewRunner(hashdb.New(nil), metadata, index, online, bufferedStream(&buf), nil)
	r.CheckPath(path, Options{Online: true})

	if got := buf.String(); got != "+" {
		t.Errorf("symbol = %q, want %q", got, "+")
	}
	rec := r.DB.Get(path)
	if rec.SourceURI != "http://mirror/demo.deb" {
		t.Errorf("SourceURI = %q", rec.SourceURI)
	}
	if rec.HashOnline != digest {
		t.Errorf("HashOnline = %q", rec.HashOnline)
	}
}

func TestCheckPath_OnlineSourceUnresolvable(t *testing.T) {
	dir := t.TempDir()
	content := "content\n"
	path := writeFixture(t, dir, "demo", content)

	metadata := []dpkg.Record{{Filename: path, Package: "demo", Digest: hashes.SumBytes([]byte(content))}}
	var buf bytes.Buffer
	r := NewRunner(hashdb.New(nil), metadata, aptindex.StaticProvider{}, stubOnline{}, bufferedStream(&buf), nil)
	r.CheckPath(path, Options{Online: true})

	// Degrades to whatever local evidence establishes.
	if got := buf.String(); got != "*" {
		t.Errorf("symbol = %q, want %q", got, "*")
	}
}

func TestCheckPath_SkipsRewriteWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "demo", "stable content\n")

	var buf bytes.Buffer
	r := NewRunner(hashdb.New(nil), nil, nil, nil, bufferedStream(&buf), nil)
	r.CheckPath(path, Options{})
	changedAfterFirst := r.Summary().Changed

	r.CheckPath(path, Options{})
	if r.Summary().Changed != changedAfterFirst {
		t.Errorf("unchanged file bumped the change counter: %d -> %d",
			changedAfterFirst, r.Summary().Changed)
	}

	r.CheckPath(path, Options{Force: true})
	if r.Summary().Changed != changedAfterFirst+1 {
		t.Errorf("forced recheck must rewrite: Changed = %d", r.Summary().Changed)
	}
}

func TestCheckpointing(t *testing.T) {
	dir := t.TempDir()
	checkpoint := filepath.Join(dir, "hashdb.checkpoint")

	var buf bytes.Buffer
	r := NewRunner(hashdb.New(nil), nil, nil, nil, bufferedStream(&buf), nil)
	r.CheckpointEvery = 2
	r.CheckpointPath = checkpoint

	paths := []string{
		writeFixture(t, dir, "a", "aa\n"),
		writeFixture(t, dir, "b", "bb\n"),
		writeFixture(t, dir, "c", "cc\n"),
	}
	r.CheckPaths(paths, Options{})

	if _, err := os.Stat(checkpoint); err != nil {
		t.Errorf("checkpoint not written after %d changes: %v", r.Summary().Changed, err)
	}
}

func TestCheckPackage_Deterministic(t *testing.T) {
	dir := t.TempDir()
	pathB := writeFixture(t, dir, "b", "bb\n")
	pathA := writeFixture(t, dir, "a", "aa\n")

	metadata := []dpkg.Record{
		{Filename: pathB, Package: "demo", Digest: hashes.SumBytes([]byte("bb\n"))},
		{Filename: pathA, Package: "demo", Digest: hashes.SumBytes([]byte("aa\n"))},
	}
	var buf bytes.Buffer
	r := NewRunner(hashdb.New(nil), metadata, nil, nil, bufferedStream(&buf), nil)
	r.CheckPackage("demo", Options{})

	if got := buf.String(); got != "**" {
		t.Errorf("symbols = %q, want %q", got, "**")
	}
	// Both files are in the database now, sorted traversal.
	if r.DB.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.DB.Len())
	}
}

func TestCheckPackage_Unknown(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(hashdb.New(nil), nil, nil, nil, bufferedStream(&buf), nil)
	r.CheckPackage("no-such-package", Options{})
	if buf.Len() != 0 {
		t.Errorf("unknown package emitted symbols: %q", buf.String())
	}
}

func TestApplyReconciliation(t *testing.T) {
	dir := t.TempDir()
	fresh := writeFixture(t, dir, "fresh", "new file\n")

	db := hashdb.New(nil)
	db.Merge(&hashdb.FileRecord{Filename: "/bin/stale", Package: "oldpkg", HashPrimary: "aa"})

	var buf bytes.Buffer
	r := NewRunner(db, nil, nil, nil, bufferedStream(&buf), nil)
	r.ApplyReconciliation(&reconcile.Result{
		Removed: []*hashdb.FileRecord{{Filename: "/bin/stale", Package: "oldpkg"}},
		Added:   []dpkg.Record{{Filename: fresh, Package: "newpkg"}},
	}, Options{})

	if db.Get("/bin/stale") != nil {
		t.Error("removed record still present")
	}
	if db.Get(fresh) == nil {
		t.Error("added file not verified into the database")
	}
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	alive := writeFixture(t, dir, "alive", "still here\n")
	claimed := filepath.Join(dir, "claimed-but-missing")

	storePath := filepath.Join(dir, "hashdb.jsonl")
	content := `{"filename":"` + alive + `","hash_primary":"aa"}
{"filename":"` + alive + `","hash_primary":"bb"}
{"filename":"` + filepath.Join(dir, "dead") + `","hash_primary":"cc"}
{"filename":"` + claimed + `","hash_primary":"dd"}
`
	if err := os.WriteFile(storePath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	db, err := hashdb.Load(storePath, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// The missing-but-claimed file stays: metadata still owns it.
	metadata := []dpkg.Record{{Filename: claimed, Package: "demo", Digest: "dd"}}
	var buf bytes.Buffer
	r := NewRunner(db, metadata, nil, nil, bufferedStream(&buf), nil)

	dead, duplicates := r.Clean()
	if dead != 1 {
		t.Errorf("dead = %d, want 1", dead)
	}
	if duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", duplicates)
	}
	if db.Get(alive) == nil || db.Get(claimed) == nil {
		t.Error("Clean pruned a live or claimed record")
	}
	if db.Len() != 2 {
		t.Errorf("Len = %d, want 2", db.Len())
	}
}

func TestVerifyOnline_Bulk(t *testing.T) {
	dir := t.TempDir()
	content := "bulk content\n"
	path := writeFixture(t, dir, "demo", content)
	digest := hashes.SumBytes([]byte(content))

	db := hashdb.New(nil)
	db.Merge(&hashdb.FileRecord{Filename: path, Package: "demo", HashPrimary: digest, HashRecorded: digest})
	db.Merge(&hashdb.FileRecord{Filename: "/no/package/file", HashPrimary: "aa"})

	index := aptindex.StaticProvider{"demo": "http://mirror/demo.deb"}
	online := stubOnline{computed: map[string]map[string]string{
		"http://mirror/demo.deb": {path: digest},
	}}

	var buf bytes.Buffer
	r := NewRunner(db, nil, index, online, bufferedStream(&buf), nil)
	r.VerifyOnline(true, Options{})

	// Only the package-owning record is re-checked.
	if got := buf.String(); got != "+" {
		t.Errorf("symbols = %q, want %q", got, "+")
	}
	if rec := db.Get(path); rec.HashOnline != digest {
		t.Errorf("HashOnline = %q", rec.HashOnline)
	}
}
