package hashdb

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// ErrCorrupt reports an existing store file that cannot be parsed.
// Callers must fail loudly on it: silently treating a corrupt store as
// empty would erase trust history.
var ErrCorrupt = errors.New("trust database is corrupt")

// DB is the in-memory trust database. It exclusively owns its records
// for the duration of a run; cross-run concurrency is not supported.
type DB struct {
	records map[string]*FileRecord

	// DuplicatesDropped counts records collapsed during Load because
	// their filename key appeared more than once in the store file.
	// The clean operation reports it.
	DuplicatesDropped int

	log *slog.Logger
}

// New returns an empty database.
func New(logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{records: make(map[string]*FileRecord), log: logger}
}

// Load reads the store at path. A missing file yields an empty database;
// an unparsable one yields ErrCorrupt.
func Load(path string, logger *slog.Logger) (*DB, error) {
	db := New(logger)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			db.log.Info("no existing trust database, starting empty", "path", path)
			return db, nil
		}
		return nil, fmt.Errorf("failed to open trust database %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec FileRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorrupt, path, lineNo, err)
		}
		if rec.Filename == "" {
			return nil, fmt.Errorf("%w: %s line %d: record without filename", ErrCorrupt, path, lineNo)
		}
		key := Normalize(rec.Filename)
		rec.Filename = key
		if _, dup := db.records[key]; dup {
			db.DuplicatesDropped++
			db.log.Warn("duplicate record in trust database", "filename", key)
		}
		db.records[key] = &rec
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return db, nil
}

// Get returns the record for path, or nil.
func (db *DB) Get(path string) *FileRecord {
	return db.records[Normalize(path)]
}

// Len returns the number of records.
func (db *DB) Len() int {
	return len(db.records)
}

// Merge upserts rec into the database keyed by its normalized filename.
// Populated fields of rec override the stored ones; absent fields keep
// their stored value.
func (db *DB) Merge(rec *FileRecord) *FileRecord {
	key := Normalize(rec.Filename)
	existing, ok := db.records[key]
	if !ok {
		cp := *rec
		cp.Filename = key
		db.records[key] = &cp
		return &cp
	}
	existing.merge(rec)
	return existing
}

// Remove deletes the record for path. It reports whether a record
// existed.
func (db *DB) Remove(path string) bool {
	key := Normalize(path)
	if _, ok := db.records[key]; !ok {
		return false
	}
	delete(db.records, key)
	return true
}

// RemovePackage deletes every record owned by pkg and returns the
// number removed.
func (db *DB) RemovePackage(pkg string) int {
	removed := 0
	for key, rec := range db.records {
		if rec.Package == pkg {
			delete(db.records, key)
			removed++
		}
	}
	return removed
}

// All returns every record sorted by filename.
func (db *DB) All() []*FileRecord {
	out := make([]*FileRecord, 0, len(db.records))
	for _, rec := range db.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// MatchFiles returns records whose filename equals pattern, or starts
// with it when pattern carries a trailing '*' wildcard. Results are
// sorted by filename.
func (db *DB) MatchFiles(pattern string) []*FileRecord {
	var out []*FileRecord
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		for _, rec := range db.records {
			if strings.HasPrefix(rec.Filename, prefix) {
				out = append(out, rec)
			}
		}
	} else if rec := db.Get(pattern); rec != nil {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// MatchPackages returns records whose package name equals pattern, or
// starts with it when pattern carries a trailing '*' wildcard.
func (db *DB) MatchPackages(pattern string) []*FileRecord {
	prefix, wildcard := strings.CutSuffix(pattern, "*")
	var out []*FileRecord
	for _, rec := range db.records {
		if rec.Package == pattern || (wildcard && strings.HasPrefix(rec.Package, prefix)) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// Save writes the database to path as sorted JSON lines. The previous
// store file, when present, is copied to backupPath first; the new
// content goes through a temp file and rename so a crash never leaves a
// half-written primary store.
func (db *DB) Save(path, backupPath string) error {
	if backupPath != "" {
		if err := copyFile(path, backupPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to back up trust database: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := db.writeTo(tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace trust database: %w", err)
	}
	return nil
}

// Checkpoint writes an out-of-band snapshot to path without touching
// the primary store.
func (db *DB) Checkpoint(path string) error {
	return db.writeTo(path)
}

func (db *DB) writeTo(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, rec := range db.All() {
		line, err := json.Marshal(rec)
		if err != nil {
			f.Close()
			return fmt.Errorf("failed to encode record %s: %w", rec.Filename, err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// Fingerprint returns the BLAKE3 digest of the store file at path,
// giving the operator a before/after fingerprint of the trust store
// itself. A missing file yields "absent".
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "absent", nil
		}
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to fingerprint %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
