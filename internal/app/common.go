package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/blackwell-systems/debtrust/internal/config"
	"github.com/blackwell-systems/debtrust/internal/dpkg"
	"github.com/blackwell-systems/debtrust/internal/hashdb"
	"github.com/blackwell-systems/debtrust/internal/history"
	"github.com/blackwell-systems/debtrust/internal/verify"
)

// runContext bundles the state every command needs: config, the
// run-scoped logger and the loaded trust database. Opened at run
// start, closed at run end.
type runContext struct {
	cfg     *config.Config
	log     *slog.Logger
	logFile *os.File
	runID   string

	db          *hashdb.DB
	dbPath      string
	fingerprint string
	started     time.Time
}

// openRun loads configuration, opens the run log and loads the trust
// database, reporting the store fingerprint before anything can touch
// it. A corrupt store aborts the run.
func openRun() (*runContext, error) {
	cfgPath := flagConfig
	if cfgPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfgPath = filepath.Join(home, ".debtrust", "config.toml")
		}
	}
	cfg, err := config.ReadFromFile(cfgPath)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	logger, logFile, runID, err := newLogger(cfg.LogPath(), flagVerbose)
	if err != nil {
		return nil, err
	}

	rc := &runContext{
		cfg:     cfg,
		log:     logger,
		logFile: logFile,
		runID:   runID,
		dbPath:  cfg.DatabasePath(),
		started: time.Now(),
	}

	rc.fingerprint, err = hashdb.Fingerprint(rc.dbPath)
	if err != nil {
		rc.close()
		return nil, err
	}
	fmt.Printf("trust database: %s (%s)\n", rc.dbPath, rc.fingerprint)

	rc.db, err = hashdb.Load(rc.dbPath, logger)
	if err != nil {
		rc.close()
		return nil, err
	}
	logger.Info("run started", "db", rc.dbPath, "records", rc.db.Len(), "fingerprint", rc.fingerprint)
	return rc, nil
}

// close flushes and closes the run log.
func (rc *runContext) close() {
	if rc.logFile != nil {
		rc.log.Info("run finished", "elapsed", time.Since(rc.started).Round(time.Millisecond).String())
		rc.logFile.Close()
	}
}

// commit persists the trust database with backup-before-write and
// reports the new store fingerprint. A persistence failure is reported
// but leaves the in-memory state intact.
func (rc *runContext) commit() error {
	if err := rc.db.Save(rc.dbPath, rc.cfg.BackupPath()); err != nil {
		return fmt.Errorf("failed to persist trust database (in-memory results discarded at exit): %w", err)
	}
	after, err := hashdb.Fingerprint(rc.dbPath)
	if err != nil {
		return err
	}
	fmt.Printf("trust database written: %s (%s)\n", rc.dbPath, after)
	rc.log.Info("database committed", "records", rc.db.Len(), "fingerprint", after)
	return nil
}

// recordHistory appends the run summary to the history store.
// Best-effort: history problems never fail a run.
func (rc *runContext) recordHistory(command string, sum verify.Summary, committed bool) {
	st, err := history.New(rc.cfg.HistoryPath())
	if err != nil {
		rc.log.Warn("history unavailable", "error", err)
		return
	}
	defer st.Close()
	if err := st.CreateSchema(); err != nil {
		rc.log.Warn("history schema", "error", err)
		return
	}
	run := &history.Run{
		StartedAt:  rc.started,
		FinishedAt: time.Now(),
		Command:    command,
		Checked:    sum.Checked,
		Changed:    sum.Changed,
		Verdicts:   sum.Verdicts,
		Committed:  committed,
	}
	if err := st.RecordRun(run); err != nil {
		rc.log.Warn("failed to record run history", "error", err)
	}
}

// loadMetadata reads the current dpkg records.
func (rc *runContext) loadMetadata() ([]dpkg.Record, error) {
	provider := dpkg.NewFSProvider(rc.cfg.DpkgAdminDir, rc.log)
	records, err := provider.ListRecordedHashes()
	if err != nil {
		return nil, fmt.Errorf("failed to read dpkg metadata: %w", err)
	}
	rc.log.Info("loaded package metadata", "records", len(records))
	return records, nil
}

// printSummary writes the standard end-of-run verdict breakdown.
func printSummary(sum verify.Summary) {
	fmt.Printf("checked %d file(s): %d verified, %d trusted, %d local, %d unknown, %d mismatched\n",
		sum.Checked, sum.Verdicts[4], sum.Verdicts[3], sum.Verdicts[2], sum.Verdicts[1], sum.Verdicts[0])
	if sum.Divergence > 0 {
		fmt.Printf("WARNING: %d file(s) produced diverging digests between hash implementations\n", sum.Divergence)
	}
	if sum.Changed > 0 {
		fmt.Printf("%d record change(s) accumulated\n", sum.Changed)
	}
}
