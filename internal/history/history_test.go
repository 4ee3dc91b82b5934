package history

import (
	"errors"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(command string) *Run {
	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	return &Run{
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		Command:    command,
		Checked:    120,
		Changed:    3,
		Verdicts:   [5]int{1, 4, 10, 100, 5},
		Committed:  true,
	}
}

func TestRecordAndListRuns(t *testing.T) {
	s := openStore(t)
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}

	first := sampleRun("check /usr")
	if err := s.RecordRun(first); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if first.ID == 0 {
		t.Error("RecordRun did not backfill the run id")
	}
	second := sampleRun("update")
	if err := s.RecordRun(second); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	// Newest first.
	if runs[0].Command != "update" || runs[1].Command != "check /usr" {
		t.Errorf("run order = %s, %s", runs[0].Command, runs[1].Command)
	}
	got := runs[1]
	if got.Checked != 120 || got.Changed != 3 || !got.Committed {
		t.Errorf("round-tripped run = %+v", got)
	}
	if got.Verdicts != first.Verdicts {
		t.Errorf("verdict breakdown = %v, want %v", got.Verdicts, first.Verdicts)
	}
	if !got.StartedAt.Equal(first.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, first.StartedAt)
	}
}

func TestListRuns_Limit(t *testing.T) {
	s := openStore(t)
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := s.RecordRun(sampleRun("check")); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
	}
	runs, err := s.ListRuns(3)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("got %d runs, want 3", len(runs))
	}
}

func TestTotals(t *testing.T) {
	s := openStore(t)
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}

	committed := sampleRun("check")
	if err := s.RecordRun(committed); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	dryRun := sampleRun("check --dry")
	dryRun.Committed = false
	if err := s.RecordRun(dryRun); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	checked, changed, err := s.Totals()
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	// Only committed runs count.
	if checked != 120 || changed != 3 {
		t.Errorf("Totals = %d checked, %d changed; want 120, 3", checked, changed)
	}
}

func TestUninitializedSchema(t *testing.T) {
	s := openStore(t)

	if err := s.RecordRun(sampleRun("check")); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("RecordRun error = %v, want ErrNotInitialized", err)
	}
	if _, err := s.ListRuns(1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListRuns error = %v, want ErrNotInitialized", err)
	}
	if _, _, err := s.Totals(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Totals error = %v, want ErrNotInitialized", err)
	}
}

func TestCreateSchema_Idempotent(t *testing.T) {
	s := openStore(t)
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("first CreateSchema failed: %v", err)
	}
	if err := s.CreateSchema(); err != nil {
		t.Errorf("second CreateSchema failed: %v", err)
	}
}
