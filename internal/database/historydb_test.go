package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/varnisher/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// newRun builds a finished report with the given purge outcomes.
func newRun(target string, started time.Time, outcomes ...model.Outcome) *model.Report {
	report := model.NewReport(model.CommandPage, target)
	report.Proxy = "127.0.0.1:6081"
	report.StartedAt = started
	report.PagesHit = 1
	for i, o := range outcomes {
		report.AddPurge(model.PurgeResult{
			URL:        target + string(rune('a'+i)),
			Method:     "PURGE",
			StatusCode: 200,
			Outcome:    o,
			Duration:   15 * time.Millisecond,
		})
	}
	report.Finish(nil)
	return report
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if !errors.Is(err, ErrDatabaseNotFound) {
			t.Fatalf("expected ErrDatabaseNotFound, got %v", err)
		}

		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created when CreateIfNotExists=false")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")
		ctx := context.Background()

		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		run := newRun("http://www.example.com/", time.Now(), model.OutcomePurged)
		if err := db1.SaveRun(ctx, run); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		if _, err := db2.GetRun(ctx, run.ID); err != nil {
			t.Errorf("expected run to persist: %v", err)
		}
	})
}

// TestDefaultOptions tests the default options values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists || !opts.EnableWAL {
		t.Errorf("unexpected defaults %+v", opts)
	}
}

// TestSaveAndListRuns tests run storage and listing order.
func TestSaveAndListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	older := newRun("http://www.example.com/", base, model.OutcomePurged, model.OutcomeRejected)
	newer := newRun("http://www.example.com/", base.Add(time.Hour), model.OutcomePurged)
	other := newRun("http://other.example.com/", base.Add(30*time.Minute))

	for _, r := range []*model.Report{older, newer, other} {
		if err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	t.Run("all runs newest first", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "", 0)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(runs))
		}
		if runs[0].ID != newer.ID || runs[1].ID != other.ID || runs[2].ID != older.ID {
			t.Errorf("unexpected order: %s %s %s", runs[0].ID, runs[1].ID, runs[2].ID)
		}
		if !runs[2].StartedAt.Equal(base) {
			t.Errorf("expected start %v, got %v", base, runs[2].StartedAt)
		}
		if runs[2].Purged != 1 || runs[2].Failed != 1 || runs[2].PagesHit != 1 {
			t.Errorf("unexpected counts %+v", runs[2])
		}
		if runs[2].Command != model.CommandPage || runs[2].Proxy != "127.0.0.1:6081" {
			t.Errorf("unexpected run %+v", runs[2])
		}
	})

	t.Run("filter by target and limit", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "http://www.example.com/", 1)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 1 || runs[0].ID != newer.ID {
			t.Errorf("expected only the newer run, got %+v", runs)
		}
	})

	t.Run("duplicate run ID is rejected", func(t *testing.T) {
		t.Parallel()

		if err := db.SaveRun(ctx, older); err == nil {
			t.Error("expected error saving the same run twice")
		}
	})
}

// TestGetRun tests loading a full report.
func TestGetRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	run := newRun("http://www.example.com/", time.Now(), model.OutcomePurged, model.OutcomeTimeout)
	run.Resources = []string{"http://www.example.com/a.css"}
	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	got, err := db.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Target != run.Target || len(got.Purges) != 2 || len(got.Resources) != 1 {
		t.Errorf("unexpected report %+v", got.Summarize())
	}

	if _, err := db.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

// TestPurgeQueries tests the per-run and per-URL purge queries.
func TestPurgeQueries(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first := newRun("http://www.example.com/", base, model.OutcomeRejected, model.OutcomePurged)
	second := newRun("http://www.example.com/", base.Add(time.Minute), model.OutcomePurged)
	for _, r := range []*model.Report{first, second} {
		if err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	t.Run("purges of a run", func(t *testing.T) {
		t.Parallel()

		purges, err := db.GetRunPurges(ctx, first.ID)
		if err != nil {
			t.Fatalf("GetRunPurges() error = %v", err)
		}
		if len(purges) != 2 {
			t.Fatalf("expected 2 purges, got %d", len(purges))
		}
		if purges[0].URL != "http://www.example.com/a" || purges[0].Outcome != model.OutcomeRejected {
			t.Errorf("unexpected first purge %+v", purges[0])
		}
		if purges[0].Duration != 15*time.Millisecond || purges[0].RunID != first.ID {
			t.Errorf("unexpected purge fields %+v", purges[0])
		}
	})

	t.Run("history of a URL", func(t *testing.T) {
		t.Parallel()

		purges, err := db.URLHistory(ctx, "http://www.example.com/a")
		if err != nil {
			t.Fatalf("URLHistory() error = %v", err)
		}
		if len(purges) != 2 {
			t.Fatalf("expected 2 purges, got %d", len(purges))
		}
		if purges[0].RunID != second.ID || !purges[0].Purged() {
			t.Errorf("expected latest run first, got %+v", purges[0])
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		purges, err := db.GetRunPurges(ctx, "missing")
		if err != nil || len(purges) != 0 {
			t.Errorf("expected no purges, got %v %v", purges, err)
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, s := range []string{
		formatTimestamp(want),
		"2026-01-02T03:04:05Z",
		"2026-01-02 03:04:05",
	} {
		if got := parseTimestamp(s); !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", s, got, want)
		}
	}
	if !parseTimestamp("garbage").IsZero() {
		t.Error("expected zero time for garbage")
	}
	if formatTimestamp(time.Time{}) != "" {
		t.Error("expected empty string for zero time")
	}
}
