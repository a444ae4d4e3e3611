package ledger

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/CTAG07/Marky/pkg/markov"
)

// setupTestLedger creates a new SQLite database and a Ledger for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestLedger(t *testing.T) (*sql.DB, *Ledger) {
	dbFile := filepath.Join(t.TempDir(), "ledger.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}
	// A second call must be harmless.
	if err := SetupSchema(db); err != nil {
		t.Fatalf("SetupSchema() is not idempotent: %v", err)
	}

	l, err := New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(l.Close)
	return db, l
}

func TestRunLifecycle(t *testing.T) {
	_, l := setupTestLedger(t)
	ctx := context.Background()

	id, err := l.BeginRun(ctx, Run{Input: "history.csv", Shape: "hl2", Order: 2, TargetRows: 500, FileCount: 3})
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	if id == "" {
		t.Fatal("BeginRun() returned an empty id")
	}

	run, err := l.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if run.Status != StatusRunning || !run.FinishedAt.IsZero() || run.Shape != "hl2" || run.Order != 2 {
		t.Errorf("unexpected run after BeginRun: %+v", run)
	}

	stats := markov.ModelStats{Order: 2, Vocabulary: 40, Contexts: 55, TotalChains: 90, TotalFrequency: 300, StartingRows: 7, SuccessorPool: 40, Sequences: 12}
	if err := l.RecordTraining(ctx, id, 120, []int{10, 20, 40}, stats); err != nil {
		t.Fatalf("RecordTraining() failed: %v", err)
	}
	if err := l.FinishRun(ctx, id, StatusOK, ""); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}

	run, err = l.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if run.Status != StatusOK || run.FinishedAt.IsZero() {
		t.Errorf("run not finished: %+v", run)
	}
	if run.HistoryRows != 120 || !reflect.DeepEqual(run.Schedule, []int{10, 20, 40}) || run.Stats != stats {
		t.Errorf("training not recorded: %+v", run)
	}
}

func TestUnknownRun(t *testing.T) {
	_, l := setupTestLedger(t)
	ctx := context.Background()

	if _, err := l.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() expected ErrRunNotFound, got %v", err)
	}
	if err := l.FinishRun(ctx, "missing", StatusFailed, "boom"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun() expected ErrRunNotFound, got %v", err)
	}
	if err := l.RecordTraining(ctx, "missing", 1, nil, markov.ModelStats{}); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("RecordTraining() expected ErrRunNotFound, got %v", err)
	}
}

func TestOutputs(t *testing.T) {
	_, l := setupTestLedger(t)
	ctx := context.Background()

	id, err := l.BeginRun(ctx, Run{Input: "in.csv", Shape: "f64", Order: 1, TargetRows: 100, FileCount: 2})
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	outputs := []Output{
		{RunID: id, Index: 2, Path: "2.out.csv", Rows: 104, Segments: 9, Fallbacks: 1, Digest: 0xfedcba9876543210, Elapsed: 3 * time.Millisecond},
		{RunID: id, Index: 1, Path: "1.out.csv", Rows: 100, Segments: 7, Fallbacks: 0, Digest: 42, Elapsed: time.Second},
	}
	for _, out := range outputs {
		if err := l.RecordOutput(ctx, out); err != nil {
			t.Fatalf("RecordOutput() failed: %v", err)
		}
	}
	if err := l.RecordOutput(ctx, outputs[0]); err == nil {
		t.Error("expected an error recording the same file twice")
	}

	got, err := l.ListOutputs(ctx, id)
	if err != nil {
		t.Fatalf("ListOutputs() failed: %v", err)
	}
	want := []Output{outputs[1], outputs[0]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListOutputs() = %+v, want %+v", got, want)
	}
}

func TestListRuns(t *testing.T) {
	_, l := setupTestLedger(t)
	ctx := context.Background()

	base := time.Now()
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := l.BeginRun(ctx, Run{Input: "in.csv", Shape: "i64", Order: 1, TargetRows: 10, FileCount: 1, StartedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("BeginRun() failed: %v", err)
		}
		ids = append(ids, id)
	}

	testCases := []struct {
		name     string
		limit    int
		expected []string
	}{
		{name: "All runs, newest first", limit: 0, expected: []string{ids[2], ids[1], ids[0]}},
		{name: "Limited", limit: 2, expected: []string{ids[2], ids[1]}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runs, err := l.ListRuns(ctx, tc.limit)
			if err != nil {
				t.Fatalf("ListRuns() failed: %v", err)
			}
			var got []string
			for _, run := range runs {
				got = append(got, run.ID)
			}
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("ListRuns(%d) = %v, want %v", tc.limit, got, tc.expected)
			}
		})
	}
}
