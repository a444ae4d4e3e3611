package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/CTAG07/Marky/pkg/markov"
)

// ErrRunNotFound is returned when a run id is not in the ledger.
var ErrRunNotFound = errors.New("ledger: run not found")

// Status is the state of a run.
type Status string

const (
	StatusRunning Status = "running"
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
)

// Run is one invocation of the synthesizer.
type Run struct {
	ID          string
	Input       string
	Shape       string
	Order       int
	HistoryRows int
	Schedule    []int
	TargetRows  int
	FileCount   int
	Stats       markov.ModelStats
	Status      Status
	Message     string
	StartedAt   time.Time
	FinishedAt  time.Time // Zero while the run is in progress
}

// Output is one file written by a run.
type Output struct {
	RunID     string
	Index     int
	Path      string
	Rows      int
	Segments  int
	Fallbacks int
	Digest    uint64
	Elapsed   time.Duration
}

// SetupSchema initializes the ledger tables in the provided database. It is
// idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaRuns = `
CREATE TABLE IF NOT EXISTS marky_runs (
    run_id TEXT PRIMARY KEY,
    input_path TEXT NOT NULL,
    shape TEXT NOT NULL,
    model_order INTEGER NOT NULL,
    history_rows INTEGER NOT NULL DEFAULT 0,
    schedule TEXT NOT NULL DEFAULT '[]',
    target_rows INTEGER NOT NULL,
    file_count INTEGER NOT NULL,
    model_stats TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL DEFAULT 0
);
`
		schemaOutputs = `
CREATE TABLE IF NOT EXISTS marky_outputs (
    run_id TEXT NOT NULL REFERENCES marky_runs(run_id) ON DELETE CASCADE,
    file_index INTEGER NOT NULL,
    path TEXT NOT NULL,
    row_count INTEGER NOT NULL,
    segments INTEGER NOT NULL,
    fallbacks INTEGER NOT NULL,
    digest TEXT NOT NULL,
    elapsed_ns INTEGER NOT NULL,
    PRIMARY KEY (run_id, file_index)
);
`
		indexRunsStarted = `CREATE INDEX IF NOT EXISTS idx_marky_runs_started ON marky_runs (started_at);`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaRuns); err != nil {
		return fmt.Errorf("could not create runs schema: %w", err)
	}
	if _, err = tx.Exec(schemaOutputs); err != nil {
		return fmt.Errorf("could not create outputs schema: %w", err)
	}
	if _, err = tx.Exec(indexRunsStarted); err != nil {
		return fmt.Errorf("could not create runs index: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Ledger records runs and the files they produce in a SQL database. It holds
// prepared statements for every query it makes.
type Ledger struct {
	db               *sql.DB
	stmtInsertRun    *sql.Stmt
	stmtUpdateModel  *sql.Stmt
	stmtFinishRun    *sql.Stmt
	stmtGetRun       *sql.Stmt
	stmtListRuns     *sql.Stmt
	stmtInsertOutput *sql.Stmt
	stmtListOutputs  *sql.Stmt
	logger           *slog.Logger
}

const runColumns = `run_id, input_path, shape, model_order, history_rows, schedule, target_rows, file_count, model_stats, status, message, started_at, finished_at`

// New creates a Ledger on db, whose schema must already be set up. It
// pre-compiles all necessary SQL statements.
func New(db *sql.DB) (*Ledger, error) {
	l := &Ledger{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&l.stmtInsertRun, `INSERT INTO marky_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`},
		{&l.stmtUpdateModel, `UPDATE marky_runs SET history_rows = ?, schedule = ?, model_stats = ? WHERE run_id = ?;`},
		{&l.stmtFinishRun, `UPDATE marky_runs SET status = ?, message = ?, finished_at = ? WHERE run_id = ?;`},
		{&l.stmtGetRun, `SELECT ` + runColumns + ` FROM marky_runs WHERE run_id = ?;`},
		{&l.stmtListRuns, `SELECT ` + runColumns + ` FROM marky_runs ORDER BY started_at DESC, run_id LIMIT ?;`},
		{&l.stmtInsertOutput, `INSERT INTO marky_outputs (run_id, file_index, path, row_count, segments, fallbacks, digest, elapsed_ns) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`},
		{&l.stmtListOutputs, `SELECT run_id, file_index, path, row_count, segments, fallbacks, digest, elapsed_ns FROM marky_outputs WHERE run_id = ? ORDER BY file_index;`},
	}
	for _, s := range stmts {
		stmt, err := db.Prepare(s.query)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("could not prepare ledger statement: %w", err)
		}
		*s.dst = stmt
	}
	return l, nil
}

// Close releases all prepared SQL statements held by the Ledger.
func (l *Ledger) Close() {
	for _, stmt := range []*sql.Stmt{
		l.stmtInsertRun,
		l.stmtUpdateModel,
		l.stmtFinishRun,
		l.stmtGetRun,
		l.stmtListRuns,
		l.stmtInsertOutput,
		l.stmtListOutputs,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// SetLogger sets the logger for the Ledger. By default, all logs are discarded.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// BeginRun stores run with the running status and returns its id. A new
// random id is assigned when run.ID is empty, and StartedAt defaults to now.
func (l *Ledger) BeginRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	schedule, stats, err := encodeModel(run.Schedule, run.Stats)
	if err != nil {
		return "", err
	}

	_, err = l.stmtInsertRun.ExecContext(ctx,
		run.ID, run.Input, run.Shape, run.Order, run.HistoryRows, schedule,
		run.TargetRows, run.FileCount, stats, string(StatusRunning), run.Message,
		run.StartedAt.UnixNano(), int64(0),
	)
	if err != nil {
		return "", fmt.Errorf("could not insert run %s: %w", run.ID, err)
	}

	l.logger.DebugContext(ctx, "Run started", slog.String("run_id", run.ID))
	return run.ID, nil
}

// RecordTraining stores what training produced for a run.
func (l *Ledger) RecordTraining(ctx context.Context, id string, historyRows int, schedule []int, stats markov.ModelStats) error {
	encSchedule, encStats, err := encodeModel(schedule, stats)
	if err != nil {
		return err
	}
	res, err := l.stmtUpdateModel.ExecContext(ctx, historyRows, encSchedule, encStats, id)
	if err != nil {
		return fmt.Errorf("could not record training of run %s: %w", id, err)
	}
	return expectOne(res, id)
}

// RecordOutput stores one written file.
func (l *Ledger) RecordOutput(ctx context.Context, out Output) error {
	_, err := l.stmtInsertOutput.ExecContext(ctx,
		out.RunID, out.Index, out.Path, out.Rows, out.Segments, out.Fallbacks,
		formatDigest(out.Digest), out.Elapsed.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("could not record output %d of run %s: %w", out.Index, out.RunID, err)
	}
	return nil
}

// FinishRun sets the final status of a run.
func (l *Ledger) FinishRun(ctx context.Context, id string, status Status, message string) error {
	res, err := l.stmtFinishRun.ExecContext(ctx, string(status), message, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("could not finish run %s: %w", id, err)
	}
	if err := expectOne(res, id); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "Run finished",
		slog.String("run_id", id),
		slog.String("status", string(status)),
	)
	return nil
}

// GetRun returns a single run.
func (l *Ledger) GetRun(ctx context.Context, id string) (Run, error) {
	run, err := scanRun(l.stmtGetRun.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns up to limit runs, most recent first. A limit of 0 or less
// returns every run.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as no limit.
	}
	rows, err := l.stmtListRuns.QueryContext(ctx, limit)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListOutputs returns the files recorded for a run in index order.
func (l *Ledger) ListOutputs(ctx context.Context, id string) ([]Output, error) {
	rows, err := l.stmtListOutputs.QueryContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var outputs []Output
	for rows.Next() {
		var out Output
		var digest string
		var elapsed int64
		if err = rows.Scan(&out.RunID, &out.Index, &out.Path, &out.Rows, &out.Segments, &out.Fallbacks, &digest, &elapsed); err != nil {
			return nil, err
		}
		if out.Digest, err = strconv.ParseUint(digest, 16, 64); err != nil {
			return nil, fmt.Errorf("bad digest %q for run %s: %w", digest, id, err)
		}
		out.Elapsed = time.Duration(elapsed)
		outputs = append(outputs, out)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return outputs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var schedule, stats, status string
	var started, finished int64
	err := s.Scan(&run.ID, &run.Input, &run.Shape, &run.Order, &run.HistoryRows, &schedule,
		&run.TargetRows, &run.FileCount, &stats, &status, &run.Message, &started, &finished)
	if err != nil {
		return Run{}, err
	}
	if err = json.Unmarshal([]byte(schedule), &run.Schedule); err != nil {
		return Run{}, fmt.Errorf("bad schedule for run %s: %w", run.ID, err)
	}
	if err = json.Unmarshal([]byte(stats), &run.Stats); err != nil {
		return Run{}, fmt.Errorf("bad model stats for run %s: %w", run.ID, err)
	}
	run.Status = Status(status)
	run.StartedAt = time.Unix(0, started)
	if finished != 0 {
		run.FinishedAt = time.Unix(0, finished)
	}
	return run, nil
}

func encodeModel(schedule []int, stats markov.ModelStats) (string, string, error) {
	if schedule == nil {
		schedule = []int{}
	}
	encSchedule, err := json.Marshal(schedule)
	if err != nil {
		return "", "", fmt.Errorf("could not encode schedule: %w", err)
	}
	encStats, err := json.Marshal(stats)
	if err != nil {
		return "", "", fmt.Errorf("could not encode model stats: %w", err)
	}
	return string(encSchedule), string(encStats), nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func formatDigest(d uint64) string {
	return fmt.Sprintf("%016x", d)
}
