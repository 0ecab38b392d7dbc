package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store provides persistence for runs, phases, and their event timelines.
type Store struct {
	db *sql.DB
}

// NewStore creates a store for run/phase persistence.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RunRecord mirrors a row of the runs table.
type RunRecord struct {
	RunID     string
	CreatedAt string
	ItemRef   string
	ItemTitle string
	PlanPath  string
	Branch    string
	Mode      string
	Status    string
	RunDir    string
}

// PhaseRecord mirrors a row of the phases table.
type PhaseRecord struct {
	RunID     string
	Phase     string
	StartedAt string
	EndedAt   string
	ExitCode  int
	Outcome   string
	Detail    string
}

// Event represents a timeline entry for a run.
type Event struct {
	Type     string
	Message  string
	DataJSON string
}

// CreateRun inserts the run record and a run_started event.
func (s *Store) CreateRun(ctx context.Context, rec RunRecord) error {
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin create run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO runs(run_id, created_at, item_ref, item_title, plan_path, branch, mode, status, run_dir)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.CreatedAt, rec.ItemRef, rec.ItemTitle, rec.PlanPath, rec.Branch, rec.Mode, rec.Status, rec.RunDir); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}
	if err := s.insertEvent(ctx, tx, rec.RunID, "run_started", "run started", ""); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create run: %w", err)
	}
	return nil
}

// Update contains the mutable fields of a run record.
type Update struct {
	Status   string
	PlanPath string
	Branch   string
}

// UpdateRun applies a run update and optional event in one transaction.
func (s *Store) UpdateRun(ctx context.Context, runID string, update Update, event *Event) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin update run: %w", err)
	}
	if event != nil {
		if err := s.insertEvent(ctx, tx, runID, event.Type, event.Message, event.DataJSON); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET status=?, plan_path=?, branch=? WHERE run_id=?`,
		update.Status, update.PlanPath, update.Branch, runID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update run: %w", err)
	}
	return nil
}

// CommitPhase inserts the phase record, events, and updates the run in one
// transaction.
func (s *Store) CommitPhase(ctx context.Context, phase PhaseRecord, events []Event, update Update) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin commit phase: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO phases(run_id, phase, started_at, ended_at, exit_code, outcome, detail)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		phase.RunID, phase.Phase, phase.StartedAt, phase.EndedAt, phase.ExitCode, phase.Outcome, nullableString(phase.Detail)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert phase: %w", err)
	}
	for _, ev := range events {
		if err := s.insertEvent(ctx, tx, phase.RunID, ev.Type, ev.Message, ev.DataJSON); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET status=?, plan_path=?, branch=? WHERE run_id=?`,
		update.Status, update.PlanPath, update.Branch, phase.RunID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit phase: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, created_at, item_ref, item_title, plan_path, branch, mode, status, run_dir
		FROM runs ORDER BY created_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.RunID, &rec.CreatedAt, &rec.ItemRef, &rec.ItemTitle, &rec.PlanPath, &rec.Branch, &rec.Mode, &rec.Status, &rec.RunDir); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRun returns one run record, or nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT run_id, created_at, item_ref, item_title, plan_path, branch, mode, status, run_dir
		FROM runs WHERE run_id=?`, runID)
	var rec RunRecord
	if err := row.Scan(&rec.RunID, &rec.CreatedAt, &rec.ItemRef, &rec.ItemTitle, &rec.PlanPath, &rec.Branch, &rec.Mode, &rec.Status, &rec.RunDir); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("read run: %w", err)
	}
	return &rec, nil
}

// ListPhases returns the phase records for a run in start order.
func (s *Store) ListPhases(ctx context.Context, runID string) ([]PhaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, phase, started_at, ended_at, exit_code, outcome, COALESCE(detail, '')
		FROM phases WHERE run_id=? ORDER BY started_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("list phases: %w", err)
	}
	defer rows.Close()

	var out []PhaseRecord
	for rows.Next() {
		var rec PhaseRecord
		if err := rows.Scan(&rec.RunID, &rec.Phase, &rec.StartedAt, &rec.EndedAt, &rec.ExitCode, &rec.Outcome, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEvents returns the event timeline for a run in sequence order.
func (s *Store) ListEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, message, COALESCE(data_json, '') FROM events WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.Type, &ev.Message, &ev.DataJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// GetRunStatus returns the status for a run id, or empty if missing.
func (s *Store) GetRunStatus(ctx context.Context, runID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT status FROM runs WHERE run_id=?`, runID)
	var status string
	if err := row.Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("read run status: %w", err)
	}
	return status, nil
}

func (s *Store) insertEvent(ctx context.Context, tx *sql.Tx, runID, typ, message, dataJSON string) error {
	seq, err := s.nextSeq(ctx, tx, runID)
	if err != nil {
		return err
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `INSERT INTO events(run_id, seq, ts, type, message, data_json) VALUES(?, ?, ?, ?, ?, ?)`,
		runID, seq, ts, typ, message, nullableString(dataJSON)); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) nextSeq(ctx context.Context, tx *sql.Tx, runID string) (int, error) {
	var seq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events WHERE run_id=?`, runID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read event seq: %w", err)
	}
	return seq + 1, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
