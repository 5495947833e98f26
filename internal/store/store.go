// Package store persists locate runs and their per-frame results in
// SQLite. Each run records the stack it was computed from, the method
// and options used, aggregate statistics, and one row per frame.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bravais-data/beamtrace/internal/locate"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("store: run not found")

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02 15:04:05.000000000"

type Store struct {
	*sql.DB
}

// Open opens (or creates) the SQLite database at path, enables foreign
// keys and WAL, and applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode = WAL").Scan(&mode); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Run is one persisted locate invocation.
type Run struct {
	ID         string         `json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	Source     string         `json:"source"`
	Frames     int            `json:"frames"`
	FrameRows  int            `json:"frame_rows"`
	FrameCols  int            `json:"frame_cols"`
	Method     string         `json:"method"`
	Options    locate.Options `json:"options"`
	DurationMs int64          `json:"duration_ms"`
	Summary    locate.Summary `json:"summary"`
}

// SaveRun stores a run and its position map in one transaction. A
// missing ID or CreatedAt is filled in. Failed frames are stored with
// NULL coordinates; SQLite has no NaN.
func (s *Store) SaveRun(ctx context.Context, run *Run, pm *locate.PositionMap) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.Frames = pm.Len()
	run.Summary = pm.Summarize()

	optsJSON, err := json.Marshal(run.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO locate_runs (
			id, created_at, source, frames, frame_rows, frame_cols,
			method, options_json, duration_ms,
			mean_x, mean_y, stddev_x, stddev_y, failure_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(timeLayout), run.Source,
		run.Frames, run.FrameRows, run.FrameCols,
		run.Method, string(optsJSON), run.DurationMs,
		run.Summary.MeanX, run.Summary.MeanY,
		run.Summary.StddevX, run.Summary.StddevY, run.Summary.Failures,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	posStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO locate_positions (run_id, frame_index, x, y) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare positions: %w", err)
	}
	defer posStmt.Close()

	for i, p := range pm.Positions {
		var x, y interface{}
		if !pm.Failed(i) {
			x, y = p.X, p.Y
		}
		if _, err := posStmt.ExecContext(ctx, run.ID, i, x, y); err != nil {
			return fmt.Errorf("insert position %d: %w", i, err)
		}
	}

	for _, f := range pm.Failures {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO locate_failures (run_id, frame_index, reason) VALUES (?, ?, ?)`,
			run.ID, f.FrameIndex, f.Reason)
		if err != nil {
			return fmt.Errorf("insert failure %d: %w", f.FrameIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// GetRun fetches a single run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.QueryRowContext(ctx,
		`SELECT id, created_at, source, frames, frame_rows, frame_cols,
			method, options_json, duration_ms,
			mean_x, mean_y, stddev_x, stddev_y, failure_count
		FROM locate_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.QueryContext(ctx,
		`SELECT id, created_at, source, frames, frame_rows, frame_cols,
			method, options_json, duration_ms,
			mean_x, mean_y, stddev_x, stddev_y, failure_count
		FROM locate_runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var created, optsJSON string
	err := row.Scan(&run.ID, &created, &run.Source,
		&run.Frames, &run.FrameRows, &run.FrameCols,
		&run.Method, &optsJSON, &run.DurationMs,
		&run.Summary.MeanX, &run.Summary.MeanY,
		&run.Summary.StddevX, &run.Summary.StddevY, &run.Summary.Failures)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	if err := json.Unmarshal([]byte(optsJSON), &run.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	run.Summary.Frames = run.Frames
	return &run, nil
}

// GetPositions reconstructs the position map of a run. NULL coordinates
// come back as NaN, matching the in-memory representation of failed
// frames.
func (s *Store) GetPositions(ctx context.Context, id string) (*locate.PositionMap, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	pm := &locate.PositionMap{}
	rows, err := s.QueryContext(ctx,
		`SELECT x, y FROM locate_positions WHERE run_id = ? ORDER BY frame_index`, id)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var x, y sql.NullFloat64
		if err := rows.Scan(&x, &y); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p := locate.Position{X: math.NaN(), Y: math.NaN()}
		if x.Valid && y.Valid {
			p = locate.Position{X: x.Float64, Y: y.Float64}
		}
		pm.Positions = append(pm.Positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	frows, err := s.QueryContext(ctx,
		`SELECT frame_index, reason FROM locate_failures WHERE run_id = ? ORDER BY frame_index`, id)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer frows.Close()
	for frows.Next() {
		var f locate.FrameFailure
		if err := frows.Scan(&f.FrameIndex, &f.Reason); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		pm.Failures = append(pm.Failures, f)
	}
	return pm, frows.Err()
}

// DeleteRun removes a run and, via foreign keys, its positions and
// failures.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.ExecContext(ctx, `DELETE FROM locate_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// PruneBefore deletes runs created before the cutoff and returns how
// many were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.ExecContext(ctx,
		`DELETE FROM locate_runs WHERE created_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
