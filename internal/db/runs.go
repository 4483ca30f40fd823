package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/displacement.report/internal/estimator"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one estimator pass over a profile together with its output.
type Run struct {
	ID        string
	Profile   string
	Config    estimator.Config
	DT        float64
	CreatedAt time.Time
	Records   []estimator.Record
}

// RunSummary is a Run without its per-sample records.
type RunSummary struct {
	ID                string
	Profile           string
	Method            estimator.Method
	DT                float64
	Samples           int
	FinalVelocity     float64
	FinalDisplacement float64
	CreatedAt         time.Time
}

func (s RunSummary) String() string {
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s %-10s %-24s n=%d final=%.3f mm %s",
		id, s.Method, s.Profile, s.Samples, s.FinalDisplacement,
		s.CreatedAt.Format(time.RFC3339))
}

// SQLite has no NaN; NaN estimator output is stored as NULL and read
// back as NaN.
func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func nanIfNull(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

// SaveRun stores run and its records in one transaction. An ID and creation
// time are assigned when missing; the stored ID is returned.
func (db *DB) SaveRun(ctx context.Context, run *Run) (string, error) {
	if len(run.Records) == 0 {
		return "", fmt.Errorf("run has no records: %w", estimator.ErrInvalidInput)
	}
	if err := run.Config.Validate(); err != nil {
		return "", err
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = db.clock.Now().UTC()
	}
	last := run.Records[len(run.Records)-1]
	k := run.Config.Kalman

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, profile, method, dt, alpha, correct_every,
			p11, p22, q11, q22, r,
			sample_count, final_velocity, final_displacement, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Profile, run.Config.Method.String(), run.DT,
		run.Config.Alpha, run.Config.CorrectEvery,
		k.P11, k.P22, k.Q11, k.Q22, k.R,
		len(run.Records), nullFloat(last.Velocity), nullFloat(last.Displacement), run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_samples (run_id, sample_index, velocity, displacement)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range run.Records {
		if _, err := stmt.ExecContext(ctx, run.ID, r.Index, nullFloat(r.Velocity), nullFloat(r.Displacement)); err != nil {
			return "", fmt.Errorf("failed to insert sample %d: %w", r.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns stored runs, newest first. A non-empty profile restricts
// the listing to that profile.
func (db *DB) ListRuns(ctx context.Context, profile string) ([]RunSummary, error) {
	query := `
		SELECT run_id, profile, method, dt, sample_count,
		       final_velocity, final_displacement, created_at
		FROM runs`
	var args []interface{}
	if profile != "" {
		query += " WHERE profile = ?"
		args = append(args, profile)
	}
	query += " ORDER BY created_at DESC, run_id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			s         RunSummary
			method    string
			v, d      sql.NullFloat64
			createdAt int64
		)
		if err := rows.Scan(&s.ID, &s.Profile, &method, &s.DT, &s.Samples,
			&v, &d, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.FinalVelocity, s.FinalDisplacement = nanIfNull(v), nanIfNull(d)
		if s.Method, err = estimator.ParseMethod(method); err != nil {
			return nil, fmt.Errorf("run %s: %w", s.ID, err)
		}
		s.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// LoadRun returns the run with the given ID including its records.
func (db *DB) LoadRun(ctx context.Context, id string) (*Run, error) {
	var (
		run       = &Run{ID: id}
		method    string
		createdAt int64
		k         = &run.Config.Kalman
	)
	err := db.QueryRowContext(ctx, `
		SELECT profile, method, dt, alpha, correct_every, p11, p22, q11, q22, r, created_at
		FROM runs WHERE run_id = ?`, id).Scan(
		&run.Profile, &method, &run.DT, &run.Config.Alpha, &run.Config.CorrectEvery,
		&k.P11, &k.P22, &k.Q11, &k.Q22, &k.R, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	if run.Config.Method, err = estimator.ParseMethod(method); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	run.CreatedAt = time.Unix(0, createdAt).UTC()

	rows, err := db.QueryContext(ctx, `
		SELECT sample_index, velocity, displacement
		FROM run_samples WHERE run_id = ? ORDER BY sample_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load samples for run %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r    estimator.Record
			v, d sql.NullFloat64
		)
		if err := rows.Scan(&r.Index, &v, &d); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		r.Velocity, r.Displacement = nanIfNull(v), nanIfNull(d)
		run.Records = append(run.Records, r)
	}
	return run, rows.Err()
}

// DeleteRun removes a run and its samples.
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
