// Package sessiondb persists completed workout sessions and calibration run
// provenance in sqlite. The schema is managed by embedded migrations.
package sessiondb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/posefit/posefit/internal/calibrate"
	"github.com/posefit/posefit/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the sqlite handle.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// pending migrations.
func Open(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session db %s: %w", path, err)
	}
	if _, err := handle.Exec(`PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON;`); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	db := &DB{handle}
	if err := db.migrateUp(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}

// migrateUp applies all pending embedded migrations. Already-current
// databases are a no-op.
func (db *DB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Closing m would close the underlying DB connection; leave it to GC.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version, 0 before the first
// migration.
func (db *DB) SchemaVersion() (uint, error) {
	var version uint
	err := db.QueryRow(`SELECT version FROM schema_migrations LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Session is one completed live-tracking session.
type Session struct {
	ID          string
	Exercise    string
	RepCount    int
	HoldSeconds float64
	// ValidRatio is the fraction of processed frames with valid form.
	ValidRatio float64
	StartedAt  time.Time
	EndedAt    time.Time
	Feedback   string
}

// RecordSession inserts a session. A missing ID is assigned.
func (db *DB) RecordSession(ctx context.Context, s Session) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (id, exercise, rep_count, hold_seconds, valid_ratio, started_at, ended_at, feedback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Exercise, s.RepCount, s.HoldSeconds, s.ValidRatio,
		s.StartedAt.UTC(), s.EndedAt.UTC(), s.Feedback)
	if err != nil {
		return "", fmt.Errorf("failed to record session: %w", err)
	}
	monitoring.Logf("recorded session %s: %s, %d rep(s)", s.ID, s.Exercise, s.RepCount)
	return s.ID, nil
}

// Sessions returns the most recent sessions for an exercise, newest first.
// An empty exercise returns sessions across all exercises.
func (db *DB) Sessions(ctx context.Context, exercise string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, exercise, rep_count, hold_seconds, valid_ratio, started_at, ended_at, feedback
		FROM sessions`
	args := []interface{}{}
	if exercise != "" {
		query += ` WHERE exercise = ?`
		args = append(args, exercise)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Exercise, &s.RepCount, &s.HoldSeconds,
			&s.ValidRatio, &s.StartedAt, &s.EndedAt, &s.Feedback); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordCalibration stores provenance for a successful calibration run.
func (db *DB) RecordCalibration(ctx context.Context, res *calibrate.Result) error {
	online := 0
	if res.Online {
		online = 1
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO calibration_runs (run_id, exercise, driving_joint, rep_count, online)
		VALUES (?, ?, ?, ?, ?)`,
		res.RunID, res.Exercise, res.DrivingJoint, len(res.Segments), online)
	if err != nil {
		return fmt.Errorf("failed to record calibration run: %w", err)
	}
	return nil
}

// CalibrationRun is stored provenance for one calibration run.
type CalibrationRun struct {
	RunID        string
	Exercise     string
	DrivingJoint string
	RepCount     int
	Online       bool
	CreatedAt    time.Time
}

// LatestCalibration returns the newest calibration run for an exercise.
// ok is false when the exercise has never been calibrated.
func (db *DB) LatestCalibration(ctx context.Context, exercise string) (CalibrationRun, bool, error) {
	var (
		run    CalibrationRun
		online int
	)
	err := db.QueryRowContext(ctx, `
		SELECT run_id, exercise, driving_joint, rep_count, online, created_at
		FROM calibration_runs
		WHERE exercise = ?
		ORDER BY created_at DESC, run_id DESC
		LIMIT 1`, exercise).
		Scan(&run.RunID, &run.Exercise, &run.DrivingJoint, &run.RepCount, &online, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CalibrationRun{}, false, nil
	}
	if err != nil {
		return CalibrationRun{}, false, fmt.Errorf("failed to query calibration runs: %w", err)
	}
	run.Online = online == 1
	return run, true, nil
}
