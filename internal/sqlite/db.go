// Package sqlite persists benchmark reports.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/internal/bench"
	"github.com/google/uuid"
)

// ErrReportNotFound is returned when no report has the requested ID.
var ErrReportNotFound = errors.New("report not found")

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

var _ bench.ReportStore = (*DB)(nil)

// Open creates or opens the SQLite database at dir/reports.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "reports.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			created_at     INTEGER NOT NULL,
			concurrency    INTEGER NOT NULL,
			interrupted    BOOLEAN NOT NULL DEFAULT 0,
			total_tasks    INTEGER NOT NULL,
			completed      INTEGER NOT NULL,
			failed         INTEGER NOT NULL,
			cancelled      INTEGER NOT NULL,
			duration_ns    INTEGER NOT NULL,
			efficiency     REAL NOT NULL,
			throughput     REAL NOT NULL,
			workload_json  TEXT NOT NULL,
			metrics_json   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at)`,

		`CREATE TABLE IF NOT EXISTS report_tasks (
			report_id   TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
			idx         INTEGER NOT NULL,
			name        TEXT NOT NULL,
			status      TEXT NOT NULL,
			error       TEXT NOT NULL DEFAULT '',
			attempts    INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL,
			PRIMARY KEY (report_id, idx)
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Report Repository ──────────────────────────────────────────────────────

// SaveReport inserts or replaces a report and its task outcomes.
func (d *DB) SaveReport(ctx context.Context, r *bench.Report) error {
	workload, err := json.Marshal(r.Workload)
	if err != nil {
		return fmt.Errorf("encode workload: %w", err)
	}
	metrics, err := json.Marshal(r.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m := r.Metrics
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports (id, name, created_at, concurrency, interrupted,
			total_tasks, completed, failed, cancelled, duration_ns, efficiency, throughput,
			workload_json, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Name, r.CreatedAt.UnixNano(), r.Concurrency, r.Interrupted,
		m.TotalTasks, m.Completed, m.Failed, m.Cancelled, int64(m.TotalDuration), m.Efficiency, m.Throughput,
		string(workload), string(metrics),
	); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_tasks WHERE report_id = ?`, r.ID.String()); err != nil {
		return fmt.Errorf("clear report tasks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO report_tasks (report_id, idx, name, status, error, attempts, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, t := range r.Tasks {
		if _, err := stmt.ExecContext(ctx, r.ID.String(), t.Index, t.Name, string(t.Status), t.Error, t.Attempts, int64(t.Duration)); err != nil {
			return fmt.Errorf("insert report task %d: %w", t.Index, err)
		}
	}

	return tx.Commit()
}

// Report retrieves a single report with its task outcomes.
func (d *DB) Report(ctx context.Context, id uuid.UUID) (*bench.Report, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, concurrency, interrupted, workload_json, metrics_json
		 FROM reports WHERE id = ?`, id.String())
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT idx, name, status, error, attempts, duration_ns
		 FROM report_tasks WHERE report_id = ? ORDER BY idx`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t bench.TaskOutcome
		var status string
		var duration int64
		if err := rows.Scan(&t.Index, &t.Name, &status, &t.Error, &t.Attempts, &duration); err != nil {
			return nil, err
		}
		t.Status = core.TaskStatus(status)
		t.Duration = time.Duration(duration)
		r.Tasks = append(r.Tasks, t)
	}
	return r, rows.Err()
}

// ListReports returns the newest reports first, without task outcomes.
// A limit <= 0 returns every report.
func (d *DB) ListReports(ctx context.Context, limit int) ([]bench.Report, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name, created_at, concurrency, interrupted, workload_json, metrics_json
		 FROM reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []bench.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// DeleteReport removes a report and its task outcomes.
func (d *DB) DeleteReport(ctx context.Context, id uuid.UUID) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrReportNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*bench.Report, error) {
	var (
		r                 bench.Report
		id                string
		createdAt         int64
		workload, metrics string
	)
	if err := s.Scan(&id, &r.Name, &createdAt, &r.Concurrency, &r.Interrupted, &workload, &metrics); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse report id %q: %w", id, err)
	}
	r.ID = parsed
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(workload), &r.Workload); err != nil {
		return nil, fmt.Errorf("decode workload: %w", err)
	}
	if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	return &r, nil
}
