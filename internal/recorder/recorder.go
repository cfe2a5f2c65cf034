// Package recorder provides SQLite-backed persistence of simulation output:
// node power samples and message receptions, keyed by run ID so several runs
// can share one database file and be profiled or compared afterwards.
package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Recorder writes run output to a SQLite database.
type Recorder struct {
	db    *sql.DB
	runID string
}

// Open creates (or opens) the database at dbPath, runs migrations, and
// starts a new run.
func Open(dbPath string) (*Recorder, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	r := &Recorder{db: db, runID: uuid.New().String()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

// RunID returns the identifier rows of this run are keyed by.
func (r *Recorder) RunID() string { return r.runID }

// Close closes the database connection.
func (r *Recorder) Close() error { return r.db.Close() }

// migrate runs idempotent schema migrations.
func (r *Recorder) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS power_samples (
		run_id TEXT NOT NULL,
		node TEXT NOT NULL,
		sim_time_ms INTEGER NOT NULL,
		power_w REAL NOT NULL,
		energy_j REAL NOT NULL,
		charge_c REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		run_id TEXT NOT NULL,
		port TEXT NOT NULL,
		sim_time_ms INTEGER NOT NULL,
		size_bytes REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_power_samples_run ON power_samples(run_id, node);
	CREATE INDEX IF NOT EXISTS idx_messages_run ON messages(run_id, port);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return err
	}
	_, err := r.db.Exec(
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		r.runID, time.Now().UTC(),
	)
	return err
}

// RecordPowerSample persists one node power sample. at is the simulated
// instant; the epoch is whatever the calendar was started with.
func (r *Recorder) RecordPowerSample(node string, at time.Time, powerW, energyJ, chargeC float64) error {
	_, err := r.db.Exec(
		`INSERT INTO power_samples (run_id, node, sim_time_ms, power_w, energy_j, charge_c) VALUES (?, ?, ?, ?, ?, ?)`,
		r.runID, node, at.UnixMilli(), powerW, energyJ, chargeC,
	)
	if err != nil {
		return fmt.Errorf("record power sample: %w", err)
	}
	return nil
}

// RecordMessage persists one message reception.
func (r *Recorder) RecordMessage(port string, at time.Time, sizeBytes float64) error {
	_, err := r.db.Exec(
		`INSERT INTO messages (run_id, port, sim_time_ms, size_bytes) VALUES (?, ?, ?, ?)`,
		r.runID, port, at.UnixMilli(), sizeBytes,
	)
	if err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	return nil
}

// MessageCount returns the number of messages recorded for this run on the
// named port.
func (r *Recorder) MessageCount(port string) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE run_id = ? AND port = ?`,
		r.runID, port,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// PowerSampleCount returns the number of power samples recorded for this run
// on the named node.
func (r *Recorder) PowerSampleCount(node string) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM power_samples WHERE run_id = ? AND node = ?`,
		r.runID, node,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count power samples: %w", err)
	}
	return n, nil
}
