package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/screenlens/screenlens/internal/ir"
)

// Store is the file-backed embedded IR store.
type Store struct {
	db    *sqlx.DB
	lease string
}

// Open creates or opens the store at path, applies the schema, and takes
// the process-wide lease for it.
func Open(path string) (*Store, error) {
	lease, err := acquireLease(path)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			releaseLease(lease)
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		releaseLease(lease)
		return nil, fmt.Errorf("open store: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// table-lock errors inside the apply transaction.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		releaseLease(lease)
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, lease: lease}, nil
}

// Close releases the database handle and the lease.
func (s *Store) Close() error {
	releaseLease(s.lease)
	return s.db.Close()
}

// WithTx runs fn inside a transaction, rolling back on error.
func (s *Store) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertRun writes the run row. The orchestrator calls this with
// status=running before parsing starts.
func (s *Store) InsertRun(ctx context.Context, run ir.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, status, source_version)
		 VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt, run.FinishedAt, run.Status, nullable(run.SourceVersion))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}
	return nil
}

// FinalizeRun moves a run to its terminal status. Records of the run are
// immutable afterwards.
func (s *Store) FinalizeRun(ctx context.Context, runID string, status ir.RunStatus, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE run_id = ?`,
		status, finishedAt, runID)
	if err != nil {
		return fmt.Errorf("finalize run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finalize run %s: run not found", runID)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
