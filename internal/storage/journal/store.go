// Package journal persists a diagnostic record of every gateway round trip.
// It runs on SQLite for a single desktop install and on Postgres when several
// installs share one journal.
package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"driftwood/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var schema = map[string]string{
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS call_journal (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			command         TEXT NOT NULL,
			result          BOOLEAN NOT NULL,
			status          INTEGER NOT NULL,
			message         TEXT NOT NULL,
			transport_error TEXT NOT NULL,
			duration_ns     INTEGER NOT NULL,
			called_at       TIMESTAMP NOT NULL
		)`,
	DriverPostgres: `
		CREATE TABLE IF NOT EXISTS call_journal (
			id              BIGSERIAL PRIMARY KEY,
			command         TEXT NOT NULL,
			result          BOOLEAN NOT NULL,
			status          INTEGER NOT NULL,
			message         TEXT NOT NULL,
			transport_error TEXT NOT NULL,
			duration_ns     BIGINT NOT NULL,
			called_at       TIMESTAMPTZ NOT NULL
		)`,
}

type Store struct {
	db         *sqlx.DB
	tx         *TransactionManager
	maxEntries int
	logger     *slog.Logger
}

// Open connects to the journal database and creates the table if needed.
func Open(ctx context.Context, driver, dsn string, maxEntries int, logger *slog.Logger) (*Store, error) {
	ddl, ok := schema[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to journal: %w", err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps ":memory:" to a single database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	logger.Info("journal opened", "driver", driver, "max_entries", maxEntries)
	return New(db, maxEntries, logger), nil
}

func New(db *sqlx.DB, maxEntries int, logger *slog.Logger) *Store {
	return &Store{
		db:         db,
		tx:         NewTransactionManager(db),
		maxEntries: maxEntries,
		logger:     logger,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends rec and drops the oldest entries beyond the configured
// maximum. A maximum of zero keeps everything.
func (s *Store) Record(ctx context.Context, rec domain.CallRecord) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, s.db)

		query := s.db.Rebind(`
			INSERT INTO call_journal (
				command, result, status, message, transport_error, duration_ns, called_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id`)

		var id int64
		err := exec.QueryRowxContext(ctx, query,
			rec.Command,
			rec.Result,
			rec.Status,
			rec.Message,
			rec.Transport,
			int64(rec.Duration),
			rec.CalledAt,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert call record: %w", err)
		}

		if s.maxEntries <= 0 {
			return nil
		}

		res, err := exec.ExecContext(ctx, s.db.Rebind(`
			DELETE FROM call_journal
			WHERE id NOT IN (
				SELECT id FROM call_journal ORDER BY id DESC LIMIT ?
			)`), s.maxEntries)
		if err != nil {
			return fmt.Errorf("prune journal: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			s.logger.Debug("pruned journal", "removed", n)
		}
		return nil
	})
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.CallRecord, error) {
	query := s.db.Rebind(`
		SELECT id, command, result, status, message, transport_error, duration_ns, called_at
		FROM call_journal
		ORDER BY id DESC
		LIMIT ?`)

	var records []domain.CallRecord
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &records, query, limit); err != nil {
		return nil, fmt.Errorf("select call records: %w", err)
	}
	return records, nil
}

// Failures counts the failed calls of command still in the journal.
func (s *Store) Failures(ctx context.Context, command string) (int, error) {
	query := s.db.Rebind(`
		SELECT COUNT(*) FROM call_journal
		WHERE command = ? AND (result = ? OR transport_error <> '')`)

	var n int
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &n, query, command, false); err != nil {
		return 0, fmt.Errorf("count failures: %w", err)
	}
	return n, nil
}
