package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stronghold-labs/epochwatch/internal/ledger"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Ledger rows ---

// Append inserts one ledger row. Amounts travel as text so NUMERIC keeps
// the submitted precision; entries with no epoch store NULL.
func (s *Store) Append(ctx context.Context, e ledger.Entry) error {
	var epoch *int64
	if e.EpochKnown {
		v := int64(e.Epoch)
		epoch = &v
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_entries (reference, category, amount, currency, epoch, tx_reference, author, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.Reference, string(e.Category), e.Amount.String(), e.Currency, epoch, e.TxReference, e.Author, e.Notes, e.CreatedAt)
	return err
}

// Recent returns the newest ledger entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]ledger.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT reference, category, amount::text, currency, epoch, tx_reference, author, notes, created_at
		FROM ledger_entries
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e        ledger.Entry
			category string
			amount   string
			epoch    *int64
		)
		if err := rows.Scan(&e.Reference, &category, &amount, &e.Currency, &epoch, &e.TxReference, &e.Author, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Category = ledger.Category(category)
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", amount, err)
		}
		if epoch != nil {
			e.Epoch = uint64(*epoch)
			e.EpochKnown = true
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Schema repair ---

var ledgerColumns = map[string]string{
	"reference":    "TEXT NOT NULL UNIQUE",
	"category":     "TEXT NOT NULL",
	"amount":       "NUMERIC(20, 9) NOT NULL",
	"currency":     "TEXT NOT NULL DEFAULT 'SOL'",
	"epoch":        "BIGINT",
	"tx_reference": "TEXT NOT NULL DEFAULT ''",
	"author":       "TEXT NOT NULL",
	"notes":        "TEXT NOT NULL DEFAULT ''",
	"created_at":   "TIMESTAMPTZ NOT NULL DEFAULT now()",
}

// ReadHeaders reports the ledger table's column names in ordinal order,
// excluding the synthetic id column. An absent table reads as no headers.
func (s *Store) ReadHeaders(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_name = 'ledger_entries' AND column_name <> 'id'
		ORDER BY ordinal_position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var headers []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		headers = append(headers, name)
	}
	return headers, rows.Err()
}

// WriteHeaders repairs the ledger table so it carries the given columns:
// the table is created when absent and missing columns are added. Existing
// columns are never dropped or reordered.
func (s *Store) WriteHeaders(ctx context.Context, headers []string) error {
	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	for _, col := range headers {
		ddl, ok := ledgerColumns[col]
		if !ok {
			return fmt.Errorf("no column definition for header %q", col)
		}
		stmt := fmt.Sprintf(`ALTER TABLE ledger_entries ADD COLUMN IF NOT EXISTS %s %s`, col, ddl)
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", col, err)
		}
	}
	return nil
}
