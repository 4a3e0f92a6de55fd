package store

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS ledger_entries (
    id BIGSERIAL PRIMARY KEY,
    reference TEXT NOT NULL UNIQUE,
    category TEXT NOT NULL,
    amount NUMERIC(20, 9) NOT NULL,
    currency TEXT NOT NULL DEFAULT 'SOL',
    epoch BIGINT,
    tx_reference TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS ledger_entries_created_at_idx ON ledger_entries (created_at DESC);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
