package cache

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	createLanguageCodes = `
CREATE TABLE IF NOT EXISTS language_codes (
    qid        TEXT PRIMARY KEY,
    code       TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	upsertLanguageCode = `
INSERT INTO language_codes (qid, code, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (qid) DO UPDATE SET code = EXCLUDED.code, updated_at = now()`

	selectLanguageCodes = `SELECT qid, code FROM language_codes`
)

// Store persists the language code map in PostgreSQL so that a run can fall
// back to the previous snapshot when the query service is unavailable.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the snapshot table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createLanguageCodes); err != nil {
		return fmt.Errorf("create language_codes: %w", err)
	}
	return nil
}

// SaveLanguages upserts every code in a single batch.
func (s *Store) SaveLanguages(ctx context.Context, codes map[string]string) error {
	batch := &pgx.Batch{}
	for qid, code := range codes {
		batch.Queue(upsertLanguageCode, qid, code)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save language codes: %w", err)
	}

	log.Debug().Int("count", len(codes)).Msg("Saved language code snapshot")
	return nil
}

// LoadLanguages reads the last saved snapshot.
func (s *Store) LoadLanguages(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, selectLanguageCodes)
	if err != nil {
		return nil, fmt.Errorf("load language codes: %w", err)
	}
	defer rows.Close()

	codes := make(map[string]string)
	for rows.Next() {
		var qid, code string
		if err := rows.Scan(&qid, &code); err != nil {
			return nil, fmt.Errorf("scan language code: %w", err)
		}
		codes[qid] = code
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate language codes: %w", err)
	}

	log.Info().Int("count", len(codes)).Msg("Loaded language code snapshot")
	return codes, nil
}
