package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gavelhq/gavel/internal/evidence"
)

// Store persists evidence packs in PostgreSQL through a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS gavel_evidence_packs (
	pack_id       TEXT PRIMARY KEY,
	chain_id      TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	payload_json  JSONB NOT NULL,
	content_hash  TEXT NOT NULL,
	previous_id   TEXT NOT NULL DEFAULT '',
	previous_hash TEXT NOT NULL DEFAULT '',
	sealed        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TEXT NOT NULL,
	sealed_at     TEXT NOT NULL DEFAULT '',
	key_id        TEXT NOT NULL DEFAULT '',
	sig           BYTEA
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_gavel_chain_seq ON gavel_evidence_packs (chain_id, seq);
`)
	return err
}

func (s *Store) PutPack(p evidence.Pack) error {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = s.pool.Exec(context.Background(), `
INSERT INTO gavel_evidence_packs
	(pack_id, chain_id, seq, payload_json, content_hash, previous_id, previous_hash, sealed, created_at, sealed_at, key_id, sig)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (pack_id) DO UPDATE SET
	payload_json = EXCLUDED.payload_json,
	content_hash = EXCLUDED.content_hash,
	sealed       = EXCLUDED.sealed,
	sealed_at    = EXCLUDED.sealed_at,
	key_id       = EXCLUDED.key_id,
	sig          = EXCLUDED.sig`,
		p.ID, p.ChainID, p.Seq, payload, p.ContentHash, p.PreviousID, p.PreviousHash,
		p.Sealed, p.CreatedAt, p.SealedAt, p.KeyID, p.Sig)
	return err
}

const selectColumns = `pack_id, chain_id, seq, payload_json, content_hash, previous_id, previous_hash, sealed, created_at, sealed_at, key_id, sig`

func (s *Store) GetPack(chainID, packID string) (evidence.Pack, bool, error) {
	row := s.pool.QueryRow(context.Background(),
		`SELECT `+selectColumns+` FROM gavel_evidence_packs WHERE chain_id = $1 AND pack_id = $2`, chainID, packID)

	p, err := scanPack(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return evidence.Pack{}, false, nil
	}
	if err != nil {
		return evidence.Pack{}, false, err
	}
	return p, true, nil
}

func (s *Store) ListChain(chainID string) ([]evidence.Pack, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT `+selectColumns+` FROM gavel_evidence_packs WHERE chain_id = $1 ORDER BY seq`, chainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []evidence.Pack
	for rows.Next() {
		p, err := scanPack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Head(chainID string) (evidence.Pack, bool, error) {
	row := s.pool.QueryRow(context.Background(),
		`SELECT `+selectColumns+` FROM gavel_evidence_packs WHERE chain_id = $1 ORDER BY seq DESC LIMIT 1`, chainID)

	p, err := scanPack(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return evidence.Pack{}, false, nil
	}
	if err != nil {
		return evidence.Pack{}, false, err
	}
	return p, true, nil
}

func (s *Store) Chains() ([]string, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT DISTINCT chain_id FROM gavel_evidence_packs ORDER BY chain_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPack(row rowScanner) (evidence.Pack, error) {
	var p evidence.Pack
	var payload []byte
	if err := row.Scan(&p.ID, &p.ChainID, &p.Seq, &payload, &p.ContentHash, &p.PreviousID,
		&p.PreviousHash, &p.Sealed, &p.CreatedAt, &p.SealedAt, &p.KeyID, &p.Sig); err != nil {
		return evidence.Pack{}, err
	}
	if err := json.Unmarshal(payload, &p.Payload); err != nil {
		return evidence.Pack{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
