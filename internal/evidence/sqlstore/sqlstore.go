package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/gavelhq/gavel/internal/evidence"
)

// Store persists evidence packs in SQLite. Suitable for single-node
// deployments and for durable local audit trails.
type Store struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS gavel_evidence_packs (
	pack_id       TEXT PRIMARY KEY,
	chain_id      TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	payload_json  TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	previous_id   TEXT NOT NULL DEFAULT '',
	previous_hash TEXT NOT NULL DEFAULT '',
	sealed        INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	sealed_at     TEXT NOT NULL DEFAULT '',
	key_id        TEXT NOT NULL DEFAULT '',
	sig           BLOB
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

	_, err = s.db.Exec(`
INSERT INTO gavel_evidence_packs
	(pack_id, chain_id, seq, payload_json, content_hash, previous_id, previous_hash, sealed, created_at, sealed_at, key_id, sig)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(pack_id) DO UPDATE SET
	payload_json = excluded.payload_json,
	content_hash = excluded.content_hash,
	sealed       = excluded.sealed,
	sealed_at    = excluded.sealed_at,
	key_id       = excluded.key_id,
	sig          = excluded.sig`,
		p.ID, p.ChainID, p.Seq, string(payload), p.ContentHash, p.PreviousID, p.PreviousHash,
		boolToInt(p.Sealed), p.CreatedAt, p.SealedAt, p.KeyID, p.Sig)
	return err
}

func (s *Store) GetPack(chainID, packID string) (evidence.Pack, bool, error) {
	row := s.db.QueryRow(`
SELECT pack_id, chain_id, seq, payload_json, content_hash, previous_id, previous_hash, sealed, created_at, sealed_at, key_id, sig
FROM gavel_evidence_packs WHERE chain_id = ? AND pack_id = ?`, chainID, packID)

	p, err := scanPack(row)
	if err == sql.ErrNoRows {
		return evidence.Pack{}, false, nil
	}
	if err != nil {
		return evidence.Pack{}, false, err
	}
	return p, true, nil
}

func (s *Store) ListChain(chainID string) ([]evidence.Pack, error) {
	rows, err := s.db.Query(`
SELECT pack_id, chain_id, seq, payload_json, content_hash, previous_id, previous_hash, sealed, created_at, sealed_at, key_id, sig
FROM gavel_evidence_packs WHERE chain_id = ? ORDER BY seq`, chainID)
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
	row := s.db.QueryRow(`
SELECT pack_id, chain_id, seq, payload_json, content_hash, previous_id, previous_hash, sealed, created_at, sealed_at, key_id, sig
FROM gavel_evidence_packs WHERE chain_id = ? ORDER BY seq DESC LIMIT 1`, chainID)

	p, err := scanPack(row)
	if err == sql.ErrNoRows {
		return evidence.Pack{}, false, nil
	}
	if err != nil {
		return evidence.Pack{}, false, err
	}
	return p, true, nil
}

func (s *Store) Chains() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT chain_id FROM gavel_evidence_packs ORDER BY chain_id`)
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
	var payload string
	var sealed int
	if err := row.Scan(&p.ID, &p.ChainID, &p.Seq, &payload, &p.ContentHash, &p.PreviousID,
		&p.PreviousHash, &sealed, &p.CreatedAt, &p.SealedAt, &p.KeyID, &p.Sig); err != nil {
		return evidence.Pack{}, err
	}
	p.Sealed = sealed != 0
	if err := json.Unmarshal([]byte(payload), &p.Payload); err != nil {
		return evidence.Pack{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
