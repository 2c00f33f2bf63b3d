// Package sqlstore mirrors the JSONL audit log into sqlite so analysts can
// query by transaction, kind, or recency. The file log remains the source
// of truth; this index can always be rebuilt from it.
package sqlstore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/fraudlens/fraudlens/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
  seq            INTEGER PRIMARY KEY,
  kind           TEXT NOT NULL,
  timestamp      TEXT NOT NULL,
  transaction_id TEXT,
  payload        TEXT NOT NULL,
  prev_hash      TEXT,
  hash           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_txn ON audit_records (transaction_id);
CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit_records (kind);
`

type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Insert mirrors one appended record. Re-inserting an existing sequence is
// rejected; the log never rewrites history and neither does its index.
func (s *Store) Insert(rec types.AuditRecord, transactionID string) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_records (seq, kind, timestamp, transaction_id, payload, prev_hash, hash)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Seq, string(rec.Kind), rec.Timestamp, transactionID, string(rec.Payload), rec.PrevHash, rec.Hash,
	)
	if err != nil {
		return fmt.Errorf("mirror seq %d: %w", rec.Seq, err)
	}
	return nil
}

func (s *Store) ListByTransaction(transactionID string) ([]types.AuditRecord, error) {
	rows, err := s.db.Query(
		`SELECT seq, kind, timestamp, payload, prev_hash, hash
FROM audit_records WHERE transaction_id = ? ORDER BY seq ASC`, transactionID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) ListRecent(limit int) ([]types.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT seq, kind, timestamp, payload, prev_hash, hash
FROM audit_records ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	recs, err := collect(rows)
	if err != nil {
		return nil, err
	}
	// Back to write order.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

func (s *Store) CountByKind(kind types.RecordKind) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM audit_records WHERE kind = ?`, string(kind)).Scan(&n)
	return n, err
}

func collect(rows *sql.Rows) ([]types.AuditRecord, error) {
	defer rows.Close()

	var recs []types.AuditRecord
	for rows.Next() {
		var (
			rec     types.AuditRecord
			kind    string
			payload string
		)
		if err := rows.Scan(&rec.Seq, &kind, &rec.Timestamp, &payload, &rec.PrevHash, &rec.Hash); err != nil {
			return nil, err
		}
		rec.Kind = types.RecordKind(kind)
		rec.Payload = []byte(payload)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
