// Package audit owns the append-only governance log. The logger is the
// only writer to a destination and the only assigner of sequence numbers.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fraudlens/fraudlens/internal/crypto"
	"github.com/fraudlens/fraudlens/pkg/types"
)

// ErrAuditWrite means the durable write could not complete. This is fatal
// to the enclosing request: an unaudited decision must not be reported as
// successful.
var ErrAuditWrite = errors.New("audit write failed")

// Mirror receives a copy of every appended record for indexed queries. The
// JSONL file stays the source of truth; mirror failures are non-fatal.
type Mirror interface {
	Insert(rec types.AuditRecord, transactionID string) error
}

// Logger appends hash-chained records to one JSONL destination. Appends
// serialize through a single mutex scoped to the destination; the critical
// section covers sequence assignment, the write, and the fsync.
type Logger struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	seq      uint64
	lastHash string
	mirror   Mirror
	Now      func() time.Time
}

// Open opens (or creates) a log destination and recovers the sequence and
// chain tip from any existing records.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}

	var (
		seq      uint64
		lastHash string
	)
	err := Scan(path, func(rec types.AuditRecord) error {
		if rec.Seq != seq+1 {
			return fmt.Errorf("log %s corrupt: seq %d follows %d", path, rec.Seq, seq)
		}
		seq = rec.Seq
		lastHash = rec.Hash
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	// #nosec G304 -- path is an operator-configured log destination.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &Logger{f: f, path: path, seq: seq, lastHash: lastHash}, nil
}

func (l *Logger) SetMirror(m Mirror) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mirror = m
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// chainBody is the hashed projection of a record: everything except the
// hash itself. Field order is fixed so the chain is reproducible.
type chainBody struct {
	Seq       uint64           `json:"seq"`
	Kind      types.RecordKind `json:"kind"`
	Timestamp string           `json:"timestamp"`
	Payload   json.RawMessage  `json:"payload"`
	PrevHash  string           `json:"prev_hash,omitempty"`
}

// Append assigns the next sequence number, chains and durably writes the
// record before returning. Records are never reordered, merged, updated or
// deleted.
func (l *Logger) Append(kind types.RecordKind, payload any) (types.AuditRecord, error) {
	if !kind.Valid() {
		return types.AuditRecord{}, fmt.Errorf("invalid record kind %q", kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return types.AuditRecord{}, fmt.Errorf("%w: marshal payload: %v", ErrAuditWrite, err)
	}

	now := time.Now
	if l.Now != nil {
		now = l.Now
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	body := chainBody{
		Seq:       l.seq + 1,
		Kind:      kind,
		Timestamp: now().UTC().Format(time.RFC3339Nano),
		Payload:   raw,
		PrevHash:  l.lastHash,
	}
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return types.AuditRecord{}, fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}

	rec := types.AuditRecord{
		Seq:       body.Seq,
		Kind:      body.Kind,
		Timestamp: body.Timestamp,
		Payload:   body.Payload,
		PrevHash:  body.PrevHash,
		Hash:      crypto.ChainHash(l.lastHash, bodyJSON),
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return types.AuditRecord{}, fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}
	line = append(line, '\n')

	if _, err := l.f.Write(line); err != nil {
		return types.AuditRecord{}, fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}
	if err := l.f.Sync(); err != nil {
		return types.AuditRecord{}, fmt.Errorf("%w: sync: %v", ErrAuditWrite, err)
	}

	l.seq = rec.Seq
	l.lastHash = rec.Hash

	if l.mirror != nil {
		if err := l.mirror.Insert(rec, transactionIDOf(raw)); err != nil {
			log.Printf("audit mirror insert failed (seq %d): %v", rec.Seq, err)
		}
	}
	return rec, nil
}

// transactionIDOf sniffs the payload for its transaction identifier so the
// mirror can index by transaction.
func transactionIDOf(payload []byte) string {
	var probe struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.TransactionID
}
