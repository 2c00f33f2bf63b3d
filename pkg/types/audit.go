package types

import "encoding/json"

type RecordKind string

const (
	RecordDecision         RecordKind = "decision"
	RecordNarrativeAttempt RecordKind = "narrative_attempt"
	RecordPolicyFreeze     RecordKind = "policy_freeze"
)

func (k RecordKind) Valid() bool {
	switch k {
	case RecordDecision, RecordNarrativeAttempt, RecordPolicyFreeze:
		return true
	default:
		return false
	}
}

// AuditRecord is one immutable entry in the append-only governance log.
// Seq is assigned by the logger and strictly increases per destination.
// Hash chains each record to its predecessor; PrevHash of the first record
// is empty.
type AuditRecord struct {
	Seq       uint64          `json:"seq"`
	Kind      RecordKind      `json:"kind"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prev_hash,omitempty"`
	Hash      string          `json:"hash"`
}
