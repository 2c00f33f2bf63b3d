package audit

import (
	"encoding/json"
	"fmt"

	"github.com/fraudlens/fraudlens/internal/crypto"
	"github.com/fraudlens/fraudlens/pkg/types"
)

type VerifyResult struct {
	Records int    `json:"records"`
	Valid   bool   `json:"valid"`
	BadSeq  uint64 `json:"bad_seq,omitempty"`
	Problem string `json:"problem,omitempty"`
	TipHash string `json:"tip_hash,omitempty"`
}

// VerifyChain re-derives the hash chain over a log destination and reports
// the first divergence, if any. A log that verifies clean has exactly the
// records that were appended, in order, unmodified.
func VerifyChain(path string) (VerifyResult, error) {
	res := VerifyResult{Valid: true}

	var (
		prevSeq  uint64
		prevHash string
	)
	err := Scan(path, func(rec types.AuditRecord) error {
		res.Records++
		if !res.Valid {
			return nil
		}
		if rec.Seq != prevSeq+1 {
			res.fail(rec.Seq, fmt.Sprintf("sequence gap: %d follows %d", rec.Seq, prevSeq))
			return nil
		}
		if rec.PrevHash != prevHash {
			res.fail(rec.Seq, "prev_hash does not match preceding record")
			return nil
		}

		body := chainBody{
			Seq:       rec.Seq,
			Kind:      rec.Kind,
			Timestamp: rec.Timestamp,
			Payload:   rec.Payload,
			PrevHash:  rec.PrevHash,
		}
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			return err
		}
		if got := crypto.ChainHash(prevHash, bodyJSON); got != rec.Hash {
			res.fail(rec.Seq, "record hash does not match its contents")
			return nil
		}

		prevSeq = rec.Seq
		prevHash = rec.Hash
		res.TipHash = rec.Hash
		return nil
	})
	if err != nil {
		return VerifyResult{}, err
	}
	return res, nil
}

func (r *VerifyResult) fail(seq uint64, problem string) {
	r.Valid = false
	r.BadSeq = seq
	r.Problem = problem
	r.TipHash = ""
}
