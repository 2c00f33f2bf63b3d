package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fraudlens/fraudlens/pkg/types"
)

// maxLineBytes bounds one audit line; payloads are small structured
// records, not blobs.
const maxLineBytes = 1 << 20

// Scan streams every record in a log destination in write order. The
// callback returning an error stops the scan.
func Scan(path string, fn func(types.AuditRecord) error) error {
	// #nosec G304 -- path is an operator-configured log destination.
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec types.AuditRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("parse audit line %d: %w", line, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ReadAll returns up to limit records from the tail of the log in write
// order. A non-positive limit returns everything.
func ReadAll(path string, limit int) ([]types.AuditRecord, error) {
	var recs []types.AuditRecord
	err := Scan(path, func(rec types.AuditRecord) error {
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return recs, nil
}
