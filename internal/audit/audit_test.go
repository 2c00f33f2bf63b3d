package audit

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fraudlens/fraudlens/pkg/types"
)

func openTestLogger(t *testing.T, dir string) *Logger {
	t.Helper()
	l, err := Open(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

type testPayload struct {
	TransactionID string `json:"transaction_id"`
	Note          string `json:"note"`
}

func TestAppendAssignsStrictlyIncreasingSeq(t *testing.T) {
	dir := t.TempDir()
	l := openTestLogger(t, dir)

	const n = 25
	for i := 0; i < n; i++ {
		rec, err := l.Append(types.RecordDecision, testPayload{TransactionID: "h-1", Note: "x"})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if rec.Seq != uint64(i+1) {
			t.Fatalf("append %d: seq %d", i, rec.Seq)
		}
	}

	recs, err := ReadAll(filepath.Join(dir, "audit.jsonl"), 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != n {
		t.Fatalf("want %d records, got %d", n, len(recs))
	}
	for i, rec := range recs {
		if rec.Seq != uint64(i+1) {
			t.Fatalf("record %d has seq %d", i, rec.Seq)
		}
	}
}

func TestAppendPreservesPayload(t *testing.T) {
	dir := t.TempDir()
	l := openTestLogger(t, dir)

	in := testPayload{TransactionID: "h-2", Note: "exact payload"}
	if _, err := l.Append(types.RecordNarrativeAttempt, in); err != nil {
		t.Fatalf("append: %v", err)
	}

	recs, err := ReadAll(filepath.Join(dir, "audit.jsonl"), 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out testPayload
	if err := json.Unmarshal(recs[0].Payload, &out); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if out != in {
		t.Fatalf("payload mutated: %+v != %+v", out, in)
	}
}

func TestOpenRecoversSequence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := l.Append(types.RecordDecision, testPayload{TransactionID: "h-3"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	rec, err := l2.Append(types.RecordDecision, testPayload{TransactionID: "h-3"})
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if rec.Seq != 4 {
		t.Fatalf("expected seq 4 after reopen, got %d", rec.Seq)
	}

	res, err := VerifyChain(path)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Valid || res.Records != 4 {
		t.Fatalf("chain broken across reopen: %+v", res)
	}
}

func TestAppendConcurrentWritersSerialize(t *testing.T) {
	dir := t.TempDir()
	l := openTestLogger(t, dir)

	const writers, each = 8, 10
	done := make(chan error, writers)
	for w := 0; w < writers; w++ {
		go func() {
			for i := 0; i < each; i++ {
				if _, err := l.Append(types.RecordDecision, testPayload{TransactionID: "h-c"}); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}()
	}
	for w := 0; w < writers; w++ {
		if err := <-done; err != nil {
			t.Fatalf("writer: %v", err)
		}
	}

	res, err := VerifyChain(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Valid || res.Records != writers*each {
		t.Fatalf("interleaved writes corrupted log: %+v", res)
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := l.Append(types.RecordDecision, testPayload{TransactionID: "h-4", Note: "original"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	tampered := strings.Replace(string(data), "original", "rewritten", 1)
	if tampered == string(data) {
		t.Fatalf("tamper target not found")
	}
	if err := os.WriteFile(path, []byte(tampered), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := VerifyChain(path)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Valid {
		t.Fatalf("tampered log verified clean")
	}
	if res.BadSeq != 1 {
		t.Fatalf("expected divergence at seq 1, got %d", res.BadSeq)
	}
}

func TestAppendRejectsInvalidKind(t *testing.T) {
	l := openTestLogger(t, t.TempDir())
	if _, err := l.Append(types.RecordKind("bogus"), testPayload{}); err == nil {
		t.Fatalf("expected invalid kind error")
	}
}

func TestAppendAfterCloseIsAuditWriteError(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = l.Close()

	_, err = l.Append(types.RecordDecision, testPayload{TransactionID: "h-5"})
	if !errors.Is(err, ErrAuditWrite) {
		t.Fatalf("expected ErrAuditWrite, got %v", err)
	}
}

func TestReadAllTailLimit(t *testing.T) {
	dir := t.TempDir()
	l := openTestLogger(t, dir)
	for i := 0; i < 5; i++ {
		if _, err := l.Append(types.RecordDecision, testPayload{TransactionID: "h-6"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recs, err := ReadAll(filepath.Join(dir, "audit.jsonl"), 2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 2 || recs[0].Seq != 4 || recs[1].Seq != 5 {
		t.Fatalf("unexpected tail: %+v", recs)
	}
}

func TestReadAllMissingFileIsEmpty(t *testing.T) {
	recs, err := ReadAll(filepath.Join(t.TempDir(), "nope.jsonl"), 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if recs != nil {
		t.Fatalf("expected no records, got %+v", recs)
	}
}
