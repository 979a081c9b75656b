package ledger

import (
	"path/filepath"
	"sync"
	"testing"

	"matrixci/internal/security"
	"matrixci/pkg/hashutil"
)

func TestNewRecordAndHash(t *testing.T) {
	rec, err := NewRecord(0, "run-1", "test (3.9)", "smoke test", "success",
		hashutil.String("bcp -v output"), "", "runner-a")
	if err != nil {
		t.Fatalf("create record: %v", err)
	}

	h, err := rec.ComputeHash()
	if err != nil {
		t.Fatalf("recompute hash: %v", err)
	}
	if h != rec.Hash {
		t.Errorf("hash mismatch: got %s, want %s", rec.Hash, h)
	}
}

func TestAppendAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	pub, priv, _ := security.GenerateKeyPair()

	r1, _ := NewRecord(0, "run-1", "test", "build", "success", hashutil.String("out1"), "", "runner-a")
	if err := l.Append(r1, priv, pub); err != nil {
		t.Fatalf("append record 1: %v", err)
	}

	r2, _ := NewRecord(1, "run-1", "test", "unit tests", "success", hashutil.String("out2"), r1.Hash, "runner-a")
	if err := l.Append(r2, priv, pub); err != nil {
		t.Fatalf("append record 2: %v", err)
	}

	if err := l.VerifyChain(); err != nil {
		t.Errorf("chain verification failed: %v", err)
	}
}

func TestAppendRejectsForkedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, _ := Open(path)
	pub, priv, _ := security.GenerateKeyPair()

	r1, _ := NewRecord(0, "run-1", "test", "build", "success", hashutil.String("out1"), "", "runner-a")
	if err := l.Append(r1, priv, pub); err != nil {
		t.Fatalf("append record 1: %v", err)
	}

	fork, _ := NewRecord(1, "run-1", "test", "unit tests", "success", hashutil.String("out2"), "bogus", "runner-a")
	if err := l.Append(fork, priv, pub); err == nil {
		t.Error("expected a record that does not extend the head to be rejected")
	}
	if got := len(l.Records()); got != 1 {
		t.Errorf("ledger has %d records, want 1", got)
	}
}

func TestTamperingDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, _ := Open(path)
	pub, priv, _ := security.GenerateKeyPair()

	rec, _ := NewRecord(0, "run-1", "deploy", "ship it", "success", hashutil.String("log"), "", "runner-x")
	if err := l.Append(rec, priv, pub); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	l.Records()[0].LogHash = "fakehash"

	if err := l.VerifyChain(); err == nil {
		t.Error("expected verification failure after tampering")
	}
}

func TestSignatureTamperingDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, _ := Open(path)
	pub, priv, _ := security.GenerateKeyPair()

	rec, _ := NewRecord(0, "run-1", "test", "step", "failure", hashutil.String("log"), "", "runner-x")
	if err := l.Append(rec, priv, pub); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Flip a signature byte: the hashes still match, the signature no
	// longer does.
	sig := l.Records()[0].Signature
	if sig[:2] == "00" {
		l.Records()[0].Signature = "11" + sig[2:]
	} else {
		l.Records()[0].Signature = "00" + sig[2:]
	}
	if err := l.VerifyChain(); err == nil {
		t.Error("expected verification failure for a forged signature")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, _ := Open(path)
	pub, priv, _ := security.GenerateKeyPair()

	rec, _ := NewRecord(0, "run-1", "test", "build", "success", hashutil.String("persisted"), "", "runner-y")
	if err := l.Append(rec, priv, pub); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	if got := len(l2.Records()); got != 1 {
		t.Fatalf("reloaded ledger has %d records, want 1", got)
	}
	if err := l2.VerifyChain(); err != nil {
		t.Errorf("reloaded ledger verification failed: %v", err)
	}
}

func TestAppendResultSerializesConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, _ := Open(path)
	pub, priv, _ := security.GenerateKeyPair()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.AppendResult("run-1", "job", "step", "success",
				hashutil.String("out"), "runner-z", priv, pub); err != nil {
				t.Errorf("concurrent append: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(l.Records()); got != 20 {
		t.Fatalf("ledger has %d records, want 20", got)
	}
	if err := l.VerifyChain(); err != nil {
		t.Errorf("chain broken after concurrent appends: %v", err)
	}
}
