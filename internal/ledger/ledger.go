package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Ledger is the persistent chain of records. The file format is JSON lines,
// one record per line, appended and never rewritten.
type Ledger struct {
	mu      sync.Mutex
	records []*Record
	path    string
}

// Open loads an existing ledger file or creates an empty one.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		_ = f.Close()
		return l, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode ledger entry: %w", err)
		}
		l.records = append(l.records, &rec)
	}
	return l, nil
}

// Append signs the record with the runner's private key, checks the chain
// link, persists it, and keeps it in memory.
func (l *Ledger) Append(r *Record, priv ed25519.PrivateKey, pub ed25519.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(r, priv, pub)
}

// AppendResult builds the next record in the chain and appends it. Index and
// prevHash are assigned under the lock, so concurrent jobs serialize cleanly.
func (l *Ledger) AppendResult(runID, job, step, status, logHash, runnerID string, priv ed25519.PrivateKey, pub ed25519.PublicKey) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := NewRecord(len(l.records), runID, job, step, status, logHash, l.lastHashLocked(), runnerID)
	if err != nil {
		return nil, err
	}
	if err := l.appendLocked(rec, priv, pub); err != nil {
		return nil, err
	}
	return rec, nil
}

func (l *Ledger) appendLocked(r *Record, priv ed25519.PrivateKey, pub ed25519.PublicKey) error {
	if len(priv) == 0 {
		return fmt.Errorf("ledger has no signing key, refusing unsigned record %d", r.Index)
	}
	if last := l.lastHashLocked(); r.PrevHash != last {
		return fmt.Errorf("record %d does not extend the chain: head is %q, record links %q", r.Index, last, r.PrevHash)
	}

	// Hash over the canonical fields as they stand now, so a caller-set
	// hash cannot drift from the signed content.
	h, err := r.ComputeHash()
	if err != nil {
		return fmt.Errorf("hash record %d: %w", r.Index, err)
	}
	r.Hash = h

	sig := ed25519.Sign(priv, []byte(r.Hash))
	r.Signature = hex.EncodeToString(sig)
	r.PubKey = hex.EncodeToString(pub)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(r); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}

	l.records = append(l.records, r)
	return nil
}

// NextIndex returns the index the next appended record must carry.
func (l *Ledger) NextIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// LastHash returns the hash of the newest record, or "" for an empty chain.
func (l *Ledger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastHashLocked()
}

func (l *Ledger) lastHashLocked() string {
	if len(l.records) == 0 {
		return ""
	}
	return l.records[len(l.records)-1].Hash
}

// Records returns the in-memory chain.
func (l *Ledger) Records() []*Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records
}
