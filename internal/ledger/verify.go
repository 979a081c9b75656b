package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// VerifyChain recomputes every record hash, link, index, and signature to
// detect tampering.
func (l *Ledger) VerifyChain() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, r := range l.records {
		h, err := r.ComputeHash()
		if err != nil {
			return fmt.Errorf("compute hash for index %d: %w", r.Index, err)
		}
		if h != r.Hash {
			return fmt.Errorf("hash mismatch at index %d", r.Index)
		}

		if i > 0 && r.PrevHash != l.records[i-1].Hash {
			return fmt.Errorf("prevHash mismatch at index %d", r.Index)
		}
		if r.Index != i {
			return fmt.Errorf("index mismatch: expected %d, got %d", i, r.Index)
		}

		if r.Signature != "" {
			pub, err := hex.DecodeString(r.PubKey)
			if err != nil || len(pub) != ed25519.PublicKeySize {
				return fmt.Errorf("invalid public key at index %d", r.Index)
			}
			sig, err := hex.DecodeString(r.Signature)
			if err != nil {
				return fmt.Errorf("invalid signature encoding at index %d", r.Index)
			}
			if !ed25519.Verify(ed25519.PublicKey(pub), []byte(r.Hash), sig) {
				return fmt.Errorf("signature verification failed at index %d", r.Index)
			}
		}
	}
	return nil
}
