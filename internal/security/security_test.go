package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeyPairRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "runner.pub")
	privPath := filepath.Join(dir, "runner.priv")

	pub, priv, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := SaveKeyPair(pub, priv, pubPath, privPath); err != nil {
		t.Fatalf("save: %v", err)
	}

	loadedPub, err := LoadPublicKey(pubPath)
	if err != nil {
		t.Fatalf("load public: %v", err)
	}
	loadedPriv, err := LoadPrivateKey(privPath)
	if err != nil {
		t.Fatalf("load private: %v", err)
	}
	if !pub.Equal(loadedPub) || !priv.Equal(loadedPriv) {
		t.Error("loaded keys differ from generated keys")
	}
}

func TestLoadRejectsCorruptKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.key")
	if err := os.WriteFile(path, []byte("deadbeef"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPrivateKey(path); err == nil {
		t.Error("short private key should fail to load")
	}
	if _, err := LoadPublicKey(path); err == nil {
		t.Error("short public key should fail to load")
	}
}

func TestEnsureKeyPair(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "keys", "runner.pub")
	privPath := filepath.Join(dir, "keys", "runner.priv")

	pub1, _, err := EnsureKeyPair(pubPath, privPath)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}

	pub2, _, err := EnsureKeyPair(pubPath, privPath)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if !pub1.Equal(pub2) {
		t.Error("second ensure should load the existing key, not regenerate")
	}
}

func TestWebhookSignature(t *testing.T) {
	body := []byte(`{"type":"push","branch":"master"}`)
	header := SignWebhookBody("s3cret", body)

	if !VerifyWebhookSignature("s3cret", body, header) {
		t.Error("valid signature rejected")
	}
	if VerifyWebhookSignature("other-secret", body, header) {
		t.Error("signature accepted under the wrong secret")
	}
	if VerifyWebhookSignature("s3cret", []byte(`{"type":"push"}`), header) {
		t.Error("signature accepted for a different body")
	}
	if VerifyWebhookSignature("s3cret", body, "deadbeef") {
		t.Error("header without sha256= prefix accepted")
	}
}
