package crypto

import (
	"encoding/hex"
	"testing"
)

func TestKeyRing_DeterministicSigning(t *testing.T) {
	kr := NewKeyRing()

	k1, _ := NewEd25519Signer("key1")
	k2, _ := NewEd25519Signer("key2")
	k3, _ := NewEd25519Signer("key3")

	kr.AddKey(k1)
	kr.AddKey(k2)
	kr.AddKey(k3)

	activeID, err := kr.ActiveKeyID()
	if err != nil {
		t.Fatalf("ActiveKeyID failed: %v", err)
	}
	if activeID != "key3" {
		t.Errorf("expected active key key3 (lexicographically last), got %s", activeID)
	}

	payload := []byte("decision-1:ALLOW:test")
	sigHex, err := kr.Sign(payload)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		t.Fatalf("signature not hex: %v", err)
	}

	valid, err := kr.VerifyKey("key3", payload, sig)
	if err != nil {
		t.Fatalf("VerifyKey failed: %v", err)
	}
	if !valid {
		t.Error("VerifyKey returned false for the signing key")
	}

	if !kr.Verify(payload, sig) {
		t.Error("Verify returned false scanning all keys")
	}
}

func TestKeyRing_VerifyKey(t *testing.T) {
	kr := NewKeyRing()
	k1, _ := NewEd25519Signer("key1")
	kr.AddKey(k1)

	msg := []byte("hello world")
	sigHex, err := k1.Sign(msg)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	sigBytes, _ := hex.DecodeString(sigHex)

	valid, err := kr.VerifyKey("key1", msg, sigBytes)
	if err != nil {
		t.Fatalf("VerifyKey failed: %v", err)
	}
	if !valid {
		t.Error("VerifyKey returned false")
	}

	_, err = kr.VerifyKey("unknown", msg, sigBytes)
	if err == nil {
		t.Error("VerifyKey should fail for unknown key")
	}
}

func TestKeyRing_RevokeKey(t *testing.T) {
	kr := NewKeyRing()
	k1, _ := NewEd25519Signer("key1")
	kr.AddKey(k1)
	kr.RevokeKey("key1")

	if _, err := kr.ActiveKeyID(); err == nil {
		t.Error("expected error after revoking the only key")
	}
}
