package crypto

import (
	"fmt"
	"sort"
	"sync"
)

// KeyRing holds multiple signers keyed by key ID, supporting rotation:
// old keys stay registered for verification after a new active key is added.
type KeyRing struct {
	mu      sync.RWMutex
	signers map[string]Signer
}

// NewKeyRing creates a new empty KeyRing.
func NewKeyRing() *KeyRing {
	return &KeyRing{
		signers: make(map[string]Signer),
	}
}

// AddKey adds a signer to the keyring.
func (k *KeyRing) AddKey(s Signer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if ed, ok := s.(*Ed25519Signer); ok {
		k.signers[ed.KeyID()] = s
	}
}

// RevokeKey removes a key from the keyring by ID.
func (k *KeyRing) RevokeKey(keyID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.signers, keyID)
}

// activeKeyLocked deterministically selects the active key: the
// lexicographically last key ID. Callers hold k.mu.
func (k *KeyRing) activeKeyLocked() (string, error) {
	var keys []string
	for id := range k.signers {
		keys = append(keys, id)
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("no keyring keys available")
	}
	sort.Strings(keys)
	return keys[len(keys)-1], nil
}

// Sign signs data with the active key and returns the hex signature. It
// does not return the key ID; ActiveKeyID names the key Sign uses.
func (k *KeyRing) Sign(data []byte) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	id, err := k.activeKeyLocked()
	if err != nil {
		return "", err
	}
	return k.signers[id].Sign(data)
}

// ActiveKeyID returns the key ID that Sign would currently use.
func (k *KeyRing) ActiveKeyID() (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.activeKeyLocked()
}

// VerifyKey verifies a signature against one specific, named key.
func (k *KeyRing) VerifyKey(keyID string, message []byte, signature []byte) (bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	signer, exists := k.signers[keyID]
	if !exists {
		return false, fmt.Errorf("unknown or revoked key: %s", keyID)
	}
	return signer.Verify(message, signature), nil
}

// Verify tries every registered key until one accepts the signature.
func (k *KeyRing) Verify(message []byte, signature []byte) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, s := range k.signers {
		if s.Verify(message, signature) {
			return true
		}
	}
	return false
}

func (k *KeyRing) PublicKey() string {
	return "keyring-aggregate"
}
