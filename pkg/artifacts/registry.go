// Package artifacts implements content-addressed off-box storage for
// signed exports (projection snapshots, karma receipts) that need to
// survive outside the event log itself.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/crypto"
)

// ErrVerificationFailed means an envelope's signature does not match its
// payload under the claimed public key.
var ErrVerificationFailed = errors.New("artifacts: signature verification failed")

// Store is the content-addressed backend an artifact Registry persists
// through. S3Store and GCSStore both satisfy it; a caller can also back it
// with anything else content-addressed by SHA-256.
type Store interface {
	Store(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, hash string) ([]byte, error)
	Exists(ctx context.Context, hash string) (bool, error)
}

// ArtifactEnvelope wraps a payload with the signature that attests to its
// origin. Payload is signed directly (not its hash) so a verifier never
// needs to agree on a canonicalization scheme with the signer — it just
// needs the same bytes.
type ArtifactEnvelope struct {
	Kind           string    `json:"kind"`
	Payload        []byte    `json:"payload"`
	Signature      string    `json:"signature"`
	SignatureKeyID string    `json:"signature_key_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Registry persists and verifies signed artifact envelopes through a Store.
type Registry struct {
	store Store
}

// NewRegistry wraps a content-addressed Store as an artifact registry.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// PutArtifact signs payload under kind, stores the resulting envelope, and
// returns the content hash the envelope was stored at.
func (r *Registry) PutArtifact(ctx context.Context, kind string, payload []byte, signer crypto.Signer, now time.Time) (string, error) {
	env := &ArtifactEnvelope{Kind: kind, Payload: payload, CreatedAt: now}
	if err := SignEnvelope(env, signer); err != nil {
		return "", err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("artifacts: marshal envelope: %w", err)
	}
	return r.store.Store(ctx, data)
}

// GetArtifact retrieves and verifies the envelope at hash against its
// embedded public key, returning the verified envelope.
func (r *Registry) GetArtifact(ctx context.Context, hash string) (*ArtifactEnvelope, error) {
	data, err := r.store.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	var env ArtifactEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("artifacts: unmarshal envelope: %w", err)
	}
	if err := r.VerifyArtifact(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// VerifyArtifact checks an envelope's signature over its payload under its
// own claimed SignatureKeyID. Registry.VerifyArtifact is the one place in
// this package a signature is actually checked; GetArtifact calls it on
// every read. PutArtifact only produces signatures and does not call it.
func (r *Registry) VerifyArtifact(env *ArtifactEnvelope) error {
	ok, err := crypto.Verify(env.SignatureKeyID, env.Signature, env.Payload)
	if err != nil {
		return fmt.Errorf("artifacts: %w: %w", ErrVerificationFailed, err)
	}
	if !ok {
		return ErrVerificationFailed
	}
	return nil
}
