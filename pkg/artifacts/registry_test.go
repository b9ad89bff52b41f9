package artifacts_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/artifacts"
	"github.com/P-U-C/b1e55ed/pkg/crypto"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	blobs map[string][]byte
}

func newMemStore() *memStore { return &memStore{blobs: make(map[string][]byte)} }

func (m *memStore) Store(ctx context.Context, data []byte) (string, error) {
	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])
	m.blobs[hash] = data
	return hash, nil
}

func (m *memStore) Get(ctx context.Context, hash string) ([]byte, error) {
	return m.blobs[hash], nil
}

func (m *memStore) Exists(ctx context.Context, hash string) (bool, error) {
	_, ok := m.blobs[hash]
	return ok, nil
}

func TestRegistry_PutAndGetArtifactRoundTrips(t *testing.T) {
	ctx := context.Background()
	signer, err := crypto.NewEd25519Signer("snapshot-key")
	require.NoError(t, err)

	reg := artifacts.NewRegistry(newMemStore())
	hash, err := reg.PutArtifact(ctx, "projection_snapshot", []byte(`{"positions":{}}`), signer, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	env, err := reg.GetArtifact(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, "projection_snapshot", env.Kind)
	require.Equal(t, []byte(`{"positions":{}}`), env.Payload)
}

func TestRegistry_VerifyArtifactRejectsTamperedPayload(t *testing.T) {
	signer, err := crypto.NewEd25519Signer("snapshot-key")
	require.NoError(t, err)

	reg := artifacts.NewRegistry(newMemStore())
	env := &artifacts.ArtifactEnvelope{Kind: "x", Payload: []byte("original")}
	require.NoError(t, artifacts.SignEnvelope(env, signer))

	env.Payload = []byte("tampered")
	require.ErrorIs(t, reg.VerifyArtifact(env), artifacts.ErrVerificationFailed)
}
