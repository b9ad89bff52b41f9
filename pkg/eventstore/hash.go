package eventstore

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/P-U-C/b1e55ed/pkg/canonicalize"
)

// computeHash returns the SHA-256 hex digest of the JCS-canonicalized
// signable view of e. Seq, Type, Timestamp, Payload, Source, TraceID, and
// PrevHash all feed the hash; EventID, Hash, and Signature do not, since
// EventID is a row identifier rather than something that happened and the
// other two are derived from this result.
func computeHash(e Event) (string, error) {
	s := signable{
		Seq:       e.Seq,
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Payload:   e.Payload,
		Source:    e.Source,
		TraceID:   e.TraceID,
		PrevHash:  e.PrevHash,
	}
	return canonicalize.CanonicalHash(s)
}

// signingInput is what the signer actually signs: the event's hash bound to
// the signer's own key ID, so a signature cannot be replayed under a
// different identity's name even if the underlying hash were reused.
func signingInput(hash, signerKeyID string) []byte {
	return []byte(hash + "|" + signerKeyID)
}

// genesisPrevHash derives the fixed prev_hash every node's genesis event
// chains from: SHA-256(GenesisSeed || public key), the raw bytes
// concatenated directly rather than wrapped in a JSON envelope, so that any
// conformant peer recomputes the identical digest from the same two inputs.
// Binding the seed to the key means two sovereign nodes never produce
// colliding genesis events even if they started with identical event log
// paths.
func genesisPrevHash(pubKey ed25519.PublicKey) (string, error) {
	h := sha256.Sum256(append([]byte(GenesisSeed), pubKey...))
	return hex.EncodeToString(h[:]), nil
}

// marshalPayload is a convenience for producers that build payloads from Go
// structs instead of hand-written JSON.
func marshalPayload(v interface{}) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("eventstore: marshal payload: %w", err)
	}
	return json.RawMessage(b), nil
}
