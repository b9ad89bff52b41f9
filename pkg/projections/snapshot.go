package projections

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/artifacts"
	"github.com/P-U-C/b1e55ed/pkg/crypto"
	"github.com/P-U-C/b1e55ed/pkg/merkle"
)

// SnapshotKind is the artifact kind Export stores snapshots under.
const SnapshotKind = "projection_snapshot"

// Snapshot is every projection table at a point in the log, exportable off
// box for backup or fast cold-start without a full replay from genesis.
type Snapshot struct {
	AsOfSeq     uint64                     `json:"as_of_seq"`
	TakenAt     time.Time                  `json:"taken_at"`
	Positions   PositionsView              `json:"positions"`
	Regime      RegimeView                 `json:"regime"`
	Leaderboard ContributorLeaderboardView `json:"leaderboard"`
	Weights     WeightHistoryView          `json:"weights"`
	// MerkleRoot commits to the four view leaves independently of the
	// signed artifact envelope around the whole snapshot, so a caller
	// holding only one view (e.g. just Positions, fetched for a
	// dashboard) can be handed an InclusionProof and verify it against
	// this root without fetching or trusting the rest of the snapshot.
	MerkleRoot string `json:"merkle_root"`
}

// snapshotLeaves is the path->value map TakeSnapshot feeds to
// merkle.BuildMerkleTree. Keys double as the InclusionProof leaf paths
// ProveSnapshotField expects.
func snapshotLeaves(s Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"positions":   s.Positions,
		"regime":      s.Regime,
		"leaderboard": s.Leaderboard,
		"weights":     s.Weights,
	}
}

// TakeSnapshot captures views as of asOfSeq for export and commits to the
// four view leaves with a Merkle root.
func TakeSnapshot(views *Views, asOfSeq uint64, now time.Time) (Snapshot, error) {
	snap := Snapshot{
		AsOfSeq:     asOfSeq,
		TakenAt:     now,
		Positions:   views.Positions,
		Regime:      views.Regime,
		Leaderboard: views.Leaderboard,
		Weights:     views.Weights,
	}
	tree, err := merkle.BuildMerkleTree(snapshotLeaves(snap))
	if err != nil {
		return Snapshot{}, fmt.Errorf("projections: build snapshot merkle tree: %w", err)
	}
	snap.MerkleRoot = tree.Root
	return snap, nil
}

// ProveSnapshotField returns an inclusion proof that leaf (one of
// "positions", "regime", "leaderboard", "weights") is part of snap, so a
// holder of only that leaf can verify it against snap.MerkleRoot without
// the rest of the snapshot.
func ProveSnapshotField(snap Snapshot, leaf string) (*merkle.InclusionProof, error) {
	tree, err := merkle.BuildMerkleTree(snapshotLeaves(snap))
	if err != nil {
		return nil, fmt.Errorf("projections: build snapshot merkle tree: %w", err)
	}
	return tree.GenerateProof(leaf)
}

// Export signs snap and stores it through registry, returning the content
// hash the snapshot can later be fetched and verified at. Off-box backup
// (S3 or GCS, per the registry's underlying artifacts.Store) is a separate
// concern from on-box durability — this is strictly a backup path, never
// the thing a node depends on to boot.
func Export(ctx context.Context, registry *artifacts.Registry, signer crypto.Signer, snap Snapshot) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("projections: marshal snapshot: %w", err)
	}
	hash, err := registry.PutArtifact(ctx, SnapshotKind, payload, signer, snap.TakenAt)
	if err != nil {
		return "", fmt.Errorf("projections: export snapshot: %w", err)
	}
	return hash, nil
}

// Import fetches and verifies a snapshot previously written by Export.
func Import(ctx context.Context, registry *artifacts.Registry, hash string) (*Snapshot, error) {
	env, err := registry.GetArtifact(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("projections: import snapshot: %w", err)
	}
	if env.Kind != SnapshotKind {
		return nil, fmt.Errorf("projections: artifact %s is kind %q, not %q", hash, env.Kind, SnapshotKind)
	}
	var snap Snapshot
	if err := json.Unmarshal(env.Payload, &snap); err != nil {
		return nil, fmt.Errorf("projections: decode snapshot payload: %w", err)
	}
	return &snap, nil
}

// Restore replaces views' contents with snap's, for fast cold-start from
// an imported snapshot instead of a full replay from genesis. The caller
// is responsible for then replaying only the events after snap.AsOfSeq.
func Restore(views *Views, snap Snapshot) {
	views.Positions = snap.Positions
	views.Regime = snap.Regime
	views.Leaderboard = snap.Leaderboard
	views.Weights = snap.Weights
}
