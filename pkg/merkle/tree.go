package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/P-U-C/b1e55ed/pkg/canonicalize"
)

type MerkleLeaf struct {
	Path      string
	LeafBytes []byte
	LeafHash  string
}

type MerkleTree struct {
	Leaves []MerkleLeaf
	Root   string
	Nodes  [][]string // levels of node hashes
}

// BuildMerkleTree constructs a Merkle Tree from a map of path->value.
func BuildMerkleTree(data map[string]interface{}) (*MerkleTree, error) {
	// 1. Extract and sort paths
	paths := make([]string, 0, len(data))
	for k := range data {
		paths = append(paths, k)
	}
	sort.Strings(paths)

	// 2. Build leaves
	leaves := make([]MerkleLeaf, len(paths))
	for i, path := range paths {
		value := data[path]

		// Leaf preimage is "b1e55ed:merkle:leaf:v1\0" || path || "\0" || CanonicalBytes(val),
		// leaf hash is SHA256(leaf_bytes).
		canBytes, err := canonicalize.JCS(value)
		if err != nil {
			return nil, err
		}

		leafBytes := buildLeafBytes(path, canBytes)
		leaves[i] = MerkleLeaf{
			Path:      path,
			LeafBytes: leafBytes,
			LeafHash:  sha256Hex(leafBytes),
		}
	}

	// 3. Build tree bottom-up
	if len(leaves) == 0 {
		return &MerkleTree{Root: sha256Hex(nil)}, nil
	}

	tree := &MerkleTree{Leaves: leaves}
	currentLevel := extractHashes(leaves)

	for len(currentLevel) > 1 {
		tree.Nodes = append(tree.Nodes, currentLevel)
		currentLevel = buildNextLevel(currentLevel)
	}

	tree.Root = currentLevel[0]
	tree.Nodes = append(tree.Nodes, currentLevel)

	return tree, nil
}

// GenerateProof builds an InclusionProof for the leaf stored at path,
// walking tree.Nodes bottom-up and recording the sibling hash at each
// level. The last level in Nodes is always [Root] and is never visited.
func (t *MerkleTree) GenerateProof(path string) (*InclusionProof, error) {
	idx := -1
	var leafHash string
	for i, l := range t.Leaves {
		if l.Path == path {
			idx = i
			leafHash = l.LeafHash
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("merkle: no leaf at path %q", path)
	}

	proof := &InclusionProof{LeafPath: path, LeafHash: leafHash, MerkleRoot: t.Root}
	for level := 0; level < len(t.Nodes)-1; level++ {
		nodes := t.Nodes[level]
		if idx%2 == 0 {
			siblingIdx := idx + 1
			if siblingIdx == len(nodes) {
				siblingIdx = idx // odd level: last node is duplicated against itself
			}
			proof.ProofPath = append(proof.ProofPath, ProofStep{Side: "R", SiblingHash: nodes[siblingIdx]})
		} else {
			proof.ProofPath = append(proof.ProofPath, ProofStep{Side: "L", SiblingHash: nodes[idx-1]})
		}
		idx /= 2
	}
	return proof, nil
}

func buildLeafBytes(path string, canonical []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("b1e55ed:merkle:leaf:v1")
	buf.WriteByte(0)
	buf.WriteString(path)
	buf.WriteByte(0)
	buf.Write(canonical)
	return buf.Bytes()
}

func extractHashes(leaves []MerkleLeaf) []string {
	hashes := make([]string, len(leaves))
	for i, l := range leaves {
		hashes[i] = l.LeafHash
	}
	return hashes
}

func buildNextLevel(hashes []string) []string {
	count := len(hashes)
	if count%2 != 0 {
		hashes = append(hashes, hashes[count-1]) // Duplicate last
		count++
	}

	nextLevel := make([]string, count/2)
	for i := 0; i < count; i += 2 {
		nextLevel[i/2] = buildNodeHash(hashes[i], hashes[i+1])
	}
	return nextLevel
}

func buildNodeHash(left, right string) string {
	var buf bytes.Buffer
	buf.WriteString("b1e55ed:merkle:node:v1")
	buf.WriteByte(0)
	buf.Write(hexToBytes(left))
	buf.Write(hexToBytes(right))
	return sha256Hex(buf.Bytes())
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hexToBytes(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}
