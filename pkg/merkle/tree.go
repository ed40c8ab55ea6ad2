// Package merkle builds binary hash trees over ordered block digests
// and diffs them for change detection.
//
// Construction policy (pinned; changing it changes every root hash for
// odd-sized inputs): leaves sit at depth 0 in input order, each level
// pairs adjacent nodes left-to-right and combines them with the
// algorithm's domain-separated Combine, and an odd trailing node is
// promoted to the next level unchanged, NOT duplicated.
// Duplicating would let two different inputs share a root when one is
// a prefix of the other. A single-block tree has the block's own
// digest as root and zero combination steps.
package merkle

import (
	"errors"

	"github.com/loreweave/loreweave/pkg/hashing"
)

// ErrEmptyInput is returned when a tree is built from zero digests.
var ErrEmptyInput = errors.New("merkle: cannot build a tree from zero blocks")

// NodeKind distinguishes leaves from internal nodes.
type NodeKind uint8

const (
	// Leaf wraps one block's digest.
	Leaf NodeKind = iota
	// Internal wraps the combined digest of two children.
	Internal
)

// Node is one node of the tree. Leaf nodes carry the block index they
// cover; internal nodes carry their children's digests and level
// indices. Depth is 0 for leaves and grows toward the root; Index is
// the node's left-to-right position within its level.
type Node struct {
	Digest hashing.Digest `cbor:"1,keyasint"`
	Kind   NodeKind       `cbor:"2,keyasint"`
	Depth  int            `cbor:"3,keyasint"`
	Index  int            `cbor:"4,keyasint"`

	// Leaf only.
	BlockIndex int `cbor:"5,keyasint,omitempty"`

	// Internal only.
	Left       hashing.Digest `cbor:"6,keyasint,omitempty"`
	Right      hashing.Digest `cbor:"7,keyasint,omitempty"`
	LeftIndex  int            `cbor:"8,keyasint,omitempty"`
	RightIndex int            `cbor:"9,keyasint,omitempty"`
}

// IsLeaf reports whether the node wraps a single block digest.
func (n Node) IsLeaf() bool { return n.Kind == Leaf }

// Tree is an immutable binary hash tree over one document version.
// Nodes are keyed by digest, so a digest appearing more than once
// (identical blocks, or a promoted node) occupies a single entry.
type Tree struct {
	Root       hashing.Digest          `cbor:"1,keyasint"`
	Nodes      map[hashing.Digest]Node `cbor:"2,keyasint"`
	Leaves     []hashing.Digest        `cbor:"3,keyasint"`
	Depth      int                     `cbor:"4,keyasint"`
	BlockCount int                     `cbor:"5,keyasint"`
	Algorithm  string                  `cbor:"6,keyasint"`
}

// Build constructs a tree from ordered leaf digests using alg's
// Combine for internal nodes. Returns ErrEmptyInput for an empty
// slice. Depth counts combination levels: 0 for a single leaf.
func Build(leaves []hashing.Digest, alg hashing.Algorithm) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyInput
	}

	t := &Tree{
		Nodes:      make(map[hashing.Digest]Node, 2*len(leaves)),
		Leaves:     make([]hashing.Digest, len(leaves)),
		BlockCount: len(leaves),
		Algorithm:  alg.Name(),
	}
	copy(t.Leaves, leaves)

	level := make([]Node, len(leaves))
	for i, d := range leaves {
		n := Node{Digest: d, Kind: Leaf, Depth: 0, Index: i, BlockIndex: i}
		level[i] = n
		t.Nodes[d] = n
	}

	depth := 0
	for len(level) > 1 {
		depth++
		next := make([]Node, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				// Odd trailing node: promote unchanged. The node keeps
				// its original depth entry in the map.
				promoted := level[i]
				promoted.Index = len(next)
				next = append(next, promoted)
				continue
			}
			left, right := level[i], level[i+1]
			parent := Node{
				Digest:     alg.Combine(left.Digest, right.Digest),
				Kind:       Internal,
				Depth:      depth,
				Index:      len(next),
				Left:       left.Digest,
				Right:      right.Digest,
				LeftIndex:  left.Index,
				RightIndex: right.Index,
			}
			t.Nodes[parent.Digest] = parent
			next = append(next, parent)
		}
		level = next
	}

	t.Root = level[0].Digest
	t.Depth = depth
	return t, nil
}

// Leaf returns the node for the block at the given position, or false
// when the position is out of range.
func (t *Tree) Leaf(blockIndex int) (Node, bool) {
	if blockIndex < 0 || blockIndex >= len(t.Leaves) {
		return Node{}, false
	}
	n, ok := t.Nodes[t.Leaves[blockIndex]]
	return n, ok
}

// Node returns the node with the given digest.
func (t *Tree) Node(d hashing.Digest) (Node, bool) {
	n, ok := t.Nodes[d]
	return n, ok
}

// IntegrityError reports a verification failure. The tree value is
// terminal once verification fails: rebuild it rather than repairing.
type IntegrityError struct {
	Node     hashing.Digest
	Expected hashing.Digest
	Reason   string
}

func (e *IntegrityError) Error() string {
	if e.Reason != "" {
		return "merkle: integrity check failed: " + e.Reason
	}
	return "merkle: node " + e.Node.Hex() + " does not match recombined children (want " + e.Expected.Hex() + ")"
}

// VerifyIntegrity recomputes every internal node's digest from its
// children with alg and confirms the stored digest. Verifying with a
// different algorithm than the tree was built with fails as soon as
// one internal node exists; a single-leaf tree has no combination
// step to re-check, so the mismatch is undetectable there. That
// degenerate case is accepted rather than papered over by re-hashing
// the leaf, which would change what verification means for every
// other tree.
func (t *Tree) VerifyIntegrity(alg hashing.Algorithm) error {
	if t.Root.IsZero() {
		return &IntegrityError{Reason: "empty root digest"}
	}
	if len(t.Nodes) == 0 {
		return &IntegrityError{Reason: "tree has no nodes"}
	}
	if _, ok := t.Nodes[t.Root]; !ok {
		return &IntegrityError{Reason: "root node missing from node set"}
	}

	for _, n := range t.Nodes {
		if n.Kind != Internal {
			continue
		}
		if _, ok := t.Nodes[n.Left]; !ok {
			return &IntegrityError{Node: n.Digest, Reason: "missing left child " + n.Left.Hex()}
		}
		if _, ok := t.Nodes[n.Right]; !ok {
			return &IntegrityError{Node: n.Digest, Reason: "missing right child " + n.Right.Hex()}
		}
		expected := alg.Combine(n.Left, n.Right)
		if n.Digest != expected {
			return &IntegrityError{Node: n.Digest, Expected: expected}
		}
	}
	return nil
}

// Stats summarizes the tree's shape.
type Stats struct {
	Depth      int
	NodeCount  int
	LeafCount  int
	BlockCount int
	Root       hashing.Digest
}

// Stats returns a point-in-time summary of the tree.
func (t *Tree) Stats() Stats {
	return Stats{
		Depth:      t.Depth,
		NodeCount:  len(t.Nodes),
		LeafCount:  len(t.Leaves),
		BlockCount: t.BlockCount,
		Root:       t.Root,
	}
}
