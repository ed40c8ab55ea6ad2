package merkle

import "github.com/loreweave/loreweave/pkg/hashing"

// ChangeKind classifies one entry of a tree comparison.
type ChangeKind uint8

const (
	// Modified: the block at Index hashes differently in the two trees.
	Modified ChangeKind = iota
	// Added: the block at Index exists only in the newer tree.
	Added
	// Deleted: the block at Index exists only in the older tree.
	Deleted
	// StructureChanged: the trees differ in depth or block count, so
	// positional comparison is approximate.
	StructureChanged
)

func (k ChangeKind) String() string {
	switch k {
	case Modified:
		return "modified"
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case StructureChanged:
		return "structure-changed"
	}
	return "unknown"
}

// Change is one detected difference between two trees. OldDigest is
// zero for Added, NewDigest is zero for Deleted, and both are zero for
// StructureChanged.
type Change struct {
	Kind      ChangeKind
	Index     int
	OldDigest hashing.Digest
	NewDigest hashing.Digest
}

// CompareWith diffs the receiver (the older version) against other
// (the newer version) and returns the block-level changes, nil when
// the roots match. Blocks are compared positionally: leaf i of one
// tree against leaf i of the other. When the block counts match, the
// trees have identical shape (construction is deterministic in the
// leaf count) and the walk descends from the roots, skipping any
// subtree whose digest is unchanged. When the counts differ, a
// StructureChanged entry is emitted first, the shared prefix is
// compared leaf by leaf, and the tail of the longer tree becomes
// Added or Deleted entries.
func (t *Tree) CompareWith(other *Tree) []Change {
	if t.Root == other.Root {
		return nil
	}

	if t.BlockCount == other.BlockCount && t.Depth == other.Depth {
		var changes []Change
		t.diffNodes(t.Root, other.Root, other, &changes)
		return changes
	}

	changes := []Change{{Kind: StructureChanged}}

	shared := len(t.Leaves)
	if len(other.Leaves) < shared {
		shared = len(other.Leaves)
	}
	for i := 0; i < shared; i++ {
		if t.Leaves[i] != other.Leaves[i] {
			changes = append(changes, Change{
				Kind:      Modified,
				Index:     i,
				OldDigest: t.Leaves[i],
				NewDigest: other.Leaves[i],
			})
		}
	}
	for i := shared; i < len(other.Leaves); i++ {
		changes = append(changes, Change{Kind: Added, Index: i, NewDigest: other.Leaves[i]})
	}
	for i := shared; i < len(t.Leaves); i++ {
		changes = append(changes, Change{Kind: Deleted, Index: i, OldDigest: t.Leaves[i]})
	}
	return changes
}

// diffNodes walks matching positions in the two trees, descending only
// into subtrees whose digests differ.
func (t *Tree) diffNodes(oldDigest, newDigest hashing.Digest, other *Tree, changes *[]Change) {
	if oldDigest == newDigest {
		return
	}

	oldNode, okOld := t.Nodes[oldDigest]
	newNode, okNew := other.Nodes[newDigest]
	if !okOld || !okNew {
		return
	}

	if oldNode.IsLeaf() && newNode.IsLeaf() {
		*changes = append(*changes, Change{
			Kind:      Modified,
			Index:     oldNode.BlockIndex,
			OldDigest: oldDigest,
			NewDigest: newDigest,
		})
		return
	}

	if oldNode.IsLeaf() != newNode.IsLeaf() {
		// Shape mismatch despite equal counts; should not happen with
		// deterministic construction, but don't descend blindly.
		*changes = append(*changes, Change{Kind: StructureChanged})
		return
	}

	t.diffNodes(oldNode.Left, newNode.Left, other, changes)
	t.diffNodes(oldNode.Right, newNode.Right, other, changes)
}
