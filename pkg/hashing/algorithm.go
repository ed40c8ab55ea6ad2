package hashing

import "fmt"

// Algorithm is the pluggable digest primitive. Implementations must be
// stateless: two instances with the same Name always produce identical
// digests for identical input, across runs and processes.
//
// Combine is the domain-separated two-child combination used for
// internal Merkle nodes. It must NOT equal Hash(left || right): the
// separation prevents an internal node from colliding with a leaf
// whose content happens to be the concatenation of two digests.
type Algorithm interface {
	// Name identifies the algorithm ("blake3", "sha256").
	Name() string
	// Hash computes the digest of data. Deterministic, no external state.
	Hash(data []byte) Digest
	// Combine computes the digest of an internal node from its two
	// children, with domain separation from Hash.
	Combine(left, right Digest) Digest
}

// New returns the algorithm registered under name. Matching is
// case-insensitive on the two supported names.
func New(name string) (Algorithm, error) {
	switch name {
	case "blake3", "BLAKE3", "":
		return Blake3{}, nil
	case "sha256", "SHA256", "sha-256":
		return SHA256{}, nil
	}
	return nil, fmt.Errorf("unknown hashing algorithm %q", name)
}
