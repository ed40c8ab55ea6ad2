package hashing

import "github.com/zeebo/blake3"

// nodeDomainKey is the BLAKE3 keyed-hashing key used by Combine.
// Keyed mode gives domain separation between leaf hashing (plain
// Hash) and internal-node combination without reserving a prefix byte
// in the input. The key is the ASCII domain name zero-padded to 32
// bytes; changing it invalidates every existing tree root.
var nodeDomainKey = [32]byte{
	'l', 'o', 'r', 'e', 'w', 'e', 'a', 'v', 'e', '.', 'm', 'e', 'r', 'k', 'l', 'e',
	'.', 'n', 'o', 'd', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Blake3 is the default content-hashing algorithm.
type Blake3 struct{}

func (Blake3) Name() string { return "blake3" }

func (Blake3) Hash(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

func (Blake3) Combine(left, right Digest) Digest {
	hasher, err := blake3.NewKeyed(nodeDomainKey[:])
	if err != nil {
		// NewKeyed only fails on a wrong key size; the key is a
		// 32-byte constant.
		panic("hashing: BLAKE3 keyed init failed: " + err.Error())
	}

	var combined [2 * DigestLength]byte
	copy(combined[:DigestLength], left[:])
	copy(combined[DigestLength:], right[:])
	hasher.Write(combined[:])

	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d
}
