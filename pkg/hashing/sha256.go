package hashing

import "crypto/sha256"

// nodePrefix is prepended to the concatenated child digests by
// SHA256.Combine. SHA-256 has no keyed mode, so domain separation is
// done with a reserved prefix byte instead.
const nodePrefix = 0x01

// SHA256 is the fallback algorithm for environments where BLAKE3 is
// not wanted.
type SHA256 struct{}

func (SHA256) Name() string { return "sha256" }

func (SHA256) Hash(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

func (SHA256) Combine(left, right Digest) Digest {
	var buf [1 + 2*DigestLength]byte
	buf[0] = nodePrefix
	copy(buf[1:1+DigestLength], left[:])
	copy(buf[1+DigestLength:], right[:])
	return Digest(sha256.Sum256(buf[:]))
}
