package hashing

import (
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	for name, want := range map[string]string{
		"":        "blake3",
		"blake3":  "blake3",
		"BLAKE3":  "blake3",
		"sha256":  "sha256",
		"SHA256":  "sha256",
		"sha-256": "sha256",
	} {
		alg, err := New(name)
		require.NoError(t, err, "name %q", name)
		assert.Equal(t, want, alg.Name())
	}

	_, err := New("md5")
	assert.Error(t, err)
}

func TestHashDeterministic(t *testing.T) {
	for _, alg := range []Algorithm{Blake3{}, SHA256{}} {
		d1 := alg.Hash([]byte("content"))
		d2 := alg.Hash([]byte("content"))
		assert.Equal(t, d1, d2, alg.Name())
		assert.False(t, d1.IsZero())
		assert.NotEqual(t, d1, alg.Hash([]byte("content!")), alg.Name())
	}
}

func TestCombineDomainSeparated(t *testing.T) {
	// Combine(l, r) must differ from Hash(l || r), otherwise an
	// internal node could collide with a leaf whose content is the
	// concatenated child digests.
	for _, alg := range []Algorithm{Blake3{}, SHA256{}} {
		left := alg.Hash([]byte("left"))
		right := alg.Hash([]byte("right"))

		combined := alg.Combine(left, right)
		concat := alg.Hash(append(append([]byte{}, left[:]...), right[:]...))
		assert.NotEqual(t, concat, combined, alg.Name())

		// Order matters.
		assert.NotEqual(t, combined, alg.Combine(right, left), alg.Name())
	}
}

func TestParseDigestRoundTrip(t *testing.T) {
	d := Blake3{}.Hash([]byte("round trip"))

	parsed, err := ParseDigest(d.Hex())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	parsed, err = ParseDigest(strings.ToUpper(d.Hex()))
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestParseDigestRejectsBadInput(t *testing.T) {
	_, err := ParseDigest("not hex")
	assert.Error(t, err)

	_, err = ParseDigest("abcd")
	var le *DigestLengthError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 2, le.Got)
}

func TestDigestCBORRoundTrip(t *testing.T) {
	d := Blake3{}.Hash([]byte("wire"))

	data, err := cbor.Marshal(d)
	require.NoError(t, err)
	// Byte string encoding: 32 payload bytes plus a 2-byte head.
	assert.Equal(t, DigestLength+2, len(data))

	var back Digest
	require.NoError(t, cbor.Unmarshal(data, &back))
	assert.Equal(t, d, back)
}

func TestDigestCBORRejectsWrongLength(t *testing.T) {
	data, err := cbor.Marshal([]byte{1, 2, 3})
	require.NoError(t, err)

	var d Digest
	err = d.UnmarshalCBOR(data)
	var le *DigestLengthError
	assert.ErrorAs(t, err, &le)
}
