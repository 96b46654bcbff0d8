package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTripAndSalting(t *testing.T) {
	h := newTestHasher(t)

	for _, p := range []string{"secret123", "11111111", "pässwörd-ünïcode", " spaced out ", "x"} {
		d1, err := h.Hash(p)
		require.NoError(t, err)
		d2, err := h.Hash(p)
		require.NoError(t, err)

		assert.NotEqual(t, p, d1, "digest must not equal plaintext")
		assert.NotEqual(t, d1, d2, "two hashes of %q must differ", p)
		assert.True(t, h.Verify(p, d1))
		assert.True(t, h.Verify(p, d2))
	}
}

func TestBcryptHasher_DifferentPasswordsDoNotMatch(t *testing.T) {
	h := newTestHasher(t)
	pairs := [][2]string{
		{"secret123", "secret124"},
		{"secret123", "Secret123"},
		{"secret123", ""},
		{"a", "b"},
	}
	for _, p := range pairs {
		d, err := h.Hash(p[1])
		require.NoError(t, err)
		assert.False(t, h.Verify(p[0], d), "%q must not verify against hash of %q", p[0], p[1])
	}
}

func TestBcryptHasher_CorruptDigestIsMismatch(t *testing.T) {
	h := newTestHasher(t)
	for _, digest := range []string{"", "not-a-hash", "$2a$10$short", "$2a$99$" + string(make([]byte, 53))} {
		assert.False(t, h.Verify("secret123", digest), "digest %q", digest)
	}
}

func TestBcryptHasher_UsesConfiguredCost(t *testing.T) {
	h, err := NewBcryptHasher(bcrypt.MinCost + 1)
	require.NoError(t, err)

	d, err := h.Hash("secret123")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(d))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

func TestNewBcryptHasher_RejectsCostOutOfRange(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost - 1)
	require.Error(t, err)
	_, err = NewBcryptHasher(bcrypt.MaxCost + 1)
	require.Error(t, err)
}
