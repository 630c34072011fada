package utils

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := NewPasswordHasher(2)
	ctx := context.Background()

	stored, err := h.Hash(ctx, "Secret123")
	require.NoError(t, err)

	keyHex, saltHex, ok := strings.Cut(stored, ".")
	require.True(t, ok)
	assert.Len(t, keyHex, 128)
	assert.Len(t, saltHex, 32)

	ok, err = h.Verify(ctx, "Secret123", stored)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(ctx, "Secret124", stored)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, h.NeedsRehash(stored))
}

func TestPasswordHasher_SaltsEveryHash(t *testing.T) {
	h := NewPasswordHasher(2)
	a, err := h.Hash(context.Background(), "Secret123")
	require.NoError(t, err)
	b, err := h.Hash(context.Background(), "Secret123")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordHasher_Malformed(t *testing.T) {
	h := NewPasswordHasher(1)
	for _, stored := range []string{"", "nodot", "zz.zz", "abcd.0102"} {
		ok, err := h.Verify(context.Background(), "Secret123", stored)
		assert.ErrorIs(t, err, ErrMalformedHash, stored)
		assert.False(t, ok)
	}
}

func TestPasswordHasher_LegacyBcrypt(t *testing.T) {
	h := NewPasswordHasher(1)
	legacy, err := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := h.Verify(context.Background(), "Secret123", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.Verify(context.Background(), "wrong", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, h.NeedsRehash(string(legacy)))
}

func TestPasswordHasher_CancelledWhileQueued(t *testing.T) {
	h := NewPasswordHasher(1)
	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Hash(ctx, "Secret123")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsStrongPassword(t *testing.T) {
	cases := map[string]bool{
		"Secret123":               true,
		"Ünïcode1x":               true,
		"short1A":                 false,
		"alllowercase1":           false,
		"ALLUPPERCASE1":           false,
		"NoDigitsHere":            false,
		strings.Repeat("Aa1", 43): false,
		strings.Repeat("Aa1", 42): true,
	}
	for password, want := range cases {
		assert.Equal(t, want, IsStrongPassword(password), password)
	}
}
