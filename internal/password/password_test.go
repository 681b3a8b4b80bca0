package password

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHash_VerifyRoundTrip(t *testing.T) {
	t.Parallel()

	pw := gofakeit.Password(true, true, true, true, false, 16)

	hash, err := hashWithCost(pw, bcrypt.MinCost)
	require.NoError(t, err)
	require.NotEqual(t, pw, hash)
	require.NotContains(t, hash, pw)

	require.True(t, Verify(pw, hash))
	require.False(t, Verify(pw+"x", hash))
}

func TestHash_SaltedPerCall(t *testing.T) {
	t.Parallel()

	a, err := hashWithCost("secret1", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := hashWithCost("secret1", bcrypt.MinCost)
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.True(t, Verify("secret1", a))
	require.True(t, Verify("secret1", b))
}

func TestHash_UsesDefaultCost(t *testing.T) {
	t.Parallel()

	h, err := NewHasher(0, 1)
	require.NoError(t, err)
	require.Equal(t, DefaultCost, h.Cost())

	hash, err := h.Hash(context.Background(), "secret1")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, DefaultCost, cost)
}

func TestVerify_MalformedHash_False(t *testing.T) {
	t.Parallel()

	require.False(t, Verify("secret1", ""))
	require.False(t, Verify("secret1", "not-a-bcrypt-hash"))
	require.False(t, Verify("secret1", "$2a$10$short"))
}

func TestHash_LongPassword(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 100)
	hash, err := hashWithCost(long, bcrypt.MinCost)
	require.NoError(t, err)

	require.True(t, Verify(long, hash))
	// Пароли, совпадающие в первых 72 байтах, различаются.
	require.False(t, Verify(strings.Repeat("a", 99)+"b", hash))
}

func TestNewHasher_InvalidCost(t *testing.T) {
	t.Parallel()

	_, err := NewHasher(bcrypt.MaxCost+1, 1)
	require.ErrorIs(t, err, ErrInvalidCost)

	_, err = NewHasher(1, 1)
	require.ErrorIs(t, err, ErrInvalidCost)
}

func TestHasher_HashVerify(t *testing.T) {
	t.Parallel()

	h, err := NewHasher(bcrypt.MinCost, 2)
	require.NoError(t, err)
	require.Equal(t, bcrypt.MinCost, h.Cost())

	ctx := context.Background()
	hash, err := h.Hash(ctx, "secret1")
	require.NoError(t, err)

	ok, err := h.Verify(ctx, "secret1", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Verify(ctx, "wrong", hash)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, h.VerifyDummy(ctx, "anything"))
}

func TestHasher_ContextCanceledWhileWaiting(t *testing.T) {
	t.Parallel()

	h, err := NewHasher(bcrypt.MinCost, 1)
	require.NoError(t, err)

	// Занимаем единственный слот.
	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = h.Hash(ctx, "secret1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = h.Verify(ctx, "secret1", "x")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
