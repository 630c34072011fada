package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenAuthenticator_IssueAndResolve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := createTestUser(t, env, "alice")

	issued, err := env.tokens.Issue(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now().Add(testTokenTTL), issued.ExpiresAt)

	resolved, err := env.tokens.Resolve(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	_, err = env.tokens.Resolve(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTokenAuthenticator_ReplacedTokenStopsWorking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := createTestUser(t, env, "alice")

	first, err := env.tokens.Issue(ctx, user)
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	second, err := env.tokens.Issue(ctx, user)
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	_, err = env.tokens.Resolve(ctx, first.Token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = env.tokens.Resolve(ctx, second.Token)
	assert.NoError(t, err)
}

func TestTokenAuthenticator_Revoke(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := createTestUser(t, env, "alice")
	issued, err := env.tokens.Issue(ctx, user)
	require.NoError(t, err)

	require.NoError(t, env.tokens.Revoke(ctx, user.ID))
	_, err = env.tokens.Resolve(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTokenAuthenticator_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := createTestUser(t, env, "alice")
	issued, err := env.tokens.Issue(ctx, user)
	require.NoError(t, err)

	env.clock.Advance(testTokenTTL + time.Second)
	_, err = env.tokens.Resolve(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenAuthenticator_DeletedUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := createTestUser(t, env, "alice")
	issued, err := env.tokens.Issue(ctx, user)
	require.NoError(t, err)

	require.NoError(t, env.store.DeleteUser(ctx, user.ID))
	_, err = env.tokens.Resolve(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTokenAuthenticator_IssueOrReuse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := createTestUser(t, env, "alice")

	first, err := env.tokens.IssueOrReuse(ctx, user)
	require.NoError(t, err)

	env.clock.Advance(testTokenTTL / 4)
	again, err := env.tokens.IssueOrReuse(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	env.clock.Advance(testTokenTTL / 2)
	fresh, err := env.tokens.IssueOrReuse(ctx, user)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, fresh.Token)
	assert.True(t, fresh.ExpiresAt.After(first.ExpiresAt))
}
