package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/whiskeyshelf/apiv1/dbhelper"
	"github.com/whiskeyshelf/apiv1/models"
	"github.com/whiskeyshelf/apiv1/utils"
)

var (
	// ErrTokenNotFound covers unknown, tampered, replaced and revoked tokens.
	ErrTokenNotFound = errors.New("bearer token not found")
	// ErrTokenExpired is kept apart so clients know to log in again.
	ErrTokenExpired = utils.ErrTokenExpired
)

type TokenUserStore interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	SetAuthToken(ctx context.Context, id uint, token string, expiresAt time.Time) error
	ClearAuthToken(ctx context.Context, id uint) error
}

type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenAuthenticator issues bearer tokens and resolves them back to users.
// A user holds at most one token: the one stored on the user row.
type TokenAuthenticator struct {
	users  TokenUserStore
	signer *utils.TokenSigner
	ttl    time.Duration
	Now    func() time.Time
}

func NewTokenAuthenticator(users TokenUserStore, signer *utils.TokenSigner, ttl time.Duration) *TokenAuthenticator {
	return &TokenAuthenticator{
		users:  users,
		signer: signer,
		ttl:    ttl,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue signs a fresh token for user and stores it, replacing any older one.
func (a *TokenAuthenticator) Issue(ctx context.Context, user *models.User) (IssuedToken, error) {
	token, expiresAt, err := a.signer.Sign(user.ID)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	if err := a.users.SetAuthToken(ctx, user.ID, token, expiresAt); err != nil {
		return IssuedToken{}, fmt.Errorf("store token: %w", err)
	}
	user.AuthToken = &token
	user.AuthTokenExpiresAt = &expiresAt
	return IssuedToken{Token: token, ExpiresAt: expiresAt}, nil
}

// IssueOrReuse hands back the stored token while it has at least half its
// lifetime left, so logging in on a second device does not sign the first
// one out. Otherwise it issues a new token.
func (a *TokenAuthenticator) IssueOrReuse(ctx context.Context, user *models.User) (IssuedToken, error) {
	if user.AuthToken != nil && user.AuthTokenExpiresAt != nil {
		if user.AuthTokenExpiresAt.Sub(a.Now()) >= a.ttl/2 {
			if id, err := a.signer.Verify(*user.AuthToken); err == nil && id == user.ID {
				return IssuedToken{Token: *user.AuthToken, ExpiresAt: *user.AuthTokenExpiresAt}, nil
			}
		}
	}
	return a.Issue(ctx, user)
}

// Resolve returns the owner of token. Storage failures come back wrapped
// and must be treated as unauthenticated by callers.
func (a *TokenAuthenticator) Resolve(ctx context.Context, token string) (*models.User, error) {
	userID, err := a.signer.Verify(token)
	if errors.Is(err, utils.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, ErrTokenNotFound
	}
	user, err := a.users.GetUserByID(ctx, userID)
	if errors.Is(err, dbhelper.ErrNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	if user.AuthToken == nil || subtle.ConstantTimeCompare([]byte(*user.AuthToken), []byte(token)) != 1 {
		return nil, ErrTokenNotFound
	}
	if user.AuthTokenExpiresAt != nil && !a.Now().Before(*user.AuthTokenExpiresAt) {
		return nil, ErrTokenExpired
	}
	return user, nil
}

func (a *TokenAuthenticator) Revoke(ctx context.Context, userID uint) error {
	return a.users.ClearAuthToken(ctx, userID)
}
