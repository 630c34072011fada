package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenClaims are the claims of a bearer token. The jti makes every issued
// token unique even when issued twice in the same second.
type TokenClaims struct {
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}

// TokenSigner signs and verifies bearer tokens. Tokens signed with the
// previous secret keep verifying so the secret can be rotated without
// logging everybody out.
type TokenSigner struct {
	secret   []byte
	previous []byte
	ttl      time.Duration
	Now      func() time.Time
}

func NewTokenSigner(secret, previous string, ttl time.Duration) *TokenSigner {
	signer := &TokenSigner{
		secret: []byte(secret),
		ttl:    ttl,
		Now:    time.Now,
	}
	if previous != "" {
		signer.previous = []byte(previous)
	}
	return signer
}

func (s *TokenSigner) Sign(userID uint) (string, time.Time, error) {
	now := s.Now()
	expiresAt := now.Add(s.ttl).Truncate(time.Second)
	claims := TokenClaims{
		TokenType: ACCESS_TYPE,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        RandomToken(32),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify returns the user id of a correctly signed token. Expired tokens
// return ErrTokenExpired, anything else wrong returns ErrTokenInvalid.
func (s *TokenSigner) Verify(tokenString string) (uint, error) {
	claims, err := s.parse(tokenString, s.secret)
	if err != nil && errors.Is(err, jwt.ErrTokenSignatureInvalid) && s.previous != nil {
		claims, err = s.parse(tokenString, s.previous)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.TokenType != ACCESS_TYPE {
		return 0, ErrTokenInvalid
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return 0, ErrTokenInvalid
	}
	return uint(userID), nil
}

func (s *TokenSigner) parse(tokenString string, key []byte) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (any, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.Now),
	)
	return claims, err
}

// RandomToken returns n bytes from crypto/rand, base64url encoded.
func RandomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// HashToken is used to store reset tokens without storing the token itself.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func GenerateBanMessage(remaining time.Duration) string {
	timeLeft := int(remaining.Round(time.Minute).Minutes())
	if timeLeft <= 1 {
		return "Please try again in 1 minute."
	}
	return fmt.Sprintf("Please try again in %d minutes.", timeLeft)
}
