package utils

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"runtime"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/sync/semaphore"
)

const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltLength   = 16
)

var ErrMalformedHash = errors.New("malformed password hash")

// PasswordHasher derives scrypt hashes stored as "hex(key).hex(salt)".
// Derivations are CPU and memory heavy, so at most a fixed number run at
// once and callers queue on the semaphore until their context ends.
type PasswordHasher struct {
	sem *semaphore.Weighted
}

func NewPasswordHasher(concurrency int) *PasswordHasher {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &PasswordHasher{sem: semaphore.NewWeighted(int64(concurrency))}
}

func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key, err := h.derive(ctx, password, salt)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key) + "." + hex.EncodeToString(salt), nil
}

// Verify reports whether password matches stored. Bcrypt hashes from the
// previous scheme are still accepted; see NeedsRehash.
func (h *PasswordHasher) Verify(ctx context.Context, password, stored string) (bool, error) {
	if isBcrypt(stored) {
		if err := h.sem.Acquire(ctx, 1); err != nil {
			return false, err
		}
		defer h.sem.Release(1)
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	}
	keyHex, saltHex, ok := strings.Cut(stored, ".")
	if !ok {
		return false, ErrMalformedHash
	}
	want, err := hex.DecodeString(keyHex)
	if err != nil || len(want) != scryptKeyLen {
		return false, ErrMalformedHash
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false, ErrMalformedHash
	}
	got, err := h.derive(ctx, password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// NeedsRehash is true for hashes not produced by Hash.
func (h *PasswordHasher) NeedsRehash(stored string) bool {
	return isBcrypt(stored)
}

func (h *PasswordHasher) derive(ctx context.Context, password string, salt []byte) ([]byte, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer h.sem.Release(1)
	return scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
}

func isBcrypt(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

// IsStrongPassword is the password policy: 8 to 128 characters with at
// least one upper case letter, one lower case letter and one digit.
func IsStrongPassword(password string) bool {
	n := len([]rune(password))
	if n < MIN_PASSWORD_LENGTH || n > MAX_PASSWORD_LENGTH {
		return false
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}
