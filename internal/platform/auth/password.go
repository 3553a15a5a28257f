package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

var (
	ErrEmptyPassword   = errors.New("password must not be empty")
	ErrPasswordTooLong = fmt.Errorf("password must be at most %d bytes", maxPasswordBytes)
)

// PasswordHasher hashes and verifies passwords with bcrypt. Each hash embeds
// its own random salt and cost.
type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func checkPassword(plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// Hash returns a salted bcrypt hash of plaintext.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if err := checkPassword(plaintext); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. The comparison is done by
// bcrypt in constant time. Input over 72 bytes never matches.
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	if plaintext == "" || hash == "" {
		return false
	}
	if len(plaintext) > maxPasswordBytes {
		h.VerifyDummy(plaintext)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// VerifyDummy burns the same work as a real Verify. Call it when the user is
// unknown so response timing does not reveal which usernames exist.
func (h *PasswordHasher) VerifyDummy(plaintext string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("unknown-user-placeholder"), h.cost)
	})
	if len(plaintext) > maxPasswordBytes {
		plaintext = plaintext[:maxPasswordBytes]
	}
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plaintext))
}
