package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher turns passwords into digests and checks them.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, encodedHash string) bool
}

// BcryptHasher hashes with bcrypt at a fixed cost.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher; costs outside bcrypt's range fall back to the default.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return BcryptHasher{Cost: cost}
}

func (h BcryptHasher) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h BcryptHasher) VerifyPassword(password, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}

// InsecureHasher stores passwords as "$plain$<password>". Tests only.
type InsecureHasher struct{}

const insecurePrefix = "$plain$"

func (InsecureHasher) HashPassword(password string) (string, error) {
	return insecurePrefix + password, nil
}

func (InsecureHasher) VerifyPassword(password, encodedHash string) bool {
	rest, ok := strings.CutPrefix(encodedHash, insecurePrefix)
	return ok && subtle.ConstantTimeCompare([]byte(rest), []byte(password)) == 1
}
