package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/utafrali/gallery/pkg/errors"
)

const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

// PasswordHasher turns passwords into salted one-way hashes and checks them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare reports whether password matches hash. A mismatch is not an
	// error; errors mean the hash could not be processed.
	Compare(hash, password string) (bool, error)
}

// BcryptHasher hashes with bcrypt at the given cost.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperrors.InvalidInput("password must be at most 72 bytes")
	}
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(b), nil
}

func (h BcryptHasher) Compare(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt compare: %w", err)
	}
}

// Argon2idHasher hashes with argon2id. Nil Params means argon2id.DefaultParams.
type Argon2idHasher struct {
	Params *argon2id.Params
}

func (h Argon2idHasher) Hash(password string) (string, error) {
	params := h.Params
	if params == nil {
		params = argon2id.DefaultParams
	}
	hash, err := argon2id.CreateHash(password, params)
	if err != nil {
		return "", fmt.Errorf("argon2id hash: %w", err)
	}
	return hash, nil
}

func (h Argon2idHasher) Compare(hash, password string) (bool, error) {
	ok, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("argon2id compare: %w", err)
	}
	return ok, nil
}

// multiHasher hashes with one algorithm and verifies hashes of any supported
// algorithm, so switching PASSWORD_HASHER keeps existing users able to sign in.
type multiHasher struct {
	primary  PasswordHasher
	bcrypt   BcryptHasher
	argon2id Argon2idHasher
}

// NewPasswordHasher returns a hasher producing kind hashes ("bcrypt" or
// "argon2id") and accepting hashes of both kinds.
func NewPasswordHasher(kind string, bcryptCost int) (PasswordHasher, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
	}

	m := &multiHasher{bcrypt: BcryptHasher{Cost: bcryptCost}}
	switch kind {
	case HasherBcrypt, "":
		m.primary = m.bcrypt
	case HasherArgon2id:
		m.primary = m.argon2id
	default:
		return nil, fmt.Errorf("unsupported password hasher %q", kind)
	}
	return m, nil
}

func (m *multiHasher) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *multiHasher) Compare(hash, password string) (bool, error) {
	if strings.HasPrefix(hash, "$argon2id$") {
		return m.argon2id.Compare(hash, password)
	}
	return m.bcrypt.Compare(hash, password)
}
