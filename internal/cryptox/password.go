// Package cryptox implements one-way password hashing. Encoded hashes carry
// their algorithm and parameters, "<algorithm>$...", so a stored hash can
// always be verified even after the configured default changes.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/recipekeeper/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Algorithm names as they appear in encoded hashes and in configuration.
const (
	Argon2id     = "argon2id"
	Bcrypt       = "bcrypt"
	PBKDF2SHA256 = "pbkdf2_sha256"
)

var ErrMalformedHash = errors.New("malformed password hash")

// PasswordHasher turns plaintext passwords into self-describing encoded
// hashes and verifies candidates against them.
type PasswordHasher interface {
	Algorithm() string
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// NewPasswordHasher returns the hasher registered under algorithm with
// production parameters.
func NewPasswordHasher(algorithm string) (PasswordHasher, error) {
	switch algorithm {
	case Argon2id:
		return NewArgon2idHasher(), nil
	case Bcrypt:
		return &BcryptHasher{Cost: bcrypt.DefaultCost}, nil
	case PBKDF2SHA256:
		return &PBKDF2Hasher{Iterations: 600_000}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", algorithm)
	}
}

// CheckPassword reports whether password matches encoded, dispatching on
// the algorithm prefix. Unknown or malformed hashes never match.
func CheckPassword(password, encoded string) bool {
	algorithm, _, ok := strings.Cut(encoded, "$")
	if !ok {
		return false
	}
	h, err := NewPasswordHasher(algorithm)
	if err != nil {
		return false
	}
	match, err := h.Verify(password, encoded)
	return err == nil && match
}

// Argon2idHasher derives keys with argon2id. Parameters are stored in the
// encoded hash: argon2id$v=19$m=<KiB>,t=<time>,p=<threads>$<salt>$<key>.
type Argon2idHasher struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}
}

func (h *Argon2idHasher) Algorithm() string { return Argon2id }

func (h *Argon2idHasher) Hash(password string) (string, error) {
	salt := common.GenerateRandByteArray(h.SaltLen)
	key := argon2.IDKey([]byte(password), salt, h.Time, h.Memory, h.Threads, h.KeyLen)

	return fmt.Sprintf("%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		Argon2id, argon2.Version, h.Memory, h.Time, h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func (h *Argon2idHasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != Argon2id {
		return false, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrMalformedHash
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, ErrMalformedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(want) == 0 {
		return false, ErrMalformedHash
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// BcryptHasher stores "bcrypt$<bcrypt hash>". bcrypt ignores input past 72
// bytes, so longer passwords are rejected on Hash.
type BcryptHasher struct {
	Cost int
}

func (h *BcryptHasher) Algorithm() string { return Bcrypt }

func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return Bcrypt + "$" + string(b), nil
}

func (h *BcryptHasher) Verify(password, encoded string) (bool, error) {
	hash, ok := strings.CutPrefix(encoded, Bcrypt+"$")
	if !ok || hash == "" {
		return false, ErrMalformedHash
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrMalformedHash
	}
}

// PBKDF2Hasher uses the "pbkdf2_sha256$<iterations>$<salt>$<base64 key>"
// layout, which lets hashes exported from older deployments verify as is.
type PBKDF2Hasher struct {
	Iterations int
}

func (h *PBKDF2Hasher) Algorithm() string { return PBKDF2SHA256 }

func (h *PBKDF2Hasher) Hash(password string) (string, error) {
	salt, err := common.MakeRandHexString(11)
	if err != nil {
		return "", err
	}
	return h.encode(password, salt, h.Iterations), nil
}

func (h *PBKDF2Hasher) encode(password, salt string, iterations int) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s", PBKDF2SHA256, iterations, salt, base64.StdEncoding.EncodeToString(key))
}

func (h *PBKDF2Hasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != PBKDF2SHA256 {
		return false, ErrMalformedHash
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 || parts[2] == "" {
		return false, ErrMalformedHash
	}

	candidate := h.encode(password, parts[2], iterations)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(encoded)) == 1, nil
}
