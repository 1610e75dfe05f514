// Package password hashes and verifies passwords with argon2id.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrEmptyPassword is returned when attempting to hash an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")
	// ErrInvalidHash is returned when a stored hash is not a valid argon2id PHC string.
	ErrInvalidHash = errors.New("invalid password hash")
)

const (
	saltLen = 16
	keyLen  = 32
)

// Config holds the argon2id cost parameters.
type Config struct {
	// Time is the number of passes over memory
	Time uint32 `env:"TIME" default:"1"`
	// Memory is the memory cost in KiB
	Memory uint32 `env:"MEMORY" default:"65536"`
	// Threads is the degree of parallelism
	Threads uint8 `env:"THREADS" default:"4"`
}

// Hasher produces and verifies argon2id hashes encoded as PHC strings:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
type Hasher struct {
	cfg Config
}

// NewHasher creates a Hasher with the given cost parameters.
// Zero values fall back to the defaults of Config.
func NewHasher(cfg Config) *Hasher {
	if cfg.Time == 0 {
		cfg.Time = 1
	}

	if cfg.Memory == 0 {
		cfg.Memory = 64 * 1024
	}

	if cfg.Threads == 0 {
		cfg.Threads = 4
	}

	return &Hasher{cfg: cfg}
}

// Hash produces a salted argon2id hash of the password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.cfg.Time, h.cfg.Memory, h.cfg.Threads, keyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.cfg.Memory,
		h.cfg.Time,
		h.cfg.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the encoded hash.
// The comparison runs in constant time. The parameters stored in the hash are used,
// so hashes created with older cost settings keep verifying.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrInvalidHash
	}

	var (
		memory, time uint32
		threads      uint8
	)

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, errors.Join(ErrInvalidHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errors.Join(ErrInvalidHash, err)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false, errors.Join(ErrInvalidHash, err)
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(expected))) //nolint:gosec

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
