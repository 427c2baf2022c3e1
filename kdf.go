package fscrypt

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/hkdf"
	"crypto/sha256"
)

// Argon2idParams holds the cost parameters for Argon2id key derivation.
type Argon2idParams struct {
	Memory      uint32 // Memory in KiB (e.g., 64*1024 for 64MB)
	Iterations  uint32 // Number of iterations (time parameter)
	Parallelism uint8  // Degree of parallelism
}

// DefaultArgon2idParams returns the recommended baseline cost parameters.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
	}
}

func (p Argon2idParams) withDefaults() Argon2idParams {
	if p.Memory == 0 {
		p.Memory = 64 * 1024
	}
	if p.Iterations == 0 {
		p.Iterations = 3
	}
	if p.Parallelism == 0 {
		p.Parallelism = 4
	}
	return p
}

// Validate checks p's cost parameters against sane operational bounds. A
// zero-valued field is allowed here and filled in by withDefaults before use.
func (p Argon2idParams) Validate() error {
	if p.Memory != 0 && p.Memory < 8*1024 {
		return NewValidationError("memory", p.Memory, "argon2id memory must be at least 8 MiB")
	}
	if p.Memory > 4*1024*1024 {
		return NewValidationError("memory", p.Memory, "argon2id memory must not exceed 4 GiB")
	}
	if p.Iterations > 100 {
		return NewValidationError("iterations", p.Iterations, "argon2id iterations must not exceed 100")
	}
	return nil
}

// PBKDF2Params holds the cost parameters for PBKDF2-SHA256 key derivation.
type PBKDF2Params struct {
	Iterations int // Number of iterations (minimum 100,000 recommended)
}

// DefaultPBKDF2Params returns the recommended baseline cost parameters.
func DefaultPBKDF2Params() PBKDF2Params {
	return PBKDF2Params{Iterations: 210000}
}

func (p PBKDF2Params) withDefaults() PBKDF2Params {
	if p.Iterations == 0 {
		p.Iterations = 210000
	}
	return p
}

// Validate checks p's cost parameters against sane operational bounds.
func (p PBKDF2Params) Validate() error {
	if p.Iterations != 0 && p.Iterations < 100000 {
		return NewValidationError("iterations", p.Iterations, "pbkdf2 iterations must be at least 100,000")
	}
	if p.Iterations > 10000000 {
		return NewValidationError("iterations", p.Iterations, "pbkdf2 iterations must not exceed 10,000,000")
	}
	return nil
}

// deriveKey derives a MasterKeyLen-byte key from password and salt using the
// hashing algorithm named by alg. The returned Secret must be wiped by the
// caller once the key is no longer needed.
func deriveKey(alg HashingAlgorithm, password, salt []byte, argon2Params Argon2idParams, pbkdf2Params PBKDF2Params) (*Secret, error) {
	if len(password) == 0 {
		return nil, NewValidationError("password", nil, "password cannot be empty")
	}
	if len(salt) != SaltLen {
		return nil, NewValidationError("salt", len(salt), fmt.Sprintf("salt must be %d bytes", SaltLen))
	}

	switch alg {
	case HashingAlgorithmArgon2id:
		p := argon2Params.withDefaults()
		key := argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, MasterKeyLen)
		return wrapSecret(key), nil
	case HashingAlgorithmPBKDF2SHA256:
		p := pbkdf2Params.withDefaults()
		key := pbkdf2.Key(password, salt, p.Iterations, MasterKeyLen, sha256.New)
		return wrapSecret(key), nil
	default:
		return nil, fmt.Errorf("fscrypt: %w: hashing algorithm %d", ErrUnsupportedCipher, alg)
	}
}

// generateSalt returns a fresh random salt of SaltLen bytes.
func generateSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("fscrypt: failed to generate salt: %w", err)
	}
	return salt, nil
}

// hkdfExpand derives n bytes of keying material from secret under the given
// info label, using HKDF-SHA256 with no extract step (secret is already
// uniformly random, as produced by deriveKey or a fresh master key).
func hkdfExpand(secret []byte, info string, n int) ([]byte, error) {
	r := hkdf.Expand(sha256.New, secret, []byte(info))
	out := make([]byte, n)
	if _, err := r.Read(out); err != nil {
		return nil, fmt.Errorf("fscrypt: hkdf expand failed: %w", err)
	}
	return out, nil
}
