package fscrypt

import "fmt"

// Algorithm identifies an AEAD cipher used for both the body stream and the
// key-slot wrapping.
type Algorithm uint16

const (
	// AlgorithmXChaCha20Poly1305 selects XChaCha20-Poly1305.
	AlgorithmXChaCha20Poly1305 Algorithm = iota
	// AlgorithmAES256GCM selects AES-256 in Galois/Counter Mode.
	AlgorithmAES256GCM
)

// String returns a human-readable name for the algorithm.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmXChaCha20Poly1305:
		return "xchacha20poly1305"
	case AlgorithmAES256GCM:
		return "aes-256-gcm"
	default:
		return "unknown"
	}
}

// Mode selects the nonce-length policy for the enclosing context. Stream
// nonces are shorter than Memory nonces because the STREAM construction
// appends a 31-bit counter and a 1-bit last-block flag to the nonce.
type Mode uint16

const (
	// ModeStream is used for the body, which is encrypted block by block.
	ModeStream Mode = iota
	// ModeMemory is used for one-shot AEAD calls, such as wrapping a
	// master key into a key slot.
	ModeMemory
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// HashingAlgorithm identifies the password-hashing parameterization used to
// derive a 32-byte key from a password and salt.
type HashingAlgorithm uint16

const (
	// HashingAlgorithmArgon2id is the default, memory-hard KDF.
	HashingAlgorithmArgon2id HashingAlgorithm = iota
	// HashingAlgorithmPBKDF2SHA256 is kept for compatibility with callers
	// migrating from PBKDF2-based stores; it is not memory-hard and
	// should not be used for new files.
	HashingAlgorithmPBKDF2SHA256
)

// String returns a human-readable name for the hashing algorithm.
func (h HashingAlgorithm) String() string {
	switch h {
	case HashingAlgorithmArgon2id:
		return "argon2id"
	case HashingAlgorithmPBKDF2SHA256:
		return "pbkdf2-sha256"
	default:
		return "unknown"
	}
}

const (
	// BlockSize is the fixed plaintext block size used by the streaming
	// AEAD pipeline and the block pump.
	BlockSize = 1 << 20 // 1 MiB

	// SaltLen is the length, in bytes, of a key-slot salt.
	SaltLen = 16

	// EncryptedMasterKeyLen is the length, in bytes, of a wrapped master
	// key: 32 bytes of plaintext plus a 16-byte AEAD tag.
	EncryptedMasterKeyLen = 48

	// AEADTagLen is the authentication tag length added by every AEAD
	// call used in this package.
	AEADTagLen = 16

	// MasterKeyLen is the length, in bytes, of a master key.
	MasterKeyLen = 32

	// slotNonceFieldLen is the width of the zero-padded nonce field
	// inside a key slot.
	slotNonceFieldLen = 24

	// headerNonceFieldLen is the width of the zero-padded nonce field
	// inside the file header.
	headerNonceFieldLen = 24
)

// MagicBytes identifies a ciphertext file produced by this package.
var MagicBytes = [6]byte{0x08, 0xFF, 0x55, 0x32, 0x58, 0x1A}

// NonceLen returns the nonce length required by algorithm a under mode m, per
// the table:
//
//	XChaCha20Poly1305: Stream -> 20, Memory -> 24
//	AES-256-GCM:       Stream -> 8,  Memory -> 12
func NonceLen(a Algorithm, m Mode) (int, error) {
	switch a {
	case AlgorithmXChaCha20Poly1305:
		switch m {
		case ModeStream:
			return 20, nil
		case ModeMemory:
			return 24, nil
		}
	case AlgorithmAES256GCM:
		switch m {
		case ModeStream:
			return 8, nil
		case ModeMemory:
			return 12, nil
		}
	}
	return 0, fmt.Errorf("fscrypt: unsupported algorithm/mode combination: %s/%s", a, m)
}

// KeyLen returns the AEAD key length for algorithm a. Both supported
// algorithms use 32-byte keys.
func KeyLen(a Algorithm) (int, error) {
	switch a {
	case AlgorithmXChaCha20Poly1305, AlgorithmAES256GCM:
		return 32, nil
	default:
		return 0, fmt.Errorf("fscrypt: unsupported algorithm: %d", a)
	}
}
