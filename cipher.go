package fscrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// aeadEngine provides one-shot AEAD seal/open for the Memory mode (used to
// wrap and unwrap master keys in key slots).
type aeadEngine interface {
	Seal(nonce, plaintext []byte) []byte
	Open(nonce, ciphertext []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

type goAEADEngine struct {
	aead cipher.AEAD
}

func (e goAEADEngine) Seal(nonce, plaintext []byte) []byte {
	return e.aead.Seal(nil, nonce, plaintext, nil)
}

func (e goAEADEngine) Open(nonce, ciphertext []byte) ([]byte, error) {
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func (e goAEADEngine) NonceSize() int { return e.aead.NonceSize() }
func (e goAEADEngine) Overhead() int  { return e.aead.Overhead() }

// newAEAD builds the cipher.AEAD for algorithm a, bound to key. The
// underlying primitive's nonce size is always the algorithm's Memory-mode
// nonce length (12 for AES-256-GCM, 24 for XChaCha20-Poly1305): in Stream
// mode the fixed portion returned by NonceLen is shorter because the STREAM
// wrapper in stream.go appends a 4-byte block counter to reach this same
// total before each Seal/Open call.
func newAEAD(a Algorithm, key []byte) (cipher.AEAD, error) {
	wantKeyLen, err := KeyLen(a)
	if err != nil {
		return nil, err
	}
	if err := ValidateKey(key, wantKeyLen); err != nil {
		return nil, err
	}

	switch a {
	case AlgorithmAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("fscrypt: failed to create AES cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("fscrypt: failed to create GCM: %w", err)
		}
		return aead, nil

	case AlgorithmXChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("fscrypt: failed to create XChaCha20-Poly1305: %w", err)
		}
		return aead, nil

	default:
		return nil, ErrUnsupportedCipher
	}
}

// newEngine wraps newAEAD's result in the small Seal/Open facade used by
// masterkey.go (stream.go calls newAEAD directly and builds its own
// per-block nonces). m is accepted for symmetry with NonceLen/KeyLen
// call sites but does not affect the underlying primitive.
func newEngine(a Algorithm, m Mode, key []byte) (aeadEngine, error) {
	_ = m
	aead, err := newAEAD(a, key)
	if err != nil {
		return nil, err
	}
	return goAEADEngine{aead: aead}, nil
}
