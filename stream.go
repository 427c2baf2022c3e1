package fscrypt

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

// maxStreamBlocks bounds the 31-bit block counter used by the STREAM
// construction below.
const maxStreamBlocks = (1 << 31) - 1

// streamNonce builds the full AEAD nonce for block index counter of a
// STREAM-wrapped cipher: the fixed portion supplied at Init, followed by a
// 4-byte little-endian counter whose top bit is set on the final block.
// This mirrors the LE31 STREAM construction (a little-endian 31-bit counter
// plus a 1-bit last-block flag appended to a shorter fixed nonce).
func streamNonce(fixed []byte, counter uint32, last bool) []byte {
	full := make([]byte, len(fixed)+4)
	copy(full, fixed)
	c := counter
	if last {
		c |= 1 << 31
	}
	binary.LittleEndian.PutUint32(full[len(fixed):], c)
	return full
}

// StreamEncryption wraps an AEAD cipher in the LE31 STREAM construction: a
// fixed nonce plus a monotonically increasing block counter, with the final
// block distinguished by a flag bit. It is a single-owner state machine —
// once Last is called, the object is no longer usable for Next or Last.
type StreamEncryption struct {
	aead    cipher.AEAD
	fixed   []byte
	counter uint32
	done    bool
}

// newStreamEncryption initializes a StreamEncryption for algorithm a, bound
// to key, with the given fixed nonce. nonce must be exactly
// NonceLen(a, ModeStream) bytes.
func newStreamEncryption(a Algorithm, key, nonce []byte) (*StreamEncryption, error) {
	wantLen, err := NonceLen(a, ModeStream)
	if err != nil {
		return nil, err
	}
	if len(nonce) != wantLen {
		return nil, ErrNonceLengthMismatch
	}
	aead, err := newAEAD(a, key)
	if err != nil {
		return nil, err
	}
	return &StreamEncryption{aead: aead, fixed: nonce}, nil
}

// EncryptNext seals plaintext as a non-final block.
func (s *StreamEncryption) EncryptNext(plaintext []byte) ([]byte, error) {
	if s.done {
		return nil, ErrIncorrectStep
	}
	if s.counter > maxStreamBlocks {
		return nil, fmt.Errorf("fscrypt: stream block counter exhausted")
	}
	nonce := streamNonce(s.fixed, s.counter, false)
	s.counter++
	return s.aead.Seal(nil, nonce, plaintext, nil), nil
}

// EncryptLast seals plaintext as the final block and consumes the stream.
func (s *StreamEncryption) EncryptLast(plaintext []byte) ([]byte, error) {
	if s.done {
		return nil, ErrIncorrectStep
	}
	nonce := streamNonce(s.fixed, s.counter, true)
	s.done = true
	return s.aead.Seal(nil, nonce, plaintext, nil), nil
}

// StreamDecryption is the decrypting counterpart of StreamEncryption.
type StreamDecryption struct {
	aead    cipher.AEAD
	fixed   []byte
	counter uint32
	done    bool
}

// newStreamDecryption initializes a StreamDecryption for algorithm a, bound
// to key, with the given fixed nonce.
func newStreamDecryption(a Algorithm, key, nonce []byte) (*StreamDecryption, error) {
	wantLen, err := NonceLen(a, ModeStream)
	if err != nil {
		return nil, err
	}
	if len(nonce) != wantLen {
		return nil, ErrNonceLengthMismatch
	}
	aead, err := newAEAD(a, key)
	if err != nil {
		return nil, err
	}
	return &StreamDecryption{aead: aead, fixed: nonce}, nil
}

// DecryptNext opens ciphertext as a non-final block.
func (s *StreamDecryption) DecryptNext(ciphertext []byte) ([]byte, error) {
	if s.done {
		return nil, ErrIncorrectStep
	}
	nonce := streamNonce(s.fixed, s.counter, false)
	s.counter++
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// DecryptLast opens ciphertext as the final block and consumes the stream.
func (s *StreamDecryption) DecryptLast(ciphertext []byte) ([]byte, error) {
	if s.done {
		return nil, ErrIncorrectStep
	}
	nonce := streamNonce(s.fixed, s.counter, true)
	s.done = true
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}
