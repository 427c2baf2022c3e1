package fscrypt

import (
	"bytes"
	"testing"
)

func key32(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, 32)
}

func TestStream_EncryptDecryptRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmXChaCha20Poly1305, AlgorithmAES256GCM} {
		t.Run(alg.String(), func(t *testing.T) {
			key := key32(0x11)
			nonceLen, _ := NonceLen(alg, ModeStream)
			nonce := bytes.Repeat([]byte{0x22}, nonceLen)

			enc, err := newStreamEncryption(alg, key, nonce)
			if err != nil {
				t.Fatalf("newStreamEncryption() error = %v", err)
			}
			dec, err := newStreamDecryption(alg, key, nonce)
			if err != nil {
				t.Fatalf("newStreamDecryption() error = %v", err)
			}

			block1 := bytes.Repeat([]byte{0xAA}, 1024)
			block2 := []byte("final block")

			ct1, err := enc.EncryptNext(block1)
			if err != nil {
				t.Fatalf("EncryptNext() error = %v", err)
			}
			ct2, err := enc.EncryptLast(block2)
			if err != nil {
				t.Fatalf("EncryptLast() error = %v", err)
			}

			pt1, err := dec.DecryptNext(ct1)
			if err != nil {
				t.Fatalf("DecryptNext() error = %v", err)
			}
			if !bytes.Equal(pt1, block1) {
				t.Error("decrypted first block mismatch")
			}
			pt2, err := dec.DecryptLast(ct2)
			if err != nil {
				t.Fatalf("DecryptLast() error = %v", err)
			}
			if !bytes.Equal(pt2, block2) {
				t.Error("decrypted final block mismatch")
			}
		})
	}
}

func TestStream_NonceLengthMismatch(t *testing.T) {
	key := key32(0x11)
	nonce := make([]byte, 19) // one short of XChaCha20Poly1305 Stream's 20
	if _, err := newStreamEncryption(AlgorithmXChaCha20Poly1305, key, nonce); err != ErrNonceLengthMismatch {
		t.Errorf("newStreamEncryption() error = %v, want %v", err, ErrNonceLengthMismatch)
	}
	if _, err := newStreamDecryption(AlgorithmXChaCha20Poly1305, key, nonce); err != ErrNonceLengthMismatch {
		t.Errorf("newStreamDecryption() error = %v, want %v", err, ErrNonceLengthMismatch)
	}
}

func TestStream_NonceLengthOffByOneEitherDirection(t *testing.T) {
	key := key32(0x11)
	wantLen, _ := NonceLen(AlgorithmXChaCha20Poly1305, ModeStream)
	for _, delta := range []int{-1, 1} {
		nonce := make([]byte, wantLen+delta)
		if _, err := newStreamEncryption(AlgorithmXChaCha20Poly1305, key, nonce); err != ErrNonceLengthMismatch {
			t.Errorf("delta %d: newStreamEncryption() error = %v, want %v", delta, err, ErrNonceLengthMismatch)
		}
	}
}

func TestStream_EncryptNextAfterLastFails(t *testing.T) {
	key := key32(0x11)
	nonceLen, _ := NonceLen(AlgorithmXChaCha20Poly1305, ModeStream)
	nonce := bytes.Repeat([]byte{0x22}, nonceLen)
	enc, _ := newStreamEncryption(AlgorithmXChaCha20Poly1305, key, nonce)

	if _, err := enc.EncryptLast([]byte("last")); err != nil {
		t.Fatalf("EncryptLast() error = %v", err)
	}
	if _, err := enc.EncryptNext([]byte("too late")); err != ErrIncorrectStep {
		t.Errorf("EncryptNext() after EncryptLast() error = %v, want %v", err, ErrIncorrectStep)
	}
	if _, err := enc.EncryptLast([]byte("twice")); err != ErrIncorrectStep {
		t.Errorf("second EncryptLast() error = %v, want %v", err, ErrIncorrectStep)
	}
}

func TestStream_DecryptNextAfterLastFails(t *testing.T) {
	key := key32(0x11)
	nonceLen, _ := NonceLen(AlgorithmXChaCha20Poly1305, ModeStream)
	nonce := bytes.Repeat([]byte{0x22}, nonceLen)
	dec, _ := newStreamDecryption(AlgorithmXChaCha20Poly1305, key, nonce)

	enc, _ := newStreamEncryption(AlgorithmXChaCha20Poly1305, key, nonce)
	ct, _ := enc.EncryptLast([]byte("last"))

	if _, err := dec.DecryptLast(ct); err != nil {
		t.Fatalf("DecryptLast() error = %v", err)
	}
	if _, err := dec.DecryptNext(ct); err != ErrIncorrectStep {
		t.Errorf("DecryptNext() after DecryptLast() error = %v, want %v", err, ErrIncorrectStep)
	}
}

func TestStream_TamperedCiphertextFailsAuth(t *testing.T) {
	key := key32(0x11)
	nonceLen, _ := NonceLen(AlgorithmXChaCha20Poly1305, ModeStream)
	nonce := bytes.Repeat([]byte{0x22}, nonceLen)

	enc, _ := newStreamEncryption(AlgorithmXChaCha20Poly1305, key, nonce)
	ct, err := enc.EncryptNext([]byte("some plaintext"))
	if err != nil {
		t.Fatalf("EncryptNext() error = %v", err)
	}
	ct[0] ^= 0xFF

	dec, _ := newStreamDecryption(AlgorithmXChaCha20Poly1305, key, nonce)
	if _, err := dec.DecryptNext(ct); err != ErrAuthFailed {
		t.Errorf("DecryptNext() on tampered ciphertext error = %v, want %v", err, ErrAuthFailed)
	}
}

func TestStreamNonce_LastFlagSetsTopBit(t *testing.T) {
	fixed := bytes.Repeat([]byte{0x00}, 20)
	normal := streamNonce(fixed, 5, false)
	last := streamNonce(fixed, 5, true)
	if bytes.Equal(normal, last) {
		t.Error("last-block nonce must differ from non-final nonce for the same counter")
	}
	if len(normal) != len(fixed)+4 {
		t.Errorf("streamNonce() length = %d, want %d", len(normal), len(fixed)+4)
	}
	// top bit of the little-endian counter word is bit 7 of the final byte.
	if last[len(last)-1]&0x80 == 0 {
		t.Error("expected top bit set on last-block nonce")
	}
	if normal[len(normal)-1]&0x80 != 0 {
		t.Error("expected top bit clear on non-final nonce")
	}
}
