package fscrypt

import (
	"bytes"
	"testing"
)

func TestNewEngine_SealOpenRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmXChaCha20Poly1305, AlgorithmAES256GCM} {
		t.Run(alg.String(), func(t *testing.T) {
			key := make([]byte, 32)
			for i := range key {
				key[i] = byte(i)
			}
			engine, err := newEngine(alg, ModeMemory, key)
			if err != nil {
				t.Fatalf("newEngine() error = %v", err)
			}
			nonce := make([]byte, engine.NonceSize())
			plaintext := []byte("master key material goes here..")
			ciphertext := engine.Seal(nonce, plaintext)
			if len(ciphertext) != len(plaintext)+engine.Overhead() {
				t.Errorf("ciphertext length = %d, want %d", len(ciphertext), len(plaintext)+engine.Overhead())
			}
			got, err := engine.Open(nonce, ciphertext)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Errorf("Open() = %q, want %q", got, plaintext)
			}
		})
	}
}

func TestNewEngine_OpenFailsOnTamper(t *testing.T) {
	key := make([]byte, 32)
	engine, err := newEngine(AlgorithmXChaCha20Poly1305, ModeMemory, key)
	if err != nil {
		t.Fatalf("newEngine() error = %v", err)
	}
	nonce := make([]byte, engine.NonceSize())
	ciphertext := engine.Seal(nonce, []byte("data"))
	ciphertext[0] ^= 0xFF

	if _, err := engine.Open(nonce, ciphertext); err == nil {
		t.Error("expected Open() to fail on tampered ciphertext")
	}
}

func TestNewAEAD_WrongKeyLength(t *testing.T) {
	if _, err := newAEAD(AlgorithmAES256GCM, make([]byte, 16)); err == nil {
		t.Error("expected error for wrong key length")
	}
}

func TestNewAEAD_UnsupportedAlgorithm(t *testing.T) {
	if _, err := newAEAD(Algorithm(99), make([]byte, 32)); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}
