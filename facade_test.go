package fscrypt

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// onlyReader strips any io.Seeker the underlying reader implements, forcing
// DecryptFile down the declared-BodySize path instead of auto-detecting via
// Seek.
type onlyReader struct {
	r io.Reader
}

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

func encryptOptsFor(alg Algorithm, hashAlg HashingAlgorithm) EncryptOptions {
	opts := DefaultEncryptOptions()
	opts.Algorithm = alg
	opts.HashingAlgorithm = hashAlg
	return opts
}

func TestEncryptDecryptFile_RoundTripAcrossCombinations(t *testing.T) {
	algorithms := []Algorithm{AlgorithmXChaCha20Poly1305, AlgorithmAES256GCM}
	hashAlgs := []HashingAlgorithm{HashingAlgorithmArgon2id, HashingAlgorithmPBKDF2SHA256}
	sizes := []int{0, 1, BlockSize - 1, BlockSize, BlockSize + 1}

	for _, alg := range algorithms {
		for _, hashAlg := range hashAlgs {
			for _, size := range sizes {
				t.Run(alg.String()+"/"+hashAlg.String()+"/"+sizeName(size), func(t *testing.T) {
					plaintext := bytes.Repeat([]byte{0x5C}, size)
					opts := encryptOptsFor(alg, hashAlg)

					var ciphertext bytes.Buffer
					manifest, err := EncryptFile([]byte("correct horse battery staple"), bytes.NewReader(plaintext), &ciphertext, opts)
					if err != nil {
						t.Fatalf("EncryptFile() error = %v", err)
					}
					if manifest.Header.OccupiedSlots != 1 {
						t.Errorf("OccupiedSlots = %d, want 1", manifest.Header.OccupiedSlots)
					}

					var plainOut bytes.Buffer
					err = DecryptFile([]byte("correct horse battery staple"), bytes.NewReader(ciphertext.Bytes()), &plainOut, DecryptOptions{})
					if err != nil {
						t.Fatalf("DecryptFile() error = %v", err)
					}
					if !bytes.Equal(plainOut.Bytes(), plaintext) {
						t.Errorf("round trip mismatch: got %d bytes, want %d bytes", plainOut.Len(), len(plaintext))
					}
				})
			}
		}
	}
}

func TestEncryptFile_EmptyPlaintextProducesFixedOverheadOutput(t *testing.T) {
	var ciphertext bytes.Buffer
	_, err := EncryptFile([]byte("pw"), bytes.NewReader(nil), &ciphertext, DefaultEncryptOptions())
	if err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}
	// 228-byte header + one empty, tag-only final block.
	want := HeaderSize + AEADTagLen
	if ciphertext.Len() != want {
		t.Errorf("empty-plaintext ciphertext length = %d, want %d", ciphertext.Len(), want)
	}
}

func TestDecryptFile_WrongPasswordFails(t *testing.T) {
	var ciphertext bytes.Buffer
	_, err := EncryptFile([]byte("right password"), bytes.NewReader([]byte("secret data")), &ciphertext, DefaultEncryptOptions())
	if err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}

	var plainOut bytes.Buffer
	err = DecryptFile([]byte("wrong password"), bytes.NewReader(ciphertext.Bytes()), &plainOut, DecryptOptions{})
	if err != ErrNoValidKeyslot {
		t.Errorf("DecryptFile() error = %v, want %v", err, ErrNoValidKeyslot)
	}
}

func TestDecryptFile_TamperedBodyFailsAuthentication(t *testing.T) {
	var ciphertext bytes.Buffer
	_, err := EncryptFile([]byte("pw"), bytes.NewReader([]byte("some plaintext body content")), &ciphertext, DefaultEncryptOptions())
	if err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}

	tampered := ciphertext.Bytes()
	tampered[HeaderSize+2] ^= 0xFF // flip a byte inside the encrypted body

	var plainOut bytes.Buffer
	err = DecryptFile([]byte("pw"), bytes.NewReader(tampered), &plainOut, DecryptOptions{})
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("DecryptFile() on tampered body error = %v, want wrapping %v", err, ErrAuthFailed)
	}
	if !IsAuthenticationError(err) {
		t.Errorf("DecryptFile() on tampered body error = %v, want an AuthenticationError", err)
	}
}

func TestDecryptFile_CorruptedHeaderReportsCorruptionError(t *testing.T) {
	var ciphertext bytes.Buffer
	_, err := EncryptFile([]byte("pw"), bytes.NewReader([]byte("some plaintext")), &ciphertext, DefaultEncryptOptions())
	if err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}

	tampered := ciphertext.Bytes()
	tampered[0] ^= 0xFF // flip a magic byte

	var plainOut bytes.Buffer
	err = DecryptFile([]byte("pw"), bytes.NewReader(tampered), &plainOut, DecryptOptions{})
	if !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("DecryptFile() on corrupted header error = %v, want wrapping %v", err, ErrInvalidMagic)
	}
	if !IsCorruptionError(err) {
		t.Errorf("DecryptFile() on corrupted header error = %v, want a CorruptionError", err)
	}
}

func TestDecryptFile_DeclaredSizeSmallerThanActualIsDetected(t *testing.T) {
	// Two full blocks plus a remainder, so under-declaring the body size by
	// one full ciphertext block shifts the pump's Normal/Final split: the
	// mis-timed Final call authenticates against the wrong nonce and the
	// call fails rather than silently truncating.
	plaintext := bytes.Repeat([]byte{0x01}, 2*BlockSize+17)
	var ciphertext bytes.Buffer
	_, err := EncryptFile([]byte("pw"), bytes.NewReader(plaintext), &ciphertext, DefaultEncryptOptions())
	if err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}

	actualBodySize := int64(ciphertext.Len() - HeaderSize)
	opts := DecryptOptions{BodySize: actualBodySize - int64(BlockSize+AEADTagLen)}

	var plainOut bytes.Buffer
	src := onlyReader{r: bytes.NewReader(ciphertext.Bytes())}
	err = DecryptFile([]byte("pw"), src, &plainOut, opts)
	if err == nil {
		t.Error("expected an error when the declared body size understates the actual ciphertext")
	}
}

func TestEncryptFileMulti_DecryptsUnderEitherPassword(t *testing.T) {
	var ciphertext bytes.Buffer
	passwords := [][]byte{[]byte("password one"), []byte("password two")}
	manifest, err := EncryptFileMulti(passwords, bytes.NewReader([]byte("shared secret content")), &ciphertext, DefaultEncryptOptions())
	if err != nil {
		t.Fatalf("EncryptFileMulti() error = %v", err)
	}
	if manifest.Header.OccupiedSlots != 2 {
		t.Errorf("OccupiedSlots = %d, want 2", manifest.Header.OccupiedSlots)
	}

	for _, pw := range [][]byte{[]byte("password one"), []byte("password two")} {
		var plainOut bytes.Buffer
		if err := DecryptFile(pw, bytes.NewReader(ciphertext.Bytes()), &plainOut, DecryptOptions{}); err != nil {
			t.Errorf("DecryptFile() with %q error = %v", pw, err)
			continue
		}
		if plainOut.String() != "shared secret content" {
			t.Errorf("decrypted content = %q, want %q", plainOut.String(), "shared secret content")
		}
	}
}

func TestEncryptFileMulti_RejectsTooManyPasswords(t *testing.T) {
	passwords := make([][]byte, MaxKeyslots+1)
	for i := range passwords {
		passwords[i] = []byte("pw")
	}
	var ciphertext bytes.Buffer
	_, err := EncryptFileMulti(passwords, bytes.NewReader(nil), &ciphertext, DefaultEncryptOptions())
	if err == nil {
		t.Error("expected an error when passing more passwords than MaxKeyslots")
	}
}

func TestEncryptFileMulti_RejectsEmptyPasswordList(t *testing.T) {
	var ciphertext bytes.Buffer
	_, err := EncryptFileMulti(nil, bytes.NewReader(nil), &ciphertext, DefaultEncryptOptions())
	if err == nil {
		t.Error("expected an error for an empty password list")
	}
}

func TestEncryptFile_EmptyPasswordRejected(t *testing.T) {
	var ciphertext bytes.Buffer
	_, err := EncryptFile(nil, bytes.NewReader([]byte("data")), &ciphertext, DefaultEncryptOptions())
	if err == nil {
		t.Error("expected an error for an empty password")
	}
}

func TestEncryptFile_PasswordIsWipedAfterReturn(t *testing.T) {
	password := []byte("wipe me")
	var ciphertext bytes.Buffer
	if _, err := EncryptFile(password, bytes.NewReader([]byte("data")), &ciphertext, DefaultEncryptOptions()); err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}
	for _, b := range password {
		if b != 0 {
			t.Fatal("password slice was not zeroed after EncryptFile() returned")
		}
	}
}
