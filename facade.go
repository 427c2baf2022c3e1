package fscrypt

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Manifest is a sidecar description of an encrypted file returned by
// EncryptFile. It never touches the fixed 228-byte on-disk header; it
// exists purely so a caller layering object tracking, audit logs, or
// upload-progress UIs on top of this package has a stable identifier to
// key off without re-parsing the ciphertext.
type Manifest struct {
	// SessionID uniquely identifies one EncryptFile call. It is generated
	// fresh every time and is not persisted anywhere in the ciphertext.
	SessionID uuid.UUID

	// Header summarizes the algorithm, mode, and occupied key slots of
	// the file that was written.
	Header HeaderInfo
}

// DecryptOptions supplies the key-derivation cost parameters DecryptFile
// must use to re-derive a password's key. The wire format's keyslot
// records which hashing algorithm was used (§3 of the format), but not its
// cost parameters, so a caller that encrypted with non-default
// Argon2idParams/PBKDF2Params must pass the same values back in here.
type DecryptOptions struct {
	Argon2idParams Argon2idParams
	PBKDF2Params   PBKDF2Params

	// BodySize is the exact ciphertext body length in bytes (the file's
	// total size minus HeaderSize). Required when src does not implement
	// io.Seeker; ignored otherwise, where it is derived via
	// Seek(0, io.SeekEnd).
	BodySize int64
}

func (o DecryptOptions) withDefaults() DecryptOptions {
	o.Argon2idParams = o.Argon2idParams.withDefaults()
	o.PBKDF2Params = o.PBKDF2Params.withDefaults()
	return o
}

// EncryptFile reads plaintext from src and writes a complete, self-describing
// ciphertext file to dst: a 228-byte header (one occupied key slot wrapping a
// fresh random master key under password) followed by the body, encrypted
// block by block under the STREAM construction.
//
// src's length must be known up front: if src implements io.Seeker, the
// length is computed via Seek(0, io.SeekEnd) and the read position is
// restored; otherwise opts.Size must be set accurately. If src runs out
// before a full non-final block has been read, EncryptFile fails with
// ErrReadUnderflow; if src still has bytes left after the declared size, it
// fails with ErrSizeMismatch. A src that falls short of the declared size
// only within the final, partial block is not detected: the bytes that were
// read are encrypted as the final block.
//
// password is wiped before EncryptFile returns, success or failure; callers
// must not reuse the slice afterward.
func EncryptFile(password []byte, src io.Reader, dst io.Writer, opts EncryptOptions) (Manifest, error) {
	defer wipe(password)

	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return Manifest{}, err
	}
	if len(password) == 0 {
		return Manifest{}, NewValidationError("password", nil, "password cannot be empty")
	}

	plaintextSize, src, err := resolveSize(src, opts.Size)
	if err != nil {
		return Manifest{}, err
	}

	bodyNonceLen, err := NonceLen(opts.Algorithm, ModeStream)
	if err != nil {
		return Manifest{}, err
	}
	bodyNonce := make([]byte, bodyNonceLen)
	if _, err := rand.Read(bodyNonce); err != nil {
		return Manifest{}, fmt.Errorf("fscrypt: failed to generate body nonce: %w", err)
	}

	masterKey, err := generateMasterKey()
	if err != nil {
		return Manifest{}, fmt.Errorf("fscrypt: failed to generate master key: %w", err)
	}
	defer masterKey.Wipe()

	salt, err := generateSalt()
	if err != nil {
		return Manifest{}, err
	}

	wrapped, slotNonce, err := wrapMasterKey(masterKey, opts.Algorithm, opts.HashingAlgorithm, password, salt, 0, opts.Argon2idParams, opts.PBKDF2Params)
	if err != nil {
		return Manifest{}, err
	}

	header, err := NewFileHeader(opts.Algorithm, bodyNonce)
	if err != nil {
		return Manifest{}, err
	}
	if err := header.AddKeyslot(0, opts.Algorithm, opts.HashingAlgorithm, salt, wrapped, slotNonce); err != nil {
		return Manifest{}, err
	}

	headerBytes, err := header.Serialize()
	if err != nil {
		return Manifest{}, err
	}
	if _, err := dst.Write(headerBytes); err != nil {
		return Manifest{}, NewIOError("write", "", err)
	}

	enc, err := newStreamEncryption(opts.Algorithm, masterKey.Bytes(), bodyNonce)
	if err != nil {
		return Manifest{}, err
	}

	pump := newEncryptPump(enc, src, dst, plaintextSize)
	if err := pump.run(); err != nil {
		return Manifest{}, err
	}
	if err := checkExhausted(src); err != nil {
		return Manifest{}, err
	}

	return Manifest{SessionID: uuid.New(), Header: header.Inspect()}, nil
}

// EncryptFileMulti is EncryptFile generalized to more than one password: it
// occupies one key slot per entry in passwords (up to MaxKeyslots), each
// wrapping the same freshly generated master key under its own salt, nonce,
// and slot-index commitment, so the file decrypts under any one of them.
// Every password in passwords is wiped before EncryptFileMulti returns.
func EncryptFileMulti(passwords [][]byte, src io.Reader, dst io.Writer, opts EncryptOptions) (Manifest, error) {
	defer func() {
		for _, pw := range passwords {
			wipe(pw)
		}
	}()

	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return Manifest{}, err
	}
	if len(passwords) == 0 {
		return Manifest{}, NewValidationError("passwords", nil, "at least one password is required")
	}
	if len(passwords) > MaxKeyslots {
		return Manifest{}, fmt.Errorf("%w: got %d passwords, header has %d key slots", ErrNoKeyslotSpace, len(passwords), MaxKeyslots)
	}
	for _, pw := range passwords {
		if len(pw) == 0 {
			return Manifest{}, NewValidationError("password", nil, "password cannot be empty")
		}
	}

	plaintextSize, src, err := resolveSize(src, opts.Size)
	if err != nil {
		return Manifest{}, err
	}

	bodyNonceLen, err := NonceLen(opts.Algorithm, ModeStream)
	if err != nil {
		return Manifest{}, err
	}
	bodyNonce := make([]byte, bodyNonceLen)
	if _, err := rand.Read(bodyNonce); err != nil {
		return Manifest{}, fmt.Errorf("fscrypt: failed to generate body nonce: %w", err)
	}

	masterKey, err := generateMasterKey()
	if err != nil {
		return Manifest{}, fmt.Errorf("fscrypt: failed to generate master key: %w", err)
	}
	defer masterKey.Wipe()

	header, err := NewFileHeader(opts.Algorithm, bodyNonce)
	if err != nil {
		return Manifest{}, err
	}

	for i, pw := range passwords {
		salt, err := generateSalt()
		if err != nil {
			return Manifest{}, err
		}
		wrapped, slotNonce, err := wrapMasterKey(masterKey, opts.Algorithm, opts.HashingAlgorithm, pw, salt, i, opts.Argon2idParams, opts.PBKDF2Params)
		if err != nil {
			return Manifest{}, err
		}
		if err := header.AddKeyslot(i, opts.Algorithm, opts.HashingAlgorithm, salt, wrapped, slotNonce); err != nil {
			return Manifest{}, err
		}
	}

	headerBytes, err := header.Serialize()
	if err != nil {
		return Manifest{}, err
	}
	if _, err := dst.Write(headerBytes); err != nil {
		return Manifest{}, NewIOError("write", "", err)
	}

	enc, err := newStreamEncryption(opts.Algorithm, masterKey.Bytes(), bodyNonce)
	if err != nil {
		return Manifest{}, err
	}

	pump := newEncryptPump(enc, src, dst, plaintextSize)
	if err := pump.run(); err != nil {
		return Manifest{}, err
	}
	if err := checkExhausted(src); err != nil {
		return Manifest{}, err
	}

	return Manifest{SessionID: uuid.New(), Header: header.Inspect()}, nil
}

// DecryptFile parses the ciphertext header written by EncryptFile, recovers
// the master key by trying password against every occupied key slot in
// order, and streams the decrypted body to dst. Any AEAD authentication
// failure, whether during key-slot unwrap or body decryption, is reported as
// ErrNoValidKeyslot / ErrAuthFailed; the caller must discard dst's contents
// on error, since a tampered body may have written authenticated-but-partial
// plaintext before the failure point.
//
// src's total size must be known up front via the same rule as EncryptFile:
// io.Seeker is used when available, otherwise opts.BodySize must hold the exact
// byte length of the ciphertext body (excluding the 228-byte header).
//
// password is wiped before DecryptFile returns, success or failure.
func DecryptFile(password []byte, src io.Reader, dst io.Writer, opts DecryptOptions) error {
	defer wipe(password)
	opts = opts.withDefaults()

	headerBytes := make([]byte, HeaderSize)
	if _, err := io.ReadFull(src, headerBytes); err != nil {
		return NewIOError("read", "", err)
	}
	header, err := ParseFileHeader(headerBytes)
	if err != nil {
		return &CorruptionError{Message: err.Error(), Err: err}
	}

	bodySize, src, err := resolveBodySize(src, opts.BodySize)
	if err != nil {
		return err
	}

	masterKey, err := recoverMasterKey(header, password, opts)
	if err != nil {
		return err
	}
	defer masterKey.Wipe()

	dec, err := newStreamDecryption(header.Algorithm, masterKey.Bytes(), header.Nonce)
	if err != nil {
		return err
	}

	pump := newDecryptPump(dec, src, dst, bodySize)
	if err := pump.run(); err != nil {
		return err
	}
	return checkExhausted(src)
}

// checkExhausted confirms r has no unread bytes left beyond what a pump
// already consumed. A declared size smaller than the stream's actual length
// would otherwise go unnoticed: the final block absorbs whatever is in the
// read buffer and the remainder is left dangling, silently truncated.
func checkExhausted(r io.Reader) error {
	var b [1]byte
	n, err := r.Read(b[:])
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return NewIOError("read", "", err)
	}
	if n > 0 {
		return ErrSizeMismatch
	}
	return nil
}

// recoverMasterKey tries password against every occupied slot in header, in
// slot order, returning the first master key that unwraps successfully.
func recoverMasterKey(header *FileHeader, password []byte, opts DecryptOptions) (*MasterKey, error) {
	for i := range header.Keyslots {
		slot := &header.Keyslots[i]
		if !slot.occupied {
			continue
		}
		mk, err := unwrapMasterKey(slot, password, i, opts.Argon2idParams, opts.PBKDF2Params)
		if err != nil {
			continue
		}
		return mk, nil
	}
	return nil, ErrNoValidKeyslot
}

// resolveSize returns src's declared length. If src implements io.Seeker,
// the length is measured directly and the read position is restored;
// otherwise declared must be a non-negative, caller-supplied size.
func resolveSize(src io.Reader, declared int64) (int64, io.Reader, error) {
	if seeker, ok := src.(io.Seeker); ok {
		cur, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, src, NewIOError("seek", "", err)
		}
		end, err := seeker.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, src, NewIOError("seek", "", err)
		}
		if _, err := seeker.Seek(cur, io.SeekStart); err != nil {
			return 0, src, NewIOError("seek", "", err)
		}
		return end - cur, src, nil
	}
	if err := ValidateSize(declared, "size", 0, 0); err != nil {
		return 0, src, fmt.Errorf("fscrypt: declared size is required for non-seekable readers: %w", err)
	}
	return declared, src, nil
}

// resolveBodySize mirrors resolveSize for the decryption path: it measures
// the remaining bytes on src (the ciphertext body, header already consumed)
// when src is seekable, or falls back to declared otherwise.
func resolveBodySize(src io.Reader, declared int64) (int64, io.Reader, error) {
	return resolveSize(src, declared)
}
