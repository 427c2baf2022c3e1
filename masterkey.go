package fscrypt

import (
	"crypto/rand"
	"fmt"
)

// MasterKey is the single random symmetric key that encrypts a file's body
// stream. Every key slot holds a copy of it sealed under a password-derived
// wrapping key. It owns its backing memory and must be wiped with Wipe once
// encryption or decryption of a file is complete.
type MasterKey struct {
	secret *Secret
}

// generateMasterKey returns a fresh random MasterKeyLen-byte master key.
func generateMasterKey() (*MasterKey, error) {
	b := make([]byte, MasterKeyLen)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return &MasterKey{secret: wrapSecret(b)}, nil
}

// Bytes returns the master key's raw bytes. The returned slice aliases the
// key's storage and becomes invalid after Wipe.
func (mk *MasterKey) Bytes() []byte {
	return mk.secret.Bytes()
}

// Wipe zeroes the master key's backing memory.
func (mk *MasterKey) Wipe() {
	mk.secret.Wipe()
}

// slotCommitmentKey derives the actual AEAD wrapping key used for slot
// slotIndex from the password-derived key via HKDF-SHA256, binding the
// wrapped master key to its slot position. Without this, copying a key
// slot's 96 bytes into another index would still unwrap correctly under the
// same password; binding the wrap key to the index makes such a swap fail
// authentication instead of silently succeeding with a shifted slot.
func slotCommitmentKey(wrapKey []byte, slotIndex int) (*Secret, error) {
	info := fmt.Sprintf("fscrypt-keyslot-%d-commitment", slotIndex)
	commit, err := hkdfExpand(wrapKey, info, len(wrapKey))
	if err != nil {
		return nil, err
	}
	return wrapSecret(commit), nil
}

// wrapMasterKey seals mk under a key derived from password and salt via
// alg, further bound to slotIndex by slotCommitmentKey, returning the
// EncryptedMasterKeyLen-byte ciphertext and the random wrapping nonce used.
// All intermediate key material is wiped before returning.
func wrapMasterKey(mk *MasterKey, wrapAlg Algorithm, hashAlg HashingAlgorithm, password, salt []byte, slotIndex int, argon2Params Argon2idParams, pbkdf2Params PBKDF2Params) (wrapped []byte, nonce []byte, err error) {
	wrapKey, err := deriveKey(hashAlg, password, salt, argon2Params, pbkdf2Params)
	if err != nil {
		return nil, nil, err
	}
	defer wrapKey.Wipe()

	commitKey, err := slotCommitmentKey(wrapKey.Bytes(), slotIndex)
	if err != nil {
		return nil, nil, err
	}
	defer commitKey.Wipe()

	nonceLen, err := NonceLen(wrapAlg, ModeMemory)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	engine, err := newEngine(wrapAlg, ModeMemory, commitKey.Bytes())
	if err != nil {
		return nil, nil, err
	}
	wrapped = engine.Seal(nonce, mk.Bytes())
	return wrapped, nonce, nil
}

// unwrapMasterKey attempts to open a key slot's wrapped master key using
// password, assuming the slot occupies index slotIndex (see wrapMasterKey).
// It returns ErrAuthFailed if the password is wrong for this slot,
// or if slotIndex does not match the index the slot was originally wrapped
// under.
func unwrapMasterKey(slot *FileKeyslot, password []byte, slotIndex int, argon2Params Argon2idParams, pbkdf2Params PBKDF2Params) (*MasterKey, error) {
	wrapKey, err := deriveKey(slot.HashingAlgorithm, password, slot.Salt[:], argon2Params, pbkdf2Params)
	if err != nil {
		return nil, err
	}
	defer wrapKey.Wipe()

	commitKey, err := slotCommitmentKey(wrapKey.Bytes(), slotIndex)
	if err != nil {
		return nil, err
	}
	defer commitKey.Wipe()

	engine, err := newEngine(slot.Algorithm, ModeMemory, commitKey.Bytes())
	if err != nil {
		return nil, err
	}
	plaintext, err := engine.Open(slot.Nonce, slot.MasterKey[:])
	if err != nil {
		return nil, err
	}
	return &MasterKey{secret: wrapSecret(plaintext)}, nil
}
