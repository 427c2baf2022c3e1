package fscrypt

import (
	"bytes"
	"fmt"
)

// Fixed tag bytes identifying each serialized field's kind, grouped by
// family (first byte) with the variant in the second. Parsing checks both
// bytes; a wrong family byte and an unknown variant byte are reported with
// the same error (ErrInvalidTag for algorithm/mode/hashing tags,
// ErrUnsupportedVersion for version tags), so the two cases are not told
// apart.
var (
	versionTagV1         = [2]byte{0x0A, 0x01}
	keyslotVersionTagV1  = [2]byte{0x0D, 0x01}
	algorithmTagFamily   = byte(0x0B)
	modeTagFamily        = byte(0x0C)
	hashingTagFamily     = byte(0x0E)
)

func serializeAlgorithm(a Algorithm) ([2]byte, error) {
	switch a {
	case AlgorithmXChaCha20Poly1305:
		return [2]byte{algorithmTagFamily, 0x01}, nil
	case AlgorithmAES256GCM:
		return [2]byte{algorithmTagFamily, 0x02}, nil
	default:
		return [2]byte{}, ErrInvalidTag
	}
}

func parseAlgorithm(b [2]byte) (Algorithm, error) {
	if b[0] != algorithmTagFamily {
		return 0, ErrInvalidTag
	}
	switch b[1] {
	case 0x01:
		return AlgorithmXChaCha20Poly1305, nil
	case 0x02:
		return AlgorithmAES256GCM, nil
	default:
		return 0, ErrInvalidTag
	}
}

func serializeMode(m Mode) ([2]byte, error) {
	switch m {
	case ModeStream:
		return [2]byte{modeTagFamily, 0x01}, nil
	case ModeMemory:
		return [2]byte{modeTagFamily, 0x02}, nil
	default:
		return [2]byte{}, ErrInvalidTag
	}
}

func parseMode(b [2]byte) (Mode, error) {
	if b[0] != modeTagFamily {
		return 0, ErrInvalidTag
	}
	switch b[1] {
	case 0x01:
		return ModeStream, nil
	case 0x02:
		return ModeMemory, nil
	default:
		return 0, ErrInvalidTag
	}
}

func serializeHashingAlgorithm(h HashingAlgorithm) ([2]byte, error) {
	switch h {
	case HashingAlgorithmArgon2id:
		return [2]byte{hashingTagFamily, 0x01}, nil
	case HashingAlgorithmPBKDF2SHA256:
		return [2]byte{hashingTagFamily, 0x02}, nil
	default:
		return [2]byte{}, ErrInvalidTag
	}
}

func parseHashingAlgorithm(b [2]byte) (HashingAlgorithm, error) {
	if b[0] != hashingTagFamily {
		return 0, ErrInvalidTag
	}
	switch b[1] {
	case 0x01:
		return HashingAlgorithmArgon2id, nil
	case 0x02:
		return HashingAlgorithmPBKDF2SHA256, nil
	default:
		return 0, ErrInvalidTag
	}
}

const (
	// KeyslotSize is the fixed on-disk size of a single key slot.
	KeyslotSize = 2 + 2 + 2 + 2 + SaltLen + EncryptedMasterKeyLen + slotNonceFieldLen // 96

	// MaxKeyslots is the number of key slots carried by every header,
	// whether or not all of them are populated.
	MaxKeyslots = 2

	// HeaderSize is the fixed on-disk size of a FileHeader, magic through
	// the last key slot.
	HeaderSize = 6 + 2 + 2 + 2 + headerNonceFieldLen + MaxKeyslots*KeyslotSize // 228
)

// FileKeyslot holds one password-wrapped copy of a file's master key. A
// header carries up to MaxKeyslots of these so a file can be unlocked with
// more than one password.
type FileKeyslot struct {
	Algorithm        Algorithm
	HashingAlgorithm HashingAlgorithm
	Mode             Mode
	Salt             [SaltLen]byte
	MasterKey        [EncryptedMasterKeyLen]byte // AEAD-wrapped, tag included
	Nonce            []byte                      // wrapping nonce, NonceLen(Algorithm, Mode) bytes
	occupied         bool
}

// serialize writes the slot's fixed KeyslotSize-byte encoding. An
// unoccupied slot serializes as all zero bytes.
func (k *FileKeyslot) serialize() ([]byte, error) {
	if !k.occupied {
		return make([]byte, KeyslotSize), nil
	}

	algTag, err := serializeAlgorithm(k.Algorithm)
	if err != nil {
		return nil, err
	}
	hashTag, err := serializeHashingAlgorithm(k.HashingAlgorithm)
	if err != nil {
		return nil, err
	}
	modeTag, err := serializeMode(k.Mode)
	if err != nil {
		return nil, err
	}
	if len(k.Nonce) > slotNonceFieldLen {
		return nil, fmt.Errorf("fscrypt: keyslot nonce too long: %d bytes", len(k.Nonce))
	}

	buf := make([]byte, 0, KeyslotSize)
	buf = append(buf, keyslotVersionTagV1[:]...)
	buf = append(buf, algTag[:]...)
	buf = append(buf, hashTag[:]...)
	buf = append(buf, modeTag[:]...)
	buf = append(buf, k.Salt[:]...)
	buf = append(buf, k.MasterKey[:]...)
	buf = append(buf, k.Nonce...)
	buf = append(buf, make([]byte, slotNonceFieldLen-len(k.Nonce))...)
	return buf, nil
}

// parseKeyslot decodes a KeyslotSize-byte slot. An all-zero slot parses as
// an unoccupied slot with occupied == false.
func parseKeyslot(b []byte) (FileKeyslot, error) {
	var k FileKeyslot
	if len(b) != KeyslotSize {
		return k, ErrHeaderTooShort
	}
	if isAllZero(b) {
		return k, nil
	}

	off := 0
	readTag := func() [2]byte {
		var t [2]byte
		copy(t[:], b[off:off+2])
		off += 2
		return t
	}

	version := readTag()
	if version != keyslotVersionTagV1 {
		return k, ErrUnsupportedVersion
	}

	alg, err := parseAlgorithm(readTag())
	if err != nil {
		return k, err
	}
	hashAlg, err := parseHashingAlgorithm(readTag())
	if err != nil {
		return k, err
	}
	mode, err := parseMode(readTag())
	if err != nil {
		return k, err
	}

	copy(k.Salt[:], b[off:off+SaltLen])
	off += SaltLen
	copy(k.MasterKey[:], b[off:off+EncryptedMasterKeyLen])
	off += EncryptedMasterKeyLen

	nonceLen, err := NonceLen(alg, mode)
	if err != nil {
		return k, err
	}
	nonceField := b[off : off+slotNonceFieldLen]
	if !isAllZero(nonceField[nonceLen:]) {
		return k, ErrNonZeroPadding
	}

	k.Algorithm = alg
	k.HashingAlgorithm = hashAlg
	k.Mode = mode
	k.Nonce = append([]byte(nil), nonceField[:nonceLen]...)
	k.occupied = true
	return k, nil
}

// FileHeader is the fixed-width, 228-byte header prepended to every
// encrypted file body.
type FileHeader struct {
	Algorithm Algorithm
	Mode      Mode
	Nonce     []byte // body stream nonce, NonceLen(Algorithm, ModeStream) bytes
	Keyslots  [MaxKeyslots]FileKeyslot
}

// NewFileHeader builds a header for algorithm a with the given stream nonce
// and no occupied key slots.
func NewFileHeader(a Algorithm, nonce []byte) (*FileHeader, error) {
	wantLen, err := NonceLen(a, ModeStream)
	if err != nil {
		return nil, err
	}
	if len(nonce) != wantLen {
		return nil, ErrNonceLengthMismatch
	}
	return &FileHeader{
		Algorithm: a,
		Mode:      ModeStream,
		Nonce:     nonce,
	}, nil
}

// AddKeyslot occupies slot index with the given wrapped master key material.
// The index is caller-chosen (rather than "first free") because wrappedKey
// was sealed under a wrapping key bound to index via a per-slot HKDF
// commitment (see wrapMasterKey) — the caller must use the same index both
// places.
func (h *FileHeader) AddKeyslot(index int, alg Algorithm, hashAlg HashingAlgorithm, salt []byte, wrappedKey []byte, nonce []byte) error {
	if index < 0 || index >= MaxKeyslots {
		return NewValidationError("index", index, fmt.Sprintf("keyslot index must be in [0,%d)", MaxKeyslots))
	}
	if h.Keyslots[index].occupied {
		return NewValidationError("index", index, "keyslot already occupied")
	}
	if len(salt) != SaltLen {
		return NewValidationError("salt", len(salt), fmt.Sprintf("must be %d bytes", SaltLen))
	}
	if len(wrappedKey) != EncryptedMasterKeyLen {
		return NewValidationError("wrappedKey", len(wrappedKey), fmt.Sprintf("must be %d bytes", EncryptedMasterKeyLen))
	}
	wantNonceLen, err := NonceLen(alg, ModeMemory)
	if err != nil {
		return err
	}
	if len(nonce) != wantNonceLen {
		return ErrNonceLengthMismatch
	}

	var slot FileKeyslot
	slot.Algorithm = alg
	slot.HashingAlgorithm = hashAlg
	slot.Mode = ModeMemory
	copy(slot.Salt[:], salt)
	copy(slot.MasterKey[:], wrappedKey)
	slot.Nonce = append([]byte(nil), nonce...)
	slot.occupied = true
	h.Keyslots[index] = slot
	return nil
}

// FirstFreeKeyslot returns the index of the first unoccupied slot, or -1 if
// every slot is occupied.
func (h *FileHeader) FirstFreeKeyslot() int {
	for i := range h.Keyslots {
		if !h.Keyslots[i].occupied {
			return i
		}
	}
	return -1
}

// Serialize encodes the header to its fixed HeaderSize-byte representation.
func (h *FileHeader) Serialize() ([]byte, error) {
	algTag, err := serializeAlgorithm(h.Algorithm)
	if err != nil {
		return nil, err
	}
	modeTag, err := serializeMode(h.Mode)
	if err != nil {
		return nil, err
	}
	if len(h.Nonce) > headerNonceFieldLen {
		return nil, fmt.Errorf("fscrypt: header nonce too long: %d bytes", len(h.Nonce))
	}

	buf := make([]byte, 0, HeaderSize)
	buf = append(buf, MagicBytes[:]...)
	buf = append(buf, versionTagV1[:]...)
	buf = append(buf, algTag[:]...)
	buf = append(buf, modeTag[:]...)
	buf = append(buf, h.Nonce...)
	buf = append(buf, make([]byte, headerNonceFieldLen-len(h.Nonce))...)

	for i := range h.Keyslots {
		slotBytes, err := h.Keyslots[i].serialize()
		if err != nil {
			return nil, err
		}
		buf = append(buf, slotBytes...)
	}

	return buf, nil
}

// ParseFileHeader decodes a HeaderSize-byte buffer into a FileHeader,
// rejecting bad magic, unrecognized tags, and non-zero padding.
func ParseFileHeader(b []byte) (*FileHeader, error) {
	if len(b) < HeaderSize {
		return nil, ErrHeaderTooShort
	}
	b = b[:HeaderSize]

	if !bytes.Equal(b[0:6], MagicBytes[:]) {
		return nil, ErrInvalidMagic
	}

	off := 6
	var version [2]byte
	copy(version[:], b[off:off+2])
	off += 2
	if version != versionTagV1 {
		return nil, ErrUnsupportedVersion
	}

	var algTag, modeTag [2]byte
	copy(algTag[:], b[off:off+2])
	off += 2
	copy(modeTag[:], b[off:off+2])
	off += 2

	alg, err := parseAlgorithm(algTag)
	if err != nil {
		return nil, err
	}
	mode, err := parseMode(modeTag)
	if err != nil {
		return nil, err
	}
	if mode != ModeStream {
		return nil, ErrInvalidTag
	}

	nonceLen, err := NonceLen(alg, ModeStream)
	if err != nil {
		return nil, err
	}
	nonceField := b[off : off+headerNonceFieldLen]
	if !isAllZero(nonceField[nonceLen:]) {
		return nil, ErrNonZeroPadding
	}
	off += headerNonceFieldLen

	h := &FileHeader{
		Algorithm: alg,
		Mode:      mode,
		Nonce:     append([]byte(nil), nonceField[:nonceLen]...),
	}

	for i := 0; i < MaxKeyslots; i++ {
		slot, err := parseKeyslot(b[off : off+KeyslotSize])
		if err != nil {
			return nil, err
		}
		h.Keyslots[i] = slot
		off += KeyslotSize
	}

	return h, nil
}

// HeaderInfo is a read-only summary of a header, safe to log or display
// without touching key material.
type HeaderInfo struct {
	Algorithm      Algorithm
	Mode           Mode
	OccupiedSlots  int
	SlotAlgorithms []Algorithm
}

// Inspect returns a HeaderInfo describing h without exposing any salt,
// nonce, or wrapped-key bytes.
func (h *FileHeader) Inspect() HeaderInfo {
	info := HeaderInfo{Algorithm: h.Algorithm, Mode: h.Mode}
	for _, slot := range h.Keyslots {
		if slot.occupied {
			info.OccupiedSlots++
			info.SlotAlgorithms = append(info.SlotAlgorithms, slot.Algorithm)
		}
	}
	return info
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
