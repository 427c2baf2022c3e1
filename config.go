package fscrypt

// EncryptOptions controls how EncryptFile produces a new ciphertext file.
type EncryptOptions struct {
	// Algorithm selects the AEAD cipher used for both the body stream and
	// the key slot. Defaults to AlgorithmXChaCha20Poly1305 when zero.
	Algorithm Algorithm

	// HashingAlgorithm selects the password-hashing scheme used to wrap
	// the master key. Defaults to HashingAlgorithmArgon2id when zero.
	HashingAlgorithm HashingAlgorithm

	// Argon2idParams overrides the default Argon2id cost parameters.
	Argon2idParams Argon2idParams

	// PBKDF2Params overrides the default PBKDF2 cost parameters, used
	// only when HashingAlgorithm is HashingAlgorithmPBKDF2SHA256.
	PBKDF2Params PBKDF2Params

	// Size is the exact plaintext size in bytes. Required when src does
	// not implement io.Seeker; ignored otherwise, where it is derived via
	// Seek(0, io.SeekEnd).
	Size int64
}

// Validate reports whether o describes a supported configuration.
func (o *EncryptOptions) Validate() error {
	if o == nil {
		return NewValidationError("options", nil, "options cannot be nil")
	}
	if _, err := KeyLen(o.Algorithm); err != nil {
		return NewValidationError("algorithm", o.Algorithm, "unsupported algorithm")
	}
	switch o.HashingAlgorithm {
	case HashingAlgorithmArgon2id, HashingAlgorithmPBKDF2SHA256:
	default:
		return NewValidationError("hashingAlgorithm", o.HashingAlgorithm, "unsupported hashing algorithm")
	}
	if err := o.Argon2idParams.Validate(); err != nil {
		return err
	}
	if err := o.PBKDF2Params.Validate(); err != nil {
		return err
	}
	return nil
}

// withDefaults returns a copy of o with zero-valued fields replaced by the
// package defaults.
func (o EncryptOptions) withDefaults() EncryptOptions {
	o.Argon2idParams = o.Argon2idParams.withDefaults()
	o.PBKDF2Params = o.PBKDF2Params.withDefaults()
	return o
}

// DefaultEncryptOptions returns the recommended default configuration:
// XChaCha20-Poly1305 with Argon2id at the default cost parameters.
func DefaultEncryptOptions() EncryptOptions {
	return EncryptOptions{
		Algorithm:        AlgorithmXChaCha20Poly1305,
		HashingAlgorithm: HashingAlgorithmArgon2id,
		Argon2idParams:   DefaultArgon2idParams(),
		PBKDF2Params:     DefaultPBKDF2Params(),
	}
}
