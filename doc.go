// Package fscrypt provides password-based, authenticated at-rest encryption
// for streams of arbitrary size, built on a fixed binary header and a
// STREAM-style block cipher construction.
//
// # Overview
//
// fscrypt reads plaintext from an io.Reader and writes a self-describing
// ciphertext to an io.Writer: a fixed 228-byte header carrying one or more
// key slots, followed by the body encrypted one fixed-size block at a time.
// Decryption reverses the process: the header is parsed, the password is
// tried against each occupied key slot until one unwraps, and the body is
// streamed back out in plaintext.
//
// # Supported Algorithms
//
//   - XChaCha20-Poly1305: 24-byte extended nonce, safe to use with randomly
//     generated nonces at high volume
//   - AES-256-GCM: 12-byte nonce, hardware-accelerated on platforms with
//     AES-NI
//
// Both provide authenticated encryption with a 16-byte tag per block; any
// bit flipped in the ciphertext or header is detected, and a block's
// plaintext is written only after that block has authenticated. Blocks
// that authenticated before a tampered one have already been written to
// the destination when decryption fails.
//
// # Basic Usage
//
//	src, _ := os.Open("report.csv")
//	dst, _ := os.Create("report.csv.enc")
//	defer src.Close()
//	defer dst.Close()
//
//	manifest, err := fscrypt.EncryptFile(
//	    []byte("my-secure-password"),
//	    src, dst,
//	    fscrypt.DefaultEncryptOptions(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Decrypting is symmetric:
//
//	err := fscrypt.DecryptFile(
//	    []byte("my-secure-password"),
//	    src, dst,
//	    fscrypt.DecryptOptions{},
//	)
//
// EncryptFiles and DecryptFiles extend this to a worker pool over
// independent files; a single file's encryption is always synchronous and
// single-threaded.
//
// # Security Considerations
//
// Protected against:
//   - Unauthorized access to ciphertext at rest
//   - Tampering and corruption (authenticated encryption, per block)
//   - Offline brute-force attacks on the password (Argon2id/PBKDF2 key
//     stretching)
//
// Not protected against:
//   - Memory dumps while plaintext is resident
//   - Side-channel attacks (timing, cache)
//   - Metadata leakage (ciphertext length reveals plaintext length)
//   - Loss of all passwords wrapping the master key
//
// # Key Derivation
//
// Two key derivation functions wrap the random master key under a password:
//
// Argon2id (default): memory-hard, resistant to GPU/ASIC brute force,
// configurable memory/iterations/parallelism.
//
// PBKDF2-SHA256: widely supported, CPU-intensive only; kept for
// interoperability with callers that require FIPS-approved primitives.
//
// # File Format
//
// See FileHeader and FileKeyslot for the exact 228-byte header and 96-byte
// key-slot layout. HeaderInfo/Inspect let a caller summarize a header
// without attempting key recovery.
package fscrypt
