package fscrypt

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReEncryptOptions controls ReEncryptFile's behavior.
type ReEncryptOptions struct {
	DecryptOptions DecryptOptions
	EncryptOptions EncryptOptions

	// Verbose enables progress output via fmt.Printf.
	Verbose bool

	// DryRun decrypts and reports the plaintext size without writing dst.
	DryRun bool
}

// ReEncryptFile decrypts src by trying each password in oldPasswords, in
// order, against its key slots, then re-encrypts the recovered plaintext
// under newPassword and writes it to dst. This is the package's key-rotation
// and cipher-migration primitive: callers that no longer trust a password,
// or that want to move a file from AES-256-GCM to XChaCha20-Poly1305 (or
// vice versa), call this instead of hand-rolling a decrypt/encrypt pair.
//
// oldPasswords lets a migration touch files that were encrypted under any of
// several known passwords without the caller needing to know which one
// applies to which file; ReEncryptFile stops at the first password that
// unwraps successfully. Every password in oldPasswords, and newPassword, is
// wiped before ReEncryptFile returns.
func ReEncryptFile(oldPasswords [][]byte, newPassword []byte, src io.Reader, dst io.Writer, opts ReEncryptOptions) (Manifest, error) {
	defer wipe(newPassword)
	defer func() {
		for _, pw := range oldPasswords {
			wipe(pw)
		}
	}()
	if len(oldPasswords) == 0 {
		return Manifest{}, NewValidationError("oldPasswords", nil, "at least one candidate password is required")
	}

	ciphertext, err := io.ReadAll(src)
	if err != nil {
		return Manifest{}, NewIOError("read", "", err)
	}

	var plain bytes.Buffer
	var lastErr error
	for _, pw := range oldPasswords {
		plain.Reset()
		if err := DecryptFile(pw, bytes.NewReader(ciphertext), &plain, opts.DecryptOptions); err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return Manifest{}, fmt.Errorf("fscrypt: no candidate password unwrapped source: %w", lastErr)
	}
	defer wipe(plain.Bytes())

	if opts.Verbose {
		fmt.Printf("re-encrypting %d bytes\n", plain.Len())
	}

	if opts.DryRun {
		if opts.Verbose {
			fmt.Printf("[DRY RUN] would write %d bytes of ciphertext\n", plain.Len())
		}
		return Manifest{}, nil
	}

	manifest, err := EncryptFile(newPassword, bytes.NewReader(plain.Bytes()), dst, opts.EncryptOptions)
	if err != nil {
		return Manifest{}, fmt.Errorf("fscrypt: failed to re-encrypt: %w", err)
	}
	return manifest, nil
}

// ReEncryptDirectory walks root and calls ReEncryptFile on every regular file
// whose extension, as reported by filepath.Ext, equals suffix (typically the
// package's conventional ciphertext extension, dot included; a multi-dot
// suffix such as ".tar.enc" never matches), writing the result alongside
// the original with newSuffix appended. It returns the count of files successfully rotated and
// every per-file error encountered; a walk error does not stop the whole
// operation, matching filepath.Walk's own continue-past-errors idiom.
func ReEncryptDirectory(root, suffix, newSuffix string, oldPasswords [][]byte, newPassword []byte, opts ReEncryptOptions) (int, []error) {
	var rotated int
	var errs []error

	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("walk error for %s: %w", path, err))
			return nil
		}
		if info.IsDir() || filepath.Ext(path) != suffix {
			return nil
		}

		if err := reEncryptOneFile(path, path+newSuffix, clonePasswords(oldPasswords), cloneBytes(newPassword), opts); err != nil {
			errs = append(errs, fmt.Errorf("failed to re-encrypt %s: %w", path, err))
			return nil
		}
		rotated++
		return nil
	})
	if walkErr != nil {
		errs = append(errs, fmt.Errorf("walk failed: %w", walkErr))
	}

	if opts.Verbose {
		fmt.Printf("re-encrypted %d files, %d errors\n", rotated, len(errs))
	}
	return rotated, errs
}

func reEncryptOneFile(srcPath, dstPath string, oldPasswords [][]byte, newPassword []byte, opts ReEncryptOptions) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return NewIOError("open", srcPath, err)
	}
	defer src.Close()

	if opts.DryRun {
		_, err := ReEncryptFile(oldPasswords, newPassword, src, io.Discard, opts)
		return err
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return NewIOError("create", dstPath, err)
	}
	if _, err := ReEncryptFile(oldPasswords, newPassword, src, dst, opts); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func clonePasswords(pws [][]byte) [][]byte {
	out := make([][]byte, len(pws))
	for i, p := range pws {
		out[i] = cloneBytes(p)
	}
	return out
}

// VerifyFile reports whether path decrypts successfully under password,
// discarding the recovered plaintext. It is a lightweight integrity check
// for a rotation or backup job to run over a tree of ciphertext files
// without materializing any plaintext to disk.
func VerifyFile(password []byte, path string, opts DecryptOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return NewIOError("open", path, err)
	}
	defer f.Close()

	return DecryptFile(password, f, io.Discard, opts)
}

// VerifyDirectory walks root and calls VerifyFile on every file whose
// extension, as reported by filepath.Ext, equals suffix, returning the
// relative paths of files that failed to decrypt.
func VerifyDirectory(root, suffix string, password []byte, opts DecryptOptions) ([]string, error) {
	var failed []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != suffix {
			return nil
		}
		if verr := VerifyFile(cloneBytes(password), path, opts); verr != nil {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			failed = append(failed, rel)
		}
		return nil
	})
	if err != nil {
		return failed, fmt.Errorf("fscrypt: verification walk failed: %w", err)
	}
	return failed, nil
}
