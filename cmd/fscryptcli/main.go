// Package main provides the command-line entry point for fscrypt.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sd-go/fscrypt"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fscryptcli",
		Short: "fscryptcli - streaming password-based file encryption",
		Long: `fscryptcli encrypts and decrypts files with a password-derived master key,
using the STREAM construction over XChaCha20-Poly1305 or AES-256-GCM.`,
	}

	rootCmd.AddCommand(encryptCmd())
	rootCmd.AddCommand(decryptCmd())
	rootCmd.AddCommand(rotateCmd())
	rootCmd.AddCommand(verifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func encryptCmd() *cobra.Command {
	var (
		cipher     string
		hashAlg    string
		secondPass bool
	)

	cmd := &cobra.Command{
		Use:   "encrypt <input> <output>",
		Short: "Encrypt a file under a password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]

			alg, err := parseAlgorithm(cipher)
			if err != nil {
				return err
			}
			hashingAlg, err := parseHashingAlgorithm(hashAlg)
			if err != nil {
				return err
			}

			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}

			opts := fscrypt.DefaultEncryptOptions()
			opts.Algorithm = alg
			opts.HashingAlgorithm = hashingAlg

			in, err := os.Open(src)
			if err != nil {
				return fmt.Errorf("fscryptcli: %w", err)
			}
			defer in.Close()

			out, err := os.Create(dst)
			if err != nil {
				return fmt.Errorf("fscryptcli: %w", err)
			}
			defer out.Close()

			if secondPass {
				second, err := readPassword("Second password (for a second key slot): ")
				if err != nil {
					return err
				}
				manifest, err := fscrypt.EncryptFileMulti([][]byte{password, second}, in, out, opts)
				if err != nil {
					return fmt.Errorf("fscryptcli: encrypt: %w", err)
				}
				printManifest(manifest)
				return nil
			}

			manifest, err := fscrypt.EncryptFile(password, in, out, opts)
			if err != nil {
				return fmt.Errorf("fscryptcli: encrypt: %w", err)
			}
			printManifest(manifest)
			return nil
		},
	}

	cmd.Flags().StringVar(&cipher, "cipher", "xchacha20poly1305", "AEAD cipher: xchacha20poly1305 or aes-256-gcm")
	cmd.Flags().StringVar(&hashAlg, "kdf", "argon2id", "password hashing algorithm: argon2id or pbkdf2-sha256")
	cmd.Flags().BoolVar(&secondPass, "second-password", false, "also occupy a second key slot with another password")

	return cmd
}

func decryptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrypt <input> <output>",
		Short: "Decrypt a file previously produced by encrypt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]

			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}

			in, err := os.Open(src)
			if err != nil {
				return fmt.Errorf("fscryptcli: %w", err)
			}
			defer in.Close()

			out, err := os.Create(dst)
			if err != nil {
				return fmt.Errorf("fscryptcli: %w", err)
			}
			defer out.Close()

			if err := fscrypt.DecryptFile(password, in, out, fscrypt.DecryptOptions{}); err != nil {
				return fmt.Errorf("fscryptcli: decrypt: %w", err)
			}
			fmt.Println("decrypted successfully")
			return nil
		},
	}

	return cmd
}

func rotateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "rotate <input> <output>",
		Short: "Re-encrypt a file under a new password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]

			oldPassword, err := readPassword("Current password: ")
			if err != nil {
				return err
			}
			newPassword, err := readPassword("New password: ")
			if err != nil {
				return err
			}

			in, err := os.Open(src)
			if err != nil {
				return fmt.Errorf("fscryptcli: %w", err)
			}
			defer in.Close()

			out, err := os.Create(dst)
			if err != nil {
				return fmt.Errorf("fscryptcli: %w", err)
			}
			defer out.Close()

			opts := fscrypt.ReEncryptOptions{
				EncryptOptions: fscrypt.DefaultEncryptOptions(),
				DryRun:         dryRun,
			}

			manifest, err := fscrypt.ReEncryptFile([][]byte{oldPassword}, newPassword, in, out, opts)
			if err != nil {
				return fmt.Errorf("fscryptcli: rotate: %w", err)
			}
			if dryRun {
				fmt.Println("dry run: current password verified, output not written")
				return nil
			}
			printManifest(manifest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "verify the current password without writing output")

	return cmd
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <input>",
		Short: "Check that a file decrypts cleanly under a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			if err := fscrypt.VerifyFile(password, args[0], fscrypt.DecryptOptions{}); err != nil {
				return fmt.Errorf("fscryptcli: verify failed: %w", err)
			}
			fmt.Println("ok")
			return nil
		},
	}

	return cmd
}

func printManifest(m fscrypt.Manifest) {
	fmt.Printf("session: %s\n", m.SessionID)
	fmt.Printf("algorithm: %s\n", m.Header.Algorithm)
	fmt.Printf("key slots occupied: %d\n", m.Header.OccupiedSlots)
}

func parseAlgorithm(s string) (fscrypt.Algorithm, error) {
	switch s {
	case "xchacha20poly1305":
		return fscrypt.AlgorithmXChaCha20Poly1305, nil
	case "aes-256-gcm":
		return fscrypt.AlgorithmAES256GCM, nil
	default:
		return 0, fmt.Errorf("fscryptcli: unknown cipher %q", s)
	}
}

func parseHashingAlgorithm(s string) (fscrypt.HashingAlgorithm, error) {
	switch s {
	case "argon2id":
		return fscrypt.HashingAlgorithmArgon2id, nil
	case "pbkdf2-sha256":
		return fscrypt.HashingAlgorithmPBKDF2SHA256, nil
	default:
		return 0, fmt.Errorf("fscryptcli: unknown hashing algorithm %q", s)
	}
}

// readPassword prompts on stderr and reads a password from the terminal
// without echoing it. Falls back to an error if stdin is not a terminal,
// since a silently empty password would be worse than failing loudly.
func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("fscryptcli: stdin is not a terminal; cannot prompt for a password")
	}
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("fscryptcli: failed to read password: %w", err)
	}
	return password, nil
}
