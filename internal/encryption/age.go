package encryption

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"github.com/igoyetche/plex-update-script/internal/config"
)

// AgeEncryptor implements Encryptor using age X25519 keys. The private
// key file is itself age-encrypted with a passphrase (scrypt), so a
// stolen key file is useless without the passphrase.
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string
}

var _ Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates an AgeEncryptor from the encryption config.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates a new X25519 key pair. The public key is written in
// the clear; the private key is encrypted with the passphrase before it
// touches disk. Fails if either key file already exists.
func (e *AgeEncryptor) Setup(passphrase string) error {
	if e.IsConfigured() {
		return fmt.Errorf("key files already exist at %s", filepath.Dir(e.privateKeyPath))
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("failed to generate identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(e.publicKeyPath), 0755); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(e.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	scryptRecipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("failed to create scrypt recipient: %w", err)
	}

	f, err := os.OpenFile(e.privateKeyPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create private key file: %w", err)
	}
	defer f.Close()

	w, err := age.Encrypt(f, scryptRecipient)
	if err != nil {
		return fmt.Errorf("failed to encrypt private key: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize private key: %w", err)
	}
	return nil
}

// Encrypt encrypts r to w using the public key. Does not require the
// passphrase.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	data, err := os.ReadFile(e.publicKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}
	recipient, err := age.ParseX25519Recipient(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("failed to parse public key: %w", err)
	}

	ew, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("failed to start encryption: %w", err)
	}
	if _, err := io.Copy(ew, r); err != nil {
		return fmt.Errorf("failed to encrypt data: %w", err)
	}
	if err := ew.Close(); err != nil {
		return fmt.Errorf("failed to finalize encryption: %w", err)
	}
	return nil
}

// Unlock decrypts the private key file with the passphrase and returns
// a DecryptionContext holding the parsed identity.
func (e *AgeEncryptor) Unlock(passphrase string) (DecryptionContext, error) {
	f, err := os.Open(e.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open private key: %w", err)
	}
	defer f.Close()

	scryptIdentity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create scrypt identity: %w", err)
	}

	dr, err := age.Decrypt(f, scryptIdentity)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock private key: %w", err)
	}
	keyData, err := io.ReadAll(dr)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(keyData)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &ageDecryptionContext{identity: identity}, nil
}

// IsConfigured returns true if both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	if _, err := os.Stat(e.publicKeyPath); err != nil {
		return false
	}
	if _, err := os.Stat(e.privateKeyPath); err != nil {
		return false
	}
	return true
}

type ageDecryptionContext struct {
	identity *age.X25519Identity
}

func (c *ageDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	dr, err := age.Decrypt(r, c.identity)
	if err != nil {
		return fmt.Errorf("failed to start decryption: %w", err)
	}
	if _, err := io.Copy(w, dr); err != nil {
		return fmt.Errorf("failed to decrypt data: %w", err)
	}
	return nil
}
