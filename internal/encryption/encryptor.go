// Package encryption provides optional at-rest encryption for archives
// replicated to a vault. Local backups stay plaintext so the rollback
// path never depends on key material.
package encryption

import "io"

// Encryptor handles encryption of replicated archives and unlocking for
// retrieval. Encryption uses the public key only; decryption requires a
// passphrase to unlock the private key, producing a DecryptionContext
// for the session.
type Encryptor interface {
	// Setup performs one-time key generation. Called during
	// `plexupd config init` when encryption is enabled.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase and returns a
	// DecryptionContext for the duration of the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the
// duration of a fetch session. The unlocked key is never written to
// disk.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
