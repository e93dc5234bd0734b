package encryption

import (
	"bytes"
	"fmt"
	"io"
)

const testHeader = "TESTENC:"

// TestEncryptor is a fake Encryptor for tests. "Encryption" prepends a
// marker header so tests can tell ciphertext from plaintext without
// real key material.
type TestEncryptor struct {
	configured bool
}

var _ Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.configured = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.WriteString(w, testHeader); err != nil {
		return err
	}
	_, err := io.Copy(w, r)
	return err
}

func (e *TestEncryptor) Unlock(passphrase string) (DecryptionContext, error) {
	return &testDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return e.configured
}

type testDecryptionContext struct{}

func (c *testDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if !bytes.Equal(header, []byte(testHeader)) {
		return fmt.Errorf("not an encrypted stream")
	}
	_, err := io.Copy(w, r)
	return err
}
