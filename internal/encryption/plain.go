package encryption

import (
	"bytes"
	"fmt"
	"io"

	"trail-go/internal/trail"
)

// plainMagic marks output of PlainEncryptor so tests can tell sealed bytes
// from raw ones.
var plainMagic = []byte("TRAILSEAL1")

// PlainEncryptor frames data with a marker and no cryptography. It accepts
// any passphrase and is meant for tests and the "test" config type.
type PlainEncryptor struct{}

var _ trail.Encryptor = PlainEncryptor{}

func NewPlainEncryptor() PlainEncryptor { return PlainEncryptor{} }

func (PlainEncryptor) Setup(string) error { return nil }
func (PlainEncryptor) IsConfigured() bool { return true }

func (PlainEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(plainMagic); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	_, err := io.Copy(w, r)
	return err
}

func (PlainEncryptor) Unlock(string) (trail.DecryptionContext, error) {
	return plainDecryptor{}, nil
}

type plainDecryptor struct{}

func (plainDecryptor) Decrypt(r io.Reader, w io.Writer) error {
	head := make([]byte, len(plainMagic))
	if _, err := io.ReadFull(r, head); err != nil {
		return fmt.Errorf("reading marker: %w", err)
	}
	if !bytes.Equal(head, plainMagic) {
		return fmt.Errorf("input is not sealed by PlainEncryptor")
	}
	_, err := io.Copy(w, r)
	return err
}
