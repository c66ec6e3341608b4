// Package encryption seals database backups before they leave the device.
package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
	"filippo.io/age/armor"

	"trail-go/internal/config"
	"trail-go/internal/trail"
)

var (
	// ErrAlreadyConfigured is returned by Setup when a key pair exists.
	ErrAlreadyConfigured = errors.New("backup keys already exist")
	// ErrWrongPassphrase is returned by Unlock when the passphrase does not
	// open the private key.
	ErrWrongPassphrase = errors.New("wrong passphrase")
)

// AgeEncryptor seals backups to an X25519 recipient. The recipient is kept
// in plaintext so backups run unattended; the identity is stored armored and
// scrypt-wrapped, so restoring needs the passphrase.
type AgeEncryptor struct {
	recipientPath string
	identityPath  string
}

var _ trail.Encryptor = (*AgeEncryptor)(nil)

func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		recipientPath: cfg.PublicKeyPath,
		identityPath:  cfg.PrivateKeyPath,
	}
}

// Setup generates the device key pair. It never overwrites existing keys.
func (e *AgeEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	if e.anyKeyExists() {
		return ErrAlreadyConfigured
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	var sealed bytes.Buffer
	if err := wrapIdentity(&sealed, identity, passphrase); err != nil {
		return err
	}

	if err := writeKeyFile(e.identityPath, sealed.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := writeKeyFile(e.recipientPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		os.Remove(e.identityPath)
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

func wrapIdentity(dst io.Writer, identity *age.X25519Identity, passphrase string) error {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	aw := armor.NewWriter(dst)
	w, err := age.Encrypt(aw, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("sealing private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("sealing private key: %w", err)
	}
	return aw.Close()
}

// writeKeyFile writes through a temp file so a crash never leaves a
// truncated key behind.
func writeKeyFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.recipient()
	if err != nil {
		return err
	}

	ew, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(ew, r); err != nil {
		return fmt.Errorf("encrypting: %w", err)
	}
	if err := ew.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Unlock opens the private key. A passphrase that does not match returns
// ErrWrongPassphrase.
func (e *AgeEncryptor) Unlock(passphrase string) (trail.DecryptionContext, error) {
	f, err := os.Open(e.identityPath)
	if err != nil {
		return nil, fmt.Errorf("opening private key: %w", err)
	}
	defer f.Close()

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	plain, err := age.Decrypt(armor.NewReader(f), scrypt)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, ErrWrongPassphrase
		}
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}

	identities, err := age.ParseIdentities(plain)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("private key file holds no identity")
	}
	return &ageDecryptor{identity: identities[0]}, nil
}

// IsConfigured reports whether both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	return fileExists(e.recipientPath) && fileExists(e.identityPath)
}

func (e *AgeEncryptor) anyKeyExists() bool {
	return fileExists(e.recipientPath) || fileExists(e.identityPath)
}

func (e *AgeEncryptor) recipient() (age.Recipient, error) {
	data, err := os.ReadFile(e.recipientPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	recipients, err := age.ParseRecipients(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("public key file holds no recipient")
	}
	return recipients[0], nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type ageDecryptor struct {
	identity age.Identity
}

func (d *ageDecryptor) Decrypt(r io.Reader, w io.Writer) error {
	plain, err := age.Decrypt(r, d.identity)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	if _, err := io.Copy(w, plain); err != nil {
		return fmt.Errorf("decrypting: %w", err)
	}
	return nil
}
