package trail

import "io"

// Encryptor protects database backups. Encryption uses the public key only;
// decryption requires unlocking the private key with a passphrase.
type Encryptor interface {
	// Setup generates a key pair. The private key is stored encrypted with passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock returns a DecryptionContext, or an error if the passphrase is wrong.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// Compressor compresses backup streams.
type Compressor interface {
	Compress(r io.Reader, w io.Writer) error
	Decompress(r io.Reader, w io.Writer) error
}
