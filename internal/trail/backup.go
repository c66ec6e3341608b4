package trail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

const backupContentType = "application/octet-stream"

// BackupKey is the object key of a device's database backup.
func BackupKey(deviceID string) string {
	return path.Join("backups", deviceID, "trail.db.zst.age")
}

// BackupService copies the local database to the object store, compressed
// and encrypted, and restores it again.
type BackupService struct {
	store      LocalStore
	objects    ObjectStore
	encryptor  Encryptor
	compressor Compressor
	deviceID   string
	logger     Logger
}

func NewBackupService(store LocalStore, objects ObjectStore, encryptor Encryptor, compressor Compressor, deviceID string, logger Logger) *BackupService {
	return &BackupService{
		store:      store,
		objects:    objects,
		encryptor:  encryptor,
		compressor: compressor,
		deviceID:   deviceID,
		logger:     logger,
	}
}

// Backup snapshots the database and uploads it. Only the public key is
// needed. Returns the object key written.
func (b *BackupService) Backup(ctx context.Context) (string, error) {
	tmpDir, err := os.MkdirTemp("", "trail-db-backup-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir for db backup: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "trail.db")
	if err := b.store.BackupTo(ctx, dbPath); err != nil {
		return "", fmt.Errorf("backing up database: %w", err)
	}

	encPath := filepath.Join(tmpDir, "trail.db.zst.age")
	if err := b.seal(dbPath, encPath); err != nil {
		return "", err
	}

	f, err := os.Open(encPath)
	if err != nil {
		return "", fmt.Errorf("opening sealed backup: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat sealed backup: %w", err)
	}

	key := BackupKey(b.deviceID)
	if err := b.objects.Put(ctx, key, f, info.Size(), backupContentType); err != nil {
		return "", fmt.Errorf("uploading backup: %w", err)
	}

	b.logger.Info("database backed up", "key", key, "size", info.Size())
	return key, nil
}

// seal compresses then encrypts src into dst.
func (b *BackupService) seal(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening database snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating sealed backup: %w", err)
	}

	if err := pipeThrough(in, out, b.compressor.Compress, b.encryptor.Encrypt); err != nil {
		out.Close()
		return fmt.Errorf("sealing backup: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing sealed backup: %w", err)
	}
	return nil
}

// Restore downloads this device's backup and writes the plain database to
// destPath. destPath must not exist.
func (b *BackupService) Restore(ctx context.Context, passphrase string, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("restore destination already exists: %s", destPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking restore destination: %w", err)
	}

	dc, err := b.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}

	sealed, err := os.CreateTemp("", "trail-db-restore-*.age")
	if err != nil {
		return fmt.Errorf("creating temp file for restore: %w", err)
	}
	defer os.Remove(sealed.Name())
	defer sealed.Close()

	key := BackupKey(b.deviceID)
	if err := b.objects.Get(ctx, key, sealed); err != nil {
		return fmt.Errorf("downloading backup %s: %w", key, err)
	}
	if _, err := sealed.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding backup: %w", err)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating restore output: %w", err)
	}
	if err := pipeThrough(sealed, out, dc.Decrypt, b.compressor.Decompress); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("opening backup: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing restore output: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving restored database into place: %w", err)
	}

	b.logger.Info("database restored", "key", key, "dest", destPath)
	return nil
}

// pipeThrough streams src through first and then second into dst.
func pipeThrough(src io.Reader, dst io.Writer, first, second func(io.Reader, io.Writer) error) error {
	pr, pw := io.Pipe()
	errc := make(chan error, 1)
	go func() {
		err := first(src, pw)
		pw.CloseWithError(err)
		errc <- err
	}()

	err := second(pr, dst)
	pr.CloseWithError(err)
	firstErr := <-errc
	if err != nil {
		return err
	}
	return firstErr
}
