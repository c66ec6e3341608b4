package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trail-go/internal/compress"
	"trail-go/internal/config"
	"trail-go/internal/database"
	"trail-go/internal/encryption"
	"trail-go/internal/label"
	"trail-go/internal/metrics"
	"trail-go/internal/objectstore"
	"trail-go/internal/remote"
	"trail-go/internal/trail"
)

// App is the application layer between the CLI and trail.Service.
// It constructs all dependencies from config and owns their lifecycle.
type App struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	objects   trail.ObjectStore
	remote    trail.RemoteStore
	encryptor trail.Encryptor
	service   *trail.Service
	backup    *trail.BackupService
	registry  *prometheus.Registry
	logger    trail.Logger
	clock     trail.Clock
	logFile   *os.File
}

// Options tune how an App is built. The zero value is what the CLI uses.
type Options struct {
	// Stderr receives warnings and errors. Defaults to os.Stderr.
	Stderr io.Writer
	// Clock defaults to trail.RealClock.
	Clock trail.Clock
	// IDs generates remote ids for the in-memory backend. Defaults to UUIDs.
	IDs trail.IDGenerator
}

// New creates a fully wired App. command names the CLI command for the log.
// The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, command string, opts Options) (*App, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = trail.RealClock{}
	}
	if opts.IDs == nil {
		opts.IDs = trail.UUIDGenerator{}
	}

	runID := command + "@" + opts.Clock.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, runID, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &App{cfg: cfg, logger: logger, clock: opts.Clock, logFile: logFile}

	a.db, err = database.NewDatabaseFromConfig(cfg.Database, cfg.DeviceID)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	a.objects, err = objectstore.NewObjectStoreFromConfig(ctx, cfg.ObjectStore)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating object store: %w", err)
	}

	a.remote, err = remote.NewRemoteFromConfig(cfg.Remote, opts.IDs)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating remote: %w", err)
	}

	a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	var m trail.Metrics = trail.NewNopMetrics()
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		m = metrics.NewSyncMetrics(a.registry, cfg.Metrics.Namespace)
	}

	labeler := label.NewFromConfig(cfg.Label.CacheSizeBytes, cfg.Label.TTLSeconds)
	engine := trail.NewSyncEngine(a.db, a.objects, a.remote, labeler, m, logger, a.clock)
	queue := trail.NewQueue(a.db, engine, m, logger)
	a.service = trail.NewService(a.db, engine, queue, logger, a.clock)
	a.backup = trail.NewBackupService(a.db, a.objects, a.encryptor, compress.NewZstd(), cfg.DeviceID, logger)

	logger.Debug("app ready", "device_id", cfg.DeviceID, "db", a.db.Path())
	return a, nil
}

// Service exposes the session service for read-only commands.
func (a *App) Service() *trail.Service {
	return a.service
}

// SourceOptions returns the sampling thresholds from config.
func (a *App) SourceOptions() trail.SourceOptions {
	return trail.SourceOptions{
		MinInterval:       time.Duration(a.cfg.Recording.MinIntervalMillis) * time.Millisecond,
		MinDistanceMeters: a.cfg.Recording.MinDistanceMeters,
	}
}

// SetupKeys generates the backup key pair.
func (a *App) SetupKeys(passphrase string) error {
	return a.encryptor.Setup(passphrase)
}

// Backup uploads an encrypted snapshot of the local database.
func (a *App) Backup(ctx context.Context) (string, error) {
	if !a.encryptor.IsConfigured() {
		return "", fmt.Errorf("backup keys not set up: run 'trail db keys' first")
	}
	return a.backup.Backup(ctx)
}

// Restore downloads the backup into destPath.
func (a *App) Restore(ctx context.Context, passphrase, destPath string) error {
	return a.backup.Restore(ctx, passphrase, destPath)
}

// ValidateStorage checks that the object store is reachable and writable.
func (a *App) ValidateStorage(ctx context.Context) error {
	return a.objects.ValidateSetup(ctx)
}

// Close releases every resource New acquired. Metrics are flushed to the
// configured textfile first.
func (a *App) Close() error {
	var errs []error

	if a.registry != nil && a.cfg.Metrics.TextfilePath != "" {
		if err := prometheus.WriteToTextfile(a.cfg.Metrics.TextfilePath, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics: %w", err))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}
