package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"trail-go/internal/hub"
)

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

func main() {
	configPath := flag.String("config", os.Getenv("TRAILHUB_CONFIG"), "optional config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := realMain(*configPath, logger); err != nil {
		logger.Error("trailhub exited", "error", err)
		os.Exit(1)
	}
}

func realMain(configPath string, logger *slog.Logger) error {
	cfg, err := hub.Load(configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := hub.ConnectPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	if err := hub.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	if cfg.APIKey == "" {
		logger.Warn("TRAILHUB_API_KEY is empty; write endpoints are unauthenticated")
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	srv := hub.NewServer(cfg, hub.NewStore(pool, nil))
	logger.Info("listening", "addr", cfg.ListenAddr)
	return Run(ctx, srv, signals, nil)
}

// Run serves until a signal arrives, ctx ends, or the listener fails.
func Run(ctx context.Context, srv *hub.Server, signals <-chan os.Signal, listen ListenFunc) error {
	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, srv.Cfg.ListenAddr)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
		return errors.New("listener stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.App.ShutdownWithContext(shutdownCtx)
}
