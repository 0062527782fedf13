package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/scwhite/photosync/internal/config"
	"github.com/scwhite/photosync/internal/ledger"
	"github.com/scwhite/photosync/internal/library"
	"github.com/scwhite/photosync/internal/logging"
	"github.com/scwhite/photosync/internal/photos"
	"github.com/scwhite/photosync/internal/syncer"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run executes one full sync pass: scan, select, plan, apply. Per-item
// transfer failures are reported in the summary and do not fail the
// process; only process-level conditions (bad config, unreadable photos
// directory, ledger lock/persistence failures) return an error here.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("photosync starting",
		slog.String("version", Version),
		slog.String("photos_dir", cfg.PhotosDir),
		slog.Int("days", cfg.Days),
		slog.Int("albums", len(cfg.Albums)),
		slog.Bool("favorites", cfg.IncludeFavorites),
		slog.String("identity", cfg.Identity),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	led, err := ledger.Open(cfg.LedgerPath, logger)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer led.Close()

	httpClient := photos.NewSessionClient(ctx, photos.SessionConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: cfg.RefreshToken,
	}, led, logger)

	client := photos.NewClient(httpClient)

	lib := library.New(cfg.PhotosDir)

	locals, err := library.Scan(lib, library.ScanOptions{
		Identity:  cfg.Identity,
		Recursive: cfg.Recursive,
	}, logger)
	if err != nil {
		return fmt.Errorf("scanning local files: %w", err)
	}

	selector := photos.NewSelector(client, logger)

	remotes, err := selector.Select(ctx, photos.Selection{
		Days:             cfg.Days,
		Albums:           cfg.Albums,
		IncludeFavorites: cfg.IncludeFavorites,
	})
	if err != nil {
		return fmt.Errorf("selecting remote items: %w", err)
	}

	s := syncer.New(lib, led, client, cfg.Identity, selector.AlbumIDs(), logger)

	summary, err := s.Run(ctx, locals, remotes)
	if err != nil {
		return fmt.Errorf("sync run failed: %w", err)
	}

	logger.Info("all sync operations complete",
		slog.Int("uploads_planned", summary.UploadsPlanned),
		slog.Int("uploaded", summary.Uploaded),
		slog.Int("downloads_planned", summary.DownloadsPlanned),
		slog.Int("downloaded", summary.Downloaded),
		slog.Int("adopted", summary.Adopted),
		slog.Int("failed", summary.Failed),
	)

	return nil
}
