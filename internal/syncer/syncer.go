package syncer

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/scwhite/photosync/internal/config"
	"github.com/scwhite/photosync/internal/errors"
	"github.com/scwhite/photosync/internal/ledger"
	"github.com/scwhite/photosync/internal/library"
	"github.com/scwhite/photosync/internal/photos"
)

// Remote is the slice of the API client the syncer needs to move bytes.
type Remote interface {
	Upload(ctx context.Context, filename string, content []byte) (string, error)
	Download(ctx context.Context, item photos.MediaItem) ([]byte, error)
	AddToAlbum(ctx context.Context, albumID, mediaID string) error
}

// Summary reports what one run did. Per-item failures are counted here and
// logged individually; they do not fail the process.
type Summary struct {
	UploadsPlanned   int
	Uploaded         int
	DownloadsPlanned int
	Downloaded       int
	Adopted          int
	Failed           int

	BytesUploaded   uint64
	BytesDownloaded uint64
}

// Syncer applies a reconciliation plan: one blocking transfer at a time,
// in plan order, recording each success in the ledger immediately.
type Syncer struct {
	lib      *library.Library
	led      *ledger.Ledger
	remote   Remote
	identity string
	albumIDs map[string]string
	logger   *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// New creates a syncer. albumIDs maps configured album titles to remote
// album IDs (resolved during selection); uploads from a matching subfolder
// are added to that album after creation.
func New(lib *library.Library, led *ledger.Ledger, remote Remote, identity string, albumIDs map[string]string, logger *slog.Logger) *Syncer {
	return &Syncer{
		lib:      lib,
		led:      led,
		remote:   remote,
		identity: identity,
		albumIDs: albumIDs,
		logger:   logger,
		now:      time.Now,
	}
}

// Run plans against the current ledger and applies every task: uploads
// first, then downloads. A failed task leaves its ledger entry untouched
// (eligible for retry next run) and does not stop the remaining tasks.
// Only persistence failures abort the run.
func (s *Syncer) Run(ctx context.Context, locals []library.LocalFile, remotes []photos.RemoteItem) (*Summary, error) {
	entries, err := s.led.All()
	if err != nil {
		return nil, fmt.Errorf("loading ledger entries: %w", err)
	}

	recorded, err := s.led.RemoteIDs()
	if err != nil {
		return nil, fmt.Errorf("loading ledger remote index: %w", err)
	}

	plan := BuildPlan(entries, recorded, locals, remotes)

	s.logger.Info("reconciliation plan ready",
		slog.Int("uploads", len(plan.Uploads)),
		slog.Int("downloads", len(plan.Downloads)),
		slog.Int("local_files", len(locals)),
		slog.Int("remote_items", len(remotes)),
	)

	summary := &Summary{
		UploadsPlanned:   len(plan.Uploads),
		DownloadsPlanned: len(plan.Downloads),
	}

	for _, task := range plan.Uploads {
		if err := s.applyUpload(ctx, task, summary); err != nil {
			if stderrors.Is(err, errors.ErrPersistence) {
				return summary, err
			}

			summary.Failed++
			s.logger.Warn("upload failed",
				slog.String("path", task.File.Path),
				slog.String("error", err.Error()),
			)
		}
	}

	for _, task := range plan.Downloads {
		if err := s.applyDownload(ctx, task, summary); err != nil {
			if stderrors.Is(err, errors.ErrPersistence) {
				return summary, err
			}

			summary.Failed++
			s.logger.Warn("download failed",
				slog.String("remote_id", task.Item.ID),
				slog.String("path", task.TargetPath),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("run complete",
		slog.Int("uploaded", summary.Uploaded),
		slog.Int("downloaded", summary.Downloaded),
		slog.Int("adopted", summary.Adopted),
		slog.Int("failed", summary.Failed),
		slog.String("bytes_up", humanize.Bytes(summary.BytesUploaded)),
		slog.String("bytes_down", humanize.Bytes(summary.BytesDownloaded)),
	)

	return summary, nil
}

// applyUpload performs one local-to-remote transfer and records it.
func (s *Syncer) applyUpload(ctx context.Context, task UploadTask, summary *Summary) error {
	content, err := s.lib.ReadFile(task.File.Path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", task.File.Path, err)
	}

	remoteID, err := s.remote.Upload(ctx, path.Base(task.File.Path), content)
	if err != nil {
		return err
	}

	// A file sitting in a configured album's folder joins that album,
	// mirroring how downloads place album members into subfolders.
	if albumID, ok := s.albumIDs[path.Dir(task.File.Path)]; ok {
		if err := s.remote.AddToAlbum(ctx, albumID, remoteID); err != nil {
			s.logger.Warn("failed to add upload to album",
				slog.String("path", task.File.Path),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.led.Put(ledger.Entry{
		Identity:     task.File.Identity,
		LocalPath:    task.File.Path,
		RemoteID:     remoteID,
		TakenAt:      task.File.TakenAt,
		LastSyncedAt: s.now().UnixMilli(),
	}); err != nil {
		return err
	}

	summary.Uploaded++
	summary.BytesUploaded += uint64(len(content))

	s.logger.Info("uploaded",
		slog.String("path", task.File.Path),
		slog.String("remote_id", remoteID),
		slog.String("size", humanize.Bytes(uint64(len(content)))),
	)

	return nil
}

// applyDownload performs one remote-to-local transfer (or adoption) and
// records it.
func (s *Syncer) applyDownload(ctx context.Context, task DownloadTask, summary *Summary) error {
	takenAt := task.Item.CreationTime()

	var takenAtMillis int64
	if !takenAt.IsZero() {
		takenAtMillis = takenAt.UnixMilli()
	}

	if task.Adopt {
		if err := s.led.Put(ledger.Entry{
			Identity:     task.AdoptIdentity,
			LocalPath:    task.TargetPath,
			RemoteID:     task.Item.ID,
			TakenAt:      takenAtMillis,
			LastSyncedAt: s.now().UnixMilli(),
		}); err != nil {
			return err
		}

		summary.Adopted++

		// Pairing is by filename only; the API exposes no content
		// checksums, so the bytes were not compared.
		s.logger.Info("adopted existing file without verifying content",
			slog.String("path", task.TargetPath),
			slog.String("remote_id", task.Item.ID),
		)

		return nil
	}

	content, err := s.remote.Download(ctx, task.Item.MediaItem)
	if err != nil {
		return err
	}

	// Planning checked collisions against the scan, but files the scanner
	// skipped (hidden, non-media, subfolders under a non-recursive scan)
	// may still occupy the target. Never overwrite an existing file.
	target := s.lib.UniquePath(task.TargetPath)
	if target != task.TargetPath {
		s.logger.Warn("download target already on disk, using suffixed name",
			slog.String("planned", task.TargetPath),
			slog.String("path", target),
		)
	}

	if err := s.lib.WriteFile(target, content, takenAt); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}

	identity := library.ContentIdentity(content)
	if s.identity == config.IdentityPath {
		identity = library.PathIdentity(target, int64(len(content)))
	}

	if err := s.led.Put(ledger.Entry{
		Identity:     identity,
		LocalPath:    target,
		RemoteID:     task.Item.ID,
		TakenAt:      takenAtMillis,
		LastSyncedAt: s.now().UnixMilli(),
	}); err != nil {
		return err
	}

	summary.Downloaded++
	summary.BytesDownloaded += uint64(len(content))

	s.logger.Info("downloaded",
		slog.String("path", target),
		slog.String("remote_id", task.Item.ID),
		slog.String("size", humanize.Bytes(uint64(len(content)))),
	)

	return nil
}
