package library

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/scwhite/photosync/internal/config"
	"github.com/scwhite/photosync/internal/errors"
)

// mediaExts are the file extensions the scanner considers photos/videos.
// Matches the original tool's upload filter plus common RAW formats.
var mediaExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".heic": true,
	".heif": true,
	".raw":  true,
	".dng":  true,
	".arw":  true,
	".cr2":  true,
	".nef":  true,
	".mp4":  true,
	".mov":  true,
}

// LocalFile describes one media file found on disk.
type LocalFile struct {
	// Path is the normalized path relative to the photos directory.
	Path string

	// Identity is the duplicate-detection key, deterministic across runs
	// for unchanged content.
	Identity string

	// Size in bytes.
	Size int64

	// ModTime is the filesystem modification time, unix millis.
	ModTime int64

	// TakenAt is the EXIF capture time when decodable, else ModTime.
	// Unix millis.
	TakenAt int64
}

// ScanOptions controls a scan.
type ScanOptions struct {
	// Identity selects the duplicate-detection strategy:
	// config.IdentityContent or config.IdentityPath.
	Identity string

	// Recursive descends into subdirectories when true.
	Recursive bool
}

// Scan enumerates media files under the library root in walk order. The
// root being missing or unreadable is fatal (ErrUnreadableDirectory);
// individual files that cannot be read are logged and skipped.
func Scan(lib *Library, opts ScanOptions, logger *slog.Logger) ([]LocalFile, error) {
	root := lib.Dir()

	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnreadableDirectory, root)
	}

	var files []LocalFile

	err := filepath.WalkDir(root, func(absPath string, d os.DirEntry, err error) error {
		if err != nil {
			if absPath == root {
				return fmt.Errorf("%w: %s", errors.ErrUnreadableDirectory, root)
			}

			logger.Warn("skipping unreadable path during scan",
				slog.String("path", absPath),
				slog.String("error", err.Error()),
			)

			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		relPath, err := filepath.Rel(root, absPath)
		if err != nil {
			return err
		}

		if relPath == "." {
			return nil
		}

		relPath = NormalizePath(filepath.ToSlash(relPath))

		// Skip hidden files/dirs at any level.
		base := filepath.Base(absPath)
		if strings.HasPrefix(base, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			if !opts.Recursive {
				return filepath.SkipDir
			}

			return nil
		}

		// Skip symlinks to prevent following links outside the photos
		// directory or to special files that could hang a read.
		if d.Type()&os.ModeSymlink != 0 {
			logger.Debug("skipping symlink during scan", slog.String("path", relPath))
			return nil
		}

		if !mediaExts[strings.ToLower(filepath.Ext(base))] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("stat failed during scan", slog.String("path", relPath), slog.String("error", err.Error()))
			return nil
		}

		lf := LocalFile{
			Path:    relPath,
			Size:    info.Size(),
			ModTime: info.ModTime().UnixMilli(),
		}

		content, readErr := lib.ReadFile(relPath)

		switch opts.Identity {
		case config.IdentityPath:
			lf.Identity = PathIdentity(relPath, info.Size())
		default:
			if readErr != nil {
				logger.Warn("skipping unreadable file", slog.String("path", relPath), slog.String("error", readErr.Error()))
				return nil
			}

			lf.Identity = ContentIdentity(content)
		}

		lf.TakenAt = lf.ModTime
		if readErr == nil {
			if taken, ok := exifTakenAt(content); ok {
				lf.TakenAt = taken
			}
		}

		files = append(files, lf)

		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("local scan complete",
		slog.String("dir", root),
		slog.Int("files", len(files)),
	)

	return files, nil
}

// ContentIdentity is the rename-robust strategy: sha256 of file content.
func ContentIdentity(content []byte) string {
	h := sha256.Sum256(content)

	return hex.EncodeToString(h[:])
}

// PathIdentity is the cheap strategy: relative path plus size. Stable
// under content edits that keep the size, fragile under renames.
func PathIdentity(relPath string, size int64) string {
	return fmt.Sprintf("%s#%d", relPath, size)
}

// exifTakenAt extracts the EXIF capture time, unix millis.
func exifTakenAt(content []byte) (int64, bool) {
	x, err := exif.Decode(bytes.NewReader(content))
	if err != nil {
		return 0, false
	}

	t, err := x.DateTime()
	if err != nil {
		return 0, false
	}

	return t.UnixMilli(), true
}
