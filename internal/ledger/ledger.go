package ledger

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	bolt "go.etcd.io/bbolt"

	"github.com/scwhite/photosync/internal/errors"
)

const (
	// ledgerDirPerm is the permission mode for the ledger directory (~/.photosync/).
	ledgerDirPerm = fs.FileMode(0o700)

	// ledgerFilePerm is the permission mode for the ledger database file.
	ledgerFilePerm = fs.FileMode(0o600)

	// ledgerOpenTimeout is the maximum time to wait for the bolt database lock.
	ledgerOpenTimeout = 5 * time.Second
)

var (
	entriesBucket     = []byte("entries")
	remoteIndexBucket = []byte("remote_index")
	appBucket         = []byte("app")
	tokenKey          = []byte("token")
)

// Entry records one local-file/remote-item pairing. At least one of
// LocalPath/RemoteID is populated; a fully-synced entry has both.
// Entries are never deleted automatically: stale entries for files or
// items that no longer exist simply persist.
type Entry struct {
	// Identity is the duplicate-detection key for the local file
	// (content hash or path#size, depending on the configured strategy).
	Identity string `json:"identity"`

	// LocalPath is the path relative to the photos directory.
	LocalPath string `json:"localPath,omitempty"`

	// RemoteID is the remote media item ID.
	RemoteID string `json:"remoteId,omitempty"`

	// TakenAt is the capture time (EXIF or remote creation time), unix millis.
	TakenAt int64 `json:"takenAt,omitempty"`

	// LastSyncedAt is when this pairing was last confirmed, unix millis.
	LastSyncedAt int64 `json:"lastSyncedAt"`
}

// Ledger wraps a bbolt database holding the sync ledger. A flock advisory
// lock beside the database file keeps overlapping runs from racing on it.
type Ledger struct {
	db   *bolt.DB
	lock *flock.Flock
}

// Open opens the ledger at the given path, creating it if it does not
// exist. A corrupt database file is moved aside and replaced with a fresh
// empty ledger (with a warning) rather than failing the run. Returns
// errors.ErrLedgerLocked if another run holds the advisory lock.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), ledgerDirPerm); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	lock := flock.New(path + ".lock")

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring ledger lock: %w", err)
	}

	if !locked {
		return nil, errors.ErrLedgerLocked
	}

	db, err := openDB(path)
	if err != nil {
		// Unreadable/malformed ledger: recover by starting empty. The
		// old file is kept under a .corrupt suffix for inspection.
		logger.Warn("ledger unreadable, starting from empty ledger",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		if renameErr := os.Rename(path, path+".corrupt"); renameErr != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("%w: moving corrupt ledger aside: %w", errors.ErrCorruptLedger, renameErr)
		}

		db, err = openDB(path)
		if err != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("%w: recreating ledger: %w", errors.ErrCorruptLedger, err)
		}
	}

	return &Ledger{db: db, lock: lock}, nil
}

func openDB(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, ledgerFilePerm, &bolt.Options{Timeout: ledgerOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(entriesBucket); err != nil {
			return err
		}

		if _, err := tx.CreateBucketIfNotExists(remoteIndexBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(appBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing ledger db: %w", err)
	}

	return db, nil
}

// Close closes the database and releases the advisory lock.
func (l *Ledger) Close() error {
	err := l.db.Close()

	if unlockErr := l.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}

	return err
}

// Get returns the entry for an identity key, or nil if not found.
func (l *Ledger) Get(identity string) (*Entry, error) {
	var e *Entry

	err := l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(entriesBucket).Get([]byte(identity))
		if v == nil {
			return nil
		}

		e = &Entry{}

		return json.Unmarshal(v, e)
	})

	return e, err
}

// GetByRemoteID returns the entry whose RemoteID matches, or nil if the
// remote item has never been recorded. Served by the reverse index so
// planning downloads stays O(1) per item.
func (l *Ledger) GetByRemoteID(remoteID string) (*Entry, error) {
	var e *Entry

	err := l.db.View(func(tx *bolt.Tx) error {
		identity := tx.Bucket(remoteIndexBucket).Get([]byte(remoteID))
		if identity == nil {
			return nil
		}

		v := tx.Bucket(entriesBucket).Get(identity)
		if v == nil {
			return nil
		}

		e = &Entry{}

		return json.Unmarshal(v, e)
	})

	return e, err
}

// Put upserts an entry and maintains the remote reverse index in the same
// transaction. Each successful transfer calls Put immediately, so a crash
// mid-run never re-transfers items completed before the crash.
func (l *Ledger) Put(e Entry) error {
	if e.Identity == "" {
		return fmt.Errorf("%w: entry has empty identity", errors.ErrPersistence)
	}

	if e.LocalPath == "" && e.RemoteID == "" {
		return fmt.Errorf("%w: entry %s has neither local path nor remote id", errors.ErrPersistence, e.Identity)
	}

	err := l.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}

		if err := tx.Bucket(entriesBucket).Put([]byte(e.Identity), data); err != nil {
			return err
		}

		if e.RemoteID != "" {
			return tx.Bucket(remoteIndexBucket).Put([]byte(e.RemoteID), []byte(e.Identity))
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrPersistence, err)
	}

	return nil
}

// All returns every ledger entry keyed by identity.
func (l *Ledger) All() (map[string]Entry, error) {
	result := make(map[string]Entry)

	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}

			result[string(k)] = e

			return nil
		})
	})

	return result, err
}

// RemoteIDs returns the set of remote item IDs already recorded.
func (l *Ledger) RemoteIDs() (map[string]string, error) {
	result := make(map[string]string)

	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(remoteIndexBucket).ForEach(func(k, v []byte) error {
			result[string(k)] = string(v)

			return nil
		})
	})

	return result, err
}

// Token returns the cached session access token, or empty string.
func (l *Ledger) Token() string {
	var token string

	_ = l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(tokenKey)
		if v != nil {
			token = string(v)
		}

		return nil
	})

	return token
}

// SetToken caches the session access token between runs.
func (l *Ledger) SetToken(token string) error {
	err := l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(tokenKey, []byte(token))
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrPersistence, err)
	}

	return nil
}
