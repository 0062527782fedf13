package errors

import "errors"

// Ledger errors.
var (
	ErrCorruptLedger = errors.New("ledger file is corrupt")
	ErrLedgerLocked  = errors.New("ledger locked by another run")
	ErrPersistence   = errors.New("ledger write failed")
)

// Local scan errors.
var (
	ErrUnreadableDirectory = errors.New("photos directory does not exist or is not readable")
)

// Remote selection errors.
var (
	ErrAlbumNotFound = errors.New("album not found")
)
