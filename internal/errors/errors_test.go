package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors_ImplementErrorInterface(t *testing.T) {
	sentinels := []error{
		ErrCorruptLedger,
		ErrLedgerLocked,
		ErrPersistence,
		ErrUnreadableDirectory,
		ErrAlbumNotFound,
	}
	for _, err := range sentinels {
		assert.NotEmpty(t, err.Error(), "sentinel error should have non-empty message")
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrCorruptLedger,
		ErrLedgerLocked,
		ErrPersistence,
		ErrUnreadableDirectory,
		ErrAlbumNotFound,
	}
	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinel errors should be distinct: %q vs %q", sentinels[i], sentinels[j])
		}
	}
}

func TestSentinelErrors_ExpectedMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrCorruptLedger, "ledger file is corrupt"},
		{ErrLedgerLocked, "ledger locked by another run"},
		{ErrPersistence, "ledger write failed"},
		{ErrUnreadableDirectory, "photos directory does not exist or is not readable"},
		{ErrAlbumNotFound, "album not found"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestSentinelErrors_SurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("selecting album %q: %w", "Vacation", ErrAlbumNotFound)

	assert.True(t, stderrors.Is(wrapped, ErrAlbumNotFound))
	assert.False(t, stderrors.Is(wrapped, ErrPersistence))
}
