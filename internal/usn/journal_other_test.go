//go:build !windows

package usn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
)

func TestJournalStubReturnsUnsupportedPlatform(t *testing.T) {
	j := &Journal{}

	err := j.EnumerateAll(1024, func([]Entry) error { return nil })
	assert.ErrorIs(t, err, scanerr.ErrUnsupportedPlatform)

	entries, next, err := j.ReadFromUsn(42)
	assert.Nil(t, entries)
	assert.Equal(t, int64(42), next)
	assert.ErrorIs(t, err, scanerr.ErrUnsupportedPlatform)
}
