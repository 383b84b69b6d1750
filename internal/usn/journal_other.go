//go:build !windows

package usn

import "github.com/deploymenttheory/go-ntfs/internal/scanerr"

// Journal is a stub on non-Windows platforms; see journal_windows.go.
type Journal struct{}

func (j *Journal) EnumerateAll(batchSize int, batch func([]Entry) error) error {
	return scanerr.ErrUnsupportedPlatform
}

func (j *Journal) ReadFromUsn(startUsn int64) ([]Entry, int64, error) {
	return nil, startUsn, scanerr.ErrUnsupportedPlatform
}
