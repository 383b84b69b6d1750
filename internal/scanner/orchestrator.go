// Package scanner drives a full scan: opens the volume, runs USN bulk
// enumeration on the calling goroutine, then parallelizes MFT record
// parsing across a worker pool, and feeds both into the tree builder.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deploymenttheory/go-ntfs/internal/device"
	"github.com/deploymenttheory/go-ntfs/internal/filetree"
	"github.com/deploymenttheory/go-ntfs/internal/mft"
	"github.com/deploymenttheory/go-ntfs/internal/ntfs"
	"github.com/deploymenttheory/go-ntfs/internal/ntfscfg"
	"github.com/deploymenttheory/go-ntfs/internal/ntfslog"
	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
	"github.com/deploymenttheory/go-ntfs/internal/treebuilder"
	"github.com/deploymenttheory/go-ntfs/internal/usn"
)

// Session wraps one Scan invocation: a correlation ID, start time, the
// resolved config, and a pointer to the live Progress — used to tie log
// lines and progress samples to a single run.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time
	Config    *ntfscfg.ScanConfig
	Progress  *Progress
}

// Scan runs a complete scan against the drive letter in cfg and returns
// the populated tree. Fatal errors (cannot open volume, cannot read boot
// sector or $MFT) propagate; per-record recoverable errors and a failed
// USN phase (which falls back to MFT-only) are counted into the returned
// tree's stats.
func Scan(ctx context.Context, cfg *ntfscfg.ScanConfig) (*filetree.FileTree, *Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = ntfslog.NopLogger{}
	}

	session := &Session{ID: uuid.New(), StartedAt: time.Now(), Config: cfg, Progress: NewProgress(time.Now())}
	logger.Infof("scan %s starting on drive %s", session.ID, cfg.DriveLetter)

	volume, err := device.OpenLogicalVolume(device.OpenOptions{DriveLetter: cfg.DriveLetter})
	if err != nil {
		return nil, session, err
	}
	defer volume.Close()

	bootSectorBuf := make([]byte, 512)
	if _, err := volume.ReadAt(bootSectorBuf, 0); err != nil {
		return nil, session, fmt.Errorf("%w: %v", scanerr.ErrVolumeData, err)
	}
	bootSector, err := ntfs.ParseBootSector(bootSectorBuf)
	if err != nil {
		return nil, session, fmt.Errorf("%w: %v", scanerr.ErrNotNtfsVolume, err)
	}

	volumeData := mft.NtfsVolumeData{
		VolumeSerialNumber: bootSector.VolumeSerialNumber,
		BytesPerSector:     bootSector.BytesPerSector,
		SectorsPerCluster:  bootSector.SectorsPerCluster,
		MftStartCluster:    bootSector.MftStartCluster,
		MftRecordSize:      bootSector.MftRecordSize(),
		TotalClusters:      bootSector.TotalSectors / uint64(bootSector.SectorsPerCluster),
	}

	tree := filetree.NewFileTree(cfg.DriveLetter)
	builder := treebuilder.NewBuilder(tree)

	if cfg.UseUsn {
		session.Progress.SetPhase(PhaseReadingUsn)
		if err := runUsnPhase(volume, cfg, builder, session.Progress, logger); err != nil {
			logger.Warnf("usn phase unavailable, falling back to MFT-only: %v", err)
			tree.RecordErrorRecovered()
			session.Progress.AddErrorsRecovered(1)
		}
	}

	if cfg.UseMft {
		session.Progress.SetPhase(PhaseReadingMft)
		if err := runMftPhase(ctx, volume, volumeData, cfg, builder, session.Progress, tree, logger); err != nil {
			return nil, session, err
		}
	}

	session.Progress.SetPhase(PhaseBuildingTree)
	orphaned := builder.ResolveOrphans()
	if orphaned > 0 {
		logger.Infof("resolved %d orphaned nodes", orphaned)
	}

	if cfg.CalculateSizes {
		session.Progress.SetPhase(PhaseAggregatingSizes)
		builder.Aggregate()
	}

	session.Progress.SetPhase(PhaseDone)
	logger.Infof("scan %s complete: %+v", session.ID, tree.Stats())
	return tree, session, nil
}

// journalEnumerator is the subset of *usn.Journal runUsnPhase depends on,
// narrowed to an interface so the retry logic can be unit-tested against a
// fake journal rather than a live device handle.
type journalEnumerator interface {
	EnumerateAll(batchSize int, batch func([]usn.Entry) error) error
}

func runUsnPhase(volume *device.LogicalVolume, cfg *ntfscfg.ScanConfig, builder *treebuilder.Builder, progress *Progress, logger interface {
	Warnf(string, ...any)
}) error {
	overlay := func(batch []usn.Entry) error {
		builder.Overlay(batch)
		progress.AddProcessed(int64(len(batch)))
		return nil
	}

	openJournal := func() (journalEnumerator, error) { return volume.OpenJournal() }
	return enumerateWithRetry(openJournal, cfg.BatchSize, overlay, logger)
}

// enumerateWithRetry implements spec.md §7: a journal-level error that
// scanerr.IsJournalRecoverable accepts gets exactly one retry against a
// freshly opened journal (a fresh FSCTL_QUERY_USN_JOURNAL cursor) before
// the caller falls back to MFT-only scanning. Any other error, or a
// second failure, propagates immediately.
func enumerateWithRetry(openJournal func() (journalEnumerator, error), batchSize int, overlay func([]usn.Entry) error, logger interface {
	Warnf(string, ...any)
}) error {
	journal, err := openJournal()
	if err != nil {
		return err
	}

	err = journal.EnumerateAll(batchSize, overlay)
	if err == nil || !scanerr.IsJournalRecoverable(err) {
		return err
	}

	logger.Warnf("usn journal error, retrying with a fresh cursor: %v", err)

	journal, err = openJournal()
	if err != nil {
		return err
	}
	return journal.EnumerateAll(batchSize, overlay)
}

func runMftPhase(
	ctx context.Context,
	volume *device.LogicalVolume,
	volumeData mft.NtfsVolumeData,
	cfg *ntfscfg.ScanConfig,
	builder *treebuilder.Builder,
	progress *Progress,
	tree *filetree.FileTree,
	logger interface {
		Errorf(string, ...any)
	},
) error {
	parser := mft.NewParser(volume, volumeData, false)

	if driveNumber, err := volume.PhysicalDriveNumber(); err == nil {
		if physical, err := device.OpenPhysicalVolume(driveNumber); err == nil {
			defer physical.Close()
			parser.SetFallback(physical)
		} else {
			logger.Errorf("opening physical volume %d for access-denied fallback: %v", driveNumber, err)
		}
	}

	totalRecords := estimateRecordCount(volumeData)
	progress.SetTotal(totalRecords)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.PoolSize)

	stripe := uint64(cfg.BatchSize)
	for start := uint64(0); start < uint64(totalRecords); start += stripe {
		start := start
		end := start + stripe
		if end > uint64(totalRecords) {
			end = uint64(totalRecords)
		}

		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}

			var batch []mft.FileEntry
			for idx := start; idx < end; idx++ {
				entry, err := parser.FetchRecord(idx)
				if err != nil {
					if scanerr.IsRecoverable(err) {
						tree.RecordErrorRecovered()
						progress.AddErrorsRecovered(1)
						logger.Errorf("record %d: %v", idx, err)
						continue
					}
					return err
				}
				if entry == nil {
					continue
				}
				if !passesVisibilityFilter(entry, cfg) {
					continue
				}
				batch = append(batch, *entry)
			}

			builder.Seed(batch)
			progress.AddProcessed(int64(end - start))
			return nil
		})
	}

	return g.Wait()
}

func passesVisibilityFilter(entry *mft.FileEntry, cfg *ntfscfg.ScanConfig) bool {
	if !cfg.IncludeHidden && entry.AttributeFlags&ntfs.FileAttrHidden != 0 {
		return false
	}
	if !cfg.IncludeSystem && entry.AttributeFlags&ntfs.FileAttrSystem != 0 {
		return false
	}
	return true
}

func estimateRecordCount(v mft.NtfsVolumeData) int64 {
	// Without a live $MFT $DATA attribute read (which would require a
	// bootstrap FetchRecord(0) call), the record count is approximated
	// from volume capacity; the worker loop naturally stops early via
	// ErrMftRead once it runs past the real end of $MFT.
	if v.MftRecordSize == 0 {
		return 0
	}
	approxFileBytes := v.TotalClusters * uint64(v.ClusterSize()) / 4
	return int64(approxFileBytes / uint64(v.MftRecordSize))
}
