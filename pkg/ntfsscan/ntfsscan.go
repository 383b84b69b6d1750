// Package ntfsscan is the narrow public surface over the scanner core:
// Scan to run a full volume pass (it returns only the finished tree, not a
// progress handle; ScanProgress is the snapshot type of the scanner's
// progress counters), and NewChangeMonitor to tail live changes afterward. Everything under
// internal/ is wiring a caller should never need to import directly.
package ntfsscan

import (
	"context"
	"fmt"
	"time"

	"github.com/deploymenttheory/go-ntfs/internal/device"
	"github.com/deploymenttheory/go-ntfs/internal/filetree"
	"github.com/deploymenttheory/go-ntfs/internal/mft"
	"github.com/deploymenttheory/go-ntfs/internal/ntfs"
	"github.com/deploymenttheory/go-ntfs/internal/ntfscfg"
	"github.com/deploymenttheory/go-ntfs/internal/ntfslog"
	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
	"github.com/deploymenttheory/go-ntfs/internal/scanner"
	"github.com/deploymenttheory/go-ntfs/internal/treebuilder"
	"github.com/deploymenttheory/go-ntfs/internal/usn"
)

// ScanConfig controls a single scan run. See ntfscfg.LoadScanConfig for
// loading one from defaults, a YAML file, and NTFS_SCAN_* environment
// variables.
type ScanConfig = ntfscfg.ScanConfig

// ScanProgress is a point-in-time snapshot of a running or finished scan.
type ScanProgress = scanner.ScanProgress

// Phase identifies which stage of a scan is currently running.
type Phase = scanner.Phase

// ChangeEvent is one USN journal change record, surfaced after Scan via a
// ChangeMonitor.
type ChangeEvent = usn.ChangeEvent

// Logger is the diagnostic sink a caller can inject via ScanConfig.Logger.
type Logger = ntfslog.Logger

// Tree is the queryable result of a completed scan: path reconstruction,
// wildcard search, and largest-files/-directories reports.
type Tree = filetree.FileTree

// LoadConfig reads a ScanConfig from defaults, an optional YAML file, and
// NTFS_SCAN_* environment variables.
func LoadConfig(configFile string) (*ScanConfig, error) {
	return ntfscfg.LoadScanConfig(configFile)
}

// NtfsVolumeData is the boot-sector-derived geometry of an NTFS volume:
// sector/cluster sizes, MFT location, and record size.
type NtfsVolumeData = mft.NtfsVolumeData

// VolumeDescriptor identifies and describes one NTFS volume, surfaced so a
// frontend can render a volume picker without reaching into the scanner
// internals: drive letter, volume label, serial number, filesystem name,
// and the geometry a scan would use.
type VolumeDescriptor struct {
	DriveLetter    string
	VolumeLabel    string
	SerialNumber   uint64
	FilesystemName string
	NtfsVolumeData NtfsVolumeData
}

// DescribeVolume opens driveLetter just long enough to read its boot
// sector and label, then closes it. Use this to populate a volume picker
// before committing to a full Scan.
func DescribeVolume(driveLetter string) (*VolumeDescriptor, error) {
	volume, err := device.OpenLogicalVolume(device.OpenOptions{DriveLetter: driveLetter})
	if err != nil {
		return nil, err
	}
	defer volume.Close()

	bootSectorBuf := make([]byte, 512)
	if _, err := volume.ReadAt(bootSectorBuf, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", scanerr.ErrVolumeData, err)
	}
	bootSector, err := ntfs.ParseBootSector(bootSectorBuf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scanerr.ErrNotNtfsVolume, err)
	}

	return &VolumeDescriptor{
		DriveLetter:    driveLetter,
		VolumeLabel:    volume.VolumeLabel(),
		SerialNumber:   volume.VolumeSerialNumber(),
		FilesystemName: "NTFS",
		NtfsVolumeData: NtfsVolumeData{
			VolumeSerialNumber: bootSector.VolumeSerialNumber,
			BytesPerSector:     bootSector.BytesPerSector,
			SectorsPerCluster:  bootSector.SectorsPerCluster,
			MftStartCluster:    bootSector.MftStartCluster,
			MftRecordSize:      bootSector.MftRecordSize(),
			TotalClusters:      bootSector.TotalSectors / uint64(bootSector.SectorsPerCluster),
		},
	}, nil
}

// Scan runs a complete scan of cfg.DriveLetter and returns the populated
// tree. It blocks until every phase (USN bulk read, MFT parse, tree build,
// size aggregation) completes or ctx is cancelled.
func Scan(ctx context.Context, cfg *ScanConfig) (*Tree, error) {
	tree, _, err := scanner.Scan(ctx, cfg)
	return tree, err
}

// ChangeMonitor tails a volume's USN journal, owning the underlying volume
// handle for its lifetime, and applies every change it sees to tree under
// writer discipline: one goroutine (started by Run) consumes Events and
// calls FileTree.Insert/Remove/Reparent, so no caller needs its own
// locking around the tree Scan returned. Call Run (in its own goroutine)
// to begin polling, and Close when done to stop polling and release the
// handle.
type ChangeMonitor struct {
	*usn.Monitor
	volume  *device.LogicalVolume
	builder *treebuilder.Builder
}

// Close stops the polling loop and closes the volume handle.
func (m *ChangeMonitor) Close() error {
	m.Stop()
	return m.volume.Close()
}

// NewChangeMonitor opens driveLetter's USN journal and returns a monitor
// that applies ChangeEvents to tree (normally the *Tree a prior Scan
// returned) starting wherever Run(startUsn) is told to begin (0 reads from
// the oldest record the journal still holds).
func NewChangeMonitor(driveLetter string, pollEvery time.Duration, tree *Tree) (*ChangeMonitor, error) {
	volume, err := device.OpenLogicalVolume(device.OpenOptions{DriveLetter: driveLetter})
	if err != nil {
		return nil, err
	}
	journal, err := volume.OpenJournal()
	if err != nil {
		volume.Close()
		return nil, err
	}
	return &ChangeMonitor{
		Monitor: usn.NewMonitor(journal, pollEvery),
		volume:  volume,
		builder: treebuilder.NewBuilder(tree),
	}, nil
}

// Run polls the journal from startUsn until Stop is called, applying each
// ChangeEvent to the tree as it arrives. It blocks the calling goroutine
// the same way usn.Monitor.Run does; callers run it in its own goroutine.
func (m *ChangeMonitor) Run(startUsn int64) {
	applyDone := make(chan struct{})
	go func() {
		defer close(applyDone)
		for {
			select {
			case e := <-m.Events:
				m.builder.ApplyChange(e)
			case <-m.Monitor.Done():
				// drain whatever is already buffered before returning
				for {
					select {
					case e := <-m.Events:
						m.builder.ApplyChange(e)
					default:
						return
					}
				}
			}
		}
	}()
	m.Monitor.Run(startUsn)
	<-applyDone
}
