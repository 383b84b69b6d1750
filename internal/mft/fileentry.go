// Package mft fetches and decodes individual MFT records into FileEntry
// values, merging ATTRIBUTE_LIST extension records and applying the
// filename namespace selection policy along the way.
package mft

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-ntfs/internal/device"
	"github.com/deploymenttheory/go-ntfs/internal/ntfs"
	"github.com/deploymenttheory/go-ntfs/internal/scanerr"
)

// FileNameLink is one (parent, name, namespace) hard-link entry surviving
// namespace filtering.
type FileNameLink struct {
	ParentRecordNumber uint64
	Name               string
	Namespace          ntfs.FilenameNamespace
}

// FileEntry is the parsed, namespace-filtered view of one MFT record.
type FileEntry struct {
	RecordNumber        uint64
	FileReferenceNumber uint64
	Links               []FileNameLink
	IsDirectory         bool
	IsDeleted           bool

	CreationTime      ntfs.FileTime
	LastModifiedTime  ntfs.FileTime
	LastMftChangeTime ntfs.FileTime
	LastAccessTime    ntfs.FileTime

	LogicalSize   uint64
	AllocatedSize uint64

	AttributeFlags uint32
}

// NtfsVolumeData is the geometry a parser needs to turn a record index
// into a volume offset.
type NtfsVolumeData struct {
	VolumeSerialNumber uint64
	BytesPerSector     uint16
	SectorsPerCluster  uint8
	MftStartCluster    uint64
	MftRecordSize      uint32
	TotalClusters      uint64
}

// ClusterSize returns bytes per cluster implied by the volume geometry.
func (v NtfsVolumeData) ClusterSize() uint32 {
	return uint32(v.BytesPerSector) * uint32(v.SectorsPerCluster)
}

// RecordOffset returns the volume-relative byte offset of record index.
func (v NtfsVolumeData) RecordOffset(index uint64) int64 {
	mftOffset := v.MftStartCluster * uint64(v.ClusterSize())
	return int64(mftOffset + index*uint64(v.MftRecordSize))
}

// Parser fetches records from a volume and decodes them into FileEntry
// values. It holds no mutable state beyond a read-only volume handle and
// cached geometry, so FetchRecord is safe for concurrent use by multiple
// worker goroutines sharing one Parser.
type Parser struct {
	volume     device.VolumeReader
	volumeData NtfsVolumeData
	fallback   device.VolumeReader

	includeUnlinked bool
}

// NewParser builds a Parser over an already-opened volume handle.
// includeUnlinked controls whether records with the in-use flag clear are
// still decoded and returned (the orchestrator's "include deleted" option).
func NewParser(volume device.VolumeReader, volumeData NtfsVolumeData, includeUnlinked bool) *Parser {
	return &Parser{volume: volume, volumeData: volumeData, includeUnlinked: includeUnlinked}
}

// SetFallback installs a secondary VolumeReader consulted whenever a read
// against the primary volume fails with scanerr.ErrAccessDenied -- the
// protected records ($MFT, $LogFile, $Secure) a logical-volume handle can
// refuse per spec.md §4.A. Typically a device.PhysicalVolume opened
// against the disk underneath, which bypasses the filesystem driver's ACL
// checks entirely.
func (p *Parser) SetFallback(volume device.VolumeReader) {
	p.fallback = volume
}

// readRecordAt reads one record-sized buffer at offset, retrying against
// the fallback volume (if any) on access denial before giving up.
func (p *Parser) readRecordAt(buf []byte, offset int64, index uint64) error {
	_, err := p.volume.ReadAt(buf, offset)
	if err == nil {
		return nil
	}
	if p.fallback != nil && errors.Is(err, scanerr.ErrAccessDenied) {
		if _, fbErr := p.fallback.ReadAt(buf, offset); fbErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: record %d: %v", scanerr.ErrMftRead, index, err)
}

// FetchRecord fetches and decodes the MFT record at index. It returns
// (nil, nil) for a record that is unused (in-use flag clear) and
// includeUnlinked is false -- the "Option<FileEntry> = None" case in
// spec terms. Any other return value pair means a real entry or an error.
func (p *Parser) FetchRecord(index uint64) (*FileEntry, error) {
	buf := make([]byte, p.volumeData.MftRecordSize)
	if err := p.readRecordAt(buf, p.volumeData.RecordOffset(index), index); err != nil {
		return nil, err
	}

	header, err := ntfs.ParseMftRecordHeader(buf)
	if err != nil {
		return nil, scanerr.NewRecordError(index, err)
	}

	if err := ntfs.VerifyAndApplyFixup(buf, header.UpdateSeqOffset, header.UpdateSeqCount); err != nil {
		return nil, scanerr.NewRecordError(index, err)
	}

	inUse := header.InUse()
	if !inUse && !p.includeUnlinked {
		return nil, nil
	}

	entry := &FileEntry{
		RecordNumber:        index,
		FileReferenceNumber: uint64(header.SequenceNumber)<<48 | (index & ntfs.RecordNumberMask),
		IsDirectory:         header.IsDirectory(),
		IsDeleted:           !inUse,
	}

	var rawLinks []FileNameLink
	var attrListEntries []ntfs.AttributeListEntry

	walkErr := ntfs.WalkAttributes(buf, int(header.AttrOffset), func(h *ntfs.AttributeHeader, offset int) error {
		switch h.Type {
		case ntfs.AttrTypeStandardInformation:
			if h.NonResident {
				return nil // never non-resident in practice; ignore rather than fail the record
			}
			si, err := ntfs.ParseStandardInformation(h.Value(buf))
			if err != nil {
				return err
			}
			entry.CreationTime = si.CreationTime
			entry.LastModifiedTime = si.LastModifiedTime
			entry.LastMftChangeTime = si.LastMftChangeTime
			entry.LastAccessTime = si.LastAccessTime
			entry.AttributeFlags = si.FileAttributes

		case ntfs.AttrTypeFileName:
			if h.NonResident {
				return nil
			}
			fn, err := ntfs.ParseFileNameAttribute(h.Value(buf))
			if err != nil {
				return err
			}
			rawLinks = append(rawLinks, FileNameLink{
				ParentRecordNumber: fn.ParentRecordNumber,
				Name:               fn.Name,
				Namespace:          fn.Namespace,
			})

		case ntfs.AttrTypeAttributeList:
			var listBytes []byte
			if h.NonResident {
				return nil // a non-resident attribute list is not read, so its extension records are not merged
			}
			listBytes = h.Value(buf)
			entries, err := ntfs.ParseAttributeList(listBytes)
			if err != nil {
				return err
			}
			attrListEntries = entries

		case ntfs.AttrTypeData:
			if !entry.IsDirectory {
				if h.NonResident {
					entry.LogicalSize = h.DataSize
					entry.AllocatedSize = h.AllocatedSize
				} else {
					entry.LogicalSize = uint64(h.ResidentValueLength)
					entry.AllocatedSize = uint64(h.ResidentValueLength)
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, scanerr.NewRecordError(index, walkErr)
	}

	if len(attrListEntries) > 0 {
		extLinks, extErr := p.mergeExtensionRecords(index, attrListEntries)
		if extErr != nil {
			return nil, scanerr.NewRecordError(index, extErr)
		}
		rawLinks = append(rawLinks, extLinks...)
	}

	entry.Links = filterNamespaces(rawLinks)
	if len(entry.Links) == 0 && !entry.IsDeleted {
		return nil, scanerr.NewRecordError(index, scanerr.ErrInvalidMftRecord)
	}

	return entry, nil
}

// mergeExtensionRecords fetches every extension record an ATTRIBUTE_LIST
// points at and collects any FILE_NAME attributes found there. Only
// extension records belonging to this base record are followed.
func (p *Parser) mergeExtensionRecords(baseIndex uint64, entries []ntfs.AttributeListEntry) ([]FileNameLink, error) {
	var links []FileNameLink
	visited := map[uint64]bool{baseIndex: true}

	for _, e := range entries {
		if e.Type != ntfs.AttrTypeFileName {
			continue
		}
		if e.RecordNumber == baseIndex || visited[e.RecordNumber] {
			continue
		}
		visited[e.RecordNumber] = true

		buf := make([]byte, p.volumeData.MftRecordSize)
		if err := p.readRecordAt(buf, p.volumeData.RecordOffset(e.RecordNumber), e.RecordNumber); err != nil {
			return nil, err
		}
		header, err := ntfs.ParseMftRecordHeader(buf)
		if err != nil {
			continue // corrupt extension record: drop its contribution, not the whole base record
		}
		if err := ntfs.VerifyAndApplyFixup(buf, header.UpdateSeqOffset, header.UpdateSeqCount); err != nil {
			continue
		}
		if header.IsBaseRecord() || header.BaseRecordRef&ntfs.RecordNumberMask != baseIndex {
			continue // not actually an extension of this base; ignore
		}

		_ = ntfs.WalkAttributes(buf, int(header.AttrOffset), func(h *ntfs.AttributeHeader, offset int) error {
			if h.Type != ntfs.AttrTypeFileName || h.NonResident {
				return nil
			}
			fn, err := ntfs.ParseFileNameAttribute(h.Value(buf))
			if err != nil {
				return nil
			}
			links = append(links, FileNameLink{
				ParentRecordNumber: fn.ParentRecordNumber,
				Name:               fn.Name,
				Namespace:          fn.Namespace,
			})
			return nil
		})
	}

	return links, nil
}

// filterNamespaces applies the preferred-namespace selection policy
// per-parent: prefer WIN32/WIN32_AND_DOS, fall back to POSIX, use DOS only
// if nothing else exists for that parent. DOS dedup runs after all links
// (including ones merged from ATTRIBUTE_LIST extension records) have been
// collected, per the Open Question resolution in DESIGN.md.
func filterNamespaces(links []FileNameLink) []FileNameLink {
	byParent := make(map[uint64][]FileNameLink)
	order := make([]uint64, 0, len(links))
	for _, l := range links {
		if _, ok := byParent[l.ParentRecordNumber]; !ok {
			order = append(order, l.ParentRecordNumber)
		}
		byParent[l.ParentRecordNumber] = append(byParent[l.ParentRecordNumber], l)
	}

	var result []FileNameLink
	for _, parent := range order {
		group := byParent[parent]
		best := pickBestLink(group)
		if best != nil {
			result = append(result, *best)
		}
	}
	return result
}

func pickBestLink(group []FileNameLink) *FileNameLink {
	var win32, posix, dos *FileNameLink
	for i := range group {
		l := &group[i]
		switch l.Namespace {
		case ntfs.NamespaceWin32, ntfs.NamespaceWin32AndDOS:
			win32 = l
		case ntfs.NamespacePOSIX:
			posix = l
		case ntfs.NamespaceDOS:
			dos = l
		}
	}
	switch {
	case win32 != nil:
		return win32
	case posix != nil:
		return posix
	default:
		return dos
	}
}
