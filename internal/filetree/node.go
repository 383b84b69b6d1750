// Package filetree is the concurrent, sharded keyed map that owns every
// TreeNode produced by a scan: a composite (record, parent) key map plus a
// parent-to-children secondary index, built to tolerate concurrent writers
// during the seed phase.
package filetree

import (
	"time"

	"github.com/deploymenttheory/go-ntfs/internal/ntfs"
)

// NodeKey is the tree's deduplication key: a record number alone is not
// enough because hard links share a record number across distinct parents.
type NodeKey struct {
	RecordNumber       uint64
	ParentRecordNumber uint64
}

// OrphanContainerKey is the synthetic directory every unresolvable orphan
// is reparented under.
var OrphanContainerKey = NodeKey{RecordNumber: ntfs.OrphanContainerRecord, ParentRecordNumber: RootRecordNumber}

// RootRecordNumber is the volume root directory's well-known MFT record.
const RootRecordNumber = ntfs.RecordRoot

// RootKey is the NodeKey of the volume root. Its own ParentRecordNumber is
// itself; build_path stops ascent there rather than treating it as orphaned.
var RootKey = NodeKey{RecordNumber: RootRecordNumber, ParentRecordNumber: RootRecordNumber}

// TreeNode is one directory entry: a (record, parent) pair with cached
// metadata. Nodes never hold a pointer to their parent; Parent is a lookup
// key only, so the tree can be stored flat with no cyclic ownership.
type TreeNode struct {
	Key                 NodeKey
	Name                string
	FileReferenceNumber uint64
	IsDirectory         bool
	AttributeFlags      uint32

	FileSize      uint64
	AllocatedSize uint64
	TotalSize     uint64 // recursive; directories only, computed during aggregation

	CreationTime      time.Time
	LastModifiedTime  time.Time
	LastAccessTime    time.Time
	LastMftChangeTime time.Time

	Orphaned bool
}
