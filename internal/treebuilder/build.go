// Package treebuilder consumes FileEntry and UsnEntry streams and
// populates a filetree.FileTree: seed phase, USN overlay, orphan
// resolution, and bottom-up size aggregation.
package treebuilder

import (
	"sync"
	"time"

	"github.com/deploymenttheory/go-ntfs/internal/filetree"
	"github.com/deploymenttheory/go-ntfs/internal/mft"
	"github.com/deploymenttheory/go-ntfs/internal/usn"
)

// Builder accumulates FileEntry and UsnEntry batches into a FileTree. Seed
// and Overlay may run in either order (scanner.Scan runs Overlay first);
// the newer of the MFT and USN modification times is kept either way.
// Both must complete before ResolveOrphans/Aggregate. Seed may be called
// from several worker goroutines at once: node inserts rely on FileTree's
// own locking and mu guards mtimeSeen.
type Builder struct {
	tree      *filetree.FileTree
	mu        sync.Mutex
	mtimeSeen map[filetree.NodeKey]time.Time
}

func NewBuilder(tree *filetree.FileTree) *Builder {
	return &Builder{tree: tree, mtimeSeen: make(map[filetree.NodeKey]time.Time)}
}

// Seed performs the seed phase: one tree entry per (parent, name) link
// pair from each FileEntry, keyed by (record_number, parent).
func (b *Builder) Seed(entries []mft.FileEntry) {
	for _, e := range entries {
		for _, link := range e.Links {
			if e.RecordNumber == filetree.RootRecordNumber && link.ParentRecordNumber == filetree.RootRecordNumber {
				continue // root's self-referential FILE_NAME entry is discarded
			}
			key := filetree.NodeKey{RecordNumber: e.RecordNumber, ParentRecordNumber: link.ParentRecordNumber}
			node := &filetree.TreeNode{
				Key:                 key,
				Name:                link.Name,
				FileReferenceNumber: e.FileReferenceNumber,
				IsDirectory:         e.IsDirectory,
				AttributeFlags:      e.AttributeFlags,
				FileSize:            e.LogicalSize,
				AllocatedSize:       e.AllocatedSize,
				CreationTime:        e.CreationTime.Time(),
				LastModifiedTime:    e.LastModifiedTime.Time(),
				LastAccessTime:      e.LastAccessTime.Time(),
				LastMftChangeTime:   e.LastMftChangeTime.Time(),
			}
			b.mu.Lock()
			if seen, ok := b.mtimeSeen[key]; ok && seen.After(node.LastModifiedTime) {
				node.LastModifiedTime = seen // newer USN timestamp from an earlier Overlay
			}
			b.mtimeSeen[key] = node.LastModifiedTime
			b.mu.Unlock()
			b.tree.Insert(node)
		}
	}
}

const fileAttributeDirectory = 0x10

// Overlay performs the overlay phase: USN entries fill in names for
// records whose MFT parse failed, and contribute a newer modification
// time when theirs post-dates the seeded value for an existing key.
func (b *Builder) Overlay(entries []usn.Entry) {
	for _, e := range entries {
		key := filetree.NodeKey{RecordNumber: e.RecordNumber, ParentRecordNumber: e.ParentRecordNumber}
		mtime := e.Timestamp.Time()

		existing := b.tree.GetByKey(key)
		if existing == nil {
			b.tree.Insert(&filetree.TreeNode{
				Key:              key,
				Name:             e.Name,
				IsDirectory:      e.FileAttributes&fileAttributeDirectory != 0,
				AttributeFlags:   e.FileAttributes,
				LastModifiedTime: mtime,
			})
			b.mtimeSeen[key] = mtime
			continue
		}

		if seen, ok := b.mtimeSeen[key]; !ok || mtime.After(seen) {
			existing.LastModifiedTime = mtime
			b.mtimeSeen[key] = mtime
		}
	}
}

// ResolveOrphans reparents every node whose parent does not resolve to an
// existing directory under the synthetic <orphaned> container. Must run
// after Seed and Overlay have both completed.
func (b *Builder) ResolveOrphans() int {
	var toReparent []filetree.NodeKey
	for _, node := range b.tree.AllNodes() {
		if node.Key == filetree.RootKey || node.Key == filetree.OrphanContainerKey {
			continue
		}
		if node.Key.ParentRecordNumber == filetree.RootRecordNumber {
			continue
		}
		if _, ok := b.tree.DirNodeByRecord(node.Key.ParentRecordNumber); !ok {
			toReparent = append(toReparent, node.Key)
		}
	}
	for _, key := range toReparent {
		b.tree.Reparent(key, filetree.OrphanContainerKey.RecordNumber, true)
	}
	return len(toReparent)
}

// Aggregate computes directory TotalSize bottom-up: group nodes by parent,
// process parents in descending-depth order (leaves first, root last), and
// accumulate each directory's children into its own running TotalSize.
// Must run strictly after all inserts have completed.
func (b *Builder) Aggregate() {
	depth := computeDepths(b.tree)

	order := b.tree.ParentRecordNumbers()
	sortByDepthDescending(order, depth)

	for _, parentRecord := range order {
		children := b.tree.GetChildren(parentRecord)
		var total uint64
		for _, c := range children {
			if c.IsDirectory {
				total += c.TotalSize
			} else {
				total += c.FileSize
			}
		}
		if parentNode, ok := b.tree.DirNodeByRecord(parentRecord); ok {
			parentNode.TotalSize += total
		}
	}
}

// computeDepths returns each directory record's distance from the root,
// used only to order the aggregation pass so a directory's children are
// always totalled before the directory itself contributes to its own
// parent's total.
func computeDepths(tree *filetree.FileTree) map[uint64]int {
	depth := map[uint64]int{filetree.RootRecordNumber: 0}
	changed := true
	for changed {
		changed = false
		for _, parentRecord := range tree.ParentRecordNumbers() {
			if _, ok := depth[parentRecord]; ok {
				continue
			}
			node, ok := tree.DirNodeByRecord(parentRecord)
			if !ok {
				continue
			}
			if d, ok := depth[node.Key.ParentRecordNumber]; ok {
				depth[parentRecord] = d + 1
				changed = true
			}
		}
	}
	return depth
}

func sortByDepthDescending(records []uint64, depth map[uint64]int) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && depth[records[j-1]] < depth[records[j]]; j-- {
			records[j-1], records[j] = records[j], records[j-1]
		}
	}
}
