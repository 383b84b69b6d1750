package treebuilder

import (
	"github.com/deploymenttheory/go-ntfs/internal/filetree"
	"github.com/deploymenttheory/go-ntfs/internal/usn"
)

// ApplyChange mutates the tree in response to one live change-monitor
// event, per spec.md §4.H: FILE_CREATE inserts a node, FILE_DELETE removes
// it and orphan-detaches any children it had, and RENAME_NEW_NAME
// reparents the record to its new parent under its new name. Events
// carrying none of these reasons (a bare DataExtend, BasicInfoChange, and
// so on) are ignored -- the tree does not track a live $DATA size or
// timestamp outside of a fresh full scan. Callers must serialize calls to
// ApplyChange for one tree (the change monitor does this by applying
// events from a single goroutine), since Reparent's remove-then-insert is
// not itself atomic across two TreeNode keys.
func (b *Builder) ApplyChange(e usn.ChangeEvent) {
	switch {
	case e.Reason.Has(usn.ReasonFileDelete):
		b.applyDelete(e)
	case e.Reason.Has(usn.ReasonRenameNewName):
		b.applyRename(e)
	case e.Reason.Has(usn.ReasonFileCreate):
		b.applyCreate(e)
	}
}

func (b *Builder) applyCreate(e usn.ChangeEvent) {
	key := filetree.NodeKey{RecordNumber: e.RecordNumber, ParentRecordNumber: e.ParentRecordNumber}
	if b.tree.GetByKey(key) != nil {
		return
	}
	node := &filetree.TreeNode{
		Key:              key,
		Name:             e.Name,
		IsDirectory:      e.FileAttributes&fileAttributeDirectory != 0,
		AttributeFlags:   e.FileAttributes,
		LastModifiedTime: e.Timestamp,
	}
	b.tree.Insert(node)
	b.mtimeSeen[key] = e.Timestamp
}

// applyDelete removes the node the event names and orphan-detaches any
// children it had -- a deleted directory's former contents did not
// themselves receive FILE_DELETE events, so they would otherwise keep
// pointing at a parent record that no longer resolves.
func (b *Builder) applyDelete(e usn.ChangeEvent) {
	key := filetree.NodeKey{RecordNumber: e.RecordNumber, ParentRecordNumber: e.ParentRecordNumber}
	node := b.tree.Remove(key)
	if node == nil {
		return
	}
	delete(b.mtimeSeen, key)

	if !node.IsDirectory {
		return
	}
	for _, child := range b.tree.GetChildren(node.Key.RecordNumber) {
		b.tree.Reparent(child.Key, filetree.OrphanContainerKey.RecordNumber, true)
	}
}

// applyRename reparents the renamed record to its new parent under its new
// name. A directory's record resolves to exactly one key via the
// directory index; a plain file can have several hard links, and the USN
// record does not say which one moved, so the first match found is
// reparented. If the record is not tracked at all (the corresponding
// FILE_CREATE or earlier rename was missed), it is inserted fresh instead.
func (b *Builder) applyRename(e usn.ChangeEvent) {
	var oldKey filetree.NodeKey
	found := false

	if key, ok := b.tree.DirKeyByRecord(e.RecordNumber); ok {
		oldKey, found = key, true
	} else if keys := b.tree.NodeKeysByRecord(e.RecordNumber); len(keys) > 0 {
		oldKey, found = keys[0], true
	}

	if !found {
		b.applyCreate(e)
		return
	}

	newKey := filetree.NodeKey{RecordNumber: e.RecordNumber, ParentRecordNumber: e.ParentRecordNumber}
	if oldKey == newKey {
		if node := b.tree.GetByKey(oldKey); node != nil {
			node.Name = e.Name
		}
		return
	}

	node := b.tree.Reparent(oldKey, e.ParentRecordNumber, false)
	if node == nil {
		b.applyCreate(e)
		return
	}
	node.Name = e.Name
	delete(b.mtimeSeen, oldKey)
	b.mtimeSeen[newKey] = e.Timestamp
}
