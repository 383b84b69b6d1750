package filetree

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// shardCount is the number of stripes the keyed map and the parent→children
// index are each split into. A sharded sync.RWMutex map is used instead of
// a lock-free structure: no repo in this codebase's lineage grounds a
// lock-free concurrent map, so the simpler, well-understood primitive is
// preferred. This is a deliberate simplification from "lock-free reads."
const shardCount = 16

type shard struct {
	mu    sync.RWMutex
	nodes map[NodeKey]*TreeNode
}

type childShard struct {
	mu       sync.RWMutex
	children map[uint64][]NodeKey // keyed by parent record number
}

// dirShard indexes directory nodes by record number alone. Directories
// cannot be hard-linked in NTFS, so a record number maps to at most one
// directory NodeKey; this makes parent-chain ascent O(1) per hop instead
// of a full-tree scan.
type dirShard struct {
	mu    sync.RWMutex
	byRec map[uint64]NodeKey
}

// recordSizeState is the ledger entry backing per-record size dedup: a
// record shared by several hard links (distinct NodeKeys) must contribute
// its size to TotalBytes/AllocatedBytes exactly once, per spec.md S3.
type recordSizeState struct {
	fileSize      uint64
	allocatedSize uint64
	refCount      int
}

type sizeShard struct {
	mu     sync.Mutex
	states map[uint64]*recordSizeState
}

// Stats are cached aggregate counters, refreshed after each structural
// mutation (insert, orphan resolution, aggregation, change-monitor apply).
type Stats struct {
	Files         int64
	Directories   int64
	OrphanedFiles int64
	TotalBytes    int64
	AllocatedBytes int64
	ErrorsRecovered int64
}

// FileTree owns every TreeNode produced by a scan. The primary keyed map
// and the secondary parent→children index are each sharded across
// shardCount stripes so concurrent seed-phase inserts from multiple
// workers do not serialize on one global lock.
type FileTree struct {
	driveLetter string

	shards      [shardCount]*shard
	childShards [shardCount]*childShard
	dirShards   [shardCount]*dirShard
	sizeShards  [shardCount]*sizeShard

	files           atomic.Int64
	directories     atomic.Int64
	orphanedFiles   atomic.Int64
	totalBytes      atomic.Int64
	allocatedBytes  atomic.Int64
	errorsRecovered atomic.Int64
}

// NewFileTree returns an empty tree with a synthetic root and orphan
// container already present. driveLetter is used only to render
// build_path's leading "X:" component.
func NewFileTree(driveLetter string) *FileTree {
	t := &FileTree{driveLetter: driveLetter}
	for i := range t.shards {
		t.shards[i] = &shard{nodes: make(map[NodeKey]*TreeNode)}
		t.childShards[i] = &childShard{children: make(map[uint64][]NodeKey)}
		t.dirShards[i] = &dirShard{byRec: make(map[uint64]NodeKey)}
		t.sizeShards[i] = &sizeShard{states: make(map[uint64]*recordSizeState)}
	}

	t.Insert(&TreeNode{Key: RootKey, Name: driveLetter + ":", IsDirectory: true})
	t.Insert(&TreeNode{Key: OrphanContainerKey, Name: "<orphaned>", IsDirectory: true})
	return t
}

func shardIndex(key NodeKey) int {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatUint(key.RecordNumber, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(key.ParentRecordNumber, 10)))
	return int(h.Sum32() % shardCount)
}

func childShardIndex(parentRecordNumber uint64) int {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatUint(parentRecordNumber, 10)))
	return int(h.Sum32() % shardCount)
}

func dirShardIndex(recordNumber uint64) int {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatUint(recordNumber, 10)))
	return int(h.Sum32() % shardCount)
}

func sizeShardIndex(recordNumber uint64) int {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatUint(recordNumber, 10)))
	return int(h.Sum32() % shardCount)
}

// Insert adds or replaces node under its key and updates the parent→children
// index. Safe for concurrent use by multiple seed-phase workers.
//
// Size/flag counters are adjusted on every call, not only the first: a
// later Insert on an already-present key (e.g. an MFT record replacing a
// zero-size USN overlay stub) must correct the previously-applied
// contribution rather than leave it stale, so the tree's final stats do
// not depend on phase ordering.
func (t *FileTree) Insert(node *TreeNode) {
	s := t.shards[shardIndex(node.Key)]
	s.mu.Lock()
	old, existed := s.nodes[node.Key]
	s.nodes[node.Key] = node
	s.mu.Unlock()

	if !existed {
		cs := t.childShards[childShardIndex(node.Key.ParentRecordNumber)]
		cs.mu.Lock()
		cs.children[node.Key.ParentRecordNumber] = append(cs.children[node.Key.ParentRecordNumber], node.Key)
		cs.mu.Unlock()

		if node.IsDirectory {
			ds := t.dirShards[dirShardIndex(node.Key.RecordNumber)]
			ds.mu.Lock()
			ds.byRec[node.Key.RecordNumber] = node.Key
			ds.mu.Unlock()

			t.directories.Add(1)
		} else {
			t.files.Add(1)
		}
		if node.Orphaned {
			t.orphanedFiles.Add(1)
		}
	} else if old.Orphaned != node.Orphaned {
		if node.Orphaned {
			t.orphanedFiles.Add(1)
		} else {
			t.orphanedFiles.Add(-1)
		}
	}

	t.applySizeDelta(node.Key.RecordNumber, !existed, node.FileSize, node.AllocatedSize)
}

// applySizeDelta folds a record's size into TotalBytes/AllocatedBytes,
// deduped by record number per spec.md S3: a record shared by several
// hard links (distinct NodeKeys) contributes its size exactly once.
// newLink is true when this call is inserting a NodeKey that did not
// previously exist in the tree (a brand-new node, possibly a new hard
// link to an already-tracked record); it is false when it is replacing an
// existing key's data in place, which must correct the prior contribution.
func (t *FileTree) applySizeDelta(recordNumber uint64, newLink bool, fileSize, allocatedSize uint64) {
	sh := t.sizeShards[sizeShardIndex(recordNumber)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	state, tracked := sh.states[recordNumber]
	if !tracked {
		sh.states[recordNumber] = &recordSizeState{fileSize: fileSize, allocatedSize: allocatedSize, refCount: 1}
		t.totalBytes.Add(int64(fileSize))
		t.allocatedBytes.Add(int64(allocatedSize))
		return
	}

	if newLink {
		// Another hard link to a record already counted: refcount it but
		// do not add its size again.
		state.refCount++
		return
	}

	t.totalBytes.Add(int64(fileSize) - int64(state.fileSize))
	t.allocatedBytes.Add(int64(allocatedSize) - int64(state.allocatedSize))
	state.fileSize = fileSize
	state.allocatedSize = allocatedSize
}

// releaseSizeRef drops one hard link's reference to recordNumber's size
// ledger entry, removing its contribution from the totals only once the
// last referencing NodeKey is gone.
func (t *FileTree) releaseSizeRef(recordNumber uint64) {
	sh := t.sizeShards[sizeShardIndex(recordNumber)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	state, tracked := sh.states[recordNumber]
	if !tracked {
		return
	}
	state.refCount--
	if state.refCount > 0 {
		return
	}
	t.totalBytes.Add(-int64(state.fileSize))
	t.allocatedBytes.Add(-int64(state.allocatedSize))
	delete(sh.states, recordNumber)
}

// Remove deletes the node at key from the primary map and the
// parent→children index, decrementing its cached counters. Used by
// Reparent and by the change monitor's FILE_DELETE handling.
func (t *FileTree) Remove(key NodeKey) *TreeNode {
	s := t.shards[shardIndex(key)]
	s.mu.Lock()
	node, existed := s.nodes[key]
	if existed {
		delete(s.nodes, key)
	}
	s.mu.Unlock()
	if !existed {
		return nil
	}

	cs := t.childShards[childShardIndex(key.ParentRecordNumber)]
	cs.mu.Lock()
	siblings := cs.children[key.ParentRecordNumber]
	for i, k := range siblings {
		if k == key {
			cs.children[key.ParentRecordNumber] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	cs.mu.Unlock()

	if node.IsDirectory {
		ds := t.dirShards[dirShardIndex(key.RecordNumber)]
		ds.mu.Lock()
		if ds.byRec[key.RecordNumber] == key {
			delete(ds.byRec, key.RecordNumber)
		}
		ds.mu.Unlock()
		t.directories.Add(-1)
	} else {
		t.files.Add(-1)
	}
	t.releaseSizeRef(key.RecordNumber)
	if node.Orphaned {
		t.orphanedFiles.Add(-1)
	}

	return node
}

// Reparent moves the node at oldKey to live under newParentRecord,
// preserving its metadata. It is used by orphan resolution (new parent =
// OrphanContainerKey.RecordNumber) and by the change monitor's
// RENAME_NEW_NAME handling (new parent = the renamed-to directory).
func (t *FileTree) Reparent(oldKey NodeKey, newParentRecord uint64, orphaned bool) *TreeNode {
	node := t.Remove(oldKey)
	if node == nil {
		return nil
	}
	node.Key = NodeKey{RecordNumber: oldKey.RecordNumber, ParentRecordNumber: newParentRecord}
	node.Orphaned = orphaned
	t.Insert(node)
	return node
}

// GetByKey returns the node at key, or nil if absent.
func (t *FileTree) GetByKey(key NodeKey) *TreeNode {
	s := t.shards[shardIndex(key)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[key]
}

// GetChildren returns every node whose parent is parentRecordNumber.
func (t *FileTree) GetChildren(parentRecordNumber uint64) []*TreeNode {
	cs := t.childShards[childShardIndex(parentRecordNumber)]
	cs.mu.RLock()
	keys := append([]NodeKey(nil), cs.children[parentRecordNumber]...)
	cs.mu.RUnlock()

	children := make([]*TreeNode, 0, len(keys))
	for _, k := range keys {
		if n := t.GetByKey(k); n != nil {
			children = append(children, n)
		}
	}
	return children
}

// AllNodes returns every node in the tree. Used by search and the top-K
// helpers, which must scan the whole tree; callers should not assume any
// particular order.
func (t *FileTree) AllNodes() []*TreeNode {
	var all []*TreeNode
	for _, s := range t.shards {
		s.mu.RLock()
		for _, n := range s.nodes {
			all = append(all, n)
		}
		s.mu.RUnlock()
	}
	return all
}

// ParentRecordNumbers returns every distinct parent record number that has
// at least one child, used by the aggregation pass to group by parent.
func (t *FileTree) ParentRecordNumbers() []uint64 {
	var parents []uint64
	for _, cs := range t.childShards {
		cs.mu.RLock()
		for p := range cs.children {
			parents = append(parents, p)
		}
		cs.mu.RUnlock()
	}
	return parents
}

// maxPathDepth bounds build_path ascent; disk corruption can yield a
// parent cycle that would otherwise loop forever.
const maxPathDepth = 256

// BuildPathForKey ascends the parent chain from key to the root, joining
// names with "\" and prefixing the drive letter, e.g. `X:\a\b\name`. A
// cycle (or a chain exceeding maxPathDepth) terminates the ascent with a
// literal "<cyclic>" component.
func (t *FileTree) BuildPathForKey(key NodeKey) string {
	var components []string
	seen := make(map[NodeKey]bool)
	cur := key

	depth := 0
	for ; depth < maxPathDepth; depth++ {
		node := t.GetByKey(cur)
		if node == nil {
			components = append(components, "<orphaned>")
			break
		}
		if cur == RootKey {
			break
		}
		if seen[cur] {
			components = append(components, "<cyclic>")
			break
		}
		seen[cur] = true
		components = append(components, node.Name)

		parentKey := t.resolveParentKey(cur)
		if parentKey == cur {
			break
		}
		cur = parentKey
	}
	if depth == maxPathDepth {
		components = append(components, "<cyclic>")
	}

	for i, j := 0, len(components)-1; i < j; i, j = i+1, j-1 {
		components[i], components[j] = components[j], components[i]
	}

	path := t.driveLetter + ":"
	if len(components) > 0 {
		path += `\` + strings.Join(components, `\`)
	}
	return path
}

// BuildPath is BuildPathForKey for the common case of a directory record
// (directories cannot be hard-linked in NTFS, so a record number resolves
// to at most one NodeKey via the directory index).
func (t *FileTree) BuildPath(recordNumber uint64) string {
	if key, ok := t.dirKeyByRecord(recordNumber); ok {
		return t.BuildPathForKey(key)
	}
	for _, n := range t.AllNodes() {
		if n.Key.RecordNumber == recordNumber {
			return t.BuildPathForKey(n.Key)
		}
	}
	return ""
}

func (t *FileTree) dirKeyByRecord(recordNumber uint64) (NodeKey, bool) {
	ds := t.dirShards[dirShardIndex(recordNumber)]
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	key, ok := ds.byRec[recordNumber]
	return key, ok
}

// DirNodeByRecord returns the directory node for recordNumber, if any.
// Directories cannot be hard-linked in NTFS, so this is unambiguous.
func (t *FileTree) DirNodeByRecord(recordNumber uint64) (*TreeNode, bool) {
	key, ok := t.dirKeyByRecord(recordNumber)
	if !ok {
		return nil, false
	}
	node := t.GetByKey(key)
	return node, node != nil
}

// DirKeyByRecord returns the NodeKey of the directory at recordNumber, if
// any. Exported for the change monitor's rename handling, which needs the
// key itself (to Reparent it) rather than just the node.
func (t *FileTree) DirKeyByRecord(recordNumber uint64) (NodeKey, bool) {
	return t.dirKeyByRecord(recordNumber)
}

// NodeKeysByRecord returns every NodeKey currently tracking recordNumber,
// scanning the whole tree. A plain file record maps to one key per hard
// link; used by the change monitor's rename handling, which only gets told
// a record number and not which specific link moved.
func (t *FileTree) NodeKeysByRecord(recordNumber uint64) []NodeKey {
	var keys []NodeKey
	for _, s := range t.shards {
		s.mu.RLock()
		for k := range s.nodes {
			if k.RecordNumber == recordNumber {
				keys = append(keys, k)
			}
		}
		s.mu.RUnlock()
	}
	return keys
}

// resolveParentKey finds the NodeKey of cur's parent via the directory
// index (parents of a non-root node are, by NTFS invariant, directories).
func (t *FileTree) resolveParentKey(cur NodeKey) NodeKey {
	parentRecord := cur.ParentRecordNumber
	if parentRecord == RootRecordNumber {
		return RootKey
	}
	if key, ok := t.dirKeyByRecord(parentRecord); ok {
		return key
	}
	return OrphanContainerKey
}

// Search scans every node and returns up to max matches whose name matches
// pattern. Wildcards: leading-and-trailing "*" is substring, leading "*"
// is suffix, trailing "*" is prefix, otherwise exact substring. Matching
// is case-insensitive.
func (t *FileTree) Search(pattern string, max int) []*TreeNode {
	lowerPattern := strings.ToLower(pattern)
	prefix := strings.HasPrefix(lowerPattern, "*")
	suffix := strings.HasSuffix(lowerPattern, "*")
	core := strings.Trim(lowerPattern, "*")

	var results []*TreeNode
	for _, n := range t.AllNodes() {
		if len(results) >= max {
			break
		}
		name := strings.ToLower(n.Name)
		var match bool
		switch {
		case prefix && suffix:
			match = strings.Contains(name, core)
		case prefix:
			match = strings.HasSuffix(name, core)
		case suffix:
			match = strings.HasPrefix(name, core)
		default:
			match = strings.Contains(name, core)
		}
		if match {
			results = append(results, n)
		}
	}
	return results
}

// LargestFiles returns the k files with the largest FileSize, ties broken
// by path ascending.
func (t *FileTree) LargestFiles(k int) []*TreeNode {
	return t.topK(k, false)
}

// LargestDirectories returns the k directories with the largest TotalSize,
// ties broken by path ascending.
func (t *FileTree) LargestDirectories(k int) []*TreeNode {
	return t.topK(k, true)
}

func (t *FileTree) topK(k int, directories bool) []*TreeNode {
	var candidates []*TreeNode
	for _, n := range t.AllNodes() {
		if n.IsDirectory == directories && n.Key != RootKey && n.Key != OrphanContainerKey {
			candidates = append(candidates, n)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		si, sj := size(candidates[i], directories), size(candidates[j], directories)
		if si != sj {
			return si > sj
		}
		return t.BuildPathForKey(candidates[i].Key) < t.BuildPathForKey(candidates[j].Key)
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k]
}

func size(n *TreeNode, directories bool) uint64 {
	if directories {
		return n.TotalSize
	}
	return n.FileSize
}

// Stats returns a snapshot of the tree's cached counters.
func (t *FileTree) Stats() Stats {
	return Stats{
		Files:           t.files.Load(),
		Directories:     t.directories.Load(),
		OrphanedFiles:   t.orphanedFiles.Load(),
		TotalBytes:      t.totalBytes.Load(),
		AllocatedBytes:  t.allocatedBytes.Load(),
		ErrorsRecovered: t.errorsRecovered.Load(),
	}
}

// RecordErrorRecovered increments the recoverable-error counter; called by
// the orchestrator whenever a per-record or journal-level recoverable
// error is swallowed rather than propagated.
func (t *FileTree) RecordErrorRecovered() {
	t.errorsRecovered.Add(1)
}
