package filetree

import "github.com/deploymenttheory/go-ntfs/internal/ntfs"

// MetadataFetcher re-fetches one record's current size and modification
// time, the latter as raw FILETIME ticks (0 when unknown). It is narrowed
// here so filetree does not depend on internal/mft; the caller supplies
// the implementation.
type MetadataFetcher interface {
	FetchSizeAndMTime(fileReferenceNumber uint64) (fileSize uint64, allocatedSize uint64, modified int64, ok bool)
}

// RefreshMetadata re-fetches the underlying MFT record for each key and
// updates FileSize/AllocatedSize/LastModifiedTime in place (a zero
// modification time from the fetcher leaves LastModifiedTime as it was).
// Keys whose fetch fails (deleted since the scan, or a recoverable parse
// error) are left unchanged. For callers that want fresher sizes without
// a full rescan.
func (t *FileTree) RefreshMetadata(keys []NodeKey, fetch MetadataFetcher) {
	for _, key := range keys {
		node := t.GetByKey(key)
		if node == nil {
			continue
		}
		fileSize, allocatedSize, modified, ok := fetch.FetchSizeAndMTime(node.FileReferenceNumber)
		if !ok {
			continue
		}

		s := t.shards[shardIndex(key)]
		s.mu.Lock()
		_, present := s.nodes[key]
		if present {
			s.nodes[key].FileSize = fileSize
			s.nodes[key].AllocatedSize = allocatedSize
			if modified > 0 {
				s.nodes[key].LastModifiedTime = ntfs.FileTime(modified).Time()
			}
		}
		s.mu.Unlock()
		if present {
			t.applySizeDelta(key.RecordNumber, false, fileSize, allocatedSize)
		}
	}
}
