package database

// CacheKeyFileInfo cache key for a file metadata record. Writers that
// touch the record (chunk append, finalize, certificate swap) must
// delete this key.
func CacheKeyFileInfo(fileID string) string {
	return "file:info:" + fileID
}
