package dao

import (
	"fmt"
	"sync"

	"perma-store/common"
	"perma-store/model"

	"gorm.io/gorm"
)

// FileChunkDAO chunk data access object. Appends are serialized per
// file with an in-process keyed mutex; the unique index on
// (file_id, chunk_index) is the second line of defense.
type FileChunkDAO struct {
	db    *gorm.DB
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileChunkDAO create chunk DAO
func NewFileChunkDAO(db *gorm.DB) *FileChunkDAO {
	return &FileChunkDAO{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

func (d *FileChunkDAO) lockFor(fileID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[fileID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[fileID] = l
	}
	return l
}

// ReleaseLock drop the per-file mutex once the upload is finished,
// so the map does not grow without bound.
func (d *FileChunkDAO) ReleaseLock(fileID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.locks, fileID)
}

// Append store a chunk, enforcing strict sequential order: the incoming
// index must equal the count already stored. Duplicates and gaps get
// distinct errors so callers can report them apart.
func (d *FileChunkDAO) Append(chunk *model.FileChunk) error {
	l := d.lockFor(chunk.FileID)
	l.Lock()
	defer l.Unlock()

	err := d.db.Transaction(func(tx *gorm.DB) error {
		var stored int64
		if err := tx.Model(&model.FileChunk{}).
			Where("file_id = ?", chunk.FileID).
			Count(&stored).Error; err != nil {
			return err
		}
		if int64(chunk.ChunkIndex) < stored {
			return common.ErrDuplicateChunk
		}
		if int64(chunk.ChunkIndex) > stored {
			return common.ErrChunkOutOfOrder
		}
		return tx.Create(chunk).Error
	})
	if err != nil {
		if err == common.ErrDuplicateChunk || err == common.ErrChunkOutOfOrder {
			return err
		}
		return fmt.Errorf("failed to append chunk %d of %s: %w", chunk.ChunkIndex, chunk.FileID, err)
	}
	return nil
}

// CountByFileID number of chunks stored for a file
func (d *FileChunkDAO) CountByFileID(fileID string) (int64, error) {
	var n int64
	err := d.db.Model(&model.FileChunk{}).Where("file_id = ?", fileID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// ListByFileID all chunks of a file ordered by position
func (d *FileChunkDAO) ListByFileID(fileID string) ([]model.FileChunk, error) {
	var chunks []model.FileChunk
	err := d.db.Where("file_id = ?", fileID).Order("chunk_index asc").Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return chunks, nil
}

// SumChunkSizes total payload bytes stored for a file
func (d *FileChunkDAO) SumChunkSizes(fileID string) (int64, error) {
	var total int64
	err := d.db.Model(&model.FileChunk{}).
		Where("file_id = ?", fileID).
		Select("COALESCE(SUM(chunk_size), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum chunk sizes: %w", err)
	}
	return total, nil
}
