package dao

import (
	"errors"
	"fmt"
	"time"

	"perma-store/common"
	"perma-store/model"

	"gorm.io/gorm"
)

// FileDAO file metadata data access object
type FileDAO struct {
	db *gorm.DB
}

// NewFileDAO create file DAO
func NewFileDAO(db *gorm.DB) *FileDAO {
	return &FileDAO{db: db}
}

// Create insert file record
func (d *FileDAO) Create(file *model.File) error {
	if err := d.db.Create(file).Error; err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}
	return nil
}

// GetByFileID query file by its caller-supplied identifier
func (d *FileDAO) GetByFileID(fileID string) (*model.File, error) {
	var file model.File
	err := d.db.Where("file_id = ?", fileID).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query file: %w", err)
	}
	return &file, nil
}

// Update save full file record
func (d *FileDAO) Update(file *model.File) error {
	if err := d.db.Save(file).Error; err != nil {
		return fmt.Errorf("failed to update file record: %w", err)
	}
	return nil
}

// UpdateFields update selected columns by file identifier
func (d *FileDAO) UpdateFields(fileID string, fields map[string]interface{}) error {
	err := d.db.Model(&model.File{}).Where("file_id = ?", fileID).Updates(fields).Error
	if err != nil {
		return fmt.Errorf("failed to update file fields: %w", err)
	}
	return nil
}

// ListExpiringBetween completed files whose retention deadline falls
// inside [from, to), ordered soonest first.
func (d *FileDAO) ListExpiringBetween(from, to time.Time) ([]model.File, error) {
	var files []model.File
	err := d.db.Where("status = ? AND expiry >= ? AND expiry < ?",
		model.FileStatusSuccess, from, to).
		Order("expiry asc").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring files: %w", err)
	}
	return files, nil
}

// ListStaleBalance completed files whose ledger balance was last
// refreshed before cutoff (or never).
func (d *FileDAO) ListStaleBalance(cutoff time.Time) ([]model.File, error) {
	var files []model.File
	err := d.db.Where("status = ? AND (last_balance_check IS NULL OR last_balance_check < ?)",
		model.FileStatusSuccess, cutoff).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale-balance files: %w", err)
	}
	return files, nil
}

// ListWithCursor cursor pagination over files, newest-id cursor style.
// Returns the page and the cursor for the next call (0 when exhausted).
func (d *FileDAO) ListWithCursor(cursor int64, limit int) ([]model.File, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var files []model.File
	q := d.db.Order("id asc").Limit(limit)
	if cursor > 0 {
		q = q.Where("id > ?", cursor)
	}
	if err := q.Find(&files).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list files: %w", err)
	}
	var next int64
	if len(files) == limit {
		next = files[len(files)-1].ID
	}
	return files, next, nil
}

// CountByStatus count files in a lifecycle status
func (d *FileDAO) CountByStatus(status model.FileStatus) (int64, error) {
	var n int64
	err := d.db.Model(&model.File{}).Where("status = ?", status).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

// CountDueBefore completed files expiring before the deadline
func (d *FileDAO) CountDueBefore(deadline time.Time) (int64, error) {
	var n int64
	err := d.db.Model(&model.File{}).
		Where("status = ? AND expiry < ?", model.FileStatusSuccess, deadline).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count due files: %w", err)
	}
	return n, nil
}

// RenewSingle swap a single-blob file's certificate and push its expiry,
// atomically. The old certificate stays valid until this commits.
func (d *FileDAO) RenewSingle(fileID, newCert string, newExpiry time.Time) error {
	err := d.db.Model(&model.File{}).Where("file_id = ?", fileID).Updates(map[string]interface{}{
		"blob_certificate": newCert,
		"expiry":           newExpiry,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to renew file %s: %w", fileID, err)
	}
	return nil
}

// ChunkCert a freshly issued certificate for one chunk position
type ChunkCert struct {
	ChunkIndex  int
	Certificate string
}

// RenewChunked replace every chunk certificate and push the file expiry
// in one transaction. Either the whole new certificate set lands or the
// record keeps the previous one.
func (d *FileDAO) RenewChunked(fileID string, certs []ChunkCert, newExpiry time.Time) error {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		for _, c := range certs {
			res := tx.Model(&model.FileChunk{}).
				Where("file_id = ? AND chunk_index = ?", fileID, c.ChunkIndex).
				Update("certificate", c.Certificate)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("chunk %d of %s missing during renewal", c.ChunkIndex, fileID)
			}
		}
		return tx.Model(&model.File{}).Where("file_id = ?", fileID).
			Update("expiry", newExpiry).Error
	})
	if err != nil {
		return fmt.Errorf("failed to renew chunked file %s: %w", fileID, err)
	}
	return nil
}

// DeleteAbandoned remove never-completed chunked uploads older than
// cutoff, together with their chunk rows. Returns files removed.
func (d *FileDAO) DeleteAbandoned(cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	var stale []model.File
	err := d.db.Where("status = ? AND chunk_type = ? AND updated_at < ?",
		model.FileStatusPending, model.ChunkTypeMulti, cutoff).
		Limit(batchSize).
		Find(&stale).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list abandoned uploads: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(stale))
	for _, f := range stale {
		ids = append(ids, f.FileID)
	}

	err = d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id IN ?", ids).Delete(&model.FileChunk{}).Error; err != nil {
			return err
		}
		return tx.Where("file_id IN ?", ids).Delete(&model.File{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete abandoned uploads: %w", err)
	}
	return int64(len(ids)), nil
}
