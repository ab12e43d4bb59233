package dao

import (
	"fmt"
	"time"

	"perma-store/model"

	"gorm.io/gorm"
)

// PaymentRecordDAO renewal deduction history
type PaymentRecordDAO struct {
	db *gorm.DB
}

// NewPaymentRecordDAO create payment record DAO
func NewPaymentRecordDAO(db *gorm.DB) *PaymentRecordDAO {
	return &PaymentRecordDAO{db: db}
}

// Create insert deduction record
func (d *PaymentRecordDAO) Create(rec *model.PaymentRecord) error {
	if err := d.db.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create payment record: %w", err)
	}
	return nil
}

// ExistsForCycle reports whether a deduction was already recorded for
// this file's renewal cycle, identified by the expiry it paid to extend.
func (d *PaymentRecordDAO) ExistsForCycle(fileID string, cycleExpiry time.Time) (bool, error) {
	var n int64
	err := d.db.Model(&model.PaymentRecord{}).
		Where("file_id = ? AND cycle_expiry = ?", fileID, cycleExpiry).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check payment cycle: %w", err)
	}
	return n > 0, nil
}

// ListByFileID deduction history for a file, newest first
func (d *PaymentRecordDAO) ListByFileID(fileID string) ([]model.PaymentRecord, error) {
	var recs []model.PaymentRecord
	err := d.db.Where("file_id = ?", fileID).Order("id desc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payment records: %w", err)
	}
	return recs, nil
}
