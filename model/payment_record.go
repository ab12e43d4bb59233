package model

import "time"

// PaymentRecord one renewal deduction against the payer's ledger balance.
// The unique key on (file_id, cycle_expiry) makes a deduction idempotent
// within a renewal cycle: retrying the same cycle finds the row and skips.
type PaymentRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID      string    `gorm:"column:file_id;type:varchar(128);uniqueIndex:uk_file_cycle,priority:1;comment:file identifier" json:"fileId"`
	CycleExpiry time.Time `gorm:"column:cycle_expiry;uniqueIndex:uk_file_cycle,priority:2;comment:expiry of the cycle this deduction paid for" json:"cycleExpiry"`
	Amount      int64     `gorm:"column:amount;comment:deducted ledger units" json:"amount"`
	TxRef       string    `gorm:"column:tx_ref;type:varchar(128);comment:ledger transaction reference" json:"txRef"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"createdAt"`
}

// TableName specify table name
func (PaymentRecord) TableName() string {
	return "tb_payment_record"
}
