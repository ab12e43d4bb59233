package model

import "time"

// ChunkType how the file payload maps onto network blobs
type ChunkType string

const (
	ChunkTypeSingle ChunkType = "single" // one blob holds the whole file
	ChunkTypeMulti  ChunkType = "multi"  // payload split across chunk blobs
)

// FileStatus upload lifecycle status
type FileStatus string

const (
	FileStatusPending FileStatus = "pending" // chunked upload in progress
	FileStatusSuccess FileStatus = "success" // all payload dispersed
)

// PaymentStatus balance standing of the file's payer
type PaymentStatus string

const (
	PaymentStatusPending      PaymentStatus = "pending"
	PaymentStatusPaid         PaymentStatus = "paid"
	PaymentStatusInsufficient PaymentStatus = "insufficient"
)

// File stored file metadata
type File struct {
	ID               int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID           string        `gorm:"column:file_id;type:varchar(128);uniqueIndex;comment:caller-supplied file identifier" json:"fileId"`
	FileName         string        `gorm:"column:file_name;type:varchar(512);comment:original file name" json:"fileName"`
	FileSize         int64         `gorm:"column:file_size;comment:total payload size in bytes" json:"fileSize"`
	FileHash         string        `gorm:"column:file_hash;type:varchar(64);index;comment:sha256 of full payload" json:"fileHash"`
	ChunkType        ChunkType     `gorm:"column:chunk_type;type:varchar(16);comment:single or multi" json:"chunkType"`
	BlobCertificate  string        `gorm:"column:blob_certificate;type:text;comment:current certificate for single-blob files" json:"blobCertificate"`
	ChunkSize        int64         `gorm:"column:chunk_size;comment:blob bucket size used, bytes" json:"chunkSize"`
	TotalChunks      int           `gorm:"column:total_chunks;comment:expected chunk count" json:"totalChunks"`
	Expiry           time.Time     `gorm:"column:expiry;index;comment:network retention deadline" json:"expiry"`
	DurationDays     int           `gorm:"column:duration_days;comment:requested storage duration" json:"durationDays"`
	PayerAddress     string        `gorm:"column:payer_address;type:varchar(128);index;comment:ledger account charged for renewals" json:"payerAddress"`
	PaymentStatus    PaymentStatus `gorm:"column:payment_status;type:varchar(16);comment:pending paid insufficient" json:"paymentStatus"`
	PaymentAmount    int64         `gorm:"column:payment_amount;comment:quoted cost at upload, ledger units" json:"paymentAmount"`
	ContractBalance  int64         `gorm:"column:contract_balance;comment:last observed ledger balance" json:"contractBalance"`
	LastBalanceCheck *time.Time    `gorm:"column:last_balance_check;comment:when contract_balance was refreshed" json:"lastBalanceCheck"`
	Status           FileStatus    `gorm:"column:status;type:varchar(16);index;comment:pending or success" json:"status"`
	CreatedAt        time.Time     `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt        time.Time     `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specify table name
func (File) TableName() string {
	return "tb_file"
}

// IsExpired reports whether the retention deadline has passed at t.
func (f *File) IsExpired(t time.Time) bool {
	return f.Expiry.Before(t)
}
