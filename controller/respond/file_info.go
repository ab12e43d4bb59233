package respond

import (
	"time"

	"perma-store/model"
)

// FileInfo API view of a file record
type FileInfo struct {
	FileID          string    `json:"fileId"`
	FileName        string    `json:"fileName"`
	FileSize        int64     `json:"fileSize"`
	FileHash        string    `json:"fileHash"`
	ChunkType       string    `json:"chunkType"`
	TotalChunks     int       `json:"totalChunks"`
	ChunkSize       int64     `json:"chunkSize"`
	Expiry          time.Time `json:"expiry"`
	DurationDays    int       `json:"durationDays"`
	PayerAddress    string    `json:"payerAddress"`
	PaymentStatus   string    `json:"paymentStatus"`
	ContractBalance int64     `json:"contractBalance"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ToFileInfo convert model to API view
func ToFileInfo(f *model.File) *FileInfo {
	return &FileInfo{
		FileID:          f.FileID,
		FileName:        f.FileName,
		FileSize:        f.FileSize,
		FileHash:        f.FileHash,
		ChunkType:       string(f.ChunkType),
		TotalChunks:     f.TotalChunks,
		ChunkSize:       f.ChunkSize,
		Expiry:          f.Expiry,
		DurationDays:    f.DurationDays,
		PayerAddress:    f.PayerAddress,
		PaymentStatus:   string(f.PaymentStatus),
		ContractBalance: f.ContractBalance,
		Status:          string(f.Status),
		CreatedAt:       f.CreatedAt,
	}
}

// FileList paginated file listing
type FileList struct {
	Items      []*FileInfo `json:"items"`
	NextCursor int64       `json:"nextCursor"`
}

// ToFileList convert a page of records
func ToFileList(files []model.File, nextCursor int64) *FileList {
	items := make([]*FileInfo, 0, len(files))
	for i := range files {
		items = append(items, ToFileInfo(&files[i]))
	}
	return &FileList{Items: items, NextCursor: nextCursor}
}

// PaymentInfo API view of a renewal deduction
type PaymentInfo struct {
	FileID      string    `json:"fileId"`
	Amount      int64     `json:"amount"`
	TxRef       string    `json:"txRef"`
	CycleExpiry time.Time `json:"cycleExpiry"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ToPaymentList convert deduction history
func ToPaymentList(recs []model.PaymentRecord) []*PaymentInfo {
	out := make([]*PaymentInfo, 0, len(recs))
	for i := range recs {
		r := &recs[i]
		out = append(out, &PaymentInfo{
			FileID:      r.FileID,
			Amount:      r.Amount,
			TxRef:       r.TxRef,
			CycleExpiry: r.CycleExpiry,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out
}
