package model

import "time"

// FileChunk one dispersed chunk of a multi-blob file
type FileChunk struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID      string    `gorm:"column:file_id;type:varchar(128);uniqueIndex:uk_file_chunk,priority:1;comment:parent file identifier" json:"fileId"`
	ChunkIndex  int       `gorm:"column:chunk_index;uniqueIndex:uk_file_chunk,priority:2;comment:zero-based position" json:"chunkIndex"`
	Certificate string    `gorm:"column:certificate;type:text;comment:current blob certificate" json:"certificate"`
	ChunkSize   int64     `gorm:"column:chunk_size;comment:actual payload bytes in this chunk" json:"chunkSize"`
	ChunkHash   string    `gorm:"column:chunk_hash;type:varchar(64);comment:sha256 of chunk payload" json:"chunkHash"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specify table name
func (FileChunk) TableName() string {
	return "tb_file_chunk"
}
