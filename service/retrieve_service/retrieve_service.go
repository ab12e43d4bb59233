package retrieve_service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"perma-store/blobnet"
	"perma-store/common"
	"perma-store/conf"
	"perma-store/database"
	"perma-store/model"
	"perma-store/model/dao"
)

// RetrieveService reads files back from the blob network: metadata
// lookups (redis-cached) and ordered streaming reassembly of payloads.
type RetrieveService struct {
	fileDAO    *dao.FileDAO
	chunkDAO   *dao.FileChunkDAO
	paymentDAO *dao.PaymentRecordDAO
	network    blobnet.Network
	cache      *database.Cache

	lookahead time.Duration
}

// NewRetrieveService create retrieve service
func NewRetrieveService(fileDAO *dao.FileDAO, chunkDAO *dao.FileChunkDAO,
	paymentDAO *dao.PaymentRecordDAO, network blobnet.Network,
	cache *database.Cache, cfg *conf.Config) *RetrieveService {

	return &RetrieveService{
		fileDAO:    fileDAO,
		chunkDAO:   chunkDAO,
		paymentDAO: paymentDAO,
		network:    network,
		cache:      cache,
		lookahead:  time.Duration(cfg.Renewal.LookaheadHours) * time.Hour,
	}
}

// GetFileInfo metadata lookup, served from cache when possible
func (s *RetrieveService) GetFileInfo(ctx context.Context, fileID string) (*model.File, error) {
	if fileID == "" {
		return nil, common.NewValidationError("fileId", "required")
	}

	key := database.CacheKeyFileInfo(fileID)
	var cached model.File
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	file, err := s.fileDAO.GetByFileID(fileID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, file)
	return file, nil
}

// StreamFile write the full payload to w in order. Retrieval is
// all-or-nothing: a completed, unexpired record with a gap-free chunk
// set is required before the first byte is written, and every chunk is
// verified against its stored digest before being forwarded.
func (s *RetrieveService) StreamFile(ctx context.Context, fileID string, w io.Writer) (*model.File, error) {
	file, err := s.fileDAO.GetByFileID(fileID)
	if err != nil {
		return nil, err
	}
	if file.Status != model.FileStatusSuccess {
		return nil, common.ErrNotFound
	}
	if file.IsExpired(time.Now()) {
		return nil, fmt.Errorf("file %s: %w", fileID, common.ErrExpired)
	}

	if file.ChunkType == model.ChunkTypeSingle {
		data, err := s.network.Retrieve(ctx, file.BlobCertificate)
		if err != nil {
			return nil, fmt.Errorf("retrieve %s: %w", fileID, err)
		}
		if !common.VerifyHash(data, file.FileHash) {
			return nil, fmt.Errorf("payload of %s: %w", fileID, common.ErrIntegrity)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("stream %s: %w", fileID, err)
		}
		return file, nil
	}

	chunks, err := s.chunkDAO.ListByFileID(fileID)
	if err != nil {
		return nil, err
	}
	// The DAO orders by index already; sort defensively before the gap check.
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	if len(chunks) != file.TotalChunks {
		return nil, fmt.Errorf("file %s has %d of %d chunks: %w",
			fileID, len(chunks), file.TotalChunks, common.ErrNotFound)
	}
	for i := range chunks {
		if chunks[i].ChunkIndex != i {
			return nil, fmt.Errorf("file %s chunk sequence broken at %d: %w",
				fileID, i, common.ErrNotFound)
		}
	}

	for i := range chunks {
		chunk := &chunks[i]
		data, err := s.network.Retrieve(ctx, chunk.Certificate)
		if err != nil {
			return nil, fmt.Errorf("retrieve chunk %d of %s: %w", chunk.ChunkIndex, fileID, err)
		}
		if !common.VerifyHash(data, chunk.ChunkHash) {
			return nil, fmt.Errorf("chunk %d of %s: %w", chunk.ChunkIndex, fileID, common.ErrIntegrity)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("stream chunk %d of %s: %w", chunk.ChunkIndex, fileID, err)
		}
	}
	return file, nil
}

// List cursor-paginated file listing
func (s *RetrieveService) List(cursor int64, limit int) ([]model.File, int64, error) {
	return s.fileDAO.ListWithCursor(cursor, limit)
}

// ListDueForRenewal completed files expiring within the lookahead window
func (s *RetrieveService) ListDueForRenewal() ([]model.File, error) {
	now := time.Now()
	return s.fileDAO.ListExpiringBetween(now, now.Add(s.lookahead))
}

// PaymentHistory renewal deductions for a file, newest first
func (s *RetrieveService) PaymentHistory(fileID string) ([]model.PaymentRecord, error) {
	if _, err := s.fileDAO.GetByFileID(fileID); err != nil {
		return nil, err
	}
	return s.paymentDAO.ListByFileID(fileID)
}

// Stats operational counters
type Stats struct {
	TotalFiles     int64 `json:"totalFiles"`
	PendingUploads int64 `json:"pendingUploads"`
	DueSoon        int64 `json:"dueSoon"`
}

// GetStats counters for the stats endpoint
func (s *RetrieveService) GetStats() (*Stats, error) {
	total, err := s.fileDAO.CountByStatus(model.FileStatusSuccess)
	if err != nil {
		return nil, err
	}
	pending, err := s.fileDAO.CountByStatus(model.FileStatusPending)
	if err != nil {
		return nil, err
	}
	due, err := s.fileDAO.CountDueBefore(time.Now().Add(s.lookahead))
	if err != nil {
		return nil, err
	}
	return &Stats{TotalFiles: total, PendingUploads: pending, DueSoon: due}, nil
}
