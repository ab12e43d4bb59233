package upload_service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"perma-store/blobnet"
	"perma-store/common"
	"perma-store/conf"
	"perma-store/database"
	"perma-store/model"
	"perma-store/model/dao"
	"perma-store/payment"
)

// UploadService orchestrates dispersal of new files: single-blob for
// payloads that fit a size bucket, strict-sequential chunked upload for
// everything larger.
type UploadService struct {
	fileDAO  *dao.FileDAO
	chunkDAO *dao.FileChunkDAO
	network  blobnet.Network
	gate     *payment.Gate
	cache    *database.Cache

	buckets       []int64 // blob size buckets in bytes, ascending
	retentionDays int
	maxChunks     int
	maxFileSize   int64
}

// NewUploadService create upload service
func NewUploadService(fileDAO *dao.FileDAO, chunkDAO *dao.FileChunkDAO,
	network blobnet.Network, gate *payment.Gate, cache *database.Cache,
	cfg *conf.Config) *UploadService {

	buckets := make([]int64, 0, len(cfg.Blobnet.BucketsMiB))
	for _, b := range cfg.Blobnet.BucketsMiB {
		buckets = append(buckets, b*1024*1024)
	}

	return &UploadService{
		fileDAO:       fileDAO,
		chunkDAO:      chunkDAO,
		network:       network,
		gate:          gate,
		cache:         cache,
		buckets:       buckets,
		retentionDays: cfg.Renewal.RetentionDays,
		maxChunks:     cfg.Uploader.MaxChunks,
		maxFileSize:   cfg.Uploader.MaxFileSize,
	}
}

// UploadResult outcome of a single-blob upload
type UploadResult struct {
	FileID      string        `json:"fileId"`
	Certificate string        `json:"certificate"`
	Expiry      time.Time     `json:"expiry"`
	Quote       payment.Quote `json:"quote"`
}

// UploadSingle disperse a whole payload as one blob. The payload must
// fit the largest configured bucket; larger files go through the
// chunked path.
func (s *UploadService) UploadSingle(ctx context.Context, fileID, fileName string,
	data []byte, durationDays int, payerAddress string) (*UploadResult, error) {

	if fileID == "" {
		return nil, common.NewValidationError("fileId", "required")
	}
	if len(data) == 0 {
		return nil, common.NewValidationError("file", "empty payload")
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, common.NewValidationError("file", "exceeds maximum file size")
	}
	if durationDays <= 0 {
		durationDays = s.retentionDays
	}

	if _, err := s.fileDAO.GetByFileID(fileID); err == nil {
		return nil, common.NewValidationError("fileId", "already exists")
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	plan, err := common.PlanChunks(int64(len(data)), s.buckets)
	if err != nil {
		return nil, err
	}
	if plan.Chunked {
		return nil, common.NewValidationError("file", "exceeds single blob capacity, use chunked upload")
	}

	quote := s.gate.EstimateCost(int64(len(data)), durationDays, 1)
	balance, err := s.gate.VerifySufficient(ctx, payerAddress, quote)
	if err != nil {
		return nil, err
	}

	fileHash := common.HashBytes(data)

	cert, err := s.network.Disperse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("dispersal of %s: %w", fileID, err)
	}

	now := time.Now()
	expiry := now.Add(time.Duration(s.retentionDays) * 24 * time.Hour)
	file := &model.File{
		FileID:          fileID,
		FileName:        fileName,
		FileSize:        int64(len(data)),
		FileHash:        fileHash,
		ChunkType:       model.ChunkTypeSingle,
		BlobCertificate: cert,
		ChunkSize:       plan.ChunkSize,
		TotalChunks:     1,
		Expiry:          expiry,
		DurationDays:    durationDays,
		PayerAddress:    payerAddress,
		PaymentStatus:   model.PaymentStatusPaid,
		PaymentAmount:   quote.Total,
		ContractBalance: balance,
		Status:          model.FileStatusSuccess,
	}
	if !s.gate.Bypass() {
		t := now
		file.LastBalanceCheck = &t
	}
	if err := s.fileDAO.Create(file); err != nil {
		return nil, err
	}

	log.Printf("Uploaded file %s: %d bytes, expiry %s", fileID, len(data), expiry.Format(time.RFC3339))
	return &UploadResult{
		FileID:      fileID,
		Certificate: cert,
		Expiry:      expiry,
		Quote:       quote,
	}, nil
}

// ChunkRequest one chunk of a multi-blob upload
type ChunkRequest struct {
	FileID       string
	FileName     string
	ChunkIndex   int
	TotalChunks  int
	IsLast       bool
	FileHash     string // required on the first chunk
	ChunkHash    string // optional, verified when present
	DurationDays int
	PayerAddress string
	Data         []byte
}

// ChunkResult outcome of one chunk submission
type ChunkResult struct {
	FileID      string     `json:"fileId"`
	ChunkIndex  int        `json:"chunkIndex"`
	Certificate string     `json:"certificate"`
	Completed   bool       `json:"completed"`
	Expiry      *time.Time `json:"expiry,omitempty"`
}

// UploadChunk accept one chunk in strict sequential order. The first
// chunk registers the file; the final chunk (or reaching the declared
// count) finalizes it and starts the retention clock.
func (s *UploadService) UploadChunk(ctx context.Context, r *ChunkRequest) (*ChunkResult, error) {
	if r.FileID == "" {
		return nil, common.NewValidationError("fileId", "required")
	}
	if len(r.Data) == 0 {
		return nil, common.NewValidationError("chunk", "empty payload")
	}
	if r.ChunkIndex < 0 {
		return nil, common.NewValidationError("chunkIndex", "must be non-negative")
	}
	if r.TotalChunks < 2 {
		return nil, common.NewValidationError("totalChunks", "chunked upload needs at least 2 chunks")
	}
	if r.TotalChunks > s.maxChunks {
		return nil, common.NewValidationError("totalChunks", "exceeds maximum chunk count")
	}
	if r.ChunkIndex >= r.TotalChunks {
		return nil, common.NewValidationError("chunkIndex", "beyond declared total")
	}

	chunkBucket := s.buckets[len(s.buckets)-1]
	if int64(len(r.Data)) > chunkBucket {
		return nil, common.NewValidationError("chunk", "exceeds blob size bucket")
	}

	if r.ChunkHash != "" && !common.VerifyHash(r.Data, r.ChunkHash) {
		return nil, fmt.Errorf("chunk %d of %s: %w", r.ChunkIndex, r.FileID, common.ErrIntegrity)
	}

	var file *model.File
	if r.ChunkIndex == 0 {
		f, err := s.registerChunkedFile(ctx, r, chunkBucket)
		if err != nil {
			return nil, err
		}
		file = f
	} else {
		f, err := s.fileDAO.GetByFileID(r.FileID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, common.NewValidationError("fileId", "chunked upload not initialized")
			}
			return nil, err
		}
		if f.ChunkType != model.ChunkTypeMulti {
			return nil, common.NewValidationError("fileId", "not a chunked upload")
		}
		if f.Status == model.FileStatusSuccess {
			return nil, common.NewValidationError("fileId", "upload already completed")
		}
		if r.TotalChunks != f.TotalChunks {
			return nil, common.NewValidationError("totalChunks", "does not match declared total")
		}
		file = f
	}

	if r.IsLast && r.ChunkIndex != r.TotalChunks-1 {
		return nil, common.NewValidationError("isLast", "set on a non-final chunk")
	}

	chunkHash := r.ChunkHash
	if chunkHash == "" {
		chunkHash = common.HashBytes(r.Data)
	}

	cert, err := s.network.Disperse(ctx, r.Data)
	if err != nil {
		return nil, fmt.Errorf("dispersal of chunk %d of %s: %w", r.ChunkIndex, r.FileID, err)
	}

	chunk := &model.FileChunk{
		FileID:      r.FileID,
		ChunkIndex:  r.ChunkIndex,
		Certificate: cert,
		ChunkSize:   int64(len(r.Data)),
		ChunkHash:   chunkHash,
	}
	if err := s.chunkDAO.Append(chunk); err != nil {
		if errors.Is(err, common.ErrDuplicateChunk) && r.ChunkIndex == r.TotalChunks-1 {
			// The final chunk was stored on an earlier attempt but the
			// completion step never ran. Finalize now instead of
			// rejecting the resubmission forever.
			return s.retryFinalize(ctx, file, r)
		}
		return nil, err
	}
	s.cache.Delete(ctx, database.CacheKeyFileInfo(r.FileID))

	result := &ChunkResult{
		FileID:      r.FileID,
		ChunkIndex:  r.ChunkIndex,
		Certificate: cert,
	}

	if r.ChunkIndex == r.TotalChunks-1 {
		expiry, err := s.finalizeChunkedFile(ctx, file)
		if err != nil {
			return nil, err
		}
		result.Completed = true
		result.Expiry = &expiry
	}

	return result, nil
}

// retryFinalize complete an upload whose chunks all landed but whose
// finalize step failed. Returns the stored certificate for the final
// chunk so the response matches a first-time submission.
func (s *UploadService) retryFinalize(ctx context.Context, file *model.File,
	r *ChunkRequest) (*ChunkResult, error) {

	stored, err := s.chunkDAO.CountByFileID(r.FileID)
	if err != nil {
		return nil, err
	}
	if int(stored) != r.TotalChunks {
		return nil, common.ErrDuplicateChunk
	}

	chunks, err := s.chunkDAO.ListByFileID(r.FileID)
	if err != nil {
		return nil, err
	}

	expiry, err := s.finalizeChunkedFile(ctx, file)
	if err != nil {
		return nil, err
	}
	return &ChunkResult{
		FileID:      r.FileID,
		ChunkIndex:  r.ChunkIndex,
		Certificate: chunks[len(chunks)-1].Certificate,
		Completed:   true,
		Expiry:      &expiry,
	}, nil
}

// registerChunkedFile create the pending record on the first chunk
func (s *UploadService) registerChunkedFile(ctx context.Context, r *ChunkRequest,
	chunkBucket int64) (*model.File, error) {

	if len(r.FileHash) != 64 {
		return nil, common.NewValidationError("fileHash", "must be a 64-character sha256 hex digest")
	}
	if _, err := hex.DecodeString(r.FileHash); err != nil {
		return nil, common.NewValidationError("fileHash", "not valid hex")
	}

	if existing, err := s.fileDAO.GetByFileID(r.FileID); err == nil {
		// A previous first-chunk attempt may have registered the upload
		// and then failed dispersal. Let the retry reuse the empty
		// pending record; anything else is a genuine duplicate.
		if existing.ChunkType != model.ChunkTypeMulti ||
			existing.Status != model.FileStatusPending ||
			existing.FileHash != r.FileHash ||
			existing.TotalChunks != r.TotalChunks {
			return nil, common.NewValidationError("fileId", "already exists")
		}
		stored, cerr := s.chunkDAO.CountByFileID(r.FileID)
		if cerr != nil {
			return nil, cerr
		}
		if stored != 0 {
			return nil, common.NewValidationError("fileId", "already exists")
		}
		return existing, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	estimatedSize := int64(r.TotalChunks) * chunkBucket
	if estimatedSize > s.maxFileSize {
		return nil, common.NewValidationError("totalChunks", "declared upload exceeds maximum file size")
	}

	durationDays := r.DurationDays
	if durationDays <= 0 {
		durationDays = s.retentionDays
	}

	quote := s.gate.EstimateCost(estimatedSize, durationDays, r.TotalChunks)
	balance, err := s.gate.VerifySufficient(ctx, r.PayerAddress, quote)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	file := &model.File{
		FileID:          r.FileID,
		FileName:        r.FileName,
		FileHash:        r.FileHash,
		ChunkType:       model.ChunkTypeMulti,
		ChunkSize:       chunkBucket,
		TotalChunks:     r.TotalChunks,
		DurationDays:    durationDays,
		PayerAddress:    r.PayerAddress,
		PaymentStatus:   model.PaymentStatusPaid,
		PaymentAmount:   quote.Total,
		ContractBalance: balance,
		Status:          model.FileStatusPending,
	}
	if !s.gate.Bypass() {
		t := now
		file.LastBalanceCheck = &t
	}
	if err := s.fileDAO.Create(file); err != nil {
		return nil, err
	}
	log.Printf("Registered chunked upload %s: %d chunks of up to %d bytes", r.FileID, r.TotalChunks, chunkBucket)
	return file, nil
}

// finalizeChunkedFile mark the upload complete and start retention
func (s *UploadService) finalizeChunkedFile(ctx context.Context, file *model.File) (time.Time, error) {
	total, err := s.chunkDAO.SumChunkSizes(file.FileID)
	if err != nil {
		return time.Time{}, err
	}
	if total > s.maxFileSize {
		return time.Time{}, common.NewValidationError("file", "assembled size exceeds maximum file size")
	}

	expiry := time.Now().Add(time.Duration(s.retentionDays) * 24 * time.Hour)
	err = s.fileDAO.UpdateFields(file.FileID, map[string]interface{}{
		"status":    model.FileStatusSuccess,
		"file_size": total,
		"expiry":    expiry,
	})
	if err != nil {
		return time.Time{}, err
	}

	s.chunkDAO.ReleaseLock(file.FileID)
	s.cache.Delete(ctx, database.CacheKeyFileInfo(file.FileID))

	log.Printf("Completed chunked upload %s: %d bytes in %d chunks, expiry %s",
		file.FileID, total, file.TotalChunks, expiry.Format(time.RFC3339))
	return expiry, nil
}
