package renewal_service

import (
	"context"
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

// RenewalService keeps files alive past the network's retention window.
// Each cycle it refreshes stale balance snapshots, selects files whose
// expiry falls inside the lookahead window, charges one renewal per
// cycle, and resubmits every blob: fetch, verify, disperse again, then
// swap certificates atomically. One file failing never blocks the rest.
type RenewalService struct {
	fileDAO    *dao.FileDAO
	chunkDAO   *dao.FileChunkDAO
	paymentDAO *dao.PaymentRecordDAO
	network    blobnet.Network
	gate       *payment.Gate
	cache      *database.Cache

	lookahead        time.Duration
	retention        time.Duration
	balanceStaleness time.Duration
}

// NewRenewalService create renewal service
func NewRenewalService(fileDAO *dao.FileDAO, chunkDAO *dao.FileChunkDAO,
	paymentDAO *dao.PaymentRecordDAO, network blobnet.Network,
	gate *payment.Gate, cache *database.Cache, cfg *conf.Config) *RenewalService {

	return &RenewalService{
		fileDAO:          fileDAO,
		chunkDAO:         chunkDAO,
		paymentDAO:       paymentDAO,
		network:          network,
		gate:             gate,
		cache:            cache,
		lookahead:        time.Duration(cfg.Renewal.LookaheadHours) * time.Hour,
		retention:        time.Duration(cfg.Renewal.RetentionDays) * 24 * time.Hour,
		balanceStaleness: time.Duration(cfg.Renewal.BalanceStalenessHours) * time.Hour,
	}
}

// CycleReport outcome of one renewal pass
type CycleReport struct {
	Selected     int `json:"selected"`
	Renewed      int `json:"renewed"`
	Insufficient int `json:"insufficient"`
	Failed       int `json:"failed"`
}

// RunCycle execute one renewal pass
func (s *RenewalService) RunCycle(ctx context.Context) (*CycleReport, error) {
	s.refreshStaleBalances(ctx)

	now := time.Now()
	files, err := s.fileDAO.ListExpiringBetween(now, now.Add(s.lookahead))
	if err != nil {
		return nil, err
	}

	report := &CycleReport{Selected: len(files)}
	for i := range files {
		file := &files[i]
		err := s.renewFile(ctx, file)
		switch {
		case err == nil:
			report.Renewed++
		case errors.Is(err, common.ErrInsufficientBalance):
			report.Insufficient++
			log.Printf("Renewal skipped for %s: insufficient balance", file.FileID)
		default:
			report.Failed++
			log.Printf("Renewal failed for %s: %v", file.FileID, err)
		}
	}

	log.Printf("Renewal cycle: %d selected, %d renewed, %d insufficient, %d failed",
		report.Selected, report.Renewed, report.Insufficient, report.Failed)
	return report, nil
}

// refreshStaleBalances re-read ledger balances not checked recently.
// Display-only data; payment decisions always hit the ledger directly.
func (s *RenewalService) refreshStaleBalances(ctx context.Context) {
	if s.gate.Bypass() {
		return
	}
	cutoff := time.Now().Add(-s.balanceStaleness)
	files, err := s.fileDAO.ListStaleBalance(cutoff)
	if err != nil {
		log.Printf("Balance refresh skipped: %v", err)
		return
	}
	for i := range files {
		file := &files[i]
		balance, err := s.gate.Balance(ctx, file.PayerAddress)
		if err != nil {
			log.Printf("Balance refresh failed for %s: %v", file.FileID, err)
			continue
		}
		now := time.Now()
		err = s.fileDAO.UpdateFields(file.FileID, map[string]interface{}{
			"contract_balance":   balance,
			"last_balance_check": now,
		})
		if err != nil {
			log.Printf("Balance refresh update failed for %s: %v", file.FileID, err)
		}
	}
}

// renewFile charge and resubmit one file. The new expiry extends from
// the old one, so renewal timing never erodes the retention period.
func (s *RenewalService) renewFile(ctx context.Context, file *model.File) error {
	newExpiry := file.Expiry.Add(s.retention)

	if err := s.chargeCycle(ctx, file); err != nil {
		return err
	}

	switch file.ChunkType {
	case model.ChunkTypeSingle:
		if err := s.renewSingle(ctx, file, newExpiry); err != nil {
			return err
		}
	case model.ChunkTypeMulti:
		if err := s.renewChunked(ctx, file, newExpiry); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown chunk type %q for %s", file.ChunkType, file.FileID)
	}

	s.cache.Delete(ctx, database.CacheKeyFileInfo(file.FileID))
	log.Printf("Renewed %s until %s", file.FileID, newExpiry.Format(time.RFC3339))
	return nil
}

// chargeCycle deduct one renewal payment, at most once per cycle. The
// cycle is identified by the expiry it extends; a payment record for it
// means a previous attempt already charged and only the resubmission
// needs retrying.
func (s *RenewalService) chargeCycle(ctx context.Context, file *model.File) error {
	charged, err := s.paymentDAO.ExistsForCycle(file.FileID, file.Expiry)
	if err != nil {
		return err
	}
	if charged {
		return nil
	}

	chunkCount := file.TotalChunks
	if chunkCount < 1 {
		chunkCount = 1
	}
	quote := s.gate.EstimateCost(file.FileSize, int(s.retention/(24*time.Hour)), chunkCount)

	balance, err := s.gate.VerifySufficient(ctx, file.PayerAddress, quote)
	if err != nil {
		if errors.Is(err, common.ErrInsufficientBalance) {
			now := time.Now()
			_ = s.fileDAO.UpdateFields(file.FileID, map[string]interface{}{
				"payment_status":     model.PaymentStatusInsufficient,
				"contract_balance":   balance,
				"last_balance_check": now,
			})
		}
		return err
	}

	txRef, err := s.gate.DeductRenewal(ctx, file.PayerAddress, quote.Total, file.FileID)
	if err != nil {
		return err
	}

	rec := &model.PaymentRecord{
		FileID:      file.FileID,
		CycleExpiry: file.Expiry,
		Amount:      quote.Total,
		TxRef:       txRef,
	}
	if err := s.paymentDAO.Create(rec); err != nil {
		return err
	}

	fields := map[string]interface{}{
		"payment_status": model.PaymentStatusPaid,
	}
	// No ledger in bypass mode, so there is no balance to snapshot.
	if !s.gate.Bypass() {
		fields["contract_balance"] = balance - quote.Total
		fields["last_balance_check"] = time.Now()
	}
	return s.fileDAO.UpdateFields(file.FileID, fields)
}

// renewSingle fetch-verify-resubmit a single-blob file. The stored
// certificate is only replaced after the new one is issued.
func (s *RenewalService) renewSingle(ctx context.Context, file *model.File, newExpiry time.Time) error {
	data, err := s.network.Retrieve(ctx, file.BlobCertificate)
	if err != nil {
		return fmt.Errorf("fetch for renewal of %s: %w", file.FileID, err)
	}
	if !common.VerifyHash(data, file.FileHash) {
		return fmt.Errorf("payload of %s: %w", file.FileID, common.ErrIntegrity)
	}

	newCert, err := s.network.Disperse(ctx, data)
	if err != nil {
		return fmt.Errorf("resubmission of %s: %w", file.FileID, err)
	}

	return s.fileDAO.RenewSingle(file.FileID, newCert, newExpiry)
}

// renewChunked resubmit every chunk, then swap the whole certificate
// set and expiry in one transaction. A failure on any chunk leaves the
// stored certificates untouched.
func (s *RenewalService) renewChunked(ctx context.Context, file *model.File, newExpiry time.Time) error {
	chunks, err := s.chunkDAO.ListByFileID(file.FileID)
	if err != nil {
		return err
	}
	if len(chunks) != file.TotalChunks {
		return fmt.Errorf("%s has %d of %d chunks", file.FileID, len(chunks), file.TotalChunks)
	}

	newCerts := make([]dao.ChunkCert, 0, len(chunks))
	for i := range chunks {
		chunk := &chunks[i]
		data, err := s.network.Retrieve(ctx, chunk.Certificate)
		if err != nil {
			return fmt.Errorf("fetch chunk %d of %s: %w", chunk.ChunkIndex, file.FileID, err)
		}
		if !common.VerifyHash(data, chunk.ChunkHash) {
			return fmt.Errorf("chunk %d of %s: %w", chunk.ChunkIndex, file.FileID, common.ErrIntegrity)
		}
		cert, err := s.network.Disperse(ctx, data)
		if err != nil {
			return fmt.Errorf("resubmit chunk %d of %s: %w", chunk.ChunkIndex, file.FileID, err)
		}
		newCerts = append(newCerts, dao.ChunkCert{ChunkIndex: chunk.ChunkIndex, Certificate: cert})
	}

	return s.fileDAO.RenewChunked(file.FileID, newCerts, newExpiry)
}
