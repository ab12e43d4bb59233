package payment

import (
	"context"
	"fmt"

	"perma-store/common"
	"perma-store/conf"

	"github.com/google/uuid"
)

// Quote the cost of keeping a file on the network for one cycle
type Quote struct {
	StorageCost int64 `json:"storageCost"` // bytes-duration component
	GasCost     int64 `json:"gasCost"`     // flat per-blob submission component
	Total       int64 `json:"total"`
}

// Gate payment checks in front of uploads and renewals. In bypass mode
// (payment disabled, local development) every check passes and deducts
// mint synthetic transaction references.
type Gate struct {
	ledger Ledger
	cfg    conf.PaymentConfig
}

// NewGate create payment gate
func NewGate(ledger Ledger, cfg conf.PaymentConfig) *Gate {
	return &Gate{ledger: ledger, cfg: cfg}
}

// Bypass reports whether payment enforcement is disabled
func (g *Gate) Bypass() bool {
	return !g.cfg.Enabled
}

// EstimateCost price a storage cycle: the byte-duration cost rounded up
// to whole storage units, plus a flat gas unit per blob submitted.
func (g *Gate) EstimateCost(sizeBytes int64, durationDays, chunkCount int) Quote {
	units := (sizeBytes + g.cfg.UnitBytes - 1) / g.cfg.UnitBytes
	if units < 1 {
		units = 1
	}
	blobs := int64(chunkCount)
	if blobs < 1 {
		blobs = 1
	}
	storage := units * g.cfg.PricePerUnitDay * int64(durationDays)
	gas := g.cfg.BaseGasUnit * blobs
	return Quote{
		StorageCost: storage,
		GasCost:     gas,
		Total:       storage + gas,
	}
}

// Balance read the payer's live contract balance. Zero in bypass mode.
func (g *Gate) Balance(ctx context.Context, address string) (int64, error) {
	if g.Bypass() {
		return 0, nil
	}
	return g.ledger.GetBalance(ctx, address)
}

// VerifySufficient check the payer's live contract balance against the
// quote. Returns the observed balance; common.ErrInsufficientBalance
// when it does not cover the total.
func (g *Gate) VerifySufficient(ctx context.Context, address string, q Quote) (int64, error) {
	if g.Bypass() {
		return 0, nil
	}
	balance, err := g.ledger.GetBalance(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("balance check for %s: %w", address, err)
	}
	if balance < q.Total {
		return balance, common.ErrInsufficientBalance
	}
	return balance, nil
}

// DeductRenewal charge one renewal cycle. Callers guard this with the
// per-cycle payment record so a cycle is never charged twice.
func (g *Gate) DeductRenewal(ctx context.Context, address string, amount int64, fileID string) (string, error) {
	if g.Bypass() {
		return "bypass-" + uuid.NewString(), nil
	}
	txRef, err := g.ledger.Deduct(ctx, address, amount, "renewal:"+fileID)
	if err != nil {
		return "", fmt.Errorf("renewal deduct for %s: %w", fileID, err)
	}
	return txRef, nil
}
