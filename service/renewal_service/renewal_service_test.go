package renewal_service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"perma-store/common"
	"perma-store/conf"
	"perma-store/database"
	"perma-store/model"
	"perma-store/model/dao"
	"perma-store/payment"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeNetwork struct {
	mu    sync.Mutex
	blobs map[string][]byte
	seq   int
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{blobs: map[string][]byte{}}
}

func (n *fakeNetwork) Disperse(ctx context.Context, data []byte) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	cert := fmt.Sprintf("cert-%d", n.seq)
	stored := make([]byte, len(data))
	copy(stored, data)
	n.blobs[cert] = stored
	return cert, nil
}

func (n *fakeNetwork) Retrieve(ctx context.Context, cert string) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	data, ok := n.blobs[cert]
	if !ok {
		return nil, common.ErrNotFound
	}
	return data, nil
}

func (n *fakeNetwork) drop(cert string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.blobs, cert)
}

func (n *fakeNetwork) corrupt(cert string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.blobs[cert] = append(n.blobs[cert], 'x')
}

type fakeLedger struct {
	balances map[string]int64
	deducts  int
}

func (l *fakeLedger) GetBalance(ctx context.Context, address string) (int64, error) {
	return l.balances[address], nil
}

func (l *fakeLedger) Deduct(ctx context.Context, address string, amount int64, memo string) (string, error) {
	if l.balances[address] < amount {
		return "", common.ErrInsufficientBalance
	}
	l.balances[address] -= amount
	l.deducts++
	return fmt.Sprintf("tx-%d", l.deducts), nil
}

type fixture struct {
	svc        *RenewalService
	fileDAO    *dao.FileDAO
	chunkDAO   *dao.FileChunkDAO
	paymentDAO *dao.PaymentRecordDAO
	netw       *fakeNetwork
	ledger     *fakeLedger
}

func newFixture(t *testing.T) *fixture {
	return newPaymentFixture(t, true)
}

// newPaymentFixture build a fixture with the payment gate enabled or in
// local bypass mode (no ledger).
func newPaymentFixture(t *testing.T, enabled bool) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	netw := newFakeNetwork()
	ledger := &fakeLedger{balances: map[string]int64{"alice": 1 << 30}}
	var gateLedger payment.Ledger
	if enabled {
		gateLedger = ledger
	}
	gate := payment.NewGate(gateLedger, conf.PaymentConfig{
		Enabled:         enabled,
		PricePerUnitDay: 1,
		UnitBytes:       1024,
		BaseGasUnit:     10,
	})

	cfg := &conf.Config{
		Renewal: conf.RenewalConfig{
			RetentionDays:         14,
			LookaheadHours:        48,
			BalanceStalenessHours: 6,
		},
	}

	fileDAO := dao.NewFileDAO(db)
	chunkDAO := dao.NewFileChunkDAO(db)
	paymentDAO := dao.NewPaymentRecordDAO(db)
	return &fixture{
		svc:        NewRenewalService(fileDAO, chunkDAO, paymentDAO, netw, gate, nil, cfg),
		fileDAO:    fileDAO,
		chunkDAO:   chunkDAO,
		paymentDAO: paymentDAO,
		netw:       netw,
		ledger:     ledger,
	}
}

const retention = 14 * 24 * time.Hour

// seedSingle store a single-blob file expiring within the lookahead window
func (f *fixture) seedSingle(t *testing.T, fileID string, data []byte) *model.File {
	t.Helper()
	cert, err := f.netw.Disperse(context.Background(), data)
	if err != nil {
		t.Fatalf("seed dispersal failed: %v", err)
	}
	file := &model.File{
		FileID:          fileID,
		FileSize:        int64(len(data)),
		FileHash:        common.HashBytes(data),
		ChunkType:       model.ChunkTypeSingle,
		BlobCertificate: cert,
		TotalChunks:     1,
		Expiry:          time.Now().Add(time.Hour).Truncate(time.Second),
		PayerAddress:    "alice",
		PaymentStatus:   model.PaymentStatusPaid,
		Status:          model.FileStatusSuccess,
	}
	if err := f.fileDAO.Create(file); err != nil {
		t.Fatalf("seed create failed: %v", err)
	}
	return file
}

// seedChunked store a multi-blob file with the given chunk payloads
func (f *fixture) seedChunked(t *testing.T, fileID string, parts [][]byte) *model.File {
	t.Helper()
	var total int64
	for i, part := range parts {
		cert, err := f.netw.Disperse(context.Background(), part)
		if err != nil {
			t.Fatalf("seed dispersal failed: %v", err)
		}
		err = f.chunkDAO.Append(&model.FileChunk{
			FileID:      fileID,
			ChunkIndex:  i,
			Certificate: cert,
			ChunkSize:   int64(len(part)),
			ChunkHash:   common.HashBytes(part),
		})
		if err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
		total += int64(len(part))
	}
	file := &model.File{
		FileID:        fileID,
		FileSize:      total,
		FileHash:      "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		ChunkType:     model.ChunkTypeMulti,
		TotalChunks:   len(parts),
		Expiry:        time.Now().Add(time.Hour).Truncate(time.Second),
		PayerAddress:  "alice",
		PaymentStatus: model.PaymentStatusPaid,
		Status:        model.FileStatusSuccess,
	}
	if err := f.fileDAO.Create(file); err != nil {
		t.Fatalf("seed create failed: %v", err)
	}
	return file
}

func TestRenewSingleBlob(t *testing.T) {
	f := newFixture(t)
	data := []byte("payload to keep alive")
	seeded := f.seedSingle(t, "f1", data)

	report, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if report.Selected != 1 || report.Renewed != 1 {
		t.Fatalf("report: %+v", report)
	}

	got, _ := f.fileDAO.GetByFileID("f1")
	if got.BlobCertificate == seeded.BlobCertificate {
		t.Error("certificate must be swapped for a fresh one")
	}
	wantExpiry := seeded.Expiry.Add(retention)
	if diff := got.Expiry.Sub(wantExpiry); diff < -time.Second || diff > time.Second {
		t.Errorf("expiry must extend from the old deadline, off by %s", diff)
	}

	// New certificate serves the same bytes
	blob, err := f.netw.Retrieve(context.Background(), got.BlobCertificate)
	if err != nil {
		t.Fatalf("new certificate unusable: %v", err)
	}
	if !bytes.Equal(blob, data) {
		t.Error("renewed payload differs")
	}

	// One deduction, recorded against the extended cycle
	if f.ledger.deducts != 1 {
		t.Errorf("deductions: got %d, want 1", f.ledger.deducts)
	}
	charged, _ := f.paymentDAO.ExistsForCycle("f1", seeded.Expiry)
	if !charged {
		t.Error("payment record for the cycle missing")
	}
}

func TestRenewChunked(t *testing.T) {
	f := newFixture(t)
	parts := [][]byte{[]byte("chunk-zero"), []byte("chunk-one"), []byte("chunk-two")}
	seeded := f.seedChunked(t, "f1", parts)

	before, _ := f.chunkDAO.ListByFileID("f1")

	report, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if report.Renewed != 1 {
		t.Fatalf("report: %+v", report)
	}

	after, _ := f.chunkDAO.ListByFileID("f1")
	for i := range after {
		if after[i].Certificate == before[i].Certificate {
			t.Errorf("chunk %d certificate not swapped", i)
		}
		blob, err := f.netw.Retrieve(context.Background(), after[i].Certificate)
		if err != nil {
			t.Fatalf("chunk %d new certificate unusable: %v", i, err)
		}
		if !bytes.Equal(blob, parts[i]) {
			t.Errorf("chunk %d payload differs", i)
		}
	}

	got, _ := f.fileDAO.GetByFileID("f1")
	if !got.Expiry.After(seeded.Expiry) {
		t.Error("expiry did not advance")
	}
}

func TestRenewInsufficientBalanceSkips(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedSingle(t, "f1", []byte("data"))
	f.ledger.balances["alice"] = 1

	report, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if report.Insufficient != 1 || report.Renewed != 0 {
		t.Fatalf("report: %+v", report)
	}

	got, _ := f.fileDAO.GetByFileID("f1")
	if got.BlobCertificate != seeded.BlobCertificate {
		t.Error("certificate must stay untouched on skipped renewal")
	}
	if !got.Expiry.Equal(seeded.Expiry) {
		t.Error("expiry must stay untouched on skipped renewal")
	}
	if got.PaymentStatus != model.PaymentStatusInsufficient {
		t.Errorf("payment status: got %s", got.PaymentStatus)
	}
	if f.ledger.deducts != 0 {
		t.Errorf("nothing should be deducted, got %d", f.ledger.deducts)
	}
	if charged, _ := f.paymentDAO.ExistsForCycle("f1", seeded.Expiry); charged {
		t.Error("no payment record should exist for a skipped cycle")
	}
}

func TestRenewDeductsOncePerCycle(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedSingle(t, "f1", []byte("data"))

	// A previous attempt already charged this cycle before failing
	err := f.paymentDAO.Create(&model.PaymentRecord{
		FileID:      "f1",
		CycleExpiry: seeded.Expiry,
		Amount:      24,
		TxRef:       "tx-earlier",
	})
	if err != nil {
		t.Fatalf("seed payment record failed: %v", err)
	}

	report, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if report.Renewed != 1 {
		t.Fatalf("report: %+v", report)
	}
	if f.ledger.deducts != 0 {
		t.Errorf("cycle must not be charged twice, got %d deductions", f.ledger.deducts)
	}

	got, _ := f.fileDAO.GetByFileID("f1")
	if got.BlobCertificate == seeded.BlobCertificate {
		t.Error("resubmission must still happen after a prior charge")
	}
}

func TestRenewChunkFailureLeavesCertificates(t *testing.T) {
	f := newFixture(t)
	parts := [][]byte{[]byte("chunk-zero"), []byte("chunk-one"), []byte("chunk-two")}
	seeded := f.seedChunked(t, "f1", parts)

	before, _ := f.chunkDAO.ListByFileID("f1")
	f.netw.drop(before[1].Certificate)

	report, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("report: %+v", report)
	}

	// No partial swap: every stored certificate is the original
	after, _ := f.chunkDAO.ListByFileID("f1")
	for i := range after {
		if after[i].Certificate != before[i].Certificate {
			t.Errorf("chunk %d certificate changed on failed renewal", i)
		}
	}
	got, _ := f.fileDAO.GetByFileID("f1")
	if !got.Expiry.Equal(seeded.Expiry) {
		t.Error("expiry must stay untouched on failed renewal")
	}

	// The charge for this cycle sticks; the retry skips the deduct
	if charged, _ := f.paymentDAO.ExistsForCycle("f1", seeded.Expiry); !charged {
		t.Error("payment record for the attempted cycle missing")
	}
	deductsAfterFirst := f.ledger.deducts

	f.netw.blobs[before[1].Certificate] = parts[1]
	report, err = f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("retry cycle failed: %v", err)
	}
	if report.Renewed != 1 {
		t.Fatalf("retry report: %+v", report)
	}
	if f.ledger.deducts != deductsAfterFirst {
		t.Error("retry must not charge the cycle again")
	}
}

func TestRenewIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	healthy := f.seedSingle(t, "healthy", []byte("fine"))
	corrupted := f.seedSingle(t, "corrupted", []byte("doomed"))
	f.netw.corrupt(corrupted.BlobCertificate)

	report, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if report.Renewed != 1 || report.Failed != 1 {
		t.Fatalf("report: %+v", report)
	}

	got, _ := f.fileDAO.GetByFileID("healthy")
	if got.BlobCertificate == healthy.BlobCertificate {
		t.Error("healthy file must renew despite sibling failure")
	}
	bad, _ := f.fileDAO.GetByFileID("corrupted")
	if bad.BlobCertificate != corrupted.BlobCertificate {
		t.Error("corrupted file must keep its certificate")
	}
}

func TestRenewBypassLeavesBalanceSnapshot(t *testing.T) {
	f := newPaymentFixture(t, false)
	seeded := f.seedSingle(t, "f1", []byte("data"))
	f.fileDAO.UpdateFields("f1", map[string]interface{}{"contract_balance": int64(7)})

	report, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if report.Renewed != 1 {
		t.Fatalf("report: %+v", report)
	}

	got, _ := f.fileDAO.GetByFileID("f1")
	if got.ContractBalance != 7 {
		t.Errorf("bypass renewal must leave the balance snapshot, got %d", got.ContractBalance)
	}
	if got.LastBalanceCheck != nil {
		t.Error("bypass renewal must not stamp a balance check")
	}
	if got.PaymentStatus != model.PaymentStatusPaid {
		t.Errorf("payment status: got %s", got.PaymentStatus)
	}

	// The cycle is still recorded, with a local tx reference
	recs, err := f.paymentDAO.ListByFileID("f1")
	if err != nil || len(recs) != 1 {
		t.Fatalf("payment records: %v, %v", recs, err)
	}
	if !strings.HasPrefix(recs[0].TxRef, "bypass-") {
		t.Errorf("tx reference: got %s", recs[0].TxRef)
	}
	if !recs[0].CycleExpiry.Equal(seeded.Expiry) {
		t.Error("cycle key must be the expiry being extended")
	}
}

func TestRenewSkipsFilesOutsideLookahead(t *testing.T) {
	f := newFixture(t)
	file := f.seedSingle(t, "far-out", []byte("data"))
	f.fileDAO.UpdateFields("far-out", map[string]interface{}{
		"expiry": time.Now().Add(30 * 24 * time.Hour),
	})
	_ = file

	report, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if report.Selected != 0 {
		t.Errorf("file outside lookahead selected: %+v", report)
	}
}
