package retrieve_service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"perma-store/common"
	"perma-store/conf"
	"perma-store/database"
	"perma-store/model"
	"perma-store/model/dao"

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

type fixture struct {
	svc      *RetrieveService
	db       *gorm.DB
	fileDAO  *dao.FileDAO
	chunkDAO *dao.FileChunkDAO
	netw     *fakeNetwork
}

func newFixture(t *testing.T) *fixture {
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
	fileDAO := dao.NewFileDAO(db)
	chunkDAO := dao.NewFileChunkDAO(db)
	paymentDAO := dao.NewPaymentRecordDAO(db)
	cfg := &conf.Config{
		Renewal: conf.RenewalConfig{RetentionDays: 14, LookaheadHours: 48},
	}
	return &fixture{
		svc:      NewRetrieveService(fileDAO, chunkDAO, paymentDAO, netw, nil, cfg),
		db:       db,
		fileDAO:  fileDAO,
		chunkDAO: chunkDAO,
		netw:     netw,
	}
}

func (f *fixture) seedSingle(t *testing.T, fileID string, data []byte, expiry time.Time) *model.File {
	t.Helper()
	cert, _ := f.netw.Disperse(context.Background(), data)
	file := &model.File{
		FileID:          fileID,
		FileName:        fileID + ".bin",
		FileSize:        int64(len(data)),
		FileHash:        common.HashBytes(data),
		ChunkType:       model.ChunkTypeSingle,
		BlobCertificate: cert,
		TotalChunks:     1,
		Expiry:          expiry,
		Status:          model.FileStatusSuccess,
	}
	if err := f.fileDAO.Create(file); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return file
}

func (f *fixture) seedChunked(t *testing.T, fileID string, parts [][]byte) *model.File {
	t.Helper()
	var total int64
	for i, part := range parts {
		cert, _ := f.netw.Disperse(context.Background(), part)
		err := f.chunkDAO.Append(&model.FileChunk{
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
		FileID:      fileID,
		FileSize:    total,
		FileHash:    "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		ChunkType:   model.ChunkTypeMulti,
		TotalChunks: len(parts),
		Expiry:      time.Now().Add(24 * time.Hour),
		Status:      model.FileStatusSuccess,
	}
	if err := f.fileDAO.Create(file); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return file
}

func TestStreamSingleBlob(t *testing.T) {
	f := newFixture(t)
	data := []byte("the whole payload")
	f.seedSingle(t, "f1", data, time.Now().Add(24*time.Hour))

	var buf bytes.Buffer
	file, err := f.svc.StreamFile(context.Background(), "f1", &buf)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Errorf("streamed payload differs: got %q", buf.Bytes())
	}
	if file.FileID != "f1" {
		t.Errorf("returned record: got %s", file.FileID)
	}
}

func TestStreamChunkedInOrder(t *testing.T) {
	f := newFixture(t)
	parts := [][]byte{[]byte("alpha-"), []byte("beta-"), []byte("gamma")}
	f.seedChunked(t, "f1", parts)

	var buf bytes.Buffer
	if _, err := f.svc.StreamFile(context.Background(), "f1", &buf); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	want := []byte("alpha-beta-gamma")
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("reassembly out of order: got %q, want %q", buf.Bytes(), want)
	}
}

func TestStreamNotFound(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer

	_, err := f.svc.StreamFile(context.Background(), "missing", &buf)
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStreamExpired(t *testing.T) {
	f := newFixture(t)
	f.seedSingle(t, "f1", []byte("data"), time.Now().Add(-time.Hour))

	var buf bytes.Buffer
	_, err := f.svc.StreamFile(context.Background(), "f1", &buf)
	if !errors.Is(err, common.ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("expired file must not leak any bytes")
	}
}

func TestStreamIncompleteUploadHidden(t *testing.T) {
	f := newFixture(t)
	file := f.seedChunked(t, "f1", [][]byte{[]byte("a"), []byte("b")})
	f.fileDAO.UpdateFields(file.FileID, map[string]interface{}{"status": model.FileStatusPending})

	var buf bytes.Buffer
	_, err := f.svc.StreamFile(context.Background(), "f1", &buf)
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound for pending upload, got %v", err)
	}
}

func TestStreamMissingChunkRowFails(t *testing.T) {
	f := newFixture(t)
	f.seedChunked(t, "f1", [][]byte{[]byte("a"), []byte("b"), []byte("c")})

	// Simulate a lost middle row
	if err := f.db.Where("file_id = ? AND chunk_index = ?", "f1", 1).
		Delete(&model.FileChunk{}).Error; err != nil {
		t.Fatalf("row delete failed: %v", err)
	}

	var buf bytes.Buffer
	_, err := f.svc.StreamFile(context.Background(), "f1", &buf)
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound on chunk gap, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("gap must be detected before any bytes are written")
	}
}

func TestStreamChunkFetchFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.seedChunked(t, "f1", [][]byte{[]byte("a"), []byte("b"), []byte("c")})

	chunks, _ := f.chunkDAO.ListByFileID("f1")
	f.netw.mu.Lock()
	delete(f.netw.blobs, chunks[2].Certificate)
	f.netw.mu.Unlock()

	var buf bytes.Buffer
	if _, err := f.svc.StreamFile(context.Background(), "f1", &buf); err == nil {
		t.Error("expected retrieval to fail when a chunk blob is gone")
	}
}

func TestStreamCorruptedPayloadRejected(t *testing.T) {
	f := newFixture(t)
	file := f.seedSingle(t, "f1", []byte("data"), time.Now().Add(24*time.Hour))

	f.netw.mu.Lock()
	f.netw.blobs[file.BlobCertificate] = []byte("tampered")
	f.netw.mu.Unlock()

	var buf bytes.Buffer
	_, err := f.svc.StreamFile(context.Background(), "f1", &buf)
	if !errors.Is(err, common.ErrIntegrity) {
		t.Errorf("expected ErrIntegrity, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("corrupted payload must not be forwarded")
	}
}

func TestGetFileInfo(t *testing.T) {
	f := newFixture(t)
	f.seedSingle(t, "f1", []byte("data"), time.Now().Add(24*time.Hour))

	file, err := f.svc.GetFileInfo(context.Background(), "f1")
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	if file.FileName != "f1.bin" {
		t.Errorf("file name: got %s", file.FileName)
	}

	if _, err := f.svc.GetFileInfo(context.Background(), "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.GetFileInfo(context.Background(), ""); !common.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestListDueForRenewalAndStats(t *testing.T) {
	f := newFixture(t)
	f.seedSingle(t, "due", []byte("a"), time.Now().Add(time.Hour))
	f.seedSingle(t, "later", []byte("b"), time.Now().Add(30*24*time.Hour))

	due, err := f.svc.ListDueForRenewal()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(due) != 1 || due[0].FileID != "due" {
		t.Errorf("expected only the due file, got %d", len(due))
	}

	stats, err := f.svc.GetStats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalFiles != 2 {
		t.Errorf("total files: got %d", stats.TotalFiles)
	}
	if stats.DueSoon != 1 {
		t.Errorf("due soon: got %d", stats.DueSoon)
	}
}
