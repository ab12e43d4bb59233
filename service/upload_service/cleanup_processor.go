package upload_service

import (
	"log"
	"time"

	"perma-store/model/dao"
)

// CleanupProcessor reaps chunked uploads that were started but never
// finished. Incomplete records past the grace period are deleted along
// with their chunk rows; the dispersed blobs simply age out on the
// network.
type CleanupProcessor struct {
	fileDAO  *dao.FileDAO
	interval time.Duration
	grace    time.Duration
	stopChan chan struct{}
}

// NewCleanupProcessor create cleanup processor
func NewCleanupProcessor(fileDAO *dao.FileDAO, graceHours int) *CleanupProcessor {
	return &CleanupProcessor{
		fileDAO:  fileDAO,
		interval: time.Hour,
		grace:    time.Duration(graceHours) * time.Hour,
		stopChan: make(chan struct{}),
	}
}

// Start launch the background loop
func (p *CleanupProcessor) Start() {
	log.Printf("Cleanup processor started, grace period %s", p.grace)
	go p.run()
}

// Stop signal the loop to exit
func (p *CleanupProcessor) Stop() {
	close(p.stopChan)
}

func (p *CleanupProcessor) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.cleanup()
		case <-p.stopChan:
			log.Println("Cleanup processor stopped")
			return
		}
	}
}

func (p *CleanupProcessor) cleanup() {
	cutoff := time.Now().Add(-p.grace)
	n, err := p.fileDAO.DeleteAbandoned(cutoff, 100)
	if err != nil {
		log.Printf("Cleanup failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Cleaned up %d abandoned uploads", n)
	}
}
