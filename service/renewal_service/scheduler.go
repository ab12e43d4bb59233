package renewal_service

import (
	"context"
	"log"
	"time"
)

// Scheduler runs renewal cycles on a fixed interval
type Scheduler struct {
	service  *RenewalService
	interval time.Duration
	stopChan chan struct{}
}

// NewScheduler create renewal scheduler
func NewScheduler(service *RenewalService, intervalMinutes int) *Scheduler {
	return &Scheduler{
		service:  service,
		interval: time.Duration(intervalMinutes) * time.Minute,
		stopChan: make(chan struct{}),
	}
}

// Start launch the background loop. The first cycle runs after one
// interval, not at startup, so a crash-looping process does not hammer
// the ledger.
func (s *Scheduler) Start() {
	log.Printf("Renewal scheduler started, interval %s", s.interval)
	go s.run()
}

// Stop signal the loop to exit
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.service.RunCycle(context.Background()); err != nil {
				log.Printf("Renewal cycle error: %v", err)
			}
		case <-s.stopChan:
			log.Println("Renewal scheduler stopped")
			return
		}
	}
}
