package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/threatwatch/pipeline/internal/logger"
)

// Scheduler drives the ingestion service on a fixed interval. Ticks are
// never allowed to overlap: if a cycle is still running when the next tick
// fires, the tick is skipped.
type Scheduler struct {
	service  *Service
	interval time.Duration
	log      logger.Logger

	mu sync.Mutex // held for the duration of a cycle
}

// NewScheduler creates a scheduler for the ingestion service.
func NewScheduler(service *Service, interval time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{
		service:  service,
		interval: interval,
		log:      log,
	}
}

// Run blocks until ctx is cancelled, running one cycle immediately and one
// per tick thereafter. Cycles run off the ticker goroutine so a cycle that
// outlasts the interval makes the next tick hit the guard instead of
// queueing behind it.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	start := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.tick(ctx)
		}()
	}

	start()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.log.Info("Ingestion scheduler stopped")
			return nil
		case <-ticker.C:
			start()
		}
	}
}

// tick runs one cycle under the overlap guard.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.mu.TryLock() {
		s.log.Warn("Previous ingestion cycle still running, skipping tick")
		return
	}
	defer s.mu.Unlock()

	if err := s.service.RunCycle(ctx); err != nil {
		s.log.Error("Ingestion cycle failed", logger.Error(err))
	}
}
