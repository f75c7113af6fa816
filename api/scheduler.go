/*
scheduler.go - Background finance sync

PURPOSE:
  Periodically posts queued payroll and purchase actions to the ledger, so
  salaries and supplies show up in the books without a manual sync.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Each tick calls integration.Syncer.PostPending
  - Actions already posted are skipped by source reference, so ticks that
    overlap a manual POST /api/integrations/sync post nothing twice

CONFIGURATION:
  - Interval: How often to sync (config sync.interval, default 5m)
  - Enabled:  Whether the scheduler runs (config sync.enabled)

USAGE:
  scheduler := NewSyncScheduler(syncer, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - integrations.go: SyncFinance endpoint (manual sync)
  - integration/sync.go: Syncer
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/hospital-ledger/integration"
)

// SyncScheduler runs the finance sync on an interval.
type SyncScheduler struct {
	Syncer   *integration.Syncer
	Interval time.Duration
	Enabled  bool

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSyncScheduler creates an enabled scheduler with a five minute interval.
func NewSyncScheduler(syncer *integration.Syncer, log *zap.Logger) *SyncScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncScheduler{
		Syncer:   syncer,
		Interval: 5 * time.Minute,
		Enabled:  true,
		log:      log.Named("scheduler"),
	}
}

// Start begins the scheduler. It syncs once immediately.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.log.Info("started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for a running sync to finish.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.log.Info("stopped")
	}
}

func (s *SyncScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs one sync, outside the ticker.
func (s *SyncScheduler) RunNow(ctx context.Context) (integration.SyncReport, error) {
	rep, err := s.Syncer.PostPending(ctx)
	if err != nil {
		s.log.Warn("sync failed", zap.Error(err))
		return rep, err
	}
	if rep.Posted > 0 || rep.Failed > 0 {
		s.log.Info("sync completed",
			zap.Int("posted", rep.Posted),
			zap.Int("skipped", rep.Skipped),
			zap.Int("failed", rep.Failed))
	}
	return rep, nil
}
