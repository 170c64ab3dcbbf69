package scrape

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dmatteo/changuito/internal/domain/storefront"
)

// SchedulerConfig controls the recurring aggregation and refresh passes.
type SchedulerConfig struct {
	// ScrapeInterval is the period between full discovery runs across the
	// roster. Zero disables discovery scheduling.
	ScrapeInterval time.Duration
	// RefreshInterval is the period between stale-observation refresh
	// batches. Zero disables refresh scheduling.
	RefreshInterval time.Duration
	// RefreshBatchSize bounds how many observations one refresh batch
	// re-validates.
	RefreshBatchSize int
}

// Scheduler runs the aggregation pipeline unattended: periodic full
// discovery runs over the storefront roster and a rolling price refresh.
type Scheduler struct {
	orch      *Orchestrator
	refresher *Refresher
	cfg       SchedulerConfig
	lg        *zap.Logger
}

// NewScheduler wires a Scheduler.
func NewScheduler(orch *Orchestrator, refresher *Refresher, cfg SchedulerConfig, lg *zap.Logger) *Scheduler {
	return &Scheduler{
		orch:      orch,
		refresher: refresher,
		cfg:       cfg,
		lg:        lg,
	}
}

// Run blocks until ctx is cancelled. One refresh batch runs immediately so a
// restart does not wait a full interval to resume.
func (s *Scheduler) Run(ctx context.Context) {
	var refreshC, scrapeC <-chan time.Time

	if s.cfg.RefreshInterval > 0 {
		t := time.NewTicker(s.cfg.RefreshInterval)
		defer t.Stop()
		refreshC = t.C
		s.runRefresh(ctx)
	}
	if s.cfg.ScrapeInterval > 0 {
		t := time.NewTicker(s.cfg.ScrapeInterval)
		defer t.Stop()
		scrapeC = t.C
	}

	s.lg.Info("scheduler started",
		zap.Duration("scrape_interval", s.cfg.ScrapeInterval),
		zap.Duration("refresh_interval", s.cfg.RefreshInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.lg.Info("scheduler stopped")
			return
		case <-refreshC:
			s.runRefresh(ctx)
		case <-scrapeC:
			s.RunRoster(ctx)
		}
	}
}

// RunRoster runs one discovery pass over the whole roster. The master
// storefront goes first so followers find its catalog entries in place.
func (s *Scheduler) RunRoster(ctx context.Context) {
	for _, sf := range storefront.Roster() {
		if ctx.Err() != nil {
			return
		}
		_, err := s.orch.Run(ctx, RunConfig{
			Storefront: sf,
			Terms:      Terms(sf.Terms),
			Mode:       ModeTerms,
		})
		if err != nil {
			s.lg.Error("aggregation run failed", zap.String("storefront", sf.Name), zap.Error(err))
		}
	}
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	if _, err := s.refresher.RefreshBatch(ctx, s.cfg.RefreshBatchSize); err != nil {
		s.lg.Error("refresh batch failed", zap.Error(err))
	}
}
