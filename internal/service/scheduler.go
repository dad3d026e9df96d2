package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/leadscout/internal/config"
	"github.com/timmy/leadscout/internal/domain"
	"github.com/timmy/leadscout/internal/logger"
	"github.com/timmy/leadscout/internal/repository"
)

// ErrCrawlInFlight means a crawl for the market is already running; at most
// one run per market at a time.
var ErrCrawlInFlight = errors.New("crawl already in flight for market")

// Scheduler triggers market crawls on their configured intervals. Each run is
// recorded as a CrawlLog per (market, platform target); a run's failure is
// contained in its audit record and never stops the scheduler loop.
type Scheduler struct {
	markets   *config.Registry
	ingest    *IngestService
	crawlLogs *repository.CrawlLogRepository

	tickInterval time.Duration
	runTimeout   time.Duration
	postsPerRun  int

	mu       sync.Mutex
	lastRun  map[string]time.Time
	inFlight map[string]bool
	seeded   bool

	now func() time.Time
}

// NewScheduler creates a scheduler over the registered markets.
func NewScheduler(
	markets *config.Registry,
	ingest *IngestService,
	crawlLogs *repository.CrawlLogRepository,
	schedCfg *config.SchedulerConfig,
	crawlCfg *config.CrawlerConfig,
) *Scheduler {
	tickInterval := schedCfg.TickInterval
	if tickInterval == 0 {
		tickInterval = time.Minute
	}
	runTimeout := crawlCfg.RunTimeout
	if runTimeout == 0 {
		runTimeout = 10 * time.Minute
	}
	postsPerRun := crawlCfg.MaxPostsPerCrawl
	if postsPerRun <= 0 {
		postsPerRun = 100
	}
	return &Scheduler{
		markets:      markets,
		ingest:       ingest,
		crawlLogs:    crawlLogs,
		tickInterval: tickInterval,
		runTimeout:   runTimeout,
		postsPerRun:  postsPerRun,
		lastRun:      make(map[string]time.Time),
		inFlight:     make(map[string]bool),
		now:          time.Now,
	}
}

// Start runs the tick loop until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.seedLastRuns(ctx)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	// First tick immediately so due markets do not wait a full interval.
	s.Tick(ctx, s.now())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick crawls every market whose interval has elapsed. Exported so tests can
// drive the schedule with their own clock.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	for _, name := range s.markets.Names() {
		m := s.markets.Get(name)
		if !s.due(m, now) {
			continue
		}
		if err := s.Trigger(ctx, name, s.postsPerRun); err != nil && !errors.Is(err, ErrCrawlInFlight) {
			logger.FromContext(ctx).WithError(err).
				WithField(logger.FieldMarket, name).
				Error("Scheduled crawl failed to start")
		}
	}
}

// Trigger starts a crawl run for one market regardless of its interval. The
// in-flight guard still applies: a second trigger while a run is active gets
// ErrCrawlInFlight. Used by the manual crawl API and the CLI.
func (s *Scheduler) Trigger(ctx context.Context, market string, limit int) error {
	m := s.markets.Get(market)
	if m == nil {
		return fmt.Errorf("unknown market %q", market)
	}
	if limit <= 0 {
		limit = s.postsPerRun
	}

	s.mu.Lock()
	if s.inFlight[market] {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCrawlInFlight, market)
	}
	s.inFlight[market] = true
	s.lastRun[market] = s.now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight[market] = false
		s.mu.Unlock()
	}()

	for i := range m.Targets {
		s.runTarget(ctx, m, &m.Targets[i], limit)
	}
	return nil
}

func (s *Scheduler) due(m *config.MarketConfig, now time.Time) bool {
	interval := m.CrawlInterval
	if interval == 0 {
		interval = 6 * time.Hour
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[m.Name] {
		return false
	}
	last, ok := s.lastRun[m.Name]
	if !ok {
		return true
	}
	return now.Sub(last) >= interval
}

// runTarget executes one crawl run and writes its audit record. Every exit
// path completes the CrawlLog exactly once; a panic in the ingest path is
// contained as a failed run.
func (s *Scheduler) runTarget(ctx context.Context, m *config.MarketConfig, target *config.CrawlTarget, limit int) {
	crawlLog := &domain.CrawlLog{
		ID:        uuid.New().String(),
		Platform:  domain.Platform(target.Platform),
		Market:    m.Name,
		Status:    domain.CrawlStatusRunning,
		StartedAt: s.now().UTC(),
	}
	if err := s.crawlLogs.Start(ctx, crawlLog); err != nil {
		logger.FromContext(ctx).WithError(err).
			WithField(logger.FieldMarket, m.Name).
			Error("Failed to record crawl start")
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()
	runCtx = logger.SetCrawlID(runCtx, crawlLog.ID)
	runCtx = logger.SetMarket(runCtx, m.Name)
	runCtx = logger.SetPlatform(runCtx, target.Platform)

	stats, err := s.runIngest(runCtx, m, target, limit)

	status := domain.CrawlStatusSuccess
	var errMsg *string
	if err != nil {
		status = domain.CrawlStatusFailure
		msg := err.Error()
		errMsg = &msg
	}
	found, stored := 0, 0
	if stats != nil {
		found, stored = stats.Found, stats.Stored
	}

	if cerr := s.crawlLogs.Complete(ctx, crawlLog.ID, status, found, stored, errMsg, s.now().UTC()); cerr != nil {
		logger.FromContext(ctx).WithError(cerr).
			WithField(logger.FieldCrawlID, crawlLog.ID).
			Error("Failed to record crawl completion")
	}

	entry := logger.FromContext(runCtx).WithFields(logger.Fields{
		logger.FieldStatus: string(status),
		"found":            found,
		"stored":           stored,
	})
	if err != nil {
		entry.WithError(err).Warn("Crawl run failed")
	} else {
		entry.Info("Crawl run completed")
	}
}

func (s *Scheduler) runIngest(ctx context.Context, m *config.MarketConfig, target *config.CrawlTarget, limit int) (stats *IngestStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crawl panicked: %v", r)
		}
	}()
	return s.ingest.IngestTarget(ctx, m, target, limit)
}

// seedLastRuns initializes the per-market schedule from the audit trail so a
// restart does not immediately re-crawl markets that just ran.
func (s *Scheduler) seedLastRuns(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seeded {
		return
	}
	s.seeded = true

	for _, name := range s.markets.Names() {
		last, err := s.crawlLogs.LastCompleted(ctx, name)
		if err != nil || last == nil {
			continue
		}
		s.lastRun[name] = last.StartedAt
	}
}
