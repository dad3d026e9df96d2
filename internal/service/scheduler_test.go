package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timmy/leadscout/internal/config"
	"github.com/timmy/leadscout/internal/crawler"
	"github.com/timmy/leadscout/internal/domain"
	"github.com/timmy/leadscout/internal/repository"
)

type schedulerFixture struct {
	scheduler *Scheduler
	source    *fakeSource
	questions *repository.QuestionRepository
	crawlLogs *repository.CrawlLogRepository
}

func newSchedulerFixture(t *testing.T, source *fakeSource) *schedulerFixture {
	t.Helper()
	db := newTestDB(t)
	questions := repository.NewQuestionRepository(db)
	comments := repository.NewCommentRepository(db)
	crawlLogs := repository.NewCrawlLogRepository(db)
	crawlers := crawler.NewRegistry()
	crawlers.RegisterSource(source)

	ingest := NewIngestService(questions, comments, NewDeduplicator(questions), crawlers, nil, nil)
	scheduler := NewScheduler(testRegistry(), ingest, crawlLogs,
		&config.SchedulerConfig{TickInterval: time.Minute},
		&config.CrawlerConfig{MaxPostsPerCrawl: 50, RunTimeout: time.Minute},
	)
	return &schedulerFixture{
		scheduler: scheduler,
		source:    source,
		questions: questions,
		crawlLogs: crawlLogs,
	}
}

func TestTriggerRecordsSuccessfulRun(t *testing.T) {
	source := &fakeSource{
		posts: []crawler.RawPost{
			{PostID: "p1", Title: "Need a book trailer", Body: "for my novel", Upvotes: 5},
			{PostID: "p2", Title: "unrelated", Body: "", Upvotes: 9},
		},
	}
	f := newSchedulerFixture(t, source)
	ctx := context.Background()

	if err := f.scheduler.Trigger(ctx, "indie_authors", 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logs, err := f.crawlLogs.List(ctx, "indie_authors", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 crawl log, got %d", len(logs))
	}
	log := logs[0]
	if log.Status != domain.CrawlStatusSuccess {
		t.Errorf("status = %s, want success", log.Status)
	}
	if log.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if log.ItemsFound != 1 || log.ItemsStored != 1 {
		t.Errorf("counts = found %d stored %d, want 1/1", log.ItemsFound, log.ItemsStored)
	}
	if log.Platform != domain.PlatformReddit {
		t.Errorf("platform = %s, want reddit", log.Platform)
	}
}

func TestTriggerFetchFailureRecordedNotPropagated(t *testing.T) {
	source := &fakeSource{fetchErr: errors.New("reddit unreachable")}
	f := newSchedulerFixture(t, source)
	ctx := context.Background()

	// A failed run is contained in its audit record.
	if err := f.scheduler.Trigger(ctx, "indie_authors", 50); err != nil {
		t.Fatalf("run failure must not propagate from Trigger: %v", err)
	}

	logs, _ := f.crawlLogs.List(ctx, "indie_authors", 10, 0)
	if len(logs) != 1 {
		t.Fatalf("expected 1 crawl log, got %d", len(logs))
	}
	log := logs[0]
	if log.Status != domain.CrawlStatusFailure {
		t.Errorf("status = %s, want failure", log.Status)
	}
	if log.CompletedAt == nil {
		t.Error("failed run must still be completed")
	}
	if log.ErrorMessage == nil {
		t.Error("failure reason not recorded")
	}
}

func TestTriggerUnknownMarket(t *testing.T) {
	f := newSchedulerFixture(t, &fakeSource{})
	if err := f.scheduler.Trigger(context.Background(), "no_such_market", 10); err == nil {
		t.Fatal("expected error for unknown market")
	}
}

func TestTriggerRejectsConcurrentRun(t *testing.T) {
	source := &fakeSource{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := newSchedulerFixture(t, source)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- f.scheduler.Trigger(ctx, "indie_authors", 10)
	}()

	<-source.started
	err := f.scheduler.Trigger(ctx, "indie_authors", 10)
	if !errors.Is(err, ErrCrawlInFlight) {
		t.Errorf("got %v, want ErrCrawlInFlight", err)
	}
	close(source.release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// Once the run completes, triggering works again.
	source.started = nil
	if err := f.scheduler.Trigger(ctx, "indie_authors", 10); err != nil {
		t.Errorf("trigger after completion failed: %v", err)
	}
}

func TestTickHonorsIntervals(t *testing.T) {
	source := &fakeSource{}
	f := newSchedulerFixture(t, source)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	now := base
	f.scheduler.now = func() time.Time { return now }

	// First tick: both markets have never run.
	f.scheduler.Tick(ctx, now)
	if got := source.calls(); got != 2 {
		t.Fatalf("first tick fetch calls = %d, want 2", got)
	}

	// Within every interval: nothing runs.
	now = base.Add(time.Hour)
	f.scheduler.Tick(ctx, now)
	if got := source.calls(); got != 2 {
		t.Errorf("tick inside interval ran a crawl: %d calls", got)
	}

	// indie_authors (6h) is due, nonprofits (12h) is not.
	now = base.Add(7 * time.Hour)
	f.scheduler.Tick(ctx, now)
	if got := source.calls(); got != 3 {
		t.Errorf("fetch calls = %d, want 3 after 6h interval elapsed", got)
	}

	// Both due again.
	now = base.Add(14 * time.Hour)
	f.scheduler.Tick(ctx, now)
	if got := source.calls(); got != 5 {
		t.Errorf("fetch calls = %d, want 5 after both intervals elapsed", got)
	}
}

func TestSeedLastRunsFromAuditTrail(t *testing.T) {
	source := &fakeSource{}
	f := newSchedulerFixture(t, source)
	ctx := context.Background()

	// A run recorded moments ago keeps the market off the schedule.
	now := time.Now().UTC()
	completed := now.Add(-time.Minute)
	crawlLog := &domain.CrawlLog{
		ID:        "cl-1",
		Platform:  domain.PlatformReddit,
		Market:    "indie_authors",
		Status:    domain.CrawlStatusRunning,
		StartedAt: completed,
	}
	if err := f.crawlLogs.Start(ctx, crawlLog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.crawlLogs.Complete(ctx, crawlLog.ID, domain.CrawlStatusSuccess, 0, 0, nil, completed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.scheduler.seedLastRuns(ctx)
	f.scheduler.Tick(ctx, now)

	// Only nonprofits (no history) runs.
	if got := source.calls(); got != 1 {
		t.Errorf("fetch calls = %d, want 1 (recently crawled market skipped)", got)
	}
}
