package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timmy/leadscout/internal/domain"
	"gorm.io/gorm"
)

func newQuestion(id, postID string, platform domain.Platform) *domain.Question {
	return &domain.Question{
		ID:          id,
		Platform:    platform,
		PostID:      postID,
		Title:       "How do I promote my book?",
		Body:        "First novel, zero budget.",
		Market:      "indie_authors",
		ContentHash: "hash-" + id,
		Status:      domain.QuestionStatusPending,
		CreatedAt:   time.Now().UTC(),
		CrawledAt:   time.Now().UTC(),
	}
}

func TestQuestionCreateDuplicateIdentity(t *testing.T) {
	repo := NewQuestionRepository(newTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, newQuestion("q-1", "p1", domain.PlatformReddit)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same (platform, post_id) is rejected as a duplicate.
	err := repo.Create(ctx, newQuestion("q-2", "p1", domain.PlatformReddit))
	if !errors.Is(err, ErrDuplicateQuestion) {
		t.Errorf("got %v, want ErrDuplicateQuestion", err)
	}

	// Same post_id on another platform is a distinct identity.
	if err := repo.Create(ctx, newQuestion("q-3", "p1", domain.PlatformQuora)); err != nil {
		t.Errorf("cross-platform insert failed: %v", err)
	}

	count, _ := repo.Count(ctx)
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestClaimForProcessing(t *testing.T) {
	repo := NewQuestionRepository(newTestDB(t))
	ctx := context.Background()

	q := newQuestion("q-1", "p1", domain.PlatformReddit)
	if err := repo.Create(ctx, q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claimed, err := repo.ClaimForProcessing(ctx, q.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Fatal("first claim must win")
	}

	claimed, err = repo.ClaimForProcessing(ctx, q.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Error("second claim must lose")
	}

	// Terminal states are never claimable.
	if err := repo.UpdateStatus(ctx, q.ID, domain.QuestionStatusAnswered); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claimed, _ = repo.ClaimForProcessing(ctx, q.ID)
	if claimed {
		t.Error("terminal question must not be claimable")
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	repo := NewQuestionRepository(newTestDB(t))
	err := repo.UpdateStatus(context.Background(), "missing", domain.QuestionStatusIgnored)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("got %v, want gorm.ErrRecordNotFound", err)
	}
}

func TestQuestionListFilters(t *testing.T) {
	repo := NewQuestionRepository(newTestDB(t))
	ctx := context.Background()

	a := newQuestion("q-1", "p1", domain.PlatformReddit)
	b := newQuestion("q-2", "p2", domain.PlatformReddit)
	b.Market = "nonprofits"
	c := newQuestion("q-3", "p3", domain.PlatformReddit)
	for _, q := range []*domain.Question{a, b, c} {
		if err := repo.Create(ctx, q); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := repo.UpdateStatus(ctx, c.ID, domain.QuestionStatusAnswered); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, err := repo.List(ctx, domain.QuestionStatusPending, "", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending = %d, want 2", len(pending))
	}

	nonprofits, err := repo.List(ctx, "", "nonprofits", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nonprofits) != 1 || nonprofits[0].ID != b.ID {
		t.Errorf("market filter returned %d rows", len(nonprofits))
	}

	byStatus, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byStatus["pending"] != 2 || byStatus["answered"] != 1 {
		t.Errorf("unexpected status counts: %v", byStatus)
	}
}

func TestExistsByPostIDAndContentHash(t *testing.T) {
	repo := NewQuestionRepository(newTestDB(t))
	ctx := context.Background()

	q := newQuestion("q-1", "p1", domain.PlatformReddit)
	if err := repo.Create(ctx, q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exists, err := repo.ExistsByPostID(ctx, domain.PlatformReddit, "p1")
	if err != nil || !exists {
		t.Errorf("ExistsByPostID = %v, %v; want true, nil", exists, err)
	}
	exists, err = repo.ExistsByPostID(ctx, domain.PlatformReddit, "p2")
	if err != nil || exists {
		t.Errorf("ExistsByPostID for unknown = %v, %v; want false, nil", exists, err)
	}

	exists, err = repo.ExistsByContentHash(ctx, q.ContentHash)
	if err != nil || !exists {
		t.Errorf("ExistsByContentHash = %v, %v; want true, nil", exists, err)
	}
}
