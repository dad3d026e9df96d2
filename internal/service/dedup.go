package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/timmy/leadscout/internal/domain"
	"github.com/timmy/leadscout/internal/repository"
)

// Fingerprint computes the stable content hash for a post: title and body are
// trimmed, lower-cased, and internal whitespace collapsed before hashing, so
// semantically identical posts crawled at different times hash identically.
func Fingerprint(title, body string) string {
	normalized := normalizeText(title) + "\n" + normalizeText(body)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Deduplicator prevents reprocessing of previously seen posts. Identity
// (platform, post_id) is the hard gate; the content fingerprint is
// informational only, flagging probable reposts under a different post ID.
type Deduplicator struct {
	questions *repository.QuestionRepository
}

// NewDeduplicator creates a Deduplicator backed by the question store.
func NewDeduplicator(questions *repository.QuestionRepository) *Deduplicator {
	return &Deduplicator{questions: questions}
}

// IsDuplicate checks the exact (platform, post_id) identity against the store.
func (d *Deduplicator) IsDuplicate(ctx context.Context, platform domain.Platform, postID string) (bool, error) {
	return d.questions.ExistsByPostID(ctx, platform, postID)
}

// ContentSeen reports whether any stored question already carries this
// fingerprint. Never blocks ingestion; callers log the flag.
func (d *Deduplicator) ContentSeen(ctx context.Context, hash string) (bool, error) {
	return d.questions.ExistsByContentHash(ctx, hash)
}
