package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/linkpulse/linkpulse/internal/model"
)

// ClickEventRepository provides database access for click events.
type ClickEventRepository struct {
	repo *Repository
}

// NewClickEventRepository creates a new ClickEventRepository.
func NewClickEventRepository(repo *Repository) *ClickEventRepository {
	return &ClickEventRepository{repo: repo}
}

// BulkInsert inserts multiple click events with idempotency via ON CONFLICT DO NOTHING.
// The raw IP is never persisted, only ip_hash.
func (r *ClickEventRepository) BulkInsert(ctx context.Context, events []*model.ClickEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO click_events (
			id, event_id, short_code, link_id,
			ip_hash, user_agent, referrer, language,
			country, city, device, os, browser,
			fingerprint, is_bot, is_suspicious, fraud_score, fraud_reasons,
			redirected_to, rule_applied, response_time_ms,
			clicked_at, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18,
			$19, $20, $21,
			$22, NOW()
		)
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.EventID,
			event.ShortCode,
			event.LinkID,
			event.IPHash,
			nullableString(event.UserAgent),
			nullableString(event.Referrer),
			nullableString(event.Language),
			nullableString(event.Country),
			nullableString(event.City),
			nullableString(event.Device),
			nullableString(event.OS),
			nullableString(event.Browser),
			nullableString(event.Fingerprint),
			event.IsBot,
			event.IsSuspicious,
			event.FraudScore,
			event.FraudReasons,
			event.RedirectedTo,
			nullableString(event.RuleApplied),
			event.ResponseTimeMs,
			event.ClickedAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	// Check for errors in batch execution
	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert event %d: %w", i, err)
		}
	}

	return nil
}

// HasPriorClick reports whether a click from the hashed IP was already
// recorded for the link. Fallback path for uniqueness when the visitor
// set in Redis is unavailable.
func (r *ClickEventRepository) HasPriorClick(ctx context.Context, linkID, ipHash string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM click_events WHERE link_id = $1 AND ip_hash = $2)`

	var exists bool
	if err := r.repo.pool.QueryRow(ctx, query, linkID, ipHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("check prior click: %w", err)
	}

	return exists, nil
}

// CountRecentClicks counts clicks for a link since the given interval,
// expressed in seconds. Used by the script engine's hourly metrics.
func (r *ClickEventRepository) CountRecentClicks(ctx context.Context, linkID string, windowSeconds int) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM click_events
		WHERE link_id = $1 AND clicked_at >= NOW() - make_interval(secs => $2)
	`

	var count int64
	if err := r.repo.pool.QueryRow(ctx, query, linkID, windowSeconds).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recent clicks: %w", err)
	}

	return count, nil
}

// nullableString returns nil for empty strings.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
