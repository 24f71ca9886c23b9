package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/linkpulse/linkpulse/internal/model"
)

// Common errors for link repository operations.
var (
	ErrLinkNotFound = errors.New("link not found")
)

// GetLinkByShortCode retrieves a link with its full redirect configuration.
// This is the hot path for redirects.
func (r *Repository) GetLinkByShortCode(ctx context.Context, shortCode string) (*model.Link, error) {
	query := `
		SELECT id, short_code, original_url, default_target_url, state,
		       health_score, trust_score, rules, scripts,
		       max_clicks, max_clicks_per_day, valid_from, expires_at,
		       allowed_countries, blocked_countries,
		       total_clicks, unique_clicks, clicks_today, last_click_at,
		       owner_id, created_at, updated_at
		FROM links
		WHERE short_code = $1 AND deleted_at IS NULL
	`

	link, err := scanLink(r.pool.QueryRow(ctx, query, shortCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link by short code: %w", err)
	}

	return link, nil
}

// RegisterClick bumps the link's click counters in a single statement.
// uniqueVisit additionally bumps unique_clicks; clicks_today relies on a
// nightly reset job owned by the dashboard, so it only ever increments here.
func (r *Repository) RegisterClick(ctx context.Context, linkID string, uniqueVisit bool) error {
	query := `
		UPDATE links
		SET total_clicks = total_clicks + 1,
		    clicks_today = clicks_today + 1,
		    unique_clicks = unique_clicks + CASE WHEN $2 THEN 1 ELSE 0 END,
		    last_click_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, linkID, uniqueVisit)
	if err != nil {
		return fmt.Errorf("failed to register click: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// UpdateLinkState transitions a link to a new lifecycle state.
func (r *Repository) UpdateLinkState(ctx context.Context, linkID string, state model.LinkState) error {
	query := `
		UPDATE links
		SET state = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, linkID, state)
	if err != nil {
		return fmt.Errorf("failed to update link state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// scanLink scans a single row into a Link model, decoding the JSONB rule
// and script columns. A broken rules or scripts document degrades to an
// empty set rather than failing the whole lookup.
func scanLink(row pgx.Row) (*model.Link, error) {
	var (
		link        model.Link
		rulesJSON   []byte
		scriptsJSON []byte
	)

	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.OriginalURL,
		&link.DefaultTargetURL,
		&link.State,
		&link.HealthScore,
		&link.TrustScore,
		&rulesJSON,
		&scriptsJSON,
		&link.Limits.MaxClicks,
		&link.Limits.MaxClicksPerDay,
		&link.Limits.ValidFrom,
		&link.Limits.ExpiresAt,
		&link.Limits.AllowedCountries,
		&link.Limits.BlockedCountries,
		&link.TotalClicks,
		&link.UniqueClicks,
		&link.ClicksToday,
		&link.LastClickAt,
		&link.OwnerID,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &link.Rules); err != nil {
			link.Rules = nil
		}
	}
	if len(scriptsJSON) > 0 {
		if err := json.Unmarshal(scriptsJSON, &link.Scripts); err != nil {
			link.Scripts = nil
		}
	}

	return &link, nil
}
