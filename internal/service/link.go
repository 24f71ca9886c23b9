// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linkpulse/linkpulse/internal/cache"
	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/model"
	"github.com/linkpulse/linkpulse/internal/repository"
)

// Service errors.
var (
	ErrLinkNotFound = errors.New("link not found")
)

// LinkStore is the persistence surface the resolution path needs.
type LinkStore interface {
	GetLinkByShortCode(ctx context.Context, shortCode string) (*model.Link, error)
	RegisterClick(ctx context.Context, linkID string, uniqueVisit bool) error
	UpdateLinkState(ctx context.Context, linkID string, state model.LinkState) error
}

// ClickStore answers uniqueness and rate questions from the click history.
type ClickStore interface {
	HasPriorClick(ctx context.Context, linkID, ipHash string) (bool, error)
	CountRecentClicks(ctx context.Context, linkID string, windowSeconds int) (int64, error)
}

// LinkCache is the cache surface the resolution path needs.
type LinkCache interface {
	GetLink(ctx context.Context, shortCode string) (*model.Link, error)
	SetLink(ctx context.Context, link *model.Link) error
	IsNegativelyCached(ctx context.Context, shortCode string) (bool, error)
	SetNegativeCache(ctx context.Context, shortCode string) error
	RegisterVisitor(ctx context.Context, linkID, ipHash string) (bool, error)
	DeleteLink(ctx context.Context, shortCode string) error
}

// LinkService handles link resolution and click accounting.
type LinkService struct {
	store   LinkStore
	clicks  ClickStore
	cache   LinkCache
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewLinkService creates a new LinkService.
func NewLinkService(store LinkStore, clicks ClickStore, linkCache LinkCache, logger *slog.Logger, recorder metrics.Recorder) *LinkService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &LinkService{
		store:   store,
		clicks:  clicks,
		cache:   linkCache,
		logger:  logger.With("component", "service.link"),
		metrics: recorder,
	}
}

// ResolveLink loads a link by short code, cache-first. The link is returned
// regardless of its state: state and limit decisions belong to the redirect
// engine, which needs the full configuration either way.
func (s *LinkService) ResolveLink(ctx context.Context, shortCode string) (*model.Link, error) {
	// Step 1: Try cache
	cached, err := s.cache.GetLink(ctx, shortCode)
	if err == nil {
		s.metrics.IncRedirectCacheHit()
		return cached, nil
	}

	if errors.Is(err, cache.ErrCacheMiss) {
		s.metrics.IncRedirectCacheMiss()

		// Step 2: Check negative cache
		isNegative, _ := s.cache.IsNegativelyCached(ctx, shortCode)
		if isNegative {
			return nil, ErrLinkNotFound
		}
	} else {
		// Redis error, fall through to DB
		s.logger.Warn("link cache read failed", "short_code", shortCode, "error", err)
	}

	// Step 3: DB lookup
	link, err := s.store.GetLinkByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			_ = s.cache.SetNegativeCache(ctx, shortCode)
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("resolve link: %w", err)
	}

	// Step 4: Backfill cache
	if err := s.cache.SetLink(ctx, link); err != nil {
		s.logger.Warn("link cache backfill failed", "short_code", shortCode, "error", err)
	}

	return link, nil
}

// FirstVisit reports whether the hashed IP has never hit this link before.
// The Redis visitor set answers in O(1); when it is unavailable the click
// history is consulted instead.
func (s *LinkService) FirstVisit(ctx context.Context, linkID, ipHash string) bool {
	first, err := s.cache.RegisterVisitor(ctx, linkID, ipHash)
	if err == nil {
		return first
	}
	s.logger.Warn("visitor set unavailable, falling back to click history",
		"link_id", linkID,
		"error", err,
	)

	prior, err := s.clicks.HasPriorClick(ctx, linkID, ipHash)
	if err != nil {
		s.logger.Warn("prior click lookup failed", "link_id", linkID, "error", err)
		// Unknown: count as repeat so unique_clicks never overcounts
		return false
	}
	return !prior
}

// ClicksThisHour counts the link's clicks in the trailing hour. Feeds the
// hourly metric in script evaluation, which the link's own counters don't
// track.
func (s *LinkService) ClicksThisHour(ctx context.Context, linkID string) (int64, error) {
	return s.clicks.CountRecentClicks(ctx, linkID, 3600)
}

// PauseLink transitions the link to the paused state and evicts its cache
// entry so the next hit sees the new state. A failed eviction is logged, not
// returned: the entry ages out on its own TTL.
func (s *LinkService) PauseLink(ctx context.Context, linkID, shortCode string) error {
	if err := s.store.UpdateLinkState(ctx, linkID, model.LinkStatePaused); err != nil {
		return fmt.Errorf("pause link: %w", err)
	}
	if err := s.cache.DeleteLink(ctx, shortCode); err != nil {
		s.logger.Warn("link cache eviction failed", "short_code", shortCode, "error", err)
	}
	return nil
}

// RecordClick bumps the link's counters.
func (s *LinkService) RecordClick(ctx context.Context, linkID string, uniqueVisit bool) error {
	return s.store.RegisterClick(ctx, linkID, uniqueVisit)
}

// RecordClickAsync bumps counters without blocking the redirect path.
func (s *LinkService) RecordClickAsync(linkID string, uniqueVisit bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := s.RecordClick(ctx, linkID, uniqueVisit); err != nil {
			s.logger.Warn("failed to record click", "link_id", linkID, "error", err)
		}
	}()
}
