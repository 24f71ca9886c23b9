package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/linkpulse/linkpulse/internal/analytics"
	"github.com/linkpulse/linkpulse/internal/fraud"
	"github.com/linkpulse/linkpulse/internal/geo"
	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/model"
	"github.com/linkpulse/linkpulse/internal/redirect"
	"github.com/linkpulse/linkpulse/internal/script"
	"github.com/linkpulse/linkpulse/internal/service"
)

// webhookPublishTimeout bounds the fire-and-forget webhook fan-out started
// per resolved click.
const webhookPublishTimeout = 5 * time.Second

// LinkResolver is the slice of the link service the redirect handler needs.
type LinkResolver interface {
	ResolveLink(ctx context.Context, shortCode string) (*model.Link, error)
	FirstVisit(ctx context.Context, linkID, ipHash string) bool
	RecordClickAsync(linkID string, uniqueVisit bool)
	ClicksThisHour(ctx context.Context, linkID string) (int64, error)
	PauseLink(ctx context.Context, linkID, shortCode string) error
}

// FraudAnalyzer scores a hit before the redirect is issued.
type FraudAnalyzer interface {
	Analyze(ip, userAgent string, headers http.Header, ctx *redirect.Context) fraud.Result
}

// EventPublisher enqueues click events for asynchronous processing.
type EventPublisher interface {
	PublishAsync(event analytics.ClickEventPayload)
}

// ClickNotifier fans a recorded click out to webhook subscribers.
type ClickNotifier interface {
	PublishClickEvent(ctx context.Context, ownerID string, click *model.ClickEvent) error
}

// RedirectHandler resolves short codes and issues redirects.
type RedirectHandler struct {
	svc      LinkResolver
	detector FraudAnalyzer
	geo      geo.Resolver
	events   EventPublisher
	webhooks ClickNotifier
	ipSalt   string
	logger   *slog.Logger
	metrics  metrics.Recorder

	now func() time.Time
}

// NewRedirectHandler creates a new RedirectHandler. events and webhooks may
// be nil; clicks then resolve without the corresponding fan-out.
func NewRedirectHandler(svc LinkResolver, detector FraudAnalyzer, resolver geo.Resolver, events EventPublisher, webhooks ClickNotifier, ipSalt string, logger *slog.Logger, recorder metrics.Recorder) *RedirectHandler {
	if resolver == nil {
		resolver = geo.Unavailable{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RedirectHandler{
		svc:      svc,
		detector: detector,
		geo:      resolver,
		events:   events,
		webhooks: webhooks,
		ipSalt:   ipSalt,
		logger:   logger,
		metrics:  recorder,
		now:      time.Now,
	}
}

// Redirect handles GET /{shortCode}.
//
// The pipeline runs in a fixed order: resolve the link, extract the request
// context, score the hit, resolve the target. Denied hits are redirected to
// their fallback page without being recorded as clicks; allowed hits record
// the click and fan out to analytics and webhooks before redirecting.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")
	if shortCode == "" {
		h.writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")
		return
	}

	start := h.now()

	link, err := h.svc.ResolveLink(r.Context(), shortCode)
	if err != nil {
		h.handleResolveError(w, shortCode, err, time.Since(start))
		return
	}

	ip := redirect.ClientIP(r)
	loc := h.lookupLocation(r, ip)
	reqCtx := redirect.ExtractContext(r, loc, start)

	fraudRes := h.detector.Analyze(ip, r.UserAgent(), r.Header, &reqCtx)
	h.metrics.IncFraudClassified(fraudClass(fraudRes))

	resolution := redirect.ResolveTarget(link, &reqCtx, start)
	duration := time.Since(start)
	h.metrics.ObserveResolveDuration(duration)

	if resolution.Denied() {
		h.denyRedirect(w, r, shortCode, resolution, duration)
		return
	}
	if resolution.Outcome == redirect.OutcomeRule {
		h.metrics.IncRuleMatched()
	}

	h.runScripts(r.Context(), link, start)

	ipHash := analytics.HashIP(ip, h.ipSalt)
	unique := h.svc.FirstVisit(r.Context(), link.ID, ipHash)
	h.svc.RecordClickAsync(link.ID, unique)

	click := h.buildClickEvent(shortCode, link, &reqCtx, loc, resolution, fraudRes, ipHash, r, start, duration)
	if h.events != nil {
		h.events.PublishAsync(clickPayload(click))
	}
	h.notifyWebhooks(link.OwnerID, click)

	h.logger.Info("redirect_resolved",
		"short_code", shortCode,
		"outcome", resolution.Outcome,
		"rule_id", resolution.RuleID,
		"unique", unique,
		"fraud_score", fraudRes.Score,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	setSecurityHeaders(w)
	http.Redirect(w, r, resolution.URL, http.StatusFound)
}

// lookupLocation resolves the client IP to a location. Geo failures are
// advisory: the hit proceeds with an unknown country.
func (h *RedirectHandler) lookupLocation(r *http.Request, ip string) *geo.Location {
	loc, err := h.geo.Lookup(ip)
	if err == nil && loc != nil {
		return loc
	}
	if err != nil {
		h.logger.Debug("geo lookup failed", "error", err)
	}

	// A CDN-provided country beats no answer at all.
	if cc := analytics.ExtractCountryCode(r.Header.Get("CF-IPCountry")); cc != "" {
		return &geo.Location{Country: cc}
	}
	return nil
}

// denyRedirect sends a blocked hit to its fallback page. Denied hits are
// not recorded as clicks and do not reach analytics or webhooks.
func (h *RedirectHandler) denyRedirect(w http.ResponseWriter, r *http.Request, shortCode string, res redirect.Resolution, duration time.Duration) {
	switch res.Outcome {
	case redirect.OutcomeState:
		h.metrics.IncStateDenied(res.Reason)
	case redirect.OutcomeLimit:
		h.metrics.IncLimitDenied(res.Reason)
	}

	h.logger.Info("redirect_denied",
		"short_code", shortCode,
		"outcome", res.Outcome,
		"reason", res.Reason,
		"fallback", res.URL,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	setSecurityHeaders(w)
	http.Redirect(w, r, res.URL, http.StatusFound)
}

// runScripts evaluates the link's automation scripts against its live
// counters. The pause action is applied immediately so the next hit sees
// the new state; the remaining actions are surfaced through logs and
// metrics only.
func (h *RedirectHandler) runScripts(ctx context.Context, link *model.Link, now time.Time) {
	var overrides map[string]int
	if script.UsesField(link, script.FieldClicksThisHour) {
		count, err := h.svc.ClicksThisHour(ctx, link.ID)
		if err != nil {
			// Without the count the hourly conditions would fire against
			// zero; skip this evaluation instead.
			h.logger.Warn("hourly click count unavailable, skipping scripts",
				"short_code", link.ShortCode,
				"error", err,
			)
			return
		}
		overrides = map[string]int{script.OverrideClicksThisHour: int(count)}
	}

	for _, res := range script.Evaluate(link, now, overrides) {
		h.metrics.IncScriptTriggered(string(res.Action))
		h.logger.Info("script_triggered",
			"short_code", link.ShortCode,
			"script_id", res.ScriptID,
			"action", res.Action,
			"condition", res.Condition,
		)

		if res.Action == model.ActionPause {
			if err := h.svc.PauseLink(ctx, link.ID, link.ShortCode); err != nil {
				h.logger.Error("script pause failed",
					"short_code", link.ShortCode,
					"script_id", res.ScriptID,
					"error", err,
				)
			}
		}
	}
}

func (h *RedirectHandler) buildClickEvent(shortCode string, link *model.Link, reqCtx *redirect.Context, loc *geo.Location, res redirect.Resolution, fraudRes fraud.Result, ipHash string, r *http.Request, clickedAt time.Time, duration time.Duration) *model.ClickEvent {
	city := ""
	if loc != nil {
		city = loc.City
	}
	return &model.ClickEvent{
		ID:             ulid.Make().String(),
		ShortCode:      shortCode,
		LinkID:         link.ID,
		OwnerID:        link.OwnerID,
		IPHash:         ipHash,
		UserAgent:      analytics.TruncateUserAgent(r.UserAgent()),
		Referrer:       analytics.SanitizeReferrer(r.Header.Get("Referer")),
		Language:       reqCtx.Language,
		Country:        reqCtx.Country,
		City:           city,
		Device:         string(reqCtx.Device),
		OS:             reqCtx.OS,
		Browser:        reqCtx.Browser,
		Fingerprint:    fraudRes.Fingerprint,
		IsBot:          fraudRes.IsBot,
		IsSuspicious:   fraudRes.IsSuspicious,
		FraudScore:     fraudRes.Score,
		FraudReasons:   fraudRes.Reasons,
		RedirectedTo:   res.URL,
		RuleApplied:    res.RuleID,
		ResponseTimeMs: duration.Milliseconds(),
		ClickedAt:      clickedAt,
	}
}

// notifyWebhooks fans the click out to webhook subscribers without blocking
// the redirect response.
func (h *RedirectHandler) notifyWebhooks(ownerID string, click *model.ClickEvent) {
	if h.webhooks == nil || ownerID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookPublishTimeout)
		defer cancel()

		if err := h.webhooks.PublishClickEvent(ctx, ownerID, click); err != nil {
			h.logger.Warn("webhook publish failed",
				"short_code", click.ShortCode,
				"error", err,
			)
		}
	}()
}

// handleResolveError handles errors during link resolution.
func (h *RedirectHandler) handleResolveError(w http.ResponseWriter, shortCode string, err error, duration time.Duration) {
	if errors.Is(err, service.ErrLinkNotFound) {
		h.logger.Info("redirect_not_found",
			"short_code", shortCode,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		h.writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")
		return
	}

	h.logger.Error("redirect_error",
		"short_code", shortCode,
		"error", err,
		"duration_ms", float64(duration.Microseconds())/1000,
	)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
}

// writeError writes a JSON error response for redirect failures.
func (h *RedirectHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	setSecurityHeaders(w)
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Cache-Control", "private, max-age=0")
}

func fraudClass(res fraud.Result) string {
	switch {
	case res.IsBot:
		return "bot"
	case res.IsSuspicious:
		return "suspicious"
	default:
		return "clean"
	}
}

// clickPayload converts a click event into the compressed stream format.
func clickPayload(click *model.ClickEvent) analytics.ClickEventPayload {
	return analytics.ClickEventPayload{
		ShortCode:      click.ShortCode,
		LinkID:         click.LinkID,
		IPHash:         click.IPHash,
		UserAgent:      click.UserAgent,
		Referrer:       click.Referrer,
		Language:       click.Language,
		Country:        click.Country,
		City:           click.City,
		Device:         click.Device,
		OS:             click.OS,
		Browser:        click.Browser,
		Fingerprint:    click.Fingerprint,
		IsBot:          click.IsBot,
		IsSuspicious:   click.IsSuspicious,
		FraudScore:     click.FraudScore,
		FraudReasons:   click.FraudReasons,
		RedirectedTo:   click.RedirectedTo,
		RuleApplied:    click.RuleApplied,
		ResponseTimeMs: click.ResponseTimeMs,
		ClickedAt:      click.ClickedAt.UnixMilli(),
	}
}
