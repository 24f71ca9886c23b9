package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkpulse/linkpulse/internal/metrics"
)

const (
	// StreamKey is the Redis stream click events are published to.
	StreamKey = "stream:click_events"

	// DeadLetterStreamKey holds messages the consumer could not decode.
	DeadLetterStreamKey = "stream:click_events:dlq"

	// MaxStreamLen approximately caps the stream when consumers lag.
	MaxStreamLen = 100000

	// PublishTimeout bounds the async publish. The redirect response
	// never waits on it, but the goroutine should not linger either.
	PublishTimeout = 100 * time.Millisecond
)

// maxMetaField caps free-text fields before they enter the stream.
const maxMetaField = 500

// ClickEventPayload is the wire format on the stream. Keys are
// shortened since every click carries one of these.
type ClickEventPayload struct {
	ShortCode string `json:"sc"`
	LinkID    string `json:"lid"`
	IPHash    string `json:"ih"`
	UserAgent string `json:"ua,omitempty"`
	Referrer  string `json:"r,omitempty"`
	Language  string `json:"lng,omitempty"`

	Country string `json:"cc,omitempty"`
	City    string `json:"city,omitempty"`

	Device  string `json:"dev,omitempty"`
	OS      string `json:"os,omitempty"`
	Browser string `json:"br,omitempty"`

	Fingerprint  string   `json:"fp,omitempty"`
	IsBot        bool     `json:"bot,omitempty"`
	IsSuspicious bool     `json:"sus,omitempty"`
	FraudScore   int      `json:"fs,omitempty"`
	FraudReasons []string `json:"fr,omitempty"`

	RedirectedTo   string `json:"to"`
	RuleApplied    string `json:"rule,omitempty"`
	ResponseTimeMs int64  `json:"rt,omitempty"`

	// ClickedAt is Unix milliseconds.
	ClickedAt int64 `json:"t"`
}

// Publisher pushes click events onto the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a click event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "analytics.publisher"),
		metrics: recorder,
	}
}

// Publish appends one event to the stream and returns its stream ID.
func (p *Publisher) Publish(ctx context.Context, event ClickEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"payload": string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// PublishAsync is fire-and-forget: the caller returns immediately and
// publish failures only surface as a log line and a dropped counter.
func (p *Publisher) PublishAsync(event ClickEventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		id, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish click event",
				"short_code", event.ShortCode,
				"error", err,
			)
			p.metrics.IncAnalyticsEventPublished("dropped")
			return
		}

		p.logger.Debug("click event published",
			"short_code", event.ShortCode,
			"stream_id", id,
		)
		p.metrics.IncAnalyticsEventPublished("success")
	}()
}

// HashIP derives the visitor identifier: SHA-256 over IP plus salt,
// truncated to 16 hex chars. The salt is static so a visitor keeps the
// same hash for a link's lifetime, which uniqueness counting needs.
func HashIP(ip, salt string) string {
	sum := sha256.Sum256([]byte(ip + salt))
	return hex.EncodeToString(sum[:])[:16]
}

// SanitizeReferrer strips the query and fragment from a referrer before
// it is stored, then clips it. Unparseable referrers become empty.
func SanitizeReferrer(ref string) string {
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return clip(parsed.String(), maxMetaField)
}

// TruncateUserAgent clips a user agent to the stored maximum.
func TruncateUserAgent(ua string) string {
	return clip(ua, maxMetaField)
}

// ExtractCountryCode normalizes an edge-provided country header such as
// CF-IPCountry. Anything but a two-letter code becomes empty.
func ExtractCountryCode(header string) string {
	if len(header) != 2 {
		return ""
	}
	return strings.ToUpper(header)
}

// ExtractReferrerDomain reduces a referrer URL to its host, with
// "(direct)" for empty and "(unknown)" for unparseable input.
func ExtractReferrerDomain(ref string) string {
	if ref == "" {
		return "(direct)"
	}
	parsed, err := url.Parse(ref)
	if err != nil || parsed.Host == "" {
		return "(unknown)"
	}
	return parsed.Host
}

func clip(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
