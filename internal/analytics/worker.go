// Package analytics provides click event capture and processing.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/model"
)

// consumerGroup is the Redis consumer group shared by all worker replicas.
const consumerGroup = "click_ingest"

const (
	defaultBatchSize    = 500
	defaultBlockTimeout = 5 * time.Second
	defaultInsertTries  = 3
	defaultReclaimEvery = 10 * time.Second
	defaultReclaimIdle  = 30 * time.Second
	defaultDepthEvery   = 5 * time.Second

	// dlqMaxLen bounds the poison message stream.
	dlqMaxLen = 10000
)

// Repository defines the interface for click event persistence.
type Repository interface {
	BulkInsert(ctx context.Context, events []*model.ClickEvent) error
}

// Option tunes a Worker at construction time.
type Option func(*Worker)

// WithBatchSize sets the maximum events read per cycle.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithBlockTimeout sets how long a read blocks waiting for messages.
func WithBlockTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.blockTimeout = d
		}
	}
}

// WithReclaim sets how often stale pending entries are scanned and how
// long an entry must sit idle before another consumer may take it over.
func WithReclaim(every, idle time.Duration) Option {
	return func(w *Worker) {
		if every > 0 {
			w.reclaimEvery = every
		}
		if idle > 0 {
			w.reclaimIdle = idle
		}
	}
}

// WithDepthRefresh sets how often the queue depth gauge is refreshed.
func WithDepthRefresh(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.depthEvery = d
		}
	}
}

// Worker consumes the click event stream and bulk-inserts events into
// Postgres. Multiple replicas share the consumer group; each replica
// periodically reclaims entries a crashed sibling left pending.
type Worker struct {
	redis        *redis.Client
	repo         Repository
	logger       *slog.Logger
	metrics      metrics.Recorder
	consumerID   string
	batchSize    int
	blockTimeout time.Duration
	insertTries  int
	reclaimEvery time.Duration
	reclaimIdle  time.Duration
	depthEvery   time.Duration

	reclaimCursor string
	lastReclaim   time.Time
	lastDepth     time.Time

	mu       sync.Mutex
	running  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWorker creates a stream consumer identified by consumerID within the
// shared consumer group.
func NewWorker(client *redis.Client, repo Repository, logger *slog.Logger, consumerID string, recorder metrics.Recorder, opts ...Option) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	w := &Worker{
		redis:         client,
		repo:          repo,
		logger:        logger.With("component", "analytics.worker", "consumer_id", consumerID),
		metrics:       recorder,
		consumerID:    consumerID,
		batchSize:     defaultBatchSize,
		blockTimeout:  defaultBlockTimeout,
		insertTries:   defaultInsertTries,
		reclaimEvery:  defaultReclaimEvery,
		reclaimIdle:   defaultReclaimIdle,
		depthEvery:    defaultDepthEvery,
		reclaimCursor: "0-0",
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run creates the consumer group if needed and then consumes batches
// until the context is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already running")
	}
	w.running = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}

	w.logger.Info("analytics worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()
		if draining {
			w.logger.Info("analytics worker drained")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("analytics worker stopping")
			return ctx.Err()
		default:
		}

		if err := w.cycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("cycle failed", "error", err)
			time.Sleep(1 * time.Second)
		}
	}
}

// Shutdown stops the worker, letting any in-flight batch finish. It
// implements server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("analytics worker shutdown initiated")
	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		w.logger.Info("analytics worker shutdown complete")
		return nil
	case <-ctx.Done():
		w.logger.Warn("analytics worker shutdown timed out")
		return ctx.Err()
	}
}

// cycle processes one batch: reclaimed stale entries first, then fresh
// reads. Events are only acknowledged after a successful insert, so a
// crash between insert and ack re-delivers and the EventID conflict
// clause on insert keeps the table deduplicated.
func (w *Worker) cycle(ctx context.Context) error {
	w.reportQueueDepth(ctx)

	messages, err := w.reclaimStale(ctx)
	if err != nil {
		w.logger.Warn("reclaim failed", "error", err)
	}
	if len(messages) == 0 {
		if messages, err = w.read(ctx); err != nil {
			return err
		}
	}
	if len(messages) == 0 {
		return nil
	}

	events, ids := w.decode(ctx, messages)
	if len(events) > 0 {
		if err := w.insertWithRetry(ctx, events); err != nil {
			w.logger.Error("batch insert failed after retries",
				"batch_size", len(events),
				"error", err,
			)
			// Leave unacked so the batch is re-delivered.
			return err
		}
	}
	return w.ack(ctx, ids)
}

func (w *Worker) read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()
	if err == redis.Nil || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	return streams[0].Messages, nil
}

// reclaimStale takes over pending entries whose consumer has gone quiet.
// The cursor persists across calls so successive scans walk the whole
// pending list.
func (w *Worker) reclaimStale(ctx context.Context) ([]redis.XMessage, error) {
	if !w.lastReclaim.IsZero() && time.Since(w.lastReclaim) < w.reclaimEvery {
		return nil, nil
	}
	w.lastReclaim = time.Now()

	messages, cursor, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    consumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.reclaimIdle,
		Start:    w.reclaimCursor,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if cursor != "" {
		w.reclaimCursor = cursor
	}
	return messages, nil
}

func (w *Worker) reportQueueDepth(ctx context.Context) {
	if !w.lastDepth.IsZero() && time.Since(w.lastDepth) < w.depthEvery {
		return
	}
	w.lastDepth = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil && err != redis.Nil {
		w.logger.Warn("stream group info failed", "error", err)
		return
	}
	for _, g := range groups {
		if g.Name == consumerGroup {
			w.metrics.SetAnalyticsQueueDepth(g.Pending + g.Lag)
			return
		}
	}
}

// decode converts stream messages into click events. Poison messages
// are quarantined to the dead-letter stream and still acknowledged so
// they do not wedge the group.
func (w *Worker) decode(ctx context.Context, messages []redis.XMessage) ([]*model.ClickEvent, []string) {
	events := make([]*model.ClickEvent, 0, len(messages))
	ids := make([]string, 0, len(messages))

	for _, msg := range messages {
		ids = append(ids, msg.ID)

		raw, ok := msg.Values["payload"].(string)
		if !ok {
			w.quarantine(ctx, msg, "missing_payload", "payload field missing or not a string")
			continue
		}

		var p ClickEventPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			w.quarantine(ctx, msg, "unmarshal_error", err.Error())
			continue
		}
		if err := ValidateClickEventPayload(p); err != nil {
			w.quarantine(ctx, msg, "validation_error", err.Error())
			continue
		}

		events = append(events, &model.ClickEvent{
			ID:             ulid.Make().String(),
			EventID:        msg.ID, // stream ID doubles as the idempotency key
			ShortCode:      p.ShortCode,
			LinkID:         p.LinkID,
			IPHash:         p.IPHash,
			UserAgent:      p.UserAgent,
			Referrer:       p.Referrer,
			Language:       p.Language,
			Country:        p.Country,
			City:           p.City,
			Device:         p.Device,
			OS:             p.OS,
			Browser:        p.Browser,
			Fingerprint:    p.Fingerprint,
			IsBot:          p.IsBot,
			IsSuspicious:   p.IsSuspicious,
			FraudScore:     p.FraudScore,
			FraudReasons:   p.FraudReasons,
			RedirectedTo:   p.RedirectedTo,
			RuleApplied:    p.RuleApplied,
			ResponseTimeMs: p.ResponseTimeMs,
			ClickedAt:      time.UnixMilli(p.ClickedAt),
		})
	}

	return events, ids
}

func (w *Worker) quarantine(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("quarantining poison message",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: dlqMaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"original_stream":  StreamKey,
			"reason":           reason,
			"detail":           detail,
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("dead-letter write failed", "message_id", msg.ID, "error", err)
	}

	w.metrics.IncAnalyticsEventProcessed("dead_lettered")
}

func (w *Worker) insertWithRetry(ctx context.Context, events []*model.ClickEvent) error {
	var lastErr error
	for attempt := 1; attempt <= w.insertTries; attempt++ {
		start := time.Now()
		if err := w.repo.BulkInsert(ctx, events); err != nil {
			lastErr = fmt.Errorf("bulk insert: %w", err)
			backoff := time.Duration(1<<attempt) * time.Second
			w.logger.Warn("bulk insert failed, retrying",
				"attempt", attempt,
				"backoff_seconds", backoff.Seconds(),
				"error", err,
			)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue
		}

		w.logger.Info("batch inserted",
			"events_count", len(events),
			"duration_ms", float64(time.Since(start).Microseconds())/1000,
		)
		w.metrics.ObserveAnalyticsBatchSize(len(events))
		w.metrics.ObserveAnalyticsBatchDuration(time.Since(start))
		for _, event := range events {
			w.metrics.IncAnalyticsEventProcessed("success")
			w.metrics.ObserveAnalyticsIngestLag(time.Since(event.ClickedAt))
		}
		return nil
	}

	for range events {
		w.metrics.IncAnalyticsEventProcessed("failed")
	}
	return lastErr
}

func (w *Worker) ack(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := w.redis.XAck(ctx, StreamKey, consumerGroup, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}
