package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/model"
)

const (
	defaultDeliveryBatch = 50
	defaultPollInterval  = 5 * time.Second
	defaultDepthInterval = 10 * time.Second

	// responseDrainLimit bounds how much of the receiver's response body
	// is read before closing, enough to allow connection reuse.
	responseDrainLimit = 1024
)

// Worker polls the delivery table and pushes due webhooks to their
// endpoints. Deliveries are row-locked by the query, so multiple worker
// replicas can poll the same table without double-sending.
type Worker struct {
	repo          *Repository
	client        *http.Client
	logger        *slog.Logger
	metrics       metrics.Recorder
	batchSize     int
	pollInterval  time.Duration
	depthInterval time.Duration
	lastDepth     time.Time
	running       bool
}

// NewWorker creates a webhook delivery worker.
func NewWorker(repo *Repository, logger *slog.Logger, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		repo:          repo,
		client:        NewHTTPClient(),
		logger:        logger.With("component", "webhook.worker"),
		metrics:       recorder,
		batchSize:     defaultDeliveryBatch,
		pollInterval:  defaultPollInterval,
		depthInterval: defaultDepthInterval,
	}
}

// SetBatchSize overrides the number of deliveries fetched per poll.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetPollInterval overrides the poll interval.
func (w *Worker) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		w.pollInterval = interval
	}
}

// Run polls for due deliveries until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.running {
		return errors.New("worker already running")
	}
	w.running = true

	w.logger.Info("webhook worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("webhook worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.poll(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("poll failed", "error", err)
			}
		}
	}
}

func (w *Worker) poll(ctx context.Context) error {
	w.reportQueueDepth(ctx)

	deliveries, err := w.repo.GetPendingDeliveries(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending deliveries: %w", err)
	}

	for _, delivery := range deliveries {
		if err := w.attempt(ctx, delivery); err != nil {
			w.logger.Warn("delivery attempt failed",
				"delivery_id", delivery.ID,
				"error", err,
			)
		}
	}
	return nil
}

// attempt pushes a single delivery to its endpoint and records the
// outcome. Deliveries whose endpoint is gone, disabled, or no longer
// passes target validation are closed out without a send.
func (w *Worker) attempt(ctx context.Context, delivery *model.WebhookDelivery) error {
	endpoint, err := w.repo.GetEndpoint(ctx, delivery.EndpointID)
	if err != nil {
		if errors.Is(err, ErrEndpointNotFound) {
			return w.repo.UpdateDeliveryFailure(ctx, delivery.ID, nil, "endpoint deleted", time.Now(), true)
		}
		return err
	}
	if !endpoint.IsActive() {
		return w.repo.UpdateDeliveryFailure(ctx, delivery.ID, nil, "endpoint disabled", time.Now(), true)
	}

	// Revalidate on every attempt: DNS may have been repointed at
	// internal address space since the endpoint was registered.
	if err := ValidateTargetURL(endpoint.TargetURL); err != nil {
		w.metrics.IncWebhookDelivery("rejected", endpoint.ID)
		return w.repo.UpdateDeliveryFailure(ctx, delivery.ID, nil, "unsafe target URL: "+err.Error(), time.Now(), true)
	}

	timestamp := time.Now().Unix()
	signature := GenerateSignature(endpoint.Secret, timestamp, []byte(delivery.PayloadJSON))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.TargetURL, bytes.NewReader([]byte(delivery.PayloadJSON)))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	SetWebhookHeaders(req, HTTPHeaders{
		Signature:  signature,
		Timestamp:  strconv.FormatInt(timestamp, 10),
		DeliveryID: delivery.ID,
	})

	start := time.Now()
	resp, err := w.client.Do(req)
	duration := time.Since(start)

	w.metrics.ObserveWebhookDeliveryDuration(endpoint.ID, duration)

	if err != nil {
		return w.recordFailure(ctx, delivery, nil, err.Error())
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, responseDrainLimit))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return w.recordFailure(ctx, delivery, &resp.StatusCode, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	w.logger.Info("webhook delivered",
		"delivery_id", delivery.ID,
		"target_host", ExtractHost(endpoint.TargetURL),
		"http_status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	)
	w.metrics.IncWebhookDelivery("success", endpoint.ID)
	return w.repo.UpdateDeliverySuccess(ctx, delivery.ID, resp.StatusCode)
}

func (w *Worker) recordFailure(ctx context.Context, delivery *model.WebhookDelivery, httpStatus *int, errMsg string) error {
	nextAttempt := delivery.AttemptCount + 1
	exhausted := IsExhausted(nextAttempt, delivery.MaxAttempts)

	status := "failed"
	if exhausted {
		status = "exhausted"
	}

	w.logger.Warn("webhook delivery failed",
		"delivery_id", delivery.ID,
		"attempt", nextAttempt,
		"exhausted", exhausted,
		"error", errMsg,
	)
	w.metrics.IncWebhookDelivery(status, delivery.EndpointID)
	w.metrics.IncWebhookRetry(delivery.EndpointID, nextAttempt)

	return w.repo.UpdateDeliveryFailure(ctx, delivery.ID, httpStatus, errMsg, NextRetryAt(nextAttempt), exhausted)
}

func (w *Worker) reportQueueDepth(ctx context.Context) {
	if time.Since(w.lastDepth) < w.depthInterval {
		return
	}
	w.lastDepth = time.Now()

	depth, err := w.repo.GetQueueDepth(ctx)
	if err != nil {
		w.logger.Warn("queue depth query failed", "error", err)
		return
	}
	w.metrics.SetWebhookQueueDepth(depth)
}
