package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linkpulse/linkpulse/internal/analytics"
	"github.com/linkpulse/linkpulse/internal/model"
)

// Publisher fans click events out into delivery records, one per
// subscribed endpoint. The worker picks the records up from there.
type Publisher struct {
	repo   *Repository
	logger *slog.Logger
}

// NewPublisher creates a webhook publisher.
func NewPublisher(repo *Repository, logger *slog.Logger) *Publisher {
	return &Publisher{
		repo:   repo,
		logger: logger.With("component", "webhook.publisher"),
	}
}

// PublishClickEvent enqueues one delivery per active endpoint the owner
// has subscribed to click events. A failure on one endpoint does not
// stop fan-out to the rest.
func (p *Publisher) PublishClickEvent(ctx context.Context, ownerID string, click *model.ClickEvent) error {
	endpoints, err := p.repo.ListActiveEndpointsByOwnerAndEvent(ctx, ownerID, model.EventTypeLinkClick)
	if err != nil {
		return fmt.Errorf("list active endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		return nil
	}

	payloadJSON, err := json.Marshal(clickEventPayload(click))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now()
	for _, endpoint := range endpoints {
		delivery := &model.WebhookDelivery{
			ID:          ulid.Make().String(),
			EndpointID:  endpoint.ID,
			EventID:     click.ID,
			EventType:   model.EventTypeLinkClick,
			PayloadJSON: string(payloadJSON),
			Status:      model.DeliveryStatusPending,
			MaxAttempts: DefaultMaxAttempts,
			NextRetryAt: now, // due immediately
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := p.repo.CreateDelivery(ctx, delivery); err != nil {
			p.logger.Warn("failed to create delivery",
				"endpoint_id", endpoint.ID,
				"event_id", click.ID,
				"error", err,
			)
			continue
		}

		p.logger.Debug("webhook delivery created",
			"delivery_id", delivery.ID,
			"endpoint_id", endpoint.ID,
			"event_id", click.ID,
		)
	}
	return nil
}

// clickEventPayload shapes the receiver-facing body. Raw referrer URLs
// and user agents stay out of it; receivers get the referrer domain and
// the classification results instead.
func clickEventPayload(click *model.ClickEvent) model.WebhookPayload {
	return model.WebhookPayload{
		EventType: string(model.EventTypeLinkClick),
		EventID:   click.ID,
		Timestamp: click.ClickedAt,
		Data: map[string]any{
			"short_code":      click.ShortCode,
			"link_id":         click.LinkID,
			"referrer_domain": analytics.ExtractReferrerDomain(click.Referrer),
			"country":         click.Country,
			"device":          click.Device,
			"is_bot":          click.IsBot,
			"is_suspicious":   click.IsSuspicious,
			"fraud_score":     click.FraudScore,
			"redirected_to":   click.RedirectedTo,
			"rule_applied":    click.RuleApplied,
		},
	}
}
