package webhook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/linkpulse/linkpulse/internal/model"
)

var (
	ErrEndpointNotFound = errors.New("webhook endpoint not found")
	ErrDeliveryNotFound = errors.New("webhook delivery not found")
)

// deliveryLease is how far a claimed delivery's next_retry_at is pushed
// into the future. Other pollers skip the row until the lease expires,
// so a worker that dies mid-attempt loses the claim rather than the
// delivery.
const deliveryLease = time.Minute

// maxStoredError caps the persisted last_error text.
const maxStoredError = 500

// Repository stores webhook endpoints and their delivery queue in
// Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps a database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateEndpoint registers an endpoint. The target URL must pass
// validation before anything is written.
func (r *Repository) CreateEndpoint(ctx context.Context, endpoint *model.WebhookEndpoint) error {
	if err := ValidateTargetURL(endpoint.TargetURL); err != nil {
		return fmt.Errorf("target URL rejected: %w", err)
	}

	const q = `
		INSERT INTO webhook_endpoints (
			id, owner_id, target_url, secret, enabled,
			event_types, name, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, q,
		endpoint.ID,
		endpoint.OwnerID,
		endpoint.TargetURL,
		endpoint.Secret,
		endpoint.Enabled,
		pq.Array(eventTypeStrings(endpoint.EventTypes)),
		endpoint.Name,
		endpoint.CreatedAt,
		endpoint.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook endpoint: %w", err)
	}
	return nil
}

// GetEndpoint loads an endpoint by ID, excluding soft-deleted rows.
func (r *Repository) GetEndpoint(ctx context.Context, id string) (*model.WebhookEndpoint, error) {
	const q = `
		SELECT id, owner_id, target_url, secret, enabled, event_types,
		       name, created_at, updated_at, deleted_at
		FROM webhook_endpoints
		WHERE id = $1 AND deleted_at IS NULL
	`

	var (
		endpoint model.WebhookEndpoint
		types    []string
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&endpoint.ID,
		&endpoint.OwnerID,
		&endpoint.TargetURL,
		&endpoint.Secret,
		&endpoint.Enabled,
		pq.Array(&types),
		&endpoint.Name,
		&endpoint.CreatedAt,
		&endpoint.UpdatedAt,
		&endpoint.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEndpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query webhook endpoint: %w", err)
	}

	endpoint.EventTypes = toEventTypes(types)
	return &endpoint, nil
}

// ListActiveEndpointsByOwnerAndEvent returns the owner's enabled
// endpoints subscribed to the given event type.
func (r *Repository) ListActiveEndpointsByOwnerAndEvent(ctx context.Context, ownerID string, eventType model.EventType) ([]*model.WebhookEndpoint, error) {
	const q = `
		SELECT id, owner_id, target_url, secret, enabled, event_types,
		       name, created_at, updated_at
		FROM webhook_endpoints
		WHERE owner_id = $1
		  AND deleted_at IS NULL
		  AND enabled = true
		  AND $2 = ANY(event_types)
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, q, ownerID, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("query active webhooks: %w", err)
	}
	defer rows.Close()

	var endpoints []*model.WebhookEndpoint
	for rows.Next() {
		var (
			endpoint model.WebhookEndpoint
			types    []string
		)
		if err := rows.Scan(
			&endpoint.ID,
			&endpoint.OwnerID,
			&endpoint.TargetURL,
			&endpoint.Secret,
			&endpoint.Enabled,
			pq.Array(&types),
			&endpoint.Name,
			&endpoint.CreatedAt,
			&endpoint.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook endpoint: %w", err)
		}
		endpoint.EventTypes = toEventTypes(types)
		endpoints = append(endpoints, &endpoint)
	}
	return endpoints, rows.Err()
}

// DeleteEndpoint soft-deletes an endpoint. Pending deliveries to it
// are closed out by the worker on their next attempt.
func (r *Repository) DeleteEndpoint(ctx context.Context, id string) error {
	const q = `
		UPDATE webhook_endpoints
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`

	res, err := r.db.ExecContext(ctx, q, id, time.Now())
	if err != nil {
		return fmt.Errorf("delete webhook endpoint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEndpointNotFound
	}
	return nil
}

// CreateDelivery enqueues a delivery. The (event_id, endpoint_id)
// conflict clause makes enqueueing idempotent per event and endpoint.
func (r *Repository) CreateDelivery(ctx context.Context, delivery *model.WebhookDelivery) error {
	const q = `
		INSERT INTO webhook_deliveries (
			id, endpoint_id, event_id, event_type, payload_json,
			status, attempt_count, max_attempts, next_retry_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (event_id, endpoint_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, q,
		delivery.ID,
		delivery.EndpointID,
		delivery.EventID,
		string(delivery.EventType),
		delivery.PayloadJSON,
		string(delivery.Status),
		delivery.AttemptCount,
		delivery.MaxAttempts,
		delivery.NextRetryAt,
		delivery.CreatedAt,
		delivery.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

// GetPendingDeliveries claims up to limit due deliveries. Claiming
// pushes next_retry_at forward by a short lease inside the same
// statement, so concurrent pollers cannot pick up the same rows.
func (r *Repository) GetPendingDeliveries(ctx context.Context, limit int) ([]*model.WebhookDelivery, error) {
	const q = `
		WITH due AS (
			SELECT d.id
			FROM webhook_deliveries d
			JOIN webhook_endpoints e ON d.endpoint_id = e.id
			WHERE d.status IN ('pending', 'failed')
			  AND d.next_retry_at <= $1
			  AND e.deleted_at IS NULL
			  AND e.enabled = true
			ORDER BY d.next_retry_at
			LIMIT $2
			FOR UPDATE OF d SKIP LOCKED
		)
		UPDATE webhook_deliveries w
		SET next_retry_at = $3, updated_at = $1
		FROM due
		WHERE w.id = due.id
		RETURNING w.id, w.endpoint_id, w.event_id, w.event_type, w.payload_json,
		          w.status, w.attempt_count, w.max_attempts, w.next_retry_at,
		          w.last_attempt_at, w.last_http_status, w.last_error,
		          w.created_at, w.updated_at
	`

	now := time.Now()
	rows, err := r.db.QueryContext(ctx, q, now, limit, now.Add(deliveryLease))
	if err != nil {
		return nil, fmt.Errorf("claim pending deliveries: %w", err)
	}
	defer rows.Close()

	return scanDeliveries(rows)
}

// UpdateDeliverySuccess closes a delivery after a 2xx response.
func (r *Repository) UpdateDeliverySuccess(ctx context.Context, id string, httpStatus int) error {
	const q = `
		UPDATE webhook_deliveries
		SET status = 'success',
			attempt_count = attempt_count + 1,
			last_attempt_at = $2,
			last_http_status = $3,
			last_error = NULL,
			updated_at = $2
		WHERE id = $1
	`

	now := time.Now()
	res, err := r.db.ExecContext(ctx, q, id, now, httpStatus)
	if err != nil {
		return fmt.Errorf("update delivery success: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

// UpdateDeliveryFailure records a failed attempt and either schedules
// the next retry or, when exhausted, parks the delivery permanently.
func (r *Repository) UpdateDeliveryFailure(ctx context.Context, id string, httpStatus *int, errMsg string, nextRetryAt time.Time, exhausted bool) error {
	status := string(model.DeliveryStatusFailed)
	if exhausted {
		status = string(model.DeliveryStatusExhausted)
	}
	if len(errMsg) > maxStoredError {
		errMsg = errMsg[:maxStoredError]
	}

	const q = `
		UPDATE webhook_deliveries
		SET status = $2,
			attempt_count = attempt_count + 1,
			last_attempt_at = $3,
			last_http_status = $4,
			last_error = $5,
			next_retry_at = $6,
			updated_at = $3
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, q, id, status, time.Now(), httpStatus, errMsg, nextRetryAt)
	if err != nil {
		return fmt.Errorf("update delivery failure: %w", err)
	}
	return nil
}

// GetQueueDepth counts deliveries still owed to receivers.
func (r *Repository) GetQueueDepth(ctx context.Context) (int64, error) {
	const q = `
		SELECT COUNT(*)
		FROM webhook_deliveries
		WHERE status IN ('pending', 'failed')
	`

	var depth int64
	if err := r.db.QueryRowContext(ctx, q).Scan(&depth); err != nil {
		return 0, fmt.Errorf("count queue depth: %w", err)
	}
	return depth, nil
}

func scanDeliveries(rows *sql.Rows) ([]*model.WebhookDelivery, error) {
	var deliveries []*model.WebhookDelivery
	for rows.Next() {
		var (
			d         model.WebhookDelivery
			eventType string
			status    string
			lastError sql.NullString
		)
		if err := rows.Scan(
			&d.ID,
			&d.EndpointID,
			&d.EventID,
			&eventType,
			&d.PayloadJSON,
			&status,
			&d.AttemptCount,
			&d.MaxAttempts,
			&d.NextRetryAt,
			&d.LastAttemptAt,
			&d.LastHTTPStatus,
			&lastError,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.EventType = model.EventType(eventType)
		d.Status = model.DeliveryStatus(status)
		d.LastError = lastError.String
		deliveries = append(deliveries, &d)
	}
	return deliveries, rows.Err()
}

func eventTypeStrings(types []model.EventType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func toEventTypes(values []string) []model.EventType {
	types := make([]model.EventType, len(values))
	for i, v := range values {
		types[i] = model.EventType(v)
	}
	return types
}
