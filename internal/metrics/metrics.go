// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Redirect resolution metrics
	IncRedirectCacheHit()
	IncRedirectCacheMiss()
	ObserveResolveDuration(duration time.Duration)
	IncRuleMatched()
	IncStateDenied(state string)
	IncLimitDenied(reason string)
	IncFraudClassified(class string)
	IncScriptTriggered(action string)

	// Analytics pipeline metrics
	IncAnalyticsEventPublished(status string) // status: "success" or "dropped"
	IncAnalyticsEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveAnalyticsBatchSize(size int)
	ObserveAnalyticsBatchDuration(duration time.Duration)
	SetAnalyticsQueueDepth(depth int64)
	ObserveAnalyticsIngestLag(lag time.Duration)

	// Webhook delivery metrics
	IncWebhookDelivery(status, endpointID string)
	IncWebhookRetry(endpointID string, attempt int)
	SetWebhookQueueDepth(depth int64)
	ObserveWebhookDeliveryDuration(endpointID string, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
