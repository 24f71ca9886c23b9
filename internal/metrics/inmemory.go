package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	RedirectCacheHits      uint64
	RedirectCacheMisses    uint64
	ResolveDurationCount   uint64
	ResolveDurationTotalNs int64
	RulesMatched           uint64
	StateDenials           map[string]uint64
	LimitDenials           map[string]uint64
	FraudClassifications   map[string]uint64
	ScriptsTriggered       map[string]uint64
	AnalyticsPublished     map[string]uint64
	AnalyticsProcessed     map[string]uint64
	AnalyticsQueueDepth    int64
	WebhookDeliveries      map[string]uint64
	WebhookQueueDepth      int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	redirectCacheHits      uint64
	redirectCacheMisses    uint64
	resolveDurationCount   uint64
	resolveDurationTotalNs int64
	rulesMatched           uint64
	analyticsQueueDepth    int64
	webhookQueueDepth      int64

	mu                   sync.Mutex
	stateDenials         map[string]uint64
	limitDenials         map[string]uint64
	fraudClassifications map[string]uint64
	scriptsTriggered     map[string]uint64
	analyticsPublished   map[string]uint64
	analyticsProcessed   map[string]uint64
	webhookDeliveries    map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		stateDenials:         make(map[string]uint64),
		limitDenials:         make(map[string]uint64),
		fraudClassifications: make(map[string]uint64),
		scriptsTriggered:     make(map[string]uint64),
		analyticsPublished:   make(map[string]uint64),
		analyticsProcessed:   make(map[string]uint64),
		webhookDeliveries:    make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		RedirectCacheHits:      atomic.LoadUint64(&m.redirectCacheHits),
		RedirectCacheMisses:    atomic.LoadUint64(&m.redirectCacheMisses),
		ResolveDurationCount:   atomic.LoadUint64(&m.resolveDurationCount),
		ResolveDurationTotalNs: atomic.LoadInt64(&m.resolveDurationTotalNs),
		RulesMatched:           atomic.LoadUint64(&m.rulesMatched),
		StateDenials:           copyCounts(m.stateDenials),
		LimitDenials:           copyCounts(m.limitDenials),
		FraudClassifications:   copyCounts(m.fraudClassifications),
		ScriptsTriggered:       copyCounts(m.scriptsTriggered),
		AnalyticsPublished:     copyCounts(m.analyticsPublished),
		AnalyticsProcessed:     copyCounts(m.analyticsProcessed),
		AnalyticsQueueDepth:    atomic.LoadInt64(&m.analyticsQueueDepth),
		WebhookDeliveries:      copyCounts(m.webhookDeliveries),
		WebhookQueueDepth:      atomic.LoadInt64(&m.webhookQueueDepth),
	}
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *InMemoryRecorder) incLabeled(counts map[string]uint64, label string) {
	m.mu.Lock()
	counts[label]++
	m.mu.Unlock()
}

// IncRedirectCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncRedirectCacheHit() {
	atomic.AddUint64(&m.redirectCacheHits, 1)
}

// IncRedirectCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncRedirectCacheMiss() {
	atomic.AddUint64(&m.redirectCacheMisses, 1)
}

// ObserveResolveDuration records how long target resolution took.
func (m *InMemoryRecorder) ObserveResolveDuration(duration time.Duration) {
	atomic.AddUint64(&m.resolveDurationCount, 1)
	atomic.AddInt64(&m.resolveDurationTotalNs, duration.Nanoseconds())
}

// IncRuleMatched increments the rule match counter.
func (m *InMemoryRecorder) IncRuleMatched() {
	atomic.AddUint64(&m.rulesMatched, 1)
}

// IncStateDenied records a redirect denied by link state.
func (m *InMemoryRecorder) IncStateDenied(state string) {
	m.incLabeled(m.stateDenials, state)
}

// IncLimitDenied records a redirect denied by a link limit.
func (m *InMemoryRecorder) IncLimitDenied(reason string) {
	m.incLabeled(m.limitDenials, reason)
}

// IncFraudClassified records a fraud classification outcome.
func (m *InMemoryRecorder) IncFraudClassified(class string) {
	m.incLabeled(m.fraudClassifications, class)
}

// IncScriptTriggered records a triggered script action.
func (m *InMemoryRecorder) IncScriptTriggered(action string) {
	m.incLabeled(m.scriptsTriggered, action)
}

// IncAnalyticsEventPublished records a publish outcome.
func (m *InMemoryRecorder) IncAnalyticsEventPublished(status string) {
	m.incLabeled(m.analyticsPublished, status)
}

// IncAnalyticsEventProcessed records a processing outcome.
func (m *InMemoryRecorder) IncAnalyticsEventProcessed(status string) {
	m.incLabeled(m.analyticsProcessed, status)
}

// ObserveAnalyticsBatchSize is tracked only in aggregate form.
func (m *InMemoryRecorder) ObserveAnalyticsBatchSize(size int) {}

// ObserveAnalyticsBatchDuration is tracked only in aggregate form.
func (m *InMemoryRecorder) ObserveAnalyticsBatchDuration(duration time.Duration) {}

// SetAnalyticsQueueDepth records current stream backlog.
func (m *InMemoryRecorder) SetAnalyticsQueueDepth(depth int64) {
	atomic.StoreInt64(&m.analyticsQueueDepth, depth)
}

// ObserveAnalyticsIngestLag is tracked only in aggregate form.
func (m *InMemoryRecorder) ObserveAnalyticsIngestLag(lag time.Duration) {}

// IncWebhookDelivery records a delivery outcome.
func (m *InMemoryRecorder) IncWebhookDelivery(status, endpointID string) {
	m.incLabeled(m.webhookDeliveries, status)
}

// IncWebhookRetry is tracked only in aggregate form.
func (m *InMemoryRecorder) IncWebhookRetry(endpointID string, attempt int) {}

// SetWebhookQueueDepth records the pending delivery backlog.
func (m *InMemoryRecorder) SetWebhookQueueDepth(depth int64) {
	atomic.StoreInt64(&m.webhookQueueDepth, depth)
}

// ObserveWebhookDeliveryDuration is tracked only in aggregate form.
func (m *InMemoryRecorder) ObserveWebhookDeliveryDuration(endpointID string, duration time.Duration) {
}
