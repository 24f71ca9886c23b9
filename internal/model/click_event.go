// Package model defines domain entities for the application.
package model

import "time"

// ClickEvent is the append-only record of a single resolved redirect.
type ClickEvent struct {
	ID      string `json:"id"`       // ULID (time-sortable)
	EventID string `json:"event_id"` // Idempotency key (Redis stream ID)

	// Link reference
	ShortCode string `json:"short_code"`
	LinkID    string `json:"link_id"`
	OwnerID   string `json:"owner_id,omitempty"` // Link owner (not persisted)

	// Request metadata. Only the hashed IP is carried; the raw address is
	// never stored.
	IPHash    string `json:"ip_hash"`              // SHA256(IP + salt)[0:16], used for uniqueness
	UserAgent string `json:"user_agent,omitempty"` // UA string (truncated 500 chars)
	Referrer  string `json:"referrer,omitempty"`   // Referer header (truncated 500 chars)
	Language  string `json:"language,omitempty"`   // Two-letter code from Accept-Language

	// Geo
	Country string `json:"country,omitempty"` // ISO 3166-1 alpha-2
	City    string `json:"city,omitempty"`

	// Device classification
	Device  string `json:"device,omitempty"` // mobile|tablet|desktop|bot
	OS      string `json:"os,omitempty"`
	Browser string `json:"browser,omitempty"`

	// Fraud classification
	Fingerprint  string   `json:"fingerprint,omitempty"`
	IsBot        bool     `json:"is_bot"`
	IsSuspicious bool     `json:"is_suspicious"`
	FraudScore   int      `json:"fraud_score"`             // 0-100
	FraudReasons []string `json:"fraud_reasons,omitempty"` // Heuristics that fired, in order

	// Resolution outcome
	RedirectedTo   string `json:"redirected_to"`
	RuleApplied    string `json:"rule_applied,omitempty"` // Matching rule id, if any
	ResponseTimeMs int64  `json:"response_time_ms"`

	// Timestamps
	ClickedAt time.Time `json:"clicked_at"`
	CreatedAt time.Time `json:"created_at"` // DB insertion time
}
