// Package model defines domain entities for the application.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// LinkState represents the lifecycle state of a link.
type LinkState string

const (
	LinkStateActive  LinkState = "active"
	LinkStatePaused  LinkState = "paused"
	LinkStateExpired LinkState = "expired"
	LinkStateDead    LinkState = "dead"
	// LinkStateViral is a derived display state computed by the dashboard.
	// The redirect pipeline treats it like any other non-active state.
	LinkStateViral LinkState = "viral"
)

// IsValid checks if the state is one of the known lifecycle states.
func (s LinkState) IsValid() bool {
	switch s {
	case LinkStateActive, LinkStatePaused, LinkStateExpired, LinkStateDead, LinkStateViral:
		return true
	}
	return false
}

// Link represents a short link and its full redirect configuration.
type Link struct {
	ID               string         `json:"id"`
	ShortCode        string         `json:"short_code"`
	OriginalURL      string         `json:"original_url"`
	DefaultTargetURL string         `json:"default_target_url,omitempty"`
	State            LinkState      `json:"state"`
	HealthScore      int            `json:"health_score"`
	TrustScore       int            `json:"trust_score"`
	Rules            []RedirectRule `json:"rules,omitempty"`
	Scripts          []LinkScript   `json:"scripts,omitempty"`
	Limits           LinkLimits     `json:"limits"`
	TotalClicks      int64          `json:"total_clicks"`
	UniqueClicks     int64          `json:"unique_clicks"`
	ClicksToday      int64          `json:"clicks_today"`
	LastClickAt      *time.Time     `json:"last_click_at,omitempty"`
	OwnerID          string         `json:"owner_id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// DefaultTarget returns the URL used when no rule matches.
func (l *Link) DefaultTarget() string {
	if l.DefaultTargetURL != "" {
		return l.DefaultTargetURL
	}
	return l.OriginalURL
}

// ConditionField identifies a request-context attribute a rule can match on.
type ConditionField string

const (
	FieldCountry   ConditionField = "country"
	FieldLanguage  ConditionField = "language"
	FieldDevice    ConditionField = "device"
	FieldOS        ConditionField = "os"
	FieldBrowser   ConditionField = "browser"
	FieldCampaign  ConditionField = "campaign"
	FieldReferrer  ConditionField = "referrer"
	FieldHour      ConditionField = "hour"
	FieldDayOfWeek ConditionField = "day_of_week"
)

// IsValid checks if the field is part of the closed context-field set.
func (f ConditionField) IsValid() bool {
	switch f {
	case FieldCountry, FieldLanguage, FieldDevice, FieldOS, FieldBrowser,
		FieldCampaign, FieldReferrer, FieldHour, FieldDayOfWeek:
		return true
	}
	return false
}

// ConditionOperator is the comparison applied by a rule condition.
type ConditionOperator string

const (
	OpEq       ConditionOperator = "eq"
	OpNeq      ConditionOperator = "neq"
	OpIn       ConditionOperator = "in"
	OpNin      ConditionOperator = "nin"
	OpGt       ConditionOperator = "gt"
	OpLt       ConditionOperator = "lt"
	OpGte      ConditionOperator = "gte"
	OpLte      ConditionOperator = "lte"
	OpContains ConditionOperator = "contains"
)

// RuleCondition is a single typed predicate over the request context.
// All conditions of a rule must hold for the rule to match.
//
// The stored JSON keeps the legacy shape {field, operator, value} where
// value may be a string, a number, or a string array; decoding routes it
// into the matching typed slot.
type RuleCondition struct {
	Field    ConditionField    `json:"field"`
	Operator ConditionOperator `json:"operator"`

	StringValue string   `json:"-"`
	NumberValue *float64 `json:"-"`
	ListValue   []string `json:"-"`
}

type ruleConditionJSON struct {
	Field    ConditionField    `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    json.RawMessage   `json:"value,omitempty"`
}

// UnmarshalJSON decodes the legacy {field, operator, value} shape.
func (c *RuleCondition) UnmarshalJSON(data []byte) error {
	var raw ruleConditionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Field = raw.Field
	c.Operator = raw.Operator
	c.StringValue = ""
	c.NumberValue = nil
	c.ListValue = nil

	if len(raw.Value) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw.Value, &s); err == nil {
		c.StringValue = s
		return nil
	}

	var n float64
	if err := json.Unmarshal(raw.Value, &n); err == nil {
		c.NumberValue = &n
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw.Value, &list); err == nil {
		c.ListValue = list
		return nil
	}

	return fmt.Errorf("condition value is not a string, number, or string array")
}

// MarshalJSON emits the legacy {field, operator, value} shape.
func (c RuleCondition) MarshalJSON() ([]byte, error) {
	raw := ruleConditionJSON{Field: c.Field, Operator: c.Operator}

	var (
		value []byte
		err   error
	)
	switch {
	case c.ListValue != nil:
		value, err = json.Marshal(c.ListValue)
	case c.NumberValue != nil:
		value, err = json.Marshal(*c.NumberValue)
	case c.StringValue != "":
		value, err = json.Marshal(c.StringValue)
	}
	if err != nil {
		return nil, err
	}
	raw.Value = value

	return json.Marshal(raw)
}

// RedirectRule is a prioritized conditional override of the default target.
type RedirectRule struct {
	ID         string          `json:"id"`
	Priority   int             `json:"priority"`
	Conditions []RuleCondition `json:"conditions,omitempty"`
	TargetURL  string          `json:"target_url"`
	Active     bool            `json:"active"`
}

// LinkLimits bounds when and for whom a link redirects.
// Nil pointers and empty slices mean "no limit".
type LinkLimits struct {
	MaxClicks        *int64     `json:"max_clicks,omitempty"`
	MaxClicksPerDay  *int64     `json:"max_clicks_per_day,omitempty"`
	ValidFrom        *time.Time `json:"valid_from,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	AllowedCountries []string   `json:"allowed_countries,omitempty"`
	BlockedCountries []string   `json:"blocked_countries,omitempty"`
}

// ScriptAction names the side effect a triggered script requests.
type ScriptAction string

const (
	ActionRedirect     ScriptAction = "redirect"
	ActionPause        ScriptAction = "pause"
	ActionNotify       ScriptAction = "notify"
	ActionSwitchTarget ScriptAction = "switch_target"
)

// IsValid checks if the action is recognized.
func (a ScriptAction) IsValid() bool {
	switch a {
	case ActionRedirect, ActionPause, ActionNotify, ActionSwitchTarget:
		return true
	}
	return false
}

// LinkScript is a threshold-triggered side-effect declaration attached to
// a link. Evaluation decides whether it fires; execution happens elsewhere.
type LinkScript struct {
	ID           string         `json:"id"`
	Condition    string         `json:"condition"`
	Action       ScriptAction   `json:"action"`
	ActionParams map[string]any `json:"action_params,omitempty"`
	Enabled      bool           `json:"enabled"`
}
