package redirect

import (
	"testing"
	"time"

	"github.com/linkpulse/linkpulse/internal/model"
)

var testNow = time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

func baseLink() *model.Link {
	return &model.Link{
		ID:          "link-1",
		ShortCode:   "abc123",
		OriginalURL: "https://example.com/default",
		State:       model.LinkStateActive,
	}
}

func intPtr(v int64) *int64          { return &v }
func timePtr(t time.Time) *time.Time { return &t }

func TestResolveTarget_DefaultTarget(t *testing.T) {
	t.Parallel()

	link := baseLink()
	res := ResolveTarget(link, &Context{}, testNow)

	if res.Outcome != OutcomeDefault {
		t.Errorf("expected default outcome, got %s", res.Outcome)
	}
	if res.URL != "https://example.com/default" {
		t.Errorf("expected default target, got %s", res.URL)
	}
	if res.Denied() {
		t.Error("default resolution must not be denied")
	}
}

func TestResolveTarget_DefaultTargetURLOverride(t *testing.T) {
	t.Parallel()

	link := baseLink()
	link.DefaultTargetURL = "https://example.com/override"

	res := ResolveTarget(link, &Context{}, testNow)

	if res.URL != "https://example.com/override" {
		t.Errorf("expected default_target_url to win, got %s", res.URL)
	}
}

func TestResolveTarget_States(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state   model.LinkState
		wantURL string
	}{
		{model.LinkStatePaused, FallbackPaused},
		{model.LinkStateExpired, FallbackExpired},
		{model.LinkStateDead, FallbackNotFound},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			link := baseLink()
			link.State = tt.state

			res := ResolveTarget(link, &Context{}, testNow)

			if res.Outcome != OutcomeState {
				t.Errorf("expected state outcome, got %s", res.Outcome)
			}
			if res.URL != tt.wantURL {
				t.Errorf("expected %s, got %s", tt.wantURL, res.URL)
			}
			if res.Reason != string(tt.state) {
				t.Errorf("expected reason %q, got %q", tt.state, res.Reason)
			}
			if !res.Denied() {
				t.Error("state resolution must be denied")
			}
		})
	}
}

func TestResolveTarget_StateBeatsLimitsAndRules(t *testing.T) {
	t.Parallel()

	link := baseLink()
	link.State = model.LinkStatePaused
	link.TotalClicks = 500
	link.Limits.MaxClicks = intPtr(100)
	link.Rules = []model.RedirectRule{{
		ID: "r1", Priority: 1, Active: true, TargetURL: "https://example.com/rule",
	}}

	res := ResolveTarget(link, &Context{}, testNow)

	if res.URL != FallbackPaused {
		t.Errorf("non-active state must short-circuit, got %s", res.URL)
	}
}

func TestResolveTarget_LimitOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		setup      func(*model.Link)
		ctx        Context
		wantURL    string
		wantReason string
	}{
		{
			name: "max clicks",
			setup: func(l *model.Link) {
				l.TotalClicks = 100
				l.Limits.MaxClicks = intPtr(100)
			},
			wantURL:    FallbackExpired,
			wantReason: "max_clicks",
		},
		{
			name: "max clicks per day",
			setup: func(l *model.Link) {
				l.ClicksToday = 50
				l.Limits.MaxClicksPerDay = intPtr(50)
			},
			wantURL:    FallbackLimitReached,
			wantReason: "max_clicks_per_day",
		},
		{
			name: "not yet active",
			setup: func(l *model.Link) {
				l.Limits.ValidFrom = timePtr(testNow.Add(time.Hour))
			},
			wantURL:    FallbackNotYetActive,
			wantReason: "not_yet_active",
		},
		{
			name: "expired",
			setup: func(l *model.Link) {
				l.Limits.ExpiresAt = timePtr(testNow.Add(-time.Hour))
			},
			wantURL:    FallbackExpired,
			wantReason: "expired",
		},
		{
			name: "country not allowed",
			setup: func(l *model.Link) {
				l.Limits.AllowedCountries = []string{"US", "CA"}
			},
			ctx:        Context{Country: "DE"},
			wantURL:    FallbackGeoBlocked,
			wantReason: "country_not_allowed",
		},
		{
			name: "country blocked",
			setup: func(l *model.Link) {
				l.Limits.BlockedCountries = []string{"DE"}
			},
			ctx:        Context{Country: "DE"},
			wantURL:    FallbackGeoBlocked,
			wantReason: "country_blocked",
		},
		{
			name: "max clicks beats expiry",
			setup: func(l *model.Link) {
				l.TotalClicks = 100
				l.Limits.MaxClicks = intPtr(100)
				l.Limits.ExpiresAt = timePtr(testNow.Add(-time.Hour))
			},
			wantURL:    FallbackExpired,
			wantReason: "max_clicks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := baseLink()
			tt.setup(link)

			res := ResolveTarget(link, &tt.ctx, testNow)

			if res.Outcome != OutcomeLimit {
				t.Fatalf("expected limit outcome, got %s (%s)", res.Outcome, res.URL)
			}
			if res.URL != tt.wantURL {
				t.Errorf("expected %s, got %s", tt.wantURL, res.URL)
			}
			if res.Reason != tt.wantReason {
				t.Errorf("expected reason %q, got %q", tt.wantReason, res.Reason)
			}
		})
	}
}

func TestResolveTarget_LimitsAtBoundary(t *testing.T) {
	t.Parallel()

	link := baseLink()
	link.TotalClicks = 99
	link.ClicksToday = 49
	link.Limits.MaxClicks = intPtr(100)
	link.Limits.MaxClicksPerDay = intPtr(50)
	link.Limits.ValidFrom = timePtr(testNow)
	link.Limits.ExpiresAt = timePtr(testNow)

	// Counters below their limits and now exactly at the validity bounds
	// still redirect.
	res := ResolveTarget(link, &Context{}, testNow)

	if res.Outcome != OutcomeDefault {
		t.Errorf("expected default outcome at boundary, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestResolveTarget_GeoLimitsFailOpen(t *testing.T) {
	t.Parallel()

	link := baseLink()
	link.Limits.AllowedCountries = []string{"US"}
	link.Limits.BlockedCountries = []string{"DE"}

	res := ResolveTarget(link, &Context{}, testNow)

	if res.Outcome != OutcomeDefault {
		t.Errorf("unknown country must skip geo limits, got %s", res.Outcome)
	}
}

func TestResolveTarget_RulePriority(t *testing.T) {
	t.Parallel()

	link := baseLink()
	link.Rules = []model.RedirectRule{
		{ID: "r2", Priority: 2, Active: true, TargetURL: "https://example.com/two"},
		{ID: "r1", Priority: 1, Active: true, TargetURL: "https://example.com/one"},
		{ID: "r3", Priority: 3, Active: true, TargetURL: "https://example.com/three"},
	}

	res := ResolveTarget(link, &Context{}, testNow)

	if res.Outcome != OutcomeRule {
		t.Fatalf("expected rule outcome, got %s", res.Outcome)
	}
	if res.RuleID != "r1" {
		t.Errorf("expected lowest priority number to win, got %s", res.RuleID)
	}
	if res.URL != "https://example.com/one" {
		t.Errorf("expected rule target, got %s", res.URL)
	}
}

func TestResolveTarget_InactiveRuleSkipped(t *testing.T) {
	t.Parallel()

	link := baseLink()
	link.Rules = []model.RedirectRule{
		{ID: "r1", Priority: 1, Active: false, TargetURL: "https://example.com/inactive"},
		{ID: "r2", Priority: 2, Active: true, TargetURL: "https://example.com/active"},
	}

	res := ResolveTarget(link, &Context{}, testNow)

	if res.RuleID != "r2" {
		t.Errorf("expected inactive rule skipped, got %s", res.RuleID)
	}
}

func TestResolveTarget_FirstMatchWins(t *testing.T) {
	t.Parallel()

	link := baseLink()
	link.Rules = []model.RedirectRule{
		{
			ID: "r1", Priority: 1, Active: true,
			Conditions: []model.RuleCondition{
				{Field: model.FieldCountry, Operator: model.OpEq, StringValue: "FR"},
			},
			TargetURL: "https://example.fr",
		},
		{
			ID: "r2", Priority: 2, Active: true,
			Conditions: []model.RuleCondition{
				{Field: model.FieldDevice, Operator: model.OpEq, StringValue: "mobile"},
			},
			TargetURL: "https://m.example.com",
		},
	}

	res := ResolveTarget(link, &Context{Country: "DE", Device: DeviceMobile}, testNow)

	if res.RuleID != "r2" {
		t.Errorf("expected first matching rule in priority order, got %s", res.RuleID)
	}
}

func TestResolveTarget_AllConditionsMustHold(t *testing.T) {
	t.Parallel()

	link := baseLink()
	link.Rules = []model.RedirectRule{{
		ID: "r1", Priority: 1, Active: true,
		Conditions: []model.RuleCondition{
			{Field: model.FieldCountry, Operator: model.OpEq, StringValue: "DE"},
			{Field: model.FieldDevice, Operator: model.OpEq, StringValue: "mobile"},
		},
		TargetURL: "https://m.example.de",
	}}

	res := ResolveTarget(link, &Context{Country: "DE", Device: DeviceDesktop}, testNow)

	if res.Outcome != OutcomeDefault {
		t.Errorf("partial condition match must not fire the rule, got %s", res.Outcome)
	}
}

func TestEvalCondition_Operators(t *testing.T) {
	t.Parallel()

	hour := 14
	dow := 1
	ctx := &Context{
		Country:   "DE",
		Language:  "de",
		Device:    DeviceMobile,
		OS:        "Android",
		Browser:   "Chrome",
		Campaign:  "spring_sale",
		Referrer:  "https://social.example/post/1",
		Hour:      &hour,
		DayOfWeek: &dow,
	}

	num := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		cond model.RuleCondition
		want bool
	}{
		{"eq match", model.RuleCondition{Field: model.FieldCountry, Operator: model.OpEq, StringValue: "DE"}, true},
		{"eq mismatch", model.RuleCondition{Field: model.FieldCountry, Operator: model.OpEq, StringValue: "FR"}, false},
		{"neq match", model.RuleCondition{Field: model.FieldCountry, Operator: model.OpNeq, StringValue: "FR"}, true},
		{"in match", model.RuleCondition{Field: model.FieldCountry, Operator: model.OpIn, ListValue: []string{"DE", "AT", "CH"}}, true},
		{"in mismatch", model.RuleCondition{Field: model.FieldCountry, Operator: model.OpIn, ListValue: []string{"US"}}, false},
		{"in empty list", model.RuleCondition{Field: model.FieldCountry, Operator: model.OpIn}, false},
		{"nin match", model.RuleCondition{Field: model.FieldCountry, Operator: model.OpNin, ListValue: []string{"US"}}, true},
		{"nin empty list", model.RuleCondition{Field: model.FieldCountry, Operator: model.OpNin}, false},
		{"gt numeric", model.RuleCondition{Field: model.FieldHour, Operator: model.OpGt, NumberValue: num(12)}, true},
		{"lt numeric", model.RuleCondition{Field: model.FieldHour, Operator: model.OpLt, NumberValue: num(12)}, false},
		{"gte boundary", model.RuleCondition{Field: model.FieldHour, Operator: model.OpGte, NumberValue: num(14)}, true},
		{"lte boundary", model.RuleCondition{Field: model.FieldHour, Operator: model.OpLte, NumberValue: num(14)}, true},
		{"gt legacy string number", model.RuleCondition{Field: model.FieldHour, Operator: model.OpGt, StringValue: "12"}, true},
		{"gt on non numeric field", model.RuleCondition{Field: model.FieldCountry, Operator: model.OpGt, NumberValue: num(1)}, false},
		{"eq number on numeric field", model.RuleCondition{Field: model.FieldDayOfWeek, Operator: model.OpEq, NumberValue: num(1)}, true},
		{"contains match", model.RuleCondition{Field: model.FieldReferrer, Operator: model.OpContains, StringValue: "social.example"}, true},
		{"contains mismatch", model.RuleCondition{Field: model.FieldReferrer, Operator: model.OpContains, StringValue: "search.example"}, false},
		{"contains empty value", model.RuleCondition{Field: model.FieldReferrer, Operator: model.OpContains}, false},
		{"unknown operator", model.RuleCondition{Field: model.FieldCountry, Operator: "matches"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evalCondition(tt.cond, ctx); got != tt.want {
				t.Errorf("evalCondition(%+v) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestEvalCondition_UnknownFieldNeverMatches(t *testing.T) {
	t.Parallel()

	// Context with no country set: every operator on the unknown field
	// evaluates false, including the negated ones.
	ctx := &Context{Device: DeviceDesktop}

	operators := []model.ConditionOperator{
		model.OpEq, model.OpNeq, model.OpIn, model.OpNin,
		model.OpGt, model.OpLt, model.OpGte, model.OpLte, model.OpContains,
	}

	for _, op := range operators {
		cond := model.RuleCondition{
			Field:       model.FieldCountry,
			Operator:    op,
			StringValue: "DE",
			ListValue:   []string{"DE"},
		}
		if evalCondition(cond, ctx) {
			t.Errorf("operator %s matched on unknown field", op)
		}
	}
}
