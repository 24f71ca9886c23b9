package script

import (
	"errors"
	"testing"
	"time"

	"github.com/linkpulse/linkpulse/internal/model"
)

func TestParseCondition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Condition
	}{
		{"always", "always", Condition{Always: true}},
		{"always mixed case", "  Always ", Condition{Always: true}},
		{"never", "never", Condition{Never: true}},
		{"gt", "clicks_today > 1000", Condition{Field: FieldClicksToday, Op: OpGt, Threshold: 1000}},
		{"lt", "health_score < 30", Condition{Field: FieldHealthScore, Op: OpLt, Threshold: 30}},
		{"gte", "total_clicks >= 50000", Condition{Field: FieldTotalClicks, Op: OpGte, Threshold: 50000}},
		{"lte", "trust_score <= 10", Condition{Field: FieldTrustScore, Op: OpLte, Threshold: 10}},
		{"eq", "hour == 9", Condition{Field: FieldHour, Op: OpEq, Threshold: 9}},
		{"single equals alias", "day_of_week = 0", Condition{Field: FieldDayOfWeek, Op: OpEq, Threshold: 0}},
		{"upper case field", "CLICKS_THIS_HOUR > 500", Condition{Field: FieldClicksThisHour, Op: OpGt, Threshold: 500}},
		{"negative threshold", "trust_score < -1", Condition{Field: FieldTrustScore, Op: OpLt, Threshold: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCondition(tt.text)
			if err != nil {
				t.Fatalf("ParseCondition(%q) error: %v", tt.text, err)
			}
			if got != tt.want {
				t.Errorf("ParseCondition(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseCondition_Malformed(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"clicks_today >",
		"clicks_today > 10 extra",
		"unknown_field > 10",
		"clicks_today ~ 10",
		"clicks_today > ten",
		"clicks_today > 10.5",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, err := ParseCondition(text)
			if !errors.Is(err, ErrMalformedCondition) {
				t.Errorf("ParseCondition(%q) = %v, want ErrMalformedCondition", text, err)
			}
		})
	}
}

func TestCondition_Holds(t *testing.T) {
	t.Parallel()

	stats := Stats{ClicksToday: 100, Hour: 14}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"always", Condition{Always: true}, true},
		{"never", Condition{Never: true}, false},
		{"gt true", Condition{Field: FieldClicksToday, Op: OpGt, Threshold: 99}, true},
		{"gt boundary", Condition{Field: FieldClicksToday, Op: OpGt, Threshold: 100}, false},
		{"gte boundary", Condition{Field: FieldClicksToday, Op: OpGte, Threshold: 100}, true},
		{"lt false", Condition{Field: FieldClicksToday, Op: OpLt, Threshold: 100}, false},
		{"lte boundary", Condition{Field: FieldClicksToday, Op: OpLte, Threshold: 100}, true},
		{"eq", Condition{Field: FieldHour, Op: OpEq, Threshold: 14}, true},
		{"unset metric is zero", Condition{Field: FieldClicksThisHour, Op: OpEq, Threshold: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Holds(stats); got != tt.want {
				t.Errorf("Holds(%+v) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestStatsForLink(t *testing.T) {
	t.Parallel()

	link := &model.Link{
		TotalClicks: 5000,
		ClicksToday: 120,
		HealthScore: 85,
		TrustScore:  70,
	}
	now := time.Date(2026, 3, 2, 14, 45, 0, 0, time.UTC) // Monday

	stats := StatsForLink(link, now, map[string]int{
		OverrideClicksThisHour: 42,
	})

	if stats.TotalClicks != 5000 || stats.ClicksToday != 120 {
		t.Errorf("unexpected counters: %+v", stats)
	}
	if stats.ClicksThisHour != 42 {
		t.Errorf("expected override for clicks_this_hour, got %d", stats.ClicksThisHour)
	}
	if stats.Hour != 14 || stats.DayOfWeek != 1 {
		t.Errorf("expected UTC hour 14 Monday, got hour=%d dow=%d", stats.Hour, stats.DayOfWeek)
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	link := &model.Link{
		TotalClicks: 100000,
		ClicksToday: 1500,
		HealthScore: 20,
		Scripts: []model.LinkScript{
			{
				ID:        "s1",
				Condition: "clicks_today > 1000",
				Action:    model.ActionPause,
				Enabled:   true,
			},
			{
				ID:        "s2",
				Condition: "clicks_today > 1000",
				Action:    model.ActionNotify,
				Enabled:   false, // disabled scripts never fire
			},
			{
				ID:        "s3",
				Condition: "health_score < 10",
				Action:    model.ActionSwitchTarget,
				Enabled:   true,
			},
			{
				ID:        "s4",
				Condition: "clicks banana",
				Action:    model.ActionNotify,
				Enabled:   true, // malformed condition is inert
			},
			{
				ID:           "s5",
				Condition:    "total_clicks >= 100000",
				Action:       model.ActionRedirect,
				ActionParams: map[string]any{"url": "https://example.com/celebrate"},
				Enabled:      true,
			},
		},
	}

	results := Evaluate(link, time.Now(), nil)

	if len(results) != 2 {
		t.Fatalf("expected 2 triggered scripts, got %d: %+v", len(results), results)
	}
	if results[0].ScriptID != "s1" || results[0].Action != model.ActionPause {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].ScriptID != "s5" {
		t.Errorf("unexpected second result: %+v", results[1])
	}
	if results[1].Params["url"] != "https://example.com/celebrate" {
		t.Errorf("expected action params carried through, got %v", results[1].Params)
	}
}

func TestEvaluate_NoScripts(t *testing.T) {
	t.Parallel()

	if got := Evaluate(&model.Link{}, time.Now(), nil); got != nil {
		t.Errorf("expected nil for a link without scripts, got %v", got)
	}
}

func TestUsesField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		scripts []model.LinkScript
		field   Field
		want    bool
	}{
		{
			"enabled script references field",
			[]model.LinkScript{{Condition: "clicks_this_hour > 500", Enabled: true}},
			FieldClicksThisHour,
			true,
		},
		{
			"disabled script does not count",
			[]model.LinkScript{{Condition: "clicks_this_hour > 500", Enabled: false}},
			FieldClicksThisHour,
			false,
		},
		{
			"other fields do not count",
			[]model.LinkScript{{Condition: "clicks_today > 500", Enabled: true}},
			FieldClicksThisHour,
			false,
		},
		{
			"malformed condition is inert",
			[]model.LinkScript{{Condition: "clicks banana", Enabled: true}},
			FieldClicksThisHour,
			false,
		},
		{
			"literal conditions reference no field",
			[]model.LinkScript{{Condition: "always", Enabled: true}},
			FieldClicksThisHour,
			false,
		},
		{
			"no scripts",
			nil,
			FieldClicksThisHour,
			false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			link := &model.Link{Scripts: tt.scripts}
			if got := UsesField(link, tt.field); got != tt.want {
				t.Errorf("UsesField(%q) = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}
