// Package script evaluates threshold-triggered link scripts. The engine is
// a pure predicate evaluator: it reports which actions should fire and
// leaves execution to the caller, so side effects can be reviewed, queued,
// or rate-limited independently.
package script

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/linkpulse/linkpulse/internal/model"
)

// Field names a metric a script condition can test.
type Field string

const (
	FieldClicksToday    Field = "clicks_today"
	FieldTotalClicks    Field = "total_clicks"
	FieldClicksThisHour Field = "clicks_this_hour"
	FieldHealthScore    Field = "health_score"
	FieldTrustScore     Field = "trust_score"
	FieldHour           Field = "hour"
	FieldDayOfWeek      Field = "day_of_week"
)

// Op is a comparison operator in a script condition.
type Op string

const (
	OpGt  Op = ">"
	OpLt  Op = "<"
	OpGte Op = ">="
	OpLte Op = "<="
	OpEq  Op = "=="
)

// Condition is the typed form of a script trigger: either one of the
// literal outcomes or a field/operator/threshold comparison.
type Condition struct {
	Always bool
	Never  bool

	Field     Field
	Op        Op
	Threshold int
}

// ErrMalformedCondition reports unparseable condition text. Callers that
// evaluate scripts treat such conditions as inert rather than failing.
var ErrMalformedCondition = errors.New("malformed script condition")

var validFields = map[Field]bool{
	FieldClicksToday:    true,
	FieldTotalClicks:    true,
	FieldClicksThisHour: true,
	FieldHealthScore:    true,
	FieldTrustScore:     true,
	FieldHour:           true,
	FieldDayOfWeek:      true,
}

var opAliases = map[string]Op{
	">":  OpGt,
	"<":  OpLt,
	">=": OpGte,
	"<=": OpLte,
	"=":  OpEq,
	"==": OpEq,
}

// ParseCondition tokenizes the textual condition form: "always", "never",
// or exactly "<field> <op> <integer>".
func ParseCondition(text string) (Condition, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "always":
		return Condition{Always: true}, nil
	case "never":
		return Condition{Never: true}, nil
	}

	tokens := strings.Fields(text)
	if len(tokens) != 3 {
		return Condition{}, ErrMalformedCondition
	}

	field := Field(strings.ToLower(tokens[0]))
	if !validFields[field] {
		return Condition{}, ErrMalformedCondition
	}

	op, ok := opAliases[tokens[1]]
	if !ok {
		return Condition{}, ErrMalformedCondition
	}

	threshold, err := strconv.Atoi(tokens[2])
	if err != nil {
		return Condition{}, ErrMalformedCondition
	}

	return Condition{Field: field, Op: op, Threshold: threshold}, nil
}

// Stats is the metric snapshot a condition is evaluated against.
type Stats struct {
	ClicksToday    int
	TotalClicks    int
	ClicksThisHour int
	HealthScore    int
	TrustScore     int
	Hour           int
	DayOfWeek      int
}

func (s Stats) value(f Field) int {
	switch f {
	case FieldClicksToday:
		return s.ClicksToday
	case FieldTotalClicks:
		return s.TotalClicks
	case FieldClicksThisHour:
		return s.ClicksThisHour
	case FieldHealthScore:
		return s.HealthScore
	case FieldTrustScore:
		return s.TrustScore
	case FieldHour:
		return s.Hour
	case FieldDayOfWeek:
		return s.DayOfWeek
	}
	return 0
}

// Holds reports whether the condition is true for the stats.
func (c Condition) Holds(stats Stats) bool {
	if c.Always {
		return true
	}
	if c.Never {
		return false
	}

	v := stats.value(c.Field)
	switch c.Op {
	case OpGt:
		return v > c.Threshold
	case OpLt:
		return v < c.Threshold
	case OpGte:
		return v >= c.Threshold
	case OpLte:
		return v <= c.Threshold
	case OpEq:
		return v == c.Threshold
	}
	return false
}

// Result is a script whose condition held, with the action it requests.
type Result struct {
	ScriptID  string
	Action    model.ScriptAction
	Params    map[string]any
	Condition string
}

// Override keys accepted by Evaluate.
const (
	OverrideClicksThisHour = "clicks_this_hour"
	OverrideClicksToday    = "clicks_today"
	OverrideTotalClicks    = "total_clicks"
)

// StatsForLink builds the evaluation snapshot from the link's live
// counters plus the current UTC hour and day-of-week, with caller-supplied
// overrides for metrics the link itself doesn't track.
func StatsForLink(link *model.Link, now time.Time, overrides map[string]int) Stats {
	utc := now.UTC()
	stats := Stats{
		ClicksToday: int(link.ClicksToday),
		TotalClicks: int(link.TotalClicks),
		HealthScore: link.HealthScore,
		TrustScore:  link.TrustScore,
		Hour:        utc.Hour(),
		DayOfWeek:   int(utc.Weekday()),
	}

	if v, ok := overrides[OverrideClicksThisHour]; ok {
		stats.ClicksThisHour = v
	}
	if v, ok := overrides[OverrideClicksToday]; ok {
		stats.ClicksToday = v
	}
	if v, ok := overrides[OverrideTotalClicks]; ok {
		stats.TotalClicks = v
	}

	return stats
}

// UsesField reports whether any enabled, well-formed script condition on
// the link references the field. Callers use it to skip collecting metrics
// that cost a query when no script will read them.
func UsesField(link *model.Link, f Field) bool {
	for _, s := range link.Scripts {
		if !s.Enabled {
			continue
		}
		cond, err := ParseCondition(s.Condition)
		if err != nil {
			continue
		}
		if cond.Field == f {
			return true
		}
	}
	return false
}

// Evaluate checks every enabled script on the link and returns those whose
// conditions hold. Malformed condition text is inert: the script is
// skipped, never an error.
func Evaluate(link *model.Link, now time.Time, overrides map[string]int) []Result {
	if len(link.Scripts) == 0 {
		return nil
	}

	stats := StatsForLink(link, now, overrides)

	var triggered []Result
	for _, s := range link.Scripts {
		if !s.Enabled {
			continue
		}
		cond, err := ParseCondition(s.Condition)
		if err != nil {
			continue
		}
		if cond.Holds(stats) {
			triggered = append(triggered, Result{
				ScriptID:  s.ID,
				Action:    s.Action,
				Params:    s.ActionParams,
				Condition: s.Condition,
			})
		}
	}
	return triggered
}
