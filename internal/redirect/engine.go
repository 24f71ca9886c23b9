package redirect

import (
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/linkpulse/linkpulse/internal/model"
)

// Fallback routes returned instead of the destination when state or limits
// block redirection. Static informational pages are served at these paths.
const (
	FallbackPaused       = "/paused"
	FallbackExpired      = "/expired"
	FallbackNotFound     = "/not-found"
	FallbackLimitReached = "/limit-reached"
	FallbackNotYetActive = "/not-yet-active"
	FallbackGeoBlocked   = "/geo-blocked"
)

// Outcome classifies how a resolution was decided.
type Outcome string

const (
	OutcomeDefault Outcome = "default" // no rule matched, default target
	OutcomeRule    Outcome = "rule"    // a redirect rule matched
	OutcomeState   Outcome = "state"   // non-active link state
	OutcomeLimit   Outcome = "limit"   // a limit was violated
)

// Resolution is the result of resolving a link against a request context.
type Resolution struct {
	URL     string
	RuleID  string // set only when Outcome is OutcomeRule
	Outcome Outcome
	Reason  string // state name or violated limit, for logging/metrics
}

// Denied reports whether the resolution blocked the real destination.
func (r Resolution) Denied() bool {
	return r.Outcome == OutcomeState || r.Outcome == OutcomeLimit
}

// ResolveTarget decides where a hit on the link should land. Pure function
// of its inputs: no I/O, no mutation.
//
// Order is strict: non-active state short-circuits everything; then limits
// in a fixed order, first violation wins; then active rules ascending by
// priority, first full match wins; else the default target.
func ResolveTarget(link *model.Link, ctx *Context, now time.Time) Resolution {
	if link.State != model.LinkStateActive {
		return resolveState(link)
	}

	if res, violated := checkLimits(link, ctx, now); violated {
		return res
	}

	if res, matched := matchRules(link, ctx); matched {
		return res
	}

	return Resolution{URL: link.DefaultTarget(), Outcome: OutcomeDefault}
}

func resolveState(link *model.Link) Resolution {
	res := Resolution{Outcome: OutcomeState, Reason: string(link.State)}
	switch link.State {
	case model.LinkStatePaused:
		res.URL = FallbackPaused
	case model.LinkStateExpired:
		res.URL = FallbackExpired
	case model.LinkStateDead:
		res.URL = FallbackNotFound
	default:
		res.URL = link.DefaultTarget()
	}
	return res
}

// checkLimits evaluates limits in fixed order; the first violation wins.
func checkLimits(link *model.Link, ctx *Context, now time.Time) (Resolution, bool) {
	lim := link.Limits

	if lim.MaxClicks != nil && link.TotalClicks >= *lim.MaxClicks {
		return Resolution{URL: FallbackExpired, Outcome: OutcomeLimit, Reason: "max_clicks"}, true
	}
	if lim.MaxClicksPerDay != nil && link.ClicksToday >= *lim.MaxClicksPerDay {
		return Resolution{URL: FallbackLimitReached, Outcome: OutcomeLimit, Reason: "max_clicks_per_day"}, true
	}
	if lim.ValidFrom != nil && now.Before(*lim.ValidFrom) {
		return Resolution{URL: FallbackNotYetActive, Outcome: OutcomeLimit, Reason: "not_yet_active"}, true
	}
	if lim.ExpiresAt != nil && now.After(*lim.ExpiresAt) {
		return Resolution{URL: FallbackExpired, Outcome: OutcomeLimit, Reason: "expired"}, true
	}

	// Geo restrictions are skipped when the country is unknown (fail-open).
	if ctx.Country != "" {
		if len(lim.AllowedCountries) > 0 && !slices.Contains(lim.AllowedCountries, ctx.Country) {
			return Resolution{URL: FallbackGeoBlocked, Outcome: OutcomeLimit, Reason: "country_not_allowed"}, true
		}
		if slices.Contains(lim.BlockedCountries, ctx.Country) {
			return Resolution{URL: FallbackGeoBlocked, Outcome: OutcomeLimit, Reason: "country_blocked"}, true
		}
	}

	return Resolution{}, false
}

// matchRules evaluates active rules ascending by priority, ties broken by
// original order, and returns the first rule whose conditions all hold.
func matchRules(link *model.Link, ctx *Context) (Resolution, bool) {
	active := make([]model.RedirectRule, 0, len(link.Rules))
	for _, rule := range link.Rules {
		if rule.Active {
			active = append(active, rule)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority < active[j].Priority
	})

	for _, rule := range active {
		if ruleMatches(rule, ctx) {
			return Resolution{URL: rule.TargetURL, RuleID: rule.ID, Outcome: OutcomeRule}, true
		}
	}
	return Resolution{}, false
}

// ruleMatches reports whether every condition of the rule holds.
func ruleMatches(rule model.RedirectRule, ctx *Context) bool {
	for _, cond := range rule.Conditions {
		if !evalCondition(cond, ctx) {
			return false
		}
	}
	return true
}

// evalCondition applies a single condition. Unknown context fields never
// match; type mismatches (numeric operator on a non-numeric field, in/nin
// without an array value) evaluate to false rather than erroring.
func evalCondition(cond model.RuleCondition, ctx *Context) bool {
	val, known := ctx.value(cond.Field)
	if !known {
		return false
	}

	switch cond.Operator {
	case model.OpEq:
		return compareEq(val, cond)
	case model.OpNeq:
		return !compareEq(val, cond)
	case model.OpIn:
		return len(cond.ListValue) > 0 && slices.Contains(cond.ListValue, val.str)
	case model.OpNin:
		return len(cond.ListValue) > 0 && !slices.Contains(cond.ListValue, val.str)
	case model.OpGt, model.OpLt, model.OpGte, model.OpLte:
		return compareNumeric(val, cond)
	case model.OpContains:
		return cond.StringValue != "" && strings.Contains(val.str, cond.StringValue)
	}
	return false
}

func compareEq(val fieldValue, cond model.RuleCondition) bool {
	if cond.NumberValue != nil {
		return val.numeric && val.num == *cond.NumberValue
	}
	return val.str == cond.StringValue
}

func compareNumeric(val fieldValue, cond model.RuleCondition) bool {
	if !val.numeric {
		return false
	}

	threshold, ok := conditionNumber(cond)
	if !ok {
		return false
	}

	switch cond.Operator {
	case model.OpGt:
		return val.num > threshold
	case model.OpLt:
		return val.num < threshold
	case model.OpGte:
		return val.num >= threshold
	case model.OpLte:
		return val.num <= threshold
	}
	return false
}

// conditionNumber extracts a numeric threshold from the condition value,
// accepting the legacy string encoding of numbers.
func conditionNumber(cond model.RuleCondition) (float64, bool) {
	if cond.NumberValue != nil {
		return *cond.NumberValue, true
	}
	if cond.StringValue != "" {
		n, err := strconv.ParseFloat(cond.StringValue, 64)
		return n, err == nil
	}
	return 0, false
}
