// Package fraud provides the heuristic bot/fraud scorer for redirect hits.
package fraud

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/linkpulse/linkpulse/internal/redirect"
)

const (
	// velocityWindow is the retention window for per-fingerprint click
	// timestamps.
	velocityWindow = 5 * time.Minute

	// rapidClickGap is the spacing below which two consecutive clicks
	// from one fingerprint are considered automated.
	rapidClickGap = time.Second

	// botScoreThreshold is the score at or above which a hit is a bot.
	botScoreThreshold = 80

	// suspiciousScoreThreshold is the score at or above which a hit is
	// suspicious.
	suspiciousScoreThreshold = 40
)

// Heuristic reason codes, in evaluation order.
const (
	ReasonKnownBotUA       = "known_bot_ua"
	ReasonSuspiciousUA     = "suspicious_ua"
	ReasonNoAcceptLanguage = "no_accept_language"
	ReasonNoAcceptHeader   = "no_accept_header"
	ReasonClickVelocity    = "click_velocity"
	ReasonRapidSuccession  = "rapid_succession"
	ReasonIPRepetition     = "ip_repetition"
	ReasonDatacenterIP     = "datacenter_ip"
)

// Result is the classification of a single hit.
type Result struct {
	IsBot        bool
	IsSuspicious bool
	Score        int      // 0-100
	Reasons      []string // heuristics that fired, in evaluation order
	Fingerprint  string
}

// Detector scores hits with stateful velocity and repetition heuristics.
// State lives for the process lifetime and is rebuilt from zero on restart;
// it only feeds advisory signals, never stored-data correctness.
//
// Safe for concurrent use.
type Detector struct {
	mu           sync.Mutex
	fingerprints map[string][]time.Time
	ipCounts     map[string]int

	now func() time.Time
}

// NewDetector creates a Detector with empty tracking state.
func NewDetector() *Detector {
	return &Detector{
		fingerprints: make(map[string][]time.Time),
		ipCounts:     make(map[string]int),
		now:          time.Now,
	}
}

// Analyze scores a hit. Most heuristics are pure in the inputs; the
// velocity and IP-repetition signals depend on recent call history, so the
// same single-shot input can score differently over time. That is the
// point of those signals.
func (d *Detector) Analyze(ip, userAgent string, headers http.Header, ctx *redirect.Context) Result {
	res := Result{
		Fingerprint: Fingerprint(ip, userAgent, headers, ctx),
	}

	knownBot := isKnownBotUA(userAgent)
	if knownBot {
		res.addReason(ReasonKnownBotUA, 80)
	}
	if isSuspiciousUA(userAgent) {
		res.addReason(ReasonSuspiciousUA, 30)
	}
	if headers.Get("Accept-Language") == "" {
		res.addReason(ReasonNoAcceptLanguage, 15)
	}
	if headers.Get("Accept") == "" {
		res.addReason(ReasonNoAcceptHeader, 10)
	}

	velocityPts, rapid, ipPts := d.track(res.Fingerprint, ip)
	if velocityPts > 0 {
		res.addReason(ReasonClickVelocity, velocityPts)
	}
	if rapid {
		res.addReason(ReasonRapidSuccession, 25)
	}
	if ipPts > 0 {
		res.addReason(ReasonIPRepetition, ipPts)
	}
	if isDatacenterIP(ip) {
		res.addReason(ReasonDatacenterIP, 20)
	}

	if res.Score > 100 {
		res.Score = 100
	}
	res.IsBot = knownBot || res.Score >= botScoreThreshold
	res.IsSuspicious = res.Score >= suspiciousScoreThreshold

	return res
}

func (r *Result) addReason(reason string, points int) {
	r.Reasons = append(r.Reasons, reason)
	r.Score += points
}

// track records the hit in the shared state and returns the velocity tier
// points, whether the last two clicks were in rapid succession, and the
// IP-repetition tier points.
func (d *Detector) track(fingerprint, ip string) (velocityPts int, rapid bool, ipPts int) {
	now := d.now()
	cutoff := now.Add(-velocityWindow)

	d.mu.Lock()
	defer d.mu.Unlock()

	window := d.fingerprints[fingerprint]
	pruned := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	if len(pruned) > 0 {
		rapid = now.Sub(pruned[len(pruned)-1]) < rapidClickGap
	}
	pruned = append(pruned, now)
	d.fingerprints[fingerprint] = pruned

	switch n := len(pruned); {
	case n > 50:
		velocityPts = 50
	case n > 20:
		velocityPts = 30
	case n > 10:
		velocityPts = 15
	}

	d.ipCounts[ip]++
	switch n := d.ipCounts[ip]; {
	case n > 100:
		ipPts = 40
	case n > 50:
		ipPts = 20
	case n > 20:
		ipPts = 10
	}

	return velocityPts, rapid, ipPts
}

// Sweep prunes fingerprint windows with no clicks inside the retention
// window and clears the IP counters. Run periodically; skipping a sweep
// only makes the heuristics slightly staler.
func (d *Detector) Sweep() {
	cutoff := d.now().Add(-velocityWindow)

	d.mu.Lock()
	defer d.mu.Unlock()

	for fp, window := range d.fingerprints {
		if len(window) == 0 || !window[len(window)-1].After(cutoff) {
			delete(d.fingerprints, fp)
		}
	}
	d.ipCounts = make(map[string]int)
}

// TrackedFingerprints returns the number of fingerprints currently held.
func (d *Detector) TrackedFingerprints() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fingerprints)
}

// Fingerprint derives the stable correlation key for velocity tracking:
// a truncated SHA-256 over IP, user agent, accept headers, and device/OS.
// Not an identity or security credential.
func Fingerprint(ip, userAgent string, headers http.Header, ctx *redirect.Context) string {
	var parts []string
	parts = append(parts,
		ip,
		userAgent,
		headers.Get("Accept-Language"),
		headers.Get("Accept-Encoding"),
	)
	if ctx != nil {
		parts = append(parts, string(ctx.Device), ctx.OS)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}
