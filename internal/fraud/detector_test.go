package fraud

import (
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/linkpulse/linkpulse/internal/redirect"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"

func browserHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	return h
}

func TestAnalyze_CleanBrowserHit(t *testing.T) {
	d := NewDetector()

	res := d.Analyze("93.184.216.34", browserUA, browserHeaders(), &redirect.Context{})

	if res.Score != 0 {
		t.Errorf("expected score 0 for a clean hit, got %d (reasons %v)", res.Score, res.Reasons)
	}
	if res.IsBot || res.IsSuspicious {
		t.Errorf("clean hit classified bot=%v suspicious=%v", res.IsBot, res.IsSuspicious)
	}
	if res.Fingerprint == "" {
		t.Error("expected a fingerprint")
	}
}

func TestAnalyze_KnownBotUA(t *testing.T) {
	d := NewDetector()

	res := d.Analyze("93.184.216.34", "curl/8.4.0", browserHeaders(), &redirect.Context{})

	if !res.IsBot {
		t.Error("expected known bot UA to classify as bot")
	}
	if !slices.Contains(res.Reasons, ReasonKnownBotUA) {
		t.Errorf("expected reason %s, got %v", ReasonKnownBotUA, res.Reasons)
	}
}

func TestAnalyze_ScoreCappedAt100(t *testing.T) {
	d := NewDetector()

	// Known bot (80) + suspicious UA (30) + missing headers (25) exceeds
	// the cap.
	res := d.Analyze("93.184.216.34", "python-requests test", http.Header{}, &redirect.Context{})

	if res.Score != 100 {
		t.Errorf("expected score capped at 100, got %d", res.Score)
	}
	if len(res.Reasons) < 4 {
		t.Errorf("expected all fired heuristics recorded, got %v", res.Reasons)
	}
}

func TestAnalyze_MissingHeadersOnly(t *testing.T) {
	d := NewDetector()

	h := http.Header{}
	h.Set("Accept", "text/html")
	res := d.Analyze("93.184.216.34", browserUA, h, &redirect.Context{})

	if !slices.Contains(res.Reasons, ReasonNoAcceptLanguage) {
		t.Errorf("expected reason %s, got %v", ReasonNoAcceptLanguage, res.Reasons)
	}
	if res.IsSuspicious {
		t.Errorf("a single weak signal must not reach suspicious, score %d", res.Score)
	}
}

func TestAnalyze_DatacenterIP(t *testing.T) {
	d := NewDetector()

	res := d.Analyze("54.239.28.85", browserUA, browserHeaders(), &redirect.Context{})

	if !slices.Contains(res.Reasons, ReasonDatacenterIP) {
		t.Errorf("expected reason %s, got %v", ReasonDatacenterIP, res.Reasons)
	}
}

func TestAnalyze_RapidSuccession(t *testing.T) {
	d := NewDetector()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return current }

	d.Analyze("93.184.216.34", browserUA, browserHeaders(), &redirect.Context{})
	current = current.Add(100 * time.Millisecond)
	res := d.Analyze("93.184.216.34", browserUA, browserHeaders(), &redirect.Context{})

	if !slices.Contains(res.Reasons, ReasonRapidSuccession) {
		t.Errorf("expected reason %s, got %v", ReasonRapidSuccession, res.Reasons)
	}
}

func TestAnalyze_VelocityEscalation(t *testing.T) {
	d := NewDetector()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return current }

	var res Result
	for i := 0; i < 60; i++ {
		res = d.Analyze("93.184.216.34", browserUA, browserHeaders(), &redirect.Context{})
		current = current.Add(2 * time.Second)
	}

	if !slices.Contains(res.Reasons, ReasonClickVelocity) {
		t.Errorf("expected reason %s, got %v", ReasonClickVelocity, res.Reasons)
	}
	if !slices.Contains(res.Reasons, ReasonIPRepetition) {
		t.Errorf("expected reason %s, got %v", ReasonIPRepetition, res.Reasons)
	}
	if !res.IsSuspicious {
		t.Errorf("expected sustained velocity to reach suspicious, score %d", res.Score)
	}
}

func TestAnalyze_VelocityWindowExpires(t *testing.T) {
	d := NewDetector()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return current }

	for i := 0; i < 15; i++ {
		d.Analyze("93.184.216.34", browserUA, browserHeaders(), &redirect.Context{})
		current = current.Add(time.Second)
	}

	// Past the retention window the fingerprint history resets.
	current = current.Add(velocityWindow + time.Minute)
	res := d.Analyze("93.184.216.34", browserUA, browserHeaders(), &redirect.Context{})

	if slices.Contains(res.Reasons, ReasonClickVelocity) {
		t.Errorf("expected velocity to reset after the window, got %v", res.Reasons)
	}
}

func TestSweep_PrunesStaleState(t *testing.T) {
	d := NewDetector()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return current }

	d.Analyze("93.184.216.34", browserUA, browserHeaders(), &redirect.Context{})
	d.Analyze("198.51.100.7", browserUA, browserHeaders(), &redirect.Context{})

	if got := d.TrackedFingerprints(); got != 2 {
		t.Fatalf("expected 2 tracked fingerprints, got %d", got)
	}

	current = current.Add(velocityWindow + time.Minute)
	d.Sweep()

	if got := d.TrackedFingerprints(); got != 0 {
		t.Errorf("expected stale fingerprints pruned, got %d", got)
	}
}

func TestFingerprint_Stable(t *testing.T) {
	h := browserHeaders()
	ctx := &redirect.Context{Device: redirect.DeviceDesktop, OS: "Windows"}

	a := Fingerprint("93.184.216.34", browserUA, h, ctx)
	b := Fingerprint("93.184.216.34", browserUA, h, ctx)
	c := Fingerprint("198.51.100.7", browserUA, h, ctx)

	if a != b {
		t.Error("expected identical inputs to produce identical fingerprints")
	}
	if a == c {
		t.Error("expected different IPs to produce different fingerprints")
	}
}
