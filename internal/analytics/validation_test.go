package analytics

import (
	"testing"
	"time"
)

func TestValidateClickEventPayload(t *testing.T) {
	valid := ClickEventPayload{
		ShortCode:    "abc123",
		LinkID:       "link-1",
		IPHash:       "0123456789abcdef",
		Referrer:     "https://example.com/path",
		UserAgent:    "TestAgent/1.0",
		Country:      "US",
		FraudScore:   35,
		RedirectedTo: "https://example.com/landing",
		ClickedAt:    time.Now().UnixMilli(),
	}

	if err := ValidateClickEventPayload(valid); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	cases := []struct {
		name    string
		payload ClickEventPayload
	}{
		{"missing_short_code", ClickEventPayload{LinkID: "link", IPHash: "0123456789abcdef", RedirectedTo: "https://x.com", ClickedAt: 1}},
		{"short_code_too_short", ClickEventPayload{ShortCode: "ab", LinkID: "link", IPHash: "0123456789abcdef", RedirectedTo: "https://x.com", ClickedAt: 1}},
		{"missing_link_id", ClickEventPayload{ShortCode: "abc", IPHash: "0123456789abcdef", RedirectedTo: "https://x.com", ClickedAt: 1}},
		{"missing_ip_hash", ClickEventPayload{ShortCode: "abc", LinkID: "link", RedirectedTo: "https://x.com", ClickedAt: 1}},
		{"invalid_ip_hash", ClickEventPayload{ShortCode: "abc", LinkID: "link", IPHash: "not-hex-chars-xx", RedirectedTo: "https://x.com", ClickedAt: 1}},
		{"invalid_country", ClickEventPayload{ShortCode: "abc", LinkID: "link", IPHash: "0123456789abcdef", Country: "USA", RedirectedTo: "https://x.com", ClickedAt: 1}},
		{"fraud_score_over_cap", ClickEventPayload{ShortCode: "abc", LinkID: "link", IPHash: "0123456789abcdef", FraudScore: 101, RedirectedTo: "https://x.com", ClickedAt: 1}},
		{"missing_redirected_to", ClickEventPayload{ShortCode: "abc", LinkID: "link", IPHash: "0123456789abcdef", ClickedAt: 1}},
		{"missing_clicked_at", ClickEventPayload{ShortCode: "abc", LinkID: "link", IPHash: "0123456789abcdef", RedirectedTo: "https://x.com"}},
	}

	for _, tc := range cases {
		if err := ValidateClickEventPayload(tc.payload); err == nil {
			t.Fatalf("expected error for %s", tc.name)
		}
	}
}
