package redirect

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/linkpulse/linkpulse/internal/geo"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"remote addr", "93.184.216.34:52100", "", "93.184.216.34"},
		{"forwarded single", "10.0.0.1:80", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain takes first", "10.0.0.1:80", "203.0.113.7, 10.0.0.2, 10.0.0.3", "203.0.113.7"},
		{"forwarded with spaces", "10.0.0.1:80", " 203.0.113.7 ,10.0.0.2", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/abc123", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractContext_FullRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/abc123?utm_campaign=spring_sale", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.8")
	req.Header.Set("Referer", "https://social.example/post/1")

	now := time.Date(2026, 3, 2, 14, 45, 0, 0, time.UTC) // a Monday
	ctx := ExtractContext(req, &geo.Location{Country: "de", City: "Berlin"}, now)

	if ctx.Country != "DE" {
		t.Errorf("expected country upper-cased DE, got %q", ctx.Country)
	}
	if ctx.Language != "de" {
		t.Errorf("expected language de, got %q", ctx.Language)
	}
	if ctx.Device != DeviceMobile {
		t.Errorf("expected mobile device, got %q", ctx.Device)
	}
	if ctx.OS != "Android" {
		t.Errorf("expected Android, got %q", ctx.OS)
	}
	if ctx.Browser != "Chrome" {
		t.Errorf("expected Chrome, got %q", ctx.Browser)
	}
	if ctx.Campaign != "spring_sale" {
		t.Errorf("expected campaign spring_sale, got %q", ctx.Campaign)
	}
	if ctx.Referrer != "https://social.example/post/1" {
		t.Errorf("unexpected referrer %q", ctx.Referrer)
	}
	if ctx.Hour == nil || *ctx.Hour != 14 {
		t.Errorf("expected hour 14, got %v", ctx.Hour)
	}
	if ctx.DayOfWeek == nil || *ctx.DayOfWeek != 1 {
		t.Errorf("expected Monday (1), got %v", ctx.DayOfWeek)
	}
}

func TestExtractContext_MinimalRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/abc123", nil)

	now := time.Date(2026, 3, 2, 14, 45, 0, 0, time.UTC)
	ctx := ExtractContext(req, nil, now)

	if ctx.Country != "" {
		t.Errorf("expected unknown country, got %q", ctx.Country)
	}
	if ctx.Language != "" {
		t.Errorf("expected unknown language, got %q", ctx.Language)
	}
	if ctx.Device != DeviceBot {
		t.Errorf("expected empty UA classified as bot, got %q", ctx.Device)
	}
	if ctx.Hour == nil || ctx.DayOfWeek == nil {
		t.Error("hour and day of week are always known")
	}
}

func TestExtractContext_UTCReferenceFrame(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/abc123", nil)

	// 23:30 in UTC-5 is 04:30 UTC the next day.
	loc := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2026, 3, 1, 23, 30, 0, 0, loc) // Sunday local, Monday UTC

	ctx := ExtractContext(req, nil, now)

	if *ctx.Hour != 4 {
		t.Errorf("expected UTC hour 4, got %d", *ctx.Hour)
	}
	if *ctx.DayOfWeek != 1 {
		t.Errorf("expected UTC Monday (1), got %d", *ctx.DayOfWeek)
	}
}

func TestExtractContext_CampaignFallback(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/abc123?campaign=legacy_name", nil)

	ctx := ExtractContext(req, nil, time.Now())

	if ctx.Campaign != "legacy_name" {
		t.Errorf("expected campaign query fallback, got %q", ctx.Campaign)
	}
}

func TestClassifyDevice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ua   string
		want Device
	}{
		{"desktop chrome", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36", DeviceDesktop},
		{"android phone", "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36", DeviceMobile},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1", DeviceTablet},
		{"googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", DeviceBot},
		{"empty ua", "", DeviceBot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/abc123", nil)
			if tt.ua != "" {
				req.Header.Set("User-Agent", tt.ua)
			}

			ctx := ExtractContext(req, nil, time.Now())
			if ctx.Device != tt.want {
				t.Errorf("device = %q, want %q", ctx.Device, tt.want)
			}
		})
	}
}
