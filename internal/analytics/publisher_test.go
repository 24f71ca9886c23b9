package analytics

import (
	"strings"
	"testing"
)

func TestHashIP(t *testing.T) {
	t.Parallel()

	h := HashIP("203.0.113.7", "salt")
	if len(h) != 16 {
		t.Fatalf("hash length = %d, want 16", len(h))
	}
	if again := HashIP("203.0.113.7", "salt"); again != h {
		t.Error("same IP and salt should hash identically")
	}
	if HashIP("203.0.113.7", "other-salt") == h {
		t.Error("different salt should change the hash")
	}
	if HashIP("203.0.113.8", "salt") == h {
		t.Error("different IP should change the hash")
	}
	if HashIP("::1", "salt") == HashIP("127.0.0.1", "salt") {
		t.Error("IPv6 and IPv4 loopback should not collide")
	}
}

func TestSanitizeReferrer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "strips utm params",
			input: "https://example.com/page?utm_source=test&utm_medium=email",
			want:  "https://example.com/page",
		},
		{
			name:  "strips search query",
			input: "https://google.com/search?q=test&hl=en",
			want:  "https://google.com/search",
		},
		{
			name:  "strips fragment",
			input: "https://example.com/page#section",
			want:  "https://example.com/page",
		},
		{
			name:  "strips query and fragment",
			input: "https://example.com/path?query=1#section",
			want:  "https://example.com/path",
		},
		{
			name:  "empty stays empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := SanitizeReferrer(tt.input); got != tt.want {
				t.Errorf("SanitizeReferrer(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeReferrer_Clips(t *testing.T) {
	t.Parallel()

	long := "https://example.com/" + strings.Repeat("a", 600)
	if got := SanitizeReferrer(long); len(got) > 500 {
		t.Errorf("sanitized referrer length = %d, want <= 500", len(got))
	}
}

func TestExtractCountryCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"us", "US"},
		{"US", "US"},
		{"gb", "GB"},
		{"", ""},
		{"USA", ""},
		{"U", ""},
	}

	for _, tt := range tests {
		if got := ExtractCountryCode(tt.input); got != tt.want {
			t.Errorf("ExtractCountryCode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExtractReferrerDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"https://google.com/search?q=test", "google.com"},
		{"https://www.example.com/path/to/page", "www.example.com"},
		{"http://sub.domain.com:8080/path", "sub.domain.com:8080"},
		{"", "(direct)"},
		{"not a url at all", "(unknown)"},
	}

	for _, tt := range tests {
		if got := ExtractReferrerDomain(tt.input); got != tt.want {
			t.Errorf("ExtractReferrerDomain(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTruncateUserAgent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantLen int
	}{
		{"short", "Mozilla/5.0", 11},
		{"exactly at cap", strings.Repeat("x", 500), 500},
		{"over cap", strings.Repeat("x", 600), 500},
	}

	for _, tt := range tests {
		if got := TruncateUserAgent(tt.input); len(got) != tt.wantLen {
			t.Errorf("%s: length = %d, want %d", tt.name, len(got), tt.wantLen)
		}
	}
}
