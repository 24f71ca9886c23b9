package webhook

import (
	"errors"
	"testing"
)

func TestValidateTargetURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"valid https", "https://hooks.example.com/ingest", nil},
		{"valid with path and query", "https://hooks.example.com/a/b?token=x", nil},
		{"explicit 443", "https://hooks.example.com:443/ingest", nil},
		{"plain http", "http://hooks.example.com/ingest", ErrInvalidScheme},
		{"ftp scheme", "ftp://hooks.example.com", ErrInvalidScheme},
		{"no host", "https://", ErrEmptyHost},
		{"localhost", "https://localhost/hook", ErrLocalhostBlocked},
		{"localhost subdomain", "https://api.localhost/hook", ErrLocalhostBlocked},
		{"dot local", "https://printer.local/hook", ErrLocalhostBlocked},
		{"loopback literal", "https://127.0.0.1/hook", ErrLocalhostBlocked},
		{"ipv6 loopback", "https://[::1]/hook", ErrLocalhostBlocked},
		{"non standard port", "https://hooks.example.com:8443/ingest", ErrInvalidPort},
		{"private 10 range", "https://10.1.2.3/hook", ErrPrivateIP},
		{"private 192 range", "https://192.168.1.50/hook", ErrPrivateIP},
		{"private 172 range", "https://172.16.0.10/hook", ErrPrivateIP},
		{"link local", "https://169.254.1.1/hook", ErrPrivateIP},
		{"cgnat range", "https://100.64.0.1/hook", ErrPrivateIP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTargetURL(tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTargetURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestExtractHost(t *testing.T) {
	t.Parallel()

	if got := ExtractHost("https://hooks.example.com/secret-path?token=x"); got != "hooks.example.com" {
		t.Errorf("expected bare host, got %q", got)
	}
	if got := ExtractHost("://bad"); got != "(invalid)" {
		t.Errorf("expected (invalid) placeholder, got %q", got)
	}
}
