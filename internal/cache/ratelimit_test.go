package cache

import "testing"

func TestHashIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip   string
	}{
		{"ipv4", "203.0.113.9"},
		{"ipv4 loopback", "127.0.0.1"},
		{"ipv6 loopback", "::1"},
		{"ipv6 full", "2001:0db8:85a3:0000:0000:8a2e:0370:7334"},
		{"empty", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := hashIP(tt.ip)
			if len(got) != 16 {
				t.Errorf("hashIP(%q) length = %d, want 16", tt.ip, len(got))
			}
			if again := hashIP(tt.ip); again != got {
				t.Errorf("hashIP(%q) not deterministic: %s vs %s", tt.ip, got, again)
			}
		})
	}
}

func TestHashIP_DistinctInputs(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"10.0.0.1", "10.0.0.2"},
		{"127.0.0.1", "::1"},
		{"8.8.8.8", "192.168.1.1"},
	}

	for _, p := range pairs {
		if hashIP(p[0]) == hashIP(p[1]) {
			t.Errorf("hashIP collision for %q and %q", p[0], p[1])
		}
	}
}
