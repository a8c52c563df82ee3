package usecase

import "testing"

func TestMatchIPPattern(t *testing.T) {
	cases := []struct {
		name    string
		ip      string
		pattern string
		want    bool
	}{
		{"inside /24", "192.168.1.5", "192.168.1.0/24", true},
		{"outside /24", "192.168.2.5", "192.168.1.0/24", false},
		{"exact match", "10.0.0.1", "10.0.0.1", true},
		{"exact mismatch", "10.0.0.2", "10.0.0.1", false},
		{"inside /16", "172.16.200.9", "172.16.0.0/16", true},
		{"outside /16", "172.17.0.1", "172.16.0.0/16", false},
		{"zero prefix matches anything", "8.8.8.8", "0.0.0.0/0", true},
		{"full prefix", "10.1.2.3", "10.1.2.3/32", true},
		{"full prefix mismatch", "10.1.2.4", "10.1.2.3/32", false},
		{"malformed candidate", "10.1.2", "10.0.0.0/8", false},
		{"malformed network", "10.1.2.3", "10.0.0/8", false},
		{"octet out of range", "10.1.2.300", "10.0.0.0/8", false},
		{"bad prefix length", "10.1.2.3", "10.0.0.0/40", false},
		{"non-numeric prefix", "10.1.2.3", "10.0.0.0/abc", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchIPPattern(tc.ip, tc.pattern); got != tc.want {
				t.Fatalf("MatchIPPattern(%q, %q) = %v, want %v", tc.ip, tc.pattern, got, tc.want)
			}
		})
	}
}
