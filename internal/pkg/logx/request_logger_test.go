package logx

import "testing"

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"203.0.113.77:5555", "203.0.113.0"},
		{"203.0.113.77", "203.0.113.0"},
		{"127.0.0.1:80", "127.0.0.1"},
		{"[2001:db8:1:2:3:4:5:6]:443", "2001:db8:1:2::"},
		{"not-an-ip", "unknown_ip"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := anonymizeIP(tt.in); got != tt.want {
				t.Errorf("anonymizeIP(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
