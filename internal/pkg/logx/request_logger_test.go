package logx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"203.0.113.42:5123", "203.0.113.0"},
		{"203.0.113.42", "203.0.113.0"},
		{"[2001:db8:1:2:3:4:5:6]:443", "2001:db8:1:2::"},
		{"::1", "127.0.0.1"},
		{"127.0.0.1:80", "127.0.0.1"},
		{"not-an-ip", "unknown_ip"},
		{"", "unknown_ip"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, anonymizeIP(tc.in), tc.in)
	}
}
