package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"192.168.1.57", "192.168.1.0"},
		{"10.0.0.1", "10.0.0.0"},
		{"2001:db8:abcd:1234::1", "2001:db8:abcd::"},
		{"not-an-ip", "invalid"},
		{"", "invalid"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AnonymizeIP(tt.in), "AnonymizeIP(%q)", tt.in)
	}
}

func TestRedactUserAgent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "curl/8.5.0", RedactUserAgent("curl/8.5.0"))
	assert.Equal(t, "Mozilla/5.0", RedactUserAgent("Mozilla/5.0 (X11; Linux x86_64) Gecko/20100101"))
	assert.Empty(t, RedactUserAgent("  "))
}
