// Package privacy holds helpers for keeping personal data out of logs.
package privacy

import (
	"net"
	"strings"
)

// AnonymizeIP masks the host part of an IP address before logging: the last
// octet of an IPv4 address is zeroed, IPv6 addresses are truncated to /48.
// Unparseable input is replaced entirely rather than logged verbatim.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "invalid"
	}

	if v4 := parsed.To4(); v4 != nil {
		masked := v4.Mask(net.CIDRMask(24, 32))
		return masked.String()
	}

	masked := parsed.Mask(net.CIDRMask(48, 128))
	return masked.String()
}

// RedactUserAgent keeps only the leading product token of a User-Agent
// header, dropping the detailed platform segments.
func RedactUserAgent(ua string) string {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return ""
	}
	if i := strings.IndexAny(ua, " ("); i > 0 {
		return ua[:i]
	}
	return ua
}
