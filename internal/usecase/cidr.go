package usecase

import (
	"strconv"
	"strings"
)

// MatchIPPattern reports whether an IPv4 address matches a whitelist pattern.
// A pattern without a slash requires exact equality; a CIDR pattern matches
// when the first prefix-length bits of both addresses are identical.
// Malformed input is a non-match, never an error: a broken whitelist entry
// must not take the gate down with it.
func MatchIPPattern(ip, pattern string) bool {
	if !strings.Contains(pattern, "/") {
		return ip == pattern
	}

	parts := strings.SplitN(pattern, "/", 2)
	network := parts[0]

	prefixLen, err := strconv.Atoi(parts[1])
	if err != nil || prefixLen < 0 || prefixLen > 32 {
		return false
	}

	ipBits, ok := ipv4Bits(ip)
	if !ok {
		return false
	}
	networkBits, ok := ipv4Bits(network)
	if !ok {
		return false
	}

	return ipBits[:prefixLen] == networkBits[:prefixLen]
}

// ipv4Bits expands a dotted-quad address into a 32-character binary string.
func ipv4Bits(addr string) (string, bool) {
	octets := strings.Split(addr, ".")
	if len(octets) != 4 {
		return "", false
	}

	var b strings.Builder
	b.Grow(32)
	for _, octet := range octets {
		value, err := strconv.Atoi(octet)
		if err != nil || value < 0 || value > 255 {
			return "", false
		}
		bits := strconv.FormatInt(int64(value), 2)
		b.WriteString(strings.Repeat("0", 8-len(bits)))
		b.WriteString(bits)
	}

	return b.String(), true
}
