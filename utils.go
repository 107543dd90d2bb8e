package main

import (
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

// hostOnly strips the port from an address, leaving bare hosts untouched
func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// clientIP is the peer address. X-Forwarded-For is only honored when the
// peer itself is a trusted proxy; the last untrusted hop is the client.
func clientIP(r *http.Request, trusted map[string]bool) string {
	peer := hostOnly(r.RemoteAddr)
	if !trusted[peer] {
		return peer
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop != "" && !trusted[hop] {
			return hop
		}
	}
	return peer
}

// proxySet builds the lookup used by clientIP
func proxySet(addrs []string) map[string]bool {
	if len(addrs) == 0 {
		return nil
	}
	set := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			set[a] = true
		}
	}
	return set
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune,
// replacing the tail with "..." when anything was dropped.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// splitTXT splits s into chunks of at most size bytes on rune boundaries,
// as DNS TXT character-strings are limited to 255 bytes each.
func splitTXT(s string, size int) []string {
	var out []string
	for len(s) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
