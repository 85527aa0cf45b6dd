package server

import (
	"net"
	"net/http"
	"strings"
)

// clientIP returns the client address for logging. Forwarding headers are
// only honored when trustProxy is set, since anyone can send them directly.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// First hop is the original client
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
			return realIP
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
