package http

import (
	"net"
	"net/http"
	"strings"
)

// ResolveAddress extracts the originating network address for a request
// by walking an explicit, ordered proxy-header priority list; the first
// non-empty header wins, falling back to the direct connection address.
//
// The headers are client-supplied and are NOT validated against a trusted
// proxy list here: behind an untrusted edge a client can spoof any of
// them and bypass address-based throttling. Deployments exposed directly
// to the internet should set the priority list to headers their reverse
// proxy actually overwrites, or to nothing at all.
func ResolveAddress(r *http.Request, headerPriority []string) string {
	for _, header := range headerPriority {
		value := strings.TrimSpace(r.Header.Get(header))
		if value == "" {
			continue
		}
		// Forwarded-For style headers may carry a chain; the first
		// entry is the originating client.
		if idx := strings.IndexByte(value, ','); idx >= 0 {
			value = strings.TrimSpace(value[:idx])
		}
		if value != "" {
			return value
		}
	}

	return remoteHost(r)
}

// remoteHost extracts the IP address from RemoteAddr (removing port if present)
func remoteHost(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
