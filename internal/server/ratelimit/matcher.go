package ratelimit

import (
	"net/http"
	"strings"
)

// unlimited is returned for routes that are never limited.
var unlimited = EndpointConfig{}

// MatchEndpoint returns the configuration for path and method, or nil when the
// default limit applies. Exact paths win over prefixes; the longest prefix wins.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == http.MethodGet {
		u := unlimited
		return &u
	}

	for i := range configs {
		if configs[i].Path == path && configs[i].Method == method {
			return &configs[i]
		}
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method || !strings.HasSuffix(c.Path, "/") || !strings.HasPrefix(path, c.Path) {
			continue
		}
		if best == nil || len(c.Path) > len(best.Path) {
			best = c
		}
	}
	return best
}
