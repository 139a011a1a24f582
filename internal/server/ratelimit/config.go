package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// EndpointConfig is the limit for one route group.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends in "/"
	Method string        // HTTP method
	Limit  int           // requests per window
	Window time.Duration // refill window
	Burst  int           // bucket capacity, Limit when 0
}

// DefaultConfig returns an enabled limiter configuration with the default endpoint tiers.
func DefaultConfig() *Config {
	return NewConfig(true, 1000, time.Minute, 5*time.Minute, nil, nil)
}

// NewConfig builds a Config from flat settings. Address lists may contain
// comma-separated entries.
func NewConfig(enabled bool, defaultLimit int, defaultWindow, cleanupInterval time.Duration, whitelist, blacklist []string) *Config {
	if !enabled {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    defaultLimit,
		DefaultWindow:   defaultWindow,
		CleanupInterval: cleanupInterval,
		Whitelist:       parseIPList(whitelist),
		Blacklist:       parseIPList(blacklist),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the endpoint tiers.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Tier 1: agent runs spend LLM calls
		{Path: "/api/agents/", Method: http.MethodPost, Limit: 20, Window: time.Hour, Burst: 3},

		// Tier 2: writes
		{Path: "/api/planned-projects/tasks", Method: http.MethodPatch, Limit: 120, Window: time.Minute, Burst: 20},
		{Path: "/api/profiles/index", Method: http.MethodPost, Limit: 60, Window: time.Minute, Burst: 10},

		// Reads use the default limit; /health is unlimited (see MatchEndpoint).
	}
}

func parseIPList(entries []string) map[string]bool {
	result := make(map[string]bool)
	for _, entry := range entries {
		for _, ip := range strings.Split(entry, ",") {
			if ip = strings.TrimSpace(ip); ip != "" {
				result[ip] = true
			}
		}
	}
	return result
}
