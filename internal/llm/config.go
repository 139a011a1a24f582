// Package llm provides centralized LLM configuration, client abstractions and
// recovery of structured data from free-form completions.
package llm

import (
	"errors"
	"fmt"
	"time"
)

// ModelTier selects a model by the reasoning a pipeline stage needs.
type ModelTier string

const (
	// TierLite is for simple tasks: classification, short lists
	TierLite ModelTier = "lite"
	// TierStandard is for structured output: roles, candidate ranking, features, tasks
	TierStandard ModelTier = "standard"
	// TierAdvanced is for roadmap planning
	TierAdvanced ModelTier = "advanced"
)

// Tiers lists every tier, cheapest first.
var Tiers = []ModelTier{TierLite, TierStandard, TierAdvanced}

// ParseTier converts a tier name into a ModelTier.
func ParseTier(s string) (ModelTier, error) {
	for _, t := range Tiers {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown model tier %q", s)
}

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider, the only one supported.
const ProviderGemini Provider = "gemini"

// Config holds the model configuration of a client.
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
	// JSONMode asks the provider for an application/json response body.
	JSONMode bool
	// MaxAttempts bounds retries of a single completion; 1 disables retrying.
	MaxAttempts int
	// RetryBackoff is the delay before the first retry, doubled on each further attempt.
	RetryBackoff time.Duration
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature:  0.5,
		JSONMode:     true,
		MaxAttempts:  3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Provider != "" && c.Provider != ProviderGemini {
		errs = append(errs, fmt.Errorf("unsupported LLM provider %q", c.Provider))
	}
	if c.GetModel(TierStandard) == "" {
		errs = append(errs, errors.New("no model configured"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature))
	}
	if c.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("max attempts must not be negative, got %d", c.MaxAttempts))
	}
	if c.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("retry backoff must not be negative, got %s", c.RetryBackoff))
	}
	return errors.Join(errs...)
}

// GetModel returns the model for tier. A tier without a model borrows the
// closest cheaper one, so a single configured model serves every stage.
func (c *Config) GetModel(tier ModelTier) string {
	if model := c.Models[tier]; model != "" {
		return model
	}
	switch tier {
	case TierAdvanced:
		return c.GetModel(TierStandard)
	case TierStandard:
		return c.Models[TierLite]
	case TierLite:
		return ""
	default:
		return c.GetModel(TierStandard)
	}
}

// WithModel returns a copy of c with model set for tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := *c
	out.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return &out
}
