package config

import (
	"fmt"
	"time"
)

// DefaultJWTExpirationHours is the token lifetime when none is configured.
const DefaultJWTExpirationHours = 24

// JWTConfig holds the settings used to sign and check API bearer tokens.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// NewJWTConfig builds a JWT configuration from the auth section.
func NewJWTConfig(secret string, expirationHours int) (*JWTConfig, error) {
	if expirationHours == 0 {
		expirationHours = DefaultJWTExpirationHours
	}
	c := &JWTConfig{Secret: secret, ExpirationHours: expirationHours}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// Expiration is the lifetime of an issued token.
func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("auth.jwt_secret cannot be empty")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("auth.jwt_expiration_hours must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
