package config

import (
	"fmt"
	"strings"

	"playmint/crypto"
)

// Validate rejects configurations the node cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case "memory", "leveldb", "bolt", "sqlite":
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	switch strings.ToLower(c.Ledger.Driver) {
	case "memory":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Ledger.DSN) == "" {
			return fmt.Errorf("ledger: %s driver requires a DSN", c.Ledger.Driver)
		}
	default:
		return fmt.Errorf("ledger: unknown driver %q", c.Ledger.Driver)
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("issuance: %w", err)
	}
	switch strings.ToLower(c.Gateway.Mode) {
	case "permissive":
	case "allowlist":
		for _, raw := range c.Gateway.Allowlist {
			if _, err := crypto.ParseAddress(raw); err != nil {
				return fmt.Errorf("gateway: allowlist entry %q: %w", raw, err)
			}
		}
	case "jwt":
		if c.Gateway.ResolvedSecret() == "" {
			return fmt.Errorf("gateway: jwt mode requires Secret or SecretEnv")
		}
	default:
		return fmt.Errorf("gateway: unknown mode %q", c.Gateway.Mode)
	}
	for group, limit := range c.API.RateLimits {
		if limit.RequestsPerMinute < 0 || limit.Burst < 0 {
			return fmt.Errorf("api: rate limit %q must not be negative", group)
		}
	}
	if c.Operator.Enabled && c.Operator.ResolvedSecret() == "" {
		return fmt.Errorf("operator: auth enabled without Secret or SecretEnv")
	}
	if strings.TrimSpace(c.Webhook.Endpoint) != "" && c.Webhook.ResolvedSecret() == "" {
		return fmt.Errorf("webhook: endpoint configured without Secret or SecretEnv")
	}
	return nil
}
