package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"playmint/core/epoch"
	"playmint/gateway/middleware"
	"playmint/native/issuance"
	"playmint/observability/logging"
	telemetry "playmint/observability/otel"
)

// EngineConfig converts the epoch and issuance sections into engine settings.
func (c *Config) EngineConfig() issuance.Config {
	cfg := issuance.DefaultConfig()
	cfg.Epoch = epoch.Config{
		LengthSeconds: c.Epoch.LengthSeconds,
		QuietMinutes:  c.Epoch.QuietMinutes,
		ChainSeeds:    c.Epoch.ChainSeeds,
	}
	switch strings.ToLower(c.Issuance.Window) {
	case "legacy":
		cfg.Window = issuance.LegacyWindow()
	case "custom":
		cfg.Window = issuance.Window{MinMinutes: c.Issuance.WindowMinMinutes, MaxMinutes: c.Issuance.WindowMaxMinutes}
	}
	if c.Issuance.ApprovalCapacity != 0 {
		cfg.ApprovalCapacity = c.Issuance.ApprovalCapacity
	}
	cfg.ToleranceSlack = c.Issuance.ToleranceSlack
	if c.Issuance.AssignerCacheSize > 0 {
		cfg.AssignerCacheSize = c.Issuance.AssignerCacheSize
	}
	return cfg
}

// RateLimits returns the per-group limiter settings.
func (c *Config) RateLimits() map[string]middleware.RateLimit {
	out := make(map[string]middleware.RateLimit, len(c.API.RateLimits))
	for group, limit := range c.API.RateLimits {
		out[strings.ToLower(group)] = middleware.RateLimit{RequestsPerMinute: float64(limit.RequestsPerMinute), Burst: limit.Burst}
	}
	return out
}

// OperatorAuth returns the bearer-token settings for operator routes.
func (c *Config) OperatorAuth() middleware.AuthConfig {
	return middleware.AuthConfig{
		Enabled:    c.Operator.Enabled,
		HMACSecret: c.Operator.ResolvedSecret(),
		Issuer:     c.Operator.Issuer,
		ScopeClaim: c.Operator.ScopeClaim,
		ClockSkew:  30 * time.Second,
	}
}

// SignatureMaxAge bounds the age of signed request timestamps.
func (c *Config) SignatureMaxAge() time.Duration {
	return time.Duration(c.API.SignatureMaxAgeSecs) * time.Second
}

// LogFile returns the rotating file settings for the logger.
func (c *Config) LogFile() logging.FileConfig {
	return logging.FileConfig{
		Path:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}
}

// TelemetryConfig returns the exporter settings for service.
func (c *Config) TelemetryConfig(service string) telemetry.Config {
	return telemetry.Config{
		ServiceName: service,
		Environment: c.Logging.Environment,
		Endpoint:    c.Telemetry.Endpoint,
		Insecure:    c.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(c.Telemetry.Headers),
		Traces:      c.Telemetry.Traces,
		Metrics:     c.Telemetry.Metrics,
	}
}

// ResolvedSecret prefers the environment variable named by SecretEnv.
func (g Gateway) ResolvedSecret() string { return resolveSecret(g.Secret, g.SecretEnv) }

// ResolvedSecret prefers the environment variable named by SecretEnv.
func (o Operator) ResolvedSecret() string { return resolveSecret(o.Secret, o.SecretEnv) }

// ResolvedSecret prefers the environment variable named by SecretEnv.
func (w Webhook) ResolvedSecret() string { return resolveSecret(w.Secret, w.SecretEnv) }

func resolveSecret(inline, env string) string {
	if name := strings.TrimSpace(env); name != "" {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(inline)
}

// ClockSkewDuration returns the tolerated attestation clock drift.
func (g Gateway) ClockSkewDuration() time.Duration {
	if g.ClockSkew <= 0 {
		return 0
	}
	return time.Duration(g.ClockSkew) * time.Second
}

// LogValue renders the config for startup logs. Secrets and the ledger DSN are
// masked.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("data_dir", c.DataDir),
		slog.String("storage", c.Storage.Backend),
		slog.String("ledger", c.Ledger.Driver),
		logging.MaskField("ledger_dsn", c.Ledger.DSN),
		slog.String("gateway_mode", c.Gateway.Mode),
		logging.MaskField("gateway_secret", c.Gateway.ResolvedSecret()),
		slog.Bool("operator_auth", c.Operator.Enabled),
		logging.MaskField("operator_secret", c.Operator.ResolvedSecret()),
		slog.String("webhook_endpoint", c.Webhook.Endpoint),
		logging.MaskField("webhook_secret", c.Webhook.ResolvedSecret()),
		slog.String("listen", c.API.ListenAddress),
	)
}
