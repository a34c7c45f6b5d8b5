package config

// Storage selects the record store backend.
type Storage struct {
	Backend string `toml:"Backend"`
}

// Ledger selects where mints are recorded. Driver "memory" keeps balances in
// process; "sqlite" and "postgres" persist a journal through gorm.
type Ledger struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Epoch mirrors the epoch bucketing knobs.
type Epoch struct {
	LengthSeconds uint64 `toml:"LengthSeconds"`
	QuietMinutes  uint64 `toml:"QuietMinutes"`
	ChainSeeds    bool   `toml:"ChainSeeds"`
}

// Issuance tunes the quorum and throttle behaviour.
type Issuance struct {
	// Window is "default" (1..34 minutes), "legacy" (7..34) or "custom".
	Window            string `toml:"Window"`
	WindowMinMinutes  uint64 `toml:"WindowMinMinutes"`
	WindowMaxMinutes  uint64 `toml:"WindowMaxMinutes"`
	ApprovalCapacity  int    `toml:"ApprovalCapacity"`
	ToleranceSlack    uint64 `toml:"ToleranceSlack"`
	AssignerCacheSize int    `toml:"AssignerCacheSize"`
}

// Gateway selects the identity attestation used for open registration.
type Gateway struct {
	// Mode is "permissive", "allowlist" or "jwt".
	Mode      string   `toml:"Mode"`
	Secret    string   `toml:"Secret"`
	SecretEnv string   `toml:"SecretEnv"`
	Issuer    string   `toml:"Issuer"`
	ClockSkew int      `toml:"ClockSkewSeconds"`
	Allowlist []string `toml:"Allowlist"`
}

// RateLimit bounds one route group.
type RateLimit struct {
	RequestsPerMinute int `toml:"RequestsPerMinute"`
	Burst             int `toml:"Burst"`
}

// API configures the HTTP surface.
type API struct {
	ListenAddress       string               `toml:"ListenAddress"`
	SignatureMaxAgeSecs int                  `toml:"SignatureMaxAgeSeconds"`
	AllowedOrigins      []string             `toml:"AllowedOrigins"`
	LogRequests         bool                 `toml:"LogRequests"`
	ReadHeaderTimeout   int                  `toml:"ReadHeaderTimeoutSeconds"`
	RateLimits          map[string]RateLimit `toml:"RateLimits"`
}

// Operator protects operator-only routes with HMAC bearer tokens.
type Operator struct {
	Enabled    bool   `toml:"Enabled"`
	Secret     string `toml:"Secret"`
	SecretEnv  string `toml:"SecretEnv"`
	Issuer     string `toml:"Issuer"`
	ScopeClaim string `toml:"ScopeClaim"`
}

// Webhook forwards engine events to an external endpoint.
type Webhook struct {
	Endpoint    string   `toml:"Endpoint"`
	Secret      string   `toml:"Secret"`
	SecretEnv   string   `toml:"SecretEnv"`
	Topics      []string `toml:"Topics"`
	MaxAttempts int      `toml:"MaxAttempts"`
}

// Logging configures the structured logger.
type Logging struct {
	Level       string `toml:"Level"`
	Environment string `toml:"Environment"`
	File        string `toml:"File"`
	MaxSizeMB   int    `toml:"MaxSizeMB"`
	MaxBackups  int    `toml:"MaxBackups"`
	MaxAgeDays  int    `toml:"MaxAgeDays"`
	Compress    bool   `toml:"Compress"`
}

// Telemetry configures OpenTelemetry exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}
