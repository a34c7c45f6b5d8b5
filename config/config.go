package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"playmint/crypto"
)

// ErrKeystorePassphraseRequired is returned when a default configuration must
// mint an operator keystore but no passphrase was supplied.
var ErrKeystorePassphraseRequired = errors.New("config: keystore passphrase required to create operator key")

type Config struct {
	DataDir              string `toml:"DataDir"`
	GenesisFile          string `toml:"GenesisFile"`
	OperatorKeystore     string `toml:"OperatorKeystorePath"`
	ShutdownGraceSeconds int    `toml:"ShutdownGraceSeconds"`

	Storage   Storage   `toml:"storage"`
	Ledger    Ledger    `toml:"ledger"`
	Epoch     Epoch     `toml:"epoch"`
	Issuance  Issuance  `toml:"issuance"`
	Gateway   Gateway   `toml:"gateway"`
	API       API       `toml:"api"`
	Operator  Operator  `toml:"operator"`
	Webhook   Webhook   `toml:"webhook"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
}

type loadOptions struct {
	passphrase string
	strength   crypto.KeystoreStrength
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

// WithKeystorePassphrase supplies the passphrase used when a default
// configuration creates the operator keystore.
func WithKeystorePassphrase(passphrase string) LoadOption {
	return func(o *loadOptions) { o.passphrase = passphrase }
}

// WithKeystoreStrength overrides the scrypt parameters of a created keystore.
func WithKeystoreStrength(strength crypto.KeystoreStrength) LoadOption {
	return func(o *loadOptions) { o.strength = strength }
}

// Load reads the configuration at path, creating a default file (and an
// operator keystore) when none exists. Missing values are defaulted and the
// result is validated.
func Load(path string, opts ...LoadOption) (*Config, error) {
	var options loadOptions
	for _, opt := range opts {
		opt(&options)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, options)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	// An explicit rate limit table replaces the defaults instead of merging.
	cfg.API.RateLimits = nil
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		DataDir:              "./playmint-data",
		ShutdownGraceSeconds: 10,
		Storage:              Storage{Backend: "leveldb"},
		Ledger:               Ledger{Driver: "memory"},
		Epoch:                Epoch{LengthSeconds: 3600, QuietMinutes: 7},
		Issuance: Issuance{
			Window:            "default",
			ApprovalCapacity:  4,
			AssignerCacheSize: 1024,
		},
		Gateway: Gateway{Mode: "permissive", ClockSkew: 30},
		API: API{
			ListenAddress:       ":8080",
			SignatureMaxAgeSecs: 300,
			ReadHeaderTimeout:   5,
			RateLimits: map[string]RateLimit{
				"checkin":    {RequestsPerMinute: 30, Burst: 5},
				"submit":     {RequestsPerMinute: 120, Burst: 20},
				"claim":      {RequestsPerMinute: 10, Burst: 2},
				"registry":   {RequestsPerMinute: 30, Burst: 5},
				"governance": {RequestsPerMinute: 10, Burst: 2},
				"read":       {RequestsPerMinute: 600, Burst: 100},
			},
		},
		Operator: Operator{ScopeClaim: "scope"},
		Webhook:  Webhook{MaxAttempts: 5},
		Logging: Logging{
			Level:       "info",
			Environment: "dev",
			MaxSizeMB:   100,
			MaxBackups:  5,
			MaxAgeDays:  14,
		},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true},
	}
}

func (c *Config) applyDefaults() {
	defaults := Default()
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaults.DataDir
	}
	if c.ShutdownGraceSeconds <= 0 {
		c.ShutdownGraceSeconds = defaults.ShutdownGraceSeconds
	}
	if strings.TrimSpace(c.Storage.Backend) == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if strings.TrimSpace(c.Ledger.Driver) == "" {
		c.Ledger.Driver = defaults.Ledger.Driver
	}
	if strings.TrimSpace(c.Issuance.Window) == "" {
		c.Issuance.Window = defaults.Issuance.Window
	}
	if c.Issuance.ApprovalCapacity == 0 {
		c.Issuance.ApprovalCapacity = defaults.Issuance.ApprovalCapacity
	}
	if strings.TrimSpace(c.Gateway.Mode) == "" {
		c.Gateway.Mode = defaults.Gateway.Mode
	}
	if strings.TrimSpace(c.API.ListenAddress) == "" {
		c.API.ListenAddress = defaults.API.ListenAddress
	}
	if c.API.SignatureMaxAgeSecs <= 0 {
		c.API.SignatureMaxAgeSecs = defaults.API.SignatureMaxAgeSecs
	}
	if c.API.RateLimits == nil {
		c.API.RateLimits = defaults.API.RateLimits
	}
	if strings.TrimSpace(c.Operator.ScopeClaim) == "" {
		c.Operator.ScopeClaim = defaults.Operator.ScopeClaim
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// createDefault writes a default configuration next to a freshly generated
// operator keystore.
func createDefault(path string, options loadOptions) (*Config, error) {
	if options.passphrase == "" {
		return nil, ErrKeystorePassphraseRequired
	}
	cfg := Default()
	cfg.OperatorKeystore = defaultKeystorePath(path)
	if _, _, err := crypto.LoadOrCreateKeystore(cfg.OperatorKeystore, options.passphrase, options.strength); err != nil {
		return nil, fmt.Errorf("create operator keystore: %w", err)
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
