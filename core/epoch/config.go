package epoch

import "fmt"

const (
	// DefaultLengthSeconds is the width of one epoch bucket.
	DefaultLengthSeconds = 3600
	// DefaultQuietMinutes blocks reward submissions at the start of every epoch.
	DefaultQuietMinutes = 7
)

// Config describes how epochs are bucketed and how the shared seed evolves.
type Config struct {
	// LengthSeconds is the epoch width. Must be a positive multiple of 60.
	LengthSeconds uint64

	// QuietMinutes is the number of leading minutes of an epoch during
	// which submissions are ignored. Check-ins are always accepted.
	QuietMinutes uint64

	// ChainSeeds mixes the previous seed into every refresh so the last
	// check-in of an epoch cannot pick the seed independently of history.
	ChainSeeds bool
}

// DefaultConfig returns the hourly epoch with a seven minute quiet window.
func DefaultConfig() Config {
	return Config{
		LengthSeconds: DefaultLengthSeconds,
		QuietMinutes:  DefaultQuietMinutes,
	}
}

// Validate ensures the configuration is self-consistent.
func (c Config) Validate() error {
	if c.LengthSeconds == 0 {
		return fmt.Errorf("epoch length must be greater than zero")
	}
	if c.LengthSeconds%60 != 0 {
		return fmt.Errorf("epoch length must be a whole number of minutes")
	}
	if c.QuietMinutes*60 >= c.LengthSeconds {
		return fmt.Errorf("quiet window must be shorter than the epoch")
	}
	return nil
}
