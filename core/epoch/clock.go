package epoch

// Clock buckets unix timestamps into epochs.
type Clock struct {
	length uint64
	quiet  uint64
}

// NewClock builds a clock from a validated configuration.
func NewClock(cfg Config) Clock {
	length := cfg.LengthSeconds
	if length == 0 {
		length = DefaultLengthSeconds
	}
	return Clock{length: length, quiet: cfg.QuietMinutes}
}

// Epoch returns floor(now / length).
func (c Clock) Epoch(now uint64) uint64 {
	return now / c.length
}

// Minute returns the whole minutes elapsed since the start of now's epoch.
func (c Clock) Minute(now uint64) uint64 {
	return (now % c.length) / 60
}

// InQuietWindow reports whether now falls in the leading quiet minutes.
func (c Clock) InQuietWindow(now uint64) bool {
	return c.Minute(now) < c.quiet
}

// SameEpoch reports whether both timestamps fall in the same bucket.
func (c Clock) SameEpoch(a, b uint64) bool {
	return c.Epoch(a) == c.Epoch(b)
}
