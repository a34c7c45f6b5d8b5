package epoch

// State is the single shared snapshot of epoch bookkeeping.
type State struct {
	Seed         uint64
	SeedSet      bool
	SeedVersion  uint64
	LastSeedTime uint64

	EpochID  uint64
	EpochSet bool

	ActiveValidators   uint64
	TotalValidators    uint64
	TotalBeneficiaries uint64
}

// HasSeed reports whether any check-in has produced a seed yet.
func (s *State) HasSeed() bool {
	return s != nil && s.SeedSet
}

// Summary is the read-only view served to API consumers.
type Summary struct {
	Epoch              uint64 `json:"epoch"`
	Minute             uint64 `json:"minute"`
	QuietWindow        bool   `json:"quietWindow"`
	Seed               uint64 `json:"seed"`
	SeedVersion        uint64 `json:"seedVersion"`
	LastSeedTime       uint64 `json:"lastSeedTime"`
	ActiveValidators   uint64 `json:"activeValidators"`
	TotalValidators    uint64 `json:"totalValidators"`
	TotalBeneficiaries uint64 `json:"totalBeneficiaries"`
}

// Summarize projects the state at now through the clock.
func (s State) Summarize(clock Clock, now uint64) Summary {
	return Summary{
		Epoch:              clock.Epoch(now),
		Minute:             clock.Minute(now),
		QuietWindow:        clock.InQuietWindow(now),
		Seed:               s.Seed,
		SeedVersion:        s.SeedVersion,
		LastSeedTime:       s.LastSeedTime,
		ActiveValidators:   s.ActiveValidators,
		TotalValidators:    s.TotalValidators,
		TotalBeneficiaries: s.TotalBeneficiaries,
	}
}
