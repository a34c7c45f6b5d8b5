package epoch

// CheckinResult describes what a check-in changed.
type CheckinResult struct {
	Epoch      uint64
	RolledOver bool
	Counted    bool
}

// Tracker counts validators that checked in during the current epoch.
type Tracker struct {
	clock Clock
}

// NewTracker returns a tracker bucketing time with clock.
func NewTracker(clock Clock) Tracker {
	return Tracker{clock: clock}
}

// CheckIn rolls the epoch over when now has advanced past the recorded one
// and counts the validator once per epoch. lastCheckin is the validator's
// previous check-in (0 when it never checked in); callers store now as the
// validator's new check-in time afterwards.
func (t Tracker) CheckIn(state *State, lastCheckin, now uint64) CheckinResult {
	current := t.clock.Epoch(now)
	result := CheckinResult{Epoch: current}
	if !state.EpochSet || current > state.EpochID {
		state.ActiveValidators = 0
		state.EpochID = current
		state.EpochSet = true
		result.RolledOver = true
	}
	earlier := lastCheckin == 0 || t.clock.Epoch(lastCheckin) < current
	if earlier && state.ActiveValidators < state.TotalValidators {
		state.ActiveValidators++
		result.Counted = true
	}
	return result
}

// CheckedInDuring reports whether a check-in timestamp lies in now's epoch.
func (t Tracker) CheckedInDuring(lastCheckin, now uint64) bool {
	return lastCheckin != 0 && t.clock.SameEpoch(lastCheckin, now)
}
