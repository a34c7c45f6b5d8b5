package quorum

// DefaultToleranceSlack is added to the digit count of the group population.
const DefaultToleranceSlack = 0

// TolerancePolicy sizes the maximum circular group distance accepted between
// approvers of the same beneficiary.
type TolerancePolicy struct {
	Slack uint64
}

// DefaultTolerancePolicy returns the digit-count policy without slack.
func DefaultTolerancePolicy() TolerancePolicy {
	return TolerancePolicy{Slack: DefaultToleranceSlack}
}

// Tolerance returns digits(ceil(total/4)) + Slack. Zero groups count as one
// digit, matching the decimal rendering of 0.
func (p TolerancePolicy) Tolerance(totalValidators uint64) uint64 {
	return decimalDigits(GroupCount(totalValidators)) + p.Slack
}

func decimalDigits(v uint64) uint64 {
	digits := uint64(1)
	for v >= 10 {
		v /= 10
		digits++
	}
	return digits
}

// CircularDistance measures the shorter way round a ring of size groups.
func CircularDistance(a, b, groups uint64) uint64 {
	var diff uint64
	if a > b {
		diff = a - b
	} else {
		diff = b - a
	}
	if groups == 0 || diff >= groups {
		return diff
	}
	if wrap := groups - diff; wrap < diff {
		return wrap
	}
	return diff
}

// WithinTolerance checks every group against the first one. It returns the
// largest distance observed and whether all of them are within tolerance.
func WithinTolerance(groupIDs []uint64, groups, tolerance uint64) (uint64, bool) {
	if len(groupIDs) == 0 {
		return 0, true
	}
	first := groupIDs[0]
	var widest uint64
	for _, g := range groupIDs[1:] {
		if d := CircularDistance(g, first, groups); d > widest {
			widest = d
		}
	}
	return widest, widest <= tolerance
}
