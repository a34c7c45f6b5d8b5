package issuance

const (
	// ClaimEligibilitySeconds is how recently a validator must have taken
	// part in an issuance to self-claim.
	ClaimEligibilitySeconds = 3600
	// MaxClaimMinutes caps the minutes a single claim can cover.
	MaxClaimMinutes = 60
)

// ClaimStatus describes the result of a validator self-claim.
type ClaimStatus string

const (
	ClaimMinted         ClaimStatus = "claimed"
	ClaimIneligible     ClaimStatus = "ineligible"
	ClaimNothingAccrued ClaimStatus = "nothing_accrued"
)

// ClaimDecision is the evaluated self-claim.
type ClaimDecision struct {
	Status  ClaimStatus
	Minutes uint64
	Amount  uint64
}

// EvaluateClaim applies the self-claim rules to rec at now.
func EvaluateClaim(rec ValidatorRecord, now, rate uint64) (ClaimDecision, error) {
	if rec.LastIssued == 0 || now < rec.LastIssued || now-rec.LastIssued > ClaimEligibilitySeconds {
		return ClaimDecision{Status: ClaimIneligible}, nil
	}
	minutes := ElapsedMinutes(rec.LastClaimed, now)
	if minutes > MaxClaimMinutes {
		minutes = MaxClaimMinutes
	}
	if minutes == 0 {
		return ClaimDecision{Status: ClaimNothingAccrued}, nil
	}
	amount, err := mulUint64(minutes, rate)
	if err != nil {
		return ClaimDecision{}, err
	}
	return ClaimDecision{Status: ClaimMinted, Minutes: minutes, Amount: amount}, nil
}
