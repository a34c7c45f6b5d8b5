package issuance

import (
	"playmint/crypto"
	"playmint/native/quorum"
)

// ValidatorRecord tracks a validator's participation. Timestamps are unix
// seconds with 0 meaning unset.
type ValidatorRecord struct {
	Address      crypto.Address `json:"address"`
	RegisteredAt uint64         `json:"registeredAt"`
	LastCheckin  uint64         `json:"lastCheckin"`
	LastIssued   uint64         `json:"lastIssued"`
	LastClaimed  uint64         `json:"lastClaimed"`
}

// BeneficiaryRecord is a reward recipient and its pending approvals.
type BeneficiaryRecord struct {
	ID                    uint64           `json:"id"`
	Name                  string           `json:"name"`
	Authority             crypto.Address   `json:"authority"`
	Destination           crypto.Address   `json:"destination"`
	Approvals             quorum.Approvals `json:"approvals"`
	LastIssued            uint64           `json:"lastIssued"`
	LastNameChange        uint64           `json:"lastNameChange"`
	LastDestinationChange uint64           `json:"lastDestinationChange"`
	RegisteredAt          uint64           `json:"registeredAt"`
	// CommissionOwed is commission whose mint failed after the beneficiary
	// was paid. It is added to the next issuance's commission.
	CommissionOwed uint64 `json:"commissionOwed"`
}

// nameIndex reserves a normalised beneficiary name.
type nameIndex struct {
	BeneficiaryID uint64
	Active        bool
}
