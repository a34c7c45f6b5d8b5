package issuance

import (
	"encoding/binary"
	"encoding/hex"

	"lukechampine.com/blake3"

	"playmint/crypto"
)

// ItemStatus is the per-beneficiary result of a submission.
type ItemStatus string

const (
	OutcomeIssued   ItemStatus = "issued"
	OutcomePending  ItemStatus = "pending"
	OutcomeRejected ItemStatus = "rejected"
	OutcomeCooldown ItemStatus = "cooldown"
	OutcomeSkipped  ItemStatus = "skipped"
	OutcomeFailed   ItemStatus = "failed"
)

// Diagnostic reasons attached to item outcomes.
const (
	ReasonAwaitingQuorum      = "awaiting_quorum"
	ReasonGroupDistance       = "group_distance"
	ReasonApprovalsFull       = "approvals_full"
	ReasonOutsideWindow       = "outside_window"
	ReasonConcurrentIssuance  = "concurrent_issuance"
	ReasonDestinationMismatch = "destination_mismatch"
	ReasonLedgerError         = "ledger_error"
	ReasonCommissionFailed    = "commission_mint_failed"
)

// Entry gates that turn a whole submission into a no-op.
const (
	GateNoSeed       = "no_seed"
	GateStaleSeed    = "stale_seed"
	GateNotCheckedIn = "validator_not_checked_in"
	GateQuietWindow  = "quiet_window"
)

// Submission is a validator's batch of observed beneficiaries. Destinations
// must list each beneficiary's registered destination in the same order.
type Submission struct {
	Validator             crypto.Address   `json:"validator"`
	Beneficiaries         []uint64         `json:"beneficiaries"`
	Destinations          []crypto.Address `json:"destinations"`
	CommissionDestination crypto.Address   `json:"commissionDestination"`
}

// ItemOutcome reports what happened to one beneficiary.
type ItemOutcome struct {
	BeneficiaryID uint64     `json:"beneficiaryId"`
	Status        ItemStatus `json:"status"`
	Amount        uint64     `json:"amount,omitempty"`
	Commission    uint64     `json:"commission,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

// Report summarises a processed submission.
type Report struct {
	ReceiptID       string         `json:"receiptId"`
	Validator       crypto.Address `json:"validator"`
	Epoch           uint64         `json:"epoch"`
	Timestamp       uint64         `json:"timestamp"`
	Gate            string         `json:"gate,omitempty"`
	Items           []ItemOutcome  `json:"items"`
	Minted          int            `json:"minted"`
	TotalAmount     uint64         `json:"totalAmount"`
	TotalCommission uint64         `json:"totalCommission"`
}

// Count returns the number of items with the given status.
func (r Report) Count(status ItemStatus) int {
	n := 0
	for _, item := range r.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

func (r *Report) seal() {
	h := blake3.New(32, nil)
	var buf [8]byte
	h.Write(r.Validator[:])
	binary.BigEndian.PutUint64(buf[:], r.Timestamp)
	h.Write(buf[:])
	h.Write([]byte(r.Gate))
	for _, item := range r.Items {
		binary.BigEndian.PutUint64(buf[:], item.BeneficiaryID)
		h.Write(buf[:])
		h.Write([]byte(item.Status))
		binary.BigEndian.PutUint64(buf[:], item.Amount)
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], item.Commission)
		h.Write(buf[:])
	}
	r.ReceiptID = hex.EncodeToString(h.Sum(nil))
}

// CheckinReceipt describes an accepted check-in.
type CheckinReceipt struct {
	Epoch            uint64 `json:"epoch"`
	Seed             uint64 `json:"seed"`
	SeedVersion      uint64 `json:"seedVersion"`
	Counted          bool   `json:"counted"`
	RolledOver       bool   `json:"rolledOver"`
	ActiveValidators uint64 `json:"activeValidators"`
}

// ClaimReceipt describes a validator self-claim.
type ClaimReceipt struct {
	Status  ClaimStatus `json:"status"`
	Minutes uint64      `json:"minutes"`
	Amount  uint64      `json:"amount"`
}
