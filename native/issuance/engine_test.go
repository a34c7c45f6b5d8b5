package issuance

import (
	"context"
	"encoding/binary"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"playmint/core/epoch"
	"playmint/core/events"
	"playmint/core/state"
	"playmint/crypto"
	"playmint/native/quorum"
	"playmint/storage"
)

func TestBootstrapOnce(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	require.ErrorIs(t, h.engine.Bootstrap(h.ctx, DefaultPolicy(owner)), ErrAlreadyBootstrapped)

	ok, err := h.engine.Bootstrapped(h.ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOperationsBeforeBootstrap(t *testing.T) {
	engine, err := NewEngine(DefaultConfig(), state.NewRecordStore(storage.NewMemDB()), newFakeLedger(), newFakeGateway())
	require.NoError(t, err)
	_, err = engine.CheckIn(context.Background(), validatorA)
	require.ErrorIs(t, err, ErrNotBootstrapped)
	_, err = engine.EpochSummary(context.Background())
	require.ErrorIs(t, err, ErrNotBootstrapped)
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(DefaultConfig(), nil, newFakeLedger(), newFakeGateway())
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.Window = Window{MinMinutes: 40, MaxMinutes: 34}
	_, err = NewEngine(cfg, state.NewRecordStore(storage.NewMemDB()), newFakeLedger(), newFakeGateway())
	require.Error(t, err)
}

func TestCheckInRefreshesSeedAndCountsOnce(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	h.registerValidators(validatorA, validatorB)
	h.clock.Set(epochStart.Add(time.Minute))

	first, err := h.engine.CheckIn(h.ctx, validatorA)
	require.NoError(t, err)
	require.True(t, first.Counted)
	require.True(t, first.RolledOver)
	require.Equal(t, uint64(1), first.ActiveValidators)

	again, err := h.engine.CheckIn(h.ctx, validatorA)
	require.NoError(t, err)
	require.False(t, again.Counted)
	require.NotEqual(t, first.Seed, again.Seed)
	require.Equal(t, first.SeedVersion+1, again.SeedVersion)

	_, err = h.engine.CheckIn(h.ctx, validatorB)
	require.NoError(t, err)
	summary, err := h.engine.EpochSummary(h.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), summary.ActiveValidators)
	require.Equal(t, uint64(2), summary.TotalValidators)

	h.clock.Advance(time.Hour)
	next, err := h.engine.CheckIn(h.ctx, validatorB)
	require.NoError(t, err)
	require.True(t, next.RolledOver)
	require.Equal(t, uint64(1), next.ActiveValidators)

	val, err := h.engine.Validator(h.ctx, validatorB)
	require.NoError(t, err)
	require.Equal(t, uint64(epochStart.Add(time.Hour+time.Minute).Unix()), val.LastCheckin)
}

func TestCheckInUnknownValidator(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	_, err := h.engine.CheckIn(h.ctx, validatorA)
	require.ErrorIs(t, err, ErrUnknownValidator)
}

func TestSubmitEntryGates(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	h.registerValidators(validatorA, validatorB)
	rec := h.registerBeneficiary("gated", playerDest)
	ids := []uint64{rec.ID}
	dests := []crypto.Address{playerDest}

	report := h.submit(validatorA, ids, dests)
	require.Equal(t, GateNoSeed, report.Gate)

	h.clock.Set(epochStart.Add(3 * time.Minute))
	h.checkIn(validatorA)
	report = h.submit(validatorA, ids, dests)
	require.Equal(t, GateQuietWindow, report.Gate)

	h.clock.Set(epochStart.Add(8 * time.Minute))
	report = h.submit(validatorB, ids, dests)
	require.Equal(t, GateNotCheckedIn, report.Gate)

	h.clock.Set(epochStart.Add(time.Hour + 10*time.Minute))
	report = h.submit(validatorA, ids, dests)
	require.Equal(t, GateStaleSeed, report.Gate)

	require.Empty(t, h.beneficiary(rec.ID).Approvals)
	require.Empty(t, h.ledger.Mints())
	require.NotEmpty(t, report.ReceiptID)
}

func TestSubmitPendingThenConsensusWarmUp(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	rec := h.ready()
	ids := []uint64{rec.ID}
	dests := []crypto.Address{playerDest}

	report := h.submit(validatorA, ids, dests)
	require.Equal(t, OutcomePending, report.Items[0].Status)
	require.Len(t, h.beneficiary(rec.ID).Approvals, 1)

	// A repeated approval from the same validator never reaches quorum.
	report = h.submit(validatorA, ids, dests)
	require.Equal(t, OutcomePending, report.Items[0].Status)
	require.Len(t, h.beneficiary(rec.ID).Approvals, 1)

	report = h.submit(validatorB, ids, dests)
	require.Equal(t, OutcomeCooldown, report.Items[0].Status)
	require.Zero(t, report.Minted)

	stored := h.beneficiary(rec.ID)
	require.Empty(t, stored.Approvals)
	require.Equal(t, uint64(h.clock.Now().Unix()), stored.LastIssued)
	require.Empty(t, h.ledger.Mints())
}

func TestSubmitZeroElapsedIsStampedWithoutMint(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	rec := h.ready()
	h.warmUp(rec.ID, playerDest)

	h.clock.Advance(30 * time.Second)
	ids := []uint64{rec.ID}
	dests := []crypto.Address{playerDest}
	h.submit(validatorA, ids, dests)
	report := h.submit(validatorB, ids, dests)
	require.Equal(t, OutcomeCooldown, report.Items[0].Status)
	require.Equal(t, uint64(h.clock.Now().Unix()), h.beneficiary(rec.ID).LastIssued)
	require.Empty(t, h.ledger.Mints())
}

func TestSubmitMintsWithCommission(t *testing.T) {
	h := newHarness(t, commissionPolicy(20))
	rec := h.ready()
	h.warmUp(rec.ID, playerDest)

	h.clock.Advance(20 * time.Minute)
	ids := []uint64{rec.ID}
	dests := []crypto.Address{playerDest}
	h.submit(validatorA, ids, dests)
	report := h.submit(validatorB, ids, dests)

	require.Equal(t, 1, report.Minted)
	require.Equal(t, OutcomeIssued, report.Items[0].Status)
	require.Equal(t, uint64(56_666_660), report.Items[0].Amount)
	require.Equal(t, uint64(11_333_332), report.Items[0].Commission)
	require.Equal(t, uint64(56_666_660), h.ledger.TotalTo(playerDest))
	require.Equal(t, uint64(11_333_332), h.ledger.TotalTo(treasury))

	stored := h.beneficiary(rec.ID)
	require.Empty(t, stored.Approvals)
	require.Equal(t, uint64(h.clock.Now().Unix()), stored.LastIssued)

	val, err := h.engine.Validator(h.ctx, validatorB)
	require.NoError(t, err)
	require.Equal(t, uint64(h.clock.Now().Unix()), val.LastIssued)
}

func TestSubmitCommissionFailureCarriesOwedAmount(t *testing.T) {
	h := newHarness(t, commissionPolicy(20))
	rec := h.ready()
	h.warmUp(rec.ID, playerDest)

	h.clock.Advance(20 * time.Minute)
	h.ledger.Failing(treasury)
	ids := []uint64{rec.ID}
	dests := []crypto.Address{playerDest}
	h.submit(validatorA, ids, dests)
	report := h.submit(validatorB, ids, dests)

	require.Zero(t, report.Minted)
	item := report.Items[0]
	require.Equal(t, OutcomeFailed, item.Status)
	require.True(t, strings.HasPrefix(item.Reason, ReasonCommissionFailed), item.Reason)
	require.Equal(t, uint64(56_666_660), item.Amount)
	require.Zero(t, item.Commission)
	require.Equal(t, uint64(56_666_660), h.ledger.TotalTo(playerDest))
	require.Zero(t, h.ledger.TotalTo(treasury))

	stored := h.beneficiary(rec.ID)
	require.Equal(t, uint64(11_333_332), stored.CommissionOwed)
	require.Equal(t, uint64(h.clock.Now().Unix()), stored.LastIssued, "paid beneficiary is stamped")
	require.Empty(t, stored.Approvals)

	h.ledger.Recover(treasury)
	h.clock.Advance(20 * time.Minute)
	h.submit(validatorA, ids, dests)
	report = h.submit(validatorB, ids, dests)

	require.Equal(t, OutcomeIssued, report.Items[0].Status)
	require.Equal(t, uint64(2*11_333_332), report.Items[0].Commission)
	require.Equal(t, uint64(2*11_333_332), h.ledger.TotalTo(treasury))
	require.Equal(t, uint64(2*56_666_660), h.ledger.TotalTo(playerDest))
	require.Zero(t, h.beneficiary(rec.ID).CommissionOwed)
}

func TestSubmitGroupDistanceRejectionKeepsApprovals(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	validators := make([]crypto.Address, 40)
	for i := range validators {
		validators[i][0] = 0xe0
		binary.BigEndian.PutUint64(validators[i][12:], uint64(i+1))
	}
	h.registerValidators(validators...)
	rec := h.registerBeneficiary("spread", playerDest)
	h.clock.Set(epochStart.Add(8 * time.Minute))
	h.checkIn(validators...)

	var st epoch.State
	require.NoError(t, h.store.Read(h.ctx, epochKey(), &st))
	require.True(t, st.HasSeed())
	require.Equal(t, uint64(40), st.ActiveValidators)

	groups := quorum.GroupCount(st.TotalValidators)
	tolerance := quorum.DefaultTolerancePolicy().Tolerance(st.TotalValidators)
	var first, second crypto.Address
	found := false
	for i := 0; i < len(validators) && !found; i++ {
		for j := i + 1; j < len(validators); j++ {
			gi := quorum.GroupID(validators[i], st.Seed, groups)
			gj := quorum.GroupID(validators[j], st.Seed, groups)
			if quorum.CircularDistance(gi, gj, groups) > tolerance {
				first, second = validators[i], validators[j]
				found = true
				break
			}
		}
	}
	require.True(t, found, "no validator pair spans more than %d groups", tolerance)

	ids := []uint64{rec.ID}
	dests := []crypto.Address{playerDest}
	report := h.submit(first, ids, dests)
	require.Equal(t, OutcomePending, report.Items[0].Status)

	report = h.submit(second, ids, dests)
	require.Equal(t, OutcomeRejected, report.Items[0].Status)
	require.True(t, strings.HasPrefix(report.Items[0].Reason, ReasonGroupDistance), report.Items[0].Reason)
	require.Zero(t, report.Minted)

	stored := h.beneficiary(rec.ID)
	require.Len(t, stored.Approvals, 2)
	require.True(t, stored.Approvals.Contains(first))
	require.True(t, stored.Approvals.Contains(second))
	require.Zero(t, stored.LastIssued)
	require.Empty(t, h.ledger.Mints())
}

func TestSubmitCarveOutCommission(t *testing.T) {
	policy := commissionPolicy(20)
	policy.CommissionMode = CommissionCarveOut
	h := newHarness(t, policy)
	rec := h.ready()
	h.warmUp(rec.ID, playerDest)

	h.clock.Advance(20 * time.Minute)
	h.submit(validatorA, []uint64{rec.ID}, []crypto.Address{playerDest})
	report := h.submit(validatorB, []uint64{rec.ID}, []crypto.Address{playerDest})
	require.Equal(t, uint64(56_666_660-11_333_332), report.Items[0].Amount)
	require.Equal(t, uint64(11_333_332), h.ledger.TotalTo(treasury))
}

func TestSubmitSingleActiveValidatorNeedsOneApproval(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	h.registerValidators(validatorA, validatorB)
	rec := h.registerBeneficiary("solo", playerDest)
	h.clock.Set(epochStart.Add(8 * time.Minute))
	h.checkIn(validatorA)

	report := h.submit(validatorA, []uint64{rec.ID}, []crypto.Address{playerDest})
	require.Equal(t, OutcomeCooldown, report.Items[0].Status)

	h.clock.Advance(10 * time.Minute)
	report = h.submit(validatorA, []uint64{rec.ID}, []crypto.Address{playerDest})
	require.Equal(t, OutcomeIssued, report.Items[0].Status)
	require.Equal(t, uint64(10*DefaultRatePerMinute), report.Items[0].Amount)
}

func TestSubmitPreconditionsRejectWholeBatch(t *testing.T) {
	h := newHarness(t, commissionPolicy(10))
	rec := h.ready()

	_, err := h.engine.Submit(h.ctx, Submission{
		Validator:             validatorA,
		Beneficiaries:         []uint64{rec.ID},
		CommissionDestination: treasury,
	})
	require.ErrorIs(t, err, ErrReferenceMismatch)

	_, err = h.engine.Submit(h.ctx, Submission{
		Validator:             validatorA,
		Beneficiaries:         []uint64{rec.ID},
		Destinations:          []crypto.Address{playerDest},
		CommissionDestination: crypto.Address{0x99},
	})
	require.ErrorIs(t, err, ErrCommissionMismatch)

	_, err = h.engine.Submit(h.ctx, Submission{
		Validator:             validatorA,
		Beneficiaries:         []uint64{rec.ID, 404},
		Destinations:          []crypto.Address{playerDest, playerDest},
		CommissionDestination: treasury,
	})
	require.ErrorIs(t, err, ErrUnknownBeneficiary)

	_, err = h.engine.Submit(h.ctx, Submission{Validator: crypto.Address{0x55}})
	require.ErrorIs(t, err, ErrUnknownValidator)

	require.Empty(t, h.beneficiary(rec.ID).Approvals, "no approval recorded by a rejected batch")
}

func TestSubmitGatewayRejectionForOpenPolicy(t *testing.T) {
	policy := DefaultPolicy(owner)
	policy.Curated = false
	h := newHarness(t, policy)
	_, err := h.engine.RegisterValidator(h.ctx, validatorA, validatorA)
	require.NoError(t, err)
	rec := h.registerBeneficiary("open", playerDest)
	h.clock.Set(epochStart.Add(8 * time.Minute))
	h.checkIn(validatorA)

	h.gateway.Deny(validatorA)
	_, err = h.engine.Submit(h.ctx, Submission{
		Validator:     validatorA,
		Beneficiaries: []uint64{rec.ID},
		Destinations:  []crypto.Address{playerDest},
	})
	require.ErrorIs(t, err, ErrGatewayRejected)
	_, err = h.engine.CheckIn(h.ctx, validatorA)
	require.ErrorIs(t, err, ErrGatewayRejected)
}

func TestSubmitPerItemIndependence(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	h.registerValidators(validatorA)
	failing := crypto.Address{0xee}
	good := h.registerBeneficiary("good", playerDest)
	bad := h.registerBeneficiary("bad", failing)
	other := h.registerBeneficiary("mismatch", crypto.Address{0xd2})
	h.clock.Set(epochStart.Add(8 * time.Minute))
	h.checkIn(validatorA)

	ids := []uint64{good.ID, bad.ID, other.ID}
	dests := []crypto.Address{playerDest, failing, crypto.Address{0xd3}}
	h.submit(validatorA, ids, dests)

	h.clock.Advance(5 * time.Minute)
	h.ledger.Failing(failing)
	badBefore := h.beneficiary(bad.ID)
	report := h.submit(validatorA, ids, dests)

	require.Equal(t, OutcomeIssued, report.Items[0].Status)
	require.Equal(t, OutcomeFailed, report.Items[1].Status)
	require.Equal(t, OutcomeSkipped, report.Items[2].Status)
	require.Equal(t, ReasonDestinationMismatch, report.Items[2].Reason)
	require.Equal(t, 1, report.Minted)
	require.Equal(t, 1, report.Count(OutcomeFailed))
	require.Equal(t, badBefore, h.beneficiary(bad.ID), "failed mint leaves the record untouched")
}

func TestSubmitIdempotentRejectionDoesNotGrow(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	rec := h.ready()
	h.warmUp(rec.ID, playerDest)

	for i := 0; i < 10; i++ {
		h.clock.Advance(10 * time.Second)
		h.submit(validatorA, []uint64{rec.ID}, []crypto.Address{playerDest})
		h.submit(validatorB, []uint64{rec.ID}, []crypto.Address{playerDest})
		require.LessOrEqual(t, len(h.beneficiary(rec.ID).Approvals), 2)
	}
	require.Empty(t, h.ledger.Mints())
}

func TestSubmitApprovalsFullRejectsItem(t *testing.T) {
	ledger := newFakeLedger()
	cfg := DefaultConfig()
	cfg.ApprovalCapacity = 1
	store := state.NewRecordStore(storage.NewMemDB())
	engine, err := NewEngine(cfg, store, ledger, newFakeGateway())
	require.NoError(t, err)
	clock := &testClock{now: epochStart}
	engine.SetNowFunc(clock.Now)
	ctx := context.Background()
	require.NoError(t, engine.Bootstrap(ctx, DefaultPolicy(owner)))
	for _, v := range []crypto.Address{validatorA, validatorB, {0xc3}} {
		_, err := engine.RegisterValidator(ctx, owner, v)
		require.NoError(t, err)
	}
	rec, err := engine.RegisterBeneficiary(ctx, playerAuth, "crowded", playerDest)
	require.NoError(t, err)
	clock.Set(epochStart.Add(8 * time.Minute))
	for _, v := range []crypto.Address{validatorA, validatorB} {
		_, err := engine.CheckIn(ctx, v)
		require.NoError(t, err)
	}

	sub := Submission{Validator: validatorA, Beneficiaries: []uint64{rec.ID}, Destinations: []crypto.Address{playerDest}}
	report, err := engine.Submit(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, OutcomePending, report.Items[0].Status)

	sub.Validator = validatorB
	report, err = engine.Submit(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, report.Items[0].Status)
	require.Equal(t, ReasonApprovalsFull, report.Items[0].Reason)
}

func TestSubmitConcurrencyGuardSkipsItem(t *testing.T) {
	store := &racingStore{RecordStore: state.NewRecordStore(storage.NewMemDB())}
	h := newHarnessWithStore(t, DefaultPolicy(owner), store)
	rec := h.ready()
	h.warmUp(rec.ID, playerDest)

	h.clock.Advance(15 * time.Minute)
	h.submit(validatorA, []uint64{rec.ID}, []crypto.Address{playerDest})
	store.target = beneficiaryKey(rec.ID)
	store.armed = true
	report := h.submit(validatorB, []uint64{rec.ID}, []crypto.Address{playerDest})

	require.Equal(t, OutcomeSkipped, report.Items[0].Status)
	require.Equal(t, ReasonConcurrentIssuance, report.Items[0].Reason)
	require.Empty(t, h.ledger.Mints())
}

func TestConcurrentSubmissionsMintAtMostOnce(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	h.registerValidators(validatorA, validatorB)
	rec := h.registerBeneficiary("contested", playerDest)
	h.clock.Set(epochStart.Add(8 * time.Minute))
	h.checkIn(validatorA)
	h.submit(validatorA, []uint64{rec.ID}, []crypto.Address{playerDest})
	h.clock.Advance(12 * time.Minute)

	var wg sync.WaitGroup
	reports := make([]Report, 8)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			report, err := h.engine.Submit(h.ctx, Submission{
				Validator:     validatorA,
				Beneficiaries: []uint64{rec.ID},
				Destinations:  []crypto.Address{playerDest},
			})
			if err == nil {
				reports[i] = report
			}
		}(i)
	}
	wg.Wait()

	minted := 0
	for _, r := range reports {
		minted += r.Minted
	}
	require.Equal(t, 1, minted)
	require.Len(t, h.ledger.Mints(), 1)
}

func TestSubmitEmitsOutcomeEvents(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	broadcaster := events.NewBroadcaster()
	h.engine.SetEmitter(broadcaster)
	stream, cancel := broadcaster.Subscribe(16)
	defer cancel()

	rec := h.ready()
	report := h.submit(validatorA, []uint64{rec.ID}, []crypto.Address{playerDest})

	var outcome events.IssuanceOutcome
	for evt := range stream {
		if o, ok := evt.(events.IssuanceOutcome); ok {
			outcome = o
			break
		}
	}
	require.Equal(t, rec.ID, outcome.BeneficiaryID)
	require.Equal(t, string(OutcomePending), outcome.Status)
	require.Equal(t, report.ReceiptID, outcome.ReceiptID)
}

func TestClaimCapsMinutesAndRequiresParticipation(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	rec := h.ready()

	receipt, err := h.engine.Claim(h.ctx, validatorA)
	require.NoError(t, err)
	require.Equal(t, ClaimIneligible, receipt.Status)

	h.warmUp(rec.ID, playerDest)
	h.clock.Advance(20 * time.Minute)
	h.submit(validatorA, []uint64{rec.ID}, []crypto.Address{playerDest})
	h.submit(validatorB, []uint64{rec.ID}, []crypto.Address{playerDest})

	h.clock.Advance(10 * time.Minute)
	receipt, err = h.engine.Claim(h.ctx, validatorB)
	require.NoError(t, err)
	require.Equal(t, ClaimMinted, receipt.Status)
	require.Equal(t, uint64(MaxClaimMinutes), receipt.Minutes)
	require.Equal(t, uint64(MaxClaimMinutes*DefaultValidatorClaimRate), receipt.Amount)
	require.Equal(t, receipt.Amount, h.ledger.TotalTo(validatorB))

	receipt, err = h.engine.Claim(h.ctx, validatorB)
	require.NoError(t, err)
	require.Equal(t, ClaimNothingAccrued, receipt.Status)

	h.clock.Advance(2 * time.Hour)
	receipt, err = h.engine.Claim(h.ctx, validatorB)
	require.NoError(t, err)
	require.Equal(t, ClaimIneligible, receipt.Status)
}

func TestClaimLedgerFailureLeavesMarker(t *testing.T) {
	h := newHarness(t, DefaultPolicy(owner))
	h.registerValidators(validatorA)
	rec := h.registerBeneficiary("p", playerDest)
	h.clock.Set(epochStart.Add(8 * time.Minute))
	h.checkIn(validatorA)
	h.submit(validatorA, []uint64{rec.ID}, []crypto.Address{playerDest})
	h.clock.Advance(5 * time.Minute)
	h.submit(validatorA, []uint64{rec.ID}, []crypto.Address{playerDest})

	h.ledger.Failing(validatorA)
	_, err := h.engine.Claim(h.ctx, validatorA)
	require.Error(t, err)
	val, err := h.engine.Validator(h.ctx, validatorA)
	require.NoError(t, err)
	require.Zero(t, val.LastClaimed)
}
