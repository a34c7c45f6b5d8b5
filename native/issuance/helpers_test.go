package issuance

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"playmint/core/state"
	"playmint/crypto"
	"playmint/storage"
)

// epochStart is aligned to an hour boundary.
var epochStart = time.Unix(1_700_000_000-1_700_000_000%3600, 0)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mint struct {
	Destination crypto.Address
	Amount      uint64
}

type fakeLedger struct {
	mu    sync.Mutex
	mints []mint
	fail  map[crypto.Address]error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{fail: make(map[crypto.Address]error)}
}

func (l *fakeLedger) Mint(_ context.Context, destination crypto.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.fail[destination]; err != nil {
		return err
	}
	l.mints = append(l.mints, mint{Destination: destination, Amount: amount})
	return nil
}

func (l *fakeLedger) Failing(destination crypto.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail[destination] = errors.New("ledger unavailable")
}

func (l *fakeLedger) Recover(destination crypto.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.fail, destination)
}

func (l *fakeLedger) Mints() []mint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]mint(nil), l.mints...)
}

func (l *fakeLedger) TotalTo(destination crypto.Address) uint64 {
	var total uint64
	for _, m := range l.Mints() {
		if m.Destination == destination {
			total += m.Amount
		}
	}
	return total
}

type fakeGateway struct {
	mu      sync.Mutex
	denied  map[crypto.Address]bool
	checked []crypto.Address
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{denied: make(map[crypto.Address]bool)}
}

func (g *fakeGateway) Verify(_ context.Context, identity crypto.Address, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checked = append(g.checked, identity)
	if g.denied[identity] {
		return errors.New("no gateway token")
	}
	return nil
}

func (g *fakeGateway) Deny(identity crypto.Address) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.denied[identity] = true
}

// racingStore simulates another process issuing for target right after the
// engine first reads it.
type racingStore struct {
	*state.RecordStore
	target state.Key
	armed  bool
}

func (s *racingStore) Read(ctx context.Context, key state.Key, out any) error {
	err := s.RecordStore.Read(ctx, key, out)
	if err == nil && s.armed && bytes.Equal(key.Hash(), s.target.Hash()) {
		s.armed = false
		var rec BeneficiaryRecord
		if err := s.RecordStore.Read(ctx, key, &rec); err != nil {
			return err
		}
		rec.LastIssued += 60
		if err := s.RecordStore.Write(ctx, key, &rec); err != nil {
			return err
		}
	}
	return err
}

// flakyCreateStore fails the next Create while armed.
type flakyCreateStore struct {
	*state.RecordStore
	armed bool
}

func (s *flakyCreateStore) Create(ctx context.Context, key state.Key, rec any) error {
	if s.armed {
		s.armed = false
		return errors.New("disk full")
	}
	return s.RecordStore.Create(ctx, key, rec)
}

var (
	owner      = crypto.Address{0x0f}
	treasury   = crypto.Address{0xc0}
	validatorA = crypto.Address{0xa1}
	validatorB = crypto.Address{0xb2}
	playerAuth = crypto.Address{0x77}
	playerDest = crypto.Address{0xd1}
)

type harness struct {
	t       *testing.T
	ctx     context.Context
	engine  *Engine
	store   Store
	ledger  *fakeLedger
	gateway *fakeGateway
	clock   *testClock
}

func newHarness(t *testing.T, policy Policy) *harness {
	t.Helper()
	return newHarnessWithStore(t, policy, state.NewRecordStore(storage.NewMemDB()))
}

func newHarnessWithStore(t *testing.T, policy Policy, store Store) *harness {
	t.Helper()
	ledger := newFakeLedger()
	gateway := newFakeGateway()
	engine, err := NewEngine(DefaultConfig(), store, ledger, gateway)
	require.NoError(t, err)
	clock := &testClock{now: epochStart}
	engine.SetNowFunc(clock.Now)
	var height uint64
	engine.SetHeightFunc(func() uint64 {
		height++
		return height
	})
	ctx := context.Background()
	require.NoError(t, engine.Bootstrap(ctx, policy))
	return &harness{t: t, ctx: ctx, engine: engine, store: store, ledger: ledger, gateway: gateway, clock: clock}
}

func commissionPolicy(pct uint64) Policy {
	policy := DefaultPolicy(owner)
	policy.CommissionPercent = pct
	policy.CommissionDestination = treasury
	return policy
}

func (h *harness) registerValidators(addrs ...crypto.Address) {
	h.t.Helper()
	for _, addr := range addrs {
		_, err := h.engine.RegisterValidator(h.ctx, owner, addr)
		require.NoError(h.t, err)
	}
}

func (h *harness) registerBeneficiary(name string, destination crypto.Address) BeneficiaryRecord {
	h.t.Helper()
	rec, err := h.engine.RegisterBeneficiary(h.ctx, playerAuth, name, destination)
	require.NoError(h.t, err)
	return rec
}

func (h *harness) checkIn(addrs ...crypto.Address) {
	h.t.Helper()
	for _, addr := range addrs {
		_, err := h.engine.CheckIn(h.ctx, addr)
		require.NoError(h.t, err)
	}
}

func (h *harness) submit(validator crypto.Address, ids []uint64, destinations []crypto.Address) Report {
	h.t.Helper()
	report, err := h.engine.Submit(h.ctx, Submission{
		Validator:             validator,
		Beneficiaries:         ids,
		Destinations:          destinations,
		CommissionDestination: treasury,
	})
	require.NoError(h.t, err)
	return report
}

func (h *harness) beneficiary(id uint64) BeneficiaryRecord {
	h.t.Helper()
	rec, err := h.engine.Beneficiary(h.ctx, id)
	require.NoError(h.t, err)
	return rec
}

// ready registers two validators and one beneficiary and checks both
// validators in past the quiet window.
func (h *harness) ready() BeneficiaryRecord {
	h.t.Helper()
	h.registerValidators(validatorA, validatorB)
	rec := h.registerBeneficiary("Player One", playerDest)
	h.clock.Set(epochStart.Add(8 * time.Minute))
	h.checkIn(validatorA, validatorB)
	return rec
}

// warmUp drives the first consensus, which is stamped as a cooldown because
// the beneficiary has never been issued.
func (h *harness) warmUp(id uint64, dest crypto.Address) {
	h.t.Helper()
	h.submit(validatorA, []uint64{id}, []crypto.Address{dest})
	report := h.submit(validatorB, []uint64{id}, []crypto.Address{dest})
	require.Equal(h.t, OutcomeCooldown, report.Items[0].Status)
}
