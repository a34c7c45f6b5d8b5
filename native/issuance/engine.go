package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"playmint/core/epoch"
	"playmint/core/events"
	"playmint/core/state"
	"playmint/crypto"
	"playmint/native/quorum"
	"playmint/observability/metrics"
	telemetry "playmint/observability/otel"
)

// ChangeCooldownSeconds spaces beneficiary name and destination changes.
const ChangeCooldownSeconds = 24 * 3600

// Config tunes the engine's epoch, quorum and throttle behaviour.
type Config struct {
	Epoch             epoch.Config
	Window            Window
	ApprovalCapacity  int
	ToleranceSlack    uint64
	AssignerCacheSize int
}

// DefaultConfig returns hourly epochs, the 1..34 minute window and four
// approvals per beneficiary.
func DefaultConfig() Config {
	return Config{
		Epoch:             epoch.DefaultConfig(),
		Window:            DefaultWindow(),
		ApprovalCapacity:  quorum.DefaultApprovalCapacity,
		ToleranceSlack:    quorum.DefaultToleranceSlack,
		AssignerCacheSize: quorum.DefaultAssignerCacheSize,
	}
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	if err := c.Epoch.Validate(); err != nil {
		return err
	}
	if err := c.Window.Validate(); err != nil {
		return err
	}
	if c.ApprovalCapacity < 1 {
		return fmt.Errorf("approval capacity must be at least 1")
	}
	return nil
}

// Engine runs check-ins, batch submissions, validator claims and governance
// against a record store and a token ledger. Every operation holds the engine
// mutex for its full read-modify-write cycle.
type Engine struct {
	mu sync.Mutex

	cfg     Config
	store   Store
	ledger  Ledger
	gateway Gateway

	clock       epoch.Clock
	tracker     epoch.Tracker
	seeds       epoch.SeedGenerator
	accumulator *quorum.Accumulator
	throttle    Throttle
	guard       Guard

	emitter  events.Emitter
	logger   *slog.Logger
	metrics  *metrics.IssuanceMetrics
	tracer   trace.Tracer
	nowFn    func() time.Time
	heightFn func() uint64
}

// NewEngine wires an engine. All collaborators are required.
func NewEngine(cfg Config, store Store, ledger Ledger, gateway Gateway) (*Engine, error) {
	if store == nil || ledger == nil || gateway == nil {
		return nil, errors.New("issuance: store, ledger and gateway are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("issuance: invalid config: %w", err)
	}
	assigner, err := quorum.NewAssigner(cfg.AssignerCacheSize)
	if err != nil {
		return nil, err
	}
	clock := epoch.NewClock(cfg.Epoch)
	e := &Engine{
		cfg:         cfg,
		store:       store,
		ledger:      ledger,
		gateway:     gateway,
		clock:       clock,
		tracker:     epoch.NewTracker(clock),
		seeds:       epoch.NewSeedGenerator(cfg.Epoch.ChainSeeds),
		accumulator: quorum.NewAccumulator(assigner, quorum.TolerancePolicy{Slack: cfg.ToleranceSlack}, cfg.ApprovalCapacity),
		throttle:    NewThrottle(cfg.Window),
		guard:       NewGuard(store),
		emitter:     events.NoopEmitter{},
		logger:      slog.Default(),
		tracer:      telemetry.Tracer("issuance"),
		nowFn:       time.Now,
	}
	e.heightFn = func() uint64 { return uint64(e.nowFn().UnixNano()) }
	return e, nil
}

// SetEmitter configures the event emitter. Passing nil resets the emitter to a
// no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger overrides the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetMetrics installs the Prometheus registry. Nil disables metrics.
func (e *Engine) SetMetrics(m *metrics.IssuanceMetrics) { e.metrics = m }

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.nowFn = now
}

// SetHeightFunc supplies the monotonic counter mixed into refreshed seeds.
func (e *Engine) SetHeightFunc(height func() uint64) {
	if height == nil {
		height = func() uint64 { return uint64(e.nowFn().UnixNano()) }
	}
	e.heightFn = height
}

// Clock exposes the epoch clock used by the engine.
func (e *Engine) Clock() epoch.Clock { return e.clock }

func (e *Engine) now() uint64 {
	ts := e.nowFn().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "issuance."+name, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Bootstrap stores the initial policy and an empty epoch state.
func (e *Engine) Bootstrap(ctx context.Context, policy Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := policy.Validate(); err != nil {
		return err
	}
	exists, err := e.store.Exists(ctx, epochKey())
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyBootstrapped
	}
	if err := e.store.Create(ctx, policyKey(), &policy); err != nil {
		return fmt.Errorf("issuance: create policy: %w", err)
	}
	if err := e.store.Create(ctx, epochKey(), &epoch.State{}); err != nil {
		return fmt.Errorf("issuance: create epoch state: %w", err)
	}
	e.logger.Info("issuance state bootstrapped",
		slog.String("component", "issuance"),
		slog.String("owner", policy.Owner.String()),
		slog.Bool("curated", policy.Curated))
	return nil
}

// Bootstrapped reports whether Bootstrap has run against the store.
func (e *Engine) Bootstrapped(ctx context.Context) (bool, error) {
	return e.store.Exists(ctx, epochKey())
}

func (e *Engine) loadPolicy(ctx context.Context) (Policy, error) {
	var policy Policy
	if err := e.store.Read(ctx, policyKey(), &policy); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return policy, ErrNotBootstrapped
		}
		return policy, err
	}
	return policy, nil
}

func (e *Engine) loadEpoch(ctx context.Context) (epoch.State, error) {
	var st epoch.State
	if err := e.store.Read(ctx, epochKey(), &st); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return st, ErrNotBootstrapped
		}
		return st, err
	}
	return st, nil
}

func (e *Engine) loadValidator(ctx context.Context, addr crypto.Address) (ValidatorRecord, error) {
	var rec ValidatorRecord
	if err := e.store.Read(ctx, validatorKey(addr), &rec); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return rec, fmt.Errorf("%w: %s", ErrUnknownValidator, addr)
		}
		return rec, err
	}
	return rec, nil
}

func (e *Engine) loadBeneficiary(ctx context.Context, id uint64) (BeneficiaryRecord, error) {
	var rec BeneficiaryRecord
	if err := e.store.Read(ctx, beneficiaryKey(id), &rec); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return rec, fmt.Errorf("%w: %d", ErrUnknownBeneficiary, id)
		}
		return rec, err
	}
	return rec, nil
}

func (e *Engine) verify(ctx context.Context, identity crypto.Address, network string) error {
	if err := e.gateway.Verify(ctx, identity, network); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrGatewayRejected, identity, err)
	}
	return nil
}

func (e *Engine) publishEpoch(st epoch.State) {
	e.metrics.SetEpoch(st.ActiveValidators, st.TotalValidators, st.SeedVersion)
}

// CheckIn refreshes the shared seed and marks validator active for the
// current epoch.
func (e *Engine) CheckIn(ctx context.Context, validator crypto.Address) (receipt CheckinReceipt, err error) {
	ctx, span := e.startSpan(ctx, "CheckIn", attribute.String("validator", validator.String()))
	defer func() { finishSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	policy, err := e.loadPolicy(ctx)
	if err != nil {
		return receipt, err
	}
	val, err := e.loadValidator(ctx, validator)
	if err != nil {
		return receipt, err
	}
	if !policy.Curated {
		if err := e.verify(ctx, validator, policy.GatekeeperNetwork); err != nil {
			return receipt, err
		}
	}
	st, err := e.loadEpoch(ctx)
	if err != nil {
		return receipt, err
	}

	now := e.now()
	result := e.tracker.CheckIn(&st, val.LastCheckin, now)
	seed := e.seeds.Refresh(&st, validator, e.heightFn(), now)
	val.LastCheckin = now

	if err := e.store.Write(ctx, validatorKey(validator), &val); err != nil {
		return receipt, err
	}
	if err := e.store.Write(ctx, epochKey(), &st); err != nil {
		return receipt, err
	}

	receipt = CheckinReceipt{
		Epoch:            result.Epoch,
		Seed:             seed,
		SeedVersion:      st.SeedVersion,
		Counted:          result.Counted,
		RolledOver:       result.RolledOver,
		ActiveValidators: st.ActiveValidators,
	}
	e.metrics.ObserveCheckin(result.Counted)
	e.publishEpoch(st)
	if result.RolledOver {
		e.emit(events.EpochRolled{Epoch: result.Epoch, Timestamp: now})
	}
	e.emit(events.ValidatorCheckedIn{
		Validator:   validator,
		Epoch:       result.Epoch,
		Seed:        seed,
		SeedVersion: st.SeedVersion,
		Counted:     result.Counted,
		Timestamp:   now,
	})
	e.logger.Debug("validator checked in",
		slog.String("component", "issuance"),
		slog.String("validator", validator.String()),
		slog.Uint64("epoch", result.Epoch),
		slog.Bool("counted", result.Counted),
		slog.Uint64("active", st.ActiveValidators))
	return receipt, nil
}

// Submit processes a validator's batch. Precondition failures reject the
// whole batch before anything is written; everything after that is reported
// per item.
func (e *Engine) Submit(ctx context.Context, sub Submission) (report Report, err error) {
	ctx, span := e.startSpan(ctx, "Submit",
		attribute.String("validator", sub.Validator.String()),
		attribute.Int("items", len(sub.Beneficiaries)))
	defer func() { finishSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	report = Report{Validator: sub.Validator, Epoch: e.clock.Epoch(now), Timestamp: now}

	policy, err := e.loadPolicy(ctx)
	if err != nil {
		return report, err
	}
	val, err := e.loadValidator(ctx, sub.Validator)
	if err != nil {
		return report, err
	}
	if !policy.Curated {
		if err := e.verify(ctx, sub.Validator, policy.GatekeeperNetwork); err != nil {
			return report, err
		}
	}
	if len(sub.Destinations) != len(sub.Beneficiaries) {
		return report, fmt.Errorf("%w: %d beneficiaries, %d destinations", ErrReferenceMismatch, len(sub.Beneficiaries), len(sub.Destinations))
	}
	if policy.CommissionPercent > 0 && sub.CommissionDestination != policy.CommissionDestination {
		return report, fmt.Errorf("%w: got %s", ErrCommissionMismatch, sub.CommissionDestination)
	}
	maxAmount, err := e.throttle.MaxAmount(policy.RatePerMinute)
	if err != nil {
		return report, err
	}
	if _, _, err := Split(maxAmount, policy.CommissionPercent, policy.Mode()); err != nil {
		return report, err
	}
	for _, id := range sub.Beneficiaries {
		exists, err := e.store.Exists(ctx, beneficiaryKey(id))
		if err != nil {
			return report, err
		}
		if !exists {
			return report, fmt.Errorf("%w: %d", ErrUnknownBeneficiary, id)
		}
	}

	st, err := e.loadEpoch(ctx)
	if err != nil {
		return report, err
	}
	if gate := e.entryGate(st, val, now); gate != "" {
		report.Gate = gate
		report.seal()
		e.metrics.ObserveGate(gate)
		e.logger.Debug("submission gated",
			slog.String("component", "issuance"),
			slog.String("validator", sub.Validator.String()),
			slog.String("gate", gate))
		return report, nil
	}

	view := quorum.View{
		Seed:             st.Seed,
		SeedSet:          st.SeedSet,
		ActiveValidators: st.ActiveValidators,
		TotalValidators:  st.TotalValidators,
	}
	report.Items = make([]ItemOutcome, 0, len(sub.Beneficiaries))
	for i, id := range sub.Beneficiaries {
		item, err := e.processItem(ctx, policy, view, sub, id, sub.Destinations[i], now)
		if err != nil {
			return report, err
		}
		report.Items = append(report.Items, item)
		if item.Status == OutcomeIssued {
			report.Minted++
			report.TotalAmount += item.Amount
			report.TotalCommission += item.Commission
		}
		e.metrics.ObserveOutcome(string(item.Status))
	}

	if report.Minted > 0 {
		val.LastIssued = now
		if err := e.store.Write(ctx, validatorKey(sub.Validator), &val); err != nil {
			return report, err
		}
	}
	report.seal()

	for _, item := range report.Items {
		e.emit(events.IssuanceOutcome{
			Validator:     sub.Validator,
			BeneficiaryID: item.BeneficiaryID,
			Status:        string(item.Status),
			Amount:        item.Amount,
			Commission:    item.Commission,
			Reason:        item.Reason,
			ReceiptID:     report.ReceiptID,
		})
	}
	span.SetAttributes(attribute.Int("minted", report.Minted))
	e.logger.Info("submission processed",
		slog.String("component", "issuance"),
		slog.String("validator", sub.Validator.String()),
		slog.Int("items", len(report.Items)),
		slog.Int("minted", report.Minted),
		slog.Uint64("amount", report.TotalAmount),
		slog.String("receipt", report.ReceiptID))
	return report, nil
}

func (e *Engine) entryGate(st epoch.State, val ValidatorRecord, now uint64) string {
	switch {
	case !st.HasSeed():
		return GateNoSeed
	case !e.clock.SameEpoch(st.LastSeedTime, now):
		return GateStaleSeed
	case !e.tracker.CheckedInDuring(val.LastCheckin, now):
		return GateNotCheckedIn
	case e.clock.InQuietWindow(now):
		return GateQuietWindow
	default:
		return ""
	}
}

// processItem handles one beneficiary. Returned errors are store failures and
// abort the batch; every policy outcome is reported through the item.
func (e *Engine) processItem(ctx context.Context, policy Policy, view quorum.View, sub Submission, id uint64, destination crypto.Address, now uint64) (ItemOutcome, error) {
	item := ItemOutcome{BeneficiaryID: id}
	log := e.logger.With(
		slog.String("component", "issuance"),
		slog.String("validator", sub.Validator.String()),
		slog.Uint64("beneficiary", id))

	rec, err := e.loadBeneficiary(ctx, id)
	if err != nil {
		return item, err
	}
	observed := rec.LastIssued

	if destination != rec.Destination {
		item.Status = OutcomeSkipped
		item.Reason = ReasonDestinationMismatch
		log.Debug("destination reference mismatch")
		return item, nil
	}

	decision, err := e.accumulator.Approve(&rec.Approvals, sub.Validator, view)
	if errors.Is(err, quorum.ErrApprovalsFull) {
		item.Status = OutcomeRejected
		item.Reason = ReasonApprovalsFull
		log.Debug("approval set full")
		return item, nil
	}
	if err != nil {
		return item, err
	}

	switch decision.Outcome {
	case quorum.Pending, quorum.Rejected:
		if decision.Added {
			if err := e.store.Write(ctx, beneficiaryKey(id), &rec); err != nil {
				return item, err
			}
		}
		item.Status = OutcomePending
		item.Reason = ReasonAwaitingQuorum
		if decision.Outcome == quorum.Rejected {
			item.Status = OutcomeRejected
			item.Reason = fmt.Sprintf("%s: %d > %d", ReasonGroupDistance, decision.MaxDistance, decision.Tolerance)
		}
		log.Debug("approval recorded",
			slog.String("outcome", decision.Outcome.String()),
			slog.Int("approvals", decision.Approvals),
			slog.Int("threshold", decision.Threshold))
		return item, nil
	}

	timing, err := e.throttle.Evaluate(rec.LastIssued, now, policy.RatePerMinute)
	if err != nil {
		return item, err
	}
	if err := e.guard.Check(ctx, id, observed); err != nil {
		if errors.Is(err, ErrConcurrentIssuance) {
			item.Status = OutcomeSkipped
			item.Reason = ReasonConcurrentIssuance
			log.Warn("concurrent issuance detected", slog.String("error", err.Error()))
			return item, nil
		}
		return item, err
	}

	if !timing.Eligible {
		rec.LastIssued = now
		rec.Approvals.Clear()
		if err := e.store.Write(ctx, beneficiaryKey(id), &rec); err != nil {
			return item, err
		}
		item.Status = OutcomeCooldown
		item.Reason = fmt.Sprintf("%s: %d minutes", ReasonOutsideWindow, timing.Minutes)
		log.Debug("issuance outside window", slog.Uint64("minutes", timing.Minutes))
		return item, nil
	}

	net, commission, err := Split(timing.Amount, policy.CommissionPercent, policy.Mode())
	if err != nil {
		return item, err
	}
	due, carry := bits.Add64(commission, rec.CommissionOwed, 0)
	if carry != 0 {
		return item, fmt.Errorf("%w: commission owed to beneficiary %d", ErrOverflow, id)
	}
	if err := e.ledger.Mint(ctx, rec.Destination, net); err != nil {
		item.Status = OutcomeFailed
		item.Reason = fmt.Sprintf("%s: %v", ReasonLedgerError, err)
		log.Error("beneficiary mint failed", slog.String("error", err.Error()))
		return item, nil
	}
	e.metrics.AddMinted("beneficiary", net)
	item.Status = OutcomeIssued
	item.Amount = net

	// The beneficiary is paid at this point, so the issuance is stamped
	// either way and unpaid commission rides on the record.
	if due > 0 && !policy.CommissionDestination.IsZero() {
		if err := e.ledger.Mint(ctx, policy.CommissionDestination, due); err != nil {
			item.Status = OutcomeFailed
			item.Reason = fmt.Sprintf("%s: %v", ReasonCommissionFailed, err)
			rec.CommissionOwed = due
			log.Error("commission mint failed",
				slog.Uint64("owed", due),
				slog.String("error", err.Error()))
		} else {
			item.Commission = due
			rec.CommissionOwed = 0
			e.metrics.AddMinted("commission", due)
		}
	}

	rec.LastIssued = now
	rec.Approvals.Clear()
	if err := e.store.Write(ctx, beneficiaryKey(id), &rec); err != nil {
		return item, err
	}
	log.Info("beneficiary issued",
		slog.String("status", string(item.Status)),
		slog.Uint64("minutes", timing.Minutes),
		slog.Uint64("amount", item.Amount),
		slog.Uint64("commission", item.Commission))
	return item, nil
}

// Claim mints the validator's own participation reward.
func (e *Engine) Claim(ctx context.Context, validator crypto.Address) (receipt ClaimReceipt, err error) {
	ctx, span := e.startSpan(ctx, "Claim", attribute.String("validator", validator.String()))
	defer func() { finishSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	policy, err := e.loadPolicy(ctx)
	if err != nil {
		return receipt, err
	}
	val, err := e.loadValidator(ctx, validator)
	if err != nil {
		return receipt, err
	}
	if !policy.Curated {
		if err := e.verify(ctx, validator, policy.GatekeeperNetwork); err != nil {
			return receipt, err
		}
	}

	now := e.now()
	decision, err := EvaluateClaim(val, now, policy.ValidatorClaimRate)
	if err != nil {
		return receipt, err
	}
	receipt = ClaimReceipt{Status: decision.Status, Minutes: decision.Minutes, Amount: decision.Amount}
	e.metrics.ObserveClaim(string(decision.Status))
	if decision.Status != ClaimMinted {
		return receipt, nil
	}
	if err := e.ledger.Mint(ctx, validator, decision.Amount); err != nil {
		return ClaimReceipt{}, fmt.Errorf("issuance: mint validator claim: %w", err)
	}
	val.LastClaimed = now
	if err := e.store.Write(ctx, validatorKey(validator), &val); err != nil {
		return receipt, err
	}
	e.metrics.AddMinted("validator", decision.Amount)
	e.emit(events.ValidatorClaimed{Validator: validator, Minutes: decision.Minutes, Amount: decision.Amount, Timestamp: now})
	e.logger.Info("validator claimed",
		slog.String("component", "issuance"),
		slog.String("validator", validator.String()),
		slog.Uint64("minutes", decision.Minutes),
		slog.Uint64("amount", decision.Amount))
	return receipt, nil
}

// EpochSummary returns the current epoch view.
func (e *Engine) EpochSummary(ctx context.Context) (epoch.Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.loadEpoch(ctx)
	if err != nil {
		return epoch.Summary{}, err
	}
	return st.Summarize(e.clock, e.now()), nil
}

// Policy returns the stored policy.
func (e *Engine) Policy(ctx context.Context) (Policy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadPolicy(ctx)
}

// Validator returns a validator record.
func (e *Engine) Validator(ctx context.Context, addr crypto.Address) (ValidatorRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadValidator(ctx, addr)
}

// Beneficiary returns a beneficiary record.
func (e *Engine) Beneficiary(ctx context.Context, id uint64) (BeneficiaryRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.loadBeneficiary(ctx, id)
	if err != nil {
		return rec, err
	}
	rec.Approvals = rec.Approvals.Clone()
	return rec, nil
}
