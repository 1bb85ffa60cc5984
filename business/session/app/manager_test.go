package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arbDomain "github.com/fd1az/arbguard/business/arbitrage/domain"
	discoveryDomain "github.com/fd1az/arbguard/business/discovery/domain"
	executionApp "github.com/fd1az/arbguard/business/execution/app"
	executionDomain "github.com/fd1az/arbguard/business/execution/domain"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	riskApp "github.com/fd1az/arbguard/business/risk/app"
	riskDomain "github.com/fd1az/arbguard/business/risk/domain"
	"github.com/fd1az/arbguard/business/risk/infra/sqlite"
	safetyDomain "github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/business/session/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/logger"
)

var wallet = common.HexToAddress("0x00000000000000000000000000000000000000aa")

type fakeScanner struct {
	opps  []*arbDomain.Opportunity
	scans atomic.Int32
}

func (s *fakeScanner) Scan(ctx context.Context) (*arbDomain.ScanResult, error) {
	s.scans.Add(1)
	return &arbDomain.ScanResult{Opportunities: s.opps, Evaluated: len(s.opps), StartedAt: time.Now()}, ctx.Err()
}

type fakeValidator struct {
	vetoed map[string]bool
	calls  atomic.Int32
}

func (v *fakeValidator) Validate(_ context.Context, opp *arbDomain.Opportunity, _ *safetyDomain.Params) safetyDomain.Verdict {
	v.calls.Add(1)
	if v.vetoed[opp.ID] {
		return safetyDomain.NewVerdict(opp.ID, []safetyDomain.Veto{
			{Guard: safetyDomain.GuardSpread, Code: apperror.CodeSpreadExceeded, Reason: "spread 3%"},
		}, time.Now())
	}
	return safetyDomain.NewVerdict(opp.ID, nil, time.Now())
}

// fakeExecutor succeeds in every mode. With gate set, Execute blocks until
// the gate is closed.
type fakeExecutor struct {
	wallet  sync.Mutex
	locks   atomic.Int32
	entered chan struct{}
	gate    chan struct{}

	mu       sync.Mutex
	requests []executionApp.Request
	ctxErrs  []error
}

func (e *fakeExecutor) Execute(ctx context.Context, req executionApp.Request) *executionDomain.Result {
	if e.entered != nil {
		e.entered <- struct{}{}
	}
	if e.gate != nil {
		<-e.gate
	}
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.ctxErrs = append(e.ctxErrs, ctx.Err())
	e.mu.Unlock()

	status := executionDomain.StatusSimulated
	if req.Mode == executionDomain.ModeReal {
		status = executionDomain.StatusConfirmed
	}
	return &executionDomain.Result{
		OpportunityID: req.Opportunity.ID,
		UserID:        req.UserID,
		Mode:          req.Mode,
		Status:        status,
		PnLUSD:        req.Opportunity.NetProfit(),
		Transactions:  []executionDomain.Transaction{{Kind: executionDomain.TxSwap}},
	}
}

func (e *fakeExecutor) Owner() common.Address { return wallet }

func (e *fakeExecutor) LockWallet() func() {
	e.wallet.Lock()
	e.locks.Add(1)
	return e.wallet.Unlock
}

func (e *fakeExecutor) executed() []executionApp.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]executionApp.Request(nil), e.requests...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, note domain.Notification) {
	n.mu.Lock()
	n.notes = append(n.notes, note)
	n.mu.Unlock()
}

func (n *fakeNotifier) all() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.notes...)
}

type harness struct {
	manager   *Manager
	scanner   *fakeScanner
	validator *fakeValidator
	executor  *fakeExecutor
	notifier  *fakeNotifier
	ledger    *riskApp.Ledger

	mu       sync.Mutex
	observed []domain.Entry
}

func newHarness(t *testing.T, cfg Config, opps ...*arbDomain.Opportunity) *harness {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ledger, err := riskApp.NewLedger(store, riskDomain.Limits{
		DailyLossLimitUSD:      decimal.NewFromInt(500),
		MaxPositionSizeUSD:     decimal.NewFromInt(10000),
		MaxSingleLossUSD:       decimal.NewFromInt(200),
		MaxConsecutiveFailures: 3,
		MaxDailyTrades:         100,
		AutoPause:              true,
	}, logger.NewNop())
	require.NoError(t, err)

	h := &harness{
		scanner:   &fakeScanner{opps: opps},
		validator: &fakeValidator{vetoed: map[string]bool{}},
		executor:  &fakeExecutor{},
		notifier:  &fakeNotifier{},
		ledger:    ledger,
	}
	h.manager, err = NewManager(Dependencies{
		NewAnomaly: func() *pricingDomain.AnomalyDetector {
			return pricingDomain.NewAnomalyDetector(pricingDomain.DefaultAnomalyConfig())
		},
		NewScanner:   func(*pricingDomain.AnomalyDetector) (Scanner, error) { return h.scanner, nil },
		NewValidator: func(*pricingDomain.AnomalyDetector) (Validator, error) { return h.validator, nil },
		Planner:      executionApp.NewPlanner(executionApp.PlannerConfig{TxGuard: safetyDomain.DefaultTxGuardConfig()}),
		Executor:     h.executor,
		Ledger:       ledger,
		Notifier:     h.notifier,
		Observer: func(e domain.Entry) {
			h.mu.Lock()
			h.observed = append(h.observed, e)
			h.mu.Unlock()
		},
	}, cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(h.manager.StopAll)
	return h
}

// opportunity is a 1000 USDC → 0.5 WETH → 1005 USDC round trip.
func opportunity(t *testing.T) *arbDomain.Opportunity {
	t.Helper()
	start, err := asset.ParseString(asset.USDC, "1000")
	require.NoError(t, err)
	mid, err := asset.ParseString(asset.WETH, "0.5")
	require.NoError(t, err)
	final, err := asset.ParseString(asset.USDC, "1005")
	require.NoError(t, err)

	route := discoveryDomain.Route{
		Kind: discoveryDomain.KindDirect,
		Legs: []discoveryDomain.Leg{
			{TokenIn: asset.USDC, TokenOut: asset.WETH, Venue: "v1", ChainID: 1},
			{TokenIn: asset.WETH, TokenOut: asset.USDC, Venue: "v1", ChainID: 1},
		},
	}
	quotes := []*pricingDomain.Quote{
		{AmountIn: start, AmountOut: mid, Venue: "v1", ChainID: 1},
		{AmountIn: mid, AmountOut: final, Venue: "v1", ChainID: 1},
	}
	profit := &arbDomain.ProfitResult{NetProfit: decimal.NewFromInt(4), IsProfitable: true}
	return arbDomain.NewOpportunity(route, start, final, quotes, nil, profit, arbDomain.RiskScore{},
		decimal.Zero, time.Now(), time.Minute)
}

func kinds(entries []domain.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Kind)
	}
	return out
}

func TestManager_ScanDiscardsVetoed(t *testing.T) {
	good, bad := opportunity(t), opportunity(t)
	h := newHarness(t, DefaultConfig(), good, bad)
	h.validator.vetoed[bad.ID] = true

	opps, err := h.manager.Scan(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, good.ID, opps[0].ID)

	trail, err := h.manager.Trail("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.EntryVeto, domain.EntryScan}, kinds(trail))
	assert.Equal(t, bad.ID, trail[0].OpportunityID)
	assert.Equal(t, safetyDomain.GuardSpread, trail[0].Decision)
	assert.Equal(t, apperror.CodeSpreadExceeded, trail[0].Code)
	assert.Equal(t, "spread 3%", trail[0].Reason)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, trail, h.observed)
}

func TestManager_ExecuteRevalidatesUnderWalletLock(t *testing.T) {
	opp := opportunity(t)
	h := newHarness(t, DefaultConfig(), opp)
	ctx := context.Background()

	_, err := h.manager.Scan(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int32(1), h.validator.calls.Load())

	res := h.manager.Execute(ctx, "alice", opp.ID, executionDomain.ModeSimulation)
	assert.Equal(t, executionDomain.StatusSimulated, res.Status)
	assert.Equal(t, int32(2), h.validator.calls.Load(), "execution validates again")
	assert.Equal(t, int32(1), h.executor.locks.Load())

	reqs := h.executor.executed()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Verdict.Safe)
	assert.Equal(t, opp.ID, reqs[0].Verdict.OpportunityID)
	assert.Equal(t, wallet, reqs[0].Params.Owner)
	assert.Len(t, reqs[0].Params.Legs, 2)

	trail, err := h.manager.Trail("alice")
	require.NoError(t, err)
	last := trail[len(trail)-1]
	assert.Equal(t, domain.EntryExecution, last.Kind)
	assert.Equal(t, string(executionDomain.StatusSimulated), last.Decision)
	assert.Equal(t, "pnl_usd 4.00", last.Reason)

	// The submitted opportunity is consumed.
	res = h.manager.Execute(ctx, "alice", opp.ID, executionDomain.ModeSimulation)
	assert.Equal(t, apperror.CodeOpportunityNotFound, res.Code)
}

func TestManager_ExecuteRefusals(t *testing.T) {
	opp := opportunity(t)
	h := newHarness(t, DefaultConfig(), opp)
	ctx := context.Background()

	res := h.manager.Execute(ctx, "alice", opp.ID, executionDomain.ModeReal)
	assert.Equal(t, executionDomain.StatusRejected, res.Status)
	assert.Equal(t, apperror.CodeSessionNotFound, res.Code)

	_, err := h.manager.Scan(ctx, "alice")
	require.NoError(t, err)

	res = h.manager.Execute(ctx, "alice", "missing", executionDomain.ModeReal)
	assert.Equal(t, apperror.CodeOpportunityNotFound, res.Code)

	res = h.manager.Execute(ctx, "alice", opp.ID, "paper")
	assert.Equal(t, apperror.CodeInvalidExecutionMode, res.Code)

	h.manager.now = func() time.Time { return opp.ExpiresAt }
	res = h.manager.Execute(ctx, "alice", opp.ID, executionDomain.ModeReal)
	assert.Equal(t, apperror.CodeOpportunityExpired, res.Code)
	assert.Equal(t, executionDomain.StatusRejected, res.Status)

	assert.Empty(t, h.executor.executed())
}

func TestManager_KillSwitchNotifiesAndResolves(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	_, err := h.manager.Scan(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, h.manager.KillSwitch(ctx, "alice", "ops"))

	status, err := h.manager.GetRiskStatus(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, status.TradingPaused)

	notes := h.notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, riskDomain.ReasonKillSwitch, notes[0].Message)
	assert.Equal(t, "alice", notes[0].UserID)

	events, err := h.manager.GetCircuitBreakerEvents(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, h.manager.ResolveCircuitBreaker(ctx, "alice", events[0].ID, "checked"))
	status, err = h.manager.GetRiskStatus(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, status.TradingPaused)

	err = h.manager.ResolveCircuitBreaker(ctx, "alice", events[0].ID, "again")
	assert.True(t, apperror.HasCode(err, apperror.CodeEventAlreadyResolved))

	trail, err := h.manager.Trail("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.EntryScan, domain.EntryBreaker, domain.EntryControl, domain.EntryControl}, kinds(trail))
}

func TestManager_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 5 * time.Millisecond
	h := newHarness(t, cfg, opportunity(t))
	ctx := context.Background()

	require.NoError(t, h.manager.Start(ctx, "alice"))
	assert.True(t, h.manager.Running("alice"))
	err := h.manager.Start(ctx, "alice")
	assert.True(t, apperror.HasCode(err, apperror.CodeSessionRunning))

	require.Eventually(t, func() bool { return h.scanner.scans.Load() >= 3 }, 2*time.Second, time.Millisecond)

	require.NoError(t, h.manager.Stop("alice"))
	assert.False(t, h.manager.Running("alice"))
	scans := h.scanner.scans.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, scans, h.scanner.scans.Load(), "no scan after Stop")

	require.NoError(t, h.manager.Stop("alice"))
	assert.True(t, apperror.HasCode(h.manager.Stop("bob"), apperror.CodeSessionNotFound))
	assert.Empty(t, h.executor.executed(), "auto execution is off")
}

func TestManager_StopWaitsForInFlightExecution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = time.Hour
	cfg.AutoExecute = true
	cfg.AutoMode = executionDomain.ModeReal
	h := newHarness(t, cfg, opportunity(t))
	h.executor.entered = make(chan struct{}, 1)
	h.executor.gate = make(chan struct{})

	require.NoError(t, h.manager.Start(context.Background(), "alice"))
	select {
	case <-h.executor.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("auto execution never started")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- h.manager.Stop("alice") }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a transaction was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(h.executor.gate)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned")
	}

	reqs := h.executor.executed()
	require.Len(t, reqs, 1)
	assert.Equal(t, executionDomain.ModeReal, reqs[0].Mode)
	assert.NoError(t, h.executor.ctxErrs[0], "the execution context survives Stop")
}

func TestManager_LoopSkipsExecutionWhenPaused(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 5 * time.Millisecond
	cfg.AutoExecute = true
	h := newHarness(t, cfg, opportunity(t))
	ctx := context.Background()

	_, err := h.ledger.KillSwitch(ctx, "alice", "ops")
	require.NoError(t, err)

	require.NoError(t, h.manager.Start(ctx, "alice"))
	require.Eventually(t, func() bool { return h.scanner.scans.Load() >= 3 }, 2*time.Second, time.Millisecond)
	require.NoError(t, h.manager.Stop("alice"))

	assert.Empty(t, h.executor.executed())
}

func TestNewManager_RequiresCollaborators(t *testing.T) {
	_, err := NewManager(Dependencies{}, DefaultConfig(), logger.NewNop())
	assert.True(t, apperror.HasCode(err, apperror.CodeConfigurationError))
}
