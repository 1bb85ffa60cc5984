package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arbDomain "github.com/fd1az/arbguard/business/arbitrage/domain"
	executionApp "github.com/fd1az/arbguard/business/execution/app"
	executionDomain "github.com/fd1az/arbguard/business/execution/domain"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	riskDomain "github.com/fd1az/arbguard/business/risk/domain"
	"github.com/fd1az/arbguard/business/session/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/logger"
)

const (
	tracerName = "session"
	meterName  = "session"
)

// Config tunes the sessions.
type Config struct {
	// Interval is the scan loop period.
	Interval time.Duration
	// AutoExecute executes the best safe opportunity of every loop scan.
	AutoExecute bool
	// AutoMode is the mode auto-execution uses.
	AutoMode executionDomain.Mode
	// SweepInterval is how often stale price history is purged.
	SweepInterval time.Duration
	// AuditSize bounds each session's audit trail.
	AuditSize int
}

func DefaultConfig() Config {
	return Config{
		Interval:      30 * time.Second,
		AutoMode:      executionDomain.ModeSimulation,
		SweepInterval: time.Minute,
		AuditSize:     500,
	}
}

// Dependencies are the manager's collaborators. Notifier and Observer may
// be nil.
type Dependencies struct {
	NewAnomaly   func() *pricingDomain.AnomalyDetector
	NewScanner   ScannerFactory
	NewValidator ValidatorFactory
	Planner      TxPlanner
	Executor     Executor
	Ledger       RiskLedger
	Notifier     Notifier
	// Observer receives every audit entry as it is recorded. It must not block.
	Observer     func(domain.Entry)
}

type managerMetrics struct {
	scans   metric.Int64Counter
	vetoes  metric.Int64Counter
	running metric.Int64UpDownCounter
}

// Manager owns one session per user. Every session has its own price
// history, scanner and gateway; the executor and the ledger are shared
// and serialize per wallet and per user.
type Manager struct {
	deps   Dependencies
	cfg    Config
	logger logger.LoggerInterface
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	tracer  trace.Tracer
	metrics *managerMetrics
}

func NewManager(deps Dependencies, cfg Config, log logger.LoggerInterface) (*Manager, error) {
	if deps.NewAnomaly == nil || deps.NewScanner == nil || deps.NewValidator == nil ||
		deps.Planner == nil || deps.Executor == nil || deps.Ledger == nil {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "session manager is missing a collaborator")
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.AuditSize <= 0 {
		cfg.AuditSize = def.AuditSize
	}
	if cfg.AutoMode == "" {
		cfg.AutoMode = def.AutoMode
	}

	m := &Manager{
		deps:     deps,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
		sessions: make(map[string]*session),
		tracer:   otel.Tracer(tracerName),
	}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	deps.Ledger.OnTrip(m.onTrip)
	return m, nil
}

func (m *Manager) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	m.metrics = &managerMetrics{}

	m.metrics.scans, err = meter.Int64Counter("session_scans_total",
		metric.WithDescription("Session scans by result"))
	if err != nil {
		return err
	}
	m.metrics.vetoes, err = meter.Int64Counter("session_discarded_total",
		metric.WithDescription("Opportunities discarded by the safety gateway, by guard"))
	if err != nil {
		return err
	}
	m.metrics.running, err = meter.Int64UpDownCounter("session_loops_running",
		metric.WithDescription("Scan loops currently running"))
	return err
}

// session is one user's pipeline state.
type session struct {
	userID    string
	anomaly   *pricingDomain.AnomalyDetector
	scanner   Scanner
	validator Validator
	trail     *domain.Trail

	mu     sync.Mutex
	safe   map[string]*arbDomain.Opportunity
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *session) opportunity(id string) (*arbDomain.Opportunity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opp, ok := s.safe[id]
	return opp, ok
}

func (s *session) forget(id string) {
	s.mu.Lock()
	delete(s.safe, id)
	s.mu.Unlock()
}

func (s *session) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// open returns the user's session, creating it on first use.
func (m *Manager) open(userID string) (*session, error) {
	if userID == "" {
		return nil, apperror.Validation(apperror.CodeRequiredField, "user id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}

	anomaly := m.deps.NewAnomaly()
	scanner, err := m.deps.NewScanner(anomaly)
	if err != nil {
		return nil, err
	}
	validator, err := m.deps.NewValidator(anomaly)
	if err != nil {
		return nil, err
	}
	s := &session{
		userID:    userID,
		anomaly:   anomaly,
		scanner:   scanner,
		validator: validator,
		trail:     domain.NewTrail(m.cfg.AuditSize),
		safe:      make(map[string]*arbDomain.Opportunity),
	}
	m.sessions[userID] = s
	m.logger.Info(context.Background(), "session opened", "user", userID)
	return s, nil
}

func (m *Manager) lookup(userID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeSessionNotFound, userID)
	}
	return s, nil
}

// Scan runs one discovery, evaluation and safety pass and returns the
// opportunities the gateway found safe, best first. Vetoed opportunities
// are discarded with their reason kept in the audit trail.
func (m *Manager) Scan(ctx context.Context, userID string) ([]*arbDomain.Opportunity, error) {
	s, err := m.open(userID)
	if err != nil {
		return nil, err
	}

	ctx, span := m.tracer.Start(ctx, "session.scan", trace.WithAttributes(attribute.String("user", userID)))
	defer span.End()

	res, err := s.scanner.Scan(ctx)
	if err != nil {
		m.metrics.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		return nil, err
	}

	owner := m.deps.Executor.Owner()
	var safe []*arbDomain.Opportunity
	for _, opp := range res.Opportunities {
		if ctx.Err() != nil {
			break
		}
		if m.vet(ctx, s, opp, owner) {
			safe = append(safe, opp)
		}
	}

	s.mu.Lock()
	s.safe = make(map[string]*arbDomain.Opportunity, len(safe))
	for _, opp := range safe {
		s.safe[opp.ID] = opp
	}
	s.mu.Unlock()

	e := domain.NewEntry(userID, domain.EntryScan, "completed", m.now())
	e.Reason = scanSummary(res, len(safe))
	m.record(s, e)
	m.metrics.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	span.SetAttributes(attribute.Int("surfaced", len(res.Opportunities)), attribute.Int("safe", len(safe)))
	return safe, ctx.Err()
}

// vet plans and validates opp, recording the veto when it is unsafe.
func (m *Manager) vet(ctx context.Context, s *session, opp *arbDomain.Opportunity, owner common.Address) bool {
	params, err := m.deps.Planner.Plan(opp, owner)
	if err != nil {
		m.recordVeto(ctx, s, opp.ID, "planner", apperror.GetCode(err), err.Error())
		return false
	}
	verdict := s.validator.Validate(ctx, opp, params)
	if !verdict.Safe {
		m.recordVeto(ctx, s, opp.ID, verdict.Guard, verdict.Code, verdict.Reason)
		return false
	}
	return true
}

func (m *Manager) recordVeto(ctx context.Context, s *session, oppID, guard string, code apperror.Code, reason string) {
	e := domain.NewEntry(s.userID, domain.EntryVeto, guard, m.now())
	e.OpportunityID = oppID
	e.Code = code
	e.Reason = reason
	m.record(s, e)
	m.metrics.vetoes.Add(ctx, 1, metric.WithAttributes(attribute.String("guard", guard)))
	m.logger.Info(ctx, "opportunity discarded", "user", s.userID, "opportunity", oppID,
		"guard", guard, "code", code, "reason", reason)
}

// Execute executes an opportunity of the user's latest scan. The wallet
// stays locked from planning to the final receipt, and the gateway runs
// again so the coordinator always sees a fresh verdict. Every failure is
// reported in the result.
func (m *Manager) Execute(ctx context.Context, userID, opportunityID string, mode executionDomain.Mode) *executionDomain.Result {
	ctx, span := m.tracer.Start(ctx, "session.execute", trace.WithAttributes(
		attribute.String("user", userID), attribute.String("opportunity", opportunityID)))
	defer span.End()

	reject := func(err error) *executionDomain.Result {
		res := executionDomain.Rejected(userID, opportunityID, mode, err, m.now())
		m.logger.Info(ctx, "execution refused", "user", userID, "opportunity", opportunityID,
			"code", res.Code, "reason", res.Reason)
		return res
	}

	s, err := m.lookup(userID)
	if err != nil {
		return reject(err)
	}
	if _, err := executionDomain.ParseMode(string(mode)); err != nil {
		return reject(err)
	}
	opp, ok := s.opportunity(opportunityID)
	if !ok {
		return reject(apperror.NotFound(apperror.CodeOpportunityNotFound, opportunityID))
	}
	if opp.IsExpired(m.now()) {
		s.forget(opportunityID)
		return reject(apperror.New(apperror.CodeOpportunityExpired, apperror.WithContext(opportunityID)))
	}

	unlock := m.deps.Executor.LockWallet()
	defer unlock()

	params, err := m.deps.Planner.Plan(opp, m.deps.Executor.Owner())
	if err != nil {
		return reject(err)
	}
	verdict := s.validator.Validate(ctx, opp, params)
	if !verdict.Safe {
		m.recordVeto(ctx, s, opp.ID, verdict.Guard, verdict.Code, verdict.Reason)
	}

	res := m.deps.Executor.Execute(ctx, executionApp.Request{
		UserID:      userID,
		Opportunity: opp,
		Params:      params,
		Verdict:     verdict,
		Mode:        mode,
	})
	if len(res.Transactions) > 0 {
		s.forget(opportunityID)
	}

	e := domain.NewEntry(userID, domain.EntryExecution, string(res.Status), m.now())
	e.OpportunityID = opportunityID
	e.Code = res.Code
	e.Reason = res.Reason
	if res.Succeeded() {
		e.Reason = "pnl_usd " + res.PnLUSD.StringFixed(2)
	}
	m.record(s, e)
	span.SetAttributes(attribute.String("status", string(res.Status)))
	return res
}

// GetRiskStatus returns the user's risk counters.
func (m *Manager) GetRiskStatus(ctx context.Context, userID string) (*riskDomain.Tracking, error) {
	return m.deps.Ledger.Status(ctx, userID)
}

// GetCircuitBreakerEvents lists the user's breaker events, newest first.
func (m *Manager) GetCircuitBreakerEvents(ctx context.Context, userID string) ([]riskDomain.Event, error) {
	return m.deps.Ledger.Events(ctx, userID)
}

// ResolveCircuitBreaker resolves one event on behalf of the user.
func (m *Manager) ResolveCircuitBreaker(ctx context.Context, userID, eventID, note string) error {
	ev, err := m.deps.Ledger.ResolveEvent(ctx, userID, eventID, userID, note)
	if err != nil {
		return err
	}
	m.audit(userID, func(e *domain.Entry) {
		e.Kind = domain.EntryControl
		e.Decision = "resolve"
		e.Reason = ev.Reason + ": " + note
	})
	return nil
}

// KillSwitch pauses the user's trading until every breaker event is resolved.
func (m *Manager) KillSwitch(ctx context.Context, userID, by string) error {
	if _, err := m.deps.Ledger.KillSwitch(ctx, userID, by); err != nil {
		return err
	}
	m.audit(userID, func(e *domain.Entry) {
		e.Kind = domain.EntryControl
		e.Decision = "kill_switch"
		e.Reason = "by " + by
	})
	return nil
}

// Trail returns the user's audit entries, oldest first.
func (m *Manager) Trail(userID string) ([]domain.Entry, error) {
	s, err := m.lookup(userID)
	if err != nil {
		return nil, err
	}
	return s.trail.Entries(), nil
}

// Running reports whether the user's scan loop is active.
func (m *Manager) Running(userID string) bool {
	s, err := m.lookup(userID)
	return err == nil && s.running()
}

// Users lists the users with a session.
func (m *Manager) Users() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// audit records an entry in the user's trail when the session exists.
func (m *Manager) audit(userID string, fill func(e *domain.Entry)) {
	s, err := m.lookup(userID)
	if err != nil {
		return
	}
	e := domain.NewEntry(userID, "", "", m.now())
	fill(&e)
	m.record(s, e)
}

func (m *Manager) record(s *session, e domain.Entry) {
	s.trail.Record(e)
	if m.deps.Observer != nil {
		m.deps.Observer(e)
	}
}

// onTrip surfaces a breaker event in the trail and the notifier.
func (m *Manager) onTrip(ctx context.Context, ev riskDomain.Event) {
	m.audit(ev.UserID, func(e *domain.Entry) {
		e.Kind = domain.EntryBreaker
		e.Decision = ev.Reason
		e.Reason = "trigger " + ev.TriggerValue.String() + ", threshold " + ev.ThresholdValue.String()
	})
	if m.deps.Notifier == nil {
		return
	}
	m.deps.Notifier.Notify(ctx, domain.Notification{
		Kind:     domain.EntryBreaker,
		UserID:   ev.UserID,
		Severity: string(ev.Severity),
		Title:    "circuit breaker tripped",
		Message:  ev.Reason,
		Fields: map[string]string{
			"event":     ev.ID,
			"trigger":   ev.TriggerValue.String(),
			"threshold": ev.ThresholdValue.String(),
		},
		At: ev.CreatedAt,
	})
}

func scanSummary(res *arbDomain.ScanResult, safe int) string {
	return fmt.Sprintf("routes %d, surfaced %d, safe %d, took %s",
		res.Evaluated, len(res.Opportunities), safe, res.Duration.Round(time.Millisecond))
}
