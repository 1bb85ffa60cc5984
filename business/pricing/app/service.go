package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/cache"
	"github.com/fd1az/arbguard/internal/circuitbreaker"
	"github.com/fd1az/arbguard/internal/logger"
	"github.com/fd1az/arbguard/internal/ratelimit"
)

const meterName = "pricing"

type venue struct {
	source  QuoteSource
	breaker *circuitbreaker.Breaker[*domain.Quote]
}

// QuoteService routes quote requests to the registered venue sources. It
// paces each venue, trips a breaker per venue and caches identical requests
// for a short TTL so routes sharing a prefix do not re-quote it.
type QuoteService struct {
	mu      sync.RWMutex
	venues  map[string]*venue
	cache   *cache.Cache[string, *domain.Quote]
	limiter *ratelimit.Keyed
	timeout time.Duration
	log     logger.LoggerInterface

	requests metric.Int64Counter
	failures metric.Int64Counter
}

type ServiceOption func(*QuoteService)

func WithQuoteTTL(ttl time.Duration) ServiceOption {
	return func(s *QuoteService) { s.cache = cache.New[string, *domain.Quote](ttl) }
}

func WithQuoteTimeout(d time.Duration) ServiceOption {
	return func(s *QuoteService) { s.timeout = d }
}

// WithRequestsPerMinute paces each venue independently. Zero disables pacing.
func WithRequestsPerMinute(rpm int) ServiceOption {
	return func(s *QuoteService) { s.limiter = ratelimit.NewKeyed(rpm) }
}

func NewQuoteService(log logger.LoggerInterface, opts ...ServiceOption) *QuoteService {
	s := &QuoteService{
		venues:  make(map[string]*venue),
		cache:   cache.New[string, *domain.Quote](3 * time.Second),
		limiter: ratelimit.NewKeyed(0),
		timeout: 5 * time.Second,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter(meterName)
	s.requests, _ = meter.Int64Counter("pricing_quote_requests_total",
		metric.WithDescription("Quote requests by venue"))
	s.failures, _ = meter.Int64Counter("pricing_quote_failures_total",
		metric.WithDescription("Failed quote requests by venue"))
	return s
}

// Register adds a source under its venue name, replacing any previous one.
func (s *QuoteService) Register(src QuoteSource) {
	cfg := circuitbreaker.DefaultConfig("quote." + src.Venue())
	cfg.IsSuccessful = circuitbreaker.IgnoreCodes(apperror.CodeQuoteUnavailable, apperror.CodeInsufficientLiquidity)
	cfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		s.log.Warn(context.Background(), "quote breaker state changed", "breaker", name, "from", string(from), "to", string(to))
	}

	s.mu.Lock()
	s.venues[src.Venue()] = &venue{source: src, breaker: circuitbreaker.New[*domain.Quote](cfg)}
	s.mu.Unlock()
}

// Venues returns the registered venue names, sorted.
func (s *QuoteService) Venues() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.venues))
	for name := range s.venues {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ChainOf returns the chain a venue quotes on.
func (s *QuoteService) ChainOf(name string) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[name]
	if !ok {
		return 0, false
	}
	return v.source.ChainID(), true
}

// Quote asks venue for the output of swapping in into out.
func (s *QuoteService) Quote(ctx context.Context, venueName string, in asset.Amount, out *asset.Asset) (*domain.Quote, error) {
	s.mu.RLock()
	v, ok := s.venues[venueName]
	s.mu.RUnlock()
	if !ok {
		return nil, apperror.NotFound(apperror.CodeUnknownVenue, venueName)
	}
	if !in.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "quote amount must be positive")
	}

	key := fmt.Sprintf("%s|%s|%s|%s", venueName, in.Asset().ID(), in.Raw(), out.ID())
	return s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (*domain.Quote, error) {
		return s.fetch(ctx, v, in, out)
	})
}

func (s *QuoteService) fetch(ctx context.Context, v *venue, in asset.Amount, out *asset.Asset) (*domain.Quote, error) {
	s.requests.Add(ctx, 1)

	if err := s.limiter.Wait(ctx, v.source.Venue()); err != nil {
		return nil, apperror.New(apperror.CodeRateLimitExceeded, apperror.WithContext(v.source.Venue()), apperror.WithCause(err))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q, err := v.breaker.Execute(func() (*domain.Quote, error) {
		return v.source.Quote(ctx, in, out)
	})
	if err != nil {
		s.failures.Add(ctx, 1)
		return nil, err
	}
	if q == nil || !q.AmountOut.IsPositive() {
		s.failures.Add(ctx, 1)
		return nil, apperror.New(apperror.CodeInvalidQuote, apperror.WithContextf("%s: empty output", v.source.Venue()))
	}
	return q, nil
}
