// Package binance provides USD reference prices from Binance spot markets:
// REST ticker lookups backed by an optional book ticker stream.
package binance

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbguard/business/pricing/app"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/cache"
	"github.com/fd1az/arbguard/internal/logger"
)

var _ app.ReferencePriceSource = (*Provider)(nil)

// Assets whose USD value is taken as exactly 1. USDT is the quote currency
// of every reference market.
var numeraires = map[string]bool{"USD": true, "USDT": true}

type ProviderConfig struct {
	BaseURL      string
	WebSocketURL string
	// StaleTimeout is how long a price may be served without refresh.
	StaleTimeout      time.Duration
	RequestsPerMinute int
	// Stream enables the book ticker stream for Symbols.
	Stream  bool
	Symbols []string
}

type cachedPrice struct {
	rate decimal.Decimal
	at   time.Time
}

// Provider implements app.ReferencePriceSource.
type Provider struct {
	cfg    ProviderConfig
	http   *HTTPClient
	stream *Stream
	prices *cache.Cache[string, cachedPrice]
	logger logger.LoggerInterface
	now    func() time.Time
}

func NewProvider(cfg ProviderConfig, log logger.LoggerInterface) (*Provider, error) {
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = 30 * time.Second
	}
	httpClient, err := NewHTTPClient(HTTPClientConfig{
		BaseURL:           cfg.BaseURL,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, log)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:    cfg,
		http:   httpClient,
		prices: cache.New[string, cachedPrice](cfg.StaleTimeout),
		logger: log,
		now:    time.Now,
	}

	if cfg.Stream && len(cfg.Symbols) > 0 {
		p.stream, err = NewStream(cfg.WebSocketURL, cfg.Symbols, p.onTick, log)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Start connects the stream when enabled. REST lookups work without it.
func (p *Provider) Start(ctx context.Context) error {
	if p.stream == nil {
		return nil
	}
	if err := p.stream.Connect(ctx); err != nil {
		p.logger.Warn(ctx, "binance stream unavailable, using REST only", "error", err)
	}
	return nil
}

func (p *Provider) Close() error {
	if p.stream == nil {
		return nil
	}
	return p.stream.Close()
}

// StreamConnected reports whether the stream is live. False when disabled.
func (p *Provider) StreamConnected() bool {
	return p.stream != nil && p.stream.IsConnected()
}

func (p *Provider) onTick(ctx context.Context, symbol string, mid decimal.Decimal) {
	p.prices.Set(ctx, strings.ToUpper(symbol), cachedPrice{rate: mid, at: p.now()})
}

// USDPrice returns the USD price of a. Stream prices are served while fresh;
// otherwise the REST ticker is queried and cached.
func (p *Provider) USDPrice(ctx context.Context, a *asset.Asset) (asset.Price, error) {
	if a == nil {
		return asset.Price{}, apperror.Validation(apperror.CodeInvalidInput, "nil asset")
	}
	now := p.now()
	if a.ID().IsUSD() || (a.RefSymbol() == "" && numeraires[strings.ToUpper(a.Symbol())]) {
		return asset.USDPrice(a, decimal.NewFromInt(1), now), nil
	}
	symbol := strings.ToUpper(a.RefSymbol())
	if symbol == "" {
		return asset.Price{}, apperror.New(apperror.CodeReferencePriceMissing,
			apperror.WithContextf("%s has no reference market", a.Symbol()), apperror.WithRetryable(false))
	}

	cp, err := p.prices.GetOrLoad(ctx, symbol, func(ctx context.Context) (cachedPrice, error) {
		rate, err := p.http.GetTickerPrice(ctx, symbol)
		if err != nil {
			return cachedPrice{}, err
		}
		return cachedPrice{rate: rate, at: p.now()}, nil
	})
	if err != nil {
		return asset.Price{}, apperror.Wrap(err, apperror.CodeReferencePriceMissing, symbol)
	}
	return asset.USDPrice(a, cp.rate, cp.at), nil
}
