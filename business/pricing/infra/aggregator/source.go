// Package aggregator quotes swaps through an HTTP DEX aggregator API.
package aggregator

import (
	"context"
	"encoding/json"
	"math/big"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbguard/business/pricing/app"
	"github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/httpclient"
	"github.com/fd1az/arbguard/internal/logger"
	"github.com/fd1az/arbguard/internal/ratelimit"
)

const quotePath = "/swap/v1/quote"

var _ app.QuoteSource = (*Source)(nil)

type Config struct {
	Venue             string
	ChainID           uint64
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	Timeout           time.Duration
}

type Source struct {
	cfg    Config
	client httpclient.Client
	log    logger.LoggerInterface
}

func NewSource(cfg Config, log logger.LoggerInterface) (*Source, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	headers := map[string]string{"Accept": "application/json"}
	if cfg.APIKey != "" {
		headers["0x-api-key"] = cfg.APIKey
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(cfg.Venue),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithHeaders(headers),
		httpclient.WithRateLimiter(ratelimit.New(cfg.RequestsPerMinute)),
	)
	if err != nil {
		return nil, err
	}
	return &Source{cfg: cfg, client: client, log: log}, nil
}

func (s *Source) Venue() string   { return s.cfg.Venue }
func (s *Source) ChainID() uint64 { return s.cfg.ChainID }

type quoteResponse struct {
	BuyAmount    string `json:"buyAmount"`
	EstimatedGas string `json:"estimatedGas"`
	LiquidityUSD string `json:"liquidityUsd"`
}

type apiError struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

func (s *Source) Quote(ctx context.Context, in asset.Amount, out *asset.Asset) (*domain.Quote, error) {
	var res quoteResponse
	_, err := s.client.NewRequest(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "quote")),
		httpclient.WithResponseErrorHandler(s.errorHandler),
	).
		SetQueryParam("chainId", strconv.FormatUint(s.cfg.ChainID, 10)).
		SetQueryParam("sellToken", in.Asset().Address().Hex()).
		SetQueryParam("buyToken", out.Address().Hex()).
		SetQueryParam("sellAmount", in.Raw().String()).
		SetResult(&res).
		Get(ctx, quotePath)
	if err != nil {
		return nil, err
	}

	amountOut, ok := new(big.Int).SetString(res.BuyAmount, 10)
	if !ok || amountOut.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidQuote, apperror.WithContextf("%s: buyAmount %q", s.cfg.Venue, res.BuyAmount))
	}
	gas, _ := strconv.ParseUint(res.EstimatedGas, 10, 64)
	liquidity, err := decimal.NewFromString(res.LiquidityUSD)
	if err != nil {
		liquidity = decimal.Zero
	}

	return &domain.Quote{
		AmountIn:     in,
		AmountOut:    asset.NewAmount(out, amountOut),
		Venue:        s.cfg.Venue,
		ChainID:      s.cfg.ChainID,
		EstimatedGas: gas,
		LiquidityUSD: liquidity,
		ObservedAt:   time.Now(),
	}, nil
}

// errorHandler maps "no route" validation failures to quote unavailability
// so they never count against the venue's breaker.
func (s *Source) errorHandler(status int, body []byte) error {
	switch {
	case status < 400:
		return nil
	case status == 400 || status == 404:
		var e apiError
		_ = json.Unmarshal(body, &e)
		return apperror.New(apperror.CodeQuoteUnavailable,
			apperror.WithContextf("%s: %s", s.cfg.Venue, e.Reason), apperror.WithRetryable(false))
	case status == 429:
		return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithContext(s.cfg.Venue))
	default:
		return apperror.New(apperror.CodeServiceUnavailable, apperror.WithContextf("%s: HTTP %d", s.cfg.Venue, status))
	}
}
