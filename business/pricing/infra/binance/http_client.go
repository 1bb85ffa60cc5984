package binance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/httpclient"
	"github.com/fd1az/arbguard/internal/logger"
	"github.com/fd1az/arbguard/internal/ratelimit"
)

const (
	BaseAPIURL   = "https://api.binance.com"
	BaseAPIURLUS = "https://api.binance.us"

	tickerPriceEndpoint = "/api/v3/ticker/price"

	httpTimeout = 10 * time.Second
)

type HTTPClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// HTTPClient reads spot prices from the REST API.
type HTTPClient struct {
	client httpclient.Client
	logger logger.LoggerInterface
	tracer trace.Tracer
}

func NewHTTPClient(cfg HTTPClientConfig, log logger.LoggerInterface) (*HTTPClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseAPIURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("binance"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithRateLimiter(ratelimit.New(cfg.RequestsPerMinute)),
		httpclient.WithCircuitBreaker(),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPClient{
		client: client,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// GetTickerPrice fetches the last traded price of symbol.
func (c *HTTPClient) GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ctx, span := c.tracer.Start(ctx, "binance.http.ticker_price",
		trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	var result TickerPrice
	_, err := c.client.NewRequest(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "ticker_price"),
		),
		httpclient.WithResponseErrorHandler(errorHandler),
	).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get(ctx, tickerPriceEndpoint)
	if err != nil {
		span.RecordError(err)
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(result.Price)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, apperror.New(apperror.CodeReferencePriceMissing,
			apperror.WithContextf("%s: bad price %q", symbol, result.Price))
	}

	c.logger.Debug(ctx, "fetched ticker price via HTTP", "symbol", symbol, "price", price.String())
	return price, nil
}

// errorHandler maps an unknown symbol (-1121) to a missing reference price.
func errorHandler(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}
	var apiErr APIError
	_ = json.Unmarshal(body, &apiErr)
	switch {
	case apiErr.Code == -1121:
		return apperror.New(apperror.CodeReferencePriceMissing,
			apperror.WithCause(&apiErr), apperror.WithRetryable(false))
	case statusCode == 429 || statusCode == 418:
		return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithContext("binance"))
	case statusCode >= 500:
		return apperror.New(apperror.CodeServiceUnavailable, apperror.WithContextf("binance: HTTP %d", statusCode))
	default:
		return apperror.New(apperror.CodeExternalServiceError,
			apperror.WithContextf("binance: HTTP %d", statusCode), apperror.WithCause(&apiErr))
	}
}
