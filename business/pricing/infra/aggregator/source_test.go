package aggregator

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/logger"
)

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, quotePath, r.URL.Path)
		assert.Equal(t, "1000000", r.URL.Query().Get("sellAmount"))
		assert.Equal(t, "secret", r.Header.Get("0x-api-key"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestQuote(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"buyAmount":"998500","estimatedGas":"150000","liquidityUsd":"2500000.5"}`)
	s, err := NewSource(Config{Venue: "0x", ChainID: 1, BaseURL: srv.URL, APIKey: "secret"}, logger.NewNop())
	require.NoError(t, err)

	q, err := s.Quote(context.Background(), asset.NewAmount(asset.USDC, big.NewInt(1_000_000)), asset.USDT)
	require.NoError(t, err)
	assert.Equal(t, "998500", q.AmountOut.Raw().String())
	assert.EqualValues(t, 150000, q.EstimatedGas)
	assert.Equal(t, "2500000.5", q.LiquidityUSD.String())
	assert.Equal(t, "0x", q.Venue)
}

func TestQuoteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apperror.Code
	}{
		{"no_route", http.StatusBadRequest, `{"code":100,"reason":"INSUFFICIENT_ASSET_LIQUIDITY"}`, apperror.CodeQuoteUnavailable},
		{"throttled", http.StatusTooManyRequests, `{}`, apperror.CodeRateLimitExceeded},
		{"outage", http.StatusBadGateway, `{}`, apperror.CodeServiceUnavailable},
		{"zero_output", http.StatusOK, `{"buyAmount":"0"}`, apperror.CodeInvalidQuote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body)
			s, err := NewSource(Config{Venue: "0x", ChainID: 1, BaseURL: srv.URL, APIKey: "secret"}, logger.NewNop())
			require.NoError(t, err)

			_, err = s.Quote(context.Background(), asset.NewAmount(asset.USDC, big.NewInt(1_000_000)), asset.USDT)
			assert.Equal(t, tt.want, apperror.GetCode(err))
		})
	}
}
