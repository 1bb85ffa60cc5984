package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/logger"
)

func tickerServer(t *testing.T, hits *atomic.Int32, prices map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, tickerPriceEndpoint, r.URL.Path)
		symbol := r.URL.Query().Get("symbol")
		price, ok := prices[symbol]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TickerPrice{Symbol: symbol, Price: price})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, cfg ProviderConfig) *Provider {
	t.Helper()
	p, err := NewProvider(cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestProvider_RESTPriceIsCached(t *testing.T) {
	var hits atomic.Int32
	srv := tickerServer(t, &hits, map[string]string{"ETHUSDT": "3012.50"})
	p := newTestProvider(t, ProviderConfig{BaseURL: srv.URL, StaleTimeout: time.Minute})

	ctx := context.Background()
	for range 3 {
		price, err := p.USDPrice(ctx, asset.WETH)
		require.NoError(t, err)
		assert.True(t, price.Rate().Equal(decimal.RequireFromString("3012.5")), price.String())
		assert.Equal(t, "WETH/USD", price.Pair())
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestProvider_Numeraires(t *testing.T) {
	var hits atomic.Int32
	srv := tickerServer(t, &hits, nil)
	p := newTestProvider(t, ProviderConfig{BaseURL: srv.URL})

	for _, a := range []*asset.Asset{asset.USD, asset.USDT} {
		price, err := p.USDPrice(context.Background(), a)
		require.NoError(t, err)
		assert.True(t, price.Rate().Equal(decimal.NewFromInt(1)))
	}
	assert.Zero(t, hits.Load())
}

func TestProvider_MissingReference(t *testing.T) {
	var hits atomic.Int32
	srv := tickerServer(t, &hits, map[string]string{})
	p := newTestProvider(t, ProviderConfig{BaseURL: srv.URL})

	tests := []struct {
		name  string
		asset *asset.Asset
	}{
		{"no ref symbol", asset.MustNewToken(1, common.HexToAddress("0x01"), "FOO", 18)},
		{"unknown symbol", asset.MustNewToken(1, common.HexToAddress("0x02"), "BAR", 18).WithRefSymbol("BARUSDT")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.USDPrice(context.Background(), tt.asset)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeReferencePriceMissing), err.Error())
		})
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestProvider_StreamFeedsCache(t *testing.T) {
	var hits atomic.Int32
	rest := tickerServer(t, &hits, map[string]string{"BTCUSDT": "1"})

	subscribed := make(chan subscribeRequest, 1)
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := context.Background()

		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var req subscribeRequest
		json.Unmarshal(data, &req)
		subscribed <- req

		conn.Write(ctx, websocket.MessageText, []byte(`{"result":null,"id":1}`))
		conn.Write(ctx, websocket.MessageText,
			[]byte(`{"stream":"btcusdt@bookTicker","data":{"u":1,"s":"BTCUSDT","b":"60000","B":"1","a":"60010","A":"2"}}`))
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ws.Close)

	p := newTestProvider(t, ProviderConfig{
		BaseURL:      rest.URL,
		WebSocketURL: "ws" + strings.TrimPrefix(ws.URL, "http"),
		StaleTimeout: time.Minute,
		Stream:       true,
		Symbols:      []string{"BTCUSDT"},
	})
	require.NoError(t, p.Start(context.Background()))

	select {
	case req := <-subscribed:
		assert.Equal(t, "SUBSCRIBE", req.Method)
		assert.Equal(t, []string{"btcusdt@bookTicker"}, req.Params)
	case <-time.After(5 * time.Second):
		t.Fatal("no subscription received")
	}

	require.Eventually(t, func() bool {
		_, ok := p.prices.Get(context.Background(), "BTCUSDT")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	price, err := p.USDPrice(context.Background(), asset.WBTC)
	require.NoError(t, err)
	assert.True(t, price.Rate().Equal(decimal.NewFromInt(60005)), price.String())
	assert.Zero(t, hits.Load())
	assert.True(t, p.StreamConnected())
}

func TestBookTickerEvent_Mid(t *testing.T) {
	tests := []struct {
		name     string
		bid, ask string
		want     string
		wantErr  bool
	}{
		{"both sides", "100", "102", "101", false},
		{"bid only", "100", "0", "100", false},
		{"ask only", "0", "102", "102", false},
		{"garbage", "x", "1", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := BookTickerEvent{BidPrice: tt.bid, AskPrice: tt.ask}
			got, err := ev.Mid()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), got.String())
		})
	}
}
