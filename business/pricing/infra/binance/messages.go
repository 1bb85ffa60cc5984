package binance

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const streamBookTicker = "bookTicker"

// StreamEvent is the combined-stream envelope.
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// BookTickerEvent is a best bid/ask update.
// Stream: <symbol>@bookTicker
type BookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// Mid returns (bid+ask)/2. A one-sided book yields the side that is present.
func (e *BookTickerEvent) Mid() (decimal.Decimal, error) {
	bid, err := decimal.NewFromString(e.BidPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bid price %q: %w", e.BidPrice, err)
	}
	ask, err := decimal.NewFromString(e.AskPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ask price %q: %w", e.AskPrice, err)
	}
	switch {
	case bid.IsPositive() && ask.IsPositive():
		return bid.Add(ask).Div(decimal.NewFromInt(2)), nil
	case bid.IsPositive():
		return bid, nil
	default:
		return ask, nil
	}
}

// TickerPrice is the REST /api/v3/ticker/price response.
type TickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// APIError is the error body returned by the REST API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// streamName builds e.g. "ethusdt@bookTicker".
func streamName(symbol, kind string) string {
	return strings.ToLower(symbol) + "@" + kind
}

// parseStreamSymbol returns the upper-cased symbol of a stream name.
func parseStreamSymbol(stream string) string {
	sym, _, _ := strings.Cut(stream, "@")
	return strings.ToUpper(sym)
}
