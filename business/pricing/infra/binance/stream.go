package binance

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arbguard/internal/logger"
	"github.com/fd1az/arbguard/internal/wsconn"
)

const (
	tracerName = "binance"
	meterName  = "binance"

	BaseWSURL     = "wss://stream.binance.com:9443"
	DataStreamURL = "wss://data-stream.binance.vision"
	BaseWSURLUS   = "wss://stream.binance.us:9443"
)

// TickHandler receives the mid price of every book ticker update.
type TickHandler func(ctx context.Context, symbol string, mid decimal.Decimal)

type streamMetrics struct {
	messages    metric.Int64Counter
	parseErrors metric.Int64Counter
}

// Stream subscribes to book ticker updates over the combined stream endpoint.
type Stream struct {
	conn   *wsconn.Client
	logger logger.LoggerInterface

	subsMu  sync.RWMutex
	symbols []string
	nextID  atomic.Int64

	onTick  TickHandler
	metrics streamMetrics
}

// NewStream creates a stream for symbols against baseURL (BaseWSURL when empty).
func NewStream(baseURL string, symbols []string, onTick TickHandler, log logger.LoggerInterface) (*Stream, error) {
	if baseURL == "" {
		baseURL = BaseWSURL
	}
	conn, err := wsconn.New(wsconn.DefaultConfig(baseURL+"/stream", "binance"), wsconn.WithLogger(log))
	if err != nil {
		return nil, err
	}

	s := &Stream{
		conn:    conn,
		logger:  log,
		symbols: append([]string(nil), symbols...),
		onTick:  onTick,
	}
	s.initMetrics()

	conn.OnMessage(s.handleMessage)
	conn.OnConnected(s.subscribe)
	conn.OnStateChange(func(state wsconn.State, err error) {
		if err != nil {
			log.Warn(context.Background(), "binance stream state changed", "state", string(state), "error", err)
			return
		}
		log.Debug(context.Background(), "binance stream state changed", "state", string(state))
	})
	return s, nil
}

func (s *Stream) initMetrics() {
	meter := otel.Meter(meterName)
	s.metrics.messages, _ = meter.Int64Counter("binance_messages_total",
		metric.WithDescription("Book ticker messages received"))
	s.metrics.parseErrors, _ = meter.Int64Counter("binance_parse_errors_total",
		metric.WithDescription("Stream messages that could not be parsed"))
}

// Connect dials and subscribes. Reconnects resubscribe automatically.
func (s *Stream) Connect(ctx context.Context) error {
	return s.conn.Connect(ctx)
}

func (s *Stream) IsConnected() bool {
	return s.conn.IsConnected()
}

func (s *Stream) Close() error {
	return s.conn.Close()
}

func (s *Stream) subscribe(ctx context.Context) error {
	s.subsMu.RLock()
	params := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		params = append(params, streamName(sym, streamBookTicker))
	}
	s.subsMu.RUnlock()
	if len(params) == 0 {
		return nil
	}

	return s.conn.SendJSON(ctx, subscribeRequest{
		Method: "SUBSCRIBE",
		Params: params,
		ID:     s.nextID.Add(1),
	})
}

func (s *Stream) handleMessage(ctx context.Context, msg []byte) {
	var env StreamEvent
	if err := json.Unmarshal(msg, &env); err != nil || env.Stream == "" {
		// subscription acks carry {"result":null,"id":N}
		return
	}
	s.metrics.messages.Add(ctx, 1, metric.WithAttributes(attribute.String("stream", env.Stream)))

	var ev BookTickerEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		s.metrics.parseErrors.Add(ctx, 1)
		s.logger.Warn(ctx, "unparseable book ticker", "stream", env.Stream, "error", err)
		return
	}
	mid, err := ev.Mid()
	if err != nil || !mid.IsPositive() {
		s.metrics.parseErrors.Add(ctx, 1)
		return
	}

	symbol := ev.Symbol
	if symbol == "" {
		symbol = parseStreamSymbol(env.Stream)
	}
	if s.onTick != nil {
		s.onTick(ctx, symbol, mid)
	}
}
