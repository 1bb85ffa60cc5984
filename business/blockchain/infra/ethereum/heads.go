package ethereum

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbguard/business/blockchain/app"
	"github.com/fd1az/arbguard/business/blockchain/domain"
	"github.com/fd1az/arbguard/internal/circuitbreaker"
	"github.com/fd1az/arbguard/internal/logger"
)

var _ app.HeadTracker = (*HeadPoller)(nil)

// HeaderReader fetches block headers. nil number means latest.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// HeadPoller polls the latest header over HTTP and keeps the newest block.
type HeadPoller struct {
	client   HeaderReader
	interval time.Duration
	// staleAfter marks the connection stale when no new block arrives in time.
	staleAfter time.Duration
	logger     logger.LoggerInterface
	cb         *circuitbreaker.Breaker[*types.Header]
	tracer     trace.Tracer

	blocksReceived metric.Int64Counter
	pollErrors     metric.Int64Counter

	mu       sync.RWMutex
	latest   *domain.Block
	status   domain.ConnectionStatus
	onBlock  func(*domain.Block)
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewHeadPoller(client HeaderReader, interval time.Duration, log logger.LoggerInterface) *HeadPoller {
	if interval <= 0 {
		interval = 12 * time.Second
	}
	h := &HeadPoller{
		client:     client,
		interval:   interval,
		staleAfter: 5 * interval,
		logger:     log,
		cb:         circuitbreaker.New[*types.Header](circuitbreaker.DefaultConfig("head-poller")),
		tracer:     otel.Tracer(tracerName),
		status:     domain.ConnectionStatus{State: domain.StateDisconnected},
		done:       make(chan struct{}),
	}
	meter := otel.Meter(meterName)
	h.blocksReceived, _ = meter.Int64Counter("blocks_received_total",
		metric.WithDescription("New chain heads observed"))
	h.pollErrors, _ = meter.Int64Counter("block_poll_errors_total",
		metric.WithDescription("Failed head polls"))
	return h
}

// OnBlock registers a callback for every new head. Must be set before Start.
func (h *HeadPoller) OnBlock(fn func(*domain.Block)) {
	h.mu.Lock()
	h.onBlock = fn
	h.mu.Unlock()
}

// Start polls once synchronously then keeps polling until Close or ctx ends.
func (h *HeadPoller) Start(ctx context.Context) {
	h.Poll(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Poll(ctx)
			}
		}
	}()
}

// Poll fetches the latest header once.
func (h *HeadPoller) Poll(ctx context.Context) {
	ctx, span := h.tracer.Start(ctx, "eth.poll.block")
	defer span.End()

	start := time.Now()
	header, err := h.cb.Execute(func() (*types.Header, error) {
		return h.client.HeaderByNumber(ctx, nil)
	})

	h.mu.Lock()
	if err != nil {
		h.status.Failures++
		h.status.State = domain.StateDisconnected
		h.mu.Unlock()
		span.RecordError(err)
		h.pollErrors.Add(ctx, 1)
		h.logger.Warn(ctx, "head poll failed", "error", err)
		return
	}

	h.status.Latency = time.Since(start)
	h.status.Failures = 0
	now := time.Now()
	if h.latest != nil && header.Number.Uint64() <= h.latest.Number {
		if now.Sub(h.status.LastUpdate) > h.staleAfter {
			h.status.State = domain.StateStale
		}
		h.mu.Unlock()
		span.AddEvent("duplicate_block")
		return
	}

	block := &domain.Block{
		Number:    header.Number.Uint64(),
		Hash:      header.Hash(),
		Timestamp: time.Unix(int64(header.Time), 0),
		BaseFee:   header.BaseFee,
	}
	h.latest = block
	h.status.State = domain.StateConnected
	h.status.LastBlock = block.Number
	h.status.LastUpdate = now
	onBlock := h.onBlock
	h.mu.Unlock()

	h.blocksReceived.Add(ctx, 1)
	span.SetStatus(codes.Ok, "polled")
	h.logger.Debug(ctx, "block received", "number", block.Number, "hash", block.Hash.Hex()[:10])
	if onBlock != nil {
		onBlock(block)
	}
}

func (h *HeadPoller) LatestBlock() (*domain.Block, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.latest != nil
}

func (h *HeadPoller) Status() domain.ConnectionStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *HeadPoller) Close() error {
	h.stopOnce.Do(func() { close(h.done) })
	h.wg.Wait()
	return nil
}
