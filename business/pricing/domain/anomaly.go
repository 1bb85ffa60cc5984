package domain

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AnomalyResult is the outcome of CheckPrice. Valid results may still
// carry a low-severity note.
type AnomalyResult struct {
	Valid    bool
	Reason   string
	Severity Severity
}

type PricePoint struct {
	Timestamp time.Time
	Price     decimal.Decimal
}

type AnomalyConfig struct {
	HistorySize  int
	MinPoints    int
	CriticalPct  float64
	DeviationPct float64
	ZScore       float64
	ShortWindow  int
	MaxAge       time.Duration
}

func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		HistorySize:  100,
		MinPoints:    5,
		CriticalPct:  20,
		DeviationPct: 10,
		ZScore:       3,
		ShortWindow:  3,
		MaxAge:       time.Hour,
	}
}

// ring is a fixed-capacity FIFO of price points, oldest first.
type ring struct {
	buf   []PricePoint
	start int
	n     int
}

func newRing(size int) *ring {
	return &ring{buf: make([]PricePoint, size)}
}

func (r *ring) push(p PricePoint) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = p
		r.n++
		return
	}
	r.buf[r.start] = p
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) at(i int) PricePoint {
	return r.buf[(r.start+i)%len(r.buf)]
}

// dropBefore evicts leading points older than cutoff and returns how many were removed.
func (r *ring) dropBefore(cutoff time.Time) int {
	removed := 0
	for r.n > 0 && r.at(0).Timestamp.Before(cutoff) {
		r.buf[r.start] = PricePoint{}
		r.start = (r.start + 1) % len(r.buf)
		r.n--
		removed++
	}
	return removed
}

func (r *ring) points() []PricePoint {
	out := make([]PricePoint, r.n)
	for i := range out {
		out[i] = r.at(i)
	}
	return out
}

// AnomalyDetector keeps a bounded price history per pair and rejects
// prices that deviate abnormally from it. Safe for concurrent use.
type AnomalyDetector struct {
	cfg     AnomalyConfig
	mu      sync.RWMutex
	history map[string]*ring
	now     func() time.Time
}

func NewAnomalyDetector(cfg AnomalyConfig) *AnomalyDetector {
	def := DefaultAnomalyConfig()
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.MinPoints <= 0 {
		cfg.MinPoints = def.MinPoints
	}
	if cfg.ShortWindow <= 0 {
		cfg.ShortWindow = def.ShortWindow
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	return &AnomalyDetector{
		cfg:     cfg,
		history: make(map[string]*ring),
		now:     time.Now,
	}
}

// WithClock replaces the time source. For tests.
func (d *AnomalyDetector) WithClock(now func() time.Time) *AnomalyDetector {
	d.now = now
	return d
}

// AddPrice appends an observation, evicting the oldest once the pair's buffer is full.
func (d *AnomalyDetector) AddPrice(pair string, price decimal.Decimal) {
	d.AddPriceAt(pair, price, d.now())
}

func (d *AnomalyDetector) AddPriceAt(pair string, price decimal.Decimal, ts time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.history[pair]
	if !ok {
		r = newRing(d.cfg.HistorySize)
		d.history[pair] = r
	}
	r.push(PricePoint{Timestamp: ts, Price: price})
}

// CheckPrice is a pure function of the stored window and price. Checks run
// in order critical deviation, short-window deviation, general deviation,
// z-score; the first failure is returned.
func (d *AnomalyDetector) CheckPrice(pair string, price decimal.Decimal) AnomalyResult {
	if !price.IsPositive() {
		return AnomalyResult{Valid: false, Reason: "non-positive price", Severity: SeverityCritical}
	}

	d.mu.RLock()
	var window []float64
	if r, ok := d.history[pair]; ok {
		window = make([]float64, r.n)
		for i := 0; i < r.n; i++ {
			window[i] = r.at(i).Price.InexactFloat64()
		}
	}
	d.mu.RUnlock()

	if len(window) < d.cfg.MinPoints {
		return AnomalyResult{
			Valid:    true,
			Reason:   fmt.Sprintf("insufficient history (%d/%d points)", len(window), d.cfg.MinPoints),
			Severity: SeverityLow,
		}
	}

	p := price.InexactFloat64()
	mean, stddev := meanStddev(window)
	if mean <= 0 {
		return AnomalyResult{Valid: true, Reason: "degenerate history", Severity: SeverityLow}
	}

	deviation := math.Abs(p-mean) / mean * 100
	if deviation > d.cfg.CriticalPct {
		return AnomalyResult{
			Reason:   fmt.Sprintf("price deviates %.2f%% from mean %.6g (limit %.2f%%)", deviation, mean, d.cfg.CriticalPct),
			Severity: SeverityCritical,
		}
	}

	short := window
	if len(short) > d.cfg.ShortWindow {
		short = short[len(short)-d.cfg.ShortWindow:]
	}
	shortMean, _ := meanStddev(short)
	if shortMean > 0 {
		shortDev := math.Abs(p-shortMean) / shortMean * 100
		if shortDev > d.cfg.DeviationPct {
			return AnomalyResult{
				Reason:   fmt.Sprintf("price deviates %.2f%% from last %d observations", shortDev, len(short)),
				Severity: SeverityMedium,
			}
		}
	}

	if deviation > d.cfg.DeviationPct {
		return AnomalyResult{
			Reason:   fmt.Sprintf("price deviates %.2f%% from mean %.6g (limit %.2f%%)", deviation, mean, d.cfg.DeviationPct),
			Severity: SeverityHigh,
		}
	}

	if stddev > 0 {
		z := math.Abs(p-mean) / stddev
		if z > d.cfg.ZScore {
			return AnomalyResult{
				Reason:   fmt.Sprintf("z-score %.2f exceeds %.2f", z, d.cfg.ZScore),
				Severity: SeverityHigh,
			}
		}
	}

	return AnomalyResult{Valid: true}
}

// Purge drops points older than MaxAge at now across all pairs and forgets
// empty pairs. It returns the number of points removed.
func (d *AnomalyDetector) Purge(now time.Time) int {
	cutoff := now.Add(-d.cfg.MaxAge)

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for pair, r := range d.history {
		removed += r.dropBefore(cutoff)
		if r.n == 0 {
			delete(d.history, pair)
		}
	}
	return removed
}

// Start sweeps expired history every interval until ctx is done.
func (d *AnomalyDetector) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Purge(d.now())
		}
	}
}

// History returns a copy of the pair's window, oldest first.
func (d *AnomalyDetector) History(pair string) []PricePoint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if r, ok := d.history[pair]; ok {
		return r.points()
	}
	return nil
}

func (d *AnomalyDetector) Pairs() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.history)
}

// meanStddev returns the arithmetic mean and population standard deviation.
func meanStddev(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}
