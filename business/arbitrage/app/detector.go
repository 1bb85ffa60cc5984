package app

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbguard/business/arbitrage/domain"
	"github.com/fd1az/arbguard/internal/logger"
)

// DetectorConfig holds configuration for the arbitrage detector.
type DetectorConfig struct {
	TradeSizeUSD decimal.Decimal
}

// Detector runs discovery and evaluation passes and reports what it finds.
// Each session owns one; the session loop schedules the passes.
type Detector struct {
	routes    RouteSource
	evaluator *Evaluator
	reporter  Reporter
	config    DetectorConfig
	logger    logger.LoggerInterface

	mu   sync.Mutex
	last *domain.ScanResult
}

// NewDetector creates a new arbitrage Detector. reporter may be nil.
func NewDetector(
	routes RouteSource,
	evaluator *Evaluator,
	reporter Reporter,
	config DetectorConfig,
	log logger.LoggerInterface,
) *Detector {
	return &Detector{
		routes:    routes,
		evaluator: evaluator,
		reporter:  reporter,
		config:    config,
		logger:    log,
	}
}

// Scan performs one discovery and evaluation pass.
func (d *Detector) Scan(ctx context.Context) (*domain.ScanResult, error) {
	res, err := d.evaluator.EvaluateAll(ctx, d.routes, d.config.TradeSizeUSD)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.last = res
	d.mu.Unlock()

	d.logger.Info(ctx, "scan complete",
		"routes", res.Evaluated,
		"opportunities", len(res.Opportunities),
		"duration", res.Duration.String())

	if d.reporter != nil {
		for _, opp := range res.Opportunities {
			d.reporter.Report(opp)
		}
		d.reporter.ReportScan(res)
	}
	return res, nil
}

// Last returns the result of the most recent scan.
func (d *Detector) Last() (*domain.ScanResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.last != nil
}

// Find returns an opportunity of the most recent scan by id.
func (d *Detector) Find(id string) (*domain.Opportunity, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil, false
	}
	for _, opp := range d.last.Opportunities {
		if opp.ID == id {
			return opp, true
		}
	}
	return nil, false
}
