package app

import (
	"context"
	"iter"
	"time"

	"github.com/fd1az/arbguard/business/arbitrage/domain"
	discoveryApp "github.com/fd1az/arbguard/business/discovery/app"
	discoveryDomain "github.com/fd1az/arbguard/business/discovery/domain"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/internal/asset"
)

// QuoteProvider quotes a swap on a named venue. *pricing/app.QuoteService
// satisfies it.
type QuoteProvider interface {
	Quote(ctx context.Context, venue string, in asset.Amount, out *asset.Asset) (*pricingDomain.Quote, error)
}

// RouteSource lazily yields candidate routes. *discovery/app.Planner
// satisfies it.
type RouteSource interface {
	Routes(prune discoveryApp.Pruner) iter.Seq[discoveryDomain.Route]
}

// Reporter defines the interface for reporting arbitrage opportunities.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// Report sends an arbitrage opportunity to be displayed/logged.
	Report(opp *domain.Opportunity)

	// ReportScan publishes the summary of a finished scan.
	ReportScan(result *domain.ScanResult)

	// UpdateConnectionStatus updates a connection status display.
	UpdateConnectionStatus(name string, connected bool, latency time.Duration)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
