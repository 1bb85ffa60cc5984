// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/arbguard/business/pricing/app"
	"github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/internal/di"
)

// AnomalyDetectorFactory builds one detector per session.
type AnomalyDetectorFactory func() *domain.AnomalyDetector

// Public service tokens - exposed to other modules
var (
	QuoteService    = di.NewToken[*app.QuoteService]("pricing.QuoteService")
	ReferencePrices = di.NewToken[app.ReferencePriceSource]("pricing.ReferencePrices")
	AnomalyDetector = di.NewToken[AnomalyDetectorFactory]("pricing.AnomalyDetectorFactory")
)

func GetQuoteService(c di.ServiceRegistry) *app.QuoteService {
	return di.GetToken(c, QuoteService)
}

func GetReferencePrices(c di.ServiceRegistry) app.ReferencePriceSource {
	return di.GetToken(c, ReferencePrices)
}

func GetAnomalyDetectorFactory(c di.ServiceRegistry) AnomalyDetectorFactory {
	return di.GetToken(c, AnomalyDetector)
}
