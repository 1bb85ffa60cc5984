// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/arbguard/business/arbitrage/app"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/internal/di"
)

// DetectorFactory builds a detector with its own evaluator around the
// session's anomaly history. Each session calls it once.
type DetectorFactory func(anomaly *pricingDomain.AnomalyDetector) (*app.Detector, error)

// Public service tokens - exposed to other modules
var (
	Detectors = di.NewToken[DetectorFactory]("arbitrage.DetectorFactory")
	Reporter  = di.NewToken[app.Reporter]("arbitrage.Reporter")
)

func GetDetectorFactory(c di.ServiceRegistry) DetectorFactory {
	return di.GetToken(c, Detectors)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
