// Package di contains dependency injection tokens for the safety context.
package di

import (
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/business/safety/app"
	"github.com/fd1az/arbguard/internal/di"
)

// GatewayFactory builds a gateway around the session's anomaly history.
type GatewayFactory func(anomaly *pricingDomain.AnomalyDetector) (*app.Gateway, error)

// Public service tokens - exposed to other modules
var (
	Gateways = di.NewToken[GatewayFactory]("safety.GatewayFactory")
)

func GetGatewayFactory(c di.ServiceRegistry) GatewayFactory {
	return di.GetToken(c, Gateways)
}
