// Package di contains dependency injection tokens for the discovery context.
package di

import (
	"github.com/fd1az/arbguard/business/discovery/app"
	"github.com/fd1az/arbguard/internal/di"
)

var Planner = di.NewToken[*app.Planner]("discovery.Planner")

func GetPlanner(c di.ServiceRegistry) *app.Planner {
	return di.GetToken(c, Planner)
}
