// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/fd1az/arbguard/business/execution/app"
	"github.com/fd1az/arbguard/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Coordinator = di.NewToken[*app.Coordinator]("execution.Coordinator")
	Planner     = di.NewToken[*app.Planner]("execution.Planner")
)

func GetCoordinator(c di.ServiceRegistry) *app.Coordinator {
	return di.GetToken(c, Coordinator)
}

func GetPlanner(c di.ServiceRegistry) *app.Planner {
	return di.GetToken(c, Planner)
}
