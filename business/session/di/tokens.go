// Package di contains dependency injection tokens for the session context.
package di

import (
	"github.com/fd1az/arbguard/business/session/app"
	"github.com/fd1az/arbguard/business/session/infra/webhook"
	"github.com/fd1az/arbguard/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Manager = di.NewToken[*app.Manager]("session.Manager")
	// Notifier resolves to nil when no webhook is configured.
	Notifier = di.NewToken[*webhook.Notifier]("session.Notifier")
)

func GetManager(c di.ServiceRegistry) *app.Manager {
	return di.GetToken(c, Manager)
}

func GetNotifier(c di.ServiceRegistry) *webhook.Notifier {
	return di.GetToken(c, Notifier)
}
