// Package di contains dependency injection tokens for the risk context.
package di

import (
	"github.com/fd1az/arbguard/business/risk/app"
	"github.com/fd1az/arbguard/business/risk/infra/sqlite"
	"github.com/fd1az/arbguard/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Ledger = di.NewToken[*app.Ledger]("risk.Ledger")
	Store  = di.NewToken[*sqlite.Store]("risk.Store")
)

func GetLedger(c di.ServiceRegistry) *app.Ledger {
	return di.GetToken(c, Ledger)
}

func GetStore(c di.ServiceRegistry) *sqlite.Store {
	return di.GetToken(c, Store)
}
