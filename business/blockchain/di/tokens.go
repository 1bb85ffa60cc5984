// Package di contains dependency injection tokens for the blockchain context.
package di

import (
	"github.com/fd1az/arbguard/business/blockchain/app"
	"github.com/fd1az/arbguard/business/blockchain/infra/ethereum"
	"github.com/fd1az/arbguard/internal/di"
)

// Public service tokens - exposed to other modules
var (
	BlockchainService = di.NewToken[*app.BlockchainService]("blockchain.BlockchainService")
	GasPriceSource    = di.NewToken[app.GasPriceSource]("blockchain.GasPriceSource")
	// ChainClient resolves to nil in demo mode.
	ChainClient = di.NewToken[*ethereum.ChainClient]("blockchain.ChainClient")
)

// Private dependency tokens - internal to blockchain module
var (
	HeadPoller = di.NewToken[*ethereum.HeadPoller]("blockchain:headPoller")
)

// Helper functions for type-safe access
func GetBlockchainService(c di.ServiceRegistry) *app.BlockchainService {
	return di.GetToken(c, BlockchainService)
}

func GetGasPriceSource(c di.ServiceRegistry) app.GasPriceSource {
	return di.GetToken(c, GasPriceSource)
}

func GetChainClient(c di.ServiceRegistry) *ethereum.ChainClient {
	return di.GetToken(c, ChainClient)
}

func GetHeadPoller(c di.ServiceRegistry) *ethereum.HeadPoller {
	return di.GetToken(c, HeadPoller)
}
