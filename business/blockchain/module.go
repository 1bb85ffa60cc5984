// Package blockchain implements the blockchain bounded context: gas prices,
// chain heads and transaction plumbing for the primary chain.
package blockchain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/arbguard/business/blockchain/app"
	blockchainDI "github.com/fd1az/arbguard/business/blockchain/di"
	"github.com/fd1az/arbguard/business/blockchain/infra/ethereum"
	"github.com/fd1az/arbguard/internal/config"
	"github.com/fd1az/arbguard/internal/di"
	"github.com/fd1az/arbguard/internal/logger"
	"github.com/fd1az/arbguard/internal/monolith"
)

// demoGasWei is the fixed gas price used when no chain is connected.
var demoGasWei = big.NewInt(20_000_000_000)

const headPollInterval = 12 * time.Second

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.GasPriceSource, func(sr di.ServiceRegistry) app.GasPriceSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client, _ := sr.Get("ethClient").(*ethclient.Client)

		if cfg.Demo.Enabled || client == nil {
			return ethereum.StaticGasPrice{Wei: demoGasWei}
		}
		oracleCfg := ethereum.DefaultGasOracleConfig(cfg.Ethereum.ChainID, cfg.Gas.MaxGwei)
		if cfg.Gas.CacheTTL > 0 {
			oracleCfg.CacheTTL = cfg.Gas.CacheTTL
		}
		oracle, err := ethereum.NewGasOracle(client, oracleCfg, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, blockchainDI.ChainClient, func(sr di.ServiceRegistry) *ethereum.ChainClient {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client, _ := sr.Get("ethClient").(*ethclient.Client)
		if client == nil {
			return nil
		}
		return ethereum.NewChainClient(client, cfg.Ethereum.ChainID, log)
	})

	di.RegisterToken(c, blockchainDI.HeadPoller, func(sr di.ServiceRegistry) *ethereum.HeadPoller {
		log := sr.Get("logger").(logger.LoggerInterface)
		client, _ := sr.Get("ethClient").(*ethclient.Client)
		if client == nil {
			return nil
		}
		return ethereum.NewHeadPoller(client, headPollInterval, log)
	})

	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		gas := blockchainDI.GetGasPriceSource(sr)
		if heads := blockchainDI.GetHeadPoller(sr); heads != nil {
			return app.NewBlockchainService(gas, heads)
		}
		return app.NewBlockchainService(gas, nil)
	})

	return nil
}

// Startup starts head polling when a chain is connected.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	heads := blockchainDI.GetHeadPoller(mono.Services())
	if heads == nil {
		log.Info(ctx, "blockchain module started without chain connection", "gas_gwei", 20)
		return nil
	}
	mono.OnClose(heads)
	heads.Start(ctx)

	status := heads.Status()
	log.Info(ctx, "blockchain module started", "state", status.State, "block", status.LastBlock)
	return nil
}
