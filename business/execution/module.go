// Package execution implements the execution context: planning bounded
// swap transactions, signing and submitting them, and settling profit.
package execution

import (
	"context"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	blockchainDI "github.com/fd1az/arbguard/business/blockchain/di"
	"github.com/fd1az/arbguard/business/execution/app"
	executionDI "github.com/fd1az/arbguard/business/execution/di"
	"github.com/fd1az/arbguard/business/execution/infra/signer"
	pricingDI "github.com/fd1az/arbguard/business/pricing/di"
	riskDI "github.com/fd1az/arbguard/business/risk/di"
	"github.com/fd1az/arbguard/business/safety"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/config"
	"github.com/fd1az/arbguard/internal/di"
	"github.com/fd1az/arbguard/internal/logger"
	"github.com/fd1az/arbguard/internal/monolith"
	"github.com/fd1az/arbguard/internal/secrets"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers the planner and the coordinator.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, executionDI.Planner, func(sr di.ServiceRegistry) *app.Planner {
		cfg := sr.Get("config").(*config.Config)
		return app.NewPlanner(PlannerConfig(cfg))
	})

	di.RegisterToken(c, executionDI.Coordinator, func(sr di.ServiceRegistry) *app.Coordinator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		deps := app.Dependencies{
			Gas:       blockchainDI.GetGasPriceSource(sr),
			Reference: pricingDI.GetReferencePrices(sr),
			Ledger:    riskDI.GetLedger(sr),
		}
		if chain := blockchainDI.GetChainClient(sr); chain != nil {
			deps.Chain = chain
		}

		s, err := newSigner(context.Background(), cfg, log)
		if err != nil {
			panic("failed to open signer: " + err.Error())
		}
		if s != nil {
			deps.Signer = s
		}

		ccfg := CoordinatorConfig(cfg)
		if cfg.Settlement.Enabled && deps.Chain != nil && deps.Signer != nil {
			settlement, err := app.NewSettlement(deps.Chain, deps.Signer, deps.Gas, deps.Reference,
				SettlementConfig(cfg.Settlement), ccfg.Submit, log)
			if err != nil {
				panic("failed to create settlement: " + err.Error())
			}
			deps.Settlement = settlement
		}

		coord, err := app.NewCoordinator(deps, ccfg, log)
		if err != nil {
			panic("failed to create execution coordinator: " + err.Error())
		}
		return coord
	})
	return nil
}

// Startup reports the signing identity and registers hardware wallets for
// shutdown.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	coord := executionDI.GetCoordinator(mono.Services())
	if closer, ok := coord.Signer().(io.Closer); ok {
		mono.OnClose(closer)
	}

	if coord.Signer() == nil {
		mono.Logger().Warn(ctx, "no signer configured, only simulation mode is available")
	} else {
		mono.Logger().Info(ctx, "execution module started", "signer", cfg.Signer.Type,
			"address", coord.Owner().Hex(), "settlement", cfg.Settlement.Enabled)
	}
	return nil
}

// newSigner opens the configured signer. It returns nil, nil when no
// signing material is configured or the app runs in demo mode.
func newSigner(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (app.Signer, error) {
	if cfg.Demo.Enabled {
		return nil, nil
	}
	sc := cfg.Signer
	switch sc.Type {
	case config.SignerLedger, config.SignerTrezor:
		hw, err := signer.OpenHardwareSigner(sc.Type, sc.DerivationPath)
		if err != nil {
			return nil, err
		}
		return hw, nil
	case config.SignerKey, "":
		var (
			key *signer.KeySigner
			err error
		)
		switch {
		case sc.PrivateKey != "":
			key, err = signer.NewKeySigner(sc.PrivateKey)
		case sc.SecretName != "":
			store, closeStore, serr := secretStore(ctx, sc, log)
			if serr != nil {
				return nil, serr
			}
			defer closeStore()
			key, err = signer.LoadKeySigner(ctx, store, sc.SecretName)
		default:
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return key, nil
	}
	return nil, apperror.Validation(apperror.CodeConfigurationError, "unknown signer type "+sc.Type)
}

// secretStore prefers Google Secret Manager and falls back to the process
// environment when no project is configured.
func secretStore(ctx context.Context, sc config.SignerConfig, log logger.LoggerInterface) (secrets.Store, func(), error) {
	if sc.GCPProject == "" {
		return secrets.EnvStore{Prefix: "ARBGUARD_"}, func() {}, nil
	}
	store, err := secrets.NewGCPStore(ctx, sc.GCPProject, log)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// PlannerConfig maps per-venue routers, falling back to the execution
// router for venues without one.
func PlannerConfig(cfg *config.Config) app.PlannerConfig {
	routers := make(map[string]common.Address, len(cfg.Venues))
	for _, v := range cfg.Venues {
		if common.IsHexAddress(v.RouterAddress) {
			routers[strings.ToLower(v.Name)] = v.RouterAddressHex()
		}
	}
	out := app.PlannerConfig{
		Routers:        routers,
		GasLimitPerHop: cfg.Execution.GasLimitPerHop,
		TxGuard:        safety.TxGuardConfig(cfg.Safety),
	}
	if common.IsHexAddress(cfg.Execution.RouterAddress) {
		out.DefaultRouter = common.HexToAddress(cfg.Execution.RouterAddress)
	}
	return out
}

// CoordinatorConfig maps the execution section, keeping defaults for unset
// fields.
func CoordinatorConfig(cfg *config.Config) app.CoordinatorConfig {
	out := app.DefaultCoordinatorConfig(cfg.Ethereum.ChainID)
	e := cfg.Execution
	if e.MaxRetries > 0 {
		out.Submit.MaxRetries = e.MaxRetries
	}
	if e.RetryDelay > 0 {
		out.Submit.RetryDelay = e.RetryDelay
	}
	if e.ReceiptTimeout > 0 {
		out.Submit.ReceiptTimeout = e.ReceiptTimeout
	}
	if e.ReceiptPoll > 0 {
		out.Submit.ReceiptPoll = e.ReceiptPoll
	}
	if cfg.Safety.VerdictTTL > 0 {
		out.VerdictTTL = cfg.Safety.VerdictTTL
	}
	return out
}

// SettlementConfig maps the settlement section.
func SettlementConfig(c config.SettlementConfig) app.SettlementConfig {
	return app.SettlementConfig{
		Destination:       common.HexToAddress(c.Destination),
		MinProfitUSD:      decimal.NewFromFloat(c.MinProfitUSD),
		MaxGasSharePct:    decimal.NewFromFloat(c.MaxGasSharePct),
		MaxPriceImpactPct: decimal.NewFromFloat(c.MaxPriceImpactPct),
		TransferGasLimit:  c.TransferGasLimit,
	}
}
