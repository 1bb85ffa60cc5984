package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	blockchainApp "github.com/fd1az/arbguard/business/blockchain/app"
	"github.com/fd1az/arbguard/business/execution/domain"
	pricingApp "github.com/fd1az/arbguard/business/pricing/app"
	safetyDomain "github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/erc20"
	"github.com/fd1az/arbguard/internal/logger"
)

// SettlementConfig configures the post-trade transfer.
type SettlementConfig struct {
	Destination       common.Address
	MinProfitUSD      decimal.Decimal
	MaxGasSharePct    decimal.Decimal
	MaxPriceImpactPct decimal.Decimal
	TransferGasLimit  uint64
}

// Settlement moves the whole balance of the traded token to the
// destination after a profitable trade.
type Settlement struct {
	chain     Chain
	sub       *submitter
	gas       blockchainApp.GasPriceSource
	reference pricingApp.ReferencePriceSource
	cfg       SettlementConfig
	chainID   uint64
	logger    logger.LoggerInterface
	tracer    trace.Tracer
}

func NewSettlement(chain Chain, signer Signer, gas blockchainApp.GasPriceSource, reference pricingApp.ReferencePriceSource,
	cfg SettlementConfig, submit SubmitConfig, log logger.LoggerInterface) (*Settlement, error) {
	if chain == nil || signer == nil || gas == nil || reference == nil {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "settlement needs chain, signer, gas and prices")
	}
	if cfg.Destination == (common.Address{}) {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "settlement destination is empty")
	}
	if cfg.TransferGasLimit == 0 {
		cfg.TransferGasLimit = 65_000
	}
	return &Settlement{
		chain:     chain,
		sub:       &submitter{chain: chain, signer: signer, gas: gas, cfg: submit, logger: log},
		gas:       gas,
		reference: reference,
		cfg:       cfg,
		chainID:   submit.ChainID,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// Settle transfers the owner's full balance of expected's token.
// expected is the balance the trade left behind and profitUSD its
// realized profit. Problems are reported in the result, never returned.
func (s *Settlement) Settle(ctx context.Context, expected asset.Amount, profitUSD decimal.Decimal) *domain.SettlementResult {
	ctx, span := s.tracer.Start(ctx, "execution.settle",
		trace.WithAttributes(attribute.String("token", expected.Asset().Symbol())))
	defer span.End()

	res := s.settle(ctx, expected, profitUSD)
	span.SetAttributes(attribute.String("status", string(res.Status)))
	switch res.Status {
	case domain.SettlementDone:
		s.logger.Info(ctx, "settlement transferred", "amount", res.Amount, "tx", res.TxHash.Hex(),
			"value_usd", res.ValueUSD.StringFixed(2))
	case domain.SettlementSkipped:
		s.logger.Info(ctx, "settlement skipped", "code", res.Code, "reason", res.Reason)
	default:
		s.logger.Error(ctx, "settlement failed", "code", res.Code, "reason", res.Reason)
	}
	return res
}

func (s *Settlement) settle(ctx context.Context, expected asset.Amount, profitUSD decimal.Decimal) *domain.SettlementResult {
	res := &domain.SettlementResult{ValueUSD: decimal.Zero, GasUSD: decimal.Zero}
	fail := func(status domain.SettlementStatus, err error) *domain.SettlementResult {
		res.Fail(status, err)
		return res
	}

	if profitUSD.LessThan(s.cfg.MinProfitUSD) {
		return fail(domain.SettlementSkipped, apperror.New(apperror.CodeSettlementSkipped,
			apperror.WithContextf("profit $%s below $%s", profitUSD.StringFixed(2), s.cfg.MinProfitUSD.StringFixed(2))))
	}

	token := expected.Asset()
	owner := s.sub.signer.Address()
	balance, err := s.chain.TokenBalance(ctx, token, owner)
	if err != nil {
		return fail(domain.SettlementFailed, err)
	}
	if balance.IsZero() {
		return fail(domain.SettlementSkipped, apperror.New(apperror.CodeSettlementSkipped,
			apperror.WithContext("no "+token.Symbol()+" balance")))
	}
	res.Amount = balance.String()

	price, err := s.reference.USDPrice(ctx, token)
	if err != nil {
		return fail(domain.SettlementFailed, apperror.Wrap(err, apperror.CodeReferencePriceMissing, token.Symbol()))
	}
	expectedUSD, err := price.Value(expected)
	if err != nil {
		return fail(domain.SettlementFailed, apperror.Internal(apperror.CodeSettlementFailed, "value expected balance", err))
	}
	valueUSD, err := price.Value(balance)
	if err != nil {
		return fail(domain.SettlementFailed, apperror.Internal(apperror.CodeSettlementFailed, "value balance", err))
	}
	res.ValueUSD = valueUSD
	if err := safetyDomain.CheckPriceImpact(expectedUSD, valueUSD, s.cfg.MaxPriceImpactPct); err != nil {
		return fail(domain.SettlementSkipped, err)
	}

	if err := s.checkGas(ctx, owner, valueUSD, res); err != nil {
		return fail(domain.SettlementSkipped, err)
	}

	m, err := s.sub.submit(ctx, token.Address(), erc20.PackTransfer(s.cfg.Destination, balance.Raw()), s.cfg.TransferGasLimit)
	if m.tx != nil {
		res.TxHash = m.tx.Hash()
	}
	if err != nil {
		return fail(domain.SettlementFailed, err)
	}
	res.Status = domain.SettlementDone
	return res
}

func (s *Settlement) checkGas(ctx context.Context, owner common.Address, valueUSD decimal.Decimal, res *domain.SettlementResult) error {
	price, err := s.gas.GasPrice(ctx)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeGasNotAffordable, "gas price")
	}
	cost := price.Cost(s.cfg.TransferGasLimit)
	native, err := s.chain.NativeBalance(ctx, owner)
	if err != nil {
		return err
	}

	gasWei, overflow := uint256.FromBig(cost)
	if overflow {
		return apperror.Validation(apperror.CodeGasNotAffordable, "gas cost overflows")
	}
	balance, overflow := uint256.FromBig(native)
	if overflow {
		balance = new(uint256.Int).SetAllOne()
	}

	nativeAsset := asset.NativeFor(s.chainID)
	if nativeAsset == nil {
		return apperror.Validation(apperror.CodeGasNotAffordable, "unknown native coin")
	}
	nativePrice, err := s.reference.USDPrice(ctx, nativeAsset)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeReferencePriceMissing, nativeAsset.Symbol())
	}
	gasUSD, err := nativePrice.Value(asset.NewAmount(nativeAsset, cost))
	if err != nil {
		return apperror.Internal(apperror.CodeGasNotAffordable, "value gas", err)
	}
	res.GasUSD = gasUSD
	return safetyDomain.CheckGasAffordable(gasWei, balance, gasUSD, valueUSD, s.cfg.MaxGasSharePct)
}
