package ethereum

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbguard/business/blockchain/app"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/circuitbreaker"
	"github.com/fd1az/arbguard/internal/erc20"
	"github.com/fd1az/arbguard/internal/logger"
)

// ChainClient reads balances and allowances and submits transactions on one chain.
type ChainClient struct {
	chainID uint64
	backend app.Backend
	reads   *circuitbreaker.Breaker[[]byte]
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

func NewChainClient(backend app.Backend, chainID uint64, log logger.LoggerInterface) *ChainClient {
	return &ChainClient{
		chainID: chainID,
		backend: backend,
		reads:   circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("chain-reads")),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}
}

func (c *ChainClient) ChainID() uint64 { return c.chainID }

// TokenBalance returns owner's balance of a, native or ERC-20.
func (c *ChainClient) TokenBalance(ctx context.Context, a *asset.Asset, owner common.Address) (asset.Amount, error) {
	ctx, span := c.tracer.Start(ctx, "chain.token_balance",
		trace.WithAttributes(attribute.String("token", a.Symbol())))
	defer span.End()

	if a.IsNative() {
		wei, err := c.NativeBalance(ctx, owner)
		if err != nil {
			return asset.Amount{}, err
		}
		return asset.NewAmount(a, wei), nil
	}
	raw, err := c.callUint(ctx, a.Address(), "balanceOf", erc20.PackBalanceOf(owner))
	if err != nil {
		span.RecordError(err)
		return asset.Amount{}, err
	}
	return asset.NewAmount(a, raw), nil
}

func (c *ChainClient) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	wei, err := c.backend.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, apperror.External(apperror.CodeEthereumRPCError, "balance", err)
	}
	return wei, nil
}

// Allowance returns how much spender may move of owner's token.
func (c *ChainClient) Allowance(ctx context.Context, token common.Address, owner, spender common.Address) (*big.Int, error) {
	return c.callUint(ctx, token, "allowance", erc20.PackAllowance(owner, spender))
}

func (c *ChainClient) callUint(ctx context.Context, to common.Address, method string, data []byte) (*big.Int, error) {
	out, err := c.reads.Execute(func() ([]byte, error) {
		return c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, method)
	}
	return erc20.UnpackUint256(method, out)
}

// Call executes msg with eth_call against the latest state and returns the
// revert reason when it reverts.
func (c *ChainClient) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	out, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		if IsRevert(err) {
			return nil, apperror.New(apperror.CodeSimulationReverted,
				apperror.WithMessage(RevertReason(err)), apperror.WithCause(err), apperror.WithRetryable(false))
		}
		return nil, apperror.External(apperror.CodeEthereumRPCError, "eth_call", err)
	}
	return out, nil
}

func (c *ChainClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		if IsRevert(err) {
			return 0, apperror.New(apperror.CodeSimulationReverted,
				apperror.WithMessage(RevertReason(err)), apperror.WithCause(err), apperror.WithRetryable(false))
		}
		return 0, apperror.New(apperror.CodeGasEstimationFailed, apperror.WithCause(err))
	}
	// 10% margin
	return gas + gas/10, nil
}

func (c *ChainClient) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	n, err := c.backend.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, apperror.External(apperror.CodeEthereumRPCError, "pending nonce", err)
	}
	return n, nil
}

// Send broadcasts a signed transaction and classifies node rejections.
func (c *ChainClient) Send(ctx context.Context, tx *types.Transaction) error {
	ctx, span := c.tracer.Start(ctx, "chain.send",
		trace.WithAttributes(attribute.String("tx", tx.Hash().Hex())))
	defer span.End()

	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		span.RecordError(err)
		return ClassifySendError(err)
	}
	return nil
}

// WaitReceipt polls for the receipt of hash until timeout.
func (c *ChainClient) WaitReceipt(ctx context.Context, hash common.Hash, poll, timeout time.Duration) (*types.Receipt, error) {
	ctx, span := c.tracer.Start(ctx, "chain.wait_receipt",
		trace.WithAttributes(attribute.String("tx", hash.Hex())))
	defer span.End()

	if poll <= 0 {
		poll = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			span.SetAttributes(attribute.Int64("status", int64(receipt.Status)))
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.logger.Debug(ctx, "receipt lookup failed", "tx", hash.Hex(), "error", err)
		}
		select {
		case <-ctx.Done():
			return nil, apperror.New(apperror.CodeReceiptTimeout,
				apperror.WithContext(hash.Hex()), apperror.WithCause(ctx.Err()), apperror.WithRetryable(false))
		case <-ticker.C:
		}
	}
}

// ClassifySendError maps node rejection messages onto retryable codes.
func ClassifySendError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "already known"),
		strings.Contains(msg, "replacement transaction"):
		return apperror.New(apperror.CodeNonceConflict, apperror.WithCause(err))
	case strings.Contains(msg, "underpriced"),
		strings.Contains(msg, "fee cap less than block base fee"),
		strings.Contains(msg, "max fee per gas less than block base fee"):
		return apperror.New(apperror.CodeUnderpriced, apperror.WithCause(err))
	case strings.Contains(msg, "insufficient funds"):
		return apperror.New(apperror.CodeGasNotAffordable, apperror.WithCause(err), apperror.WithRetryable(false))
	case IsRevert(err):
		return apperror.New(apperror.CodeTxReverted, apperror.WithCause(err), apperror.WithRetryable(false))
	default:
		return apperror.New(apperror.CodeSubmissionFailed, apperror.WithCause(err))
	}
}

func IsRevert(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "revert")
}

// RevertReason extracts the text after "execution reverted:" when present.
func RevertReason(err error) string {
	msg := err.Error()
	if _, after, ok := strings.Cut(msg, "execution reverted:"); ok {
		return strings.TrimSpace(after)
	}
	return msg
}
