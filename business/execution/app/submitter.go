package app

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	blockchainApp "github.com/fd1az/arbguard/business/blockchain/app"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/logger"
)

// SubmitConfig tunes signing and submission.
type SubmitConfig struct {
	ChainID        uint64
	MaxRetries     int
	RetryDelay     time.Duration
	ReceiptTimeout time.Duration
	ReceiptPoll    time.Duration
}

func DefaultSubmitConfig(chainID uint64) SubmitConfig {
	return SubmitConfig{
		ChainID:        chainID,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		ReceiptTimeout: 2 * time.Minute,
		ReceiptPoll:    2 * time.Second,
	}
}

// submitter signs legacy transactions with a fresh nonce and gas price,
// retries retryable rejections and waits for the receipt.
type submitter struct {
	chain  Chain
	signer Signer
	gas    blockchainApp.GasPriceSource
	cfg    SubmitConfig
	logger logger.LoggerInterface
}

// mined is a transaction with its receipt. Receipt is nil when the
// transaction was sent but never confirmed.
type mined struct {
	tx      *types.Transaction
	receipt *types.Receipt
}

// gasWei is the fee paid, zero without a receipt.
func (m mined) gasWei() *big.Int {
	if m.receipt == nil {
		return new(big.Int)
	}
	price := m.receipt.EffectiveGasPrice
	if price == nil {
		price = m.tx.GasPrice()
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(m.receipt.GasUsed))
}

// submit sends a call to `to` and waits for it to be mined. A receipt with
// status 0 is returned together with a TX_REVERTED error.
func (s *submitter) submit(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (mined, error) {
	var (
		tx  *types.Transaction
		err error
	)
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn(ctx, "resubmitting transaction", "attempt", attempt, "to", to.Hex(), "error", err)
			if werr := sleep(ctx, time.Duration(attempt)*s.cfg.RetryDelay); werr != nil {
				return mined{}, apperror.New(apperror.CodeSubmissionFailed, apperror.WithCause(werr), apperror.WithRetryable(false))
			}
		}
		tx, err = s.sendOnce(ctx, to, data, gasLimit)
		if err == nil || !apperror.IsRetryable(err) {
			break
		}
	}
	if err != nil {
		return mined{}, err
	}

	receipt, err := s.chain.WaitReceipt(ctx, tx.Hash(), s.cfg.ReceiptPoll, s.cfg.ReceiptTimeout)
	if err != nil {
		return mined{tx: tx}, err
	}
	m := mined{tx: tx, receipt: receipt}
	if receipt.Status == types.ReceiptStatusFailed {
		return m, apperror.New(apperror.CodeTxReverted,
			apperror.WithContext(tx.Hash().Hex()), apperror.WithRetryable(false))
	}
	return m, nil
}

func (s *submitter) sendOnce(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*types.Transaction, error) {
	from := s.signer.Address()
	nonce, err := s.chain.PendingNonce(ctx, from)
	if err != nil {
		return nil, err
	}
	price, err := s.gas.GasPrice(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeEthereumRPCError, "gas price")
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: price.Wei,
		Data:     data,
	})
	signed, err := s.signer.Sign(ctx, tx, new(big.Int).SetUint64(s.cfg.ChainID))
	if err != nil {
		return nil, err
	}
	if err := s.chain.Send(ctx, signed); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "transaction sent", "tx", signed.Hash().Hex(), "nonce", nonce, "to", to.Hex())
	return signed, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
