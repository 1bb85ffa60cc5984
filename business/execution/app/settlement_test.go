package app

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arbguard/business/execution/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/logger"
)

var treasury = common.HexToAddress("0x00000000000000000000000000000000000000dd")

func newSettlement(t *testing.T, chain *fakeChain) *Settlement {
	t.Helper()
	submit := DefaultSubmitConfig(1)
	submit.RetryDelay = 0
	s, err := NewSettlement(chain, newSigner(t), fixedGas{}, prices(), SettlementConfig{
		Destination:       treasury,
		MinProfitUSD:      decimal.NewFromInt(1),
		MaxGasSharePct:    decimal.NewFromInt(10),
		MaxPriceImpactPct: decimal.NewFromInt(2),
	}, submit, logger.NewNop())
	require.NoError(t, err)
	return s
}

func TestSettlement_TransfersFullBalance(t *testing.T) {
	chain := &fakeChain{balances: []*big.Int{raw(t, "1004")}, native: big.NewInt(1e18)}
	s := newSettlement(t, chain)

	res := s.Settle(context.Background(), usdc(t, "1004"), decimal.NewFromInt(4))
	require.Equal(t, domain.SettlementDone, res.Status, "reason: %s", res.Reason)
	require.Len(t, chain.sent, 1)

	tx := chain.sent[0]
	assert.Equal(t, asset.USDC.Address(), *tx.To())
	assert.Equal(t, uint64(65_000), tx.Gas())
	// transfer(address,uint256)
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, tx.Data()[:4])
	assert.Equal(t, treasury, common.BytesToAddress(tx.Data()[4:36]))
	assert.Zero(t, raw(t, "1004").Cmp(new(big.Int).SetBytes(tx.Data()[36:68])))
	assert.Equal(t, tx.Hash(), res.TxHash)
	assert.True(t, res.ValueUSD.Equal(decimal.NewFromInt(1004)))
	// 65k gas at 1 gwei, ETH at $2000.
	assert.True(t, res.GasUSD.Equal(decimal.RequireFromString("0.13")), "gas %s", res.GasUSD)
}

func TestSettlement_Skips(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		native  int64
		profit  int64
		code    apperror.Code
	}{
		{"profit below minimum", "1004", 1e18, 0, apperror.CodeSettlementSkipped},
		{"empty balance", "0", 1e18, 4, apperror.CodeSettlementSkipped},
		{"balance drifted from trade", "900", 1e18, 4, apperror.CodePriceImpactExceeded},
		{"no gas money", "1004", 0, 4, apperror.CodeGasNotAffordable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := &fakeChain{balances: []*big.Int{raw(t, tt.balance)}, native: big.NewInt(tt.native)}
			s := newSettlement(t, chain)

			res := s.Settle(context.Background(), usdc(t, "1004"), decimal.NewFromInt(tt.profit))
			assert.Equal(t, domain.SettlementSkipped, res.Status)
			assert.Equal(t, tt.code, res.Code, "reason: %s", res.Reason)
			assert.Empty(t, chain.sent)
		})
	}
}

func TestSettlement_SendFailureIsReported(t *testing.T) {
	fail := apperror.New(apperror.CodeSubmissionFailed, apperror.WithRetryable(false))
	chain := &fakeChain{
		sendErrs: []error{fail},
		balances: []*big.Int{raw(t, "1004")},
		native:   big.NewInt(1e18),
	}
	s := newSettlement(t, chain)

	res := s.Settle(context.Background(), usdc(t, "1004"), decimal.NewFromInt(4))
	assert.Equal(t, domain.SettlementFailed, res.Status)
	assert.Equal(t, apperror.CodeSubmissionFailed, res.Code)
	assert.Equal(t, common.Hash{}, res.TxHash)
}

func TestNewSettlement_RequiresDestination(t *testing.T) {
	chain := &fakeChain{native: big.NewInt(1)}
	_, err := NewSettlement(chain, newSigner(t), fixedGas{}, prices(), SettlementConfig{}, DefaultSubmitConfig(1), logger.NewNop())
	assert.True(t, apperror.HasCode(err, apperror.CodeConfigurationError))
}
