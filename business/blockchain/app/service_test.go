package app_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arbguard/business/blockchain/app"
	"github.com/fd1az/arbguard/business/blockchain/domain"
)

type fixedGas struct{ wei int64 }

func (f fixedGas) GasPrice(context.Context) (*domain.GasPrice, error) {
	return domain.NewGasPrice(big.NewInt(f.wei), time.Now()), nil
}

type fixedHeads struct{ block *domain.Block }

func (f fixedHeads) LatestBlock() (*domain.Block, bool) { return f.block, f.block != nil }
func (f fixedHeads) Status() domain.ConnectionStatus {
	return domain.ConnectionStatus{State: domain.StateConnected, LastBlock: f.block.Number}
}

func TestBlockchainService(t *testing.T) {
	svc := app.NewBlockchainService(fixedGas{wei: 30e9}, fixedHeads{block: &domain.Block{Number: 7}})

	p, err := svc.GasPrice(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 30.0, p.Gwei(), 1e-9)

	b, ok := svc.LatestBlock()
	require.True(t, ok)
	assert.Equal(t, uint64(7), b.Number)
	assert.Equal(t, domain.StateConnected, svc.ConnectionStatus().State)
}

func TestBlockchainService_NoHeads(t *testing.T) {
	svc := app.NewBlockchainService(fixedGas{wei: 1}, nil)

	_, ok := svc.LatestBlock()
	assert.False(t, ok)
	assert.Equal(t, domain.StateDisconnected, svc.ConnectionStatus().State)
}
