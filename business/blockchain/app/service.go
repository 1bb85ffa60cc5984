package app

import (
	"context"

	"github.com/fd1az/arbguard/business/blockchain/domain"
)

// BlockchainService exposes gas and chain head state to other contexts.
type BlockchainService struct {
	gas   GasPriceSource
	heads HeadTracker
}

// NewBlockchainService creates a new BlockchainService. heads may be nil
// when no chain is connected.
func NewBlockchainService(gas GasPriceSource, heads HeadTracker) *BlockchainService {
	return &BlockchainService{gas: gas, heads: heads}
}

// GasPrice retrieves the current gas price.
func (s *BlockchainService) GasPrice(ctx context.Context) (*domain.GasPrice, error) {
	return s.gas.GasPrice(ctx)
}

func (s *BlockchainService) LatestBlock() (*domain.Block, bool) {
	if s.heads == nil {
		return nil, false
	}
	return s.heads.LatestBlock()
}

// ConnectionStatus reports disconnected when no head tracker is attached.
func (s *BlockchainService) ConnectionStatus() domain.ConnectionStatus {
	if s.heads == nil {
		return domain.ConnectionStatus{State: domain.StateDisconnected}
	}
	return s.heads.Status()
}
