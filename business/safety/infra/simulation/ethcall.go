// Package simulation provides pre-flight simulators for the safety gateway.
package simulation

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum"

	"github.com/fd1az/arbguard/business/safety/app"
	"github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/internal/apperror"
)

var _ app.Simulator = (*CallSimulator)(nil)

// Caller executes read-only calls. *ethereum.ChainClient satisfies it.
type Caller interface {
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// CallSimulator dry-runs a transaction with eth_call against the latest
// block of the connected node.
type CallSimulator struct {
	caller Caller
}

func NewCallSimulator(caller Caller) *CallSimulator {
	return &CallSimulator{caller: caller}
}

func (s *CallSimulator) Simulate(ctx context.Context, call ethereum.CallMsg) (*domain.SimulationResult, error) {
	if _, err := s.caller.Call(ctx, call); err != nil {
		return reverted(err)
	}
	gas, err := s.caller.EstimateGas(ctx, call)
	if err != nil {
		return reverted(err)
	}
	return &domain.SimulationResult{Success: true, GasUsed: gas}, nil
}

// reverted turns a revert into a failed result and passes other errors on.
func reverted(err error) (*domain.SimulationResult, error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Code == apperror.CodeSimulationReverted {
		return &domain.SimulationResult{RevertReason: appErr.Message}, nil
	}
	return nil, err
}
