// Package router encodes Uniswap V2 style router calls.
package router

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/arbguard/internal/apperror"
)

// UniswapV2Router02 is the mainnet router, also used by forks with the same ABI.
var UniswapV2Router02 = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")

const routerABI = `[{
	"inputs": [
		{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
		{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
		{"internalType": "address[]", "name": "path", "type": "address[]"},
		{"internalType": "address", "name": "to", "type": "address"},
		{"internalType": "uint256", "name": "deadline", "type": "uint256"}
	],
	"name": "swapExactTokensForTokens",
	"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

var parsed = mustParse(routerABI)

func mustParse(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return a
}

// Swap is one swapExactTokensForTokens call.
type Swap struct {
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Path         []common.Address
	Recipient    common.Address
	Deadline     *big.Int
}

// PackSwap returns the calldata for s.
func PackSwap(s Swap) ([]byte, error) {
	if len(s.Path) < 2 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "swap path needs two tokens")
	}
	data, err := parsed.Pack("swapExactTokensForTokens", s.AmountIn, s.AmountOutMin, s.Path, s.Recipient, s.Deadline)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeInternalError, "pack swapExactTokensForTokens", err)
	}
	return data, nil
}

// UnpackSwap decodes calldata produced by PackSwap.
func UnpackSwap(data []byte) (Swap, error) {
	method, ok := parsed.Methods["swapExactTokensForTokens"]
	if !ok || len(data) < 4 || !strings.EqualFold(common.Bytes2Hex(data[:4]), common.Bytes2Hex(method.ID)) {
		return Swap{}, apperror.Validation(apperror.CodeInvalidInput, "not a swapExactTokensForTokens call")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return Swap{}, apperror.Internal(apperror.CodeInternalError, "unpack swap", err)
	}
	return Swap{
		AmountIn:     args[0].(*big.Int),
		AmountOutMin: args[1].(*big.Int),
		Path:         args[2].([]common.Address),
		Recipient:    args[3].(common.Address),
		Deadline:     args[4].(*big.Int),
	}, nil
}
