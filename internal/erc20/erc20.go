// Package erc20 encodes and decodes the ERC-20 calls the pipeline makes.
package erc20

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const abiJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// ABI is the parsed subset of the ERC-20 interface.
var ABI = mustParse(abiJSON)

func mustParse(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("erc20: parse abi: %v", err))
	}
	return parsed
}

func PackBalanceOf(owner common.Address) []byte {
	return mustPack("balanceOf", owner)
}

func PackAllowance(owner, spender common.Address) []byte {
	return mustPack("allowance", owner, spender)
}

func PackApprove(spender common.Address, amount *big.Int) []byte {
	return mustPack("approve", spender, amount)
}

func PackTransfer(to common.Address, amount *big.Int) []byte {
	return mustPack("transfer", to, amount)
}

// UnpackUint256 decodes the single uint256 returned by balanceOf or allowance.
func UnpackUint256(method string, data []byte) (*big.Int, error) {
	out, err := ABI.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("erc20: unpack %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("erc20: %s returned %d values", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("erc20: %s returned %T", method, out[0])
	}
	return v, nil
}

// mustPack panics only on a programming error: the arguments are typed.
func mustPack(method string, args ...any) []byte {
	data, err := ABI.Pack(method, args...)
	if err != nil {
		panic(fmt.Sprintf("erc20: pack %s: %v", method, err))
	}
	return data
}
