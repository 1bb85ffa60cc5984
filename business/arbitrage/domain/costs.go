// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// nativeDecimals is the precision of every supported chain's gas token.
const nativeDecimals = 18

// GasCost represents the gas cost of executing a route.
type GasCost struct {
	GasLimit uint64
	GasPrice *big.Int // in wei
	TotalWei *big.Int // gasLimit * gasPrice
	Native   decimal.Decimal
	USD      decimal.Decimal // converted using the native token price
}

// NewGasCost creates a GasCost from gas parameters.
func NewGasCost(gasLimit uint64, gasPriceWei *big.Int, nativePriceUSD decimal.Decimal) *GasCost {
	totalWei := new(big.Int).Mul(gasPriceWei, new(big.Int).SetUint64(gasLimit))
	native := decimal.NewFromBigInt(totalWei, -nativeDecimals)

	return &GasCost{
		GasLimit: gasLimit,
		GasPrice: new(big.Int).Set(gasPriceWei),
		TotalWei: totalWei,
		Native:   native,
		USD:      native.Mul(nativePriceUSD),
	}
}

// InToken expresses the USD cost in units of a token priced at tokenPriceUSD.
// A zero price yields zero.
func (g *GasCost) InToken(tokenPriceUSD decimal.Decimal) decimal.Decimal {
	if tokenPriceUSD.IsZero() {
		return decimal.Zero
	}
	return g.USD.Div(tokenPriceUSD)
}

// ProfitResult contains the calculated profit for an opportunity. All
// values are USD.
type ProfitResult struct {
	StartValue   decimal.Decimal
	FinalValue   decimal.Decimal
	GrossProfit  decimal.Decimal
	GasCost      decimal.Decimal
	NetProfit    decimal.Decimal
	NetProfitPct decimal.Decimal // as percentage of StartValue
	IsProfitable bool
}
