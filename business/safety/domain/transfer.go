package domain

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbguard/internal/apperror"
)

// PriceImpactPct is the adverse gap between the expected and the received
// value, in percent. Receiving more than expected is zero impact.
func PriceImpactPct(expected, received decimal.Decimal) decimal.Decimal {
	if !expected.IsPositive() || received.GreaterThanOrEqual(expected) {
		return decimal.Zero
	}
	return expected.Sub(received).Div(expected).Mul(hundred)
}

// CheckPriceImpact rejects an impact above maxPct.
func CheckPriceImpact(expected, received, maxPct decimal.Decimal) error {
	impact := PriceImpactPct(expected, received)
	if impact.GreaterThan(maxPct) {
		return apperror.Validation(apperror.CodePriceImpactExceeded,
			"impact "+impact.StringFixed(4)+"% > max "+maxPct.String()+"%")
	}
	return nil
}

// CheckGasAffordable requires the native balance to cover gasWei and the
// gas cost to stay below maxSharePct of the transferred value.
func CheckGasAffordable(gasWei, nativeBalance *uint256.Int, gasUSD, valueUSD, maxSharePct decimal.Decimal) error {
	if nativeBalance.Lt(gasWei) {
		return apperror.Validation(apperror.CodeGasNotAffordable,
			"native balance "+nativeBalance.Dec()+" wei below gas "+gasWei.Dec()+" wei")
	}
	if !valueUSD.IsPositive() {
		return apperror.Validation(apperror.CodeGasNotAffordable, "nothing to transfer")
	}
	share := gasUSD.Div(valueUSD).Mul(hundred)
	if !share.LessThan(maxSharePct) {
		return apperror.Validation(apperror.CodeGasNotAffordable,
			"gas is "+share.StringFixed(2)+"% of value, max "+maxSharePct.String()+"%")
	}
	return nil
}
