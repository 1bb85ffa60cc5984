// Package domain holds the safety gateway's value types and the pure
// checks shared by the guards and the settlement transfer.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// TxGuardConfig bounds the parameters of every submitted swap.
type TxGuardConfig struct {
	// MaxSlippagePercent is the widest accepted gap between the expected
	// and the minimum accepted output, in percent.
	MaxSlippagePercent decimal.Decimal
	DeadlineSeconds    int
	// CheckRevert enables the pre-flight simulation guard.
	CheckRevert bool
	// SingleApprove approves the exact amount before each trade. When off,
	// allowances are managed outside the pipeline and a short allowance
	// vetoes the trade.
	SingleApprove bool
}

// DefaultTxGuardConfig returns the conservative defaults.
func DefaultTxGuardConfig() TxGuardConfig {
	return TxGuardConfig{
		MaxSlippagePercent: decimal.NewFromFloat(0.5),
		DeadlineSeconds:    60,
		CheckRevert:        true,
		SingleApprove:      true,
	}
}

// DeadlineWindow is the longest a submitted swap may stay valid.
func (c TxGuardConfig) DeadlineWindow() time.Duration {
	return time.Duration(c.DeadlineSeconds) * time.Second
}

// Deadline returns a whole-second deadline strictly inside the window.
func (c TxGuardConfig) Deadline(now time.Time) time.Time {
	return now.Add(c.DeadlineWindow() - time.Second).Truncate(time.Second)
}

// MinAcceptedAmount returns expected × (1 − slippagePct/100).
// The result is exact: 1000 at 2% is 980.
func MinAcceptedAmount(expected, slippagePct decimal.Decimal) decimal.Decimal {
	return expected.Mul(one.Sub(slippagePct.Shift(-2)))
}

// MinAccepted applies MinAcceptedAmount to a token amount, rounding down
// to the token's smallest unit.
func MinAccepted(expected asset.Amount, slippagePct decimal.Decimal) asset.Amount {
	return asset.FromDecimalFloor(expected.Asset(), MinAcceptedAmount(expected.ToDecimal(), slippagePct))
}

// SlippagePct returns (expected − minAccepted) / expected in percent.
func SlippagePct(expected, minAccepted decimal.Decimal) decimal.Decimal {
	if !expected.IsPositive() {
		return decimal.Zero
	}
	return expected.Sub(minAccepted).Div(expected).Mul(hundred)
}

// ValidateSlippage rejects a minimum output further than maxPct below expected.
func ValidateSlippage(expected, minAccepted, maxPct decimal.Decimal) error {
	if !expected.IsPositive() {
		return apperror.Validation(apperror.CodeInvalidInput, "expected output must be positive")
	}
	if minAccepted.IsNegative() {
		return apperror.Validation(apperror.CodeInvalidInput, "minimum output must not be negative")
	}
	slippage := SlippagePct(expected, minAccepted)
	if slippage.GreaterThan(maxPct) {
		return apperror.Validation(apperror.CodeSlippageExceeded,
			"slippage "+slippage.StringFixed(4)+"% > max "+maxPct.String()+"%")
	}
	return nil
}

// ValidateDeadline requires now < deadline < now+window.
func ValidateDeadline(deadline, now time.Time, window time.Duration) error {
	if !deadline.After(now) {
		return apperror.Validation(apperror.CodeInvalidDeadline, "deadline is not in the future")
	}
	if !deadline.Before(now.Add(window)) {
		return apperror.Validation(apperror.CodeInvalidDeadline,
			"deadline beyond "+window.String()+" window")
	}
	return nil
}
