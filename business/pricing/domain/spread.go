package domain

import "github.com/shopspring/decimal"

// Spread is the deviation of an execution price from a reference price.
type Spread struct {
	Execution decimal.Decimal
	Reference decimal.Decimal
	Absolute  decimal.Decimal // Execution - Reference
	Pct       decimal.Decimal // |Absolute| / Reference * 100
	Direction SpreadDirection
}

type SpreadDirection string

const (
	SpreadAbove SpreadDirection = "ABOVE"
	SpreadBelow SpreadDirection = "BELOW"
	SpreadNone  SpreadDirection = "NONE"
)

var hundred = decimal.NewFromInt(100)

// CalculateSpread compares an execution price against a reference.
// A zero reference yields a zero percentage.
func CalculateSpread(execution, reference decimal.Decimal) Spread {
	absolute := execution.Sub(reference)
	pct := decimal.Zero
	if !reference.IsZero() {
		pct = absolute.Abs().Div(reference.Abs()).Mul(hundred)
	}

	direction := SpreadNone
	switch absolute.Sign() {
	case 1:
		direction = SpreadAbove
	case -1:
		direction = SpreadBelow
	}

	return Spread{
		Execution: execution,
		Reference: reference,
		Absolute:  absolute,
		Pct:       pct,
		Direction: direction,
	}
}

// Exceeds reports whether the spread is strictly above maxPct.
func (s Spread) Exceeds(maxPct decimal.Decimal) bool {
	return s.Pct.GreaterThan(maxPct)
}
