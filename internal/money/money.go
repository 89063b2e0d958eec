// Package money does exact integer arithmetic on amounts held in minimal units.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// MulDivDown returns floor(a*b/c) for non-negative operands, saturating at
// math.MaxInt64. c must be positive.
func MulDivDown(a, b, c int64) int64 {
	q, _ := mulDiv(a, b, c)
	return saturate(q)
}

// MulDivUp returns ceil(a*b/c) for non-negative operands, saturating like MulDivDown.
func MulDivUp(a, b, c int64) int64 {
	q, r := mulDiv(a, b, c)
	if !r.IsZero() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return saturate(q)
}

// Ratio is a payout ratio num:den applied to a stake.
type Ratio struct {
	Num int64
	Den int64
}

// Of returns the winnings on stake, rounded down to the minimal unit.
func (r Ratio) Of(stake int64) int64 {
	if r.Den == 0 {
		return 0
	}
	return MulDivDown(stake, r.Num, r.Den)
}

// Inverse swaps the sides, as for lay and don't-odds bets.
func (r Ratio) Inverse() Ratio {
	return Ratio{Num: r.Den, Den: r.Num}
}

func mulDiv(a, b, c int64) (decimal.Decimal, decimal.Decimal) {
	prod := decimal.NewFromInt(a).Mul(decimal.NewFromInt(b))
	return prod.QuoRem(decimal.NewFromInt(c), 0)
}

func saturate(d decimal.Decimal) int64 {
	if d.GreaterThan(maxInt64) {
		return math.MaxInt64
	}
	return d.IntPart()
}
