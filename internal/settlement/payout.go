// Package settlement decides every open bet against a finalized roll and
// settles the whole table as one batch.
//
// Winnings are rounded down to the minimal unit. That is the single rounding
// policy for every fractional ratio (odds 3:2 and 6:5, yes 59:50 and the no inverses).
package settlement

import (
	"craps/internal/money"
	"craps/internal/rules"
)

func r(num, den int64) money.Ratio { return money.Ratio{Num: num, Den: den} }

// trueOdds is the fair price of number against a seven.
func trueOdds(number int) money.Ratio {
	switch number {
	case 2, 12:
		return r(6, 1)
	case 3, 11:
		return r(3, 1)
	case 4, 10:
		return r(2, 1)
	case 5, 9:
		return r(3, 2)
	case 6, 8:
		return r(6, 5)
	}
	return money.Ratio{}
}

// yesOdds is the house price of a yes bet on number. Only the 6 and 8 are
// shaded below true odds. No bets pay the inverse.
func yesOdds(number int) money.Ratio {
	if number == 6 || number == 8 {
		return r(59, 50)
	}
	return trueOdds(number)
}

func nextOdds(number int) money.Ratio {
	switch number {
	case 2, 12:
		return r(30, 1)
	case 3, 11:
		return r(15, 1)
	case 4, 10:
		return r(10, 1)
	case 5, 9:
		return r(7, 1)
	case 6, 8:
		return r(6, 1)
	case 7:
		return r(4, 1)
	}
	return money.Ratio{}
}

// repeater holds how many times number must roll before a seven, and the price.
func repeater(number int) (int, money.Ratio) {
	switch number {
	case 2, 12:
		return 2, r(40, 1)
	case 3, 11:
		return 3, r(50, 1)
	case 4, 10:
		return 4, r(65, 1)
	case 5, 9:
		return 5, r(80, 1)
	case 6, 8:
		return 6, r(90, 1)
	}
	return 0, money.Ratio{}
}

func fireOdds(pointsMade int) money.Ratio {
	switch pointsMade {
	case 4:
		return r(24, 1)
	case 5:
		return r(249, 1)
	case 6:
		return r(999, 1)
	}
	return money.Ratio{}
}

// Ratio is the winnings ratio for tag. number is the total the win is priced
// on: the point or come-point for odds, the roll for field, the points made
// for fire, and for muggsy 0 on a come-out seven or the point on a seven-out.
func Ratio(tag rules.BetType, number int) money.Ratio {
	switch tag.Category() {
	case rules.CategoryLine, rules.CategoryProp:
		return r(1, 1)

	case rules.CategoryField:
		switch number {
		case 2:
			return r(2, 1)
		case 12:
			return r(3, 1)
		}
		return r(1, 1)

	case rules.CategoryOdds:
		if tag == rules.BetOddsPass || tag == rules.BetOddsCome {
			return trueOdds(number)
		}
		if !rules.IsPoint(number) {
			return money.Ratio{}
		}
		return trueOdds(number).Inverse()

	case rules.CategoryYes:
		return yesOdds(tag.Number())

	case rules.CategoryNo:
		return yesOdds(tag.Number()).Inverse()

	case rules.CategoryHardway:
		if n := tag.Number(); n == 4 || n == 10 {
			return r(7, 1)
		}
		return r(9, 1)

	case rules.CategoryOneRoll:
		if tag == rules.BetAnyCraps {
			return r(7, 1)
		}
		return nextOdds(tag.Number())

	case rules.CategoryRepeater:
		_, ratio := repeater(tag.Number())
		return ratio

	case rules.CategoryBonus:
		switch tag {
		case rules.BetSmall, rules.BetTall:
			return r(34, 1)
		case rules.BetAll:
			return r(175, 1)
		case rules.BetHardwayBonus:
			return r(50, 1)
		case rules.BetFire:
			return fireOdds(number)
		case rules.BetMuggsy:
			if number == 0 {
				return r(2, 1)
			}
			return r(3, 1)
		}
	}
	return money.Ratio{}
}

// CalculatePayout is what a winning bet returns: the stake plus winnings.
// A bet with no price for number returns 0.
func CalculatePayout(tag rules.BetType, amount int64, number int) int64 {
	ratio := Ratio(tag, number)
	if ratio.Num == 0 || ratio.Den == 0 {
		return 0
	}
	return amount + ratio.Of(amount)
}
