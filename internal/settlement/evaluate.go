package settlement

import (
	"craps/internal/bets"
	"craps/internal/rules"
)

type Action int

const (
	ActionNone Action = iota
	ActionWin
	ActionLose
	ActionPush
	ActionTravel
)

var actionNames = [...]string{"none", "win", "lose", "push", "travel"}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Decision is what one roll does to one bet. Payout is the full amount
// returned (0 on a loss, the stake on a push). Target is the come-point a
// travelling bet moves to.
type Decision struct {
	Action Action
	Payout int64
	Target int
}

// RollContext is everything a bet can be decided on: the transition the roll
// caused and the hand counters including this roll.
type RollContext struct {
	Transition rules.Transition
	Hand       HandState
}

func (rc RollContext) total() int { return rc.Transition.Roll.Total }

func (rc RollContext) comeOut() bool { return rc.Transition.PhaseBefore == rules.PhaseComeOut }

func none() Decision { return Decision{Action: ActionNone} }

func lose() Decision { return Decision{Action: ActionLose} }

func push(b bets.Bet) Decision { return Decision{Action: ActionPush, Payout: b.Amount} }

func win(b bets.Bet, number int) Decision {
	return Decision{Action: ActionWin, Payout: CalculatePayout(b.Type, b.Amount, number)}
}

// Evaluate decides bet against one roll. It does not apply the seven-out sweep;
// Settle does.
func Evaluate(b bets.Bet, rc RollContext) Decision {
	switch b.Type.Category() {
	case rules.CategoryLine:
		return evalLine(b, rc)
	case rules.CategoryOdds:
		return evalOdds(b, rc)
	case rules.CategoryField:
		return evalField(b, rc)
	case rules.CategoryYes:
		return evalYes(b, rc)
	case rules.CategoryNo:
		return evalNo(b, rc)
	case rules.CategoryHardway:
		return evalHardway(b, rc)
	case rules.CategoryProp:
		return evalYesNumber(b, rc)
	case rules.CategoryOneRoll:
		return evalOneRoll(b, rc)
	case rules.CategoryRepeater:
		return evalRepeater(b, rc)
	case rules.CategoryBonus:
		return evalBonus(b, rc)
	}
	return none()
}

func evalLine(b bets.Bet, rc RollContext) Decision {
	total := rc.total()

	switch b.Type {
	case rules.BetPass:
		if rc.comeOut() {
			return comeOutRight(b, total)
		}
		return pointRight(b, total, rc.Transition.PointBefore)

	case rules.BetDontPass:
		if rc.comeOut() {
			return comeOutWrong(b, total)
		}
		return pointWrong(b, total, rc.Transition.PointBefore)

	case rules.BetCome:
		if b.Target == 0 {
			d := comeOutRight(b, total)
			if d.Action == ActionNone && rules.IsPoint(total) {
				return Decision{Action: ActionTravel, Target: total}
			}
			return d
		}
		return pointRight(b, total, b.Target)

	case rules.BetDontCome:
		if b.Target == 0 {
			d := comeOutWrong(b, total)
			if d.Action == ActionNone && rules.IsPoint(total) {
				return Decision{Action: ActionTravel, Target: total}
			}
			return d
		}
		return pointWrong(b, total, b.Target)
	}
	return none()
}

func comeOutRight(b bets.Bet, total int) Decision {
	switch total {
	case 7, 11:
		return win(b, total)
	case 2, 3, 12:
		return lose()
	}
	return none()
}

// comeOutWrong bars the 12: it neither wins nor loses.
func comeOutWrong(b bets.Bet, total int) Decision {
	switch total {
	case 7, 11:
		return lose()
	case 2, 3:
		return win(b, total)
	}
	return none()
}

func pointRight(b bets.Bet, total, point int) Decision {
	switch total {
	case point:
		return win(b, point)
	case 7:
		return lose()
	}
	return none()
}

func pointWrong(b bets.Bet, total, point int) Decision {
	switch total {
	case 7:
		return win(b, point)
	case point:
		return lose()
	}
	return none()
}

func evalOdds(b bets.Bet, rc RollContext) Decision {
	total := rc.total()

	switch b.Type {
	case rules.BetOddsPass:
		return pointRight(b, total, b.Target)
	case rules.BetOddsDontPass:
		return pointWrong(b, total, b.Target)
	case rules.BetOddsCome:
		// Come odds are off on the come-out roll: a decision returns the stake.
		if rc.comeOut() && (total == 7 || total == b.Target) {
			return push(b)
		}
		return pointRight(b, total, b.Target)
	case rules.BetOddsDontCome:
		return pointWrong(b, total, b.Target)
	}
	return none()
}

func evalField(b bets.Bet, rc RollContext) Decision {
	switch total := rc.total(); total {
	case 2, 3, 4, 9, 10, 11, 12:
		return win(b, total)
	}
	return lose()
}

func evalYes(b bets.Bet, rc RollContext) Decision {
	return evalYesNumber(b, rc)
}

// evalYesNumber wins when the bet's number rolls before a seven.
func evalYesNumber(b bets.Bet, rc RollContext) Decision {
	switch rc.total() {
	case b.Type.Number():
		return win(b, b.Type.Number())
	case 7:
		return lose()
	}
	return none()
}

func evalNo(b bets.Bet, rc RollContext) Decision {
	switch rc.total() {
	case 7:
		return win(b, b.Type.Number())
	case b.Type.Number():
		return lose()
	}
	return none()
}

func evalHardway(b bets.Bet, rc RollContext) Decision {
	roll := rc.Transition.Roll
	switch {
	case roll.Total == b.Type.Number() && roll.IsHard():
		return win(b, roll.Total)
	case roll.Total == b.Type.Number(), roll.Total == 7:
		return lose()
	}
	return none()
}

func evalOneRoll(b bets.Bet, rc RollContext) Decision {
	total := rc.total()
	if b.Type == rules.BetAnyCraps {
		switch total {
		case 2, 3, 12:
			return win(b, total)
		}
		return lose()
	}
	if total == b.Type.Number() {
		return win(b, total)
	}
	return lose()
}

func evalRepeater(b bets.Bet, rc RollContext) Decision {
	n := b.Type.Number()
	if rc.Transition.SevenOut() {
		return lose()
	}
	if rc.total() == n {
		if need, _ := repeater(n); rc.Hand.Counts[n] >= need {
			return win(b, n)
		}
	}
	return none()
}

func evalBonus(b bets.Bet, rc RollContext) Decision {
	tr := rc.Transition
	total := rc.total()

	switch b.Type {
	case rules.BetSmall, rules.BetTall, rules.BetAll:
		if tr.SevenOut() {
			return lose()
		}
		mask := uint16(smallMask)
		switch b.Type {
		case rules.BetTall:
			mask = tallMask
		case rules.BetAll:
			mask = smallMask | tallMask
		}
		if rc.Hand.SeenAll(mask) {
			return win(b, 0)
		}
		return none()

	case rules.BetHardwayBonus:
		if tr.SevenOut() {
			return lose()
		}
		if rc.Hand.HardHit&hardMask == hardMask {
			return win(b, 0)
		}
		return none()

	case rules.BetFire:
		made := rc.Hand.UniquePointsMade()
		switch {
		case tr.Outcome == rules.OutcomePointMade && made == 6:
			return win(b, made)
		case tr.SevenOut() && made >= 4:
			return win(b, made)
		case tr.SevenOut():
			return lose()
		}
		return none()

	case rules.BetMuggsy:
		switch {
		case rc.comeOut() && total == 7:
			return win(b, 0)
		case rc.comeOut() && tr.Ends():
			return lose()
		case tr.SevenOut():
			return win(b, tr.PointBefore)
		case tr.Outcome == rules.OutcomePointMade:
			return lose()
		}
		return none()
	}
	return none()
}
