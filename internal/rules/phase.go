// Package rules holds the craps vocabulary shared by the table, the ledger and
// the settlement engine: phases, rolls, the 64 bet tags and when each may be
// placed or taken down.
package rules

import (
	"fmt"

	"craps/internal/apperr"
)

// Phase is the lifecycle stage of the table.
type Phase string

const (
	PhaseIdle    Phase = "IDLE"
	PhaseComeOut Phase = "COME_OUT"
	PhasePoint   Phase = "POINT"
)

// Outcome is how a series ended.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeNatural   Outcome = "natural"
	OutcomeCraps     Outcome = "craps"
	OutcomePointMade Outcome = "point_made"
	OutcomeSevenOut  Outcome = "seven_out"
	OutcomeAborted   Outcome = "aborted"
)

// Points are the totals that establish a point.
var Points = [...]int{4, 5, 6, 8, 9, 10}

// IsPoint reports whether total can be a point.
func IsPoint(total int) bool {
	switch total {
	case 4, 5, 6, 8, 9, 10:
		return true
	}
	return false
}

// Roll is an immutable pair of dice.
type Roll struct {
	Die1  int `json:"die1"`
	Die2  int `json:"die2"`
	Total int `json:"total"`
}

// NewRoll validates both dice.
func NewRoll(d1, d2 int) (Roll, error) {
	if d1 < 1 || d1 > 6 || d2 < 1 || d2 > 6 {
		return Roll{}, fmt.Errorf("dice (%d,%d): %w", d1, d2, apperr.ErrInvalidRoll)
	}
	return Roll{Die1: d1, Die2: d2, Total: d1 + d2}, nil
}

// MustRoll is NewRoll for literals in tests and fixtures.
func MustRoll(d1, d2 int) Roll {
	r, err := NewRoll(d1, d2)
	if err != nil {
		panic(err)
	}
	return r
}

// IsHard reports a doubles roll.
func (r Roll) IsHard() bool {
	return r.Die1 == r.Die2
}

func (r Roll) String() string {
	return fmt.Sprintf("%d+%d=%d", r.Die1, r.Die2, r.Total)
}

// Transition is the effect of one roll on the series.
type Transition struct {
	Roll        Roll
	PhaseBefore Phase
	PointBefore int
	PhaseAfter  Phase
	PointAfter  int
	Outcome     Outcome
}

// Ends reports whether the roll ended the series.
func (t Transition) Ends() bool {
	return t.Outcome != OutcomeNone
}

// SevenOut reports whether the roll ended the shooter's hand.
func (t Transition) SevenOut() bool {
	return t.Outcome == OutcomeSevenOut
}

// Advance applies the come-out/point table to a roll. It is pure; callers own
// the state it describes.
func Advance(phase Phase, point int, roll Roll) Transition {
	t := Transition{
		Roll:        roll,
		PhaseBefore: phase,
		PointBefore: point,
		PhaseAfter:  phase,
		PointAfter:  point,
	}

	switch phase {
	case PhaseComeOut:
		switch roll.Total {
		case 7, 11:
			t.Outcome = OutcomeNatural
		case 2, 3, 12:
			t.Outcome = OutcomeCraps
		default:
			t.PhaseAfter = PhasePoint
			t.PointAfter = roll.Total
		}
	case PhasePoint:
		switch roll.Total {
		case point:
			t.Outcome = OutcomePointMade
		case 7:
			t.Outcome = OutcomeSevenOut
		}
	}

	if t.Outcome != OutcomeNone {
		t.PhaseAfter = PhaseIdle
		t.PointAfter = 0
	}
	return t
}
