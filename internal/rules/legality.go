package rules

import (
	"fmt"

	"craps/internal/apperr"
)

// Snapshot is the slice of table state that placement and removal depend on.
type Snapshot struct {
	SeriesID    string
	Phase       Phase
	Point       int
	HandRolls   int
	RollPending bool
}

// Active reports whether a series is in progress.
func (s Snapshot) Active() bool {
	return s.Phase == PhaseComeOut || s.Phase == PhasePoint
}

// HandStart reports bets that must be on the table before the hand's first roll.
func (t BetType) HandStart() bool {
	switch t {
	case BetFire, BetSmall, BetTall, BetAll, BetHardwayBonus:
		return true
	}
	return t.Category() == CategoryRepeater
}

// PhaseAllows is the phase-family lookup: may tag t be placed in phase at all.
func PhaseAllows(t BetType, phase Phase) bool {
	if !t.Valid() {
		return false
	}

	switch phase {
	case PhaseComeOut:
		switch t {
		case BetCome, BetDontCome, BetOddsPass, BetOddsDontPass:
			return false
		}
		return true
	case PhasePoint:
		switch t {
		case BetPass, BetDontPass, BetMuggsy:
			return false
		}
		return !t.HandStart()
	default:
		return false
	}
}

// CheckPlace returns nil if t may be placed against s right now.
func CheckPlace(t BetType, s Snapshot) error {
	if !t.Valid() {
		return fmt.Errorf("bet %d: %w", uint8(t), apperr.ErrInvalidBetType)
	}
	if !s.Active() {
		return fmt.Errorf("place %s: %w", t, apperr.ErrNoActiveSeries)
	}
	if s.RollPending {
		return fmt.Errorf("place %s: %w", t, apperr.ErrRollPending)
	}
	if !PhaseAllows(t, s.Phase) {
		return fmt.Errorf("place %s in %s: %w", t, s.Phase, apperr.ErrBetNotAllowed)
	}
	if t.HandStart() && s.HandRolls > 0 {
		return fmt.Errorf("place %s after %d rolls of the hand: %w", t, s.HandRolls, apperr.ErrBetNotAllowed)
	}
	return nil
}

// CheckRemove returns nil if a bet of tag t may be taken down. established is
// true for a come or don't-come bet that already travelled to its come-point.
func CheckRemove(t BetType, s Snapshot, established bool) error {
	if !t.Valid() {
		return fmt.Errorf("bet %d: %w", uint8(t), apperr.ErrInvalidBetType)
	}
	if s.RollPending {
		return fmt.Errorf("remove %s: %w", t, apperr.ErrRollPending)
	}

	switch {
	case (t == BetPass || t == BetDontPass) && s.Phase == PhasePoint:
		return fmt.Errorf("remove %s with point %d: %w", t, s.Point, apperr.ErrBetNotRemovable)
	case t.IsComeLike() && established:
		return fmt.Errorf("remove %s on its come-point: %w", t, apperr.ErrBetNotRemovable)
	case t == BetMuggsy && s.Phase == PhasePoint:
		return fmt.Errorf("remove %s with point %d: %w", t, s.Point, apperr.ErrBetNotRemovable)
	case t.HandStart() && s.HandRolls > 0:
		return fmt.Errorf("remove %s after the hand started: %w", t, apperr.ErrBetNotRemovable)
	}
	return nil
}
