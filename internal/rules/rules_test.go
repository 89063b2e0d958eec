package rules

import (
	"encoding/json"
	"errors"
	"testing"

	"craps/internal/apperr"
)

func TestNewRoll(t *testing.T) {
	tests := []struct {
		name    string
		d1, d2  int
		total   int
		wantErr bool
	}{
		{"snake eyes", 1, 1, 2, false},
		{"boxcars", 6, 6, 12, false},
		{"zero die", 0, 3, 0, true},
		{"seven pips", 7, 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRoll(tt.d1, tt.d2)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrInvalidRoll) {
					t.Fatalf("NewRoll() error = %v, want ErrInvalidRoll", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRoll() unexpected error: %v", err)
			}
			if r.Total != tt.total {
				t.Errorf("Total = %d, want %d", r.Total, tt.total)
			}
		})
	}
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name      string
		phase     Phase
		point     int
		roll      Roll
		wantPhase Phase
		wantPoint int
		want      Outcome
	}{
		{"come-out seven", PhaseComeOut, 0, MustRoll(3, 4), PhaseIdle, 0, OutcomeNatural},
		{"come-out eleven", PhaseComeOut, 0, MustRoll(5, 6), PhaseIdle, 0, OutcomeNatural},
		{"come-out two", PhaseComeOut, 0, MustRoll(1, 1), PhaseIdle, 0, OutcomeCraps},
		{"come-out three", PhaseComeOut, 0, MustRoll(1, 2), PhaseIdle, 0, OutcomeCraps},
		{"come-out twelve", PhaseComeOut, 0, MustRoll(6, 6), PhaseIdle, 0, OutcomeCraps},
		{"point six", PhaseComeOut, 0, MustRoll(3, 3), PhasePoint, 6, OutcomeNone},
		{"point made", PhasePoint, 6, MustRoll(2, 4), PhaseIdle, 0, OutcomePointMade},
		{"seven out", PhasePoint, 6, MustRoll(1, 6), PhaseIdle, 0, OutcomeSevenOut},
		{"no decision", PhasePoint, 6, MustRoll(4, 4), PhasePoint, 6, OutcomeNone},
		{"eleven in point", PhasePoint, 4, MustRoll(5, 6), PhasePoint, 4, OutcomeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Advance(tt.phase, tt.point, tt.roll)
			if tr.PhaseAfter != tt.wantPhase || tr.PointAfter != tt.wantPoint || tr.Outcome != tt.want {
				t.Errorf("Advance() = (%s, %d, %q), want (%s, %d, %q)",
					tr.PhaseAfter, tr.PointAfter, tr.Outcome, tt.wantPhase, tt.wantPoint, tt.want)
			}
		})
	}
}

func TestAdvance_PhaseInvariant(t *testing.T) {
	for _, phase := range []Phase{PhaseComeOut, PhasePoint} {
		points := []int{0}
		if phase == PhasePoint {
			points = Points[:]
		}
		for _, point := range points {
			for d1 := 1; d1 <= 6; d1++ {
				for d2 := 1; d2 <= 6; d2++ {
					tr := Advance(phase, point, MustRoll(d1, d2))
					switch tr.PhaseAfter {
					case PhasePoint:
						if !IsPoint(tr.PointAfter) {
							t.Fatalf("%s/%d roll %d+%d: POINT with point %d", phase, point, d1, d2, tr.PointAfter)
						}
					case PhaseIdle:
						if tr.PointAfter != 0 || !tr.Ends() {
							t.Fatalf("%s/%d roll %d+%d: IDLE with point %d", phase, point, d1, d2, tr.PointAfter)
						}
					}
				}
			}
		}
	}
}

func TestBetTypes(t *testing.T) {
	if NumBetTypes != 64 {
		t.Fatalf("NumBetTypes = %d, want 64", NumBetTypes)
	}

	seen := make(map[string]bool)
	for _, bt := range AllBetTypes() {
		name := bt.String()
		if name == "" || seen[name] {
			t.Fatalf("tag %d has empty or duplicate name %q", bt, name)
		}
		seen[name] = true

		parsed, err := ParseBetType(name)
		if err != nil || parsed != bt {
			t.Errorf("ParseBetType(%q) = %v, %v", name, parsed, err)
		}
	}

	if _, err := ParseBetType("hard_5"); !errors.Is(err, apperr.ErrInvalidBetType) {
		t.Errorf("ParseBetType(hard_5) error = %v", err)
	}
}

func TestBetType_JSON(t *testing.T) {
	var body struct {
		Type BetType `json:"type"`
	}
	if err := json.Unmarshal([]byte(`{"type":"odds_come"}`), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if body.Type != BetOddsCome {
		t.Errorf("Type = %v, want odds_come", body.Type)
	}
	if err := json.Unmarshal([]byte(`{"type":"lottery"}`), &body); err == nil {
		t.Error("expected error for unknown tag")
	}
}

func TestCheckPlace(t *testing.T) {
	comeOut := Snapshot{Phase: PhaseComeOut}
	point := Snapshot{Phase: PhasePoint, Point: 6, HandRolls: 1}

	tests := []struct {
		name string
		bet  BetType
		snap Snapshot
		want error
	}{
		{"pass on come-out", BetPass, comeOut, nil},
		{"pass on point", BetPass, point, apperr.ErrBetNotAllowed},
		{"come on come-out", BetCome, comeOut, apperr.ErrBetNotAllowed},
		{"come on point", BetCome, point, nil},
		{"pass odds on come-out", BetOddsPass, comeOut, apperr.ErrBetNotAllowed},
		{"pass odds on point", BetOddsPass, point, nil},
		{"come odds on come-out", BetOddsCome, comeOut, nil},
		{"field anywhere", BetField, point, nil},
		{"hard 8 anywhere", BetHard8, comeOut, nil},
		{"fire at hand start", BetFire, comeOut, nil},
		{"fire mid hand", BetFire, Snapshot{Phase: PhaseComeOut, HandRolls: 3}, apperr.ErrBetNotAllowed},
		{"repeater on point", BetRepeater6, point, apperr.ErrBetNotAllowed},
		{"muggsy on point", BetMuggsy, point, apperr.ErrBetNotAllowed},
		{"idle", BetField, Snapshot{Phase: PhaseIdle}, apperr.ErrNoActiveSeries},
		{"pending roll", BetField, Snapshot{Phase: PhasePoint, Point: 6, RollPending: true}, apperr.ErrRollPending},
		{"unknown tag", BetType(64), comeOut, apperr.ErrInvalidBetType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPlace(tt.bet, tt.snap)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("CheckPlace() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("CheckPlace() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPhaseAllows_IdleRejectsEverything(t *testing.T) {
	for _, bt := range AllBetTypes() {
		if PhaseAllows(bt, PhaseIdle) {
			t.Errorf("%s allowed in IDLE", bt)
		}
	}
}

func TestCheckRemove(t *testing.T) {
	comeOut := Snapshot{Phase: PhaseComeOut}
	point := Snapshot{Phase: PhasePoint, Point: 8, HandRolls: 1}

	tests := []struct {
		name        string
		bet         BetType
		snap        Snapshot
		established bool
		want        error
	}{
		{"pass on come-out", BetPass, comeOut, false, nil},
		{"pass with point", BetPass, point, false, apperr.ErrBetNotRemovable},
		{"dont pass with point", BetDontPass, point, false, apperr.ErrBetNotRemovable},
		{"provisional come", BetCome, point, false, nil},
		{"established come", BetCome, point, true, apperr.ErrBetNotRemovable},
		{"place bet", BetYes6, point, false, nil},
		{"tall before first roll", BetTall, comeOut, false, nil},
		{"tall after first roll", BetTall, Snapshot{Phase: PhaseComeOut, HandRolls: 2}, false, apperr.ErrBetNotRemovable},
		{"pending roll", BetField, Snapshot{Phase: PhaseComeOut, RollPending: true}, false, apperr.ErrRollPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRemove(tt.bet, tt.snap, tt.established)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("CheckRemove() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("CheckRemove() error = %v, want %v", err, tt.want)
			}
		})
	}
}
