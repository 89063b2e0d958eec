package rules

import (
	"fmt"

	"craps/internal/apperr"
)

// BetType is one of the 64 wager tags. The value doubles as its bit in a
// player's active-bet bitmap.
type BetType uint8

const (
	BetPass BetType = iota
	BetDontPass
	BetCome
	BetDontCome
	BetField

	BetYes2
	BetYes3
	BetYes4
	BetYes5
	BetYes6
	BetYes8
	BetYes9
	BetYes10
	BetYes11
	BetYes12

	BetNo2
	BetNo3
	BetNo4
	BetNo5
	BetNo6
	BetNo8
	BetNo9
	BetNo10
	BetNo11
	BetNo12

	BetHard4
	BetHard6
	BetHard8
	BetHard10

	BetOddsPass
	BetOddsDontPass
	BetOddsCome
	BetOddsDontCome

	BetFire
	BetSmall
	BetTall
	BetAll
	BetHardwayBonus
	BetMuggsy
	BetBig6
	BetBig8
	BetAnySeven
	BetAnyCraps

	BetNext2
	BetNext3
	BetNext4
	BetNext5
	BetNext6
	BetNext7
	BetNext8
	BetNext9
	BetNext10
	BetNext11
	BetNext12

	BetRepeater2
	BetRepeater3
	BetRepeater4
	BetRepeater5
	BetRepeater6
	BetRepeater8
	BetRepeater9
	BetRepeater10
	BetRepeater11
	BetRepeater12

	NumBetTypes
)

// Category groups tags that settle by the same rule.
type Category uint8

const (
	CategoryLine Category = iota
	CategoryOdds
	CategoryField
	CategoryYes
	CategoryNo
	CategoryHardway
	CategoryBonus
	CategoryProp
	CategoryOneRoll
	CategoryRepeater
)

var categoryNames = [...]string{
	CategoryLine:     "line",
	CategoryOdds:     "odds",
	CategoryField:    "field",
	CategoryYes:      "yes",
	CategoryNo:       "no",
	CategoryHardway:  "hardway",
	CategoryBonus:    "bonus",
	CategoryProp:     "prop",
	CategoryOneRoll:  "one_roll",
	CategoryRepeater: "repeater",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", c)
}

// Info describes a tag. Number is the total the bet is bound to, 0 when the
// bet has no fixed number.
type Info struct {
	Name     string
	Category Category
	Number   int
}

var betInfo = [NumBetTypes]Info{
	BetPass:     {"pass", CategoryLine, 0},
	BetDontPass: {"dont_pass", CategoryLine, 0},
	BetCome:     {"come", CategoryLine, 0},
	BetDontCome: {"dont_come", CategoryLine, 0},
	BetField:    {"field", CategoryField, 0},

	BetYes2:  {"yes_2", CategoryYes, 2},
	BetYes3:  {"yes_3", CategoryYes, 3},
	BetYes4:  {"yes_4", CategoryYes, 4},
	BetYes5:  {"yes_5", CategoryYes, 5},
	BetYes6:  {"yes_6", CategoryYes, 6},
	BetYes8:  {"yes_8", CategoryYes, 8},
	BetYes9:  {"yes_9", CategoryYes, 9},
	BetYes10: {"yes_10", CategoryYes, 10},
	BetYes11: {"yes_11", CategoryYes, 11},
	BetYes12: {"yes_12", CategoryYes, 12},

	BetNo2:  {"no_2", CategoryNo, 2},
	BetNo3:  {"no_3", CategoryNo, 3},
	BetNo4:  {"no_4", CategoryNo, 4},
	BetNo5:  {"no_5", CategoryNo, 5},
	BetNo6:  {"no_6", CategoryNo, 6},
	BetNo8:  {"no_8", CategoryNo, 8},
	BetNo9:  {"no_9", CategoryNo, 9},
	BetNo10: {"no_10", CategoryNo, 10},
	BetNo11: {"no_11", CategoryNo, 11},
	BetNo12: {"no_12", CategoryNo, 12},

	BetHard4:  {"hard_4", CategoryHardway, 4},
	BetHard6:  {"hard_6", CategoryHardway, 6},
	BetHard8:  {"hard_8", CategoryHardway, 8},
	BetHard10: {"hard_10", CategoryHardway, 10},

	BetOddsPass:     {"odds_pass", CategoryOdds, 0},
	BetOddsDontPass: {"odds_dont_pass", CategoryOdds, 0},
	BetOddsCome:     {"odds_come", CategoryOdds, 0},
	BetOddsDontCome: {"odds_dont_come", CategoryOdds, 0},

	BetFire:         {"fire", CategoryBonus, 0},
	BetSmall:        {"small", CategoryBonus, 0},
	BetTall:         {"tall", CategoryBonus, 0},
	BetAll:          {"all", CategoryBonus, 0},
	BetHardwayBonus: {"hardway_bonus", CategoryBonus, 0},
	BetMuggsy:       {"muggsy", CategoryBonus, 0},
	BetBig6:         {"big_6", CategoryProp, 6},
	BetBig8:         {"big_8", CategoryProp, 8},
	BetAnySeven:     {"any_seven", CategoryOneRoll, 7},
	BetAnyCraps:     {"any_craps", CategoryOneRoll, 0},

	BetNext2:  {"next_2", CategoryOneRoll, 2},
	BetNext3:  {"next_3", CategoryOneRoll, 3},
	BetNext4:  {"next_4", CategoryOneRoll, 4},
	BetNext5:  {"next_5", CategoryOneRoll, 5},
	BetNext6:  {"next_6", CategoryOneRoll, 6},
	BetNext7:  {"next_7", CategoryOneRoll, 7},
	BetNext8:  {"next_8", CategoryOneRoll, 8},
	BetNext9:  {"next_9", CategoryOneRoll, 9},
	BetNext10: {"next_10", CategoryOneRoll, 10},
	BetNext11: {"next_11", CategoryOneRoll, 11},
	BetNext12: {"next_12", CategoryOneRoll, 12},

	BetRepeater2:  {"repeater_2", CategoryRepeater, 2},
	BetRepeater3:  {"repeater_3", CategoryRepeater, 3},
	BetRepeater4:  {"repeater_4", CategoryRepeater, 4},
	BetRepeater5:  {"repeater_5", CategoryRepeater, 5},
	BetRepeater6:  {"repeater_6", CategoryRepeater, 6},
	BetRepeater8:  {"repeater_8", CategoryRepeater, 8},
	BetRepeater9:  {"repeater_9", CategoryRepeater, 9},
	BetRepeater10: {"repeater_10", CategoryRepeater, 10},
	BetRepeater11: {"repeater_11", CategoryRepeater, 11},
	BetRepeater12: {"repeater_12", CategoryRepeater, 12},
}

var betByName = func() map[string]BetType {
	m := make(map[string]BetType, NumBetTypes)
	for i, info := range betInfo {
		m[info.Name] = BetType(i)
	}
	return m
}()

// Valid reports whether t is one of the known tags.
func (t BetType) Valid() bool {
	return t < NumBetTypes
}

// Info returns the tag's descriptor. Callers must check Valid first.
func (t BetType) Info() Info {
	return betInfo[t]
}

// Category is shorthand for Info().Category.
func (t BetType) Category() Category {
	return betInfo[t].Category
}

// Number is shorthand for Info().Number.
func (t BetType) Number() int {
	return betInfo[t].Number
}

// Bit is the tag's mask in a summary bitmap.
func (t BetType) Bit() uint64 {
	return 1 << uint64(t)
}

func (t BetType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("bet(%d)", uint8(t))
	}
	return betInfo[t].Name
}

// MarshalText encodes the tag by name.
func (t BetType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("bet type %d: %w", uint8(t), apperr.ErrInvalidBetType)
	}
	return []byte(betInfo[t].Name), nil
}

// UnmarshalText decodes a tag name.
func (t *BetType) UnmarshalText(b []byte) error {
	v, err := ParseBetType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseBetType resolves a tag name such as "hard_6".
func ParseBetType(name string) (BetType, error) {
	t, ok := betByName[name]
	if !ok {
		return 0, fmt.Errorf("bet type %q: %w", name, apperr.ErrInvalidBetType)
	}
	return t, nil
}

// IsComeLike reports the tags keyed by sequence so a player may hold several.
func (t BetType) IsComeLike() bool {
	return t == BetCome || t == BetDontCome
}

// IsOneRoll reports bets cleared after every roll.
func (t BetType) IsOneRoll() bool {
	c := t.Category()
	return c == CategoryOneRoll || c == CategoryField
}

// AllBetTypes lists every tag in order.
func AllBetTypes() []BetType {
	out := make([]BetType, NumBetTypes)
	for i := range out {
		out[i] = BetType(i)
	}
	return out
}
