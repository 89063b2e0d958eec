package game

import (
	"craps/internal/bets"
	"craps/internal/rules"
	"craps/internal/settlement"
	"craps/internal/vault"
)

// Websocket message types.
const (
	MsgTableState        = "table_state"
	MsgSeriesStarted     = "series_started"
	MsgSeriesEnded       = "series_ended"
	MsgRoll              = "roll"
	MsgSettlement        = "settlement"
	MsgSettlementStalled = "settlement_stalled"
	MsgBetPlaced         = "bet_placed"
	MsgBetRemoved        = "bet_removed"
)

type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Fulfilment is one delivered pair of dice.
type Fulfilment struct {
	RequestID string `json:"request_id"`
	Die1      int    `json:"die1"`
	Die2      int    `json:"die2"`
}

// TableState is the read model served to players and watchers.
type TableState struct {
	Series      *Series              `json:"series,omitempty"`
	Phase       rules.Phase          `json:"phase"`
	Point       int                  `json:"point"`
	HandID      string               `json:"hand_id,omitempty"`
	HandRolls   int                  `json:"hand_rolls"`
	Hand        settlement.HandState `json:"hand"`
	RollPending bool                 `json:"roll_pending"`
	Parked      *Fulfilment          `json:"parked,omitempty"`
	Limits      bets.Limits          `json:"limits"`
	Vault       vault.State          `json:"vault"`
}

type RollMessage struct {
	SeriesID   string        `json:"series_id"`
	Roll       rules.Roll    `json:"roll"`
	PhaseAfter rules.Phase   `json:"phase_after"`
	PointAfter int           `json:"point_after"`
	Outcome    rules.Outcome `json:"outcome,omitempty"`
}

type SettlementMessage struct {
	SeriesID string            `json:"series_id"`
	Lines    []settlement.Line `json:"lines"`
	Stake    int64             `json:"stake"`
	Paid     int64             `json:"paid"`
}

type BetMessage struct {
	Player string        `json:"player"`
	Type   rules.BetType `json:"type"`
	Amount int64         `json:"amount"`
	Target int           `json:"target,omitempty"`
	BetID  string        `json:"bet_id"`
}
