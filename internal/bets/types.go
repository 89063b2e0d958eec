// Package bets keeps every player's open wagers and the per-player summary
// bitmap. It validates placement and removal against the table and reserves
// capital through the vault; it never decides outcomes.
package bets

import (
	"context"
	"time"

	"craps/internal/rules"
	"craps/internal/vault"
)

// Key addresses one bet record. Sequence is non-zero only for come and
// don't-come bets, of which a player may hold several.
type Key struct {
	Player   string        `json:"player"`
	Type     rules.BetType `json:"type"`
	Sequence uint64        `json:"sequence,omitempty"`
}

type Bet struct {
	ID       string        `json:"id"`
	Player   string        `json:"player"`
	Type     rules.BetType `json:"type"`
	Amount   int64         `json:"amount"`
	Target   int           `json:"target,omitempty"`
	Active   bool          `json:"active"`
	SeriesID string        `json:"series_id"`
	Sequence uint64        `json:"sequence,omitempty"`
	LockID   string        `json:"lock_id"`
	PlacedAt time.Time     `json:"placed_at"`
}

func (b Bet) Key() Key {
	return Key{Player: b.Player, Type: b.Type, Sequence: b.Sequence}
}

// Summary is a player's aggregate. Bit i of Bitmap is set iff at least one
// active bet of tag i exists.
type Summary struct {
	AtRisk      int64  `json:"at_risk"`
	ActiveCount int    `json:"active_count"`
	Bitmap      uint64 `json:"bitmap"`
}

func (s Summary) Has(t rules.BetType) bool {
	return s.Bitmap&t.Bit() != 0
}

// Limits bound a single stake. Odds bets may also not exceed OddsMultiple
// times their base bet.
type Limits struct {
	Min          int64 `json:"min"`
	Max          int64 `json:"max"`
	OddsMultiple int64 `json:"odds_multiple"`
}

// Resolution settles one bet. A non-zero Retarget moves a come bet to its
// come-point instead of clearing it, and Payout is ignored.
type Resolution struct {
	Key      Key   `json:"key"`
	Payout   int64 `json:"payout"`
	Retarget int   `json:"retarget,omitempty"`
}

// Table is the read side of the game the ledger checks placements against.
type Table interface {
	Snapshot() rules.Snapshot
}

// Escrow reserves and settles capital for bets. *vault.Vault implements it.
type Escrow interface {
	LockFunds(ctx context.Context, owner string, amount int64, seriesID string) (vault.Lock, error)
	ReleaseFunds(ctx context.Context, lockID string) error
	UnlockFunds(ctx context.Context, lockID string, settled int64) error
	SettleBatch(ctx context.Context, unlocks []vault.Unlock) (vault.BatchReport, error)
}
