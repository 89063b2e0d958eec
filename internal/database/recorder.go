package database

import (
	"context"
	"database/sql"
	"fmt"

	"craps/internal/game"
	"craps/internal/rules"
	"craps/internal/settlement"
)

// Recorder writes finished series and settled rolls to Postgres.
type Recorder struct {
	db *sql.DB
}

var _ game.Recorder = (*Recorder)(nil)

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) RecordSeries(ctx context.Context, s game.Series) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO series (id, shooter, hand_id, outcome, point, roll_count, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		s.ID, s.Shooter, s.HandID, string(s.Outcome), s.Point, len(s.Rolls), s.StartedAt, s.EndedAt)
	if err != nil {
		return fmt.Errorf("record series %s: %w", s.ID, err)
	}
	return nil
}

// RecordSettlement stores one roll and every line it decided in a single transaction.
func (r *Recorder) RecordSettlement(ctx context.Context, s game.Series, tr rules.Transition, res settlement.BatchResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record settlement: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO settlements (series_id, hand_id, die1, die2, total, phase_before, point_before,
			phase_after, point_after, outcome, stake, paid, asset_delta, fee_accrued)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		s.ID, s.HandID, tr.Roll.Die1, tr.Roll.Die2, tr.Roll.Total,
		string(tr.PhaseBefore), tr.PointBefore, string(tr.PhaseAfter), tr.PointAfter, string(tr.Outcome),
		res.Stake, res.Paid, res.Report.AssetDelta, res.Report.FeeAccrued,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("record settlement for %s: %w", s.ID, err)
	}

	if len(res.Lines) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO settlement_lines (settlement_id, bet_id, player, bet_type, amount, action, payout, target)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
		if err != nil {
			return fmt.Errorf("prepare settlement lines: %w", err)
		}
		defer stmt.Close()

		for _, l := range res.Lines {
			if _, err := stmt.ExecContext(ctx, id, l.BetID, l.Key.Player, l.Key.Type.String(),
				l.Amount, l.Action.String(), l.Payout, l.Target); err != nil {
				return fmt.Errorf("record line %s: %w", l.BetID, err)
			}
		}
	}

	return tx.Commit()
}

// PlayerTotals sums what a player has staked and been paid across recorded rolls.
func (r *Recorder) PlayerTotals(ctx context.Context, player string) (staked, paid int64, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COALESCE(SUM(payout), 0)
		FROM settlement_lines
		WHERE player = $1 AND action <> 'travel'`, player).Scan(&staked, &paid)
	if err != nil {
		return 0, 0, fmt.Errorf("totals for %s: %w", player, err)
	}
	return staked, paid, nil
}
