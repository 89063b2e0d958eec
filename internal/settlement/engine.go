package settlement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"craps/internal/bets"
	"craps/internal/metrics"
	"craps/internal/rules"
	"craps/internal/vault"
)

// Resolver is the slice of the bet ledger the engine drives. *bets.Ledger
// implements it.
type Resolver interface {
	ActivePlayers() []string
	Bets(player string) []bets.Bet
	ResolveBatch(ctx context.Context, caller string, resolutions []bets.Resolution) (vault.BatchReport, error)
}

// Input is one finalized roll.
type Input struct {
	HandID     string
	Transition rules.Transition
}

// Line is the decision taken on one bet. Won is the winnings on a win, the
// payout less the stake.
type Line struct {
	Key    bets.Key `json:"key"`
	BetID  string   `json:"bet_id"`
	Amount int64    `json:"amount"`
	Action Action   `json:"action"`
	Payout int64    `json:"payout"`
	Won    int64    `json:"won,omitempty"`
	Target int      `json:"target,omitempty"`
}

// BatchResult is everything one roll settled.
type BatchResult struct {
	Lines  []Line            `json:"lines"`
	Stake  int64             `json:"stake"`
	Paid   int64             `json:"paid"`
	Report vault.BatchReport `json:"report"`
	Hand   HandState         `json:"hand"`
}

type Engine struct {
	ledger   Resolver
	identity string
	log      *zap.Logger
	metrics  *metrics.Metrics
	hands    tracker
}

// NewEngine returns an engine that resolves bets on ledger as identity, which
// must hold the settlement role.
func NewEngine(ledger Resolver, identity string, log *zap.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		ledger:   ledger,
		identity: identity,
		log:      log.Named("settlement"),
		metrics:  m,
	}
}

// Hand returns the counters of handID so far.
func (e *Engine) Hand(handID string) HandState {
	return e.hands.current(handID)
}

// Settle decides every active bet against in and resolves them in one batch.
// Players are visited in sorted order and each player's bets in (tag,
// sequence) order, so the same ledger and roll always produce the same batch.
// On error nothing has moved and the roll may be settled again.
func (e *Engine) Settle(ctx context.Context, in Input) (BatchResult, error) {
	start := time.Now()
	tr := in.Transition
	rc := RollContext{Transition: tr, Hand: e.hands.next(in.HandID, tr)}

	var (
		res         = BatchResult{Hand: rc.Hand}
		resolutions []bets.Resolution
		results     = make(map[string]int)
	)

	for _, player := range e.ledger.ActivePlayers() {
		for _, b := range e.ledger.Bets(player) {
			d := Evaluate(b, rc)
			if d.Action == ActionNone && tr.SevenOut() {
				d = lose()
			}
			if d.Action == ActionNone {
				continue
			}

			r := bets.Resolution{Key: b.Key(), Payout: d.Payout}
			if d.Action == ActionTravel {
				r = bets.Resolution{Key: b.Key(), Retarget: d.Target}
			} else {
				res.Stake += b.Amount
				res.Paid += d.Payout
			}
			line := Line{
				Key:    b.Key(),
				BetID:  b.ID,
				Amount: b.Amount,
				Action: d.Action,
				Payout: d.Payout,
				Target: d.Target,
			}
			if d.Action == ActionWin {
				line.Won = d.Payout - b.Amount
			}
			resolutions = append(resolutions, r)
			res.Lines = append(res.Lines, line)
			results[d.Action.String()]++
		}
	}

	if len(resolutions) > 0 {
		report, err := e.ledger.ResolveBatch(ctx, e.identity, resolutions)
		if err != nil {
			e.log.Error("settlement failed",
				zap.String("roll", tr.Roll.String()),
				zap.Int("bets", len(resolutions)),
				zap.Error(err))
			return BatchResult{}, fmt.Errorf("settle %s: %w", tr.Roll, err)
		}
		res.Report = report
	}

	e.hands.commit(in.HandID, rc.Hand, tr.SevenOut())
	e.metrics.ObserveSettlement(time.Since(start).Seconds(), res.Stake, res.Paid, results)

	e.log.Info("roll settled",
		zap.String("hand", in.HandID),
		zap.String("roll", tr.Roll.String()),
		zap.String("outcome", string(tr.Outcome)),
		zap.Int("decided", len(res.Lines)),
		zap.Int64("stake", res.Stake),
		zap.Int64("paid", res.Paid))
	return res, nil
}

// RefundAll pushes every active bet back to its owner and forgets the hand.
func (e *Engine) RefundAll(ctx context.Context, handID string) (BatchResult, error) {
	var (
		res         BatchResult
		resolutions []bets.Resolution
	)
	for _, player := range e.ledger.ActivePlayers() {
		for _, b := range e.ledger.Bets(player) {
			resolutions = append(resolutions, bets.Resolution{Key: b.Key(), Payout: b.Amount})
			res.Lines = append(res.Lines, Line{
				Key:    b.Key(),
				BetID:  b.ID,
				Amount: b.Amount,
				Action: ActionPush,
				Payout: b.Amount,
			})
			res.Stake += b.Amount
			res.Paid += b.Amount
		}
	}

	if len(resolutions) > 0 {
		report, err := e.ledger.ResolveBatch(ctx, e.identity, resolutions)
		if err != nil {
			return BatchResult{}, fmt.Errorf("refund %d bets: %w", len(resolutions), err)
		}
		res.Report = report
	}

	e.hands.commit(handID, HandState{}, true)
	e.log.Info("bets refunded", zap.String("hand", handID), zap.Int("bets", len(res.Lines)))
	return res, nil
}
