package bets

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"craps/internal/access"
	"craps/internal/apperr"
	"craps/internal/metrics"
	"craps/internal/rules"
	"craps/internal/vault"
)

type book struct {
	bets    map[Key]*Bet
	summary Summary
	counts  [rules.NumBetTypes]int
}

type Ledger struct {
	table   Table
	escrow  Escrow
	acl     *access.Control
	log     *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	limits  Limits
	books   map[string]*book
	nextSeq uint64
}

func NewLedger(table Table, escrow Escrow, acl *access.Control, limits Limits, log *zap.Logger, m *metrics.Metrics) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		table:   table,
		escrow:  escrow,
		acl:     acl,
		log:     log.Named("bets"),
		metrics: m,
		limits:  limits,
		books:   make(map[string]*book),
	}
}

// PlaceBet validates a wager against the table and limits, locks its stake in
// the vault and records it. A rejected bet leaves no trace.
func (l *Ledger) PlaceBet(ctx context.Context, player string, tag rules.BetType, amount int64, target int) (Bet, error) {
	bet, err := l.placeBet(ctx, player, tag, amount, target)
	if err != nil {
		l.metrics.BetRejected(string(apperr.KindOf(err)))
		return Bet{}, err
	}
	l.metrics.BetPlaced(tag.Category().String())
	return bet, nil
}

func (l *Ledger) placeBet(ctx context.Context, player string, tag rules.BetType, amount int64, target int) (Bet, error) {
	if player == "" {
		return Bet{}, fmt.Errorf("anonymous bet: %w", apperr.ErrUnauthorized)
	}

	snap := l.table.Snapshot()
	if err := rules.CheckPlace(tag, snap); err != nil {
		return Bet{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if amount < l.limits.Min || amount > l.limits.Max {
		return Bet{}, fmt.Errorf("%s of %d outside [%d,%d]: %w", tag, amount, l.limits.Min, l.limits.Max, apperr.ErrAmountOutOfRange)
	}

	b := l.books[player]
	if !tag.IsComeLike() && b != nil && b.counts[tag] > 0 {
		return Bet{}, fmt.Errorf("%s for %s: %w", tag, player, apperr.ErrDuplicateBet)
	}

	resolved, err := l.target(b, tag, amount, target, snap)
	if err != nil {
		return Bet{}, err
	}

	lock, err := l.escrow.LockFunds(ctx, player, amount, snap.SeriesID)
	if err != nil {
		return Bet{}, fmt.Errorf("place %s: %w", tag, err)
	}

	bet := &Bet{
		ID:       uuid.NewString(),
		Player:   player,
		Type:     tag,
		Amount:   amount,
		Target:   resolved,
		Active:   true,
		SeriesID: snap.SeriesID,
		LockID:   lock.ID,
		PlacedAt: time.Now(),
	}
	if tag.IsComeLike() {
		l.nextSeq++
		bet.Sequence = l.nextSeq
	}
	l.insert(bet)

	l.log.Debug("bet placed",
		zap.String("player", player),
		zap.Stringer("type", tag),
		zap.Int64("amount", amount),
		zap.Int("target", resolved),
	)
	return *bet, nil
}

// target checks the requested target for tag and returns the one to store.
func (l *Ledger) target(b *book, tag rules.BetType, amount int64, target int, snap rules.Snapshot) (int, error) {
	invalid := func() (int, error) {
		return 0, fmt.Errorf("%s with target %d: %w", tag, target, apperr.ErrInvalidTarget)
	}

	switch tag {
	case rules.BetOddsPass, rules.BetOddsDontPass:
		if target != 0 && target != snap.Point {
			return invalid()
		}
		baseTag := rules.BetPass
		if tag == rules.BetOddsDontPass {
			baseTag = rules.BetDontPass
		}
		base := b.find(func(x *Bet) bool { return x.Type == baseTag })
		if base == nil {
			return 0, fmt.Errorf("%s without %s: %w", tag, baseTag, apperr.ErrMissingBaseBet)
		}
		if err := l.checkOdds(tag, amount, base.Amount); err != nil {
			return 0, err
		}
		return snap.Point, nil

	case rules.BetOddsCome, rules.BetOddsDontCome:
		if !rules.IsPoint(target) {
			return invalid()
		}
		baseTag := rules.BetCome
		if tag == rules.BetOddsDontCome {
			baseTag = rules.BetDontCome
		}
		base := b.find(func(x *Bet) bool { return x.Type == baseTag && x.Target == target })
		if base == nil {
			return 0, fmt.Errorf("%s on %d without a %s there: %w", tag, target, baseTag, apperr.ErrMissingBaseBet)
		}
		if err := l.checkOdds(tag, amount, base.Amount); err != nil {
			return 0, err
		}
		return target, nil
	}

	// Number-bound tags carry their number; the rest take no target.
	n := tag.Number()
	if target != 0 && target != n {
		return invalid()
	}
	return n, nil
}

func (l *Ledger) checkOdds(tag rules.BetType, amount, base int64) error {
	if l.limits.OddsMultiple > 0 && amount > base*l.limits.OddsMultiple {
		return fmt.Errorf("%s of %d over %dx base %d: %w", tag, amount, l.limits.OddsMultiple, base, apperr.ErrAmountOutOfRange)
	}
	return nil
}

// RemoveBet takes a bet down and returns its stake. For come and don't-come
// it removes the newest bet still waiting for its come-point.
func (l *Ledger) RemoveBet(ctx context.Context, player string, tag rules.BetType) (Bet, error) {
	if !tag.Valid() {
		return Bet{}, fmt.Errorf("remove %d: %w", uint8(tag), apperr.ErrInvalidBetType)
	}
	snap := l.table.Snapshot()

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.books[player]
	if b == nil || b.counts[tag] == 0 {
		return Bet{}, fmt.Errorf("%s for %s: %w", tag, player, apperr.ErrBetNotFound)
	}

	var bet *Bet
	if tag.IsComeLike() {
		for _, x := range b.sorted() {
			if x.Type == tag && x.Target == 0 {
				bet = x
			}
		}
		if bet == nil {
			return Bet{}, rules.CheckRemove(tag, snap, true)
		}
	} else {
		bet = b.bets[Key{Player: player, Type: tag}]
	}

	if err := rules.CheckRemove(tag, snap, bet.Target != 0 && tag.IsComeLike()); err != nil {
		return Bet{}, err
	}
	if err := l.escrow.ReleaseFunds(ctx, bet.LockID); err != nil {
		return Bet{}, fmt.Errorf("remove %s: %w", tag, err)
	}
	l.remove(bet)

	l.log.Debug("bet removed", zap.String("player", player), zap.Stringer("type", tag), zap.Int64("amount", bet.Amount))
	out := *bet
	out.Active = false
	return out, nil
}

// ResolveBet settles a single bet for payout. Settlement role only.
func (l *Ledger) ResolveBet(ctx context.Context, caller string, key Key, payout int64) error {
	if err := l.acl.Require(caller, access.RoleSettlement); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bet, err := l.lookup(key)
	if err != nil {
		return err
	}
	if err := l.escrow.UnlockFunds(ctx, bet.LockID, payout); err != nil {
		return fmt.Errorf("resolve %s: %w", bet.Type, err)
	}
	l.remove(bet)
	return nil
}

// ResolveBatch applies every resolution or none. All cleared bets are settled
// in one vault batch; come bets with a Retarget stay open on their come-point.
func (l *Ledger) ResolveBatch(ctx context.Context, caller string, resolutions []Resolution) (vault.BatchReport, error) {
	if err := l.acl.Require(caller, access.RoleSettlement); err != nil {
		return vault.BatchReport{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[Key]bool, len(resolutions))
	targets := make([]*Bet, len(resolutions))
	var unlocks []vault.Unlock

	for i, r := range resolutions {
		if seen[r.Key] {
			return vault.BatchReport{}, fmt.Errorf("%s resolved twice: %w", r.Key.Type, apperr.ErrLockSettled)
		}
		seen[r.Key] = true

		bet, err := l.lookup(r.Key)
		if err != nil {
			return vault.BatchReport{}, err
		}
		targets[i] = bet

		if r.Retarget != 0 {
			if !bet.Type.IsComeLike() || bet.Target != 0 || !rules.IsPoint(r.Retarget) {
				return vault.BatchReport{}, fmt.Errorf("move %s to %d: %w", bet.Type, r.Retarget, apperr.ErrInvalidTarget)
			}
			continue
		}
		unlocks = append(unlocks, vault.Unlock{LockID: bet.LockID, Settled: r.Payout})
	}

	report, err := l.escrow.SettleBatch(ctx, unlocks)
	if err != nil {
		return vault.BatchReport{}, fmt.Errorf("resolve batch of %d: %w", len(resolutions), err)
	}

	for i, r := range resolutions {
		if r.Retarget != 0 {
			targets[i].Target = r.Retarget
			continue
		}
		l.remove(targets[i])
	}
	return report, nil
}

// SetLimits replaces the table limits. Admin only; open bets are unaffected.
func (l *Ledger) SetLimits(caller string, limits Limits) error {
	if err := l.acl.Require(caller, access.RoleAdmin); err != nil {
		return err
	}
	if limits.Min <= 0 || limits.Max < limits.Min || limits.OddsMultiple < 0 {
		return fmt.Errorf("limits %+v: %w", limits, apperr.ErrAmountOutOfRange)
	}

	l.mu.Lock()
	l.limits = limits
	l.mu.Unlock()

	l.log.Info("limits changed", zap.String("by", caller), zap.Int64("min", limits.Min), zap.Int64("max", limits.Max))
	return nil
}

func (l *Ledger) Limits() Limits {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limits
}

// GetBet returns the player's bet of tag; for come bets, the oldest one.
func (l *Ledger) GetBet(player string, tag rules.BetType) (Bet, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.books[player]
	if b == nil {
		return Bet{}, false
	}
	if x := b.find(func(x *Bet) bool { return x.Type == tag }); x != nil {
		return *x, true
	}
	return Bet{}, false
}

// Bets lists the player's active bets ordered by tag, then sequence.
func (l *Ledger) Bets(player string) []Bet {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.books[player]
	if b == nil {
		return nil
	}
	sorted := b.sorted()
	out := make([]Bet, len(sorted))
	for i, x := range sorted {
		out[i] = *x
	}
	return out
}

func (l *Ledger) Summary(player string) Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b := l.books[player]; b != nil {
		return b.summary
	}
	return Summary{}
}

// ActivePlayers lists players with at least one active bet, sorted.
func (l *Ledger) ActivePlayers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	players := make([]string, 0, len(l.books))
	for p, b := range l.books {
		if b.summary.Bitmap != 0 {
			players = append(players, p)
		}
	}
	sort.Strings(players)
	return players
}

func (l *Ledger) lookup(key Key) (*Bet, error) {
	b := l.books[key.Player]
	if b == nil {
		return nil, fmt.Errorf("%s for %s: %w", key.Type, key.Player, apperr.ErrBetNotFound)
	}
	bet, ok := b.bets[key]
	if !ok || !bet.Active {
		return nil, fmt.Errorf("%s #%d for %s: %w", key.Type, key.Sequence, key.Player, apperr.ErrBetNotFound)
	}
	return bet, nil
}

func (l *Ledger) insert(bet *Bet) {
	b := l.books[bet.Player]
	if b == nil {
		b = &book{bets: make(map[Key]*Bet)}
		l.books[bet.Player] = b
	}
	b.bets[bet.Key()] = bet
	b.counts[bet.Type]++
	b.summary.Bitmap |= bet.Type.Bit()
	b.summary.AtRisk += bet.Amount
	b.summary.ActiveCount++
}

func (l *Ledger) remove(bet *Bet) {
	b := l.books[bet.Player]
	bet.Active = false
	delete(b.bets, bet.Key())
	b.counts[bet.Type]--
	if b.counts[bet.Type] == 0 {
		b.summary.Bitmap &^= bet.Type.Bit()
	}
	b.summary.AtRisk -= bet.Amount
	b.summary.ActiveCount--
	if b.summary.ActiveCount == 0 {
		delete(l.books, bet.Player)
	}
}

// find returns the first bet in (tag, sequence) order matching fn.
func (b *book) find(fn func(*Bet) bool) *Bet {
	if b == nil {
		return nil
	}
	for _, x := range b.sorted() {
		if fn(x) {
			return x
		}
	}
	return nil
}

func (b *book) sorted() []*Bet {
	out := make([]*Bet, 0, len(b.bets))
	for _, x := range b.bets {
		out = append(out, x)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out
}
