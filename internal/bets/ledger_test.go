package bets

import (
	"context"
	"errors"
	"testing"

	"craps/internal/access"
	"craps/internal/apperr"
	"craps/internal/rules"
	"craps/internal/vault"
)

type fakeTable struct {
	snap rules.Snapshot
}

func (f *fakeTable) Snapshot() rules.Snapshot { return f.snap }

type fixture struct {
	table  *fakeTable
	funds  *vault.MemoryLedger
	vault  *vault.Vault
	ledger *Ledger
}

func newFixture(t *testing.T, bankroll int64) *fixture {
	t.Helper()
	ctx := context.Background()

	acl := access.New()
	acl.Grant("settler", access.RoleSettlement)
	acl.Grant("boss", access.RoleAdmin)

	funds := vault.NewMemoryLedger("vault")
	v := vault.New(funds, vault.Config{Account: "vault"}, acl, nil, nil)
	funds.Credit("lp", bankroll)
	if _, err := v.Deposit(ctx, "lp", bankroll); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"alice", "bob"} {
		funds.Credit(p, 10_000)
	}

	table := &fakeTable{snap: rules.Snapshot{SeriesID: "s1", Phase: rules.PhaseComeOut}}
	return &fixture{
		table:  table,
		funds:  funds,
		vault:  v,
		ledger: NewLedger(table, v, acl, Limits{Min: 1, Max: 1000, OddsMultiple: 3}, nil, nil),
	}
}

func (f *fixture) point(n int) {
	f.table.snap.Phase = rules.PhasePoint
	f.table.snap.Point = n
	f.table.snap.HandRolls++
}

// checkBitmap asserts bit i is set iff the player holds an active bet of tag i.
func (f *fixture) checkBitmap(t *testing.T, player string) {
	t.Helper()
	var want uint64
	var atRisk int64
	bets := f.ledger.Bets(player)
	for _, b := range bets {
		if !b.Active {
			t.Fatalf("inactive bet listed: %+v", b)
		}
		want |= b.Type.Bit()
		atRisk += b.Amount
	}
	s := f.ledger.Summary(player)
	if s.Bitmap != want || s.AtRisk != atRisk || s.ActiveCount != len(bets) {
		t.Fatalf("summary %+v, bets imply bitmap=%b at_risk=%d count=%d", s, want, atRisk, len(bets))
	}
	if f.vault.State().Locked != f.totalAtRisk() {
		t.Fatalf("vault locked %d, ledger at risk %d", f.vault.State().Locked, f.totalAtRisk())
	}
}

func (f *fixture) totalAtRisk() int64 {
	var n int64
	for _, p := range f.ledger.ActivePlayers() {
		n += f.ledger.Summary(p).AtRisk
	}
	return n
}

func TestPlaceBet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100_000)

	bet, err := f.ledger.PlaceBet(ctx, "alice", rules.BetPass, 100, 0)
	if err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}
	if !bet.Active || bet.SeriesID != "s1" || bet.LockID == "" {
		t.Errorf("bet = %+v", bet)
	}
	if !f.ledger.Summary("alice").Has(rules.BetPass) {
		t.Error("pass bit not set")
	}
	if bal, _ := f.funds.BalanceOf(ctx, "alice"); bal != 9_900 {
		t.Errorf("alice balance = %d, want 9900", bal)
	}
	f.checkBitmap(t, "alice")
}

func TestPlaceBet_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		setup  func(f *fixture)
		tag    rules.BetType
		amount int64
		target int
		want   error
	}{
		{"below min", nil, rules.BetField, 0, 0, apperr.ErrAmountOutOfRange},
		{"above max", nil, rules.BetField, 1001, 0, apperr.ErrAmountOutOfRange},
		{"wrong phase", nil, rules.BetCome, 10, 0, apperr.ErrBetNotAllowed},
		{"duplicate", func(f *fixture) {
			_, _ = f.ledger.PlaceBet(ctx, "alice", rules.BetField, 10, 0)
		}, rules.BetField, 10, 0, apperr.ErrDuplicateBet},
		{"wrong number", nil, rules.BetHard6, 10, 8, apperr.ErrInvalidTarget},
		{"target on field", nil, rules.BetField, 10, 4, apperr.ErrInvalidTarget},
		{"odds without pass", func(f *fixture) { f.point(6) }, rules.BetOddsPass, 10, 0, apperr.ErrMissingBaseBet},
		{"odds over multiple", func(f *fixture) {
			_, _ = f.ledger.PlaceBet(ctx, "alice", rules.BetPass, 10, 0)
			f.point(6)
		}, rules.BetOddsPass, 31, 0, apperr.ErrAmountOutOfRange},
		{"odds on wrong point", func(f *fixture) {
			_, _ = f.ledger.PlaceBet(ctx, "alice", rules.BetPass, 10, 0)
			f.point(6)
		}, rules.BetOddsPass, 10, 8, apperr.ErrInvalidTarget},
		{"come odds without come-point", func(f *fixture) { f.point(5) }, rules.BetOddsCome, 10, 9, apperr.ErrMissingBaseBet},
		{"roll pending", func(f *fixture) { f.table.snap.RollPending = true }, rules.BetField, 10, 0, apperr.ErrRollPending},
		{"no series", func(f *fixture) { f.table.snap = rules.Snapshot{Phase: rules.PhaseIdle} }, rules.BetField, 10, 0, apperr.ErrNoActiveSeries},
		{"vault too small", nil, rules.BetPass, 1000, 0, apperr.ErrInsufficientLiquidity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 500)
			if tt.setup != nil {
				tt.setup(f)
			}
			before := f.ledger.Summary("alice")
			lockedBefore := f.vault.State().Locked

			_, err := f.ledger.PlaceBet(ctx, "alice", tt.tag, tt.amount, tt.target)
			if !errors.Is(err, tt.want) {
				t.Fatalf("PlaceBet() error = %v, want %v", err, tt.want)
			}
			if after := f.ledger.Summary("alice"); after != before {
				t.Errorf("summary changed on rejection: %+v -> %+v", before, after)
			}
			if f.vault.State().Locked != lockedBefore {
				t.Error("rejected bet left a lock")
			}
		})
	}
}

func TestComeBets_KeyedBySequence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100_000)
	f.point(6)

	c1, err := f.ledger.PlaceBet(ctx, "alice", rules.BetCome, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := f.ledger.PlaceBet(ctx, "alice", rules.BetCome, 20, 0)
	if err != nil {
		t.Fatalf("second come bet: %v", err)
	}
	if c1.Sequence == 0 || c2.Sequence <= c1.Sequence {
		t.Errorf("sequences %d, %d", c1.Sequence, c2.Sequence)
	}

	// The first travels to 5; the second is still provisional.
	if _, err := f.ledger.ResolveBatch(ctx, "settler", []Resolution{{Key: c1.Key(), Retarget: 5}}); err != nil {
		t.Fatalf("ResolveBatch(travel) error = %v", err)
	}

	odds, err := f.ledger.PlaceBet(ctx, "alice", rules.BetOddsCome, 30, 5)
	if err != nil {
		t.Fatalf("come odds: %v", err)
	}
	if odds.Target != 5 {
		t.Errorf("odds target = %d", odds.Target)
	}

	removed, err := f.ledger.RemoveBet(ctx, "alice", rules.BetCome)
	if err != nil {
		t.Fatalf("RemoveBet(come) error = %v", err)
	}
	if removed.Sequence != c2.Sequence {
		t.Errorf("removed #%d, want the provisional #%d", removed.Sequence, c2.Sequence)
	}
	if _, err := f.ledger.RemoveBet(ctx, "alice", rules.BetCome); !errors.Is(err, apperr.ErrBetNotRemovable) {
		t.Errorf("removing established come error = %v, want ErrBetNotRemovable", err)
	}
	if !f.ledger.Summary("alice").Has(rules.BetCome) {
		t.Error("come bit cleared while a come bet is still active")
	}
	f.checkBitmap(t, "alice")
}

func TestRemoveBet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100_000)

	if _, err := f.ledger.RemoveBet(ctx, "alice", rules.BetPass); !errors.Is(err, apperr.ErrBetNotFound) {
		t.Errorf("remove missing error = %v", err)
	}

	_, _ = f.ledger.PlaceBet(ctx, "alice", rules.BetPass, 100, 0)
	_, _ = f.ledger.PlaceBet(ctx, "alice", rules.BetField, 50, 0)
	_, _ = f.ledger.PlaceBet(ctx, "alice", rules.BetFire, 5, 0)

	f.point(4)
	if _, err := f.ledger.RemoveBet(ctx, "alice", rules.BetPass); !errors.Is(err, apperr.ErrBetNotRemovable) {
		t.Errorf("remove pass on point error = %v", err)
	}
	if _, err := f.ledger.RemoveBet(ctx, "alice", rules.BetFire); !errors.Is(err, apperr.ErrBetNotRemovable) {
		t.Errorf("remove fire mid hand error = %v", err)
	}

	if _, err := f.ledger.RemoveBet(ctx, "alice", rules.BetField); err != nil {
		t.Fatalf("remove field error = %v", err)
	}
	if f.ledger.Summary("alice").Has(rules.BetField) {
		t.Error("field bit still set")
	}
	if bal, _ := f.funds.BalanceOf(ctx, "alice"); bal != 10_000-105 {
		t.Errorf("alice balance = %d", bal)
	}
	f.checkBitmap(t, "alice")
}

func TestResolveBet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100_000)
	bet, _ := f.ledger.PlaceBet(ctx, "alice", rules.BetPass, 100, 0)

	if err := f.ledger.ResolveBet(ctx, "alice", bet.Key(), 200); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("ResolveBet(alice) error = %v, want ErrUnauthorized", err)
	}
	if err := f.ledger.ResolveBet(ctx, "settler", bet.Key(), 200); err != nil {
		t.Fatalf("ResolveBet() error = %v", err)
	}
	if _, ok := f.ledger.GetBet("alice", rules.BetPass); ok {
		t.Error("bet still present")
	}
	if bal, _ := f.funds.BalanceOf(ctx, "alice"); bal != 10_100 {
		t.Errorf("alice balance = %d, want 10100", bal)
	}
	if err := f.ledger.ResolveBet(ctx, "settler", bet.Key(), 200); !errors.Is(err, apperr.ErrBetNotFound) {
		t.Errorf("second resolve error = %v", err)
	}
	f.checkBitmap(t, "alice")
}

func TestResolveBatch_Atomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1_000)
	a, _ := f.ledger.PlaceBet(ctx, "alice", rules.BetHard6, 100, 0)
	b, _ := f.ledger.PlaceBet(ctx, "bob", rules.BetField, 100, 0)

	before := [2]Summary{f.ledger.Summary("alice"), f.ledger.Summary("bob")}

	tests := []struct {
		name string
		res  []Resolution
		want error
	}{
		{"unknown bet", []Resolution{{Key: a.Key(), Payout: 0}, {Key: Key{Player: "bob", Type: rules.BetPass}}}, apperr.ErrBetNotFound},
		{"duplicate key", []Resolution{{Key: a.Key()}, {Key: a.Key()}}, apperr.ErrLockSettled},
		{"travel a field bet", []Resolution{{Key: b.Key(), Retarget: 6}}, apperr.ErrInvalidTarget},
		{"insolvent", []Resolution{{Key: a.Key(), Payout: 2_000}, {Key: b.Key(), Payout: 0}}, apperr.ErrVaultInsolvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.ResolveBatch(ctx, "settler", tt.res)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ResolveBatch() error = %v, want %v", err, tt.want)
			}
			after := [2]Summary{f.ledger.Summary("alice"), f.ledger.Summary("bob")}
			if after != before {
				t.Errorf("summaries changed: %+v -> %+v", before, after)
			}
		})
	}

	report, err := f.ledger.ResolveBatch(ctx, "settler", []Resolution{{Key: a.Key(), Payout: 1_000}, {Key: b.Key(), Payout: 0}})
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}
	if report.Stake != 200 || report.Paid != 1_000 {
		t.Errorf("report = %+v", report)
	}
	if players := f.ledger.ActivePlayers(); len(players) != 0 {
		t.Errorf("ActivePlayers() = %v", players)
	}
}

func TestActivePlayersSorted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100_000)
	_, _ = f.ledger.PlaceBet(ctx, "bob", rules.BetField, 10, 0)
	_, _ = f.ledger.PlaceBet(ctx, "alice", rules.BetField, 10, 0)

	got := f.ledger.ActivePlayers()
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("ActivePlayers() = %v", got)
	}
}

func TestSetLimits(t *testing.T) {
	f := newFixture(t, 100)

	if err := f.ledger.SetLimits("alice", Limits{Min: 1, Max: 2}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("SetLimits(alice) error = %v", err)
	}
	if err := f.ledger.SetLimits("boss", Limits{Min: 10, Max: 5}); !errors.Is(err, apperr.ErrAmountOutOfRange) {
		t.Errorf("SetLimits(inverted) error = %v", err)
	}
	if err := f.ledger.SetLimits("boss", Limits{Min: 5, Max: 50, OddsMultiple: 2}); err != nil {
		t.Fatal(err)
	}
	if f.ledger.Limits().Max != 50 {
		t.Errorf("Limits() = %+v", f.ledger.Limits())
	}
}
