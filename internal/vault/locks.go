package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"craps/internal/apperr"
)

// Lock is capital reserved against one open bet. The stake itself sits in the
// vault account as escrow until the lock is settled.
type Lock struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	SeriesID      string    `json:"series_id"`
	Amount        int64     `json:"amount"`
	Settled       bool      `json:"settled"`
	SettledAmount int64     `json:"settled_amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// Unlock settles a lock for Settled: zero on a loss, the stake on a push, more
// on a win.
type Unlock struct {
	LockID  string
	Settled int64
}

// BatchReport sums one settled batch. AssetDelta is Stake minus Paid.
type BatchReport struct {
	Locks      int   `json:"locks"`
	Stake      int64 `json:"stake"`
	Paid       int64 `json:"paid"`
	AssetDelta int64 `json:"asset_delta"`
	FeeAccrued int64 `json:"fee_accrued"`
}

// LockFunds escrows amount from owner and reserves the same amount of free
// capital against it.
func (v *Vault) LockFunds(ctx context.Context, owner string, amount int64, seriesID string) (Lock, error) {
	if amount <= 0 {
		return Lock{}, fmt.Errorf("lock %d: %w", amount, apperr.ErrZeroAmount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if free := v.totalAssets - v.locked; amount > free {
		return Lock{}, fmt.Errorf("lock %d with %d free: %w", amount, free, apperr.ErrInsufficientLiquidity)
	}
	if err := v.pull(ctx, owner, amount); err != nil {
		return Lock{}, err
	}

	l := &Lock{
		ID:        uuid.NewString(),
		Owner:     owner,
		SeriesID:  seriesID,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	v.locks[l.ID] = l
	v.locked += amount
	v.escrowed += amount
	v.publish()

	v.log.Debug("lock", zap.String("lock", l.ID), zap.String("owner", owner), zap.Int64("amount", amount))
	return *l, nil
}

func (v *Vault) GetLock(lockID string) (Lock, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.locks[lockID]
	if !ok {
		return Lock{}, false
	}
	return *l, true
}

// UnlockFunds settles a single lock.
func (v *Vault) UnlockFunds(ctx context.Context, lockID string, settled int64) error {
	_, err := v.SettleBatch(ctx, []Unlock{{LockID: lockID, Settled: settled}})
	return err
}

// ReleaseFunds returns the stake untouched, as for a removed or pushed bet.
func (v *Vault) ReleaseFunds(ctx context.Context, lockID string) error {
	v.mu.Lock()
	l, ok := v.locks[lockID]
	v.mu.Unlock()
	if !ok {
		return fmt.Errorf("release %s: %w", lockID, apperr.ErrLockNotFound)
	}
	return v.UnlockFunds(ctx, lockID, l.Amount)
}

// SettleBatch settles every lock in unlocks or none of them. The whole batch is
// validated and checked for solvency before any asset moves.
func (v *Vault) SettleBatch(ctx context.Context, unlocks []Unlock) (BatchReport, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var report BatchReport
	seen := make(map[string]bool, len(unlocks))
	var legs []Transfer

	for _, u := range unlocks {
		l, ok := v.locks[u.LockID]
		if !ok {
			return BatchReport{}, fmt.Errorf("settle %s: %w", u.LockID, apperr.ErrLockNotFound)
		}
		if seen[u.LockID] {
			return BatchReport{}, fmt.Errorf("settle %s twice: %w", u.LockID, apperr.ErrLockSettled)
		}
		if u.Settled < 0 {
			return BatchReport{}, fmt.Errorf("settle %s for %d: %w", u.LockID, u.Settled, apperr.ErrZeroAmount)
		}
		seen[u.LockID] = true

		report.Stake += l.Amount
		report.Paid += u.Settled
		if u.Settled > 0 {
			legs = append(legs, Transfer{From: v.account, To: l.Owner, Amount: u.Settled})
		}
	}
	report.Locks = len(unlocks)
	report.AssetDelta = report.Stake - report.Paid

	newTotal := v.totalAssets + report.AssetDelta
	newLocked := v.locked - report.Stake
	if newTotal < 0 || newLocked > newTotal {
		return BatchReport{}, fmt.Errorf("batch of %d pays %d against %d stake with %d assets: %w",
			report.Locks, report.Paid, report.Stake, v.totalAssets, apperr.ErrVaultInsolvent)
	}

	if err := v.transferAll(ctx, legs); err != nil {
		return BatchReport{}, err
	}

	for _, u := range unlocks {
		delete(v.locks, u.LockID)
	}
	v.totalAssets = newTotal
	v.locked = newLocked
	v.escrowed -= report.Stake
	v.realized += report.AssetDelta
	report.FeeAccrued = v.accrueFees()
	v.publish()

	if report.Locks > 0 {
		v.log.Debug("settled batch",
			zap.Int("locks", report.Locks),
			zap.Int64("stake", report.Stake),
			zap.Int64("paid", report.Paid),
			zap.Int64("fee", report.FeeAccrued),
		)
	}
	return report, nil
}

// transferAll pays every leg as one unit. Ledgers without batch support get
// sequential transfers with compensation of the legs already applied.
func (v *Vault) transferAll(ctx context.Context, legs []Transfer) error {
	if len(legs) == 0 {
		return nil
	}
	if bt, ok := v.ledger.(BatchTransferer); ok {
		if err := bt.TransferBatch(ctx, legs); err != nil {
			return fmt.Errorf("batch payout: %w", err)
		}
		return nil
	}

	for i, leg := range legs {
		if err := v.ledger.Transfer(ctx, leg.To, leg.Amount); err != nil {
			for _, done := range legs[:i] {
				if rbErr := v.ledger.TransferFrom(ctx, done.To, v.account, done.Amount); rbErr != nil {
					v.log.Error("payout rollback failed",
						zap.String("to", done.To), zap.Int64("amount", done.Amount), zap.Error(rbErr))
				}
			}
			return fmt.Errorf("payout %d to %s: %w", leg.Amount, leg.To, err)
		}
	}
	return nil
}
