package vault

import (
	"context"
	"fmt"
	"sync"

	"craps/internal/apperr"
)

// AssetLedger moves fungible balances. Transfer debits the ledger's own
// account (the vault); TransferFrom moves between any two accounts the vault
// is approved to spend from.
type AssetLedger interface {
	BalanceOf(ctx context.Context, account string) (int64, error)
	Transfer(ctx context.Context, to string, amount int64) error
	TransferFrom(ctx context.Context, from, to string, amount int64) error
}

// Transfer is one leg of a batch payout.
type Transfer struct {
	From   string
	To     string
	Amount int64
}

// BatchTransferer is implemented by ledgers that can apply many transfers as
// one unit. SettleBatch uses it when available.
type BatchTransferer interface {
	TransferBatch(ctx context.Context, transfers []Transfer) error
}

// MemoryLedger is an in-process AssetLedger used by tests and single-node tables.
type MemoryLedger struct {
	self     string
	mu       sync.Mutex
	balances map[string]int64
}

func NewMemoryLedger(self string) *MemoryLedger {
	return &MemoryLedger{
		self:     self,
		balances: make(map[string]int64),
	}
}

// Credit mints amount into account.
func (l *MemoryLedger) Credit(account string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

func (l *MemoryLedger) BalanceOf(_ context.Context, account string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

func (l *MemoryLedger) Transfer(ctx context.Context, to string, amount int64) error {
	return l.TransferFrom(ctx, l.self, to, amount)
}

func (l *MemoryLedger) TransferFrom(_ context.Context, from, to string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// TransferBatch checks every leg against running balances before applying any.
func (l *MemoryLedger) TransferBatch(_ context.Context, transfers []Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending := make(map[string]int64)
	for _, tr := range transfers {
		if tr.Amount < 0 {
			return fmt.Errorf("transfer %d: %w", tr.Amount, apperr.ErrZeroAmount)
		}
		pending[tr.From] -= tr.Amount
		pending[tr.To] += tr.Amount
		if l.balances[tr.From]+pending[tr.From] < 0 {
			return fmt.Errorf("batch debit %s: %w", tr.From, apperr.ErrInsufficientBalance)
		}
	}
	for acct, delta := range pending {
		l.balances[acct] += delta
	}
	return nil
}

func (l *MemoryLedger) move(from, to string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("transfer %d: %w", amount, apperr.ErrZeroAmount)
	}
	if l.balances[from] < amount {
		return fmt.Errorf("debit %s by %d: %w", from, amount, apperr.ErrInsufficientBalance)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
