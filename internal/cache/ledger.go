package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"craps/internal/apperr"
	"craps/internal/vault"
)

const balancePrefix = "craps:balance:"

// transferScript applies KEYS as (from, to) pairs with ARGV amounts. Every leg
// is checked against running balances before anything is written.
var transferScript = redis.NewScript(`
local bal = {}
local function get(k)
  if bal[k] == nil then
    bal[k] = tonumber(redis.call('GET', k) or '0')
  end
  return bal[k]
end
for i = 1, #ARGV do
  local from, to, amt = KEYS[2*i-1], KEYS[2*i], tonumber(ARGV[i])
  local fb = get(from)
  if fb < amt then
    return redis.error_reply('INSUFFICIENT_BALANCE ' .. from)
  end
  bal[from] = fb - amt
  bal[to] = get(to) + amt
end
for k, v in pairs(bal) do
  redis.call('SET', k, string.format('%.0f', v))
end
return #ARGV
`)

// Ledger is a vault.AssetLedger kept in Redis. Balances are integers under
// craps:balance:<account>; transfers run as one script so a batch is atomic.
// Lua numbers are doubles, so balances must stay below 2^53.
type Ledger struct {
	client redis.Cmdable
	self   string
}

var (
	_ vault.AssetLedger     = (*Ledger)(nil)
	_ vault.BatchTransferer = (*Ledger)(nil)
)

func NewLedger(client redis.Cmdable, self string) *Ledger {
	return &Ledger{client: client, self: self}
}

func balanceKey(account string) string {
	return balancePrefix + account
}

// Credit mints amount into account. Used by the faucet.
func (l *Ledger) Credit(ctx context.Context, account string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit %d: %w", amount, apperr.ErrZeroAmount)
	}
	bal, err := l.client.IncrBy(ctx, balanceKey(account), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("credit %s: %w", account, err)
	}
	return bal, nil
}

func (l *Ledger) BalanceOf(ctx context.Context, account string) (int64, error) {
	bal, err := l.client.Get(ctx, balanceKey(account)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w", account, err)
	}
	return bal, nil
}

func (l *Ledger) Transfer(ctx context.Context, to string, amount int64) error {
	return l.TransferFrom(ctx, l.self, to, amount)
}

func (l *Ledger) TransferFrom(ctx context.Context, from, to string, amount int64) error {
	return l.TransferBatch(ctx, []vault.Transfer{{From: from, To: to, Amount: amount}})
}

func (l *Ledger) TransferBatch(ctx context.Context, transfers []vault.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}
	keys := make([]string, 0, 2*len(transfers))
	args := make([]any, 0, len(transfers))
	for _, tr := range transfers {
		if tr.Amount < 0 {
			return fmt.Errorf("transfer %d: %w", tr.Amount, apperr.ErrZeroAmount)
		}
		keys = append(keys, balanceKey(tr.From), balanceKey(tr.To))
		args = append(args, tr.Amount)
	}

	err := transferScript.Run(ctx, l.client, keys, args...).Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "INSUFFICIENT_BALANCE") {
		return fmt.Errorf("transfer batch: %s: %w", err.Error(), apperr.ErrInsufficientBalance)
	}
	return fmt.Errorf("transfer batch: %w", err)
}
