// Package vault is the share-based pool that bankrolls the table. It is the only
// owner of total assets and locked capital; every other component goes through
// its methods.
package vault

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"craps/internal/access"
	"craps/internal/apperr"
	"craps/internal/metrics"
	"craps/internal/money"
)

const MaxFeeBps = 5000

// State is a snapshot of the vault's books.
type State struct {
	TotalAssets     int64 `json:"total_assets"`
	TotalShares     int64 `json:"total_shares"`
	Locked          int64 `json:"locked"`
	Escrowed        int64 `json:"escrowed"`
	RealizedProfit  int64 `json:"realized_profit"`
	HighWaterProfit int64 `json:"high_water_profit"`
	AccruedFees     int64 `json:"accrued_fees"`
	FeeBps          int64 `json:"fee_bps"`
	OpenLocks       int   `json:"open_locks"`
}

// Free is the part of total assets not committed to open bets.
func (s State) Free() int64 {
	return s.TotalAssets - s.Locked
}

type Config struct {
	// Account is the vault's own account on the asset ledger.
	Account      string
	FeeRecipient string
	FeeBps       int64
}

type Vault struct {
	ledger  AssetLedger
	acl     *access.Control
	log     *zap.Logger
	metrics *metrics.Metrics

	account      string
	feeRecipient string

	mu          sync.Mutex
	totalAssets int64
	totalShares int64
	locked      int64
	escrowed    int64
	realized    int64
	highWater   int64
	accruedFees int64
	feeBps      int64
	shares      map[string]int64
	locks       map[string]*Lock
}

func New(ledger AssetLedger, cfg Config, acl *access.Control, log *zap.Logger, m *metrics.Metrics) *Vault {
	if log == nil {
		log = zap.NewNop()
	}
	return &Vault{
		ledger:       ledger,
		acl:          acl,
		log:          log.Named("vault"),
		metrics:      m,
		account:      cfg.Account,
		feeRecipient: cfg.FeeRecipient,
		feeBps:       clampFee(cfg.FeeBps),
		shares:       make(map[string]int64),
		locks:        make(map[string]*Lock),
	}
}

// Account is the vault's ledger account.
func (v *Vault) Account() string {
	return v.account
}

func (v *Vault) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *Vault) TotalAssets() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalAssets
}

func (v *Vault) TotalShares() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalShares
}

func (v *Vault) SharesOf(holder string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shares[holder]
}

// Deposit pulls assets from holder and mints shares rounded down.
func (v *Vault) Deposit(ctx context.Context, holder string, assets int64) (int64, error) {
	if assets <= 0 {
		return 0, fmt.Errorf("deposit %d: %w", assets, apperr.ErrZeroAmount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	shares, err := v.toShares(assets, false)
	if err != nil {
		return 0, err
	}
	if shares == 0 {
		return 0, fmt.Errorf("deposit %d mints no shares: %w", assets, apperr.ErrZeroAmount)
	}
	if err := v.pull(ctx, holder, assets); err != nil {
		return 0, err
	}

	v.totalAssets += assets
	v.totalShares += shares
	v.shares[holder] += shares
	v.publish()

	v.log.Info("deposit", zap.String("holder", holder), zap.Int64("assets", assets), zap.Int64("shares", shares))
	return shares, nil
}

// Mint issues exactly shares to holder, pulling assets rounded up.
func (v *Vault) Mint(ctx context.Context, holder string, shares int64) (int64, error) {
	if shares <= 0 {
		return 0, fmt.Errorf("mint %d: %w", shares, apperr.ErrZeroAmount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	assets, err := v.toAssets(shares, true)
	if err != nil {
		return 0, err
	}
	if assets == 0 {
		return 0, fmt.Errorf("mint %d shares for nothing: %w", shares, apperr.ErrVaultInsolvent)
	}
	if err := v.pull(ctx, holder, assets); err != nil {
		return 0, err
	}

	v.totalAssets += assets
	v.totalShares += shares
	v.shares[holder] += shares
	v.publish()

	v.log.Info("mint", zap.String("holder", holder), zap.Int64("assets", assets), zap.Int64("shares", shares))
	return assets, nil
}

// Withdraw pays exactly assets to holder, burning shares rounded up.
func (v *Vault) Withdraw(ctx context.Context, holder string, assets int64) (int64, error) {
	if assets <= 0 {
		return 0, fmt.Errorf("withdraw %d: %w", assets, apperr.ErrZeroAmount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if assets > v.totalAssets-v.locked {
		return 0, fmt.Errorf("withdraw %d with %d unlocked: %w", assets, v.totalAssets-v.locked, apperr.ErrExceedsUnlocked)
	}
	shares, err := v.toShares(assets, true)
	if err != nil {
		return 0, err
	}
	if shares > v.shares[holder] {
		return 0, fmt.Errorf("withdraw %d needs %d shares, holder has %d: %w", assets, shares, v.shares[holder], apperr.ErrInsufficientShares)
	}
	if err := v.pay(ctx, holder, assets); err != nil {
		return 0, err
	}

	v.burn(holder, shares)
	v.totalAssets -= assets
	v.publish()

	v.log.Info("withdraw", zap.String("holder", holder), zap.Int64("assets", assets), zap.Int64("shares", shares))
	return shares, nil
}

// Redeem burns exactly shares and pays assets rounded down.
func (v *Vault) Redeem(ctx context.Context, holder string, shares int64) (int64, error) {
	if shares <= 0 {
		return 0, fmt.Errorf("redeem %d: %w", shares, apperr.ErrZeroAmount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if shares > v.shares[holder] {
		return 0, fmt.Errorf("redeem %d, holder has %d: %w", shares, v.shares[holder], apperr.ErrInsufficientShares)
	}
	assets, err := v.toAssets(shares, false)
	if err != nil {
		return 0, err
	}
	if assets > v.totalAssets-v.locked {
		return 0, fmt.Errorf("redeem for %d with %d unlocked: %w", assets, v.totalAssets-v.locked, apperr.ErrExceedsUnlocked)
	}
	if assets > 0 {
		if err := v.pay(ctx, holder, assets); err != nil {
			return 0, err
		}
	}

	v.burn(holder, shares)
	v.totalAssets -= assets
	v.publish()

	v.log.Info("redeem", zap.String("holder", holder), zap.Int64("assets", assets), zap.Int64("shares", shares))
	return assets, nil
}

func (v *Vault) PreviewDeposit(assets int64) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.toShares(assets, false)
}

func (v *Vault) PreviewMint(shares int64) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.toAssets(shares, true)
}

func (v *Vault) PreviewWithdraw(assets int64) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.toShares(assets, true)
}

func (v *Vault) PreviewRedeem(shares int64) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.toAssets(shares, false)
}

// MaxDeposit is zero when the vault holds shares but no assets; the share price is undefined.
func (v *Vault) MaxDeposit(string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.totalShares > 0 && v.totalAssets <= 0 {
		return 0
	}
	return math.MaxInt64 - v.totalAssets - v.escrowed - v.accruedFees
}

func (v *Vault) MaxMint(holder string) int64 {
	maxAssets := v.MaxDeposit(holder)

	v.mu.Lock()
	defer v.mu.Unlock()
	if maxAssets == 0 {
		return 0
	}
	if v.totalShares == 0 {
		return maxAssets
	}
	return money.MulDivDown(maxAssets, v.totalShares, v.totalAssets)
}

// MaxWithdraw is the holder's claim capped by unlocked assets.
func (v *Vault) MaxWithdraw(holder string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	claim, err := v.toAssets(v.shares[holder], false)
	if err != nil {
		return 0
	}
	return min(claim, max(v.totalAssets-v.locked, 0))
}

// MaxRedeem is the holder's shares capped by what the unlocked assets can buy back.
func (v *Vault) MaxRedeem(holder string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	held := v.shares[holder]
	if held == 0 || v.totalAssets <= 0 {
		return 0
	}
	free := max(v.totalAssets-v.locked, 0)
	return min(held, money.MulDivDown(free, v.totalShares, v.totalAssets))
}

// toShares converts assets at the current price. The first deposit is 1:1.
func (v *Vault) toShares(assets int64, roundUp bool) (int64, error) {
	if assets < 0 {
		return 0, fmt.Errorf("convert %d: %w", assets, apperr.ErrZeroAmount)
	}
	if v.totalShares == 0 {
		return assets, nil
	}
	if v.totalAssets <= 0 {
		return 0, fmt.Errorf("price undefined with %d shares and no assets: %w", v.totalShares, apperr.ErrVaultInsolvent)
	}
	if roundUp {
		return money.MulDivUp(assets, v.totalShares, v.totalAssets), nil
	}
	return money.MulDivDown(assets, v.totalShares, v.totalAssets), nil
}

func (v *Vault) toAssets(shares int64, roundUp bool) (int64, error) {
	if shares < 0 {
		return 0, fmt.Errorf("convert %d: %w", shares, apperr.ErrZeroAmount)
	}
	if v.totalShares == 0 {
		return shares, nil
	}
	if v.totalAssets < 0 {
		return 0, fmt.Errorf("negative assets: %w", apperr.ErrVaultInsolvent)
	}
	if roundUp {
		return money.MulDivUp(shares, v.totalAssets, v.totalShares), nil
	}
	return money.MulDivDown(shares, v.totalAssets, v.totalShares), nil
}

func (v *Vault) pull(ctx context.Context, from string, amount int64) error {
	if err := v.ledger.TransferFrom(ctx, from, v.account, amount); err != nil {
		return fmt.Errorf("pull %d from %s: %w", amount, from, err)
	}
	return nil
}

func (v *Vault) pay(ctx context.Context, to string, amount int64) error {
	if err := v.ledger.Transfer(ctx, to, amount); err != nil {
		return fmt.Errorf("pay %d to %s: %w", amount, to, err)
	}
	return nil
}

func (v *Vault) burn(holder string, shares int64) {
	v.shares[holder] -= shares
	if v.shares[holder] == 0 {
		delete(v.shares, holder)
	}
	v.totalShares -= shares
}

func (v *Vault) stateLocked() State {
	return State{
		TotalAssets:     v.totalAssets,
		TotalShares:     v.totalShares,
		Locked:          v.locked,
		Escrowed:        v.escrowed,
		RealizedProfit:  v.realized,
		HighWaterProfit: v.highWater,
		AccruedFees:     v.accruedFees,
		FeeBps:          v.feeBps,
		OpenLocks:       len(v.locks),
	}
}

func (v *Vault) publish() {
	v.metrics.SetVault(v.totalAssets, v.locked, v.totalShares, v.accruedFees)
}
