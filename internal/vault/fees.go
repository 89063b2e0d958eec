package vault

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"craps/internal/access"
	"craps/internal/apperr"
	"craps/internal/money"
)

// accrueFees charges FeeBps on realized profit above the high-water mark. The
// fee leaves TotalAssets as soon as it accrues, capped so locked capital stays
// covered. A capped fee moves the mark only past the profit it was charged on;
// the rest is charged once capital frees up.
func (v *Vault) accrueFees() int64 {
	if v.realized <= v.highWater {
		return 0
	}
	gain := v.realized - v.highWater

	owed := money.MulDivDown(gain, v.feeBps, 10_000)
	if owed <= 0 {
		v.highWater = v.realized
		return 0
	}
	fee := min(owed, max(v.totalAssets-v.locked, 0))
	if fee < owed {
		v.highWater += money.MulDivDown(gain, fee, owed)
	} else {
		v.highWater = v.realized
	}
	if fee == 0 {
		return 0
	}
	v.totalAssets -= fee
	v.accruedFees += fee
	return fee
}

// CollectFees pays accrued fees to the fee recipient. Total assets and shares
// are untouched so the share price does not move.
func (v *Vault) CollectFees(ctx context.Context, caller string) (int64, error) {
	if err := v.acl.Require(caller, access.RoleAdmin); err != nil {
		return 0, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	fees := v.accruedFees
	if fees == 0 {
		return 0, nil
	}
	if err := v.pay(ctx, v.feeRecipient, fees); err != nil {
		return 0, err
	}
	v.accruedFees = 0
	v.publish()

	v.log.Info("fees collected", zap.String("recipient", v.feeRecipient), zap.Int64("amount", fees))
	return fees, nil
}

// SetFeeBps changes the performance fee for profit realized from now on.
func (v *Vault) SetFeeBps(caller string, bps int64) error {
	if err := v.acl.Require(caller, access.RoleAdmin); err != nil {
		return err
	}
	if bps < 0 || bps > MaxFeeBps {
		return fmt.Errorf("fee %d bps outside [0,%d]: %w", bps, MaxFeeBps, apperr.ErrAmountOutOfRange)
	}

	v.mu.Lock()
	v.feeBps = bps
	v.mu.Unlock()

	v.log.Info("fee changed", zap.String("by", caller), zap.Int64("bps", bps))
	return nil
}

func clampFee(bps int64) int64 {
	return min(max(bps, 0), MaxFeeBps)
}
