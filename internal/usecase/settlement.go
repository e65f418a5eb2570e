package usecase

import (
	"fmt"

	"github.com/vitos/yield_staking/internal/domain"
	"github.com/vitos/yield_staking/internal/fixedpoint"
)

// accruedFor is the accumulator value priced into a stake of the given size.
func accruedFor(staked uint64, ledger *domain.GlobalLedger) (uint64, error) {
	return fixedpoint.MulDiv(staked, ledger.AccRewardPerShare, domain.RewardScale)
}

// settle folds the reward accrued since the last baseline into PendingRewards
// and moves RewardDebt up to the current accumulator. It returns the amount
// folded in.
func settle(pos *domain.Position, ledger *domain.GlobalLedger) (uint64, error) {
	accrued, err := accruedFor(pos.StakedAmount, ledger)
	if err != nil {
		return 0, err
	}
	if pos.RewardDebt > accrued {
		return 0, fmt.Errorf("%w: reward debt %d exceeds accrued %d for %s/%s",
			domain.ErrMathOverflow, pos.RewardDebt, accrued, pos.Product, pos.Owner)
	}
	owed := accrued - pos.RewardDebt
	pending, err := fixedpoint.Add(pos.PendingRewards, owed)
	if err != nil {
		return 0, err
	}
	pos.PendingRewards = pending
	pos.RewardDebt = accrued
	return owed, nil
}

// rebaseline recomputes RewardDebt after StakedAmount changed.
func rebaseline(pos *domain.Position, ledger *domain.GlobalLedger) error {
	debt, err := accruedFor(pos.StakedAmount, ledger)
	if err != nil {
		return err
	}
	pos.RewardDebt = debt
	return nil
}
