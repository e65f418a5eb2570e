package usecase

import (
	"time"

	"github.com/vitos/yield_staking/internal/domain"
	"github.com/vitos/yield_staking/internal/fixedpoint"
)

const (
	thirtyDays = 30 * domain.Day
	ninetyDays = 90 * domain.Day
)

// VolumeStep grants BonusPct to trailing volumes up to and including MaxVolume.
type VolumeStep struct {
	MaxVolume uint64
	BonusPct  uint64
}

// VolumeBonusTable applies to both products. Volumes above the last step get
// volumeBonusCeiling.
var VolumeBonusTable = []VolumeStep{
	{MaxVolume: 10_000, BonusPct: 0},
	{MaxVolume: 100_000, BonusPct: 5},
	{MaxVolume: 1_000_000, BonusPct: 10},
}

const volumeBonusCeiling uint64 = 15

// TimeMultiplier is the percentage applied for the time a stake has been held.
func TimeMultiplier(held time.Duration) uint64 {
	switch {
	case held < thirtyDays:
		return 100
	case held < ninetyDays:
		return 120
	default:
		return 150
	}
}

// VolumeBonus is the extra percentage earned by trailing trade volume.
func VolumeBonus(volume uint64) uint64 {
	for _, step := range VolumeBonusTable {
		if volume <= step.MaxVolume {
			return step.BonusPct
		}
	}
	return volumeBonusCeiling
}

// applyMultipliers scales a settled reward by the time, utilization and volume
// multipliers, in that order, flooring after each step.
func applyMultipliers(reward uint64, held time.Duration, utilization, volume uint64) (uint64, error) {
	total, err := fixedpoint.Percent(reward, TimeMultiplier(held))
	if err != nil {
		return 0, err
	}
	if total, err = fixedpoint.Percent(total, utilization); err != nil {
		return 0, err
	}
	return fixedpoint.Percent(total, fixedpoint.PercentDenominator+VolumeBonus(volume))
}
