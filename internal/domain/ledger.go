package domain

import (
	"fmt"
	"time"
)

// RewardScale is the fixed-point scale of AccRewardPerShare.
const RewardScale uint64 = 1_000_000_000

const Day = 24 * time.Hour

// Product selects which staking pool a position and ledger belong to.
type Product string

const (
	ProductBase Product = "base"
	ProductLP   Product = "lp"
)

func ParseProduct(s string) (Product, error) {
	p := Product(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidProduct, s)
	}
	return p, nil
}

func (p Product) Valid() bool {
	return p == ProductBase || p == ProductLP
}

// Identity names a participant, the owner or the governance authority.
type Identity string

// Account is a custodial balance known to the transfer service.
type Account string

// StakingVault holds staked principal for a product.
func StakingVault(p Product) Account {
	return Account("vault/" + string(p) + "/staking")
}

// RewardVault holds deposited fees, penalties and the insurance reserve for a product.
func RewardVault(p Product) Account {
	return Account("vault/" + string(p) + "/reward")
}

func (id Identity) Account() Account {
	return Account(id)
}

// Tier is the lockup/fee configuration a position is enrolled in.
type Tier uint8

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

const NumTiers = 3

func (t Tier) Valid() bool {
	return t < NumTiers
}

// PoolConfig defines one tier.
type PoolConfig struct {
	LockupPeriod  time.Duration `json:"lockup_period"`
	APRMultiplier uint64        `json:"apr_multiplier"` // informational, 100 = base
	FeeBps        uint64        `json:"fee_bps"`
}

// DefaultPools is the pool table a ledger starts with: 7, 14 and 30 day lockups.
func DefaultPools() [NumTiers]PoolConfig {
	return [NumTiers]PoolConfig{
		{LockupPeriod: 7 * Day, APRMultiplier: 100, FeeBps: 50},
		{LockupPeriod: 14 * Day, APRMultiplier: 110, FeeBps: 75},
		{LockupPeriod: 30 * Day, APRMultiplier: 120, FeeBps: 100},
	}
}

// Parameters are the governance-mutable fields of a ledger.
type Parameters struct {
	CooldownPeriod            time.Duration        `json:"cooldown_period"`
	MinWithdrawInterval       time.Duration        `json:"min_withdraw_interval"`
	MinClaimDelay             time.Duration        `json:"min_claim_delay"`
	EarlyWithdrawalPenaltyBps uint64               `json:"early_withdrawal_penalty_bps"`
	InsuranceFeeBps           uint64               `json:"insurance_fee_bps"`
	UtilizationMultiplier     uint64               `json:"utilization_multiplier"` // percent, 100 = neutral
	Pools                     [NumTiers]PoolConfig `json:"pools"`
}

// WholeSeconds truncates every duration to whole seconds, the resolution
// ledgers are stored and clocked at.
func (p Parameters) WholeSeconds() Parameters {
	p.CooldownPeriod = p.CooldownPeriod.Truncate(time.Second)
	p.MinWithdrawInterval = p.MinWithdrawInterval.Truncate(time.Second)
	p.MinClaimDelay = p.MinClaimDelay.Truncate(time.Second)
	for i := range p.Pools {
		p.Pools[i].LockupPeriod = p.Pools[i].LockupPeriod.Truncate(time.Second)
	}
	return p
}

// GlobalLedger is the per-product reward accumulator and configuration record.
type GlobalLedger struct {
	Product Product `json:"product"`
	Version uint64  `json:"version"`

	TotalStaked        uint64    `json:"total_staked"`
	AccRewardPerShare  uint64    `json:"acc_reward_per_share"`
	LastFeeDepositTime time.Time `json:"last_fee_deposit_time"`
	InsuranceFund      uint64    `json:"insurance_fund"`

	Owner      Identity `json:"owner"`
	Governance Identity `json:"governance"`

	Parameters
}

// Pool returns the configuration of tier t.
func (l *GlobalLedger) Pool(t Tier) (PoolConfig, error) {
	if !t.Valid() {
		return PoolConfig{}, fmt.Errorf("%w: %d", ErrInvalidPoolType, t)
	}
	return l.Pools[t], nil
}
