package usecase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/yield_staking/internal/domain"
	"github.com/vitos/yield_staking/internal/usecase"
)

func TestStake_OpensPosition(t *testing.T) {
	h := newHarness(t, domain.Parameters{})

	pos := h.stake(t, alice, 1000, domain.TierMedium)

	assert.Equal(t, uint64(1000), pos.StakedAmount)
	assert.Equal(t, domain.TierMedium, pos.Tier)
	assert.Equal(t, start, pos.StakeTimestamp)
	assert.Equal(t, start, pos.LastWithdrawalTime)
	assert.Equal(t, uint64(1000), h.ledger(t).TotalStaked)
	assert.Equal(t, uint64(1000), h.balance(domain.StakingVault(base)))
	assert.Equal(t, uint64(999_000), h.balance(alice.Account()))
}

func TestStake_InvalidTier(t *testing.T) {
	h := newHarness(t, domain.Parameters{})

	_, err := h.staking.Stake(h.ctx, alice, usecase.StakeRequest{Owner: alice, Product: base, Amount: 1, Tier: 3})
	require.ErrorIs(t, err, domain.ErrInvalidPoolType)
	assert.Equal(t, uint64(1_000_000), h.balance(alice.Account()))
}

func TestStake_RepeatSettlesAndResetsLockup(t *testing.T) {
	h := newHarness(t, domain.Parameters{})
	h.stake(t, alice, 1000, domain.TierLow)
	h.deposit(t, 100)

	h.clock.Advance(time.Hour)
	pos := h.stake(t, alice, 1000, domain.TierHigh)

	ledger := h.ledger(t)
	assert.Equal(t, uint64(100), pos.PendingRewards, "reward earned before the second stake is kept")
	assert.Equal(t, uint64(2000)*ledger.AccRewardPerShare/domain.RewardScale, pos.RewardDebt)
	assert.Equal(t, start.Add(time.Hour), pos.StakeTimestamp)
	assert.Equal(t, domain.TierHigh, pos.Tier)
}

func TestBatchStake_SumsAmounts(t *testing.T) {
	h := newHarness(t, domain.Parameters{})

	pos, err := h.staking.BatchStake(h.ctx, alice, usecase.BatchStakeRequest{Owner: alice, Product: base, Amounts: []uint64{100, 200, 300}})
	require.NoError(t, err)
	assert.Equal(t, uint64(600), pos.StakedAmount)

	_, err = h.staking.BatchStake(h.ctx, alice, usecase.BatchStakeRequest{Owner: alice, Product: base, Amounts: []uint64{^uint64(0), 1}})
	require.ErrorIs(t, err, domain.ErrMathOverflow)

	res, err := h.staking.BatchUnstake(h.ctx, alice, usecase.BatchUnstakeRequest{Owner: alice, Product: base, Amounts: []uint64{100, 200}})
	require.NoError(t, err)
	assert.Equal(t, uint64(300), res.Position.StakedAmount)
}

func TestStake_ActingForAnotherIsRejected(t *testing.T) {
	h := newHarness(t, domain.Parameters{})

	_, err := h.staking.Stake(h.ctx, bob, usecase.StakeRequest{Owner: alice, Product: base, Amount: 1})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = h.staking.Stake(h.ctx, alice, usecase.StakeRequest{Owner: alice, Product: "gold", Amount: 1})
	require.ErrorIs(t, err, domain.ErrInvalidProduct)

	_, err = h.staking.Stake(h.ctx, alice, usecase.StakeRequest{Owner: alice, Product: domain.ProductLP, Amount: 1})
	require.ErrorIs(t, err, domain.ErrLedgerNotInitialized)
}

func TestUnstake_EarlyWithdrawalPenalty(t *testing.T) {
	h := newHarness(t, domain.Parameters{EarlyWithdrawalPenaltyBps: 500})
	h.stake(t, alice, 1000, domain.TierLow)

	h.clock.Advance(domain.Day)
	res, err := h.unstake(alice, 1000)
	require.NoError(t, err)

	assert.Equal(t, uint64(950), res.Payout)
	assert.Equal(t, uint64(50), res.Penalty)
	assert.Equal(t, uint64(0), res.Position.StakedAmount)
	assert.Equal(t, start.Add(domain.Day), res.Position.LastWithdrawalTime)

	ledger := h.ledger(t)
	assert.Equal(t, uint64(50), ledger.InsuranceFund)
	assert.Equal(t, uint64(0), ledger.TotalStaked)
	assert.Equal(t, uint64(999_950), h.balance(alice.Account()))
	assert.Equal(t, uint64(50), h.balance(domain.RewardVault(base)))
	assert.Equal(t, uint64(0), h.balance(domain.StakingVault(base)))
}

func TestUnstake_AfterLockupNoPenalty(t *testing.T) {
	h := newHarness(t, domain.Parameters{EarlyWithdrawalPenaltyBps: 500})
	h.stake(t, alice, 1000, domain.TierLow)

	h.clock.Advance(7 * domain.Day)
	res, err := h.unstake(alice, 400)
	require.NoError(t, err)

	assert.Equal(t, uint64(400), res.Payout)
	assert.Zero(t, res.Penalty)
	assert.Equal(t, uint64(600), res.Position.StakedAmount)
	assert.Zero(t, h.ledger(t).InsuranceFund)
}

func TestUnstake_Rejections(t *testing.T) {
	h := newHarness(t, domain.Parameters{MinWithdrawInterval: time.Hour})

	_, err := h.unstake(alice, 1)
	require.ErrorIs(t, err, domain.ErrPositionNotFound)

	h.stake(t, alice, 1000, domain.TierLow)
	h.clock.Advance(30 * time.Minute)

	_, err = h.unstake(alice, 1001)
	require.ErrorIs(t, err, domain.ErrInsufficientStake)

	_, err = h.unstake(alice, 10)
	require.ErrorIs(t, err, domain.ErrWithdrawalTooFrequent)

	h.clock.Advance(30 * time.Minute)
	_, err = h.unstake(alice, 10)
	require.NoError(t, err)

	_, err = h.unstake(alice, 10)
	require.ErrorIs(t, err, domain.ErrWithdrawalTooFrequent, "the interval restarts at each withdrawal")
}

func TestDepositFee_RaisesAccumulator(t *testing.T) {
	h := newHarness(t, domain.Parameters{InsuranceFeeBps: 1000})
	h.stake(t, alice, 1000, domain.TierLow)
	h.stake(t, bob, 3000, domain.TierLow)

	h.clock.Advance(time.Minute)
	ledger := h.deposit(t, 1000)

	// 900 distributable over 4000 staked
	assert.Equal(t, uint64(225_000_000), ledger.AccRewardPerShare)
	assert.Equal(t, uint64(100), ledger.InsuranceFund)
	assert.Equal(t, start.Add(time.Minute), ledger.LastFeeDepositTime)
	assert.Equal(t, uint64(1000), h.balance(domain.RewardVault(base)))
}

func TestDepositFee_NothingStakedStrandsFee(t *testing.T) {
	h := newHarness(t, domain.Parameters{InsuranceFeeBps: 1000})

	ledger := h.deposit(t, 1000)
	assert.Zero(t, ledger.AccRewardPerShare)
	assert.Equal(t, uint64(100), ledger.InsuranceFund)
	assert.Equal(t, uint64(1000), h.balance(domain.RewardVault(base)))

	h.stake(t, alice, 1000, domain.TierLow)
	_, err := h.claim(alice)
	require.ErrorIs(t, err, domain.ErrNoRewards, "a later staker does not inherit stranded fees")

	h.deposit(t, 1000)
	res, err := h.claim(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), res.Amount)
	assert.Equal(t, uint64(1100), h.balance(domain.RewardVault(base)))
}

func TestClaim_GatingBoundaries(t *testing.T) {
	h := newHarness(t, domain.Parameters{CooldownPeriod: 7 * domain.Day, MinClaimDelay: time.Hour})
	h.stake(t, alice, 1000, domain.TierLow)
	h.deposit(t, 100)

	h.clock.Advance(time.Second)
	_, err := h.claim(alice)
	require.ErrorIs(t, err, domain.ErrStakePeriodTooShort, "cooldown is checked before the claim delay")

	h.clock.T = start.Add(7*domain.Day - time.Second)
	_, err = h.claim(alice)
	require.ErrorIs(t, err, domain.ErrStakePeriodTooShort)

	h.clock.Advance(time.Second)
	res, err := h.claim(alice)
	require.NoError(t, err, "held exactly the cooldown")
	assert.Equal(t, uint64(100), res.Amount)

	h.deposit(t, 100)
	h.clock.Advance(time.Hour - time.Second)
	_, err = h.claim(alice)
	require.ErrorIs(t, err, domain.ErrClaimTooSoon)

	h.clock.Advance(time.Second)
	h.proofOK = false
	_, err = h.claim(alice)
	require.ErrorIs(t, err, domain.ErrInvalidProof)

	h.proofOK = true
	res, err = h.claim(alice)
	require.NoError(t, err, "exactly the claim delay after the deposit")
	assert.Equal(t, uint64(100), res.Amount)
}

func TestClaim_MultiplierStack(t *testing.T) {
	h := newHarness(t, domain.Parameters{})
	h.stake(t, alice, 1000, domain.TierLow)
	h.deposit(t, 1000)
	require.NoError(t, h.book.Credit(domain.RewardVault(base), 1000))

	_, err := h.governance.UpdateUtilization(h.ctx, dao, base, 110)
	require.NoError(t, err)
	_, err = h.staking.SetTradeVolume(h.ctx, owner, alice, base, 500_000)
	require.NoError(t, err)

	h.clock.Advance(95 * domain.Day)
	res, err := h.claim(alice)
	require.NoError(t, err)

	// 1000 * 150% = 1500, * 110% = 1650, * (100+10)% = 1815
	assert.Equal(t, uint64(1815), res.Amount)
	assert.Zero(t, res.Position.PendingRewards)
	assert.Equal(t, uint64(1_001_815-1000), h.balance(alice.Account()))
	assert.Equal(t, uint64(185), h.balance(domain.RewardVault(base)))
}

func TestClaim_NoRewardsAndMissingPosition(t *testing.T) {
	h := newHarness(t, domain.Parameters{})

	_, err := h.claim(alice)
	require.ErrorIs(t, err, domain.ErrPositionNotFound)

	h.stake(t, alice, 3, domain.TierLow)
	_, err = h.claim(alice)
	require.ErrorIs(t, err, domain.ErrNoRewards)

	// one unit over three staked floors to zero owed
	h.deposit(t, 1)
	_, err = h.claim(alice)
	require.ErrorIs(t, err, domain.ErrNoRewards)
	assert.Equal(t, uint64(1), h.balance(domain.RewardVault(base)), "dust stays with the protocol")
}

func TestCompound_RestakesClaim(t *testing.T) {
	h := newHarness(t, domain.Parameters{})
	h.stake(t, alice, 1000, domain.TierLow)
	h.deposit(t, 500)

	h.clock.Advance(time.Hour)
	res, err := h.staking.Compound(h.ctx, alice, usecase.ClaimRequest{Owner: alice, Product: base})
	require.NoError(t, err)

	assert.Equal(t, uint64(500), res.Amount)
	assert.Equal(t, uint64(1500), res.Position.StakedAmount)
	assert.Equal(t, start.Add(time.Hour), res.Position.StakeTimestamp)
	assert.Zero(t, res.Position.PendingRewards)
	assert.Equal(t, uint64(1500), h.ledger(t).TotalStaked)
	assert.Equal(t, uint64(1500), h.balance(domain.StakingVault(base)))
	assert.Zero(t, h.balance(domain.RewardVault(base)))
	assert.Equal(t, uint64(999_000), h.balance(alice.Account()))

	ledger := h.ledger(t)
	assert.Equal(t, uint64(1500)*ledger.AccRewardPerShare/domain.RewardScale, res.Position.RewardDebt)
}

func TestStake_OverflowGuard(t *testing.T) {
	h := newHarness(t, domain.Parameters{})
	h.stake(t, alice, 1, domain.TierLow)
	ledger := h.deposit(t, 10_000_000_000)
	require.Equal(t, uint64(10_000_000_000_000_000_000), ledger.AccRewardPerShare)

	require.NoError(t, h.book.Credit(bob.Account(), 10_000_000_000))
	before := h.balance(bob.Account())

	_, err := h.staking.Stake(h.ctx, bob, usecase.StakeRequest{Owner: bob, Product: base, Amount: 10_000_000_000})
	require.ErrorIs(t, err, domain.ErrMathOverflow)

	assert.Equal(t, before, h.balance(bob.Account()), "transfer is reversed")
	assert.Equal(t, uint64(1), h.ledger(t).TotalStaked)
	_, err = h.staking.Position(h.ctx, bob, base)
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
}

func TestUnstake_TransferFailureRollsBack(t *testing.T) {
	h := newHarness(t, domain.Parameters{EarlyWithdrawalPenaltyBps: 500})
	h.stake(t, alice, 1000, domain.TierLow)
	before := h.ledger(t)

	// penalty transfer succeeds, payout transfer fails
	h.transfers.calls = 0
	h.transfers.failAt = 2
	_, err := h.unstake(alice, 1000)
	require.ErrorIs(t, err, domain.ErrTransferFailed)
	require.ErrorIs(t, err, errInjected)

	assert.Equal(t, before, h.ledger(t))
	assert.Equal(t, uint64(1000), h.position(t, alice).StakedAmount)
	assert.Equal(t, uint64(1000), h.balance(domain.StakingVault(base)))
	assert.Zero(t, h.balance(domain.RewardVault(base)))
	assert.Equal(t, 3, h.transfers.calls, "one compensating transfer")
}

func TestConservation(t *testing.T) {
	h := newHarness(t, domain.Parameters{InsuranceFeeBps: 250, EarlyWithdrawalPenaltyBps: 300})
	supply, err := h.book.Total()
	require.NoError(t, err)

	checkVaults := func() {
		t.Helper()
		total, err := h.book.Total()
		require.NoError(t, err)
		assert.Equal(t, supply, total, "value is only moved, never created")
		assert.Equal(t, h.ledger(t).TotalStaked, h.balance(domain.StakingVault(base)))
	}

	h.stake(t, alice, 1000, domain.TierLow)
	h.stake(t, bob, 3000, domain.TierHigh)
	checkVaults()

	var deposited, claimed uint64
	for _, fee := range []uint64{400, 7, 1234, 99} {
		h.clock.Advance(time.Hour)
		h.deposit(t, fee)
		deposited += fee
		checkVaults()
	}

	for _, who := range []domain.Identity{alice, bob} {
		res, err := h.claim(who)
		require.NoError(t, err)
		claimed += res.Amount
		checkVaults()
	}
	assert.LessOrEqual(t, claimed, deposited)

	res, err := h.unstake(bob, 1500)
	require.NoError(t, err)
	assert.NotZero(t, res.Penalty)
	checkVaults()

	ledger := h.ledger(t)
	assert.Equal(t, deposited+res.Penalty-claimed, h.balance(domain.RewardVault(base)))
	assert.GreaterOrEqual(t, h.balance(domain.RewardVault(base)), ledger.InsuranceFund)
}

func TestDepositFee_AccumulatorNeverDecreases(t *testing.T) {
	h := newHarness(t, domain.Parameters{InsuranceFeeBps: 9999})
	h.stake(t, alice, 7, domain.TierLow)

	var last uint64
	for i, fee := range []uint64{0, 1, 3, 10_000, 5, 123_456} {
		if i == 3 {
			h.stake(t, bob, 900_000, domain.TierLow)
		}
		ledger := h.deposit(t, fee)
		assert.GreaterOrEqual(t, ledger.AccRewardPerShare, last)
		last = ledger.AccRewardPerShare
	}
}

func TestSetTradeVolume_OwnerOnly(t *testing.T) {
	h := newHarness(t, domain.Parameters{})
	h.stake(t, alice, 10, domain.TierLow)

	_, err := h.staking.SetTradeVolume(h.ctx, alice, alice, base, 1_000_000_000)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = h.staking.SetTradeVolume(h.ctx, owner, bob, base, 1)
	require.ErrorIs(t, err, domain.ErrPositionNotFound)

	pos, err := h.staking.SetTradeVolume(h.ctx, owner, alice, base, 20_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(20_000), pos.TrailingTradeVolume)
}

func TestStakingService_PublishesCommittedOperations(t *testing.T) {
	h := newHarness(t, domain.Parameters{})
	h.stake(t, alice, 1000, domain.TierLow)
	h.deposit(t, 10)
	_, err := h.claim(alice)
	require.NoError(t, err)
	_, err = h.unstake(alice, 5000)
	require.Error(t, err)

	assert.Equal(t, []domain.EventKind{
		domain.EventInitialized,
		domain.EventStaked,
		domain.EventFeeDeposited,
		domain.EventClaimed,
	}, h.events.kinds())
}

func TestPositions_ListsProduct(t *testing.T) {
	h := newHarness(t, domain.Parameters{})
	h.stake(t, bob, 2, domain.TierLow)
	h.stake(t, alice, 1, domain.TierLow)

	positions, err := h.staking.Positions(h.ctx, base)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, alice, positions[0].Owner)
	assert.Equal(t, bob, positions[1].Owner)
}

func TestCompound_FailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, domain.Parameters{CooldownPeriod: time.Hour})
	h.stake(t, alice, 1000, domain.TierLow)
	h.deposit(t, 500)

	ledgerBefore := h.ledger(t)
	posBefore := h.position(t, alice)
	compound := func() (*usecase.ClaimResult, error) {
		return h.staking.Compound(h.ctx, alice, usecase.ClaimRequest{Owner: alice, Product: base})
	}
	assertUntouched := func(t *testing.T) {
		t.Helper()
		assert.Equal(t, ledgerBefore, h.ledger(t))
		assert.Equal(t, posBefore, h.position(t, alice))
		assert.Equal(t, uint64(1000), h.balance(domain.StakingVault(base)))
		assert.Equal(t, uint64(500), h.balance(domain.RewardVault(base)))
	}

	_, err := compound()
	require.ErrorIs(t, err, domain.ErrStakePeriodTooShort)
	assertUntouched(t)

	h.clock.Advance(time.Hour)
	h.transfers.failAt = h.transfers.calls + 1
	_, err = compound()
	require.ErrorIs(t, err, domain.ErrTransferFailed)
	require.ErrorIs(t, err, errInjected)
	assertUntouched(t)

	h.transfers.failAt = 0
	res, err := compound()
	require.NoError(t, err)
	assert.Equal(t, uint64(500), res.Amount)
}

func TestProducts_KeepSeparateLedgers(t *testing.T) {
	h := newHarness(t, domain.Parameters{})
	lp := domain.ProductLP
	_, err := h.governance.Initialize(h.ctx, owner, usecase.InitializeRequest{
		Product:    lp,
		Owner:      owner,
		Governance: dao,
		Parameters: domain.Parameters{UtilizationMultiplier: 100},
	})
	require.NoError(t, err)

	h.stake(t, alice, 100, domain.TierLow)
	_, err = h.staking.Stake(h.ctx, bob, usecase.StakeRequest{Owner: bob, Product: lp, Amount: 300, Tier: domain.TierLow})
	require.NoError(t, err)
	lpBefore, err := h.staking.Ledger(h.ctx, lp)
	require.NoError(t, err)
	require.Equal(t, uint64(300), lpBefore.TotalStaked)

	baseLedger := h.deposit(t, 1000)
	assert.Equal(t, uint64(100), baseLedger.TotalStaked)
	assert.Equal(t, uint64(10_000_000_000), baseLedger.AccRewardPerShare)

	lpAfter, err := h.staking.Ledger(h.ctx, lp)
	require.NoError(t, err)
	assert.Equal(t, lpBefore, lpAfter)

	_, err = h.staking.Claim(h.ctx, bob, usecase.ClaimRequest{Owner: bob, Product: lp, Proof: []byte("ok")})
	require.ErrorIs(t, err, domain.ErrNoRewards)
	_, err = h.staking.Position(h.ctx, alice, lp)
	require.ErrorIs(t, err, domain.ErrPositionNotFound)

	assert.Equal(t, uint64(300), h.balance(domain.StakingVault(lp)))
	assert.Zero(t, h.balance(domain.RewardVault(lp)))
	assert.Equal(t, uint64(100), h.balance(domain.StakingVault(base)))
	assert.Equal(t, uint64(1000), h.balance(domain.RewardVault(base)))

	res, err := h.claim(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), res.Amount)
}
