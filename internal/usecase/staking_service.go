package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vitos/yield_staking/internal/domain"
	"github.com/vitos/yield_staking/internal/fixedpoint"
	"go.uber.org/zap"
)

type StakeRequest struct {
	Owner   domain.Identity `json:"owner"`
	Product domain.Product  `json:"product"`
	Amount  uint64          `json:"amount"`
	Tier    domain.Tier     `json:"tier"`
}

type BatchStakeRequest struct {
	Owner   domain.Identity `json:"owner"`
	Product domain.Product  `json:"product"`
	Amounts []uint64        `json:"amounts"`
	Tier    domain.Tier     `json:"tier"`
}

type UnstakeRequest struct {
	Owner   domain.Identity `json:"owner"`
	Product domain.Product  `json:"product"`
	Amount  uint64          `json:"amount"`
}

type BatchUnstakeRequest struct {
	Owner   domain.Identity `json:"owner"`
	Product domain.Product  `json:"product"`
	Amounts []uint64        `json:"amounts"`
}

type UnstakeResult struct {
	Position *domain.Position `json:"position"`
	Payout   uint64           `json:"payout"`
	Penalty  uint64           `json:"penalty"`
}

type DepositFeeRequest struct {
	Depositor domain.Identity `json:"depositor"`
	Product   domain.Product  `json:"product"`
	Amount    uint64          `json:"amount"`
}

type ClaimRequest struct {
	Owner   domain.Identity `json:"owner"`
	Product domain.Product  `json:"product"`
	Proof   []byte          `json:"proof"`
}

type ClaimResult struct {
	Position *domain.Position `json:"position"`
	Amount   uint64           `json:"amount"`
}

// StakingService runs stake, unstake, fee deposit, claim and compound against
// the ledger store. Base and LP positions share every code path; the product
// only selects the ledger record and the vault accounts.
type StakingService struct {
	store     domain.LedgerStore
	transfers domain.TransferService
	auth      domain.Authorizer
	clock     domain.Clock
	proofs    domain.ProofVerifier
	events    domain.EventPublisher
	logger    *zap.Logger
}

func NewStakingService(
	store domain.LedgerStore,
	transfers domain.TransferService,
	auth domain.Authorizer,
	clock domain.Clock,
	proofs domain.ProofVerifier,
	events domain.EventPublisher,
	logger *zap.Logger,
) *StakingService {
	if events == nil {
		events = nopPublisher{}
	}
	return &StakingService{
		store:     store,
		transfers: transfers,
		auth:      auth,
		clock:     clock,
		proofs:    proofs,
		events:    events,
		logger:    logger,
	}
}

// Stake settles the position, pulls amount into the staking vault and resets
// the lockup window.
func (s *StakingService) Stake(ctx context.Context, caller domain.Identity, req StakeRequest) (*domain.Position, error) {
	if !req.Tier.Valid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidPoolType, req.Tier)
	}
	if err := s.authorize(ctx, caller, req.Owner, req.Product); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		pos    *domain.Position
		ledger *domain.GlobalLedger
	)
	err := runAtomic(ctx, s.store, s.transfers, s.logger, func(tx domain.LedgerTx, plan *transferPlan) error {
		var err error
		if ledger, err = tx.GetLedger(req.Product); err != nil {
			return err
		}
		if pos, err = loadOrOpen(tx, domain.PositionKey{Owner: req.Owner, Product: req.Product}); err != nil {
			return err
		}
		if _, err := settle(pos, ledger); err != nil {
			return err
		}
		if err := plan.move(ctx, req.Owner.Account(), domain.StakingVault(req.Product), req.Amount); err != nil {
			return err
		}
		if err := addStake(pos, ledger, req.Amount, now); err != nil {
			return err
		}
		pos.LastWithdrawalTime = now
		pos.Tier = req.Tier
		return putBoth(tx, ledger, pos)
	})
	if err != nil {
		s.logger.Warn("Stake failed", zap.String("owner", string(req.Owner)), zap.String("product", string(req.Product)),
			zap.Uint64("amount", req.Amount), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Staked", zap.String("owner", string(req.Owner)), zap.String("product", string(req.Product)),
		zap.Uint64("amount", req.Amount), zap.Uint8("tier", uint8(req.Tier)))
	s.publish(domain.EventStaked, ledger, req.Owner, req.Amount, 0, now)
	return pos, nil
}

// BatchStake stakes the sum of amounts as one stake.
func (s *StakingService) BatchStake(ctx context.Context, caller domain.Identity, req BatchStakeRequest) (*domain.Position, error) {
	total, err := fixedpoint.Sum(req.Amounts)
	if err != nil {
		return nil, err
	}
	return s.Stake(ctx, caller, StakeRequest{Owner: req.Owner, Product: req.Product, Amount: total, Tier: req.Tier})
}

// Unstake releases amount from the position. Inside the tier's lockup window
// the early-withdrawal penalty is moved to the reward vault and credited to the
// insurance fund.
func (s *StakingService) Unstake(ctx context.Context, caller domain.Identity, req UnstakeRequest) (*UnstakeResult, error) {
	if err := s.authorize(ctx, caller, req.Owner, req.Product); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		pos     *domain.Position
		ledger  *domain.GlobalLedger
		penalty uint64
		payout  uint64
	)
	err := runAtomic(ctx, s.store, s.transfers, s.logger, func(tx domain.LedgerTx, plan *transferPlan) error {
		var err error
		if ledger, err = tx.GetLedger(req.Product); err != nil {
			return err
		}
		if pos, err = tx.GetPosition(domain.PositionKey{Owner: req.Owner, Product: req.Product}); err != nil {
			return err
		}
		if req.Amount > pos.StakedAmount {
			return fmt.Errorf("%w: requested %d, staked %d", domain.ErrInsufficientStake, req.Amount, pos.StakedAmount)
		}
		if now.Sub(pos.LastWithdrawalTime) < ledger.MinWithdrawInterval {
			return fmt.Errorf("%w: last withdrawal at %s", domain.ErrWithdrawalTooFrequent, pos.LastWithdrawalTime.Format(time.RFC3339))
		}
		if _, err := settle(pos, ledger); err != nil {
			return err
		}

		pool, err := ledger.Pool(pos.Tier)
		if err != nil {
			return err
		}
		if now.Sub(pos.StakeTimestamp) < pool.LockupPeriod {
			if penalty, err = fixedpoint.Bps(req.Amount, ledger.EarlyWithdrawalPenaltyBps); err != nil {
				return err
			}
			if err := plan.move(ctx, domain.StakingVault(req.Product), domain.RewardVault(req.Product), penalty); err != nil {
				return err
			}
			if ledger.InsuranceFund, err = fixedpoint.Add(ledger.InsuranceFund, penalty); err != nil {
				return err
			}
		}
		if payout, err = fixedpoint.Sub(req.Amount, penalty); err != nil {
			return err
		}

		if pos.StakedAmount, err = fixedpoint.Sub(pos.StakedAmount, req.Amount); err != nil {
			return err
		}
		if ledger.TotalStaked, err = fixedpoint.Sub(ledger.TotalStaked, req.Amount); err != nil {
			return err
		}
		if err := rebaseline(pos, ledger); err != nil {
			return err
		}
		pos.LastWithdrawalTime = now

		if err := plan.move(ctx, domain.StakingVault(req.Product), req.Owner.Account(), payout); err != nil {
			return err
		}
		return putBoth(tx, ledger, pos)
	})
	if err != nil {
		s.logger.Warn("Unstake failed", zap.String("owner", string(req.Owner)), zap.String("product", string(req.Product)),
			zap.Uint64("amount", req.Amount), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Unstaked", zap.String("owner", string(req.Owner)), zap.String("product", string(req.Product)),
		zap.Uint64("payout", payout), zap.Uint64("penalty", penalty))
	s.publish(domain.EventUnstaked, ledger, req.Owner, payout, penalty, now)
	return &UnstakeResult{Position: pos, Payout: payout, Penalty: penalty}, nil
}

// BatchUnstake unstakes the sum of amounts as one unstake.
func (s *StakingService) BatchUnstake(ctx context.Context, caller domain.Identity, req BatchUnstakeRequest) (*UnstakeResult, error) {
	total, err := fixedpoint.Sum(req.Amounts)
	if err != nil {
		return nil, err
	}
	return s.Unstake(ctx, caller, UnstakeRequest{Owner: req.Owner, Product: req.Product, Amount: total})
}

// DepositFee moves fee revenue into the reward vault, skims the insurance cut
// and spreads the rest over the accumulator. With nothing staked the
// distributable part stays in the vault and the accumulator is left alone.
func (s *StakingService) DepositFee(ctx context.Context, caller domain.Identity, req DepositFeeRequest) (*domain.GlobalLedger, error) {
	if err := s.authorize(ctx, caller, req.Depositor, req.Product); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		ledger   *domain.GlobalLedger
		stranded bool
	)
	err := runAtomic(ctx, s.store, s.transfers, s.logger, func(tx domain.LedgerTx, plan *transferPlan) error {
		var err error
		if ledger, err = tx.GetLedger(req.Product); err != nil {
			return err
		}
		if err := plan.move(ctx, req.Depositor.Account(), domain.RewardVault(req.Product), req.Amount); err != nil {
			return err
		}

		cut, err := fixedpoint.Bps(req.Amount, ledger.InsuranceFeeBps)
		if err != nil {
			return err
		}
		distributable, err := fixedpoint.Sub(req.Amount, cut)
		if err != nil {
			return err
		}
		if ledger.InsuranceFund, err = fixedpoint.Add(ledger.InsuranceFund, cut); err != nil {
			return err
		}

		if ledger.TotalStaked > 0 {
			delta, err := fixedpoint.MulDiv(distributable, domain.RewardScale, ledger.TotalStaked)
			if err != nil {
				return err
			}
			if ledger.AccRewardPerShare, err = fixedpoint.Add(ledger.AccRewardPerShare, delta); err != nil {
				return err
			}
		} else {
			stranded = distributable > 0
		}
		ledger.LastFeeDepositTime = now
		return tx.PutLedger(ledger)
	})
	if err != nil {
		s.logger.Warn("Fee deposit failed", zap.String("depositor", string(req.Depositor)),
			zap.String("product", string(req.Product)), zap.Uint64("amount", req.Amount), zap.Error(err))
		return nil, err
	}

	if stranded {
		s.logger.Warn("Fee deposited with nothing staked; distributable part left in reward vault",
			zap.String("product", string(req.Product)), zap.Uint64("amount", req.Amount))
	}
	s.logger.Info("Fee deposited", zap.String("product", string(req.Product)), zap.Uint64("amount", req.Amount),
		zap.Uint64("acc_reward_per_share", ledger.AccRewardPerShare))
	s.publish(domain.EventFeeDeposited, ledger, req.Depositor, req.Amount, 0, now)
	return ledger, nil
}

// Claim pays the settled, multiplied reward to the owner.
func (s *StakingService) Claim(ctx context.Context, caller domain.Identity, req ClaimRequest) (*ClaimResult, error) {
	if err := s.authorize(ctx, caller, req.Owner, req.Product); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		pos    *domain.Position
		ledger *domain.GlobalLedger
		amount uint64
	)
	err := runAtomic(ctx, s.store, s.transfers, s.logger, func(tx domain.LedgerTx, plan *transferPlan) error {
		var err error
		if pos, ledger, amount, err = s.claimable(ctx, tx, req, now); err != nil {
			return err
		}
		if err := plan.move(ctx, domain.RewardVault(req.Product), req.Owner.Account(), amount); err != nil {
			return err
		}
		return tx.PutPosition(pos)
	})
	if err != nil {
		s.logger.Warn("Claim failed", zap.String("owner", string(req.Owner)), zap.String("product", string(req.Product)), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Rewards claimed", zap.String("owner", string(req.Owner)), zap.String("product", string(req.Product)),
		zap.Uint64("amount", amount))
	s.publish(domain.EventClaimed, ledger, req.Owner, amount, 0, now)
	return &ClaimResult{Position: pos, Amount: amount}, nil
}

// Compound claims exactly like Claim and restakes the claimed amount instead of
// paying it out.
func (s *StakingService) Compound(ctx context.Context, caller domain.Identity, req ClaimRequest) (*ClaimResult, error) {
	if err := s.authorize(ctx, caller, req.Owner, req.Product); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		pos    *domain.Position
		ledger *domain.GlobalLedger
		amount uint64
	)
	err := runAtomic(ctx, s.store, s.transfers, s.logger, func(tx domain.LedgerTx, plan *transferPlan) error {
		var err error
		if pos, ledger, amount, err = s.claimable(ctx, tx, req, now); err != nil {
			return err
		}
		if err := plan.move(ctx, domain.RewardVault(req.Product), domain.StakingVault(req.Product), amount); err != nil {
			return err
		}
		if err := addStake(pos, ledger, amount, now); err != nil {
			return err
		}
		return putBoth(tx, ledger, pos)
	})
	if err != nil {
		s.logger.Warn("Compound failed", zap.String("owner", string(req.Owner)), zap.String("product", string(req.Product)), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Rewards compounded", zap.String("owner", string(req.Owner)), zap.String("product", string(req.Product)),
		zap.Uint64("amount", amount), zap.Uint64("staked", pos.StakedAmount))
	s.publish(domain.EventCompounded, ledger, req.Owner, amount, 0, now)
	return &ClaimResult{Position: pos, Amount: amount}, nil
}

// SetTradeVolume records the externally measured trailing trade volume of a
// position. Only the ledger owner feeds this signal.
func (s *StakingService) SetTradeVolume(ctx context.Context, caller, owner domain.Identity, product domain.Product, volume uint64) (*domain.Position, error) {
	if !product.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidProduct, product)
	}

	now := s.clock.Now()
	var (
		pos    *domain.Position
		ledger *domain.GlobalLedger
	)
	err := s.store.Update(ctx, func(tx domain.LedgerTx) error {
		var err error
		if ledger, err = tx.GetLedger(product); err != nil {
			return err
		}
		if err := requireRole(ctx, s.auth, caller, ledger.Owner); err != nil {
			return err
		}
		if pos, err = tx.GetPosition(domain.PositionKey{Owner: owner, Product: product}); err != nil {
			return err
		}
		pos.TrailingTradeVolume = volume
		return tx.PutPosition(pos)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Trade volume updated", zap.String("owner", string(owner)), zap.Uint64("volume", volume))
	s.publish(domain.EventTradeVolumeSet, ledger, owner, volume, 0, now)
	return pos, nil
}

func (s *StakingService) Ledger(ctx context.Context, product domain.Product) (*domain.GlobalLedger, error) {
	var ledger *domain.GlobalLedger
	err := s.store.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		ledger, err = tx.GetLedger(product)
		return err
	})
	return ledger, err
}

func (s *StakingService) Position(ctx context.Context, owner domain.Identity, product domain.Product) (*domain.Position, error) {
	var pos *domain.Position
	err := s.store.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		pos, err = tx.GetPosition(domain.PositionKey{Owner: owner, Product: product})
		return err
	})
	return pos, err
}

// Positions lists every position of product ordered by owner.
func (s *StakingService) Positions(ctx context.Context, product domain.Product) ([]*domain.Position, error) {
	var positions []*domain.Position
	err := s.store.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		positions, err = tx.ListPositions(product)
		return err
	})
	return positions, err
}

// claimable runs the claim gates, settles and prices the reward, and leaves the
// position with no pending reward and a current baseline.
func (s *StakingService) claimable(ctx context.Context, tx domain.LedgerTx, req ClaimRequest, now time.Time) (*domain.Position, *domain.GlobalLedger, uint64, error) {
	ledger, err := tx.GetLedger(req.Product)
	if err != nil {
		return nil, nil, 0, err
	}
	pos, err := tx.GetPosition(domain.PositionKey{Owner: req.Owner, Product: req.Product})
	if err != nil {
		return nil, nil, 0, err
	}

	held := now.Sub(pos.StakeTimestamp)
	if held < ledger.CooldownPeriod {
		return nil, nil, 0, fmt.Errorf("%w: held %s of %s", domain.ErrStakePeriodTooShort, held, ledger.CooldownPeriod)
	}
	if since := now.Sub(ledger.LastFeeDepositTime); since < ledger.MinClaimDelay {
		return nil, nil, 0, fmt.Errorf("%w: last fee deposit %s ago", domain.ErrClaimTooSoon, since)
	}
	if !s.proofs.Verify(ctx, req.Proof) {
		return nil, nil, 0, domain.ErrInvalidProof
	}

	if _, err := settle(pos, ledger); err != nil {
		return nil, nil, 0, err
	}
	amount, err := applyMultipliers(pos.PendingRewards, held, ledger.UtilizationMultiplier, pos.TrailingTradeVolume)
	if err != nil {
		return nil, nil, 0, err
	}
	if amount == 0 {
		return nil, nil, 0, domain.ErrNoRewards
	}

	pos.PendingRewards = 0
	if err := rebaseline(pos, ledger); err != nil {
		return nil, nil, 0, err
	}
	return pos, ledger, amount, nil
}

func (s *StakingService) authorize(ctx context.Context, caller, subject domain.Identity, product domain.Product) error {
	if !product.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidProduct, product)
	}
	return s.auth.Authorize(ctx, caller, subject)
}

func (s *StakingService) publish(kind domain.EventKind, ledger *domain.GlobalLedger, subject domain.Identity, amount, penalty uint64, at time.Time) {
	s.events.Publish(newEvent(kind, ledger, subject, amount, penalty, at))
}

// addStake grows the position and the ledger total by amount and restarts the
// position's lockup window.
func addStake(pos *domain.Position, ledger *domain.GlobalLedger, amount uint64, now time.Time) error {
	var err error
	if pos.StakedAmount, err = fixedpoint.Add(pos.StakedAmount, amount); err != nil {
		return err
	}
	if ledger.TotalStaked, err = fixedpoint.Add(ledger.TotalStaked, amount); err != nil {
		return err
	}
	if err := rebaseline(pos, ledger); err != nil {
		return err
	}
	pos.StakeTimestamp = now
	return nil
}

func loadOrOpen(tx domain.LedgerTx, key domain.PositionKey) (*domain.Position, error) {
	pos, err := tx.GetPosition(key)
	if errors.Is(err, domain.ErrPositionNotFound) {
		return &domain.Position{Owner: key.Owner, Product: key.Product}, nil
	}
	return pos, err
}

func putBoth(tx domain.LedgerTx, ledger *domain.GlobalLedger, pos *domain.Position) error {
	if err := tx.PutLedger(ledger); err != nil {
		return err
	}
	return tx.PutPosition(pos)
}
