package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/yield_staking/internal/domain"
	"github.com/vitos/yield_staking/internal/fixedpoint"
	"go.uber.org/zap"
)

// unixEpoch is the fee deposit time of a fresh ledger.
var unixEpoch = time.Unix(0, 0).UTC()

type InitializeRequest struct {
	Product    domain.Product    `json:"product"`
	Owner      domain.Identity   `json:"owner"`
	Governance domain.Identity   `json:"governance"`
	Parameters domain.Parameters `json:"parameters"`
}

type VoteRequest struct {
	Voter      domain.Identity `json:"voter"`
	Product    domain.Product  `json:"product"`
	ProposalID string          `json:"proposal_id"`
}

// GovernanceService owns ledger creation, parameter updates and proposal voting.
type GovernanceService struct {
	store  domain.LedgerStore
	auth   domain.Authorizer
	clock  domain.Clock
	events domain.EventPublisher
	logger *zap.Logger
}

func NewGovernanceService(
	store domain.LedgerStore,
	auth domain.Authorizer,
	clock domain.Clock,
	events domain.EventPublisher,
	logger *zap.Logger,
) *GovernanceService {
	if events == nil {
		events = nopPublisher{}
	}
	return &GovernanceService{
		store:  store,
		auth:   auth,
		clock:  clock,
		events: events,
		logger: logger,
	}
}

// Initialize creates the ledger of a product. A zero pool table is replaced by
// domain.DefaultPools. Durations are truncated to whole seconds.
func (s *GovernanceService) Initialize(ctx context.Context, caller domain.Identity, req InitializeRequest) (*domain.GlobalLedger, error) {
	if !req.Product.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidProduct, req.Product)
	}
	if err := s.auth.Authorize(ctx, caller, req.Owner); err != nil {
		return nil, err
	}

	params := req.Parameters.WholeSeconds()
	if params.Pools == ([domain.NumTiers]domain.PoolConfig{}) {
		params.Pools = domain.DefaultPools()
	}
	ledger := &domain.GlobalLedger{
		Product:            req.Product,
		LastFeeDepositTime: unixEpoch,
		Owner:              req.Owner,
		Governance:         req.Governance,
		Parameters:         params,
	}

	err := s.store.Update(ctx, func(tx domain.LedgerTx) error {
		_, err := tx.GetLedger(req.Product)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", domain.ErrAlreadyInitialized, req.Product)
		case !errors.Is(err, domain.ErrLedgerNotInitialized):
			return err
		}
		return tx.PutLedger(ledger)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Ledger initialized", zap.String("product", string(req.Product)),
		zap.String("owner", string(req.Owner)), zap.String("governance", string(req.Governance)))
	s.events.Publish(newEvent(domain.EventInitialized, ledger, req.Owner, 0, 0, s.clock.Now()))
	return ledger, nil
}

// UpdateParameters replaces every governance-mutable field of the ledger.
// Values are not range checked; governance is trusted. Durations are truncated
// to whole seconds like in Initialize.
func (s *GovernanceService) UpdateParameters(ctx context.Context, caller domain.Identity, product domain.Product, params domain.Parameters) (*domain.GlobalLedger, error) {
	return s.updateLedger(ctx, caller, product, func(ledger *domain.GlobalLedger) {
		ledger.Parameters = params.WholeSeconds()
	})
}

func (s *GovernanceService) UpdateUtilization(ctx context.Context, caller domain.Identity, product domain.Product, multiplier uint64) (*domain.GlobalLedger, error) {
	return s.updateLedger(ctx, caller, product, func(ledger *domain.GlobalLedger) {
		ledger.UtilizationMultiplier = multiplier
	})
}

func (s *GovernanceService) updateLedger(ctx context.Context, caller domain.Identity, product domain.Product, apply func(*domain.GlobalLedger)) (*domain.GlobalLedger, error) {
	if !product.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidProduct, product)
	}

	var ledger *domain.GlobalLedger
	err := s.store.Update(ctx, func(tx domain.LedgerTx) error {
		var err error
		if ledger, err = tx.GetLedger(product); err != nil {
			return err
		}
		if err := requireRole(ctx, s.auth, caller, ledger.Governance); err != nil {
			return err
		}
		apply(ledger)
		return tx.PutLedger(ledger)
	})
	if err != nil {
		s.logger.Warn("Parameter update rejected", zap.String("caller", string(caller)), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Parameters updated", zap.String("product", string(product)),
		zap.Uint64("utilization_multiplier", ledger.UtilizationMultiplier))
	s.events.Publish(newEvent(domain.EventParametersUpdated, ledger, caller, 0, 0, s.clock.Now()))
	return ledger, nil
}

// SubmitProposal records a new proposal with zero vote weight.
func (s *GovernanceService) SubmitProposal(ctx context.Context, caller, proposer domain.Identity, payload []byte) (*domain.Proposal, error) {
	if err := s.auth.Authorize(ctx, caller, proposer); err != nil {
		return nil, err
	}

	proposal := &domain.Proposal{
		ID:        uuid.NewString(),
		Proposer:  proposer,
		Payload:   payload,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.Update(ctx, func(tx domain.LedgerTx) error {
		return tx.PutProposal(proposal)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("Proposal submitted", zap.String("id", proposal.ID), zap.String("proposer", string(proposer)))
	s.events.Publish(domain.Event{Kind: domain.EventProposalSubmitted, Subject: proposer, ProposalID: proposal.ID, At: proposal.CreatedAt})
	return proposal, nil
}

// VoteProposal adds the voter's stake, read now, to the proposal weight.
// Nothing prevents the same voter from voting again.
func (s *GovernanceService) VoteProposal(ctx context.Context, caller domain.Identity, req VoteRequest) (*domain.Proposal, error) {
	if req.Product == "" {
		req.Product = domain.ProductBase
	}
	if !req.Product.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidProduct, req.Product)
	}
	if err := s.auth.Authorize(ctx, caller, req.Voter); err != nil {
		return nil, err
	}

	var (
		proposal *domain.Proposal
		weight   uint64
	)
	err := s.store.Update(ctx, func(tx domain.LedgerTx) error {
		var err error
		if proposal, err = tx.GetProposal(req.ProposalID); err != nil {
			return err
		}
		if proposal.Executed {
			return fmt.Errorf("%w: %s", domain.ErrProposalExecuted, proposal.ID)
		}
		pos, err := tx.GetPosition(domain.PositionKey{Owner: req.Voter, Product: req.Product})
		if err != nil {
			return err
		}
		weight = pos.StakedAmount
		if proposal.VoteWeight, err = fixedpoint.Add(proposal.VoteWeight, weight); err != nil {
			return err
		}
		return tx.PutProposal(proposal)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Vote recorded", zap.String("proposal", proposal.ID), zap.String("voter", string(req.Voter)),
		zap.Uint64("weight", weight), zap.Uint64("total", proposal.VoteWeight))
	s.events.Publish(domain.Event{Kind: domain.EventVoted, Product: req.Product, Subject: req.Voter,
		Amount: weight, ProposalID: proposal.ID, At: s.clock.Now()})
	return proposal, nil
}

func (s *GovernanceService) Proposal(ctx context.Context, id string) (*domain.Proposal, error) {
	var proposal *domain.Proposal
	err := s.store.View(ctx, func(tx domain.LedgerTx) error {
		var err error
		proposal, err = tx.GetProposal(id)
		return err
	})
	return proposal, err
}

// requireRole checks that caller is the identity holding role and controls it.
func requireRole(ctx context.Context, auth domain.Authorizer, caller, role domain.Identity) error {
	if caller != role {
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, caller)
	}
	return auth.Authorize(ctx, caller, role)
}
