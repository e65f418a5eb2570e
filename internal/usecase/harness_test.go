package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vitos/yield_staking/internal/domain"
	"github.com/vitos/yield_staking/internal/infrastructure/auth"
	"github.com/vitos/yield_staking/internal/infrastructure/clock"
	"github.com/vitos/yield_staking/internal/infrastructure/custody"
	"github.com/vitos/yield_staking/internal/infrastructure/proof"
	"github.com/vitos/yield_staking/internal/infrastructure/storage"
	"github.com/vitos/yield_staking/internal/usecase"
	"go.uber.org/zap"
)

var (
	base  = domain.ProductBase
	start = time.Unix(1_700_000_000, 0).UTC()
)

const (
	alice    domain.Identity = "alice"
	bob      domain.Identity = "bob"
	treasury domain.Identity = "treasury"
	owner    domain.Identity = "owner"
	dao      domain.Identity = "dao"
)

var errInjected = errors.New("injected transfer failure")

// flakyTransfers fails the failAt-th transfer (1-based); zero never fails.
type flakyTransfers struct {
	inner  *custody.Book
	failAt int
	calls  int
}

func (f *flakyTransfers) Transfer(ctx context.Context, from, to domain.Account, amount uint64) error {
	f.calls++
	if f.calls == f.failAt {
		return errInjected
	}
	return f.inner.Transfer(ctx, from, to, amount)
}

type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) Publish(evt domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
}

func (l *eventLog) kinds() []domain.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.EventKind, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Kind)
	}
	return out
}

type harness struct {
	ctx       context.Context
	store     *storage.MemoryStore
	book      *custody.Book
	transfers *flakyTransfers
	clock     *clock.Fixed
	events    *eventLog
	proofOK   bool

	staking    *usecase.StakingService
	governance *usecase.GovernanceService
}

// newHarness initializes the base ledger with params. Utilization defaults to
// neutral when params leaves it zero.
func newHarness(t *testing.T, params domain.Parameters) *harness {
	t.Helper()
	if params.UtilizationMultiplier == 0 {
		params.UtilizationMultiplier = 100
	}
	h := &harness{
		ctx:   context.Background(),
		store: storage.NewMemoryStore(),
		book: custody.NewBook(map[domain.Account]uint64{
			alice.Account():    1_000_000,
			bob.Account():      1_000_000,
			treasury.Account(): 1_000_000_000_000,
		}),
		clock:   &clock.Fixed{T: start},
		events:  &eventLog{},
		proofOK: true,
	}
	h.transfers = &flakyTransfers{inner: h.book}
	verifier := proof.Func(func(context.Context, []byte) bool { return h.proofOK })
	authz := auth.NewDirect()
	logger := zap.NewNop()

	h.staking = usecase.NewStakingService(h.store, h.transfers, authz, h.clock, verifier, h.events, logger)
	h.governance = usecase.NewGovernanceService(h.store, authz, h.clock, h.events, logger)

	_, err := h.governance.Initialize(h.ctx, owner, usecase.InitializeRequest{
		Product:    base,
		Owner:      owner,
		Governance: dao,
		Parameters: params,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) stake(t *testing.T, who domain.Identity, amount uint64, tier domain.Tier) *domain.Position {
	t.Helper()
	pos, err := h.staking.Stake(h.ctx, who, usecase.StakeRequest{Owner: who, Product: base, Amount: amount, Tier: tier})
	require.NoError(t, err)
	return pos
}

func (h *harness) deposit(t *testing.T, amount uint64) *domain.GlobalLedger {
	t.Helper()
	ledger, err := h.staking.DepositFee(h.ctx, treasury, usecase.DepositFeeRequest{Depositor: treasury, Product: base, Amount: amount})
	require.NoError(t, err)
	return ledger
}

func (h *harness) claim(who domain.Identity) (*usecase.ClaimResult, error) {
	return h.staking.Claim(h.ctx, who, usecase.ClaimRequest{Owner: who, Product: base, Proof: []byte("ok")})
}

func (h *harness) unstake(who domain.Identity, amount uint64) (*usecase.UnstakeResult, error) {
	return h.staking.Unstake(h.ctx, who, usecase.UnstakeRequest{Owner: who, Product: base, Amount: amount})
}

func (h *harness) ledger(t *testing.T) *domain.GlobalLedger {
	t.Helper()
	ledger, err := h.staking.Ledger(h.ctx, base)
	require.NoError(t, err)
	return ledger
}

func (h *harness) position(t *testing.T, who domain.Identity) *domain.Position {
	t.Helper()
	pos, err := h.staking.Position(h.ctx, who, base)
	require.NoError(t, err)
	return pos
}

func (h *harness) balance(acct domain.Account) uint64 {
	return h.book.Balance(acct)
}
