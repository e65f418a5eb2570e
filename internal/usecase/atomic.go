package usecase

import (
	"context"
	"fmt"

	"github.com/vitos/yield_staking/internal/domain"
	"go.uber.org/zap"
)

type movement struct {
	from, to domain.Account
	amount   uint64
}

// transferPlan executes transfers inside a ledger transaction and remembers
// them so they can be reversed if the transaction does not commit.
type transferPlan struct {
	transfers domain.TransferService
	done      []movement
}

func (p *transferPlan) move(ctx context.Context, from, to domain.Account, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := p.transfers.Transfer(ctx, from, to, amount); err != nil {
		return fmt.Errorf("%w: %s -> %s (%d): %w", domain.ErrTransferFailed, from, to, amount, err)
	}
	p.done = append(p.done, movement{from: from, to: to, amount: amount})
	return nil
}

// compensate reverses executed transfers, newest first.
func (p *transferPlan) compensate(ctx context.Context, logger *zap.Logger) {
	for i := len(p.done) - 1; i >= 0; i-- {
		m := p.done[i]
		if err := p.transfers.Transfer(ctx, m.to, m.from, m.amount); err != nil {
			logger.Error("Failed to reverse transfer",
				zap.String("from", string(m.to)),
				zap.String("to", string(m.from)),
				zap.Uint64("amount", m.amount),
				zap.Error(err))
		}
	}
	p.done = nil
}

// runAtomic runs fn in one ledger transaction. Ledger writes and transfers
// made by fn are both undone when fn or the commit fails.
func runAtomic(
	ctx context.Context,
	store domain.LedgerStore,
	transfers domain.TransferService,
	logger *zap.Logger,
	fn func(tx domain.LedgerTx, plan *transferPlan) error,
) error {
	plan := &transferPlan{transfers: transfers}
	err := store.Update(ctx, func(tx domain.LedgerTx) error {
		return fn(tx, plan)
	})
	if err != nil {
		// transfers already applied must not outlive the discarded ledger write
		plan.compensate(context.WithoutCancel(ctx), logger)
		return err
	}
	return nil
}
