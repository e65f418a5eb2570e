package domain

import (
	"context"
	"time"
)

// TransferService moves value between custodial balances. A nil error means the
// movement was applied exactly once.
type TransferService interface {
	Transfer(ctx context.Context, from, to Account, amount uint64) error
}

// Authorizer confirms that caller controls subject.
type Authorizer interface {
	Authorize(ctx context.Context, caller, subject Identity) error
}

// Clock is the second-resolution time source.
type Clock interface {
	Now() time.Time
}

// ProofVerifier checks the opaque anti-manipulation proof attached to a claim.
type ProofVerifier interface {
	Verify(ctx context.Context, proof []byte) bool
}

// LedgerStore provides atomic read-modify-write over ledger records.
// Update runs fn exactly once; if fn returns an error nothing it wrote is kept.
// Updates against one store are serialized.
type LedgerStore interface {
	Update(ctx context.Context, fn func(tx LedgerTx) error) error
	View(ctx context.Context, fn func(tx LedgerTx) error) error
	Close() error
}

// LedgerTx is the record set visible inside one transaction.
type LedgerTx interface {
	GetLedger(product Product) (*GlobalLedger, error)
	// PutLedger rejects a ledger whose Version differs from the stored one
	// with ErrStaleLedger and increments Version on success.
	PutLedger(ledger *GlobalLedger) error

	GetPosition(key PositionKey) (*Position, error)
	PutPosition(pos *Position) error
	// ListPositions returns the positions of product ordered by owner.
	ListPositions(product Product) ([]*Position, error)

	GetProposal(id string) (*Proposal, error)
	PutProposal(p *Proposal) error
}

// EventPublisher receives notifications of committed operations.
type EventPublisher interface {
	Publish(evt Event)
}
