package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vitos/yield_staking/internal/domain"
)

var errReadOnly = errors.New("write in read-only transaction")

// MemoryStore keeps ledger records in process memory. Updates hold an
// exclusive lock and stage writes until fn succeeds.
type MemoryStore struct {
	mu        sync.RWMutex
	ledgers   map[domain.Product]domain.GlobalLedger
	positions map[domain.PositionKey]domain.Position
	proposals map[string]domain.Proposal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledgers:   make(map[domain.Product]domain.GlobalLedger),
		positions: make(map[domain.PositionKey]domain.Position),
		proposals: make(map[string]domain.Proposal),
	}
}

func (s *MemoryStore) Update(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.newTx(false)
	if err := fn(tx); err != nil {
		return err
	}
	for k, v := range tx.ledgers {
		s.ledgers[k] = v
	}
	for k, v := range tx.positions {
		s.positions[k] = v
	}
	for k, v := range tx.proposals {
		s.proposals[k] = v
	}
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.newTx(true))
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) newTx(readOnly bool) *memoryTx {
	return &memoryTx{
		store:     s,
		readOnly:  readOnly,
		ledgers:   make(map[domain.Product]domain.GlobalLedger),
		positions: make(map[domain.PositionKey]domain.Position),
		proposals: make(map[string]domain.Proposal),
	}
}

type memoryTx struct {
	store    *MemoryStore
	readOnly bool

	ledgers   map[domain.Product]domain.GlobalLedger
	positions map[domain.PositionKey]domain.Position
	proposals map[string]domain.Proposal
}

func (t *memoryTx) ledger(product domain.Product) (domain.GlobalLedger, bool) {
	if l, ok := t.ledgers[product]; ok {
		return l, true
	}
	l, ok := t.store.ledgers[product]
	return l, ok
}

func (t *memoryTx) GetLedger(product domain.Product) (*domain.GlobalLedger, error) {
	l, ok := t.ledger(product)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerNotInitialized, product)
	}
	return &l, nil
}

func (t *memoryTx) PutLedger(ledger *domain.GlobalLedger) error {
	if t.readOnly {
		return errReadOnly
	}
	stored, ok := t.ledger(ledger.Product)
	if err := bumpVersion(ledger, stored.Version, ok); err != nil {
		return err
	}
	t.ledgers[ledger.Product] = *ledger
	return nil
}

func (t *memoryTx) GetPosition(key domain.PositionKey) (*domain.Position, error) {
	if p, ok := t.positions[key]; ok {
		return &p, nil
	}
	if p, ok := t.store.positions[key]; ok {
		return &p, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", domain.ErrPositionNotFound, key.Product, key.Owner)
}

func (t *memoryTx) PutPosition(pos *domain.Position) error {
	if t.readOnly {
		return errReadOnly
	}
	t.positions[pos.Key()] = *pos
	return nil
}

func (t *memoryTx) ListPositions(product domain.Product) ([]*domain.Position, error) {
	merged := make(map[domain.Identity]domain.Position)
	for k, p := range t.store.positions {
		if k.Product == product {
			merged[k.Owner] = p
		}
	}
	for k, p := range t.positions {
		if k.Product == product {
			merged[k.Owner] = p
		}
	}
	out := make([]*domain.Position, 0, len(merged))
	for _, p := range merged {
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out, nil
}

func (t *memoryTx) GetProposal(id string) (*domain.Proposal, error) {
	if p, ok := t.proposals[id]; ok {
		return copyProposal(p), nil
	}
	if p, ok := t.store.proposals[id]; ok {
		return copyProposal(p), nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrProposalNotFound, id)
}

func (t *memoryTx) PutProposal(p *domain.Proposal) error {
	if t.readOnly {
		return errReadOnly
	}
	t.proposals[p.ID] = *copyProposal(*p)
	return nil
}
