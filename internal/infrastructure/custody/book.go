package custody

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vitos/yield_staking/internal/domain"
	"github.com/vitos/yield_staking/internal/fixedpoint"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// Book is an in-process custodial balance sheet. It implements
// domain.TransferService for a single node deployment and for tests.
type Book struct {
	mu       sync.Mutex
	balances map[domain.Account]uint64
}

func NewBook(seed map[domain.Account]uint64) *Book {
	b := &Book{balances: make(map[domain.Account]uint64, len(seed))}
	for acct, amount := range seed {
		b.balances[acct] = amount
	}
	return b
}

func (b *Book) Transfer(ctx context.Context, from, to domain.Account, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	have := b.balances[from]
	if have < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, have, amount)
	}
	credited, err := fixedpoint.Add(b.balances[to], amount)
	if err != nil {
		return err
	}
	b.balances[from] = have - amount
	b.balances[to] = credited
	return nil
}

// Credit mints amount into acct. Used for seeding and top-ups.
func (b *Book) Credit(acct domain.Account, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	credited, err := fixedpoint.Add(b.balances[acct], amount)
	if err != nil {
		return err
	}
	b.balances[acct] = credited
	return nil
}

func (b *Book) Balance(acct domain.Account) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[acct]
}

type Entry struct {
	Account domain.Account `json:"account"`
	Balance uint64         `json:"balance"`
}

// Snapshot lists nonzero balances ordered by account.
func (b *Book) Snapshot() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, 0, len(b.balances))
	for acct, bal := range b.balances {
		if bal > 0 {
			out = append(out, Entry{Account: acct, Balance: bal})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

// Total is the sum of every balance in the book.
func (b *Book) Total() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var total uint64
	for _, bal := range b.balances {
		var err error
		if total, err = fixedpoint.Add(total, bal); err != nil {
			return 0, err
		}
	}
	return total, nil
}
