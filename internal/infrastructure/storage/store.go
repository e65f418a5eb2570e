package storage

import (
	"fmt"

	"github.com/vitos/yield_staking/internal/domain"
)

// Open returns the ledger store for a config driver name.
func Open(driver, path string) (domain.LedgerStore, error) {
	switch driver {
	case "sqlite":
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "leveldb":
		s, err := NewLevelDBStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// bumpVersion enforces the optimistic version of a ledger write: the candidate
// must carry the stored version (0 when nothing is stored yet).
func bumpVersion(ledger *domain.GlobalLedger, stored uint64, exists bool) error {
	if !exists {
		stored = 0
	}
	if ledger.Version != stored {
		return fmt.Errorf("%w: %s has version %d, write carries %d", domain.ErrStaleLedger, ledger.Product, stored, ledger.Version)
	}
	ledger.Version++
	return nil
}

func copyProposal(p domain.Proposal) *domain.Proposal {
	if p.Payload != nil {
		p.Payload = append([]byte(nil), p.Payload...)
	}
	return &p
}
