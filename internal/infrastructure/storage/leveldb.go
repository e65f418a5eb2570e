package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/vitos/yield_staking/internal/domain"
)

// LevelDBStore persists ledger records as binary values in LevelDB.
// Updates run inside a LevelDB transaction; views read a snapshot.
//
// Key layout:
//
//	ledger/<product>
//	position/<product>/<owner>
//	proposal/<id>
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens the database at path. An empty path opens a
// volatile in-memory database.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(lvlstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Update(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tr, err := s.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&levelTx{reader: tr, tr: tr}); err != nil {
		tr.Discard()
		return err
	}
	if err := tr.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *LevelDBStore) View(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return err
	}
	defer snap.Release()
	return fn(&levelTx{reader: snap})
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

type levelReader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

// levelTx writes through tr; a nil tr marks a snapshot view.
type levelTx struct {
	reader levelReader
	tr     *leveldb.Transaction
}

func ledgerKey(product domain.Product) []byte {
	return []byte("ledger/" + string(product))
}

func positionPrefix(product domain.Product) []byte {
	return []byte("position/" + string(product) + "/")
}

func positionKey(key domain.PositionKey) []byte {
	return append(positionPrefix(key.Product), string(key.Owner)...)
}

func proposalKey(id string) []byte {
	return []byte("proposal/" + id)
}

func (t *levelTx) get(key []byte) ([]byte, bool, error) {
	v, err := t.reader.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (t *levelTx) put(key, value []byte) error {
	if t.tr == nil {
		return errReadOnly
	}
	return t.tr.Put(key, value, nil)
}

func (t *levelTx) GetLedger(product domain.Product) (*domain.GlobalLedger, error) {
	v, ok, err := t.get(ledgerKey(product))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerNotInitialized, product)
	}
	return decodeLedger(v)
}

func (t *levelTx) PutLedger(ledger *domain.GlobalLedger) error {
	if t.tr == nil {
		return errReadOnly
	}
	var stored uint64
	v, exists, err := t.get(ledgerKey(ledger.Product))
	if err != nil {
		return err
	}
	if exists {
		current, err := decodeLedger(v)
		if err != nil {
			return err
		}
		stored = current.Version
	}
	if err := bumpVersion(ledger, stored, exists); err != nil {
		return err
	}
	if err := t.put(ledgerKey(ledger.Product), encodeLedger(ledger)); err != nil {
		return fmt.Errorf("failed to save ledger %s: %w", ledger.Product, err)
	}
	return nil
}

func (t *levelTx) GetPosition(key domain.PositionKey) (*domain.Position, error) {
	v, ok, err := t.get(positionKey(key))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrPositionNotFound, key.Product, key.Owner)
	}
	return decodePosition(v)
}

func (t *levelTx) PutPosition(pos *domain.Position) error {
	if err := t.put(positionKey(pos.Key()), encodePosition(pos)); err != nil {
		return fmt.Errorf("failed to save position %s/%s: %w", pos.Product, pos.Owner, err)
	}
	return nil
}

func (t *levelTx) ListPositions(product domain.Product) ([]*domain.Position, error) {
	it := t.reader.NewIterator(util.BytesPrefix(positionPrefix(product)), nil)
	defer it.Release()

	var out []*domain.Position
	for it.Next() {
		p, err := decodePosition(it.Value())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", it.Key(), err)
		}
		out = append(out, p)
	}
	return out, it.Error()
}

func (t *levelTx) GetProposal(id string) (*domain.Proposal, error) {
	v, ok, err := t.get(proposalKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProposalNotFound, id)
	}
	return decodeProposal(v)
}

func (t *levelTx) PutProposal(p *domain.Proposal) error {
	if err := t.put(proposalKey(p.ID), encodeProposal(p)); err != nil {
		return fmt.Errorf("failed to save proposal %s: %w", p.ID, err)
	}
	return nil
}
