package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/yield_staking/internal/domain"
)

// SQLiteStore persists ledger records in SQLite. The pool is limited to one
// connection so every transaction is serialized.
//
// SQLite integers are signed; uint64 amounts are stored bit-for-bit as int64.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ledgers (
			product TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			total_staked INTEGER NOT NULL,
			acc_reward_per_share INTEGER NOT NULL,
			last_fee_deposit_time INTEGER NOT NULL,
			insurance_fund INTEGER NOT NULL,
			owner TEXT NOT NULL,
			governance TEXT NOT NULL,
			cooldown_period INTEGER NOT NULL,
			min_withdraw_interval INTEGER NOT NULL,
			min_claim_delay INTEGER NOT NULL,
			early_withdrawal_penalty_bps INTEGER NOT NULL,
			insurance_fee_bps INTEGER NOT NULL,
			utilization_multiplier INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pool_configs (
			product TEXT NOT NULL REFERENCES ledgers(product),
			tier INTEGER NOT NULL,
			lockup_period INTEGER NOT NULL,
			apr_multiplier INTEGER NOT NULL,
			fee_bps INTEGER NOT NULL,
			PRIMARY KEY (product, tier)
		);`,
		`CREATE TABLE IF NOT EXISTS positions (
			owner TEXT NOT NULL,
			product TEXT NOT NULL,
			staked_amount INTEGER NOT NULL,
			reward_debt INTEGER NOT NULL,
			pending_rewards INTEGER NOT NULL,
			stake_timestamp INTEGER NOT NULL,
			last_withdrawal_time INTEGER NOT NULL,
			tier INTEGER NOT NULL,
			trailing_trade_volume INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (owner, product)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_product ON positions(product);`,
		`CREATE TABLE IF NOT EXISTS proposals (
			id TEXT PRIMARY KEY,
			proposer TEXT NOT NULL,
			payload BLOB,
			created_at INTEGER NOT NULL,
			vote_weight INTEGER NOT NULL,
			executed BOOLEAN NOT NULL DEFAULT 0
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	return s.run(ctx, false, fn)
}

func (s *SQLiteStore) View(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	return s.run(ctx, true, fn)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) run(ctx context.Context, readOnly bool, fn func(tx domain.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&sqliteTx{ctx: ctx, tx: tx, readOnly: readOnly}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if readOnly {
		return tx.Rollback()
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqliteTx struct {
	ctx      context.Context
	tx       *sql.Tx
	readOnly bool
}

func (t *sqliteTx) GetLedger(product domain.Product) (*domain.GlobalLedger, error) {
	query := `SELECT product, version, total_staked, acc_reward_per_share, last_fee_deposit_time, insurance_fund,
			  owner, governance, cooldown_period, min_withdraw_interval, min_claim_delay,
			  early_withdrawal_penalty_bps, insurance_fee_bps, utilization_multiplier
			  FROM ledgers WHERE product = ?`
	row := t.tx.QueryRowContext(t.ctx, query, product)

	var (
		l                                               domain.GlobalLedger
		version, total, acc, insurance                  int64
		lastFee, cooldown, withdrawInterval, claimDelay int64
		penaltyBps, insuranceBps, utilization           int64
	)
	err := row.Scan(&l.Product, &version, &total, &acc, &lastFee, &insurance,
		&l.Owner, &l.Governance, &cooldown, &withdrawInterval, &claimDelay,
		&penaltyBps, &insuranceBps, &utilization)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerNotInitialized, product)
	}
	if err != nil {
		return nil, err
	}
	l.Version = uint64(version)
	l.TotalStaked = uint64(total)
	l.AccRewardPerShare = uint64(acc)
	l.LastFeeDepositTime = fromUnix(lastFee)
	l.InsuranceFund = uint64(insurance)
	l.CooldownPeriod = fromSeconds(cooldown)
	l.MinWithdrawInterval = fromSeconds(withdrawInterval)
	l.MinClaimDelay = fromSeconds(claimDelay)
	l.EarlyWithdrawalPenaltyBps = uint64(penaltyBps)
	l.InsuranceFeeBps = uint64(insuranceBps)
	l.UtilizationMultiplier = uint64(utilization)

	rows, err := t.tx.QueryContext(t.ctx, `SELECT tier, lockup_period, apr_multiplier, fee_bps FROM pool_configs WHERE product = ?`, product)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var tier, lockup, apr, fee int64
		if err := rows.Scan(&tier, &lockup, &apr, &fee); err != nil {
			return nil, err
		}
		if tier < 0 || tier >= domain.NumTiers {
			return nil, fmt.Errorf("%w: stored tier %d for %s", domain.ErrInvalidPoolType, tier, product)
		}
		l.Pools[tier] = domain.PoolConfig{LockupPeriod: fromSeconds(lockup), APRMultiplier: uint64(apr), FeeBps: uint64(fee)}
	}
	return &l, rows.Err()
}

func (t *sqliteTx) PutLedger(ledger *domain.GlobalLedger) error {
	if t.readOnly {
		return errReadOnly
	}
	var stored int64
	err := t.tx.QueryRowContext(t.ctx, `SELECT version FROM ledgers WHERE product = ?`, ledger.Product).Scan(&stored)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err := bumpVersion(ledger, uint64(stored), exists); err != nil {
		return err
	}

	query := `INSERT INTO ledgers (product, version, total_staked, acc_reward_per_share, last_fee_deposit_time, insurance_fund,
			  owner, governance, cooldown_period, min_withdraw_interval, min_claim_delay,
			  early_withdrawal_penalty_bps, insurance_fee_bps, utilization_multiplier)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(product) DO UPDATE SET
			  version=excluded.version,
			  total_staked=excluded.total_staked,
			  acc_reward_per_share=excluded.acc_reward_per_share,
			  last_fee_deposit_time=excluded.last_fee_deposit_time,
			  insurance_fund=excluded.insurance_fund,
			  owner=excluded.owner,
			  governance=excluded.governance,
			  cooldown_period=excluded.cooldown_period,
			  min_withdraw_interval=excluded.min_withdraw_interval,
			  min_claim_delay=excluded.min_claim_delay,
			  early_withdrawal_penalty_bps=excluded.early_withdrawal_penalty_bps,
			  insurance_fee_bps=excluded.insurance_fee_bps,
			  utilization_multiplier=excluded.utilization_multiplier`
	if _, err := t.tx.ExecContext(t.ctx, query,
		ledger.Product, int64(ledger.Version), int64(ledger.TotalStaked), int64(ledger.AccRewardPerShare),
		ledger.LastFeeDepositTime.Unix(), int64(ledger.InsuranceFund), ledger.Owner, ledger.Governance,
		toSeconds(ledger.CooldownPeriod), toSeconds(ledger.MinWithdrawInterval), toSeconds(ledger.MinClaimDelay),
		int64(ledger.EarlyWithdrawalPenaltyBps), int64(ledger.InsuranceFeeBps), int64(ledger.UtilizationMultiplier)); err != nil {
		return fmt.Errorf("failed to save ledger %s: %w", ledger.Product, err)
	}

	for tier, pool := range ledger.Pools {
		query := `INSERT INTO pool_configs (product, tier, lockup_period, apr_multiplier, fee_bps)
				  VALUES (?, ?, ?, ?, ?)
				  ON CONFLICT(product, tier) DO UPDATE SET
				  lockup_period=excluded.lockup_period,
				  apr_multiplier=excluded.apr_multiplier,
				  fee_bps=excluded.fee_bps`
		if _, err := t.tx.ExecContext(t.ctx, query,
			ledger.Product, tier, toSeconds(pool.LockupPeriod), int64(pool.APRMultiplier), int64(pool.FeeBps)); err != nil {
			return fmt.Errorf("failed to save pool %d of %s: %w", tier, ledger.Product, err)
		}
	}
	return nil
}

const positionColumns = `owner, product, staked_amount, reward_debt, pending_rewards, stake_timestamp, last_withdrawal_time, tier, trailing_trade_volume`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*domain.Position, error) {
	var (
		p                             domain.Position
		staked, debt, pending, volume int64
		stakedAt, withdrawnAt         int64
		tier                          uint8
	)
	if err := row.Scan(&p.Owner, &p.Product, &staked, &debt, &pending, &stakedAt, &withdrawnAt, &tier, &volume); err != nil {
		return nil, err
	}
	p.StakedAmount = uint64(staked)
	p.RewardDebt = uint64(debt)
	p.PendingRewards = uint64(pending)
	p.StakeTimestamp = fromUnix(stakedAt)
	p.LastWithdrawalTime = fromUnix(withdrawnAt)
	p.Tier = domain.Tier(tier)
	p.TrailingTradeVolume = uint64(volume)
	return &p, nil
}

func (t *sqliteTx) GetPosition(key domain.PositionKey) (*domain.Position, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+positionColumns+` FROM positions WHERE owner = ? AND product = ?`, key.Owner, key.Product)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrPositionNotFound, key.Product, key.Owner)
	}
	return p, err
}

func (t *sqliteTx) ListPositions(product domain.Product) ([]*domain.Position, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT `+positionColumns+` FROM positions WHERE product = ? ORDER BY owner`, product)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *sqliteTx) PutPosition(pos *domain.Position) error {
	if t.readOnly {
		return errReadOnly
	}
	query := `INSERT INTO positions (` + positionColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(owner, product) DO UPDATE SET
			  staked_amount=excluded.staked_amount,
			  reward_debt=excluded.reward_debt,
			  pending_rewards=excluded.pending_rewards,
			  stake_timestamp=excluded.stake_timestamp,
			  last_withdrawal_time=excluded.last_withdrawal_time,
			  tier=excluded.tier,
			  trailing_trade_volume=excluded.trailing_trade_volume`
	_, err := t.tx.ExecContext(t.ctx, query,
		pos.Owner, pos.Product, int64(pos.StakedAmount), int64(pos.RewardDebt), int64(pos.PendingRewards),
		pos.StakeTimestamp.Unix(), pos.LastWithdrawalTime.Unix(), uint8(pos.Tier), int64(pos.TrailingTradeVolume))
	if err != nil {
		return fmt.Errorf("failed to save position %s/%s: %w", pos.Product, pos.Owner, err)
	}
	return nil
}

func (t *sqliteTx) GetProposal(id string) (*domain.Proposal, error) {
	query := `SELECT id, proposer, payload, created_at, vote_weight, executed FROM proposals WHERE id = ?`
	row := t.tx.QueryRowContext(t.ctx, query, id)

	var (
		p                 domain.Proposal
		createdAt, weight int64
	)
	err := row.Scan(&p.ID, &p.Proposer, &p.Payload, &createdAt, &weight, &p.Executed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProposalNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = fromUnix(createdAt)
	p.VoteWeight = uint64(weight)
	return &p, nil
}

func (t *sqliteTx) PutProposal(p *domain.Proposal) error {
	if t.readOnly {
		return errReadOnly
	}
	query := `INSERT INTO proposals (id, proposer, payload, created_at, vote_weight, executed)
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
			  vote_weight=excluded.vote_weight,
			  executed=excluded.executed`
	_, err := t.tx.ExecContext(t.ctx, query, p.ID, p.Proposer, p.Payload, p.CreatedAt.Unix(), int64(p.VoteWeight), p.Executed)
	if err != nil {
		return fmt.Errorf("failed to save proposal %s: %w", p.ID, err)
	}
	return nil
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func toSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func fromSeconds(sec int64) time.Duration {
	return time.Duration(sec) * time.Second
}
