package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vitos/yield_staking/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	StorageSQLite  = "sqlite"
	StorageLevelDB = "leveldb"
	StorageMemory  = "memory"
)

type Config struct {
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`
	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`
	Proof struct {
		Mode string `yaml:"mode"`
	} `yaml:"proof"`
	Auth struct {
		// Tokens maps bearer tokens to identities.
		Tokens    map[string]string `yaml:"tokens"`
		Delegates []struct {
			Caller  string `yaml:"caller"`
			Subject string `yaml:"subject"`
		} `yaml:"delegates"`
	} `yaml:"auth"`
	Custody struct {
		Balances map[string]uint64 `yaml:"balances"`
	} `yaml:"custody"`
	Products []ProductConfig `yaml:"products"`
}

// ProductConfig initializes one product ledger on first start.
type ProductConfig struct {
	Product                   string        `yaml:"product"`
	Owner                     string        `yaml:"owner"`
	Governance                string        `yaml:"governance"`
	CooldownPeriod            time.Duration `yaml:"cooldown_period"`
	MinWithdrawInterval       time.Duration `yaml:"min_withdraw_interval"`
	MinClaimDelay             time.Duration `yaml:"min_claim_delay"`
	EarlyWithdrawalPenaltyBps uint64        `yaml:"early_withdrawal_penalty_bps"`
	InsuranceFeeBps           uint64        `yaml:"insurance_fee_bps"`
	UtilizationMultiplier     *uint64       `yaml:"utilization_multiplier"` // absent means 100
	Pools                     []PoolConfig  `yaml:"pools"`
}

type PoolConfig struct {
	LockupPeriod  time.Duration `yaml:"lockup_period"`
	APRMultiplier uint64        `yaml:"apr_multiplier"`
	FeeBps        uint64        `yaml:"fee_bps"`
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageSQLite
	}
	if c.Storage.Path == "" {
		switch c.Storage.Driver {
		case StorageSQLite:
			c.Storage.Path = "staking.db"
		case StorageLevelDB:
			c.Storage.Path = "staking.ldb"
		}
	}
	for i := range c.Products {
		if c.Products[i].UtilizationMultiplier == nil {
			neutral := uint64(100)
			c.Products[i].UtilizationMultiplier = &neutral
		}
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageSQLite, StorageLevelDB, StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}

	seen := make(map[string]bool)
	for i, p := range c.Products {
		if _, err := domain.ParseProduct(p.Product); err != nil {
			errs = append(errs, fmt.Errorf("products[%d]: %w", i, err))
		}
		if seen[p.Product] {
			errs = append(errs, fmt.Errorf("products[%d]: duplicate product %q", i, p.Product))
		}
		seen[p.Product] = true
		if p.Owner == "" || p.Governance == "" {
			errs = append(errs, fmt.Errorf("products[%d]: owner and governance are required", i))
		}
		if p.EarlyWithdrawalPenaltyBps > 10_000 || p.InsuranceFeeBps > 10_000 {
			errs = append(errs, fmt.Errorf("products[%d]: basis points above 10000", i))
		}
		if n := len(p.Pools); n != 0 && n != domain.NumTiers {
			errs = append(errs, fmt.Errorf("products[%d]: want %d pools, got %d", i, domain.NumTiers, n))
		}
	}
	return errors.Join(errs...)
}

// Parameters converts the product section to ledger parameters. Missing pools
// yield the zero table, which ledger initialization replaces with defaults.
func (p ProductConfig) Parameters() domain.Parameters {
	params := domain.Parameters{
		CooldownPeriod:            p.CooldownPeriod,
		MinWithdrawInterval:       p.MinWithdrawInterval,
		MinClaimDelay:             p.MinClaimDelay,
		EarlyWithdrawalPenaltyBps: p.EarlyWithdrawalPenaltyBps,
		InsuranceFeeBps:           p.InsuranceFeeBps,
	}
	if p.UtilizationMultiplier != nil {
		params.UtilizationMultiplier = *p.UtilizationMultiplier
	}
	for i, pool := range p.Pools {
		if i >= domain.NumTiers {
			break
		}
		params.Pools[i] = domain.PoolConfig{
			LockupPeriod:  pool.LockupPeriod,
			APRMultiplier: pool.APRMultiplier,
			FeeBps:        pool.FeeBps,
		}
	}
	return params
}

// Seed returns the custody opening balances keyed by account.
func (c *Config) Seed() map[domain.Account]uint64 {
	out := make(map[domain.Account]uint64, len(c.Custody.Balances))
	for acct, amount := range c.Custody.Balances {
		out[domain.Account(acct)] = amount
	}
	return out
}

func (c *Config) TokenIdentities() map[string]domain.Identity {
	out := make(map[string]domain.Identity, len(c.Auth.Tokens))
	for token, id := range c.Auth.Tokens {
		out[token] = domain.Identity(id)
	}
	return out
}
