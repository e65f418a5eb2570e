package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/vitos/yield_staking/internal/domain"
	"github.com/vitos/yield_staking/internal/infrastructure/storage"
)

var (
	driverFlag = &cli.StringFlag{
		Name:  "driver",
		Value: "sqlite",
		Usage: "store driver: sqlite or leveldb",
	}
	pathFlag = &cli.StringFlag{
		Name:  "path",
		Value: "staking.db",
		Usage: "store location",
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "output JSON instead of human-readable format",
	}
)

type productDump struct {
	Ledger    *domain.GlobalLedger `json:"ledger"`
	Positions []*domain.Position   `json:"positions"`
}

func main() {
	app := &cli.App{
		Name:   "ledger_dump",
		Usage:  "print stored ledgers and positions",
		Flags:  []cli.Flag{driverFlag, pathFlag, jsonFlag},
		Action: dump,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dump(c *cli.Context) error {
	store, err := storage.Open(c.String(driverFlag.Name), c.String(pathFlag.Name))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	var out []productDump
	err = store.View(c.Context, func(tx domain.LedgerTx) error {
		for _, product := range []domain.Product{domain.ProductBase, domain.ProductLP} {
			ledger, err := tx.GetLedger(product)
			if errors.Is(err, domain.ErrLedgerNotInitialized) {
				continue
			}
			if err != nil {
				return err
			}
			positions, err := tx.ListPositions(product)
			if err != nil {
				return err
			}
			out = append(out, productDump{Ledger: ledger, Positions: positions})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if c.Bool(jsonFlag.Name) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Found %d ledgers:\n", len(out))
	for _, d := range out {
		l := d.Ledger
		fmt.Printf("- %s v%d: staked=%d acc=%d insurance=%d owner=%s governance=%s\n",
			l.Product, l.Version, l.TotalStaked, l.AccRewardPerShare, l.InsuranceFund, l.Owner, l.Governance)
		for tier, pool := range l.Pools {
			fmt.Printf("  pool %d: lockup=%s apr=%d fee=%dbps\n", tier, pool.LockupPeriod, pool.APRMultiplier, pool.FeeBps)
		}
		for _, p := range d.Positions {
			fmt.Printf("  %s: staked=%d pending=%d debt=%d tier=%d volume=%d since=%s\n",
				p.Owner, p.StakedAmount, p.PendingRewards, p.RewardDebt, p.Tier, p.TrailingTradeVolume,
				p.StakeTimestamp.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}
