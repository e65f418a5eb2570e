package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"github.com/vitos/yield_staking/internal/config"
	"github.com/vitos/yield_staking/internal/domain"
	"github.com/vitos/yield_staking/internal/infrastructure/auth"
	"github.com/vitos/yield_staking/internal/infrastructure/clock"
	"github.com/vitos/yield_staking/internal/infrastructure/custody"
	"github.com/vitos/yield_staking/internal/infrastructure/events"
	"github.com/vitos/yield_staking/internal/infrastructure/logger"
	"github.com/vitos/yield_staking/internal/infrastructure/metrics"
	"github.com/vitos/yield_staking/internal/infrastructure/proof"
	"github.com/vitos/yield_staking/internal/infrastructure/storage"
	"github.com/vitos/yield_staking/internal/usecase"
	"github.com/vitos/yield_staking/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Value:   "config/config.yaml",
	Usage:   "path to the YAML config file",
}

var portFlag = &cli.IntFlag{
	Name:  "port",
	Usage: "override server.port from the config",
}

func main() {
	app := &cli.App{
		Name:   "stakingd",
		Usage:  "yield staking ledger service",
		Flags:  []cli.Flag{configFlag, portFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	// 1. Load Config
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet(portFlag.Name) {
		cfg.Server.Port = c.Int(portFlag.Name)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}
	defer store.Close()

	// 4. Collaborators
	book := custody.NewBook(cfg.Seed())
	authz := auth.NewDirect()
	for _, d := range cfg.Auth.Delegates {
		authz.Delegate(domain.Identity(d.Caller), domain.Identity(d.Subject))
	}
	verifier, err := proof.FromMode(cfg.Proof.Mode)
	if err != nil {
		return err
	}
	hub := web.NewHub(log)
	recorder := metrics.NewRecorder()
	publisher := events.Multi{events.NewLogPublisher(log), recorder, hub}

	// 5. Init Services
	staking := usecase.NewStakingService(store, book, authz, clock.System{}, verifier, publisher, log)
	governance := usecase.NewGovernanceService(store, authz, clock.System{}, publisher, log)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := initLedgers(ctx, governance, cfg, log); err != nil {
		return err
	}
	if err := checkCustody(ctx, store, book, cfg.Products, log); err != nil {
		return fmt.Errorf("failed to check custody: %w", err)
	}

	// 6. Serve until signalled
	srv := web.NewServer(cfg.Server.Port, cfg.Server.AllowedOrigins, staking, governance,
		auth.NewTokenAuthenticator(cfg.TokenIdentities()), hub, recorder.Handler(), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// initLedgers creates the configured ledgers that do not exist yet. Existing
// ledgers keep their stored parameters; governance owns them after creation.
func initLedgers(ctx context.Context, governance *usecase.GovernanceService, cfg *config.Config, log *zap.Logger) error {
	for _, p := range cfg.Products {
		req := usecase.InitializeRequest{
			Product:    domain.Product(p.Product),
			Owner:      domain.Identity(p.Owner),
			Governance: domain.Identity(p.Governance),
			Parameters: p.Parameters(),
		}
		_, err := governance.Initialize(ctx, req.Owner, req)
		switch {
		case errors.Is(err, domain.ErrAlreadyInitialized):
			log.Info("Ledger already initialized", zap.String("product", p.Product))
		case err != nil:
			return fmt.Errorf("failed to initialize %s ledger: %w", p.Product, err)
		}
	}
	return nil
}

// checkCustody warns about ledgers whose persisted stake is not covered by the
// staking vault. Custody is reseeded from config on every start, so such
// positions cannot be unstaked until the vault is funded.
func checkCustody(ctx context.Context, store domain.LedgerStore, book *custody.Book, products []config.ProductConfig, log *zap.Logger) error {
	return store.View(ctx, func(tx domain.LedgerTx) error {
		for _, p := range products {
			ledger, err := tx.GetLedger(domain.Product(p.Product))
			if err != nil {
				return err
			}
			vault := domain.StakingVault(ledger.Product)
			if balance := book.Balance(vault); balance < ledger.TotalStaked {
				log.Warn("Staking vault does not cover persisted stake",
					zap.String("product", p.Product),
					zap.Uint64("total_staked", ledger.TotalStaked),
					zap.Uint64("vault_balance", balance))
			}
		}
		return nil
	})
}
