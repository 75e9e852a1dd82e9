// internal/app/runner.go
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-flywheel/internal/api"
	"github.com/rovshanmuradov/solana-flywheel/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-flywheel/internal/config"
	"github.com/rovshanmuradov/solana-flywheel/internal/dex/jupiter"
	"github.com/rovshanmuradov/solana-flywheel/internal/flywheel"
	"github.com/rovshanmuradov/solana-flywheel/internal/metrics"
	"github.com/rovshanmuradov/solana-flywheel/internal/scheduler"
	"github.com/rovshanmuradov/solana-flywheel/internal/storage"
	"github.com/rovshanmuradov/solana-flywheel/internal/types"
	"github.com/rovshanmuradov/solana-flywheel/internal/wallet"
)

const (
	journalSyncInterval = 5 * time.Second
	httpShutdownTimeout = 10 * time.Second
)

// Runner собирает все компоненты из конфигурации и управляет их жизненным циклом
type Runner struct {
	logger    *zap.Logger
	config    *config.Config
	state     *flywheel.StateManager
	cycle     *flywheel.Cycle
	api       *api.Server
	scheduler *scheduler.Scheduler
	shutdown  *ShutdownHandler
}

// NewRunner строит граф зависимостей. Ошибки конфигурации оборачивают types.ErrConfig.
func NewRunner(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	r := &Runner{
		logger:   logger,
		config:   cfg,
		shutdown: NewShutdownHandler(logger, 30*time.Second),
	}
	if err := r.build(ctx); err != nil {
		_ = r.shutdown.Shutdown(context.Background())
		return nil, err
	}
	return r, nil
}

func (r *Runner) build(ctx context.Context) error {
	cfg := r.config

	w, err := wallet.Load(cfg.WalletKeypairPath, cfg.WalletSecretKey)
	if err != nil {
		return fmt.Errorf("%w: load wallet: %v", types.ErrConfig, err)
	}
	mint, err := solana.PublicKeyFromBase58(cfg.TargetMint)
	if err != nil {
		return fmt.Errorf("%w: invalid target_mint: %v", types.ErrConfig, err)
	}
	allowed, err := solana.PublicKeyFromBase58(cfg.AllowedPubkey)
	if err != nil {
		return fmt.Errorf("%w: invalid allowed_pubkey: %v", types.ErrConfig, err)
	}
	if !w.PublicKey.Equals(allowed) {
		r.logger.Warn("Treasury wallet differs from the admin identity",
			zap.String("wallet", w.String()),
			zap.String("allowed_pubkey", allowed.String()))
	}

	r.logger.Info("Configuration loaded",
		zap.String("rpc", cfg.MaskRPCForLogging()),
		zap.String("wallet", w.String()),
		zap.String("mint", mint.String()),
		zap.String("mode", string(cfg.DisposalMode())),
		zap.String("schedule", cfg.Schedule),
		zap.String("state_backend", cfg.StateBackend))

	chain := solbc.NewClient(cfg.RPCURL, r.logger)

	swapper, err := jupiter.NewClient(jupiter.Config{
		BaseURL:             cfg.JupiterBaseURL,
		OutputMint:          mint,
		SlippageBps:         types.SlippageBps(cfg.SlippageBps),
		PriorityFeeLamports: cfg.PriorityFee,
	}, chain, w, r.logger)
	if err != nil {
		return err
	}

	store, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	r.shutdown.Add("state-store", store)

	r.state = flywheel.NewStateManager(store, r.logger)
	if err := r.state.Load(ctx); err != nil {
		return err
	}

	var journal flywheel.JournalWriter
	if cfg.JournalPath != "" {
		j, err := storage.NewJournal(cfg.JournalPath, flywheel.JournalHeader, journalSyncInterval, r.logger)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		r.shutdown.Add("journal", j)
		journal = j
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)
	m.SetRunning(r.state.Running())

	r.cycle = flywheel.NewCycle(flywheel.CycleConfig{
		Mint:               mint,
		Mode:               cfg.DisposalMode(),
		FeeReserveLamports: cfg.FeeReserveSOL.Lamports(),
		MinSpendLamports:   cfg.MinSpendSOL.Lamports(),
		MaxSpendLamports:   cfg.MaxSpendSOL.Lamports(),
		SettleDelay:        cfg.SettleDelay(),
	}, flywheel.Deps{
		Chain:    chain,
		Wallet:   w,
		Swapper:  swapper,
		Disposer: flywheel.NewDisposer(chain, w, mint, r.logger).WithPriorityFee(cfg.PriorityFee),
		State:    r.state,
		Journal:  journal,
		Metrics:  m,
		Logger:   r.logger,
	})

	r.api = api.NewServer(api.Config{
		ListenAddr:      cfg.ListenAddr,
		AllowedPubkey:   allowed,
		FrontendOrigins: cfg.FrontendOrigins,
		AdminRatePerSec: cfg.AdminRatePerSec,
		AdminBurst:      cfg.AdminBurst,
	}, r.state, m, registry, r.logger)

	r.scheduler, err = scheduler.New(cfg.Schedule, scheduler.FlywheelJob(r.cycle, r.state, r.logger), r.logger)
	return err
}

func (r *Runner) openStore(ctx context.Context) (storage.Store, error) {
	switch r.config.StateBackend {
	case config.StateBackendRedis:
		store, err := storage.NewRedisStore(ctx, storage.RedisConfig{
			Addr:     r.config.RedisAddr,
			Password: r.config.RedisPassword,
			DB:       r.config.RedisDB,
			Key:      r.config.RedisKey,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis state store: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewFileStore(r.config.StatePath)
		if err != nil {
			return nil, fmt.Errorf("open state file: %w", err)
		}
		return store, nil
	}
}

// Run запускает HTTP API и планировщик и блокируется до SIGINT/SIGTERM
// или фатальной ошибки одного из них.
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(r.api.ListenAndServe)
	g.Go(func() error {
		return r.scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		r.logger.Info("Stopping control API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return r.api.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if closeErr := r.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// RunOnce выполняет один тик независимо от флага running
func (r *Runner) RunOnce(ctx context.Context) (*flywheel.RunRecord, error) {
	return r.cycle.RunOnce(ctx)
}

// Close releases the state store and journal.
func (r *Runner) Close() error {
	return r.shutdown.Shutdown(context.Background())
}
