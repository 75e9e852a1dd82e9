// internal/flywheel/cycle.go
package flywheel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/rovshanmuradov/solana-flywheel/internal/blockchain"
	"github.com/rovshanmuradov/solana-flywheel/internal/metrics"
	"github.com/rovshanmuradov/solana-flywheel/internal/types"
	"github.com/rovshanmuradov/solana-flywheel/internal/wallet"
)

// Swapper обменивает SOL на целевой токен. Ошибка означает, что запись тика
// не создаётся: SOL не был списан или списание не подтвердилось.
type Swapper interface {
	Swap(ctx context.Context, lamports uint64) (blockchain.Settlement, error)
}

// DisposalExecutor утилизирует весь баланс токен-аккаунта
type DisposalExecutor interface {
	Dispose(ctx context.Context, mode types.DisposalMode, ata solana.PublicKey) (DisposalResult, error)
}

// JournalWriter дописывает строку в журнал записей
type JournalWriter interface {
	WriteRecord(record []string) error
}

// CycleConfig - параметры решения о трате и утилизации
type CycleConfig struct {
	Mint               solana.PublicKey
	Mode               types.DisposalMode
	FeeReserveLamports uint64
	MinSpendLamports   uint64
	MaxSpendLamports   uint64
	SettleDelay        time.Duration
}

// Deps - зависимости цикла. Journal и Metrics опциональны.
type Deps struct {
	Chain    blockchain.Client
	Wallet   *wallet.Wallet
	Swapper  Swapper
	Disposer DisposalExecutor
	State    *StateManager
	Journal  JournalWriter
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Cycle выполняет один тик: баланс -> свап -> пауза -> утилизация -> учёт.
type Cycle struct {
	cfg      CycleConfig
	chain    blockchain.Client
	wallet   *wallet.Wallet
	swapper  Swapper
	disposer DisposalExecutor
	state    *StateManager
	journal  JournalWriter
	metrics  *metrics.Metrics
	logger   *zap.Logger

	sem *semaphore.Weighted
	now func() time.Time
}

func NewCycle(cfg CycleConfig, deps Deps) *Cycle {
	return &Cycle{
		cfg:      cfg,
		chain:    deps.Chain,
		wallet:   deps.Wallet,
		swapper:  deps.Swapper,
		disposer: deps.Disposer,
		state:    deps.State,
		journal:  deps.Journal,
		metrics:  deps.Metrics,
		logger:   deps.Logger.Named("cycle"),
		sem:      semaphore.NewWeighted(1),
		now:      time.Now,
	}
}

// Spendable returns clamp(balance - reserve, 0, maxSpend).
func Spendable(balance, reserve, maxSpend uint64) uint64 {
	if balance <= reserve {
		return 0
	}
	return min(balance-reserve, maxSpend)
}

// RunOnce выполняет тик. (nil, nil) означает, что тратить нечего.
// Параллельный вызов сразу получает types.ErrCycleInFlight.
// После успешного свапа запись сохраняется всегда; ошибка утилизации
// попадает в DisposalError и возвращается вместе с записью.
func (c *Cycle) RunOnce(ctx context.Context) (rec *RunRecord, err error) {
	if !c.sem.TryAcquire(1) {
		return nil, types.ErrCycleInFlight
	}
	defer c.sem.Release(1)

	start := c.now()
	runID := uuid.NewString()
	logger := c.logger.With(zap.String("run_id", runID))

	defer func() {
		if c.metrics == nil {
			return
		}
		outcome := "noop"
		switch {
		case err != nil:
			outcome = types.Stage(err)
		case rec != nil:
			outcome = "ok"
		}
		c.metrics.TrackTick(start, outcome)
	}()

	ata, err := c.wallet.GetATA(c.cfg.Mint)
	if err != nil {
		return nil, fmt.Errorf("derive treasury ata: %w", err)
	}

	balance, err := c.chain.GetBalance(ctx, c.wallet.PublicKey, rpc.CommitmentProcessed)
	if err != nil {
		return nil, fmt.Errorf("read native balance: %w", err)
	}

	spend := Spendable(balance, c.cfg.FeeReserveLamports, c.cfg.MaxSpendLamports)
	if spend < c.cfg.MinSpendLamports || spend == 0 {
		logger.Info("Skip: balance under reserve + min",
			zap.Uint64("balance_lamports", balance),
			zap.Uint64("spendable_lamports", spend))
		return nil, nil
	}

	logger.Info("Flywheel tick",
		zap.Uint64("balance_lamports", balance),
		zap.Uint64("spend_lamports", spend),
		zap.String("mode", string(c.cfg.Mode)))

	swap, err := c.swapper.Swap(ctx, spend)
	if err != nil {
		return nil, err
	}

	record := RunRecord{
		Time:         start.UTC(),
		SOLUsed:      types.SOLFromLamports(spend),
		LamportsUsed: spend,
		SwapTx:       swap.Signature.String(),
		Mode:         c.cfg.Mode,
		RunID:        runID,
	}

	postSwapErr := c.settleAndDispose(ctx, ata, &record)
	if postSwapErr != nil {
		record.DisposalError = postSwapErr.Error()
		logger.Error("Disposal failed after successful swap, recording partial tick",
			zap.String("swap_tx", record.SwapTx),
			zap.Error(postSwapErr))
	}

	persistErr := c.commit(ctx, record)

	logger.Info("Tick finished",
		zap.Stringer("sol_used", record.SOLUsed),
		zap.String("tokens_bought_raw", record.TokensBoughtRaw.String()),
		zap.String("tokens_burned_raw", record.TokensBurnedRaw.String()),
		zap.Duration("duration", time.Since(start)))

	return &record, errors.Join(postSwapErr, persistErr)
}

// settleAndDispose ждёт расчёта свапа, фиксирует купленное и утилизирует баланс
func (c *Cycle) settleAndDispose(ctx context.Context, ata solana.PublicKey, record *RunRecord) error {
	if err := sleepCtx(ctx, c.cfg.SettleDelay); err != nil {
		return fmt.Errorf("settlement wait interrupted: %w", err)
	}

	bought, err := c.chain.GetTokenBalance(ctx, ata)
	if err != nil {
		return fmt.Errorf("read token balance: %w", err)
	}
	record.TokensBoughtRaw = types.NewRawAmount(bought)

	res, err := c.disposer.Dispose(ctx, c.cfg.Mode, ata)
	if err != nil {
		return err
	}
	record.TokensBurnedRaw = types.NewRawAmount(res.Amount)
	if res.Settlement != nil {
		action := res.Settlement.Signature.String()
		record.ActionTx = &action
	}
	return nil
}

// commit сохраняет запись даже при отменённом контексте: SOL уже потрачен.
// Запись остаётся в памяти при ошибке сохранения, поэтому журнал и метрики
// обновляются в любом случае.
func (c *Cycle) commit(ctx context.Context, record RunRecord) error {
	_, persistErr := c.state.Mutate(context.WithoutCancel(ctx), func(s *FlywheelState) { s.Record(record) })

	if c.journal != nil {
		if err := c.journal.WriteRecord(record.CSVRow()); err != nil {
			c.logger.Warn("Failed to append run to journal", zap.Error(err))
		}
	}
	if c.metrics != nil {
		c.metrics.AddSpent(record.LamportsUsed)
		if burned, ok := record.TokensBurnedRaw.Uint64(); ok {
			c.metrics.AddDisposed(float64(burned))
		}
	}
	return persistErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
