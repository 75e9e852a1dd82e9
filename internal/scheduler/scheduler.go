// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-flywheel/internal/flywheel"
	"github.com/rovshanmuradov/solana-flywheel/internal/types"
)

// Cycle - один тик флайвила
type Cycle interface {
	RunOnce(ctx context.Context) (*flywheel.RunRecord, error)
}

// RunningFlag сообщает, включён ли флайвил
type RunningFlag interface {
	Running() bool
}

// zapCronLogger адаптирует zap к cron.Logger
type zapCronLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Scheduler запускает задачу по cron-расписанию. Пересекающиеся запуски
// пропускаются, паника в задаче логируется и не роняет процесс.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	job    func(ctx context.Context)
	runCtx context.Context
	logger *zap.Logger
}

// New validates spec and registers job.
func New(spec string, job func(ctx context.Context), logger *zap.Logger) (*Scheduler, error) {
	logger = logger.Named("scheduler")
	cl := zapCronLogger{sugar: logger.Sugar()}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		spec:   spec,
		job:    job,
		runCtx: context.Background(),
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.job(s.runCtx) }); err != nil {
		return nil, fmt.Errorf("%w: invalid schedule %q: %v", types.ErrConfig, spec, err)
	}
	return s, nil
}

// Run запускает расписание и блокируется до отмены ctx; затем ждёт
// завершения текущей задачи. Контекст задачи отменяется вместе с ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runCtx = ctx
	s.cron.Start()

	entries := s.cron.Entries()
	if len(entries) > 0 {
		s.logger.Info("Scheduler started",
			zap.String("schedule", s.spec),
			zap.Time("next_run", entries[0].Next))
	}

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

// FlywheelJob возвращает задачу тика: ничего не делает, пока флайвил выключен,
// а ошибки тика логирует и проглатывает.
func FlywheelJob(cycle Cycle, flag RunningFlag, logger *zap.Logger) func(ctx context.Context) {
	logger = logger.Named("tick")
	return func(ctx context.Context) {
		if !flag.Running() {
			logger.Debug("Flywheel is stopped, skipping tick")
			return
		}
		start := time.Now()
		rec, err := cycle.RunOnce(ctx)
		switch {
		case errors.Is(err, types.ErrCycleInFlight):
			logger.Warn("Previous tick still in flight, skipping")
		case rec != nil && types.IsDisposalError(err):
			// свап учтён, остаток токенов заберёт следующий тик
			logger.Warn("Flywheel tick recorded, disposal deferred to next tick",
				zap.String("run_id", rec.RunID),
				zap.String("swap_tx", rec.SwapTx),
				zap.String("stage", types.Stage(err)),
				zap.Error(err))
		case err != nil:
			fields := []zap.Field{
				zap.String("stage", types.Stage(err)),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			}
			if rec != nil {
				fields = append(fields, zap.String("swap_tx", rec.SwapTx))
			}
			logger.Error("Flywheel tick failed", fields...)
		case rec == nil:
			logger.Debug("Nothing to spend this tick")
		default:
			logger.Info("Flywheel tick completed",
				zap.String("run_id", rec.RunID),
				zap.Stringer("sol_used", rec.SOLUsed),
				zap.String("tokens_burned_raw", rec.TokensBurnedRaw.String()))
		}
	}
}
