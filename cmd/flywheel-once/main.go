// cmd/flywheel-once/main.go
//
// Выполняет один тик флайвила вне расписания и без учёта флага running.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-flywheel/internal/app"
	"github.com/rovshanmuradov/solana-flywheel/internal/config"
	"github.com/rovshanmuradov/solana-flywheel/internal/logger"
	"github.com/rovshanmuradov/solana-flywheel/internal/types"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file; env only when empty")
	pflag.Parse()

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Debug = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return 1
	}
	defer logger.SafeSync(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := app.NewRunner(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize flywheel", zap.Error(err))
		return 1
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn("Close failed", zap.Error(err))
		}
	}()

	rec, err := runner.RunOnce(ctx)
	if rec != nil {
		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(out))
	}
	if err != nil {
		log.Error("Tick failed", zap.String("stage", types.Stage(err)), zap.Error(err))
		return 1
	}
	if rec == nil {
		log.Info("Nothing to spend: balance is under reserve + min spend")
	}
	return 0
}
