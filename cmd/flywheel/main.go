// cmd/flywheel/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-flywheel/internal/app"
	"github.com/rovshanmuradov/solana-flywheel/internal/config"
	"github.com/rovshanmuradov/solana-flywheel/internal/logger"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (json/yaml/toml); env only when empty")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Debug = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.SafeSync(log)

	log.Info("Starting flywheel")

	ctx := context.Background()
	runner, err := app.NewRunner(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize flywheel", zap.Error(err))
		logger.SafeSync(log)
		os.Exit(1)
	}

	if err := runner.Run(ctx); err != nil {
		log.Error("Flywheel stopped with error", zap.Error(err))
		logger.SafeSync(log)
		os.Exit(1)
	}
	log.Info("Flywheel shut down gracefully")
}
