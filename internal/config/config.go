// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/solana-flywheel/internal/types"
)

type Config struct {
	RPCURL            string    `mapstructure:"rpc_url"`
	TargetMint        string    `mapstructure:"target_mint"`
	AllowedPubkey     string    `mapstructure:"allowed_pubkey"`
	WalletKeypairPath string    `mapstructure:"wallet_keypair_path"`
	WalletSecretKey   string    `mapstructure:"wallet_secret_key"`
	FeeReserveSOL     types.SOL `mapstructure:"-"`
	MinSpendSOL       types.SOL `mapstructure:"-"`
	MaxSpendSOL       types.SOL `mapstructure:"-"`
	SlippageBps       int       `mapstructure:"slippage_bps"`
	BurnMode          string    `mapstructure:"burn_mode"`
	JupiterBaseURL    string    `mapstructure:"jupiter_base_url"`
	PriorityFee       uint64    `mapstructure:"priority_fee_lamports"`
	SettleDelayMS     int       `mapstructure:"settle_delay_ms"`
	Schedule          string    `mapstructure:"schedule"`
	ListenAddr        string    `mapstructure:"listen_addr"`
	FrontendOrigins   []string  `mapstructure:"frontend_origins"`
	StateBackend      string    `mapstructure:"state_backend"`
	StatePath         string    `mapstructure:"state_path"`
	JournalPath       string    `mapstructure:"journal_path"`
	RedisAddr         string    `mapstructure:"redis_addr"`
	RedisPassword     string    `mapstructure:"redis_password"`
	RedisDB           int       `mapstructure:"redis_db"`
	RedisKey          string    `mapstructure:"redis_key"`
	LogFile           string    `mapstructure:"log_file"`
	DebugLogging      bool      `mapstructure:"debug_logging"`
	AdminRatePerSec   float64   `mapstructure:"admin_rate_per_sec"`
	AdminBurst        int       `mapstructure:"admin_burst"`
}

const (
	DefaultRPCURL         = "https://api.mainnet-beta.solana.com"
	DefaultFeeReserveSOL  = "0.05"
	DefaultMinSpendSOL    = "0.05"
	DefaultMaxSpendSOL    = "2"
	DefaultSlippageBps    = 100
	DefaultJupiterBaseURL = "https://quote-api.jup.ag"
	DefaultSettleDelayMS  = 2500
	DefaultSchedule       = "*/20 * * * *"
	DefaultListenAddr     = ":8787"
	DefaultStatePath      = "data/metrics.json"
	DefaultJournalPath    = "data/history.csv"
	DefaultRedisKey       = "flywheel:state"
	DefaultLogFile        = "logs/flywheel.log"

	StateBackendFile  = "file"
	StateBackendRedis = "redis"

	envPrefix = "FLYWHEEL"
)

// legacyEnv maps the historical un-prefixed variable names onto config keys.
var legacyEnv = map[string]string{
	"rpc_url":               "RPC_URL",
	"target_mint":           "TARGET_MINT",
	"allowed_pubkey":        "ALLOWED_PUBKEY",
	"wallet_keypair_path":   "DEV_WALLET_KEYPAIR",
	"wallet_secret_key":     "DEV_WALLET_SECRET_KEY",
	"fee_reserve_sol":       "FEE_RESERVE_SOL",
	"min_spend_sol":         "MIN_SPEND_SOL",
	"max_spend_sol":         "MAX_SPEND_SOL",
	"slippage_bps":          "SLIPPAGE_BPS",
	"burn_mode":             "BURN_MODE",
	"jupiter_base_url":      "JUPITER_BASE_URL",
	"frontend_origins":      "FRONTEND_ORIGIN",
	"priority_fee_lamports": "PRIORITY_FEE_LAMPORTS",
}

// LoadConfig reads an optional config file (empty path skips it), a .env file
// if present, and environment variables. Environment wins over the file.
func LoadConfig(path string) (*Config, error) {
	// .env опционален, как и в исходном деплое
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: load .env: %v", types.ErrConfig, err)
	}

	v := viper.New()

	defaults := map[string]interface{}{
		"rpc_url":               DefaultRPCURL,
		"fee_reserve_sol":       DefaultFeeReserveSOL,
		"min_spend_sol":         DefaultMinSpendSOL,
		"max_spend_sol":         DefaultMaxSpendSOL,
		"slippage_bps":          DefaultSlippageBps,
		"burn_mode":             string(types.DisposalBurn),
		"jupiter_base_url":      DefaultJupiterBaseURL,
		"priority_fee_lamports": 0,
		"settle_delay_ms":       DefaultSettleDelayMS,
		"schedule":              DefaultSchedule,
		"listen_addr":           DefaultListenAddr,
		"frontend_origins":      []string{"http://localhost:8080"},
		"state_backend":         StateBackendFile,
		"state_path":            DefaultStatePath,
		"journal_path":          DefaultJournalPath,
		"redis_key":             DefaultRedisKey,
		"log_file":              DefaultLogFile,
		"admin_rate_per_sec":    1.0,
		"admin_burst":           5,
		"wallet_keypair_path":   "",
		"wallet_secret_key":     "",
		"target_mint":           "",
		"allowed_pubkey":        "",
		"redis_addr":            "",
		"redis_password":        "",
		"redis_db":              0,
		"debug_logging":         false,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read config: %v", types.ErrConfig, err)
		}
	}

	if err := loadEnvironmentVariables(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", types.ErrConfig, err)
	}
	cfg.FrontendOrigins = splitList(cfg.FrontendOrigins)
	if err := loadSOLAmounts(v, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfig, err)
	}
	return &cfg, nil
}

func loadEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(key), legacy); err != nil {
			return fmt.Errorf("%w: bind env %s: %v", types.ErrConfig, legacy, err)
		}
	}
	if err := v.BindEnv("listen_addr", envPrefix+"_LISTEN_ADDR"); err != nil {
		return fmt.Errorf("%w: bind env: %v", types.ErrConfig, err)
	}
	// PORT из исходного окружения превращается в адрес прослушивания
	if port := os.Getenv("PORT"); port != "" && os.Getenv(envPrefix+"_LISTEN_ADDR") == "" {
		v.Set("listen_addr", ":"+port)
	}
	return nil
}

// loadSOLAmounts читает суммы в SOL десятичной строкой: числа из файла
// приходят как float64, и их кратчайшая запись совпадает с написанной.
func loadSOLAmounts(v *viper.Viper, cfg *Config) error {
	fields := []struct {
		key string
		dst *types.SOL
	}{
		{"fee_reserve_sol", &cfg.FeeReserveSOL},
		{"min_spend_sol", &cfg.MinSpendSOL},
		{"max_spend_sol", &cfg.MaxSpendSOL},
	}
	for _, f := range fields {
		amount, err := types.ParseSOL(v.GetString(f.key))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.dst = amount
	}
	return nil
}

// splitList flattens comma separated entries (env values arrive as one string).
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if clean := strings.TrimSpace(part); clean != "" {
				out = append(out, clean)
			}
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	if cfg.TargetMint == "" {
		return errors.New("target_mint is required")
	}
	if cfg.AllowedPubkey == "" {
		return errors.New("allowed_pubkey is required")
	}
	if cfg.WalletKeypairPath == "" && cfg.WalletSecretKey == "" {
		return errors.New("wallet_keypair_path or wallet_secret_key is required")
	}
	if err := validateURLWithCache(cfg.RPCURL, "http"); err != nil {
		return fmt.Errorf("invalid rpc_url: %w", err)
	}
	if err := validateURLWithCache(cfg.JupiterBaseURL, "http"); err != nil {
		return fmt.Errorf("invalid jupiter_base_url: %w", err)
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	if _, err := types.ParseDisposalMode(cfg.BurnMode); err != nil {
		return err
	}
	switch cfg.StateBackend {
	case StateBackendFile:
		if cfg.StatePath == "" {
			return errors.New("state_path is required for the file backend")
		}
	case StateBackendRedis:
		if cfg.RedisAddr == "" {
			return errors.New("redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown state_backend %q", cfg.StateBackend)
	}
	if strings.TrimSpace(cfg.Schedule) == "" {
		return errors.New("schedule is empty")
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if !cfg.MinSpendSOL.IsPositive() {
		return errors.New("invalid min_spend_sol")
	}
	if cfg.MaxSpendSOL.LessThan(cfg.MinSpendSOL.Decimal) {
		return errors.New("max_spend_sol must be >= min_spend_sol")
	}
	if cfg.SlippageBps <= 0 || cfg.SlippageBps > 10_000 {
		return errors.New("invalid slippage_bps")
	}
	if cfg.SettleDelayMS < 0 {
		return errors.New("invalid settle_delay_ms")
	}
	if cfg.AdminRatePerSec <= 0 || cfg.AdminBurst <= 0 {
		return errors.New("invalid admin rate limit")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

// SettleDelay returns the pause between swap confirmation and the balance read.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

// DisposalMode returns the parsed burn mode. Validated by LoadConfig.
func (c *Config) DisposalMode() types.DisposalMode {
	mode, _ := types.ParseDisposalMode(c.BurnMode)
	return mode
}

// MaskRPCForLogging hides query strings (API keys) in RPC URLs.
func (c *Config) MaskRPCForLogging() string {
	parsed, err := url.Parse(c.RPCURL)
	if err != nil || parsed.RawQuery == "" {
		return c.RPCURL
	}
	parsed.RawQuery = "***"
	return parsed.String()
}
