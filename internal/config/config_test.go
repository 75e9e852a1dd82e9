// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-flywheel/internal/types"
)

var validConfigJSON = `{
    "rpc_url": "https://api.devnet.solana.com",
    "target_mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
    "allowed_pubkey": "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
    "wallet_secret_key": "secret",
    "fee_reserve_sol": 0.1,
    "min_spend_sol": 0.2,
    "max_spend_sol": 3,
    "slippage_bps": 50,
    "burn_mode": "incinerate",
    "frontend_origins": ["https://a.example", "https://b.example"]
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "Valid config",
			content: validConfigJSON,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://api.devnet.solana.com", cfg.RPCURL)
				assert.Equal(t, uint64(100_000_000), cfg.FeeReserveSOL.Lamports())
				assert.Equal(t, uint64(200_000_000), cfg.MinSpendSOL.Lamports())
				assert.Equal(t, uint64(3_000_000_000), cfg.MaxSpendSOL.Lamports())
				assert.Equal(t, 50, cfg.SlippageBps)
				assert.Equal(t, types.DisposalIncinerate, cfg.DisposalMode())
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.FrontendOrigins)
			},
		},
		{
			name: "Defaults applied",
			content: `{
				"target_mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
				"allowed_pubkey": "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
				"wallet_keypair_path": "/tmp/id.json"
			}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultRPCURL, cfg.RPCURL)
				assert.Equal(t, uint64(50_000_000), cfg.FeeReserveSOL.Lamports())
				assert.Equal(t, uint64(50_000_000), cfg.MinSpendSOL.Lamports())
				assert.Equal(t, uint64(2_000_000_000), cfg.MaxSpendSOL.Lamports())
				assert.Equal(t, DefaultSlippageBps, cfg.SlippageBps)
				assert.Equal(t, types.DisposalBurn, cfg.DisposalMode())
				assert.Equal(t, DefaultSchedule, cfg.Schedule)
				assert.Equal(t, StateBackendFile, cfg.StateBackend)
				assert.Equal(t, int64(2500), cfg.SettleDelay().Milliseconds())
			},
		},
		{
			name:    "Missing mint",
			content: `{"allowed_pubkey": "x", "wallet_secret_key": "y"}`,
			wantErr: true,
		},
		{
			name: "Missing wallet",
			content: `{
				"target_mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
				"allowed_pubkey": "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
			}`,
			wantErr: true,
		},
		{
			name: "Max below min",
			content: `{
				"target_mint": "m", "allowed_pubkey": "p", "wallet_secret_key": "s",
				"min_spend_sol": 1, "max_spend_sol": 0.5
			}`,
			wantErr: true,
		},
		{
			name: "Sub-lamport precision",
			content: `{
				"target_mint": "m", "allowed_pubkey": "p", "wallet_secret_key": "s",
				"min_spend_sol": 0.0000000001
			}`,
			wantErr: true,
		},
		{
			name: "Negative reserve",
			content: `{
				"target_mint": "m", "allowed_pubkey": "p", "wallet_secret_key": "s",
				"fee_reserve_sol": -1
			}`,
			wantErr: true,
		},
		{
			name: "Unknown burn mode",
			content: `{
				"target_mint": "m", "allowed_pubkey": "p", "wallet_secret_key": "s",
				"burn_mode": "shred"
			}`,
			wantErr: true,
		},
		{
			name: "Redis backend without address",
			content: `{
				"target_mint": "m", "allowed_pubkey": "p", "wallet_secret_key": "s",
				"state_backend": "redis"
			}`,
			wantErr: true,
		},
		{
			name: "Bad RPC scheme",
			content: `{
				"target_mint": "m", "allowed_pubkey": "p", "wallet_secret_key": "s",
				"rpc_url": "ftp://node"
			}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.content))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, types.ErrConfig)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigLegacyEnvironment(t *testing.T) {
	t.Setenv("TARGET_MINT", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	t.Setenv("ALLOWED_PUBKEY", "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	t.Setenv("DEV_WALLET_SECRET_KEY", "secret")
	t.Setenv("MAX_SPEND_SOL", "1.5")
	t.Setenv("BURN_MODE", "INCINERATE")
	t.Setenv("FRONTEND_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("PORT", "9000")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", cfg.TargetMint)
	assert.Equal(t, "secret", cfg.WalletSecretKey)
	assert.Equal(t, uint64(1_500_000_000), cfg.MaxSpendSOL.Lamports())
	assert.Equal(t, types.DisposalIncinerate, cfg.DisposalMode())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.FrontendOrigins)
	assert.Equal(t, ":9000", cfg.ListenAddr)
}

func TestPrefixedEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("FLYWHEEL_MIN_SPEND_SOL", "0.5")

	cfg, err := LoadConfig(writeConfig(t, validConfigJSON))
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000), cfg.MinSpendSOL.Lamports())
}

func TestSOLAmountsAreExact(t *testing.T) {
	// 1.005 и 0.145 в float64 дают на лампорт меньше
	cfg, err := LoadConfig(writeConfig(t, `{
		"target_mint": "m", "allowed_pubkey": "p", "wallet_secret_key": "s",
		"fee_reserve_sol": 0.145, "min_spend_sol": 1.005, "max_spend_sol": 2.675
	}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(145_000_000), cfg.FeeReserveSOL.Lamports())
	assert.Equal(t, uint64(1_005_000_000), cfg.MinSpendSOL.Lamports())
	assert.Equal(t, uint64(2_675_000_000), cfg.MaxSpendSOL.Lamports())

	t.Setenv("MIN_SPEND_SOL", "1.1")
	cfg, err = LoadConfig(writeConfig(t, validConfigJSON))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_100_000_000), cfg.MinSpendSOL.Lamports())
}

func TestMaskRPCForLogging(t *testing.T) {
	cfg := &Config{RPCURL: "https://mainnet.helius-rpc.com/?api-key=abc"}
	assert.Equal(t, "https://mainnet.helius-rpc.com/?***", cfg.MaskRPCForLogging())

	cfg.RPCURL = "https://api.mainnet-beta.solana.com"
	assert.Equal(t, cfg.RPCURL, cfg.MaskRPCForLogging())
}
