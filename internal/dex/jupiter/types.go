// internal/dex/jupiter/types.go
package jupiter

import (
	"encoding/json"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-flywheel/internal/types"
)

const (
	DefaultBaseURL        = "https://quote-api.jup.ag"
	defaultRequestTimeout = 15 * time.Second
)

// WrappedSOLMint - минт wSOL, входной актив каждого свапа
var WrappedSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// Config содержит параметры клиента площадки
type Config struct {
	BaseURL             string
	OutputMint          solana.PublicKey
	SlippageBps         types.SlippageBps
	PriorityFeeLamports uint64
	Timeout             time.Duration
}

// Quote - котировка площадки. Raw передаётся обратно в /swap без изменений,
// поэтому одна котировка используется ровно для одной сборки свапа.
type Quote struct {
	Raw            json.RawMessage
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	SlippageBps    uint16
	PriceImpactPct string
	Hops           int
}

// swapRequest - тело POST /v6/swap
type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports uint64          `json:"prioritizationFeeLamports"`
}

// swapResponse - ответ POST /v6/swap
type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// httpResult - результат запроса, прошедшего через circuit breaker
type httpResult struct {
	status int
	body   []byte
}
