// internal/dex/jupiter/client_test.go
package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-flywheel/internal/blockchain"
	"github.com/rovshanmuradov/solana-flywheel/internal/blockchain/blockchaintest"
	"github.com/rovshanmuradov/solana-flywheel/internal/types"
	"github.com/rovshanmuradov/solana-flywheel/internal/wallet"
)

var testMint = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

const quoteJSON = `{
	"inputMint": "So11111111111111111111111111111111111111112",
	"inAmount": "950000000",
	"outputMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"outAmount": "1000",
	"otherAmountThreshold": "990",
	"swapMode": "ExactIn",
	"slippageBps": 100,
	"priceImpactPct": "0.001",
	"routePlan": [{"swapInfo": {"label": "Whirlpool"}, "percent": 100}]
}`

type venue struct {
	quoteStatus int
	quoteBody   string
	swapStatus  int
	swapBody    func(r *http.Request) string
	quoteCalls  atomic.Int32
	swapCalls   atomic.Int32
}

func (v *venue) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v6/quote", func(w http.ResponseWriter, r *http.Request) {
		v.quoteCalls.Add(1)
		assert.Equal(t, WrappedSOLMint.String(), r.URL.Query().Get("inputMint"))
		assert.Equal(t, testMint.String(), r.URL.Query().Get("outputMint"))
		assert.Equal(t, "100", r.URL.Query().Get("slippageBps"))
		w.WriteHeader(v.quoteStatus)
		_, _ = w.Write([]byte(v.quoteBody))
	})
	mux.HandleFunc("/v6/swap", func(w http.ResponseWriter, r *http.Request) {
		v.swapCalls.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(v.swapStatus)
		_, _ = w.Write([]byte(v.swapBody(r)))
	})
	return mux
}

func newTestWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.NewWallet(base58.Encode(solana.NewWallet().PrivateKey))
	require.NoError(t, err)
	return w
}

// unsignedSwapTx имитирует транзакцию, которую возвращает площадка
func unsignedSwapTx(t *testing.T, payer solana.PublicKey) string {
	t.Helper()
	ix := system.NewTransferInstruction(1, payer, solana.NewWallet().PublicKey()).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{9}, solana.TransactionPayer(payer))
	require.NoError(t, err)
	tx.Signatures = []solana.Signature{{}}
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func newTestClient(t *testing.T, v *venue, chain blockchain.Client, w *wallet.Wallet) *Client {
	t.Helper()
	srv := httptest.NewServer(v.handler(t))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:     srv.URL,
		OutputMint:  testMint,
		SlippageBps: 100,
	}, chain, w, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestSwapSuccess(t *testing.T) {
	w := newTestWallet(t)
	v := &venue{
		quoteStatus: http.StatusOK,
		quoteBody:   quoteJSON,
		swapStatus:  http.StatusOK,
	}
	v.swapBody = func(r *http.Request) string {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, w.PublicKey.String(), req["userPublicKey"])
		assert.Equal(t, true, req["wrapAndUnwrapSol"])
		assert.Equal(t, true, req["dynamicComputeUnitLimit"])
		quote, ok := req["quoteResponse"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "1000", quote["outAmount"])
		return `{"swapTransaction":"` + unsignedSwapTx(t, w.PublicKey) + `","lastValidBlockHeight":321}`
	}

	chain := new(blockchaintest.MockClient)
	sig := solana.Signature{7}
	chain.On("SendTransaction", mock.Anything, mock.MatchedBy(func(tx *solana.Transaction) bool {
		return len(tx.Signatures) == 1 && tx.VerifySignatures() == nil
	})).Return(sig, nil)
	chain.On("WaitForTransactionConfirmation", mock.Anything, sig, uint64(321)).Return(nil)

	c := newTestClient(t, v, chain, w)
	got, err := c.Swap(context.Background(), 950_000_000)
	require.NoError(t, err)
	assert.Equal(t, sig, got.Signature)
	assert.Equal(t, uint64(321), got.LastValidBlockHeight)
	assert.Equal(t, blockchain.SettlementConfirmed, got.State)
	chain.AssertExpectations(t)
}

func TestSwapQuoteFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"no route", http.StatusBadRequest, `{"error":"Could not find any route","errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`},
		{"empty routePlan", http.StatusOK, `{"inAmount":"1","outAmount":"1","routePlan":[]}`},
		{"invalid json", http.StatusOK, `{"routePlan":`},
		{"venue down", http.StatusServiceUnavailable, `upstream unavailable`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &venue{quoteStatus: tt.status, quoteBody: tt.body}
			chain := new(blockchaintest.MockClient)
			c := newTestClient(t, v, chain, newTestWallet(t))

			_, err := c.Swap(context.Background(), 1_000_000)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrQuoteUnavailable)
			assert.Zero(t, v.swapCalls.Load())
			chain.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
		})
	}
}

func TestSwapBuildFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"missing transaction", http.StatusOK, `{"lastValidBlockHeight":1}`},
		{"bad base64", http.StatusOK, `{"swapTransaction":"!!!"}`},
		{"rejected", http.StatusBadRequest, `{"error":"invalid quote"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &venue{
				quoteStatus: http.StatusOK,
				quoteBody:   quoteJSON,
				swapStatus:  tt.status,
				swapBody:    func(*http.Request) string { return tt.body },
			}
			chain := new(blockchaintest.MockClient)
			c := newTestClient(t, v, chain, newTestWallet(t))

			_, err := c.Swap(context.Background(), 1_000_000)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrSwapBuildFailed)
			chain.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
		})
	}
}

func TestSwapSubmissionAndConfirmationFailures(t *testing.T) {
	w := newTestWallet(t)
	newVenue := func() *venue {
		return &venue{
			quoteStatus: http.StatusOK,
			quoteBody:   quoteJSON,
			swapStatus:  http.StatusOK,
			swapBody: func(*http.Request) string {
				return `{"swapTransaction":"` + unsignedSwapTx(t, w.PublicKey) + `","lastValidBlockHeight":10}`
			},
		}
	}

	t.Run("preflight rejected with slippage", func(t *testing.T) {
		chain := new(blockchaintest.MockClient)
		chain.On("SendTransaction", mock.Anything, mock.Anything).
			Return(solana.Signature{}, errors.New("Transaction simulation failed: custom program error: 0x1771"))
		c := newTestClient(t, newVenue(), chain, w)

		_, err := c.Swap(context.Background(), 1_000_000)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrSubmissionFailed)
		var slipErr *SlippageExceededError
		assert.ErrorAs(t, err, &slipErr)
		chain.AssertNotCalled(t, "WaitForTransactionConfirmation", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("execution error", func(t *testing.T) {
		chain := new(blockchaintest.MockClient)
		sig := solana.Signature{3}
		chain.On("SendTransaction", mock.Anything, mock.Anything).Return(sig, nil)
		chain.On("WaitForTransactionConfirmation", mock.Anything, sig, uint64(10)).Return(blockchain.ErrTransactionFailed)
		c := newTestClient(t, newVenue(), chain, w)

		got, err := c.Swap(context.Background(), 1_000_000)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrSwapNotConfirmed)
		assert.ErrorIs(t, err, blockchain.ErrTransactionFailed)
		assert.Equal(t, blockchain.SettlementFailed, got.State)
		assert.Equal(t, sig, got.Signature)
	})

	t.Run("shutdown after submission keeps waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		chain := new(blockchaintest.MockClient)
		sig := solana.Signature{4}
		chain.On("SendTransaction", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(sig, nil)
		chain.On("WaitForTransactionConfirmation", mock.MatchedBy(func(c context.Context) bool {
			return c.Err() == nil
		}), sig, uint64(10)).Return(nil)
		c := newTestClient(t, newVenue(), chain, w)

		got, err := c.Swap(ctx, 1_000_000)
		require.NoError(t, err)
		assert.Equal(t, blockchain.SettlementConfirmed, got.State)
	})
}

func TestCircuitBreakerOpensOnVenueOutage(t *testing.T) {
	v := &venue{quoteStatus: http.StatusBadGateway, quoteBody: "bad gateway"}
	c := newTestClient(t, v, new(blockchaintest.MockClient), newTestWallet(t))

	for i := 0; i < 5; i++ {
		_, err := c.GetQuote(context.Background(), 1_000_000)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrQuoteUnavailable)
	}
	// после трёх отказов подряд запросы не доходят до площадки
	assert.Equal(t, int32(3), v.quoteCalls.Load())
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{SlippageBps: 100}, nil, nil, zap.NewNop())
	assert.ErrorIs(t, err, types.ErrConfig)

	_, err = NewClient(Config{OutputMint: testMint, SlippageBps: 0}, nil, nil, zap.NewNop())
	assert.ErrorIs(t, err, types.ErrConfig)
}
