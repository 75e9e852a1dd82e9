// internal/blockchain/settlement_test.go
package blockchain_test

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-flywheel/internal/blockchain"
	"github.com/rovshanmuradov/solana-flywheel/internal/blockchain/blockchaintest"
)

func TestSettlementAwait(t *testing.T) {
	sig := solana.Signature{4}

	t.Run("confirmed", func(t *testing.T) {
		chain := new(blockchaintest.MockClient)
		chain.On("WaitForTransactionConfirmation", mock.Anything, sig, uint64(42)).Return(nil)

		s := blockchain.NewSettlement(sig, 42)
		assert.Equal(t, blockchain.SettlementSubmitted, s.State)
		require.NoError(t, s.Await(context.Background(), chain))
		assert.Equal(t, blockchain.SettlementConfirmed, s.State)
	})

	t.Run("failed", func(t *testing.T) {
		chain := new(blockchaintest.MockClient)
		chain.On("WaitForTransactionConfirmation", mock.Anything, sig, uint64(42)).Return(blockchain.ErrTransactionFailed)

		s := blockchain.NewSettlement(sig, 42)
		err := s.Await(context.Background(), chain)
		assert.ErrorIs(t, err, blockchain.ErrTransactionFailed)
		assert.Equal(t, blockchain.SettlementFailed, s.State)

		// повторное ожидание завершённого расчёта - ошибка вызывающего
		require.Error(t, s.Await(context.Background(), chain))
		chain.AssertNumberOfCalls(t, "WaitForTransactionConfirmation", 1)
	})

	t.Run("cancelled caller still waits for the ledger", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		chain := new(blockchaintest.MockClient)
		chain.On("WaitForTransactionConfirmation", mock.MatchedBy(func(c context.Context) bool {
			return c.Err() == nil
		}), sig, uint64(42)).Return(nil)

		s := blockchain.NewSettlement(sig, 42)
		require.NoError(t, s.Await(ctx, chain))
		assert.Equal(t, blockchain.SettlementConfirmed, s.State)
	})
}
