// internal/blockchain/blockchaintest/mock.go
package blockchaintest

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/mock"

	"github.com/rovshanmuradov/solana-flywheel/internal/blockchain"
)

// MockClient реализует интерфейс blockchain.Client для тестов
type MockClient struct {
	mock.Mock
}

var _ blockchain.Client = (*MockClient)(nil)

func (m *MockClient) GetLatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Get(1).(uint64), args.Error(2)
}

func (m *MockClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockClient) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	args := m.Called(ctx, pubkey, commitment)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockClient) GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockClient) AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error) {
	args := m.Called(ctx, pubkey)
	return args.Bool(0), args.Error(1)
}

func (m *MockClient) GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	args := m.Called(ctx, mint)
	return args.Get(0).(uint8), args.Error(1)
}

func (m *MockClient) WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) error {
	args := m.Called(ctx, signature, lastValidBlockHeight)
	return args.Error(0)
}
