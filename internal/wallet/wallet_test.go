// internal/wallet/wallet_test.go
package wallet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWalletFromBase58(t *testing.T) {
	acc := solana.NewWallet()

	w, err := NewWallet(base58.Encode(acc.PrivateKey))
	require.NoError(t, err)
	assert.True(t, w.PublicKey.Equals(acc.PublicKey()))

	_, err = NewWallet(base58.Encode([]byte{1, 2, 3}))
	assert.Error(t, err)

	_, err = NewWallet("0OIl")
	assert.Error(t, err)
}

func TestLoadPrefersKeypairFile(t *testing.T) {
	fileAcc := solana.NewWallet()
	envAcc := solana.NewWallet()

	ints := make([]int, len(fileAcc.PrivateKey))
	for i, b := range fileAcc.PrivateKey {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0600))

	w, err := Load(path, base58.Encode(envAcc.PrivateKey))
	require.NoError(t, err)
	assert.True(t, w.PublicKey.Equals(fileAcc.PublicKey()))

	w, err = Load(filepath.Join(t.TempDir(), "missing.json"), base58.Encode(envAcc.PrivateKey))
	require.NoError(t, err)
	assert.True(t, w.PublicKey.Equals(envAcc.PublicKey()))

	_, err = Load("", "")
	assert.Error(t, err)
}

func TestGetATAIsDeterministic(t *testing.T) {
	acc := solana.NewWallet()
	w, err := NewWallet(base58.Encode(acc.PrivateKey))
	require.NoError(t, err)

	mint := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	expected, _, err := solana.FindAssociatedTokenAddress(acc.PublicKey(), mint)
	require.NoError(t, err)

	first, err := w.GetATA(mint)
	require.NoError(t, err)
	second, err := w.GetATA(mint)
	require.NoError(t, err)

	assert.Equal(t, expected, first)
	assert.Equal(t, first, second)
}

func TestSignTransactionReplacesPlaceholders(t *testing.T) {
	acc := solana.NewWallet()
	w, err := NewWallet(base58.Encode(acc.PrivateKey))
	require.NoError(t, err)

	ix, _, err := CreateAssociatedTokenAccountIdempotentInstruction(
		w.PublicKey,
		solana.MustPublicKeyFromBase58("1nc1nerator11111111111111111111111111111111"),
		solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
	)
	require.NoError(t, err)

	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(w.PublicKey))
	require.NoError(t, err)
	tx.Signatures = []solana.Signature{{}}

	require.NoError(t, w.SignTransaction(tx))
	require.Len(t, tx.Signatures, 1)
	assert.NotEqual(t, solana.Signature{}, tx.Signatures[0])
	assert.NoError(t, tx.VerifySignatures())
}
