// internal/dex/jupiter/swap.go
package jupiter

import (
	"context"
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-flywheel/internal/blockchain"
	"github.com/rovshanmuradov/solana-flywheel/internal/types"
)

// Swap обменивает lamports на целевой токен и возвращает расчёт после
// подтверждения уровня confirmed. Последовательность не повторяется.
// Отмена ctx после отправки транзакции ожидание подтверждения не прерывает.
func (c *Client) Swap(ctx context.Context, lamports uint64) (blockchain.Settlement, error) {
	quote, err := c.GetQuote(ctx, lamports)
	if err != nil {
		return blockchain.Settlement{}, err
	}

	built, err := c.buildSwap(ctx, quote)
	if err != nil {
		return blockchain.Settlement{}, err
	}

	tx, err := decodeTransaction(built.SwapTransaction)
	if err != nil {
		return blockchain.Settlement{}, fmt.Errorf("%w: %v", types.ErrSwapBuildFailed, err)
	}
	if err := c.wallet.SignTransaction(tx); err != nil {
		return blockchain.Settlement{}, fmt.Errorf("%w: sign: %v", types.ErrSwapBuildFailed, err)
	}

	sig, err := c.chain.SendTransaction(ctx, tx)
	if err != nil {
		if IsSlippageExceededError(err) {
			err = &SlippageExceededError{SlippageBps: c.config.SlippageBps, Amount: lamports, OriginalError: err}
		}
		return blockchain.Settlement{}, fmt.Errorf("%w: %w", types.ErrSubmissionFailed, err)
	}

	settlement := blockchain.NewSettlement(sig, built.LastValidBlockHeight)
	c.logger.Info("Swap submitted",
		zap.String("signature", sig.String()),
		zap.String("state", string(settlement.State)),
		zap.Uint64("lamports", lamports),
		zap.Uint64("expected_out", quote.OutAmount))

	if err := settlement.Await(ctx, c.chain); err != nil {
		c.logger.Warn("Swap settlement failed",
			zap.String("signature", sig.String()),
			zap.String("state", string(settlement.State)),
			zap.Error(err))
		return settlement, fmt.Errorf("%w: %s: %w", types.ErrSwapNotConfirmed, sig, err)
	}

	c.logger.Info("Swap confirmed",
		zap.String("signature", sig.String()),
		zap.String("state", string(settlement.State)))
	return settlement, nil
}

// decodeTransaction разбирает base64 (versioned) транзакцию площадки
func decodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}
