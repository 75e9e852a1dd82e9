// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-flywheel/internal/blockchain"
)

const (
	defaultPollInterval = 500 * time.Millisecond

	// Invalid params: так узел отвечает на запрос несуществующего аккаунта
	rpcInvalidParamsCode = -32602
)

var errNotConfirmedYet = errors.New("transaction not confirmed yet")

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc          *rpc.Client
	logger       *zap.Logger
	analyzer     *ErrorAnalyzer
	pollInterval time.Duration
}

// IsAccountNotFoundError распознаёт только отсутствие аккаунта. Прочие
// "not found" (неизвестный метод, неверный endpoint) ошибкой аккаунта не являются.
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == rpcInvalidParamsCode &&
			strings.Contains(strings.ToLower(rpcErr.Message), "could not find account")
	}
	return false
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:          rpc.New(rpcURL),
		logger:       logger.Named("solbc-client"),
		analyzer:     NewErrorAnalyzer(logger),
		pollInterval: defaultPollInterval,
	}
}

// GetLatestBlockhash получает последний blockhash и lastValidBlockHeight.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Error("GetLatestBlockhash error", zap.Error(err))
		return solana.Hash{}, 0, err
	}
	if result == nil || result.Value == nil {
		return solana.Hash{}, 0, fmt.Errorf("empty latest blockhash response")
	}
	return result.Value.Blockhash, result.Value.LastValidBlockHeight, nil
}

// SendTransaction отправляет транзакцию с preflight-симуляцией.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		details := c.analyzer.AnalyzeRPCError(err)
		c.logger.Error("SendTransaction error", zap.Error(err), zap.Any("details", details))
		return solana.Signature{}, err
	}
	return sig, nil
}

// GetBalance получает баланс аккаунта.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, pubkey, commitment)
	if err != nil {
		c.logger.Error("GetBalance error", zap.String("pubkey", pubkey.String()), zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// GetTokenBalance получает сырой баланс токенного аккаунта.
func (c *Client) GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	result, err := c.rpc.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		if IsAccountNotFoundError(err) {
			c.logger.Debug("Token account not found, balance is zero", zap.String("account", account.String()))
			return 0, nil
		}
		c.logger.Error("GetTokenAccountBalance error", zap.String("account", account.String()), zap.Error(err))
		return 0, err
	}
	if result == nil || result.Value == nil || result.Value.Amount == "" {
		return 0, nil
	}
	amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", result.Value.Amount, err)
	}
	return amount, nil
}

// AccountExists проверяет, создан ли аккаунт.
func (c *Client) AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error) {
	result, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		c.logger.Debug("GetAccountInfo error", zap.String("pubkey", pubkey.String()), zap.Error(err))
		return false, err
	}
	return result != nil && result.Value != nil, nil
}

// GetMintDecimals читает аккаунт минта и возвращает его decimals.
func (c *Client) GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	var m token.Mint
	if err := c.rpc.GetAccountDataInto(ctx, mint, &m); err != nil {
		c.logger.Debug("GetAccountDataInto error", zap.String("mint", mint.String()), zap.Error(err))
		return 0, fmt.Errorf("read mint %s: %w", mint, err)
	}
	return m.Decimals, nil
}

// WaitForTransactionConfirmation ожидает статуса confirmed. Ожидание завершают
// только подтверждение, ошибка исполнения, истечение blockhash или отмена ctx;
// сетевые ошибки опроса повторяются. Если lastValidBlockHeight неизвестна (0),
// берётся граница текущего blockhash: она не раньше границы транзакции.
func (c *Client) WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) error {
	if lastValidBlockHeight == 0 {
		_, latest, err := c.GetLatestBlockhash(ctx)
		if err != nil {
			return fmt.Errorf("resolve last valid block height: %w", err)
		}
		lastValidBlockHeight = latest
	}

	op := func() (struct{}, error) {
		done, err := c.checkStatus(ctx, signature)
		if err != nil || done {
			return struct{}{}, err
		}
		height, err := c.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			c.logger.Warn("Error getting block height", zap.Error(err))
			return struct{}{}, errNotConfirmedYet
		}
		if height <= lastValidBlockHeight {
			return struct{}{}, errNotConfirmedYet
		}

		// транзакция могла попасть в блок между двумя запросами
		if done, err := c.checkStatus(ctx, signature); err != nil || done {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %s (height %d > %d)",
			blockchain.ErrBlockhashExpired, signature, height, lastValidBlockHeight))
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.pollInterval)),
		// 0 снимает лимит по умолчанию (15 минут)
		backoff.WithMaxElapsedTime(0),
	)
	return err
}

// checkStatus возвращает true, когда транзакция подтверждена; ошибка исполнения
// возвращается как постоянная.
func (c *Client) checkStatus(ctx context.Context, signature solana.Signature) (bool, error) {
	statuses, err := c.rpc.GetSignatureStatuses(ctx, true, signature)
	if err != nil {
		c.logger.Warn("Error getting signature statuses", zap.Error(err))
		return false, nil
	}
	if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
		return false, nil
	}
	status := statuses.Value[0]
	if status.Err != nil {
		return false, backoff.Permanent(fmt.Errorf("%w: %s: %v", blockchain.ErrTransactionFailed, signature, status.Err))
	}
	return status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized, nil
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
