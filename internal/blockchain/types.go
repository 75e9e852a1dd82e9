// internal/blockchain/types.go
package blockchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	// ErrTransactionFailed - транзакция включена в блок, но завершилась ошибкой исполнения
	ErrTransactionFailed = errors.New("transaction execution failed")
	// ErrBlockhashExpired - blockhash транзакции истёк, а подтверждения так и не было
	ErrBlockhashExpired = errors.New("blockhash expired before confirmation")
)

// SettlementState - состояние отправленной транзакции
type SettlementState string

const (
	SettlementSubmitted SettlementState = "submitted"
	SettlementConfirmed SettlementState = "confirmed"
	SettlementFailed    SettlementState = "failed"
)

// Settlement описывает подписанную и отправленную транзакцию.
type Settlement struct {
	Signature            solana.Signature
	LastValidBlockHeight uint64
	State                SettlementState
}

// NewSettlement фиксирует только что принятую узлом транзакцию.
func NewSettlement(sig solana.Signature, lastValidBlockHeight uint64) Settlement {
	return Settlement{
		Signature:            sig,
		LastValidBlockHeight: lastValidBlockHeight,
		State:                SettlementSubmitted,
	}
}

// Await доводит отправленную транзакцию до confirmed или failed.
// Отмена ctx ожидание не прерывает: исход решает только леджер.
func (s *Settlement) Await(ctx context.Context, c Client) error {
	if s.State != SettlementSubmitted {
		return fmt.Errorf("settlement %s is already %s", s.Signature, s.State)
	}
	if err := c.WaitForTransactionConfirmation(context.WithoutCancel(ctx), s.Signature, s.LastValidBlockHeight); err != nil {
		s.State = SettlementFailed
		return err
	}
	s.State = SettlementConfirmed
	return nil
}

// Client определяет интерфейс к леджеру, нужный флайвилу.
type Client interface {
	// Получить последний blockhash и высоту, до которой он действителен.
	GetLatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)
	// Отправить подписанную транзакцию (с preflight-проверкой).
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// Получить баланс аккаунта в лампортах.
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
	// Получить сырой баланс токен-аккаунта; отсутствующий аккаунт даёт 0.
	GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	// Проверить существование аккаунта.
	AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error)
	// Получить decimals минта.
	GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
	// Ожидание подтверждения транзакции на уровне confirmed.
	WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64) error
}
