// internal/flywheel/disposal.go
package flywheel

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-flywheel/internal/blockchain"
	"github.com/rovshanmuradov/solana-flywheel/internal/blockchain/computebudget"
	"github.com/rovshanmuradov/solana-flywheel/internal/types"
	"github.com/rovshanmuradov/solana-flywheel/internal/wallet"
)

// IncineratorAddress - системный адрес без приватного ключа; токены на его ATA
// безвозвратно выведены из оборота
var IncineratorAddress = solana.MustPublicKeyFromBase58("1nc1nerator11111111111111111111111111111111")

// DisposalResult - сколько сырых единиц утилизировано и какой транзакцией.
// Settlement == nil, если баланс был нулевым.
type DisposalResult struct {
	Amount     uint64
	Settlement *blockchain.Settlement
}

// Disposer сжигает или отправляет в инсинератор весь баланс токен-аккаунта казны
type Disposer struct {
	chain  blockchain.Client
	wallet *wallet.Wallet
	mint   solana.PublicKey
	logger *zap.Logger
	budget computebudget.Config

	mu       sync.Mutex
	decimals *uint8
}

func NewDisposer(chain blockchain.Client, w *wallet.Wallet, mint solana.PublicKey, logger *zap.Logger) *Disposer {
	return &Disposer{
		chain:  chain,
		wallet: w,
		mint:   mint,
		logger: logger.Named("disposer"),
	}
}

// WithPriorityFee добавляет в транзакции утилизации compute budget инструкции
// так, чтобы приоритетная комиссия составляла около feeLamports
func (d *Disposer) WithPriorityFee(feeLamports uint64) *Disposer {
	d.budget = computebudget.Config{
		Units:     computebudget.DisposalUnits,
		UnitPrice: computebudget.PriceForFee(feeLamports, computebudget.DisposalUnits),
	}
	return d
}

// Dispose читает текущий баланс ata и утилизирует его целиком, включая
// остатки прошлых тиков.
func (d *Disposer) Dispose(ctx context.Context, mode types.DisposalMode, ata solana.PublicKey) (DisposalResult, error) {
	failed := types.ErrBurnFailed
	if mode == types.DisposalIncinerate {
		failed = types.ErrTransferFailed
	}

	amount, err := d.chain.GetTokenBalance(ctx, ata)
	if err != nil {
		return DisposalResult{}, fmt.Errorf("%w: read balance of %s: %v", failed, ata, err)
	}
	if amount == 0 {
		d.logger.Info("Nothing to dispose", zap.String("ata", ata.String()))
		return DisposalResult{}, nil
	}

	decimals, err := d.mintDecimals(ctx)
	if err != nil {
		return DisposalResult{}, fmt.Errorf("%w: %v", failed, err)
	}

	var instructions []solana.Instruction
	switch mode {
	case types.DisposalBurn:
		instructions = []solana.Instruction{
			token.NewBurnCheckedInstruction(amount, decimals, ata, d.mint, d.wallet.PublicKey, []solana.PublicKey{}).Build(),
		}
	case types.DisposalIncinerate:
		instructions, err = d.incinerateInstructions(ctx, ata, amount, decimals)
		if err != nil {
			return DisposalResult{}, fmt.Errorf("%w: %v", failed, err)
		}
	default:
		return DisposalResult{}, fmt.Errorf("%w: unknown disposal mode %q", types.ErrConfig, mode)
	}

	settlement, err := d.submitAndConfirm(ctx, instructions, failed)
	if err != nil {
		return DisposalResult{}, err
	}

	d.logger.Info("Tokens disposed",
		zap.String("mode", string(mode)),
		zap.Uint64("amount", amount),
		zap.String("signature", settlement.Signature.String()),
		zap.String("state", string(settlement.State)))
	return DisposalResult{Amount: amount, Settlement: &settlement}, nil
}

// incinerateInstructions собирает перевод на ATA инсинератора; если ATA ещё
// нет, перед переводом добавляется её создание в той же транзакции
func (d *Disposer) incinerateInstructions(ctx context.Context, ata solana.PublicKey, amount uint64, decimals uint8) ([]solana.Instruction, error) {
	createIx, sinkATA, err := wallet.CreateAssociatedTokenAccountIdempotentInstruction(
		d.wallet.PublicKey, IncineratorAddress, d.mint)
	if err != nil {
		return nil, fmt.Errorf("derive incinerator ata: %w", err)
	}

	exists, err := d.chain.AccountExists(ctx, sinkATA)
	if err != nil {
		return nil, fmt.Errorf("check incinerator ata: %w", err)
	}

	var instructions []solana.Instruction
	if !exists {
		d.logger.Debug("Incinerator ATA missing, creating", zap.String("ata", sinkATA.String()))
		instructions = append(instructions, createIx)
	}
	instructions = append(instructions,
		token.NewTransferCheckedInstruction(amount, decimals, ata, d.mint, sinkATA, d.wallet.PublicKey, []solana.PublicKey{}).Build())
	return instructions, nil
}

func (d *Disposer) submitAndConfirm(ctx context.Context, instructions []solana.Instruction, failed error) (blockchain.Settlement, error) {
	budget, err := computebudget.BuildInstructions(d.budget)
	if err != nil {
		return blockchain.Settlement{}, fmt.Errorf("%w: %v", failed, err)
	}
	instructions = append(budget, instructions...)

	blockhash, lastValid, err := d.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return blockchain.Settlement{}, fmt.Errorf("%w: get blockhash: %v", failed, err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(d.wallet.PublicKey))
	if err != nil {
		return blockchain.Settlement{}, fmt.Errorf("%w: create transaction: %v", failed, err)
	}
	if err := d.wallet.SignTransaction(tx); err != nil {
		return blockchain.Settlement{}, fmt.Errorf("%w: sign transaction: %v", failed, err)
	}

	sig, err := d.chain.SendTransaction(ctx, tx)
	if err != nil {
		return blockchain.Settlement{}, fmt.Errorf("%w: %v", failed, err)
	}

	settlement := blockchain.NewSettlement(sig, lastValid)
	if err := settlement.Await(ctx, d.chain); err != nil {
		d.logger.Warn("Disposal settlement failed",
			zap.String("signature", sig.String()),
			zap.String("state", string(settlement.State)),
			zap.Error(err))
		return settlement, fmt.Errorf("%w: %s: %w", types.ErrDisposalNotConfirmed, sig, err)
	}
	return settlement, nil
}

// mintDecimals кэширует decimals после первого успешного чтения; минт не
// меняется за время жизни процесса
func (d *Disposer) mintDecimals(ctx context.Context) (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.decimals != nil {
		return *d.decimals, nil
	}
	decimals, err := d.chain.GetMintDecimals(ctx, d.mint)
	if err != nil {
		return 0, fmt.Errorf("read mint decimals: %w", err)
	}
	d.decimals = &decimals
	return decimals, nil
}
