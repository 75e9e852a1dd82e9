// internal/blockchain/computebudget/computebudget.go
package computebudget

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var ProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

const (
	SetComputeUnitLimit uint8 = 2
	SetComputeUnitPrice uint8 = 3
)

// DisposalUnits хватает на create-ATA + TransferChecked с запасом
const DisposalUnits uint32 = 100_000

type SetComputeUnitLimitInstruction struct {
	Units uint32
}

type SetComputeUnitPriceInstruction struct {
	MicroLamports uint64
}

// Config - лимит CU и цена за CU в микролампортах
type Config struct {
	Units     uint32
	UnitPrice uint64
}

// PriceForFee переводит желаемую приоритетную комиссию в лампортах в цену
// за compute unit при заданном лимите
func PriceForFee(feeLamports uint64, units uint32) uint64 {
	if units == 0 || feeLamports == 0 {
		return 0
	}
	return feeLamports * 1_000_000 / uint64(units)
}

// BuildInstructions возвращает nil, если цена не задана: без приоритета
// лимит по умолчанию нас устраивает
func BuildInstructions(cfg Config) ([]solana.Instruction, error) {
	if cfg.UnitPrice == 0 {
		return nil, nil
	}
	if cfg.Units == 0 {
		cfg.Units = DisposalUnits
	}

	limit, err := (&SetComputeUnitLimitInstruction{Units: cfg.Units}).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build compute unit limit instruction: %w", err)
	}
	price, err := (&SetComputeUnitPriceInstruction{MicroLamports: cfg.UnitPrice}).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build compute unit price instruction: %w", err)
	}
	return []solana.Instruction{limit, price}, nil
}

func (instr *SetComputeUnitLimitInstruction) Build() (solana.Instruction, error) {
	return build(SetComputeUnitLimit, instr.Units)
}

func (instr *SetComputeUnitPriceInstruction) Build() (solana.Instruction, error) {
	return build(SetComputeUnitPrice, instr.MicroLamports)
}

func build(discriminator uint8, value any) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, discriminator); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, value); err != nil {
		return nil, err
	}
	return solana.NewInstruction(ProgramID, []*solana.AccountMeta{}, buf.Bytes()), nil
}
