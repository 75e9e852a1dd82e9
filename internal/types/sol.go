// internal/types/sol.go
package types

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// lamportsExp - десятичный порядок лампорта относительно SOL
const lamportsExp = 9

var maxLamports = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// SOL - сумма в SOL без потерь точности. В JSON пишется числом, как в
// исходном формате файла состояния.
type SOL struct {
	decimal.Decimal
}

// SOLFromLamports точно переводит лампорты в SOL.
func SOLFromLamports(lamports uint64) SOL {
	return SOL{decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -lamportsExp)}
}

// ParseSOL разбирает десятичную запись суммы в SOL. Отрицательные суммы,
// дробные лампорты и выход за u64 отклоняются.
func ParseSOL(s string) (SOL, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return SOL{}, fmt.Errorf("invalid SOL amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return SOL{}, fmt.Errorf("negative SOL amount %q", s)
	}
	lamports := d.Shift(lamportsExp)
	if !lamports.IsInteger() {
		return SOL{}, fmt.Errorf("SOL amount %q is finer than one lamport", s)
	}
	if lamports.GreaterThan(maxLamports) {
		return SOL{}, fmt.Errorf("SOL amount %q overflows lamports", s)
	}
	return SOL{d}, nil
}

// Lamports returns the amount in lamports. Amounts parsed with ParseSOL
// convert exactly; a sub-lamport remainder from older state files is dropped.
func (s SOL) Lamports() uint64 {
	lamports := s.Shift(lamportsExp).Truncate(0)
	if lamports.Sign() <= 0 {
		return 0
	}
	if lamports.GreaterThan(maxLamports) {
		return math.MaxUint64
	}
	return lamports.BigInt().Uint64()
}

func (s SOL) MarshalJSON() ([]byte, error) {
	return []byte(s.Decimal.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (s *SOL) UnmarshalJSON(data []byte) error {
	return s.Decimal.UnmarshalJSON(data)
}
