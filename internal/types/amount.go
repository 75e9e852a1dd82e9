// internal/types/amount.go
package types

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// RawAmount - количество токенов в минимальных единицах произвольной точности.
// Всегда целое и неотрицательное. В JSON сериализуется десятичной строкой.
type RawAmount struct {
	v decimal.Decimal
}

// NewRawAmount creates an amount from a uint64.
func NewRawAmount(n uint64) RawAmount {
	return RawAmount{v: decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0)}
}

// ParseRawAmount parses a decimal string as returned by getTokenAccountBalance.
func ParseRawAmount(s string) (RawAmount, error) {
	if s == "" {
		return RawAmount{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return RawAmount{}, fmt.Errorf("invalid raw amount %q: %w", s, err)
	}
	if !d.IsInteger() {
		return RawAmount{}, fmt.Errorf("fractional raw amount %q", s)
	}
	if d.IsNegative() {
		return RawAmount{}, fmt.Errorf("negative raw amount %q", s)
	}
	return RawAmount{v: d}, nil
}

// Add returns a + b without touching either operand.
func (a RawAmount) Add(b RawAmount) RawAmount {
	return RawAmount{v: a.v.Add(b.v)}
}

// IsZero reports whether the amount is zero.
func (a RawAmount) IsZero() bool {
	return a.v.IsZero()
}

// Uint64 returns the amount if it fits into a token-program u64.
func (a RawAmount) Uint64() (uint64, bool) {
	n := a.v.BigInt()
	if !n.IsUint64() {
		return 0, false
	}
	return n.Uint64(), true
}

func (a RawAmount) String() string {
	return a.v.String()
}

func (a RawAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.String())
}

func (a *RawAmount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// старые файлы могли хранить число
		var n json.Number
		if err2 := json.Unmarshal(data, &n); err2 != nil {
			return fmt.Errorf("raw amount: %w", err)
		}
		s = n.String()
	}
	parsed, err := ParseRawAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
