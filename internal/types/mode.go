// internal/types/mode.go
package types

import (
	"fmt"
	"strings"
)

// LamportsPerSOL - количество лампортов в одном SOL
const LamportsPerSOL = 1_000_000_000

// DisposalMode определяет способ утилизации купленных токенов
type DisposalMode string

const (
	// DisposalBurn сжигает токены на месте (BurnChecked)
	DisposalBurn DisposalMode = "burn"
	// DisposalIncinerate переводит токены на адрес-инсинератор
	DisposalIncinerate DisposalMode = "incinerate"
)

// ParseDisposalMode accepts the configured selector case-insensitively.
func ParseDisposalMode(s string) (DisposalMode, error) {
	switch DisposalMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", DisposalBurn:
		return DisposalBurn, nil
	case DisposalIncinerate:
		return DisposalIncinerate, nil
	default:
		return "", fmt.Errorf("%w: unknown burn mode %q", ErrConfig, s)
	}
}

// SlippageBps - допустимое проскальзывание в базисных пунктах (100 = 1%)
type SlippageBps uint16

// Validate rejects tolerances above 100%.
func (s SlippageBps) Validate() error {
	if s == 0 || s > 10_000 {
		return fmt.Errorf("%w: slippage_bps must be in 1..10000, got %d", ErrConfig, s)
	}
	return nil
}

// Percent returns the tolerance as a percentage.
func (s SlippageBps) Percent() float64 {
	return float64(s) / 100
}
