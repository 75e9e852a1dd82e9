// internal/dex/jupiter/errors.go
package jupiter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rovshanmuradov/solana-flywheel/internal/types"
)

// Коды ошибок программы Jupiter
const (
	SlippageExceededCode    = "0x1771"
	SlippageExceededCodeInt = 6001
)

// SlippageExceededError - preflight отклонил свап из-за проскальзывания
type SlippageExceededError struct {
	SlippageBps   types.SlippageBps
	Amount        uint64
	OriginalError error
}

// IsSlippageExceededError определяет, является ли ошибка ошибкой превышения проскальзывания
func IsSlippageExceededError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SlippageToleranceExceeded") ||
		strings.Contains(msg, SlippageExceededCode) ||
		strings.Contains(msg, strconv.Itoa(SlippageExceededCodeInt))
}

func (e *SlippageExceededError) Error() string {
	return fmt.Sprintf("slippage exceeded at %.2f%% for %d lamports: %v",
		e.SlippageBps.Percent(), e.Amount, e.OriginalError)
}

func (e *SlippageExceededError) Unwrap() error {
	return e.OriginalError
}
