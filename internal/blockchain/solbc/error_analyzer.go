// internal/blockchain/solbc/error_analyzer.go
package solbc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// ProgramError - ошибка программы, найденная в логах симуляции.
type ProgramError struct {
	Code uint64 `json:"code"`
	Hint string `json:"hint,omitempty"`
}

// известные коды ошибок, которые встречаются при свопе и сжигании
var knownProgramErrors = map[uint64]string{
	0x1:    "insufficient funds",
	0x1771: "slippage tolerance exceeded",
	0x1788: "not enough account keys",
}

// ErrorAnalyzer разбирает ошибки preflight-симуляции Solana
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

// AnalyzeRPCError извлекает логи и код ошибки программы из jsonrpc.RPCError
func (ea *ErrorAnalyzer) AnalyzeRPCError(err error) map[string]interface{} {
	if err == nil {
		return map[string]interface{}{"error": "No error provided"}
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return map[string]interface{}{
			"type":    "generic_error",
			"message": err.Error(),
		}
	}

	result := map[string]interface{}{
		"type":    "rpc_error",
		"code":    rpcErr.Code,
		"message": rpcErr.Message,
	}

	if !strings.Contains(rpcErr.Message, "simulation failed") {
		return result
	}
	result["simulation_failed"] = true

	dataMap, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return result
	}
	if logs, ok := dataMap["logs"].([]interface{}); ok {
		result["logs"] = logs
		for _, entry := range logs {
			line, ok := entry.(string)
			if !ok {
				continue
			}
			if pe, found := parseProgramErrorLog(line); found {
				result["program_error"] = pe
				ea.logger.Warn("Program error detected",
					zap.Uint64("code", pe.Code),
					zap.String("hint", pe.Hint))
			}
		}
	}
	if instrErr, ok := dataMap["err"]; ok {
		result["instruction_error"] = instrErr
	}
	return result
}

// parseProgramErrorLog ищет строку вида
// "Program X failed: custom program error: 0x1771"
func parseProgramErrorLog(line string) (ProgramError, bool) {
	const marker = "custom program error: 0x"
	idx := strings.Index(line, marker)
	if idx < 0 {
		return ProgramError{}, false
	}
	var pe ProgramError
	if _, err := fmt.Sscanf(line[idx+len(marker):], "%x", &pe.Code); err != nil {
		return ProgramError{}, false
	}
	pe.Hint = knownProgramErrors[pe.Code]
	return pe, true
}
