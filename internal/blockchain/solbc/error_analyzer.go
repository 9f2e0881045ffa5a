package solbc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// ProgramError represents a failure reported by an on-chain program
type ProgramError struct {
	ProgramID string `json:"programId,omitempty"`
	Code      string `json:"code,omitempty"`
	Log       string `json:"log,omitempty"`
}

// ErrorAnalyzer provides methods to analyze Solana transaction errors
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

// AnalyzeRPCError analyzes a jsonrpc.RPCError and extracts detailed information
func (ea *ErrorAnalyzer) AnalyzeRPCError(err error) map[string]interface{} {
	if err == nil {
		return map[string]interface{}{
			"error": "No error provided",
		}
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

	if strings.Contains(rpcErr.Message, "Transaction simulation failed") {
		result["simulation_failed"] = true
	}

	dataMap, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return result
	}

	if logs, ok := dataMap["logs"].([]interface{}); ok {
		result["logs"] = logs
		for _, logEntry := range logs {
			logStr, ok := logEntry.(string)
			if !ok {
				continue
			}
			if pe, ok := parseProgramFailure(logStr); ok {
				result["program_error"] = pe
				ea.logger.Warn("Program error detected",
					zap.String("program_id", pe.ProgramID),
					zap.String("code", pe.Code))
			}
		}
	}

	if instrErr, ok := dataMap["err"]; ok && instrErr != nil {
		result["instruction_error"] = instrErr
	}

	return result
}

// RejectReason возвращает причину отказа в виде, пригодном для показа пользователю.
// Сообщение узла сохраняется дословно, к нему добавляется ошибка программы, если она есть в логах.
func (ea *ErrorAnalyzer) RejectReason(err error) string {
	if err == nil {
		return ""
	}
	analysis := ea.AnalyzeRPCError(err)
	msg, _ := analysis["message"].(string)
	if pe, ok := analysis["program_error"].(ProgramError); ok && pe.Log != "" {
		return fmt.Sprintf("%s [%s]", msg, pe.Log)
	}
	if instrErr, ok := analysis["instruction_error"]; ok {
		if raw, jerr := json.Marshal(instrErr); jerr == nil {
			return fmt.Sprintf("%s %s", msg, raw)
		}
	}
	return msg
}

// parseProgramFailure parses a runtime log line of a failed program.
// Example: "Program DBL4hbkkDsVHwDBSKGmA4ivneVR8Zf5RHmYHpE1XrR8x failed: custom program error: 0x1"
func parseProgramFailure(logStr string) (ProgramError, bool) {
	const marker = " failed: "
	if !strings.HasPrefix(logStr, "Program ") || !strings.Contains(logStr, marker) {
		return ProgramError{}, false
	}
	head, tail, _ := strings.Cut(strings.TrimPrefix(logStr, "Program "), marker)
	pe := ProgramError{ProgramID: strings.TrimSpace(head), Log: logStr}
	if _, code, ok := strings.Cut(tail, "custom program error: "); ok {
		pe.Code = strings.TrimSpace(code)
	} else {
		pe.Code = strings.TrimSpace(tail)
	}
	return pe, true
}

// FormatErrorAnalysis formats the error analysis for logging or display
func (ea *ErrorAnalyzer) FormatErrorAnalysis(analysis map[string]interface{}) string {
	jsonBytes, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error formatting analysis: %v", err)
	}
	return string(jsonBytes)
}
