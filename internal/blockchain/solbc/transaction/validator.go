// internal/blockchain/solbc/transaction/validator.go
package transaction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/wallet"
)

type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{
		logger: logger.Named("tx-validator"),
	}
}

func (v *Validator) ValidateTransaction(tx *solana.Transaction) error {
	if err := v.ValidateBlockhash(tx); err != nil {
		return err
	}

	if err := v.ValidateInstructions(tx.Message.Instructions); err != nil {
		return err
	}

	return v.ValidateSignatures(tx)
}

// ValidateSignatures проверяет, что все обязательные подписи на месте и верны
func (v *Validator) ValidateSignatures(tx *solana.Transaction) error {
	missing, err := wallet.MissingSigners(tx)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		keys := make([]string, len(missing))
		for i, k := range missing {
			keys[i] = k.String()
		}
		v.logger.Warn("Transaction is missing signatures", zap.Strings("signers", keys))
		return fmt.Errorf("%w: %v", blockchain.ErrMissingSignature, keys)
	}
	return nil
}

func (v *Validator) ValidateBlockhash(tx *solana.Transaction) error {
	if tx.Message.RecentBlockhash == (solana.Hash{}) {
		return fmt.Errorf("%w: %w", blockchain.ErrMissingFreshnessToken, ErrInvalidBlockhash)
	}
	return nil
}

func (v *Validator) ValidateInstructions(instructions []solana.CompiledInstruction) error {
	if len(instructions) == 0 {
		return fmt.Errorf("%w: %w", blockchain.ErrNoInstructions, ErrInvalidInstruction)
	}
	return nil
}
