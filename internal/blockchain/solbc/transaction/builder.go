// internal/blockchain/solbc/transaction/builder.go
package transaction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
)

// Builder помогает конструировать транзакции. Сборка не обращается к сети:
// blockhash передается явно и должен быть получен непосредственно перед Build.
type Builder struct {
	instructions []solana.Instruction
	feePayer     solana.PublicKey
	blockhash    solana.Hash
}

// NewBuilder создает новый билдер транзакций
func NewBuilder() *Builder {
	return &Builder{}
}

// AddInstruction добавляет инструкции в транзакцию, порядок сохраняется
func (b *Builder) AddInstruction(instructions ...solana.Instruction) *Builder {
	b.instructions = append(b.instructions, instructions...)
	return b
}

// SetFeePayer задает плательщика комиссии
func (b *Builder) SetFeePayer(payer solana.PublicKey) *Builder {
	b.feePayer = payer
	return b
}

// SetRecentBlockhash задает токен свежести
func (b *Builder) SetRecentBlockhash(hash solana.Hash) *Builder {
	b.blockhash = hash
	return b
}

// Build создает неподписанную транзакцию
func (b *Builder) Build() (*solana.Transaction, error) {
	if len(b.instructions) == 0 {
		return nil, blockchain.ErrNoInstructions
	}
	if b.feePayer.IsZero() {
		return nil, blockchain.ErrMissingFeePayer
	}
	if b.blockhash == (solana.Hash{}) {
		return nil, blockchain.ErrMissingFreshnessToken
	}

	tx, err := solana.NewTransaction(
		b.instructions,
		b.blockhash,
		solana.TransactionPayer(b.feePayer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	return tx, nil
}
