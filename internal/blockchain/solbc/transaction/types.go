// internal/blockchain/solbc/transaction/types.go
package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/wallet"
)

var (
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout")
	ErrInvalidBlockhash    = errors.New("invalid blockhash")
	ErrInvalidInstruction  = errors.New("invalid instruction")
)

const (
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

// Статусы транзакции
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFinalized = "finalized"
	StatusFailed    = "failed"
)

type Config struct {
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Commitment     rpc.CommitmentType
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		ConfirmTimeout: DefaultConfirmTimeout,
		PollInterval:   DefaultPollInterval,
		Commitment:     rpc.CommitmentConfirmed,
	}
}

type Status struct {
	Signature     string
	Status        string
	Confirmations uint64
	Slot          uint64
	Error         string
	Timestamp     time.Time
}

// Chain - часть RPC клиента, нужная конвейеру отправки
type Chain interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// Request описывает одну отправку
type Request struct {
	// Операция для логов и метрик (create_batch, transfer_ownership, ...)
	Operation    string
	Instructions []solana.Instruction
	// Кошелек владельца, он же плательщик комиссии
	Wallet wallet.Wallet
	// Локальные ключи, подписывающие до кошелька (например, новый аккаунт партии)
	LocalSigners []solana.PrivateKey
	// Переопределяет Config.ConfirmTimeout, если больше нуля
	ConfirmTimeout time.Duration
}

// Result - подтвержденный результат отправки
type Result struct {
	Signature solana.Signature
	Slot      uint64
	Status    *Status
}
