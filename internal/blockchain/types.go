// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
// Чтения повторяются реализацией с ограниченным backoff, записи (SendTransaction) нет.
type Client interface {
	// Адрес текущего RPC узла.
	Endpoint() string
	// Получить последний blockhash.
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	// Отправить транзакцию.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// Получить аккаунт. Возвращает nil, nil если аккаунта нет.
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.Account, error)
	// Получить все аккаунты программы с memcmp фильтрами.
	GetProgramAccounts(ctx context.Context, programID solana.PublicKey, filters []rpc.RPCFilter) (rpc.GetProgramAccountsResult, error)
	// Последние подписи по адресу, от новых к старым.
	GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.TransactionSignature, error)
	// Получить транзакцию. Возвращает nil, nil если транзакция не найдена.
	GetTransaction(ctx context.Context, signature solana.Signature) (*rpc.GetTransactionResult, error)
	// Получить статусы подписей транзакций.
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	// Версия узла.
	GetVersion(ctx context.Context) (*rpc.GetVersionResult, error)
	// Получить баланс аккаунта.
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
	// Запросить airdrop (только devnet/testnet/localnet).
	RequestAirdrop(ctx context.Context, pubkey solana.PublicKey, lamports uint64) (solana.Signature, error)
}
