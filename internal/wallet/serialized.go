package wallet

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/semaphore"
)

// Serialized допускает не более одного запроса подписи одновременно.
// Внешние кошельки не умеют показывать пользователю несколько запросов сразу.
type Serialized struct {
	Wallet
	sem *semaphore.Weighted
}

// Serialize оборачивает кошелек. Повторная обертка не создается.
func Serialize(w Wallet) Wallet {
	if w == nil {
		return nil
	}
	if _, ok := w.(*Serialized); ok {
		return w
	}
	return &Serialized{Wallet: w, sem: semaphore.NewWeighted(1)}
}

// SignTransaction ждет своей очереди с учетом отмены контекста.
func (s *Serialized) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	return s.Wallet.SignTransaction(ctx, tx)
}

func (s *Serialized) SendTransaction(ctx context.Context, tx *solana.Transaction, sender Sender) (solana.Signature, error) {
	return signAndSend(ctx, s, tx, sender)
}

// Unwrap возвращает исходный кошелек
func (s *Serialized) Unwrap() Wallet { return s.Wallet }
