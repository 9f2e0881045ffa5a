// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage/models"
)

var (
	// ErrNotFound - записи нет
	ErrNotFound = errors.New("record not found")
	// ErrUnconfirmed - запись о партии без подтверждения не сохраняется в заказ
	ErrUnconfirmed = errors.New("blockchain record is not confirmed")
)

// Storage определяет интерфейс для работы с хранилищем
type Storage interface {
	// Заказы
	SaveOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, error)
	// UpdateOrderBlockchain пишет order.blockchain. Только подтвержденные записи.
	UpdateOrderBlockchain(ctx context.Context, orderID string, record models.OrderBlockchain) error

	// Задания
	EnqueueJob(ctx context.Context, job *models.Job) error
	// ClaimJob атомарно переводит одно готовое задание в running. nil, nil если заданий нет.
	ClaimJob(ctx context.Context, now time.Time) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, status string, limit int) ([]*models.Job, error)

	// Транзакции
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, signature string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, walletAddress string, limit, offset int) ([]*models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, signature string, status string, errorMsg string) error

	RunMigrations() error
	Close() error
}

// ValidateConfirmed проверяет, что запись получена из подтвержденной транзакции
func ValidateConfirmed(record models.OrderBlockchain) error {
	switch {
	case record.BatchID == "":
		return fmt.Errorf("%w: batch id is empty", ErrUnconfirmed)
	case record.TransactionHash == "":
		return fmt.Errorf("%w: transaction hash is empty", ErrUnconfirmed)
	case record.ConfirmedAt == nil || record.ConfirmedAt.IsZero():
		return fmt.Errorf("%w: confirmation time is missing", ErrUnconfirmed)
	}
	return nil
}

// NewJob заполняет служебные поля нового задания
func NewJob(id, jobType, orderID string, maxAttempts int, now time.Time) *models.Job {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &models.Job{
		ID:          id,
		Type:        jobType,
		OrderID:     orderID,
		Status:      models.JobPending,
		MaxAttempts: maxAttempts,
		NextRunAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
