// internal/blockchain/solbc/transaction/monitor.go
package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// StatusReader возвращает статусы подписей
type StatusReader interface {
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

type Monitor struct {
	client StatusReader
	logger *zap.Logger
	config Config
}

func NewMonitor(client StatusReader, logger *zap.Logger, config Config) *Monitor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.ConfirmTimeout <= 0 {
		config.ConfirmTimeout = DefaultConfirmTimeout
	}
	if config.Commitment == "" {
		config.Commitment = rpc.CommitmentConfirmed
	}
	return &Monitor{
		client: client,
		logger: logger.Named("tx-monitor"),
		config: config,
	}
}

// GetTransactionStatus возвращает текущий статус транзакции
func (m *Monitor) GetTransactionStatus(ctx context.Context, signature solana.Signature) (*Status, error) {
	response, err := m.client.GetSignatureStatuses(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction status: %w", err)
	}

	if response == nil || len(response.Value) == 0 || response.Value[0] == nil {
		return &Status{
			Signature: signature.String(),
			Status:    StatusPending,
			Timestamp: time.Now(),
		}, nil
	}

	status := response.Value[0]
	txStatus := &Status{
		Signature: signature.String(),
		Timestamp: time.Now(),
		Slot:      status.Slot,
	}

	if status.Confirmations != nil {
		txStatus.Confirmations = *status.Confirmations
	}

	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		txStatus.Status = StatusFinalized
	case rpc.ConfirmationStatusConfirmed:
		txStatus.Status = StatusConfirmed
	default:
		txStatus.Status = StatusPending
	}

	if status.Err != nil {
		txStatus.Error = fmt.Sprintf("%v", status.Err)
		txStatus.Status = StatusFailed
	}

	return txStatus, nil
}

// reached сообщает, достигнут ли требуемый уровень подтверждения
func (m *Monitor) reached(status *Status) bool {
	switch status.Status {
	case StatusFinalized:
		return true
	case StatusConfirmed:
		return m.config.Commitment != rpc.CommitmentFinalized
	default:
		return false
	}
}

// AwaitConfirmation опрашивает статус до подтверждения, ошибки исполнения или дедлайна.
// Ошибка исполнения возвращается как статус failed без error.
func (m *Monitor) AwaitConfirmation(ctx context.Context, signature solana.Signature, timeout time.Duration) (*Status, error) {
	if timeout <= 0 {
		timeout = m.config.ConfirmTimeout
	}

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		status, err := m.GetTransactionStatus(ctx, signature)
		if err != nil {
			m.logger.Warn("Confirmation check failed",
				zap.String("signature", signature.String()),
				zap.Error(err))
		} else if status.Status == StatusFailed || m.reached(status) {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrConfirmationTimeout
		case <-ticker.C:
		}
	}
}
