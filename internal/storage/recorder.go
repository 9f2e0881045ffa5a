// internal/storage/recorder.go
package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/events"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage/models"
)

// Recorder пишет исходы отправок из шины событий в журнал транзакций
type Recorder struct {
	store  Storage
	logger *zap.Logger
}

func NewRecorder(store Storage, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger.Named("tx-recorder")}
}

// Attach подписывает Recorder на все события шины
func (r *Recorder) Attach(bus *events.Bus) events.Subscription {
	return bus.Subscribe(events.AllEvents, r)
}

// Handle реализует events.Handler
func (r *Recorder) Handle(ctx context.Context, event events.Event) error {
	record := r.toRecord(event)
	if record == nil {
		return nil
	}

	existing, err := r.store.GetTransaction(ctx, record.Signature)
	if err == nil && existing != nil {
		return r.store.UpdateTransactionStatus(ctx, record.Signature, record.Status, record.ErrorMessage)
	}
	if err := r.store.SaveTransaction(ctx, record); err != nil {
		r.logger.Error("Failed to record transaction", zap.String("signature", record.Signature), zap.Error(err))
		return err
	}
	return nil
}

func (r *Recorder) toRecord(event events.Event) *models.Transaction {
	ts := event.Timestamp()
	switch e := event.(type) {
	case *events.BatchCreatedEvent:
		return &models.Transaction{
			BaseModel:     models.BaseModel{CreatedAt: ts, UpdatedAt: ts},
			Signature:     e.Signature,
			Operation:     "create_batch",
			BatchID:       e.BatchID,
			BatchAccount:  e.BatchAccount,
			WalletAddress: e.Owner,
			Status:        models.TxConfirmed,
			Slot:          e.Slot,
			BlockTime:     timePtr(ts),
		}
	case *events.OwnershipTransferredEvent:
		return &models.Transaction{
			BaseModel:     models.BaseModel{CreatedAt: ts, UpdatedAt: ts},
			Signature:     e.Signature,
			Operation:     "transfer_ownership",
			BatchID:       e.BatchID,
			BatchAccount:  e.BatchAccount,
			WalletAddress: e.PreviousOwner,
			Status:        models.TxConfirmed,
			Slot:          e.Slot,
			BlockTime:     timePtr(ts),
		}
	case *events.SubmissionFailedEvent:
		if e.Signature == "" {
			return nil
		}
		return &models.Transaction{
			BaseModel:    models.BaseModel{CreatedAt: ts, UpdatedAt: ts},
			Signature:    e.Signature,
			Operation:    e.Operation,
			BatchID:      e.BatchID,
			Status:       models.TxFailed,
			ErrorKind:    e.Kind,
			ErrorMessage: e.Reason,
		}
	case *events.SubmissionTimedOutEvent:
		if e.Signature == "" {
			return nil
		}
		return &models.Transaction{
			BaseModel:    models.BaseModel{CreatedAt: ts, UpdatedAt: ts},
			Signature:    e.Signature,
			Operation:    e.Operation,
			BatchID:      e.BatchID,
			BatchAccount: e.BatchAccount,
			Status:       models.TxTimeout,
			ErrorKind:    "SubmissionTimeout",
		}
	}
	return nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
