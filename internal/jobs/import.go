// internal/jobs/import.go
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/medweb3"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage/models"
)

// ErrInvalidJob - задание нельзя поставить в очередь или выполнить
var ErrInvalidJob = errors.New("invalid job")

// Request описывает задание до постановки в очередь
type Request struct {
	OrderID      string `yaml:"order_id"`
	Customer     string `yaml:"customer"`
	Type         string `yaml:"type"`
	BatchID      string `yaml:"batch_id"`
	Manufacturer string `yaml:"manufacturer"`
	BatchAccount string `yaml:"batch_account"`
	NewOwner     string `yaml:"new_owner"`
}

// ImportFile - структура YAML файла с партиями
type ImportFile struct {
	Batches []Request `yaml:"batches"`
}

// Queue ставит задания в очередь хранилища
type Queue struct {
	store       storage.Storage
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
}

func NewQueue(store storage.Storage, maxAttempts int, logger *zap.Logger) *Queue {
	return &Queue{
		store:       store,
		maxAttempts: maxAttempts,
		logger:      logger.Named("job-queue"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue проверяет запрос и создает задание.
// Для передачи владения недостающие batch_id и batch_account берутся из записи заказа.
func (q *Queue) Enqueue(ctx context.Context, req Request) (*models.Job, error) {
	if req.OrderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidJob)
	}
	if req.Type == "" {
		req.Type = models.JobCreateBatch
	}

	switch req.Type {
	case models.JobCreateBatch:
		if req.BatchID == "" {
			return nil, fmt.Errorf("%w: batch_id is required", ErrInvalidJob)
		}
	case models.JobTransferOwnership:
		if _, err := medweb3.ParseAddress(req.NewOwner); err != nil {
			return nil, fmt.Errorf("%w: new_owner: %w", ErrInvalidJob, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidJob, req.Type)
	}

	order, err := q.store.GetOrder(ctx, req.OrderID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if req.Type == models.JobCreateBatch && order != nil && order.Blockchain.Recorded() {
		return nil, fmt.Errorf("%w: order %s already has batch %s at %s",
			ErrInvalidJob, req.OrderID, order.Blockchain.BatchID, order.Blockchain.ContractAddress)
	}

	if req.Type == models.JobTransferOwnership {
		if order != nil {
			if req.BatchID == "" {
				req.BatchID = order.Blockchain.BatchID
			}
			if req.BatchAccount == "" {
				req.BatchAccount = order.Blockchain.ContractAddress
			}
		}
		if req.BatchID == "" || req.BatchAccount == "" {
			return nil, fmt.Errorf("%w: order %s has no recorded batch", ErrInvalidJob, req.OrderID)
		}
		if _, err := medweb3.ParseAddress(req.BatchAccount); err != nil {
			return nil, fmt.Errorf("%w: batch_account: %w", ErrInvalidJob, err)
		}
	}

	if order == nil {
		order = &models.Order{OrderID: req.OrderID, Customer: req.Customer}
		if err := q.store.SaveOrder(ctx, order); err != nil {
			return nil, fmt.Errorf("save order %s: %w", req.OrderID, err)
		}
	}

	job := storage.NewJob(uuid.NewString(), req.Type, req.OrderID, q.maxAttempts, q.now())
	job.BatchID = req.BatchID
	job.Manufacturer = req.Manufacturer
	job.BatchAccount = req.BatchAccount
	job.NewOwner = req.NewOwner

	if err := q.store.EnqueueJob(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	q.logger.Info("Job enqueued",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.String("order_id", job.OrderID),
		zap.String("batch_id", job.BatchID))
	return job, nil
}

// ImportYAML читает файл партий и ставит валидные записи в очередь.
// Невалидные записи пропускаются с предупреждением.
func (q *Queue) ImportYAML(ctx context.Context, path string) ([]*models.Job, error) {
	if filepath.IsAbs(path) {
		q.logger.Debug("Using absolute path for batches file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file ImportFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Batches) == 0 {
		return nil, fmt.Errorf("no batches found in %s", path)
	}

	jobs := make([]*models.Job, 0, len(file.Batches))
	for i, req := range file.Batches {
		job, err := q.Enqueue(ctx, req)
		if errors.Is(err, ErrInvalidJob) {
			q.logger.Warn("Skipping invalid batch entry",
				zap.Int("index", i),
				zap.String("order_id", req.OrderID),
				zap.Error(err))
			continue
		}
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}

	if len(jobs) == 0 {
		return nil, fmt.Errorf("no valid batches loaded")
	}
	q.logger.Info("Imported batches", zap.Int("count", len(jobs)))
	return jobs, nil
}
