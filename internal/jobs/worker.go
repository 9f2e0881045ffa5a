// internal/jobs/worker.go
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain/solbc/transaction"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/events"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/medweb3"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage/models"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/wallet"
)

// PendingExpiry - сколько ждать транзакцию с неизвестным исходом, прежде чем считать ее потерянной.
// Blockhash действителен около 150 слотов, с запасом.
const PendingExpiry = 3 * time.Minute

// Provenance - операции сервиса, нужные обработчику
type Provenance interface {
	CreateBatch(ctx context.Context, w wallet.Wallet, batchID, manufacturer string) (*medweb3.CreateBatchResult, error)
	TransferOwnership(ctx context.Context, w wallet.Wallet, batchAccount, batchID, newOwner string) (*medweb3.TransferResult, error)
	ReconcileCreate(ctx context.Context, batchAccount string) (bool, error)
	ReconcileSignature(ctx context.Context, signature string) (*transaction.Status, error)
}

// Config - настройки обработчика
type Config struct {
	Workers      int
	PollInterval time.Duration
	BackoffBase  time.Duration
	BackoffMax   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:      2,
		PollInterval: 5 * time.Second,
		BackoffBase:  time.Minute,
		BackoffMax:   time.Hour,
	}
}

// Worker берет задания из хранилища и выполняет их через Provenance.
// Запись в сеть не повторяется вслепую: после таймаута следующая попытка сначала сверяет исход.
type Worker struct {
	store     storage.Storage
	service   Provenance
	wallet    wallet.Wallet
	publisher events.Publisher
	config    Config
	logger    *zap.Logger
	metrics   *Metrics
	now       func() time.Time
}

func NewWorker(store storage.Storage, service Provenance, w wallet.Wallet, publisher events.Publisher, config Config, logger *zap.Logger, metrics *Metrics) *Worker {
	def := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = def.BackoffBase
	}
	if config.BackoffMax < config.BackoffBase {
		config.BackoffMax = config.BackoffBase
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Worker{
		store:     store,
		service:   service,
		wallet:    wallet.Serialize(w),
		publisher: publisher,
		config:    config,
		logger:    logger.Named("job-worker"),
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run запускает config.Workers горутин до отмены ctx
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.config.Workers; i++ {
		id := i + 1
		g.Go(func() error {
			return w.loop(gctx, id)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context, id int) error {
	logger := w.logger.With(zap.Int("worker_id", id))
	logger.Info("Worker started")

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		for {
			processed, err := w.processNext(ctx)
			if err != nil {
				logger.Error("Failed to process job", zap.Error(err))
				break
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			logger.Info("Worker shutting down")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce обрабатывает все готовые задания и возвращает их число
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	count := 0
	for {
		processed, err := w.processNext(ctx)
		if err != nil {
			return count, err
		}
		if !processed {
			return count, nil
		}
		count++
	}
}

func (w *Worker) processNext(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimJob(ctx, w.now())
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if job == nil {
		return false, nil
	}
	return true, w.process(ctx, job)
}

// process выполняет одну попытку задания и сохраняет итог
func (w *Worker) process(ctx context.Context, job *models.Job) error {
	job.Attempts++
	logger := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.String("order_id", job.OrderID),
		zap.Int("attempt", job.Attempts))

	if job.PendingSignature != "" {
		done, err := w.reconcile(ctx, job, logger)
		if err != nil {
			return w.fail(ctx, job, err, logger)
		}
		if done {
			return w.succeed(ctx, job, logger)
		}
		if job.PendingSignature != "" {
			// Исход еще неизвестен: ждем, не отправляя повторно
			job.Attempts--
			return w.reschedule(ctx, job, w.config.PollInterval, logger)
		}
	}

	logger.Info("Executing job")
	if err := w.execute(ctx, job); err != nil {
		return w.fail(ctx, job, err, logger)
	}
	return w.succeed(ctx, job, logger)
}

// reconcile проверяет транзакцию с неизвестным исходом.
// true - операция уже выполнена; PendingSignature очищается, если транзакция точно не прошла.
func (w *Worker) reconcile(ctx context.Context, job *models.Job, logger *zap.Logger) (bool, error) {
	status, err := w.service.ReconcileSignature(ctx, job.PendingSignature)
	if err != nil {
		return false, err
	}

	switch status.Status {
	case transaction.StatusConfirmed, transaction.StatusFinalized:
		logger.Info("Pending transaction confirmed", zap.String("signature", job.PendingSignature))
		job.Signature = job.PendingSignature
		if job.Type == models.JobCreateBatch {
			job.BatchAccount = job.PendingBatchAccount
		}
		job.ClearPending()
		return true, nil
	case transaction.StatusFailed:
		logger.Warn("Pending transaction failed, resubmitting",
			zap.String("signature", job.PendingSignature),
			zap.String("error", status.Error))
		job.ClearPending()
		return false, nil
	}

	if job.Type == models.JobCreateBatch && job.PendingBatchAccount != "" {
		exists, err := w.service.ReconcileCreate(ctx, job.PendingBatchAccount)
		if err != nil {
			return false, err
		}
		if exists {
			job.Signature = job.PendingSignature
			job.BatchAccount = job.PendingBatchAccount
			job.ClearPending()
			return true, nil
		}
	}

	if job.PendingAt != nil && w.now().Sub(*job.PendingAt) > PendingExpiry {
		logger.Warn("Pending transaction expired, resubmitting", zap.String("signature", job.PendingSignature))
		job.ClearPending()
	}
	return false, nil
}

func (w *Worker) execute(ctx context.Context, job *models.Job) error {
	switch job.Type {
	case models.JobCreateBatch:
		order, err := w.currentOrder(ctx, job.OrderID)
		if err != nil {
			return err
		}
		if order != nil && order.Blockchain.Recorded() {
			return fmt.Errorf("%w: order %s already has batch %s at %s",
				ErrInvalidJob, job.OrderID, order.Blockchain.BatchID, order.Blockchain.ContractAddress)
		}
		res, err := w.service.CreateBatch(ctx, w.wallet, job.BatchID, job.Manufacturer)
		if err != nil {
			return err
		}
		job.Signature = res.Signature
		job.BatchAccount = res.BatchAccount
		return nil
	case models.JobTransferOwnership:
		res, err := w.service.TransferOwnership(ctx, w.wallet, job.BatchAccount, job.BatchID, job.NewOwner)
		if err != nil {
			return err
		}
		job.Signature = res.Signature
		return nil
	default:
		return fmt.Errorf("%w: unknown job type %q", ErrInvalidJob, job.Type)
	}
}

// currentOrder возвращает заказ или nil, если его нет
func (w *Worker) currentOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := w.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	return order, nil
}

func (w *Worker) succeed(ctx context.Context, job *models.Job, logger *zap.Logger) error {
	now := w.now()
	order, err := w.currentOrder(ctx, job.OrderID)
	if err != nil {
		// Транзакция подтверждена: повтор только записывает заказ через сверку, без новой отправки
		logger.Warn("Order not readable, retrying record", zap.Error(err))
		job.PendingSignature = job.Signature
		if job.Type == models.JobCreateBatch {
			job.PendingBatchAccount = job.BatchAccount
		}
		job.PendingAt = &now
		job.Attempts--
		return w.reschedule(ctx, job, w.config.PollInterval, logger)
	}
	var current models.OrderBlockchain
	if order != nil {
		current = order.Blockchain
	}

	write := true
	var record models.OrderBlockchain
	switch job.Type {
	case models.JobCreateBatch:
		if current.Recorded() && current.ContractAddress != job.BatchAccount {
			// Другое задание успело записать партию: подтвержденная запись не перезаписывается
			logger.Warn("Order already has a batch, keeping it",
				zap.String("recorded_account", current.ContractAddress),
				zap.String("batch_account", job.BatchAccount))
			write = false
			break
		}
		record = models.OrderBlockchain{
			BatchID:         job.BatchID,
			ContractAddress: job.BatchAccount,
			TransactionHash: job.Signature,
			ConfirmedAt:     &now,
		}
		if w.wallet != nil {
			record.CurrentOwner = w.wallet.PublicKey().String()
		}
	case models.JobTransferOwnership:
		record = current.Transferred(job.BatchID, job.BatchAccount, job.Signature, job.NewOwner, now)
	}

	if write {
		if err := w.store.UpdateOrderBlockchain(ctx, job.OrderID, record); err != nil {
			return fmt.Errorf("update order %s: %w", job.OrderID, err)
		}
	}

	job.Status = models.JobSuccess
	job.LastError = ""
	job.LastErrorKind = ""
	if err := w.store.UpdateJob(ctx, job); err != nil {
		return err
	}

	w.metrics.TrackJob(job.Type, models.JobSuccess)
	logger.Info("Job succeeded",
		zap.String("signature", job.Signature),
		zap.String("batch_account", job.BatchAccount))
	w.publish(&events.JobSucceededEvent{
		BaseEvent: events.NewBase(events.JobSucceeded),
		JobID:     job.ID,
		OrderID:   job.OrderID,
		Signature: job.Signature,
	})
	return nil
}

// fail решает судьбу задания после ошибки: повтор, ожидание сверки или окончательный отказ
func (w *Worker) fail(ctx context.Context, job *models.Job, err error, logger *zap.Logger) error {
	kind := blockchain.KindOf(err)
	job.LastError = err.Error()
	job.LastErrorKind = string(kind)

	if kind == blockchain.KindSubmissionTimeout {
		job.PendingSignature = blockchain.SignatureOf(err)
		if job.Type == models.JobCreateBatch {
			job.PendingBatchAccount = blockchain.BatchAccountOf(err)
		}
		now := w.now()
		job.PendingAt = &now
	}

	terminal := !retryable(kind) || job.Attempts >= job.MaxAttempts || errors.Is(err, ErrInvalidJob)
	if job.PendingSignature != "" {
		// Исход неизвестен, окончательно отказывать нельзя до сверки
		terminal = false
	}

	w.publish(&events.JobFailedEvent{
		BaseEvent: events.NewBase(events.JobFailed),
		JobID:     job.ID,
		OrderID:   job.OrderID,
		Attempts:  job.Attempts,
		Terminal:  terminal,
		LastError: job.LastError,
	})

	if terminal {
		job.Status = models.JobFailed
		w.metrics.TrackJob(job.Type, models.JobFailed)
		logger.Error("Job failed", zap.String("kind", string(kind)), zap.Error(err))
		return w.store.UpdateJob(ctx, job)
	}

	w.metrics.TrackJob(job.Type, "retry")
	logger.Warn("Job attempt failed, will retry", zap.String("kind", string(kind)), zap.Error(err))
	return w.reschedule(ctx, job, RetryDelay(job.Attempts, w.config.BackoffBase, w.config.BackoffMax), logger)
}

func (w *Worker) reschedule(ctx context.Context, job *models.Job, delay time.Duration, logger *zap.Logger) error {
	job.Status = models.JobPending
	job.NextRunAt = w.now().Add(delay)
	logger.Debug("Job rescheduled", zap.Time("next_run_at", job.NextRunAt))
	return w.store.UpdateJob(ctx, job)
}

func (w *Worker) publish(event events.Event) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(event); err != nil {
		w.logger.Debug("Failed to publish event", zap.Error(err))
	}
}

// retryable - какие ошибки имеет смысл повторять. Таймаут повторяется только после сверки.
func retryable(kind blockchain.Kind) bool {
	switch kind {
	case blockchain.KindSubmissionRejected, blockchain.KindNetwork, blockchain.KindSubmissionTimeout, blockchain.KindUnknown:
		return true
	default:
		return false
	}
}

// RetryDelay - задержка перед попыткой attempts+1: base * 2^(attempts-1), не больше max
func RetryDelay(attempts int, base, max time.Duration) time.Duration {
	policy := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         max,
	}
	policy.Reset()
	delay := base
	for i := 0; i < attempts; i++ {
		delay = policy.NextBackOff()
	}
	return delay
}

// Метрики обработчика
type Metrics struct {
	jobs *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg. nil - без регистрации.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medchain",
			Name:      "jobs_processed_total",
			Help:      "Blockchain job attempts by type and outcome",
		}, []string{"type", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.jobs)
	}
	return m
}

func (m *Metrics) TrackJob(jobType, outcome string) {
	m.jobs.WithLabelValues(jobType, outcome).Inc()
}
var _ Provenance = (*medweb3.Service)(nil)
