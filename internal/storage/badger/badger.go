// internal/storage/badger/badger.go
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage/models"
)

var (
	prefixOrder = []byte("order/")
	prefixJob   = []byte("job/")
	prefixTx    = []byte("tx/")
)

// Сколько раз повторять транзакцию при конфликте записи
const conflictRetries = 5

// badgerStorage - встроенное хранилище по умолчанию
type badgerStorage struct {
	db     *badgerdb.DB
	logger *zap.Logger
}

// NewStorage открывает базу в каталоге path
func NewStorage(path string, logger *zap.Logger) (storage.Storage, error) {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	opts := badgerdb.DefaultOptions(path)
	opts.Logger = newBadgerLogger(logger)
	opts.BlockCacheSize = 16 << 20
	opts.IndexCacheSize = 16 << 20
	opts.NumMemtables = 2
	return open(opts, logger)
}

// NewInMemory открывает базу в памяти (тесты, разовые команды)
func NewInMemory(logger *zap.Logger) (storage.Storage, error) {
	opts := badgerdb.DefaultOptions("").WithInMemory(true)
	opts.Logger = newBadgerLogger(logger)
	return open(opts, logger)
}

func open(opts badgerdb.Options, logger *zap.Logger) (storage.Storage, error) {
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &badgerStorage{db: db, logger: logger.Named("badger")}, nil
}

// RunMigrations - схемы нет
func (s *badgerStorage) RunMigrations() error { return nil }

func (s *badgerStorage) Close() error {
	return s.db.Close()
}

func key(prefix []byte, id string) []byte {
	return append(append([]byte{}, prefix...), id...)
}

func (s *badgerStorage) get(ctx context.Context, k []byte, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badgerdb.Txn) error {
		return getTxn(txn, k, out)
	})
}

func getTxn(txn *badgerdb.Txn, k []byte, out interface{}) error {
	item, err := txn.Get(k)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setTxn(txn *badgerdb.Txn, k []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(k, data)
}

// update выполняет транзакцию, повторяя ее при конфликте
func (s *badgerStorage) update(ctx context.Context, fn func(txn *badgerdb.Txn) error) error {
	var err error
	for i := 0; i < conflictRetries; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
		s.logger.Debug("Badger transaction conflict, retrying", zap.Int("attempt", i+1))
	}
	return err
}

// scan декодирует все значения с префиксом
func scan[T any](ctx context.Context, s *badgerStorage, prefix []byte, keep func(*T) bool) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*T
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return scanTxn(txn, prefix, func(_ []byte, val []byte) error {
			item := new(T)
			if err := json.Unmarshal(val, item); err != nil {
				return err
			}
			if keep == nil || keep(item) {
				out = append(out, item)
			}
			return nil
		})
	})
	return out, err
}

func scanTxn(txn *badgerdb.Txn, prefix []byte, fn func(k, v []byte) error) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		k := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error {
			return fn(k, val)
		}); err != nil {
			return err
		}
	}
	return nil
}

func page[T any](items []*T, limit, offset int) []*T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Заказы

func (s *badgerStorage) SaveOrder(ctx context.Context, order *models.Order) error {
	if order.OrderID == "" {
		return errors.New("order id is required")
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	return s.update(ctx, func(txn *badgerdb.Txn) error {
		return setTxn(txn, key(prefixOrder, order.OrderID), order)
	})
}

func (s *badgerStorage) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.get(ctx, key(prefixOrder, orderID), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *badgerStorage) ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	orders, err := scan[models.Order](ctx, s, prefixOrder, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return page(orders, limit, offset), nil
}

func (s *badgerStorage) UpdateOrderBlockchain(ctx context.Context, orderID string, record models.OrderBlockchain) error {
	if err := storage.ValidateConfirmed(record); err != nil {
		return err
	}
	return s.update(ctx, func(txn *badgerdb.Txn) error {
		var order models.Order
		err := getTxn(txn, key(prefixOrder, orderID), &order)
		if errors.Is(err, storage.ErrNotFound) {
			order = models.Order{OrderID: orderID}
			order.CreatedAt = time.Now().UTC()
		} else if err != nil {
			return err
		}
		order.Blockchain = record
		order.UpdatedAt = time.Now().UTC()
		return setTxn(txn, key(prefixOrder, orderID), &order)
	})
}

// Задания

func (s *badgerStorage) EnqueueJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	return s.update(ctx, func(txn *badgerdb.Txn) error {
		return setTxn(txn, key(prefixJob, job.ID), job)
	})
}

func (s *badgerStorage) ClaimJob(ctx context.Context, now time.Time) (*models.Job, error) {
	var claimed *models.Job
	err := s.update(ctx, func(txn *badgerdb.Txn) error {
		claimed = nil
		var candidate *models.Job
		err := scanTxn(txn, prefixJob, func(_ []byte, val []byte) error {
			var job models.Job
			if err := json.Unmarshal(val, &job); err != nil {
				return err
			}
			if !job.Runnable(now) {
				return nil
			}
			if candidate == nil || job.NextRunAt.Before(candidate.NextRunAt) ||
				(job.NextRunAt.Equal(candidate.NextRunAt) && job.CreatedAt.Before(candidate.CreatedAt)) {
				j := job
				candidate = &j
			}
			return nil
		})
		if err != nil || candidate == nil {
			return err
		}
		candidate.Status = models.JobRunning
		candidate.UpdatedAt = now
		if err := setTxn(txn, key(prefixJob, candidate.ID), candidate); err != nil {
			return err
		}
		claimed = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *badgerStorage) UpdateJob(ctx context.Context, job *models.Job) error {
	job.UpdatedAt = time.Now().UTC()
	return s.update(ctx, func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(key(prefixJob, job.ID)); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return setTxn(txn, key(prefixJob, job.ID), job)
	})
}

func (s *badgerStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := s.get(ctx, key(prefixJob, id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *badgerStorage) ListJobs(ctx context.Context, status string, limit int) ([]*models.Job, error) {
	jobs, err := scan(ctx, s, prefixJob, func(j *models.Job) bool {
		return status == "" || j.Status == status
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return page(jobs, limit, 0), nil
}

// Транзакции

func (s *badgerStorage) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.Signature == "" {
		return errors.New("signature is required")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	tx.UpdatedAt = tx.CreatedAt
	return s.update(ctx, func(txn *badgerdb.Txn) error {
		return setTxn(txn, key(prefixTx, tx.Signature), tx)
	})
}

func (s *badgerStorage) GetTransaction(ctx context.Context, signature string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.get(ctx, key(prefixTx, signature), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *badgerStorage) ListTransactions(ctx context.Context, walletAddress string, limit, offset int) ([]*models.Transaction, error) {
	txs, err := scan(ctx, s, prefixTx, func(tx *models.Transaction) bool {
		return walletAddress == "" || tx.WalletAddress == walletAddress
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return page(txs, limit, offset), nil
}

func (s *badgerStorage) UpdateTransactionStatus(ctx context.Context, signature string, status string, errorMsg string) error {
	return s.update(ctx, func(txn *badgerdb.Txn) error {
		var tx models.Transaction
		if err := getTxn(txn, key(prefixTx, signature), &tx); err != nil {
			return err
		}
		tx.Status = status
		tx.ErrorMessage = errorMsg
		tx.UpdatedAt = time.Now().UTC()
		return setTxn(txn, key(prefixTx, signature), &tx)
	})
}

// badgerLogger направляет логи badger в zap
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func newBadgerLogger(logger *zap.Logger) *badgerLogger {
	return &badgerLogger{sugar: logger.Named("badgerdb").Sugar()}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}
