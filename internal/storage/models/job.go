// internal/storage/models/job.go
package models

import "time"

// Типы заданий
const (
	JobCreateBatch       = "create_batch"
	JobTransferOwnership = "transfer_ownership"
)

// Статусы заданий
const (
	JobPending = "pending"
	JobRunning = "running"
	JobFailed  = "failed"
	JobSuccess = "success"
)

// Job - задание на запись в сеть для заказа
type Job struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Type         string `gorm:"not null;type:varchar(32)" json:"type"`
	OrderID      string `gorm:"index;not null;type:varchar(64)" json:"orderId"`
	BatchID      string `gorm:"type:varchar(128)" json:"batchId"`
	Manufacturer string `gorm:"type:varchar(128)" json:"manufacturer,omitempty"`
	BatchAccount string `gorm:"type:varchar(44)" json:"batchAccount,omitempty"`
	NewOwner     string `gorm:"type:varchar(44)" json:"newOwner,omitempty"`

	Status      string    `gorm:"index;not null;type:varchar(16)" json:"status"`
	Attempts    int       `gorm:"default:0" json:"attempts"`
	MaxAttempts int       `gorm:"default:5" json:"maxAttempts"`
	NextRunAt   time.Time `gorm:"index" json:"nextRunAt"`

	LastError     string `gorm:"type:text" json:"lastError,omitempty"`
	LastErrorKind string `gorm:"type:varchar(32)" json:"lastErrorKind,omitempty"`

	// Транзакция, исход которой неизвестен (таймаут). Следующая попытка сначала сверяет ее.
	PendingSignature    string     `gorm:"type:varchar(88)" json:"pendingSignature,omitempty"`
	PendingBatchAccount string     `gorm:"type:varchar(44)" json:"pendingBatchAccount,omitempty"`
	PendingAt           *time.Time `json:"pendingAt,omitempty"`

	Signature string `gorm:"type:varchar(88)" json:"signature,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Runnable сообщает, можно ли взять задание в работу
func (j *Job) Runnable(now time.Time) bool {
	return j.Status == JobPending && !j.NextRunAt.After(now)
}

// ClearPending сбрасывает неизвестный исход после сверки
func (j *Job) ClearPending() {
	j.PendingSignature = ""
	j.PendingBatchAccount = ""
	j.PendingAt = nil
}
