// internal/storage/models/transaction.go
package models

import "time"

// Статусы записи журнала транзакций
const (
	TxConfirmed = "confirmed"
	TxFailed    = "failed"
	TxTimeout   = "timeout"
)

// Transaction - запись журнала отправленных транзакций
type Transaction struct {
	BaseModel
	Signature     string     `gorm:"unique;not null;type:varchar(88)" json:"signature"`
	Operation     string     `gorm:"index;not null;type:varchar(32)" json:"operation"`
	BatchID       string     `gorm:"index;type:varchar(128)" json:"batchId,omitempty"`
	BatchAccount  string     `gorm:"index;type:varchar(44)" json:"batchAccount,omitempty"`
	WalletAddress string     `gorm:"index;type:varchar(44)" json:"walletAddress,omitempty"`
	Status        string     `gorm:"not null;type:varchar(20)" json:"status"`
	ErrorKind     string     `gorm:"type:varchar(32)" json:"errorKind,omitempty"`
	ErrorMessage  string     `gorm:"type:text" json:"errorMessage,omitempty"`
	Slot          uint64     `json:"slot,omitempty"`
	BlockTime     *time.Time `gorm:"index" json:"blockTime,omitempty"`
}
