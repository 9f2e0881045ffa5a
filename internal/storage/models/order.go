// internal/storage/models/order.go
package models

import "time"

// Order - заказ приложения с привязкой к партии в сети
type Order struct {
	BaseModel
	OrderID    string          `gorm:"unique;not null;type:varchar(64)" json:"orderId"`
	Customer   string          `gorm:"type:varchar(128)" json:"customer,omitempty"`
	Blockchain OrderBlockchain `gorm:"embedded;embeddedPrefix:blockchain_" json:"blockchain"`
}

// OrderBlockchain - order.blockchain. Заполняется только из подтвержденного результата.
type OrderBlockchain struct {
	BatchID         string     `gorm:"index;type:varchar(128)" json:"batchId,omitempty"`
	ContractAddress string     `gorm:"type:varchar(44)" json:"contractAddress,omitempty"`
	TransactionHash string     `gorm:"type:varchar(88)" json:"transactionHash,omitempty"`
	CurrentOwner    string     `gorm:"type:varchar(44)" json:"currentOwner,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmedAt,omitempty"`
}

// Recorded сообщает, есть ли у заказа запись о партии
func (b OrderBlockchain) Recorded() bool {
	return b.BatchID != "" && b.TransactionHash != ""
}

// Transferred возвращает запись после подтвержденной передачи владения.
// Меняется только current_owner; batch и хеш создания сохраняются.
// Пустые поля (заказ без записи о создании) заполняются из передачи.
func (b OrderBlockchain) Transferred(batchID, batchAccount, signature, newOwner string, at time.Time) OrderBlockchain {
	b.CurrentOwner = newOwner
	if b.BatchID == "" {
		b.BatchID = batchID
	}
	if b.ContractAddress == "" {
		b.ContractAddress = batchAccount
	}
	if b.TransactionHash == "" {
		b.TransactionHash = signature
	}
	if b.ConfirmedAt == nil {
		b.ConfirmedAt = &at
	}
	return b
}
