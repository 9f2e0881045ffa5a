// internal/ui/msg.go
package ui

import (
	"time"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain/solbc/transaction"
)

// Tea message types for the watch view

// tickMsg - пора опросить статусы
type tickMsg time.Time

// StatusMsg - результат опроса одной подписи
type StatusMsg struct {
	Signature string
	Status    *transaction.Status
	Err       error
}

// ErrorMsg represents error conditions
type ErrorMsg struct {
	Error error
	Title string
}
