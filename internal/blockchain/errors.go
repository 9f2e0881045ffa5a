// internal/blockchain/errors.go
package blockchain

import (
	"errors"
	"fmt"
)

// Таксономия ошибок клиента. Все ожидаемые отказы приводятся к одному из
// этих значений, чтобы вызывающий код мог решать, повторять ли операцию.
var (
	// ErrEncoding - инструкцию нельзя закодировать (пустое поле, неверная длина подписи)
	ErrEncoding = errors.New("encoding error")

	// ErrInvalidAddress - строка не является base58 публичным ключом длиной 32 байта
	ErrInvalidAddress = errors.New("invalid address")

	// ErrWalletNotConnected - кошелек отсутствует или не подключен
	ErrWalletNotConnected = errors.New("wallet not connected")

	// ErrUserDeclined - владелец кошелька отказался подписывать
	ErrUserDeclined = errors.New("user declined")

	// ErrSubmissionRejected - сеть отклонила транзакцию
	ErrSubmissionRejected = errors.New("submission rejected")

	// ErrSubmissionTimeout - подтверждение не получено до дедлайна; результат неизвестен
	ErrSubmissionTimeout = errors.New("submission timeout")

	// ErrNetwork - RPC недоступен
	ErrNetwork = errors.New("network error")

	// ErrDuplicateBatch - партия с таким batch_id уже есть в сети (при включенной проверке)
	ErrDuplicateBatch = errors.New("batch id already registered")
)

// Ошибки сборки транзакции.
var (
	ErrMissingFeePayer       = errors.New("transaction has no fee payer")
	ErrMissingFreshnessToken = errors.New("transaction has no recent blockhash")
	ErrNoInstructions        = errors.New("transaction has no instructions")
	ErrMissingSignature      = errors.New("transaction is missing a required signature")
)

// Kind - стабильное строковое имя класса ошибки, используется в ответах.
type Kind string

const (
	KindNone                 Kind = ""
	KindEncoding             Kind = "EncodingError"
	KindInvalidAddress       Kind = "InvalidAddress"
	KindWalletNotConnected   Kind = "WalletNotConnected"
	KindUserDeclined         Kind = "UserDeclined"
	KindSubmissionRejected   Kind = "SubmissionRejected"
	KindSubmissionTimeout    Kind = "SubmissionTimeout"
	KindNetwork              Kind = "NetworkError"
	KindDuplicateBatch       Kind = "DuplicateBatchId"
	KindTransactionMalformed Kind = "TransactionMalformed"
	KindUnknown              Kind = "Unknown"
)

// SubmissionError описывает исход отправки, который не закончился подтверждением.
// Signature заполнена, если транзакция успела уйти в сеть.
type SubmissionError struct {
	Kind      error
	Reason    string
	Signature string
	// BatchAccount заполняется для CreateBatch, чтобы после таймаута можно было
	// проверить существование аккаунта.
	BatchAccount string
	Err          error
}

func (e *SubmissionError) Error() string {
	msg := e.Kind.Error()
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Signature != "" {
		msg = fmt.Sprintf("%s (signature %s)", msg, e.Signature)
	}
	return msg
}

// Is позволяет сравнивать через errors.Is с sentinel-ошибками.
func (e *SubmissionError) Is(target error) bool {
	return e.Kind == target
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// NewRejected создает ошибку отклонения с дословной причиной от сети.
func NewRejected(reason, signature string, cause error) *SubmissionError {
	return &SubmissionError{Kind: ErrSubmissionRejected, Reason: reason, Signature: signature, Err: cause}
}

// NewTimeout создает ошибку неопределенного исхода.
func NewTimeout(signature string, cause error) *SubmissionError {
	return &SubmissionError{Kind: ErrSubmissionTimeout, Reason: "confirmation not observed before deadline", Signature: signature, Err: cause}
}

// KindOf приводит произвольную ошибку к Kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrEncoding):
		return KindEncoding
	case errors.Is(err, ErrInvalidAddress):
		return KindInvalidAddress
	case errors.Is(err, ErrWalletNotConnected):
		return KindWalletNotConnected
	case errors.Is(err, ErrUserDeclined):
		return KindUserDeclined
	case errors.Is(err, ErrSubmissionRejected):
		return KindSubmissionRejected
	case errors.Is(err, ErrSubmissionTimeout):
		return KindSubmissionTimeout
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrDuplicateBatch):
		return KindDuplicateBatch
	case errors.Is(err, ErrMissingFeePayer),
		errors.Is(err, ErrMissingFreshnessToken),
		errors.Is(err, ErrNoInstructions),
		errors.Is(err, ErrMissingSignature):
		return KindTransactionMalformed
	default:
		return KindUnknown
	}
}

// IsRetryable сообщает, имеет ли смысл повторять операцию после этой ошибки.
// Таймаут сюда не входит: перед повтором нужно проверить состояние в сети.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindSubmissionRejected, KindNetwork:
		return true
	default:
		return false
	}
}

// SignatureOf достает подпись транзакции из ошибки отправки, если она известна.
func SignatureOf(err error) string {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Signature
	}
	return ""
}

// BatchAccountOf достает адрес аккаунта партии из ошибки отправки.
func BatchAccountOf(err error) string {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.BatchAccount
	}
	return ""
}
