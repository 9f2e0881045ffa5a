// internal/medweb3/state.go
package medweb3

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// BatchAccount - данные аккаунта партии в сети:
// batch_id (u32 LE длина + UTF-8), manufacturer (32 байта), current_owner (32 байта).
type BatchAccount struct {
	BatchID      string           `json:"batchId"`
	Manufacturer solana.PublicKey `json:"manufacturer"`
	CurrentOwner solana.PublicKey `json:"currentOwner"`
}

// BatchAccountSize возвращает размер данных аккаунта для batch_id заданной длины
func BatchAccountSize(batchIDLen int) int {
	return 4 + batchIDLen + 32 + 32
}

// DecodeBatchAccount разбирает данные аккаунта партии
func DecodeBatchAccount(data []byte) (*BatchAccount, error) {
	dec := bin.NewBorshDecoder(data)
	batchID, err := dec.ReadString()
	if err != nil {
		return nil, fmt.Errorf("batch_id: %w", err)
	}
	manufacturer, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, fmt.Errorf("manufacturer: %w", err)
	}
	owner, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, fmt.Errorf("current_owner: %w", err)
	}
	return &BatchAccount{
		BatchID:      batchID,
		Manufacturer: solana.PublicKeyFromBytes(manufacturer),
		CurrentOwner: solana.PublicKeyFromBytes(owner),
	}, nil
}

// Encode сериализует аккаунт в формате программы
func (a *BatchAccount) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteString(a.BatchID); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(a.Manufacturer[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(a.CurrentOwner[:], false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BatchIDPrefix - префикс данных аккаунта с данным batch_id, используется в memcmp фильтре
func BatchIDPrefix(batchID string) []byte {
	out := make([]byte, 4+len(batchID))
	binary.LittleEndian.PutUint32(out, uint32(len(batchID)))
	copy(out[4:], batchID)
	return out
}

// BatchState - жизненный цикл партии с точки зрения клиента
type BatchState string

const (
	StateNonExistent BatchState = "NonExistent"
	StateCreated     BatchState = "Created"
	StateTransferred BatchState = "Transferred"
)

// Active сообщает, существует ли партия в сети
func (s BatchState) Active() bool {
	return s == StateCreated || s == StateTransferred
}

// Next возвращает состояние после инструкции или ошибку, если переход запрещен.
// VerifyBatch состояние не меняет. Возврата в NonExistent нет.
func (s BatchState) Next(k Kind) (BatchState, error) {
	switch k {
	case KindCreateBatch:
		if s == StateNonExistent {
			return StateCreated, nil
		}
	case KindTransferOwnership:
		if s.Active() {
			return StateTransferred, nil
		}
	case KindVerifyBatch:
		return s, nil
	}
	return s, fmt.Errorf("%s is not allowed in state %s", k, s)
}

// StateOf выводит состояние из аккаунта: владелец отличается от производителя - была передача
func StateOf(account *BatchAccount) BatchState {
	if account == nil {
		return StateNonExistent
	}
	if !account.CurrentOwner.IsZero() && !account.CurrentOwner.Equals(account.Manufacturer) {
		return StateTransferred
	}
	return StateCreated
}
