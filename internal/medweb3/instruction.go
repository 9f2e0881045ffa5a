// internal/medweb3/instruction.go
package medweb3

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
)

// Kind - дискриминант инструкции программы medweb3 (первый байт данных)
type Kind uint8

const (
	KindCreateBatch       Kind = 0
	KindTransferOwnership Kind = 1
	KindVerifyBatch       Kind = 2
)

// SignatureLength - длина поля signature в TransferOwnership
const SignatureLength = 64

func (k Kind) String() string {
	switch k {
	case KindCreateBatch:
		return "CreateBatch"
	case KindTransferOwnership:
		return "TransferOwnership"
	case KindVerifyBatch:
		return "VerifyBatch"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// Instruction - одна из инструкций программы.
// Реализации: CreateBatch, TransferOwnership, VerifyBatch.
type Instruction interface {
	Kind() Kind
	validate() error
	encodeFields(enc *bin.Encoder) error
}

// CreateBatch регистрирует новую партию
type CreateBatch struct {
	BatchID      string
	Manufacturer string
}

// TransferOwnership передает партию новому владельцу
type TransferOwnership struct {
	BatchID   string
	NewOwner  string
	Signature [SignatureLength]byte
}

// VerifyBatch просит программу подтвердить партию
type VerifyBatch struct {
	BatchID string
}

func (CreateBatch) Kind() Kind       { return KindCreateBatch }
func (TransferOwnership) Kind() Kind { return KindTransferOwnership }
func (VerifyBatch) Kind() Kind       { return KindVerifyBatch }

// NewTransferOwnership создает инструкцию из подписи произвольной длины.
// Длина должна быть ровно 64 байта.
func NewTransferOwnership(batchID, newOwner string, signature []byte) (TransferOwnership, error) {
	ix := TransferOwnership{BatchID: batchID, NewOwner: newOwner}
	if len(signature) != SignatureLength {
		return ix, fmt.Errorf("%w: signature must be %d bytes, got %d", blockchain.ErrEncoding, SignatureLength, len(signature))
	}
	copy(ix.Signature[:], signature)
	return ix, nil
}

func (ix CreateBatch) validate() error {
	if ix.BatchID == "" {
		return fmt.Errorf("%w: batch_id is required", blockchain.ErrEncoding)
	}
	if ix.Manufacturer == "" {
		return fmt.Errorf("%w: manufacturer is required", blockchain.ErrEncoding)
	}
	return nil
}

func (ix TransferOwnership) validate() error {
	if ix.BatchID == "" {
		return fmt.Errorf("%w: batch_id is required", blockchain.ErrEncoding)
	}
	if ix.NewOwner == "" {
		return fmt.Errorf("%w: new_owner is required", blockchain.ErrEncoding)
	}
	return nil
}

func (ix VerifyBatch) validate() error {
	if ix.BatchID == "" {
		return fmt.Errorf("%w: batch_id is required", blockchain.ErrEncoding)
	}
	return nil
}

func (ix CreateBatch) encodeFields(enc *bin.Encoder) error {
	if err := enc.WriteString(ix.BatchID); err != nil {
		return err
	}
	return enc.WriteString(ix.Manufacturer)
}

func (ix TransferOwnership) encodeFields(enc *bin.Encoder) error {
	if err := enc.WriteString(ix.BatchID); err != nil {
		return err
	}
	if err := enc.WriteString(ix.NewOwner); err != nil {
		return err
	}
	return enc.WriteBytes(ix.Signature[:], false)
}

func (ix VerifyBatch) encodeFields(enc *bin.Encoder) error {
	return enc.WriteString(ix.BatchID)
}

// Encode сериализует инструкцию: [u8 дискриминант][поля в borsh].
// Строки - u32 LE длина + UTF-8, подпись - 64 байта без префикса.
func Encode(ix Instruction) ([]byte, error) {
	if ix == nil {
		return nil, fmt.Errorf("%w: nil instruction", blockchain.ErrEncoding)
	}
	if err := ix.validate(); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint8(uint8(ix.Kind())); err != nil {
		return nil, fmt.Errorf("%w: %w", blockchain.ErrEncoding, err)
	}
	if err := ix.encodeFields(enc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", blockchain.ErrEncoding, ix.Kind(), err)
	}
	return buf.Bytes(), nil
}

// DecodeInstruction разбирает данные инструкции. Лишние байты в конце - ошибка.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty instruction data", blockchain.ErrEncoding)
	}

	dec := bin.NewBorshDecoder(data)
	disc, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", blockchain.ErrEncoding, err)
	}

	var ix Instruction
	switch Kind(disc) {
	case KindCreateBatch:
		var out CreateBatch
		if out.BatchID, err = dec.ReadString(); err == nil {
			out.Manufacturer, err = dec.ReadString()
		}
		ix = out
	case KindTransferOwnership:
		var out TransferOwnership
		var sig []byte
		if out.BatchID, err = dec.ReadString(); err == nil {
			if out.NewOwner, err = dec.ReadString(); err == nil {
				if sig, err = dec.ReadNBytes(SignatureLength); err == nil {
					copy(out.Signature[:], sig)
				}
			}
		}
		ix = out
	case KindVerifyBatch:
		var out VerifyBatch
		out.BatchID, err = dec.ReadString()
		ix = out
	default:
		return nil, fmt.Errorf("%w: unknown instruction discriminant %d", blockchain.ErrEncoding, disc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", blockchain.ErrEncoding, Kind(disc), err)
	}
	if dec.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %s", blockchain.ErrEncoding, dec.Remaining(), Kind(disc))
	}
	return ix, nil
}

// Accounts - адреса, участвующие в инструкции
type Accounts struct {
	// Кошелек владельца (плательщик комиссии)
	Authority solana.PublicKey
	// Аккаунт партии (для VerifyBatch не нужен)
	BatchAccount solana.PublicKey
}

// NewProgramInstruction кодирует инструкцию и добавляет account metas в порядке, который ожидает программа.
//
//	CreateBatch:       authority (signer, writable), batch (signer, writable), system program, rent sysvar
//	TransferOwnership: authority (signer), batch (writable)
//	VerifyBatch:       authority (signer)
func NewProgramInstruction(programID solana.PublicKey, ix Instruction, accounts Accounts) (solana.Instruction, error) {
	data, err := Encode(ix)
	if err != nil {
		return nil, err
	}

	var metas solana.AccountMetaSlice
	switch ix.Kind() {
	case KindCreateBatch:
		metas = solana.AccountMetaSlice{
			solana.Meta(accounts.Authority).SIGNER().WRITE(),
			solana.Meta(accounts.BatchAccount).SIGNER().WRITE(),
			solana.Meta(solana.SystemProgramID),
			solana.Meta(solana.SysVarRentPubkey),
		}
	case KindTransferOwnership:
		metas = solana.AccountMetaSlice{
			solana.Meta(accounts.Authority).SIGNER(),
			solana.Meta(accounts.BatchAccount).WRITE(),
		}
	case KindVerifyBatch:
		metas = solana.AccountMetaSlice{
			solana.Meta(accounts.Authority).SIGNER(),
		}
	}

	return solana.NewInstruction(programID, metas, data), nil
}
