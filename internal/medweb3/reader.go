// internal/medweb3/reader.go
package medweb3

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/blockchain"
)

const (
	// Лимит истории по умолчанию
	DefaultHistoryLimit = 50
	// Сколько транзакций истории запрашивается параллельно
	historyConcurrency = 8
)

// AccountInfo - сведения об аккаунте партии
type AccountInfo struct {
	Address    string        `json:"address"`
	Owner      string        `json:"owner"`
	Lamports   uint64        `json:"lamports"`
	DataLength int           `json:"dataLength"`
	Executable bool          `json:"executable"`
	Batch      *BatchAccount `json:"batch,omitempty"`
	State      BatchState    `json:"state"`
}

// ProgramAccount - аккаунт, принадлежащий программе
type ProgramAccount struct {
	Address    string        `json:"address"`
	Lamports   uint64        `json:"lamports"`
	DataLength int           `json:"dataLength"`
	Batch      *BatchAccount `json:"batch,omitempty"`
}

// SignatureInfo - запись о транзакции по адресу
type SignatureInfo struct {
	Signature          string     `json:"signature"`
	Slot               uint64     `json:"slot"`
	BlockTime          *time.Time `json:"blockTime,omitempty"`
	Succeeded          bool       `json:"succeeded"`
	Err                string     `json:"err,omitempty"`
	ConfirmationStatus string     `json:"confirmationStatus,omitempty"`
}

// HistoryEntry - транзакция партии с комиссией и логами
type HistoryEntry struct {
	SignatureInfo
	Fee  uint64   `json:"fee"`
	Logs []string `json:"logs,omitempty"`
}

// Reader читает состояние аккаунтов программы. Только чтение.
type Reader struct {
	client    blockchain.Client
	programID solana.PublicKey
	logger    *zap.Logger
}

// NewReader создает читатель для программы programID
func NewReader(client blockchain.Client, programID solana.PublicKey, logger *zap.Logger) *Reader {
	return &Reader{
		client:    client,
		programID: programID,
		logger:    logger.Named("medweb3-reader"),
	}
}

// ProgramID возвращает адрес программы
func (r *Reader) ProgramID() solana.PublicKey {
	return r.programID
}

// AccountExists сообщает, есть ли аккаунт в сети. Ошибка только при недоступности RPC.
func (r *Reader) AccountExists(ctx context.Context, address solana.PublicKey) (bool, error) {
	account, err := r.client.GetAccountInfo(ctx, address)
	if err != nil {
		return false, err
	}
	return account != nil, nil
}

// GetAccountInfo возвращает сведения об аккаунте или nil, если его нет.
func (r *Reader) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*AccountInfo, error) {
	account, err := r.client.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, nil
	}

	data := accountData(account)
	info := &AccountInfo{
		Address:    address.String(),
		Owner:      account.Owner.String(),
		Lamports:   account.Lamports,
		DataLength: len(data),
		Executable: account.Executable,
		// Аккаунт не программы (кошелек, чужая программа) партией не является
		State: StateNonExistent,
	}
	if account.Owner.Equals(r.programID) {
		info.State = StateCreated
		if batch, err := DecodeBatchAccount(data); err == nil {
			info.Batch = batch
			info.State = StateOf(batch)
		} else {
			r.logger.Debug("Account data is not a batch account",
				zap.String("address", address.String()),
				zap.Int("data_length", len(data)),
				zap.Error(err))
		}
	}
	return info, nil
}

// ListProgramAccounts возвращает все аккаунты программы. Нулевой programID - программа читателя.
func (r *Reader) ListProgramAccounts(ctx context.Context, programID solana.PublicKey) ([]ProgramAccount, error) {
	if programID.IsZero() {
		programID = r.programID
	}
	return r.listProgramAccounts(ctx, programID, nil)
}

// FindBatchAccounts ищет аккаунты программы, у которых batch_id совпадает с заданным
func (r *Reader) FindBatchAccounts(ctx context.Context, batchID string) ([]ProgramAccount, error) {
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch_id is required", blockchain.ErrEncoding)
	}
	filters := []rpc.RPCFilter{{
		Memcmp: &rpc.RPCFilterMemcmp{
			Offset: 0,
			Bytes:  BatchIDPrefix(batchID),
		},
	}}
	return r.listProgramAccounts(ctx, r.programID, filters)
}

func (r *Reader) listProgramAccounts(ctx context.Context, programID solana.PublicKey, filters []rpc.RPCFilter) ([]ProgramAccount, error) {
	keyed, err := r.client.GetProgramAccounts(ctx, programID, filters)
	if err != nil {
		return nil, err
	}

	out := make([]ProgramAccount, 0, len(keyed))
	for _, ka := range keyed {
		if ka == nil || ka.Account == nil {
			continue
		}
		data := accountData(ka.Account)
		pa := ProgramAccount{
			Address:    ka.Pubkey.String(),
			Lamports:   ka.Account.Lamports,
			DataLength: len(data),
		}
		if batch, err := DecodeBatchAccount(data); err == nil {
			pa.Batch = batch
		}
		out = append(out, pa)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

// ListRecentSignatures возвращает до limit последних подписей по адресу, от новых к старым
func (r *Reader) ListRecentSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]SignatureInfo, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	sigs, err := r.client.GetSignaturesForAddress(ctx, address, limit)
	if err != nil {
		return nil, err
	}

	out := make([]SignatureInfo, 0, len(sigs))
	for _, s := range sigs {
		if s == nil {
			continue
		}
		info := SignatureInfo{
			Signature:          s.Signature.String(),
			Slot:               s.Slot,
			Succeeded:          s.Err == nil,
			ConfirmationStatus: string(s.ConfirmationStatus),
		}
		if s.Err != nil {
			info.Err = fmt.Sprintf("%v", s.Err)
		}
		if s.BlockTime != nil {
			bt := s.BlockTime.Time().UTC()
			info.BlockTime = &bt
		}
		out = append(out, info)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetBatchHistory возвращает историю транзакций аккаунта партии с комиссиями и логами.
// Транзакции запрашиваются параллельно, порядок сохраняется.
func (r *Reader) GetBatchHistory(ctx context.Context, batchAccount solana.PublicKey, limit int) ([]HistoryEntry, error) {
	sigs, err := r.ListRecentSignatures(ctx, batchAccount, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, len(sigs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyConcurrency)

	for i, s := range sigs {
		entries[i].SignatureInfo = s
		g.Go(func() error {
			sig, err := solana.SignatureFromBase58(s.Signature)
			if err != nil {
				return err
			}
			tx, err := r.client.GetTransaction(gctx, sig)
			if err != nil {
				return fmt.Errorf("transaction %s: %w", s.Signature, err)
			}
			if tx != nil && tx.Meta != nil {
				entries[i].Fee = tx.Meta.Fee
				entries[i].Logs = tx.Meta.LogMessages
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func accountData(account *rpc.Account) []byte {
	if account == nil || account.Data == nil {
		return nil
	}
	return account.Data.GetBinary()
}
