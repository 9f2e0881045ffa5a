// internal/export/audit.go
package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/medweb3"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage/models"
)

// DefaultSignatureLimit - сколько последних подписей кошелька показывать в отчете
const DefaultSignatureLimit = 10

// ChainReader - чтения из сети, нужные аудиту
type ChainReader interface {
	ProgramID() solana.PublicKey
	ListProgramAccounts(ctx context.Context, programID solana.PublicKey) ([]medweb3.ProgramAccount, error)
	ListRecentSignatures(ctx context.Context, address solana.PublicKey, limit int) ([]medweb3.SignatureInfo, error)
}

// Receipt - подтверждение записи заказа в сети
type Receipt struct {
	OrderID      string     `json:"order_id"`
	Customer     string     `json:"customer,omitempty"`
	BatchID      string     `json:"batch_id"`
	BatchAccount string     `json:"batch_account"`
	Signature    string     `json:"signature"`
	CurrentOwner string     `json:"current_owner,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	ExplorerURL  string     `json:"explorer_url"`
}

// ReceiptCSVHeaders возвращает заголовки CSV для квитанций
func ReceiptCSVHeaders() []string {
	return []string{"order_id", "customer", "batch_id", "batch_account", "signature", "current_owner", "confirmed_at", "explorer_url"}
}

// ToCSV преобразует квитанцию в строку CSV
func (r Receipt) ToCSV() []string {
	confirmed := ""
	if r.ConfirmedAt != nil {
		confirmed = r.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	return []string{r.OrderID, r.Customer, r.BatchID, r.BatchAccount, r.Signature, r.CurrentOwner, confirmed, r.ExplorerURL}
}

// TransactionCSVHeaders возвращает заголовки CSV для журнала транзакций
func TransactionCSVHeaders() []string {
	return []string{"created_at", "signature", "operation", "status", "batch_id", "batch_account", "wallet", "slot", "error_kind", "error", "explorer_url"}
}

// Report - сводка по программе, кошельку и заказам
type Report struct {
	GeneratedAt      time.Time                 `json:"generated_at"`
	ProgramID        string                    `json:"program_id"`
	Cluster          string                    `json:"cluster"`
	Connection       *medweb3.ConnectionStatus `json:"connection,omitempty"`
	ProgramAccounts  []medweb3.ProgramAccount  `json:"program_accounts"`
	RecentSignatures []medweb3.SignatureInfo   `json:"recent_signatures,omitempty"`
	Receipts         []Receipt                 `json:"receipts"`
	MissingReceipts  []string                  `json:"missing_receipts"`
	Transactions     []*models.Transaction     `json:"transactions"`
	Summary          Summary                   `json:"summary"`
}

// Summary - счетчики отчета
type Summary struct {
	ProgramAccounts      int `json:"program_accounts"`
	Orders               int `json:"orders"`
	OrdersWithReceipts   int `json:"orders_with_receipts"`
	OrdersMissing        int `json:"orders_missing_receipts"`
	ConfirmedSubmissions int `json:"confirmed_submissions"`
	FailedSubmissions    int `json:"failed_submissions"`
	TimedOutSubmissions  int `json:"timed_out_submissions"`
}

// ReportOptions задает объем отчета
type ReportOptions struct {
	// Кошелек для списка последних подписей; нулевой ключ - не запрашивать
	Wallet         solana.PublicKey
	SignatureLimit int
	// Ограничение журнала транзакций, 0 - весь журнал
	TransactionLimit int
	Connection       *medweb3.ConnectionStatus
}

// Auditor собирает отчет из сети и хранилища
type Auditor struct {
	reader  ChainReader
	store   storage.Storage
	cluster string
	logger  *zap.Logger
	now     func() time.Time
}

func NewAuditor(reader ChainReader, store storage.Storage, cluster string, logger *zap.Logger) *Auditor {
	return &Auditor{
		reader:  reader,
		store:   store,
		cluster: cluster,
		logger:  logger.Named("auditor"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// BuildReport собирает полный отчет
func (a *Auditor) BuildReport(ctx context.Context, opts ReportOptions) (*Report, error) {
	report := &Report{
		GeneratedAt: a.now(),
		ProgramID:   a.reader.ProgramID().String(),
		Cluster:     a.cluster,
		Connection:  opts.Connection,
	}

	accounts, err := a.reader.ListProgramAccounts(ctx, a.reader.ProgramID())
	if err != nil {
		return nil, fmt.Errorf("list program accounts: %w", err)
	}
	report.ProgramAccounts = accounts

	if !opts.Wallet.IsZero() {
		limit := opts.SignatureLimit
		if limit <= 0 {
			limit = DefaultSignatureLimit
		}
		sigs, err := a.reader.ListRecentSignatures(ctx, opts.Wallet, limit)
		if err != nil {
			return nil, fmt.Errorf("list wallet signatures: %w", err)
		}
		report.RecentSignatures = sigs
	}

	receipts, missing, err := a.Receipts(ctx)
	if err != nil {
		return nil, err
	}
	report.Receipts = receipts
	report.MissingReceipts = missing

	txs, err := a.store.ListTransactions(ctx, "", opts.TransactionLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	report.Transactions = txs

	report.Summary = summarize(report)
	a.logger.Debug("Audit report built",
		zap.Int("program_accounts", report.Summary.ProgramAccounts),
		zap.Int("orders", report.Summary.Orders),
		zap.Int("missing", report.Summary.OrdersMissing))
	return report, nil
}

// Receipts возвращает квитанции заказов с записью в сети и номера заказов без нее
func (a *Auditor) Receipts(ctx context.Context) ([]Receipt, []string, error) {
	orders, err := a.store.ListOrders(ctx, 0, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("list orders: %w", err)
	}

	receipts := make([]Receipt, 0, len(orders))
	missing := make([]string, 0)
	for _, order := range orders {
		if !order.Blockchain.Recorded() {
			missing = append(missing, order.OrderID)
			continue
		}
		receipts = append(receipts, a.receipt(order))
	}

	sort.Slice(receipts, func(i, j int) bool { return receipts[i].OrderID < receipts[j].OrderID })
	sort.Strings(missing)
	return receipts, missing, nil
}

func (a *Auditor) receipt(order *models.Order) Receipt {
	b := order.Blockchain
	return Receipt{
		OrderID:      order.OrderID,
		Customer:     order.Customer,
		BatchID:      b.BatchID,
		BatchAccount: b.ContractAddress,
		Signature:    b.TransactionHash,
		CurrentOwner: b.CurrentOwner,
		ConfirmedAt:  b.ConfirmedAt,
		ExplorerURL:  medweb3.ExplorerURL(b.TransactionHash, a.cluster),
	}
}

func summarize(r *Report) Summary {
	s := Summary{
		ProgramAccounts:    len(r.ProgramAccounts),
		OrdersWithReceipts: len(r.Receipts),
		OrdersMissing:      len(r.MissingReceipts),
	}
	s.Orders = s.OrdersWithReceipts + s.OrdersMissing
	for _, tx := range r.Transactions {
		switch tx.Status {
		case models.TxConfirmed:
			s.ConfirmedSubmissions++
		case models.TxFailed:
			s.FailedSubmissions++
		case models.TxTimeout:
			s.TimedOutSubmissions++
		}
	}
	return s
}
