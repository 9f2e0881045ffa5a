// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/medweb3"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage/models"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// Dataset - какая часть отчета выгружается
type Dataset string

const (
	DatasetReceipts     Dataset = "receipts"
	DatasetTransactions Dataset = "transactions"
	// Полный отчет, только JSON
	DatasetReport Dataset = "report"
)

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format          ExportFormat
	Dataset         Dataset
	StartTime       time.Time
	EndTime         time.Time
	OperationFilter string // create_batch / transfer_ownership / verify_batch
	OnlyConfirmed   bool
	OutputDir       string
}

// Exporter пишет отчеты аудита в файлы
type Exporter struct {
	cluster string
	logger  *zap.Logger
	now     func() time.Time
}

// NewExporter creates a new exporter
func NewExporter(cluster string, logger *zap.Logger) *Exporter {
	return &Exporter{
		cluster: cluster,
		logger:  logger,
		now:     time.Now,
	}
}

// Export выгружает выбранную часть отчета и возвращает путь к файлу
func (e *Exporter) Export(report *Report, options ExportOptions) (string, error) {
	if options.Dataset == "" {
		options.Dataset = DatasetReceipts
	}
	if options.Format == "" {
		options.Format = FormatCSV
	}
	if options.Dataset == DatasetReport && options.Format != FormatJSON {
		return "", fmt.Errorf("dataset %s supports only %s format", DatasetReport, FormatJSON)
	}

	var count int
	switch options.Dataset {
	case DatasetReceipts:
		count = len(e.filterReceipts(report.Receipts, options))
	case DatasetTransactions:
		count = len(e.filterTransactions(report.Transactions, options))
	case DatasetReport:
		count = len(report.Receipts) + len(report.Transactions)
	default:
		return "", fmt.Errorf("unsupported dataset: %s", options.Dataset)
	}
	if count == 0 {
		return "", fmt.Errorf("no %s match the export criteria", options.Dataset)
	}

	// Generate filename
	filename := e.generateFilename(options)
	outputPath := filepath.Join(options.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = e.exportToCSV(report, options, outputPath)
	case FormatJSON:
		err = e.exportToJSON(report, options, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Audit data exported",
		zap.String("file", outputPath),
		zap.String("dataset", string(options.Dataset)),
		zap.Int("count", count),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

// filterReceipts applies filters to the receipt list
func (e *Exporter) filterReceipts(receipts []Receipt, options ExportOptions) []Receipt {
	var filtered []Receipt
	for _, r := range receipts {
		if r.ConfirmedAt != nil {
			if !options.StartTime.IsZero() && r.ConfirmedAt.Before(options.StartTime) {
				continue
			}
			if !options.EndTime.IsZero() && r.ConfirmedAt.After(options.EndTime) {
				continue
			}
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// filterTransactions applies filters to the transaction log, oldest first
func (e *Exporter) filterTransactions(txs []*models.Transaction, options ExportOptions) []*models.Transaction {
	var filtered []*models.Transaction
	for _, tx := range txs {
		// Time filter
		if !options.StartTime.IsZero() && tx.CreatedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && tx.CreatedAt.After(options.EndTime) {
			continue
		}

		if options.OperationFilter != "" && tx.Operation != options.OperationFilter {
			continue
		}

		if options.OnlyConfirmed && tx.Status != models.TxConfirmed {
			continue
		}

		filtered = append(filtered, tx)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})
	return filtered
}

// generateFilename creates a filename based on export options
func (e *Exporter) generateFilename(options ExportOptions) string {
	timestamp := e.now().Format("20060102_150405")

	prefix := string(options.Dataset)
	if options.OperationFilter != "" && options.Dataset == DatasetTransactions {
		prefix += "_" + options.OperationFilter
	}

	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

func (e *Exporter) transactionRow(tx *models.Transaction) []string {
	return []string{
		tx.CreatedAt.UTC().Format(time.RFC3339),
		tx.Signature,
		tx.Operation,
		tx.Status,
		tx.BatchID,
		tx.BatchAccount,
		tx.WalletAddress,
		strconv.FormatUint(tx.Slot, 10),
		tx.ErrorKind,
		tx.ErrorMessage,
		medweb3.ExplorerURL(tx.Signature, e.cluster),
	}
}

// exportToCSV exports the dataset to CSV format
func (e *Exporter) exportToCSV(report *Report, options ExportOptions, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	var headers []string
	var rows [][]string
	switch options.Dataset {
	case DatasetReceipts:
		headers = ReceiptCSVHeaders()
		for _, r := range e.filterReceipts(report.Receipts, options) {
			rows = append(rows, r.ToCSV())
		}
	case DatasetTransactions:
		headers = TransactionCSVHeaders()
		for _, tx := range e.filterTransactions(report.Transactions, options) {
			rows = append(rows, e.transactionRow(tx))
		}
	}

	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

// exportToJSON exports the dataset to JSON format
func (e *Exporter) exportToJSON(report *Report, options ExportOptions, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	var payload interface{}
	switch options.Dataset {
	case DatasetReceipts:
		receipts := e.filterReceipts(report.Receipts, options)
		payload = struct {
			ExportTime      time.Time `json:"export_time"`
			ReceiptCount    int       `json:"receipt_count"`
			Receipts        []Receipt `json:"receipts"`
			MissingReceipts []string  `json:"missing_receipts"`
		}{
			ExportTime:      e.now(),
			ReceiptCount:    len(receipts),
			Receipts:        receipts,
			MissingReceipts: report.MissingReceipts,
		}
	case DatasetTransactions:
		txs := e.filterTransactions(report.Transactions, options)
		payload = struct {
			ExportTime       time.Time             `json:"export_time"`
			TransactionCount int                   `json:"transaction_count"`
			Transactions     []*models.Transaction `json:"transactions"`
		}{
			ExportTime:       e.now(),
			TransactionCount: len(txs),
			Transactions:     txs,
		}
	default:
		payload = report
	}

	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
