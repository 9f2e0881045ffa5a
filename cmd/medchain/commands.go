// cmd/medchain/commands.go
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/export"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/jobs"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/medweb3"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/storage/models"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/ui"
)

// recordOrder пишет подтвержденный результат в заказ, если указан --order
func recordOrder(ctx context.Context, orderID string, merge func(current models.OrderBlockchain, now time.Time) models.OrderBlockchain) {
	if orderID == "" {
		return
	}
	store, err := app.Storage()
	if err != nil {
		app.logger.Warn("Order not updated", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	var current models.OrderBlockchain
	order, err := store.GetOrder(ctx, orderID)
	switch {
	case err == nil:
		current = order.Blockchain
	case !errors.Is(err, storage.ErrNotFound):
		app.logger.Warn("Order not updated", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if err := store.UpdateOrderBlockchain(ctx, orderID, merge(current, time.Now().UTC())); err != nil {
		app.logger.Warn("Order not updated", zap.String("order_id", orderID), zap.Error(err))
	}
}

// ensureOrderUnrecorded не дает создать вторую партию для заказа с записью.
func ensureOrderUnrecorded(ctx context.Context, orderID string) error {
	if orderID == "" {
		return nil
	}
	store, err := app.Storage()
	if err != nil {
		return nil
	}
	order, err := store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	if order.Blockchain.Recorded() {
		return fmt.Errorf("%w: order %s already has batch %s at %s",
			jobs.ErrInvalidJob, orderID, order.Blockchain.BatchID, order.Blockchain.ContractAddress)
	}
	return nil
}

// openJournal подключает журнал транзакций. Без хранилища операции все равно выполняются.
func openJournal() {
	if _, err := app.Storage(); err != nil {
		app.logger.Warn("Transaction journal disabled", zap.Error(err))
	}
}

func newCreateCmd() *cobra.Command {
	var manufacturer, orderID string
	cmd := &cobra.Command{
		Use:   "create <batch-id>",
		Short: "Register a new batch on-chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := app.Wallet(ctx)
			if err != nil {
				return respond(nil, err)
			}
			openJournal()
			if err := ensureOrderUnrecorded(ctx, orderID); err != nil {
				return respond(nil, err)
			}

			res, err := app.service.CreateBatch(ctx, w, args[0], manufacturer)
			if err == nil {
				recordOrder(ctx, orderID, func(_ models.OrderBlockchain, now time.Time) models.OrderBlockchain {
					return models.OrderBlockchain{
						BatchID:         res.BatchID,
						ContractAddress: res.BatchAccount,
						TransactionHash: res.Signature,
						CurrentOwner:    res.Owner,
						ConfirmedAt:     &now,
					}
				})
			}
			return respond(res, err)
		},
	}
	cmd.Flags().StringVar(&manufacturer, "manufacturer", "", "Manufacturer address (defaults to the wallet)")
	cmd.Flags().StringVar(&orderID, "order", "", "Order id to record the confirmed batch on")
	return cmd
}

func newTransferCmd() *cobra.Command {
	var batchID, orderID string
	cmd := &cobra.Command{
		Use:   "transfer <batch-account> <new-owner>",
		Short: "Transfer batch ownership",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			batchAccount, newOwner := args[0], args[1]

			if batchID == "" {
				info, err := app.service.GetBatchInfo(ctx, batchAccount)
				if err != nil {
					return respond(nil, err)
				}
				if info.Batch == nil {
					return respond(nil, fmt.Errorf("%w: account %s holds no batch data", medweb3.ErrBatchNotFound, batchAccount))
				}
				batchID = info.Batch.BatchID
			}

			w, err := app.Wallet(ctx)
			if err != nil {
				return respond(nil, err)
			}
			openJournal()

			res, err := app.service.TransferOwnership(ctx, w, batchAccount, batchID, newOwner)
			if err == nil {
				recordOrder(ctx, orderID, func(current models.OrderBlockchain, now time.Time) models.OrderBlockchain {
					return current.Transferred(res.BatchID, res.BatchAccount, res.Signature, res.NewOwner, now)
				})
			}
			return respond(res, err)
		},
	}
	cmd.Flags().StringVar(&batchID, "batch-id", "", "Batch id (read from the account when omitted)")
	cmd.Flags().StringVar(&orderID, "order", "", "Order id to record the new owner on")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var onChain bool
	var batchID string
	cmd := &cobra.Command{
		Use:   "verify <batch-account|batch-id>",
		Short: "Verify that a batch exists on-chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := medweb3.VerifyOptions{OnChain: onChain, BatchID: batchID}
			if onChain {
				w, err := app.Wallet(ctx)
				if err != nil {
					return respond(nil, err)
				}
				opts.Wallet = w
				openJournal()
			}
			res, err := app.service.VerifyBatch(ctx, args[0], opts)
			return respond(res, err)
		},
	}
	cmd.Flags().BoolVar(&onChain, "on-chain", false, "Also submit a VerifyBatch instruction")
	cmd.Flags().StringVar(&batchID, "batch-id", "", "Batch id for the on-chain instruction when verifying by address")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <batch-account>",
		Short: "Show a batch account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.service.GetBatchInfo(cmd.Context(), args[0])
			return respond(res, err)
		},
	}
}

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show RPC node and wallet status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status := app.service.GetConnectionStatus(cmd.Context(), app.OptionalWallet(cmd.Context()))
			nodes := app.client.NodeStats()
			if asJSON {
				return printJSON(map[string]interface{}{"status": status, "nodes": nodes})
			}
			r := ui.NewRenderer()
			printText(r.RenderStatus(status))
			printText(r.RenderNodes(nodes))
			if !status.Connected {
				return errors.New("RPC node unavailable")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history <batch-account>",
		Short: "List recent transactions of a batch account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.service.GetBatchHistory(cmd.Context(), args[0], limit)
			if asJSON || err != nil {
				return respond(entries, err)
			}
			printText(ui.NewRenderer().RenderHistory(entries))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", medweb3.DefaultHistoryLimit, "Maximum number of transactions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func buildReport(ctx context.Context, signatureLimit int) (*export.Report, error) {
	store, err := app.Storage()
	if err != nil {
		return nil, err
	}
	w := app.OptionalWallet(ctx)
	opts := export.ReportOptions{
		SignatureLimit: signatureLimit,
		Connection:     app.service.GetConnectionStatus(ctx, w),
	}
	if w != nil {
		opts.Wallet = w.PublicKey()
	}
	auditor := export.NewAuditor(app.service.Reader(), store, app.config.ExplorerCluster, app.logger)
	return auditor.BuildReport(ctx, opts)
}

func newAuditCmd() *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Program accounts, recent wallet signatures and order receipts",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := buildReport(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(report)
			}
			printText(ui.NewRenderer().RenderReport(report))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "signatures", export.DefaultSignatureLimit, "Number of recent wallet signatures")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of tables")
	return cmd
}

func newReceiptsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "receipts",
		Short: "List explorer receipts for recorded orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Storage()
			if err != nil {
				return err
			}
			auditor := export.NewAuditor(app.service.Reader(), store, app.config.ExplorerCluster, app.logger)
			receipts, missing, err := auditor.Receipts(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(map[string]interface{}{"receipts": receipts, "missing": missing})
			}
			printText(ui.NewRenderer().RenderReceipts(receipts, missing))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		format, dataset, outDir, operation, since string
		onlyConfirmed                              bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export receipts, the transaction journal or the full audit report",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.ExportOptions{
				Format:          export.ExportFormat(format),
				Dataset:         export.Dataset(dataset),
				OperationFilter: operation,
				OnlyConfirmed:   onlyConfirmed,
				OutputDir:       outDir,
			}
			if since != "" {
				d, err := time.ParseDuration(since)
				if err != nil {
					return fmt.Errorf("invalid --since: %w", err)
				}
				opts.StartTime = time.Now().Add(-d)
			}

			report, err := buildReport(cmd.Context(), export.DefaultSignatureLimit)
			if err != nil {
				return err
			}
			path, err := export.NewExporter(app.config.ExplorerCluster, app.logger).Export(report, opts)
			if err != nil {
				return err
			}
			printText(path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "csv or json")
	cmd.Flags().StringVar(&dataset, "dataset", string(export.DatasetReceipts), "receipts, transactions or report")
	cmd.Flags().StringVar(&outDir, "out", "exports", "Output directory")
	cmd.Flags().StringVar(&operation, "operation", "", "Only transactions of this operation")
	cmd.Flags().BoolVar(&onlyConfirmed, "only-confirmed", false, "Only confirmed transactions")
	cmd.Flags().StringVar(&since, "since", "", "Only records newer than this duration, e.g. 24h")
	return cmd
}

func newFundCmd() *cobra.Command {
	var minSOL, airdropSOL float64
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Airdrop SOL to the wallet when its balance is low (devnet)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := app.Wallet(ctx)
			if err != nil {
				return respond(nil, err)
			}
			res, err := app.service.EnsureFunded(ctx, w,
				uint64(minSOL*float64(solana.LAMPORTS_PER_SOL)),
				uint64(airdropSOL*float64(solana.LAMPORTS_PER_SOL)))
			return respond(res, err)
		},
	}
	cmd.Flags().Float64Var(&minSOL, "min-sol", 1, "Airdrop only when the balance is below this amount")
	cmd.Flags().Float64Var(&airdropSOL, "airdrop-sol", 5, "Amount to request")
	return cmd
}

func newEnqueueCmd() *cobra.Command {
	var req jobs.Request
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a create or transfer job for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Storage()
			if err != nil {
				return err
			}
			queue := jobs.NewQueue(store, app.config.Worker.MaxAttempts, app.logger)
			job, err := queue.Enqueue(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(job)
		},
	}
	cmd.Flags().StringVar(&req.OrderID, "order", "", "Order id")
	cmd.Flags().StringVar(&req.Customer, "customer", "", "Customer name for a new order")
	cmd.Flags().StringVar(&req.Type, "type", models.JobCreateBatch, "create_batch or transfer_ownership")
	cmd.Flags().StringVar(&req.BatchID, "batch-id", "", "Batch id")
	cmd.Flags().StringVar(&req.Manufacturer, "manufacturer", "", "Manufacturer address")
	cmd.Flags().StringVar(&req.BatchAccount, "batch-account", "", "Batch account (transfer)")
	cmd.Flags().StringVar(&req.NewOwner, "new-owner", "", "New owner address (transfer)")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <batches.yaml>",
		Short: "Queue jobs from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Storage()
			if err != nil {
				return err
			}
			queue := jobs.NewQueue(store, app.config.Worker.MaxAttempts, app.logger)
			queued, err := queue.ImportYAML(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(queued)
		},
	}
}

func newWatchCmd() *cobra.Command {
	var interval time.Duration
	var exit bool
	cmd := &cobra.Command{
		Use:   "watch <signature>...",
		Short: "Watch transaction statuses live",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := ui.NewWatchModel(cmd.Context(), app.pipeline.Monitor(), args, interval, app.logger)
			if err != nil {
				return err
			}
			model.ExitWhenSettled = exit
			_, err = ui.Run(model, app.logger)
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", ui.DefaultWatchInterval, "Polling interval")
	cmd.Flags().BoolVar(&exit, "exit", false, "Exit when every transaction is confirmed or failed")
	return cmd
}
