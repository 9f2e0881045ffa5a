// cmd/medchain/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagDebug  bool

	// app создается в PersistentPreRunE и закрывается после выполнения команды
	app *App
)

// rootCmd - точка входа CLI. Подкоманды получают зависимости через app.
var rootCmd = &cobra.Command{
	Use:           "medchain",
	Short:         "Medicine batch provenance on Solana",
	Long:          "Register medicine batches on Solana, transfer ownership, verify provenance and audit order receipts.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		app, err = newApp(flagConfig, flagDebug, cmd.Name())
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to config file (yaml or json)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newCreateCmd(),
		newTransferCmd(),
		newVerifyCmd(),
		newInfoCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newAuditCmd(),
		newReceiptsCmd(),
		newExportCmd(),
		newFundCmd(),
		newEnqueueCmd(),
		newImportCmd(),
		newWorkerCmd(),
		newWatchCmd(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if app != nil {
		app.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}
