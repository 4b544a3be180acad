// Command opsimport validates and imports a company's monthly sales,
// product master and service order workbooks from the command line.
//
//	opsimport check  --company-id acme --company-name "Acme Ltda" --period 2024-03 \
//	    --sales vendas.xlsx --products produtos.xlsx --service-orders os.xlsx
//	opsimport import ...same flags...   # commits, needs DATABASE_URL
//	opsimport rollback --company-id acme --period 2024-03
//	opsimport layout [--file layout.yaml]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/opsimport/internal/logging"
)

// errRejected is returned when a batch was processed but not accepted, so
// the process exits non-zero after printing the result.
var errRejected = errors.New("batch rejected")

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "opsimport",
		Short:         "Validate and import monthly sales, product and service order workbooks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(opts.logLevel, opts.logFormat)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")

	cmd.AddCommand(newImportCmd(), newCheckCmd(), newRollbackCmd(), newLayoutCmd())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRejected) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
