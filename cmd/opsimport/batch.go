package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/opsimport/internal/config"
	"github.com/JonMunkholm/opsimport/internal/core"
	"github.com/JonMunkholm/opsimport/internal/database"
)

type batchOptions struct {
	companyID     string
	companyName   string
	period        string
	sales         string
	products      string
	serviceOrders string
	layoutFile    string
	maxFileSize   int64
	format        string
}

func (o *batchOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.companyID, "company-id", "", "Company identifier (required)")
	cmd.Flags().StringVar(&o.companyName, "company-name", "", "Company name as it appears in the client column (required)")
	cmd.Flags().StringVar(&o.period, "period", "", "Accounting month, YYYY-MM (required)")
	cmd.Flags().StringVar(&o.sales, "sales", "", "Sales workbook (required)")
	cmd.Flags().StringVar(&o.products, "products", "", "Product master workbook (required)")
	cmd.Flags().StringVar(&o.serviceOrders, "service-orders", "", "Service orders workbook (required)")
	cmd.Flags().StringVar(&o.layoutFile, "layout", "", "YAML column layout override")
	cmd.Flags().Int64Var(&o.maxFileSize, "max-file-size", core.DefaultMaxFileSize, "Largest accepted workbook in bytes")
	cmd.Flags().StringVar(&o.format, "format", "text", "Output format: text or json")

	for _, name := range []string{"company-id", "company-name", "period", "sales", "products", "service-orders"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func (o *batchOptions) request() (core.BatchRequest, error) {
	req := core.BatchRequest{
		CompanyID:   o.companyID,
		CompanyName: o.companyName,
		Period:      o.period,
	}

	var err error
	if req.Sales, err = readUpload(o.sales); err != nil {
		return core.BatchRequest{}, err
	}
	if req.Products, err = readUpload(o.products); err != nil {
		return core.BatchRequest{}, err
	}
	if req.ServiceOrders, err = readUpload(o.serviceOrders); err != nil {
		return core.BatchRequest{}, err
	}
	return req, nil
}

func (o *batchOptions) serviceOptions(layoutFile string) (core.Options, error) {
	opts := core.Options{MaxFileSize: o.maxFileSize, MaxConcurrent: 1}
	if o.layoutFile != "" {
		layoutFile = o.layoutFile
	}
	if layoutFile != "" {
		layout, err := core.LoadLayout(layoutFile)
		if err != nil {
			return core.Options{}, err
		}
		opts.Layout = &layout
	}
	return opts, nil
}

func readUpload(path string) (core.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Upload{}, fmt.Errorf("read workbook: %w", err)
	}
	return core.Upload{FileName: filepath.Base(path), Data: data}, nil
}

func newCheckCmd() *cobra.Command {
	var opts batchOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a batch without saving anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcOpts, err := opts.serviceOptions("")
			if err != nil {
				return err
			}
			return runBatch(cmd.Context(), cmd.OutOrStdout(), &opts, core.NewService(nil, svcOpts).Preview)
		},
	}
	opts.register(cmd)
	return cmd
}

func newImportCmd() *cobra.Command {
	var (
		opts    batchOptions
		migrate bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Validate a batch and commit it to the database",
		Long: `Validate a batch and commit it to the database in one transaction.

Connection settings are read from the environment (DATABASE_URL and the
DATABASE_* pool settings) and from a .env file in the working directory.
Nothing is written unless every check passes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			svcOpts, err := opts.serviceOptions(cfg.Import.LayoutFile)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := database.Open(ctx, database.PoolConfig{
				URL:             cfg.Database.URL,
				MaxConns:        cfg.Database.MaxConns,
				MinConns:        cfg.Database.MinConns,
				MaxConnLifetime: cfg.Database.MaxConnLifetime,
				MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			})
			if err != nil {
				return err
			}
			defer pool.Close()

			if migrate || cfg.Database.AutoMigrate {
				if err := database.EnsureSchema(ctx, pool); err != nil {
					return err
				}
			}

			service := core.NewService(database.NewStore(pool), svcOpts)
			return runBatch(ctx, cmd.OutOrStdout(), &opts, service.Process)
		},
	}
	opts.register(cmd)
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply the schema before importing")
	return cmd
}

type batchRunner func(context.Context, core.BatchRequest) (*core.ProcessingResult, error)

func runBatch(ctx context.Context, out io.Writer, opts *batchOptions, run batchRunner) error {
	req, err := opts.request()
	if err != nil {
		return err
	}

	result, err := run(ctx, req)
	if err != nil {
		return err
	}

	if err := printResult(out, opts.format, result); err != nil {
		return err
	}
	if result.Status != core.StatusSuccess {
		return errRejected
	}
	return nil
}

func printResult(out io.Writer, format string, result *core.ProcessingResult) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "%s: %s\n", result.Status, result.Message)
	fmt.Fprintf(out, "sales lines: %d, products: %d, service order lines: %d\n",
		result.TotalSales, result.TotalProducts, result.TotalServiceOrders)
	if result.BatchID != "" {
		fmt.Fprintf(out, "batch id: %s\n", result.BatchID)
	}
	for _, rec := range result.Errors {
		fmt.Fprintln(out, "  "+rec.String())
	}
	return nil
}
