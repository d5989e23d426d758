package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/InvoiceDesk/internal/app"
	"github.com/dharsanguruparan/InvoiceDesk/internal/config"
	"github.com/dharsanguruparan/InvoiceDesk/internal/logging"
	"github.com/dharsanguruparan/InvoiceDesk/internal/model"
	"github.com/dharsanguruparan/InvoiceDesk/internal/processing"
)

var (
	serverURL string
	timeout   time.Duration
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorColor.Sprint("invoicedesk:"), err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoicedesk",
		Short: "InvoiceDesk review CLI",
		Long: `InvoiceDesk runs the invoice review server and drives it from the terminal:
upload PDFs, run extraction, edit statuses and inspect the dashboard.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("INVOICEDESK_SERVER", "http://localhost:8080"), "Review server base URL")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Minute, "HTTP timeout for server calls")
	cmd.AddCommand(
		newServeCmd(),
		newListCmd(),
		newShowCmd(),
		newStatsCmd(),
		newUploadCmd(),
		newAttachCmd(),
		newStatusCmd(),
		newExtractCmd(),
		newDeleteCmd(),
		newHealthCmd(),
	)
	return cmd
}

func client() *apiClient { return newAPIClient(serverURL, timeout) }

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the review server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), cfg, logging.New(cfg.Log, os.Stdout))
		},
	}
}

func newListCmd() *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices, optionally filtered by case name or id",
		RunE: func(cmd *cobra.Command, args []string) error {
			invoices, err := client().List(cmd.Context(), query)
			if err != nil {
				return err
			}
			if len(invoices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no invoices")
				return nil
			}
			printInvoices(cmd.OutOrStdout(), invoices)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Filter by case name or id")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one invoice with its extracted fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			inv, err := client().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			printInvoice(cmd.OutOrStdout(), inv)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count invoices per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := client().Stats(cmd.Context())
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats.Total, stats.Counts)
			return nil
		},
	}
}

func newUploadCmd() *cobra.Command {
	var caseName string
	cmd := &cobra.Command{
		Use:   "upload <file.pdf>...",
		Short: "Upload PDF invoices for review",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client()
			var failed int
			for _, path := range args {
				inv, err := c.Upload(cmd.Context(), path, caseName, 0)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", errorColor.Sprint("✗"), path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s #%d %s (%d pages)\n", doneColor.Sprint("✓"), inv.ID, inv.CaseName, inv.Pages)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&caseName, "case", "", "Case name (defaults to the file name)")
	return cmd
}

func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <id> <file.pdf>",
		Short: "Attach the PDF again to an existing invoice",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			inv, err := client().Upload(cmd.Context(), args[1], "", id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s #%d now uses %s\n", doneColor.Sprint("✓"), inv.ID, inv.File)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "status <id> <Pending|Done|Error>",
		Short:     "Set the review status of an invoice",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(model.StatusPending), string(model.StatusDone), string(model.StatusError)},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			inv, err := client().SetStatus(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d is %s\n", inv.ID, colorStatus(inv.Status))
			return nil
		},
	}
}

func newExtractCmd() *cobra.Command {
	var prompt string
	var async bool
	cmd := &cobra.Command{
		Use:   "extract <id>",
		Short: "Run field extraction on an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c := client()
			sp := newSpinner(fmt.Sprintf("extracting invoice #%d", id))
			sp.Start()
			if async {
				job, err := c.ExtractAsync(ctx, id, prompt)
				if err == nil {
					job, err = waitJob(ctx, c, job)
				}
				sp.Stop()
				if err != nil {
					return err
				}
				if job.Status == processing.JobFailed {
					return errors.New(job.Message)
				}
				inv, err := c.Get(ctx, id)
				if err != nil {
					return err
				}
				printInvoice(cmd.OutOrStdout(), inv)
				return nil
			}
			res, err := c.Extract(ctx, id, prompt)
			sp.Stop()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d fields in %.1fs\n", doneColor.Sprint("✓"), res.FilledFields, res.ExecutionTime)
			printInvoice(cmd.OutOrStdout(), res.Invoice)
			return nil
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "Custom extraction prompt")
	cmd.Flags().BoolVar(&async, "async", false, "Queue the extraction and poll for the result")
	return cmd
}

func waitJob(ctx context.Context, c *apiClient, job processing.Job) (processing.Job, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for job.Status == processing.JobQueued || job.Status == processing.JobRunning {
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
		next, err := c.Job(ctx, job.ID)
		if err != nil {
			return job, err
		}
		job = next
	}
	return job, nil
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete invoices and their attached files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client()
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				if err := c.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted #%d\n", id)
			}
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the review server and the extraction service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := client().GatewayHealth(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "server     %s\n", doneColor.Sprint("up"))
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "extraction %s\n", doneColor.Sprint("up"))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "extraction %s\n", errorColor.Sprint("down"))
			return errors.New("extraction service unreachable")
		},
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid invoice id %q", s)
	}
	return id, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
