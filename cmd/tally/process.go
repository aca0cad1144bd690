package main

import (
	"fmt"

	"github.com/fathomworks/tally-ho/internal/cli"
	"github.com/fathomworks/tally-ho/internal/engine"
	"github.com/fathomworks/tally-ho/internal/model"
	"github.com/spf13/cobra"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run the reconciliation pipeline over a batch of invoices",
		Long: `Run the full pipeline: read extracted invoice and supporting-document
records, normalize them, convert amounts to the reference currency, match
invoices to supporting documents, validate the business rules, and persist
the per-invoice reports.

Examples:
  # Process a run and persist reports
  tally process --invoices ./extracted/invoices --support-docs ./extracted/docs

  # Preview without persisting
  tally process --invoices ./extracted/invoices --support-docs ./extracted/docs --dry-run`,
		RunE: runProcess,
	}

	cmd.Flags().String("invoices", "", "directory of extracted invoice records (required)")
	cmd.Flags().String("support-docs", "", "directory of extracted supporting-document records (required)")
	cmd.Flags().BoolP("dry-run", "d", false, "run without persisting reports")
	cmd.Flags().BoolP("verbose", "v", false, "print every report, not only problems")
	_ = cmd.MarkFlagRequired("invoices")
	_ = cmd.MarkFlagRequired("support-docs")

	return cmd
}

func runProcess(cmd *cobra.Command, _ []string) error {
	invoiceDir, _ := cmd.Flags().GetString("invoices")
	docDir, _ := cmd.Flags().GetString("support-docs")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	verbose, _ := cmd.Flags().GetBool("verbose")

	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng, err := buildEngine(store, true)
	if err != nil {
		return err
	}

	stats, reports, err := eng.Run(ctx, engine.Options{
		InvoiceDir:    invoiceDir,
		SupportDocDir: docDir,
		DryRun:        dryRun,
	})
	if err != nil {
		return err
	}

	for i := range reports {
		if verbose || reports[i].Status != model.StatusPassed {
			fmt.Print(cli.RenderReport(&reports[i]))
		}
	}
	fmt.Println()
	fmt.Print(cli.RenderRunSummary(stats))

	return nil
}
