package main

import (
	"fmt"

	"github.com/fathomworks/tally-ho/internal/cli"
	"github.com/fathomworks/tally-ho/internal/common"
	"github.com/fathomworks/tally-ho/internal/service"
	"github.com/spf13/cobra"
)

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List persisted validation reports",
		RunE:  runReports,
	}

	cmd.Flags().String("run", "", "only show reports from this run")
	cmd.Flags().Bool("failed-only", false, "only show failed reports")
	cmd.Flags().Int("limit", 50, "maximum number of reports")

	return cmd
}

func runReports(cmd *cobra.Command, _ []string) error {
	runID, _ := cmd.Flags().GetString("run")
	failedOnly, _ := cmd.Flags().GetBool("failed-only")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	reports, err := store.GetReports(ctx, service.ReportFilter{
		RunID:      runID,
		FailedOnly: failedOnly,
		Limit:      limit,
	})
	if err != nil {
		return common.NewUserError("failed to load reports", err)
	}

	if len(reports) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No reports found."))
		return nil
	}

	for i := range reports {
		fmt.Print(cli.RenderReport(&reports[i]))
	}
	fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("%d reports", len(reports))))
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			fmt.Println(cli.FormatSuccess("Database is up to date"))
			return nil
		},
	}
}
