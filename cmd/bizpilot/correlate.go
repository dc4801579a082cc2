package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/bizpilot/internal/cli"
)

func correlateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Correlate financial records with goals and tasks",
		Long: `Run correlation synchronously, either for one record or for every
record of the account. Useful as a backfill after restoring a backup or
changing models.`,
		RunE: runCorrelate,
	}

	cmd.Flags().String("account", "", "account id (required)")
	cmd.Flags().String("record", "", "correlate only this record")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runCorrelate(cmd *cobra.Command, _ []string) (err error) {
	accountID, _ := cmd.Flags().GetString("account")
	recordID, _ := cmd.Flags().GetString("record")
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ids := []string{recordID}
	if recordID == "" {
		records, err := a.store.ListFinancialRecords(ctx, accountID, 0)
		if err != nil {
			return fmt.Errorf("failed to list financial records: %w", err)
		}
		ids = make([]string, len(records))
		for i, r := range records {
			ids[i] = r.ID
		}
	}

	progress := cli.NewProgress(cmd.ErrOrStderr(), len(ids), "Correlating records...")
	var applied, insights, failed int
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		report, err := a.correlator.Correlate(ctx, accountID, id)
		if err != nil {
			failed++
			slog.Warn("Correlation failed", "record_id", id, "error", err)
		}
		if report != nil {
			applied += report.Applied
			insights += report.Insights
		}
		progress.Step()
	}
	progress.Finish()

	summary := fmt.Sprintf("Records: %d\nUpdates applied: %d\nInsights stored: %d", len(ids), applied, insights)
	if failed > 0 {
		summary += fmt.Sprintf("\nFailed: %d", failed)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(cli.ChartIcon+" Correlation", summary))
	return ctx.Err()
}
