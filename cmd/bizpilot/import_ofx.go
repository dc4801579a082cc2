package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/bizpilot/internal/cli"
	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/ofx"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import financial records from OFX/QFX statements",
		Long: `Import bank and credit card statements exported as OFX or QFX. Credits
become revenue and debits become expenses. Every imported record is
correlated with the account's goals and tasks.

Examples:
  bizpilot import-ofx --account acme ~/Downloads/checking_2025_06.qfx
  bizpilot import-ofx --account acme ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().String("account", "", "account id (required)")
	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) (err error) {
	accountID, _ := cmd.Flags().GetString("account")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	parser := ofx.NewParser(slog.Default())
	seen := make(map[string]struct{})
	var entries []ofx.Entry
	for _, path := range files {
		fileEntries, err := parseOFXFile(cmd, parser, path)
		if err != nil {
			return err
		}
		for _, entry := range fileEntries {
			key := entry.StatementAccount + "/" + entry.FITID
			if _, dup := seen[key]; dup && entry.FITID != "" {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, entry)
		}
	}

	if dryRun {
		rows := make([][]string, 0, len(entries))
		for _, entry := range entries {
			date := ""
			if entry.Input.Date != nil {
				date = entry.Input.Date.Format("2006-01-02")
			}
			rows = append(rows, []string{date, string(entry.Input.Type), entry.Input.Amount.StringFixed(2), entry.Input.Category, entry.Input.Description})
		}
		fmt.Fprintln(out, cli.RenderTable([]string{"Date", "Type", "Amount", "Category", "Description"}, rows))
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Dry run: %d record(s) would be imported", len(entries))))
		return nil
	}

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

	progress := cli.NewProgress(cmd.ErrOrStderr(), len(entries), "Importing records...")
	var imported int
	var failures []error
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if _, err := a.records.CreateFinancialRecord(ctx, accountID, entry.Input); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", entry.FITID, err))
		} else {
			imported++
		}
		progress.Step()
	}
	progress.Finish()

	summary := fmt.Sprintf("Imported %d of %d record(s) from %d file(s)", imported, len(entries), len(files))
	if len(failures) > 0 {
		summary += fmt.Sprintf("\n%d record(s) failed", len(failures))
		slog.Warn("Some records failed to import", "error", errors.Join(failures...))
	}
	fmt.Fprintln(out, cli.RenderBox(cli.ChartIcon+" OFX import", summary))
	fmt.Fprintln(out, cli.FormatInfo("Waiting for correlation to finish..."))
	return ctx.Err()
}

func parseOFXFile(cmd *cobra.Command, parser *ofx.Parser, path string) ([]ofx.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	entries, err := parser.ParseFile(cmd.Context(), file)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("could not read statement %s", path), err)
	}
	return entries, nil
}
