package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/bizpilot/internal/calendar"
	"github.com/Veraticus/bizpilot/internal/cli"
	"github.com/Veraticus/bizpilot/internal/common"
)

func importICSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ics [files...]",
		Short: "Import calendar events from iCalendar files",
		Long: `Create one calendar event per VEVENT found in the given .ics files.

Example:
  bizpilot import-ics --account acme ~/Downloads/work.ics`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportICS,
	}

	cmd.Flags().String("account", "", "account id (required)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runImportICS(cmd *cobra.Command, args []string) error {
	accountID, _ := cmd.Flags().GetString("account")
	ctx := cmd.Context()

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var created, skipped int
	for _, path := range files {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		inputs, unparsable, err := calendar.Parse(file)
		_ = file.Close()
		if err != nil {
			return common.NewUserError(fmt.Sprintf("could not read calendar file %s", path), err)
		}
		skipped += unparsable

		for _, input := range inputs {
			if err := input.Validate(); err != nil {
				skipped++
				continue
			}
			event := input.ToEvent(accountID)
			if err := store.CreateCalendarEvent(ctx, &event); err != nil {
				return fmt.Errorf("failed to store event %q: %w", event.Title, err)
			}
			created++
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d event(s) from %d file(s)", created, len(files))))
	if skipped > 0 {
		fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Skipped %d event(s) without a usable start time", skipped)))
	}
	return nil
}
