package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/bizpilot/internal/cli"
	"github.com/Veraticus/bizpilot/internal/config"
)

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <dest>",
		Short: "Write a consistent copy of the database",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackup,
	}
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	info, err := store.Backup(ctx, config.ExpandPath(args[0]))
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	tables := make([]string, 0, len(info.RowCounts))
	for table := range info.RowCounts {
		tables = append(tables, table)
	}
	slices.Sort(tables)

	var b strings.Builder
	fmt.Fprintf(&b, "Path: %s\nSize: %d bytes\nSchema version: %d\n", info.Path, info.FileSize, info.SchemaVersion)
	for _, table := range tables {
		fmt.Fprintf(&b, "\n%-18s %d", table, info.RowCounts[table])
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(cli.SuccessIcon+" Backup complete", b.String()))
	return nil
}
