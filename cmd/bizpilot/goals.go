package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/bizpilot/internal/cli"
	"github.com/Veraticus/bizpilot/internal/engine"
)

func goalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Inspect and maintain goals",
	}

	recompute := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute derived goal progress from financial totals",
		RunE:  runGoalsRecompute,
	}
	recompute.Flags().String("account", "", "account id (required)")
	_ = recompute.MarkFlagRequired("account")

	list := &cobra.Command{
		Use:   "list",
		Short: "List goals with their progress",
		RunE:  runGoalsList,
	}
	list.Flags().String("account", "", "account id (required)")
	_ = list.MarkFlagRequired("account")

	cmd.AddCommand(recompute, list)
	return cmd
}

func runGoalsRecompute(cmd *cobra.Command, _ []string) error {
	accountID, _ := cmd.Flags().GetString("account")
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

	updated, err := engine.NewRecalculator(store, nil).RecomputeGoalProgress(ctx, accountID)
	if err != nil {
		return fmt.Errorf("recompute failed: %w", err)
	}

	goals, err := store.ListGoals(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to list goals: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatTitle("Goals for "+accountID))
	fmt.Fprintln(out, cli.RenderGoals(goals))
	fmt.Fprintln(out)
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%d goal(s) updated", updated)))
	return nil
}

func runGoalsList(cmd *cobra.Command, _ []string) error {
	accountID, _ := cmd.Flags().GetString("account")
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

	goals, err := store.ListGoals(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to list goals: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderGoals(goals))
	return nil
}
