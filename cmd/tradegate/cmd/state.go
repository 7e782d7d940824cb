package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradegate/risk"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset daily risk state",
	Long: `Show the risk counters kept per user and trading day.

Subcommands:
  show   - Today's state and limits for a user
  list   - Every stored day for a user
  reset  - Drop all stored days for a user

Examples:
  tradegate state show alice
  tradegate state list alice
  tradegate state reset alice --yes`,
}

var stateShowCmd = &cobra.Command{
	Use:   "show <user>",
	Short: "Show today's state for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateShow,
}

var stateListCmd = &cobra.Command{
	Use:   "list <user>",
	Short: "List every stored day for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateList,
}

var stateResetCmd = &cobra.Command{
	Use:   "reset <user>",
	Short: "Delete all stored state for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateReset,
}

var stateResetYes bool

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateResetCmd)

	stateResetCmd.Flags().BoolVarP(&stateResetYes, "yes", "y", false, "confirm the reset")
}

func runStateShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	user := args[0]
	st, err := a.engine.Snapshot(cmd.Context(), user)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	lim := a.engine.Limits(user)
	k := a.engine.Key(user)

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetTitle(fmt.Sprintf("%s on %s", k.UserID, k.Day))
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Counter", "Value", "Limit"})
	t.AppendRows([]table.Row{
		{"Trades", st.TradesCount, lim.MaxTradesPerDay},
		{"Cumulative loss", fmt.Sprintf("%.2f", st.CumulativeLoss), fmt.Sprintf("%.2f", lim.MaxDailyLoss)},
	})
	for _, sym := range st.Positions.Symbols() {
		t.AppendRow(table.Row{"Position " + sym, st.Positions[sym], lim.MaxPositionSize})
	}
	t.Render()
	return nil
}

func runStateList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.store.List(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("list state: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No stored state for %s\n", args[0])
		return nil
	}
	printEntries(cmd.OutOrStdout(), entries)
	return nil
}

func printEntries(w io.Writer, entries []risk.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Day", "Trades", "Loss", "Positions"})
	for _, e := range entries {
		pos := ""
		for i, sym := range e.State.Positions.Symbols() {
			if i > 0 {
				pos += ", "
			}
			pos += fmt.Sprintf("%s=%g", sym, e.State.Positions[sym])
		}
		t.AppendRow(table.Row{e.Key.Day, e.State.TradesCount, fmt.Sprintf("%.2f", e.State.CumulativeLoss), pos})
	}
	t.Render()
}

func runStateReset(cmd *cobra.Command, args []string) error {
	if !stateResetYes {
		return fmt.Errorf("refusing to reset %s without --yes", args[0])
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.engine.ResetUser(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Reset risk state for %s\n", args[0])
	return nil
}
