package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradegate/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the execution journal",
	Long: `Query execution records from a SQLite journal.

Subcommands:
  show  - Details of one execution
  list  - Executions filtered by user, status and day

Examples:
  tradegate journal show 01HZX...
  tradegate journal list --user alice --status rejected
  tradegate journal list --day 2024-01-15`,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Show one execution",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List executions",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var (
	journalDBPath string
	journalUser   string
	journalStatus string
	journalDay    string
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalListCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal (defaults to journal.db_path)")
	journalListCmd.Flags().StringVarP(&journalUser, "user", "u", "", "only this user")
	journalListCmd.Flags().StringVar(&journalStatus, "status", "", "executed, rejected or failed")
	journalListCmd.Flags().StringVar(&journalDay, "day", "", "only this day (YYYY-MM-DD, risk timezone)")
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "n", 100, "maximum rows")
}

func openJournal() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		path = cfg.Journal.DBPath
	}
	if path == "" {
		return nil, fmt.Errorf("no journal database: pass --db or set journal.db_path")
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetExecution(args[0])
	if err != nil {
		return fmt.Errorf("get execution: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	price := "-"
	if rec.Price != nil {
		price = fmt.Sprintf("%g", *rec.Price)
	}
	t.AppendRows([]table.Row{
		{"ID", rec.ID},
		{"Signal", rec.SignalID},
		{"User", rec.UserID},
		{"Exchange", rec.Exchange},
		{"Order", fmt.Sprintf("%s %g %s (%s)", rec.Side, rec.Amount, rec.Symbol, rec.Type)},
		{"Price", price},
		{"Status", rec.Status},
		{"Reason", rec.Reason},
		{"Order ID", rec.OrderID},
		{"Filled", rec.Filled},
		{"Time", rec.Time.Format(time.RFC3339)},
	})
	t.Render()
	return nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	f := journal.Filter{
		UserID: journalUser,
		Status: journal.Status(journalStatus),
		Limit:  journalLimit,
	}
	if journalDay != "" {
		cal, err := cfg.Calendar()
		if err != nil {
			return err
		}
		start, err := time.ParseInLocation("2006-01-02", journalDay, cal.Location())
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
		f.Since, f.Until = start, start.AddDate(0, 0, 1)
	}

	recs, err := j.ListExecutions(f)
	if err != nil {
		return fmt.Errorf("query executions: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "User", "Symbol", "Side", "Amount", "Status", "Reason", "Order ID"})
	for _, r := range recs {
		t.AppendRow(table.Row{r.Time.Format(time.RFC3339), r.UserID, r.Symbol, r.Side, r.Amount, r.Status, r.Reason, r.OrderID})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", len(recs)})
	t.Render()
	return nil
}
