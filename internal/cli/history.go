package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/ppiankov/casecite/internal/pipeline"
	"github.com/ppiankov/casecite/internal/store"
	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List reports saved with --save",
	Long: `History lists previously saved reports, newest first.

Example:
  casecite history
  casecite history --limit 50
  casecite history show 3f1c9a52-...`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Print a saved report as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer s.Close()

		report, err := s.GetReport(context.Background(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no saved report with id %s", args[0])
		}
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), pipeline.Markdown(report))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of reports to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer s.Close()

	reports, err := s.ListReports(context.Background(), historyLimit)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	if len(reports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved reports. Use 'casecite check --save' to record one.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCHECKED\tCITATIONS\tVERIFIED\tHALLUCINATED\tSOURCE")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.CheckedAt.Format("2006-01-02 15:04"), r.Total, r.Verified, r.Hallucinated, r.Source)
	}
	return w.Flush()
}
