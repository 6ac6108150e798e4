package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		items, err := store.List(historyLimit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("no saved runs (use run --history)")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tURL\tREQS\tDROPPED\tP95 (ms)\tVERDICT")
		for _, it := range items {
			s := it.Summary
			verdict := "PASS"
			switch {
			case s.Aborted != nil:
				verdict = "ABORTED"
			case !s.Passed:
				verdict = "FAIL"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\t%s\n",
				it.ID, it.Timestamp.Local().Format(time.DateTime), s.URL, s.Requests, s.Dropped, s.Latency.P95, verdict)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one saved run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		item, err := store.Get(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(item)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove one saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Delete(args[0])
	},
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyPath, "db", "", "history database path (default ~/.steadyrate/history.db)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "how many runs to list (0 for all)")
	historyCmd.AddCommand(historyShowCmd, historyDeleteCmd)
}
