package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type historyCommander struct {
	limit int
	full  bool
}

func newHistoryCmd(a *app) *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent results from the RESULTS_DB ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.run.ResultsDB == "" {
				return errors.New("RESULTS_DB is not set")
			}
			db, err := a.openLedger(cmd.Context())
			if err != nil {
				return err
			}

			records, err := db.List(cmd.Context(), cmder.limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tPRESET\tBACKEND\tMODEL\tATTEMPTS\tCOMPLETE\tOUTPUT")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\t%s\n",
					rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
					rec.Preset, rec.Backend, rec.ModelID, rec.Attempts, rec.Complete,
					cmder.preview(rec.Text))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 10, "Number of results to show")
	cmd.Flags().BoolVar(&cmder.full, "full", false, "Show full output instead of the first line")

	return cmd
}

func (c *historyCommander) preview(text string) string {
	if c.full {
		return strings.ReplaceAll(text, "\n", " / ")
	}
	line, _, _ := strings.Cut(text, "\n")
	if r := []rune(line); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return line
}
