package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show recent batch job runs",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

func init() {
	jobsCmd.Flags().String("job", "", "Only show runs of this job")
	jobsCmd.Flags().Int("limit", 20, "Maximum runs to show")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("job")
	limit, _ := cmd.Flags().GetInt("limit")
	return withApp(func(a *app) error {
		runs, err := a.store.ListJobRuns(cmd.Context(), name, limit)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(w, "No job runs recorded.")
			return nil
		}
		tw := newTable(w)
		fmt.Fprintln(tw, "RUN\tJOB\tSTATUS\tSTARTED\tDURATION\tSUMMARY")
		for _, r := range runs {
			dur := "-"
			if r.FinishedAt != nil {
				dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(r.RunID), r.JobName, r.Status, r.StartedAt.Format(time.RFC3339), dur, truncate(r.Summary, 60))
		}
		return tw.Flush()
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
