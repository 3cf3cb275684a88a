package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fatimatofatima/hyper-factory/internal/daily"
)

var (
	dailyCmd = &cobra.Command{
		Use:   "daily",
		Short: "Daily quality rollup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	dailyRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Build the daily report and training tasks",
		Args:  cobra.NoArgs,
		RunE:  runDaily,
	}
)

func init() {
	dailyRunCmd.Flags().String("day", "", "Day to roll up as YYYY-MM-DD (default today, UTC)")
	dailyCmd.AddCommand(dailyRunCmd)
	rootCmd.AddCommand(dailyCmd)
}

func runDaily(cmd *cobra.Command, args []string) error {
	day, _ := cmd.Flags().GetString("day")
	return withApp(func(a *app) error {
		var res daily.Result
		_, err := a.runJob(cmd.Context(), jobDaily, func(ctx context.Context) (string, error) {
			var err error
			res, err = a.daily.Run(ctx, day)
			return dailySummary(res), err
		})
		if err != nil {
			return err
		}
		printDaily(cmd, res)
		return nil
	})
}

func printDaily(cmd *cobra.Command, res daily.Result) {
	w := cmd.OutOrStdout()
	r := res.Report
	printHeader(w, "Daily Knowledge & Quality Summary")
	fmt.Fprintf(w, "  day           : %s\n", r.Day)
	fmt.Fprintf(w, "  total_tasks   : %d\n", r.TotalTasks)
	fmt.Fprintf(w, "  done          : %d\n", r.TasksDone)
	fmt.Fprintf(w, "  failed        : %d\n", r.TasksFailed)
	fmt.Fprintf(w, "  assigned      : %d\n", r.TasksAssigned)
	fmt.Fprintf(w, "  queued        : %d\n", r.TasksQueued)
	fmt.Fprintf(w, "  total_agents  : %d\n", r.TotalAgents)
	fmt.Fprintf(w, "  avg_success   : %.3f\n", r.AvgSuccessRate)
	if r.TopAgentID != "" {
		fmt.Fprintf(w, "  top_agent     : %s (success_rate=%.3f)\n", r.TopAgentID, r.TopAgentSuccessRate)
	} else {
		fmt.Fprintln(w, "  top_agent     : N/A")
	}
	fmt.Fprintf(w, "  training_new  : %d\n", len(res.Created))
	if res.Deduped > 0 {
		fmt.Fprintf(w, "  deduped       : %d\n", res.Deduped)
	}
	if res.Capped > 0 {
		fmt.Fprintf(w, "%s %d failure groups over the daily training cap of %d\n",
			warnMark("!"), res.Capped, daily.MaxTrainingTasks)
	}
	for _, t := range res.Created {
		fmt.Fprintf(w, "  - #%d %s\n", t.ID, t.Description)
	}
	fmt.Fprintf(w, "  notes         : %s\n", r.Notes)
}
