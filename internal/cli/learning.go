package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fatimatofatima/hyper-factory/internal/learning"
)

var (
	learningCmd = &cobra.Command{
		Use:   "learning",
		Short: "Learning engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	learningApplyCmd = &cobra.Command{
		Use:   "apply",
		Short: "Fold recorded outcomes into agent counters and skill levels",
		Args:  cobra.NoArgs,
		RunE:  runLearningApply,
	}

	showSkillsCmd = &cobra.Command{
		Use:   "show-skills [user-id]",
		Short: "Show the skills catalog and recorded skill levels",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runShowSkills,
	}
)

func init() {
	learningCmd.AddCommand(learningApplyCmd)
	rootCmd.AddCommand(learningCmd, showSkillsCmd)
}

func runLearningApply(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		var res learning.Result
		_, err := a.runJob(cmd.Context(), jobLearning, func(ctx context.Context) (string, error) {
			var err error
			res, err = a.learning.Apply(ctx)
			return learningSummary(res), err
		})
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if res.Processed == 0 && res.Skipped == 0 {
			fmt.Fprintln(w, "No new outcomes to learn from.")
			return nil
		}
		fmt.Fprintf(w, "%s learning applied (run %s)\n", okMark("✓"), res.RunID)
		fmt.Fprintf(w, "  processed      : %d\n  agents_updated : %d\n  skills_updated : %d\n",
			res.Processed, res.AgentsUpdated, res.SkillsUpdated)
		if res.Unmapped > 0 {
			fmt.Fprintf(w, "  no_skill       : %d\n", res.Unmapped)
		}
		if res.MissingAgents > 0 {
			fmt.Fprintf(w, "%s %d outcomes reference missing agents (counters unchanged)\n", warnMark("!"), res.MissingAgents)
		}
		if res.Skipped > 0 {
			fmt.Fprintf(w, "  skipped        : %d (logged by a concurrent run)\n", res.Skipped)
		}
		return nil
	})
}

func runShowSkills(cmd *cobra.Command, args []string) error {
	user := ""
	if len(args) == 1 {
		user = args[0]
	}
	return withApp(func(a *app) error {
		skills, err := a.store.ListSkills(cmd.Context())
		if err != nil {
			return err
		}
		levels, err := a.store.ListSkillLevels(cmd.Context(), user)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		printHeader(w, "Skills")
		tw := newTable(w)
		fmt.Fprintln(tw, "ID\tNAME\tRANGE")
		for _, s := range skills {
			fmt.Fprintf(tw, "%s\t%s\t[%g, %g]\n", s.ID, s.Name, s.LevelMin, s.LevelMax)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(w)
		printHeader(w, "Levels")
		if len(levels) == 0 {
			fmt.Fprintln(w, "No skill levels recorded.")
			return nil
		}
		tw = newTable(w)
		fmt.Fprintln(tw, "USER\tSKILL\tLEVEL")
		for _, l := range levels {
			fmt.Fprintf(tw, "%s\t%s\t%g\n", l.UserID, l.SkillID, l.Level)
		}
		return tw.Flush()
	})
}
