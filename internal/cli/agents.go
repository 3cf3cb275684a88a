package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fatimatofatima/hyper-factory/internal/registry"
	"github.com/fatimatofatima/hyper-factory/internal/results"
	"github.com/fatimatofatima/hyper-factory/internal/store"
)

var (
	initAgentsCmd = &cobra.Command{
		Use:   "init-agents",
		Short: "Load agents from a JSON catalog",
		Args:  cobra.NoArgs,
		RunE:  runInitAgents,
	}

	cloneAgentsCmd = &cobra.Command{
		Use:   "clone-agents [base-id count]",
		Short: "Create numbered copies of a base agent",
		Long: "Creates <base>_2 ... <base>_<count> from the base agent. With --defaults the\n" +
			"built-in plan (knowledge_spider:3, technical_coach:3, analyzer_basic:3, debug_expert:2) is used.\n" +
			"--integration also queues the high-priority integration_planner architecture tasks once.",
		RunE: runCloneAgents,
	}

	setAgentActiveCmd = &cobra.Command{
		Use:   "set-agent-active <agent-id> <true|false>",
		Short: "Enable or disable an agent as a dispatch target",
		Args:  cobra.ExactArgs(2),
		RunE:  runSetAgentActive,
	}

	showAgentsCmd = &cobra.Command{
		Use:   "show-agents [agent-id]",
		Short: "Show agents and their run counters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runShowAgents,
	}

	recomputeAgentsCmd = &cobra.Command{
		Use:   "recompute-agents",
		Short: "Rebuild every agent's counters from recorded outcomes",
		Args:  cobra.NoArgs,
		RunE:  runRecomputeAgents,
	}
)

func init() {
	initAgentsCmd.Flags().String("file", "", "Agent catalog JSON (default paths.agentsCatalog)")
	cloneAgentsCmd.Flags().Bool("defaults", false, "Apply the built-in clone plan")
	cloneAgentsCmd.Flags().Bool("integration", false, "Also seed the integration planning tasks")
	rootCmd.AddCommand(initAgentsCmd, cloneAgentsCmd, setAgentActiveCmd, showAgentsCmd, recomputeAgentsCmd)
}

func runInitAgents(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if strings.TrimSpace(path) == "" {
		path = cfg.Paths.AgentsCatalog
	}
	entries, err := registry.LoadCatalog(path)
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		res, err := a.registry.Import(cmd.Context(), entries)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s agents loaded from %s\n", okMark("✓"), path)
		fmt.Fprintf(w, "  created : %d\n  updated : %d\n  skipped : %d (no agent id)\n", res.Created, res.Updated, res.Skipped)
		return nil
	})
}

func runCloneAgents(cmd *cobra.Command, args []string) error {
	useDefaults, _ := cmd.Flags().GetBool("defaults")
	integration, _ := cmd.Flags().GetBool("integration")
	var plans []registry.ClonePlan
	switch {
	case useDefaults && len(args) == 0:
		plans = registry.DefaultClonePlan
	case !useDefaults && len(args) == 2:
		count, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("count %q: %w", args[1], err)
		}
		plans = []registry.ClonePlan{{Base: args[0], Count: count}}
	case integration && len(args) == 0:
	default:
		return fmt.Errorf("usage: clone-agents <base-id> <count> | clone-agents --defaults [--integration]")
	}

	return withApp(func(a *app) error {
		w := cmd.OutOrStdout()
		switch {
		case len(plans) == 0:
		case !useDefaults:
			res, err := a.registry.Clone(cmd.Context(), plans[0].Base, plans[0].Count)
			if err != nil {
				return err
			}
			printClone(cmd, res)
		default:
			all, err := a.registry.CloneAll(cmd.Context(), plans)
			if err != nil {
				return err
			}
			total := 0
			for _, res := range all {
				printClone(cmd, res)
				total += len(res.Created)
			}
			fmt.Fprintf(w, "cloned_agents_total: %d\n", total)
		}
		if integration {
			n, err := a.registry.SeedIntegrationTasks(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s integration_planner: created %d integration tasks\n", okMark("✓"), n)
		}
		return nil
	})
}

func printClone(cmd *cobra.Command, res registry.CloneResult) {
	w := cmd.OutOrStdout()
	if res.Missing {
		fmt.Fprintf(w, "%s base agent not found: %s\n", warnMark("!"), res.Base)
		return
	}
	fmt.Fprintf(w, "%s cloned %d agents from base=%s", okMark("✓"), len(res.Created), res.Base)
	if len(res.Existed) > 0 {
		fmt.Fprintf(w, " (already present: %s)", strings.Join(res.Existed, ", "))
	}
	fmt.Fprintln(w)
}

func runSetAgentActive(cmd *cobra.Command, args []string) error {
	active, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("active %q: want true or false", args[1])
	}
	return withApp(func(a *app) error {
		if err := a.registry.SetActive(cmd.Context(), args[0], active); err != nil {
			return err
		}
		state := okMark("active")
		if !active {
			state = warnMark("inactive")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "agent %s is now %s\n", args[0], state)
		return nil
	})
}

func runShowAgents(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		var agents []store.Agent
		if len(args) == 1 {
			ag, err := a.store.GetAgent(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("agent %s: %w", args[0], err)
			}
			agents = []store.Agent{*ag}
		} else {
			var err error
			if agents, err = a.store.ListAgents(cmd.Context()); err != nil {
				return err
			}
		}

		w := cmd.OutOrStdout()
		if len(agents) == 0 {
			fmt.Fprintln(w, "No agents registered. Run 'hfactory init-agents' first.")
			return nil
		}
		tw := newTable(w)
		fmt.Fprintln(tw, "ID\tNAME\tFAMILY\tROLE\tLEVEL\tRUNS\tOK\tFAILED\tSUCCESS\tACTIVE")
		for _, ag := range agents {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%t\n",
				ag.ID, ag.DisplayName, ag.Family, ag.Role, ag.Level,
				ag.TotalRuns, ag.SuccessRuns, ag.FailedRuns, pct(ag.SuccessRate), ag.Active)
		}
		return tw.Flush()
	})
}

func runRecomputeAgents(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		var res results.RecomputeResult
		_, err := a.runJob(cmd.Context(), jobRecompute, func(ctx context.Context) (string, error) {
			var err error
			res, err = a.results.RecomputeAgentStats(ctx)
			return recomputeSummary(res), err
		})
		if err != nil {
			return err
		}
		printRecompute(cmd, res)
		return nil
	})
}

func printRecompute(cmd *cobra.Command, res results.RecomputeResult) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s agent counters recomputed: %d agents, %d outcomes\n", okMark("✓"), res.Agents, res.Outcomes)
	if len(res.UnknownAgents) > 0 {
		fmt.Fprintf(w, "%s outcomes reference unknown agents: %s\n", warnMark("!"), strings.Join(res.UnknownAgents, ", "))
	}
}
