package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fatimatofatima/hyper-factory/internal/dispatch"
	"github.com/fatimatofatima/hyper-factory/internal/factory"
)

var (
	newTaskCmd = &cobra.Command{
		Use:   "new-task <description> [low|normal|high]",
		Short: "Classify and enqueue a task",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runNewTask,
	}

	listQueueCmd = &cobra.Command{
		Use:   "list-queue",
		Short: "List queued tasks in dispatch order",
		Args:  cobra.NoArgs,
		RunE:  runListQueue,
	}

	assignNextCmd = &cobra.Command{
		Use:   "assign-next",
		Short: "Assign the next queued task to the best agent",
		Args:  cobra.NoArgs,
		RunE:  runAssignNext,
	}

	setResultCmd = &cobra.Command{
		Use:   "set-result <task-id> <success|fail> [notes...]",
		Short: "Record a task outcome and recompute agent counters",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runSetResult,
	}

	requeueStaleCmd = &cobra.Command{
		Use:   "requeue-stale",
		Short: "Return tasks with stale assignments to the queue",
		Args:  cobra.NoArgs,
		RunE:  runRequeueStale,
	}
)

func init() {
	newTaskCmd.Flags().String("source", dispatch.DefaultSource, "Task source tag")
	listQueueCmd.Flags().Int("limit", 0, "Maximum tasks to list (0 = all)")
	requeueStaleCmd.Flags().Duration("older-than", 0, "Assignment age threshold (default dispatch.staleAfter)")
	rootCmd.AddCommand(newTaskCmd, listQueueCmd, assignNextCmd, setResultCmd, requeueStaleCmd)
}

func runNewTask(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	req := dispatch.NewTask{Description: args[0], Source: source}
	if len(args) == 2 {
		req.Priority = args[1]
	}
	return withApp(func(a *app) error {
		res, err := a.dispatcher.Enqueue(cmd.Context(), req)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		t := res.Task
		fmt.Fprintf(w, "%s task created\n", okMark("✓"))
		fmt.Fprintf(w, "  id       : %d\n  type     : %s\n  priority : %s\n  desc     : %s\n",
			t.ID, t.TaskType, t.Priority, t.Description)
		if res.PriorityCoerced {
			fmt.Fprintf(w, "%s unknown priority %q, using %s\n", warnMark("!"), res.RequestedLabel, t.Priority)
		}
		return nil
	})
}

func runListQueue(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	return withApp(func(a *app) error {
		tasks, err := a.store.ListQueue(cmd.Context(), limit)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(tasks) == 0 {
			fmt.Fprintln(w, "No queued tasks.")
			return nil
		}
		fmt.Fprintf(w, "Queued tasks (%d):\n", len(tasks))
		for _, t := range tasks {
			fmt.Fprintf(w, "- #%d [%s/%s] @ %s: %s\n",
				t.ID, t.Priority, t.TaskType, t.CreatedAt.Format(time.RFC3339), truncate(t.Description, 80))
		}
		return nil
	})
}

func runAssignNext(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		dec, err := a.dispatcher.AssignNext(cmd.Context())
		w := cmd.OutOrStdout()
		if errors.Is(err, factory.ErrNoCapacity) {
			fmt.Fprintf(w, "%s no agents available; the task stays queued\n", warnMark("!"))
			return err
		}
		if err != nil {
			return err
		}
		if dec == nil {
			fmt.Fprintln(w, "No queued tasks to assign.")
			return nil
		}
		fmt.Fprintf(w, "%s task #%d assigned to %s\n", okMark("✓"), dec.Task.ID, bold(dec.Agent.ID))
		family := dec.Family
		if dec.Fallback {
			family += " (fallback)"
		}
		fmt.Fprintf(w, "  type     : %s\n  family   : %s\n  priority : %s\n", dec.Task.TaskType, family, dec.Task.Priority)
		fmt.Fprintf(w, "  reason   : %s\n", dec.Assignment.DecisionReason)
		fmt.Fprintf(w, "  runner   : %s\n", dec.Runner())
		return nil
	})
}

func runSetResult(cmd *cobra.Command, args []string) error {
	taskID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("task id %q: %w", args[0], factory.ErrInvalidInput)
	}
	notes := strings.Join(args[2:], " ")
	return withApp(func(a *app) error {
		rec, rr, err := a.results.Report(cmd.Context(), taskID, args[1], notes)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s task #%d is %s (assignment %d, agent %s)\n",
			okMark("✓"), rec.Task.ID, rec.Task.Status, rec.Assignment.ID, rec.Assignment.AgentID)
		printRecompute(cmd, rr)
		return nil
	})
}

func runRequeueStale(cmd *cobra.Command, args []string) error {
	olderThan, _ := cmd.Flags().GetDuration("older-than")
	if olderThan <= 0 {
		olderThan = cfg.Dispatch.StaleAfter
	}
	return withApp(func(a *app) error {
		var res dispatch.RequeueResult
		_, err := a.runJob(cmd.Context(), jobRequeue, func(ctx context.Context) (string, error) {
			var err error
			res, err = a.dispatcher.RequeueStale(ctx, olderThan)
			return requeueSummary(res), err
		})
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(res.TaskIDs) == 0 {
			fmt.Fprintf(w, "No assignments older than %s without an outcome.\n", olderThan)
			return nil
		}
		ids := make([]string, len(res.TaskIDs))
		for i, id := range res.TaskIDs {
			ids[i] = "#" + strconv.FormatInt(id, 10)
		}
		fmt.Fprintf(w, "%s requeued %d tasks: %s\n", okMark("✓"), len(ids), strings.Join(ids, ", "))
		return nil
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
