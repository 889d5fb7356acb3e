package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	v1 "github.com/kubev2v/workmanager/api/v1"
	"github.com/kubev2v/workmanager/internal/util"
	"github.com/kubev2v/workmanager/pkg/client"
)

func newClient(cmd *cobra.Command) (*client.Client, error) {
	u, err := cmd.Flags().GetString("url")
	if err != nil {
		return nil, err
	}
	return client.NewClient(u)
}

func newStatusCmd() *cobra.Command {
	var queue string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queues, or the items of one queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if queue != "" {
				works, err := c.ListQueueWorks(cmd.Context(), queue, "")
				if err != nil {
					return err
				}
				printWorks(cmd.OutOrStdout(), works, time.Now())
				return nil
			}
			queues, err := c.ListQueues(cmd.Context())
			if err != nil {
				return err
			}
			printQueues(cmd.OutOrStdout(), queues)
			return nil
		},
	}
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "list the items of this queue")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	var (
		id, category, priority, policy, params string
		afterCommit                            bool
	)
	cmd := &cobra.Command{
		Use:   "schedule KIND",
		Short: "Schedule work of a registered kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			req := v1.ScheduleWorkRequest{Kind: args[0]}
			if id != "" {
				req.Id = &id
			}
			if category != "" {
				req.Category = &category
			}
			if priority != "" {
				req.PriorityKey = &priority
			}
			if policy != "" {
				req.Policy = util.Ptr(v1.SchedulingPolicy(policy))
			}
			if afterCommit {
				req.AfterCommit = &afterCommit
			}
			if params != "" {
				p := map[string]any{}
				if err := json.Unmarshal([]byte(params), &p); err != nil {
					return fmt.Errorf("params must be a JSON object: %w", err)
				}
				req.Params = &p
			}

			work, err := c.ScheduleWork(cmd.Context(), req)
			if err != nil {
				return err
			}
			printWorks(cmd.OutOrStdout(), []v1.Work{*work}, time.Now())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&id, "id", "", "work id, generated when empty")
	flags.StringVar(&category, "category", "", "work category")
	flags.StringVar(&priority, "priority-key", "", "priority key")
	flags.StringVar(&policy, "policy", "", "scheduling policy")
	flags.StringVar(&params, "params", "", `kind parameters as JSON, e.g. '{"duration":"5s"}'`)
	flags.BoolVar(&afterCommit, "after-commit", false, "start the work only when the request transaction commits")
	return cmd
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a scheduled work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			work, err := c.CancelWork(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printWorks(cmd.OutOrStdout(), []v1.Work{*work}, time.Now())
			return nil
		},
	}
}

func newAwaitCmd() *cobra.Command {
	var (
		queue   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "await",
		Short: "Wait until a queue, or every queue, has no scheduled or running work",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			done, err := c.Await(cmd.Context(), queue, timeout)
			if err != nil {
				return err
			}
			if !done {
				return fmt.Errorf("work still pending after %s", timeout)
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("idle"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "queue to wait for, all queues when empty")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "maximum time to wait")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		queues, states, kinds, sorts []string
		page, pageSize               int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished work",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			query := url.Values{
				"queue": queues,
				"state": states,
				"kind":  kinds,
				"sort":  sorts,
			}
			query.Set("page", strconv.Itoa(page))
			query.Set("pageSize", strconv.Itoa(pageSize))

			resp, err := c.History(cmd.Context(), query)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&queues, "queue", nil, "filter by queue")
	flags.StringSliceVar(&states, "state", nil, "filter by state")
	flags.StringSliceVar(&kinds, "kind", nil, "filter by kind")
	flags.StringSliceVar(&sorts, "sort", nil, "sort as field:asc or field:desc")
	flags.IntVar(&page, "page", 1, "page number")
	flags.IntVar(&pageSize, "page-size", 20, "records per page")
	return cmd
}

func stateColor(s v1.WorkState) string {
	switch s {
	case v1.WorkStateRunning:
		return color.CyanString(string(s))
	case v1.WorkStateCompleted:
		return color.GreenString(string(s))
	case v1.WorkStateFailed:
		return color.RedString(string(s))
	case v1.WorkStateCanceled:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func onOff(b bool) string {
	if b {
		return color.GreenString("on")
	}
	return color.RedString("off")
}

func printQueues(w io.Writer, queues []v1.Queue) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUEUE\tWORKERS\tCAPACITY\tQUEUING\tPROCESSING\tSCHEDULED\tRUNNING\tCOMPLETED\tFAILED\tCANCELED")
	for _, q := range queues {
		capacity := "-"
		if q.Capacity > 0 {
			capacity = strconv.Itoa(q.Capacity)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			q.Id, q.MaxConcurrency, capacity, onOff(q.Queuing), onOff(q.Processing),
			q.Metrics.Scheduled, q.Metrics.Running, q.Metrics.Completed, q.Metrics.Failed, q.Metrics.Canceled)
	}
	_ = tw.Flush()
}

func printWorks(w io.Writer, works []v1.Work, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tCATEGORY\tSTATE\tPROGRESS\tAGE\tERROR")
	for _, wk := range works {
		progress := "?"
		if wk.Progress != nil {
			progress = fmt.Sprintf("%v%%", util.Round(*wk.Progress))
		}
		state := stateColor(wk.State)
		if wk.Suspended {
			state += " (suspended)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			wk.Id, util.Deref(wk.Kind, "-"), wk.Category, state, progress,
			util.Since(wk.SchedulingTime, now), util.Deref(wk.Error, ""))
	}
	_ = tw.Flush()
}

func printHistory(w io.Writer, resp *v1.HistoryResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUEUE\tKIND\tSTATE\tCOMPLETED\tDURATION\tERROR")
	for _, r := range resp.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Id, r.Queue, r.Kind, stateColor(r.State),
			r.CompletionTime.Local().Format(time.DateTime),
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
			util.Deref(r.Error, ""))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "page %d/%d, %d records\n", resp.Page, resp.PageCount, resp.Total)
}
