package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"complyhq/sentinel/pkg/cli"
	"complyhq/sentinel/pkg/telemetry/logging"
	"complyhq/sentinel/pkg/workflow"
)

var workflowFlags struct {
	output  string
	actor   string
	tenant  string
	comment string
}

var workflowCmd = &cobra.Command{
	Use:     "workflow",
	Aliases: []string{"wf"},
	Short:   "Inspect and drive remediation workflows",
}

var workflowShowCmd = &cobra.Command{
	Use:   "show <workflow-id>",
	Short: "Show a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, engine *workflow.Engine, format cli.OutputFormat) (any, error) {
			wf, err := engine.GetWorkflow(ctx, args[0])
			if err != nil {
				return nil, err
			}
			if format == cli.FormatJSON {
				return wf, nil
			}
			return stepTable{wf}, nil
		})
	},
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the workflows of a tenant",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, engine *workflow.Engine, format cli.OutputFormat) (any, error) {
			wfs, err := engine.ListWorkflows(ctx, workflowFlags.tenant)
			if err != nil {
				return nil, err
			}
			if format == cli.FormatJSON {
				return nonNil(wfs), nil
			}
			return workflowTable(wfs), nil
		})
	},
}

var workflowTransitionCmd = &cobra.Command{
	Use:   "transition <workflow-id> <action>",
	Short: "Apply an action to a workflow",
	Long: `Apply an action to a workflow.

Actions: submit, approve, reject, escalate, resolve, cancel, reopen.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireActor(); err != nil {
			return err
		}
		action, err := workflow.ParseAction(args[1])
		if err != nil {
			return cli.NewConfigError("action", err.Error())
		}
		return withEngine(cmd, func(ctx context.Context, engine *workflow.Engine, format cli.OutputFormat) (any, error) {
			wf, err := engine.Transition(ctx, workflow.TransitionInput{
				WorkflowID:  args[0],
				Action:      action,
				PerformedBy: workflowFlags.actor,
				Comment:     workflowFlags.comment,
			})
			if err != nil {
				return nil, err
			}
			return workflowResult(wf, format), nil
		})
	},
}

var workflowAssignCmd = &cobra.Command{
	Use:   "assign <workflow-id> <assignee>",
	Short: "Assign the current step of a workflow",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireActor(); err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, engine *workflow.Engine, format cli.OutputFormat) (any, error) {
			wf, err := engine.Assign(ctx, args[0], args[1], workflowFlags.actor)
			if err != nil {
				return nil, err
			}
			return workflowResult(wf, format), nil
		})
	},
}

var workflowCommentCmd = &cobra.Command{
	Use:   "comment <workflow-id> <text>",
	Short: "Add a comment to a workflow",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireActor(); err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, engine *workflow.Engine, format cli.OutputFormat) (any, error) {
			wf, err := engine.AddComment(ctx, args[0], args[1], workflowFlags.actor)
			if err != nil {
				return nil, err
			}
			return workflowResult(wf, format), nil
		})
	},
}

var workflowHistoryCmd = &cobra.Command{
	Use:   "history <workflow-id>",
	Short: "Show the transition history of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, engine *workflow.Engine, format cli.OutputFormat) (any, error) {
			history, err := engine.GetTransitionHistory(ctx, args[0])
			if err != nil {
				return nil, err
			}
			if format == cli.FormatJSON {
				return nonNil(history), nil
			}
			return transitionTable(history), nil
		})
	},
}

func init() {
	rootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(
		workflowShowCmd,
		workflowListCmd,
		workflowTransitionCmd,
		workflowAssignCmd,
		workflowCommentCmd,
		workflowHistoryCmd,
	)

	pf := workflowCmd.PersistentFlags()
	pf.StringVarP(&workflowFlags.output, "output", "o", "text", "output format: text, json, csv")
	pf.StringVar(&workflowFlags.actor, "actor", "", "user performing the operation")

	workflowListCmd.Flags().StringVarP(&workflowFlags.tenant, "tenant", "t", "default", "tenant to list")
	workflowTransitionCmd.Flags().StringVarP(&workflowFlags.comment, "comment", "m", "", "comment recorded on the transition")
}

// withEngine opens the configured backends, runs fn and prints its result.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, engine *workflow.Engine, format cli.OutputFormat) (any, error)) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(workflowFlags.output)
	if err != nil {
		return err
	}

	comps := newComponents(cfg, logger, nil)
	defer comps.Close()

	ctx := logging.WithCommand(cmd.Context(), "workflow "+cmd.Name())
	if workflowFlags.actor != "" {
		ctx = logging.WithActor(ctx, workflowFlags.actor)
	}
	events, _ := comps.tapEvents(eventTapBuffer)
	engine, err := comps.buildEngine(ctx)
	if err != nil {
		return cli.NewCommandError("workflow", err)
	}

	result, err := fn(ctx, engine, format)
	if err != nil {
		return cli.NewCommandError("workflow "+cmd.Name(), err)
	}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	printNotifications(cmd.ErrOrStderr(), events)
	return nil
}

const eventTapBuffer = 64

// printNotifications reports the notifications dispatched by the command.
// Only events already published are read.
func printNotifications(w io.Writer, events <-chan workflow.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != workflow.EventNotification || ev.Notification == nil {
				continue
			}
			n := ev.Notification
			fmt.Fprintf(w, "notified %s: %s via %s\n",
				n.Event, strings.Join(n.Recipients, ", "), strings.Join(n.Channels, ", "))
		default:
			return
		}
	}
}

func requireActor() error {
	if workflowFlags.actor == "" {
		return cli.NewConfigError("actor", "--actor is required")
	}
	return nil
}

func workflowResult(wf *workflow.Workflow, format cli.OutputFormat) any {
	if format == cli.FormatJSON {
		return wf
	}
	return workflowTable{wf}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

type workflowTable []*workflow.Workflow

func (t workflowTable) Header() []string {
	return []string{"ID", "VIOLATION", "TYPE", "STATUS", "PRIORITY", "STEP", "ASSIGNED", "DUE"}
}

func (t workflowTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, wf := range t {
		step, assigned := "", ""
		if s := wf.CurrentStep(); s != nil {
			step = s.Name
			assigned = s.AssignedTo
			if assigned == "" {
				assigned = s.AssignedRole
			}
		}
		rows = append(rows, []string{
			wf.ID,
			wf.ViolationID,
			string(wf.Type),
			string(wf.Status),
			string(wf.Priority),
			step,
			assigned,
			formatTime(wf.DueDate),
		})
	}
	return rows
}

// stepTable prints the steps of one workflow.
type stepTable struct {
	wf *workflow.Workflow
}

func (t stepTable) Header() []string {
	return []string{"LEVEL", "STEP", "STATUS", "ASSIGNED", "APPROVALS", "DUE", "ESCALATED"}
}

func (t stepTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.wf.Steps))
	for i, s := range t.wf.Steps {
		name := s.Name
		if i == t.wf.CurrentStepIndex && t.wf.CurrentStep() != nil {
			name = "* " + name
		}
		assigned := s.AssignedTo
		if assigned == "" {
			assigned = s.AssignedRole
		}
		rows = append(rows, []string{
			strconv.Itoa(s.Level),
			name,
			string(s.Status),
			assigned,
			strconv.Itoa(s.CurrentApprovers) + "/" + strconv.Itoa(s.RequiredApprovers),
			formatTime(s.DueDate),
			formatTime(s.EscalatedAt),
		})
	}
	return rows
}

type transitionTable []*workflow.Transition

func (t transitionTable) Header() []string {
	return []string{"WHEN", "ACTION", "FROM", "TO", "BY", "COMMENT"}
}

func (t transitionTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, tr := range t {
		rows = append(rows, []string{
			tr.PerformedAt.UTC().Format(time.RFC3339),
			string(tr.Action),
			string(tr.FromStatus),
			string(tr.ToStatus),
			tr.PerformedBy,
			tr.Comment,
		})
	}
	return rows
}
