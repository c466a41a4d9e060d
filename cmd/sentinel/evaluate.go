package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"complyhq/sentinel/pkg/cli"
	"complyhq/sentinel/pkg/config"
	"complyhq/sentinel/pkg/rules"
	"complyhq/sentinel/pkg/rules/source"
	"complyhq/sentinel/pkg/telemetry/logging"
	"complyhq/sentinel/pkg/telemetry/tracing"
	"complyhq/sentinel/pkg/workflow"
)

var evaluateFlags struct {
	rulesPath        string
	dataPath         string
	tenant           string
	output           string
	actor            string
	save             bool
	createWorkflows  bool
	watch            bool
	failOnViolations bool
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate rules against a batch of records",
	Long: `Evaluate compliance rules against a batch of records and report violations.

Records are read from a JSON or YAML file holding an array of objects (or a
single object). Use "-" to read JSON from stdin.

Examples:
  # Print violations as a table
  sentinel evaluate --rules rules/ --data access.json

  # Save violations and open a workflow for each
  sentinel evaluate --data access.json --tenant acme --save --create-workflows

  # Re-evaluate whenever the rule files change
  sentinel evaluate --data access.json --watch

  # Fail a CI job when violations are found
  sentinel evaluate --data access.json --fail-on-violations --output json`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	f := evaluateCmd.Flags()
	f.StringVarP(&evaluateFlags.rulesPath, "rules", "r", "", "rule file or directory (defaults to rules.path)")
	f.StringVarP(&evaluateFlags.dataPath, "data", "d", "", "records file (JSON or YAML), - for stdin")
	f.StringVarP(&evaluateFlags.tenant, "tenant", "t", "default", "tenant the records belong to")
	f.StringVarP(&evaluateFlags.output, "output", "o", "text", "output format: text, json, csv")
	f.StringVar(&evaluateFlags.actor, "actor", "sentinel", "creator recorded on new workflows")
	f.BoolVar(&evaluateFlags.save, "save", false, "persist violations to the violation store")
	f.BoolVar(&evaluateFlags.createWorkflows, "create-workflows", false, "open a workflow for each saved violation")
	f.BoolVar(&evaluateFlags.watch, "watch", false, "re-evaluate when rule files change")
	f.BoolVar(&evaluateFlags.failOnViolations, "fail-on-violations", false, "exit with status 3 when violations are found")
	_ = evaluateCmd.MarkFlagRequired("data")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(evaluateFlags.output)
	if err != nil {
		return err
	}
	if evaluateFlags.createWorkflows && !evaluateFlags.save {
		return cli.NewConfigError("create-workflows", "requires --save")
	}

	rulesPath := evaluateFlags.rulesPath
	if rulesPath == "" {
		rulesPath = cfg.Rules.Path
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()
	ctx = logging.WithCommand(logging.WithTenant(ctx, evaluateFlags.tenant), "evaluate")

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	defer tracer.Shutdown(context.Background())

	records, err := loadRecords(evaluateFlags.dataPath, cmd.InOrStdin())
	if err != nil {
		return cli.NewConfigError("data", err.Error())
	}

	src := source.NewFileSource(rulesPath, logger).WithStrict(cfg.Rules.Strict)
	ruleSet, err := src.LoadRules(ctx)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	evaluator, err := rules.NewEvaluator(&rules.Config{
		MaxParallelRules: cfg.Evaluation.MaxParallelRules,
		Logger:           logger,
	})
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	comps := newComponents(cfg, logger, nil)
	defer comps.Close()

	run := &evaluation{
		comps:     comps,
		evaluator: evaluator,
		tracer:    tracer,
		source:    evaluateFlags.dataPath,
		tenant:    evaluateFlags.tenant,
		actor:     evaluateFlags.actor,
		save:      evaluateFlags.save,
		workflows: evaluateFlags.createWorkflows,
		progress:  cli.NopProgress{},
		logger:    logger,
	}
	if evaluateFlags.save && format == cli.FormatText {
		run.progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "saving violations")
	}

	report, err := run.evaluate(ctx, records, ruleSet)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report.output(format)); err != nil {
		return err
	}

	if evaluateFlags.watch {
		return watchRules(ctx, cmd.OutOrStdout(), cfg, src, run, records, format, logger)
	}

	if evaluateFlags.failOnViolations && len(report.Violations) > 0 {
		return &cli.ExitError{
			Code:   cli.ExitViolations,
			Reason: fmt.Sprintf("%d violations found", len(report.Violations)),
		}
	}
	return nil
}

func watchRules(ctx context.Context, out io.Writer, cfg *config.Config, src *source.FileSource, run *evaluation, records []rules.Record, format cli.OutputFormat, logger *slog.Logger) error {
	watcher := source.NewWatcher(src, cfg.Rules.WatchDebounce, logger)
	return watcher.Watch(ctx, func(ruleSet []*rules.Rule) {
		report, err := run.evaluate(ctx, records, ruleSet)
		if err != nil {
			logger.Error("re-evaluation failed", "error", err)
			return
		}
		if err := cli.NewFormatter(format).FormatTo(out, report.output(format)); err != nil {
			logger.Error("failed to write report", "error", err)
		}
	})
}

// evaluation runs rules over records and optionally persists the results.
type evaluation struct {
	comps     *components
	evaluator *rules.Evaluator
	tracer    *tracing.Tracer
	source    string
	tenant    string
	actor     string
	save      bool
	workflows bool
	progress  cli.ProgressReporter
	logger    *slog.Logger
}

// evaluationReport is the result printed by `sentinel evaluate`.
type evaluationReport struct {
	Source     string             `json:"source"`
	Tenant     string             `json:"tenant"`
	Records    int                `json:"records"`
	Rules      int                `json:"rules"`
	Violations []*rules.Violation `json:"violations"`
	Workflows  map[string]string  `json:"workflows,omitempty"`
	Duration   time.Duration      `json:"durationNs"`
}

func (e *evaluation) evaluate(ctx context.Context, records []rules.Record, ruleSet []*rules.Rule) (*evaluationReport, error) {
	ctx, span := e.tracer.Start(ctx, "sentinel.evaluate")
	defer span.End()

	start := time.Now()
	found := e.evaluator.Evaluate(ctx, records, ruleSet)
	for _, v := range found {
		v.TenantID = e.tenant
	}
	tracing.SetEvaluationAttributes(span, e.source, len(records), len(ruleSet), len(found))

	report := &evaluationReport{
		Source:     e.source,
		Tenant:     e.tenant,
		Records:    len(records),
		Rules:      len(ruleSet),
		Violations: found,
	}
	if report.Violations == nil {
		report.Violations = []*rules.Violation{}
	}

	if e.save && len(found) > 0 {
		workflows, err := e.persist(ctx, found)
		tracing.SetStatus(span, err)
		if err != nil {
			return nil, err
		}
		report.Workflows = workflows
	}

	report.Duration = time.Since(start)
	e.logger.InfoContext(ctx, "evaluation complete",
		"records", report.Records,
		"rules", report.Rules,
		"violations", len(found),
		"duration", report.Duration,
	)
	return report, nil
}

// persist saves each violation and opens its workflow. It returns violation id
// to workflow id.
func (e *evaluation) persist(ctx context.Context, found []*rules.Violation) (map[string]string, error) {
	repo, err := e.comps.openViolations()
	if err != nil {
		return nil, err
	}
	var engine *workflow.Engine
	if e.workflows {
		if engine, err = e.comps.buildEngine(ctx); err != nil {
			return nil, err
		}
	}

	e.progress.Start(int64(len(found)))
	workflows := make(map[string]string)
	for _, v := range found {
		if err := repo.Save(ctx, v); err != nil {
			e.progress.Error(err)
			return nil, fmt.Errorf("save violation %s: %w", v.ID, err)
		}
		if engine != nil {
			wf, err := engine.CreateWorkflow(logging.WithViolationID(ctx, v.ID), newWorkflowInput(v, e.actor))
			if err != nil {
				e.progress.Error(err)
				return nil, fmt.Errorf("create workflow for %s: %w", v.ID, err)
			}
			workflows[v.ID] = wf.ID
		}
		e.progress.Increment()
	}
	e.progress.Finish()
	return workflows, nil
}

// newWorkflowInput builds the workflow request for a violation. The approval
// chain follows from the priority derived from the rule's risk level.
func newWorkflowInput(v *rules.Violation, actor string) workflow.CreateWorkflowInput {
	priority := priorityForRisk(v.Risk.Level)
	return workflow.CreateWorkflowInput{
		ViolationID:     v.ID,
		TenantID:        v.TenantID,
		Type:            workflow.TypeRemediation,
		Priority:        priority,
		CreatedBy:       actor,
		ApprovalChainID: workflow.ChainForPriority(priority),
		Metadata: map[string]any{
			"ruleId":    v.RuleID,
			"ruleName":  v.RuleName,
			"riskScore": v.Risk.Score,
		},
	}
}

func priorityForRisk(level rules.RiskLevel) workflow.Priority {
	switch level {
	case rules.RiskCritical:
		return workflow.PriorityCritical
	case rules.RiskHigh:
		return workflow.PriorityHigh
	case rules.RiskLow:
		return workflow.PriorityLow
	default:
		return workflow.PriorityMedium
	}
}

// loadRecords reads a batch from a JSON or YAML file, or JSON from stdin when
// path is "-".
func loadRecords(path string, stdin io.Reader) ([]rules.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	var decoded any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &decoded)
	default:
		err = json.Unmarshal(data, &decoded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}

	switch decoded.(type) {
	case []any, map[string]any, nil:
	default:
		return nil, fmt.Errorf("records must be an object or an array of objects, got %T", decoded)
	}
	return rules.AsBatch(decoded), nil
}

func (r *evaluationReport) output(format cli.OutputFormat) any {
	if format == cli.FormatJSON {
		return r
	}
	return violationTable{violations: r.Violations, workflows: r.Workflows}
}

// violationTable prints violations as rows.
type violationTable struct {
	violations []*rules.Violation
	workflows  map[string]string
}

func (t violationTable) Header() []string {
	return []string{"ID", "TENANT", "RULE", "RISK", "SCORE", "STATUS", "DETECTED", "WORKFLOW"}
}

func (t violationTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.violations))
	for _, v := range t.violations {
		rows = append(rows, []string{
			v.ID,
			v.TenantID,
			v.RuleID,
			string(v.Risk.Level),
			strconv.Itoa(v.Risk.Score),
			string(v.Status),
			v.Timestamp.UTC().Format(time.RFC3339),
			t.workflows[v.ID],
		})
	}
	return rows
}
