package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/realty-voice-platform/internal/observability/metrics"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

var runnerTracer = otel.Tracer("realty.internal.scenario.runner")

// DefaultTimeout bounds one scenario execution when none is configured.
const DefaultTimeout = 2 * time.Minute

// Session is one simulated conversation with the agent under test.
type Session interface {
	Respond(ctx context.Context, userInput string) (Observation, error)
}

// AgentFactory starts a fresh agent session wired to a scenario's mocks.
type AgentFactory interface {
	NewSession(ctx context.Context, sc *Scenario) (Session, error)
}

// Recorder persists run outcomes.
type Recorder interface {
	Record(ctx context.Context, result ScenarioRunResult, ranAt time.Time) error
}

// ReportSink receives the aggregate of every run-all.
type ReportSink interface {
	Publish(ctx context.Context, result RunAllResult) error
}

// Runner executes scenarios turn by turn and evaluates their checks.
type Runner struct {
	catalog Catalog
	agents  AgentFactory
	judge   IntentJudge
	history Recorder
	reports ReportSink
	metrics *metrics.ScenarioMetrics
	logger  *logging.Logger
	timeout time.Duration
	now     func() time.Time
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

func WithJudge(j IntentJudge) RunnerOption {
	return func(r *Runner) { r.judge = j }
}

func WithHistory(h Recorder) RunnerOption {
	return func(r *Runner) { r.history = h }
}

func WithReportSink(s ReportSink) RunnerOption {
	return func(r *Runner) { r.reports = s }
}

func WithRunnerMetrics(m *metrics.ScenarioMetrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithTimeout bounds each scenario; non-positive values keep the default.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRunner(catalog Catalog, agents AgentFactory, logger *logging.Logger, opts ...RunnerOption) *Runner {
	if catalog == nil || agents == nil {
		panic("scenario: runner requires a catalog and an agent factory")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Runner{
		catalog: catalog,
		agents:  agents,
		judge:   KeywordJudge{},
		logger:  logger,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the scenario at ref. A missing scenario is returned as an
// error; failures during execution are reported in the result's status.
func (r *Runner) Run(ctx context.Context, ref string) (ScenarioRunResult, error) {
	detail, err := r.catalog.Get(ctx, ref)
	if err != nil {
		return ScenarioRunResult{}, err
	}
	return r.Execute(ctx, &detail.Scenario), nil
}

// Execute runs sc. It never returns a partial status: turns completed before
// an abort are kept and the status is error.
func (r *Runner) Execute(ctx context.Context, sc *Scenario) ScenarioRunResult {
	start := r.now()
	result := ScenarioRunResult{
		Name:  sc.Name,
		RunID: uuid.NewString(),
		Turns: []TurnResult{},
	}

	ctx, span := runnerTracer.Start(ctx, "scenario.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("realty.scenario", sc.Name),
		attribute.Int("realty.turns", len(sc.Turns)),
	)

	execErr := r.execute(ctx, sc, &result)
	result.Status = StatusFor(result.Turns, execErr)
	if execErr != nil {
		result.Error = execErr.Error()
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
	}
	elapsed := r.now().Sub(start)
	result.DurationMS = elapsed.Milliseconds()
	span.SetAttributes(attribute.String("realty.status", result.Status))

	r.metrics.ObserveRun(result.Status, elapsed.Seconds())
	r.logger.Info("scenario run finished",
		"scenario", sc.Name,
		"run_id", result.RunID,
		"status", result.Status,
		"duration_ms", result.DurationMS,
	)
	if r.history != nil {
		if err := r.history.Record(context.WithoutCancel(ctx), result, start.UTC()); err != nil {
			r.logger.Warn("failed to record scenario run", "scenario", sc.Name, "error", err)
		}
	}
	return result
}

func (r *Runner) execute(ctx context.Context, sc *Scenario, result *ScenarioRunResult) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	session, err := r.agents.NewSession(ctx, sc)
	if err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	for i, turn := range sc.Turns {
		obs, err := session.Respond(ctx, turn.UserInput)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("turn %d: timed out after %s", i+1, r.timeout)
			}
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		checks := Evaluate(ctx, turn, obs, r.judge)
		for _, c := range checks {
			r.metrics.ObserveCheck(c.Type, c.Passed)
		}
		if checks == nil {
			checks = []TurnCheckResult{}
		}
		calls := obs.ToolCalls
		if calls == nil {
			calls = []ToolCall{}
		}
		result.Turns = append(result.Turns, TurnResult{
			Turn:          i + 1,
			UserInput:     turn.UserInput,
			AgentResponse: obs.Reply,
			ToolCalls:     calls,
			Checks:        checks,
		})
	}
	return nil
}

// RunAll executes every scenario in the catalog sequentially. One scenario's
// failure or error never stops the others.
func (r *Runner) RunAll(ctx context.Context) (RunAllResult, error) {
	start := r.now()
	summaries, err := r.catalog.List(ctx)
	if err != nil {
		return RunAllResult{}, err
	}

	results := make([]ScenarioRunResult, 0, len(summaries))
	for _, summary := range summaries {
		detail, err := r.catalog.Get(ctx, summary.FilePath)
		if err != nil {
			results = append(results, ScenarioRunResult{
				Name:   summary.Name,
				Status: StatusError,
				Error:  err.Error(),
				Turns:  []TurnResult{},
			})
			continue
		}
		results = append(results, r.Execute(ctx, &detail.Scenario))
	}

	out := Summarize(results, r.now().Sub(start))
	r.logger.Info("run-all finished",
		"total", out.Total,
		"passed", out.Passed,
		"failed", out.Failed,
		"errors", out.Errors,
		"duration_ms", out.DurationMS,
	)
	if r.reports != nil {
		if err := r.reports.Publish(context.WithoutCancel(ctx), out); err != nil {
			r.logger.Warn("failed to publish run-all report", "error", err)
		}
	}
	return out, nil
}
