// Package chaos runs experiments that attack the rental engine and check
// that inventory and rental state stay consistent.
package chaos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Experiment defines a chaos engineering test.
type Experiment struct {
	Name       string
	Hypothesis string
	// SteadyState must hold before Method runs; it is sampled again during
	// observation.
	SteadyState []Metric
	// Observe is sampled during observation only.
	Observe    []Metric
	Method     []Action
	Rollback   []Action
	Validation []Assertion
	// Duration bounds the observation window. Zero takes a single sample.
	Duration    time.Duration
	SampleEvery time.Duration
}

// Metric is a measurable system property.
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

func (t Threshold) Holds(v float64) bool {
	switch t.Operator {
	case ">":
		return v > t.Value
	case "<":
		return v < t.Value
	case ">=":
		return v >= t.Value
	case "<=":
		return v <= t.Value
	case "==":
		return v == t.Value
	case "":
		return true
	default:
		return false
	}
}

// Action is a fault injection, load or recovery step.
type Action struct {
	Type    string
	Target  string
	Execute func(context.Context) error
}

// Assertion checks the last observed value of Metric.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

type Result struct {
	ExperimentName   string                 `json:"experiment_name"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []MetricViolation      `json:"violations"`
	FailedAssertions []string               `json:"failed_assertions"`
	Observations     map[string][]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent           `json:"error_events"`
	MTTR             *time.Duration         `json:"mttr,omitempty"`
}

// Last returns the final observed value of metric.
func (r *Result) Last(metric string) (float64, bool) {
	points := r.Observations[metric]
	if len(points) == 0 {
		return 0, false
	}
	return points[len(points)-1].Value, true
}

type MetricViolation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

var ErrSteadyStateInvalid = errors.New("steady state invalid, aborting experiment")

// Engine orchestrates experiments.
type Engine struct {
	tracer trace.Tracer
	logger *slog.Logger

	mu          sync.Mutex
	experiments []Experiment
	results     []Result
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tracer: otel.Tracer("movierental/chaos"),
		logger: logger.With("component", "chaos"),
	}
}

func (e *Engine) Register(exps ...Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exps...)
}

func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// Run executes one experiment: steady state, method, observation,
// rollback, assertions. Rollback runs even when observation is cut short.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
		ErrorEvents:    make([]ErrorEvent, 0),
	}

	span.AddEvent("validating_steady_state")
	if violations := e.steadyState(ctx, exp.SteadyState); len(violations) > 0 {
		result.Violations = violations
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_chaos")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.recordError(action.Target, err)
			span.RecordError(err)
		}
	}

	span.AddEvent("observing_system")
	e.observe(ctx, exp, result)

	span.AddEvent("rolling_back")
	for _, action := range exp.Rollback {
		if err := action.Execute(context.WithoutCancel(ctx)); err != nil {
			result.recordError(action.Target, err)
			span.RecordError(err)
		}
	}

	span.AddEvent("validating_assertions")
	result.FailedAssertions = checkAssertions(exp.Validation, result)
	result.HypothesisHeld = len(result.FailedAssertions) == 0
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	e.logger.InfoContext(ctx, "experiment finished",
		"experiment", exp.Name, "hypothesis_held", result.HypothesisHeld,
		"violations", len(result.Violations), "errors", len(result.ErrorEvents))
	return result, nil
}

func (e *Engine) steadyState(ctx context.Context, metrics []Metric) []MetricViolation {
	var violations []MetricViolation
	for _, m := range metrics {
		v, err := m.Query(ctx)
		if err != nil {
			e.logger.WarnContext(ctx, "steady state query failed", "metric", m.Name, "error", err)
			v = -1
		}
		if err != nil || !m.Threshold.Holds(v) {
			violations = append(violations, MetricViolation{
				MetricName: m.Name,
				Expected:   m.Threshold.Value,
				Actual:     v,
				Timestamp:  time.Now(),
			})
		}
	}
	return violations
}

func (e *Engine) observe(ctx context.Context, exp Experiment, result *Result) {
	metrics := append(append([]Metric(nil), exp.SteadyState...), exp.Observe...)
	var recoveryStart time.Time
	recovered := false

	sample := func() {
		for _, m := range metrics {
			v, err := m.Query(ctx)
			if err != nil {
				result.recordError(m.Name, err)
				continue
			}
			now := time.Now()
			result.Observations[m.Name] = append(result.Observations[m.Name], DataPoint{Timestamp: now, Value: v})

			switch {
			case !m.Threshold.Holds(v):
				if recoveryStart.IsZero() {
					recoveryStart = now
				}
				result.Violations = append(result.Violations, MetricViolation{
					MetricName: m.Name,
					Expected:   m.Threshold.Value,
					Actual:     v,
					Timestamp:  now,
				})
			case !recoveryStart.IsZero() && !recovered:
				mttr := now.Sub(recoveryStart)
				result.MTTR = &mttr
				recovered = true
			}
		}
	}

	sample()
	if exp.Duration <= 0 {
		return
	}
	every := exp.SampleEvery
	if every <= 0 {
		every = time.Second
	}
	window, cancel := context.WithTimeout(ctx, exp.Duration)
	defer cancel()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-window.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}

func checkAssertions(assertions []Assertion, result *Result) []string {
	var failed []string
	for _, a := range assertions {
		v, ok := result.Last(a.Metric)
		if !ok {
			failed = append(failed, fmt.Sprintf("%s: no observations", a.Metric))
			continue
		}
		if !a.Condition(v) {
			failed = append(failed, fmt.Sprintf("%s: %s (got %v)", a.Metric, a.Message, v))
		}
	}
	return failed
}

func (r *Result) recordError(component string, err error) {
	r.ErrorEvents = append(r.ErrorEvents, ErrorEvent{
		Timestamp: time.Now(),
		Error:     err.Error(),
		Component: component,
	})
}

// GameDay is a series of experiments run back to back.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []Experiment
	// Pause waits between experiments.
	Pause time.Duration
}

// RunGameDay runs every scenario and prints a report to w. It fails when
// any hypothesis was violated or any experiment could not run.
func (e *Engine) RunGameDay(ctx context.Context, gd GameDay, w io.Writer) ([]*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("gameday.name", gd.Name)),
	)
	defer span.End()

	fmt.Fprintf(w, "🎮 Starting Game Day: %s\n", gd.Name)
	fmt.Fprintf(w, "📅 Date: %s\n", gd.Date.Format(time.RFC3339))

	var (
		results []*Result
		failed  int
	)
	for i, scenario := range gd.Scenarios {
		if i > 0 && gd.Pause > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(gd.Pause):
			}
		}

		fmt.Fprintf(w, "\n🔬 Experiment %d/%d: %s\n", i+1, len(gd.Scenarios), scenario.Name)
		fmt.Fprintf(w, "💡 Hypothesis: %s\n", scenario.Hypothesis)

		result, err := e.Run(ctx, scenario)
		results = append(results, result)
		if err != nil {
			failed++
			fmt.Fprintf(w, "❌ Experiment failed: %v\n", err)
			continue
		}
		if !result.HypothesisHeld {
			failed++
		}
		printResult(w, result)
	}

	span.SetAttributes(attribute.Int("gameday.failed", failed))
	if failed > 0 {
		return results, fmt.Errorf("%d of %d experiments failed", failed, len(gd.Scenarios))
	}
	return results, nil
}

func printResult(w io.Writer, r *Result) {
	if r.HypothesisHeld {
		fmt.Fprintln(w, "✅ Hypothesis held")
	} else {
		fmt.Fprintln(w, "❌ Hypothesis violated")
		for _, f := range r.FailedAssertions {
			fmt.Fprintf(w, "   - %s\n", f)
		}
	}

	if len(r.Violations) > 0 {
		fmt.Fprintf(w, "⚠️  Violations detected: %d\n", len(r.Violations))
		for _, v := range r.Violations {
			fmt.Fprintf(w, "   - %s: expected %.2f, got %.2f\n", v.MetricName, v.Expected, v.Actual)
		}
	}
	for _, ev := range r.ErrorEvents {
		fmt.Fprintf(w, "   ! %s: %s\n", ev.Component, ev.Error)
	}
	if r.MTTR != nil {
		fmt.Fprintf(w, "⏱️  MTTR: %s\n", *r.MTTR)
	}
	fmt.Fprintf(w, "📊 Duration: %s\n", r.Duration)
}
