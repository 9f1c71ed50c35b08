// Package chaos runs experiments that stress the copy ledger and check that
// the catalog stays consistent while they run.
package chaos

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrSteadyStateInvalid is returned when an experiment would start from a
// state that already violates a probe.
var ErrSteadyStateInvalid = errors.New("steady state invalid, experiment aborted")

// Experiment defines one chaos test.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Probe
	// Method injects the load and reports what it observed.
	Method func(ctx context.Context) (map[string]float64, error)
	// Rollback undoes what Method changed. Optional.
	Rollback func(ctx context.Context) error
}

// Probe is a measurable system property with the range it must stay in.
type Probe struct {
	Name      string
	Query     func(ctx context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Holds reports whether value satisfies the threshold.
func (t Threshold) Holds(value float64) bool {
	switch t.Operator {
	case ">":
		return value > t.Value
	case "<":
		return value < t.Value
	case ">=":
		return value >= t.Value
	case "<=":
		return value <= t.Value
	case "==":
		return value == t.Value
	default:
		return false
	}
}

// Result captures one experiment run.
type Result struct {
	Experiment     string             `json:"experiment"`
	StartTime      time.Time          `json:"start_time"`
	EndTime        time.Time          `json:"end_time"`
	HypothesisHeld bool               `json:"hypothesis_held"`
	Observations   map[string]float64 `json:"observations"`
	Violations     []Violation        `json:"violations,omitempty"`
	Errors         []string           `json:"errors,omitempty"`
}

type Violation struct {
	Probe    string  `json:"probe"`
	Phase    string  `json:"phase"`
	Expected string  `json:"expected"`
	Actual   float64 `json:"actual"`
}

type Engine struct {
	tracer trace.Tracer
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		tracer: otel.Tracer("librarian/chaos"),
		logger: logger,
	}
}

// Run checks the steady state, runs the method, checks the steady state
// again, then rolls back. The hypothesis holds when no probe was violated
// after the method ran and nothing failed.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &Result{
		Experiment:   exp.Name,
		StartTime:    time.Now(),
		Observations: map[string]float64{},
	}

	span.AddEvent("validating_steady_state")
	if violations := e.probe(ctx, "before", exp.SteadyState); len(violations) > 0 {
		result.Violations = violations
		result.EndTime = time.Now()
		return result, ErrSteadyStateInvalid
	}

	span.AddEvent("injecting_chaos")
	e.logger.Info("experiment started", "experiment", exp.Name, "hypothesis", exp.Hypothesis)
	observed, err := exp.Method(ctx)
	if err != nil {
		span.RecordError(err)
		result.Errors = append(result.Errors, err.Error())
	}
	for k, v := range observed {
		result.Observations[k] = v
	}

	span.AddEvent("observing_system")
	result.Violations = append(result.Violations, e.probe(ctx, "after", exp.SteadyState)...)

	if exp.Rollback != nil {
		span.AddEvent("rolling_back")
		if err := exp.Rollback(ctx); err != nil {
			span.RecordError(err)
			result.Errors = append(result.Errors, "rollback: "+err.Error())
		}
	}

	result.HypothesisHeld = len(result.Violations) == 0 && len(result.Errors) == 0
	result.EndTime = time.Now()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	e.logger.Info("experiment finished", "experiment", exp.Name, "hypothesis_held", result.HypothesisHeld)

	return result, nil
}

func (e *Engine) probe(ctx context.Context, phase string, probes []Probe) []Violation {
	var violations []Violation
	for _, p := range probes {
		value, err := p.Query(ctx)
		if err != nil {
			e.logger.Warn("probe failed", "probe", p.Name, "error", err)
			value = -1
		}
		if err != nil || !p.Threshold.Holds(value) {
			violations = append(violations, Violation{
				Probe:    p.Name,
				Phase:    phase,
				Expected: p.Threshold.Operator + " " + formatValue(p.Threshold.Value),
				Actual:   value,
			})
		}
	}
	return violations
}
