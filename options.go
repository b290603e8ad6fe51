package sdk

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/lorekeep-ai/sdk/gate"
	"github.com/lorekeep-ai/sdk/llm"
	"github.com/lorekeep-ai/sdk/memory"
	"github.com/lorekeep-ai/sdk/mutation"
	"github.com/lorekeep-ai/sdk/orchestrator"
	"github.com/lorekeep-ai/sdk/persistence"
)

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineConfig)

// pipelineConfig holds construction-time configuration for a Pipeline.
type pipelineConfig struct {
	logger        *slog.Logger
	tracer        trace.Tracer
	meter         metric.Meter
	persist       persistence.Store
	sink          mutation.IntentSink
	detector      memory.ContradictionDetector
	rules         []gate.Rule
	sampling      []llm.CompletionOption
	tracker       llm.TokenTracker
	promptBuilder orchestrator.PromptBuilder
}

// WithLogger sets a custom logger for the pipeline. If not provided, a
// default JSON logger writing to stdout is created.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(c *pipelineConfig) { c.logger = logger }
}

// WithTracer sets the tracer used for per-attempt spans.
func WithTracer(tracer trace.Tracer) PipelineOption {
	return func(c *pipelineConfig) { c.tracer = tracer }
}

// WithMeter sets the meter used for mutation counters.
func WithMeter(meter metric.Meter) PipelineOption {
	return func(c *pipelineConfig) { c.meter = meter }
}

// WithPersistence attaches a save-record store, enabling Save and the
// NewPipelineFromSave constructor.
func WithPersistence(store persistence.Store) PipelineOption {
	return func(c *pipelineConfig) { c.persist = store }
}

// WithIntentSink receives world intents emitted by validated output.
func WithIntentSink(sink mutation.IntentSink) PipelineOption {
	return func(c *pipelineConfig) { c.sink = sink }
}

// WithContradictionDetector overrides the keyword-based belief/fact
// contradiction detector.
func WithContradictionDetector(d memory.ContradictionDetector) PipelineOption {
	return func(c *pipelineConfig) { c.detector = d }
}

// WithRules adds custom validation rules run as the gate's fifth stage.
func WithRules(rules ...gate.Rule) PipelineOption {
	return func(c *pipelineConfig) { c.rules = append(c.rules, rules...) }
}

// WithSampling sets completion options applied to every inference call.
func WithSampling(opts ...llm.CompletionOption) PipelineOption {
	return func(c *pipelineConfig) { c.sampling = append(c.sampling, opts...) }
}

// WithTokenTracker records per-persona token usage for every completion
// attempt the pipeline makes.
func WithTokenTracker(tracker llm.TokenTracker) PipelineOption {
	return func(c *pipelineConfig) { c.tracker = tracker }
}

// WithPromptBuilder overrides the default prompt assembly.
func WithPromptBuilder(b orchestrator.PromptBuilder) PipelineOption {
	return func(c *pipelineConfig) { c.promptBuilder = b }
}
