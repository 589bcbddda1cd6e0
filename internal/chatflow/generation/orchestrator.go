// Package generation turns an operator's free-text description into a
// validated chatflow schema: analyze, generate, then validate.
//
// The first two steps talk to a language model and never fail; any transport
// or parse problem is replaced by deterministic fallback data. Only the final
// validation step can fail the run.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/chatflow-backend/internal/chatflow/fields"
	"github.com/yungbote/chatflow-backend/internal/chatflow/schema"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

const (
	StepAnalyze  = "analyze"
	StepGenerate = "generate"
	StepValidate = "validate"

	UntitledName   = "Untitled Chatflow"
	GeneratingName = "Generating Chatflow..."

	mockAnalysisPrefix = "Mock analysis: "
)

// ErrNoLLM is reported as the step error when the orchestrator has no model configured.
var ErrNoLLM = errors.New("language model not configured")

// LLM is the slice of the model client the pipeline needs.
type LLM interface {
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

// Metrics receives pipeline observations. Nil is allowed.
type Metrics interface {
	ObserveFallback(step string)
}

// ServiceError is a recovered model failure. It is logged, never returned.
type ServiceError struct {
	Step string
	Err  error
}

func (e *ServiceError) Error() string { return e.Step + ": " + e.Err.Error() }
func (e *ServiceError) Unwrap() error { return e.Err }

type Analysis struct {
	SuggestedName string `json:"suggestedName"`
	Analysis      string `json:"analysis"`
}

type Result struct {
	Name             string
	Schema           schema.ChatflowSchema
	Analysis         string
	AnalyzeFallback  bool
	GenerateFallback bool
	Duration         time.Duration
}

type Orchestrator struct {
	llm     LLM
	log     *logger.Logger
	prompts Prompts
	metrics Metrics
}

func NewOrchestrator(llm LLM, log *logger.Logger, metrics Metrics) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		llm:     llm,
		log:     log.With("component", "GenerationOrchestrator"),
		prompts: LoadPrompts(log),
		metrics: metrics,
	}
}

// Run executes the pipeline for one description. It does not persist anything.
func (o *Orchestrator) Run(ctx context.Context, description string) (Result, error) {
	start := time.Now()
	description = strings.TrimSpace(description)

	analysis, analyzeFallback := o.Analyze(ctx, description)
	doc, generateFallback := o.Generate(ctx, description, analysis.Analysis)

	// A cancelled run must not persist fallback data in place of a real result.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	validated, err := schema.Validate(doc)
	if err != nil {
		o.log.Error("generated schema failed validation", "step", StepValidate, "error", err)
		return Result{}, fmt.Errorf("%s: %w", StepValidate, err)
	}

	name := strings.TrimSpace(analysis.SuggestedName)
	if name == "" {
		name = UntitledName
	}
	return Result{
		Name:             name,
		Schema:           validated,
		Analysis:         analysis.Analysis,
		AnalyzeFallback:  analyzeFallback,
		GenerateFallback: generateFallback,
		Duration:         time.Since(start),
	}, nil
}

// Analyze asks the model for a name and an intent summary. The bool reports
// whether the deterministic fallback was used.
func (o *Orchestrator) Analyze(ctx context.Context, description string) (Analysis, bool) {
	out, err := o.analyze(ctx, description)
	if err != nil {
		o.fallback(StepAnalyze, err)
		return FallbackAnalysis(description), true
	}
	return out, false
}

func (o *Orchestrator) analyze(ctx context.Context, description string) (Analysis, error) {
	if o.llm == nil {
		return Analysis{}, ErrNoLLM
	}
	p := o.prompts.Analyze
	raw, err := o.llm.GenerateText(ctx, p.System, render(p.User, map[string]string{
		"description": description,
	}))
	if err != nil {
		return Analysis{}, err
	}
	var out Analysis
	if err := json.Unmarshal([]byte(StripCodeFences(raw)), &out); err != nil {
		return Analysis{}, fmt.Errorf("parse analysis: %w", err)
	}
	out.SuggestedName = strings.TrimSpace(out.SuggestedName)
	out.Analysis = strings.TrimSpace(out.Analysis)
	if out.SuggestedName == "" && out.Analysis == "" {
		return Analysis{}, fmt.Errorf("parse analysis: empty response")
	}
	return out, nil
}

// Generate asks the model for a schema document and normalizes it to
// registry tokens. The returned document is still untrusted.
func (o *Orchestrator) Generate(ctx context.Context, description, analysis string) (any, bool) {
	out, err := o.generate(ctx, description, analysis)
	if err != nil {
		o.fallback(StepGenerate, err)
		return MockSchema(), true
	}
	return out, false
}

func (o *Orchestrator) generate(ctx context.Context, description, analysis string) (any, error) {
	if o.llm == nil {
		return nil, ErrNoLLM
	}
	p := o.prompts.Generate
	raw, err := o.llm.GenerateText(ctx, p.System, render(p.User, map[string]string{
		"description": description,
		"analysis":    analysis,
		"types":       typeList(),
	}))
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal([]byte(StripCodeFences(raw)), &doc); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	n, err := NormalizeDocument(doc)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("parse schema: no fields")
	}
	return doc, nil
}

func (o *Orchestrator) fallback(step string, err error) {
	serr := &ServiceError{Step: step, Err: err}
	o.log.Warn("language model step failed; using fallback", "step", step, "error", serr)
	if o.metrics != nil {
		o.metrics.ObserveFallback(step)
	}
}

func FallbackAnalysis(description string) Analysis {
	return Analysis{
		SuggestedName: UntitledName,
		Analysis:      mockAnalysisPrefix + description,
	}
}

// MockSchema is the schema used when the model cannot produce one: one free
// text field and one single choice field.
func MockSchema() schema.ChatflowSchema {
	return schema.ChatflowSchema{Fields: []schema.Field{
		{
			ID:          "field_1",
			Name:        "fullName",
			Label:       "What is your full name?",
			Type:        fields.Text,
			Required:    true,
			Placeholder: "Jane Doe",
		},
		{
			ID:         "field_2",
			Name:       "preference",
			Label:      "Which option suits you best?",
			Type:       fields.Select,
			Required:   true,
			HelperText: "Pick one.",
			Options:    []string{"Option A", "Option B", "Option C"},
		},
	}}
}
