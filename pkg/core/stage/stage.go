// Package stage implements the four pipeline stage executors: Generate,
// EvaluateSingle, EvaluatePairwise and Combine. Executors are pure functions
// from resolved inputs to a stage result; the actual inference call is
// delegated to an llm.Provider, and retry/timeout policy belongs to the run
// orchestrator.
package stage

import (
	"context"
	"errors"
	"fmt"

	"goldpipe/pkg/core/fingerprint"
)

// Kind identifies a pipeline stage.
type Kind string

const (
	KindGenerate         Kind = "generate"
	KindEvaluateSingle   Kind = "evaluate-single"
	KindEvaluatePairwise Kind = "evaluate-pairwise"
	KindCombine          Kind = "combine"
)

// Non-retryable stage errors. Transient inference failures pass through as
// llm.ErrUpstream / llm.ErrRateLimited.
var (
	ErrInvalidInput  = errors.New("invalid stage input")
	ErrInvalidOutput = errors.New("invalid stage output")
)

// Document is one input document flowing through the pipeline.
type Document struct {
	ID   string
	Text string
}

// GeneratedOutput pairs a generation result with its optional score, for the
// combine stage.
type GeneratedOutput struct {
	Fingerprint string
	Text        string
	Score       *Score
}

// Scale declares the valid range of an evaluation score. Either a numeric
// interval or a closed category set.
type Scale struct {
	Min        float64  `yaml:"min" json:"min"`
	Max        float64  `yaml:"max" json:"max"`
	Categories []string `yaml:"categories,omitempty" json:"categories,omitempty"`
}

// Numeric reports whether the scale is a numeric interval.
func (s Scale) Numeric() bool { return len(s.Categories) == 0 }

// Score is the structured result of a single evaluation.
type Score struct {
	Value     float64 `json:"value"`
	Category  string  `json:"category,omitempty"`
	Rationale string  `json:"rationale,omitempty"`
}

// Verdict is the result of a pairwise evaluation.
type Verdict string

const (
	VerdictAPreferred Verdict = "a-preferred"
	VerdictBPreferred Verdict = "b-preferred"
	VerdictTie        Verdict = "tie"
)

// PairwiseResult couples the verdict with the model's rationale.
type PairwiseResult struct {
	Verdict   Verdict `json:"verdict"`
	Rationale string  `json:"rationale,omitempty"`
}

// Inputs carries the fully-resolved material for one stage invocation. All
// fields are immutable snapshots; which ones are populated depends on the
// stage kind.
type Inputs struct {
	Instructions string
	Criteria     string
	Scale        Scale
	Document     Document
	Output       string
	OutputA      string
	OutputB      string
	Outputs      []GeneratedOutput
	Config       fingerprint.Config
}

// Result is the outcome of one stage invocation. Output is set for generate
// and combine; Score for single evaluation; Pairwise for pairwise
// evaluation.
type Result struct {
	Output   string
	Score    *Score
	Pairwise *PairwiseResult
}

// Executor is the capability shared by all four stage kinds.
type Executor interface {
	Kind() Kind
	Produce(ctx context.Context, in Inputs) (*Result, error)
}

// providerOptions translates the stage configuration into the option map
// the llm.Provider interface expects.
func providerOptions(cfg fingerprint.Config, jsonMode bool) map[string]interface{} {
	opts := map[string]interface{}{
		"model":       cfg.Model,
		"temperature": cfg.Temperature,
	}
	if cfg.MaxTokens > 0 {
		opts["max_tokens"] = cfg.MaxTokens
	}
	if jsonMode {
		opts["response_format"] = "json_object"
	}
	for k, v := range cfg.Options {
		opts[k] = v
	}
	return opts
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func invalidOutput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidOutput, fmt.Sprintf(format, args...))
}
