package stage

import (
	"context"
	"fmt"
	"strings"

	"goldpipe/pkg/core/llm"
	"goldpipe/pkg/core/utils"
)

// SingleEvaluator scores one generated output against resolved criteria.
// Scale validation lives here: a score outside the declared range is an
// invalid-output error, never clamped.
type SingleEvaluator struct {
	provider llm.Provider
}

func NewSingleEvaluator(provider llm.Provider) *SingleEvaluator {
	return &SingleEvaluator{provider: provider}
}

func (e *SingleEvaluator) Kind() Kind { return KindEvaluateSingle }

func (e *SingleEvaluator) Produce(ctx context.Context, in Inputs) (*Result, error) {
	if strings.TrimSpace(in.Output) == "" {
		return nil, invalidInput("empty output to evaluate")
	}

	system := buildEvalSystemPrompt(in.Instructions, in.Criteria, in.Scale)
	raw, err := e.provider.GenerateResponse(ctx, in.Output, system, providerOptions(in.Config, true))
	if err != nil {
		return nil, err
	}

	var score Score
	if _, err := utils.SmartParse(raw, &score); err != nil {
		return nil, invalidOutput("unparseable score: %v", err)
	}

	if err := validateScore(&score, in.Scale); err != nil {
		return nil, err
	}
	return &Result{Score: &score}, nil
}

func validateScore(score *Score, scale Scale) error {
	if scale.Numeric() {
		if score.Value < scale.Min || score.Value > scale.Max {
			return invalidOutput("score %.2f outside declared scale [%.2f, %.2f]",
				score.Value, scale.Min, scale.Max)
		}
		return nil
	}
	for _, cat := range scale.Categories {
		if score.Category == cat {
			return nil
		}
	}
	return invalidOutput("category '%s' not in declared set %v", score.Category, scale.Categories)
}

func buildEvalSystemPrompt(instructions, criteria string, scale Scale) string {
	var sb strings.Builder
	sb.WriteString(instructions)
	if criteria != "" {
		sb.WriteString("\n\n=== CRITERIA ===\n")
		sb.WriteString(criteria)
	}
	sb.WriteString("\n\nRespond with a JSON object: ")
	if scale.Numeric() {
		fmt.Fprintf(&sb, `{"value": <number between %.2f and %.2f>, "rationale": "<brief explanation>"}`,
			scale.Min, scale.Max)
	} else {
		fmt.Fprintf(&sb, `{"category": <one of %q>, "rationale": "<brief explanation>"}`, scale.Categories)
	}
	return sb.String()
}
