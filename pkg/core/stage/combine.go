package stage

import (
	"context"
	"fmt"
	"strings"

	"goldpipe/pkg/core/llm"
	"goldpipe/pkg/core/utils"
)

// Combiner merges the full set of generated outputs for one document into a
// single gold text, optionally informed by their evaluation scores.
type Combiner struct {
	provider llm.Provider
}

func NewCombiner(provider llm.Provider) *Combiner {
	return &Combiner{provider: provider}
}

func (c *Combiner) Kind() Kind { return KindCombine }

func (c *Combiner) Produce(ctx context.Context, in Inputs) (*Result, error) {
	if len(in.Outputs) == 0 {
		return nil, invalidInput("combine requires at least one generated output")
	}
	for i, o := range in.Outputs {
		if strings.TrimSpace(o.Text) == "" {
			return nil, invalidInput("candidate %d is empty", i+1)
		}
	}

	var sb strings.Builder
	for i, o := range in.Outputs {
		fmt.Fprintf(&sb, "=== CANDIDATE %d ===\n", i+1)
		if o.Score != nil {
			if o.Score.Category != "" {
				fmt.Fprintf(&sb, "[score: %s]\n", o.Score.Category)
			} else {
				fmt.Fprintf(&sb, "[score: %.2f]\n", o.Score.Value)
			}
		}
		sb.WriteString(o.Text)
		sb.WriteString("\n\n")
	}

	out, err := c.provider.GenerateResponse(ctx, sb.String(), in.Instructions, providerOptions(in.Config, false))
	if err != nil {
		return nil, err
	}

	cleaned := utils.CleanMarkdown(out)
	if cleaned == "" {
		return nil, invalidOutput("empty combined output")
	}
	return &Result{Output: cleaned}, nil
}
