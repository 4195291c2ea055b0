package stage

import (
	"context"
	"strings"

	"goldpipe/pkg/core/llm"
)

// Generator produces one candidate output from resolved generation
// instructions and one input document.
type Generator struct {
	provider llm.Provider
}

func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{provider: provider}
}

func (g *Generator) Kind() Kind { return KindGenerate }

func (g *Generator) Produce(ctx context.Context, in Inputs) (*Result, error) {
	if strings.TrimSpace(in.Document.Text) == "" {
		return nil, invalidInput("empty document '%s'", in.Document.ID)
	}

	out, err := g.provider.GenerateResponse(ctx, in.Document.Text, in.Instructions, providerOptions(in.Config, false))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return nil, invalidOutput("empty generation for document '%s'", in.Document.ID)
	}
	return &Result{Output: out}, nil
}
