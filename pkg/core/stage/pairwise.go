package stage

import (
	"context"
	"fmt"
	"strings"

	"goldpipe/pkg/core/llm"
	"goldpipe/pkg/core/utils"
)

// PairwiseEvaluator compares two generated outputs under resolved criteria
// and returns a verdict with rationale. The labeling of A and B is
// significant: the executor never swaps the pair, so callers that need
// order-independence must canonicalize the pair (or invoke both orderings)
// themselves.
type PairwiseEvaluator struct {
	provider llm.Provider
}

func NewPairwiseEvaluator(provider llm.Provider) *PairwiseEvaluator {
	return &PairwiseEvaluator{provider: provider}
}

func (e *PairwiseEvaluator) Kind() Kind { return KindEvaluatePairwise }

func (e *PairwiseEvaluator) Produce(ctx context.Context, in Inputs) (*Result, error) {
	if strings.TrimSpace(in.OutputA) == "" || strings.TrimSpace(in.OutputB) == "" {
		return nil, invalidInput("pairwise evaluation requires two non-empty outputs")
	}

	system := in.Instructions
	if in.Criteria != "" {
		system += "\n\n=== CRITERIA ===\n" + in.Criteria
	}
	system += "\n\nRespond with a JSON object: " +
		`{"verdict": "A" | "B" | "tie", "rationale": "<brief explanation>"}`

	user := fmt.Sprintf("=== OUTPUT A ===\n%s\n\n=== OUTPUT B ===\n%s", in.OutputA, in.OutputB)

	raw, err := e.provider.GenerateResponse(ctx, user, system, providerOptions(in.Config, true))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Verdict   string `json:"verdict"`
		Rationale string `json:"rationale"`
	}
	if _, err := utils.SmartParse(raw, &parsed); err != nil {
		return nil, invalidOutput("unparseable verdict: %v", err)
	}

	verdict, err := parseVerdict(parsed.Verdict)
	if err != nil {
		return nil, err
	}
	return &Result{Pairwise: &PairwiseResult{Verdict: verdict, Rationale: parsed.Rationale}}, nil
}

func parseVerdict(s string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "a-preferred":
		return VerdictAPreferred, nil
	case "b", "b-preferred":
		return VerdictBPreferred, nil
	case "tie", "draw", "equal":
		return VerdictTie, nil
	}
	return "", invalidOutput("unrecognized verdict '%s'", s)
}
