package stage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// mockProvider records calls and replies from a canned function.
type mockProvider struct {
	calls    int
	respond  func(prompt, system string) (string, error)
	lastSys  string
	lastUser string
}

func (m *mockProvider) GenerateResponse(_ context.Context, prompt, system string, _ map[string]interface{}) (string, error) {
	m.calls++
	m.lastUser = prompt
	m.lastSys = system
	return m.respond(prompt, system)
}

func fixed(out string) *mockProvider {
	return &mockProvider{respond: func(string, string) (string, error) { return out, nil }}
}

func TestGeneratorProducesOutput(t *testing.T) {
	p := fixed("a fine summary")
	g := NewGenerator(p)

	res, err := g.Produce(context.Background(), Inputs{
		Instructions: "summarize",
		Document:     Document{ID: "doc-1", Text: "body"},
	})
	if err != nil {
		t.Fatalf("Produce failed: %v", err)
	}
	if res.Output != "a fine summary" {
		t.Errorf("Output = %q", res.Output)
	}
	if p.lastSys != "summarize" || p.lastUser != "body" {
		t.Errorf("prompt routing wrong: system=%q user=%q", p.lastSys, p.lastUser)
	}
}

func TestGeneratorRejectsEmptyDocument(t *testing.T) {
	g := NewGenerator(fixed("x"))
	_, err := g.Produce(context.Background(), Inputs{Document: Document{ID: "d", Text: "  \n "}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestGeneratorRejectsEmptyCompletion(t *testing.T) {
	g := NewGenerator(fixed("   "))
	_, err := g.Produce(context.Background(), Inputs{Document: Document{ID: "d", Text: "body"}})
	if !errors.Is(err, ErrInvalidOutput) {
		t.Errorf("err = %v, want ErrInvalidOutput", err)
	}
}

func TestSingleEvaluatorNumericScore(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		scale   Scale
		want    float64
		wantErr error
	}{
		{
			name:  "clean json",
			raw:   `{"value": 7.5, "rationale": "solid"}`,
			scale: Scale{Min: 0, Max: 10},
			want:  7.5,
		},
		{
			name:  "fenced json",
			raw:   "```json\n{\"value\": 3}\n```",
			scale: Scale{Min: 0, Max: 10},
			want:  3,
		},
		{
			name:  "repairable json",
			raw:   `{"value": 5, "rationale": "trailing",}`,
			scale: Scale{Min: 0, Max: 10},
			want:  5,
		},
		{
			name:    "above range",
			raw:     `{"value": 11}`,
			scale:   Scale{Min: 0, Max: 10},
			wantErr: ErrInvalidOutput,
		},
		{
			name:    "below range",
			raw:     `{"value": -0.1}`,
			scale:   Scale{Min: 0, Max: 10},
			wantErr: ErrInvalidOutput,
		},
		{
			name:    "not json at all",
			raw:     "a seven, maybe an eight",
			scale:   Scale{Min: 0, Max: 10},
			wantErr: ErrInvalidOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewSingleEvaluator(fixed(tt.raw))
			res, err := e.Produce(context.Background(), Inputs{
				Instructions: "rate this",
				Criteria:     "clarity",
				Scale:        tt.scale,
				Output:       "candidate text",
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Produce failed: %v", err)
			}
			if res.Score.Value != tt.want {
				t.Errorf("Value = %v, want %v", res.Score.Value, tt.want)
			}
		})
	}
}

func TestSingleEvaluatorCategoricalScore(t *testing.T) {
	scale := Scale{Categories: []string{"poor", "fair", "good"}}

	e := NewSingleEvaluator(fixed(`{"category": "good"}`))
	res, err := e.Produce(context.Background(), Inputs{Scale: scale, Output: "text"})
	if err != nil {
		t.Fatalf("Produce failed: %v", err)
	}
	if res.Score.Category != "good" {
		t.Errorf("Category = %q", res.Score.Category)
	}

	e = NewSingleEvaluator(fixed(`{"category": "excellent"}`))
	_, err = e.Produce(context.Background(), Inputs{Scale: scale, Output: "text"})
	if !errors.Is(err, ErrInvalidOutput) {
		t.Errorf("out-of-set category: err = %v, want ErrInvalidOutput", err)
	}
}

func TestSingleEvaluatorPromptIncludesCriteria(t *testing.T) {
	p := fixed(`{"value": 1}`)
	e := NewSingleEvaluator(p)
	_, err := e.Produce(context.Background(), Inputs{
		Instructions: "rate",
		Criteria:     "must cite sources",
		Scale:        Scale{Min: 0, Max: 10},
		Output:       "text",
	})
	if err != nil {
		t.Fatalf("Produce failed: %v", err)
	}
	if !strings.Contains(p.lastSys, "=== CRITERIA ===") || !strings.Contains(p.lastSys, "must cite sources") {
		t.Errorf("system prompt missing criteria section: %q", p.lastSys)
	}
}

func TestPairwiseVerdictParsing(t *testing.T) {
	tests := []struct {
		raw     string
		want    Verdict
		wantErr bool
	}{
		{raw: `{"verdict": "A"}`, want: VerdictAPreferred},
		{raw: `{"verdict": "b"}`, want: VerdictBPreferred},
		{raw: `{"verdict": "b-preferred"}`, want: VerdictBPreferred},
		{raw: `{"verdict": "TIE"}`, want: VerdictTie},
		{raw: `{"verdict": "draw"}`, want: VerdictTie},
		{raw: `{"verdict": "equal"}`, want: VerdictTie},
		{raw: `{"verdict": "C"}`, wantErr: true},
		{raw: `{"verdict": ""}`, wantErr: true},
	}

	for _, tt := range tests {
		e := NewPairwiseEvaluator(fixed(tt.raw))
		res, err := e.Produce(context.Background(), Inputs{OutputA: "a", OutputB: "b"})
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidOutput) {
				t.Errorf("raw %q: err = %v, want ErrInvalidOutput", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("raw %q: Produce failed: %v", tt.raw, err)
			continue
		}
		if res.Pairwise.Verdict != tt.want {
			t.Errorf("raw %q: verdict = %q, want %q", tt.raw, res.Pairwise.Verdict, tt.want)
		}
	}
}

func TestPairwisePreservesLabeling(t *testing.T) {
	p := fixed(`{"verdict": "A"}`)
	e := NewPairwiseEvaluator(p)
	_, err := e.Produce(context.Background(), Inputs{OutputA: "first", OutputB: "second"})
	if err != nil {
		t.Fatalf("Produce failed: %v", err)
	}
	aIdx := strings.Index(p.lastUser, "=== OUTPUT A ===\nfirst")
	bIdx := strings.Index(p.lastUser, "=== OUTPUT B ===\nsecond")
	if aIdx == -1 || bIdx == -1 || bIdx < aIdx {
		t.Errorf("pair order not preserved in prompt: %q", p.lastUser)
	}
}

func TestPairwiseRejectsEmptySide(t *testing.T) {
	e := NewPairwiseEvaluator(fixed(`{"verdict": "A"}`))
	_, err := e.Produce(context.Background(), Inputs{OutputA: "a", OutputB: "  "})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCombinerAnnotatesScoredCandidates(t *testing.T) {
	p := fixed("merged gold output")
	c := NewCombiner(p)

	res, err := c.Produce(context.Background(), Inputs{
		Instructions: "merge",
		Outputs: []GeneratedOutput{
			{Text: "candidate one", Score: &Score{Value: 8.25}},
			{Text: "candidate two"},
		},
	})
	if err != nil {
		t.Fatalf("Produce failed: %v", err)
	}
	if res.Output != "merged gold output" {
		t.Errorf("Output = %q", res.Output)
	}
	if !strings.Contains(p.lastUser, "=== CANDIDATE 1 ===\n[score: 8.25]\ncandidate one") {
		t.Errorf("scored candidate not annotated: %q", p.lastUser)
	}
	if !strings.Contains(p.lastUser, "=== CANDIDATE 2 ===\ncandidate two") {
		t.Errorf("unscored candidate altered: %q", p.lastUser)
	}
}

func TestCombinerStripsFences(t *testing.T) {
	c := NewCombiner(fixed("```markdown\n# Gold\n```"))
	res, err := c.Produce(context.Background(), Inputs{
		Outputs: []GeneratedOutput{{Text: "one"}},
	})
	if err != nil {
		t.Fatalf("Produce failed: %v", err)
	}
	if res.Output != "# Gold" {
		t.Errorf("Output = %q, want fences stripped", res.Output)
	}
}

func TestCombinerRejectsEmptySet(t *testing.T) {
	c := NewCombiner(fixed("x"))
	_, err := c.Produce(context.Background(), Inputs{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
