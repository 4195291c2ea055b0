package preset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"goldpipe/pkg/core/content"
	"goldpipe/pkg/core/fingerprint"
	"goldpipe/pkg/core/stage"
)

func seedContent(t *testing.T) *content.MemoryStore {
	t.Helper()
	s := content.NewMemoryStore()
	pieces := []*content.Content{
		{ID: "gen", Kind: content.KindGeneration, Body: "generate"},
		{ID: "single", Kind: content.KindSingleEval, Body: "evaluate"},
		{ID: "criteria", Kind: content.KindCriteria, Body: "criteria"},
		{ID: "combine", Kind: content.KindCombine, Body: "combine"},
	}
	for _, p := range pieces {
		p.Name = p.ID
		if err := s.Put(context.Background(), p); err != nil {
			t.Fatalf("seed Put failed: %v", err)
		}
	}
	return s
}

func validPreset() *Preset {
	return &Preset{
		ID:   "p1",
		Name: "Preset One",
		Content: ContentRefs{
			Generation: "gen",
			SingleEval: "single",
			Criteria:   "criteria",
			Combine:    "combine",
		},
		Input:         SourceDescriptor{Kind: "content-store"},
		Output:        DestDescriptor{Kind: "directory", Path: "out"},
		Candidates:    []fingerprint.Config{{Model: "m", Temperature: 0.5}},
		EvalConfig:    fingerprint.Config{Model: "m"},
		CombineConfig: fingerprint.Config{Model: "m"},
		Scale:         stage.Scale{Min: 0, Max: 10},
	}
}

func TestValidateAcceptsCompletePreset(t *testing.T) {
	s := seedContent(t)
	if err := validPreset().Validate(context.Background(), s); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	s := seedContent(t)

	tests := []struct {
		name    string
		mutate  func(*Preset)
		wantSub string
	}{
		{
			name:    "empty id",
			mutate:  func(p *Preset) { p.ID = "" },
			wantSub: "ID cannot be empty",
		},
		{
			name:    "no candidates",
			mutate:  func(p *Preset) { p.Candidates = nil },
			wantSub: "no candidate configurations",
		},
		{
			name:    "missing generation",
			mutate:  func(p *Preset) { p.Content.Generation = "" },
			wantSub: "missing required",
		},
		{
			name:    "missing combine",
			mutate:  func(p *Preset) { p.Content.Combine = "" },
			wantSub: "missing required",
		},
		{
			name:    "dangling reference",
			mutate:  func(p *Preset) { p.Content.Generation = "ghost" },
			wantSub: "not found",
		},
		{
			name:    "kind mismatch",
			mutate:  func(p *Preset) { p.Content.Generation = "criteria" },
			wantSub: "expected",
		},
		{
			name: "criteria required with eval",
			mutate: func(p *Preset) {
				p.Content.Criteria = ""
			},
			wantSub: "missing required",
		},
		{
			name:    "bad input kind",
			mutate:  func(p *Preset) { p.Input.Kind = "carrier-pigeon" },
			wantSub: "unknown input source",
		},
		{
			name:    "bad output kind",
			mutate:  func(p *Preset) { p.Output.Kind = "telegram" },
			wantSub: "unknown output destination",
		},
		{
			name: "unrecognized candidate option",
			mutate: func(p *Preset) {
				p.Candidates[0].Options = map[string]string{"frobnicate": "yes"}
			},
			wantSub: "unrecognized stage option",
		},
		{
			name: "degenerate categorical scale",
			mutate: func(p *Preset) {
				p.Scale = stage.Scale{Categories: []string{"only"}}
			},
			wantSub: "at least two categories",
		},
		{
			name: "inverted numeric scale",
			mutate: func(p *Preset) {
				p.Scale = stage.Scale{Min: 10, Max: 10}
			},
			wantSub: "min must be below max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPreset()
			tt.mutate(p)
			err := p.Validate(context.Background(), s)
			if err == nil {
				t.Fatal("Validate accepted invalid preset")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidateEvalOptional(t *testing.T) {
	s := seedContent(t)
	p := validPreset()
	p.Content.SingleEval = ""
	p.Content.Criteria = "" // not required without any eval stage
	if err := p.Validate(context.Background(), s); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.yaml")
	yaml := `
id: demo
name: Demo
content:
  generation: gen
  combine: combine
input:
  kind: content-store
output:
  kind: directory
  path: out
candidates:
  - provider: gemini
    model: gemini-2.0-flash
    temperature: 0.7
eval_config:
  model: gemini-2.0-flash
combine_config:
  model: gemini-2.0-flash
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write temp preset: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Options.Concurrency != 4 {
		t.Errorf("Concurrency default = %d, want 4", p.Options.Concurrency)
	}
	if p.Options.MaxRetries != 3 {
		t.Errorf("MaxRetries default = %d, want 3", p.Options.MaxRetries)
	}
	if p.Options.TimeoutSeconds != 120 {
		t.Errorf("TimeoutSeconds default = %d, want 120", p.Options.TimeoutSeconds)
	}
	if p.Scale.Max != 10 {
		t.Errorf("Scale.Max default = %v, want 10", p.Scale.Max)
	}
	if len(p.Candidates) != 1 || p.Candidates[0].Temperature != 0.7 {
		t.Errorf("candidates not parsed: %+v", p.Candidates)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing preset file")
	}
}
