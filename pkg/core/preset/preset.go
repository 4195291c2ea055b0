// Package preset defines the reusable pipeline configuration: which
// instruction pieces drive each stage, where input documents come from,
// where gold outputs go, and the model settings per stage.
package preset

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"goldpipe/pkg/core/content"
	"goldpipe/pkg/core/fingerprint"
	"goldpipe/pkg/core/stage"
)

// ContentRefs names the content piece serving each stage. Generation and
// combine are required; the evaluation stages run only when their
// instructions are set. Criteria is required whenever any evaluation stage
// is configured.
type ContentRefs struct {
	Generation   string `yaml:"generation"`
	SingleEval   string `yaml:"single_eval,omitempty"`
	PairwiseEval string `yaml:"pairwise_eval,omitempty"`
	Criteria     string `yaml:"criteria,omitempty"`
	Combine      string `yaml:"combine"`
}

// SourceDescriptor says where input documents come from.
type SourceDescriptor struct {
	Kind string   `yaml:"kind"` // content-store | directory | web
	IDs  []string `yaml:"ids,omitempty"`
	Path string   `yaml:"path,omitempty"`
	URLs []string `yaml:"urls,omitempty"`
}

// DestDescriptor says where gold outputs are written.
type DestDescriptor struct {
	Kind string `yaml:"kind"` // directory | database
	Path string `yaml:"path,omitempty"`
}

// Options are the orchestration knobs for a run.
type Options struct {
	Concurrency    int `yaml:"concurrency"`
	MaxRetries     int `yaml:"max_retries"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// RetryFailed re-attempts fingerprints whose cached result is a terminal
	// failure. Off by default: a cached failure is otherwise final.
	RetryFailed bool `yaml:"retry_failed"`
	// Strict makes unresolved template placeholders fatal for the stage.
	Strict bool `yaml:"strict"`
	// PairwiseOrderIndependent canonicalizes each output pair before
	// fingerprinting and invocation. When false, A/B labeling is significant.
	PairwiseOrderIndependent bool `yaml:"pairwise_order_independent"`
}

// Preset is one reusable pipeline configuration.
type Preset struct {
	ID      string           `yaml:"id"`
	Name    string           `yaml:"name"`
	Content ContentRefs      `yaml:"content"`
	Input   SourceDescriptor `yaml:"input"`
	Output  DestDescriptor   `yaml:"output"`
	// Candidates lists one model configuration per candidate generation.
	// Distinct configurations produce distinct fingerprints, so a preset
	// with three candidate configs yields three generations per document.
	Candidates []fingerprint.Config `yaml:"candidates"`
	// EvalConfig drives both evaluation stages; CombineConfig the merge.
	EvalConfig    fingerprint.Config `yaml:"eval_config"`
	CombineConfig fingerprint.Config `yaml:"combine_config"`
	Scale         stage.Scale        `yaml:"scale"`
	Runtime       map[string]string  `yaml:"runtime,omitempty"` // runtime template variables
	Options       Options            `yaml:"options"`
}

// Load reads a preset from a YAML file and applies defaults.
func Load(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset: %w", err)
	}
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse preset: %w", err)
	}
	p.applyDefaults()
	return &p, nil
}

func (p *Preset) applyDefaults() {
	if p.Options.Concurrency <= 0 {
		p.Options.Concurrency = 4
	}
	if p.Options.MaxRetries <= 0 {
		p.Options.MaxRetries = 3
	}
	if p.Options.TimeoutSeconds <= 0 {
		p.Options.TimeoutSeconds = 120
	}
	if p.Scale.Numeric() && p.Scale.Min == 0 && p.Scale.Max == 0 {
		p.Scale.Max = 10
	}
}

// HasSingleEval reports whether the preset runs the single-evaluation stage.
func (p *Preset) HasSingleEval() bool { return p.Content.SingleEval != "" }

// HasPairwiseEval reports whether the preset runs the pairwise stage.
func (p *Preset) HasPairwiseEval() bool { return p.Content.PairwiseEval != "" }

// Validate checks every content reference against the store and rejects
// malformed descriptors and unrecognized stage options. Called by the
// orchestrator before any stage executes.
func (p *Preset) Validate(ctx context.Context, store content.Store) error {
	if p.ID == "" {
		return fmt.Errorf("preset ID cannot be empty")
	}
	if len(p.Candidates) == 0 {
		return fmt.Errorf("preset '%s' declares no candidate configurations", p.ID)
	}

	checks := []struct {
		id       string
		kind     content.Kind
		required bool
	}{
		{p.Content.Generation, content.KindGeneration, true},
		{p.Content.SingleEval, content.KindSingleEval, false},
		{p.Content.PairwiseEval, content.KindPairwiseEval, false},
		{p.Content.Criteria, content.KindCriteria, p.HasSingleEval() || p.HasPairwiseEval()},
		{p.Content.Combine, content.KindCombine, true},
	}
	for _, c := range checks {
		if c.id == "" {
			if c.required {
				return fmt.Errorf("preset '%s' is missing required %s content", p.ID, c.kind)
			}
			continue
		}
		piece, err := store.Get(ctx, c.id)
		if err != nil {
			return fmt.Errorf("preset '%s': %w", p.ID, err)
		}
		if piece.Kind != c.kind {
			return fmt.Errorf("preset '%s': content '%s' has kind '%s', expected '%s'",
				p.ID, c.id, piece.Kind, c.kind)
		}
	}

	switch p.Input.Kind {
	case "content-store", "directory", "web":
	default:
		return fmt.Errorf("preset '%s': unknown input source kind '%s'", p.ID, p.Input.Kind)
	}
	switch p.Output.Kind {
	case "directory", "database":
	default:
		return fmt.Errorf("preset '%s': unknown output destination kind '%s'", p.ID, p.Output.Kind)
	}

	for i, cfg := range p.Candidates {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("preset '%s' candidate %d: %w", p.ID, i+1, err)
		}
	}
	if err := p.EvalConfig.Validate(); err != nil {
		return fmt.Errorf("preset '%s' eval config: %w", p.ID, err)
	}
	if err := p.CombineConfig.Validate(); err != nil {
		return fmt.Errorf("preset '%s' combine config: %w", p.ID, err)
	}

	if !p.Scale.Numeric() && len(p.Scale.Categories) < 2 {
		return fmt.Errorf("preset '%s': categorical scale needs at least two categories", p.ID)
	}
	if p.Scale.Numeric() && p.Scale.Min >= p.Scale.Max {
		return fmt.Errorf("preset '%s': numeric scale min must be below max", p.ID)
	}

	return nil
}
