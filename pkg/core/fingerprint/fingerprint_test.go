package fingerprint

import "testing"

func baseConfig() Config {
	return Config{
		Provider:    "gemini",
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
		MaxTokens:   2048,
		Options:     map[string]string{"top_p": "0.9", "response_format": "json_object"},
	}
}

func TestStageDeterministic(t *testing.T) {
	cfg := baseConfig()
	a := Stage("generate", "instructions", "document", cfg)
	b := Stage("generate", "instructions", "document", cfg)
	if a != b {
		t.Errorf("identical inputs hashed differently: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestStageSensitivity(t *testing.T) {
	base := Stage("generate", "instructions", "document", baseConfig())

	tests := []struct {
		name         string
		kind         string
		instructions string
		document     string
		mutate       func(*Config)
	}{
		{name: "kind", kind: "combine"},
		{name: "instructions", instructions: "instructions!"},
		{name: "document", document: "document!"},
		{name: "model", mutate: func(c *Config) { c.Model = "gemini-2.5-pro" }},
		{name: "temperature", mutate: func(c *Config) { c.Temperature = 0.8 }},
		{name: "max_tokens", mutate: func(c *Config) { c.MaxTokens = 4096 }},
		{name: "provider", mutate: func(c *Config) { c.Provider = "deepseek" }},
		{name: "option", mutate: func(c *Config) { c.Options["top_p"] = "0.95" }},
	}

	for _, tt := range tests {
		kind, instructions, document := "generate", "instructions", "document"
		if tt.kind != "" {
			kind = tt.kind
		}
		if tt.instructions != "" {
			instructions = tt.instructions
		}
		if tt.document != "" {
			document = tt.document
		}
		cfg := baseConfig()
		if tt.mutate != nil {
			tt.mutate(&cfg)
		}
		if Stage(kind, instructions, document, cfg) == base {
			t.Errorf("perturbing %s did not change the fingerprint", tt.name)
		}
	}
}

func TestFieldBoundariesAreUnambiguous(t *testing.T) {
	cfg := Config{}
	// Shifting bytes across the field boundary must change the hash.
	a := Stage("generate", "ab", "c", cfg)
	b := Stage("generate", "a", "bc", cfg)
	if a == b {
		t.Error("field boundary ambiguity: ab|c == a|bc")
	}
}

func TestStageMultiPartBoundaries(t *testing.T) {
	cfg := Config{}
	a := StageMulti("combine", "i", []string{"ab", "c"}, cfg)
	b := StageMulti("combine", "i", []string{"a", "bc"}, cfg)
	if a == b {
		t.Error("part boundary ambiguity: [ab c] == [a bc]")
	}

	withEmpty := StageMulti("combine", "i", []string{"a", ""}, cfg)
	without := StageMulti("combine", "i", []string{"a"}, cfg)
	if withEmpty == without {
		t.Error("trailing empty part not distinguished from absent part")
	}
}

func TestStageMultiOrderSignificant(t *testing.T) {
	cfg := Config{}
	ab := StageMulti("evaluate-pairwise", "i", []string{"x", "a", "b"}, cfg)
	ba := StageMulti("evaluate-pairwise", "i", []string{"x", "b", "a"}, cfg)
	if ab == ba {
		t.Error("part order should be significant")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := baseConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	cfg.Options["penalize_novelty"] = "yes"
	if err := cfg.Validate(); err == nil {
		t.Error("unrecognized option key accepted")
	}
}

func TestCanonicalOptionsOrderIndependent(t *testing.T) {
	a := baseConfig()
	b := baseConfig()
	b.Options = map[string]string{"response_format": "json_object", "top_p": "0.9"}
	if Stage("generate", "i", "d", a) != Stage("generate", "i", "d", b) {
		t.Error("equal option sets hashed differently")
	}
}
