package llm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ManagerConfig selects which provider serves which pipeline stage.
type ManagerConfig struct {
	ActiveProvider string                 `yaml:"active_provider"`
	Stages         map[string]StageConfig `yaml:"stages"`
}

// StageConfig optionally overrides the provider for one stage kind.
type StageConfig struct {
	Provider    string `yaml:"provider"`
	Description string `yaml:"description"`
}

// Manager maps provider names to instances and applies per-stage overrides.
type Manager struct {
	config    ManagerConfig
	providers map[string]Provider
}

// NewManager creates a manager with the built-in provider set.
func NewManager(config ManagerConfig) *Manager {
	return &Manager{
		config: config,
		providers: map[string]Provider{
			"gemini":          &GeminiProvider{},
			"gemini-grounded": &GroundedGeminiProvider{},
			"deepseek":        &DeepSeekProvider{},
			"qwen":            &QwenProvider{},
		},
	}
}

// LoadManagerConfig reads a manager configuration from a YAML file.
func LoadManagerConfig(path string) (ManagerConfig, error) {
	var cfg ManagerConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read provider config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse provider config: %w", err)
	}
	return cfg, nil
}

// Register adds or replaces a named provider. Used by tests to inject mocks.
func (m *Manager) Register(name string, p Provider) {
	m.providers[name] = p
}

// ProviderFor resolves the provider for a stage kind: stage override first,
// then the global active provider.
func (m *Manager) ProviderFor(stageKind string) (Provider, error) {
	if sc, ok := m.config.Stages[stageKind]; ok && sc.Provider != "" {
		if p, ok := m.providers[sc.Provider]; ok {
			return p, nil
		}
		return nil, fmt.Errorf("provider '%s' configured for stage '%s' not found", sc.Provider, stageKind)
	}
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("active provider '%s' not found", m.config.ActiveProvider)
}

// ProviderByName retrieves a provider by its registry name.
func (m *Manager) ProviderByName(name string) (Provider, error) {
	if p, ok := m.providers[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("provider '%s' not found", name)
}
