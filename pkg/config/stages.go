package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/thoughtful-python/infra/internal/models"
)

//go:embed stages.yaml
var stagesYAML []byte

// StageSettings holds the values a stage may override. Nil fields inherit the
// file level defaults.
type StageSettings struct {
	AllowedOrigins        []string `yaml:"allowedOrigins"`
	GoogleClientID        *string  `yaml:"googleClientId"`
	AuthorizerMode        *string  `yaml:"authorizerMode"`
	LogRetentionDays      *int     `yaml:"logRetentionDays"`
	EnableTestAuth        *bool    `yaml:"enableTestAuth"`
	EnableDemoPermissions *bool    `yaml:"enableDemoPermissions"`
}

// StagesFile is the root of stages.yaml
type StagesFile struct {
	Defaults StageSettings            `yaml:"defaults"`
	Stages   map[string]StageSettings `yaml:"stages"`
}

// ParseStages decodes a stages document.
func ParseStages(data []byte) (*StagesFile, error) {
	var file StagesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse stages file: %w", err)
	}
	for name := range file.Stages {
		if !models.Stage(name).IsValid() {
			return nil, fmt.Errorf("stages file: unknown stage %q", name)
		}
	}
	return &file, nil
}

// LoadStages decodes the embedded stages.yaml
func LoadStages() (*StagesFile, error) {
	return ParseStages(stagesYAML)
}

// For returns the defaults merged with the overrides of one stage.
func (f *StagesFile) For(stage models.Stage) StageSettings {
	merged := f.Defaults
	override, ok := f.Stages[stage.String()]
	if !ok {
		return merged
	}

	if override.AllowedOrigins != nil {
		merged.AllowedOrigins = override.AllowedOrigins
	}
	if override.GoogleClientID != nil {
		merged.GoogleClientID = override.GoogleClientID
	}
	if override.AuthorizerMode != nil {
		merged.AuthorizerMode = override.AuthorizerMode
	}
	if override.LogRetentionDays != nil {
		merged.LogRetentionDays = override.LogRetentionDays
	}
	if override.EnableTestAuth != nil {
		merged.EnableTestAuth = override.EnableTestAuth
	}
	if override.EnableDemoPermissions != nil {
		merged.EnableDemoPermissions = override.EnableDemoPermissions
	}
	return merged
}
