package config

import (
	"testing"

	"github.com/thoughtful-python/infra/internal/models"
)

func TestLoadStages_Embedded(t *testing.T) {
	file, err := LoadStages()
	if err != nil {
		t.Fatalf("LoadStages() error = %v", err)
	}

	for _, stage := range []models.Stage{models.StageDev, models.StageStage, models.StageProd} {
		settings := file.For(stage)
		if settings.LogRetentionDays == nil || *settings.LogRetentionDays <= 0 {
			t.Errorf("%s: LogRetentionDays not set", stage)
		}
		if settings.AuthorizerMode == nil {
			t.Errorf("%s: AuthorizerMode not set", stage)
		}
		if len(settings.AllowedOrigins) == 0 {
			t.Errorf("%s: AllowedOrigins empty", stage)
		}
	}
}

func TestParseStages(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "valid document",
			data: "defaults:\n  logRetentionDays: 14\nstages:\n  dev:\n    logRetentionDays: 3\n",
		},
		{
			name:    "unknown stage",
			data:    "stages:\n  qa:\n    logRetentionDays: 3\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			data:    "defaults: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStages([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseStages() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStagesFile_ForMergesOverrides(t *testing.T) {
	file, err := ParseStages([]byte(`
defaults:
  allowedOrigins: [https://a.example]
  logRetentionDays: 14
  enableTestAuth: false
stages:
  dev:
    enableTestAuth: true
`))
	if err != nil {
		t.Fatalf("ParseStages() error = %v", err)
	}

	dev := file.For(models.StageDev)
	if dev.EnableTestAuth == nil || !*dev.EnableTestAuth {
		t.Error("dev EnableTestAuth should be overridden to true")
	}
	if dev.LogRetentionDays == nil || *dev.LogRetentionDays != 14 {
		t.Error("dev LogRetentionDays should inherit 14")
	}

	prod := file.For(models.StageProd)
	if prod.EnableTestAuth == nil || *prod.EnableTestAuth {
		t.Error("prod EnableTestAuth should inherit false")
	}
	if len(prod.AllowedOrigins) != 1 {
		t.Errorf("prod AllowedOrigins = %v, want inherited default", prod.AllowedOrigins)
	}
}
