package config

import (
	"strings"
	"testing"
	"time"
)

func setAzureEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ORACLE_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_KEY", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setAzureEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "5001" {
		t.Errorf("Port = %q, want 5001", cfg.Port)
	}
	if cfg.Session.MaxRounds != 2 {
		t.Errorf("MaxRounds = %d, want 2", cfg.Session.MaxRounds)
	}
	if cfg.Session.Store != StoreMemory {
		t.Errorf("Store = %q, want %q", cfg.Session.Store, StoreMemory)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Errorf("TTL = %v, want 24h", cfg.Session.TTL)
	}
	if cfg.Oracle.AzureAPIVersion != "2024-12-01-preview" {
		t.Errorf("AzureAPIVersion = %q", cfg.Oracle.AzureAPIVersion)
	}
	if cfg.Oracle.ManagerPromptDeployment != "PromptAgent" || cfg.Oracle.AssignmentDeployment != "taskCreator" {
		t.Errorf("unexpected deployments: %+v", cfg.Oracle)
	}
	if cfg.Addr() != ":5001" {
		t.Errorf("Addr() = %q, want :5001", cfg.Addr())
	}
	if cfg.SearchEnabled() {
		t.Error("search should be disabled without Jira credentials")
	}
}

func TestLoadOverrides(t *testing.T) {
	setAzureEnv(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_ROUNDS", "4")
	t.Setenv("SESSION_TTL", "0")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("JIRA_EMAIL", "bot@example.com")
	t.Setenv("JIRA_API_TOKEN", "token")
	t.Setenv("ORACLE_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.Session.MaxRounds != 4 {
		t.Errorf("MaxRounds = %d, want 4", cfg.Session.MaxRounds)
	}
	if cfg.Session.TTL != 0 {
		t.Errorf("TTL = %v, want 0", cfg.Session.TTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://b.test" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.SearchEnabled() {
		t.Error("search should be enabled with Jira credentials")
	}
	if cfg.Oracle.Timeout != 60*time.Second {
		t.Errorf("invalid duration should fall back, got %v", cfg.Oracle.Timeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "azure without key",
			env:     map[string]string{"ORACLE_PROVIDER": "azure", "AZURE_OPENAI_ENDPOINT": "https://x"},
			wantErr: "AZURE_OPENAI_API_KEY",
		},
		{
			name:    "openai without key",
			env:     map[string]string{"ORACLE_PROVIDER": "openai"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "unknown provider",
			env:     map[string]string{"ORACLE_PROVIDER": "bedrock"},
			wantErr: "ORACLE_PROVIDER",
		},
		{
			name: "unknown store",
			env: map[string]string{
				"ORACLE_PROVIDER": "openai", "OPENAI_API_KEY": "k", "SESSION_STORE": "redis",
			},
			wantErr: "SESSION_STORE",
		},
		{
			name: "zero rounds",
			env: map[string]string{
				"ORACLE_PROVIDER": "openai", "OPENAI_API_KEY": "k", "MAX_ROUNDS": "0",
			},
			wantErr: "MAX_ROUNDS",
		},
		{
			name: "conversation log without queue",
			env: map[string]string{
				"ORACLE_PROVIDER": "openai", "OPENAI_API_KEY": "k",
				"CONVERSATION_LOG_ENABLED": "true", "CONVERSATION_LOG_QUEUE_SIZE": "0",
			},
			wantErr: "CONVERSATION_LOG_QUEUE_SIZE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AZURE_OPENAI_ENDPOINT", "")
			t.Setenv("AZURE_OPENAI_API_KEY", "")
			t.Setenv("OPENAI_API_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
