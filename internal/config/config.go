// Package config provides application configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Oracle providers.
const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Host               string
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
	MaxRequestBodySize int64

	Oracle          OracleConfig
	Jira            JiraConfig
	Session         SessionConfig
	Template        TemplateConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// OracleConfig selects and authenticates the hosted completion endpoint.
type OracleConfig struct {
	Provider                string
	AzureEndpoint           string
	AzureAPIKey             string
	AzureAPIVersion         string
	OpenAIAPIKey            string
	OpenAIBaseURL           string
	Timeout                 time.Duration
	TopicsDeployment        string
	ManagerPromptDeployment string
	AssignmentDeployment    string
}

// JiraConfig controls issue search. Search is disabled when credentials are missing.
type JiraConfig struct {
	Enabled     bool
	BaseURL     string
	Email       string
	APIToken    string
	MaxResults  int
	Concurrency int
}

// SessionConfig controls conversation sessions and their storage.
type SessionConfig struct {
	MaxRounds     int
	Store         string
	DBPath        string
	TTL           time.Duration
	SweepInterval time.Duration
}

// TemplateConfig describes where the template repository description comes from.
// Path wins over URL; with neither set a built-in description is used.
type TemplateConfig struct {
	Path         string
	URL          string
	Branch       string
	Query        string
	CloneBaseDir string
}

// RateLimitConfig bounds requests per client.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// ConversationLogConfig controls per-session NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Host:               getEnv("HOST", ""),
		Port:               getEnv("PORT", "5001"),
		Env:                getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		Oracle: OracleConfig{
			Provider:                strings.ToLower(getEnv("ORACLE_PROVIDER", ProviderAzure)),
			AzureEndpoint:           getEnv("AZURE_OPENAI_ENDPOINT", ""),
			AzureAPIKey:             getEnv("AZURE_OPENAI_API_KEY", ""),
			AzureAPIVersion:         getEnv("AZURE_OPENAI_API_VERSION", "2024-12-01-preview"),
			OpenAIAPIKey:            getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:           getEnv("OPENAI_BASE_URL", ""),
			Timeout:                 getEnvDuration("ORACLE_TIMEOUT", 60*time.Second),
			TopicsDeployment:        getEnv("TOPICS_DEPLOYMENT", "gpt-4.1"),
			ManagerPromptDeployment: getEnv("MANAGER_PROMPT_DEPLOYMENT", "PromptAgent"),
			AssignmentDeployment:    getEnv("ASSIGNMENT_DEPLOYMENT", "taskCreator"),
		},
		Jira: JiraConfig{
			Enabled:     getEnvBool("JIRA_ENABLED", true),
			BaseURL:     getEnv("JIRA_BASE_URL", "https://generated-interview-task.atlassian.net"),
			Email:       getEnv("JIRA_EMAIL", ""),
			APIToken:    getEnv("JIRA_API_TOKEN", ""),
			MaxResults:  getEnvInt("JIRA_MAX_RESULTS", 50),
			Concurrency: getEnvInt("SEARCH_CONCURRENCY", 4),
		},
		Session: SessionConfig{
			MaxRounds:     getEnvInt("MAX_ROUNDS", 2),
			Store:         strings.ToLower(getEnv("SESSION_STORE", StoreMemory)),
			DBPath:        getEnv("DB_PATH", "./data/sessions.db"),
			TTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		},
		Template: TemplateConfig{
			Path:         getEnv("TEMPLATE_REPO_PATH", ""),
			URL:          getEnv("TEMPLATE_REPO_URL", ""),
			Branch:       getEnv("TEMPLATE_REPO_BRANCH", ""),
			Query:        getEnv("TEMPLATE_REPO_QUERY", ""),
			CloneBaseDir: getEnv("CLONE_BASE_DIR", "./cloned_repos"),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.Oracle.Provider {
	case ProviderAzure:
		if c.Oracle.AzureEndpoint == "" || c.Oracle.AzureAPIKey == "" {
			return fmt.Errorf("AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_API_KEY are required for provider %q", ProviderAzure)
		}
	case ProviderOpenAI:
		if c.Oracle.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider %q", ProviderOpenAI)
		}
	default:
		return fmt.Errorf("ORACLE_PROVIDER must be %q or %q, got %q", ProviderAzure, ProviderOpenAI, c.Oracle.Provider)
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be > 0")
	}
	if c.Session.MaxRounds < 1 {
		return fmt.Errorf("MAX_ROUNDS must be >= 1")
	}
	switch c.Session.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.Session.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty when SESSION_STORE=%s", StoreSQLite)
		}
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", StoreMemory, StoreSQLite, c.Session.Store)
	}
	if c.Session.TTL > 0 && c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0 when SESSION_TTL is set")
	}
	if c.Jira.MaxResults <= 0 {
		return fmt.Errorf("JIRA_MAX_RESULTS must be > 0")
	}
	if c.Jira.Concurrency <= 0 {
		return fmt.Errorf("SEARCH_CONCURRENCY must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.ConversationLog.Enabled {
		if c.ConversationLog.Dir == "" {
			return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
		}
		if c.ConversationLog.QueueSize <= 0 {
			return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
		}
	}
	return nil
}

// SearchEnabled reports whether issue search can reach the tracker.
func (c *Config) SearchEnabled() bool {
	return c.Jira.Enabled && c.Jira.BaseURL != "" && c.Jira.Email != "" && c.Jira.APIToken != ""
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if value == "0" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
