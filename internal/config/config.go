package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "PAPER_DIGEST_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	llmProviderEnv   = "LLM_PROVIDER"
	openAIAPIKeyEnv  = "OPENAI_API_KEY"
	pushTokenEnv     = "PUSH_API_TOKEN"
	smtpPasswordEnv  = "SMTP_PASSWORD"
	onlyNewPolicyEnv = "ONLY_NEW_POLICY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Source        SourceConfig       `yaml:"source"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Provider      ProviderConfig     `yaml:"provider"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes optional Postgres connection details for the
// subscription store; empty DSN selects the file-backed store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines when the two daily phases run.
type SchedulerConfig struct {
	SummarizeAt string         `yaml:"summarizeAt"`
	NotifyAt    string         `yaml:"notifyAt"`
	Timezone    string         `yaml:"timezone"`
	location    *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Clock is a parsed HH:MM schedule time.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock validates an "HH:MM" string.
func ParseClock(value string) (Clock, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("invalid schedule time %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in schedule time %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in schedule time %q", value)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// SourceConfig describes the paper repository endpoints and the scanner
// strategy used to query them.
type SourceConfig struct {
	Scanner    string `yaml:"scanner"`
	APIURL     string `yaml:"apiUrl"`
	ListingURL string `yaml:"listingUrl"`
}

// PipelineConfig tunes the orchestrator run.
type PipelineConfig struct {
	MaxResults      int    `yaml:"maxResults"`
	DownloadWorkers int    `yaml:"downloadWorkers"`
	QueueCapacity   int    `yaml:"queueCapacity"`
	OnlyNew         *bool  `yaml:"onlyNew"`
	DataDir         string `yaml:"dataDir"`
	ConverterTool   string `yaml:"converterTool"`
	RetentionDays   int    `yaml:"retentionDays"`
}

// OnlyNewPolicy reports whether scheduled runs suppress re-delivery of
// items already handled before today. Defaults to true.
func (p PipelineConfig) OnlyNewPolicy() bool {
	if p.OnlyNew == nil {
		return true
	}
	return *p.OnlyNew
}

// ProcessedDir is where downloaded artifacts live.
func (p PipelineConfig) ProcessedDir() string {
	return p.DataDir + "/processed"
}

// SummariesDir is where per-paper summary records live.
func (p PipelineConfig) SummariesDir() string {
	return p.DataDir + "/summaries"
}

// ProviderConfig selects and parameterizes the LLM backend.
type ProviderConfig struct {
	Name   string       `yaml:"name"`
	Ollama OllamaConfig `yaml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai"`
}

// OllamaConfig points at a locally hosted model server.
type OllamaConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Model   string `yaml:"model"`
}

// OpenAIConfig points at an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"apiKey"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Push  PushConfig  `yaml:"push"`
	Email EmailConfig `yaml:"email"`
}

// PushConfig wires the messenger push API.
type PushConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

// EmailConfig wires the SMTP sender.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(llmProviderEnv); v != "" {
		c.Provider.Name = strings.ToLower(v)
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.Provider.OpenAI.APIKey = v
	}

	if v := os.Getenv(pushTokenEnv); v != "" {
		c.Notifications.Push.Token = v
	}

	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Notifications.Email.Password = v
	}

	if v := os.Getenv(onlyNewPolicyEnv); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.Pipeline.OnlyNew = &parsed
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.SummarizeAt != "" {
		base.Scheduler.SummarizeAt = override.Scheduler.SummarizeAt
	}
	if override.Scheduler.NotifyAt != "" {
		base.Scheduler.NotifyAt = override.Scheduler.NotifyAt
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Source.Scanner != "" {
		base.Source.Scanner = override.Source.Scanner
	}
	if override.Source.APIURL != "" {
		base.Source.APIURL = override.Source.APIURL
	}
	if override.Source.ListingURL != "" {
		base.Source.ListingURL = override.Source.ListingURL
	}

	if override.Pipeline.MaxResults > 0 {
		base.Pipeline.MaxResults = override.Pipeline.MaxResults
	}
	if override.Pipeline.DownloadWorkers > 0 {
		base.Pipeline.DownloadWorkers = override.Pipeline.DownloadWorkers
	}
	if override.Pipeline.QueueCapacity > 0 {
		base.Pipeline.QueueCapacity = override.Pipeline.QueueCapacity
	}
	if override.Pipeline.DataDir != "" {
		base.Pipeline.DataDir = override.Pipeline.DataDir
	}
	if override.Pipeline.ConverterTool != "" {
		base.Pipeline.ConverterTool = override.Pipeline.ConverterTool
	}
	if override.Pipeline.RetentionDays > 0 {
		base.Pipeline.RetentionDays = override.Pipeline.RetentionDays
	}
	if override.Pipeline.OnlyNew != nil {
		base.Pipeline.OnlyNew = override.Pipeline.OnlyNew
	}

	if override.Provider.Name != "" {
		base.Provider.Name = override.Provider.Name
	}
	if override.Provider.Ollama.BaseURL != "" {
		base.Provider.Ollama.BaseURL = override.Provider.Ollama.BaseURL
	}
	if override.Provider.Ollama.Model != "" {
		base.Provider.Ollama.Model = override.Provider.Ollama.Model
	}
	if override.Provider.OpenAI.BaseURL != "" {
		base.Provider.OpenAI.BaseURL = override.Provider.OpenAI.BaseURL
	}
	if override.Provider.OpenAI.Model != "" {
		base.Provider.OpenAI.Model = override.Provider.OpenAI.Model
	}
	if override.Provider.OpenAI.APIKey != "" {
		base.Provider.OpenAI.APIKey = override.Provider.OpenAI.APIKey
	}

	if override.Notifications.Push.Endpoint != "" {
		base.Notifications.Push.Endpoint = override.Notifications.Push.Endpoint
	}
	if override.Notifications.Push.Token != "" {
		base.Notifications.Push.Token = override.Notifications.Push.Token
	}
	if override.Notifications.Email.Host != "" {
		base.Notifications.Email = override.Notifications.Email
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{
			SummarizeAt: "06:00",
			NotifyAt:    "07:00",
			Timezone:    defaultTimezone,
			location:    tz,
		},
		Source: SourceConfig{
			Scanner:    "arxiv-api",
			APIURL:     "https://export.arxiv.org/api/query",
			ListingURL: "https://arxiv.org",
		},
		Pipeline: PipelineConfig{
			MaxResults:      10,
			DownloadWorkers: 3,
			QueueCapacity:   20,
			DataDir:         "data/paperdigest",
			ConverterTool:   "markitdown",
			RetentionDays:   8,
		},
		Provider: ProviderConfig{
			Name:   "ollama",
			Ollama: OllamaConfig{BaseURL: "http://localhost:11434", Model: "deepseek-r1:32b"},
			OpenAI: OpenAIConfig{BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
		},
		Notifications: NotificationConfig{
			Push:  PushConfig{Endpoint: "", Token: ""},
			Email: EmailConfig{Host: "", Port: 587},
		},
	}
}
