package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       App       `mapstructure:"app"`
	AI        AI        `mapstructure:"ai"`
	Digest    Digest    `mapstructure:"digest"`
	Ingest    Ingest    `mapstructure:"ingest"`
	Database  Database  `mapstructure:"database"`
	Server    Server    `mapstructure:"server"`
	Email     Email     `mapstructure:"email"`
	Send      Send      `mapstructure:"send"`
	Scheduler Scheduler `mapstructure:"scheduler"`
}

// App holds general application configuration
type App struct {
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// AI holds LLM provider configuration
type AI struct {
	Provider    string       `mapstructure:"provider"`
	Timeout     string       `mapstructure:"timeout"`
	Temperature float32      `mapstructure:"temperature"`
	OpenAI      OpenAIConfig `mapstructure:"openai"`
	Gemini      GeminiConfig `mapstructure:"gemini"`
}

// OpenAIConfig holds OpenAI (or compatible) chat completion configuration
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Digest holds digest generation configuration
type Digest struct {
	Category              string `mapstructure:"category"`
	LookbackHours         int    `mapstructure:"lookback_hours"`
	PrimarySource         string `mapstructure:"primary_source"`
	NewsletterMaxChars    int    `mapstructure:"newsletter_max_chars"`
	MaxCandidates         int    `mapstructure:"max_candidates"`
	CandidateSummaryChars int    `mapstructure:"candidate_summary_chars"`
	Timezone              string `mapstructure:"timezone"`
}

// Ingest holds ingestion configuration
type Ingest struct {
	LookbackHours     int       `mapstructure:"lookback_hours"`
	MaxItemsPerSource int       `mapstructure:"max_items_per_source"`
	UserAgent         string    `mapstructure:"user_agent"`
	Timeout           string    `mapstructure:"timeout"`
	PrimaryIssuesURL  string    `mapstructure:"primary_issues_url"`
	PrimaryIssueCount int       `mapstructure:"primary_issue_count"`
	IssueTextMaxChars int       `mapstructure:"issue_text_max_chars"`
	Discovery         Discovery `mapstructure:"discovery"`
}

// Discovery holds search-API discovery configuration
type Discovery struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Query      string `mapstructure:"query"`
	NumResults int    `mapstructure:"num_results"`
}

// Database holds database configuration
type Database struct {
	Driver           string `mapstructure:"driver"`
	ConnectionString string `mapstructure:"connection_string"`
	DataDir          string `mapstructure:"data_dir"`
}

// Server holds HTTP server configuration
type Server struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	ReadTimeout     string   `mapstructure:"read_timeout"`
	WriteTimeout    string   `mapstructure:"write_timeout"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout"`
	CronSecret      string   `mapstructure:"cron_secret"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
}

// Email holds email configuration
type Email struct {
	SMTP        SMTPConfig `mapstructure:"smtp"`
	FromAddress string     `mapstructure:"from_address"`
	FromName    string     `mapstructure:"from_name"`
	BatchSize   int        `mapstructure:"batch_size"`
	Recipients  []string   `mapstructure:"recipients"`
	TestTo      string     `mapstructure:"test_to"`
}

// SMTPConfig holds SMTP configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Send holds send-step configuration
type Send struct {
	HITLDefault bool `mapstructure:"hitl_default"`
}

// Scheduler holds cron schedules for the daily jobs
type Scheduler struct {
	Ingest   string `mapstructure:"ingest"`
	Generate string `mapstructure:"generate"`
	Send     string `mapstructure:"send"`
	Timezone string `mapstructure:"timezone"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: ignoring .env: %v\n", err)
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".meridian")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	applyEnvAliases()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := postProcessConfig(cfg); err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the loaded configuration, loading defaults on first use.
// It panics if that load fails.
func Get() *Config {
	if globalConfig != nil {
		return globalConfig
	}
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("load configuration: %v", err))
	}
	return cfg
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.log_format", "json")

	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("ai.temperature", 0.2)
	viper.SetDefault("ai.openai.model", "gpt-4.1-mini")
	viper.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("ai.gemini.model", "gemini-flash-lite-latest")

	viper.SetDefault("digest.category", "fintech_banking")
	viper.SetDefault("digest.lookback_hours", 72)
	viper.SetDefault("digest.primary_source", "Smol AI Issues")
	viper.SetDefault("digest.newsletter_max_chars", 18000)
	viper.SetDefault("digest.max_candidates", 150)
	viper.SetDefault("digest.candidate_summary_chars", 350)
	viper.SetDefault("digest.timezone", "UTC")

	viper.SetDefault("ingest.lookback_hours", 72)
	viper.SetDefault("ingest.max_items_per_source", 75)
	viper.SetDefault("ingest.user_agent", "Mozilla/5.0 (compatible; MeridianBot/1.0)")
	viper.SetDefault("ingest.timeout", "20s")
	viper.SetDefault("ingest.primary_issues_url", "https://news.smol.ai/issues")
	viper.SetDefault("ingest.primary_issue_count", 3)
	viper.SetDefault("ingest.issue_text_max_chars", 14000)
	viper.SetDefault("ingest.discovery.base_url", "https://api.exa.ai")
	viper.SetDefault("ingest.discovery.query", "AI in banking, fintech and financial services")
	viper.SetDefault("ingest.discovery.num_results", 25)

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.data_dir", ".meridian")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "5m")
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("server.cors_origins", []string{"*"})

	viper.SetDefault("email.smtp.port", 587)
	viper.SetDefault("email.from_name", "Meridian")
	viper.SetDefault("email.batch_size", 100)

	viper.SetDefault("send.hitl_default", false)

	viper.SetDefault("scheduler.ingest", "0 5 * * *")
	viper.SetDefault("scheduler.generate", "30 5 * * *")
	viper.SetDefault("scheduler.send", "0 6 * * *")
	viper.SetDefault("scheduler.timezone", "UTC")
}

// envAliases maps config keys to the environment variables that may set
// them. The first non-empty variable wins.
var envAliases = []struct {
	key  string
	vars []string
}{
	{"ai.openai.api_key", []string{"OPENAI_API_KEY"}},
	{"ai.openai.model", []string{"OPENAI_MODEL"}},
	{"ai.openai.base_url", []string{"OPENAI_BASE_URL"}},
	{"ai.gemini.api_key", []string{"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY"}},
	{"ingest.lookback_hours", []string{"INGEST_LOOKBACK_HOURS"}},
	{"ingest.max_items_per_source", []string{"INGEST_MAX_ITEMS_PER_SOURCE"}},
	{"ingest.discovery.api_key", []string{"EXA_API_KEY"}},
	{"database.connection_string", []string{"DATABASE_URL", "POSTGRES_URL"}},
	{"server.cron_secret", []string{"CRON_SECRET"}},
	{"server.port", []string{"PORT"}},
	{"email.smtp.host", []string{"SMTP_HOST", "EMAIL_SMTP_HOST"}},
	{"email.smtp.username", []string{"SMTP_USERNAME", "EMAIL_USERNAME"}},
	{"email.smtp.password", []string{"SMTP_PASSWORD", "EMAIL_PASSWORD"}},
	{"email.from_address", []string{"EMAIL_FROM"}},
	{"email.test_to", []string{"EMAIL_TEST_TO"}},
	{"app.debug", []string{"DEBUG", "MERIDIAN_DEBUG"}},
}

func applyEnvAliases() {
	for _, alias := range envAliases {
		for _, name := range alias.vars {
			if value := os.Getenv(name); value != "" {
				viper.Set(alias.key, value)
				break
			}
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.Database.DataDir != "" {
		config.Database.DataDir = expandPath(config.Database.DataDir)
	}

	// A postgres URL in the environment implies the postgres driver
	if config.Database.ConnectionString != "" && config.Database.Driver == "sqlite" &&
		(strings.HasPrefix(config.Database.ConnectionString, "postgres://") ||
			strings.HasPrefix(config.Database.ConnectionString, "postgresql://")) {
		config.Database.Driver = "postgres"
	}

	durations := map[string]string{
		"ai.timeout":              config.AI.Timeout,
		"ingest.timeout":          config.Ingest.Timeout,
		"server.read_timeout":     config.Server.ReadTimeout,
		"server.write_timeout":    config.Server.WriteTimeout,
		"server.shutdown_timeout": config.Server.ShutdownTimeout,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	if _, err := time.LoadLocation(config.Digest.Timezone); err != nil {
		return fmt.Errorf("invalid digest.timezone %q: %w", config.Digest.Timezone, err)
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures the configuration is internally consistent. Missing
// LLM credentials are not an error: generation then relies on the fallback.
func validateConfig(config *Config) error {
	var problems []string

	switch config.AI.Provider {
	case "openai", "gemini", "none":
	default:
		problems = append(problems, fmt.Sprintf("Unknown AI provider: %s. Supported: openai, gemini, none", config.AI.Provider))
	}

	switch config.Database.Driver {
	case "postgres":
		if config.Database.ConnectionString == "" {
			problems = append(problems, "Postgres requires a connection string. Set DATABASE_URL or database.connection_string")
		}
	case "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("Unknown database driver: %s. Supported: postgres, sqlite", config.Database.Driver))
	}

	if config.Digest.LookbackHours <= 0 {
		problems = append(problems, "digest.lookback_hours must be positive")
	}
	if config.Ingest.LookbackHours <= 0 {
		problems = append(problems, "ingest.lookback_hours must be positive")
	}
	if config.Ingest.MaxItemsPerSource <= 0 {
		problems = append(problems, "ingest.max_items_per_source must be positive")
	}

	if config.Email.SMTP.Host != "" && config.Email.FromAddress == "" {
		problems = append(problems, "email.from_address is required when SMTP is configured")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(problems, "\n- "))
	}

	return nil
}

// Duration parses a validated duration string, returning fallback when empty.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// Location returns the digest timezone, defaulting to UTC.
func (d Digest) Location() *time.Location {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil || d.Timezone == "" {
		return time.UTC
	}
	return loc
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
