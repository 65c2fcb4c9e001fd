// Package config loads and validates the bot configuration from a
// YAML file and AZDO_REVIEW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// OrganizationURL is the Azure DevOps organization root, e.g.
	// https://dev.azure.com/contoso.
	OrganizationURL     string   `mapstructure:"organization_url"`
	Project             string   `mapstructure:"project"`
	PersonalAccessToken string   `mapstructure:"personal_access_token"`
	Repositories        []string `mapstructure:"repositories"`

	PollInterval time.Duration `mapstructure:"poll_interval"`
	LedgerPath   string        `mapstructure:"ledger_path"`
	HistoryPath  string        `mapstructure:"history_path"`

	Reviewer ReviewerConfig `mapstructure:"reviewer"`
	Review   ReviewConfig   `mapstructure:"review"`
}

type ReviewerConfig struct {
	// Command is the reviewer command line; $PROMPT and $WORKSPACE
	// placeholders are substituted at invocation time.
	Command        string        `mapstructure:"command"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

type ReviewConfig struct {
	MaxFileBytes       int64    `mapstructure:"max_file_bytes"`
	MaxCommentsPerFile int      `mapstructure:"max_comments_per_file"`
	ExcludeGlobs       []string `mapstructure:"exclude_globs"`
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so environment-only values
	// survive Unmarshal.
	v.SetDefault("organization_url", "")
	v.SetDefault("project", "")
	v.SetDefault("personal_access_token", "")
	v.SetDefault("repositories", []string{})
	v.SetDefault("history_path", "")
	v.SetDefault("review.exclude_globs", []string{})
	v.SetDefault("poll_interval", 5*time.Minute)
	v.SetDefault("ledger_path", "review-ledger.json")
	v.SetDefault("reviewer.command", "claude -p --output-format json --add-dir $WORKSPACE")
	v.SetDefault("reviewer.timeout", 10*time.Minute)
	v.SetDefault("reviewer.max_attempts", 3)
	v.SetDefault("reviewer.retry_base_delay", time.Second)
	v.SetDefault("review.max_file_bytes", 256*1024)
	v.SetDefault("review.max_comments_per_file", 10)
}

// Load reads the configuration. An empty path searches the working
// directory for azdo-review-bot.yaml; a missing file is fine as long
// as the environment supplies the required values.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("AZDO_REVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("azdo-review-bot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate reports every missing required field at once so a broken
// deployment can be fixed in one pass.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.OrganizationURL) == "" {
		missing = append(missing, "organization_url (AZDO_REVIEW_ORGANIZATION_URL)")
	}
	if strings.TrimSpace(c.Project) == "" {
		missing = append(missing, "project (AZDO_REVIEW_PROJECT)")
	}
	if strings.TrimSpace(c.PersonalAccessToken) == "" {
		missing = append(missing, "personal_access_token (AZDO_REVIEW_PERSONAL_ACCESS_TOKEN)")
	}
	if len(c.Repositories) == 0 {
		missing = append(missing, "repositories (at least one)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if strings.TrimSpace(c.Reviewer.Command) == "" {
		return fmt.Errorf("reviewer.command must not be empty")
	}
	return nil
}
