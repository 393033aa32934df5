package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/prcritic/internal/diff"
	"github.com/dshills/prcritic/internal/review"
)

// Config represents the prcritic configuration.
type Config struct {
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model,omitempty"`
	Compare      []string `yaml:"compare,omitempty"`
	Format       string   `yaml:"format"`
	FailOn       string   `yaml:"failOn"`
	ContextLines int      `yaml:"contextLines"`
	RulesFile    string   `yaml:"rulesFile,omitempty"`

	Review  ReviewSettings `yaml:"review"`
	GitHub  GitHubConfig   `yaml:"github"`
	Privacy PrivacyConfig  `yaml:"privacy"`
	Log     LogConfig      `yaml:"log"`
}

// ReviewSettings mirror review.Config.
type ReviewSettings struct {
	Include               []string `yaml:"include,omitempty"`
	Exclude               []string `yaml:"exclude"`
	MaxFileBytes          int      `yaml:"maxFileBytes"`
	OversizePolicy        string   `yaml:"oversizePolicy"`
	ReviewTestFiles       bool     `yaml:"reviewTestFiles"`
	ReviewDocs            bool     `yaml:"reviewDocs"`
	MinLineChanges        int      `yaml:"minLineChanges"`
	MaxFilesPerReview     int      `yaml:"maxFilesPerReview"`
	MaxPromptSize         int      `yaml:"maxPromptSize"`
	MaxConcurrentRequests int      `yaml:"maxConcurrentRequests"`
	MaxRetries            int      `yaml:"maxRetries"`
	BackoffBaseMS         int      `yaml:"backoffBaseMs"`
	ReviewDeadlineMS      int      `yaml:"reviewDeadlineMs"`
	RequestsPerMinute     int      `yaml:"requestsPerMinute"`
	MaxFindings           int      `yaml:"maxFindings"`
	SeverityThreshold     string   `yaml:"severityThreshold"`
	Mode                  string   `yaml:"mode"`
	MaxTokens             int      `yaml:"maxTokens"`
	Temperature           float64  `yaml:"temperature"`
	SystemPrompt          string   `yaml:"systemPrompt,omitempty"`
}

// GitHubConfig selects the repository reviews are fetched from and
// published to. Empty owner and repo are detected from the origin remote.
type GitHubConfig struct {
	Owner       string `yaml:"owner,omitempty"`
	Repo        string `yaml:"repo,omitempty"`
	APIURL      string `yaml:"apiUrl,omitempty"`
	CommentOnly bool   `yaml:"commentOnly"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `yaml:"redactSecrets"`
	RedactPaths   []string `yaml:"redactPaths,omitempty"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	rc := review.DefaultConfig()
	return Config{
		Provider:     "anthropic",
		Format:       "text",
		FailOn:       "none",
		ContextLines: 3,
		Review: ReviewSettings{
			Exclude:               rc.ExcludePatterns,
			MaxFileBytes:          rc.MaxFileBytes,
			OversizePolicy:        string(rc.OversizePolicy),
			ReviewTestFiles:       !rc.SkipTestFiles,
			ReviewDocs:            !rc.SkipDocs,
			MinLineChanges:        rc.MinLineChanges,
			MaxFilesPerReview:     rc.MaxFilesPerReview,
			MaxPromptSize:         rc.MaxPromptSize,
			MaxConcurrentRequests: rc.MaxConcurrentRequests,
			MaxRetries:            rc.MaxRetries,
			BackoffBaseMS:         rc.BackoffBaseMS,
			ReviewDeadlineMS:      rc.ReviewDeadlineMS,
			MaxFindings:           50,
			SeverityThreshold:     string(rc.SeverityThreshold),
			Mode:                  string(rc.Mode),
			MaxTokens:             rc.MaxTokens,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: rc.RedactSecrets,
			RedactPaths:   rc.RedactPaths,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// ReviewConfig converts the settings into the orchestrator's configuration.
func (c Config) ReviewConfig() review.Config {
	r := c.Review
	return review.Config{
		ExcludePatterns:       r.Exclude,
		IncludePatterns:       r.Include,
		MaxFileBytes:          r.MaxFileBytes,
		OversizePolicy:        diff.OversizePolicy(r.OversizePolicy),
		SkipTestFiles:         !r.ReviewTestFiles,
		SkipDocs:              !r.ReviewDocs,
		MinLineChanges:        r.MinLineChanges,
		MaxFilesPerReview:     r.MaxFilesPerReview,
		MaxPromptSize:         r.MaxPromptSize,
		MaxConcurrentRequests: r.MaxConcurrentRequests,
		MaxRetries:            r.MaxRetries,
		BackoffBaseMS:         r.BackoffBaseMS,
		ReviewDeadlineMS:      r.ReviewDeadlineMS,
		SystemPrompt:          r.SystemPrompt,
		RequestsPerMinute:     r.RequestsPerMinute,
		MaxFindings:           r.MaxFindings,
		SeverityThreshold:     review.Severity(strings.ToLower(r.SeverityThreshold)),
		Mode:                  review.Mode(strings.ToLower(r.Mode)),
		MaxTokens:             r.MaxTokens,
		Temperature:           r.Temperature,
		RedactSecrets:         c.Privacy.RedactSecrets,
		RedactPaths:           c.Privacy.RedactPaths,
	}
}

// ConfigDir returns the platform-appropriate config directory for prcritic.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "prcritic"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "prcritic"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "prcritic"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "prcritic"), nil
	default:
		return filepath.Join(home, ".config", "prcritic"), nil
	}
}

// ConfigPath returns the config file path. PRCRITIC_CONFIG overrides the
// platform default.
func ConfigPath() (string, error) {
	if p := os.Getenv("PRCRITIC_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadFile decodes the config file at path over cfg. Keys absent from the
// file keep cfg's values. A missing file is not an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags, keyed like SetField; empty values
// are ignored.
func Load(overrides map[string]string) (Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	if err := LoadFile(path, &cfg); err != nil {
		return Config{}, err
	}
	mergeEnv(&cfg)
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKeys maps environment variables to SetField keys.
var envKeys = map[string]string{
	"PRCRITIC_PROVIDER":                "provider",
	"PRCRITIC_MODEL":                   "model",
	"PRCRITIC_FORMAT":                  "format",
	"PRCRITIC_FAIL_ON":                 "failOn",
	"PRCRITIC_CONTEXT_LINES":           "contextLines",
	"PRCRITIC_RULES_FILE":              "rulesFile",
	"PRCRITIC_MAX_FINDINGS":            "maxFindings",
	"PRCRITIC_MAX_FILES_PER_REVIEW":    "maxFilesPerReview",
	"PRCRITIC_MIN_LINE_CHANGES":        "minLineChanges",
	"PRCRITIC_REVIEW_TEST_FILES":       "reviewTestFiles",
	"PRCRITIC_REVIEW_DOCS":             "reviewDocs",
	"PRCRITIC_MAX_PROMPT_SIZE":         "maxPromptSize",
	"PRCRITIC_MAX_CONCURRENT_REQUESTS": "maxConcurrentRequests",
	"PRCRITIC_MAX_RETRIES":             "maxRetries",
	"PRCRITIC_REVIEW_DEADLINE_MS":      "reviewDeadlineMs",
	"PRCRITIC_REQUESTS_PER_MINUTE":     "requestsPerMinute",
	"PRCRITIC_SEVERITY_THRESHOLD":      "severityThreshold",
	"PRCRITIC_MODE":                    "mode",
	"PRCRITIC_LOG_LEVEL":               "log.level",
	"PRCRITIC_LOG_FORMAT":              "log.format",
	"PRCRITIC_GITHUB_OWNER":            "github.owner",
	"PRCRITIC_GITHUB_REPO":             "github.repo",
}

// mergeEnv applies PRCRITIC_* variables. Values that do not parse are
// ignored.
func mergeEnv(cfg *Config) {
	for env, key := range envKeys {
		if v := os.Getenv(env); v != "" {
			_ = SetField(cfg, key, v)
		}
	}
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	for key, v := range overrides {
		if v == "" {
			continue
		}
		if err := SetField(cfg, key, v); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists the keys accepted by SetField.
func Keys() []string {
	return []string{
		"provider", "model", "format", "failOn", "contextLines", "rulesFile",
		"maxFindings", "maxFilesPerReview", "minLineChanges", "reviewTestFiles",
		"reviewDocs", "maxPromptSize", "maxConcurrentRequests", "maxRetries",
		"backoffBaseMs", "reviewDeadlineMs", "requestsPerMinute",
		"severityThreshold", "mode", "maxTokens", "temperature",
		"redactSecrets", "github.owner", "github.repo", "github.apiUrl",
		"github.commentOnly", "log.level", "log.format",
	}
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Provider = value
	case "model":
		cfg.Model = value
	case "format":
		cfg.Format = value
	case "failOn":
		cfg.FailOn = value
	case "rulesFile":
		cfg.RulesFile = value
	case "severityThreshold":
		cfg.Review.SeverityThreshold = value
	case "mode":
		cfg.Review.Mode = value
	case "github.owner":
		cfg.GitHub.Owner = value
	case "github.repo":
		cfg.GitHub.Repo = value
	case "github.apiUrl":
		cfg.GitHub.APIURL = value
	case "log.level":
		cfg.Log.Level = value
	case "log.format":
		cfg.Log.Format = value
	case "contextLines":
		return setInt(&cfg.ContextLines, key, value)
	case "maxFindings":
		return setInt(&cfg.Review.MaxFindings, key, value)
	case "maxFilesPerReview":
		return setInt(&cfg.Review.MaxFilesPerReview, key, value)
	case "minLineChanges":
		return setInt(&cfg.Review.MinLineChanges, key, value)
	case "reviewTestFiles":
		return setBool(&cfg.Review.ReviewTestFiles, key, value)
	case "reviewDocs":
		return setBool(&cfg.Review.ReviewDocs, key, value)
	case "maxPromptSize":
		return setInt(&cfg.Review.MaxPromptSize, key, value)
	case "maxConcurrentRequests":
		return setInt(&cfg.Review.MaxConcurrentRequests, key, value)
	case "maxRetries":
		return setInt(&cfg.Review.MaxRetries, key, value)
	case "backoffBaseMs":
		return setInt(&cfg.Review.BackoffBaseMS, key, value)
	case "reviewDeadlineMs":
		return setInt(&cfg.Review.ReviewDeadlineMS, key, value)
	case "requestsPerMinute":
		return setInt(&cfg.Review.RequestsPerMinute, key, value)
	case "maxTokens":
		return setInt(&cfg.Review.MaxTokens, key, value)
	case "temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("temperature must be a number: %w", err)
		}
		cfg.Review.Temperature = f
	case "redactSecrets":
		return setBool(&cfg.Privacy.RedactSecrets, key, value)
	case "github.commentOnly":
		return setBool(&cfg.GitHub.CommentOnly, key, value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be true or false: %w", key, err)
	}
	*dst = b
	return nil
}
