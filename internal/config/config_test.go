package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/prcritic/internal/diff"
	"github.com/dshills/prcritic/internal/review"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Provider != "anthropic" {
		t.Errorf("Default provider = %q, want %q", cfg.Provider, "anthropic")
	}
	if cfg.Format != "text" {
		t.Errorf("Default format = %q, want %q", cfg.Format, "text")
	}
	if cfg.FailOn != "none" {
		t.Errorf("Default failOn = %q, want %q", cfg.FailOn, "none")
	}
	if cfg.Review.MaxFindings != 50 {
		t.Errorf("Default maxFindings = %d, want 50", cfg.Review.MaxFindings)
	}
	if cfg.ContextLines != 3 {
		t.Errorf("Default contextLines = %d, want 3", cfg.ContextLines)
	}
	if !cfg.Privacy.RedactSecrets {
		t.Error("Default redactSecrets should be true")
	}
	if err := cfg.ReviewConfig().Validate(); err != nil {
		t.Errorf("default review config is invalid: %v", err)
	}
}

func TestReviewConfig(t *testing.T) {
	cfg := Default()
	cfg.Review.Include = []string{"src/**"}
	cfg.Review.OversizePolicy = "exclude"
	cfg.Review.SeverityThreshold = "HIGH"
	cfg.Review.Mode = "Security"
	cfg.Review.RequestsPerMinute = 30
	cfg.Privacy.RedactSecrets = false

	rc := cfg.ReviewConfig()
	assert.Equal(t, []string{"src/**"}, rc.IncludePatterns)
	assert.Equal(t, diff.OversizeExclude, rc.OversizePolicy)
	assert.Equal(t, review.SeverityHigh, rc.SeverityThreshold)
	assert.Equal(t, review.ModeSecurity, rc.Mode)
	assert.Equal(t, 30, rc.RequestsPerMinute)
	assert.False(t, rc.RedactSecrets)
	assert.Equal(t, cfg.Review.MaxConcurrentRequests, rc.MaxConcurrentRequests)
	require.NoError(t, rc.Validate())
}

func TestReviewConfig_FileFilters(t *testing.T) {
	rc := Default().ReviewConfig()
	assert.False(t, rc.SkipTestFiles)
	assert.False(t, rc.SkipDocs)
	assert.Equal(t, 1, rc.MinLineChanges)
	assert.Equal(t, 50, rc.MaxFilesPerReview)

	cfg := Default()
	require.NoError(t, SetField(&cfg, "reviewTestFiles", "false"))
	require.NoError(t, SetField(&cfg, "reviewDocs", "false"))
	require.NoError(t, SetField(&cfg, "minLineChanges", "3"))
	require.NoError(t, SetField(&cfg, "maxFilesPerReview", "10"))

	opts := cfg.ReviewConfig().ParseOptions()
	assert.True(t, opts.SkipTests)
	assert.True(t, opts.SkipDocs)
	assert.Equal(t, 3, opts.MinChanges)
	assert.Equal(t, 10, opts.MaxFiles)
}

func TestMergeEnv(t *testing.T) {
	t.Setenv("PRCRITIC_PROVIDER", "openai")
	t.Setenv("PRCRITIC_MODEL", "gpt-4o")
	t.Setenv("PRCRITIC_FAIL_ON", "high")
	t.Setenv("PRCRITIC_FORMAT", "json")
	t.Setenv("PRCRITIC_MAX_FINDINGS", "10")
	t.Setenv("PRCRITIC_CONTEXT_LINES", "5")
	t.Setenv("PRCRITIC_LOG_LEVEL", "debug")
	t.Setenv("PRCRITIC_GITHUB_OWNER", "octo")

	cfg := Default()
	mergeEnv(&cfg)

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "high", cfg.FailOn)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, 10, cfg.Review.MaxFindings)
	assert.Equal(t, 5, cfg.ContextLines)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "octo", cfg.GitHub.Owner)
}

func TestMergeEnv_InvalidNumber(t *testing.T) {
	t.Setenv("PRCRITIC_MAX_FINDINGS", "not-a-number")
	t.Setenv("PRCRITIC_CONTEXT_LINES", "abc")

	cfg := Default()
	mergeEnv(&cfg)
	if cfg.Review.MaxFindings != 50 {
		t.Errorf("MaxFindings = %d, want default 50 for invalid env", cfg.Review.MaxFindings)
	}
	if cfg.ContextLines != 3 {
		t.Errorf("ContextLines = %d, want default 3 for invalid env", cfg.ContextLines)
	}
}

func TestMergeOverrides(t *testing.T) {
	cfg := Default()
	err := mergeOverrides(&cfg, map[string]string{
		"provider":    "gemini",
		"maxFindings": "5",
		"model":       "",
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, 5, cfg.Review.MaxFindings)
	assert.Empty(t, cfg.Model, "empty overrides are ignored")

	require.NoError(t, mergeOverrides(&cfg, nil))
	assert.Error(t, mergeOverrides(&cfg, map[string]string{"maxRetries": "many"}))
}

func TestSetField(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(Config) bool
	}{
		{"provider", "ollama", func(c Config) bool { return c.Provider == "ollama" }},
		{"rulesFile", "rules.yaml", func(c Config) bool { return c.RulesFile == "rules.yaml" }},
		{"maxConcurrentRequests", "8", func(c Config) bool { return c.Review.MaxConcurrentRequests == 8 }},
		{"reviewDeadlineMs", "0", func(c Config) bool { return c.Review.ReviewDeadlineMS == 0 }},
		{"temperature", "0.2", func(c Config) bool { return c.Review.Temperature == 0.2 }},
		{"redactSecrets", "false", func(c Config) bool { return !c.Privacy.RedactSecrets }},
		{"github.commentOnly", "true", func(c Config) bool { return c.GitHub.CommentOnly }},
		{"github.apiUrl", "https://ghe.example.com/api/v3", func(c Config) bool {
			return c.GitHub.APIURL == "https://ghe.example.com/api/v3"
		}},
		{"log.format", "json", func(c Config) bool { return c.Log.Format == "json" }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, SetField(&cfg, tt.key, tt.value))
			assert.True(t, tt.check(cfg), "%s=%s not applied", tt.key, tt.value)
		})
	}
}

func TestSetField_Errors(t *testing.T) {
	cfg := Default()
	assert.ErrorContains(t, SetField(&cfg, "nonexistent", "value"), "unknown config key")
	assert.ErrorContains(t, SetField(&cfg, "maxFindings", "abc"), "must be an integer")
	assert.ErrorContains(t, SetField(&cfg, "redactSecrets", "maybe"), "true or false")
	assert.ErrorContains(t, SetField(&cfg, "temperature", "warm"), "must be a number")
}

func TestKeysAreSettable(t *testing.T) {
	samples := map[string]string{
		"redactSecrets":      "true",
		"github.commentOnly": "false",
		"temperature":        "0.5",
	}
	for _, key := range Keys() {
		v, ok := samples[key]
		if !ok {
			v = "1"
		}
		cfg := Default()
		assert.NoError(t, SetField(&cfg, key, v), key)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("PRCRITIC_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	path, err := ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg-test", "prcritic", "config.yaml"), path)

	t.Setenv("PRCRITIC_CONFIG", "/etc/prcritic.yaml")
	path, err = ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/prcritic.yaml", path)
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Provider = "openai"
	cfg.Model = "gpt-4o"
	cfg.Review.MaxFindings = 25
	cfg.Privacy.RedactSecrets = false
	require.NoError(t, Save(path, cfg))

	loaded := Default()
	require.NoError(t, LoadFile(path, &loaded))
	assert.Equal(t, "openai", loaded.Provider)
	assert.Equal(t, "gpt-4o", loaded.Model)
	assert.Equal(t, 25, loaded.Review.MaxFindings)
	assert.False(t, loaded.Privacy.RedactSecrets, "explicit false survives the merge")
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "provider: gemini\nreview:\n  maxConcurrentRequests: 2\n  exclude: [\"gen/**\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := Default()
	require.NoError(t, LoadFile(path, &cfg))
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, 2, cfg.Review.MaxConcurrentRequests)
	assert.Equal(t, []string{"gen/**"}, cfg.Review.Exclude)
	assert.Equal(t, Default().Review.MaxRetries, cfg.Review.MaxRetries)
	assert.True(t, cfg.Privacy.RedactSecrets)
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := Default()
	require.NoError(t, LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("review: [unclosed"), 0o644))
	assert.ErrorContains(t, LoadFile(path, &cfg), "parsing config file")
}

func TestLoad_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: gemini\nmodel: file-model\nformat: markdown\n"), 0o644))
	t.Setenv("PRCRITIC_CONFIG", path)
	t.Setenv("PRCRITIC_MODEL", "env-model")
	t.Setenv("PRCRITIC_FORMAT", "json")

	cfg, err := Load(map[string]string{"format": "sarif"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider, "file beats default")
	assert.Equal(t, "env-model", cfg.Model, "env beats file")
	assert.Equal(t, "sarif", cfg.Format, "flag beats env")
	assert.Equal(t, 3, cfg.ContextLines, "unset keys keep defaults")
}
