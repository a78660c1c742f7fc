package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds runtime tunables for the database access layer. All fields
// have working defaults; deployments override them through an optional YAML
// file with ${VAR} environment substitution.
type Settings struct {
	// QueryTimeout bounds each query at the backend level.
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout"`
	// SampleSize is the default row cap for table data extraction.
	SampleSize int `yaml:"sample_size" json:"sample_size"`

	// Retry controls transient-failure retries on connection creation and
	// the lowest-level query-execute-and-fetch step.
	Retry RetrySettings `yaml:"retry" json:"retry"`

	// PoolSize bounds the SQL Server connection cache.
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// Log configures the global logger.
	Log LogSettings `yaml:"log" json:"log"`
}

// RetrySettings configures bounded exponential backoff.
type RetrySettings struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// LogSettings configures logging output.
type LogSettings struct {
	Level    string `yaml:"level" json:"level"`
	Encoding string `yaml:"encoding" json:"encoding"`
}

// DefaultSettings returns production defaults.
func DefaultSettings() *Settings {
	return &Settings{
		QueryTimeout: 300 * time.Second,
		SampleSize:   5000,
		Retry: RetrySettings{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		PoolSize: 5,
		Log: LogSettings{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Validate checks settings for correctness.
func (s *Settings) Validate() error {
	if s.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive")
	}
	if s.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive")
	}
	if s.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if s.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1")
	}
	if s.PoolSize < 0 {
		return fmt.Errorf("pool_size cannot be negative")
	}
	return nil
}

// LoadSettings loads settings from a YAML file, applying defaults for any
// field the file omits. A missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator supplied
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	content := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(content), settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		content = content[:start] + os.Getenv(varName) + content[end+1:]
	}
	return content
}
