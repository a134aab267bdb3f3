package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v2"
)

type SourceConfig struct {
	Repositories []Repository `yaml:"repositories"`
}

// Repository is a named source root to migrate.
type Repository struct {
	Name     string   `yaml:"name"`
	Path     string   `yaml:"path"`
	Exclude  []string `yaml:"exclude,omitempty"` // glob patterns matched against paths relative to Path
	Disabled bool     `yaml:"disabled,omitempty"`
}

type App struct {
	Port      int    `yaml:"port"`
	Workers   int    `yaml:"workers,omitempty"`    // files queried in parallel (default: number of CPUs)
	DebugHTTP bool   `yaml:"debug_http,omitempty"` // Log full request/response bodies
	LogLevel  string `yaml:"log_level,omitempty"`  // debug, info, warn, error (default: info)
}

// OutputMode is how a run reports changed files.
type OutputMode string

const (
	OutputText  OutputMode = "text"
	OutputEdits OutputMode = "edits"
)

type MigrationConfig struct {
	// Cleanups lists the enabled cleanup ids. Empty means the catalog defaults.
	Cleanups []string   `yaml:"cleanups,omitempty"`
	Output   OutputMode `yaml:"output,omitempty"`
	DryRun   bool       `yaml:"dry_run,omitempty"`
	Exclude  []string   `yaml:"exclude,omitempty"`
	// MaxFileBytes skips larger files (default: 4 MiB)
	MaxFileBytes int64 `yaml:"max_file_bytes,omitempty"`
}

// GetDefaults returns MigrationConfig with default values applied
func (c *MigrationConfig) GetDefaults() MigrationConfig {
	result := *c
	if result.Output == "" {
		result.Output = OutputText
	}
	if result.MaxFileBytes == 0 {
		result.MaxFileBytes = 4 << 20
	}
	return result
}

// LedgerConfig configures the bloom filter of files already migrated with a given set of
// cleanups.
type LedgerConfig struct {
	Enabled           bool    `yaml:"enabled"`
	StorageDir        string  `yaml:"storage_dir"`
	ExpectedItems     uint    `yaml:"expected_items"`
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
}

// GetDefaults returns LedgerConfig with default values applied
func (c *LedgerConfig) GetDefaults() LedgerConfig {
	result := *c
	if result.StorageDir == "" {
		result.StorageDir = ".junitmig"
	}
	if result.ExpectedItems == 0 {
		result.ExpectedItems = 100000
	}
	if result.FalsePositiveRate == 0 {
		result.FalsePositiveRate = 0.001
	}
	return result
}

type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Migration MigrationConfig `yaml:"migration"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	App       App             `yaml:"app"`
}

// expandEnvVars expands environment variables in the given string
// Supports formats: ${VAR}, $VAR, ${VAR:-default}
func expandEnvVars(s string) string {
	reBraces := regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)
	s = reBraces.ReplaceAllStringFunc(s, func(match string) string {
		parts := reBraces.FindStringSubmatch(match)
		if len(parts) >= 2 {
			varName := parts[1]
			defaultValue := ""
			if len(parts) >= 4 {
				defaultValue = parts[3]
			}
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return defaultValue
		}
		return match
	})

	reSimple := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = reSimple.ReplaceAllStringFunc(s, func(match string) string {
		parts := reSimple.FindStringSubmatch(match)
		if len(parts) >= 2 {
			if val, ok := os.LookupEnv(parts[1]); ok {
				return val
			}
		}
		return match
	})

	return s
}

// LoadConfig reads a yaml config file. A missing path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses yaml config data after expanding environment variables.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) GetRepository(name string) (*Repository, error) {
	for _, repo := range c.Source.Repositories {
		if repo.Name == name {
			return &repo, nil
		}
	}
	return nil, fmt.Errorf("repository not found: %s", name)
}

func validate(cfg *Config) error {
	switch cfg.Migration.Output {
	case "", OutputText, OutputEdits:
	default:
		return fmt.Errorf("migration.output must be %q or %q, got %q", OutputText, OutputEdits, cfg.Migration.Output)
	}
	if r := cfg.Ledger.FalsePositiveRate; r < 0 || r >= 1 {
		return fmt.Errorf("ledger.false_positive_rate must be in [0, 1), got %v", r)
	}
	seen := make(map[string]bool)
	for _, repo := range cfg.Source.Repositories {
		if repo.Name == "" || repo.Path == "" {
			return fmt.Errorf("repository entries need a name and a path")
		}
		if seen[repo.Name] {
			return fmt.Errorf("repository '%s' is configured twice", repo.Name)
		}
		seen[repo.Name] = true
	}
	return nil
}
