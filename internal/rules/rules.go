package rules

import (
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config carries the analyzer rule settings loaded from rules.yaml.
type Config struct {
	Sql          SqlNormConfig
	TableRules   TableMappingConfig
	Parser       ParserConfig
	excludedLower map[string]bool
}

type SqlNormConfig struct {
	NormalizeWhitespace bool   `yaml:"normalize_whitespace"`
	NormalizeCase       string `yaml:"normalize_case"`
	StripComments       bool   `yaml:"strip_comments"`
}

type TableRule struct {
	TableName string `yaml:"table_name"`
	Alias     string `yaml:"alias"`
	Action    string `yaml:"action"`
}

type TableMappingConfig struct {
	ExceptionRules []TableRule `yaml:"exception_rules"`
}

type ParserConfig struct {
	MaxErrorsPerFile int `yaml:"max_errors_per_file"`
}

type fileLayout struct {
	Analyzer struct {
		Sql          SqlNormConfig      `yaml:"sql"`
		TableMapping TableMappingConfig `yaml:"table_mapping"`
	} `yaml:"analyzer"`
	Parser ParserConfig `yaml:"parser"`
}

// Default returns the rule configuration used when no rules file is present.
// The dual pseudo-table is suppressed from table emission out of the box.
func Default() *Config {
	cfg := &Config{
		Sql: SqlNormConfig{
			NormalizeWhitespace: true,
			NormalizeCase:       "upper",
			StripComments:       true,
		},
		TableRules: TableMappingConfig{
			ExceptionRules: []TableRule{{TableName: "dual", Action: "exclude"}},
		},
		Parser: ParserConfig{MaxErrorsPerFile: 100},
	}
	cfg.index()
	return cfg
}

// Load reads a rules YAML file. A missing or malformed file falls back to
// the defaults with a warning.
func Load(path string, logger *slog.Logger) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		if logger != nil {
			logger.Warn("rules file not readable, using defaults",
				slog.String("path", path), slog.String("error", err.Error()))
		}
		return Default()
	}

	var layout fileLayout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		if logger != nil {
			logger.Warn("rules file malformed, using defaults",
				slog.String("path", path), slog.String("error", err.Error()))
		}
		return Default()
	}

	cfg := Default()
	if layout.Analyzer.Sql.NormalizeCase != "" {
		cfg.Sql = layout.Analyzer.Sql
	}
	if len(layout.Analyzer.TableMapping.ExceptionRules) > 0 {
		cfg.TableRules = layout.Analyzer.TableMapping
	}
	if layout.Parser.MaxErrorsPerFile > 0 {
		cfg.Parser = layout.Parser
	}
	cfg.index()
	return cfg
}

func (c *Config) index() {
	c.excludedLower = make(map[string]bool, len(c.TableRules.ExceptionRules))
	for _, rule := range c.TableRules.ExceptionRules {
		if rule.Action == "" || rule.Action == "exclude" {
			c.excludedLower[strings.ToLower(rule.TableName)] = true
		}
	}
}

// TableExcluded reports whether a canonical (lower-case) table name is
// suppressed from emission.
func (c *Config) TableExcluded(name string) bool {
	return c.excludedLower[strings.ToLower(name)]
}

// MaxErrorsPerFile returns the per-file parse error cap.
func (c *Config) MaxErrorsPerFile() int {
	if c.Parser.MaxErrorsPerFile <= 0 {
		return 100
	}
	return c.Parser.MaxErrorsPerFile
}
