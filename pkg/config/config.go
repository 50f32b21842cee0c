// Package config loads dartrefs settings from TOML, YAML or JSON files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/panbanda/dartrefs/pkg/models"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration options for dartrefs.
type Config struct {
	// Analysis settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis"`

	// Framework conventions for exemptions
	Framework FrameworkConfig `koanf:"framework" toml:"framework"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`

	// Cleanup settings
	Cleanup CleanupConfig `koanf:"cleanup" toml:"cleanup"`
}

// AnalysisConfig controls what is collected and how names are resolved.
type AnalysisConfig struct {
	Functions       bool   `koanf:"functions" toml:"functions"`
	DuplicatePolicy string `koanf:"duplicate_policy" toml:"duplicate_policy"`
	Workers         int    `koanf:"workers" toml:"workers"`
	MaxFileSize     int64  `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = unlimited
	Trace           bool   `koanf:"trace" toml:"trace"`
}

// FrameworkConfig names the framework conventions that exempt declarations.
type FrameworkConfig struct {
	StatefulBases         []string `koanf:"stateful_bases" toml:"stateful_bases"`
	ContainerBases        []string `koanf:"container_bases" toml:"container_bases"`
	LifecycleMethods      []string `koanf:"lifecycle_methods" toml:"lifecycle_methods"`
	EntryPointAnnotations []string `koanf:"entry_point_annotations" toml:"entry_point_annotations"`
	EntryFunctions        []string `koanf:"entry_functions" toml:"entry_functions"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// CleanupConfig controls the deletion workflow.
type CleanupConfig struct {
	Confirm bool `koanf:"confirm" toml:"confirm"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Functions:       true,
			DuplicatePolicy: string(models.DuplicateLastWins),
		},
		Framework: FrameworkConfig{
			StatefulBases:  []string{"State"},
			ContainerBases: []string{"StatelessWidget", "StatefulWidget"},
			LifecycleMethods: []string{
				"initState",
				"dispose",
				"build",
				"didChangeDependencies",
				"didUpdateWidget",
				"deactivate",
				"activate",
				"reassemble",
			},
			EntryPointAnnotations: []string{
				"@pragma('vm:entry-point')",
				`@pragma("vm:entry-point")`,
			},
			EntryFunctions: []string{"main"},
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.g.dart",
				"*.freezed.dart",
				"*.mocks.dart",
				"*.gr.dart",
				"*.config.dart",
			},
			Dirs: []string{
				".dart_tool",
				".pub-cache",
				".git",
				".dartrefs",
				"build",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".dartrefs/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
		Cleanup: CleanupConfig{
			Confirm: true,
		},
	}
}

// ValidFormats lists the accepted output formats.
var ValidFormats = []string{"text", "json", "markdown", "toon"}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	var problems []string
	if _, err := models.ParseDuplicatePolicy(c.Analysis.DuplicatePolicy); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Analysis.Workers < 0 {
		problems = append(problems, fmt.Sprintf("analysis.workers must be >= 0, got %d", c.Analysis.Workers))
	}
	if c.Analysis.MaxFileSize < 0 {
		problems = append(problems, fmt.Sprintf("analysis.max_file_size must be >= 0, got %d", c.Analysis.MaxFileSize))
	}
	if c.Cache.TTL < 0 {
		problems = append(problems, fmt.Sprintf("cache.ttl must be >= 0, got %d", c.Cache.TTL))
	}
	if c.Cache.Enabled && strings.TrimSpace(c.Cache.Dir) == "" {
		problems = append(problems, "cache.dir is required when the cache is enabled")
	}
	if !validFormat(c.Output.Format) {
		problems = append(problems, fmt.Sprintf("output.format %q is not one of %s", c.Output.Format, strings.Join(ValidFormats, ", ")))
	}
	for _, pattern := range c.Exclude.Patterns {
		if _, err := glob.Compile(strings.TrimPrefix(pattern, "/"), '/'); err != nil {
			problems = append(problems, fmt.Sprintf("exclude.patterns %q: %v", pattern, err))
		}
	}
	if len(c.Framework.EntryFunctions) == 0 && len(c.Framework.EntryPointAnnotations) == 0 {
		problems = append(problems, "framework needs at least one entry function or entry point annotation")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func validFormat(f string) bool {
	for _, v := range ValidFormats {
		if f == v {
			return true
		}
	}
	return false
}

// Load loads configuration from a file, layered over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		// Default to TOML for extensionless files
		parser = toml.Parser()
	}

	// Load the config file
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	// Unmarshal into config struct
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return cfg, nil
}

// configNames are the file names searched for, in priority order.
var configNames = []string{
	"dartrefs.toml",
	"dartrefs.yaml",
	"dartrefs.yml",
	"dartrefs.json",
	".dartrefs.toml",
	".dartrefs.yaml",
	".dartrefs.yml",
	".dartrefs.json",
}

// Find returns the first config file found in dir or dir/.dartrefs.
func Find(dir string) (string, bool) {
	for _, d := range []string{dir, filepath.Join(dir, ".dartrefs")} {
		for _, name := range configNames {
			path := filepath.Join(d, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}
	return "", false
}

// LoadResult is a loaded configuration and the file it came from.
// Source is empty when the defaults were used.
type LoadResult struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
	dir  string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads an explicit config file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchDir searches dir instead of the working directory.
func WithSearchDir(dir string) LoadOption {
	return func(o *loadOptions) {
		o.dir = dir
	}
}

// LoadConfig loads and validates the configuration. An explicit path must
// exist; otherwise the standard locations are searched and the defaults
// are used when nothing is found.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := loadOptions{dir: "."}
	for _, opt := range opts {
		opt(&o)
	}

	path := o.path
	if path == "" {
		found, ok := Find(o.dir)
		if !ok {
			return &LoadResult{Config: DefaultConfig()}, nil
		}
		path = found
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Source: path}, nil
}

// ShouldExclude reports whether a path relative to the project root is
// excluded by the directory names or the file patterns. Patterns without a
// slash match the base name at any depth; others match the whole relative
// path, with ** spanning directories.
func (c *Config) ShouldExclude(rel string) bool {
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")
	for _, part := range parts[:len(parts)-1] {
		if slices.Contains(c.Exclude.Dirs, part) {
			return true
		}
	}

	base := parts[len(parts)-1]
	for _, pattern := range c.Exclude.Patterns {
		pattern = strings.TrimPrefix(pattern, "/")
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			continue
		}
		subject := rel
		if !strings.Contains(pattern, "/") {
			subject = base
		}
		if g.Match(subject) {
			return true
		}
	}
	return false
}
