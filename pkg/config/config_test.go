package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panbanda/dartrefs/pkg/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	// Check analysis defaults
	if !cfg.Analysis.Functions {
		t.Error("Analysis.Functions should be true by default")
	}
	if cfg.Analysis.DuplicatePolicy != string(models.DuplicateLastWins) {
		t.Errorf("Analysis.DuplicatePolicy = %s, want last-wins", cfg.Analysis.DuplicatePolicy)
	}

	// Check framework defaults
	if len(cfg.Framework.StatefulBases) != 1 || cfg.Framework.StatefulBases[0] != "State" {
		t.Errorf("Framework.StatefulBases = %v, want [State]", cfg.Framework.StatefulBases)
	}
	if len(cfg.Framework.LifecycleMethods) != 8 {
		t.Errorf("Framework.LifecycleMethods has %d entries, want 8", len(cfg.Framework.LifecycleMethods))
	}

	// Check exclude defaults
	if !cfg.Exclude.Gitignore {
		t.Error("Exclude.Gitignore should be true by default")
	}
	if len(cfg.Exclude.Dirs) == 0 {
		t.Error("Exclude.Dirs should have default values")
	}

	// Check cache defaults
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be true by default")
	}
	if cfg.Cache.TTL != 24 {
		t.Errorf("Cache.TTL = %d, want 24", cfg.Cache.TTL)
	}

	// Check output defaults
	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %s, want text", cfg.Output.Format)
	}
	if !cfg.Cleanup.Confirm {
		t.Error("Cleanup.Confirm should be true by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "dartrefs.toml")

	content := `
[analysis]
functions = false
duplicate_policy = "coexist"
workers = 4

[framework]
lifecycle_methods = ["initState", "dispose"]

[exclude]
dirs = ["build", "custom_exclude"]
patterns = ["*.gen.dart"]

[cache]
enabled = false

[output]
format = "json"
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Analysis.Functions {
		t.Error("Analysis.Functions should be false")
	}
	if cfg.Analysis.DuplicatePolicy != "coexist" {
		t.Errorf("Analysis.DuplicatePolicy = %s, want coexist", cfg.Analysis.DuplicatePolicy)
	}
	if cfg.Analysis.Workers != 4 {
		t.Errorf("Analysis.Workers = %d, want 4", cfg.Analysis.Workers)
	}
	if len(cfg.Framework.LifecycleMethods) != 2 {
		t.Errorf("Framework.LifecycleMethods = %v, want 2 entries", cfg.Framework.LifecycleMethods)
	}
	// Untouched sections keep their defaults.
	if len(cfg.Framework.StatefulBases) != 1 {
		t.Errorf("Framework.StatefulBases = %v, want default", cfg.Framework.StatefulBases)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be false")
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %s, want json", cfg.Output.Format)
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "dartrefs.yaml")

	content := `
analysis:
  functions: false
  max_file_size: 4096
framework:
  stateful_bases:
    - State
    - ConsumerState
output:
  format: markdown
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Analysis.Functions {
		t.Error("Analysis.Functions should be false")
	}
	if cfg.Analysis.MaxFileSize != 4096 {
		t.Errorf("Analysis.MaxFileSize = %d, want 4096", cfg.Analysis.MaxFileSize)
	}
	if len(cfg.Framework.StatefulBases) != 2 || cfg.Framework.StatefulBases[1] != "ConsumerState" {
		t.Errorf("Framework.StatefulBases = %v", cfg.Framework.StatefulBases)
	}
	if cfg.Output.Format != "markdown" {
		t.Errorf("Output.Format = %s, want markdown", cfg.Output.Format)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "dartrefs.json")

	content := `{
  "analysis": {"trace": true},
  "cache": {"ttl": 48},
  "output": {"format": "toon"}
}`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !cfg.Analysis.Trace {
		t.Error("Analysis.Trace should be true")
	}
	if cfg.Cache.TTL != 48 {
		t.Errorf("Cache.TTL = %d, want 48", cfg.Cache.TTL)
	}
	if cfg.Output.Format != "toon" {
		t.Errorf("Output.Format = %s, want toon", cfg.Output.Format)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/dartrefs.toml")
	if err == nil {
		t.Error("Load() should return error for non-existent file")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	if err := os.WriteFile(configPath, []byte("this is not [valid toml"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() should return error for invalid config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown policy", func(c *Config) { c.Analysis.DuplicatePolicy = "first-wins" }},
		{"negative workers", func(c *Config) { c.Analysis.Workers = -1 }},
		{"negative size", func(c *Config) { c.Analysis.MaxFileSize = -5 }},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -1 }},
		{"missing cache dir", func(c *Config) { c.Cache.Dir = " " }},
		{"bad format", func(c *Config) { c.Output.Format = "html" }},
		{"no entry points", func(c *Config) {
			c.Framework.EntryFunctions = nil
			c.Framework.EntryPointAnnotations = nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Cache.Dir = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled cache needs no dir: %v", err)
	}
}

func TestFind(t *testing.T) {
	tmpDir := t.TempDir()

	if _, ok := Find(tmpDir); ok {
		t.Error("Find() should report nothing in an empty directory")
	}

	nested := filepath.Join(tmpDir, ".dartrefs")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	hidden := filepath.Join(nested, "dartrefs.yaml")
	if err := os.WriteFile(hidden, []byte("output:\n  format: json\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if path, ok := Find(tmpDir); !ok || path != hidden {
		t.Errorf("Find() = %q, %v; want %q", path, ok, hidden)
	}

	// The project directory wins over .dartrefs/.
	top := filepath.Join(tmpDir, ".dartrefs.toml")
	if err := os.WriteFile(top, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	if path, _ := Find(tmpDir); path != top {
		t.Errorf("Find() = %q, want %q", path, top)
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()

	result, err := LoadConfig(WithSearchDir(tmpDir))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if result.Source != "" {
		t.Errorf("Source = %q, want empty for defaults", result.Source)
	}

	path := filepath.Join(tmpDir, "dartrefs.toml")
	if err := os.WriteFile(path, []byte("[analysis]\nfunctions = false\n"), 0644); err != nil {
		t.Fatal(err)
	}
	result, err = LoadConfig(WithSearchDir(tmpDir))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if result.Source != path || result.Config.Analysis.Functions {
		t.Errorf("LoadConfig() = %+v", result)
	}

	bad := filepath.Join(tmpDir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[analysis]\nduplicate_policy = \"random\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(WithPath(bad)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadConfig() = %v, want ErrInvalidConfig", err)
	}

	if _, err := LoadConfig(WithPath(filepath.Join(tmpDir, "missing.toml"))); err == nil {
		t.Error("LoadConfig() should fail for a missing explicit path")
	}
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		path     string
		expected bool
	}{
		{"lib/main.dart", false},
		{"lib/models/user.g.dart", true},
		{"lib/models/user.freezed.dart", true},
		{"test/mocks.mocks.dart", true},
		{".dart_tool/build/entry.dart", true},
		{"build/app.dart", true},
		{"lib/build_helpers.dart", false},
		{"lib/build/widget.dart", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := cfg.ShouldExclude(filepath.FromSlash(tt.path)); got != tt.expected {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestShouldExclude_PathPatterns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exclude.Patterns = []string{"lib/generated/**", "/tool/*.dart", "*_{stub,fake}.dart"}

	tests := []struct {
		path     string
		expected bool
	}{
		{"lib/generated/api.dart", true},
		{"lib/generated/nested/model.dart", true},
		{"lib/src/generated.dart", false},
		{"tool/build.dart", true},
		{"tool/sub/build.dart", false},
		{"test/io_stub.dart", true},
		{"lib/io_fake.dart", true},
		{"lib/io.dart", false},
	}
	for _, tt := range tests {
		if got := cfg.ShouldExclude(tt.path); got != tt.expected {
			t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.expected)
		}
	}
}

func TestValidate_BadPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exclude.Patterns = []string{"lib/[unterminated"}
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(err.Error(), "exclude.patterns") {
		t.Errorf("error %q should name the bad pattern", err)
	}
}
