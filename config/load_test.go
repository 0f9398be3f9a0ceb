package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInterpolateEnv(t *testing.T) {
	getenv := func(key string) string {
		switch key {
		case "ENDF_LEVEL":
			return "debug"
		case "ENDF_WIDTH":
			return "11"
		default:
			return ""
		}
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple substitution", "level: ${ENDF_LEVEL}", "level: debug"},
		{"with default (env set)", "level: ${ENDF_LEVEL:-info}", "level: debug"},
		{"with default (env not set)", "level: ${UNSET_VAR:-info}", "level: info"},
		{"multiple substitutions", "x: ${ENDF_LEVEL}/${ENDF_WIDTH}", "x: debug/11"},
		{"unset without default", "dir: ${UNSET_VAR}", "dir: "},
		{"no substitution", "dir: ./recipes", "dir: ./recipes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(interpolateEnv([]byte(tt.input), getenv))
			if got != tt.expected {
				t.Errorf("interpolateEnv(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "endf.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
read:
  ignore_blank_lines: true

write:
  prefer_noexp: true
  include_linenum: false

mapping:
  fuzzy_matching: true
  rtol: 1e-3

parse:
  strict: true
  include: "3"

recipes:
  dir: ./recipes

logging:
  level: debug
  output: endf.log
`)

	cfg, resolved, err := LoadWithPath(path, os.Getenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.BaseDir != dir {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, dir)
	}

	if !cfg.Read.IgnoreBlankLines {
		t.Error("expected read.ignore_blank_lines to be true")
	}
	if !cfg.Read.BlankAsZero {
		t.Error("expected read.blank_as_zero to keep its default")
	}
	if !cfg.Write.PreferNoexp || cfg.Write.IncludeLinenum {
		t.Errorf("write = %+v, want prefer_noexp and no line numbers", cfg.Write)
	}
	if !cfg.Mapping.FuzzyMatching || cfg.Mapping.Rtol != 1e-3 {
		t.Errorf("mapping = %+v", cfg.Mapping)
	}
	if cfg.Mapping.Atol != 1e-7 {
		t.Errorf("mapping.atol = %g, want the default 1e-7", cfg.Mapping.Atol)
	}
	if !cfg.Parse.Strict || len(cfg.Parse.Include) != 1 || cfg.Parse.Include[0] != "3" {
		t.Errorf("parse = %+v", cfg.Parse)
	}
	if want := filepath.Join(dir, "recipes"); cfg.Recipes.Dir != want {
		t.Errorf("recipes.dir = %q, want %q", cfg.Recipes.Dir, want)
	}
	if want := filepath.Join(dir, "endf.log"); cfg.Logging.Output != want {
		t.Errorf("logging.output = %q, want %q", cfg.Logging.Output, want)
	}
}

func TestLoadWithEnvInterpolation(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
logging:
  level: ${ENDF_LOG_LEVEL:-info}
recipes:
  dir: ${ENDF_RECIPES}
`)
	getenv := func(key string) string {
		switch key {
		case "ENDF_LOG_LEVEL":
			return "error"
		case "ENDF_RECIPES":
			return "/opt/recipes"
		}
		return ""
	}

	cfg, err := Load(path, getenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("logging.level = %q, want %q", cfg.Logging.Level, "error")
	}
	if cfg.Recipes.Dir != "/opt/recipes" {
		t.Errorf("recipes.dir = %q, want %q", cfg.Recipes.Dir, "/opt/recipes")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "read:\n  width: 0\n")
	if _, err := Load(path, os.Getenv); err == nil {
		t.Fatal("expected an error for read.width 0")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "read: [unclosed\n")
	_, err := Load(path, os.Getenv)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("error = %v, want a parse failure", err)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr []string
	}{
		{
			name:   "defaults",
			modify: func(*Config) {},
		},
		{
			name:    "zero read width",
			modify:  func(c *Config) { c.Read.Width = 0 },
			wantErr: []string{"invalid read.width: 0"},
		},
		{
			name:    "negative tolerances",
			modify:  func(c *Config) { c.Mapping.Atol = -1; c.Mapping.Rtol = -0.5 },
			wantErr: []string{"mapping.atol", "mapping.rtol"},
		},
		{
			name:    "bad level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: []string{"invalid log level: verbose"},
		},
		{
			name:    "bad color",
			modify:  func(c *Config) { c.Logging.Color = "sometimes" },
			wantErr: []string{"invalid log color: sometimes"},
		},
		{
			name:    "bad section specs",
			modify:  func(c *Config) { c.Parse.Include = StringOrSlice{"3", "x/1"}; c.Parse.Exclude = StringOrSlice{"-4"} },
			wantErr: []string{"parse.include[1]", "parse.exclude[0]"},
		},
		{
			name: "every error reported",
			modify: func(c *Config) {
				c.Write.Width = -1
				c.Mapping.RepeatLimit = -1
				c.Logging.Level = ""
			},
			wantErr: []string{"write.width", "mapping.repeat_limit", "invalid log level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)
			err := Validate(cfg)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected errors containing %v", tt.wantErr)
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	noenv := func(string) string { return "" }

	if _, err := resolveConfigPath("/nonexistent/path/endf.yaml", noenv); err == nil {
		t.Error("expected error for nonexistent path")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	resolved, err := resolveConfigPath(path, noenv)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}

	fromEnv := func(key string) string {
		if key == "ENDF_CONFIG" {
			return path
		}
		return ""
	}
	resolved, err = resolveConfigPath("", fromEnv)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved from ENDF_CONFIG = %q, want %q", resolved, path)
	}

	missingEnv := func(key string) string {
		if key == "ENDF_CONFIG" {
			return filepath.Join(dir, "missing.yaml")
		}
		return ""
	}
	if _, err := resolveConfigPath("", missingEnv); err == nil || !strings.Contains(err.Error(), "ENDF_CONFIG") {
		t.Errorf("error = %v, want one naming ENDF_CONFIG", err)
	}
}

func TestResolveConfigPathNotFound(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	_, err = resolveConfigPath("", func(string) string { return "" })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Config)
		wantWarn string
	}{
		{"defaults", func(*Config) {}, ""},
		{"odd width", func(c *Config) { c.Write.Width = 12 }, "write.width is 12"},
		{"strict but lenient", func(c *Config) { c.Parse.Strict = true; c.Mapping.IgnoreAllMismatches = true }, "ignore_all_mismatches"},
		{"include and exclude", func(c *Config) { c.Parse.Include = StringOrSlice{"3"}; c.Parse.Exclude = StringOrSlice{"4"} }, "include is ignored"},
		{"missing recipes dir", func(c *Config) { c.Recipes.Dir = "/nonexistent/recipes" }, "not a directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)
			warnings := Warnings(cfg)
			if tt.wantWarn == "" {
				if len(warnings) > 0 {
					t.Errorf("expected no warnings, got %v", warnings)
				}
				return
			}
			found := false
			for _, w := range warnings {
				if strings.Contains(w, tt.wantWarn) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected warning containing %q, got %v", tt.wantWarn, warnings)
			}
		})
	}
}
