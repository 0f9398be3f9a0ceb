package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/endf/pkg/endf/engine"
	"github.com/sambeau/endf/pkg/endf/fortran"
)

// ErrNotFound is returned when no config file was given and none of the
// default locations holds one.
var ErrNotFound = errors.New("no config file found (tried ENDF_CONFIG, endf.yaml, ~/.config/endf/endf.yaml)")

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the resolved path.
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	baseDir := filepath.Dir(absPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.BaseDir = baseDir

	if cfg.Recipes.Dir != "" && !filepath.IsAbs(cfg.Recipes.Dir) {
		cfg.Recipes.Dir = filepath.Join(baseDir, cfg.Recipes.Dir)
	}
	switch cfg.Logging.Output {
	case "", "stderr", "stdout":
	default:
		if !filepath.IsAbs(cfg.Logging.Output) {
			cfg.Logging.Output = filepath.Join(baseDir, cfg.Logging.Output)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, absPath, nil
}

// Validate checks the configuration and reports every problem at once.
// Call it again after applying command-line overrides.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Read.Width < 1 {
		errs = append(errs, fmt.Sprintf("invalid read.width: %d (must be at least 1)", cfg.Read.Width))
	}
	if cfg.Write.Width < 1 {
		errs = append(errs, fmt.Sprintf("invalid write.width: %d (must be at least 1)", cfg.Write.Width))
	}
	if cfg.Mapping.Atol < 0 {
		errs = append(errs, fmt.Sprintf("invalid mapping.atol: %g (must not be negative)", cfg.Mapping.Atol))
	}
	if cfg.Mapping.Rtol < 0 {
		errs = append(errs, fmt.Sprintf("invalid mapping.rtol: %g (must not be negative)", cfg.Mapping.Rtol))
	}
	if cfg.Mapping.RepeatLimit < 0 {
		errs = append(errs, fmt.Sprintf("invalid mapping.repeat_limit: %d (must not be negative)", cfg.Mapping.RepeatLimit))
	}

	for i, s := range cfg.Parse.Include {
		if _, err := engine.ParseSectionSpec(s); err != nil {
			errs = append(errs, fmt.Sprintf("parse.include[%d]: %v", i, err))
		}
	}
	for i, s := range cfg.Parse.Exclude {
		if _, err := engine.ParseSectionSpec(s); err != nil {
			errs = append(errs, fmt.Sprintf("parse.exclude[%d]: %v", i, err))
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}
	validColors := map[string]bool{"auto": true, "always": true, "never": true}
	if !validColors[cfg.Logging.Color] {
		errs = append(errs, fmt.Sprintf("invalid log color: %s (must be auto, always, or never)", cfg.Logging.Color))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Warnings returns non-fatal configuration issues that should be reported to the user.
func Warnings(cfg *Config) []string {
	var warnings []string

	if cfg.Read.Width != fortran.DefaultWidth {
		warnings = append(warnings, fmt.Sprintf("read.width is %d; ENDF-6 tapes use %d-character fields", cfg.Read.Width, fortran.DefaultWidth))
	}
	if cfg.Write.Width != fortran.DefaultWidth {
		warnings = append(warnings, fmt.Sprintf("write.width is %d; ENDF-6 tapes use %d-character fields", cfg.Write.Width, fortran.DefaultWidth))
	}
	if cfg.Parse.Strict && cfg.Mapping.IgnoreAllMismatches {
		warnings = append(warnings, "parse.strict is set but mapping.ignore_all_mismatches hides most mismatches")
	}
	if len(cfg.Parse.Include) > 0 && len(cfg.Parse.Exclude) > 0 {
		warnings = append(warnings, "parse.include is ignored when parse.exclude is set")
	}
	if cfg.Recipes.Dir != "" {
		if info, err := os.Stat(cfg.Recipes.Dir); err != nil || !info.IsDir() {
			warnings = append(warnings, fmt.Sprintf("recipes.dir %s is not a directory", cfg.Recipes.Dir))
		}
	}

	return warnings
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > ENDF_CONFIG env > ./endf.yaml > ~/.config/endf/endf.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if envPath := getenv("ENDF_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("ENDF_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	if _, err := os.Stat("endf.yaml"); err == nil {
		return "endf.yaml", nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "endf", "endf.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", ErrNotFound
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}
