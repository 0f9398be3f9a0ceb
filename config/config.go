package config

import (
	"github.com/sambeau/endf/pkg/endf/fortran"
	"github.com/sambeau/endf/pkg/endf/interp"
)

// Config represents the complete endf configuration
type Config struct {
	BaseDir string        `yaml:"-"` // Directory containing config file, for resolving relative paths
	Read    ReadConfig    `yaml:"read"`
	Write   WriteConfig   `yaml:"write"`
	Mapping MappingConfig `yaml:"mapping"`
	Parse   ParseConfig   `yaml:"parse"`
	Recipes RecipesConfig `yaml:"recipes"`
	Logging LoggingConfig `yaml:"logging"`
}

// ReadConfig holds settings for reading tapes
type ReadConfig struct {
	Width             int  `yaml:"width"`               // Characters per numeric field (default: 11)
	AcceptSpaces      bool `yaml:"accept_spaces"`       // Remove spaces inside numbers, e.g. "1.5 +3"
	BlankAsZero       bool `yaml:"blank_as_zero"`       // Read blank fields as 0
	IgnoreBlankLines  bool `yaml:"ignore_blank_lines"`  // Skip blank lines instead of failing
	IgnoreSendRecords bool `yaml:"ignore_send_records"` // Don't require SEND records between sections
	IgnoreMissingTPID bool `yaml:"ignore_missing_tpid"` // Accept tapes without a TPID line
}

// WriteConfig holds settings for writing tapes
type WriteConfig struct {
	Width          int  `yaml:"width"`           // Characters per numeric field (default: 11)
	AbuseSignpos   bool `yaml:"abuse_signpos"`   // Positive numbers may use the sign column
	SkipIntzero    bool `yaml:"skip_intzero"`    // Write ".5" instead of "0.5" in fixed-point form
	PreferNoexp    bool `yaml:"prefer_noexp"`    // Use fixed-point form when at least as accurate
	KeepE          bool `yaml:"keep_e"`          // Write "1.0E+3" instead of "1.0+3"
	IncludeLinenum bool `yaml:"include_linenum"` // Append serial numbers in columns 76-80 (default: true)
	ZeroAsBlank    bool `yaml:"zero_as_blank"`   // Write zeros as blank fields
}

// MappingConfig holds the rules for matching records against recipes
type MappingConfig struct {
	IgnoreZeroMismatch    bool    `yaml:"ignore_zero_mismatch"`    // Only warn when a field expected to be zero is not (default: true)
	IgnoreNumberMismatch  bool    `yaml:"ignore_number_mismatch"`  // Only warn when a desired number such as 0? differs
	IgnoreVarspecMismatch bool    `yaml:"ignore_varspec_mismatch"` // Only warn when an X? field is inconsistent (default: true)
	IgnoreAllMismatches   bool    `yaml:"ignore_all_mismatches"`   // Never fail on a mismatch
	FuzzyMatching         bool    `yaml:"fuzzy_matching"`          // Compare floats with atol/rtol
	Atol                  float64 `yaml:"atol"`                    // Absolute tolerance (default: 1e-7)
	Rtol                  float64 `yaml:"rtol"`                    // Relative tolerance (default: 1e-5)
	RepeatLimit           int     `yaml:"repeat_limit"`            // Maximum iterations of a repeat loop (default: 100000)
	ExplainMissing        bool    `yaml:"explain_missing"`         // Add variable descriptions to write errors
}

// ParseConfig holds settings for parsing whole tapes
type ParseConfig struct {
	Strict  bool          `yaml:"strict"`  // Fail on the first section that does not parse
	Include StringOrSlice `yaml:"include"` // Sections to parse, as "MF" or "MF/MT"
	Exclude StringOrSlice `yaml:"exclude"` // Sections to keep as raw lines
}

// RecipesConfig holds recipe settings
type RecipesConfig struct {
	Dir string `yaml:"dir"` // Directory of mfN.recipe / mfN_mtM.recipe overrides
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Color  string `yaml:"color"`  // auto, always, never
	Output string `yaml:"output"` // stderr, stdout, or file path
}

// StringOrSlice supports YAML fields that can be either a string or a slice of strings
type StringOrSlice []string

// UnmarshalYAML implements yaml.Unmarshaler to handle both string and []string
func (s *StringOrSlice) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}

	var slice []string
	if err := unmarshal(&slice); err != nil {
		return err
	}
	*s = slice
	return nil
}

// Contains checks if the slice contains the given string
func (s StringOrSlice) Contains(str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Read: ReadConfig{
			Width:        fortran.DefaultWidth,
			AcceptSpaces: true,
			BlankAsZero:  true,
		},
		Write: WriteConfig{
			Width:          fortran.DefaultWidth,
			IncludeLinenum: true,
		},
		Mapping: MappingConfig{
			IgnoreZeroMismatch:    true,
			IgnoreVarspecMismatch: true,
			Atol:                  1e-7,
			Rtol:                  1e-5,
			RepeatLimit:           interp.DefaultRepeatLimit,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Color:  "auto",
			Output: "stderr",
		},
	}
}
