package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sambeau/endf/pkg/endf/engine"
)

const captureRecipe = `# var QM:  Q value of the capture reaction
[MAT, 3, MT/ ZA, AWR, 0, 0, 0, 0] HEAD
[MAT, 3, MT/ QM, QI, 0, LR, NR, NP / E / xs]TAB1 (xstable)
SEND
`

func TestEngineOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Read.IgnoreMissingTPID = true
	cfg.Write.AbuseSignpos = true
	cfg.Mapping.FuzzyMatching = true
	cfg.Mapping.Rtol = 1e-3
	cfg.Mapping.ExplainMissing = true

	opts, err := cfg.EngineOptions()
	if err != nil {
		t.Fatal(err)
	}
	if !opts.IgnoreMissingTPID || !opts.ExplainMissing {
		t.Errorf("tape flags not carried over: %+v", opts)
	}
	if opts.Interp.Read.Width != 11 || !opts.Interp.Read.BlankAsZero {
		t.Errorf("read options = %+v", opts.Interp.Read)
	}
	if !opts.Interp.Write.AbuseSignpos || !opts.Interp.Write.IncludeLinenum {
		t.Errorf("write options = %+v", opts.Interp.Write)
	}
	if !opts.Interp.Policy.FuzzyMatching || opts.Interp.Policy.RelTol != 1e-3 || opts.Interp.Policy.AbsTol != 1e-7 {
		t.Errorf("policy = %+v", opts.Interp.Policy)
	}
	if opts.Interp.RepeatLimit != 100000 {
		t.Errorf("RepeatLimit = %d, want 100000", opts.Interp.RepeatLimit)
	}
	if _, ok := opts.Recipes.Lookup(3, 102); !ok {
		t.Error("built-in recipes missing")
	}
}

func TestEngineOptionsRecipeOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mf3_mt102.recipe"), []byte(captureRecipe), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := Defaults()
	cfg.Recipes.Dir = dir

	opts, err := cfg.EngineOptions()
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := opts.Recipes.Lookup(3, 102)
	if !ok || entry.Source != captureRecipe {
		t.Fatalf("Lookup(3, 102) = %+v, want the override", entry)
	}
	entry, ok = opts.Recipes.Lookup(3, 1)
	if !ok || entry.Source == captureRecipe {
		t.Errorf("Lookup(3, 1) = %+v, want the built-in recipe", entry)
	}

	e := engine.New(opts)
	text, ok := e.Explain("3/102/QM")
	if !ok || text != "Q value of the capture reaction" {
		t.Errorf("Explain = %q, %v", text, ok)
	}
}

func TestEngineOptionsMissingRecipeDir(t *testing.T) {
	cfg := Defaults()
	cfg.Recipes.Dir = filepath.Join(t.TempDir(), "missing")
	if _, err := cfg.EngineOptions(); err == nil {
		t.Error("expected an error for a missing recipes dir")
	}
}

func TestOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Parse.Strict = true
	cfg.Parse.Exclude = StringOrSlice{"2", "3/18"}
	cfg.Write.IncludeLinenum = false

	opts, err := cfg.Options(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !opts.Parse.Strict {
		t.Error("expected strict parsing")
	}
	want := []engine.SectionSpec{{MF: 2, MT: engine.AnyMT}, {MF: 3, MT: 18}}
	if len(opts.Parse.Exclude) != len(want) {
		t.Fatalf("Exclude = %v, want %v", opts.Parse.Exclude, want)
	}
	for i := range want {
		if opts.Parse.Exclude[i] != want[i] || opts.Write.Exclude[i] != want[i] {
			t.Errorf("Exclude[%d] = %v/%v, want %v", i, opts.Parse.Exclude[i], opts.Write.Exclude[i], want[i])
		}
	}
	if opts.Write.IncludeLinenum {
		t.Error("expected line numbers to be off")
	}
}

func TestLogger(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cfg := Defaults()
	cfg.Logging.Color = "never"

	log, closeLog, err := cfg.Logger(&stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.Warn("shown %d", 1)
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}
	if got, want := stderr.String(), "[WARN] shown 1\n"; got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want nothing", stdout.String())
	}

	cfg.Logging.Output = "stdout"
	cfg.Logging.Level = "debug"
	log, _, err = cfg.Logger(&stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("trace")
	if !strings.Contains(stdout.String(), "[DEBUG] trace") {
		t.Errorf("stdout = %q, want the debug line", stdout.String())
	}
}

func TestLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endf.log")
	cfg := Defaults()
	cfg.Logging.Output = path

	log, closeLog, err := cfg.Logger(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	log.Error("bad tape")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[ERROR] bad tape\n" {
		t.Errorf("log file = %q", data)
	}
}
