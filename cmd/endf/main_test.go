package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sambeau/endf/pkg/endf/endf"
	"github.com/sambeau/endf/pkg/endf/interp"
	"github.com/sambeau/endf/pkg/endf/record"
)

func noenv(string) string { return "" }

// writeTape writes a tape with a raw MF2 section of resonanceLines lines
// and an MF3 capture cross section.
func writeTape(t *testing.T, dir string, resonanceLines int) string {
	t.Helper()
	w := record.NewWriter(interp.DefaultOptions().Write)
	mf2 := record.Ctrl{MAT: 2625, MF: 2, MT: 151}
	mf3 := record.Ctrl{MAT: 2625, MF: 3, MT: 102}
	var lines []string
	add := func(l []string, err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		lines = append(lines, l...)
	}

	add(w.Text(record.Text{HL: "iron-56 capture", Ctrl: record.Ctrl{MAT: 1}}))
	for i := 0; i < resonanceLines; i++ {
		add(w.Cont(record.Cont{C1: float64(i), N1: i, Ctrl: mf2}))
	}
	lines = append(lines, w.Send(mf2), w.Fend(2625))
	add(w.Cont(record.Cont{C1: 26056, C2: 55.454, Ctrl: mf3}))
	add(w.Tab1(record.Tab1{
		Cont: record.Cont{C1: 7.646e6, C2: 7.646e6, Ctrl: mf3},
		NBT:  []int{2}, INT: []int{5},
		X: []float64{1e-5, 2e7}, Y: []float64{2.5, 1e-4},
	}))
	lines = append(lines, w.Send(mf3), w.Fend(2625), w.Mend(), w.Tend())

	path := filepath.Join(dir, "fe56.endf")
	if err := endf.WriteLines(path, lines); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeRecipes writes a recipe directory and a config file pointing at it.
func writeRecipes(t *testing.T, dir string, files map[string]string) (recipeDir, configPath string) {
	t.Helper()
	recipeDir = filepath.Join(dir, "recipes")
	if err := os.MkdirAll(recipeDir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(recipeDir, name), []byte(src), 0644); err != nil {
			t.Fatal(err)
		}
	}
	configPath = filepath.Join(dir, "endf.yaml")
	if err := os.WriteFile(configPath, []byte("recipes:\n  dir: ./recipes\nlogging:\n  level: error\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return recipeDir, configPath
}

func runArgs(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr, noenv)
	return stdout.String(), stderr.String(), err
}

func TestVersionAndHelp(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--version"}, "endf version dev (unknown)"},
		{[]string{"-V"}, "endf version dev"},
		{[]string{"--help"}, "Usage:"},
		{[]string{"parse", "-h"}, "Parse Options:"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			stdout, _, err := runArgs(t, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(stdout, tt.want) {
				t.Errorf("stdout = %q, want it to contain %q", stdout, tt.want)
			}
		})
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "failed"},
		{"unknown command", []string{"frobnicate"}, "unknown command: frobnicate"},
		{"parse without file", []string{"parse"}, "exactly one file"},
		{"bad flag", []string{"check", "--bogus", "x"}, "bogus"},
		{"missing config", []string{"explain", "-c", "/nonexistent/endf.yaml", "3/1/QM"}, "loading config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runArgs(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestParseAndWrite(t *testing.T) {
	dir := t.TempDir()
	tape := writeTape(t, dir, 2)
	first := filepath.Join(dir, "first.yaml")
	second := filepath.Join(dir, "second.yaml.gz")
	back := filepath.Join(dir, "back.endf.gz")

	// flags may follow the file
	if _, stderr, err := runArgs(t, "parse", tape, "-o", first); err != nil {
		t.Fatalf("parse failed: %v\n%s", err, stderr)
	}
	if _, stderr, err := runArgs(t, "write", "--output", back, first); err != nil {
		t.Fatalf("write failed: %v\n%s", err, stderr)
	}
	if _, stderr, err := runArgs(t, "parse", "-o", second, back); err != nil {
		t.Fatalf("parse of the written tape failed: %v\n%s", err, stderr)
	}

	a, err := endf.ReadYAMLFile(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := endf.ReadYAMLFile(second)
	if err != nil {
		t.Fatal(err)
	}
	sa, _ := a.Get(3, 102)
	sb, ok := b.Get(3, 102)
	if !ok || !sa.Parsed() || !sb.Parsed() {
		t.Fatal("MF3/MT102 not parsed")
	}
	if !sa.Data.Equal(sb.Data) {
		t.Errorf("MF3/MT102 changed after a write and parse:\n%s\n---\n%s", sa.Data, sb.Data)
	}

	ra, _ := a.Get(2, 151)
	rb, _ := b.Get(2, 151)
	if len(ra.Raw) != 2 || len(rb.Raw) != 2 {
		t.Fatalf("raw MF2 lines = %d/%d, want 2", len(ra.Raw), len(rb.Raw))
	}
	for i := range ra.Raw {
		if ra.Raw[i][:75] != rb.Raw[i][:75] {
			t.Errorf("raw line %d = %q, want %q", i, rb.Raw[i], ra.Raw[i])
		}
	}

	stdout, _, err := runArgs(t, "parse", tape)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"102:", "ZA:", "xstable:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("YAML output does not contain %q:\n%s", want, stdout)
		}
	}
}

func TestWriteToStdout(t *testing.T) {
	dir := t.TempDir()
	tape := writeTape(t, dir, 1)
	yamlPath := filepath.Join(dir, "fe56.yaml")
	if _, _, err := runArgs(t, "parse", "-o", yamlPath, tape); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runArgs(t, "write", "--no-linenum", yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	if len(lines) < 2 {
		t.Fatalf("wrote %d lines", len(lines))
	}
	if got := lines[len(lines)-1]; len(got) != 75 || !strings.HasSuffix(got, "-1 0  0") {
		t.Errorf("last line = %q, want a TEND record without a serial number", got)
	}
}

func TestParseInclude(t *testing.T) {
	tape := writeTape(t, t.TempDir(), 1)
	stdout, _, err := runArgs(t, "parse", "--include", "0,2", tape)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(stdout, "ZA:") {
		t.Errorf("MF3 was parsed although only MF0 and MF2 were included:\n%s", stdout)
	}
}

func TestCheck(t *testing.T) {
	tape := writeTape(t, t.TempDir(), 1200)
	stdout, _, err := runArgs(t, "check", tape)
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, stdout)
	}
	for _, want := range []string{"MF3/MT102", "parsed", "MF2/MT151", "raw", "1,20", "3 sections: 2 parsed, 1 raw, 0 failed"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("check output does not contain %q:\n%s", want, stdout)
		}
	}
}

func TestCheckReportsFailures(t *testing.T) {
	dir := t.TempDir()
	tape := writeTape(t, dir, 1)
	_, configPath := writeRecipes(t, dir, map[string]string{
		"mf3_mt102.recipe": "[MAT, 3, MT/ ZA, AWR, 0, 0, 0, 0]HEAD\nstop(\"capture is not supported\")\n",
	})

	stdout, _, err := runArgs(t, "check", "-c", configPath, tape)
	if err == nil || !strings.Contains(err.Error(), "1 of 3 sections failed") {
		t.Errorf("error = %v, want one failed section", err)
	}
	if !strings.Contains(stdout, "failed") || !strings.Contains(stdout, "capture is not supported") {
		t.Errorf("check output does not report the failure:\n%s", stdout)
	}
}

func TestParseStrictFails(t *testing.T) {
	dir := t.TempDir()
	tape := writeTape(t, dir, 1)
	_, configPath := writeRecipes(t, dir, map[string]string{
		"mf3_mt102.recipe": "[MAT, 3, MT/ ZA, AWR, 0, 0, 0, 0]HEAD\nstop(\"capture is not supported\")\n",
	})

	if _, _, err := runArgs(t, "parse", "-c", configPath, tape); err != nil {
		t.Errorf("lenient parse failed: %v", err)
	}
	_, stderr, err := runArgs(t, "parse", "--strict", "-v", "-c", configPath, tape)
	if err == nil {
		t.Fatal("expected strict parse to fail")
	}
	if !strings.Contains(stderr, "records processed before the failure") {
		t.Errorf("stderr = %q, want the record report", stderr)
	}
}

func TestExplain(t *testing.T) {
	stdout, _, err := runArgs(t, "explain", "3/102/QM", "5/18/contribution/1/LF")
	if err != nil {
		t.Fatal(err)
	}
	want := "3/102/QM: mass-difference Q value (eV)\n5/18/contribution/1/LF: law of the partial distribution\n"
	if stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}

	_, _, err = runArgs(t, "explain", "3/102/NOPE")
	if err == nil || !strings.Contains(err.Error(), "3/102/NOPE") {
		t.Errorf("error = %v, want one naming the path", err)
	}
}

func TestRecipes(t *testing.T) {
	stdout, _, err := runArgs(t, "recipes")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "ok built-in recipes") {
		t.Errorf("stdout = %q", stdout)
	}

	dir := t.TempDir()
	recipeDir, _ := writeRecipes(t, dir, map[string]string{
		"mf3.recipe":     "[MAT, 3, MT/ ZA, AWR, 0, 0, 0, 0]HEAD\nSEND\n",
		"mf4_mt2.recipe": "[MAT, 4, MT/ ZA, AWR, 0, LTT, 0, 0]HEAD\nfor (i=1 to\n",
		"notes.txt":      "ignored",
	})
	stdout, _, err = runArgs(t, "recipes", recipeDir)
	if err == nil || !strings.Contains(err.Error(), "1 recipes failed") {
		t.Errorf("error = %v, want one failed recipe", err)
	}
	if !strings.Contains(stdout, "2 recipes, 1 failed") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRecipesWatch(t *testing.T) {
	recipeDir, _ := writeRecipes(t, t.TempDir(), map[string]string{
		"mf3.recipe": "[MAT, 3, MT/ ZA, AWR, 0, 0, 0, 0]HEAD\nSEND\n",
	})

	// a cancelled context stops the watcher after the first compile
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	if err := run(ctx, []string{"recipes", "--watch", recipeDir}, &stdout, &stderr, noenv); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "ok "+recipeDir+": 1 recipes") {
		t.Errorf("stdout = %q", stdout.String())
	}
}
