// Package endf reads and writes ENDF-6 tapes on disk. Files ending in .gz
// are compressed and decompressed transparently.
package endf

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"

	"github.com/sambeau/endf/pkg/endf/engine"
	"github.com/sambeau/endf/pkg/endf/errors"
)

// maxLineLength bounds a single line; ENDF lines are 80 columns.
const maxLineLength = 1 << 20

// Options configure a Parser.
type Options struct {
	Engine engine.Options
	Parse  engine.ParseOptions
	Write  engine.WriteOptions
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Engine: engine.DefaultOptions(),
		Write:  engine.WriteOptions{IncludeLinenum: true},
	}
}

// Parser reads and writes tape files with one engine.
type Parser struct {
	engine *engine.Engine
	opts   Options
}

// New returns a Parser for opts.
func New(opts Options) *Parser {
	return &Parser{engine: engine.New(opts.Engine), opts: opts}
}

// Engine returns the underlying engine.
func (p *Parser) Engine() *engine.Engine { return p.engine }

// Parse parses the lines of a tape.
func (p *Parser) Parse(lines []string) (*engine.Result, error) {
	return p.engine.Parse(lines, p.opts.Parse)
}

// Write renders res as the lines of a tape.
func (p *Parser) Write(res *engine.Result) ([]string, error) {
	return p.engine.Write(res, p.opts.Write)
}

// ParseFile reads and parses the tape at path.
func (p *Parser) ParseFile(path string) (*engine.Result, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	res, err := p.Parse(lines)
	if err != nil {
		return nil, withFile(err, path)
	}
	return res, nil
}

// WriteFile writes res as a tape to path.
func (p *Parser) WriteFile(path string, res *engine.Result) error {
	lines, err := p.Write(res)
	if err != nil {
		return withFile(err, path)
	}
	return WriteLines(path, lines)
}

func withFile(err error, path string) error {
	return engine.Amend(err, func(ee *errors.EndfError) *errors.EndfError {
		return ee.WithFile(path)
	})
}

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// ReadLines returns the lines of the file at path.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.CodeFileRead, map[string]any{"Path": path, "Error": err.Error()})
	}
	defer f.Close()

	var r io.Reader = f
	if isGzip(path) {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.New(errors.CodeFileRead, map[string]any{"Path": path, "Error": err.Error()})
		}
		defer zr.Close()
		r = zr
	}
	lines, err := Read(r)
	if err != nil {
		return nil, errors.New(errors.CodeFileRead, map[string]any{"Path": path, "Error": err.Error()})
	}
	return lines, nil
}

// Read splits r into lines without their line endings.
func Read(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 128), maxLineLength)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines, sc.Err()
}

// WriteLines writes lines to path, one per line.
func WriteLines(path string, lines []string) error {
	return writeFile(path, func(w io.Writer) error { return Write(w, lines) })
}

// Write writes lines to w, each followed by a newline.
func Write(w io.Writer, lines []string) error {
	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeFile(path string, fn func(io.Writer) error) error {
	fail := func(err error) error {
		return errors.New(errors.CodeFileWrite, map[string]any{"Path": path, "Error": err.Error()})
	}
	f, err := os.Create(path)
	if err != nil {
		return fail(err)
	}
	var w io.Writer = f
	var zw *gzip.Writer
	if isGzip(path) {
		zw = gzip.NewWriter(f)
		w = zw
	}
	if err := fn(w); err != nil {
		f.Close()
		return fail(err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			f.Close()
			return fail(err)
		}
	}
	if err := f.Close(); err != nil {
		return fail(err)
	}
	return nil
}

// MarshalYAML renders res as YAML.
func MarshalYAML(res *engine.Result) ([]byte, error) {
	return yaml.Marshal(res)
}

// UnmarshalYAML reads a result written by MarshalYAML.
func UnmarshalYAML(data []byte) (*engine.Result, error) {
	res := engine.NewResult()
	if err := yaml.Unmarshal(data, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ReadYAMLFile reads a result from a YAML file.
func ReadYAMLFile(path string) (*engine.Result, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	res, err := UnmarshalYAML([]byte(strings.Join(lines, "\n")))
	if err != nil {
		return nil, errors.New(errors.CodeFileRead, map[string]any{"Path": path, "Error": err.Error()})
	}
	return res, nil
}

// WriteYAMLFile writes res to path as YAML.
func WriteYAMLFile(path string, res *engine.Result) error {
	return writeFile(path, func(w io.Writer) error { return WriteYAML(w, res) })
}

// WriteYAML writes res to w as YAML with two-space indentation.
func WriteYAML(w io.Writer, res *engine.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return err
	}
	return enc.Close()
}
