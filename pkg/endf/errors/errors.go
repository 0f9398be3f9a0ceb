// Package errors provides structured error types for the ENDF recipe
// interpreter.
//
// This package defines EndfError, a unified error type that represents
// recipe syntax errors, fixed-width decode failures, mapping mismatches and
// tape structure problems with enough metadata for display and programmatic
// handling.
package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassRecipe     ErrorClass = "recipe"     // Recipe syntax errors
	ClassCategory   ErrorClass = "category"   // MAT/MF/MT guard failed
	ClassValue      ErrorClass = "value"      // Constant field disagrees
	ClassVariable   ErrorClass = "variable"   // Lookup and binding
	ClassExpression ErrorClass = "expression" // Unsupported arithmetic
	ClassFormat     ErrorClass = "format"     // Fixed-width decode/encode
	ClassCount      ErrorClass = "count"      // List element counts
	ClassLoop       ErrorClass = "loop"       // for/repeat/lookahead
	ClassSection    ErrorClass = "section"    // Scoped sections and abbreviations
	ClassTape       ErrorClass = "tape"       // Physical tape structure
	ClassStop       ErrorClass = "stop"       // Explicit stop in a recipe
	ClassIO         ErrorClass = "io"         // File operations
)

// Error codes referenced from other packages.
const (
	CodeRecipeSyntax      = "RECIPE-0001"
	CodeRecipeUnexpected  = "RECIPE-0002"
	CodeRecipeUnknownKind = "RECIPE-0003"
	CodeRecipeFieldCount  = "RECIPE-0004"
	CodeRecipeBrackets    = "RECIPE-0005"
	CodeRecipeNotFound    = "RECIPE-0006"

	CodeCategoryMismatch = "CTRL-0001"

	CodeValueMismatch = "VALUE-0001"
	CodeSizeMismatch  = "VALUE-0002"
	CodeTextLength    = "VALUE-0003"

	CodeVariableNotFound    = "VAR-0001"
	CodeUnresolvedVariables = "VAR-0002"
	CodeLoopRecordClash     = "VAR-0003"
	CodeInvalidIndex        = "VAR-0004"

	CodeSeveralUnbound        = "EXPR-0001"
	CodeVariableInDenominator = "EXPR-0002"
	CodeNonIntegral           = "EXPR-0003"
	CodeDivisionByZero        = "EXPR-0004"
	CodeNotNumeric            = "EXPR-0005"

	CodeMalformedInteger = "FORMAT-0001"
	CodeMalformedFloat   = "FORMAT-0002"
	CodeFieldOverflow    = "FORMAT-0003"
	CodeInvalidNdigit    = "FORMAT-0004"

	CodeMoreElementsExpected = "LIST-0001"
	CodeUnconsumedElements   = "LIST-0002"

	CodeLoopBoundNotInteger  = "LOOP-0001"
	CodeLoopVariableReuse    = "LOOP-0002"
	CodeNestedLookahead      = "LOOP-0003"
	CodeLookaheadNotInteger  = "LOOP-0004"
	CodeRepeatLimitExhausted = "LOOP-0005"

	CodeSectionNameCollision = "SECTION-0001"
	CodeMissingSection       = "SECTION-0002"
	CodeUnbalancedSection    = "SECTION-0003"

	CodeBlankLine           = "TAPE-0001"
	CodeNotSectionEnd       = "TAPE-0002"
	CodeUnexpectedEnd       = "TAPE-0003"
	CodeUnexpectedControl   = "TAPE-0004"
	CodeMissingTapeID       = "TAPE-0005"
	CodeSectionDataMismatch = "TAPE-0006"

	CodeStop = "STOP-0001"

	CodeFileRead  = "IO-0001"
	CodeFileWrite = "IO-0002"
)

// EndfError represents any error from recipe compilation, parsing or writing.
type EndfError struct {
	Class   ErrorClass     `json:"class"`            // Error category
	Code    string         `json:"code"`             // Error code (e.g., "VALUE-0001")
	Message string         `json:"message"`          // Human-readable message
	Hints   []string       `json:"hints,omitempty"`  // Suggestions for fixing
	Line    int            `json:"line"`             // 1-based line (0 if unknown)
	Column  int            `json:"column"`           // 1-based column (0 if unknown)
	File    string         `json:"file,omitempty"`   // File path (if known)
	Path    string         `json:"path,omitempty"`   // Section or variable path, e.g. "MF3/MT1"
	Record  string         `json:"record,omitempty"` // Offending physical record
	Data    map[string]any `json:"data,omitempty"`   // Template variables
}

// Error implements the error interface.
func (e *EndfError) Error() string {
	return e.String()
}

// String returns a formatted string representation of the error.
func (e *EndfError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display.
func (e *EndfError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassRecipe:
		sb.WriteString("Recipe error")
	case ClassTape, ClassFormat:
		sb.WriteString("Format error")
	default:
		sb.WriteString("Mapping error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line, e.Column))
		}
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	if e.Path != "" {
		sb.WriteString("[")
		sb.WriteString(e.Path)
		sb.WriteString("] ")
	}
	sb.WriteString(e.Message)

	if e.Record != "" {
		sb.WriteString("\n  record: ")
		sb.WriteString(e.Record)
	}

	for i, hint := range e.Hints {
		sb.WriteString("\n  ")
		if i == 0 {
			sb.WriteString("Hint: ")
		} else {
			sb.WriteString("  or: ")
		}
		sb.WriteString(hint)
	}

	return sb.String()
}

// WithFile returns a copy of the error with the file path set.
func (e *EndfError) WithFile(file string) *EndfError {
	copy := *e
	copy.File = file
	return &copy
}

// WithPosition returns a copy of the error with line and column set.
func (e *EndfError) WithPosition(line, column int) *EndfError {
	copy := *e
	copy.Line = line
	copy.Column = column
	return &copy
}

// WithPath returns a copy of the error with the section path set.
func (e *EndfError) WithPath(path string) *EndfError {
	copy := *e
	copy.Path = path
	return &copy
}

// WithRecord returns a copy of the error carrying the offending record.
func (e *EndfError) WithRecord(record string) *EndfError {
	copy := *e
	copy.Record = record
	return &copy
}

// WithHint returns a copy of the error with an extra hint appended.
func (e *EndfError) WithHint(hint string) *EndfError {
	copy := *e
	copy.Hints = append(append([]string(nil), e.Hints...), hint)
	return &copy
}

// IsRecipeError returns true if this error comes from recipe compilation.
func (e *EndfError) IsRecipeError() bool {
	return e.Class == ClassRecipe
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass // Error category
	Template string     // Message template with {{.placeholders}}
	Hints    []string   // Hint templates (may use {{.placeholders}})
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// ========================================
	// Recipe errors (RECIPE-0xxx)
	// ========================================
	CodeRecipeSyntax: {
		Class:    ClassRecipe,
		Template: "expected {{.Expected}}, got '{{.Got}}'",
	},
	CodeRecipeUnexpected: {
		Class:    ClassRecipe,
		Template: "unexpected token '{{.Token}}'",
	},
	CodeRecipeUnknownKind: {
		Class:    ClassRecipe,
		Template: "unknown record kind '{{.Kind}}'",
		Hints:    []string{"{{if .Suggestion}}Did you mean `{{.Suggestion}}`?{{end}}"},
	},
	CodeRecipeFieldCount: {
		Class:    ClassRecipe,
		Template: "{{.Kind}} record needs {{.Want}} fields, got {{.Got}}",
	},
	CodeRecipeBrackets: {
		Class:    ClassRecipe,
		Template: "section opened as ({{.Open}}) but closed as (/{{.Close}})",
	},
	CodeRecipeNotFound: {
		Class:    ClassRecipe,
		Template: "no recipe for MF={{.MF}} MT={{.MT}}",
	},

	// ========================================
	// Category errors (CTRL-0xxx)
	// ========================================
	CodeCategoryMismatch: {
		Class:    ClassCategory,
		Template: "{{.Field}} in record is {{.Got}} but recipe expects {{.Want}}",
	},

	// ========================================
	// Value errors (VALUE-0xxx)
	// ========================================
	CodeValueMismatch: {
		Class:    ClassValue,
		Template: "field {{.Field}} is {{.Got}} but recipe expects {{.Want}}",
		Hints:    []string{"set ignore_all_mismatches to downgrade this to a warning"},
	},
	CodeSizeMismatch: {
		Class:    ClassValue,
		Template: "size mismatch for {{.Field}}: {{.Detail}}",
	},
	CodeTextLength: {
		Class:    ClassValue,
		Template: "text for {{.Field}} has {{.Got}} characters but {{.Want}} are required",
	},

	// ========================================
	// Variable errors (VAR-0xxx)
	// ========================================
	CodeVariableNotFound: {
		Class:    ClassVariable,
		Template: "variable {{.Name}} not found",
	},
	CodeUnresolvedVariables: {
		Class:    ClassVariable,
		Template: "found several unbound variables: {{.Names}}",
	},
	CodeLoopRecordClash: {
		Class:    ClassVariable,
		Template: "{{.Name}} is both a loop variable and a record variable",
	},
	CodeInvalidIndex: {
		Class:    ClassVariable,
		Template: "index of {{.Name}} is invalid: {{.Detail}}",
	},

	// ========================================
	// Expression errors (EXPR-0xxx)
	// ========================================
	CodeSeveralUnbound: {
		Class:    ClassExpression,
		Template: "expression contains more than one unbound variable: {{.Expr}}",
	},
	CodeVariableInDenominator: {
		Class:    ClassExpression,
		Template: "unbound variable in denominator: {{.Expr}}",
	},
	CodeNonIntegral: {
		Class:    ClassExpression,
		Template: "{{.Value}} is not an integer",
	},
	CodeDivisionByZero: {
		Class:    ClassExpression,
		Template: "division by zero in {{.Expr}}",
	},
	CodeNotNumeric: {
		Class:    ClassExpression,
		Template: "{{.Name}} holds {{.Type}}, which cannot be used in arithmetic",
	},

	// ========================================
	// Format errors (FORMAT-0xxx)
	// ========================================
	CodeMalformedInteger: {
		Class:    ClassFormat,
		Template: "invalid integer field '{{.Text}}'",
	},
	CodeMalformedFloat: {
		Class:    ClassFormat,
		Template: "invalid float field '{{.Text}}'",
	},
	CodeFieldOverflow: {
		Class:    ClassFormat,
		Template: "{{.Value}} does not fit in {{.Width}} columns",
	},
	CodeInvalidNdigit: {
		Class:    ClassFormat,
		Template: "NDIGIT must be an integer between 2 and 6, got {{.Value}}",
	},

	// ========================================
	// Count errors (LIST-0xxx)
	// ========================================
	CodeMoreElementsExpected: {
		Class:    ClassCount,
		Template: "{{.Kind}} body declares {{.Want}} elements but only {{.Got}} are available",
	},
	CodeUnconsumedElements: {
		Class:    ClassCount,
		Template: "{{.Kind}} body declares {{.Want}} elements but {{.Got}} were supplied",
	},

	// ========================================
	// Loop errors (LOOP-0xxx)
	// ========================================
	CodeLoopBoundNotInteger: {
		Class:    ClassLoop,
		Template: "{{.Which}} bound of loop over {{.Name}} is {{.Value}}, not an integer",
	},
	CodeLoopVariableReuse: {
		Class:    ClassLoop,
		Template: "loop variable {{.Name}} is already in use",
	},
	CodeNestedLookahead: {
		Class:    ClassLoop,
		Template: "nested lookahead is not supported",
	},
	CodeLookaheadNotInteger: {
		Class:    ClassLoop,
		Template: "lookahead count must be an integer, got {{.Value}}",
	},
	CodeRepeatLimitExhausted: {
		Class:    ClassLoop,
		Template: "repeat loop did not terminate after {{.Limit}} iterations",
	},

	// ========================================
	// Section errors (SECTION-0xxx)
	// ========================================
	CodeSectionNameCollision: {
		Class:    ClassSection,
		Template: "abbreviation {{.Name}} collides with an existing variable",
	},
	CodeMissingSection: {
		Class:    ClassSection,
		Template: "section {{.Name}} does not exist",
	},
	CodeUnbalancedSection: {
		Class:    ClassSection,
		Template: "section close without matching open",
	},

	// ========================================
	// Tape errors (TAPE-0xxx)
	// ========================================
	CodeBlankLine: {
		Class:    ClassTape,
		Template: "blank line encountered at line {{.Index}}",
		Hints:    []string{"set ignore_blank_lines to skip blank lines"},
	},
	CodeNotSectionEnd: {
		Class:    ClassTape,
		Template: "expected a SEND record, got '{{.Record}}'",
	},
	CodeUnexpectedEnd: {
		Class:    ClassTape,
		Template: "unexpected end of input: {{.Detail}}",
	},
	CodeUnexpectedControl: {
		Class:    ClassTape,
		Template: "unexpected control record at line {{.Index}}: {{.Detail}}",
	},
	CodeMissingTapeID: {
		Class:    ClassTape,
		Template: "first record must be a tape identification (MF=0, MT=0)",
		Hints:    []string{"set ignore_missing_tpid to accept tapes without one"},
	},
	CodeSectionDataMismatch: {
		Class:    ClassTape,
		Template: "{{.Field}} in section data is {{.Got}} but section key is {{.Want}}",
	},

	// ========================================
	// Stop (STOP-0xxx)
	// ========================================
	CodeStop: {
		Class:    ClassStop,
		Template: "recipe stopped: {{.Message}}",
	},

	// ========================================
	// IO errors (IO-0xxx)
	// ========================================
	CodeFileRead: {
		Class:    ClassIO,
		Template: "failed to read '{{.Path}}': {{.Error}}",
	},
	CodeFileWrite: {
		Class:    ClassIO,
		Template: "failed to write '{{.Path}}': {{.Error}}",
	},
}

// New creates an EndfError from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *EndfError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &EndfError{
			Class:   ClassValue,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &EndfError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewWithPosition creates an EndfError with position information.
func NewWithPosition(code string, line, column int, data map[string]any) *EndfError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	return err
}

// NewSimple creates a simple error without using the catalog.
func NewSimple(class ErrorClass, message string) *EndfError {
	return &EndfError{
		Class:   class,
		Message: message,
	}
}

// renderTemplate renders a Go template with the given data.
func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// As returns the EndfError wrapped in err, if any.
func As(err error) (*EndfError, bool) {
	var e *EndfError
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err is (or wraps) an EndfError with the given code.
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// ClassOf returns the class of err, or "" when err is not an EndfError.
func ClassOf(err error) ErrorClass {
	if e, ok := As(err); ok {
		return e.Class
	}
	return ""
}

// ============================================================================
// Fuzzy Matching - "Did you mean?" suggestions
// ============================================================================

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// threshold returns the maximum edit distance accepted for a suggestion.
func threshold(input string) int {
	switch {
	case len(input) >= 7:
		return 3
	case len(input) >= 4:
		return 2
	default:
		return 1
	}
}

// FindClosestMatch finds the closest match to the given string from candidates.
// Returns "" when nothing is close enough or the input matches exactly.
func FindClosestMatch(input string, candidates []string) string {
	if len(input) == 0 || len(candidates) == 0 {
		return ""
	}

	inputLower := strings.ToLower(input)

	var bestMatch string
	bestDistance := -1

	for _, candidate := range candidates {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	if bestDistance <= 0 || bestDistance > threshold(input) {
		return ""
	}

	return bestMatch
}

// FindTopMatches returns the top N closest matches to the input.
func FindTopMatches(input string, candidates []string, n int) []string {
	if len(input) == 0 || len(candidates) == 0 || n <= 0 {
		return nil
	}

	type match struct {
		value    string
		distance int
	}

	inputLower := strings.ToLower(input)

	var matches []match
	for _, candidate := range candidates {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if dist > 0 {
			matches = append(matches, match{value: candidate, distance: dist})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	limit := threshold(input)
	var result []string
	for i := 0; i < len(matches) && i < n; i++ {
		if matches[i].distance <= limit {
			result = append(result, matches[i].value)
		}
	}

	return result
}

// RecordKinds lists the record kinds a recipe may use, for typo suggestions.
var RecordKinds = []string{"TEXT", "HEAD", "CONT", "DIR", "INTG", "TAB1", "TAB2", "LIST", "SEND", "stop"}

// NewUnknownRecordKind creates an unknown record kind error with a suggestion.
func NewUnknownRecordKind(kind string, line, column int) *EndfError {
	data := map[string]any{"Kind": kind}
	if suggestion := FindClosestMatch(kind, RecordKinds); suggestion != "" {
		data["Suggestion"] = suggestion
	}
	return NewWithPosition(CodeRecipeUnknownKind, line, column, data)
}

// NewVariableNotFound creates a variable-not-found error, suggesting up to
// three close names from the given candidates.
func NewVariableNotFound(name string, candidates []string) *EndfError {
	err := New(CodeVariableNotFound, map[string]any{"Name": name})
	for _, suggestion := range FindTopMatches(name, candidates, 3) {
		err.Hints = append(err.Hints, fmt.Sprintf("Did you mean `%s`?", suggestion))
	}
	return err
}
