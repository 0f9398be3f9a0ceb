// Package fortran converts between fixed-width text fields and numbers the
// way legacy FORTRAN tape formats write them: floats such as "1.234567+5"
// carry no exponent letter, and positive numbers may start in the sign column.
package fortran

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sambeau/endf/pkg/endf/errors"
)

// DefaultWidth is the number of columns of one field in a physical record.
const DefaultWidth = 11

// FieldsPerLine is the number of numeric fields on one physical line.
const FieldsPerLine = 6

// ReadOptions control how fields are decoded.
type ReadOptions struct {
	Width        int  // field width; 0 means DefaultWidth
	AcceptSpaces bool // remove spaces inside numbers, e.g. "1.5 +3"
	BlankAsZero  bool // decode a blank field as zero
}

// DefaultReadOptions returns the options used when nothing is configured.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{Width: DefaultWidth, AcceptSpaces: true, BlankAsZero: true}
}

func (o ReadOptions) width() int {
	if o.Width <= 0 {
		return DefaultWidth
	}
	return o.Width
}

// WriteOptions control how fields are encoded.
type WriteOptions struct {
	Width        int  // field width; 0 means DefaultWidth
	AbuseSignpos bool // positive numbers may use the sign column
	SkipIntzero  bool // write ".5" instead of "0.5" in fixed-point form
	PreferNoexp  bool // use fixed-point form when at least as accurate
	KeepE        bool // write "1.0E+3" instead of "1.0+3"
}

// DefaultWriteOptions returns the options used when nothing is configured.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{Width: DefaultWidth}
}

func (o WriteOptions) width() int {
	if o.Width <= 0 {
		return DefaultWidth
	}
	return o.Width
}

// ReadInt decodes an integer field.
func ReadInt(text string, opts ReadOptions) (int, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		if opts.BlankAsZero {
			return 0, nil
		}
		return 0, errors.New(errors.CodeMalformedInteger, map[string]any{"Text": text})
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New(errors.CodeMalformedInteger, map[string]any{"Text": text})
	}
	return v, nil
}

// ReadFloat decodes a float field. A '+' or '-' directly following a digit
// starts the exponent.
func ReadFloat(text string, opts ReadOptions) (float64, error) {
	s := text
	if w := opts.width(); len(s) > w {
		s = s[:w]
	}
	if strings.TrimSpace(s) == "" {
		if opts.BlankAsZero {
			return 0, nil
		}
		return 0, errors.New(errors.CodeMalformedFloat, map[string]any{"Text": text})
	}
	if opts.AcceptSpaces {
		s = strings.ReplaceAll(s, " ", "")
	} else {
		s = strings.TrimSpace(s)
	}

	var sb strings.Builder
	sb.Grow(len(s) + 1)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if i > 0 && (c == '+' || c == '-') && isDigit(s[i-1]) {
			sb.WriteByte('e')
		}
		sb.WriteByte(c)
	}

	v, err := strconv.ParseFloat(sb.String(), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || !looksNumeric(s) {
		return 0, errors.New(errors.CodeMalformedFloat, map[string]any{"Text": text})
	}
	return v, nil
}

// looksNumeric rejects spellings strconv accepts but tapes never contain,
// such as "Inf", "0x1p3" or "1_0".
func looksNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isDigit(c) && c != '.' && c != '+' && c != '-' && c != 'e' && c != 'E' {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// WriteInt encodes an integer right-justified in width columns.
func WriteInt(v, width int) (string, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	s := strconv.Itoa(v)
	if len(s) > width {
		return "", errors.New(errors.CodeFieldOverflow, map[string]any{"Value": s, "Width": width})
	}
	return fmt.Sprintf("%*s", width, s), nil
}

// WriteFloat encodes v in exactly opts.Width columns.
func WriteFloat(v float64, opts WriteOptions) (string, error) {
	width := opts.width()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", errors.New(errors.CodeFieldOverflow, map[string]any{"Value": v, "Width": width})
	}

	expStr, expErr := expForm(v, opts)
	if !opts.PreferNoexp {
		if expErr != nil {
			return "", expErr
		}
		return expStr, nil
	}

	basic := basicForm(v, opts)
	if strings.Contains(basic, ".") {
		basic = strings.TrimRight(basic, "0")
		basic = strings.TrimRight(basic, ".")
		trimmed := strings.TrimSpace(basic)
		if trimmed == "" || trimmed == "+" || trimmed == "-" {
			basic = "0"
		}
	}
	if len(basic) > width {
		if expErr != nil {
			return "", expErr
		}
		return expStr, nil
	}
	if expErr == nil {
		ro := ReadOptions{Width: width, AcceptSpaces: true, BlankAsZero: true}
		basicVal, err1 := ReadFloat(basic, ro)
		expVal, err2 := ReadFloat(expStr, ro)
		if err1 != nil || (err2 == nil && math.Abs(expVal-v) < math.Abs(basicVal-v)) {
			return expStr, nil
		}
	}
	return fmt.Sprintf("%*s", width, basic), nil
}

// expForm writes v in scientific notation without exponent letter unless
// KeepE is set. The exponent takes one to three digits depending on the
// magnitude and always carries a sign.
func expForm(v float64, opts WriteOptions) (string, error) {
	width := opts.width()
	av := math.Abs(v)

	nexp := 3
	switch {
	case av == 0, av >= 1e-9 && av < 1e10:
		nexp = 1
	case av >= 1e-99 && av < 1e100:
		nexp = 2
	}

	signStr := " "
	if v < 0 {
		signStr = "-"
	} else if opts.AbuseSignpos {
		signStr = ""
	}
	expSymbol := ""
	if opts.KeepE {
		expSymbol = "E"
	}

	// a mantissa rounding up to 10 can need one more exponent digit
	for ; nexp <= 3; nexp++ {
		mantissaLen := width - 1 - nexp - len(signStr) - len(expSymbol)
		decimals := mantissaLen - 2
		if decimals < 0 {
			break
		}
		formatted := strconv.FormatFloat(av, 'e', decimals, 64)
		epos := strings.IndexByte(formatted, 'e')
		mantissa := formatted[:epos]
		exponent, err := strconv.Atoi(formatted[epos+1:])
		if err != nil {
			break
		}
		if decimals == 0 {
			// keep the decimal point so the field reads as a float
			mantissa += "."
			if len(signStr)+len(mantissa)+len(expSymbol)+1+nexp > width {
				break
			}
		}
		expSign := "+"
		if exponent < 0 {
			expSign = "-"
			exponent = -exponent
		}
		expDigits := strconv.Itoa(exponent)
		if len(expDigits) > nexp {
			continue
		}
		expDigits = strings.Repeat("0", nexp-len(expDigits)) + expDigits
		res := signStr + mantissa + expSymbol + expSign + expDigits
		if len(res) > width {
			break
		}
		return fmt.Sprintf("%*s", width, res), nil
	}
	return "", errors.New(errors.CodeFieldOverflow, map[string]any{"Value": v, "Width": width})
}

// basicForm writes v in fixed-point notation, using as many decimals as
// the field allows. The result may be wider than the field.
func basicForm(v float64, opts WriteOptions) string {
	width := opts.width()
	effWidth := width
	intPart := math.Trunc(v)
	intStr := strconv.FormatFloat(math.Abs(intPart), 'f', 0, 64)
	isInteger := intPart == v
	if isInteger && intPart == 0 {
		return fmt.Sprintf("%*s", width, "0")
	}

	// one column for the sign, one for the decimal point
	waste := 2
	if opts.AbuseSignpos && v > 0 {
		waste--
	}
	skipZero := opts.SkipIntzero && intPart == 0
	if skipZero {
		effWidth++
	}
	if isInteger {
		waste--
	}
	floatWidth := effWidth - waste - len(intStr)

	var numStr string
	if floatWidth > 0 && !isInteger {
		numStr = fmt.Sprintf("%*.*f", effWidth, floatWidth, v)
		if skipZero {
			if dot := strings.IndexByte(numStr, '.'); dot > 0 {
				numStr = numStr[:dot-1] + numStr[dot:]
			}
		}
	} else {
		numStr = strconv.FormatFloat(intPart, 'f', 0, 64)
		if v > 0 && !opts.AbuseSignpos {
			numStr = " " + numStr
		}
		if len(numStr) <= width-2 {
			numStr += "."
			numStr += strings.Repeat("0", width-len(numStr))
		}
	}
	if len(numStr) < width {
		numStr = fmt.Sprintf("%*s", width, numStr)
	}
	return numStr
}

// ReadFloats decodes n consecutive float fields from one line.
func ReadFloats(line string, n int, opts ReadOptions) ([]float64, error) {
	width := opts.width()
	vals := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v, err := ReadFloat(field(line, i*width, width), opts)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// WriteFloats encodes vals as consecutive fields.
func WriteFloats(vals []float64, opts WriteOptions) (string, error) {
	var sb strings.Builder
	for _, v := range vals {
		s, err := WriteFloat(v, opts)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// Field returns columns [start, start+width) of line, padding short lines
// with blanks.
func Field(line string, start, width int) string {
	return field(line, start, width)
}

func field(line string, start, width int) string {
	if start >= len(line) {
		return strings.Repeat(" ", width)
	}
	end := start + width
	if end > len(line) {
		return line[start:] + strings.Repeat(" ", end-len(line))
	}
	return line[start:end]
}
