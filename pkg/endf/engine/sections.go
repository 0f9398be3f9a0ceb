package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// AnyMT makes a SectionSpec match every section of its file.
const AnyMT = -1

// SectionSpec selects a whole file (MT == AnyMT) or one section.
type SectionSpec struct {
	MF int
	MT int
}

func (s SectionSpec) String() string {
	if s.MT == AnyMT {
		return strconv.Itoa(s.MF)
	}
	return fmt.Sprintf("%d/%d", s.MF, s.MT)
}

// Matches reports whether section (mf, mt) is selected.
func (s SectionSpec) Matches(mf, mt int) bool {
	return s.MF == mf && (s.MT == AnyMT || s.MT == mt)
}

// ParseSectionSpec reads "MF" or "MF/MT".
func ParseSectionSpec(text string) (SectionSpec, error) {
	mfText, mtText, hasMT := strings.Cut(strings.TrimSpace(text), "/")
	mf, err := strconv.Atoi(strings.TrimSpace(mfText))
	if err != nil || mf < 0 {
		return SectionSpec{}, fmt.Errorf("invalid section %q: MF must be a non-negative integer", text)
	}
	if !hasMT {
		return SectionSpec{MF: mf, MT: AnyMT}, nil
	}
	mt, err := strconv.Atoi(strings.TrimSpace(mtText))
	if err != nil || mt < 0 {
		return SectionSpec{}, fmt.Errorf("invalid section %q: MT must be a non-negative integer", text)
	}
	return SectionSpec{MF: mf, MT: mt}, nil
}

// ParseSectionSpecs reads a list of specs, stopping at the first bad one.
func ParseSectionSpecs(texts []string) ([]SectionSpec, error) {
	specs := make([]SectionSpec, 0, len(texts))
	for _, t := range texts {
		s, err := ParseSectionSpec(t)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

func anyMatches(specs []SectionSpec, mf, mt int) bool {
	for _, s := range specs {
		if s.Matches(mf, mt) {
			return true
		}
	}
	return false
}

// skip reports whether section (mf, mt) is left out. An exclude list takes
// precedence; an include list is only consulted when nothing is excluded.
func skip(mf, mt int, include, exclude []SectionSpec) bool {
	if len(exclude) > 0 {
		return anyMatches(exclude, mf, mt)
	}
	if len(include) > 0 {
		return !anyMatches(include, mf, mt)
	}
	return false
}
