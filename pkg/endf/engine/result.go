package engine

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"gopkg.in/yaml.v3"

	"github.com/sambeau/endf/pkg/endf/scope"
)

// Section is the outcome for one MF/MT section: parsed data, or the raw
// lines when no recipe applied or the recipe failed.
type Section struct {
	MF, MT int
	Data   *scope.Dict
	Raw    []string
	Err    error // why a section with a recipe was kept raw
}

// Parsed reports whether the section holds data rather than raw lines.
func (s *Section) Parsed() bool { return s.Data != nil }

// Result holds the sections of a tape ordered by MF and then MT.
type Result struct {
	files *treemap.Map // MF -> *treemap.Map (MT -> *Section)
}

// NewResult returns an empty result.
func NewResult() *Result {
	return &Result{files: treemap.NewWithIntComparator()}
}

func (r *Result) put(s *Section) {
	v, ok := r.files.Get(s.MF)
	if !ok {
		v = treemap.NewWithIntComparator()
		r.files.Put(s.MF, v)
	}
	v.(*treemap.Map).Put(s.MT, s)
}

// SetData stores parsed data for section (mf, mt).
func (r *Result) SetData(mf, mt int, d *scope.Dict) {
	r.put(&Section{MF: mf, MT: mt, Data: d})
}

// SetRaw stores the raw lines of section (mf, mt).
func (r *Result) SetRaw(mf, mt int, lines []string) {
	r.put(&Section{MF: mf, MT: mt, Raw: lines})
}

// Get returns section (mf, mt).
func (r *Result) Get(mf, mt int) (*Section, bool) {
	v, ok := r.files.Get(mf)
	if !ok {
		return nil, false
	}
	s, ok := v.(*treemap.Map).Get(mt)
	if !ok {
		return nil, false
	}
	return s.(*Section), true
}

// Delete removes section (mf, mt).
func (r *Result) Delete(mf, mt int) {
	v, ok := r.files.Get(mf)
	if !ok {
		return
	}
	m := v.(*treemap.Map)
	m.Remove(mt)
	if m.Empty() {
		r.files.Remove(mf)
	}
}

// MFs returns the file numbers in ascending order.
func (r *Result) MFs() []int {
	keys := make([]int, 0, r.files.Size())
	for _, k := range r.files.Keys() {
		keys = append(keys, k.(int))
	}
	return keys
}

// MTs returns the section numbers of file mf in ascending order.
func (r *Result) MTs(mf int) []int {
	v, ok := r.files.Get(mf)
	if !ok {
		return nil
	}
	m := v.(*treemap.Map)
	keys := make([]int, 0, m.Size())
	for _, k := range m.Keys() {
		keys = append(keys, k.(int))
	}
	return keys
}

// Sections returns every section in MF, MT order.
func (r *Result) Sections() []*Section {
	var out []*Section
	r.files.Each(func(_, v any) {
		for _, s := range v.(*treemap.Map).Values() {
			out = append(out, s.(*Section))
		}
	})
	return out
}

// Len returns the number of sections.
func (r *Result) Len() int {
	n := 0
	r.files.Each(func(_, v any) {
		n += v.(*treemap.Map).Size()
	})
	return n
}

// MarshalYAML emits MF -> MT -> data, with raw sections as lists of lines.
func (r *Result) MarshalYAML() (any, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, mf := range r.MFs() {
		file := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, mt := range r.MTs(mf) {
			s, _ := r.Get(mf, mt)
			var val yaml.Node
			if s.Parsed() {
				if err := val.Encode(s.Data); err != nil {
					return nil, err
				}
			} else if err := val.Encode(s.Raw); err != nil {
				return nil, err
			}
			file.Content = append(file.Content, intNode(mt), &val)
		}
		root.Content = append(root.Content, intNode(mf), file)
	}
	return root, nil
}

func intNode(i int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(i)}
}

// UnmarshalYAML reads what MarshalYAML wrote.
func (r *Result) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of MF numbers", n.Line)
	}
	if r.files == nil {
		r.files = treemap.NewWithIntComparator()
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		var mf int
		if err := n.Content[i].Decode(&mf); err != nil {
			return fmt.Errorf("line %d: MF key: %w", n.Content[i].Line, err)
		}
		file := n.Content[i+1]
		if file.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: expected a mapping of MT numbers", file.Line)
		}
		for j := 0; j+1 < len(file.Content); j += 2 {
			var mt int
			if err := file.Content[j].Decode(&mt); err != nil {
				return fmt.Errorf("line %d: MT key: %w", file.Content[j].Line, err)
			}
			sec := file.Content[j+1]
			switch sec.Kind {
			case yaml.MappingNode:
				d := scope.NewDict()
				if err := d.UnmarshalYAML(sec); err != nil {
					return err
				}
				r.SetData(mf, mt, d)
			case yaml.SequenceNode:
				var lines []string
				if err := sec.Decode(&lines); err != nil {
					return err
				}
				r.SetRaw(mf, mt, lines)
			default:
				return fmt.Errorf("line %d: MF%d/MT%d is neither data nor lines", sec.Line, mf, mt)
			}
		}
	}
	return nil
}
