package scope

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"gopkg.in/yaml.v3"

	"github.com/sambeau/endf/pkg/endf/expr"
)

// Dict is an insertion-ordered mapping from string or int keys to values.
// Values are int, float64, string, []int, []float64, []string, nested
// *Dict, or an ast.Expression while an abbreviation is active.
type Dict struct {
	m *linkedhashmap.Map
}

// NewDict returns an empty Dict.
func NewDict() *Dict {
	return &Dict{m: linkedhashmap.New()}
}

func normKey(key any) any {
	switch k := key.(type) {
	case int64:
		return int(k)
	case int32:
		return int(k)
	case uint:
		return int(k)
	}
	return key
}

// Get returns the value stored under key.
func (d *Dict) Get(key any) (any, bool) {
	return d.m.Get(normKey(key))
}

// Set stores value under key, keeping the position of an existing key.
func (d *Dict) Set(key, value any) {
	d.m.Put(normKey(key), value)
}

// Delete removes key.
func (d *Dict) Delete(key any) {
	d.m.Remove(normKey(key))
}

// Has reports whether key is present.
func (d *Dict) Has(key any) bool {
	_, ok := d.m.Get(normKey(key))
	return ok
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return d.m.Size()
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []any {
	return d.m.Keys()
}

// Each calls fn for every entry in order until fn returns false.
func (d *Dict) Each(fn func(key, value any) bool) {
	it := d.m.Iterator()
	for it.Next() {
		if !fn(it.Key(), it.Value()) {
			return
		}
	}
}

// Sub returns the nested Dict stored under key.
func (d *Dict) Sub(key any) (*Dict, bool) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	sub, ok := v.(*Dict)
	return sub, ok
}

// Path follows keys through nested dicts.
func (d *Dict) Path(keys ...any) (any, bool) {
	var cur any = d
	for _, k := range keys {
		sub, ok := cur.(*Dict)
		if !ok {
			return nil, false
		}
		if cur, ok = sub.Get(k); !ok {
			return nil, false
		}
	}
	return cur, true
}

// Int returns the integer stored under key.
func (d *Dict) Int(key any) (int, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := expr.FromValue(v)
	if !ok {
		return 0, false
	}
	return n.AsInt()
}

// Clone returns a deep copy.
func (d *Dict) Clone() *Dict {
	out := NewDict()
	d.Each(func(k, v any) bool {
		out.Set(k, cloneValue(v))
		return true
	})
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case *Dict:
		return val.Clone()
	case []int:
		return append([]int(nil), val...)
	case []float64:
		return append([]float64(nil), val...)
	case []string:
		return append([]string(nil), val...)
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = cloneValue(x)
		}
		return out
	}
	return v
}

// Equal compares contents recursively, ignoring key order. Numbers
// compare by value, so 2 equals 2.0.
func (d *Dict) Equal(o *Dict) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.Len() != o.Len() {
		return false
	}
	equal := true
	d.Each(func(k, v any) bool {
		w, ok := o.Get(k)
		if !ok || !ValuesEqual(v, w) {
			equal = false
		}
		return equal
	})
	return equal
}

// ValuesEqual compares two stored values.
func ValuesEqual(a, b any) bool {
	if da, ok := a.(*Dict); ok {
		db, ok := b.(*Dict)
		return ok && da.Equal(db)
	}
	if na, ok := expr.FromValue(a); ok {
		nb, ok := expr.FromValue(b)
		return ok && na.Equal(nb)
	}
	la, aIsList := AsList(a)
	lb, bIsList := AsList(b)
	if aIsList || bIsList {
		if !aIsList || !bIsList || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !ValuesEqual(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// AsList returns the elements of a list value.
func AsList(v any) ([]any, bool) {
	switch val := v.(type) {
	case []int:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = x
		}
		return out, true
	case []float64:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = x
		}
		return out, true
	case []string:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = x
		}
		return out, true
	case []any:
		return val, true
	}
	return nil, false
}

// String renders the dict in flow style, for logs and test failures.
func (d *Dict) String() string {
	var parts []string
	d.Each(func(k, v any) bool {
		parts = append(parts, fmt.Sprintf("%v: %v", k, v))
		return true
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalYAML emits the dict as an ordered mapping.
func (d *Dict) MarshalYAML() (any, error) {
	return d.node(), nil
}

func (d *Dict) node() *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	d.Each(func(k, v any) bool {
		vn := valueNode(v)
		if vn == nil {
			return true
		}
		n.Content = append(n.Content, keyNode(k), vn)
		return true
	})
	return n
}

func keyNode(k any) *yaml.Node {
	if i, ok := k.(int); ok {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(i)}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fmt.Sprint(k)}
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// valueNode returns nil for values that are not data (active abbreviations).
func valueNode(v any) *yaml.Node {
	switch val := v.(type) {
	case *Dict:
		return val.node()
	case int:
		return scalar("!!int", strconv.Itoa(val))
	case float64:
		return scalar("!!float", formatFloat(val))
	case string:
		return scalar("!!str", val)
	case bool:
		return scalar("!!bool", strconv.FormatBool(val))
	case nil:
		return scalar("!!null", "null")
	}
	if list, ok := AsList(v); ok {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, x := range list {
			if xn := valueNode(x); xn != nil {
				seq.Content = append(seq.Content, xn)
			}
		}
		return seq
	}
	return nil
}

// UnmarshalYAML reads an ordered mapping; integer keys become int keys.
func (d *Dict) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	if d.m == nil {
		d.m = linkedhashmap.New()
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		kn, vn := n.Content[i], n.Content[i+1]
		var key any = kn.Value
		if kn.ShortTag() == "!!int" {
			k, err := strconv.Atoi(kn.Value)
			if err != nil {
				return fmt.Errorf("line %d: %w", kn.Line, err)
			}
			key = k
		}
		val, err := decodeValue(vn)
		if err != nil {
			return err
		}
		d.Set(key, val)
	}
	return nil
}

func decodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return decodeValue(n.Alias)
	case yaml.MappingNode:
		sub := NewDict()
		if err := sub.UnmarshalYAML(n); err != nil {
			return nil, err
		}
		return sub, nil
	case yaml.SequenceNode:
		items := make([]any, len(n.Content))
		for i, c := range n.Content {
			v, err := decodeValue(c)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return narrowList(items), nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!int":
			var i int
			err := n.Decode(&i)
			return i, err
		case "!!float":
			var f float64
			err := n.Decode(&f)
			return f, err
		case "!!bool":
			var b bool
			err := n.Decode(&b)
			return b, err
		case "!!null":
			return nil, nil
		}
		return n.Value, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

// narrowList turns homogeneous lists into typed slices.
func narrowList(items []any) any {
	allInt, allNum, allStr := true, true, true
	for _, x := range items {
		switch x.(type) {
		case int:
			allStr = false
		case float64:
			allInt, allStr = false, false
		case string:
			allInt, allNum = false, false
		default:
			allInt, allNum, allStr = false, false, false
		}
	}
	switch {
	case len(items) == 0:
		return []float64{}
	case allInt:
		out := make([]int, len(items))
		for i, x := range items {
			out[i] = x.(int)
		}
		return out
	case allNum:
		out := make([]float64, len(items))
		for i, x := range items {
			n, _ := expr.FromValue(x)
			out[i] = n.Float64()
		}
		return out
	case allStr:
		out := make([]string, len(items))
		for i, x := range items {
			out[i] = x.(string)
		}
		return out
	}
	return items
}

// SortedIntKeys returns the int keys of d in ascending order.
func (d *Dict) SortedIntKeys() []int {
	var keys []int
	d.Each(func(k, _ any) bool {
		if i, ok := k.(int); ok {
			keys = append(keys, i)
		}
		return true
	})
	sort.Ints(keys)
	return keys
}
