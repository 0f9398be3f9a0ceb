// Package recipes maps ENDF sections to the recipes that describe them.
//
// A recipe is registered under an exact (MF, MT) pair, under a whole file
// (every MT of one MF), or as the fallback of a file that applies when
// neither of the others matches. The built-in catalogue is embedded in the
// binary; a directory of .recipe files can add to or override it.
package recipes

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/errors"
)

//go:embed catalogue/*.recipe
var catalogue embed.FS

// Special MT values of a Key.
const (
	Fallback  = -1 // used when no exact or whole-file recipe matches
	WholeFile = -2 // every MT of the file
)

// Key identifies where a recipe is registered.
type Key struct {
	MF int
	MT int
}

func (k Key) String() string {
	switch k.MT {
	case WholeFile:
		return fmt.Sprintf("MF%d", k.MF)
	case Fallback:
		return fmt.Sprintf("MF%d/*", k.MF)
	}
	return fmt.Sprintf("MF%d/MT%d", k.MF, k.MT)
}

// FileName returns the name LoadDir expects for the key.
func (k Key) FileName() string {
	switch k.MT {
	case WholeFile:
		return fmt.Sprintf("mf%d.recipe", k.MF)
	case Fallback:
		return fmt.Sprintf("mf%d_any.recipe", k.MF)
	}
	return fmt.Sprintf("mf%d_mt%d.recipe", k.MF, k.MT)
}

func compareKeys(a, b any) int {
	ka, kb := a.(Key), b.(Key)
	if ka.MF != kb.MF {
		return ka.MF - kb.MF
	}
	return ka.MT - kb.MT
}

// Entry is one registered recipe.
type Entry struct {
	Key    Key
	Name   string // file the source came from
	Source string
}

// Table is a set of recipes. It is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	entries *treemap.Map // Key -> *Entry
	cache   *Cache
}

// NewTable returns an empty table that compiles through cache. A nil cache
// means the shared package cache.
func NewTable(cache *Cache) *Table {
	if cache == nil {
		cache = sharedCache
	}
	return &Table{entries: treemap.NewWith(compareKeys), cache: cache}
}

// Set registers source under key, replacing an earlier recipe.
func (t *Table) Set(key Key, name, source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries.Put(key, &Entry{Key: key, Name: name, Source: source})
}

// Delete removes the recipe registered under key.
func (t *Table) Delete(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries.Remove(key)
}

// Len returns the number of registered recipes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries.Size()
}

// Entries returns the registered recipes ordered by MF and MT.
func (t *Table) Entries() []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Entry, 0, t.entries.Size())
	for _, v := range t.entries.Values() {
		out = append(out, v.(*Entry))
	}
	return out
}

// Lookup finds the recipe for section (mf, mt): an exact match first, then
// the whole file, then the file's fallback.
func (t *Table) Lookup(mf, mt int) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, key := range []Key{{mf, mt}, {mf, WholeFile}, {mf, Fallback}} {
		if v, ok := t.entries.Get(key); ok {
			return v.(*Entry), true
		}
	}
	return nil, false
}

// Recipe returns the compiled recipe for section (mf, mt). The boolean is
// false when no recipe is registered.
func (t *Table) Recipe(mf, mt int) (*ast.Recipe, bool, error) {
	e, ok := t.Lookup(mf, mt)
	if !ok {
		return nil, false, nil
	}
	tree, err := t.cache.Compile(e.Source, e.Name)
	if err != nil {
		return nil, true, err
	}
	return tree, true, nil
}

// MustRecipe is like Recipe but reports a missing recipe as an error.
func (t *Table) MustRecipe(mf, mt int) (*ast.Recipe, error) {
	tree, ok, err := t.Recipe(mf, mt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New(errors.CodeRecipeNotFound, map[string]any{"MF": mf, "MT": mt})
	}
	return tree, nil
}

// Compile parses every recipe and returns the errors of those that fail,
// in key order.
func (t *Table) Compile() []error {
	var errs []error
	for _, e := range t.Entries() {
		if _, err := t.cache.Compile(e.Source, e.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Merge copies the recipes of other into t, replacing recipes with the
// same key.
func (t *Table) Merge(other *Table) {
	for _, e := range other.Entries() {
		t.Set(e.Key, e.Name, e.Source)
	}
}

// Clone returns a copy of t sharing its cache.
func (t *Table) Clone() *Table {
	c := NewTable(t.cache)
	c.Merge(t)
	return c
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns a copy of the built-in catalogue.
func Default() *Table {
	defaultOnce.Do(func() {
		var err error
		defaultTable, err = loadFS(catalogue, "catalogue", nil)
		if err != nil {
			panic("recipes: broken catalogue: " + err.Error())
		}
	})
	return defaultTable.Clone()
}

var fileName = regexp.MustCompile(`^mf(\d+)(?:_(?:mt(\d+)|(any)))?\.recipe$`)

// ParseFileName returns the key encoded in a recipe file name:
// mfN.recipe for a whole file, mfN_mtM.recipe for one section and
// mfN_any.recipe for the fallback of a file.
func ParseFileName(name string) (Key, bool) {
	m := fileName.FindStringSubmatch(name)
	if m == nil {
		return Key{}, false
	}
	mf, _ := strconv.Atoi(m[1])
	switch {
	case m[3] != "":
		return Key{mf, Fallback}, true
	case m[2] == "":
		return Key{mf, WholeFile}, true
	}
	mt, _ := strconv.Atoi(m[2])
	return Key{mf, mt}, true
}

// LoadDir reads the recipe files of dir. Files whose names do not encode
// a key are ignored.
func LoadDir(dir string, cache *Cache) (*Table, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.New(errors.CodeFileRead, map[string]any{"Path": dir, "Error": err.Error()})
	}
	if !info.IsDir() {
		return nil, errors.New(errors.CodeFileRead, map[string]any{"Path": dir, "Error": "not a directory"})
	}
	t, err := loadFS(os.DirFS(dir), ".", cache)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func loadFS(fsys fs.FS, dir string, cache *Cache) (*Table, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.New(errors.CodeFileRead, map[string]any{"Path": dir, "Error": err.Error()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	t := NewTable(cache)
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		key, ok := ParseFileName(de.Name())
		if !ok {
			continue
		}
		p := path.Join(dir, de.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, errors.New(errors.CodeFileRead, map[string]any{"Path": p, "Error": err.Error()})
		}
		t.Set(key, de.Name(), string(data))
	}
	return t, nil
}
