package recipes

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/errors"
)

func TestDefaultCatalogue(t *testing.T) {
	table := Default()
	if errs := table.Compile(); len(errs) > 0 {
		t.Fatalf("catalogue does not compile: %v", errs)
	}

	tests := []struct {
		mf, mt int
		name   string
	}{
		{0, 0, "mf0_mt0.recipe"},
		{1, 451, "mf1_mt451.recipe"},
		{1, 452, "mf1_mt452.recipe"},
		{3, 1, "mf3.recipe"},
		{3, 102, "mf3.recipe"},
		{4, 2, "mf4.recipe"},
		{5, 18, "mf5.recipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := table.Lookup(tt.mf, tt.mt)
			if !ok {
				t.Fatalf("no recipe for MF%d/MT%d", tt.mf, tt.mt)
			}
			if e.Name != tt.name {
				t.Errorf("Lookup(%d, %d) = %s, want %s", tt.mf, tt.mt, e.Name, tt.name)
			}
		})
	}

	if _, ok := table.Lookup(1, 460); ok {
		t.Errorf("Lookup(1, 460) found a recipe, want none")
	}
}

func TestDefaultReturnsCopy(t *testing.T) {
	a := Default()
	a.Delete(Key{3, WholeFile})
	if _, ok := Default().Lookup(3, 1); !ok {
		t.Errorf("deleting from one copy changed the catalogue")
	}
}

func TestLookupOrder(t *testing.T) {
	table := NewTable(NewCache())
	table.Set(Key{8, Fallback}, "mf8_any.recipe", "SEND")
	table.Set(Key{8, 457}, "mf8_mt457.recipe", "SEND\n")

	tests := []struct {
		mt   int
		want string
	}{
		{457, "mf8_mt457.recipe"},
		{454, "mf8_any.recipe"},
	}
	for _, tt := range tests {
		e, ok := table.Lookup(8, tt.mt)
		if !ok || e.Name != tt.want {
			t.Errorf("Lookup(8, %d) = %v, want %s", tt.mt, e, tt.want)
		}
	}

	table.Set(Key{8, WholeFile}, "mf8.recipe", "SEND")
	if e, _ := table.Lookup(8, 454); e.Name != "mf8.recipe" {
		t.Errorf("whole-file recipe did not win over the fallback: %s", e.Name)
	}
	if e, _ := table.Lookup(8, 457); e.Name != "mf8_mt457.recipe" {
		t.Errorf("exact recipe did not win over the whole-file one: %s", e.Name)
	}
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		ok   bool
	}{
		{"mf3.recipe", Key{3, WholeFile}, true},
		{"mf1_mt451.recipe", Key{1, 451}, true},
		{"mf8_any.recipe", Key{8, Fallback}, true},
		{"mf3.txt", Key{}, false},
		{"MF3.recipe", Key{}, false},
		{"mf3_mt.recipe", Key{}, false},
		{"mf8_mtany.recipe", Key{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := ParseFileName(tt.name)
			if ok != tt.ok || key != tt.key {
				t.Errorf("ParseFileName(%q) = %v, %v, want %v, %v", tt.name, key, ok, tt.key, tt.ok)
			}
			if ok && key.FileName() != tt.name {
				t.Errorf("FileName() = %q, want %q", key.FileName(), tt.name)
			}
		})
	}
}

func TestCacheSharesTrees(t *testing.T) {
	cache := NewCache()
	table := NewTable(cache)
	src := "[MAT, 3, MT/ ZA, AWR, 0, 0, 0, 0] HEAD\nSEND\n"
	table.Set(Key{3, WholeFile}, "mf3.recipe", src)
	table.Set(Key{23, WholeFile}, "mf23.recipe", src)

	a, _, err := table.Recipe(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := table.Recipe(23, 501)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("identical sources compiled to different trees")
	}
	if hits, misses := cache.Stats(); hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses, want 1, 1", hits, misses)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestMustRecipe(t *testing.T) {
	table := NewTable(NewCache())
	_, err := table.MustRecipe(2, 151)
	if !errors.HasCode(err, errors.CodeRecipeNotFound) {
		t.Errorf("MustRecipe error = %v, want %s", err, errors.CodeRecipeNotFound)
	}

	table.Set(Key{2, 151}, "mf2_mt151.recipe", "[MAT, 2, 151/ ZA, AWR]BOGUS\n")
	if _, err := table.MustRecipe(2, 151); err == nil {
		t.Errorf("MustRecipe compiled a broken recipe")
	}
	if errs := table.Compile(); len(errs) != 1 {
		t.Errorf("Compile() returned %d errors, want 1", len(errs))
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"mf3.recipe":       "[MAT, 3, MT/ ZA, AWR, 0, 0, 0, 0] HEAD\nSEND\n",
		"mf1_mt452.recipe": "[MAT, 1, 452/ ZA, AWR, 0, LNU, 0, 0]HEAD\nSEND\n",
		"mf8_any.recipe":   "[MAT, 8, MT/ ZA, AWR, 0, 0, 0, 0] HEAD\nSEND\n",
		"notes.txt":        "not a recipe",
	}
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	table, err := LoadDir(dir, NewCache())
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", table.Len())
	}
	entries := table.Entries()
	if entries[0].Key != (Key{1, 452}) || entries[1].Key != (Key{3, WholeFile}) || entries[2].Key != (Key{8, Fallback}) {
		t.Errorf("entries out of order: %v, %v, %v", entries[0].Key, entries[1].Key, entries[2].Key)
	}
	if e, ok := table.Lookup(8, 102); !ok || e.Name != "mf8_any.recipe" {
		t.Errorf("Lookup(8, 102) = %v, %v, want the mf8_any.recipe fallback", e, ok)
	}

	merged := Default()
	merged.Merge(table)
	if e, _ := merged.Lookup(3, 1); e.Source != files["mf3.recipe"] {
		t.Errorf("directory recipe did not override the catalogue")
	}
	if _, ok := merged.Lookup(4, 2); !ok {
		t.Errorf("merge dropped catalogue recipes")
	}

	if _, err := LoadDir(filepath.Join(dir, "missing"), nil); !errors.HasCode(err, errors.CodeFileRead) {
		t.Errorf("LoadDir(missing) error = %v, want %s", err, errors.CodeFileRead)
	}
}

func TestWatcherRecompiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "mf3.recipe")
	if err := os.WriteFile(file, []byte("SEND\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	type reload struct {
		table *Table
		errs  []error
	}
	reloads := make(chan reload, 8)
	w, err := NewWatcher(dir, func(table *Table, errs []error) {
		reloads <- reload{table, errs}
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.Debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	wait := func() reload {
		t.Helper()
		select {
		case r := <-reloads:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("no reload within 5s")
		}
		return reload{}
	}

	first := wait()
	if first.table == nil || first.table.Len() != 1 || len(first.errs) != 0 {
		t.Fatalf("initial reload = %+v", first)
	}

	if err := os.WriteFile(file, []byte("[MAT, 3, MT/ ZA]BOGUS\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	second := wait()
	if len(second.errs) != 1 {
		t.Errorf("reload after a broken edit reported %d errors, want 1", len(second.errs))
	}
	if w.ChangeSeq() == 0 {
		t.Errorf("ChangeSeq() = 0 after a change")
	}
}

func TestCatalogueDescriptions(t *testing.T) {
	tree, err := Default().MustRecipe(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	var comments int
	for _, stmt := range tree.Statements {
		if _, ok := stmt.(*ast.CommentBlock); ok {
			comments++
		}
	}
	if comments == 0 {
		t.Errorf("MF3 recipe lost its variable notes")
	}
}
