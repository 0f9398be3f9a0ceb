package recipes

import (
	"sync"

	"github.com/segmentio/fasthash/fnv1a"

	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/parser"
)

// Cache holds compiled recipes keyed by a hash of their source, so a text
// registered under several keys is parsed once. Compiled trees are never
// modified and may be shared between interpreters.
type Cache struct {
	mu     sync.Mutex
	trees  map[uint64]compiled
	hits   int
	misses int
}

type compiled struct {
	source string
	tree   *ast.Recipe
}

var sharedCache = NewCache()

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{trees: make(map[uint64]compiled)}
}

// Compile returns the tree of source, parsing it on first use. name is
// used in error messages only.
func (c *Cache) Compile(source, name string) (*ast.Recipe, error) {
	h := fnv1a.HashString64(source)

	c.mu.Lock()
	if e, ok := c.trees[h]; ok && e.source == source {
		c.hits++
		c.mu.Unlock()
		return e.tree, nil
	}
	c.misses++
	c.mu.Unlock()

	tree, err := parser.Parse(source, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.trees[h]; !taken {
		c.trees[h] = compiled{source: source, tree: tree}
	}
	return tree, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached trees.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.trees)
}

// Purge drops every cached tree.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trees = make(map[uint64]compiled)
}
