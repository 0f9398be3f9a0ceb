package interp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/sambeau/endf/pkg/endf/ast"
	"github.com/sambeau/endf/pkg/endf/logging"
)

// Descriptions holds the variable notes found in recipe comments, keyed by
// the path of the section that declared them. A path element "*" matches
// any key, so one note covers every element of an array of sections.
type Descriptions struct {
	entries *linkedhashmap.Map // "3/1/subsection/*/E" -> text
}

// NewDescriptions returns an empty set of descriptions.
func NewDescriptions() *Descriptions {
	return &Descriptions{entries: linkedhashmap.New()}
}

// Add stores text for path, replacing an earlier note.
func (d *Descriptions) Add(path []string, text string) {
	d.entries.Put(strings.Join(path, "/"), text)
}

// Len returns the number of notes.
func (d *Descriptions) Len() int {
	return d.entries.Size()
}

// Lookup returns the note for path. An exact entry wins over one that
// needs wildcards; among those, the first one declared wins.
func (d *Descriptions) Lookup(path []string) (string, bool) {
	if v, ok := d.entries.Get(strings.Join(path, "/")); ok {
		return v.(string), true
	}
	it := d.entries.Iterator()
	for it.Next() {
		if matchPath(strings.Split(it.Key().(string), "/"), path) {
			return it.Value().(string), true
		}
	}
	return "", false
}

func matchPath(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i := range pattern {
		if pattern[i] != "*" && pattern[i] != path[i] {
			return false
		}
	}
	return true
}

var varComment = regexp.MustCompile(`^\s*#(\s*var\s+([a-zA-Z0-9/*]+)\s*(\[[^\]]*\])?\s*:)?(.*)$`)

// splitComment returns the variable a comment line introduces (if any),
// the text after the marker, and the width of the marker after '#'.
func splitComment(line string) (name, text string, indent int) {
	m := varComment.FindStringSubmatch(line)
	if m == nil {
		return "", "", 0
	}
	return m[2], m[4], len(m[1])
}

func leadingSpaces(s string) int {
	return len(s) - len(strings.TrimLeft(s, " "))
}

// describe records the `# var NAME: text` notes of a comment block under
// the path of the section that is open.
func (it *Interpreter) describe(node *ast.CommentBlock) {
	var prefix []string
	for _, p := range it.scope.Path() {
		prefix = append(prefix, fmt.Sprint(p))
	}
	addNotes(it.descr, prefix, node.Lines, it.log)
}

// addNotes parses the notes of one comment block. The first text line of
// a note sets the indentation that continuation lines are cut to.
func addNotes(d *Descriptions, prefix, lines []string, log logging.Logger) {
	for i := 0; i < len(lines); i++ {
		name, text, indent := splitComment(lines[i])
		if name == "" {
			continue
		}
		var first int
		var body []string
		if strings.TrimSpace(text) != "" {
			first = indent + leadingSpaces(text)
			body = append(body, strings.TrimLeft(text, " "))
		} else {
			if i+1 >= len(lines) {
				log.Warn("empty description of %s", name)
				continue
			}
			next, text, _ := splitComment(lines[i+1])
			if next != "" {
				log.Warn("empty description of %s", name)
				continue
			}
			i++
			first = leadingSpaces(text)
			body = append(body, text[first:])
		}
		for i+1 < len(lines) {
			next, text, _ := splitComment(lines[i+1])
			if next != "" {
				break
			}
			body = append(body, text[min(first, leadingSpaces(text)):])
			i++
		}

		path := append(append([]string{}, prefix...), strings.Split(name, "/")...)
		d.Add(path, strings.TrimSpace(strings.Join(body, "\n")))
	}
}

// CollectDescriptions gathers the notes of recipe without running it. The
// indices of sections are not known in advance, so every index becomes a
// "*" element of the path.
func CollectDescriptions(recipe *ast.Recipe, mf, mt int, d *Descriptions) {
	collect(recipe.Statements, []string{fmt.Sprint(mf), fmt.Sprint(mt)}, d)
}

func collect(stmts []ast.Statement, prefix []string, d *Descriptions) {
	for _, stmt := range stmts {
		switch node := stmt.(type) {
		case *ast.CommentBlock:
			addNotes(d, prefix, node.Lines, logging.NullLogger())
		case *ast.ForStatement:
			collect(node.Body, prefix, d)
		case *ast.RepeatStatement:
			collect(node.Body, prefix, d)
		case *ast.IfStatement:
			for _, br := range node.Branches {
				collect(br.Body, prefix, d)
			}
			collect(node.Else, prefix, d)
		case *ast.SectionStatement:
			inner := append(append([]string{}, prefix...), node.Var.Name)
			for range node.Var.Indices {
				inner = append(inner, "*")
			}
			collect(node.Body, inner, d)
		}
	}
}
