// Package template turns a parsed template into the per-template facts the
// registry needs: its parent, blocks, top-level macros and macro imports.
package template

import (
	"github.com/leapstack-labs/leaptmpl/pkg/ast"
	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/parser"
	"github.com/leapstack-labs/leaptmpl/pkg/token"
)

// MacroImport is one {% import "file" as ns %} declaration.
type MacroImport struct {
	File      string
	Namespace string
	Pos       token.Position
}

// BlockDefinition is one template's definition of a named block.
type BlockDefinition struct {
	Template string
	Block    *ast.Block
}

// MacroNamespace is an import resolved to the template that provides it.
type MacroNamespace struct {
	Template string
	Macros   map[string]*ast.Macro
}

// Template is an analyzed template.
//
// Name through Blocks are set by Analyze and never change. Parents,
// BlocksDefinitions and Namespaces are filled in by registry resolution
// and are read-only once the registry is resolved.
type Template struct {
	Name string
	Path string
	AST  *ast.Root

	// Macros holds top-level macro definitions by name.
	Macros map[string]*ast.Macro
	// ImportedMacroFiles lists imports in declaration order.
	ImportedMacroFiles []MacroImport
	// Parent is the extended template's name, or empty.
	Parent string
	// Blocks holds every block in the template at any depth.
	Blocks map[string]*ast.Block

	// Parents lists ancestors nearest first.
	Parents []string
	// BlocksDefinitions maps a block name to its definitions ordered from
	// the most distant ancestor to this template.
	BlocksDefinitions map[string][]BlockDefinition
	// Namespaces maps an import namespace to the macros it provides.
	Namespaces map[string]*MacroNamespace
}

// New parses source and analyzes the result.
func New(name, path, source string) (*Template, error) {
	root, err := parser.ParseFile(name, source)
	if err != nil {
		return nil, err
	}
	return Analyze(name, path, root)
}

// Analyze collects blocks, macros, imports and the parent of root.
func Analyze(name, path string, root *ast.Root) (*Template, error) {
	t := &Template{
		Name:   name,
		Path:   path,
		AST:    root,
		Macros: make(map[string]*ast.Macro),
		Blocks: make(map[string]*ast.Block),
	}

	if err := t.collectBlocks(root); err != nil {
		return nil, core.WithTemplate(err, name)
	}
	if err := t.collectTopLevel(root); err != nil {
		return nil, core.WithTemplate(err, name)
	}
	return t, nil
}

// collectBlocks walks the whole tree in pre-order. Block names are unique
// per template regardless of nesting.
func (t *Template) collectBlocks(root *ast.Root) error {
	return ast.Walk(blockCollector{t}, root)
}

type blockCollector struct{ t *Template }

func (c blockCollector) Visit(n ast.Node) error {
	b, ok := n.(*ast.Block)
	if !ok {
		return nil
	}
	if prev, dup := c.t.Blocks[b.Name]; dup {
		return core.Errorf(core.DuplicateBlock, b.Pos(),
			"block %q is already defined at %s", b.Name, prev.Pos())
	}
	c.t.Blocks[b.Name] = b
	return nil
}

func (t *Template) collectTopLevel(root *ast.Root) error {
	var extends *ast.Extends
	for _, n := range root.Nodes {
		switch x := n.(type) {
		case *ast.Extends:
			if extends != nil {
				return core.Errorf(core.DuplicateExtends, x.Pos(),
					"template already extends %q at %s", extends.Name, extends.Pos())
			}
			extends = x
			t.Parent = x.Name

		case *ast.Macro:
			if prev, dup := t.Macros[x.Name]; dup {
				return core.Errorf(core.DuplicateMacro, x.Pos(),
					"macro %q is already defined at %s", x.Name, prev.Pos())
			}
			t.Macros[x.Name] = x

		case *ast.ImportMacro:
			t.ImportedMacroFiles = append(t.ImportedMacroFiles, MacroImport{
				File:      x.File,
				Namespace: x.Namespace,
				Pos:       x.Pos(),
			})
		}
	}
	return nil
}

// Extends returns the top-level extends tag, or nil.
func (t *Template) Extends() *ast.Extends {
	for _, n := range t.AST.Nodes {
		if x, ok := n.(*ast.Extends); ok {
			return x
		}
	}
	return nil
}

// HasParent reports whether the template extends another.
func (t *Template) HasParent() bool { return t.Parent != "" }

// Root returns the name of the most distant ancestor, or the template's own
// name when it has no parent. Valid only after resolution.
func (t *Template) Root() string {
	if len(t.Parents) == 0 {
		return t.Name
	}
	return t.Parents[len(t.Parents)-1]
}

// Definition returns the definition of block at level, where level 0 is the
// most distant ancestor's definition.
func (t *Template) Definition(block string, level int) (BlockDefinition, bool) {
	defs := t.BlocksDefinitions[block]
	if level < 0 || level >= len(defs) {
		return BlockDefinition{}, false
	}
	return defs[level], true
}
