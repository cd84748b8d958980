package commands

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/leapstack-labs/leaptmpl/internal/cli/output"
	"github.com/leapstack-labs/leaptmpl/internal/loader"
	"github.com/spf13/cobra"
)

// TemplateInfo describes one template in list output.
type TemplateInfo struct {
	Name        string   `json:"name"`
	File        string   `json:"file"`
	Parents     []string `json:"parents"`
	Level       int      `json:"level"`
	Blocks      []string `json:"blocks"`
	Macros      []string `json:"macros"`
	Imports     []string `json:"imports"`
	UsedBy      []string `json:"used_by"`
	DependsOn   []string `json:"depends_on"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ListOutput is the JSON result of list.
type ListOutput struct {
	Templates []TemplateInfo `json:"templates"`
	Levels    [][]string     `json:"levels"`
	Filters   []string       `json:"filters"`
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates with their inheritance and macros",
		Long: `List all discovered templates with their parents, blocks, macros and
imports, grouped by inheritance level.

Level 0 holds templates that extend and import nothing; every other
template sits one level below the deepest template it depends on.

Output adapts to environment:
  - Terminal: Table
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all templates
  leaptmpl list

  # List templates as JSON
  leaptmpl list --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	result, err := describeProject(cmdCtx.Project)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(result)
	case output.ModeMarkdown:
		listMarkdown(r, result)
	default:
		listText(r, result)
	}
	return nil
}

func describeProject(p *loader.Project) (ListOutput, error) {
	graph := p.Registry.Graph()
	levels, err := graph.Levels()
	if err != nil {
		return ListOutput{}, fmt.Errorf("failed to compute levels: %w", err)
	}

	levelOf := make(map[string]int)
	for l, names := range levels {
		for _, name := range names {
			levelOf[name] = l
		}
	}

	result := ListOutput{
		Templates: make([]TemplateInfo, 0, len(levelOf)),
		Levels:    levels,
		Filters:   p.Registry.Filters(),
	}

	for _, name := range p.Names() {
		t, err := p.Registry.Get(name)
		if err != nil {
			return ListOutput{}, err
		}

		info := TemplateInfo{
			Name:      name,
			File:      t.Path,
			Parents:   nonNil(t.Parents),
			Level:     levelOf[name],
			Blocks:    slices.Sorted(maps.Keys(t.Blocks)),
			Macros:    slices.Sorted(maps.Keys(t.Macros)),
			Imports:   []string{},
			UsedBy:    nonNil(graph.Children(name)),
			DependsOn: nonNil(graph.Upstream(name)),
		}
		for _, imp := range t.ImportedMacroFiles {
			info.Imports = append(info.Imports, imp.Namespace+"="+imp.File)
		}
		if f, ok := p.Files[name]; ok && f.Frontmatter != nil {
			info.Description = f.Frontmatter.Description
			info.Tags = f.Frontmatter.Tags
		}
		result.Templates = append(result.Templates, info)
	}
	return result, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func dash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}

// listText outputs templates as a table.
func listText(r *output.Renderer, result ListOutput) {
	r.Header(1, fmt.Sprintf("Templates (%d total)", len(result.Templates)))

	rows := make([][]string, 0, len(result.Templates))
	for _, t := range result.Templates {
		rows = append(rows, []string{
			t.Name,
			fmt.Sprintf("%d", t.Level),
			dash(t.Parents),
			dash(t.Blocks),
			dash(t.Macros),
			dash(t.Imports),
		})
	}
	r.Table([]string{"Template", "Level", "Extends", "Blocks", "Macros", "Imports"}, rows)
	r.Println("")
	r.Muted(fmt.Sprintf("%d inheritance levels, %d filters", len(result.Levels), len(result.Filters)))
}

// listMarkdown outputs templates grouped by level.
func listMarkdown(r *output.Renderer, result ListOutput) {
	byName := make(map[string]TemplateInfo, len(result.Templates))
	for _, t := range result.Templates {
		byName[t.Name] = t
	}

	r.Println(output.FormatHeader(1, fmt.Sprintf("Templates (%d total)", len(result.Templates))))
	r.Println("")

	for i, level := range result.Levels {
		levelName := fmt.Sprintf("Level %d", i)
		if i == 0 {
			levelName = "Level 0 (Roots)"
		}
		r.Println(output.FormatHeader(2, levelName))

		for _, name := range level {
			t := byName[name]
			r.Printf("- %s\n", name)
			if len(t.Parents) > 0 {
				r.Printf("  - extends: %s\n", strings.Join(t.Parents, " → "))
			}
			if len(t.Blocks) > 0 {
				r.Printf("  - blocks: %s\n", strings.Join(t.Blocks, ", "))
			}
			if len(t.Macros) > 0 {
				r.Printf("  - macros: %s\n", strings.Join(t.Macros, ", "))
			}
			if len(t.Imports) > 0 {
				r.Printf("  - imports: %s\n", strings.Join(t.Imports, ", "))
			}
			if len(t.UsedBy) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(t.UsedBy, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Templates", fmt.Sprintf("%d", len(result.Templates))))
	r.Println(output.FormatKeyValue("Filters", fmt.Sprintf("%d", len(result.Filters))))
}
