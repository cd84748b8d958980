// Package loader discovers template files on disk and reads their YAML
// frontmatter and data files.
package loader

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontmatterConfig is the parsed frontmatter of a template file.
// Unknown fields cause parse errors (use Meta for extensions).
type FrontmatterConfig struct {
	Description string         `yaml:"description"`
	Tags        []string       `yaml:"tags"`
	Data        map[string]any `yaml:"data"` // default context values
	Meta        map[string]any `yaml:"meta"` // extension point for custom fields
}

// FrontmatterResult holds the result of frontmatter extraction.
type FrontmatterResult struct {
	Config  *FrontmatterConfig
	Content string // template source with the frontmatter blanked out
	HasYAML bool
}

// frontmatterPattern matches a leading {#--- ... ---#} comment.
var frontmatterPattern = regexp.MustCompile(`(?s)^\s*\{#---[ \t]*\n(.*?)\s*---#\}`)

// ExtractFrontmatter splits frontmatter from a template source. The
// frontmatter is replaced by as many newlines as it spanned so positions in
// the remaining source keep their line numbers.
func ExtractFrontmatter(content string) (*FrontmatterResult, error) {
	result := &FrontmatterResult{
		Config:  &FrontmatterConfig{},
		Content: content,
	}

	loc := frontmatterPattern.FindStringSubmatchIndex(content)
	if loc == nil {
		return result, nil
	}

	result.HasYAML = true
	block := content[loc[0]:loc[1]]
	result.Content = strings.Repeat("\n", strings.Count(block, "\n")) + content[loc[1]:]

	config, err := parseFrontmatterYAML(content[loc[2]:loc[3]])
	if err != nil {
		return nil, err
	}
	result.Config = config
	return result, nil
}

var knownFields = map[string]bool{
	"description": true,
	"tags":        true,
	"data":        true,
	"meta":        true,
}

// parseFrontmatterYAML parses YAML content with strict field validation.
func parseFrontmatterYAML(src string) (*FrontmatterConfig, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(src), &raw); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	for field := range raw {
		if !knownFields[field] {
			return nil, &UnknownFieldError{Field: field}
		}
	}

	var config FrontmatterConfig
	if err := yaml.Unmarshal([]byte(src), &config); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("failed to parse frontmatter: %v", err)}
	}
	return &config, nil
}

// FrontmatterParseError represents a frontmatter parsing error.
type FrontmatterParseError struct {
	File    string
	Message string
}

func (e *FrontmatterParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError represents an error for unknown frontmatter fields.
type UnknownFieldError struct {
	File  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in frontmatter, use \"meta\" field for custom fields", e.Field)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
