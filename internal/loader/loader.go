package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/leaptmpl/pkg/engine"
	"github.com/leapstack-labs/leaptmpl/pkg/eval"
)

// DefaultExtensions are the template file extensions discovered when none are
// configured.
var DefaultExtensions = []string{".html", ".htm", ".txt", ".tera", ".j2", ".tmpl"}

// File is a discovered template file.
type File struct {
	// Name is the slash-separated path relative to the templates directory.
	Name string
	// Path is the file's path on disk.
	Path string
	// Content is the template source with any frontmatter blanked out.
	Content     string
	Frontmatter *FrontmatterConfig
	// Hash is the hex SHA-256 of the file as read.
	Hash string
}

// Source returns the registry source for f.
func (f *File) Source() engine.Source {
	return engine.Source{Name: f.Name, Path: f.Path, Content: f.Content}
}

// Defaults converts the frontmatter data into a render context.
func (f *File) Defaults() (eval.Context, error) {
	if f.Frontmatter == nil || len(f.Frontmatter.Data) == 0 {
		return eval.Context{}, nil
	}
	ctx, err := eval.NewContext(f.Frontmatter.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: frontmatter data: %w", f.Name, err)
	}
	return ctx, nil
}

// Discover walks dir for files whose extension is in exts and returns them
// sorted by name. Hidden files and directories are skipped.
func Discover(dir string, exts []string) ([]*File, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	var files []*File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !slices.Contains(exts, filepath.Ext(d.Name())) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := LoadFile(filepath.ToSlash(rel), path)
		if err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	slices.SortFunc(files, func(a, b *File) int { return strings.Compare(a.Name, b.Name) })
	return files, nil
}

// LoadFile reads one template file and extracts its frontmatter.
func LoadFile(name, path string) (*File, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the templates directory walk
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(content)
	fm, err := ExtractFrontmatter(string(content))
	if err != nil {
		return nil, withFile(err, path)
	}

	return &File{
		Name:        name,
		Path:        path,
		Content:     fm.Content,
		Frontmatter: fm.Config,
		Hash:        hex.EncodeToString(sum[:]),
	}, nil
}

func withFile(err error, path string) error {
	switch e := err.(type) {
	case *FrontmatterParseError:
		e.File = path
	case *UnknownFieldError:
		e.File = path
	}
	return err
}

// Sources converts files into registry sources.
func Sources(files []*File) []engine.Source {
	out := make([]engine.Source, len(files))
	for i, f := range files {
		out[i] = f.Source()
	}
	return out
}
