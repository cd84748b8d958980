package starlark

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.starlark.net/starlark"
)

// Module is one executed filter file.
type Module struct {
	// Name is the file name without the .star extension.
	Name string
	// Path is the file's path on disk.
	Path string
	// Exports holds the file's public globals (names not starting with _),
	// frozen so filters may run concurrently.
	Exports starlark.StringDict
}

// LoadDir executes every *.star file directly inside dir in name order.
// A missing directory yields no modules.
func LoadDir(dir string) ([]*Module, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to access filters directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("filters path is not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.star"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan filters directory: %w", err)
	}
	slices.Sort(files)

	modules := make([]*Module, 0, len(files))
	for _, file := range files {
		src, err := os.ReadFile(file) //nolint:gosec // G304: path comes from a glob within the filters directory
		if err != nil {
			return nil, &LoadError{File: file, Message: fmt.Sprintf("failed to read file: %v", err)}
		}
		m, err := LoadModule(file, src)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, nil
}

// LoadModule executes one filter file.
func LoadModule(path string, src []byte) (*Module, error) {
	name := strings.TrimSuffix(filepath.Base(path), ".star")

	thread := &starlark.Thread{
		Name:  "load:" + name,
		Print: func(*starlark.Thread, string) {},
	}
	globals, err := starlark.ExecFile(thread, path, src, Predeclared()) //nolint:staticcheck // SA1019: will migrate to ExecFileOptions later
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("Starlark execution error: %v", err)}
	}

	exports := make(starlark.StringDict)
	for name, v := range globals {
		if !strings.HasPrefix(name, "_") {
			exports[name] = v
		}
	}
	exports.Freeze()

	return &Module{Name: name, Path: path, Exports: exports}, nil
}

// validateName checks that name can be used as a filter in templates.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("filter name cannot be empty")
	}
	for i, r := range name {
		switch {
		case isLetter(r) || r == '_':
		case i > 0 && isDigit(r):
		default:
			return fmt.Errorf("invalid filter name %q: must be letters, digits and underscores, not starting with a digit", name)
		}
	}
	return nil
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// LoadError reports a filter file that could not be loaded.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("filters/%s: %s", filepath.Base(e.File), e.Message)
}
