package commands

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed all:scaffold
var scaffoldFS embed.FS

// copyScaffold copies an embedded project skeleton to targetDir. Existing
// files are kept unless force is set.
func copyScaffold(name, targetDir string, force bool) error {
	root := path.Join("scaffold", name)

	return fs.WalkDir(scaffoldFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		if relPath == "" {
			return nil
		}

		targetPath := filepath.Join(targetDir, filepath.FromSlash(renameSpecialFiles(relPath)))

		if d.IsDir() {
			return os.MkdirAll(targetPath, 0750)
		}

		if !force {
			if _, err := os.Stat(targetPath); err == nil {
				return nil // Skip existing files
			}
		}

		content, err := scaffoldFS.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(targetPath, content, 0600)
	})
}

// renameSpecialFiles restores dotfiles, which cannot be embedded by name.
func renameSpecialFiles(p string) string {
	dir, base := path.Split(p)
	switch base {
	case "gitignore":
		return dir + ".gitignore"
	default:
		return p
	}
}

// listScaffoldFiles returns the files of a skeleton for display purposes.
func listScaffoldFiles(name string) ([]string, error) {
	var files []string
	root := path.Join("scaffold", name)

	err := fs.WalkDir(scaffoldFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, renameSpecialFiles(strings.TrimPrefix(p, root+"/")))
		}
		return nil
	})

	return files, err
}

// groupScaffoldFiles groups files by top-level directory for display.
func groupScaffoldFiles(files []string) map[string][]string {
	groups := map[string][]string{
		"config":    {},
		"templates": {},
		"filters":   {},
	}

	for _, f := range files {
		switch {
		case strings.HasPrefix(f, "templates/"):
			groups["templates"] = append(groups["templates"], f)
		case strings.HasPrefix(f, "filters/"):
			groups["filters"] = append(groups["filters"], f)
		default:
			groups["config"] = append(groups["config"], f)
		}
	}

	return groups
}
