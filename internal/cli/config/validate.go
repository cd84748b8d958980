package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/leapstack-labs/leaptmpl/internal/cli/output"
)

// Validate checks values that do not depend on the filesystem.
func (c *Config) Validate() error {
	var errs []error
	if c.TemplatesDir == "" {
		errs = append(errs, errors.New("templates_dir is required"))
	}
	if c.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth))
	}
	if len(c.Extensions) == 0 {
		errs = append(errs, errors.New("extensions must not be empty"))
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		errs = append(errs, err)
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		errs = append(errs, fmt.Errorf("serve.port out of range: %d", c.Serve.Port))
	}
	return errors.Join(errs...)
}

// ValidateDirectories checks that the templates directory exists.
func (c *Config) ValidateDirectories() error {
	info, err := os.Stat(c.TemplatesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("templates directory does not exist: %s\nHint: Create the directory or use --templates-dir to specify a different path", c.TemplatesDir)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("templates path is not a directory: %s", c.TemplatesDir)
	}
	return nil
}
