package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leaptmpl/pkg/eval"
	"github.com/leapstack-labs/leaptmpl/pkg/value"
)

// LoadData reads a YAML or JSON data file into a render context. The format
// follows the file extension; anything other than .json is read as YAML.
// An empty path yields an empty context.
func LoadData(path string) (eval.Context, error) {
	if path == "" {
		return eval.Context{}, nil
	}

	content, err := os.ReadFile(path) //nolint:gosec // G304: path is user-provided configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	var obj value.Object
	if strings.EqualFold(filepath.Ext(path), ".json") {
		obj, err = value.DecodeJSON(content)
	} else {
		obj, err = value.DecodeYAML(content)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return eval.Context(obj), nil
}
