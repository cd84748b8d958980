// Package config loads leaptmpl CLI configuration.
//
// Values come, lowest precedence first, from built-in defaults, the project
// file (leaptmpl.yaml or leaptmpl.yml), LEAPTMPL_* environment variables and
// explicitly set command-line flags.
package config

// Default configuration values.
const (
	DefaultTemplatesDir = "templates"
	DefaultFiltersDir   = "filters"
	DefaultStateFile    = ".leaptmpl/history.db"
	DefaultMaxDepth     = 64
	DefaultOutput       = "auto" // TTY=text, non-TTY=markdown
	DefaultPort         = 8765
)

// DefaultExtensions are the template extensions discovered by default.
var DefaultExtensions = []string{".html", ".htm", ".txt", ".tera", ".j2", ".tmpl"}

// ServeConfig holds configuration for the preview server.
type ServeConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

// Config holds all CLI configuration options.
type Config struct {
	TemplatesDir string      `koanf:"templates_dir"`
	FiltersDir   string      `koanf:"filters_dir"`
	Extensions   []string    `koanf:"extensions"`
	Data         string      `koanf:"data"`
	Strict       bool        `koanf:"strict"`
	Autoescape   bool        `koanf:"autoescape"`
	MaxDepth     int         `koanf:"max_depth"`
	StatePath    string      `koanf:"state_path"`
	OutDir       string      `koanf:"out_dir"`
	Verbose      bool        `koanf:"verbose"`
	OutputFormat string      `koanf:"output"`
	Serve        ServeConfig `koanf:"serve"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the project file that was read, if any.
	ConfigFile string `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"templates_dir": DefaultTemplatesDir,
		"filters_dir":   DefaultFiltersDir,
		"extensions":    DefaultExtensions,
		"data":          "",
		"strict":        true,
		"autoescape":    true,
		"max_depth":     DefaultMaxDepth,
		"state_path":    DefaultStateFile,
		"out_dir":       "",
		"verbose":       false,
		"output":        DefaultOutput,
		"serve.port":    DefaultPort,
		"serve.watch":   true,
	}
}
