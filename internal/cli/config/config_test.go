package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leaptmpl/internal/testutil"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("templates-dir", "", "")
	flags.String("state", "", "")
	flags.Bool("strict", true, "")
	flags.Int("max-depth", 0, "")
	flags.Int("port", 0, "")
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	root, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, filepath.Join(root, "templates"), cfg.TemplatesDir)
	assert.Equal(t, filepath.Join(root, "filters"), cfg.FiltersDir)
	assert.Equal(t, filepath.Join(root, ".leaptmpl", "history.db"), cfg.StatePath)
	assert.Equal(t, DefaultExtensions, cfg.Extensions)
	assert.True(t, cfg.Strict)
	assert.True(t, cfg.Autoescape)
	assert.Equal(t, 64, cfg.MaxDepth)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.Equal(t, ServeConfig{Port: 8765, Watch: true}, cfg.Serve)
	assert.Empty(t, cfg.Data)
}

func TestLoad_File(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"leaptmpl.yaml": `templates_dir: views
extensions: [html, ".J2"]
strict: false
max_depth: 10
data: data/site.yaml
serve:
  port: 9000
`,
		"sub/deeper/.keep": "",
	})
	t.Chdir(filepath.Join(dir, "sub", "deeper"))

	cfg, err := Load("", nil)
	require.NoError(t, err)

	root, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	gotRoot, err := filepath.EvalSymlinks(cfg.ProjectRoot)
	require.NoError(t, err)

	assert.Equal(t, root, gotRoot, "project file is found upward")
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "views"), cfg.TemplatesDir)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "data", "site.yaml"), cfg.Data)
	assert.Equal(t, []string{".html", ".j2"}, cfg.Extensions)
	assert.False(t, cfg.Strict)
	assert.Equal(t, 10, cfg.MaxDepth)
	assert.Equal(t, 9000, cfg.Serve.Port)
	assert.True(t, cfg.Serve.Watch)
}

func TestLoad_Precedence(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"leaptmpl.yml": "templates_dir: from_file\nmax_depth: 5\nserve:\n  port: 1000\n",
	})
	t.Chdir(dir)
	cfgPath := filepath.Join(dir, "leaptmpl.yml")

	t.Setenv("LEAPTMPL_TEMPLATES_DIR", "from_env")
	t.Setenv("LEAPTMPL_MAX_DEPTH", "7")
	t.Setenv("LEAPTMPL_SERVE_PORT", "2000")

	tests := []struct {
		name      string
		setFlags  map[string]string
		wantDir   string
		wantDepth int
		wantPort  int
	}{
		{
			name:      "env overrides file",
			wantDir:   "from_env",
			wantDepth: 7,
			wantPort:  2000,
		},
		{
			name:      "set flags override env",
			setFlags:  map[string]string{"templates-dir": "from_flag", "max-depth": "9", "port": "3000"},
			wantDir:   "from_flag",
			wantDepth: 9,
			wantPort:  3000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := testFlags()
			for k, v := range tt.setFlags {
				require.NoError(t, flags.Set(k, v))
			}

			cfg, err := Load(cfgPath, flags)
			require.NoError(t, err)
			assert.Equal(t, cfgPath, cfg.ConfigFile)
			assert.Equal(t, tt.wantDepth, cfg.MaxDepth)
			assert.Equal(t, tt.wantPort, cfg.Serve.Port)

			assert.Equal(t, tt.wantDir, filepath.Base(cfg.TemplatesDir))
		})
	}
}

func TestLoad_StateFlag(t *testing.T) {
	t.Chdir(t.TempDir())
	flags := testFlags()
	require.NoError(t, flags.Set("state", "custom.db"))
	require.NoError(t, flags.Set("strict", "false"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "custom.db", filepath.Base(cfg.StatePath))
	assert.True(t, filepath.IsAbs(cfg.StatePath))
	assert.False(t, cfg.Strict)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantErr string
	}{
		{"bad yaml", "templates_dir: [unclosed", "error reading config file"},
		{"bad depth", "max_depth: 0", "max_depth must be positive"},
		{"bad output", "output: yaml", "invalid output format"},
		{"bad port", "serve:\n  port: 70000", "serve.port out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.WriteTree(t, map[string]string{"leaptmpl.yaml": tt.file})
			_, err := Load(filepath.Join(dir, "leaptmpl.yaml"), nil)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestValidateDirectories(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{"templates/a.html": "", "file": ""})

	assert.NoError(t, (&Config{TemplatesDir: filepath.Join(dir, "templates")}).ValidateDirectories())
	assert.ErrorContains(t, (&Config{TemplatesDir: filepath.Join(dir, "nope")}).ValidateDirectories(), "does not exist")
	assert.ErrorContains(t, (&Config{TemplatesDir: filepath.Join(dir, "file")}).ValidateDirectories(), "not a directory")
}

func TestNormalizeExtensions(t *testing.T) {
	assert.Equal(t, []string{".html", ".txt", ".j2"}, normalizeExtensions([]string{"html .TXT", "j2"}))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "max_depth", envKey("LEAPTMPL_MAX_DEPTH"))
	assert.Equal(t, "serve.port", envKey("LEAPTMPL_SERVE_PORT"))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, false, false)
	logger.Debug("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")

	buf.Reset()
	NewLogger(&buf, true, true).Debug("dbg", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"dbg"`)

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
	assert.NotNil(t, GetLogger(context.Background()))
}

func TestConfigContext(t *testing.T) {
	assert.Nil(t, GetConfig(context.Background()))

	cfg := &Config{MaxDepth: 3}
	assert.Same(t, cfg, GetConfig(WithConfig(context.Background(), cfg)))
}
