package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alucardeht/notion-mcp/internal/mcp"
)

// isolate points HOME at an empty directory and clears every variable the
// loader reads.
func isolate(t *testing.T) string {
	t.Helper()
	homedir.DisableCache = true
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, env := range envNames {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Empty(t, cfg.Token)
	assert.Equal(t, mcp.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, mcp.DefaultNotionVersion, cfg.NotionVersion)
	assert.Equal(t, "json", cfg.Output)
	assert.Empty(t, cfg.File)
	assert.Equal(t, []string{"docker", "run", "--rm", "-i", "-e", mcp.HeadersEnv, "-e", mcp.TokenEnv, "mcp/notion"}, cfg.ServerCommand())

	_, err = uuid.Parse(cfg.RunID)
	assert.NoError(t, err)
}

func TestLoadFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("NOTION_TOKEN", "  secret_abc \n")
	t.Setenv("NOTION_MCP_RUNTIME", "podman")
	t.Setenv("NOTION_MCP_IMAGE", "ghcr.io/example/notion:1")
	t.Setenv("NOTION_MCP_TIMEOUT", "15")
	t.Setenv("NOTION_VERSION", "2025-01-01")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "secret_abc", cfg.Token)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, "podman", cfg.ServerCommand()[0])
	assert.Equal(t, "ghcr.io/example/notion:1", cfg.ServerCommand()[len(cfg.ServerCommand())-1])

	mc := cfg.MCPConfig(nil)
	assert.Equal(t, "secret_abc", mc.Token)
	assert.Equal(t, "2025-01-01", mc.NotionVersion)
	assert.Equal(t, 15*time.Second, mc.Timeout)
	assert.NoError(t, mc.Validate())
}

func TestCommandOverride(t *testing.T) {
	isolate(t)
	t.Setenv("NOTION_MCP_COMMAND", "npx -y @notionhq/notion-mcp-server")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"npx", "-y", "@notionhq/notion-mcp-server"}, cfg.ServerCommand())
}

func TestLoadDefaultFile(t *testing.T) {
	home := isolate(t)
	content := "image: custom/notion\ntimeout: 90s\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, FileName+".yaml"), []byte(content), 0o600))

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, FileName+".yaml"), cfg.File)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "custom/notion", cfg.Image)
}

func TestEnvironmentBeatsFile(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(file, []byte("token: from-file\nimage: file/image\n"), 0o600))
	t.Setenv("NOTION_TOKEN", "from-env")

	cfg, err := Load(NewViper(), file)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, "file/image", cfg.Image)
}

func TestFlagsBeatEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("NOTION_MCP_TIMEOUT", "15s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Duration("timeout", 0, "")
	flags.String("output", "json", "")
	require.NoError(t, flags.Parse([]string{"--timeout", "2m", "--output", "text"}))

	v := NewViper()
	require.NoError(t, BindFlags(v, flags))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, "text", cfg.Output)
}

func TestUnsetFlagsFallBack(t *testing.T) {
	isolate(t)
	t.Setenv("NOTION_MCP_TIMEOUT", "15s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Duration("timeout", 0, "")
	require.NoError(t, flags.Parse(nil))

	v := NewViper()
	require.NoError(t, BindFlags(v, flags))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
}

func TestInvalidTimeout(t *testing.T) {
	isolate(t)
	t.Setenv("NOTION_MCP_TIMEOUT", "soon")

	_, err := Load(NewViper(), "")
	require.Error(t, err)
	assert.True(t, mcp.IsConfiguration(err))
	assert.ErrorContains(t, err, "NOTION_MCP_TIMEOUT")

	t.Setenv("NOTION_MCP_TIMEOUT", "-5s")
	_, err = Load(NewViper(), "")
	assert.True(t, mcp.IsConfiguration(err))
}

func TestMissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, mcp.IsConfiguration(err))
}
