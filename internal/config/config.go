// Package config resolves settings from flags, environment variables and an
// optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/alucardeht/notion-mcp/internal/mcp"
)

const (
	KeyToken         = "token"
	KeyRuntime       = "runtime"
	KeyImage         = "image"
	KeyCommand       = "command"
	KeyTimeout       = "timeout"
	KeyNotionVersion = "notion_version"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"
	KeyOutput        = "output"

	FileName = ".notion-mcp"
)

var envNames = map[string]string{
	KeyToken:         mcp.TokenEnv,
	KeyRuntime:       "NOTION_MCP_RUNTIME",
	KeyImage:         "NOTION_MCP_IMAGE",
	KeyCommand:       "NOTION_MCP_COMMAND",
	KeyTimeout:       "NOTION_MCP_TIMEOUT",
	KeyNotionVersion: "NOTION_VERSION",
	KeyLogLevel:      "NOTION_MCP_LOG_LEVEL",
	KeyLogFormat:     "NOTION_MCP_LOG_FORMAT",
}

// flagNames maps persistent flags onto config keys.
var flagNames = map[string]string{
	"timeout":    KeyTimeout,
	"image":      KeyImage,
	"output":     KeyOutput,
	"log-level":  KeyLogLevel,
	"log-format": KeyLogFormat,
}

type Config struct {
	// Token is never written anywhere except the server's environment.
	Token         string
	Runtime       string
	Image         string
	Command       []string
	NotionVersion string
	Timeout       time.Duration
	LogLevel      string
	LogFormat     string
	Output        string

	// RunID tags every log line of one invocation.
	RunID string
	// File is the config file that was read, if any.
	File string
}

// NewViper returns a viper instance with defaults and environment bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyRuntime, "docker")
	v.SetDefault(KeyImage, mcp.DefaultImage)
	v.SetDefault(KeyTimeout, mcp.DefaultTimeout.String())
	v.SetDefault(KeyNotionVersion, mcp.DefaultNotionVersion)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyOutput, "json")

	for key, env := range envNames {
		_ = v.BindEnv(key, env)
	}
	return v
}

// BindFlags makes set flags override every other source.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagNames {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads file, or $HOME/.notion-mcp.yaml when file is empty, and builds
// the Config. A missing default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if err := readFile(v, file); err != nil {
		return nil, err
	}

	timeout, err := parseDuration(v.Get(KeyTimeout))
	if err != nil || timeout <= 0 {
		return nil, &mcp.ConfigurationError{
			Key:     envNames[KeyTimeout],
			Message: fmt.Sprintf("invalid timeout %q", v.GetString(KeyTimeout)),
		}
	}

	cfg := &Config{
		Token:         strings.TrimSpace(v.GetString(KeyToken)),
		Runtime:       v.GetString(KeyRuntime),
		Image:         v.GetString(KeyImage),
		Command:       strings.Fields(v.GetString(KeyCommand)),
		NotionVersion: v.GetString(KeyNotionVersion),
		Timeout:       timeout,
		LogLevel:      v.GetString(KeyLogLevel),
		LogFormat:     v.GetString(KeyLogFormat),
		Output:        v.GetString(KeyOutput),
		RunID:         uuid.NewString(),
		File:          v.ConfigFileUsed(),
	}
	return cfg, nil
}

func readFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return &mcp.ConfigurationError{Key: "config", Message: fmt.Sprintf("failed to read %s: %v", file, err)}
		}
		return nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return &mcp.ConfigurationError{Key: "config", Message: fmt.Sprintf("failed to find home directory: %v", err)}
	}
	v.AddConfigPath(home)
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return &mcp.ConfigurationError{Key: "config", Message: fmt.Sprintf("failed to read %s: %v", v.ConfigFileUsed(), err)}
	}
	return nil
}

// parseDuration accepts Go durations ("90s") and bare numbers of seconds.
func parseDuration(raw interface{}) (time.Duration, error) {
	switch d := raw.(type) {
	case time.Duration:
		return d, nil
	case int:
		return time.Duration(d) * time.Second, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(d)
		if n, err := strconv.Atoi(s); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		return time.ParseDuration(s)
	}
	return 0, fmt.Errorf("unsupported duration %v", raw)
}

// ServerCommand is the command override when one is set, otherwise the
// container runtime invocation for Image.
func (c *Config) ServerCommand() []string {
	if len(c.Command) > 0 {
		return c.Command
	}
	return mcp.DockerCommand(c.Runtime, c.Image)
}

func (c *Config) MCPConfig(log *slog.Logger) mcp.Config {
	mc := mcp.DefaultConfig()
	mc.Token = c.Token
	mc.NotionVersion = c.NotionVersion
	mc.Command = c.ServerCommand()
	mc.Timeout = c.Timeout
	mc.Logger = log
	return mc
}
