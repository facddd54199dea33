package mcp

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alucardeht/notion-mcp/pkg/protocol"
)

const (
	HeadersEnv   = "OPENAPI_MCP_HEADERS"
	TokenEnv     = "NOTION_TOKEN"
	DefaultImage = "mcp/notion"

	DefaultNotionVersion = "2022-06-28"
	DefaultTimeout       = 60 * time.Second
	DefaultShutdownGrace = 3 * time.Second
)

type Config struct {
	Token         string
	NotionVersion string
	// Command is the server argv. The first element is resolved on PATH.
	Command       []string
	ClientInfo    protocol.Implementation
	Timeout       time.Duration
	ShutdownGrace time.Duration
	Logger        *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		NotionVersion: DefaultNotionVersion,
		Command:       DockerCommand("docker", DefaultImage),
		ClientInfo: protocol.Implementation{
			Name:    "notion-mcp",
			Version: "1.0.0",
		},
		Timeout:       DefaultTimeout,
		ShutdownGrace: DefaultShutdownGrace,
	}
}

// DockerCommand runs image interactively and removes the container on exit.
// Only the variable names are passed on the command line; values travel in
// the child environment so the token never shows up in the process list.
func DockerCommand(runtime, image string) []string {
	return []string{runtime, "run", "--rm", "-i", "-e", HeadersEnv, "-e", TokenEnv, image}
}

func (c Config) Validate() error {
	if c.Token == "" {
		return NewMissingTokenError()
	}
	if len(c.Command) == 0 || c.Command[0] == "" {
		return &ConfigurationError{Key: "command", Message: "server command is empty"}
	}
	return nil
}

// Headers renders the OPENAPI_MCP_HEADERS value understood by the Notion
// MCP server.
func Headers(token, notionVersion string) string {
	if notionVersion == "" {
		notionVersion = DefaultNotionVersion
	}
	h := struct {
		Authorization string `json:"Authorization"`
		NotionVersion string `json:"Notion-Version"`
	}{
		Authorization: "Bearer " + token,
		NotionVersion: notionVersion,
	}
	b, _ := json.Marshal(h)
	return string(b)
}

// ServerEnv is base with the credential variables set, replacing any
// inherited values.
func ServerEnv(base []string, token, notionVersion string) []string {
	env := make([]string, 0, len(base)+2)
	for _, kv := range base {
		if hasKey(kv, HeadersEnv) || hasKey(kv, TokenEnv) {
			continue
		}
		env = append(env, kv)
	}
	return append(env,
		TokenEnv+"="+token,
		HeadersEnv+"="+Headers(token, notionVersion),
	)
}

func hasKey(kv, key string) bool {
	return len(kv) > len(key) && kv[:len(key)] == key && kv[len(key)] == '='
}
