package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/alucardeht/notion-mcp/pkg/protocol"
)

const descriptionWidth = 60

// CapabilityReport is everything the server advertised during one session.
// A list the server refused carries its error text instead.
type CapabilityReport struct {
	Server         protocol.InitializeResult `json:"server"`
	Tools          []protocol.Tool           `json:"tools"`
	Resources      []protocol.Resource       `json:"resources,omitempty"`
	ResourcesError string                    `json:"resources_error,omitempty"`
	Prompts        []protocol.Prompt         `json:"prompts,omitempty"`
	PromptsError   string                    `json:"prompts_error,omitempty"`
}

type ToolGroup struct {
	Name  string
	Tools []protocol.Tool
}

var categories = []struct {
	name     string
	keywords []string
}{
	{"Pages", []string{"page"}},
	{"Databases", []string{"database"}},
	{"Blocks", []string{"block"}},
	{"Users", []string{"user"}},
	{"Search", []string{"search"}},
	{"Comments", []string{"comment"}},
}

const otherCategory = "Other"

func categorize(toolName string) string {
	name := strings.ToLower(toolName)
	for _, c := range categories {
		for _, k := range c.keywords {
			if strings.Contains(name, k) {
				return c.name
			}
		}
	}
	return otherCategory
}

// GroupTools sorts tools into categories by name. Empty categories are
// dropped and tools keep their server order inside a group.
func GroupTools(tools []protocol.Tool) []ToolGroup {
	byName := make(map[string][]protocol.Tool)
	for _, t := range tools {
		c := categorize(t.Name)
		byName[c] = append(byName[c], t)
	}

	var groups []ToolGroup
	for _, c := range categories {
		if ts := byName[c.name]; len(ts) > 0 {
			groups = append(groups, ToolGroup{Name: c.name, Tools: ts})
		}
	}
	if ts := byName[otherCategory]; len(ts) > 0 {
		groups = append(groups, ToolGroup{Name: otherCategory, Tools: ts})
	}
	return groups
}

// FilterTools keeps the tools whose name matches the glob pattern. An empty
// pattern keeps everything.
func FilterTools(tools []protocol.Tool, pattern string) ([]protocol.Tool, error) {
	if pattern == "" {
		return tools, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid tool filter %q", pattern)
	}
	var kept []protocol.Tool
	for _, t := range tools {
		if ok, _ := doublestar.Match(pattern, t.Name); ok {
			kept = append(kept, t)
		}
	}
	return kept, nil
}

func Capabilities(w io.Writer, r *CapabilityReport) error {
	var b strings.Builder

	if info := r.Server.ServerInfo; info != nil {
		fmt.Fprintf(&b, "Server: %s %s\n", info.Name, info.Version)
	}
	if r.Server.ProtocolVersion != "" {
		fmt.Fprintf(&b, "Protocol: %s\n", r.Server.ProtocolVersion)
	}
	if len(r.Server.Capabilities) > 0 {
		names := make([]string, 0, len(r.Server.Capabilities))
		for k := range r.Server.Capabilities {
			names = append(names, k)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "Capabilities: %s\n", strings.Join(names, ", "))
	}

	fmt.Fprintf(&b, "\nTools (%d)\n", len(r.Tools))
	for _, g := range GroupTools(r.Tools) {
		fmt.Fprintf(&b, "\n  %s (%d)\n", g.Name, len(g.Tools))
		for _, t := range g.Tools {
			fmt.Fprintf(&b, "    %s\n", t.Name)
			for _, line := range Wrap(t.Description, descriptionWidth) {
				fmt.Fprintf(&b, "        %s\n", line)
			}
		}
	}

	b.WriteString("\nResources: ")
	switch {
	case r.ResourcesError != "":
		b.WriteString("not supported\n")
	case len(r.Resources) == 0:
		b.WriteString("none\n")
	default:
		fmt.Fprintf(&b, "%d\n", len(r.Resources))
		for _, res := range r.Resources {
			fmt.Fprintf(&b, "    %s (%s)\n", res.Name, res.URI)
		}
	}

	b.WriteString("Prompts: ")
	switch {
	case r.PromptsError != "":
		b.WriteString("not supported\n")
	case len(r.Prompts) == 0:
		b.WriteString("none\n")
	default:
		fmt.Fprintf(&b, "%d\n", len(r.Prompts))
		for _, p := range r.Prompts {
			fmt.Fprintf(&b, "    %s\n", p.Name)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
