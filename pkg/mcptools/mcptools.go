// Package mcptools exposes tools from MCP (Model Context Protocol)
// servers as schema.Tool values, so a receiver can serve protocols
// backed by external tool servers.
//
// Connections are lazy: an MCP subprocess is only spawned when Tools()
// is first called.
package mcptools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/agora-protocol/agora-go/pkg/schema"
)

const (
	clientName      = "agora"
	clientVersion   = "0.1.0"
	protocolVersion = "2024-11-05"
)

// ServerConfig configures one MCP server connection (stdio transport).
type ServerConfig struct {
	// Name identifies this server.
	Name string `yaml:"name" json:"name"`

	// Command spawns the server subprocess.
	Command string `yaml:"command" json:"command"`

	// Args for the subprocess.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Env for the subprocess, as KEY=VALUE pairs.
	Env []string `yaml:"env,omitempty" json:"env,omitempty"`

	// Filter limits which tools are exposed. Empty means all.
	Filter []string `yaml:"filter,omitempty" json:"filter,omitempty"`
}

// Source is one MCP server's tool set.
type Source struct {
	cfg       ServerConfig
	filterSet map[string]bool

	mu        sync.Mutex
	client    *client.Client
	tools     []*schema.Tool
	connected bool
}

// NewSource creates an MCP tool source. The connection is established on
// first use.
func NewSource(cfg ServerConfig) (*Source, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command is required")
	}

	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}

	return &Source{cfg: cfg, filterSet: filterSet}, nil
}

// Name returns the source name.
func (s *Source) Name() string { return s.cfg.Name }

// Tools returns the server's tools, connecting lazily if needed.
func (s *Source) Tools(ctx context.Context) ([]*schema.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		if err := s.connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to MCP server %s: %w", s.cfg.Name, err)
		}
	}
	return s.tools, nil
}

// Close shuts down the server subprocess.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.connected = false
	s.tools = nil
	return err
}

func (s *Source) connect(ctx context.Context) error {
	mcpClient, err := client.NewStdioMCPClient(s.cfg.Command, s.cfg.Env, s.cfg.Args...)
	if err != nil {
		return fmt.Errorf("failed to create MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}
	initReq.Params.ProtocolVersion = protocolVersion

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP: %w", err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to list tools: %w", err)
	}

	var tools []*schema.Tool
	for _, mcpTool := range listResp.Tools {
		if s.filterSet != nil && !s.filterSet[mcpTool.Name] {
			continue
		}

		parameters, err := convertParameters(mcpTool.InputSchema)
		if err != nil {
			mcpClient.Close()
			return fmt.Errorf("tool %s: %w", mcpTool.Name, err)
		}

		name := mcpTool.Name
		tools = append(tools, schema.NewTool(name, mcpTool.Description, parameters, s.callHandler(name)))
	}

	s.client = mcpClient
	s.tools = tools
	s.connected = true

	slog.Info("connected to MCP server",
		"name", s.cfg.Name,
		"command", s.cfg.Command,
		"tools", len(tools))

	return nil
}

// callHandler adapts one remote tool into a schema.Handler. Transport
// and server-side failures come back as errors; the invoking boundary
// turns them into diagnostic text.
func (s *Source) callHandler(name string) schema.Handler {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		s.mu.Lock()
		mcpClient := s.client
		s.mu.Unlock()

		if mcpClient == nil {
			return nil, fmt.Errorf("MCP client not connected")
		}

		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args

		resp, err := mcpClient.CallTool(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("MCP call failed: %w", err)
		}

		text := collectTextContent(resp)
		if resp.IsError {
			return nil, fmt.Errorf("%s", text)
		}
		return text, nil
	}
}

func collectTextContent(resp *mcp.CallToolResult) string {
	var parts []string
	for _, content := range resp.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			parts = append(parts, textContent.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// convertParameters maps a JSON-schema input object onto Parameter
// variants. Unknown property types are a contract violation.
func convertParameters(inputSchema mcp.ToolInputSchema) ([]schema.Parameter, error) {
	requiredSet := make(map[string]bool, len(inputSchema.Required))
	for _, name := range inputSchema.Required {
		requiredSet[name] = true
	}

	parameters := make([]schema.Parameter, 0, len(inputSchema.Properties))
	for name, raw := range inputSchema.Properties {
		property, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("property %s: not an object", name)
		}

		standard := map[string]interface{}{
			"name":        name,
			"description": stringOr(property["description"], ""),
			"required":    requiredSet[name],
		}

		typeName := stringOr(property["type"], "")
		if values, ok := property["enum"].([]interface{}); ok {
			standard["type"] = schema.TypeEnum
			standard["values"] = values
		} else {
			switch typeName {
			case "string":
				standard["type"] = schema.TypeString
			case "number", "integer":
				standard["type"] = schema.TypeNumber
			case "array":
				standard["type"] = schema.TypeArray
				if items, ok := property["items"].(map[string]interface{}); ok {
					standard["item_schema"] = items
				}
			default:
				standard["type"] = typeName
			}
		}

		parameter, err := schema.ParameterFromStandardSchema(standard)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		parameters = append(parameters, parameter)
	}

	return parameters, nil
}

func stringOr(v interface{}, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

// DiscoverAll connects to every configured server concurrently and
// returns the union of their tools in configuration order.
func DiscoverAll(ctx context.Context, configs []ServerConfig) ([]*schema.Tool, []*Source, error) {
	sources := make([]*Source, len(configs))
	for i, cfg := range configs {
		source, err := NewSource(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("server %s: %w", cfg.Name, err)
		}
		sources[i] = source
	}

	toolsBySource := make([][]*schema.Tool, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, source := range sources {
		g.Go(func() error {
			tools, err := source.Tools(gctx)
			if err != nil {
				return err
			}
			toolsBySource[i] = tools
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, source := range sources {
			_ = source.Close()
		}
		return nil, nil, err
	}

	var all []*schema.Tool
	for _, tools := range toolsBySource {
		all = append(all, tools...)
	}
	return all, sources, nil
}
